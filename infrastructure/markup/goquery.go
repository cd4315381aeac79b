package markup

import (
	"fmt"
	"strings"

	"shop_replay/domain/entities"
	"shop_replay/domain/interfaces"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// GoqueryParser parses captured markup with goquery
type GoqueryParser struct{}

// NewParser - creates the offline markup parser
func NewParser() *GoqueryParser {
	return &GoqueryParser{}
}

// Parse - builds a queryable tree from full page HTML
func (p *GoqueryParser) Parse(markup string) (interfaces.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse markup: %w", err)
	}
	return &Document{doc: doc}, nil
}

// Document is a parsed page
type Document struct {
	doc *goquery.Document
}

// FindAll - returns the elements matching a CSS selector in document order.
// An invalid selector matches nothing.
func (d *Document) FindAll(selector string) []entities.PageElement {
	var out []entities.PageElement
	d.doc.Find(selector).Each(func(i int, s *goquery.Selection) {
		out = append(out, toPageElement(s))
	})
	return out
}

// Text returns the visible text of the whole document
func (d *Document) Text() string {
	return strings.Join(strings.Fields(d.doc.Find("body").Text()), " ")
}

func toPageElement(s *goquery.Selection) entities.PageElement {
	el := entities.PageElement{
		Tag:        goquery.NodeName(s),
		Text:       strings.Join(strings.Fields(s.Text()), " "),
		Attributes: map[string]string{},
	}
	if len(s.Nodes) > 0 {
		for _, a := range s.Nodes[0].Attr {
			el.Attributes[a.Key] = a.Val
		}
		el.Selector = cssPath(s.Nodes[0])
	}
	return el
}

// cssPath builds a structural selector such as "body > div:nth-of-type(2) > input"
func cssPath(n *html.Node) string {
	var parts []string
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		if cur.Data == "html" {
			break
		}
		part := cur.Data
		if cur.Data != "body" {
			if idx, total := typeIndex(cur); total > 1 {
				part = fmt.Sprintf("%s:nth-of-type(%d)", cur.Data, idx)
			}
		}
		parts = append(parts, part)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

func typeIndex(n *html.Node) (int, int) {
	if n.Parent == nil {
		return 1, 1
	}
	idx, total := 0, 0
	for c := n.Parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != n.Data {
			continue
		}
		total++
		if c == n {
			idx = total
		}
	}
	return idx, total
}

var _ interfaces.MarkupParser = (*GoqueryParser)(nil)
