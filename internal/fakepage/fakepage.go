// Package fakepage is an in-memory Page for tests. Selectors are not
// evaluated as CSS: a selector matches the nodes bound to it with Bind,
// or, when nothing is bound, a bare tag name or "#id".
package fakepage

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sort"
	"strings"
	"sync"
	"time"

	"shop_replay/domain/interfaces"
)

// ErrTimeout is returned by waits that never see a visible match
var ErrTimeout = errors.New("fakepage: timeout")

// Node is one element of the fake DOM
type Node struct {
	Tag    string
	Text   string
	Attrs  map[string]string
	Hidden bool

	// Interaction results
	Clicks  int
	Value   string
	Pressed []string

	// OnClick runs after every click, e.g. to reveal another node
	OnClick func()
	// VisibleErr makes IsVisible fail, simulating a stale handle
	VisibleErr error

	parent   *Node
	children []*Node
}

// El creates a node with children
func El(tag string, attrs map[string]string, children ...*Node) *Node {
	n := &Node{Tag: tag, Attrs: attrs}
	if n.Attrs == nil {
		n.Attrs = map[string]string{}
	}
	n.Append(children...)
	return n
}

// Text creates a node carrying text
func Text(tag, text string, attrs map[string]string) *Node {
	n := El(tag, attrs)
	n.Text = text
	return n
}

// Append adds children
func (n *Node) Append(children ...*Node) *Node {
	for _, c := range children {
		c.parent = n
		n.children = append(n.children, c)
	}
	return n
}

// Hide marks the node hidden and returns it
func (n *Node) Hide() *Node {
	n.Hidden = true
	return n
}

func (n *Node) visible() bool {
	for cur := n; cur != nil; cur = cur.parent {
		if cur.Hidden {
			return false
		}
	}
	return true
}

func (n *Node) descendants(tag string) []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(cur *Node) {
		for _, c := range cur.children {
			if tag == "" || strings.EqualFold(c.Tag, tag) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

func (n *Node) fullText() string {
	parts := []string{}
	if n.Text != "" {
		parts = append(parts, n.Text)
	}
	for _, c := range n.children {
		if t := c.fullText(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func (n *Node) render(b *strings.Builder) {
	b.WriteString("<" + n.Tag)
	keys := make([]string, 0, len(n.Attrs))
	for k := range n.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, ` %s="%s"`, k, html.EscapeString(n.Attrs[k]))
	}
	b.WriteString(">")
	b.WriteString(html.EscapeString(n.Text))
	for _, c := range n.children {
		c.render(b)
	}
	b.WriteString("</" + n.Tag + ">")
}

// Page is an in-memory interfaces.Page
type Page struct {
	mu sync.Mutex

	Root      *Node
	PageURL   string
	PageTitle string

	// Navigations lists every URL passed to Navigate
	Navigations []string
	// IdleWaits counts WaitForNetworkIdle calls
	IdleWaits int
	// QueryErr is returned by every query when set
	QueryErr error
	// ContentOverride replaces the rendered markup when set
	ContentOverride string
	// OnWait runs at the start of every WaitForSelector, e.g. to render a
	// node late
	OnWait func(selector string)

	bound map[string][]*Node
}

// New creates a page whose body is root
func New(url string, root *Node) *Page {
	if root == nil {
		root = El("body", nil)
	}
	return &Page{Root: root, PageURL: url, bound: map[string][]*Node{}}
}

// Bind makes selector match nodes, in order
func (p *Page) Bind(selector string, nodes ...*Node) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bound[selector] = append(p.bound[selector], nodes...)
	return p
}

func (p *Page) match(root *Node, selector string) []*Node {
	p.mu.Lock()
	nodes, ok := p.bound[selector]
	p.mu.Unlock()
	if ok {
		if root == p.Root {
			return nodes
		}
		var scoped []*Node
		for _, n := range nodes {
			for cur := n.parent; cur != nil; cur = cur.parent {
				if cur == root {
					scoped = append(scoped, n)
					break
				}
			}
		}
		return scoped
	}

	if strings.HasPrefix(selector, "#") {
		var out []*Node
		for _, n := range root.descendants("") {
			if n.Attrs["id"] == selector[1:] {
				out = append(out, n)
			}
		}
		return out
	}
	if isTag(selector) {
		return root.descendants(selector)
	}
	return nil
}

func isTag(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

func (p *Page) wrap(nodes []*Node) []interfaces.Element {
	out := make([]interfaces.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &Element{node: n, page: p})
	}
	return out
}

func (p *Page) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.PageURL, nil
}

func (p *Page) Title(ctx context.Context) (string, error) {
	return p.PageTitle, nil
}

func (p *Page) Content(ctx context.Context) (string, error) {
	if p.ContentOverride != "" {
		return p.ContentOverride, nil
	}
	var b strings.Builder
	b.WriteString("<html>")
	p.Root.render(&b)
	b.WriteString("</html>")
	return b.String(), nil
}

func (p *Page) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Navigations = append(p.Navigations, url)
	p.PageURL = url
	return nil
}

func (p *Page) Query(ctx context.Context, selector string) (interfaces.Element, error) {
	all, err := p.QueryAll(ctx, selector)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}

func (p *Page) QueryAll(ctx context.Context, selector string) ([]interfaces.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.QueryErr != nil {
		return nil, p.QueryErr
	}
	return p.wrap(p.match(p.Root, selector)), nil
}

func (p *Page) FindByText(ctx context.Context, text string) ([]interfaces.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	needle := strings.ToLower(text)
	var out []*Node
	for _, n := range p.Root.descendants("") {
		if n.Text != "" && strings.Contains(strings.ToLower(n.Text), needle) {
			out = append(out, n)
		}
	}
	return p.wrap(out), nil
}

func (p *Page) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) (interfaces.Element, error) {
	if p.OnWait != nil {
		p.OnWait(selector)
	}
	all, err := p.QueryAll(ctx, selector)
	if err != nil {
		return nil, err
	}
	for _, el := range all {
		if el.(*Element).node.visible() {
			return el, nil
		}
	}
	return nil, fmt.Errorf("waiting for %s: %w", selector, ErrTimeout)
}

func (p *Page) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.IdleWaits++
	return nil
}

// Element is a handle to one Node
type Element struct {
	node *Node
	page *Page
}

// Node returns the underlying node
func (e *Element) Node() *Node { return e.node }

func (e *Element) TagName(ctx context.Context) (string, error) {
	return strings.ToLower(e.node.Tag), nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	return e.node.fullText(), nil
}

func (e *Element) Attribute(ctx context.Context, name string) (string, error) {
	return e.node.Attrs[name], nil
}

func (e *Element) IsVisible(ctx context.Context) (bool, error) {
	if e.node.VisibleErr != nil {
		return false, e.node.VisibleErr
	}
	return e.node.visible(), nil
}

func (e *Element) Click(ctx context.Context) error {
	if !e.node.visible() {
		return fmt.Errorf("element is not visible: %w", ErrTimeout)
	}
	e.node.Clicks++
	if e.node.OnClick != nil {
		e.node.OnClick()
	}
	return nil
}

func (e *Element) Fill(ctx context.Context, value string) error {
	e.node.Value = value
	return nil
}

func (e *Element) Press(ctx context.Context, key string) error {
	e.node.Pressed = append(e.node.Pressed, key)
	return nil
}

func (e *Element) ScrollIntoView(ctx context.Context) error { return nil }

func (e *Element) Query(ctx context.Context, selector string) (interfaces.Element, error) {
	nodes := e.page.match(e.node, selector)
	if len(nodes) == 0 {
		return nil, nil
	}
	return &Element{node: nodes[0], page: e.page}, nil
}

func (e *Element) QueryAll(ctx context.Context, selector string) ([]interfaces.Element, error) {
	return e.page.wrap(e.page.match(e.node, selector)), nil
}

func (e *Element) Parent(ctx context.Context) (interfaces.Element, error) {
	if e.node.parent == nil {
		return nil, nil
	}
	return &Element{node: e.node.parent, page: e.page}, nil
}

func (e *Element) sibling(offset int) interfaces.Element {
	parent := e.node.parent
	if parent == nil {
		return nil
	}
	for i, c := range parent.children {
		if c == e.node {
			j := i + offset
			if j < 0 || j >= len(parent.children) {
				return nil
			}
			return &Element{node: parent.children[j], page: e.page}
		}
	}
	return nil
}

func (e *Element) PreviousSibling(ctx context.Context) (interfaces.Element, error) {
	return e.sibling(-1), nil
}

func (e *Element) NextSibling(ctx context.Context) (interfaces.Element, error) {
	return e.sibling(1), nil
}

var (
	_ interfaces.Page    = (*Page)(nil)
	_ interfaces.Element = (*Element)(nil)
)
