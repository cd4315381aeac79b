package interfaces

import "shop_replay/domain/entities"

// MarkupParser parses captured HTML into a queryable tree
type MarkupParser interface {
	Parse(html string) (Document, error)
}

// Document is a parsed, offline markup tree
type Document interface {
	// FindAll returns the elements matching a CSS selector in document order
	FindAll(selector string) []entities.PageElement
}
