package interfaces

import (
	"context"
	"time"
)

// Page is the browser-automation surface the resolver and navigator drive.
// Every call may block until the browser answers or the timeout elapses.
type Page interface {
	// URL returns the current page URL
	URL(ctx context.Context) (string, error)

	// Title returns the current page title
	Title(ctx context.Context) (string, error)

	// Content returns the full page markup
	Content(ctx context.Context) (string, error)

	// Navigate opens url and waits for the network to settle
	Navigate(ctx context.Context, url string, timeout time.Duration) error

	// Query returns the first element matching selector, or nil when none exists
	Query(ctx context.Context, selector string) (Element, error)

	// QueryAll returns all elements matching selector
	QueryAll(ctx context.Context, selector string) ([]Element, error)

	// FindByText returns elements whose own text contains text (case-insensitive)
	FindByText(ctx context.Context, text string) ([]Element, error)

	// WaitForSelector waits until selector matches a visible element
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) (Element, error)

	// WaitForNetworkIdle waits until there is no network activity
	WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error
}

// Element is a live handle to one element of a Page
type Element interface {
	TagName(ctx context.Context) (string, error)
	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, error)
	IsVisible(ctx context.Context) (bool, error)

	Click(ctx context.Context) error
	Fill(ctx context.Context, value string) error
	Press(ctx context.Context, key string) error
	ScrollIntoView(ctx context.Context) error

	// Query returns the first descendant matching selector, or nil
	Query(ctx context.Context, selector string) (Element, error)

	// QueryAll returns all descendants matching selector
	QueryAll(ctx context.Context, selector string) ([]Element, error)

	// Parent, PreviousSibling and NextSibling return nil when there is none
	Parent(ctx context.Context) (Element, error)
	PreviousSibling(ctx context.Context) (Element, error)
	NextSibling(ctx context.Context) (Element, error)
}
