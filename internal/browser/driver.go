// Package browser defines the browser automation capability the extraction
// session needs and a go-rod implementation of it.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrNotOpen is returned when an operation needs a page before Open
var ErrNotOpen = errors.New("browser is not open")

// Locator identifies a page element by CSS selector or XPath expression
type Locator struct {
	CSS   string
	XPath string
}

// CSS builds a CSS locator
func CSS(selector string) Locator {
	return Locator{CSS: selector}
}

// XPath builds an XPath locator
func XPath(expr string) Locator {
	return Locator{XPath: expr}
}

func (l Locator) String() string {
	if l.XPath != "" {
		return "xpath=" + l.XPath
	}
	return "css=" + l.CSS
}

// Driver is the browser capability used by the session. Methods returning a
// bool treat absence as a normal outcome; errors are real failures.
type Driver interface {
	// Open launches the browser if needed and navigates to url
	Open(ctx context.Context, url string) error
	// ClickWhenVisible waits for the element and clicks it
	ClickWhenVisible(ctx context.Context, loc Locator) error
	// TryClick clicks the element if it can be found within the default
	// timeout and reports whether it did
	TryClick(ctx context.Context, loc Locator) bool
	// InputTextWhenVisible waits for the element and types text into it
	InputTextWhenVisible(ctx context.Context, loc Locator, text string) error
	// SelectFromListByLabel picks the option with the given visible text
	SelectFromListByLabel(ctx context.Context, loc Locator, label string) error
	// WaitUntilVisible waits up to timeout for the element to be visible
	WaitUntilVisible(ctx context.Context, loc Locator, timeout time.Duration) error
	// WaitUntilNotVisible waits up to timeout for the element to disappear
	WaitUntilNotVisible(ctx context.Context, loc Locator, timeout time.Duration) error
	// WaitForLoading waits for an indicator to appear and then vanish.
	// An indicator that never shows up is not an error.
	WaitForLoading(ctx context.Context, loc Locator, timeout time.Duration)
	// ElementExists reports whether the element is present and enabled
	// within timeout
	ElementExists(ctx context.Context, loc Locator, timeout time.Duration) bool
	// HasAttribute reports whether the element carries the attribute
	HasAttribute(ctx context.Context, loc Locator, name string) (bool, error)
	// ScrollIntoView scrolls the element into the viewport
	ScrollIntoView(ctx context.Context, loc Locator) error
	// TryHide hides an overlay element if it shows up within timeout
	TryHide(ctx context.Context, loc Locator, timeout time.Duration) bool
	// ReadInnerMarkup returns the element's inner HTML
	ReadInnerMarkup(ctx context.Context, loc Locator, timeout time.Duration) (string, error)
	// Close shuts the browser down. Closing a closed driver is a no-op.
	Close() error
}
