package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"
)

var _ Driver = (*RodDriver)(nil)

// RodOptions configures the rod driver
type RodOptions struct {
	Headless       bool
	Bin            string
	ElementTimeout time.Duration
}

// RodDriver drives Chromium through go-rod
type RodDriver struct {
	opts    RodOptions
	log     logrus.FieldLogger
	browser *rod.Browser
	page    *rod.Page
}

// NewRodDriver creates a driver. The browser is launched on the first Open.
func NewRodDriver(opts RodOptions, log logrus.FieldLogger) *RodDriver {
	if opts.ElementTimeout <= 0 {
		opts.ElementTimeout = 10 * time.Second
	}
	return &RodDriver{opts: opts, log: log}
}

// initBrowser launches the browser once per session
func (d *RodDriver) initBrowser() error {
	if d.browser != nil {
		return nil
	}

	path := d.opts.Bin
	if path == "" {
		path, _ = launcher.LookPath()
	}

	u, err := launcher.New().
		Bin(path).
		Headless(d.opts.Headless).
		Set("window-size", "1920,1080").
		Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}
	d.browser = browser

	return nil
}

// Open navigates to url in a fresh page
func (d *RodDriver) Open(ctx context.Context, url string) error {
	if err := d.initBrowser(); err != nil {
		return err
	}

	d.log.WithField("url", url).Info("Opening browser")

	page, err := d.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("failed to load %s: %w", url, err)
	}
	d.page = page

	return nil
}

// element resolves the locator on the current page within timeout
func (d *RodDriver) element(ctx context.Context, loc Locator, timeout time.Duration) (*rod.Element, error) {
	if d.page == nil {
		return nil, ErrNotOpen
	}
	if timeout <= 0 {
		timeout = d.opts.ElementTimeout
	}

	page := d.page.Context(ctx).Timeout(timeout)

	var (
		el  *rod.Element
		err error
	)
	if loc.XPath != "" {
		el, err = page.ElementX(loc.XPath)
	} else {
		el, err = page.Element(loc.CSS)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", loc, err)
	}

	return el, nil
}

func (d *RodDriver) visible(ctx context.Context, loc Locator, timeout time.Duration) (*rod.Element, error) {
	el, err := d.element(ctx, loc, timeout)
	if err != nil {
		return nil, err
	}
	if err := el.WaitVisible(); err != nil {
		return nil, fmt.Errorf("failed waiting for %s to be visible: %w", loc, err)
	}
	return el, nil
}

// ClickWhenVisible waits for the element and clicks it
func (d *RodDriver) ClickWhenVisible(ctx context.Context, loc Locator) error {
	el, err := d.visible(ctx, loc, 0)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to click %s: %w", loc, err)
	}
	return nil
}

// TryClick clicks the element when present
func (d *RodDriver) TryClick(ctx context.Context, loc Locator) bool {
	el, err := d.element(ctx, loc, 0)
	if err != nil {
		d.log.WithField("locator", loc.String()).Debug("Element not clickable")
		return false
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		d.log.WithError(err).WithField("locator", loc.String()).Debug("Click failed")
		return false
	}
	return true
}

// InputTextWhenVisible waits for the element and types text
func (d *RodDriver) InputTextWhenVisible(ctx context.Context, loc Locator, text string) error {
	el, err := d.visible(ctx, loc, 0)
	if err != nil {
		return err
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("failed to input text into %s: %w", loc, err)
	}
	return nil
}

// SelectFromListByLabel selects the option whose text matches label
func (d *RodDriver) SelectFromListByLabel(ctx context.Context, loc Locator, label string) error {
	el, err := d.visible(ctx, loc, 0)
	if err != nil {
		return err
	}
	if err := el.Select([]string{label}, true, rod.SelectorTypeText); err != nil {
		return fmt.Errorf("failed to select %q in %s: %w", label, loc, err)
	}
	return nil
}

// WaitUntilVisible waits for the element to be visible
func (d *RodDriver) WaitUntilVisible(ctx context.Context, loc Locator, timeout time.Duration) error {
	_, err := d.visible(ctx, loc, timeout)
	return err
}

// WaitUntilNotVisible waits for the element to be hidden or removed
func (d *RodDriver) WaitUntilNotVisible(ctx context.Context, loc Locator, timeout time.Duration) error {
	el, err := d.element(ctx, loc, timeout)
	if err != nil {
		// Nothing to wait for
		return nil
	}
	if err := el.WaitInvisible(); err != nil {
		return fmt.Errorf("failed waiting for %s to disappear: %w", loc, err)
	}
	return nil
}

// WaitForLoading waits for a loading indicator to come and go
func (d *RodDriver) WaitForLoading(ctx context.Context, loc Locator, timeout time.Duration) {
	if err := d.WaitUntilVisible(ctx, loc, timeout); err != nil {
		return
	}
	if err := d.WaitUntilNotVisible(ctx, loc, d.opts.ElementTimeout); err != nil {
		d.log.WithError(err).Debug("Loading indicator still visible")
	}
}

// ElementExists reports whether the element is present and enabled
func (d *RodDriver) ElementExists(ctx context.Context, loc Locator, timeout time.Duration) bool {
	el, err := d.element(ctx, loc, timeout)
	if err != nil {
		return false
	}
	return el.WaitEnabled() == nil
}

// HasAttribute reports whether the element carries the named attribute
func (d *RodDriver) HasAttribute(ctx context.Context, loc Locator, name string) (bool, error) {
	el, err := d.element(ctx, loc, 0)
	if err != nil {
		return false, err
	}
	value, err := el.Attribute(name)
	if err != nil {
		return false, fmt.Errorf("failed to read attribute %s of %s: %w", name, loc, err)
	}
	return value != nil, nil
}

// ScrollIntoView scrolls the element into the viewport
func (d *RodDriver) ScrollIntoView(ctx context.Context, loc Locator) error {
	el, err := d.element(ctx, loc, 0)
	if err != nil {
		return err
	}
	if err := el.ScrollIntoView(); err != nil {
		return fmt.Errorf("failed to scroll to %s: %w", loc, err)
	}
	return nil
}

// TryHide hides the element if it appears within timeout
func (d *RodDriver) TryHide(ctx context.Context, loc Locator, timeout time.Duration) bool {
	el, err := d.element(ctx, loc, timeout)
	if err != nil {
		return false
	}
	if _, err := el.Eval(`() => { this.hidden = true }`); err != nil {
		d.log.WithError(err).WithField("locator", loc.String()).Debug("Failed to hide element")
		return false
	}
	return true
}

// ReadInnerMarkup returns the inner HTML of the element once visible
func (d *RodDriver) ReadInnerMarkup(ctx context.Context, loc Locator, timeout time.Duration) (string, error) {
	el, err := d.visible(ctx, loc, timeout)
	if err != nil {
		return "", err
	}
	inner, err := el.Property("innerHTML")
	if err != nil {
		return "", fmt.Errorf("failed to read markup of %s: %w", loc, err)
	}
	return inner.Str(), nil
}

// Close closes the browser and forgets the page
func (d *RodDriver) Close() error {
	if d.browser == nil {
		return nil
	}

	d.log.Info("Closing browser")

	err := d.browser.Close()
	d.browser = nil
	d.page = nil
	if err != nil {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	return nil
}
