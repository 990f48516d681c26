// Package pages holds page objects for the site under test. Page objects
// issue commands through the run's browser.Driver and never own it.
package pages

import (
	"context"
	"time"

	"github.com/shehryarbajwa/saucedemo-e2e/internal/browser"
)

// DefaultWait bounds every wait a page object performs
const DefaultWait = 10 * time.Second

// BasePage carries the driver and the explicit wait shared by all pages
type BasePage struct {
	driver browser.Driver
	wait   time.Duration
}

// NewBasePage wraps d. A non-positive wait uses DefaultWait.
func NewBasePage(d browser.Driver, wait time.Duration) BasePage {
	if wait <= 0 {
		wait = DefaultWait
	}
	return BasePage{driver: d, wait: wait}
}

// Driver returns the underlying browser session
func (p BasePage) Driver() browser.Driver {
	return p.driver
}

// Find waits until loc is visible
func (p BasePage) Find(ctx context.Context, loc browser.Locator) error {
	return p.driver.WaitVisible(ctx, loc, p.wait)
}

// Click waits until loc is clickable and clicks it
func (p BasePage) Click(ctx context.Context, loc browser.Locator) error {
	if err := p.driver.WaitClickable(ctx, loc, p.wait); err != nil {
		return err
	}
	return p.driver.Click(ctx, loc)
}

// EnterText replaces the content of the input at loc with text
func (p BasePage) EnterText(ctx context.Context, loc browser.Locator, text string) error {
	if err := p.Find(ctx, loc); err != nil {
		return err
	}
	if err := p.driver.Clear(ctx, loc); err != nil {
		return err
	}
	return p.driver.SendKeys(ctx, loc, text)
}

// IsVisible reports whether loc becomes visible within the wait. Any wait
// failure is a false answer, not an error.
func (p BasePage) IsVisible(ctx context.Context, loc browser.Locator) bool {
	return p.Find(ctx, loc) == nil
}

// Text returns the visible text of loc
func (p BasePage) Text(ctx context.Context, loc browser.Locator) (string, error) {
	if err := p.Find(ctx, loc); err != nil {
		return "", err
	}
	return p.driver.Text(ctx, loc)
}

// Title returns the document title
func (p BasePage) Title(ctx context.Context) (string, error) {
	return p.driver.Title(ctx)
}

// CurrentURL returns the address of the current page
func (p BasePage) CurrentURL(ctx context.Context) (string, error) {
	return p.driver.CurrentURL(ctx)
}
