// Package browsertest provides an in-memory browser.Driver for tests.
package browsertest

import (
	"context"
	"sync"
	"time"

	"github.com/shehryarbajwa/saucedemo-e2e/internal/browser"
	"github.com/shehryarbajwa/saucedemo-e2e/pkg/models"
)

// Call is one recorded driver invocation
type Call struct {
	Method  string
	Locator browser.Locator
	Arg     string
}

// Driver records every call and answers from its fields
type Driver struct {
	mu sync.Mutex

	Calls []Call

	// Visible lists locators that satisfy WaitVisible and WaitClickable
	Visible map[browser.Locator]bool
	Texts   map[browser.Locator]string

	PageTitle   string
	URL         string
	Image       []byte
	NavigateErr error
	ScreenErr   error
	WindowErr   error
	QuitErr     error

	ImplicitWait    time.Duration
	PageLoadTimeout time.Duration
	WindowSize      models.WindowSize

	quits int
}

// New returns a fake driver whose screenshots are a fixed PNG header
func New() *Driver {
	return &Driver{
		Visible: make(map[browser.Locator]bool),
		Texts:   make(map[browser.Locator]string),
		Image:   []byte("\x89PNG\r\n\x1a\nfake"),
	}
}

func (d *Driver) record(method string, loc browser.Locator, arg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls = append(d.Calls, Call{Method: method, Locator: loc, Arg: arg})
}

// Count returns how many times method was called
func (d *Driver) Count(method string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.Calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// QuitCount returns how many times Quit was called
func (d *Driver) QuitCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.quits
}

func (d *Driver) wait(loc browser.Locator, condition string, timeout time.Duration) error {
	d.mu.Lock()
	ok := d.Visible[loc]
	d.mu.Unlock()
	if !ok {
		return &browser.ElementTimeoutError{Locator: loc, Condition: condition, Timeout: timeout}
	}
	return nil
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	d.record("Navigate", browser.Locator{}, url)
	if d.NavigateErr != nil {
		return d.NavigateErr
	}
	d.mu.Lock()
	d.URL = url
	d.mu.Unlock()
	return nil
}

func (d *Driver) WaitVisible(ctx context.Context, loc browser.Locator, timeout time.Duration) error {
	d.record("WaitVisible", loc, timeout.String())
	return d.wait(loc, "visible", timeout)
}

func (d *Driver) WaitClickable(ctx context.Context, loc browser.Locator, timeout time.Duration) error {
	d.record("WaitClickable", loc, timeout.String())
	return d.wait(loc, "clickable", timeout)
}

func (d *Driver) Click(ctx context.Context, loc browser.Locator) error {
	d.record("Click", loc, "")
	return d.wait(loc, "clickable", d.ImplicitWait)
}

func (d *Driver) Clear(ctx context.Context, loc browser.Locator) error {
	d.record("Clear", loc, "")
	return d.wait(loc, "present", d.ImplicitWait)
}

func (d *Driver) SendKeys(ctx context.Context, loc browser.Locator, text string) error {
	d.record("SendKeys", loc, text)
	return d.wait(loc, "present", d.ImplicitWait)
}

func (d *Driver) Text(ctx context.Context, loc browser.Locator) (string, error) {
	d.record("Text", loc, "")
	if err := d.wait(loc, "present", d.ImplicitWait); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Texts[loc], nil
}

func (d *Driver) Title(ctx context.Context) (string, error) {
	d.record("Title", browser.Locator{}, "")
	return d.PageTitle, nil
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	d.record("CurrentURL", browser.Locator{}, "")
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.URL, nil
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	d.record("Screenshot", browser.Locator{}, "")
	if d.ScreenErr != nil {
		return nil, d.ScreenErr
	}
	return d.Image, nil
}

func (d *Driver) SetImplicitWait(wait time.Duration) {
	d.record("SetImplicitWait", browser.Locator{}, wait.String())
	d.mu.Lock()
	d.ImplicitWait = wait
	d.mu.Unlock()
}

func (d *Driver) SetPageLoadTimeout(timeout time.Duration) {
	d.record("SetPageLoadTimeout", browser.Locator{}, timeout.String())
	d.mu.Lock()
	d.PageLoadTimeout = timeout
	d.mu.Unlock()
}

func (d *Driver) SetWindowSize(ctx context.Context, size models.WindowSize) error {
	d.record("SetWindowSize", browser.Locator{}, size.String())
	if d.WindowErr != nil {
		return d.WindowErr
	}
	d.mu.Lock()
	d.WindowSize = size
	d.mu.Unlock()
	return nil
}

func (d *Driver) Quit() error {
	d.record("Quit", browser.Locator{}, "")
	d.mu.Lock()
	d.quits++
	d.mu.Unlock()
	return d.QuitErr
}
