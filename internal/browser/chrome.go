package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/shehryarbajwa/saucedemo-e2e/pkg/models"
)

// ChromeDriver drives a Chromium-based browser over the DevTools protocol
type ChromeDriver struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	onQuit      func() error
	log         logrus.FieldLogger

	mu              sync.RWMutex
	implicitWait    time.Duration
	pageLoadTimeout time.Duration

	quitOnce sync.Once
	quitErr  error
}

func newChromeDriver(ctx context.Context, cancel, allocCancel context.CancelFunc, log logrus.FieldLogger) *ChromeDriver {
	return &ChromeDriver{
		ctx:             ctx,
		cancel:          cancel,
		allocCancel:     allocCancel,
		log:             log,
		implicitWait:    models.DefaultImplicitWait,
		pageLoadTimeout: models.DefaultPageLoadTimeout,
	}
}

func (d *ChromeDriver) SetImplicitWait(wait time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.implicitWait = wait
}

func (d *ChromeDriver) SetPageLoadTimeout(timeout time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pageLoadTimeout = timeout
}

func (d *ChromeDriver) waits() (implicit, pageLoad time.Duration) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.implicitWait, d.pageLoadTimeout
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx
func (d *ChromeDriver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(d.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	return runError(ctx.Err(), err)
}

// runError prefers the caller's context error over whatever the aborted
// run reported
func runError(callerErr, err error) error {
	if err != nil && callerErr != nil {
		return callerErr
	}
	return err
}

func (d *ChromeDriver) element(ctx context.Context, loc Locator, timeout time.Duration, condition string, actions ...chromedp.Action) error {
	err := d.run(ctx, timeout, actions...)
	return elementError(ctx.Err(), err, loc, condition, timeout)
}

// elementError turns the driver's own deadline into an ElementTimeoutError.
// A deadline or cancellation of the caller's context stays as it is.
func elementError(callerErr, err error, loc Locator, condition string, timeout time.Duration) error {
	switch {
	case err == nil:
		return nil
	case callerErr == nil && errors.Is(err, context.DeadlineExceeded):
		return &ElementTimeoutError{Locator: loc, Condition: condition, Timeout: timeout}
	default:
		return fmt.Errorf("%s %s: %w", condition, loc, err)
	}
}

func (d *ChromeDriver) Navigate(ctx context.Context, url string) error {
	_, pageLoad := d.waits()
	if err := d.run(ctx, pageLoad, chromedp.Navigate(url)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("page load of %s exceeded %v: %w", url, pageLoad, err)
		}
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (d *ChromeDriver) WaitVisible(ctx context.Context, loc Locator, timeout time.Duration) error {
	sel, opt := query(loc)
	return d.element(ctx, loc, timeout, "visible", chromedp.WaitVisible(sel, opt))
}

func (d *ChromeDriver) WaitClickable(ctx context.Context, loc Locator, timeout time.Duration) error {
	sel, opt := query(loc)
	return d.element(ctx, loc, timeout, "clickable",
		chromedp.WaitVisible(sel, opt),
		chromedp.WaitEnabled(sel, opt),
	)
}

func (d *ChromeDriver) Click(ctx context.Context, loc Locator) error {
	implicit, _ := d.waits()
	sel, opt := query(loc)
	return d.element(ctx, loc, implicit, "clickable", chromedp.Click(sel, opt))
}

func (d *ChromeDriver) Clear(ctx context.Context, loc Locator) error {
	implicit, _ := d.waits()
	sel, opt := query(loc)
	return d.element(ctx, loc, implicit, "present", chromedp.Clear(sel, opt))
}

func (d *ChromeDriver) SendKeys(ctx context.Context, loc Locator, text string) error {
	implicit, _ := d.waits()
	sel, opt := query(loc)
	return d.element(ctx, loc, implicit, "present", chromedp.SendKeys(sel, text, opt))
}

func (d *ChromeDriver) Text(ctx context.Context, loc Locator) (string, error) {
	implicit, _ := d.waits()
	sel, opt := query(loc)
	var text string
	if err := d.element(ctx, loc, implicit, "present", chromedp.Text(sel, &text, opt)); err != nil {
		return "", err
	}
	return text, nil
}

func (d *ChromeDriver) Title(ctx context.Context) (string, error) {
	implicit, _ := d.waits()
	var title string
	if err := d.run(ctx, implicit, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("failed to read title: %w", err)
	}
	return title, nil
}

func (d *ChromeDriver) CurrentURL(ctx context.Context) (string, error) {
	implicit, _ := d.waits()
	var url string
	if err := d.run(ctx, implicit, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return url, nil
}

func (d *ChromeDriver) Screenshot(ctx context.Context) ([]byte, error) {
	_, pageLoad := d.waits()
	var buf []byte
	if err := d.run(ctx, pageLoad, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

func (d *ChromeDriver) SetWindowSize(ctx context.Context, size models.WindowSize) error {
	implicit, _ := d.waits()
	err := d.run(ctx, implicit, chromedp.ActionFunc(func(ctx context.Context) error {
		windowID, _, err := cdpbrowser.GetWindowForTarget().Do(ctx)
		if err != nil {
			return err
		}
		return cdpbrowser.SetWindowBounds(windowID, &cdpbrowser.Bounds{
			Width:       int64(size.Width),
			Height:      int64(size.Height),
			WindowState: cdpbrowser.WindowStateNormal,
		}).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("failed to set window size to %s: %w", size, err)
	}
	return nil
}

// Quit closes the browser. Only the first call does any work.
func (d *ChromeDriver) Quit() error {
	d.quitOnce.Do(func() {
		if err := chromedp.Cancel(d.ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.quitErr = fmt.Errorf("failed to close browser: %w", err)
		}
		d.cancel()
		d.allocCancel()
		if d.onQuit != nil {
			if err := d.onQuit(); err != nil && d.quitErr == nil {
				d.quitErr = err
			}
		}
		d.log.Debug("Browser closed")
	})
	return d.quitErr
}

func query(loc Locator) (string, chromedp.QueryOption) {
	switch loc.By {
	case ByID:
		return loc.Value, chromedp.ByID
	case ByCSS:
		return loc.Value, chromedp.ByQuery
	default:
		return loc.Value, chromedp.BySearch
	}
}
