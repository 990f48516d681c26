package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shehryarbajwa/saucedemo-e2e/pkg/models"
)

// Strategy selects how a locator value is interpreted
type Strategy string

const (
	ByXPath Strategy = "xpath"
	ByCSS   Strategy = "css"
	ByID    Strategy = "id"
)

// Locator identifies an element on the page
type Locator struct {
	By    Strategy
	Value string
}

func XPath(expr string) Locator  { return Locator{By: ByXPath, Value: expr} }
func CSS(selector string) Locator { return Locator{By: ByCSS, Value: selector} }
func ID(id string) Locator        { return Locator{By: ByID, Value: id} }

func (l Locator) String() string {
	return fmt.Sprintf("%s=%s", l.By, l.Value)
}

// Driver is a live browser session. Element actions wait up to the implicit
// wait for their target; explicit waits take their own bound.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, loc Locator, timeout time.Duration) error
	WaitClickable(ctx context.Context, loc Locator, timeout time.Duration) error
	Click(ctx context.Context, loc Locator) error
	Clear(ctx context.Context, loc Locator) error
	SendKeys(ctx context.Context, loc Locator, text string) error
	Text(ctx context.Context, loc Locator) (string, error)
	Title(ctx context.Context) (string, error)
	CurrentURL(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	SetImplicitWait(d time.Duration)
	SetPageLoadTimeout(d time.Duration)
	SetWindowSize(ctx context.Context, size models.WindowSize) error
	Quit() error
}

var (
	// ErrSessionStart matches any SessionStartError
	ErrSessionStart = errors.New("browser session could not be started")
	// ErrElementTimeout matches any ElementTimeoutError
	ErrElementTimeout = errors.New("timed out waiting for element")
)

// SessionStartError names the dependency that kept a browser from starting
type SessionStartError struct {
	Browser    models.Browser
	Dependency string
	Err        error
}

func (e *SessionStartError) Error() string {
	return fmt.Sprintf("failed to start %s session: %v (check that %s is installed and reachable)",
		e.Browser, e.Err, e.Dependency)
}

func (e *SessionStartError) Unwrap() error { return e.Err }

func (e *SessionStartError) Is(target error) bool { return target == ErrSessionStart }

// ElementTimeoutError is returned when a wait exceeds its bound
type ElementTimeoutError struct {
	Locator   Locator
	Condition string
	Timeout   time.Duration
}

func (e *ElementTimeoutError) Error() string {
	return fmt.Sprintf("element %s not %s after %v", e.Locator, e.Condition, e.Timeout)
}

func (e *ElementTimeoutError) Is(target error) bool { return target == ErrElementTimeout }
