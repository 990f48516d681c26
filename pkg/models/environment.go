package models

import (
	"fmt"
	"strings"
	"time"
)

// Browser identifies the browser a session is launched with
type Browser string

const (
	BrowserChrome  Browser = "chrome"
	BrowserFirefox Browser = "firefox"
	BrowserEdge    Browser = "edge"
)

// ParseBrowser normalises a browser name. Unknown names are rejected.
func ParseBrowser(name string) (Browser, error) {
	b := Browser(strings.ToLower(strings.TrimSpace(name)))
	switch b {
	case BrowserChrome, BrowserFirefox, BrowserEdge:
		return b, nil
	}
	return "", fmt.Errorf("unsupported browser %q (want chrome, firefox or edge)", name)
}

// Defaults applied to every field an environment record leaves out.
const (
	DefaultEnvironment     = "prod"
	DefaultBaseURL         = "https://www.saucedemo.com/"
	DefaultUsername        = "standard_user"
	DefaultPassword        = "secret_sauce"
	DefaultTimeout         = 10 * time.Second
	DefaultImplicitWait    = 3 * time.Second
	DefaultPageLoadTimeout = 20 * time.Second
	DefaultBrowser         = BrowserChrome
	DefaultWindowWidth     = 1920
	DefaultWindowHeight    = 1080
)

// WindowSizeRecord is the optional window_size block of a record
type WindowSizeRecord struct {
	Width  *int `json:"width,omitempty" yaml:"width,omitempty"`
	Height *int `json:"height,omitempty" yaml:"height,omitempty"`
}

// EnvironmentRecord is a named environment as stored on disk.
// Nil fields were absent from the record and take their defaults.
type EnvironmentRecord struct {
	Environment     *string           `json:"environment,omitempty" yaml:"environment,omitempty"`
	BaseURL         *string           `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Username        *string           `json:"username,omitempty" yaml:"username,omitempty"`
	Password        *string           `json:"password,omitempty" yaml:"password,omitempty"`
	Timeout         *float64          `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	ImplicitWait    *float64          `json:"implicit_wait,omitempty" yaml:"implicit_wait,omitempty"`
	PageLoadTimeout *float64          `json:"page_load_timeout,omitempty" yaml:"page_load_timeout,omitempty"`
	Browser         *string           `json:"browser,omitempty" yaml:"browser,omitempty"`
	Headless        *bool             `json:"headless,omitempty" yaml:"headless,omitempty"`
	WindowSize      *WindowSizeRecord `json:"window_size,omitempty" yaml:"window_size,omitempty"`
}

// WindowSize is a browser window in pixels
type WindowSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (w WindowSize) String() string {
	return fmt.Sprintf("%dx%d", w.Width, w.Height)
}

// ResolvedConfig is a fully defaulted environment with command-line
// overrides applied. It is a value type; copies never alias.
type ResolvedConfig struct {
	Environment     string        `json:"environment"`
	BaseURL         string        `json:"baseUrl"`
	Username        string        `json:"username"`
	Password        string        `json:"-"`
	Timeout         time.Duration `json:"timeout"`
	ImplicitWait    time.Duration `json:"implicitWait"`
	PageLoadTimeout time.Duration `json:"pageLoadTimeout"`
	Browser         Browser       `json:"browser"`
	Headless        bool          `json:"headless"`
	WindowSize      WindowSize    `json:"windowSize"`
}
