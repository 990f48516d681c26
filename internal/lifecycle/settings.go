package lifecycle

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"github.com/shehryarbajwa/saucedemo-e2e/internal/environment"
	"github.com/shehryarbajwa/saucedemo-e2e/internal/observer"
	"github.com/shehryarbajwa/saucedemo-e2e/internal/report"
)

// OptionalBool is a boolean flag that remembers whether it was set
type OptionalBool struct {
	set   bool
	value bool
}

func (b *OptionalBool) String() string {
	if b == nil || !b.set {
		return ""
	}
	return strconv.FormatBool(b.value)
}

func (b *OptionalBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	b.set, b.value = true, v
	return nil
}

// IsBoolFlag lets the flag be given without a value
func (b *OptionalBool) IsBoolFlag() bool { return true }

// Ptr returns nil when the flag was not given
func (b *OptionalBool) Ptr() *bool {
	if !b.set {
		return nil
	}
	v := b.value
	return &v
}

// Settings are the test-runner options consumed by the lifecycle hooks
type Settings struct {
	Env                    string
	Browser                string
	Headless               OptionalBool
	ScreenshotOnFailure    bool
	AllureAttachScreenshot bool
	ResultsDir             string
	AllureDir              string
	EnvironmentsDir        string
	BrowserProvider        string
	RemoteURL              string
	LogLevel               string
}

// RegisterFlags binds Settings to fs. Tests pass flag.CommandLine so that
// `go test ./e2e -args --env dev --headless` works.
func RegisterFlags(fs *flag.FlagSet) *Settings {
	s := &Settings{}
	fs.StringVar(&s.Env, "env", "", "environment to run against (overrides TEST_ENV)")
	fs.StringVar(&s.Browser, "browser", "", "browser to use (chrome/firefox/edge), overrides the environment config")
	fs.Var(&s.Headless, "headless", "run the browser headless")
	fs.BoolVar(&s.ScreenshotOnFailure, "screenshot-on-failure", true, "capture a screenshot when a test fails")
	fs.BoolVar(&s.AllureAttachScreenshot, "allure-attach-screenshot", true, "attach screenshots to the Allure results")
	fs.StringVar(&s.ResultsDir, "results-dir", "", "screenshot directory (overrides SCREENSHOTS_DIR)")
	fs.StringVar(&s.AllureDir, "alluredir", report.DefaultDir, "Allure results directory, empty to disable")
	fs.StringVar(&s.EnvironmentsDir, "environments-dir", "", "directory holding environment records")
	fs.StringVar(&s.BrowserProvider, "browser-provider", "", "where the browser runs: local, remote or docker")
	fs.StringVar(&s.RemoteURL, "remote-url", "", "DevTools websocket URL for the remote provider")
	fs.StringVar(&s.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	return s
}

// DefaultSettings are the flag defaults without touching any flag set
func DefaultSettings() Settings {
	s := RegisterFlags(flag.NewFlagSet("defaults", flag.ContinueOnError))
	return *s
}

// ProcessEnv is the part of the process environment the hooks read
type ProcessEnv struct {
	TestEnv         string `envconfig:"TEST_ENV"`
	CI              string `envconfig:"CI"`
	ScreenshotsDir  string `envconfig:"SCREENSHOTS_DIR" default:"results/screenshots"`
	EnvironmentsDir string `envconfig:"ENVIRONMENTS_DIR" default:"environments"`
	BrowserPath     string `envconfig:"BROWSER_PATH"`
	BrowserProvider string `envconfig:"BROWSER_PROVIDER"`
	RemoteURL       string `envconfig:"BROWSER_REMOTE_URL"`
}

// LoadProcessEnv reads ProcessEnv from the environment
func LoadProcessEnv() (ProcessEnv, error) {
	var env ProcessEnv
	if err := envconfig.Process("", &env); err != nil {
		return env, fmt.Errorf("failed to read process environment: %w", err)
	}
	if env.ScreenshotsDir == "" {
		env.ScreenshotsDir = observer.DefaultDir
	}
	if env.EnvironmentsDir == "" {
		env.EnvironmentsDir = environment.DefaultDir
	}
	return env, nil
}

// InCI reports whether the CI variable is truthy
func (e ProcessEnv) InCI() bool {
	v := strings.TrimSpace(strings.ToLower(e.CI))
	if v == "yes" || v == "on" {
		return true
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// LookupEnv serves TEST_ENV from the loaded ProcessEnv to the resolver
func (e ProcessEnv) LookupEnv(key string) (string, bool) {
	if key == environment.EnvVar && e.TestEnv != "" {
		return e.TestEnv, true
	}
	return "", false
}
