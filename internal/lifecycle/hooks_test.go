package lifecycle

import (
	"context"
	"errors"
	"flag"
	"strings"
	"sync"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/saucedemo-e2e/internal/browser"
	"github.com/shehryarbajwa/saucedemo-e2e/internal/browser/browsertest"
	"github.com/shehryarbajwa/saucedemo-e2e/internal/environment"
	"github.com/shehryarbajwa/saucedemo-e2e/pkg/models"
)

// fakeT records what a test did instead of stopping the real test
type fakeT struct {
	name     string
	failed   bool
	skipped  bool
	fatal    bool
	cleanups []func()
	logs     []string
}

func (f *fakeT) Name() string      { return f.name }
func (f *fakeT) Helper()            {}
func (f *fakeT) Failed() bool       { return f.failed }
func (f *fakeT) Skipped() bool      { return f.skipped }
func (f *fakeT) Cleanup(fn func()) { f.cleanups = append(f.cleanups, fn) }
func (f *fakeT) Errorf(format string, args ...interface{}) {
	f.failed = true
}
func (f *fakeT) Fatalf(format string, args ...interface{}) {
	f.failed, f.fatal = true, true
}
func (f *fakeT) Logf(format string, args ...interface{}) {
	f.logs = append(f.logs, format)
}

// finish runs cleanups in reverse order like the testing package
func (f *fakeT) finish() {
	for i := len(f.cleanups) - 1; i >= 0; i-- {
		f.cleanups[i]()
	}
}

type memorySink struct {
	mu       sync.Mutex
	reports  []models.TestReport
	attached []string
}

func (s *memorySink) Attach(testName, name, mimeType string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attached = append(s.attached, testName)
	return nil
}

func (s *memorySink) Record(rep models.TestReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, rep)
	return nil
}

type fixture struct {
	fs       afero.Fs
	driver   *browsertest.Driver
	sink     *memorySink
	launched []browser.LaunchOptions
	env      ProcessEnv
}

func newFixture(t *testing.T, record string) *fixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "environments/dev.json", []byte(record), 0o644))
	require.NoError(t, afero.WriteFile(fs, "environments/prod.json", []byte(`{}`), 0o644))

	return &fixture{
		fs:     fs,
		driver: browsertest.New(),
		sink:   &memorySink{},
		env: ProcessEnv{
			ScreenshotsDir:  "results/screenshots",
			EnvironmentsDir: "environments",
		},
	}
}

func (f *fixture) options() []Option {
	logger, _ := logtest.NewNullLogger()
	return []Option{
		WithFS(f.fs),
		WithLogger(logger),
		WithProcessEnv(f.env),
		WithSink(f.sink),
		WithClock(func() time.Time { return time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC) }),
		WithLauncher(func(ctx context.Context, opts browser.LaunchOptions) (browser.Driver, error) {
			f.launched = append(f.launched, opts)
			return f.driver, nil
		}),
	}
}

func settings(env string) Settings {
	s := DefaultSettings()
	s.Env = env
	s.AllureDir = ""
	return s
}

func (f *fixture) screenshots(t *testing.T) []string {
	t.Helper()
	entries, err := afero.ReadDir(f.fs, "results/screenshots")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestStartAppliesConfiguration(t *testing.T) {
	t.Parallel()

	f := newFixture(t, `{"base_url": "https://dev.example/", "implicit_wait": 2, "page_load_timeout": 15, "window_size": {"width": 1280, "height": 800}}`)

	h, err := Start(context.Background(), settings("dev"), f.options()...)
	require.NoError(t, err)
	defer h.Close()

	require.Len(t, f.launched, 1)
	opts := f.launched[0]
	assert.Equal(t, models.BrowserChrome, opts.Browser)
	assert.False(t, opts.Headless)
	assert.Equal(t, models.WindowSize{Width: 1280, Height: 800}, opts.WindowSize)
	assert.Equal(t, browser.ProviderLocal, opts.Provider)

	assert.Equal(t, 2*time.Second, f.driver.ImplicitWait)
	assert.Equal(t, 15*time.Second, f.driver.PageLoadTimeout)
	assert.Equal(t, 1, f.driver.Count("SetWindowSize"))
	assert.Equal(t, models.WindowSize{Width: 1280, Height: 800}, f.driver.WindowSize)

	assert.Equal(t, "https://dev.example/", h.Config().BaseURL())
	assert.Equal(t, "dev", h.Resolved().Environment)
}

func TestStartHeadlessSkipsWindowSizing(t *testing.T) {
	t.Parallel()

	f := newFixture(t, `{"headless": true}`)
	h, err := Start(context.Background(), settings("dev"), f.options()...)
	require.NoError(t, err)
	defer h.Close()

	assert.True(t, h.Headless())
	assert.True(t, f.launched[0].Headless)
	assert.Zero(t, f.driver.Count("SetWindowSize"))
}

func TestStartCIForcesHeadless(t *testing.T) {
	t.Parallel()

	for _, ci := range []string{"true", "TRUE", "1", "yes"} {
		f := newFixture(t, `{"headless": false}`)
		f.env.CI = ci

		s := settings("dev")
		require.NoError(t, s.Headless.Set("false"))

		h, err := Start(context.Background(), s, f.options()...)
		require.NoError(t, err)
		assert.True(t, h.Headless(), "CI=%s", ci)
		assert.True(t, f.launched[0].Headless, "CI=%s", ci)
		assert.False(t, h.Resolved().Headless)
		h.Close()
	}
}

func TestStartOverrides(t *testing.T) {
	t.Parallel()

	f := newFixture(t, `{"browser": "chrome"}`)
	s := settings("dev")
	s.Browser = "edge"
	require.NoError(t, s.Headless.Set("true"))

	h, err := Start(context.Background(), s, f.options()...)
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, models.BrowserEdge, f.launched[0].Browser)
	assert.True(t, f.launched[0].Headless)
}

func TestStartUsesTestEnv(t *testing.T) {
	t.Parallel()

	f := newFixture(t, `{"base_url": "https://dev.example/"}`)
	f.env.TestEnv = "dev"

	h, err := Start(context.Background(), settings(""), f.options()...)
	require.NoError(t, err)
	defer h.Close()
	assert.Equal(t, "dev", h.Resolved().Environment)
}

func TestStartConfigErrorsAbortBeforeLaunch(t *testing.T) {
	t.Parallel()

	f := newFixture(t, `{"base_url": `)

	_, err := Start(context.Background(), settings("staging"), f.options()...)
	require.Error(t, err)
	assert.ErrorIs(t, err, environment.ErrNotFound)
	assert.Contains(t, err.Error(), `["dev","prod"]`)

	_, err = Start(context.Background(), settings("dev"), f.options()...)
	assert.ErrorIs(t, err, environment.ErrMalformed)

	assert.Empty(t, f.launched)
}

func TestStartLaunchFailureIsFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(t, `{}`)
	launchErr := &browser.SessionStartError{Browser: models.BrowserChrome, Dependency: "Google Chrome or Chromium", Err: errors.New("exec: not found")}
	opts := append(f.options(), WithLauncher(func(context.Context, browser.LaunchOptions) (browser.Driver, error) {
		f.launched = append(f.launched, browser.LaunchOptions{})
		return nil, launchErr
	}))

	_, err := Start(context.Background(), settings("dev"), opts...)
	require.Error(t, err)
	assert.ErrorIs(t, err, browser.ErrSessionStart)
	assert.Contains(t, err.Error(), "Google Chrome or Chromium")
	assert.Len(t, f.launched, 1)
}

func TestStartReleasesBrowserWhenSizingFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t, `{}`)
	f.driver.WindowErr = errors.New("no window")

	_, err := Start(context.Background(), settings("dev"), f.options()...)
	require.Error(t, err)
	assert.Equal(t, 1, f.driver.QuitCount())
}

func TestBeginNavigatesBeforeEachTest(t *testing.T) {
	t.Parallel()

	f := newFixture(t, `{"base_url": "https://dev.example/"}`)
	h, err := Start(context.Background(), settings("dev"), f.options()...)
	require.NoError(t, err)
	defer h.Close()

	for _, name := range []string{"TestA", "TestB", "TestC"} {
		ft := &fakeT{name: name}
		d := h.Begin(ft)
		require.NotNil(t, d)
		assert.Equal(t, "https://dev.example/", f.driver.URL)
		ft.finish()
	}

	assert.Equal(t, 3, f.driver.Count("Navigate"))
	assert.Zero(t, f.driver.QuitCount())
	require.Len(t, f.sink.reports, 3)
	for _, rep := range f.sink.reports {
		assert.Equal(t, models.StatePassed, rep.Outcome)
	}
}

func TestFailedTestProducesOneScreenshot(t *testing.T) {
	t.Parallel()

	f := newFixture(t, `{}`)
	h, err := Start(context.Background(), settings("dev"), f.options()...)
	require.NoError(t, err)
	defer h.Close()

	passing := &fakeT{name: "TestPasses"}
	h.Begin(passing)
	passing.finish()
	assert.Empty(t, f.screenshots(t))

	failing := &fakeT{name: "TestLogin/valid_user"}
	h.Begin(failing)
	failing.failed = true
	failing.finish()

	shots := f.screenshots(t)
	require.Len(t, shots, 1)
	assert.True(t, strings.Contains(shots[0], "FAILED"))
	assert.True(t, strings.Contains(shots[0], "TestLogin_valid_user"))

	require.Len(t, f.sink.reports, 2)
	rep := f.sink.reports[1]
	assert.Equal(t, models.StateFailed, rep.Outcome)
	require.NotNil(t, rep.Screenshot)
	assert.Equal(t, []string{"TestLogin/valid_user"}, f.sink.attached)
	assert.NotEmpty(t, failing.logs)
}

func TestScreenshotOnFailureCanBeDisabled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, `{}`)
	s := settings("dev")
	s.ScreenshotOnFailure = false

	h, err := Start(context.Background(), s, f.options()...)
	require.NoError(t, err)
	defer h.Close()

	ft := &fakeT{name: "TestFails"}
	h.Begin(ft)
	ft.failed = true
	ft.finish()

	assert.Empty(t, f.screenshots(t))
}

func TestRunTurnsPanicIntoErroredTest(t *testing.T) {
	t.Parallel()

	f := newFixture(t, `{}`)
	h, err := Start(context.Background(), settings("dev"), f.options()...)
	require.NoError(t, err)
	defer h.Close()

	ft := &fakeT{name: "TestPanics"}
	assert.NotPanics(t, func() {
		h.Run(ft, func(d browser.Driver) {
			panic("boom")
		})
	})
	ft.finish()

	assert.True(t, ft.failed)
	require.Len(t, f.sink.reports, 1)
	assert.Equal(t, models.StateErrored, f.sink.reports[0].Outcome)
	assert.Len(t, f.screenshots(t), 1)
}

func TestNavigationFailureIsSetupError(t *testing.T) {
	t.Parallel()

	f := newFixture(t, `{}`)
	h, err := Start(context.Background(), settings("dev"), f.options()...)
	require.NoError(t, err)
	defer h.Close()

	f.driver.NavigateErr = errors.New("net::ERR_NAME_NOT_RESOLVED")

	ft := &fakeT{name: "TestUnreachable"}
	ran := false
	h.Run(ft, func(browser.Driver) { ran = true })
	ft.finish()

	assert.False(t, ran)
	assert.True(t, ft.fatal)
	require.Len(t, f.sink.reports, 1)
	rep := f.sink.reports[0]
	assert.Equal(t, models.PhaseSetup, rep.Phase)
	assert.Equal(t, models.StateErrored, rep.Outcome)
	assert.Contains(t, rep.Message, "ERR_NAME_NOT_RESOLVED")
	assert.Empty(t, f.screenshots(t))
}

func TestSkippedTest(t *testing.T) {
	t.Parallel()

	f := newFixture(t, `{}`)
	h, err := Start(context.Background(), settings("dev"), f.options()...)
	require.NoError(t, err)
	defer h.Close()

	ft := &fakeT{name: "TestSkipped"}
	h.Begin(ft)
	ft.skipped = true
	ft.finish()

	assert.Equal(t, models.StateSkipped, f.sink.reports[0].Outcome)
}

func TestCloseQuitsExactlyOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t, `{}`)
	f.driver.QuitErr = errors.New("already gone")

	h, err := Start(context.Background(), settings("dev"), f.options()...)
	require.NoError(t, err)

	first := h.Close()
	second := h.Close()
	assert.EqualError(t, first, "already gone")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.driver.QuitCount())
}

func TestManualScreenshot(t *testing.T) {
	t.Parallel()

	f := newFixture(t, `{}`)
	h, err := Start(context.Background(), settings("dev"), f.options()...)
	require.NoError(t, err)
	defer h.Close()

	artifact, err := h.Screenshot(&fakeT{name: "TestCart"}, "checkout")
	require.NoError(t, err)
	assert.Contains(t, artifact.Path, "TestCart_dev_chrome_checkout_")
}

func TestAllureResultsWrittenOnClose(t *testing.T) {
	t.Parallel()

	f := newFixture(t, `{}`)
	s := settings("dev")
	s.AllureDir = "results/allure-results"

	h, err := Start(context.Background(), s, f.options()...)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	// WithSink takes precedence over the Allure writer.
	exists, err := afero.Exists(f.fs, "results/allure-results/environment.properties")
	require.NoError(t, err)
	assert.False(t, exists)

	logger, _ := logtest.NewNullLogger()
	h, err = Start(context.Background(), s,
		WithFS(f.fs), WithLogger(logger), WithProcessEnv(f.env),
		WithLauncher(func(context.Context, browser.LaunchOptions) (browser.Driver, error) { return browsertest.New(), nil }),
	)
	require.NoError(t, err)

	ft := &fakeT{name: "TestAllure"}
	h.Begin(ft)
	ft.failed = true
	ft.finish()
	require.NoError(t, h.Close())

	props, err := afero.ReadFile(f.fs, "results/allure-results/environment.properties")
	require.NoError(t, err)
	assert.Contains(t, string(props), "Environment=dev")

	entries, err := afero.ReadDir(f.fs, "results/allure-results")
	require.NoError(t, err)
	var results, attachments int
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), "-result.json"):
			results++
		case strings.HasSuffix(e.Name(), "-attachment.png"):
			attachments++
		}
	}
	assert.Equal(t, 1, results)
	assert.Equal(t, 1, attachments)
}

func TestRegisterFlags(t *testing.T) {
	t.Parallel()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	s := RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--env", "dev", "--browser", "firefox", "--headless", "--screenshot-on-failure=false"}))

	assert.Equal(t, "dev", s.Env)
	assert.Equal(t, "firefox", s.Browser)
	require.NotNil(t, s.Headless.Ptr())
	assert.True(t, *s.Headless.Ptr())
	assert.False(t, s.ScreenshotOnFailure)
	assert.True(t, s.AllureAttachScreenshot)

	defaults := DefaultSettings()
	assert.Nil(t, defaults.Headless.Ptr())
	assert.True(t, defaults.ScreenshotOnFailure)
}

func TestLoadProcessEnv(t *testing.T) {
	t.Setenv("TEST_ENV", "staging")
	t.Setenv("CI", "true")
	t.Setenv("SCREENSHOTS_DIR", "")

	env, err := LoadProcessEnv()
	require.NoError(t, err)
	assert.Equal(t, "staging", env.TestEnv)
	assert.True(t, env.InCI())
	assert.Equal(t, "results/screenshots", env.ScreenshotsDir)

	v, ok := env.LookupEnv("TEST_ENV")
	assert.True(t, ok)
	assert.Equal(t, "staging", v)

	assert.False(t, ProcessEnv{CI: "false"}.InCI())
	assert.False(t, ProcessEnv{}.InCI())
}

func TestManualScreenshotOutsideWrappedTestIsReportedOnClose(t *testing.T) {
	t.Parallel()

	f := newFixture(t, `{}`)
	s := settings("dev")
	s.AllureDir = "results/allure-results"

	logger, _ := logtest.NewNullLogger()
	h, err := Start(context.Background(), s,
		WithFS(f.fs), WithLogger(logger), WithProcessEnv(f.env),
		WithLauncher(func(context.Context, browser.LaunchOptions) (browser.Driver, error) { return f.driver, nil }),
	)
	require.NoError(t, err)

	_, err = h.Screenshot(&fakeT{name: "TestSetupState"}, "landing")
	require.NoError(t, err)
	require.NoError(t, h.Close())

	entries, err := afero.ReadDir(f.fs, "results/allure-results")
	require.NoError(t, err)

	var result []byte
	attachments := 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), "-result.json"):
			result, err = afero.ReadFile(f.fs, "results/allure-results/"+e.Name())
			require.NoError(t, err)
		case strings.HasSuffix(e.Name(), "-attachment.png"):
			attachments++
		}
	}
	require.NotNil(t, result)
	assert.Contains(t, string(result), `"fullName": "TestSetupState"`)
	assert.Contains(t, string(result), `"status": "unknown"`)
	assert.Equal(t, 1, attachments)
}
