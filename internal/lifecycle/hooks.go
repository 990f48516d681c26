// Package lifecycle owns the browser session of a test run: it resolves the
// environment, starts one browser for the whole run, sends it to the base URL
// before every test, reports outcomes and releases the browser exactly once.
package lifecycle

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/shehryarbajwa/saucedemo-e2e/internal/browser"
	"github.com/shehryarbajwa/saucedemo-e2e/internal/config"
	"github.com/shehryarbajwa/saucedemo-e2e/internal/environment"
	"github.com/shehryarbajwa/saucedemo-e2e/internal/observer"
	"github.com/shehryarbajwa/saucedemo-e2e/internal/report"
	"github.com/shehryarbajwa/saucedemo-e2e/pkg/models"
)

// T is the part of *testing.T the hooks use
type T interface {
	Name() string
	Helper()
	Failed() bool
	Skipped() bool
	Cleanup(func())
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	Logf(format string, args ...interface{})
}

// Hooks holds the single browser session of a test run
type Hooks struct {
	facade   *config.Facade
	cfg      models.ResolvedConfig
	headless bool
	driver   browser.Driver
	observer *observer.Observer
	allure   *report.AllureWriter
	sink     report.Sink
	log      logrus.FieldLogger
	now      func() time.Time

	closeOnce sync.Once
	closeErr  error
}

type options struct {
	fs        afero.Fs
	launcher  browser.Launcher
	logger    logrus.FieldLogger
	now       func() time.Time
	env       *ProcessEnv
	sink      report.Sink
	noReports bool
}

// Option customises Start
type Option func(*options)

// WithFS replaces the filesystem used for records, screenshots and reports
func WithFS(fs afero.Fs) Option { return func(o *options) { o.fs = fs } }

// WithLauncher replaces the browser launcher
func WithLauncher(l browser.Launcher) Option { return func(o *options) { o.launcher = l } }

// WithLogger replaces the logger
func WithLogger(l logrus.FieldLogger) Option { return func(o *options) { o.logger = l } }

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithProcessEnv uses env instead of reading the process environment
func WithProcessEnv(env ProcessEnv) Option { return func(o *options) { o.env = &env } }

// WithSink sends outcomes and attachments to sink instead of Allure files
func WithSink(sink report.Sink) Option { return func(o *options) { o.sink = sink } }

// Start resolves the environment and starts the run's browser session.
// Configuration and launch errors are returned before any browser work is
// left behind; the caller must abort the run.
func Start(ctx context.Context, s Settings, opts ...Option) (*Hooks, error) {
	o := options{
		fs:       afero.NewOsFs(),
		launcher: browser.Launch,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logrus.StandardLogger()
	}

	env := o.env
	if env == nil {
		loaded, err := LoadProcessEnv()
		if err != nil {
			return nil, err
		}
		env = &loaded
	}

	envDir := s.EnvironmentsDir
	if envDir == "" {
		envDir = env.EnvironmentsDir
	}
	resolver := environment.NewResolver(environment.NewStore(o.fs, envDir)).WithLookupEnv(env.LookupEnv)
	facade := config.NewFacade(resolver, s.Env, environment.Overrides{
		Browser:  s.Browser,
		Headless: s.Headless.Ptr(),
	})

	cfg, err := facade.Config()
	if err != nil {
		return nil, err
	}

	headless := cfg.Headless || env.InCI()

	provider, err := browser.ParseProvider(firstNonEmpty(s.BrowserProvider, env.BrowserProvider))
	if err != nil {
		return nil, err
	}

	log := o.logger.WithFields(logrus.Fields{
		"env":     cfg.Environment,
		"browser": cfg.Browser,
	})

	h := &Hooks{
		facade:   facade,
		cfg:      cfg,
		headless: headless,
		log:      log,
		now:      o.now,
	}

	switch {
	case o.sink != nil:
		h.sink = o.sink
	case s.AllureDir != "":
		allure, err := report.NewAllureWriter(o.fs, s.AllureDir, cfg)
		if err != nil {
			return nil, err
		}
		h.allure, h.sink = allure, allure
	}

	h.observer = observer.New(o.fs, observer.Options{
		Dir:         firstNonEmpty(s.ResultsDir, env.ScreenshotsDir),
		Environment: cfg.Environment,
		Browser:     cfg.Browser,
		Enabled:     s.ScreenshotOnFailure,
		Sink:        h.sink,
		Attach:      s.AllureAttachScreenshot,
		Logger:      o.logger,
		Now:         o.now,
	})

	log.Infof("🚀 Starting %s browser (headless: %v)", cfg.Browser, headless)

	driver, err := o.launcher(ctx, browser.LaunchOptions{
		Browser:    cfg.Browser,
		Headless:   headless,
		WindowSize: cfg.WindowSize,
		ExecPath:   env.BrowserPath,
		Provider:   provider,
		RemoteURL:  firstNonEmpty(s.RemoteURL, env.RemoteURL),
		Logger:     o.logger,
	})
	if err != nil {
		log.WithError(err).Error("❌ Failed to start browser")
		return nil, err
	}
	h.driver = driver

	driver.SetImplicitWait(cfg.ImplicitWait)
	driver.SetPageLoadTimeout(cfg.PageLoadTimeout)

	if !headless {
		if err := driver.SetWindowSize(ctx, cfg.WindowSize); err != nil {
			h.Close()
			return nil, fmt.Errorf("failed to size browser window: %w", err)
		}
	}

	return h, nil
}

// Config exposes the resolved environment to tests
func (h *Hooks) Config() *config.Facade {
	return h.facade
}

// Resolved returns the resolved configuration of the run
func (h *Hooks) Resolved() models.ResolvedConfig {
	return h.cfg
}

// Headless reports the effective headless flag, CI included
func (h *Hooks) Headless() bool {
	return h.headless
}

// Driver returns the run's browser session. Tests issue commands through it
// but must not quit it.
func (h *Hooks) Driver() browser.Driver {
	return h.driver
}

// Screenshot captures the current screen for t on request. Inside a test
// wrapped by Begin or Run the image is attached to that test's result;
// otherwise it is reported on Close under the test's name.
func (h *Hooks) Screenshot(t T, name string) (*models.ScreenshotArtifact, error) {
	return h.observer.Capture(t.Name(), name, h.driver)
}

// testRun tracks one test between Begin and its cleanup
type testRun struct {
	report  *models.TestReport
	errored bool
}

// Begin navigates to the base URL and registers the post-test hook. It
// returns the driver for the test body.
func (h *Hooks) Begin(t T) browser.Driver {
	t.Helper()
	run := h.begin(t)
	if run == nil {
		return nil
	}
	return h.driver
}

// Run wraps body like Begin and turns a panic in body into an errored test
func (h *Hooks) Run(t T, body func(d browser.Driver)) {
	t.Helper()
	run := h.begin(t)
	if run == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			run.errored = true
			t.Errorf("test panicked: %v\n%s", r, debug.Stack())
		}
	}()
	body(h.driver)
}

func (h *Hooks) begin(t T) *testRun {
	t.Helper()

	run := &testRun{report: models.NewTestReport(t.Name())}
	run.report.Start = h.now()
	_ = run.report.Transition(models.StateRunning)
	t.Cleanup(func() { h.finish(t, run) })

	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.PageLoadTimeout+time.Second)
	defer cancel()

	h.log.Debugf("🌐 Navigating to: %s", h.cfg.BaseURL)
	if err := h.driver.Navigate(ctx, h.cfg.BaseURL); err != nil {
		run.errored = true
		run.report.Message = err.Error()
		t.Fatalf("navigating to %s: %v", h.cfg.BaseURL, err)
		return nil
	}

	run.report.Phase = models.PhaseCall
	return run
}

func (h *Hooks) finish(t T, run *testRun) {
	rep := run.report
	rep.Stop = h.now()

	outcome := models.StatePassed
	switch {
	case run.errored:
		outcome = models.StateErrored
	case t.Skipped():
		outcome = models.StateSkipped
	case t.Failed():
		outcome = models.StateFailed
	}
	_ = rep.Transition(outcome)

	h.observer.AfterPhase(rep, h.driver)
	if rep.Screenshot != nil {
		t.Logf("failure screenshot: %s", rep.Screenshot.Path)
	}

	if rep.Message == "" && rep.Failed() {
		rep.Message = fmt.Sprintf("%s %s", rep.Name, outcome)
	}
	if h.sink != nil {
		if err := h.sink.Record(*rep); err != nil {
			h.log.WithError(err).Warn("Failed to record test result")
		}
	}
	_ = rep.Transition(models.StateReported)
}

// Close releases the browser session. Only the first call does any work;
// later calls return the first result.
func (h *Hooks) Close() error {
	h.closeOnce.Do(func() {
		if f, ok := h.sink.(report.Flusher); ok {
			if err := f.Flush(); err != nil {
				h.log.WithError(err).Warn("Failed to write pending report attachments")
			}
		}
		if h.allure != nil {
			if err := h.allure.WriteEnvironment(map[string]string{
				"Environment": h.cfg.Environment,
				"Base.URL":    h.cfg.BaseURL,
				"Browser":     string(h.cfg.Browser),
				"Headless":    fmt.Sprint(h.headless),
			}); err != nil {
				h.log.WithError(err).Warn("Failed to write report environment")
			}
		}

		if h.driver == nil {
			return
		}
		h.log.Infof("🔚 Closing %s browser", h.cfg.Browser)
		h.closeErr = h.driver.Quit()
	})
	return h.closeErr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
