package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shehryarbajwa/saucedemo-e2e/pkg/models"
)

// Provider selects where the browser process runs
type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderRemote Provider = "remote"
	ProviderDocker Provider = "docker"
)

// ParseProvider normalises a provider name; empty means local
func ParseProvider(name string) (Provider, error) {
	switch p := Provider(name); p {
	case "":
		return ProviderLocal, nil
	case ProviderLocal, ProviderRemote, ProviderDocker:
		return p, nil
	}
	return "", fmt.Errorf("unsupported browser provider %q (want local, remote or docker)", name)
}

// LaunchOptions describe the browser session to start
type LaunchOptions struct {
	Browser    models.Browser
	Headless   bool
	WindowSize models.WindowSize
	ExecPath   string
	Provider   Provider
	RemoteURL  string
	Logger     logrus.FieldLogger
}

// Launcher starts a browser session
type Launcher func(ctx context.Context, opts LaunchOptions) (Driver, error)

// edgeBinaries are looked up on PATH when no explicit path is given
var edgeBinaries = []string{"microsoft-edge", "microsoft-edge-stable", "msedge"}

// Flag is a single browser command-line switch
type Flag struct {
	Name  string
	Value interface{}
}

// ChromeFlags returns the switches a locally launched browser is started with.
// Sandboxing and shared memory are disabled so the browser runs inside containers.
func ChromeFlags(opts LaunchOptions) []Flag {
	return []Flag{
		{Name: "headless", Value: opts.Headless},
		{Name: "no-sandbox", Value: true},
		{Name: "disable-dev-shm-usage", Value: true},
		{Name: "disable-gpu", Value: true},
		{Name: "window-size", Value: fmt.Sprintf("%d,%d", opts.WindowSize.Width, opts.WindowSize.Height)},
	}
}

// Launch starts a browser session as described by opts. It never retries.
func Launch(ctx context.Context, opts LaunchOptions) (Driver, error) {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	log := opts.Logger.WithField("browser", opts.Browser)

	switch opts.Provider {
	case ProviderRemote:
		return launchRemote(ctx, opts, log)
	case ProviderDocker:
		return launchDocker(ctx, opts, log)
	default:
		return launchLocal(ctx, opts, log)
	}
}

func launchLocal(ctx context.Context, opts LaunchOptions, log logrus.FieldLogger) (Driver, error) {
	execPath, dependency, err := resolveExecPath(opts, log)
	if err != nil {
		return nil, &SessionStartError{Browser: opts.Browser, Dependency: dependency, Err: err}
	}

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for _, f := range ChromeFlags(opts) {
		allocOpts = append(allocOpts, chromedp.Flag(f.Name, f.Value))
	}
	if execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(execPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	driver, err := startTab(ctx, allocCtx, allocCancel, log)
	if err != nil {
		return nil, &SessionStartError{Browser: opts.Browser, Dependency: dependency, Err: err}
	}

	return driver, nil
}

func launchRemote(ctx context.Context, opts LaunchOptions, log logrus.FieldLogger) (Driver, error) {
	dependency := "a DevTools endpoint at " + opts.RemoteURL
	if opts.RemoteURL == "" {
		return nil, &SessionStartError{Browser: opts.Browser, Dependency: "a DevTools endpoint", Err: errors.New("remote provider requires a remote URL")}
	}

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), opts.RemoteURL)
	driver, err := startTab(ctx, allocCtx, allocCancel, log)
	if err != nil {
		return nil, &SessionStartError{Browser: opts.Browser, Dependency: dependency, Err: err}
	}
	return driver, nil
}

func launchDocker(ctx context.Context, opts LaunchOptions, log logrus.FieldLogger) (Driver, error) {
	const dependency = "the Docker daemon (DOCKER_HOST)"

	pool, err := NewContainerPool()
	if err != nil {
		return nil, &SessionStartError{Browser: opts.Browser, Dependency: dependency, Err: err}
	}

	if err := pool.EnsureImage(ctx); err != nil {
		pool.Close()
		return nil, &SessionStartError{Browser: opts.Browser, Dependency: dependency, Err: err}
	}

	instance, err := pool.Launch(ctx, uuid.New().String())
	if err != nil {
		pool.Close()
		return nil, &SessionStartError{Browser: opts.Browser, Dependency: dependency, Err: err}
	}
	log.WithField("container", instance.ContainerID[:12]).Info("🐳 Browser container ready")

	stopContainer := func() error {
		defer pool.Close()
		stopCtx, cancel := context.WithTimeout(context.Background(), containerStopTimeout)
		defer cancel()
		return pool.Stop(stopCtx, instance.ContainerID)
	}

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), instance.ConnectURL)
	driver, err := startTab(ctx, allocCtx, allocCancel, log)
	if err != nil {
		if stopErr := stopContainer(); stopErr != nil {
			log.WithError(stopErr).Warn("Failed to stop browser container")
		}
		return nil, &SessionStartError{Browser: opts.Browser, Dependency: "the browser container at " + instance.ConnectURL, Err: err}
	}
	driver.onQuit = stopContainer

	return driver, nil
}

// startTab opens the first tab, which is what actually starts the browser.
// The tab context must not be derived from ctx or the browser would die with it.
func startTab(ctx context.Context, allocCtx context.Context, allocCancel context.CancelFunc, log logrus.FieldLogger) (*ChromeDriver, error) {
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(log.Debugf),
		chromedp.WithErrorf(log.Errorf),
	)

	stop := context.AfterFunc(ctx, tabCancel)
	err := chromedp.Run(tabCtx)
	stop()
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		tabCancel()
		allocCancel()
		return nil, err
	}

	return newChromeDriver(tabCtx, tabCancel, allocCancel, log), nil
}

func resolveExecPath(opts LaunchOptions, log logrus.FieldLogger) (path, dependency string, err error) {
	if opts.ExecPath != "" {
		if _, err := os.Stat(opts.ExecPath); err != nil {
			return "", "the browser binary at " + opts.ExecPath, err
		}
		return opts.ExecPath, "the browser binary at " + opts.ExecPath, nil
	}

	switch opts.Browser {
	case models.BrowserEdge:
		for _, name := range edgeBinaries {
			if p, err := exec.LookPath(name); err == nil {
				return p, "Microsoft Edge", nil
			}
		}
		return "", "Microsoft Edge (microsoft-edge or msedge on PATH)",
			fmt.Errorf("no Edge binary found on PATH: %w", exec.ErrNotFound)
	case models.BrowserFirefox:
		log.Warn("⚠️  Firefox has no DevTools protocol support here, falling back to Chrome")
	}

	return "", "Google Chrome or Chromium", nil
}
