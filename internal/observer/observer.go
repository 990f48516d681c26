// Package observer captures diagnostic screenshots after tests fail.
//
// Capture is best effort: errors are logged and never returned to the
// caller, so a broken capture can not replace the failure that triggered it.
package observer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/shehryarbajwa/saucedemo-e2e/internal/report"
	"github.com/shehryarbajwa/saucedemo-e2e/pkg/models"
)

const (
	// DefaultDir is where screenshots go unless SCREENSHOTS_DIR says otherwise
	DefaultDir = "results/screenshots"
	// FailedMarker is part of every failure screenshot's name
	FailedMarker = "FAILED"

	timestampLayout = "20060102_150405"
	maxNameSuffix   = 20
	captureTimeout  = 10 * time.Second
)

// Screenshotter produces an image of the current screen
type Screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// Options configure an Observer
type Options struct {
	Dir         string
	Environment string
	Browser     models.Browser
	// Enabled turns failure capture on; manual captures always work
	Enabled bool
	// Sink receives captured images when Attach is set
	Sink   report.Sink
	Attach bool
	Logger logrus.FieldLogger
	Now    func() time.Time
}

// Observer writes screenshots to disk and optionally to a reporting sink
type Observer struct {
	fs   afero.Fs
	opts Options
	log  logrus.FieldLogger
}

// New creates an observer writing to opts.Dir on fs
func New(fs afero.Fs, opts Options) *Observer {
	if opts.Dir == "" {
		opts.Dir = DefaultDir
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	return &Observer{
		fs:   fs,
		opts: opts,
		log:  opts.Logger.WithField("component", "observer"),
	}
}

// AfterPhase runs once a test phase has finished. It captures a screenshot
// only for a failed or errored test body and records it on rep.
func (o *Observer) AfterPhase(rep *models.TestReport, shooter Screenshotter) {
	if !o.opts.Enabled || rep.Phase != models.PhaseCall || !rep.Failed() {
		return
	}

	artifact, data, err := o.capture(rep.Name, FailedMarker, true, shooter)
	if err != nil {
		o.log.WithError(err).WithField("test", rep.Name).Error("❌ Failed to capture failure screenshot")
		return
	}

	rep.Screenshot = artifact
	o.log.WithField("test", rep.Name).Infof("📸 Failure screenshot saved: %s", artifact.Path)
	o.attach(rep.Name, "Test Failure Screenshot", data)
}

// Capture takes a screenshot on request, named after the test and suffix
func (o *Observer) Capture(testName, suffix string, shooter Screenshotter) (*models.ScreenshotArtifact, error) {
	if suffix == "" {
		suffix = "screenshot"
	}

	artifact, data, err := o.capture(testName, suffix, false, shooter)
	if err != nil {
		o.log.WithError(err).WithField("test", testName).Error("❌ Failed to capture screenshot")
		return nil, err
	}

	o.log.WithField("test", testName).Infof("📸 Screenshot saved: %s", artifact.Path)
	o.attach(testName, "Screenshot - "+suffix, data)
	return artifact, nil
}

// FileName builds the screenshot name for a test at time ts
func (o *Observer) FileName(testName, marker string, failure bool, ts time.Time) string {
	parts := []string{sanitize(testName), sanitize(o.opts.Environment), sanitize(string(o.opts.Browser))}
	if failure {
		parts = append([]string{marker}, parts...)
	} else {
		parts = append(parts, sanitize(marker))
	}
	parts = append(parts, ts.Format(timestampLayout))

	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "_") + ".png"
}

func (o *Observer) capture(testName, marker string, failure bool, shooter Screenshotter) (artifact *models.ScreenshotArtifact, data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			artifact, data, err = nil, nil, fmt.Errorf("screenshot capture panicked: %v", r)
		}
	}()

	if shooter == nil {
		return nil, nil, fmt.Errorf("no browser session to capture")
	}

	if err := o.fs.MkdirAll(o.opts.Dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create screenshot directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), captureTimeout)
	defer cancel()

	data, err = shooter.Screenshot(ctx)
	if err != nil {
		return nil, nil, err
	}

	now := o.opts.Now()
	path, f, err := o.create(o.FileName(testName, marker, failure, now))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create screenshot file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to write screenshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, nil, fmt.Errorf("failed to write screenshot: %w", err)
	}

	return &models.ScreenshotArtifact{
		TestName:   testName,
		CapturedAt: now,
		Path:       path,
		Size:       len(data),
	}, data, nil
}

// create opens a new file named name in the screenshot directory. Existing
// files are never overwritten: a taken name gets a _1, _2, ... suffix.
func (o *Observer) create(name string) (string, afero.File, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	var err error
	for i := 0; i <= maxNameSuffix; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}
		path := filepath.Join(o.opts.Dir, candidate)

		var f afero.File
		f, err = o.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return path, f, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", nil, err
		}
	}
	return "", nil, err
}

func (o *Observer) attach(testName, name string, data []byte) {
	if !o.opts.Attach || o.opts.Sink == nil {
		return
	}

	if err := o.opts.Sink.Attach(testName, name, "image/png", data); err != nil {
		o.log.WithError(err).Warn("Failed to attach screenshot to report")
	}
}

var replacer = strings.NewReplacer("::", "_", "/", "_", `\`, "_", " ", "_", ":", "_")

func sanitize(s string) string {
	return replacer.Replace(s)
}
