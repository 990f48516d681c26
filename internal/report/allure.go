// Package report writes test outcomes and attachments in the Allure 2
// results format so `allure generate` can build a dashboard from them.
package report

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/shehryarbajwa/saucedemo-e2e/pkg/models"
)

// DefaultDir is where Allure results are written unless configured otherwise
const DefaultDir = "results/allure-results"

const statusUnknown = "unknown"

// Sink receives test outcomes and their binary attachments
type Sink interface {
	Attach(testName, name, mimeType string, data []byte) error
	Record(rep models.TestReport) error
}

// Flusher is a Sink that can write attachments no Record call picked up
type Flusher interface {
	Flush() error
}

type allureAttachment struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Type   string `json:"type"`
}

type allureLabel struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type allureStatusDetails struct {
	Message string `json:"message,omitempty"`
}

type allureResult struct {
	UUID          string               `json:"uuid"`
	HistoryID     string               `json:"historyId"`
	Name          string               `json:"name"`
	FullName      string               `json:"fullName"`
	Status        string               `json:"status"`
	Stage         string               `json:"stage"`
	StatusDetails *allureStatusDetails `json:"statusDetails,omitempty"`
	Start         int64                `json:"start"`
	Stop          int64                `json:"stop"`
	Attachments   []allureAttachment   `json:"attachments"`
	Labels        []allureLabel        `json:"labels"`
}

// AllureWriter is a Sink that writes Allure result files
type AllureWriter struct {
	fs     afero.Fs
	dir    string
	labels []allureLabel

	mu      sync.Mutex
	pending map[string][]allureAttachment
}

// NewAllureWriter creates the results directory and labels every result
// with the environment and browser of cfg
func NewAllureWriter(fs afero.Fs, dir string, cfg models.ResolvedConfig) (*AllureWriter, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create allure results directory: %w", err)
	}

	return &AllureWriter{
		fs:  fs,
		dir: dir,
		labels: []allureLabel{
			{Name: "framework", Value: "go-test"},
			{Name: "language", Value: "go"},
			{Name: "tag", Value: cfg.Environment},
			{Name: "tag", Value: string(cfg.Browser)},
		},
		pending: make(map[string][]allureAttachment),
	}, nil
}

// Dir returns the results directory
func (w *AllureWriter) Dir() string {
	return w.dir
}

// Attach stores data as an attachment of the named test's next result
func (w *AllureWriter) Attach(testName, name, mimeType string, data []byte) error {
	source := uuid.New().String() + "-attachment" + extensionFor(mimeType)
	if err := afero.WriteFile(w.fs, filepath.Join(w.dir, source), data, 0644); err != nil {
		return fmt.Errorf("failed to write attachment %q: %w", name, err)
	}

	w.mu.Lock()
	w.pending[testName] = append(w.pending[testName], allureAttachment{
		Name:   name,
		Source: source,
		Type:   mimeType,
	})
	w.mu.Unlock()

	return nil
}

// Record writes the result file for rep, including any pending attachments
func (w *AllureWriter) Record(rep models.TestReport) error {
	w.mu.Lock()
	attachments := w.pending[rep.Name]
	delete(w.pending, rep.Name)
	w.mu.Unlock()

	if attachments == nil {
		attachments = []allureAttachment{}
	}

	suite, name := splitTestName(rep.Name)
	labels := append([]allureLabel{{Name: "suite", Value: suite}}, w.labels...)

	result := allureResult{
		UUID:        uuid.New().String(),
		HistoryID:   uuid.NewSHA1(uuid.NameSpaceURL, []byte(rep.Name)).String(),
		Name:        name,
		FullName:    rep.Name,
		Status:      allureStatus(rep.Outcome),
		Stage:       "finished",
		Start:       millis(rep.Start),
		Stop:        millis(rep.Stop),
		Attachments: attachments,
		Labels:      labels,
	}
	if rep.Message != "" {
		result.StatusDetails = &allureStatusDetails{Message: rep.Message}
	}

	return w.writeResult(result)
}

// Flush writes a result for every test that still has attachments but was
// never recorded, such as a manual screenshot taken outside a wrapped test.
// Those results have the "unknown" status.
func (w *AllureWriter) Flush() error {
	w.mu.Lock()
	pending := w.pending
	w.pending = make(map[string][]allureAttachment)
	w.mu.Unlock()

	names := make([]string, 0, len(pending))
	for name := range pending {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, full := range names {
		suite, name := splitTestName(full)
		err := w.writeResult(allureResult{
			UUID:        uuid.New().String(),
			HistoryID:   uuid.NewSHA1(uuid.NameSpaceURL, []byte(full)).String(),
			Name:        name,
			FullName:    full,
			Status:      statusUnknown,
			Stage:       "finished",
			Attachments: pending[full],
			Labels:      append([]allureLabel{{Name: "suite", Value: suite}}, w.labels...),
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *AllureWriter) writeResult(result allureResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode allure result: %w", err)
	}

	path := filepath.Join(w.dir, result.UUID+"-result.json")
	if err := afero.WriteFile(w.fs, path, data, 0644); err != nil {
		return fmt.Errorf("failed to write allure result: %w", err)
	}
	return nil
}

// WriteEnvironment writes environment.properties shown on the report overview
func (w *AllureWriter) WriteEnvironment(props map[string]string) error {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, props[k])
	}

	path := filepath.Join(w.dir, "environment.properties")
	if err := afero.WriteFile(w.fs, path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write allure environment: %w", err)
	}
	return nil
}

func allureStatus(outcome models.TestState) string {
	switch outcome {
	case models.StatePassed:
		return "passed"
	case models.StateFailed:
		return "failed"
	case models.StateSkipped:
		return "skipped"
	default:
		return "broken"
	}
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "text/plain":
		return ".txt"
	case "text/html":
		return ".html"
	case "application/json":
		return ".json"
	}
	return ".bin"
}

// splitTestName separates "TestLogin/valid_user" into suite and case names
func splitTestName(full string) (suite, name string) {
	if i := strings.Index(full, "/"); i >= 0 {
		return full[:i], full[i+1:]
	}
	return full, full
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
