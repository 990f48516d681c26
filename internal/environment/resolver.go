package environment

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/shehryarbajwa/saucedemo-e2e/pkg/models"
)

// EnvVar selects the environment when the caller does not name one
const EnvVar = "TEST_ENV"

// Overrides are command-line values that replace record fields after defaulting
type Overrides struct {
	Browser  string
	Headless *bool
}

// Resolver turns a named record into a ResolvedConfig
type Resolver struct {
	store     *Store
	lookupEnv func(string) (string, bool)
}

// NewResolver creates a resolver reading names from the process environment
func NewResolver(store *Store) *Resolver {
	return &Resolver{
		store:     store,
		lookupEnv: os.LookupEnv,
	}
}

// WithLookupEnv replaces the environment lookup, mainly for tests
func (r *Resolver) WithLookupEnv(lookup func(string) (string, bool)) *Resolver {
	r.lookupEnv = lookup
	return r
}

// Store returns the underlying record store
func (r *Resolver) Store() *Store {
	return r.store
}

// EnvironmentName applies the name precedence: explicit, then TEST_ENV, then prod
func (r *Resolver) EnvironmentName(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if v, ok := r.lookupEnv(EnvVar); ok && v != "" {
		return v
	}
	return models.DefaultEnvironment
}

// Resolve loads, defaults and overrides the named environment
func (r *Resolver) Resolve(name string, overrides Overrides) (models.ResolvedConfig, error) {
	name = r.EnvironmentName(name)

	data, path, err := r.store.Load(name)
	if err != nil {
		return models.ResolvedConfig{}, err
	}

	record, err := decodeRecord(data, path)
	if err != nil {
		return models.ResolvedConfig{}, &MalformedError{Name: name, Path: path, Err: err}
	}

	cfg, err := applyDefaults(name, record)
	if err != nil {
		return models.ResolvedConfig{}, &MalformedError{Name: name, Path: path, Err: err}
	}

	if overrides.Browser != "" {
		b, err := models.ParseBrowser(overrides.Browser)
		if err != nil {
			return models.ResolvedConfig{}, fmt.Errorf("invalid browser override: %w", err)
		}
		cfg.Browser = b
	}
	if overrides.Headless != nil {
		cfg.Headless = *overrides.Headless
	}

	return cfg, nil
}

func decodeRecord(data []byte, path string) (models.EnvironmentRecord, error) {
	var record models.EnvironmentRecord

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if len(bytes.TrimSpace(data)) == 0 {
			return record, nil
		}
		if err := yaml.Unmarshal(data, &record); err != nil {
			return record, err
		}
	default:
		if err := json.Unmarshal(data, &record); err != nil {
			return record, err
		}
	}

	return record, nil
}

func applyDefaults(name string, rec models.EnvironmentRecord) (models.ResolvedConfig, error) {
	cfg := models.ResolvedConfig{
		Environment:     name,
		BaseURL:         models.DefaultBaseURL,
		Username:        models.DefaultUsername,
		Password:        models.DefaultPassword,
		Timeout:         models.DefaultTimeout,
		ImplicitWait:    models.DefaultImplicitWait,
		PageLoadTimeout: models.DefaultPageLoadTimeout,
		Browser:         models.DefaultBrowser,
		WindowSize: models.WindowSize{
			Width:  models.DefaultWindowWidth,
			Height: models.DefaultWindowHeight,
		},
	}

	if rec.Environment != nil && *rec.Environment != "" {
		cfg.Environment = *rec.Environment
	}
	if rec.BaseURL != nil {
		cfg.BaseURL = *rec.BaseURL
	}
	if rec.Username != nil {
		cfg.Username = *rec.Username
	}
	if rec.Password != nil {
		cfg.Password = *rec.Password
	}
	if rec.Headless != nil {
		cfg.Headless = *rec.Headless
	}
	if rec.Browser != nil {
		b, err := models.ParseBrowser(*rec.Browser)
		if err != nil {
			return cfg, err
		}
		cfg.Browser = b
	}

	var err error
	if cfg.Timeout, err = seconds("timeout", rec.Timeout, cfg.Timeout); err != nil {
		return cfg, err
	}
	if cfg.ImplicitWait, err = seconds("implicit_wait", rec.ImplicitWait, cfg.ImplicitWait); err != nil {
		return cfg, err
	}
	if cfg.PageLoadTimeout, err = seconds("page_load_timeout", rec.PageLoadTimeout, cfg.PageLoadTimeout); err != nil {
		return cfg, err
	}

	if ws := rec.WindowSize; ws != nil {
		if ws.Width != nil {
			cfg.WindowSize.Width = *ws.Width
		}
		if ws.Height != nil {
			cfg.WindowSize.Height = *ws.Height
		}
		if cfg.WindowSize.Width <= 0 || cfg.WindowSize.Height <= 0 {
			return cfg, fmt.Errorf("window_size must be positive, got %s", cfg.WindowSize)
		}
	}

	return cfg, nil
}

// maxSeconds bounds the seconds a time.Duration can hold
const maxSeconds = float64(math.MaxInt64) / float64(time.Second)

func seconds(field string, v *float64, def time.Duration) (time.Duration, error) {
	if v == nil {
		return def, nil
	}
	switch {
	case math.IsNaN(*v) || math.IsInf(*v, 0):
		return 0, fmt.Errorf("%s must be a finite number of seconds, got %v", field, *v)
	case *v < 0:
		return 0, fmt.Errorf("%s must not be negative, got %v", field, *v)
	case *v >= maxSeconds:
		return 0, fmt.Errorf("%s is out of range, got %v", field, *v)
	}
	return time.Duration(*v * float64(time.Second)), nil
}
