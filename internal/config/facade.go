// Package config exposes the active environment as flat accessors for
// call sites that only need one or two values.
package config

import (
	"sync"
	"time"

	"github.com/shehryarbajwa/saucedemo-e2e/internal/environment"
	"github.com/shehryarbajwa/saucedemo-e2e/pkg/models"
)

// Facade resolves its environment on first use and caches the result.
// Accessors return zero values when resolution failed; check Err.
type Facade struct {
	resolve func() (models.ResolvedConfig, error)

	once sync.Once
	cfg  models.ResolvedConfig
	err  error
}

// NewFacade creates a facade that resolves name with the given overrides
func NewFacade(r *environment.Resolver, name string, overrides environment.Overrides) *Facade {
	return &Facade{
		resolve: func() (models.ResolvedConfig, error) {
			return r.Resolve(name, overrides)
		},
	}
}

// FromConfig wraps an already resolved configuration
func FromConfig(cfg models.ResolvedConfig) *Facade {
	return &Facade{
		resolve: func() (models.ResolvedConfig, error) {
			return cfg, nil
		},
	}
}

// Config returns the resolved configuration, resolving it on first call
func (f *Facade) Config() (models.ResolvedConfig, error) {
	f.once.Do(func() {
		f.cfg, f.err = f.resolve()
	})
	return f.cfg, f.err
}

// Err returns the resolution error, if any
func (f *Facade) Err() error {
	_, err := f.Config()
	return err
}

func (f *Facade) get() models.ResolvedConfig {
	cfg, _ := f.Config()
	return cfg
}

func (f *Facade) Environment() string            { return f.get().Environment }
func (f *Facade) BaseURL() string                { return f.get().BaseURL }
func (f *Facade) Username() string               { return f.get().Username }
func (f *Facade) Password() string               { return f.get().Password }
func (f *Facade) Timeout() time.Duration         { return f.get().Timeout }
func (f *Facade) ImplicitWait() time.Duration    { return f.get().ImplicitWait }
func (f *Facade) PageLoadTimeout() time.Duration { return f.get().PageLoadTimeout }
func (f *Facade) Browser() models.Browser        { return f.get().Browser }
func (f *Facade) Headless() bool                 { return f.get().Headless }
func (f *Facade) WindowWidth() int               { return f.get().WindowSize.Width }
func (f *Facade) WindowHeight() int              { return f.get().WindowSize.Height }
