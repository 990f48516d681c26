package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/saucedemo-e2e/internal/environment"
	"github.com/shehryarbajwa/saucedemo-e2e/pkg/models"
)

func TestFacadeResolvesLazilyOnce(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "envs/dev.json", []byte(`{"timeout": 7, "window_size": {"width": 800, "height": 600}}`), 0o644))

	r := environment.NewResolver(environment.NewStore(fs, "envs")).
		WithLookupEnv(func(string) (string, bool) { return "", false })
	f := NewFacade(r, "dev", environment.Overrides{})

	require.NoError(t, f.Err())
	assert.Equal(t, "dev", f.Environment())
	assert.Equal(t, 7*time.Second, f.Timeout())
	assert.Equal(t, 800, f.WindowWidth())
	assert.Equal(t, 600, f.WindowHeight())
	assert.Equal(t, models.BrowserChrome, f.Browser())

	// The cached value survives the record changing on disk.
	require.NoError(t, afero.WriteFile(fs, "envs/dev.json", []byte(`{"timeout": 1}`), 0o644))
	assert.Equal(t, 7*time.Second, f.Timeout())
}

func TestFacadeKeepsResolutionError(t *testing.T) {
	t.Parallel()

	r := environment.NewResolver(environment.NewStore(afero.NewMemMapFs(), "envs")).
		WithLookupEnv(func(string) (string, bool) { return "", false })
	f := NewFacade(r, "staging", environment.Overrides{})

	assert.ErrorIs(t, f.Err(), environment.ErrNotFound)
	assert.Empty(t, f.BaseURL())
	assert.False(t, f.Headless())
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	f := FromConfig(models.ResolvedConfig{Username: "u", Password: "p", Headless: true})
	assert.Equal(t, "u", f.Username())
	assert.Equal(t, "p", f.Password())
	assert.True(t, f.Headless())
	assert.NoError(t, f.Err())
}
