package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/saucedemo-e2e/internal/browser"
)

type fakeM struct {
	code int
	runs int
	run  func()
}

func (m *fakeM) Run() int {
	m.runs++
	if m.run != nil {
		m.run()
	}
	return m.code
}

func TestMainRunsTestsAroundOneSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t, `{"base_url": "https://dev.example/"}`)
	s := settings("dev")

	var bound *Hooks
	m := &fakeM{code: 3, run: func() {
		require.NotNil(t, bound)
		assert.Zero(t, f.driver.QuitCount())
	}}

	code := Main(m, &s, func(h *Hooks) { bound = h }, f.options()...)

	assert.Equal(t, 3, code)
	assert.Equal(t, 1, m.runs)
	assert.Equal(t, "https://dev.example/", bound.Config().BaseURL())
	assert.Equal(t, 1, f.driver.QuitCount())
}

func TestMainAbortsOnConfigError(t *testing.T) {
	t.Parallel()

	f := newFixture(t, `{}`)
	s := settings("qa")
	m := &fakeM{}

	code := Main(m, &s, nil, f.options()...)

	assert.Equal(t, 1, code)
	assert.Zero(t, m.runs)
	assert.Empty(t, f.launched)
}

func TestMainAbortsOnLaunchError(t *testing.T) {
	t.Parallel()

	f := newFixture(t, `{}`)
	s := settings("dev")
	m := &fakeM{}

	opts := append(f.options(), WithLauncher(func(context.Context, browser.LaunchOptions) (browser.Driver, error) {
		return nil, &browser.SessionStartError{Browser: "chrome", Dependency: "Google Chrome or Chromium", Err: context.DeadlineExceeded}
	}))

	assert.Equal(t, 1, Main(m, &s, nil, opts...))
	assert.Zero(t, m.runs)
}
