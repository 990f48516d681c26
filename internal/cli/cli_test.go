package cli

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testState struct {
	*globalState
	out *bytes.Buffer
	env map[string]string
}

func newTestState(t *testing.T) *testState {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	out := &bytes.Buffer{}
	env := map[string]string{}

	gs := &globalState{
		ctx:    context.Background(),
		fs:     afero.NewMemMapFs(),
		stdout: out,
		stderr: out,
		logger: logger,
		lookupEnv: func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		},
		now: time.Now,
	}
	return &testState{globalState: gs, out: out, env: env}
}

func (ts *testState) write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(ts.fs, path, []byte(content), 0o644))
}

func (ts *testState) run(args ...string) error {
	root := newRootCmd(ts.globalState)
	root.SetArgs(args)
	return root.Execute()
}

func TestEnvList(t *testing.T) {
	t.Parallel()

	ts := newTestState(t)
	ts.write(t, "environments/dev.json", `{"base_url": "https://dev.example/", "headless": false}`)
	ts.write(t, "environments/prod.json", `{}`)
	ts.write(t, "environments/broken.yaml", "browser: safari\n")

	require.NoError(t, ts.run("env", "list"))
	out := ts.out.String()

	assert.Contains(t, out, "🌍 Available Environments:")
	assert.Contains(t, out, "📋 Environment: DEV")
	assert.Contains(t, out, "URL: https://dev.example/")
	assert.Contains(t, out, "📋 Environment: PROD")
	assert.Contains(t, out, "URL: https://www.saucedemo.com/")
	assert.Contains(t, out, "Window: 1920x1080")
	assert.Contains(t, out, "❌ Environment: BROKEN - Error:")
	assert.NotContains(t, out, "\x1b[", "colors are off without a TTY")

	// records are listed in name order
	assert.Less(t, strings.Index(out, "BROKEN"), strings.Index(out, "DEV"))
	assert.Less(t, strings.Index(out, "DEV"), strings.Index(out, "PROD"))
}

func TestEnvListEmpty(t *testing.T) {
	t.Parallel()

	ts := newTestState(t)
	require.NoError(t, ts.run("env", "list", "--environments-dir", "nowhere"))
	assert.Contains(t, ts.out.String(), "No environment configurations found")
	assert.Contains(t, ts.out.String(), "'nowhere/'")
}

func TestEnvCurrent(t *testing.T) {
	t.Parallel()

	ts := newTestState(t)
	ts.write(t, "environments/dev.json", `{"base_url": "https://dev.example/", "timeout": 10}`)
	ts.write(t, "environments/prod.json", `{"headless": true}`)

	require.NoError(t, ts.run("env", "current"))
	assert.Contains(t, ts.out.String(), "Environment: prod")
	assert.Contains(t, ts.out.String(), "Headless: true")

	ts.out.Reset()
	ts.env["TEST_ENV"] = "dev"
	require.NoError(t, ts.run("env", "current"))
	assert.Contains(t, ts.out.String(), "Environment: dev")
	assert.Contains(t, ts.out.String(), "Timeout: 10s")

	ts.out.Reset()
	require.NoError(t, ts.run("env", "current", "prod"))
	assert.Contains(t, ts.out.String(), "Environment: prod")
}

func TestEnvCurrentUnknown(t *testing.T) {
	t.Parallel()

	ts := newTestState(t)
	ts.write(t, "environments/dev.json", `{}`)

	err := ts.run("env", "current", "staging")
	require.Error(t, err)

	var ec ExitCode
	require.ErrorAs(t, err, &ec)
	assert.Equal(t, 1, ec.Code)
	assert.Contains(t, err.Error(), `Available environments: ["dev"]`)
}

func TestEnvExamples(t *testing.T) {
	t.Parallel()

	ts := newTestState(t)
	require.NoError(t, ts.run("env", "examples"))
	assert.Contains(t, ts.out.String(), "--env=dev")
	assert.Contains(t, ts.out.String(), "export TEST_ENV=dev")
}

func twilioStub(t *testing.T, status int, body string) (string, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv.URL, &calls
}

func setTwilioEnv(t *testing.T, apiBase string) {
	t.Setenv("TWILIO_ACCOUNT_SID", "AC0123456789abcdef0123456789abcdef")
	t.Setenv("TWILIO_AUTH_TOKEN", strings.Repeat("x", 32))
	t.Setenv("TWILIO_WHATSAPP_FROM", "whatsapp:+14155238886")
	t.Setenv("TWILIO_WHATSAPP_TO", "whatsapp:+15551234567")
	t.Setenv("TWILIO_API_BASE", apiBase)
}

func TestNotifySuccess(t *testing.T) {
	base, calls := twilioStub(t, http.StatusCreated, `{"sid": "SM42"}`)
	setTwilioEnv(t, base)

	ts := newTestState(t)
	require.NoError(t, ts.run("notify", "success", "https://acme.github.io/shop/"))
	assert.Contains(t, ts.out.String(), "Message SID: SM42")
	assert.Equal(t, 1, *calls)
}

func TestNotifyFailureExitsNonZeroOnAPIError(t *testing.T) {
	base, calls := twilioStub(t, http.StatusUnauthorized, `{"code": 20003, "message": "Authenticate"}`)
	setTwilioEnv(t, base)

	ts := newTestState(t)
	err := ts.run("notify", "failure")

	var ec ExitCode
	require.ErrorAs(t, err, &ec)
	assert.Equal(t, 1, ec.Code)
	assert.Equal(t, 1, *calls)
}

func TestNotifyNotConfigured(t *testing.T) {
	for _, k := range []string{"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_WHATSAPP_TO"} {
		t.Setenv(k, "")
	}

	ts := newTestState(t)
	err := ts.run("notify", "failure")

	var ec ExitCode
	require.ErrorAs(t, err, &ec)
	assert.Equal(t, 1, ec.Code)
	assert.Contains(t, ts.out.String(), "Configured: false")
}

func TestServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	ts := newTestState(t)
	ctx, cancel := context.WithCancel(context.Background())
	ts.ctx = ctx

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &http.Server{Handler: http.NotFoundHandler()}
	done := make(chan error, 1)
	go func() { done <- serve(ts.globalState, srv, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
