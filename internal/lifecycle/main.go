package lifecycle

import (
	"context"
	"flag"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// startTimeout bounds browser startup, image pulls included
const startTimeout = 5 * time.Minute

// M is the part of *testing.M that Main drives
type M interface {
	Run() int
}

// Main runs the test binary around one browser session and returns the exit
// code. Configuration and session errors abort the run before any test
// executes. The session is released once m.Run returns, whatever the outcome.
//
//	var suite *lifecycle.Hooks
//	var settings = lifecycle.RegisterFlags(flag.CommandLine)
//
//	func TestMain(m *testing.M) {
//		os.Exit(lifecycle.Main(m, settings, func(h *lifecycle.Hooks) { suite = h }))
//	}
func Main(m M, s *Settings, bind func(*Hooks), opts ...Option) int {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using system environment variables")
	}
	if !flag.Parsed() {
		flag.Parse()
	}

	logger := logrus.New()
	if level, err := logrus.ParseLevel(s.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	opts = append([]Option{WithLogger(logger)}, opts...)

	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()

	hooks, err := Start(ctx, *s, opts...)
	if err != nil {
		logger.WithError(err).Error("Aborting test run before any test started")
		return 1
	}
	defer func() {
		if err := hooks.Close(); err != nil {
			logger.WithError(err).Warn("Browser did not close cleanly")
		}
	}()

	if bind != nil {
		bind(hooks)
	}

	return m.Run()
}
