// Package cli implements the e2ectl command: environment inspection,
// result notifications and the local stand-in site.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/shehryarbajwa/saucedemo-e2e/internal/environment"
)

// ExitCode is an error that carries the process exit status
type ExitCode struct {
	error
	Code int
	Hint string
}

type globalFlags struct {
	envDir  string
	noColor bool
	verbose bool
}

// globalState is everything a command needs from the outside world
type globalState struct {
	ctx       context.Context
	fs        afero.Fs
	stdout    io.Writer
	stderr    io.Writer
	isTTY     bool
	logger    *logrus.Logger
	lookupEnv func(string) (string, bool)
	now       func() time.Time
	flags     globalFlags
}

func newGlobalState(ctx context.Context) *globalState {
	isTTY := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	logger := &logrus.Logger{
		Out:       os.Stderr,
		Formatter: new(logrus.TextFormatter),
		Hooks:     make(logrus.LevelHooks),
		Level:     logrus.InfoLevel,
	}

	return &globalState{
		ctx:       ctx,
		fs:        afero.NewOsFs(),
		stdout:    colorable.NewColorableStdout(),
		stderr:    colorable.NewColorableStderr(),
		isTTY:     isTTY,
		logger:    logger,
		lookupEnv: os.LookupEnv,
		now:       time.Now,
	}
}

func (gs *globalState) getenv(key string) string {
	v, _ := gs.lookupEnv(key)
	return v
}

func (gs *globalState) color(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if gs.flags.noColor || !gs.isTTY {
		c.DisableColor()
	} else {
		c.EnableColor()
	}
	return c
}

// resolver reads records from --environments-dir, then ENVIRONMENTS_DIR
func (gs *globalState) resolver() *environment.Resolver {
	dir := gs.flags.envDir
	if dir == "" {
		dir = gs.getenv("ENVIRONMENTS_DIR")
	}
	return environment.NewResolver(environment.NewStore(gs.fs, dir)).WithLookupEnv(gs.lookupEnv)
}

func newRootCmd(gs *globalState) *cobra.Command {
	root := &cobra.Command{
		Use:           "e2ectl",
		Short:         "Tools around the browser end-to-end suite",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if gs.flags.verbose {
				gs.logger.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.PersistentFlags().AddFlagSet(rootFlagSet(gs))
	root.SetOut(gs.stdout)
	root.SetErr(gs.stderr)

	root.AddCommand(
		getCmdEnv(gs),
		getCmdNotify(gs),
		getCmdTestsite(gs),
	)
	return root
}

func rootFlagSet(gs *globalState) *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.StringVar(&gs.flags.envDir, "environments-dir", "", "directory holding environment records (default \"environments\")")
	flags.BoolVar(&gs.flags.noColor, "no-color", false, "disable colored output")
	flags.BoolVarP(&gs.flags.verbose, "verbose", "v", false, "enable debug logging")
	return flags
}

// Execute runs e2ectl and exits the process with the command's status
func Execute() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using system environment variables")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	gs := newGlobalState(ctx)

	err := newRootCmd(gs).Execute()
	cancel()
	if err == nil {
		return
	}

	fields := logrus.Fields{}
	code := 1
	var ec ExitCode
	if errors.As(err, &ec) {
		code = ec.Code
		if ec.Hint != "" {
			fields["hint"] = ec.Hint
		}
	}
	gs.logger.WithFields(fields).Error(err)
	os.Exit(code)
}

// fprintf panics when writing to w fails
func fprintf(w io.Writer, format string, a ...interface{}) {
	if _, err := fmt.Fprintf(w, format, a...); err != nil {
		panic(err.Error())
	}
}
