package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/shehryarbajwa/saucedemo-e2e/internal/environment"
	"github.com/shehryarbajwa/saucedemo-e2e/pkg/models"
)

// listConcurrency bounds how many records `env list` resolves at once
const listConcurrency = 4

func getCmdEnv(gs *globalState) *cobra.Command {
	envCmd := &cobra.Command{
		Use:   "env",
		Short: "Inspect environment configurations",
		Long: `Inspect environment configurations.

  Records are read from the environments directory (--environments-dir,
  ENVIRONMENTS_DIR or ./environments).`,
	}
	envCmd.AddCommand(
		getCmdEnvList(gs),
		getCmdEnvCurrent(gs),
		getCmdEnvExamples(gs),
	)
	return envCmd
}

type listEntry struct {
	name string
	cfg  models.ResolvedConfig
	err  error
}

func getCmdEnvList(gs *globalState) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show every available environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver := gs.resolver()
			names, err := resolver.Store().Names()
			if err != nil {
				return err
			}

			if len(names) == 0 {
				fprintf(gs.stdout, "%s\n", gs.color(color.FgRed).Sprint("❌ No environment configurations found!"))
				fprintf(gs.stdout, "   Create JSON or YAML files in the '%s/' directory\n", resolver.Store().Dir())
				return nil
			}

			entries := make([]listEntry, len(names))
			g, ctx := errgroup.WithContext(gs.ctx)
			g.SetLimit(listConcurrency)
			for i, name := range names {
				g.Go(func() error {
					if err := ctx.Err(); err != nil {
						return err
					}
					cfg, err := resolver.Resolve(name, environment.Overrides{})
					entries[i] = listEntry{name: name, cfg: cfg, err: err}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			header := gs.color(color.Bold)
			value := gs.color(color.FgCyan)
			fail := gs.color(color.FgRed)

			fprintf(gs.stdout, "%s\n", header.Sprint("🌍 Available Environments:"))
			fprintf(gs.stdout, "%s\n", strings.Repeat("=", 50))
			for _, e := range entries {
				if e.err != nil {
					fprintf(gs.stdout, "\n%s\n", fail.Sprintf("❌ Environment: %s - Error: %v", strings.ToUpper(e.name), e.err))
					continue
				}
				fprintf(gs.stdout, "\n📋 Environment: %s\n", header.Sprint(strings.ToUpper(e.name)))
				fprintf(gs.stdout, "   URL: %s\n", value.Sprint(e.cfg.BaseURL))
				fprintf(gs.stdout, "   Browser: %s\n", value.Sprint(e.cfg.Browser))
				fprintf(gs.stdout, "   Headless: %s\n", value.Sprint(e.cfg.Headless))
				fprintf(gs.stdout, "   Timeout: %s\n", value.Sprint(e.cfg.Timeout))
				fprintf(gs.stdout, "   Window: %s\n", value.Sprint(e.cfg.WindowSize))
			}
			return nil
		},
	}
}

func getCmdEnvCurrent(gs *globalState) *cobra.Command {
	return &cobra.Command{
		Use:   "current [name]",
		Short: "Resolve and show one environment",
		Long: `Resolve and show one environment.

  Without a name the environment comes from TEST_ENV, falling back to prod.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			explicit := ""
			if len(args) == 1 {
				explicit = args[0]
			}

			resolver := gs.resolver()
			name := resolver.EnvironmentName(explicit)
			cfg, err := resolver.Resolve(name, environment.Overrides{})
			if err != nil {
				return ExitCode{
					error: fmt.Errorf("error loading environment '%s': %w", name, err),
					Code:  1,
				}
			}

			printConfig(gs, cfg)
			return nil
		},
	}
}

func printConfig(gs *globalState, cfg models.ResolvedConfig) {
	value := gs.color(color.FgCyan)

	fprintf(gs.stdout, "\n=== Environment Configuration ===\n")
	fprintf(gs.stdout, "Environment: %s\n", value.Sprint(cfg.Environment))
	fprintf(gs.stdout, "Base URL: %s\n", value.Sprint(cfg.BaseURL))
	fprintf(gs.stdout, "Browser: %s\n", value.Sprint(cfg.Browser))
	fprintf(gs.stdout, "Headless: %s\n", value.Sprint(cfg.Headless))
	fprintf(gs.stdout, "Timeout: %s\n", value.Sprint(cfg.Timeout))
	fprintf(gs.stdout, "Implicit Wait: %s\n", value.Sprint(cfg.ImplicitWait))
	fprintf(gs.stdout, "Page Load Timeout: %s\n", value.Sprint(cfg.PageLoadTimeout))
	fprintf(gs.stdout, "Window Size: %s\n", value.Sprint(cfg.WindowSize))
	fprintf(gs.stdout, "==================================\n\n")
}

var usageExamples = []struct {
	title    string
	commands []string
}{
	{"Run tests with default environment (prod)", []string{
		"go test -tags e2e ./e2e/...",
	}},
	{"Run tests with specific environment", []string{
		"go test -tags e2e ./e2e/... -args --env=dev",
		"go test -tags e2e ./e2e/... -args --env=local",
	}},
	{"Override browser", []string{
		"go test -tags e2e ./e2e/... -args --env=dev --browser=edge",
	}},
	{"Run in headless mode", []string{
		"go test -tags e2e ./e2e/... -args --env=prod --headless",
	}},
	{"Combine with Allure reporting", []string{
		"go test -tags e2e ./e2e/... -args --env=dev --alluredir=results/allure-results",
	}},
	{"Set environment via environment variable", []string{
		"export TEST_ENV=dev",
		"go test -tags e2e ./e2e/...",
	}},
	{"Run against the local stand-in site", []string{
		"e2ectl testsite --addr :8081 &",
		"go test -tags e2e ./e2e/... -args --env=local",
	}},
}

func getCmdEnvExamples(gs *globalState) *cobra.Command {
	return &cobra.Command{
		Use:   "examples",
		Short: "Show how to pick an environment when running the suite",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			header := gs.color(color.Bold)
			command := gs.color(color.FgGreen)

			fprintf(gs.stdout, "\n%s\n", header.Sprint("🚀 Usage Examples:"))
			fprintf(gs.stdout, "%s\n", strings.Repeat("=", 50))
			for i, ex := range usageExamples {
				fprintf(gs.stdout, "\n%d. %s:\n", i+1, ex.title)
				for _, c := range ex.commands {
					fprintf(gs.stdout, "   %s\n", command.Sprint(c))
				}
			}
			return nil
		},
	}
}
