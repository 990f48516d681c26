package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/shehryarbajwa/saucedemo-e2e/internal/notify"
)

func getCmdNotify(gs *globalState) *cobra.Command {
	notifyCmd := &cobra.Command{
		Use:   "notify",
		Short: "Send the test-run result to WhatsApp",
		Long: `Send the test-run result to WhatsApp through Twilio.

  Credentials come from TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN,
  TWILIO_WHATSAPP_FROM and TWILIO_WHATSAPP_TO. GitHub Actions variables
  are added to the message when present.

	Examples:
	  e2ectl notify success https://user.github.io/repo/
	  e2ectl notify failure`,
	}
	notifyCmd.AddCommand(
		&cobra.Command{
			Use:   "success <dashboard-url>",
			Short: "Report a passing run with its dashboard URL",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return sendNotification(gs, notify.StatusSuccess, args[0])
			},
		},
		&cobra.Command{
			Use:   "failure",
			Short: "Report a failing run",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return sendNotification(gs, notify.StatusFailure, "")
			},
		},
		getCmdNotifyStatus(gs),
	)
	return notifyCmd
}

func sendNotification(gs *globalState, status notify.Status, dashboardURL string) error {
	cfg, err := notify.LoadConfig()
	if err != nil {
		return ExitCode{error: err, Code: 1}
	}
	if !cfg.IsConfigured() {
		printNotifyStatus(gs, cfg)
		return ExitCode{error: notify.ErrNotConfigured, Code: 1, Hint: "set the TWILIO_* variables"}
	}

	client, err := notify.NewClient(cfg, gs.logger)
	if err != nil {
		return ExitCode{error: fmt.Errorf("configuration error: %w", err), Code: 1}
	}

	sid, err := client.Notify(gs.ctx, status, dashboardURL, notify.WorkflowFromEnv(gs.getenv))
	if err != nil {
		return ExitCode{error: err, Code: 1}
	}

	ok := gs.color(color.FgGreen)
	fprintf(gs.stdout, "%s\n", ok.Sprint("✅ WhatsApp message sent successfully!"))
	fprintf(gs.stdout, "📱 Message SID: %s\n", sid)
	fprintf(gs.stdout, "📞 To: %s\n", cfg.To)
	return nil
}

func getCmdNotifyStatus(gs *globalState) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the WhatsApp configuration without secrets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := notify.LoadConfig()
			if err != nil {
				return err
			}
			printNotifyStatus(gs, cfg)
			return nil
		},
	}
}

func printNotifyStatus(gs *globalState, cfg notify.Config) {
	r := cfg.Redacted()
	fail := gs.color(color.FgRed)

	fprintf(gs.stdout, "🔧 WhatsApp Configuration Status:\n")
	fprintf(gs.stdout, "  📱 From Number: %s\n", r["from"])
	fprintf(gs.stdout, "  📞 To Number: %s\n", r["to"])
	fprintf(gs.stdout, "  🔑 Account SID: %s\n", r["account_sid"])
	fprintf(gs.stdout, "  🔐 Auth Token: %s\n", r["auth_token"])
	fprintf(gs.stdout, "  ✅ Configured: %v\n", cfg.IsConfigured())
	if err := cfg.Validate(); err != nil {
		fprintf(gs.stdout, "  %s\n", fail.Sprintf("❌ Valid: No - %v", err))
	} else {
		fprintf(gs.stdout, "  ✅ Valid: Yes\n")
	}
}
