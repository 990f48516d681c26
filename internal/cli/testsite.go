package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/shehryarbajwa/saucedemo-e2e/internal/testsite"
)

const shutdownTimeout = 10 * time.Second

func getCmdTestsite(gs *globalState) *cobra.Command {
	var (
		addr            string
		loginsPerMinute int
	)

	cmd := &cobra.Command{
		Use:   "testsite",
		Short: "Serve the local stand-in shop",
		Long: `Serve the local stand-in shop used by the "local" environment.

  The server stops cleanly on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			site := testsite.New(testsite.Options{
				LoginsPerMinute: loginsPerMinute,
				Logger:          gs.logger,
			})
			srv := site.Server(addr)

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			return serve(gs, srv, ln)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8081", "address to listen on")
	cmd.Flags().IntVar(&loginsPerMinute, "logins-per-minute", 0, "throttle login attempts per client, 0 disables")
	return cmd
}

// serve runs srv on ln until gs.ctx is done, then shuts it down gracefully
func serve(gs *globalState, srv *http.Server, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		gs.logger.Infof("🚀 Stand-in site listening on http://%s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-gs.ctx.Done():
	}

	gs.logger.Info("⏳ Shutting down stand-in site gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	gs.logger.Info("✅ Stand-in site stopped cleanly")
	return nil
}
