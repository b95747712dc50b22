package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/satishkumarchitti/AI-Chat-Bot/internal/fakeapi"
)

func newDemoServerCmd() *cobra.Command {
	var (
		addr       string
		processing time.Duration
		seedName   string
		seedEmail  string
		seedPass   string
	)

	cmd := &cobra.Command{
		Use:   "demo-server",
		Short: "Run an in-memory backend for trying docupilot locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			api := fakeapi.New(
				fakeapi.WithProcessing(processing),
				fakeapi.WithLogger(log.Logger.With().Str("component", "fakeapi").Logger()),
			)
			defer api.Close()

			if seedEmail != "" {
				if _, err := api.SeedUser(seedName, seedEmail, seedPass); err != nil {
					return err
				}
				log.Info().Str("email", seedEmail).Msg("seeded demo user")
			}

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			srv := &http.Server{
				Handler:           api.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Serve(ln) }()

			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(),
				"Demo backend listening on http://%s/api (Ctrl+C to stop)\n", ln.Addr())

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			log.Info().Msg("shutting down demo backend")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			log.Info().Msg("demo backend stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8000", "Listen address")
	cmd.Flags().DurationVar(&processing, "processing", 2*time.Second, "Delay before an upload is marked processed (0 = never)")
	cmd.Flags().StringVar(&seedName, "seed-name", "Demo User", "Name of the seeded account")
	cmd.Flags().StringVar(&seedEmail, "seed-email", "demo@example.com", "Email of the seeded account (empty = none)")
	cmd.Flags().StringVar(&seedPass, "seed-password", "demo123", "Password of the seeded account")

	return cmd
}
