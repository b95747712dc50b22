package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/satishkumarchitti/AI-Chat-Bot/internal/config"
	"github.com/satishkumarchitti/AI-Chat-Bot/internal/logger"
	"github.com/satishkumarchitti/AI-Chat-Bot/workspace"
)

var (
	apiURL        string
	dataDir       string
	persistDriver string
	debug         bool
)

const commandTimeout = 60 * time.Second

func main() {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// NewRootCmd constructs the root CLI command; exposed for unit testing.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "docupilot",
		Short:         "docupilot extracts data from documents and answers questions about them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.Logger = log.Output(zerolog.ConsoleWriter{
				Out:        cmd.ErrOrStderr(),
				TimeFormat: "2006-01-02 15:04:05",
				NoColor:    true,
			})
			if debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
				log.Debug().Msg("debug logging enabled")
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Backend API base URL (default $DOCUPILOT_API_URL)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory for the local state file (default ~/.docupilot)")
	rootCmd.PersistentFlags().StringVar(&persistDriver, "persist", "", "Where the session is kept: sqlite, redis or memory")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable verbose debug output")

	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newRegisterCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newWhoamiCmd())
	rootCmd.AddCommand(newThemeCmd())
	rootCmd.AddCommand(newDocsCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newResetCmd())
	rootCmd.AddCommand(newDemoServerCmd())

	return rootCmd
}

// loadConfig reads the environment (and .env) and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	if f := cmd.Flag("api-url"); f != nil && f.Changed {
		cfg.APIURL = apiURL
	}
	if f := cmd.Flag("data-dir"); f != nil && f.Changed {
		cfg.DataDir = dataDir
	}
	if f := cmd.Flag("persist"); f != nil && f.Changed {
		cfg.PersistDriver = persistDriver
	}
	if debug {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openWorkspace rehydrates the persisted session and returns a workspace
// with a command-scoped context.
func openWorkspace(cmd *cobra.Command) (*workspace.Workspace, context.Context, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	wlog := logger.New("docupilot", logger.Options{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		Console: true,
		Output:  cmd.ErrOrStderr(),
	})
	stderr := cmd.ErrOrStderr()

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	ws, err := workspace.Open(ctx, cfg, workspace.Options{
		Logger: wlog,
		OnAuthRequired: func() {
			color.New(color.FgYellow).Fprintln(stderr, "Your session has expired. Run `docupilot login` again.")
		},
	})
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	log.Debug().Str("api_url", cfg.APIURL).Str("persist", cfg.PersistDriver).Msg("workspace opened")
	return ws, ctx, func() {
		if err := ws.Close(); err != nil {
			log.Error().Err(err).Msg("close workspace")
		}
		cancel()
	}, nil
}

// settle waits for an operation and prefers the message recorded in the
// stores over the raw transport error.
func settle(ctx context.Context, p *workspace.Pending, err error, recorded func() string) error {
	if err != nil {
		return err
	}
	if err := p.Wait(ctx); err != nil {
		if msg := recorded(); msg != "" && !errors.Is(err, context.DeadlineExceeded) {
			return errors.New(msg)
		}
		return err
	}
	return nil
}

func requireLogin(ws *workspace.Workspace) error {
	if !ws.Session().State().IsAuthenticated() {
		return errors.New("not logged in; run `docupilot login` first")
	}
	return nil
}
