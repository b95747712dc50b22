// Package mcp serves the docupilot workspace as Model Context Protocol tools.
package mcp

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/satishkumarchitti/AI-Chat-Bot/internal/config"
	"github.com/satishkumarchitti/AI-Chat-Bot/internal/logger"
	"github.com/satishkumarchitti/AI-Chat-Bot/mcp/internal/handlers"
	"github.com/satishkumarchitti/AI-Chat-Bot/workspace"
)

// Settings holds the MCP-specific configuration, read from the same
// DOCUPILOT_ prefix as the workspace configuration.
type Settings struct {
	Addr            string        `envconfig:"MCP_ADDR" default:":11546"`
	ServerName      string        `envconfig:"MCP_SERVER_NAME" default:"docupilot-mcp"`
	ServerVersion   string        `envconfig:"MCP_SERVER_VERSION" default:"0.1.0"`
	ShutdownTimeout time.Duration `envconfig:"MCP_SHUTDOWN_TIMEOUT" default:"10s"`
	ReadTimeout     time.Duration `envconfig:"MCP_READ_TIMEOUT" default:"5s"`
	IdleTimeout     time.Duration `envconfig:"MCP_IDLE_TIMEOUT" default:"120s"`
	// Stdio forces the transport; unset means auto-detect.
	Stdio *bool `envconfig:"MCP_STDIO"`
}

// LoadSettings reads Settings from the environment.
func LoadSettings() (Settings, error) {
	var s Settings
	if err := envconfig.Process(config.Prefix, &s); err != nil {
		return s, fmt.Errorf("failed to process MCP config: %w", err)
	}
	return s, nil
}

type toolRegisterer interface {
	RegisterTools(s *server.MCPServer) error
}

// NewServer builds an MCP server whose tools act on ws.
func NewServer(ws *workspace.Workspace, name, version string) (*server.MCPServer, error) {
	s := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
	)

	bridge := handlers.NewBridge(ws)
	for _, h := range []struct {
		name string
		h    toolRegisterer
	}{
		{"session", handlers.NewSessionHandler(bridge)},
		{"document", handlers.NewDocumentHandler(bridge)},
		{"chat", handlers.NewChatHandler(bridge)},
	} {
		if err := h.h.RegisterTools(s); err != nil {
			return nil, fmt.Errorf("register %s tools: %w", h.name, err)
		}
	}
	return s, nil
}

// Handler mounts the Streamable HTTP transport at /mcp and Prometheus
// metrics at /metrics.
func Handler(s *server.MCPServer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/mcp", server.NewStreamableHTTPServer(
		s,
		server.WithEndpointPath("/mcp"),
		server.WithHeartbeatInterval(30*time.Second),
	))
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// RunMCPServer opens the workspace described by the environment and serves
// it until interrupted.
func RunMCPServer(ctx context.Context) error {
	cfg, err := config.New()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	settings, err := LoadSettings()
	if err != nil {
		return err
	}

	// stdout belongs to the protocol in stdio mode.
	wlog := logger.New(settings.ServerName, logger.Options{
		Level:  cfg.LogLevel,
		File:   cfg.LogFile,
		Output: os.Stderr,
	})
	log.Logger = wlog

	ws, err := workspace.Open(ctx, cfg, workspace.Options{
		Logger: wlog,
		OnAuthRequired: func() {
			log.Warn().Msg("session expired; call the login tool again")
		},
	})
	if err != nil {
		log.Error().Stack().Err(err).Msg("Failed to open workspace")
		return err
	}
	defer func() {
		if err := ws.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing workspace")
		}
	}()
	log.Info().Str("api_url", cfg.APIURL).Bool("authenticated", ws.Session().State().IsAuthenticated()).Msg("Workspace opened")

	s, err := NewServer(ws, settings.ServerName, settings.ServerVersion)
	if err != nil {
		return err
	}

	if shouldUseStdio(settings) {
		log.Info().Msg("Starting docupilot MCP server (stdio transport)")
		return server.ServeStdio(s)
	}

	log.Info().Str("addr", settings.Addr).Msg("Starting docupilot MCP server (Streamable HTTP)")
	srv := &http.Server{
		Addr:        settings.Addr,
		Handler:     Handler(s),
		ReadTimeout: settings.ReadTimeout,
		// No write deadline: SSE streams stay open.
		WriteTimeout: 0,
		IdleTimeout:  settings.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during HTTP server shutdown")
		return err
	}
	log.Info().Msg("MCP server shutdown complete")
	return nil
}

// shouldUseStdio honours DOCUPILOT_MCP_STDIO, otherwise picks stdio when
// stdin is not a terminal (launched by another process).
func shouldUseStdio(s Settings) bool {
	if s.Stdio != nil {
		return *s.Stdio
	}
	if fileInfo, err := os.Stdin.Stat(); err == nil {
		return (fileInfo.Mode() & os.ModeCharDevice) == 0
	}
	return false
}
