package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/satishkumarchitti/AI-Chat-Bot/mcp"
)

func main() {
	if err := mcp.RunMCPServer(context.Background()); err != nil {
		log.Error().Err(err).Msg("MCP server exited with error")
		os.Exit(1)
	}
}
