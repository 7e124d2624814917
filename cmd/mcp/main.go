// DataSentinel MCP server - exposes the admin risk views as MCP tools for LLMs
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/adityaadi07/datasentinel/internal/mcpserver"
)

func main() {
	cfg := mcpserver.Config{
		APIURL:      envOrDefault("SENTINEL_API_URL", "http://localhost:8080"),
		APIKey:      os.Getenv("SENTINEL_API_KEY"),
		AdminSecret: os.Getenv("SENTINEL_ADMIN_SECRET"),
	}

	if cfg.APIKey == "" {
		fmt.Fprintln(os.Stderr, "SENTINEL_API_KEY is required")
		os.Exit(1)
	}

	s := mcpserver.NewMCPServer(cfg)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
