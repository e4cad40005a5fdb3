// Package main provides the webgrade-mcp binary, an MCP stdio server for AI
// agents.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	wmcp "github.com/ormasoftchile/webgrade/pkg/mcp"
)

var version = "dev"

func main() {
	s := wmcp.NewServer(version)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
