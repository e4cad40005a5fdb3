// Package mcp exposes rubric validation, planning and grading as MCP tools.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates a new MCP server with webgrade tools registered.
func NewServer(version string) *server.MCPServer {
	s := server.NewMCPServer(
		"webgrade",
		version,
		server.WithToolCapabilities(true),
	)

	s.AddTool(
		mcp.NewTool("webgrade/validate",
			mcp.WithDescription("Validate a webgrade rubric (YAML, JSON or Markdown) or a generated suite file"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the rubric or suite file")),
		),
		HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("webgrade/plan",
			mcp.WithDescription("Resolve every rubric criterion to its check template and return the suite YAML"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the rubric file")),
			mcp.WithString("out", mcp.Description("Directory to write <assignment>.suite.yaml into (optional)")),
		),
		HandlePlan,
	)

	s.AddTool(
		mcp.NewTool("webgrade/grade",
			mcp.WithDescription("Grade a deployed student web app against a rubric or suite"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the rubric or suite file")),
			mcp.WithString("baseUrl", mcp.Required(), mcp.Description("Student frontend base URL")),
			mcp.WithString("backendUrl", mcp.Description("Student backend base URL for /api/ routes (optional)")),
			mcp.WithString("driver", mcp.Description("Browser driver: static (default) or chrome")),
			mcp.WithBoolean("strict", mcp.Description("Fail the run when any check earns less than full credit")),
		),
		HandleGrade,
	)

	s.AddTool(
		mcp.NewTool("webgrade/schema",
			mcp.WithDescription("Export the webgrade rubric JSON Schema"),
		),
		HandleSchema,
	)

	return s
}
