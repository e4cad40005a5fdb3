package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ormasoftchile/webgrade/pkg/browser"
	"github.com/ormasoftchile/webgrade/pkg/config"
	"github.com/ormasoftchile/webgrade/pkg/rubric"
	"github.com/ormasoftchile/webgrade/pkg/runner"
	"github.com/ormasoftchile/webgrade/pkg/suite"
)

// HandleValidate implements the webgrade/validate MCP tool.
func HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := stringArg(req, "path")
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	if strings.HasSuffix(path, suite.Ext) {
		s, err := suite.LoadFile(path)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		return textResult(fmt.Sprintf("✓ suite for assignment %d is valid (%d checks)", s.Assignment, len(s.Checks))), nil
	}

	var rb *rubric.Rubric
	var errs []*rubric.ValidationError
	if strings.EqualFold(filepath.Ext(path), ".md") {
		src, err := os.ReadFile(path)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		if rb, err = rubric.ParseMarkdown(src); err != nil {
			return errorResult(err.Error()), nil
		}
		errs = rubric.Validate(rb)
	} else {
		rb, errs = rubric.ValidateFile(path)
	}
	if rubric.HasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}
	msg := fmt.Sprintf("✓ assignment %d rubric is valid (%d criteria)", rb.AssignmentNumber, len(rb.Criteria))
	if w := formatWarnings(errs); w != "" {
		msg += "\nwarnings: " + w
	}
	return textResult(msg), nil
}

// HandlePlan implements the webgrade/plan MCP tool.
func HandlePlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := stringArg(req, "path")
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	s, err := suite.Open(path)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	var b strings.Builder
	if out := stringArg(req, "out"); out != "" {
		written, err := suite.Save(out, s)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		fmt.Fprintf(&b, "# written to %s\n", written)
	}
	if err := suite.Write(&b, s); err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(b.String()), nil
}

// HandleGrade implements the webgrade/grade MCP tool. Navigation settings
// come from the WEBGRADE_* environment.
func HandleGrade(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := stringArg(req, "path")
	baseURL := stringArg(req, "baseUrl")
	if path == "" || baseURL == "" {
		return errorResult("path and baseUrl arguments are required"), nil
	}

	cfg := config.Default()
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return errorResult(err.Error()), nil
	}
	if d := stringArg(req, "driver"); d != "" {
		cfg.Driver = d
	}
	if strict, ok := req.GetArguments()["strict"].(bool); ok {
		cfg.Strict = strict
	}
	driver, err := runner.ParseDriver(cfg.Driver)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	s, err := suite.Open(path)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	navCfg := cfg.Navigator()
	navCfg.BaseURL = baseURL
	navCfg.BackendURL = stringArg(req, "backendUrl")
	// stdout carries the MCP protocol
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	nav, err := browser.NewNavigator(navCfg, logger)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	page, err := runner.OpenPage(ctx, driver, runner.ModeHeadless)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	defer page.Close()

	opts := cfg.RunOptions()
	opts.Logger = logger
	res, runErr := runner.Run(ctx, s, page, nav, opts)
	if res == nil {
		return errorResult(runErr.Error()), nil
	}

	data, _ := json.MarshalIndent(res, "", "  ")
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: errors.Is(runErr, runner.ErrShortfall),
	}, nil
}

// HandleSchema implements the webgrade/schema MCP tool.
func HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := rubric.GenerateJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

func stringArg(req mcp.CallToolRequest, name string) string {
	v, _ := req.GetArguments()[name].(string)
	return v
}

func formatErrors(errs []*rubric.ValidationError) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity == "error" {
			msgs = append(msgs, fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message))
		}
	}
	return strings.Join(msgs, "; ")
}

func formatWarnings(errs []*rubric.ValidationError) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity == "warning" {
			msgs = append(msgs, fmt.Sprintf("%s: %s", e.Path, e.Message))
		}
	}
	return strings.Join(msgs, "; ")
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
