package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormasoftchile/webgrade/pkg/report"
	"github.com/ormasoftchile/webgrade/pkg/rubric"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\n\nWEBGRADE_TEST_A=\"quoted\"\nWEBGRADE_TEST_B=plain\nnot a pair\nWEBGRADE_TEST_C=from-file\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("WEBGRADE_TEST_C", "from-env")
	// registered for cleanup; unset so the file value applies
	t.Setenv("WEBGRADE_TEST_A", "")
	t.Setenv("WEBGRADE_TEST_B", "")
	os.Unsetenv("WEBGRADE_TEST_A")
	os.Unsetenv("WEBGRADE_TEST_B")

	loadDotEnv(path)
	assert.Equal(t, "quoted", os.Getenv("WEBGRADE_TEST_A"))
	assert.Equal(t, "plain", os.Getenv("WEBGRADE_TEST_B"))
	assert.Equal(t, "from-env", os.Getenv("WEBGRADE_TEST_C"))

	loadDotEnv(filepath.Join(t.TempDir(), "missing"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
		want    string
	}{
		{"yaml rubric", "../../testdata/rubrics/a3.yaml", false, "5 criteria"},
		{"markdown rubric", "../../testdata/rubrics/a3.md", false, "3 criteria"},
		{"bad tiers", "../../pkg/mcp/testdata/bad-tiers.yaml", true, "criteria[0].route"},
		{"bad suite", "../../pkg/suite/testdata/bad-kind.suite.yaml", true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr, err := execute(t, "validate", tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Contains(t, stdout+stderr, tt.want)
		})
	}
}

func TestPlan(t *testing.T) {
	dir := t.TempDir()
	stdout, _, err := execute(t, "plan", "../../testdata/rubrics/a3.yaml", "--out", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "3.suite.yaml")
	assert.Contains(t, stdout, "form_input")

	stdout, _, err = execute(t, "validate", filepath.Join(dir, "3.suite.yaml"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "5 checks, 14 points")

	stdout, _, err = execute(t, "plan", "../../testdata/rubrics/a3.yaml", "--out", "-")
	require.NoError(t, err)
	assert.Contains(t, stdout, "kind: navigation")
}

func TestImport(t *testing.T) {
	out := filepath.Join(t.TempDir(), "a3.yaml")
	stdout, _, err := execute(t, "import", "../../testdata/rubrics/a3.md", "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "3 criteria")

	rb, errs := rubric.ValidateFile(out)
	require.False(t, rubric.HasErrors(errs), "%v", errs)
	assert.Equal(t, 3, rb.AssignmentNumber)
	assert.Equal(t, "/Kanbas/Account/Signin", rb.Criteria[0].Route)
}

func TestSchemaExport(t *testing.T) {
	stdout, _, err := execute(t, "schema", "export")
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	assert.Contains(t, doc, "$schema")
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "webgrade dev (build: unknown)\n", stdout)
}

func TestRunAndReport(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><form><input type="email" name="email"><select><option>a</option></select></form></body></html>`)
	}))
	defer site.Close()

	rubricPath := filepath.Join(testRoot(t), "testdata", "rubrics", "a2.yaml")
	t.Chdir(t.TempDir())
	reports := "reports"
	tracePath := "run.jsonl"

	stdout, _, err := execute(t, "run", rubricPath, "--base-url", site.URL, "--out", reports, "--trace", tracePath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "3 / 3")

	matches, err := filepath.Glob(filepath.Join(reports, "assignment-2-*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	res, err := report.LoadFile(matches[0])
	require.NoError(t, err)
	assert.Equal(t, float64(3), res.Summary.TotalEarned)

	_, err = os.Stat(tracePath)
	require.NoError(t, err)

	stdout, _, err = execute(t, "report", "html", matches[0])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(stdout), "<!doctype html>"), stdout[:min(len(stdout), 80)])
}

func TestRunRequiresBaseURL(t *testing.T) {
	t.Setenv("WEBGRADE_BASE_URL", "")
	rubricPath := filepath.Join(testRoot(t), "testdata", "rubrics", "a2.yaml")
	t.Chdir(t.TempDir())
	_, _, err := execute(t, "debug", rubricPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base URL is required")
}

// testRoot is the module root, resolved before a test changes directory.
func testRoot(t *testing.T) string {
	t.Helper()
	root, err := filepath.Abs(filepath.Join("..", ".."))
	if err != nil {
		t.Fatal(err)
	}
	return root
}
