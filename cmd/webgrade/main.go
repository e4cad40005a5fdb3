package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/webgrade/pkg/config"
	"github.com/ormasoftchile/webgrade/pkg/rubric"
	"github.com/ormasoftchile/webgrade/pkg/suite"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	loadDotEnv(".env")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadDotEnv reads KEY=VALUE lines from path and sets any variable that is
// not already set. Comments (#) and blanks are skipped.
func loadDotEnv(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.Trim(strings.TrimSpace(val), `"'`)
		if _, set := os.LookupEnv(key); !set {
			os.Setenv(key, val)
		}
	}
}

var (
	configPath string
	logFormat  string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:          "webgrade",
	Short:        "Automatic grader for student web applications",
	Long:         "webgrade maps rubric criteria to browser checks, runs them against a deployed student site and scores the results.",
	SilenceUsage: true,
}

// loadConfig resolves defaults, the config file, the environment and then
// the global flags, in that order.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("log-format") {
		cfg.LogFormat = logFormat
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	return cfg, cfg.Validate()
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate [rubric.yaml|rubric.md|N.suite.yaml]",
	Short: "Validate a rubric or a generated suite",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	filePath := args[0]
	out := cmd.OutOrStdout()

	if strings.HasSuffix(filePath, suite.Ext) {
		s, err := suite.LoadFile(filePath)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ suite for assignment %d is valid (%d checks, %g points)\n", s.Assignment, len(s.Checks), s.Possible())
		return nil
	}

	rb, errs, err := validateRubric(filePath)
	if err != nil {
		return err
	}
	var failures []*rubric.ValidationError
	for _, e := range errs {
		if e.Severity == "warning" {
			fmt.Fprintf(cmd.ErrOrStderr(), "  ⚠ [%s] %s\n", e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "    at: %s\n", e.Path)
			}
			continue
		}
		failures = append(failures, e)
	}
	if len(failures) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Validation failed: %d error(s)\n\n", len(failures))
		for i, e := range failures {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %d. [%s] %s\n", i+1, e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "     at: %s\n", e.Path)
			}
		}
		return fmt.Errorf("validation failed with %d error(s)", len(failures))
	}
	fmt.Fprintf(out, "✓ assignment %d rubric is valid (%d criteria)\n", rb.AssignmentNumber, len(rb.Criteria))
	return nil
}

// validateRubric validates a YAML/JSON rubric, or a Markdown one after
// parsing it. A nil rubric only comes with a structural error.
func validateRubric(path string) (*rubric.Rubric, []*rubric.ValidationError, error) {
	if !isMarkdown(path) {
		rb, errs := rubric.ValidateFile(path)
		return rb, errs, nil
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read rubric: %w", err)
	}
	rb, err := rubric.ParseMarkdown(src)
	if err != nil {
		return nil, nil, err
	}
	return rb, rubric.Validate(rb), nil
}

func isMarkdown(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".md" || ext == ".markdown"
}

// --- plan ---

var planOut string

var planCmd = &cobra.Command{
	Use:   "plan [rubric]",
	Short: "Resolve a rubric into a check suite",
	Long: `Resolve every criterion into a check plan (kind, parameters, points) and
write <assignment>.suite.yaml. Without --out the suite goes to the configured
suites directory; use --out - to print it instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	s, err := suite.Open(args[0])
	if err != nil {
		return err
	}
	if planOut == "-" {
		return suite.Write(cmd.OutOrStdout(), s)
	}
	path, err := suite.Save(firstNonEmpty(planOut, cfg.SuitesDir), s)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ wrote %s (%d checks, %g points)\n", path, len(s.Checks), s.Possible())
	for i, p := range s.Checks {
		fmt.Fprintf(cmd.OutOrStdout(), "  %2d. %-14s %-28s %s\n", i+1, p.Kind, p.Route, p.Name)
	}
	return nil
}

// --- import ---

var importOut string

var importCmd = &cobra.Command{
	Use:   "import [rubric.md]",
	Short: "Convert a Markdown rubric into rubric YAML",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	src, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read rubric: %w", err)
	}
	rb, err := rubric.ParseMarkdown(src)
	if err != nil {
		return err
	}
	errs := rubric.Validate(rb)
	for _, e := range errs {
		if e.Severity == "warning" {
			fmt.Fprintf(cmd.ErrOrStderr(), "  ⚠ %s: %s\n", e.Path, e.Message)
		}
	}
	if rubric.HasErrors(errs) {
		for _, e := range errs {
			if e.Severity != "warning" {
				fmt.Fprintf(cmd.ErrOrStderr(), "  [%s] %s: %s\n", e.Phase, e.Path, e.Message)
			}
		}
		return fmt.Errorf("imported rubric is invalid")
	}

	outPath := firstNonEmpty(importOut, strings.TrimSuffix(args[0], filepath.Ext(args[0]))+".yaml")
	if outPath == "-" {
		return rubric.Save(cmd.OutOrStdout(), rb)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	if err := rubric.Save(f, rb); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ wrote %s (%d criteria)\n", outPath, len(rb.Criteria))
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// --- schema export ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Schema operations",
}

var schemaExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the rubric JSON Schema to stdout",
	RunE:  runSchemaExport,
}

func runSchemaExport(cmd *cobra.Command, args []string) error {
	data, err := rubric.GenerateJSONSchema()
	if err != nil {
		return fmt.Errorf("generate schema: %w", err)
	}
	var out json.RawMessage = data
	formatted, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(formatted))
	return nil
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "webgrade %s (build: %s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default "+config.FileName+" if present)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log output format: text or json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")

	planCmd.Flags().StringVarP(&planOut, "out", "o", "", "Directory for the suite file, or - for stdout")
	importCmd.Flags().StringVarP(&importOut, "out", "o", "", "Output path (default: input with .yaml), or - for stdout")

	schemaCmd.AddCommand(schemaExportCmd)

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(debugCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
