package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/webgrade/pkg/browser"
	"github.com/ormasoftchile/webgrade/pkg/config"
	"github.com/ormasoftchile/webgrade/pkg/debugger"
	"github.com/ormasoftchile/webgrade/pkg/report"
	"github.com/ormasoftchile/webgrade/pkg/runner"
	"github.com/ormasoftchile/webgrade/pkg/suite"
	"github.com/ormasoftchile/webgrade/pkg/trace"
	"github.com/ormasoftchile/webgrade/pkg/tui"
)

var (
	runBaseURL    string
	runBackendURL string
	runMode       string
	runDriver     string
	runStrict     bool
	runTrace      string
	runOut        string
	runNoSave     bool
)

var runCmd = &cobra.Command{
	Use:   "run [rubric|suite]",
	Short: "Grade a student deployment",
	Long: `Run every check of a rubric (or a generated suite) against the student's
site, print the score table and write JSON and HTML reports.

In strict mode any check that does not earn full credit fails the run (exit
status 1), but every check still runs and the report is still written.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

// runSetup is what run and debug share: the effective config, the suite,
// the navigator and an open page.
type runSetup struct {
	cfg    config.Config
	suite  *suite.Suite
	nav    *browser.Navigator
	page   browser.Page
	mode   runner.Mode
	logger *slog.Logger
}

func prepareRun(ctx context.Context, cmd *cobra.Command, path string) (*runSetup, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = runBaseURL
	}
	if flags.Changed("backend-url") {
		cfg.BackendURL = runBackendURL
	}
	if flags.Changed("mode") {
		cfg.Mode = runMode
	}
	if flags.Changed("driver") {
		cfg.Driver = runDriver
	}
	if flags.Changed("strict") {
		cfg.Strict = runStrict
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("a base URL is required (--base-url or WEBGRADE_BASE_URL)")
	}
	mode, err := runner.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	driver, err := runner.ParseDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}

	s, err := suite.Open(path)
	if err != nil {
		return nil, err
	}

	// the interactive view owns the terminal
	logOut := io.Writer(cmd.ErrOrStderr())
	if mode == runner.ModeInteractive {
		logOut = io.Discard
	}
	logger := cfg.NewLogger(logOut)

	nav, err := browser.NewNavigator(cfg.Navigator(), logger)
	if err != nil {
		return nil, err
	}
	page, err := runner.OpenPage(ctx, driver, mode)
	if err != nil {
		return nil, err
	}
	return &runSetup{cfg: cfg, suite: s, nav: nav, page: page, mode: mode, logger: logger}, nil
}

func (rs *runSetup) options() (runner.Options, error) {
	opts := rs.cfg.RunOptions()
	opts.Logger = rs.logger
	if runTrace != "" {
		tw, err := trace.NewFileWriter(runTrace, uuid.NewString())
		if err != nil {
			return opts, err
		}
		opts.Trace = tw
	}
	return opts, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rs, err := prepareRun(ctx, cmd, args[0])
	if err != nil {
		return err
	}
	defer rs.page.Close()

	opts, err := rs.options()
	if err != nil {
		return err
	}
	if opts.Trace != nil {
		defer opts.Trace.Close()
	}

	var res *runner.Result
	var runErr error
	if rs.mode == runner.ModeInteractive {
		res, runErr = tui.Run(ctx, rs.suite, rs.page, rs.nav, opts)
	} else {
		res, runErr = runner.Run(ctx, rs.suite, rs.page, rs.nav, opts)
	}
	if res == nil {
		return runErr
	}
	return finishRun(cmd, rs.cfg, res, runErr)
}

// finishRun prints the outcome and writes the reports. A strict shortfall is
// returned after the reports are on disk.
func finishRun(cmd *cobra.Command, cfg config.Config, res *runner.Result, runErr error) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, report.RenderTable(res.Results, terminalWidth()))
	fmt.Fprintln(out, report.RenderSummary(res))

	if !runNoSave {
		paths, err := report.Save(firstNonEmpty(runOut, cfg.ReportsDir), res)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  report: %s\n  json:   %s\n", paths.HTML, paths.JSON)
	}
	if runTrace != "" {
		fmt.Fprintf(out, "  trace:  %s\n", runTrace)
	}
	if errors.Is(runErr, runner.ErrShortfall) {
		fmt.Fprintf(cmd.ErrOrStderr(), "strict mode: %d check(s) short of full credit\n", len(res.Shortfalls))
	}
	return runErr
}

// terminalWidth reads COLUMNS and falls back to 100.
func terminalWidth() int {
	var w int
	if _, err := fmt.Sscanf(os.Getenv("COLUMNS"), "%d", &w); err != nil || w < 40 {
		return 100
	}
	return w
}

// --- debug ---

var debugCmd = &cobra.Command{
	Use:   "debug [rubric|suite]",
	Short: "Step through the checks of a run interactively",
	Args:  cobra.ExactArgs(1),
	RunE:  runDebug,
}

func runDebug(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rs, err := prepareRun(ctx, cmd, args[0])
	if err != nil {
		return err
	}
	defer rs.page.Close()
	if rs.mode == runner.ModeInteractive {
		return fmt.Errorf("the debugger is interactive already; use --mode headless or headed")
	}

	opts, err := rs.options()
	if err != nil {
		return err
	}
	if opts.Trace != nil {
		defer opts.Trace.Close()
	}
	sess, err := runner.NewSession(rs.suite, rs.page, rs.nav, opts)
	if err != nil {
		return err
	}
	d := debugger.New(sess)
	d.SetOutput(cmd.OutOrStdout())
	res, runErr := d.Run(ctx)
	if res == nil {
		return runErr
	}
	return finishRun(cmd, rs.cfg, res, runErr)
}

func init() {
	for _, c := range []*cobra.Command{runCmd, debugCmd} {
		c.Flags().StringVar(&runBaseURL, "base-url", "", "Student deployment base URL (overrides WEBGRADE_BASE_URL)")
		c.Flags().StringVar(&runBackendURL, "backend-url", "", "Backend base URL for /api/ routes")
		c.Flags().StringVar(&runMode, "mode", "headless", "Browser mode: headless, headed or interactive")
		c.Flags().StringVar(&runDriver, "driver", "static", "Page driver: static or chrome")
		c.Flags().BoolVar(&runStrict, "strict", false, "Fail the run when any check earns less than full credit")
		c.Flags().StringVar(&runTrace, "trace", "", "Write a JSONL run trace to this file")
		c.Flags().StringVarP(&runOut, "out", "o", "", "Reports directory (default from config)")
		c.Flags().BoolVar(&runNoSave, "no-save", false, "Do not write report files")
	}
}
