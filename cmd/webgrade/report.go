package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/webgrade/pkg/report"
	"github.com/ormasoftchile/webgrade/pkg/runner"
	"github.com/ormasoftchile/webgrade/pkg/store"
)

var (
	reportFromDB  bool
	reportHTMLOut string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render saved grading reports",
}

var reportShowCmd = &cobra.Command{
	Use:   "show [report.json|run-id]",
	Short: "Render a report in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportShow,
}

var reportHTMLCmd = &cobra.Command{
	Use:   "html [report.json|run-id]",
	Short: "Render a report as a standalone HTML page",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportHTML,
}

// loadResult reads a report JSON file, or with --db a run stored by the
// dashboard.
func loadResult(cmd *cobra.Command, ref string) (*runner.Result, error) {
	if !reportFromDB {
		return report.LoadFile(ref)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cmd.Context(), cfg.DB)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return st.Get(cmd.Context(), ref)
}

func runReportShow(cmd *cobra.Command, args []string) error {
	res, err := loadResult(cmd, args[0])
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), report.RenderMarkdown(res, terminalWidth()))
	fmt.Fprintln(cmd.OutOrStdout(), report.RenderSummary(res))
	return nil
}

func runReportHTML(cmd *cobra.Command, args []string) error {
	res, err := loadResult(cmd, args[0])
	if err != nil {
		return err
	}
	if reportHTMLOut == "" || reportHTMLOut == "-" {
		return report.WriteHTML(cmd.OutOrStdout(), res)
	}
	f, err := os.Create(reportHTMLOut)
	if err != nil {
		return fmt.Errorf("create %s: %w", reportHTMLOut, err)
	}
	if err := report.WriteHTML(f, res); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "✓ wrote %s\n", reportHTMLOut)
	return nil
}

func init() {
	for _, c := range []*cobra.Command{reportShowCmd, reportHTMLCmd} {
		c.Flags().BoolVar(&reportFromDB, "db", false, "Treat the argument as a run ID in the report store")
	}
	reportHTMLCmd.Flags().StringVarP(&reportHTMLOut, "out", "o", "", "Output file (default stdout)")
	reportCmd.AddCommand(reportShowCmd)
	reportCmd.AddCommand(reportHTMLCmd)
}
