package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/webgrade/pkg/serve"
	"github.com/ormasoftchile/webgrade/pkg/store"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the grading dashboard API",
	Long: `Start the HTTP API used by the grading dashboard:

  GET  /assignments        suites available in the suites directory
  POST /grade              grade {assignment, studentUrl, backendUrl, mode, strict}
  GET  /reports            stored runs, newest first (?assignment=N&limit=N)
  GET  /reports/{id}       one stored run as JSON
  GET  /reports/{id}/html  one stored run as an HTML report`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.HTTPAddr = serveAddr
	}
	logger := cfg.NewLogger(cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	logger.Info("report store opened", "db", cfg.DB, "suites", cfg.SuitesDir)
	return serve.New(cfg, st, logger).ListenAndServe(ctx, cfg.HTTPAddr)
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides WEBGRADE_HTTP_ADDR)")
}
