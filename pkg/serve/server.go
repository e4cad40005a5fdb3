// Package serve implements the grading dashboard's HTTP API. Grading runs are
// serialized: one browser at a time.
package serve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/ormasoftchile/webgrade/pkg/browser"
	"github.com/ormasoftchile/webgrade/pkg/config"
	"github.com/ormasoftchile/webgrade/pkg/report"
	"github.com/ormasoftchile/webgrade/pkg/runner"
	"github.com/ormasoftchile/webgrade/pkg/score"
	"github.com/ormasoftchile/webgrade/pkg/store"
	"github.com/ormasoftchile/webgrade/pkg/suite"
)

// GradeParams is the body of POST /grade.
type GradeParams struct {
	Assignment int    `json:"assignment"`
	StudentURL string `json:"studentUrl"`
	BackendURL string `json:"backendUrl,omitempty"`
	Mode       string `json:"mode,omitempty"`
	Strict     *bool  `json:"strict,omitempty"`
}

// GradeResponse is the body returned by POST /grade.
type GradeResponse struct {
	Success   bool          `json:"success"`
	RunID     string        `json:"runId,omitempty"`
	ReportURL string        `json:"reportUrl,omitempty"`
	Output    string        `json:"output,omitempty"`
	Summary   *score.Report `json:"summary,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// PageOpener starts the page a grading run drives.
type PageOpener func(ctx context.Context, mode runner.Mode) (browser.Page, error)

// Server is the dashboard API.
type Server struct {
	cfg     config.Config
	store   *store.Store
	log     *slog.Logger
	limiter *rate.Limiter

	// OpenPage defaults to the configured driver.
	OpenPage PageOpener

	mu sync.Mutex // held for the duration of a grading run
}

// Grade requests are throttled to one every gradeInterval with a small
// burst; runs are serialized anyway, so this only bounds the queue.
const (
	gradeInterval = 2 * time.Second
	gradeBurst    = 3
)

// New creates a dashboard server. st may be nil, in which case reports are
// not kept.
func New(cfg config.Config, st *store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		store:   st,
		log:     logger,
		limiter: rate.NewLimiter(rate.Every(gradeInterval), gradeBurst),
	}
	s.OpenPage = func(ctx context.Context, mode runner.Mode) (browser.Page, error) {
		driver, err := runner.ParseDriver(cfg.Driver)
		if err != nil {
			return nil, err
		}
		return runner.OpenPage(ctx, driver, mode)
	}
	return s
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/assignments", s.handleAssignments)
	r.With(s.throttle).Post("/grade", s.handleGrade)
	r.Route("/reports", func(rr chi.Router) {
		rr.Get("/", s.handleReports)
		rr.Get("/{id}", s.handleReport)
		rr.Get("/{id}/html", s.handleReportHTML)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info("dashboard listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, GradeResponse{Error: "too many grading requests, retry shortly"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleAssignments(w http.ResponseWriter, r *http.Request) {
	entries, err := suite.Discover(s.cfg.SuitesDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []suite.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGrade(w http.ResponseWriter, r *http.Request) {
	var p GradeParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, GradeResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	status, resp := s.Grade(r.Context(), p)
	writeJSON(w, status, resp)
}

// Grade runs one assignment's suite against a student deployment and returns
// the HTTP status to answer with.
func (s *Server) Grade(ctx context.Context, p GradeParams) (int, GradeResponse) {
	if p.Assignment <= 0 || p.StudentURL == "" {
		return http.StatusBadRequest, GradeResponse{Error: "assignment and studentUrl are required"}
	}
	mode, err := runner.ParseMode(p.Mode)
	if err != nil {
		return http.StatusBadRequest, GradeResponse{Error: err.Error()}
	}
	if mode == runner.ModeInteractive {
		return http.StatusBadRequest, GradeResponse{Error: "interactive mode needs a terminal; use headed or headless"}
	}
	st, err := suite.Find(s.cfg.SuitesDir, p.Assignment)
	if err != nil {
		return http.StatusNotFound, GradeResponse{Error: err.Error()}
	}

	navCfg := s.cfg.Navigator()
	navCfg.BaseURL = p.StudentURL
	navCfg.BackendURL = p.BackendURL
	nav, err := browser.NewNavigator(navCfg, s.log)
	if err != nil {
		return http.StatusBadRequest, GradeResponse{Error: err.Error()}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	page, err := s.OpenPage(ctx, mode)
	if err != nil {
		return http.StatusInternalServerError, GradeResponse{Error: "start browser: " + err.Error()}
	}
	defer page.Close()

	opts := s.cfg.RunOptions()
	opts.Logger = s.log
	if p.Strict != nil {
		opts.Strict = *p.Strict
	}
	res, runErr := runner.Run(ctx, st, page, nav, opts)
	if res == nil {
		return http.StatusInternalServerError, GradeResponse{Error: runErr.Error()}
	}

	resp := GradeResponse{
		Success: runErr == nil,
		RunID:   res.RunID,
		Output:  report.Markdown(res),
		Summary: &res.Summary,
	}
	if runErr != nil {
		resp.Error = runErr.Error()
	}
	if s.store != nil {
		if err := s.store.Put(context.WithoutCancel(ctx), res); err != nil {
			s.log.Error("store report", "run_id", res.RunID, "error", err)
		} else {
			resp.ReportURL = "/reports/" + res.RunID + "/html"
		}
	}
	return http.StatusOK, resp
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, []store.Summary{})
		return
	}
	assignment, _ := strconv.Atoi(r.URL.Query().Get("assignment"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := s.store.List(r.Context(), assignment, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []store.Summary{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) loadReport(w http.ResponseWriter, r *http.Request) (*runner.Result, bool) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, store.ErrNotFound)
		return nil, false
	}
	res, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
		return nil, false
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	return res, true
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if res, ok := s.loadReport(w, r); ok {
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleReportHTML(w http.ResponseWriter, r *http.Request) {
	res, ok := s.loadReport(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.WriteHTML(w, res); err != nil {
		s.log.Error("render report", "run_id", res.RunID, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprint(err)})
}
