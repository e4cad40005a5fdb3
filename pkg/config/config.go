// Package config resolves grading settings from defaults, an optional
// webgrade.yaml, WEBGRADE_* environment variables and, last, CLI flags.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/webgrade/pkg/browser"
	"github.com/ormasoftchile/webgrade/pkg/runner"
)

// FileName is the config file looked up in the working directory.
const FileName = "webgrade.yaml"

// Config is the effective configuration.
type Config struct {
	BaseURL      string        `yaml:"baseUrl,omitempty"`
	BackendURL   string        `yaml:"backendUrl,omitempty"`
	Mode         string        `yaml:"mode,omitempty"`
	Driver       string        `yaml:"driver,omitempty"`
	IdleTimeout  time.Duration `yaml:"idleTimeout,omitempty"`
	NavTimeout   time.Duration `yaml:"navTimeout,omitempty"`
	CheckTimeout time.Duration `yaml:"checkTimeout,omitempty"`
	RunTimeout   time.Duration `yaml:"runTimeout,omitempty"`
	NavRetries   int           `yaml:"navRetries,omitempty"`
	RetryBackoff time.Duration `yaml:"retryBackoff,omitempty"`
	Strict       bool          `yaml:"strict,omitempty"`
	SuitesDir    string        `yaml:"suitesDir,omitempty"`
	ReportsDir   string        `yaml:"reportsDir,omitempty"`
	DB           string        `yaml:"db,omitempty"`
	HTTPAddr     string        `yaml:"httpAddr,omitempty"`
	CORSOrigins  []string      `yaml:"corsOrigins,omitempty"`
	LogLevel     string        `yaml:"logLevel,omitempty"`
	LogFormat    string        `yaml:"logFormat,omitempty"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Mode:         string(runner.ModeHeadless),
		Driver:       string(runner.DriverStatic),
		IdleTimeout:  browser.DefaultIdleTimeout,
		NavTimeout:   browser.DefaultNavTimeout,
		CheckTimeout: runner.DefaultCheckTimeout,
		RunTimeout:   runner.DefaultRunTimeout,
		NavRetries:   browser.DefaultRetries,
		RetryBackoff: browser.DefaultRetryBackoff,
		SuitesDir:    "suites",
		ReportsDir:   "reports",
		DB:           "webgrade.db",
		HTTPAddr:     ":8080",
		CORSOrigins:  []string{"*"},
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

// Load applies the config file at path (if it exists; an empty path means
// FileName) and then the environment on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = FileName
	}
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := cfg.decode(f); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return cfg, fmt.Errorf("open config: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// ApplyEnv overlays WEBGRADE_* variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("WEBGRADE_BASE_URL", &c.BaseURL)
	str("WEBGRADE_BACKEND_URL", &c.BackendURL)
	str("WEBGRADE_MODE", &c.Mode)
	str("WEBGRADE_DRIVER", &c.Driver)
	str("WEBGRADE_SUITES_DIR", &c.SuitesDir)
	str("WEBGRADE_REPORTS_DIR", &c.ReportsDir)
	str("WEBGRADE_DB", &c.DB)
	str("WEBGRADE_HTTP_ADDR", &c.HTTPAddr)
	str("WEBGRADE_LOG_LEVEL", &c.LogLevel)
	str("WEBGRADE_LOG_FORMAT", &c.LogFormat)

	for key, dst := range map[string]*time.Duration{
		"WEBGRADE_IDLE_TIMEOUT":  &c.IdleTimeout,
		"WEBGRADE_NAV_TIMEOUT":   &c.NavTimeout,
		"WEBGRADE_CHECK_TIMEOUT": &c.CheckTimeout,
		"WEBGRADE_RUN_TIMEOUT":   &c.RunTimeout,
		"WEBGRADE_RETRY_BACKOFF": &c.RetryBackoff,
	} {
		if err := dur(key, dst); err != nil {
			return err
		}
	}

	if v, ok := lookup("WEBGRADE_NAV_RETRIES"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WEBGRADE_NAV_RETRIES: %w", err)
		}
		c.NavRetries = n
	}
	if v, ok := lookup("WEBGRADE_STRICT"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("WEBGRADE_STRICT: %w", err)
		}
		c.Strict = b
	}
	if v, ok := lookup("WEBGRADE_CORS_ORIGINS"); ok && v != "" {
		c.CORSOrigins = splitList(v)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks enumerations and numeric ranges.
func (c Config) Validate() error {
	if _, err := runner.ParseMode(c.Mode); err != nil {
		return err
	}
	if _, err := runner.ParseDriver(c.Driver); err != nil {
		return err
	}
	if c.NavRetries < 1 {
		return fmt.Errorf("navRetries must be at least 1, got %d", c.NavRetries)
	}
	for name, d := range map[string]time.Duration{
		"idleTimeout":  c.IdleTimeout,
		"navTimeout":   c.NavTimeout,
		"checkTimeout": c.CheckTimeout,
		"runTimeout":   c.RunTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retryBackoff must not be negative")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Navigator returns the navigation policy for a run.
func (c Config) Navigator() browser.NavigatorConfig {
	return browser.NavigatorConfig{
		BaseURL:     c.BaseURL,
		BackendURL:  c.BackendURL,
		NavTimeout:  c.NavTimeout,
		IdleTimeout: c.IdleTimeout,
		Retries:     c.NavRetries,
		Backoff:     c.RetryBackoff,
	}
}

// RunOptions returns the runner policy. Trace and logger are left to the
// caller.
func (c Config) RunOptions() runner.Options {
	return runner.Options{
		Strict:       c.Strict,
		CheckTimeout: c.CheckTimeout,
		RunTimeout:   c.RunTimeout,
	}
}

// ParseLevel maps a level name onto slog.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// NewLogger builds the process logger: JSON or text on w at the configured
// level.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
