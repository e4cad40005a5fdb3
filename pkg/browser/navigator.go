package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Navigation defaults.
const (
	DefaultIdleTimeout  = 10 * time.Second
	DefaultNavTimeout   = 30 * time.Second
	DefaultRetries      = 3
	DefaultRetryBackoff = 2 * time.Second
)

// DefaultLoginPaths are path fragments that identify a login wall.
var DefaultLoginPaths = []string{"/Account/Signin", "/signin", "/login"}

// NavigatorConfig configures URL resolution and navigation policy.
type NavigatorConfig struct {
	BaseURL     string
	BackendURL  string // routes under /api/ resolve here when set
	NavTimeout  time.Duration
	IdleTimeout time.Duration
	Retries     int // total attempts per navigation
	Backoff     time.Duration
	LoginPaths  []string
}

// NavEvent describes something notable that happened during navigation.
type NavEvent struct {
	Kind    string // retry, login_wall, idle_timeout
	URL     string
	Attempt int
	Err     error
}

// Navigator applies the shared navigation policy to a Page.
type Navigator struct {
	cfg     NavigatorConfig
	base    *url.URL
	backend *url.URL
	log     *slog.Logger

	// OnEvent, when set, receives retry, login-wall and idle-timeout events.
	OnEvent func(NavEvent)
}

// NewNavigator validates cfg and fills defaults.
func NewNavigator(cfg NavigatorConfig, logger *slog.Logger) (*Navigator, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("navigator: base URL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" {
		return nil, fmt.Errorf("navigator: invalid base URL %q", cfg.BaseURL)
	}
	n := &Navigator{cfg: cfg, base: base, log: logger}
	if cfg.BackendURL != "" {
		if n.backend, err = url.Parse(cfg.BackendURL); err != nil || n.backend.Scheme == "" {
			return nil, fmt.Errorf("navigator: invalid backend URL %q", cfg.BackendURL)
		}
	}
	if n.cfg.NavTimeout <= 0 {
		n.cfg.NavTimeout = DefaultNavTimeout
	}
	if n.cfg.IdleTimeout <= 0 {
		n.cfg.IdleTimeout = DefaultIdleTimeout
	}
	if n.cfg.Retries <= 0 {
		n.cfg.Retries = DefaultRetries
	}
	if n.cfg.Backoff < 0 {
		n.cfg.Backoff = 0
	}
	if len(n.cfg.LoginPaths) == 0 {
		n.cfg.LoginPaths = DefaultLoginPaths
	}
	if n.log == nil {
		n.log = slog.Default()
	}
	return n, nil
}

// Config returns the effective configuration.
func (n *Navigator) Config() NavigatorConfig { return n.cfg }

// Resolve turns a route into an absolute URL. Base-URL query parameters are
// added to the result unless the route already defines them. A base URL with
// a fragment ("http://host/#/") is treated as a hash router.
func (n *Navigator) Resolve(route string) (string, error) {
	target, err := url.Parse(route)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", route, err)
	}
	base := n.base
	if n.backend != nil && strings.HasPrefix(target.Path, "/api/") {
		base = n.backend
	}

	var out url.URL
	switch {
	case target.IsAbs():
		out = *target
	case base == n.base && strings.Contains(n.cfg.BaseURL, "#"):
		out = *base
		out.Fragment = strings.TrimRight(base.Fragment, "/") + "/" + strings.TrimLeft(route, "/")
		return out.String(), nil
	default:
		out = *base
		out.Path = strings.TrimRight(base.Path, "/") + "/" + strings.TrimLeft(target.Path, "/")
		out.RawPath = ""
		out.RawQuery = target.RawQuery
		out.Fragment = target.Fragment
	}

	q := out.Query()
	for k, vs := range base.Query() {
		if _, ok := q[k]; !ok {
			q[k] = vs
		}
	}
	out.RawQuery = q.Encode()
	return out.String(), nil
}

// Goto navigates page to route. A landing on a login page primes the session
// at the root URL and retries the target once; landing on a login page again
// is an ErrLoginWall. An idle timeout is not an error.
func (n *Navigator) Goto(ctx context.Context, page Page, route string) error {
	target, err := n.Resolve(route)
	if err != nil {
		return err
	}
	if err := n.navigate(ctx, page, target); err != nil {
		return err
	}

	if n.IsLoginWall(page.URL()) && !n.IsLoginWall(target) {
		n.log.Info("login wall detected, priming session", "target", target, "landed", page.URL())
		n.emit(NavEvent{Kind: "login_wall", URL: page.URL()})
		root, err := n.Resolve("/")
		if err != nil {
			return err
		}
		if err := n.navigate(ctx, page, root); err != nil {
			return fmt.Errorf("prime session: %w", err)
		}
		if err := n.navigate(ctx, page, target); err != nil {
			return err
		}
		if n.IsLoginWall(page.URL()) {
			n.log.Warn("login wall persists", "target", target, "landed", page.URL())
			return fmt.Errorf("%w persists at %s", ErrLoginWall, page.URL())
		}
	}
	return nil
}

// IsLoginWall reports whether u looks like a login page.
func (n *Navigator) IsLoginWall(u string) bool {
	lu := strings.ToLower(u)
	parsed, err := url.Parse(lu)
	if err == nil {
		lu = parsed.Path + "#" + parsed.Fragment
	}
	for _, p := range n.cfg.LoginPaths {
		if strings.Contains(lu, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// navigate loads u with bounded retry, then waits for idle.
func (n *Navigator) navigate(ctx context.Context, page Page, u string) error {
	attempt := 0
	op := func() (struct{}, error) {
		attempt++
		if err := ctx.Err(); err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		err := page.Navigate(ctx, u, NavigateOptions{WaitUntil: WaitLoad, Timeout: n.cfg.NavTimeout})
		if err != nil && ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(ctx.Err())
		}
		return struct{}{}, err
	}
	notify := func(err error, wait time.Duration) {
		n.log.Warn("navigation failed, retrying", "url", u, "attempt", attempt, "wait", wait, "error", err)
		n.emit(NavEvent{Kind: "retry", URL: u, Attempt: attempt, Err: err})
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(n.cfg.Backoff)),
		backoff.WithMaxTries(uint(n.cfg.Retries)),
		backoff.WithNotify(notify),
	)
	if err != nil {
		return fmt.Errorf("navigate to %s after %d attempt(s): %w", u, attempt, err)
	}

	if err := page.WaitIdle(ctx, n.cfg.IdleTimeout); err != nil {
		if !errors.Is(err, ErrTimeout) {
			return fmt.Errorf("wait for %s: %w", u, err)
		}
		n.log.Debug("page not idle, proceeding", "url", u, "timeout", n.cfg.IdleTimeout)
		n.emit(NavEvent{Kind: "idle_timeout", URL: u})
	}
	return nil
}

func (n *Navigator) emit(ev NavEvent) {
	if n.OnEvent != nil {
		n.OnEvent(ev)
	}
}
