package browser_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormasoftchile/webgrade/pkg/browser"
	"github.com/ormasoftchile/webgrade/pkg/browser/browsertest"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newNavigator(t *testing.T, cfg browser.NavigatorConfig) *browser.Navigator {
	t.Helper()
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://student.test"
	}
	n, err := browser.NewNavigator(cfg, quiet)
	require.NoError(t, err)
	return n
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		backend string
		route   string
		want    string
	}{
		{"plain", "http://student.test", "", "/Kanbas/Dashboard", "http://student.test/Kanbas/Dashboard"},
		{"base path", "http://student.test/a3/", "", "/Labs", "http://student.test/a3/Labs"},
		{"query propagates", "http://student.test/?token=abc", "", "/Labs", "http://student.test/Labs?token=abc"},
		{"route query wins", "http://student.test/?tab=1&token=abc", "", "/Labs?tab=2", "http://student.test/Labs?tab=2&token=abc"},
		{"hash router", "http://student.test/#", "", "/Kanbas/Dashboard", "http://student.test/#/Kanbas/Dashboard"},
		{"hash router root", "http://student.test/#/", "", "/", "http://student.test/#/"},
		{"api to backend", "http://student.test", "http://api.test:4000", "/api/courses", "http://api.test:4000/api/courses"},
		{"api without backend", "http://student.test", "", "/api/courses", "http://student.test/api/courses"},
		{"absolute", "http://student.test/?token=abc", "", "https://github.com/x", "https://github.com/x?token=abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := newNavigator(t, browser.NavigatorConfig{BaseURL: tt.base, BackendURL: tt.backend})
			got, err := n.Resolve(tt.route)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewNavigatorDefaults(t *testing.T) {
	n := newNavigator(t, browser.NavigatorConfig{})
	cfg := n.Config()
	assert.Equal(t, browser.DefaultNavTimeout, cfg.NavTimeout)
	assert.Equal(t, browser.DefaultIdleTimeout, cfg.IdleTimeout)
	assert.Equal(t, browser.DefaultRetries, cfg.Retries)
	assert.NotEmpty(t, cfg.LoginPaths)

	_, err := browser.NewNavigator(browser.NavigatorConfig{BaseURL: "not a url"}, quiet)
	assert.Error(t, err)
}

func TestGotoRetries(t *testing.T) {
	page := browsertest.New(map[string]string{"/Labs": "<html><body>Labs</body></html>"})
	page.FailNavigation("/Labs", 2, errors.New("connection refused"))

	n := newNavigator(t, browser.NavigatorConfig{Backoff: time.Millisecond})
	var events []browser.NavEvent
	n.OnEvent = func(ev browser.NavEvent) { events = append(events, ev) }

	require.NoError(t, n.Goto(context.Background(), page, "/Labs"))
	assert.Equal(t, 3, page.VisitCount("/Labs"))
	require.Len(t, events, 2)
	assert.Equal(t, "retry", events[0].Kind)
	assert.Equal(t, 1, events[0].Attempt)
}

func TestGotoRetriesExhausted(t *testing.T) {
	page := browsertest.New(map[string]string{"/Labs": "<html></html>"})
	page.FailNavigation("/Labs", 5, errors.New("connection refused"))

	n := newNavigator(t, browser.NavigatorConfig{Backoff: time.Millisecond})
	err := n.Goto(context.Background(), page, "/Labs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, browser.DefaultRetries, page.VisitCount("/Labs"))
}

func TestGotoStopsOnCancel(t *testing.T) {
	page := browsertest.New(map[string]string{"/Labs": "<html></html>"})
	page.FailNavigation("/Labs", 5, errors.New("connection refused"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n := newNavigator(t, browser.NavigatorConfig{Backoff: time.Millisecond})
	err := n.Goto(ctx, page, "/Labs")
	require.Error(t, err)
	assert.LessOrEqual(t, page.VisitCount("/Labs"), 1)
}

func TestGotoLoginWall(t *testing.T) {
	page := browsertest.New(map[string]string{
		"/":                       "<html><body>Home</body></html>",
		"/Kanbas/Account/Signin": "<html><body><form><input type=password></form></body></html>",
		"/Kanbas/Dashboard":      "<html><body><h1>Dashboard</h1></body></html>",
	})
	page.LoginWall("/Kanbas/Dashboard", "/Kanbas/Account/Signin", "/")

	n := newNavigator(t, browser.NavigatorConfig{Backoff: time.Millisecond})
	var kinds []string
	n.OnEvent = func(ev browser.NavEvent) { kinds = append(kinds, ev.Kind) }

	require.NoError(t, n.Goto(context.Background(), page, "/Kanbas/Dashboard"))
	assert.Equal(t, "http://student.test/Kanbas/Dashboard", page.URL())
	assert.Equal(t, []string{"/Kanbas/Dashboard", "/", "/Kanbas/Dashboard"}, page.Visits)
	assert.Equal(t, []string{"login_wall"}, kinds)
}

func TestGotoLoginWallPersists(t *testing.T) {
	page := browsertest.New(map[string]string{
		"/":                       "<html><body>Home</body></html>",
		"/Kanbas/Account/Signin": "<html><body><form><input type=password></form></body></html>",
		"/Kanbas/Dashboard":      "<html><body><h1>Dashboard</h1></body></html>",
	})
	page.LoginWall("/Kanbas/Dashboard", "/Kanbas/Account/Signin", "/never-visited")

	n := newNavigator(t, browser.NavigatorConfig{Backoff: time.Millisecond})
	err := n.Goto(context.Background(), page, "/Kanbas/Dashboard")
	require.Error(t, err)
	assert.ErrorIs(t, err, browser.ErrLoginWall)
	assert.Contains(t, err.Error(), "login wall persists at http://student.test/Kanbas/Account/Signin")
	assert.Equal(t, []string{"/Kanbas/Dashboard", "/", "/Kanbas/Dashboard"}, page.Visits)
}

func TestGotoLoginRouteIsNotAWall(t *testing.T) {
	page := browsertest.New(map[string]string{
		"/Kanbas/Account/Signin": "<html><body></body></html>",
	})
	n := newNavigator(t, browser.NavigatorConfig{})
	require.NoError(t, n.Goto(context.Background(), page, "/Kanbas/Account/Signin"))
	assert.Equal(t, 1, page.VisitCount("/Kanbas/Account/Signin"))
}

func TestGotoIdleTimeoutProceeds(t *testing.T) {
	page := browsertest.New(map[string]string{"/": "<html></html>"})
	page.IdleError(browser.ErrTimeout)

	n := newNavigator(t, browser.NavigatorConfig{})
	var kinds []string
	n.OnEvent = func(ev browser.NavEvent) { kinds = append(kinds, ev.Kind) }
	require.NoError(t, n.Goto(context.Background(), page, "/"))
	assert.Equal(t, []string{"idle_timeout"}, kinds)

	page.IdleError(errors.New("target crashed"))
	assert.Error(t, n.Goto(context.Background(), page, "/"))
}

func TestIsLoginWall(t *testing.T) {
	n := newNavigator(t, browser.NavigatorConfig{})
	assert.True(t, n.IsLoginWall("http://student.test/Kanbas/Account/Signin"))
	assert.True(t, n.IsLoginWall("http://student.test/#/Kanbas/Account/Signin"))
	assert.True(t, n.IsLoginWall("http://student.test/login?next=/x"))
	assert.False(t, n.IsLoginWall("http://student.test/Kanbas/Dashboard"))
}
