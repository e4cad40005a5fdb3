// Package browser defines the page capability the grading checks run against
// and the navigation policy shared by every check: URL resolution, bounded
// retry, login-wall recovery and idle waiting.
package browser

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTimeout is returned when a browser operation exceeds its budget.
	ErrTimeout = errors.New("browser: timeout")
	// ErrNotFound is returned when an indexed element does not exist.
	ErrNotFound = errors.New("browser: element not found")
	// ErrLoginWall is returned when a route still lands on a login page
	// after the session has been primed.
	ErrLoginWall = errors.New("browser: login wall")
)

// WaitUntil names the lifecycle event a navigation waits for.
type WaitUntil string

const (
	WaitLoad             WaitUntil = "load"
	WaitDOMContentLoaded WaitUntil = "domcontentloaded"
	WaitNetworkIdle      WaitUntil = "networkidle"
)

// NavigateOptions bounds a single navigation.
type NavigateOptions struct {
	WaitUntil WaitUntil
	Timeout   time.Duration
}

// Viewport is the page size in CSS pixels.
type Viewport struct {
	Width  int
	Height int
}

// DefaultViewport is the desktop size pages open with.
var DefaultViewport = Viewport{Width: 1280, Height: 800}

// Dialog is a JavaScript alert, confirm, prompt or beforeunload.
type Dialog struct {
	Type    string
	Message string
}

// DialogHandler decides whether to accept a dialog.
type DialogHandler func(Dialog) bool

// Page is a single live browser tab. Elements are addressed by a CSS
// selector and the zero-based index among its matches.
type Page interface {
	Navigate(ctx context.Context, url string, opts NavigateOptions) error
	URL() string
	// WaitIdle returns ErrTimeout if the page is still busy after timeout.
	WaitIdle(ctx context.Context, timeout time.Duration) error

	Count(ctx context.Context, selector string) (int, error)
	Attribute(ctx context.Context, selector string, index int, name string) (string, bool, error)
	Text(ctx context.Context, selector string, index int) (string, error)
	ComputedStyle(ctx context.Context, selector string, index int, props ...string) (map[string]string, error)
	Visible(ctx context.Context, selector string, index int) (bool, error)
	Click(ctx context.Context, selector string, index int) error

	SetViewport(ctx context.Context, v Viewport) error
	OnDialog(h DialogHandler)
	Close() error
}

// AcceptAll is a DialogHandler that accepts every dialog.
func AcceptAll(Dialog) bool { return true }
