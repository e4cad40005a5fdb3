package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/ormasoftchile/webgrade/pkg/browser"
	"github.com/ormasoftchile/webgrade/pkg/browser/chrome"
	"github.com/ormasoftchile/webgrade/pkg/browser/static"
)

// Driver names a browser.Page implementation.
type Driver string

const (
	DriverStatic Driver = "static"
	DriverChrome Driver = "chrome"
)

// Mode is how the browser is presented while grading.
type Mode string

const (
	ModeHeadless Mode = "headless"
	ModeHeaded   Mode = "headed"
	// ModeInteractive is a headed run followed live in the terminal UI.
	ModeInteractive Mode = "interactive"
)

// ParseDriver validates a driver name. Empty selects static.
func ParseDriver(s string) (Driver, error) {
	switch d := Driver(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return DriverStatic, nil
	case DriverStatic, DriverChrome:
		return d, nil
	}
	return "", fmt.Errorf("unknown driver %q (want static or chrome)", s)
}

// ParseMode validates a run mode. Empty selects headless.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeHeadless, nil
	case ModeHeadless, ModeHeaded, ModeInteractive:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q (want headed, headless or interactive)", s)
}

// OpenPage starts the page a run drives. The static driver has no window,
// so mode only affects chrome.
func OpenPage(ctx context.Context, driver Driver, mode Mode) (browser.Page, error) {
	switch driver {
	case DriverStatic, "":
		return static.New(), nil
	case DriverChrome:
		return chrome.Launch(ctx, chrome.Options{
			Headless: mode == ModeHeadless,
			Viewport: browser.DefaultViewport,
		})
	}
	return nil, fmt.Errorf("unknown driver %q", driver)
}
