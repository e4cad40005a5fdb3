// Package chrome implements browser.Page on a real Chrome instance driven
// over the DevTools protocol.
package chrome

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/ormasoftchile/webgrade/pkg/browser"
)

// Options configures the Chrome process.
type Options struct {
	Headless bool
	ExecPath string // empty uses the chromedp lookup
	Viewport browser.Viewport
	// SlowMo pauses after each click, for headed runs someone is watching.
	SlowMo time.Duration
}

// Page is a single Chrome tab.
type Page struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	slowMo      time.Duration

	mu     sync.Mutex
	dialog browser.DialogHandler
}

var _ browser.Page = (*Page)(nil)

// Launch starts Chrome and opens a tab. Cancelling parent closes the browser.
func Launch(parent context.Context, opts Options) (*Page, error) {
	if opts.Viewport.Width == 0 {
		opts.Viewport = browser.DefaultViewport
	}
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.WindowSize(opts.Viewport.Width, opts.Viewport.Height),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	p := &Page{ctx: ctx, cancel: cancel, allocCancel: allocCancel, slowMo: opts.SlowMo}
	chromedp.ListenTarget(ctx, p.onEvent)

	if err := chromedp.Run(ctx,
		page.Enable(),
		chromedp.EmulateViewport(int64(opts.Viewport.Width), int64(opts.Viewport.Height)),
	); err != nil {
		p.Close()
		return nil, fmt.Errorf("launch chrome: %w", err)
	}
	return p, nil
}

func (p *Page) onEvent(ev any) {
	e, ok := ev.(*page.EventJavascriptDialogOpening)
	if !ok {
		return
	}
	p.mu.Lock()
	h := p.dialog
	p.mu.Unlock()
	accept := true
	if h != nil {
		accept = h(browser.Dialog{Type: string(e.Type), Message: e.Message})
	}
	// The listener runs on the event loop; acting on the tab must not block it.
	go func() {
		_ = chromedp.Run(p.ctx, page.HandleJavaScriptDialog(accept))
	}()
}

// run executes actions bounded by ctx and timeout, mapping deadline expiry
// to browser.ErrTimeout.
func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	tctx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if timeout > 0 {
		tctx, cancel = context.WithTimeout(tctx, timeout)
		defer cancel()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(tctx, actions...)
	if err != nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", browser.ErrTimeout, err)
	}
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Navigate loads url and waits for the load event.
func (p *Page) Navigate(ctx context.Context, url string, opts browser.NavigateOptions) error {
	actions := []chromedp.Action{chromedp.Navigate(url)}
	if opts.WaitUntil == browser.WaitNetworkIdle {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			return p.waitIdle(ctx)
		}))
	}
	return p.run(ctx, opts.Timeout, actions...)
}

// URL returns the tab's current location.
func (p *Page) URL() string {
	var u string
	if err := chromedp.Run(p.ctx, chromedp.Location(&u)); err != nil {
		return ""
	}
	return u
}

// WaitIdle waits until the document is complete and no new resources have
// started loading for half a second.
func (p *Page) WaitIdle(ctx context.Context, timeout time.Duration) error {
	return p.run(ctx, timeout, chromedp.ActionFunc(p.waitIdle))
}

const idleQuiet = 500 * time.Millisecond

func (p *Page) waitIdle(ctx context.Context) error {
	last, stableSince := -1, time.Now()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		var state struct {
			Ready     string `json:"ready"`
			Resources int    `json:"resources"`
		}
		if err := chromedp.Evaluate(`({ready: document.readyState, resources: performance.getEntriesByType("resource").length})`, &state).Do(ctx); err != nil {
			return err
		}
		if state.Resources != last {
			last, stableSince = state.Resources, time.Now()
		}
		if state.Ready == "complete" && time.Since(stableSince) >= idleQuiet {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// elementResult is what the element scripts return.
type elementResult struct {
	Found bool              `json:"found"`
	Has   bool              `json:"has"`
	Value string            `json:"value"`
	Bool  bool              `json:"bool"`
	Style map[string]string `json:"style"`
}

// evalElement runs body with `el` bound to the index-th match of selector.
func (p *Page) evalElement(ctx context.Context, selector string, index int, body string, args ...any) (elementResult, error) {
	sel, _ := json.Marshal(selector)
	extra, _ := json.Marshal(args)
	script := fmt.Sprintf(`(function(sel, i, args) {
  const el = document.querySelectorAll(sel)[i];
  if (!el) return {found: false};
  %s
})(%s, %d, %s)`, body, sel, index, extra)

	var res elementResult
	if err := p.run(ctx, 0, chromedp.Evaluate(script, &res)); err != nil {
		return res, fmt.Errorf("%s[%d]: %w", selector, index, err)
	}
	if !res.Found {
		return res, fmt.Errorf("%s[%d]: %w", selector, index, browser.ErrNotFound)
	}
	return res, nil
}

// Count returns the number of elements matching selector.
func (p *Page) Count(ctx context.Context, selector string) (int, error) {
	sel, _ := json.Marshal(selector)
	var n int
	if err := p.run(ctx, 0, chromedp.Evaluate(fmt.Sprintf(`document.querySelectorAll(%s).length`, sel), &n)); err != nil {
		return 0, fmt.Errorf("count %s: %w", selector, err)
	}
	return n, nil
}

// Attribute returns an attribute of the index-th match.
func (p *Page) Attribute(ctx context.Context, selector string, index int, name string) (string, bool, error) {
	res, err := p.evalElement(ctx, selector, index,
		`return {found: true, has: el.hasAttribute(args[0]), value: el.getAttribute(args[0]) || ""};`, name)
	if err != nil {
		return "", false, err
	}
	return res.Value, res.Has, nil
}

// Text returns the rendered text of the index-th match; inputs report their
// value.
func (p *Page) Text(ctx context.Context, selector string, index int) (string, error) {
	res, err := p.evalElement(ctx, selector, index,
		`return {found: true, value: (el.tagName === "INPUT" ? el.value : el.innerText || el.textContent || "").trim()};`)
	if err != nil {
		return "", err
	}
	return res.Value, nil
}

// ComputedStyle reads props from getComputedStyle.
func (p *Page) ComputedStyle(ctx context.Context, selector string, index int, props ...string) (map[string]string, error) {
	res, err := p.evalElement(ctx, selector, index, `
  const cs = getComputedStyle(el);
  const style = {};
  for (const prop of args[0]) style[prop] = cs.getPropertyValue(prop);
  return {found: true, style: style};`, props)
	if err != nil {
		return nil, err
	}
	return res.Style, nil
}

// Visible reports whether the element has a box and is not hidden.
func (p *Page) Visible(ctx context.Context, selector string, index int) (bool, error) {
	res, err := p.evalElement(ctx, selector, index, `
  const cs = getComputedStyle(el);
  const rect = el.getBoundingClientRect();
  return {found: true, bool: cs.display !== "none" && cs.visibility !== "hidden" && rect.width > 0 && rect.height > 0};`)
	if err != nil {
		return false, err
	}
	return res.Bool, nil
}

// Click scrolls the element into view and clicks it.
func (p *Page) Click(ctx context.Context, selector string, index int) error {
	if _, err := p.evalElement(ctx, selector, index,
		`el.scrollIntoView({block: "center"}); el.click(); return {found: true};`); err != nil {
		return err
	}
	if p.slowMo > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.slowMo):
		}
	}
	return nil
}

// SetViewport resizes the emulated screen.
func (p *Page) SetViewport(ctx context.Context, v browser.Viewport) error {
	return p.run(ctx, 0, chromedp.EmulateViewport(int64(v.Width), int64(v.Height)))
}

// OnDialog registers the dialog handler. Without one, dialogs are accepted.
func (p *Page) OnDialog(h browser.DialogHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialog = h
}

// Close shuts down the tab and the browser process.
func (p *Page) Close() error {
	p.cancel()
	p.allocCancel()
	return nil
}
