// Package static implements browser.Page over HTML fetched with net/http (or
// read from disk, or served from memory) and parsed in-process. It does not
// run JavaScript; computed styles come from inline styles, <style> blocks and
// linked stylesheets, including width media queries for the current viewport.
package static

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/ormasoftchile/webgrade/pkg/browser"
)

// Option configures a Page.
type Option func(*Page)

// WithHTTPClient sets the client used for http(s) URLs.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Page) { p.client = c }
}

// WithPages serves documents from memory, keyed by URL path. Hash-router
// URLs are looked up by the fragment path first. Any URL without an entry
// fails to load.
func WithPages(pages map[string]string) Option {
	return func(p *Page) { p.pages = pages }
}

// WithViewport sets the initial viewport.
func WithViewport(v browser.Viewport) Option {
	return func(p *Page) { p.viewport = v }
}

// Page is a static, script-free browser.Page.
type Page struct {
	client *http.Client
	pages  map[string]string

	mu       sync.Mutex
	viewport browser.Viewport
	dialog   browser.DialogHandler
	url      *url.URL
	doc      *goquery.Document
	rules    []styleRule
}

var _ browser.Page = (*Page)(nil)

// New returns a blank page.
func New(opts ...Option) *Page {
	p := &Page{
		client:   http.DefaultClient,
		viewport: browser.DefaultViewport,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Navigate loads rawURL and its stylesheets.
func (p *Page) Navigate(ctx context.Context, rawURL string, opts browser.NavigateOptions) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	return p.load(ctx, u)
}

func (p *Page) load(ctx context.Context, u *url.URL) error {
	body, final, err := p.fetch(ctx, u)
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse %s: %w", final, err)
	}

	var sheets []string
	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		sheets = append(sheets, s.Text())
	})
	doc.Find(`link[rel="stylesheet"][href]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		ref, err := final.Parse(href)
		if err != nil {
			return
		}
		css, _, err := p.fetch(ctx, ref)
		if err != nil {
			return
		}
		sheets = append(sheets, string(css))
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = final
	p.doc = doc
	p.rules = parseStylesheets(sheets)
	return nil
}

// fetch returns the document body and the URL it was served from after
// redirects.
func (p *Page) fetch(ctx context.Context, u *url.URL) ([]byte, *url.URL, error) {
	if p.pages != nil {
		body, ok := p.lookup(u)
		if !ok {
			return nil, nil, fmt.Errorf("GET %s: 404 not found", u)
		}
		return []byte(body), u, nil
	}

	switch u.Scheme {
	case "file":
		body, err := os.ReadFile(u.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", u.Path, err)
		}
		return body, u, nil
	case "http", "https":
	default:
		return nil, nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, fmt.Errorf("GET %s: %w", u, browser.ErrTimeout)
		}
		return nil, nil, fmt.Errorf("GET %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return nil, nil, fmt.Errorf("GET %s: %s", u, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", u, err)
	}
	final := resp.Request.URL
	if u.Fragment != "" {
		final.Fragment = u.Fragment
	}
	return body, final, nil
}

func (p *Page) lookup(u *url.URL) (string, bool) {
	if strings.HasPrefix(u.Fragment, "/") {
		path, _, _ := strings.Cut(u.Fragment, "?")
		if body, ok := p.pages[path]; ok {
			return body, true
		}
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	body, ok := p.pages[path]
	return body, ok
}

// URL returns the current document URL.
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.url == nil {
		return "about:blank"
	}
	return p.url.String()
}

// WaitIdle returns immediately: a static document has no pending work.
func (p *Page) WaitIdle(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func (p *Page) selection(selector string) (*goquery.Selection, error) {
	if _, err := cascadia.Compile(selector); err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	p.mu.Lock()
	doc := p.doc
	p.mu.Unlock()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}
	return doc.Find(selector), nil
}

func (p *Page) element(selector string, index int) (*goquery.Selection, error) {
	sel, err := p.selection(selector)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= sel.Length() {
		return nil, fmt.Errorf("%s[%d]: %w", selector, index, browser.ErrNotFound)
	}
	return sel.Eq(index), nil
}

// Count returns the number of elements matching selector.
func (p *Page) Count(_ context.Context, selector string) (int, error) {
	sel, err := p.selection(selector)
	if err != nil {
		return 0, err
	}
	return sel.Length(), nil
}

// Attribute returns an attribute of the index-th match.
func (p *Page) Attribute(_ context.Context, selector string, index int, name string) (string, bool, error) {
	el, err := p.element(selector, index)
	if err != nil {
		return "", false, err
	}
	v, ok := el.Attr(name)
	return v, ok, nil
}

var spaces = regexp.MustCompile(`\s+`)

// Text returns the whitespace-collapsed text of the index-th match. Inputs
// report their value, as a rendered submit button would.
func (p *Page) Text(_ context.Context, selector string, index int) (string, error) {
	el, err := p.element(selector, index)
	if err != nil {
		return "", err
	}
	if goquery.NodeName(el) == "input" {
		return el.AttrOr("value", ""), nil
	}
	return strings.TrimSpace(spaces.ReplaceAllString(el.Text(), " ")), nil
}

// ComputedStyle resolves props for the index-th match.
func (p *Page) ComputedStyle(_ context.Context, selector string, index int, props ...string) (map[string]string, error) {
	el, err := p.element(selector, index)
	if err != nil {
		return nil, err
	}
	c := p.cascade()
	style := c.computed(el.Nodes[0])
	out := make(map[string]string, len(props))
	for _, prop := range props {
		out[prop] = style[strings.ToLower(prop)]
	}
	return out, nil
}

// Visible reports whether the index-th match would be rendered.
func (p *Page) Visible(_ context.Context, selector string, index int) (bool, error) {
	el, err := p.element(selector, index)
	if err != nil {
		return false, err
	}
	if goquery.NodeName(el) == "input" && strings.EqualFold(el.AttrOr("type", ""), "hidden") {
		return false, nil
	}
	c := p.cascade()
	n := el.Nodes[0]
	if v := c.computed(n)["visibility"]; v == "hidden" || v == "collapse" {
		return false, nil
	}
	for ; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if hasAttr(n, "hidden") || c.computed(n)["display"] == "none" {
			return false, nil
		}
	}
	return true, nil
}

var (
	dialogCall   = regexp.MustCompile(`\b(alert|confirm|prompt)\(\s*['"]([^'"]*)['"]`)
	locationCall = regexp.MustCompile(`location(?:\.href)?\s*=\s*['"]([^'"]+)['"]`)
)

// Click follows what the index-th match would do without scripts: an inline
// dialog call fires the dialog handler, a link or location assignment
// navigates, and a submit control loads its form's action.
func (p *Page) Click(ctx context.Context, selector string, index int) error {
	el, err := p.element(selector, index)
	if err != nil {
		return err
	}
	p.mu.Lock()
	current := p.url
	handler := p.dialog
	p.mu.Unlock()

	onclick := el.AttrOr("onclick", "")
	if m := dialogCall.FindStringSubmatch(onclick); m != nil {
		accepted := true
		if handler != nil {
			accepted = handler(browser.Dialog{Type: m[1], Message: m[2]})
		}
		if !accepted && m[1] == "confirm" {
			return nil
		}
	}
	if m := locationCall.FindStringSubmatch(onclick); m != nil {
		return p.follow(ctx, current, m[1])
	}

	if a := el.Closest("a[href]"); a.Length() > 0 {
		href := a.AttrOr("href", "")
		if strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return nil
		}
		return p.follow(ctx, current, href)
	}

	if isSubmit(el) {
		form := el.Closest("form")
		if form.Length() == 0 {
			return nil
		}
		target, err := current.Parse(form.AttrOr("action", ""))
		if err != nil {
			return fmt.Errorf("form action: %w", err)
		}
		if strings.EqualFold(form.AttrOr("method", "get"), "get") {
			q := url.Values{}
			form.Find("input[name], select[name], textarea[name]").Each(func(_ int, f *goquery.Selection) {
				q.Set(f.AttrOr("name", ""), f.AttrOr("value", ""))
			})
			target.RawQuery = q.Encode()
		}
		return p.load(ctx, target)
	}
	return nil
}

func (p *Page) follow(ctx context.Context, current *url.URL, href string) error {
	target, err := current.Parse(href)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", href, err)
	}
	if target.Scheme == current.Scheme && target.Host == current.Host &&
		target.Path == current.Path && target.RawQuery == current.RawQuery &&
		!strings.HasPrefix(target.Fragment, "/") {
		p.mu.Lock()
		p.url = target
		p.mu.Unlock()
		return nil
	}
	return p.load(ctx, target)
}

func isSubmit(el *goquery.Selection) bool {
	switch goquery.NodeName(el) {
	case "button":
		t := strings.ToLower(el.AttrOr("type", "submit"))
		return t == "submit"
	case "input":
		t := strings.ToLower(el.AttrOr("type", ""))
		return t == "submit" || t == "image"
	}
	return false
}

// SetViewport changes the width media queries are evaluated against.
func (p *Page) SetViewport(_ context.Context, v browser.Viewport) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.viewport = v
	return nil
}

// OnDialog registers the handler for inline dialog calls.
func (p *Page) OnDialog(h browser.DialogHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialog = h
}

// Close releases the document.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc = nil
	p.rules = nil
	return nil
}
