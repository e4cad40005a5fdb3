// Package browsertest provides a scriptable browser.Page for tests of code
// that drives pages: failing navigations, redirects to a login wall and
// slow idle waits, with DOM queries served by an in-memory static page.
package browsertest

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/ormasoftchile/webgrade/pkg/browser"
	"github.com/ormasoftchile/webgrade/pkg/browser/static"
)

// Page wraps a static page with scripted navigation behavior.
type Page struct {
	*static.Page

	mu        sync.Mutex
	failures  map[string]error
	failCount map[string]int
	walls     []wall
	visited   map[string]bool
	idleErr   error
	panicOn   string

	// Visits records every Navigate call in order.
	Visits []string
}

type wall struct {
	path, landing, unlock string
}

// New serves pages (keyed by path) through a static page.
func New(pages map[string]string) *Page {
	return &Page{
		Page:      static.New(static.WithPages(pages)),
		failures:  map[string]error{},
		failCount: map[string]int{},
		visited:   map[string]bool{},
	}
}

// FailNavigation makes the next n navigations to path fail with err.
func (p *Page) FailNavigation(path string, n int, err error) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[path] = err
	p.failCount[path] = n
	return p
}

// LoginWall redirects navigations to path onto landing until unlock has been
// visited.
func (p *Page) LoginWall(path, landing, unlock string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.walls = append(p.walls, wall{path: path, landing: landing, unlock: unlock})
	return p
}

// IdleError makes WaitIdle return err.
func (p *Page) IdleError(err error) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idleErr = err
	return p
}

// PanicOnCount makes Count panic for selector.
func (p *Page) PanicOnCount(selector string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.panicOn = selector
	return p
}

// Navigate applies the script, then loads the resulting URL.
func (p *Page) Navigate(ctx context.Context, raw string, opts browser.NavigateOptions) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.Visits = append(p.Visits, u.Path)
	if p.failCount[u.Path] > 0 {
		p.failCount[u.Path]--
		err := p.failures[u.Path]
		p.mu.Unlock()
		if err == nil {
			err = fmt.Errorf("navigation to %s failed", u.Path)
		}
		return err
	}
	for _, w := range p.walls {
		if w.path == u.Path && !p.visited[w.unlock] {
			u.Path = w.landing
			break
		}
	}
	p.visited[u.Path] = true
	p.mu.Unlock()
	return p.Page.Navigate(ctx, u.String(), opts)
}

// WaitIdle returns the scripted idle error, if any.
func (p *Page) WaitIdle(ctx context.Context, timeout time.Duration) error {
	p.mu.Lock()
	err := p.idleErr
	p.mu.Unlock()
	if err != nil {
		return err
	}
	return p.Page.WaitIdle(ctx, timeout)
}

// Count panics for the scripted selector.
func (p *Page) Count(ctx context.Context, selector string) (int, error) {
	p.mu.Lock()
	panicOn := p.panicOn
	p.mu.Unlock()
	if panicOn != "" && selector == panicOn {
		panic("scripted panic in Count(" + selector + ")")
	}
	return p.Page.Count(ctx, selector)
}

// VisitCount returns how many times path was navigated to.
func (p *Page) VisitCount(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, v := range p.Visits {
		if v == path {
			n++
		}
	}
	return n
}
