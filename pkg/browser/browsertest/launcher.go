package browsertest

import (
	"context"
	"slices"
	"sync"

	"github.com/guldbach/google-ads-builder-sub001/pkg/browser"
)

// Launcher hands out fake pages. It implements browser.Launcher.
type Launcher struct {
	mu      sync.Mutex
	factory func() *Page
	err     error
	pages   []*Page
	options []browser.LaunchOptions
}

var _ browser.Launcher = (*Launcher)(nil)

// NewLauncher returns a launcher that builds a fresh page per launch.
func NewLauncher(factory func() *Page) *Launcher {
	return &Launcher{factory: factory}
}

// Serve returns a launcher that always hands out p.
func Serve(p *Page) *Launcher {
	return NewLauncher(func() *Page { return p })
}

// Fail makes every later launch fail with err.
func (l *Launcher) Fail(err error) *Launcher {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
	return l
}

func (l *Launcher) Name() string {
	return "browsertest"
}

func (l *Launcher) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.options = append(l.options, opts)
	if l.err != nil {
		return nil, l.err
	}
	p := l.factory()
	l.pages = append(l.pages, p)
	return p, nil
}

// Pages returns every page launched so far.
func (l *Launcher) Pages() []*Page {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.pages)
}

// Options returns the options of every launch attempt.
func (l *Launcher) Options() []browser.LaunchOptions {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.options)
}
