// Package browsertest provides an in-memory browser.Driver backed by goquery.
// Pages are plain HTML documents; behaviour is added with handlers that mutate
// the document and emit network or console events, so harness components can
// be tested without a real browser.
package browsertest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/guldbach/google-ads-builder-sub001/pkg/browser"
	"github.com/guldbach/google-ads-builder-sub001/pkg/harness"
)

// ErrClosed is returned by a Page after Close.
var ErrClosed = errors.New("browsertest: page closed")

// PNG is what Screenshot returns.
var PNG = []byte("\x89PNG\r\n\x1a\nbrowsertest")

type clickHandler struct {
	loc harness.Locator
	fn  func(*Page)
}

// Page is a fake browser page. It implements browser.Driver.
type Page struct {
	mu sync.Mutex

	doc     *goquery.Document
	url     string
	initial string
	routes  map[string]string

	navErrs  map[string]error
	navDelay time.Duration

	clicks  []clickHandler
	keys    map[string][]func(*Page)
	scripts map[string]func(*goquery.Document) any

	subs         map[int]func(browser.Event)
	nextSub      int
	subscribeErr error
	nextRequest  int

	timers   []*time.Timer
	actions  []string
	closes   int
	closed   bool
	closeErr error
}

var _ browser.Driver = (*Page)(nil)

// NewPage returns a page showing doc. Navigations to URLs without a Route
// load doc again.
func NewPage(doc string) *Page {
	return &Page{
		doc:     mustParse(doc),
		initial: doc,
		routes:  map[string]string{},
		navErrs: map[string]error{},
		keys:    map[string][]func(*Page){},
		scripts: map[string]func(*goquery.Document) any{},
		subs:    map[int]func(browser.Event){},
	}
}

func mustParse(doc string) *goquery.Document {
	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		panic(fmt.Sprintf("browsertest: parse page: %v", err))
	}
	return d
}

// Route makes navigations to url load doc.
func (p *Page) Route(url, doc string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[url] = doc
	return p
}

// FailNavigation makes navigations to url fail with err.
func (p *Page) FailNavigation(url string, err error) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navErrs[url] = err
	return p
}

// DelayNavigation makes every navigation take d before the page loads.
func (p *Page) DelayNavigation(d time.Duration) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navDelay = d
	return p
}

// OnClick runs fn whenever an element matched by loc, or one of its
// descendants, is clicked.
func (p *Page) OnClick(loc harness.Locator, fn func(*Page)) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicks = append(p.clicks, clickHandler{loc: loc, fn: fn})
	return p
}

// OnKey runs fn whenever key is pressed.
func (p *Page) OnKey(key string, fn func(*Page)) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys[key] = append(p.keys[key], fn)
	return p
}

// OnEvaluate answers Evaluate(script) with the JSON encoding of fn(doc).
func (p *Page) OnEvaluate(script string, fn func(*goquery.Document) any) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts[script] = fn
	return p
}

// FailSubscribe makes Subscribe return err.
func (p *Page) FailSubscribe(err error) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribeErr = err
	return p
}

// FailClose makes Close return err.
func (p *Page) FailClose(err error) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeErr = err
	return p
}

// After runs fn once d has elapsed, unless the page is closed by then.
func (p *Page) After(d time.Duration, fn func(*Page)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.timers = append(p.timers, time.AfterFunc(d, func() {
		p.mu.Lock()
		closed := p.closed
		p.mu.Unlock()
		if !closed {
			fn(p)
		}
	}))
}

// Mutate runs fn against the live document.
func (p *Page) Mutate(fn func(doc *goquery.Document)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.doc)
}

// Update runs fn against every element matched by loc.
func (p *Page) Update(loc harness.Locator, fn func(*goquery.Selection)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range match(p.doc, loc) {
		fn(p.doc.FindNodes(n))
	}
}

// Request emits a request and its response, the way an XHR or fetch shows
// up on the wire.
func (p *Page) Request(method, url string, status int) {
	id := p.requestID()
	p.emit(browser.Event{Kind: browser.EventRequest, RequestID: id, URL: url, Method: method})
	p.emit(browser.Event{Kind: browser.EventResponse, RequestID: id, URL: url, Status: status})
}

// FailRequest emits a request that never gets a response.
func (p *Page) FailRequest(method, url, errText string) {
	id := p.requestID()
	p.emit(browser.Event{Kind: browser.EventRequest, RequestID: id, URL: url, Method: method})
	p.emit(browser.Event{Kind: browser.EventRequestFailed, RequestID: id, URL: url, ErrorText: errText})
}

// Console emits a console message.
func (p *Page) Console(level, text string) {
	p.emit(browser.Event{Kind: browser.EventConsole, Level: level, Text: text})
}

// PageError emits an uncaught exception.
func (p *Page) PageError(text string) {
	p.emit(browser.Event{Kind: browser.EventPageError, Level: "error", Text: text})
}

// URL returns the URL of the last successful navigation.
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// HTML renders the live document.
func (p *Page) HTML() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out, _ := goquery.OuterHtml(p.doc.Selection)
	return out
}

// Actions lists the interactions performed on the page, like "click #save".
func (p *Page) Actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.actions)
}

// Closes counts Close calls.
func (p *Page) Closes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}

// Subscribers counts active event subscriptions.
func (p *Page) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

func (p *Page) requestID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextRequest++
	return strconv.Itoa(p.nextRequest)
}

// emit must be called without p.mu held.
func (p *Page) emit(ev browser.Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	p.mu.Lock()
	handlers := make([]func(browser.Event), 0, len(p.subs))
	for _, id := range sortedKeys(p.subs) {
		handlers = append(handlers, p.subs[id])
	}
	p.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

func sortedKeys(m map[int]func(browser.Event)) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (p *Page) record(action string) {
	p.actions = append(p.actions, action)
}

func (p *Page) Navigate(ctx context.Context, url string, _ browser.LoadState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	navErr := p.navErrs[url]
	delay := p.navDelay
	doc, ok := p.routes[url]
	if !ok {
		doc = p.initial
	}
	p.mu.Unlock()

	id := p.requestID()
	p.emit(browser.Event{Kind: browser.EventRequest, RequestID: id, URL: url, Method: "GET"})
	if navErr != nil {
		p.emit(browser.Event{Kind: browser.EventRequestFailed, RequestID: id, URL: url, ErrorText: navErr.Error()})
		return navErr
	}
	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	p.mu.Lock()
	p.doc = mustParse(doc)
	p.url = url
	p.record("navigate " + url)
	p.mu.Unlock()
	p.emit(browser.Event{Kind: browser.EventResponse, RequestID: id, URL: url, Status: 200})
	return nil
}

func (p *Page) Query(ctx context.Context, loc harness.Locator) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	nodes := match(p.doc, loc)
	out := make([]browser.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &element{page: p, node: n, desc: describe(p.doc.FindNodes(n))})
	}
	return out, nil
}

func (p *Page) PressKey(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.record("press " + key)
	fns := slices.Clone(p.keys[key])
	p.mu.Unlock()
	for _, fn := range fns {
		fn(p)
	}
	return nil
}

func (p *Page) Evaluate(ctx context.Context, script string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	if fn, ok := p.scripts[script]; ok {
		return json.Marshal(fn(p.doc))
	}
	if script == browser.ScrollLockScript {
		return json.Marshal(scrollLocked(p.doc))
	}
	return nil, fmt.Errorf("browsertest: unsupported script %q", script)
}

func (p *Page) Subscribe(handler func(browser.Event)) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.subscribeErr != nil {
		return nil, p.subscribeErr
	}
	id := p.nextSub
	p.nextSub++
	p.subs[id] = handler
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}, nil
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	return slices.Clone(PNG), nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closes++
	p.closed = true
	for _, t := range p.timers {
		t.Stop()
	}
	p.timers = nil
	return p.closeErr
}

// within reports whether n or one of its ancestors is in set.
func within(n *html.Node, set []*html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if slices.Contains(set, cur) {
			return true
		}
	}
	return false
}

func describe(s *goquery.Selection) string {
	var b strings.Builder
	b.WriteString(goquery.NodeName(s))
	if id := s.AttrOr("id", ""); id != "" {
		b.WriteString("#" + id)
	}
	for _, class := range strings.Fields(s.AttrOr("class", "")) {
		b.WriteString("." + class)
	}
	if text := browser.NormalizeText(s.Text()); text != "" {
		if len(text) > 30 {
			text = text[:30] + "..."
		}
		b.WriteString(" " + strconv.Quote(text))
	}
	return b.String()
}
