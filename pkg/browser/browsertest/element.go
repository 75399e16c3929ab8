package browsertest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/guldbach/google-ads-builder-sub001/pkg/browser"
)

// ErrDetached is returned when an element handle outlived its node.
var ErrDetached = errors.New("browsertest: element is detached from the document")

type element struct {
	page *Page
	node *html.Node
	desc string
}

var _ browser.Element = (*element)(nil)

// sel must be called with page.mu held.
func (e *element) sel() (*goquery.Selection, error) {
	if e.page.closed {
		return nil, ErrClosed
	}
	if !attached(e.page.doc, e.node) {
		return nil, fmt.Errorf("%s: %w", e.desc, ErrDetached)
	}
	return e.page.doc.FindNodes(e.node), nil
}

func (e *element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := e.page
	p.mu.Lock()
	s, err := e.sel()
	if err != nil {
		p.mu.Unlock()
		return err
	}
	if !visible(s) {
		p.mu.Unlock()
		return fmt.Errorf("click %s: element is not visible", e.desc)
	}
	p.record("click " + e.desc)
	if _, disabled := s.Attr("disabled"); disabled {
		p.mu.Unlock()
		return nil
	}
	var fns []func(*Page)
	for _, h := range p.clicks {
		if within(e.node, match(p.doc, h.loc)) {
			fns = append(fns, h.fn)
		}
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(p)
	}
	return nil
}

func (e *element) Hover(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	s, err := e.sel()
	if err != nil {
		return err
	}
	if !visible(s) {
		return fmt.Errorf("hover %s: element is not visible", e.desc)
	}
	e.page.record("hover " + e.desc)
	return nil
}

// Fill behaves like typing: readonly and disabled fields silently keep
// their value.
func (e *element) Fill(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	s, err := e.sel()
	if err != nil {
		return err
	}
	if !visible(s) {
		return fmt.Errorf("fill %s: element is not visible", e.desc)
	}
	e.page.record("fill " + e.desc)
	_, readonly := s.Attr("readonly")
	_, disabled := s.Attr("disabled")
	if readonly || disabled {
		return nil
	}
	switch {
	case goquery.NodeName(s) == "input":
		s.SetAttr("value", value)
	case goquery.NodeName(s) == "textarea", s.AttrOr("contenteditable", "false") != "false":
		s.SetText(value)
	default:
		return fmt.Errorf("fill %s: element is not editable", e.desc)
	}
	return nil
}

func (e *element) Select(ctx context.Context, values ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	s, err := e.sel()
	if err != nil {
		return err
	}
	if goquery.NodeName(s) != "select" {
		return fmt.Errorf("select %s: element is not a select", e.desc)
	}
	e.page.record("select " + e.desc)

	matched := false
	s.Find("option").Each(func(_ int, opt *goquery.Selection) {
		text := browser.NormalizeText(opt.Text())
		if slices.Contains(values, optionValue(opt)) || slices.Contains(values, text) {
			opt.SetAttr("selected", "")
			matched = true
			return
		}
		opt.RemoveAttr("selected")
	})
	if !matched {
		return fmt.Errorf("select %s: no option matches %s", e.desc, strings.Join(values, ", "))
	}
	return nil
}

func (e *element) Press(ctx context.Context, key string) error {
	return e.page.PressKey(ctx, key)
}

func (e *element) Value(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	s, err := e.sel()
	if err != nil {
		return "", err
	}
	switch goquery.NodeName(s) {
	case "input":
		return s.AttrOr("value", ""), nil
	case "textarea":
		return s.Text(), nil
	case "select":
		opt := s.Find("option[selected]").First()
		if opt.Length() == 0 {
			opt = s.Find("option").First()
		}
		if opt.Length() == 0 {
			return "", nil
		}
		return optionValue(opt), nil
	}
	if s.AttrOr("contenteditable", "false") != "false" {
		return s.Text(), nil
	}
	return "", nil
}

func optionValue(opt *goquery.Selection) string {
	if v, ok := opt.Attr("value"); ok {
		return v
	}
	return browser.NormalizeText(opt.Text())
}

func (e *element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	s, err := e.sel()
	if err != nil {
		return "", err
	}
	return browser.NormalizeText(s.Text()), nil
}

func (e *element) Visible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	s, err := e.sel()
	if err != nil {
		return false, err
	}
	return visible(s), nil
}

func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	s, err := e.sel()
	if err != nil {
		return "", false, err
	}
	v, ok := s.Attr(name)
	return v, ok, nil
}

func (e *element) Describe() string {
	return e.desc
}
