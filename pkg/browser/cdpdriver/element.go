package cdpdriver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/guldbach/google-ads-builder-sub001/pkg/browser"
)

type element struct {
	driver *Driver
	ref    string
	desc   string
}

func (e *element) selector() string {
	return fmt.Sprintf(`[%s="%s"]`, RefAttr, e.ref)
}

// call applies fn to the tagged node with args and decodes its result into out.
func (e *element) call(ctx context.Context, fn string, out any, args ...any) error {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return err
	}
	script := fmt.Sprintf(`(() => {
  const el = document.querySelector(%q);
  if (!el) return {stale: true};
  return {value: (%s).apply(el, %s)};
})()`, e.selector(), fn, argsJSON)

	var res struct {
		Stale bool            `json:"stale"`
		Value json.RawMessage `json:"value"`
	}
	if err := e.driver.run(ctx, chromedp.Evaluate(script, &res)); err != nil {
		return err
	}
	if res.Stale {
		return fmt.Errorf("%s: %w", e.desc, ErrStale)
	}
	if out == nil || len(res.Value) == 0 {
		return nil
	}
	return json.Unmarshal(res.Value, out)
}

func (e *element) Click(ctx context.Context) error {
	return e.driver.run(ctx, chromedp.Click(e.selector(), chromedp.ByQuery, chromedp.AtLeast(0)))
}

func (e *element) Hover(ctx context.Context) error {
	return e.call(ctx, `function() {
  for (const type of ['mouseover', 'mouseenter', 'mousemove']) {
    this.dispatchEvent(new MouseEvent(type, {bubbles: type !== 'mouseenter', view: window}));
  }
}`, nil)
}

const selectContentsJS = `function() {
  if (typeof this.select === 'function') { this.select(); return; }
  const range = document.createRange();
  range.selectNodeContents(this);
  const sel = window.getSelection();
  sel.removeAllRanges();
  sel.addRange(range);
}`

// Fill types value over the current contents, so readonly fields keep
// their value the way they would for a user.
func (e *element) Fill(ctx context.Context, value string) error {
	if err := e.driver.run(ctx, chromedp.Focus(e.selector(), chromedp.ByQuery, chromedp.AtLeast(0))); err != nil {
		return err
	}
	if err := e.call(ctx, selectContentsJS, nil); err != nil {
		return err
	}
	if value == "" {
		return e.driver.run(ctx, chromedp.KeyEvent(kb.Backspace))
	}
	return e.driver.run(ctx, chromedp.KeyEvent(value))
}

func (e *element) Select(ctx context.Context, values ...string) error {
	var matched int
	err := e.call(ctx, `function(values) {
  if (this.tagName !== 'SELECT') return -1;
  let n = 0;
  for (const opt of this.options) {
    const text = opt.textContent.replace(/\s+/g, ' ').trim();
    opt.selected = values.includes(opt.value) || values.includes(text);
    if (opt.selected) n++;
  }
  this.dispatchEvent(new Event('input', {bubbles: true}));
  this.dispatchEvent(new Event('change', {bubbles: true}));
  return n;
}`, &matched, values)
	if err != nil {
		return err
	}
	switch {
	case matched < 0:
		return fmt.Errorf("select %s: element is not a select", e.desc)
	case matched == 0:
		return fmt.Errorf("select %s: no option matches %v", e.desc, values)
	}
	return nil
}

func (e *element) Press(ctx context.Context, key string) error {
	k, err := Key(key)
	if err != nil {
		return err
	}
	return e.driver.run(ctx,
		chromedp.Focus(e.selector(), chromedp.ByQuery, chromedp.AtLeast(0)),
		chromedp.KeyEvent(k),
	)
}

func (e *element) Value(ctx context.Context) (string, error) {
	var v string
	err := e.call(ctx, `function() {
  if ('value' in this) return String(this.value);
  return this.isContentEditable ? this.textContent : '';
}`, &v)
	return v, err
}

func (e *element) Text(ctx context.Context) (string, error) {
	var v string
	if err := e.call(ctx, `function() { return this.textContent; }`, &v); err != nil {
		return "", err
	}
	return browser.NormalizeText(v), nil
}

func (e *element) Visible(ctx context.Context) (bool, error) {
	var v bool
	err := e.call(ctx, browser.VisibleScript, &v)
	return v, err
}

func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	var v *string
	if err := e.call(ctx, `function(name) { return this.getAttribute(name); }`, &v, name); err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *element) Describe() string {
	return e.desc
}
