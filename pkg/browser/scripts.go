package browser

import (
	"strings"
	"unicode"
)

// ImplicitRoles maps tag names (and "input:<type>") to their implicit ARIA
// role. Elements with an explicit role attribute use that instead.
var ImplicitRoles = map[string]string{
	"a":              "link",
	"article":        "article",
	"aside":          "complementary",
	"button":         "button",
	"dialog":         "dialog",
	"form":           "form",
	"h1":             "heading",
	"h2":             "heading",
	"h3":             "heading",
	"h4":             "heading",
	"h5":             "heading",
	"h6":             "heading",
	"img":            "img",
	"input":          "textbox",
	"input:button":   "button",
	"input:checkbox": "checkbox",
	"input:email":    "textbox",
	"input:image":    "button",
	"input:number":   "spinbutton",
	"input:radio":    "radio",
	"input:range":    "slider",
	"input:reset":    "button",
	"input:search":   "searchbox",
	"input:submit":   "button",
	"input:tel":      "textbox",
	"input:text":     "textbox",
	"input:url":      "textbox",
	"li":             "listitem",
	"main":           "main",
	"nav":            "navigation",
	"ol":             "list",
	"option":         "option",
	"progress":       "progressbar",
	"section":        "region",
	"select":         "combobox",
	"table":          "table",
	"tbody":          "rowgroup",
	"td":             "cell",
	"textarea":       "textbox",
	"th":             "columnheader",
	"thead":          "rowgroup",
	"tr":             "row",
	"ul":             "list",
}

// NormalizeText collapses whitespace runs and trims, the way accessible names
// and text locators compare strings.
func NormalizeText(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// LocatorScript resolves a harness.Locator (as JSON) against the document.
// It is called with (locator, ImplicitRoles) and returns matching elements
// in document order. The browsertest fake implements the same rules in Go.
const LocatorScript = `(loc, roles) => {
  const norm = s => (s || '').replace(/\s+/g, ' ').trim();
  const roleOf = el => {
    const explicit = norm(el.getAttribute('role'));
    if (explicit) return explicit.split(' ')[0];
    const tag = el.tagName.toLowerCase();
    if (tag === 'input') {
      const type = (el.getAttribute('type') || 'text').toLowerCase();
      if (type === 'hidden') return '';
      return roles['input:' + type] || roles['input'] || '';
    }
    if (tag === 'a') return el.hasAttribute('href') ? roles['a'] : '';
    if (tag === 'select') return (el.multiple || el.size > 1) ? 'listbox' : roles['select'];
    return roles[tag] || '';
  };
  const nameOf = el => {
    const aria = norm(el.getAttribute('aria-label'));
    if (aria) return aria;
    const by = el.getAttribute('aria-labelledby');
    if (by) {
      const text = norm(by.split(/\s+/).map(id => {
        const n = document.getElementById(id);
        return n ? n.textContent : '';
      }).join(' '));
      if (text) return text;
    }
    const tag = el.tagName.toLowerCase();
    if (tag === 'input' || tag === 'textarea' || tag === 'select') {
      const type = (el.getAttribute('type') || '').toLowerCase();
      if (['button', 'submit', 'reset'].includes(type)) return norm(el.getAttribute('value'));
      if (el.id) {
        const label = document.querySelector('label[for="' + CSS.escape(el.id) + '"]');
        if (label && norm(label.textContent)) return norm(label.textContent);
      }
      const wrap = el.closest('label');
      if (wrap && norm(wrap.textContent)) return norm(wrap.textContent);
      const placeholder = norm(el.getAttribute('placeholder'));
      if (placeholder) return placeholder;
      return norm(el.getAttribute('title'));
    }
    if (tag === 'img') return norm(el.getAttribute('alt'));
    const text = norm(el.textContent);
    if (text) return text;
    return norm(el.getAttribute('title'));
  };
  const skipped = new Set(['SCRIPT', 'STYLE', 'NOSCRIPT', 'TEMPLATE']);
  const all = [document.body, ...document.body.querySelectorAll('*')];
  if (loc.role) {
    const name = norm(loc.name);
    return all.filter(el => roleOf(el) === loc.role && (!name || nameOf(el) === name));
  }
  if (loc.text) {
    const want = norm(loc.text);
    const matches = el => {
      const t = norm(el.textContent);
      return loc.exact ? t === want : t.includes(want);
    };
    return all.filter(el => !skipped.has(el.tagName) && matches(el) &&
      !Array.from(el.children).some(c => !skipped.has(c.tagName) && matches(c)));
  }
  if (loc.attr) {
    return all.filter(el => {
      if (!el.hasAttribute(loc.attr)) return false;
      const v = el.getAttribute(loc.attr);
      switch (loc.op) {
        case 'exists': return true;
        case 'equals': return v === loc.value;
        case 'contains': return v.includes(loc.value);
        case 'prefix': return v.startsWith(loc.value);
        case 'suffix': return v.endsWith(loc.value);
        case 'word': return v.split(/\s+/).includes(loc.value);
      }
      return false;
    });
  }
  return [];
}`

// ScrollLockScript reports whether the page currently blocks body scrolling,
// the marker slide-in panels set while open.
const ScrollLockScript = `() => {
  const body = document.body, root = document.documentElement;
  if (body.classList.contains('overflow-hidden')) return true;
  return getComputedStyle(body).overflow === 'hidden' || getComputedStyle(root).overflow === 'hidden';
}`

// VisibleScript reports whether the element bound to this is rendered.
const VisibleScript = `function() {
  const style = getComputedStyle(this);
  if (style.visibility === 'hidden' || style.display === 'none') return false;
  const rect = this.getBoundingClientRect();
  return rect.width > 0 && rect.height > 0;
}`
