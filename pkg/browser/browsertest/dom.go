package browsertest

import (
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/guldbach/google-ads-builder-sub001/pkg/browser"
	"github.com/guldbach/google-ads-builder-sub001/pkg/harness"
)

var skippedTextTags = map[string]bool{"script": true, "style": true, "noscript": true, "template": true}

// match resolves loc against doc with the rules of browser.LocatorScript.
func match(doc *goquery.Document, loc harness.Locator) []*html.Node {
	loc = loc.Normalized()
	body := doc.Find("body")
	all := append(slices.Clone(body.Nodes), body.Find("*").Nodes...)

	var out []*html.Node
	switch loc.Kind() {
	case harness.LocatorRole:
		name := browser.NormalizeText(loc.Name)
		for _, n := range all {
			s := doc.FindNodes(n)
			if roleOf(s) == loc.Role && (name == "" || nameOf(doc, s) == name) {
				out = append(out, n)
			}
		}
	case harness.LocatorText:
		want := browser.NormalizeText(loc.Text)
		matches := func(s *goquery.Selection) bool {
			if skippedTextTags[goquery.NodeName(s)] {
				return false
			}
			t := browser.NormalizeText(s.Text())
			if loc.Exact {
				return t == want
			}
			return strings.Contains(t, want)
		}
		for _, n := range all {
			s := doc.FindNodes(n)
			if !matches(s) {
				continue
			}
			inner := false
			s.Children().EachWithBreak(func(_ int, c *goquery.Selection) bool {
				inner = matches(c)
				return !inner
			})
			if !inner {
				out = append(out, n)
			}
		}
	case harness.LocatorAttr:
		for _, n := range all {
			v, ok := goquery.NewDocumentFromNode(n).Attr(loc.Attr)
			if ok && attrMatches(loc.Op, v, loc.Value) {
				out = append(out, n)
			}
		}
	}
	return out
}

func attrMatches(op harness.AttrOp, v, want string) bool {
	switch op {
	case harness.AttrExists:
		return true
	case harness.AttrEquals:
		return v == want
	case harness.AttrContains:
		return strings.Contains(v, want)
	case harness.AttrPrefix:
		return strings.HasPrefix(v, want)
	case harness.AttrSuffix:
		return strings.HasSuffix(v, want)
	case harness.AttrWord:
		return slices.Contains(strings.Fields(v), want)
	}
	return false
}

func roleOf(s *goquery.Selection) string {
	if explicit := browser.NormalizeText(s.AttrOr("role", "")); explicit != "" {
		return strings.Fields(explicit)[0]
	}
	tag := goquery.NodeName(s)
	switch tag {
	case "input":
		typ := strings.ToLower(s.AttrOr("type", "text"))
		if typ == "hidden" {
			return ""
		}
		if role, ok := browser.ImplicitRoles["input:"+typ]; ok {
			return role
		}
		return browser.ImplicitRoles["input"]
	case "a":
		if _, ok := s.Attr("href"); ok {
			return browser.ImplicitRoles["a"]
		}
		return ""
	case "select":
		if _, ok := s.Attr("multiple"); ok {
			return "listbox"
		}
		return browser.ImplicitRoles["select"]
	}
	return browser.ImplicitRoles[tag]
}

func nameOf(doc *goquery.Document, s *goquery.Selection) string {
	if aria := browser.NormalizeText(s.AttrOr("aria-label", "")); aria != "" {
		return aria
	}
	if by := s.AttrOr("aria-labelledby", ""); by != "" {
		var parts []string
		for _, id := range strings.Fields(by) {
			parts = append(parts, byID(doc, id).Text())
		}
		if text := browser.NormalizeText(strings.Join(parts, " ")); text != "" {
			return text
		}
	}

	switch goquery.NodeName(s) {
	case "input", "textarea", "select":
		switch strings.ToLower(s.AttrOr("type", "")) {
		case "button", "submit", "reset":
			return browser.NormalizeText(s.AttrOr("value", ""))
		}
		if id := s.AttrOr("id", ""); id != "" {
			label := doc.Find("label").FilterFunction(func(_ int, l *goquery.Selection) bool {
				return l.AttrOr("for", "") == id
			})
			if text := browser.NormalizeText(label.First().Text()); text != "" {
				return text
			}
		}
		if wrap := s.Closest("label"); wrap.Length() > 0 {
			if text := browser.NormalizeText(wrap.Text()); text != "" {
				return text
			}
		}
		if placeholder := browser.NormalizeText(s.AttrOr("placeholder", "")); placeholder != "" {
			return placeholder
		}
		return browser.NormalizeText(s.AttrOr("title", ""))
	case "img":
		return browser.NormalizeText(s.AttrOr("alt", ""))
	}
	if text := browser.NormalizeText(s.Text()); text != "" {
		return text
	}
	return browser.NormalizeText(s.AttrOr("title", ""))
}

func byID(doc *goquery.Document, id string) *goquery.Selection {
	return doc.Find("[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.AttrOr("id", "") == id
	}).First()
}

// visible walks the node and its ancestors looking for the markers that
// keep an element from rendering.
func visible(s *goquery.Selection) bool {
	for cur := s; cur.Length() > 0; cur = cur.Parent() {
		if _, hidden := cur.Attr("hidden"); hidden {
			return false
		}
		if cur.HasClass("hidden") {
			return false
		}
		style := strings.ReplaceAll(strings.ToLower(cur.AttrOr("style", "")), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false
		}
		if goquery.NodeName(cur) == "input" && strings.EqualFold(cur.AttrOr("type", ""), "hidden") {
			return false
		}
	}
	return true
}

// attached reports whether n is still part of doc.
func attached(doc *goquery.Document, n *html.Node) bool {
	root := doc.Nodes[0]
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == root {
			return true
		}
	}
	return false
}

func scrollLocked(doc *goquery.Document) bool {
	for _, sel := range []string{"html", "body"} {
		s := doc.Find(sel)
		if s.HasClass("overflow-hidden") {
			return true
		}
		style := strings.ReplaceAll(strings.ToLower(s.AttrOr("style", "")), " ", "")
		if strings.Contains(style, "overflow:hidden") {
			return true
		}
	}
	return false
}
