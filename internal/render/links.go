package render

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"go-wiki-engine/internal/data"
)

// Markers describing whether an internal link points at an existing page.
const (
	classInternalLink = "is-internal-link"
	classValidPage    = "is-valid-page"
	classInvalidPage  = "is-invalid-page"
)

var localeSegment = regexp.MustCompile(`^[a-z]{2}(-[a-z]{2})?$`)

// ProcessLinks rewrites every internal anchor of the rendered HTML with
// the link markers, using exists to decide validity, and returns the
// rewritten HTML together with the deduplicated set of referenced
// pages. Internal links are root-relative hrefs; an optional leading
// locale segment overrides pageLocale.
func ProcessLinks(src, pageLocale string, exists func(path, locale string) bool) (string, []data.PageLink, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(src), ctx)
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse rendered html: %w", err)
	}

	seen := make(map[string]data.PageLink)
	for _, n := range nodes {
		walkAnchors(n, func(a *html.Node) {
			href := attrValue(a, "href")
			path, locale, ok := parseInternalHref(href, pageLocale)
			if !ok {
				return
			}
			valid := exists(path, locale)
			// Canonicalize to the locale-prefixed form; the link
			// reconnector matches anchors by this exact shape.
			setAttr(a, "href", "/"+locale+"/"+path)
			markAnchor(a, valid)
			seen[locale+"/"+path] = data.PageLink{Path: path, LocaleCode: locale}
		})
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return "", nil, fmt.Errorf("failed to serialize rendered html: %w", err)
		}
	}

	links := make([]data.PageLink, 0, len(seen))
	for _, l := range seen {
		links = append(links, l)
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].LocaleCode != links[j].LocaleCode {
			return links[i].LocaleCode < links[j].LocaleCode
		}
		return links[i].Path < links[j].Path
	})
	return buf.String(), links, nil
}

func walkAnchors(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode && n.DataAtom == atom.A {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkAnchors(c, fn)
	}
}

// parseInternalHref resolves a root-relative href to a (path, locale)
// page reference. External, protocol-relative and fragment links are
// not internal.
func parseInternalHref(href, pageLocale string) (path, locale string, ok bool) {
	if href == "" || !strings.HasPrefix(href, "/") || strings.HasPrefix(href, "//") {
		return "", "", false
	}
	if i := strings.IndexAny(href, "#?"); i >= 0 {
		href = href[:i]
	}
	trimmed := strings.Trim(href, "/")
	if trimmed == "" {
		return "", "", false
	}

	locale = pageLocale
	path = trimmed
	if i := strings.Index(trimmed, "/"); i >= 0 {
		if first := trimmed[:i]; localeSegment.MatchString(first) {
			locale = first
			path = trimmed[i+1:]
		}
	}
	return path, locale, true
}

// markAnchor sets the link marker classes, replacing any previous
// validity marker but keeping unrelated classes.
func markAnchor(a *html.Node, valid bool) {
	marker := classValidPage
	if !valid {
		marker = classInvalidPage
	}

	var kept []string
	for _, c := range strings.Fields(attrValue(a, "class")) {
		if c == classInternalLink || c == classValidPage || c == classInvalidPage {
			continue
		}
		kept = append(kept, c)
	}
	kept = append(kept, classInternalLink, marker)
	setAttr(a, "class", strings.Join(kept, " "))
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// htmlHeadings extracts h1 through h6 elements that carry an id, in
// document order.
func htmlHeadings(src string) ([]heading, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(src), ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html content: %w", err)
	}

	var out []heading
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
				if id := attrValue(n, "id"); id != "" {
					out = append(out, heading{
						Level:  int(n.Data[1] - '0'),
						Title:  nodeText(n),
						Anchor: id,
					})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return out, nil
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
