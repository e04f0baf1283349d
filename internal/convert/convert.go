// Package convert changes the source content type of a page while
// preserving as much of its formatting as possible.
package convert

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"

	"go-wiki-engine/internal/data"
)

var (
	// ErrUnsupported marks a source/target pair no converter handles.
	ErrUnsupported = errors.New("unsupported content conversion")

	// ErrEmptyRender is returned when a markdown page has never been
	// rendered, so there is no HTML projection to convert from.
	ErrEmptyRender = errors.New("page has no rendered content to convert from")
)

var (
	tocAnchorRe     = regexp.MustCompile(`<a[^>]*class="[^"]*toc-anchor[^"]*"[^>]*>.*?</a>`)
	numericEntityRe = regexp.MustCompile(`&#(\d+);`)
)

// Converter produces the new source content for a content type switch.
type Converter struct {
	html2md *md.Converter
}

func New() *Converter {
	conv := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		HorizontalRule:   "---",
		BulletListMarker: "-",
		CodeBlockStyle:   "fenced",
		Fence:            "```",
		EmDelimiter:      "*",
		StrongDelimiter:  "**",
		LinkStyle:        "inlined",
	})
	conv.Use(plugin.GitHubFlavored())
	conv.Keep("kbd")
	conv.AddRules(
		md.Rule{
			Filter: []string{"sub"},
			Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
				return md.String("~" + content + "~")
			},
		},
		md.Rule{
			Filter: []string{"sup"},
			Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
				return md.String("^" + content + "^")
			},
		},
		md.Rule{
			Filter: []string{"u", "ins"},
			Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
				return md.String("_" + content + "_")
			},
		},
	)
	return &Converter{html2md: conv}
}

// Convert returns the page content re-expressed in targetType. A
// markdown page converts to HTML through its stored render, so it must
// have been rendered at least once.
func (c *Converter) Convert(page *data.Page, targetType string) (string, error) {
	if page.ContentType == targetType {
		return page.Content, nil
	}

	switch targetType {
	case data.ContentTypeHTML:
		if page.ContentType != data.ContentTypeMarkdown {
			return "", fmt.Errorf("%s to %s: %w", page.ContentType, targetType, ErrUnsupported)
		}
		if strings.TrimSpace(page.Render) == "" {
			return "", ErrEmptyRender
		}
		return cleanRenderedHTML(page.Render), nil

	case data.ContentTypeMarkdown:
		if page.ContentType != data.ContentTypeHTML {
			return "", fmt.Errorf("%s to %s: %w", page.ContentType, targetType, ErrUnsupported)
		}
		out, err := c.html2md.ConvertString(page.Content)
		if err != nil {
			return "", fmt.Errorf("failed to convert html to markdown: %w", err)
		}
		return out, nil

	default:
		return "", fmt.Errorf("target %q: %w", targetType, ErrUnsupported)
	}
}

// cleanRenderedHTML strips presentation-only artifacts from a stored
// render so it can stand alone as source content: heading anchor links
// are dropped and non-ASCII numeric entities are decoded back to text.
func cleanRenderedHTML(render string) string {
	out := tocAnchorRe.ReplaceAllString(render, "")
	out = numericEntityRe.ReplaceAllStringFunc(out, func(m string) string {
		sub := numericEntityRe.FindStringSubmatch(m)
		code, err := strconv.Atoi(sub[1])
		if err != nil || code < 0x80 {
			return m
		}
		return string(rune(code))
	})
	return strings.TrimSpace(out)
}
