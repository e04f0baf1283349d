// Package render turns stored page content into the HTML projection
// served to readers, together with the derived table of contents and
// the internal link graph.
package render

import (
	"bytes"
	"fmt"
	stdhtml "html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	gmparser "github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"

	"go-wiki-engine/internal/data"
)

// Result is the derived output of rendering one page.
type Result struct {
	HTML string
	TOC  string
}

// Pipeline renders page content by content type.
type Pipeline struct {
	md goldmark.Markdown
}

func NewPipeline() *Pipeline {
	return &Pipeline{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(gmparser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		),
	}
}

// Render produces the HTML and TOC for the given content.
func (p *Pipeline) Render(contentType, content string) (Result, error) {
	switch contentType {
	case data.ContentTypeMarkdown:
		return p.renderMarkdown(content)
	case data.ContentTypeHTML:
		return p.renderHTML(content)
	case data.ContentTypeText:
		return Result{
			HTML: "<pre>" + stdhtml.EscapeString(content) + "</pre>",
			TOC:  emptyTOC,
		}, nil
	default:
		return Result{}, fmt.Errorf("no renderer for content type %q", contentType)
	}
}

func (p *Pipeline) renderMarkdown(content string) (Result, error) {
	src := []byte(content)
	reader := text.NewReader(src)
	doc := p.md.Parser().Parse(reader)

	var buf bytes.Buffer
	if err := p.md.Renderer().Render(&buf, src, doc); err != nil {
		return Result{}, fmt.Errorf("failed to render markdown: %w", err)
	}

	var headings []heading
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok {
			continue
		}
		anchor := ""
		if id, found := h.AttributeString("id"); found {
			if b, ok := id.([]byte); ok {
				anchor = string(b)
			}
		}
		headings = append(headings, heading{
			Level:  h.Level,
			Title:  string(h.Text(src)),
			Anchor: anchor,
		})
	}

	toc, err := encodeTOC(tocFromHeadings(headings))
	if err != nil {
		return Result{}, err
	}
	return Result{HTML: strings.TrimSpace(buf.String()), TOC: toc}, nil
}

func (p *Pipeline) renderHTML(content string) (Result, error) {
	headings, err := htmlHeadings(content)
	if err != nil {
		return Result{}, err
	}
	toc, err := encodeTOC(tocFromHeadings(headings))
	if err != nil {
		return Result{}, err
	}
	return Result{HTML: content, TOC: toc}, nil
}
