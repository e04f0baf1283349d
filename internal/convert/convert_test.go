package convert

import (
	"errors"
	"strings"
	"testing"

	"go-wiki-engine/internal/data"
)

func TestConvertMarkdownToHTMLUsesRender(t *testing.T) {
	c := New()
	page := &data.Page{
		ContentType: data.ContentTypeMarkdown,
		Content:     "# Title",
		Render:      `<h1 id="title"><a class="toc-anchor" href="#title">¶</a>Title</h1><p>caf&#233; &#38; bar</p>`,
	}
	out, err := c.Convert(page, data.ContentTypeHTML)
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	if strings.Contains(out, "toc-anchor") {
		t.Errorf("toc anchors must be stripped: %q", out)
	}
	if !strings.Contains(out, "café") {
		t.Errorf("non-ascii entity must be decoded: %q", out)
	}
	if !strings.Contains(out, "&#38;") {
		t.Errorf("ascii entity must be preserved: %q", out)
	}
}

func TestConvertMarkdownToHTMLRequiresRender(t *testing.T) {
	c := New()
	page := &data.Page{ContentType: data.ContentTypeMarkdown, Content: "# Title"}
	if _, err := c.Convert(page, data.ContentTypeHTML); !errors.Is(err, ErrEmptyRender) {
		t.Errorf("got %v, want ErrEmptyRender", err)
	}
}

func TestConvertHTMLToMarkdown(t *testing.T) {
	c := New()
	page := &data.Page{
		ContentType: data.ContentTypeHTML,
		Content:     "<h1>Title</h1><p>Hello <strong>world</strong>, press <kbd>Ctrl</kbd>.</p><p>H<sub>2</sub>O and x<sup>2</sup></p>",
	}
	out, err := c.Convert(page, data.ContentTypeMarkdown)
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	if !strings.Contains(out, "# Title") {
		t.Errorf("heading not converted: %q", out)
	}
	if !strings.Contains(out, "**world**") {
		t.Errorf("strong not converted: %q", out)
	}
	if !strings.Contains(out, "<kbd>Ctrl</kbd>") {
		t.Errorf("kbd must be kept as html: %q", out)
	}
	if !strings.Contains(out, "H~2~O") || !strings.Contains(out, "x^2^") {
		t.Errorf("sub/sup rules not applied: %q", out)
	}
}

func TestConvertSameTypeIsNoop(t *testing.T) {
	c := New()
	page := &data.Page{ContentType: data.ContentTypeMarkdown, Content: "# Title"}
	out, err := c.Convert(page, data.ContentTypeMarkdown)
	if err != nil || out != "# Title" {
		t.Errorf("got (%q, %v), want passthrough", out, err)
	}
}

func TestConvertUnsupportedPairs(t *testing.T) {
	c := New()
	text := &data.Page{ContentType: data.ContentTypeText, Content: "plain"}
	if _, err := c.Convert(text, data.ContentTypeHTML); !errors.Is(err, ErrUnsupported) {
		t.Errorf("text to html: got %v, want ErrUnsupported", err)
	}
	if _, err := c.Convert(text, data.ContentTypeMarkdown); !errors.Is(err, ErrUnsupported) {
		t.Errorf("text to markdown: got %v, want ErrUnsupported", err)
	}
	md := &data.Page{ContentType: data.ContentTypeMarkdown, Content: "# T", Render: "<h1>T</h1>"}
	if _, err := c.Convert(md, data.ContentTypeText); !errors.Is(err, ErrUnsupported) {
		t.Errorf("markdown to text: got %v, want ErrUnsupported", err)
	}
}
