// Package search defines the indexing contract the page lifecycle feeds
// and the safe-content extraction shared by every engine.
package search

import (
	"context"
	stdhtml "html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"

	"go-wiki-engine/internal/data"
	"go-wiki-engine/internal/logger"
)

// IndexDoc is the projection of a page handed to search engines.
type IndexDoc struct {
	ID          int64
	Path        string
	LocaleCode  string
	Title       string
	Description string
	SafeContent string
	IsPrivate   bool
	IsPublished bool
	Tags        []string
}

// Engine receives page lifecycle notifications and keeps its index in
// sync. Engines must tolerate being called for pages they never indexed.
type Engine interface {
	Created(ctx context.Context, doc IndexDoc) error
	Updated(ctx context.Context, doc IndexDoc) error
	Renamed(ctx context.Context, doc IndexDoc, newPath, newLocale string) error
	Deleted(ctx context.Context, doc IndexDoc) error
}

var stripPolicy = bluemonday.StrictPolicy()

// NewIndexDoc builds the index projection of a page. SafeContent is
// derived from the stored render, not the raw source.
func NewIndexDoc(page *data.Page, tags []data.Tag) IndexDoc {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Tag)
	}
	return IndexDoc{
		ID:          page.ID,
		Path:        page.Path,
		LocaleCode:  page.LocaleCode,
		Title:       page.Title,
		Description: page.Description,
		SafeContent: CleanHTML(page.Render),
		IsPrivate:   page.IsPrivate,
		IsPublished: page.IsPublished,
		Tags:        names,
	}
}

// CleanHTML reduces rendered HTML to the plain lowercase word stream
// indexed as safe content. Markup is stripped, entities decoded,
// punctuation and symbols collapse to spaces and single-letter tokens
// are dropped.
func CleanHTML(render string) string {
	text := stripPolicy.Sanitize(render)
	text = stdhtml.UnescapeString(text)
	text = strings.ToLower(text)

	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		} else {
			sb.WriteRune(' ')
		}
	}

	words := strings.Fields(sb.String())
	kept := words[:0]
	for _, w := range words {
		if len([]rune(w)) > 1 {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// LogEngine is the default engine. It only logs, so deployments without
// a search backend still exercise the full lifecycle.
type LogEngine struct {
	log logger.Logger
}

func NewLogEngine(log logger.Logger) *LogEngine {
	return &LogEngine{log: log}
}

func (e *LogEngine) Created(ctx context.Context, doc IndexDoc) error {
	e.fields(doc).Info("search index add")
	return nil
}

func (e *LogEngine) Updated(ctx context.Context, doc IndexDoc) error {
	e.fields(doc).Info("search index update")
	return nil
}

func (e *LogEngine) Renamed(ctx context.Context, doc IndexDoc, newPath, newLocale string) error {
	e.fields(doc).With(map[string]interface{}{
		"new_path":   newPath,
		"new_locale": newLocale,
	}).Info("search index rename")
	return nil
}

func (e *LogEngine) Deleted(ctx context.Context, doc IndexDoc) error {
	e.fields(doc).Info("search index remove")
	return nil
}

func (e *LogEngine) fields(doc IndexDoc) logger.Logger {
	return e.log.With(map[string]interface{}{
		"page_id": doc.ID,
		"path":    doc.Path,
		"locale":  doc.LocaleCode,
	})
}
