package render

import (
	"context"
	"fmt"

	"go-wiki-engine/internal/data"
	"go-wiki-engine/internal/logger"
)

// PageUpdater persists the derived render output.
type PageUpdater interface {
	UpdateRender(ctx context.Context, id int64, render, toc string) error
	ExistsAt(ctx context.Context, path, locale string) (bool, error)
}

// LinkUpdater persists the outgoing internal links of a page.
type LinkUpdater interface {
	SetLinksForPage(ctx context.Context, pageID int64, links []data.PageLink) error
}

// Runner executes a single page render: content to HTML, link markers,
// TOC, then persists render, toc and the link graph. Its Run method is
// the scheduler's RunFunc.
type Runner struct {
	pipeline *Pipeline
	pages    PageUpdater
	links    LinkUpdater
	log      logger.Logger
}

func NewRunner(pipeline *Pipeline, pages PageUpdater, links LinkUpdater, log logger.Logger) *Runner {
	return &Runner{pipeline: pipeline, pages: pages, links: links, log: log}
}

func (r *Runner) Run(ctx context.Context, page *data.Page) error {
	result, err := r.pipeline.Render(page.ContentType, page.Content)
	if err != nil {
		return fmt.Errorf("failed to render page %d: %w", page.ID, err)
	}

	// Link existence is checked against the live pages table so markers
	// match reality at render time.
	rendered, links, err := ProcessLinks(result.HTML, page.LocaleCode, func(path, locale string) bool {
		if path == page.Path && locale == page.LocaleCode {
			return true
		}
		exists, lookupErr := r.pages.ExistsAt(ctx, path, locale)
		if lookupErr != nil {
			r.log.Error(lookupErr, "failed to resolve internal link")
			return false
		}
		return exists
	})
	if err != nil {
		return fmt.Errorf("failed to process links for page %d: %w", page.ID, err)
	}

	if err := r.pages.UpdateRender(ctx, page.ID, rendered, result.TOC); err != nil {
		return err
	}
	if err := r.links.SetLinksForPage(ctx, page.ID, links); err != nil {
		return err
	}

	page.Render = rendered
	page.TOC = result.TOC
	return nil
}
