package data

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SQLLinkRepository maintains the page link index and performs the
// marker rewrites used by link reconnection.
type SQLLinkRepository struct {
	db *sqlx.DB
}

// NewSQLLinkRepository creates a new SQLLinkRepository.
func NewSQLLinkRepository(db *sqlx.DB) *SQLLinkRepository {
	return &SQLLinkRepository{db: db}
}

// SetLinksForPage replaces the outgoing link index of a page with the
// given targets. Called after every render.
func (r *SQLLinkRepository) SetLinksForPage(ctx context.Context, pageID int64, links []PageLink) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM page_links WHERE page_id = ?`, pageID); err != nil {
		return fmt.Errorf("failed to clear page links: %w", err)
	}
	if len(links) == 0 {
		return nil
	}
	for i := range links {
		links[i].PageID = pageID
	}
	query := `INSERT INTO page_links (page_id, path, locale_code)
		VALUES (:page_id, :path, :locale_code)`
	if _, err := r.db.NamedExecContext(ctx, query, links); err != nil {
		return fmt.Errorf("failed to insert page links: %w", err)
	}
	return nil
}

// RewriteRenderMarkers replaces from with to inside the stored render of
// every page whose link index points at (path, locale), then returns the
// hashes of the affected pages so their cache entries can be evicted.
// The replace runs at the database layer in a single statement.
func (r *SQLLinkRepository) RewriteRenderMarkers(ctx context.Context, path, locale, from, to string) ([]string, error) {
	update := `UPDATE pages SET render = REPLACE(render, ?, ?)
		WHERE id IN (SELECT page_id FROM page_links WHERE path = ? AND locale_code = ?)`
	if _, err := r.db.ExecContext(ctx, update, from, to, path, locale); err != nil {
		return nil, fmt.Errorf("failed to rewrite link markers for %s/%s: %w", locale, path, err)
	}

	var hashes []string
	query := `SELECT hash FROM pages
		WHERE id IN (SELECT page_id FROM page_links WHERE path = ? AND locale_code = ?)`
	if err := r.db.SelectContext(ctx, &hashes, query, path, locale); err != nil {
		return nil, fmt.Errorf("failed to collect affected page hashes: %w", err)
	}
	return hashes, nil
}
