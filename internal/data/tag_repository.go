package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SQLTagRepository manages tags and their page associations.
type SQLTagRepository struct {
	db *sqlx.DB
}

// NewSQLTagRepository creates a new SQLTagRepository.
func NewSQLTagRepository(db *sqlx.DB) *SQLTagRepository {
	return &SQLTagRepository{db: db}
}

// Associate replaces the tag set of a page, creating tags that do not
// exist yet. Tag titles default to the tag itself.
func (r *SQLTagRepository) Associate(ctx context.Context, pageID int64, tags []string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM page_tags WHERE page_id = ?`, pageID); err != nil {
		return fmt.Errorf("failed to clear page tags: %w", err)
	}
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		var id int64
		err := r.db.GetContext(ctx, &id, `SELECT id FROM tags WHERE tag = ?`, tag)
		if errors.Is(err, sql.ErrNoRows) {
			res, insErr := r.db.ExecContext(ctx, `INSERT INTO tags (tag, title) VALUES (?, ?)`, tag, tag)
			if insErr != nil {
				return fmt.Errorf("failed to create tag %q: %w", tag, insErr)
			}
			if id, insErr = res.LastInsertId(); insErr != nil {
				return fmt.Errorf("failed to get tag id: %w", insErr)
			}
		} else if err != nil {
			return fmt.Errorf("failed to look up tag %q: %w", tag, err)
		}
		if _, err := r.db.ExecContext(ctx, `INSERT INTO page_tags (page_id, tag_id) VALUES (?, ?)`, pageID, id); err != nil {
			return fmt.Errorf("failed to associate tag %q: %w", tag, err)
		}
	}
	return nil
}

// ForPage returns the tags associated with a page.
func (r *SQLTagRepository) ForPage(ctx context.Context, pageID int64) ([]Tag, error) {
	var tags []Tag
	query := `SELECT t.id, t.tag, t.title FROM tags t
		JOIN page_tags pt ON pt.tag_id = t.id
		WHERE pt.page_id = ? ORDER BY t.tag`
	if err := r.db.SelectContext(ctx, &tags, query, pageID); err != nil {
		return nil, fmt.Errorf("failed to load tags for page %d: %w", pageID, err)
	}
	return tags, nil
}
