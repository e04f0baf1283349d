package data

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SQLHistoryRepository appends immutable version snapshots to
// page_history. Rows are never updated or deleted here.
type SQLHistoryRepository struct {
	db *sqlx.DB
}

// NewSQLHistoryRepository creates a new SQLHistoryRepository.
func NewSQLHistoryRepository(db *sqlx.DB) *SQLHistoryRepository {
	return &SQLHistoryRepository{db: db}
}

// AddVersion snapshots the page's current state with the given action.
// The version date is the page's updated_at, so history is a strict
// lag-1 view of the row it shadows.
func (r *SQLHistoryRepository) AddVersion(ctx context.Context, page *Page, action string) error {
	snapshot := PageHistory{
		PageID:           page.ID,
		Path:             page.Path,
		Hash:             page.Hash,
		Title:            page.Title,
		Description:      page.Description,
		IsPrivate:        page.IsPrivate,
		IsPublished:      page.IsPublished,
		PublishStartDate: page.PublishStartDate,
		PublishEndDate:   page.PublishEndDate,
		Content:          page.Content,
		ContentType:      page.ContentType,
		EditorKey:        page.EditorKey,
		LocaleCode:       page.LocaleCode,
		AuthorID:         page.AuthorID,
		Action:           action,
		VersionDate:      page.UpdatedAt,
		CreatedAt:        time.Now().UTC(),
	}
	query := `INSERT INTO page_history (page_id, path, hash, title, description,
		is_private, is_published, publish_start_date, publish_end_date, content,
		content_type, editor_key, locale_code, author_id, action, version_date, created_at)
		VALUES (:page_id, :path, :hash, :title, :description,
		:is_private, :is_published, :publish_start_date, :publish_end_date, :content,
		:content_type, :editor_key, :locale_code, :author_id, :action, :version_date, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, snapshot); err != nil {
		return fmt.Errorf("failed to add page version: %w", err)
	}
	return nil
}

// VersionsForPage lists a page's snapshots, newest first.
func (r *SQLHistoryRepository) VersionsForPage(ctx context.Context, pageID int64) ([]PageHistory, error) {
	var versions []PageHistory
	query := `SELECT id, page_id, path, hash, title, description, is_private,
		is_published, publish_start_date, publish_end_date, content, content_type,
		editor_key, locale_code, author_id, action, version_date, created_at
		FROM page_history WHERE page_id = ? ORDER BY id DESC`
	if err := r.db.SelectContext(ctx, &versions, query, pageID); err != nil {
		return nil, fmt.Errorf("failed to load page history: %w", err)
	}
	return versions, nil
}
