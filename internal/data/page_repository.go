package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

const pageColumns = `id, path, hash, title, description, is_private, is_published,
	private_ns, publish_start_date, publish_end_date, content, render, toc,
	content_type, editor_key, locale_code, author_id, author_name,
	creator_id, creator_name, extra, created_at, updated_at`

// SQLPageRepository is the sqlx implementation of page persistence.
type SQLPageRepository struct {
	db     *sqlx.DB
	driver string
}

// NewSQLPageRepository creates a new SQLPageRepository.
func NewSQLPageRepository(db *sqlx.DB) *SQLPageRepository {
	return &SQLPageRepository{db: db, driver: db.DriverName()}
}

// Create inserts a new page and returns its id. Timestamps are stamped
// server-side here, mirroring the before-insert hook semantics.
func (r *SQLPageRepository) Create(ctx context.Context, page *Page) (int64, error) {
	now := time.Now().UTC()
	page.CreatedAt = now
	page.UpdatedAt = now
	query := `INSERT INTO pages (path, hash, title, description, is_private, is_published,
		private_ns, publish_start_date, publish_end_date, content, render, toc,
		content_type, editor_key, locale_code, author_id, author_name,
		creator_id, creator_name, extra, created_at, updated_at)
		VALUES (:path, :hash, :title, :description, :is_private, :is_published,
		:private_ns, :publish_start_date, :publish_end_date, :content, :render, :toc,
		:content_type, :editor_key, :locale_code, :author_id, :author_name,
		:creator_id, :creator_name, :extra, :created_at, :updated_at)`
	res, err := r.db.NamedExecContext(ctx, query, page)
	if err != nil {
		return 0, fmt.Errorf("failed to insert page: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get inserted page id: %w", err)
	}
	page.ID = id
	return id, nil
}

// GetByID retrieves a single page by its id.
func (r *SQLPageRepository) GetByID(ctx context.Context, id int64) (*Page, error) {
	var page Page
	query := `SELECT ` + pageColumns + ` FROM pages WHERE id = ?`
	if err := r.db.GetContext(ctx, &page, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get page by id: %w", err)
	}
	return &page, nil
}

// GetByPathLocale retrieves a single page by its unique (path, locale) pair.
func (r *SQLPageRepository) GetByPathLocale(ctx context.Context, path, locale string) (*Page, error) {
	var page Page
	query := `SELECT ` + pageColumns + ` FROM pages WHERE path = ? AND locale_code = ?`
	if err := r.db.GetContext(ctx, &page, query, path, locale); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get page by path: %w", err)
	}
	return &page, nil
}

// ExistsAt reports whether a page occupies (path, locale).
func (r *SQLPageRepository) ExistsAt(ctx context.Context, path, locale string) (bool, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, `SELECT id FROM pages WHERE path = ? AND locale_code = ?`, path, locale)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check page existence: %w", err)
	}
	return true, nil
}

// Update writes the editable fields of an existing page and refreshes
// updated_at. Identity fields (path, locale, hash) are not touched here;
// moves go through UpdatePathInfo.
func (r *SQLPageRepository) Update(ctx context.Context, page *Page) error {
	page.UpdatedAt = time.Now().UTC()
	query := `UPDATE pages SET title = :title, description = :description,
		content = :content, is_published = :is_published,
		publish_start_date = :publish_start_date, publish_end_date = :publish_end_date,
		author_id = :author_id, author_name = :author_name, extra = :extra,
		updated_at = :updated_at
		WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, page)
	if err != nil {
		return fmt.Errorf("failed to update page: %w", err)
	}
	return requireRows(res, page.ID)
}

// UpdatePathInfo rewrites a page's identity for a move: path, locale,
// title and the recomputed hash.
func (r *SQLPageRepository) UpdatePathInfo(ctx context.Context, id int64, path, locale, title, hash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE pages SET path = ?, locale_code = ?, title = ?, hash = ?, updated_at = ? WHERE id = ?`,
		path, locale, title, hash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update page path: %w", err)
	}
	return requireRows(res, id)
}

// UpdateContentType switches the editor and content type, optionally
// replacing the source content when a conversion produced new text.
func (r *SQLPageRepository) UpdateContentType(ctx context.Context, id int64, contentType, editorKey string, content *string) error {
	var res sql.Result
	var err error
	if content != nil {
		res, err = r.db.ExecContext(ctx,
			`UPDATE pages SET content_type = ?, editor_key = ?, content = ?, updated_at = ? WHERE id = ?`,
			contentType, editorKey, *content, time.Now().UTC(), id)
	} else {
		res, err = r.db.ExecContext(ctx,
			`UPDATE pages SET content_type = ?, editor_key = ?, updated_at = ? WHERE id = ?`,
			contentType, editorKey, time.Now().UTC(), id)
	}
	if err != nil {
		return fmt.Errorf("failed to update page content type: %w", err)
	}
	return requireRows(res, id)
}

// UpdateRender stores the derived render and toc for a page.
func (r *SQLPageRepository) UpdateRender(ctx context.Context, id int64, render, toc string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE pages SET render = ?, toc = ? WHERE id = ?`, render, toc, id)
	if err != nil {
		return fmt.Errorf("failed to update page render: %w", err)
	}
	return requireRows(res, id)
}

// ListByLocale returns every page of one locale.
func (r *SQLPageRepository) ListByLocale(ctx context.Context, locale string) ([]Page, error) {
	var pages []Page
	err := r.db.SelectContext(ctx, &pages,
		`SELECT `+pageColumns+` FROM pages WHERE locale_code = ? ORDER BY path`, locale)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages for locale %q: %w", locale, err)
	}
	return pages, nil
}

// UpdateHash stores a recomputed content hash for a page.
func (r *SQLPageRepository) UpdateHash(ctx context.Context, id int64, hash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE pages SET hash = ? WHERE id = ?`, hash, id)
	if err != nil {
		return fmt.Errorf("failed to update page hash: %w", err)
	}
	return requireRows(res, id)
}

// Delete removes a page by id.
func (r *SQLPageRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete page: %w", err)
	}
	return requireRows(res, id)
}

// DeleteByExactPath removes the pages at path across every locale.
func (r *SQLPageRepository) DeleteByExactPath(ctx context.Context, path string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM pages WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("failed to delete page at %q: %w", path, err)
	}
	return nil
}

// DeleteSubtree removes every page whose path sits strictly under folderPath.
func (r *SQLPageRepository) DeleteSubtree(ctx context.Context, folderPath string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM pages WHERE path LIKE ? ESCAPE '|'`, likePrefix(folderPath+"/"))
	if err != nil {
		return fmt.Errorf("failed to delete page subtree %q: %w", folderPath, err)
	}
	return nil
}

// RewritePrefix retargets every page whose path starts with matchPrefix:
// stripPrefix is removed from the front of the path and newPrefix is
// prepended, as a pure substring replace at the database layer. It
// returns the rewritten rows so the caller can regenerate tree nodes.
// matchPrefix and stripPrefix must both end with "/"; newPrefix is
// either empty (root) or "/"-terminated.
func (r *SQLPageRepository) RewritePrefix(ctx context.Context, matchPrefix, stripPrefix, newPrefix string) ([]Page, error) {
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids,
		`SELECT id FROM pages WHERE path LIKE ? ESCAPE '|'`, likePrefix(matchPrefix)); err != nil {
		return nil, fmt.Errorf("failed to collect pages under %q: %w", matchPrefix, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	// MySQL spells string concatenation CONCAT(); SQLite uses ||.
	var rewrite string
	if r.driver == "mysql" {
		rewrite = `UPDATE pages SET path = CONCAT(?, SUBSTRING(path, ?)) WHERE path LIKE ? ESCAPE '|'`
	} else {
		rewrite = `UPDATE pages SET path = ? || SUBSTR(path, ?) WHERE path LIKE ? ESCAPE '|'`
	}
	if _, err := r.db.ExecContext(ctx, rewrite, newPrefix, len(stripPrefix)+1, likePrefix(matchPrefix)); err != nil {
		return nil, fmt.Errorf("failed to rewrite page paths under %q: %w", matchPrefix, err)
	}

	query, args, err := sqlx.In(`SELECT `+pageColumns+` FROM pages WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build rewritten page query: %w", err)
	}
	var pages []Page
	if err := r.db.SelectContext(ctx, &pages, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load rewritten pages: %w", err)
	}
	return pages, nil
}

// RewriteExactPath moves a single page row from oldPath to newPath and
// returns the rewritten rows (zero or one).
func (r *SQLPageRepository) RewriteExactPath(ctx context.Context, oldPath, newPath string) ([]Page, error) {
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM pages WHERE path = ?`, oldPath); err != nil {
		return nil, fmt.Errorf("failed to collect pages at %q: %w", oldPath, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE pages SET path = ? WHERE path = ?`, newPath, oldPath); err != nil {
		return nil, fmt.Errorf("failed to rewrite page path %q: %w", oldPath, err)
	}
	query, args, err := sqlx.In(`SELECT `+pageColumns+` FROM pages WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build rewritten page query: %w", err)
	}
	var pages []Page
	if err := r.db.SelectContext(ctx, &pages, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load rewritten pages: %w", err)
	}
	return pages, nil
}

// MigrateToLocale moves every page from sourceLocale to targetLocale,
// skipping paths the target locale already occupies.
func (r *SQLPageRepository) MigrateToLocale(ctx context.Context, sourceLocale, targetLocale string) error {
	// The derived table keeps MySQL happy about updating a table
	// referenced in its own subquery.
	query := `UPDATE pages SET locale_code = ?
		WHERE locale_code = ?
		AND path NOT IN (
			SELECT path FROM (SELECT path FROM pages WHERE locale_code = ?) AS occupied
		)`
	if _, err := r.db.ExecContext(ctx, query, targetLocale, sourceLocale, targetLocale); err != nil {
		return fmt.Errorf("failed to migrate pages to locale %q: %w", targetLocale, err)
	}
	return nil
}

func requireRows(res sql.Result, id int64) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("page %d: %w", id, ErrNotFound)
	}
	return nil
}

// likePrefix escapes LIKE metacharacters in prefix and appends the
// wildcard, so a path containing "_" cannot match unrelated rows. The
// escape character is '|' because its quoting is identical in MySQL and
// SQLite, unlike a backslash.
func likePrefix(prefix string) string {
	escaped := make([]byte, 0, len(prefix)+2)
	for i := 0; i < len(prefix); i++ {
		c := prefix[i]
		if c == '%' || c == '_' || c == '|' {
			escaped = append(escaped, '|')
		}
		escaped = append(escaped, c)
	}
	return string(escaped) + "%"
}
