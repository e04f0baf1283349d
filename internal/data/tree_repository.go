package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// treeInsertChunkSize bounds multi-row inserts so a deep path cannot
// blow past backend parameter-count limits (SQLite is the tightest).
const treeInsertChunkSize = 60

// SQLTreeRepository is the sqlx implementation of pageTree persistence.
type SQLTreeRepository struct {
	db *sqlx.DB
}

// NewSQLTreeRepository creates a new SQLTreeRepository.
func NewSQLTreeRepository(db *sqlx.DB) *SQLTreeRepository {
	return &SQLTreeRepository{db: db}
}

// NodesByLocale loads every tree node for a locale, newest id first.
func (r *SQLTreeRepository) NodesByLocale(ctx context.Context, locale string) ([]TreeNode, error) {
	var nodes []TreeNode
	query := `SELECT id, locale_code, path, depth, title, is_folder, is_private,
		private_ns, parent, page_id, ancestors
		FROM page_tree WHERE locale_code = ? ORDER BY id DESC`
	if err := r.db.SelectContext(ctx, &nodes, query, locale); err != nil {
		return nil, fmt.Errorf("failed to load tree nodes for locale %q: %w", locale, err)
	}
	return nodes, nil
}

// MaxNodeID returns the highest allocated tree node id, or 0 for an
// empty tree. Used to seed the process-wide id counter.
func (r *SQLTreeRepository) MaxNodeID(ctx context.Context) (int64, error) {
	var max sql.NullInt64
	if err := r.db.GetContext(ctx, &max, `SELECT MAX(id) FROM page_tree`); err != nil {
		return 0, fmt.Errorf("failed to read max tree node id: %w", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return max.Int64, nil
}

// InsertNodes persists new tree nodes in bounded-size chunks. Node ids
// are caller-allocated, so the insert carries them explicitly.
func (r *SQLTreeRepository) InsertNodes(ctx context.Context, nodes []TreeNode) error {
	query := `INSERT INTO page_tree (id, locale_code, path, depth, title, is_folder,
		is_private, private_ns, parent, page_id, ancestors)
		VALUES (:id, :locale_code, :path, :depth, :title, :is_folder,
		:is_private, :private_ns, :parent, :page_id, :ancestors)`
	for start := 0; start < len(nodes); start += treeInsertChunkSize {
		end := start + treeInsertChunkSize
		if end > len(nodes) {
			end = len(nodes)
		}
		if _, err := r.db.NamedExecContext(ctx, query, nodes[start:end]); err != nil {
			return fmt.Errorf("failed to insert tree nodes: %w", err)
		}
	}
	return nil
}

// PromoteToFolder marks an existing node as a folder. Promotions are
// one-way: a folder is never demoted back to a leaf.
func (r *SQLTreeRepository) PromoteToFolder(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE page_tree SET is_folder = ? WHERE id = ?`, true, id)
	if err != nil {
		return fmt.Errorf("failed to promote tree node %d: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("tree node %d: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateTitleByPageID refreshes the leaf node title after a page rename
// that did not move the page.
func (r *SQLTreeRepository) UpdateTitleByPageID(ctx context.Context, pageID int64, title string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE page_tree SET title = ? WHERE page_id = ?`, title, pageID); err != nil {
		return fmt.Errorf("failed to update tree title for page %d: %w", pageID, err)
	}
	return nil
}

// DeleteByPath removes the node at an exact path across locales.
func (r *SQLTreeRepository) DeleteByPath(ctx context.Context, path string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM page_tree WHERE path = ?`, path); err != nil {
		return fmt.Errorf("failed to delete tree node at %q: %w", path, err)
	}
	return nil
}

// DeleteByPathLocale removes the node at an exact (path, locale).
func (r *SQLTreeRepository) DeleteByPathLocale(ctx context.Context, path, locale string) error {
	query := `DELETE FROM page_tree WHERE path = ? AND locale_code = ?`
	if _, err := r.db.ExecContext(ctx, query, path, locale); err != nil {
		return fmt.Errorf("failed to delete tree node at %s/%s: %w", locale, path, err)
	}
	return nil
}

// DeleteSubtree removes the folder node at folderPath along with every
// node underneath it.
func (r *SQLTreeRepository) DeleteSubtree(ctx context.Context, folderPath string) error {
	query := `DELETE FROM page_tree WHERE path LIKE ? ESCAPE '|' OR path = ?`
	if _, err := r.db.ExecContext(ctx, query, likePrefix(folderPath+"/"), folderPath); err != nil {
		return fmt.Errorf("failed to delete tree subtree %q: %w", folderPath, err)
	}
	return nil
}

// DeleteByLocale removes every node of one locale. Used before a full
// locale regeneration.
func (r *SQLTreeRepository) DeleteByLocale(ctx context.Context, locale string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM page_tree WHERE locale_code = ?`, locale); err != nil {
		return fmt.Errorf("failed to delete tree for locale %q: %w", locale, err)
	}
	return nil
}

// CountByPath counts nodes occupying an exact path, any locale. Used by
// the batch-move dry-run collision check.
func (r *SQLTreeRepository) CountByPath(ctx context.Context, path string) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM page_tree WHERE path = ?`, path); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to count tree nodes at %q: %w", path, err)
	}
	return count, nil
}
