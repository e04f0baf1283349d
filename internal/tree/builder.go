// Package tree materializes the flat path-keyed pages table into the
// navigable folder/page hierarchy persisted in page_tree, and performs
// the bulk structural moves and deletes that operate on whole subtrees.
package tree

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go-wiki-engine/internal/data"
	"go-wiki-engine/internal/logger"
	"go-wiki-engine/internal/pagepath"
)

// ErrTargetPathCollision aborts a batch move before any mutation when an
// item's destination name is already occupied.
var ErrTargetPathCollision = errors.New("an item with the same name already exists at the target path")

// PageStore is the slice of page persistence the builder needs for
// subtree rewrites.
type PageStore interface {
	RewritePrefix(ctx context.Context, matchPrefix, stripPrefix, newPrefix string) ([]data.Page, error)
	RewriteExactPath(ctx context.Context, oldPath, newPath string) ([]data.Page, error)
	DeleteByExactPath(ctx context.Context, path string) error
	DeleteSubtree(ctx context.Context, folderPath string) error
	UpdateHash(ctx context.Context, id int64, hash string) error
	ListByLocale(ctx context.Context, locale string) ([]data.Page, error)
}

// TreeStore is the page_tree persistence consumed by the builder.
type TreeStore interface {
	NodesByLocale(ctx context.Context, locale string) ([]data.TreeNode, error)
	MaxNodeID(ctx context.Context) (int64, error)
	InsertNodes(ctx context.Context, nodes []data.TreeNode) error
	PromoteToFolder(ctx context.Context, id int64) error
	UpdateTitleByPageID(ctx context.Context, pageID int64, title string) error
	DeleteByPath(ctx context.Context, path string) error
	DeleteByPathLocale(ctx context.Context, path, locale string) error
	DeleteByLocale(ctx context.Context, locale string) error
	DeleteSubtree(ctx context.Context, folderPath string) error
	CountByPath(ctx context.Context, path string) (int64, error)
}

// MoveItem identifies one source of a batch move or delete.
type MoveItem struct {
	Path     string `json:"path"`
	IsFolder bool   `json:"isFolder"`
}

// Builder incrementally extends the persisted tree. Node identity comes
// from a single process-wide counter; allocation is atomic so concurrent
// rebuilds never hand out the same id. Rebuilds are additionally
// serialized per locale, which makes the folder-promotion check
// race-free for paths sharing a prefix.
type Builder struct {
	pages   PageStore
	tree    TreeStore
	log     logger.Logger
	counter atomic.Int64

	mu      sync.Mutex
	locales map[string]*sync.Mutex
}

// NewBuilder seeds the node id counter from the highest persisted id.
func NewBuilder(ctx context.Context, pages PageStore, tree TreeStore, log logger.Logger) (*Builder, error) {
	b := &Builder{
		pages:   pages,
		tree:    tree,
		log:     log,
		locales: make(map[string]*sync.Mutex),
	}
	max, err := tree.MaxNodeID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to seed tree node counter: %w", err)
	}
	b.counter.Store(max)
	return b, nil
}

// NextNodeID atomically allocates the next tree node id.
func (b *Builder) NextNodeID() int64 {
	return b.counter.Add(1)
}

func (b *Builder) localeLock(locale string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.locales[locale]
	if !ok {
		l = &sync.Mutex{}
		b.locales[locale] = l
	}
	return l
}

// RebuildForPage extends the tree so that every ancestor segment of the
// page's path exists, reusing persisted nodes, promoting leaves to
// folders where a longer path now runs through them, and creating the
// missing remainder. With folderOnly set the final segment is also
// synthesized as a folder (used when creating empty folders). New nodes
// are buffered during the walk and persisted in one chunked insert after
// it completes, so a failed walk leaves nothing half-written. Returns
// the id of the first newly created node, or 0 when the tree already
// covered the whole path.
func (b *Builder) RebuildForPage(ctx context.Context, page *data.Page, folderOnly bool) (int64, error) {
	lock := b.localeLock(page.LocaleCode)
	lock.Lock()
	defer lock.Unlock()

	segments := pagepath.Segments(page.Path)
	if len(segments) == 0 {
		return 0, nil
	}

	existing, err := b.tree.NodesByLocale(ctx, page.LocaleCode)
	if err != nil {
		return 0, err
	}

	var batch []data.TreeNode
	var promotions []int64
	var parentID *int64
	ancestors := data.AncestorList{}
	currentPath := ""

	for depth, segment := range segments {
		isFolder := depth < len(segments)-1 || folderOnly
		currentPath = pagepath.JoinUnder(currentPath, segment)

		// The lookup checks both the persisted tree and the batch being
		// constructed in this call.
		found := findNode(existing, currentPath)
		inBatch := -1
		if found == nil {
			for i := range batch {
				if batch[i].Path == currentPath {
					inBatch = i
					break
				}
			}
		}

		var resolvedID int64
		switch {
		case found == nil && inBatch < 0:
			id := b.NextNodeID()
			node := data.TreeNode{
				ID:         id,
				LocaleCode: page.LocaleCode,
				Path:       currentPath,
				Depth:      depth + 1,
				IsFolder:   isFolder,
				Parent:     parentID,
				Ancestors:  append(data.AncestorList{}, ancestors...),
			}
			if isFolder {
				node.Title = segment
			} else {
				node.Title = page.Title
				node.IsPrivate = page.IsPrivate
				if page.PrivateNS != "" {
					ns := page.PrivateNS
					node.PrivateNS = &ns
				}
				pageID := page.ID
				node.PageID = &pageID
			}
			batch = append(batch, node)
			resolvedID = id
		case inBatch >= 0:
			if isFolder && !batch[inBatch].IsFolder {
				batch[inBatch].IsFolder = true
			}
			resolvedID = batch[inBatch].ID
		default:
			if isFolder && !found.IsFolder {
				// Promotion is one-way and persisted, never demoted.
				promotions = append(promotions, found.ID)
				found.IsFolder = true
			}
			resolvedID = found.ID
		}

		ancestors = append(ancestors, resolvedID)
		id := resolvedID
		parentID = &id
	}

	for _, id := range promotions {
		if err := b.tree.PromoteToFolder(ctx, id); err != nil {
			return 0, err
		}
	}
	if len(batch) > 0 {
		if err := b.tree.InsertNodes(ctx, batch); err != nil {
			return 0, err
		}
		return batch[0].ID, nil
	}
	return 0, nil
}

func findNode(nodes []data.TreeNode, path string) *data.TreeNode {
	for i := range nodes {
		if nodes[i].Path == path {
			return &nodes[i]
		}
	}
	return nil
}

// RebuildForSubtree rewrites every page under oldPath to live under
// newPath (a pure prefix replace at the database layer), drops the stale
// tree rows and regenerates nodes for each rewritten page. For a
// single-file move only the one path is rewritten. Both paths must
// already be validated.
func (b *Builder) RebuildForSubtree(ctx context.Context, oldPath, newPath string, isFolder bool) error {
	if err := pagepath.Validate(oldPath); err != nil {
		return err
	}
	if err := pagepath.Validate(newPath); err != nil {
		return err
	}

	var updated []data.Page
	var err error
	if isFolder {
		oldPath = pagepath.Normalize(oldPath)
		newPath = pagepath.Normalize(newPath)
		newPrefix := ""
		if newPath != "" {
			newPrefix = newPath + "/"
		}
		updated, err = b.pages.RewritePrefix(ctx, oldPath+"/", oldPath+"/", newPrefix)
		if err != nil {
			return err
		}
		if err := b.tree.DeleteSubtree(ctx, oldPath); err != nil {
			return err
		}
	} else {
		updated, err = b.pages.RewriteExactPath(ctx, oldPath, newPath)
		if err != nil {
			return err
		}
		if err := b.tree.DeleteByPath(ctx, oldPath); err != nil {
			return err
		}
	}

	return b.reindexMoved(ctx, updated)
}

// reindexMoved recomputes the content hash of every rewritten page and
// regenerates its tree nodes.
func (b *Builder) reindexMoved(ctx context.Context, updated []data.Page) error {
	for i := range updated {
		p := &updated[i]
		ns := ""
		if p.IsPrivate {
			ns = p.PrivateNS
		}
		p.Hash = pagepath.Hash(p.Path, p.LocaleCode, ns)
		if err := b.pages.UpdateHash(ctx, p.ID, p.Hash); err != nil {
			return err
		}
		if _, err := b.RebuildForPage(ctx, p, false); err != nil {
			return err
		}
	}
	return nil
}

// RelocatePage updates the tree after a single page moved away from
// oldPath in oldLocale. The caller has already rewritten the page row.
func (b *Builder) RelocatePage(ctx context.Context, oldPath, oldLocale string, page *data.Page) error {
	if err := b.tree.DeleteByPathLocale(ctx, oldPath, oldLocale); err != nil {
		return err
	}
	_, err := b.RebuildForPage(ctx, page, false)
	return err
}

// RemovePage drops the tree node of a deleted page.
func (b *Builder) RemovePage(ctx context.Context, path, locale string) error {
	return b.tree.DeleteByPathLocale(ctx, path, locale)
}

// UpdatePageTitle keeps the tree node title in sync with a retitled
// page.
func (b *Builder) UpdatePageTitle(ctx context.Context, pageID int64, title string) error {
	return b.tree.UpdateTitleByPageID(ctx, pageID, title)
}

// RegenerateForLocales rebuilds the tree of each locale from scratch,
// after a change too broad to patch incrementally.
func (b *Builder) RegenerateForLocales(ctx context.Context, locales ...string) error {
	for _, locale := range locales {
		if err := b.tree.DeleteByLocale(ctx, locale); err != nil {
			return err
		}
		pages, err := b.pages.ListByLocale(ctx, locale)
		if err != nil {
			return err
		}
		for i := range pages {
			if _, err := b.RebuildForPage(ctx, &pages[i], false); err != nil {
				return err
			}
		}
	}
	return nil
}

// BatchMove relocates several files and folders under targetPath. The
// whole batch is collision-checked in a dry run before anything is
// touched: if any item's name already exists under the target, the
// batch fails with ErrTargetPathCollision and nothing is mutated. The
// execution phase is then applied per item; it is not transactional
// across items.
func (b *Builder) BatchMove(ctx context.Context, items []MoveItem, targetPath string) error {
	target := pagepath.Normalize(targetPath)

	for _, item := range items {
		candidate := pagepath.JoinUnder(target, pagepath.LastSegment(item.Path))
		count, err := b.tree.CountByPath(ctx, candidate)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%q: %w", candidate, ErrTargetPathCollision)
		}
	}

	for _, item := range items {
		if item.IsFolder {
			// The folder keeps its own name: strip its parent prefix and
			// re-root the remainder (folder name included) under target.
			strip := ""
			if parent := pagepath.ParentPath(item.Path); parent != "" {
				strip = parent + "/"
			}
			newPrefix := ""
			if target != "" {
				newPrefix = target + "/"
			}
			updated, err := b.pages.RewritePrefix(ctx, item.Path+"/", strip, newPrefix)
			if err != nil {
				return err
			}
			if err := b.tree.DeleteSubtree(ctx, item.Path); err != nil {
				return err
			}
			if err := b.reindexMoved(ctx, updated); err != nil {
				return err
			}
		} else {
			newPath := pagepath.JoinUnder(target, pagepath.LastSegment(item.Path))
			updated, err := b.pages.RewriteExactPath(ctx, item.Path, newPath)
			if err != nil {
				return err
			}
			if err := b.tree.DeleteByPath(ctx, item.Path); err != nil {
				return err
			}
			if err := b.reindexMoved(ctx, updated); err != nil {
				return err
			}
		}
	}
	return nil
}

// BatchDelete removes files and whole folder subtrees, independently per
// item. Folder items delete every page strictly under the folder path;
// file items delete the exact path across locales.
func (b *Builder) BatchDelete(ctx context.Context, items []MoveItem) error {
	for _, item := range items {
		path := pagepath.Normalize(item.Path)
		if item.IsFolder {
			if err := b.pages.DeleteSubtree(ctx, path); err != nil {
				return err
			}
			if err := b.tree.DeleteSubtree(ctx, path); err != nil {
				return err
			}
		} else {
			if err := b.pages.DeleteByExactPath(ctx, path); err != nil {
				return err
			}
			if err := b.tree.DeleteByPath(ctx, path); err != nil {
				return err
			}
		}
	}
	return nil
}
