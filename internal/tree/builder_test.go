package tree

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"go-wiki-engine/internal/data"
	"go-wiki-engine/internal/logger"
	"go-wiki-engine/internal/pagepath"
)

const testSchema = `
CREATE TABLE pages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL,
	hash TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	is_private BOOLEAN NOT NULL DEFAULT 0,
	is_published BOOLEAN NOT NULL DEFAULT 0,
	private_ns TEXT NOT NULL DEFAULT '',
	publish_start_date TEXT NOT NULL DEFAULT '',
	publish_end_date TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL DEFAULT '',
	render TEXT NOT NULL DEFAULT '',
	toc TEXT NOT NULL DEFAULT '[]',
	content_type TEXT NOT NULL DEFAULT 'markdown',
	editor_key TEXT NOT NULL DEFAULT 'markdown',
	locale_code TEXT NOT NULL DEFAULT 'en',
	author_id INTEGER NOT NULL DEFAULT 0,
	author_name TEXT NOT NULL DEFAULT '',
	creator_id INTEGER NOT NULL DEFAULT 0,
	creator_name TEXT NOT NULL DEFAULT '',
	extra TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE (path, locale_code)
);
CREATE TABLE page_tree (
	id INTEGER PRIMARY KEY,
	locale_code TEXT NOT NULL,
	path TEXT NOT NULL,
	depth INTEGER NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	is_folder BOOLEAN NOT NULL DEFAULT 0,
	is_private BOOLEAN NOT NULL DEFAULT 0,
	private_ns TEXT,
	parent INTEGER,
	page_id INTEGER,
	ancestors TEXT NOT NULL DEFAULT '[]',
	UNIQUE (locale_code, path)
);
`

type testEnv struct {
	db      *sqlx.DB
	pages   *data.SQLPageRepository
	tree    *data.SQLTreeRepository
	builder *Builder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqlx.Connect("sqlite", "file::memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// Every pool connection to :memory: gets its own database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("failed to create test schema: %v", err)
	}
	pages := data.NewSQLPageRepository(db)
	tr := data.NewSQLTreeRepository(db)
	b, err := NewBuilder(context.Background(), pages, tr, logger.Discard())
	if err != nil {
		t.Fatalf("failed to create builder: %v", err)
	}
	return &testEnv{db: db, pages: pages, tree: tr, builder: b}
}

func (e *testEnv) createPage(t *testing.T, path, locale string) *data.Page {
	t.Helper()
	page := &data.Page{
		Path:        path,
		Hash:        pagepath.Hash(path, locale, ""),
		Title:       "Title of " + path,
		Content:     "content",
		ContentType: data.ContentTypeMarkdown,
		EditorKey:   "markdown",
		LocaleCode:  locale,
		IsPublished: true,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	id, err := e.pages.Create(context.Background(), page)
	if err != nil {
		t.Fatalf("failed to create page %q: %v", path, err)
	}
	page.ID = id
	return page
}

func (e *testEnv) nodeByPath(t *testing.T, locale, path string) *data.TreeNode {
	t.Helper()
	nodes, err := e.tree.NodesByLocale(context.Background(), locale)
	if err != nil {
		t.Fatalf("failed to list tree nodes: %v", err)
	}
	for i := range nodes {
		if nodes[i].Path == path {
			return &nodes[i]
		}
	}
	return nil
}

func TestRebuildForPageCreatesAncestorChain(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	page := env.createPage(t, "docs/guide/install", "en")
	firstID, err := env.builder.RebuildForPage(ctx, page, false)
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	if firstID == 0 {
		t.Fatal("expected new nodes to be reported")
	}

	docs := env.nodeByPath(t, "en", "docs")
	guide := env.nodeByPath(t, "en", "docs/guide")
	leaf := env.nodeByPath(t, "en", "docs/guide/install")
	if docs == nil || guide == nil || leaf == nil {
		t.Fatal("expected one node per path segment")
	}

	if !docs.IsFolder || !guide.IsFolder {
		t.Error("intermediate segments must be folders")
	}
	if leaf.IsFolder {
		t.Error("final segment must be a leaf")
	}
	if docs.Depth != 1 || guide.Depth != 2 || leaf.Depth != 3 {
		t.Errorf("wrong depths: %d %d %d", docs.Depth, guide.Depth, leaf.Depth)
	}
	if docs.Parent != nil {
		t.Error("root node must have no parent")
	}
	if guide.Parent == nil || *guide.Parent != docs.ID {
		t.Error("guide must point at docs")
	}
	if leaf.Parent == nil || *leaf.Parent != guide.ID {
		t.Error("leaf must point at guide")
	}
	if len(leaf.Ancestors) != 2 || leaf.Ancestors[0] != docs.ID || leaf.Ancestors[1] != guide.ID {
		t.Errorf("wrong ancestor chain: %v", leaf.Ancestors)
	}
	if leaf.PageID == nil || *leaf.PageID != page.ID {
		t.Error("leaf must reference the page")
	}
	if leaf.Title != page.Title {
		t.Errorf("leaf title = %q, want %q", leaf.Title, page.Title)
	}
	if docs.Title != "docs" {
		t.Errorf("folder title = %q, want segment name", docs.Title)
	}
}

func TestRebuildForPageIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	page := env.createPage(t, "docs/guide/install", "en")
	if _, err := env.builder.RebuildForPage(ctx, page, false); err != nil {
		t.Fatalf("first rebuild failed: %v", err)
	}
	newID, err := env.builder.RebuildForPage(ctx, page, false)
	if err != nil {
		t.Fatalf("second rebuild failed: %v", err)
	}
	if newID != 0 {
		t.Errorf("second rebuild created node %d, want none", newID)
	}
	nodes, err := env.tree.NodesByLocale(ctx, "en")
	if err != nil {
		t.Fatalf("failed to list tree nodes: %v", err)
	}
	if len(nodes) != 3 {
		t.Errorf("got %d nodes, want 3", len(nodes))
	}
}

func TestRebuildPromotesLeafToFolder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	docs := env.createPage(t, "docs", "en")
	if _, err := env.builder.RebuildForPage(ctx, docs, false); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	if node := env.nodeByPath(t, "en", "docs"); node == nil || node.IsFolder {
		t.Fatal("docs must start as a leaf")
	}

	child := env.createPage(t, "docs/intro", "en")
	if _, err := env.builder.RebuildForPage(ctx, child, false); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}

	node := env.nodeByPath(t, "en", "docs")
	if node == nil || !node.IsFolder {
		t.Error("docs must be promoted to a folder")
	}
	if node.PageID == nil || *node.PageID != docs.ID {
		t.Error("promotion must keep the page reference")
	}
}

func TestRebuildFolderOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	folder := &data.Page{Path: "assets/images", LocaleCode: "en"}
	if _, err := env.builder.RebuildForPage(ctx, folder, true); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	node := env.nodeByPath(t, "en", "assets/images")
	if node == nil || !node.IsFolder {
		t.Error("final segment must be a folder when folderOnly is set")
	}
	if node != nil && node.PageID != nil {
		t.Error("synthesized folder must not reference a page")
	}
}

func TestNewBuilderSeedsCounterFromPersistedNodes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seed := []data.TreeNode{{ID: 41, LocaleCode: "en", Path: "old", Depth: 1, Title: "old"}}
	if err := env.tree.InsertNodes(ctx, seed); err != nil {
		t.Fatalf("failed to seed node: %v", err)
	}
	b, err := NewBuilder(ctx, env.pages, env.tree, logger.Discard())
	if err != nil {
		t.Fatalf("failed to create builder: %v", err)
	}
	if got := b.NextNodeID(); got != 42 {
		t.Errorf("next id = %d, want 42", got)
	}
}

func TestRebuildForSubtreeMovesFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	page := env.createPage(t, "docs/install", "en")
	if _, err := env.builder.RebuildForPage(ctx, page, false); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}

	if err := env.builder.RebuildForSubtree(ctx, "docs/install", "setup/install", false); err != nil {
		t.Fatalf("subtree rebuild failed: %v", err)
	}

	if env.nodeByPath(t, "en", "docs/install") != nil {
		t.Error("old leaf node must be removed")
	}
	moved := env.nodeByPath(t, "en", "setup/install")
	if moved == nil {
		t.Fatal("moved leaf node must exist")
	}
	got, err := env.pages.GetByID(ctx, page.ID)
	if err != nil {
		t.Fatalf("failed to reload page: %v", err)
	}
	if got.Path != "setup/install" {
		t.Errorf("page path = %q, want %q", got.Path, "setup/install")
	}
	if got.Hash != pagepath.Hash("setup/install", "en", "") {
		t.Error("page hash must be recomputed for the new path")
	}
}

func TestBatchMoveCollisionAbortsBeforeMutation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	page := env.createPage(t, "guide", "en")
	if _, err := env.builder.RebuildForPage(ctx, page, false); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	occupied := env.createPage(t, "archive/guide", "en")
	if _, err := env.builder.RebuildForPage(ctx, occupied, false); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}

	err := env.builder.BatchMove(ctx, []MoveItem{{Path: "guide"}}, "archive")
	if !errors.Is(err, ErrTargetPathCollision) {
		t.Fatalf("got error %v, want ErrTargetPathCollision", err)
	}

	got, err := env.pages.GetByID(ctx, page.ID)
	if err != nil {
		t.Fatalf("failed to reload page: %v", err)
	}
	if got.Path != "guide" {
		t.Errorf("source page moved to %q despite collision", got.Path)
	}
	if env.nodeByPath(t, "en", "guide") == nil {
		t.Error("source tree node must be untouched")
	}
}

func TestBatchMoveFolderRelocatesSubtree(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.createPage(t, "docs/a", "en")
	c := env.createPage(t, "docs/b/c", "en")
	for _, p := range []*data.Page{a, c} {
		if _, err := env.builder.RebuildForPage(ctx, p, false); err != nil {
			t.Fatalf("rebuild failed: %v", err)
		}
	}

	err := env.builder.BatchMove(ctx, []MoveItem{{Path: "docs", IsFolder: true}}, "archive")
	if err != nil {
		t.Fatalf("batch move failed: %v", err)
	}

	gotA, err := env.pages.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("failed to reload page: %v", err)
	}
	if gotA.Path != "archive/docs/a" {
		t.Errorf("page path = %q, want %q", gotA.Path, "archive/docs/a")
	}
	gotC, err := env.pages.GetByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("failed to reload page: %v", err)
	}
	if gotC.Path != "archive/docs/b/c" {
		t.Errorf("page path = %q, want %q", gotC.Path, "archive/docs/b/c")
	}
	if gotC.Hash != pagepath.Hash("archive/docs/b/c", "en", "") {
		t.Error("moved page hash must be recomputed")
	}

	if env.nodeByPath(t, "en", "docs") != nil {
		t.Error("old folder node must be removed")
	}
	if env.nodeByPath(t, "en", "archive/docs/b/c") == nil {
		t.Error("moved leaf node must exist")
	}
	folder := env.nodeByPath(t, "en", "archive/docs")
	if folder == nil || !folder.IsFolder {
		t.Error("relocated folder node must exist")
	}
}

func TestBatchMoveFileToRoot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	page := env.createPage(t, "docs/readme", "en")
	if _, err := env.builder.RebuildForPage(ctx, page, false); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}

	if err := env.builder.BatchMove(ctx, []MoveItem{{Path: "docs/readme"}}, ""); err != nil {
		t.Fatalf("batch move failed: %v", err)
	}

	got, err := env.pages.GetByID(ctx, page.ID)
	if err != nil {
		t.Fatalf("failed to reload page: %v", err)
	}
	if got.Path != "readme" {
		t.Errorf("page path = %q, want %q", got.Path, "readme")
	}
	if env.nodeByPath(t, "en", "readme") == nil {
		t.Error("root-level node must exist")
	}
}

func TestBatchDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inFolder := env.createPage(t, "docs/a", "en")
	single := env.createPage(t, "about", "en")
	bystander := env.createPage(t, "docsx", "en")
	for _, p := range []*data.Page{inFolder, single, bystander} {
		if _, err := env.builder.RebuildForPage(ctx, p, false); err != nil {
			t.Fatalf("rebuild failed: %v", err)
		}
	}

	err := env.builder.BatchDelete(ctx, []MoveItem{
		{Path: "docs", IsFolder: true},
		{Path: "about"},
	})
	if err != nil {
		t.Fatalf("batch delete failed: %v", err)
	}

	if _, err := env.pages.GetByID(ctx, inFolder.ID); !errors.Is(err, data.ErrNotFound) {
		t.Error("page under deleted folder must be gone")
	}
	if _, err := env.pages.GetByID(ctx, single.ID); !errors.Is(err, data.ErrNotFound) {
		t.Error("deleted file must be gone")
	}
	if _, err := env.pages.GetByID(ctx, bystander.ID); err != nil {
		t.Error("sibling with a shared name prefix must survive")
	}
	if env.nodeByPath(t, "en", "docs") != nil || env.nodeByPath(t, "en", "docs/a") != nil {
		t.Error("folder tree nodes must be removed")
	}
	if env.nodeByPath(t, "en", "about") != nil {
		t.Error("file tree node must be removed")
	}
	if env.nodeByPath(t, "en", "docsx") == nil {
		t.Error("sibling tree node must survive")
	}
}
