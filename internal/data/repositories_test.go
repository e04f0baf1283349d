package data

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// testSchema mirrors the migrations in SQLite flavor so repository tests
// run against an in-memory database.
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
CREATE TABLE page_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	page_id INTEGER NOT NULL,
	path TEXT NOT NULL,
	hash TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	is_private BOOLEAN NOT NULL DEFAULT 0,
	is_published BOOLEAN NOT NULL DEFAULT 0,
	publish_start_date TEXT NOT NULL DEFAULT '',
	publish_end_date TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL DEFAULT '',
	content_type TEXT NOT NULL DEFAULT 'markdown',
	editor_key TEXT NOT NULL DEFAULT 'markdown',
	locale_code TEXT NOT NULL DEFAULT 'en',
	author_id INTEGER NOT NULL DEFAULT 0,
	action TEXT NOT NULL,
	version_date DATETIME NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE TABLE page_links (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	page_id INTEGER NOT NULL,
	path TEXT NOT NULL,
	locale_code TEXT NOT NULL
);
CREATE TABLE tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	tag TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL DEFAULT ''
);
CREATE TABLE page_tags (
	page_id INTEGER NOT NULL,
	tag_id INTEGER NOT NULL
);
`

func newTestDB(t *testing.T) *sqlx.DB {
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
	return db
}

func newTestPage(path, locale string) *Page {
	return &Page{
		Path:        path,
		Hash:        "hash-" + path,
		Title:       "Title of " + path,
		Content:     "content",
		ContentType: ContentTypeMarkdown,
		EditorKey:   "markdown",
		LocaleCode:  locale,
		TOC:         "[]",
	}
}

func TestPageRepositoryCreateAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLPageRepository(db)
	ctx := context.Background()

	page := newTestPage("a/b", "en")
	page.Extra = PageExtra{JS: "console.log(1)", CSS: "body{}"}
	id, err := repo.Create(ctx, page)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id")
	}

	got, err := repo.GetByPathLocale(ctx, "a/b", "en")
	if err != nil {
		t.Fatalf("GetByPathLocale failed: %v", err)
	}
	if got.ID != id || got.Title != page.Title {
		t.Errorf("unexpected page: %+v", got)
	}
	if got.Extra.JS != "console.log(1)" || got.Extra.CSS != "body{}" {
		t.Errorf("extra sidecar lost in round trip: %+v", got.Extra)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not stamped on insert")
	}

	if _, err := repo.GetByPathLocale(ctx, "missing", "en"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPageRepositoryExistsAt(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLPageRepository(db)
	ctx := context.Background()

	if _, err := repo.Create(ctx, newTestPage("a/b", "en")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	ok, err := repo.ExistsAt(ctx, "a/b", "en")
	if err != nil || !ok {
		t.Errorf("ExistsAt(a/b, en) = %v, %v; want true", ok, err)
	}
	ok, err = repo.ExistsAt(ctx, "a/b", "de")
	if err != nil || ok {
		t.Errorf("ExistsAt(a/b, de) = %v, %v; want false", ok, err)
	}
}

func TestPageRepositoryRewritePrefix(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLPageRepository(db)
	ctx := context.Background()

	for _, p := range []string{"docs/intro", "docs/api/auth", "docsx/other"} {
		if _, err := repo.Create(ctx, newTestPage(p, "en")); err != nil {
			t.Fatalf("Create(%s) failed: %v", p, err)
		}
	}

	moved, err := repo.RewritePrefix(ctx, "docs/", "docs/", "manual/")
	if err != nil {
		t.Fatalf("RewritePrefix failed: %v", err)
	}
	if len(moved) != 2 {
		t.Fatalf("expected 2 rewritten pages, got %d", len(moved))
	}
	for _, p := range moved {
		if p.Path != "manual/intro" && p.Path != "manual/api/auth" {
			t.Errorf("unexpected rewritten path %q", p.Path)
		}
	}

	// The sibling with a shared name prefix must be untouched.
	if _, err := repo.GetByPathLocale(ctx, "docsx/other", "en"); err != nil {
		t.Errorf("sibling page was rewritten: %v", err)
	}
}

func TestPageRepositoryRewritePrefixToRoot(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLPageRepository(db)
	ctx := context.Background()

	if _, err := repo.Create(ctx, newTestPage("docs/intro", "en")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	moved, err := repo.RewritePrefix(ctx, "docs/", "docs/", "")
	if err != nil {
		t.Fatalf("RewritePrefix failed: %v", err)
	}
	if len(moved) != 1 || moved[0].Path != "intro" {
		t.Fatalf("expected page at root path intro, got %+v", moved)
	}
}

func TestPageRepositoryRewriteExactPath(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLPageRepository(db)
	ctx := context.Background()

	if _, err := repo.Create(ctx, newTestPage("a/b", "en")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	moved, err := repo.RewriteExactPath(ctx, "a/b", "c/d")
	if err != nil {
		t.Fatalf("RewriteExactPath failed: %v", err)
	}
	if len(moved) != 1 || moved[0].Path != "c/d" {
		t.Fatalf("expected single page at c/d, got %+v", moved)
	}
}

func TestPageRepositoryMigrateToLocale(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLPageRepository(db)
	ctx := context.Background()

	if _, err := repo.Create(ctx, newTestPage("home", "en")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := repo.Create(ctx, newTestPage("about", "en")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	// Target locale already has "home"; that path must be skipped.
	if _, err := repo.Create(ctx, newTestPage("home", "de")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := repo.MigrateToLocale(ctx, "en", "de"); err != nil {
		t.Fatalf("MigrateToLocale failed: %v", err)
	}

	if _, err := repo.GetByPathLocale(ctx, "about", "de"); err != nil {
		t.Errorf("about was not migrated: %v", err)
	}
	if _, err := repo.GetByPathLocale(ctx, "home", "en"); err != nil {
		t.Errorf("conflicting page should stay in source locale: %v", err)
	}
}

func TestTreeRepositoryInsertPromoteDelete(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLTreeRepository(db)
	ctx := context.Background()

	parent := int64(1)
	pageID := int64(10)
	nodes := []TreeNode{
		{ID: 1, LocaleCode: "en", Path: "a", Depth: 1, Title: "a", IsFolder: true, Ancestors: AncestorList{}},
		{ID: 2, LocaleCode: "en", Path: "a/b", Depth: 2, Title: "b", Parent: &parent, PageID: &pageID, Ancestors: AncestorList{1}},
	}
	if err := repo.InsertNodes(ctx, nodes); err != nil {
		t.Fatalf("InsertNodes failed: %v", err)
	}

	max, err := repo.MaxNodeID(ctx)
	if err != nil || max != 2 {
		t.Fatalf("MaxNodeID = %d, %v; want 2", max, err)
	}

	loaded, err := repo.NodesByLocale(ctx, "en")
	if err != nil {
		t.Fatalf("NodesByLocale failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(loaded))
	}
	// Newest first ordering.
	if loaded[0].ID != 2 {
		t.Errorf("expected id-descending order, got first id %d", loaded[0].ID)
	}
	if len(loaded[0].Ancestors) != 1 || loaded[0].Ancestors[0] != 1 {
		t.Errorf("ancestors lost in round trip: %v", loaded[0].Ancestors)
	}

	if err := repo.PromoteToFolder(ctx, 2); err != nil {
		t.Fatalf("PromoteToFolder failed: %v", err)
	}
	loaded, _ = repo.NodesByLocale(ctx, "en")
	if !loaded[0].IsFolder {
		t.Error("node 2 was not promoted to folder")
	}

	count, err := repo.CountByPath(ctx, "a/b")
	if err != nil || count != 1 {
		t.Fatalf("CountByPath = %d, %v; want 1", count, err)
	}

	if err := repo.DeleteSubtree(ctx, "a"); err != nil {
		t.Fatalf("DeleteSubtree failed: %v", err)
	}
	loaded, _ = repo.NodesByLocale(ctx, "en")
	if len(loaded) != 0 {
		t.Errorf("expected empty tree after subtree delete, got %d nodes", len(loaded))
	}
}

func TestTreeRepositoryMaxNodeIDEmpty(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLTreeRepository(db)

	max, err := repo.MaxNodeID(context.Background())
	if err != nil {
		t.Fatalf("MaxNodeID failed: %v", err)
	}
	if max != 0 {
		t.Errorf("MaxNodeID on empty tree = %d, want 0", max)
	}
}

func TestLinkRepositoryRewriteRenderMarkers(t *testing.T) {
	db := newTestDB(t)
	pages := NewSQLPageRepository(db)
	links := NewSQLLinkRepository(db)
	ctx := context.Background()

	source := newTestPage("source", "en")
	source.Render = `<p><a href="/en/target" class="is-internal-link is-valid-page">t</a></p>`
	sourceID, err := pages.Create(ctx, source)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	bystander := newTestPage("bystander", "en")
	bystander.Render = source.Render
	if _, err := pages.Create(ctx, bystander); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := links.SetLinksForPage(ctx, sourceID, []PageLink{{Path: "target", LocaleCode: "en"}}); err != nil {
		t.Fatalf("SetLinksForPage failed: %v", err)
	}

	from := `<a href="/en/target" class="is-internal-link is-valid-page">`
	to := `<a href="/en/target" class="is-internal-link is-invalid-page">`
	hashes, err := links.RewriteRenderMarkers(ctx, "target", "en", from, to)
	if err != nil {
		t.Fatalf("RewriteRenderMarkers failed: %v", err)
	}
	if len(hashes) != 1 || hashes[0] != source.Hash {
		t.Fatalf("expected affected hash %q, got %v", source.Hash, hashes)
	}

	got, _ := pages.GetByID(ctx, sourceID)
	if got.Render == source.Render {
		t.Error("indexed page render was not rewritten")
	}
	other, _ := pages.GetByPathLocale(ctx, "bystander", "en")
	if other.Render != bystander.Render {
		t.Error("unindexed page render must not change")
	}
}

func TestHistoryRepositoryAddVersion(t *testing.T) {
	db := newTestDB(t)
	pages := NewSQLPageRepository(db)
	history := NewSQLHistoryRepository(db)
	ctx := context.Background()

	page := newTestPage("a/b", "en")
	if _, err := pages.Create(ctx, page); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := history.AddVersion(ctx, page, ActionMoved); err != nil {
		t.Fatalf("AddVersion failed: %v", err)
	}

	versions, err := history.VersionsForPage(ctx, page.ID)
	if err != nil {
		t.Fatalf("VersionsForPage failed: %v", err)
	}
	if len(versions) != 1 {
		t.Fatalf("expected 1 version, got %d", len(versions))
	}
	if versions[0].Action != ActionMoved || versions[0].Path != "a/b" {
		t.Errorf("unexpected snapshot: %+v", versions[0])
	}
}

func TestTagRepositoryAssociate(t *testing.T) {
	db := newTestDB(t)
	pages := NewSQLPageRepository(db)
	tags := NewSQLTagRepository(db)
	ctx := context.Background()

	page := newTestPage("a", "en")
	id, err := pages.Create(ctx, page)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := tags.Associate(ctx, id, []string{"go", "wiki"}); err != nil {
		t.Fatalf("Associate failed: %v", err)
	}
	// Re-associating with an overlapping set must reuse existing tags.
	if err := tags.Associate(ctx, id, []string{"go", "docs"}); err != nil {
		t.Fatalf("second Associate failed: %v", err)
	}

	got, err := tags.ForPage(ctx, id)
	if err != nil {
		t.Fatalf("ForPage failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 tags, got %d", len(got))
	}
	if got[0].Tag != "docs" || got[1].Tag != "go" {
		t.Errorf("unexpected tags: %+v", got)
	}
}

func TestContentTypeForEditor(t *testing.T) {
	cases := map[string]string{
		"markdown": ContentTypeMarkdown,
		"code":     ContentTypeHTML,
		"ckeditor": ContentTypeHTML,
		"unknown":  ContentTypeText,
	}
	for editor, want := range cases {
		if got := ContentTypeForEditor(editor); got != want {
			t.Errorf("ContentTypeForEditor(%q) = %q, want %q", editor, got, want)
		}
	}
}
