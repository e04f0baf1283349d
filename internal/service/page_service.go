// Package service implements the page lifecycle: every mutation runs
// its effects in a fixed order so history, tree, cache, link markers,
// search and storage stay consistent with the pages table.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-wiki-engine/internal/auth"
	"go-wiki-engine/internal/cache"
	"go-wiki-engine/internal/data"
	"go-wiki-engine/internal/logger"
	"go-wiki-engine/internal/pagepath"
	"go-wiki-engine/internal/search"
	"go-wiki-engine/internal/storage"
	"go-wiki-engine/internal/tree"
)

// PageRepository is the page persistence the lifecycle needs.
type PageRepository interface {
	Create(ctx context.Context, page *data.Page) (int64, error)
	GetByID(ctx context.Context, id int64) (*data.Page, error)
	GetByPathLocale(ctx context.Context, path, locale string) (*data.Page, error)
	ExistsAt(ctx context.Context, path, locale string) (bool, error)
	Update(ctx context.Context, page *data.Page) error
	UpdatePathInfo(ctx context.Context, id int64, path, locale, title, hash string) error
	UpdateContentType(ctx context.Context, id int64, contentType, editorKey string, content *string) error
	Delete(ctx context.Context, id int64) error
	MigrateToLocale(ctx context.Context, sourceLocale, targetLocale string) error
}

// HistoryRepository records immutable page snapshots.
type HistoryRepository interface {
	AddVersion(ctx context.Context, page *data.Page, action string) error
}

// TagRepository maintains page tag associations.
type TagRepository interface {
	Associate(ctx context.Context, pageID int64, tags []string) error
	ForPage(ctx context.Context, pageID int64) ([]data.Tag, error)
}

// LinkRepository performs the marker rewrites of link reconnection.
type LinkRepository interface {
	RewriteRenderMarkers(ctx context.Context, path, locale, from, to string) ([]string, error)
}

// TreeBuilder maintains the materialized page tree.
type TreeBuilder interface {
	RebuildForPage(ctx context.Context, page *data.Page, folderOnly bool) (int64, error)
	RelocatePage(ctx context.Context, oldPath, oldLocale string, page *data.Page) error
	RemovePage(ctx context.Context, path, locale string) error
	UpdatePageTitle(ctx context.Context, pageID int64, title string) error
	RegenerateForLocales(ctx context.Context, locales ...string) error
	BatchMove(ctx context.Context, items []tree.MoveItem, targetPath string) error
	BatchDelete(ctx context.Context, items []tree.MoveItem) error
}

// RenderCache is the hash-addressed render cache.
type RenderCache interface {
	Get(path, locale string, isPrivate bool, privateNS string) (*cache.Entry, bool, error)
	Put(page *data.Page, tags []data.Tag) error
	Evict(hash string) error
	Flush() error
}

// Renderer produces and persists the HTML projection of a page. The
// call blocks until the render completed; it mutates page.Render and
// page.TOC in place.
type Renderer interface {
	Render(ctx context.Context, page *data.Page) error
}

// ContentConverter re-expresses page content in another content type.
type ContentConverter interface {
	Convert(page *data.Page, targetType string) (string, error)
}

// PageService orchestrates the page lifecycle.
type PageService struct {
	pages   PageRepository
	history HistoryRepository
	tags    TagRepository
	links   LinkRepository
	builder TreeBuilder
	cache   RenderCache
	render  Renderer
	convert ContentConverter
	search  search.Engine
	storage storage.Connector
	access  auth.Checker
	log     logger.Logger
}

// Deps bundles the collaborators of the page service.
type Deps struct {
	Pages     PageRepository
	History   HistoryRepository
	Tags      TagRepository
	Links     LinkRepository
	Builder   TreeBuilder
	Cache     RenderCache
	Renderer  Renderer
	Converter ContentConverter
	Search    search.Engine
	Storage   storage.Connector
	Access    auth.Checker
	Log       logger.Logger
}

func NewPageService(d Deps) *PageService {
	return &PageService{
		pages:   d.Pages,
		history: d.History,
		tags:    d.Tags,
		links:   d.Links,
		builder: d.Builder,
		cache:   d.Cache,
		render:  d.Renderer,
		convert: d.Converter,
		search:  d.Search,
		storage: d.Storage,
		access:  d.Access,
		log:     d.Log,
	}
}

// GetOptions identifies a page for the read path.
type GetOptions struct {
	Path      string
	Locale    string
	IsPrivate bool
	PrivateNS string
}

// GetPage serves the read path cache-first. A miss loads the page from
// the database and repopulates the cache. Pages served from cache carry
// no source content.
func (s *PageService) GetPage(ctx context.Context, user *auth.User, opts GetOptions) (*data.Page, []data.Tag, error) {
	path := pagepath.Normalize(opts.Path)
	if err := pagepath.Validate(path); err != nil {
		return nil, nil, fmt.Errorf("%q: %w", opts.Path, ErrPageIllegalPath)
	}
	if err := s.requireAccess(user, []string{auth.CapReadPages}, opts.Locale, path, ErrPageViewForbidden); err != nil {
		return nil, nil, err
	}

	ns := ""
	if opts.IsPrivate {
		ns = opts.PrivateNS
	}
	hash := pagepath.Hash(path, opts.Locale, ns)

	entry, hit, err := s.cache.Get(path, opts.Locale, opts.IsPrivate, opts.PrivateNS)
	if err != nil {
		s.log.Error(err, "render cache read failed, falling back to database")
	}
	if hit {
		page, tags := entry.ToPage()
		page.Hash = hash
		return page, tags, nil
	}

	page, err := s.pages.GetByPathLocale(ctx, path, opts.Locale)
	if errors.Is(err, data.ErrNotFound) {
		return nil, nil, ErrPageNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(page.Render) == "" {
		return nil, nil, ErrPageRenderMissing
	}

	tags, err := s.tags.ForPage(ctx, page.ID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.cache.Put(page, tags); err != nil {
		s.log.Error(err, "failed to repopulate render cache")
	}
	return page, tags, nil
}

// CreateOptions carries the input of a page creation.
type CreateOptions struct {
	Path             string
	Locale           string
	Title            string
	Description      string
	Editor           string
	Content          string
	IsPublished      bool
	IsPrivate        bool
	PrivateNS        string
	PublishStartDate string
	PublishEndDate   string
	Tags             []string
	ScriptJS         string
	ScriptCSS        string
}

// CreatePage creates a page and runs the full effect chain: persist,
// tag, render, tree, cache, search, storage and link reconnection.
func (s *PageService) CreatePage(ctx context.Context, user *auth.User, opts CreateOptions) (*data.Page, error) {
	path := pagepath.Normalize(opts.Path)
	if err := pagepath.Validate(path); err != nil {
		return nil, fmt.Errorf("%q: %w", opts.Path, ErrPageIllegalPath)
	}

	caps := []string{auth.CapWritePages}
	if opts.ScriptJS != "" {
		caps = append(caps, auth.CapWriteScripts)
	}
	if opts.ScriptCSS != "" {
		caps = append(caps, auth.CapWriteStyles)
	}
	if err := s.requireAccess(user, caps, opts.Locale, path, ErrPageCreateForbidden); err != nil {
		return nil, err
	}

	exists, err := s.pages.ExistsAt(ctx, path, opts.Locale)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrPageDuplicateCreate
	}
	if strings.TrimSpace(opts.Content) == "" {
		return nil, ErrPageEmptyContent
	}

	ns := ""
	if opts.IsPrivate {
		ns = opts.PrivateNS
	}
	now := time.Now().UTC()
	page := &data.Page{
		Path:             path,
		Hash:             pagepath.Hash(path, opts.Locale, ns),
		Title:            opts.Title,
		Description:      opts.Description,
		IsPrivate:        opts.IsPrivate,
		IsPublished:      opts.IsPublished,
		PrivateNS:        ns,
		PublishStartDate: opts.PublishStartDate,
		PublishEndDate:   opts.PublishEndDate,
		Content:          opts.Content,
		ContentType:      data.ContentTypeForEditor(opts.Editor),
		EditorKey:        opts.Editor,
		LocaleCode:       opts.Locale,
		AuthorID:         user.ID,
		AuthorName:       user.Name,
		CreatorID:        user.ID,
		CreatorName:      user.Name,
		Extra:            data.PageExtra{JS: opts.ScriptJS, CSS: opts.ScriptCSS},
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	id, err := s.pages.Create(ctx, page)
	if err != nil {
		return nil, err
	}
	page.ID = id

	if err := s.tags.Associate(ctx, id, opts.Tags); err != nil {
		return nil, err
	}
	tags, err := s.tags.ForPage(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.render.Render(ctx, page); err != nil {
		return nil, err
	}
	if _, err := s.builder.RebuildForPage(ctx, page, false); err != nil {
		return nil, err
	}

	if err := s.cache.Put(page, tags); err != nil {
		s.log.Error(err, "failed to cache created page")
	}
	if err := s.search.Created(ctx, search.NewIndexDoc(page, tags)); err != nil {
		s.log.Error(err, "search index add failed")
	}
	if err := s.storage.PageEvent(ctx, storage.Event{Kind: storage.KindCreated, Page: page}); err != nil {
		s.log.Error(err, "storage sync failed")
	}

	// Pages that linked here before this page existed get their markers
	// flipped to valid.
	if err := s.reconnectLinks(ctx, reconnectOptions{Locale: opts.Locale, Path: path, Mode: reconnectCreate}); err != nil {
		return nil, err
	}
	return page, nil
}

// UpdateOptions carries the input of a page update. Nil pointers leave
// the corresponding field untouched; a destination path or locale turns
// the update into a move after the content is saved.
type UpdateOptions struct {
	ID               int64
	Content          *string
	Title            *string
	Description      *string
	IsPublished      *bool
	PublishStartDate *string
	PublishEndDate   *string
	Tags             []string
	ScriptJS         *string
	ScriptCSS        *string

	DestinationPath   string
	DestinationLocale string
}

// UpdatePage saves new content for an existing page. The previous state
// is snapshotted to history before anything is written. When the
// options carry a new path or locale the page is moved afterwards.
func (s *PageService) UpdatePage(ctx context.Context, user *auth.User, opts UpdateOptions) (*data.Page, error) {
	page, err := s.loadPage(ctx, opts.ID)
	if err != nil {
		return nil, err
	}

	caps := []string{auth.CapWritePages}
	if opts.ScriptJS != nil && *opts.ScriptJS != page.Extra.JS {
		caps = append(caps, auth.CapWriteScripts)
	}
	if opts.ScriptCSS != nil && *opts.ScriptCSS != page.Extra.CSS {
		caps = append(caps, auth.CapWriteStyles)
	}
	if err := s.requireAccess(user, caps, page.LocaleCode, page.Path, ErrPageUpdateForbidden); err != nil {
		return nil, err
	}
	if opts.Content != nil && strings.TrimSpace(*opts.Content) == "" {
		return nil, ErrPageEmptyContent
	}

	// Snapshot the state being replaced.
	if err := s.history.AddVersion(ctx, page, data.ActionUpdated); err != nil {
		return nil, err
	}

	if opts.Content != nil {
		page.Content = *opts.Content
	}
	titleChanged := false
	if opts.Title != nil && *opts.Title != page.Title {
		page.Title = *opts.Title
		titleChanged = true
	}
	if opts.Description != nil {
		page.Description = *opts.Description
	}
	if opts.IsPublished != nil {
		page.IsPublished = *opts.IsPublished
	}
	if opts.PublishStartDate != nil {
		page.PublishStartDate = *opts.PublishStartDate
	}
	if opts.PublishEndDate != nil {
		page.PublishEndDate = *opts.PublishEndDate
	}
	if opts.ScriptJS != nil {
		page.Extra.JS = *opts.ScriptJS
	}
	if opts.ScriptCSS != nil {
		page.Extra.CSS = *opts.ScriptCSS
	}
	page.AuthorID = user.ID
	page.AuthorName = user.Name
	page.UpdatedAt = time.Now().UTC()

	if err := s.pages.Update(ctx, page); err != nil {
		return nil, err
	}
	if opts.Tags != nil {
		if err := s.tags.Associate(ctx, page.ID, opts.Tags); err != nil {
			return nil, err
		}
	}
	tags, err := s.tags.ForPage(ctx, page.ID)
	if err != nil {
		return nil, err
	}

	if err := s.render.Render(ctx, page); err != nil {
		return nil, err
	}
	if titleChanged {
		if err := s.builder.UpdatePageTitle(ctx, page.ID, page.Title); err != nil {
			return nil, err
		}
	}

	// Peers holding the stale render drop it; this instance keeps the
	// fresh one.
	if err := s.cache.Evict(page.Hash); err != nil {
		s.log.Error(err, "failed to evict stale render from cache")
	}
	if err := s.cache.Put(page, tags); err != nil {
		s.log.Error(err, "failed to cache updated page")
	}
	if err := s.search.Updated(ctx, search.NewIndexDoc(page, tags)); err != nil {
		s.log.Error(err, "search index update failed")
	}
	if err := s.storage.PageEvent(ctx, storage.Event{Kind: storage.KindUpdated, Page: page}); err != nil {
		s.log.Error(err, "storage sync failed")
	}

	// Relocation piggybacks on the update call.
	destPath := pagepath.Normalize(opts.DestinationPath)
	destLocale := opts.DestinationLocale
	if destLocale == "" {
		destLocale = page.LocaleCode
	}
	if destPath != "" && (destPath != page.Path || destLocale != page.LocaleCode) {
		return s.MovePage(ctx, user, MoveOptions{
			ID:                page.ID,
			DestinationPath:   destPath,
			DestinationLocale: destLocale,
		})
	}
	return page, nil
}

// ConvertPage switches the page to the content type implied by the
// target editor, converting the source content when the pair supports
// it.
func (s *PageService) ConvertPage(ctx context.Context, user *auth.User, id int64, targetEditor string) (*data.Page, error) {
	page, err := s.loadPage(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireAccess(user, []string{auth.CapWritePages}, page.LocaleCode, page.Path, ErrPageUpdateForbidden); err != nil {
		return nil, err
	}

	targetType := data.ContentTypeForEditor(targetEditor)
	if targetType == page.ContentType && targetEditor == page.EditorKey {
		return page, nil
	}

	converted, err := s.convert.Convert(page, targetType)
	if err != nil {
		return nil, err
	}

	if err := s.history.AddVersion(ctx, page, data.ActionUpdated); err != nil {
		return nil, err
	}
	if err := s.pages.UpdateContentType(ctx, page.ID, targetType, targetEditor, &converted); err != nil {
		return nil, err
	}
	page.ContentType = targetType
	page.EditorKey = targetEditor
	page.Content = converted

	if err := s.render.Render(ctx, page); err != nil {
		return nil, err
	}

	tags, err := s.tags.ForPage(ctx, page.ID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Evict(page.Hash); err != nil {
		s.log.Error(err, "failed to evict stale render from cache")
	}
	if err := s.cache.Put(page, tags); err != nil {
		s.log.Error(err, "failed to cache converted page")
	}
	if err := s.search.Updated(ctx, search.NewIndexDoc(page, tags)); err != nil {
		s.log.Error(err, "search index update failed")
	}
	if err := s.storage.PageEvent(ctx, storage.Event{Kind: storage.KindUpdated, Page: page}); err != nil {
		s.log.Error(err, "storage sync failed")
	}
	return page, nil
}

// MoveOptions carries the input of a single page move.
type MoveOptions struct {
	ID                int64
	DestinationPath   string
	DestinationLocale string
}

// MovePage relocates a page to a new path or locale. Links pointing at
// the old location are repointed at the new one, links that already
// targeted the new location flip to valid, and the stale cache entry
// is evicted.
func (s *PageService) MovePage(ctx context.Context, user *auth.User, opts MoveOptions) (*data.Page, error) {
	page, err := s.loadPage(ctx, opts.ID)
	if err != nil {
		return nil, err
	}

	destPath := pagepath.Normalize(opts.DestinationPath)
	if err := pagepath.Validate(destPath); err != nil {
		return nil, fmt.Errorf("%q: %w", opts.DestinationPath, ErrPageIllegalPath)
	}
	destLocale := opts.DestinationLocale
	if destLocale == "" {
		destLocale = page.LocaleCode
	}

	// Moving needs manage rights on the source and write rights on the
	// destination.
	if err := s.requireAccess(user, []string{auth.CapManagePages}, page.LocaleCode, page.Path, ErrPageMoveForbidden); err != nil {
		return nil, err
	}
	if err := s.requireAccess(user, []string{auth.CapWritePages}, destLocale, destPath, ErrPageMoveForbidden); err != nil {
		return nil, err
	}

	occupied, err := s.pages.ExistsAt(ctx, destPath, destLocale)
	if err != nil {
		return nil, err
	}
	if occupied {
		return nil, ErrPagePathCollision
	}

	if err := s.history.AddVersion(ctx, page, data.ActionMoved); err != nil {
		return nil, err
	}

	oldPath := page.Path
	oldLocale := page.LocaleCode
	oldHash := page.Hash

	// A title that was never customized follows the path.
	destTitle := page.Title
	if page.Title == pagepath.LastSegment(page.Path) {
		destTitle = pagepath.LastSegment(destPath)
	}

	ns := ""
	if page.IsPrivate {
		ns = page.PrivateNS
	}
	newHash := pagepath.Hash(destPath, destLocale, ns)

	if err := s.pages.UpdatePathInfo(ctx, page.ID, destPath, destLocale, destTitle, newHash); err != nil {
		return nil, err
	}
	page.Path = destPath
	page.LocaleCode = destLocale
	page.Title = destTitle
	page.Hash = newHash

	if err := s.cache.Evict(oldHash); err != nil {
		s.log.Error(err, "failed to evict moved page from cache")
	}

	if err := s.builder.RelocatePage(ctx, oldPath, oldLocale, page); err != nil {
		return nil, err
	}

	tags, err := s.tags.ForPage(ctx, page.ID)
	if err != nil {
		return nil, err
	}
	doc := search.NewIndexDoc(page, tags)
	doc.Path = oldPath
	doc.LocaleCode = oldLocale
	if err := s.search.Renamed(ctx, doc, destPath, destLocale); err != nil {
		s.log.Error(err, "search index rename failed")
	}
	if err := s.storage.PageEvent(ctx, storage.Event{
		Kind: storage.KindMoved, Page: page, PrevPath: oldPath, PrevLocale: oldLocale,
	}); err != nil {
		s.log.Error(err, "storage sync failed")
	}

	// Links to the old location are repointed at the new one; links that
	// already targeted the new location become valid.
	if err := s.reconnectLinks(ctx, reconnectOptions{
		Locale:       destLocale,
		Path:         destPath,
		SourceLocale: oldLocale,
		SourcePath:   oldPath,
		Mode:         reconnectMove,
	}); err != nil {
		return nil, err
	}
	if err := s.reconnectLinks(ctx, reconnectOptions{Locale: destLocale, Path: destPath, Mode: reconnectCreate}); err != nil {
		return nil, err
	}
	return page, nil
}

// DeletePage removes a page and flips every link pointing at it to
// invalid.
func (s *PageService) DeletePage(ctx context.Context, user *auth.User, id int64) error {
	page, err := s.loadPage(ctx, id)
	if err != nil {
		return err
	}
	if err := s.requireAccess(user, []string{auth.CapDeletePages}, page.LocaleCode, page.Path, ErrPageDeleteForbidden); err != nil {
		return err
	}

	if err := s.history.AddVersion(ctx, page, data.ActionDeleted); err != nil {
		return err
	}
	if err := s.pages.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.cache.Evict(page.Hash); err != nil {
		s.log.Error(err, "failed to evict deleted page from cache")
	}
	if err := s.builder.RemovePage(ctx, page.Path, page.LocaleCode); err != nil {
		return err
	}
	if err := s.search.Deleted(ctx, search.NewIndexDoc(page, nil)); err != nil {
		s.log.Error(err, "search index remove failed")
	}
	if err := s.storage.PageEvent(ctx, storage.Event{Kind: storage.KindDeleted, Page: page}); err != nil {
		s.log.Error(err, "storage sync failed")
	}
	if err := s.reconnectLinks(ctx, reconnectOptions{Locale: page.LocaleCode, Path: page.Path, Mode: reconnectDelete}); err != nil {
		return err
	}
	return nil
}

// BatchMove relocates several files and folders under a target path.
// The batch is collision-checked before any mutation. Batch operations
// span locales, so access is checked against every locale.
func (s *PageService) BatchMove(ctx context.Context, user *auth.User, items []tree.MoveItem, targetPath string) error {
	if err := s.requireAccess(user, []string{auth.CapManagePages}, "*", pagepath.Normalize(targetPath), ErrBatchForbidden); err != nil {
		return err
	}
	if err := s.builder.BatchMove(ctx, items, targetPath); err != nil {
		if errors.Is(err, tree.ErrTargetPathCollision) {
			return fmt.Errorf("%w: %w", ErrPagePathCollision, err)
		}
		return err
	}
	// Hashes under the moved prefixes all changed.
	if err := s.cache.Flush(); err != nil {
		s.log.Error(err, "failed to flush render cache after batch move")
	}
	return nil
}

// BatchDelete removes several files and folder subtrees.
func (s *PageService) BatchDelete(ctx context.Context, user *auth.User, items []tree.MoveItem) error {
	if err := s.requireAccess(user, []string{auth.CapManagePages, auth.CapDeletePages}, "*", "", ErrBatchForbidden); err != nil {
		return err
	}
	if err := s.builder.BatchDelete(ctx, items); err != nil {
		return err
	}
	if err := s.cache.Flush(); err != nil {
		s.log.Error(err, "failed to flush render cache after batch delete")
	}
	return nil
}

// MigrateToLocale moves every page of one locale to another, skipping
// paths the target already occupies, and regenerates both trees.
func (s *PageService) MigrateToLocale(ctx context.Context, user *auth.User, sourceLocale, targetLocale string) error {
	if err := s.requireAccess(user, []string{auth.CapManagePages}, "*", "", ErrBatchForbidden); err != nil {
		return err
	}
	if err := s.pages.MigrateToLocale(ctx, sourceLocale, targetLocale); err != nil {
		return err
	}
	if err := s.builder.RegenerateForLocales(ctx, sourceLocale, targetLocale); err != nil {
		return err
	}
	if err := s.cache.Flush(); err != nil {
		s.log.Error(err, "failed to flush render cache after locale migration")
	}
	return nil
}

func (s *PageService) loadPage(ctx context.Context, id int64) (*data.Page, error) {
	page, err := s.pages.GetByID(ctx, id)
	if errors.Is(err, data.ErrNotFound) {
		return nil, ErrPageNotFound
	}
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (s *PageService) requireAccess(user *auth.User, caps []string, locale, path string, denied error) error {
	ok, err := s.access.CheckAccess(user, caps, locale, path)
	if err != nil {
		return err
	}
	if !ok {
		return denied
	}
	return nil
}
