package cache

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"go-wiki-engine/internal/data"
)

// TagProjection is the {tag, title} pair kept in the cache entry.
type TagProjection struct {
	Tag   string `msgpack:"tag"`
	Title string `msgpack:"title"`
}

// ExtraProjection is the {js, css} sidecar kept in the cache entry.
type ExtraProjection struct {
	JS  string `msgpack:"js"`
	CSS string `msgpack:"css"`
}

// Entry is the fixed binary projection of a page stored in the render
// cache. Fields outside this schema are dropped on purpose: the cache is
// a read projection, not an audit trail. Path, locale and privacy are
// not stored; they are implied by the hash key and filled in by Get.
type Entry struct {
	ID               int64           `msgpack:"id"`
	AuthorID         int64           `msgpack:"authorId"`
	AuthorName       string          `msgpack:"authorName"`
	CreatedAt        time.Time       `msgpack:"createdAt"`
	CreatorID        int64           `msgpack:"creatorId"`
	CreatorName      string          `msgpack:"creatorName"`
	Description      string          `msgpack:"description"`
	EditorKey        string          `msgpack:"editorKey"`
	Extra            ExtraProjection `msgpack:"extra"`
	IsPrivate        bool            `msgpack:"isPrivate"`
	IsPublished      bool            `msgpack:"isPublished"`
	PublishEndDate   string          `msgpack:"publishEndDate"`
	PublishStartDate string          `msgpack:"publishStartDate"`
	ContentType      string          `msgpack:"contentType"`
	Render           string          `msgpack:"render"`
	Tags             []TagProjection `msgpack:"tags"`
	Title            string          `msgpack:"title"`
	TOC              string          `msgpack:"toc"`
	UpdatedAt        time.Time       `msgpack:"updatedAt"`

	// Filled in from the lookup key on Get, never serialized.
	Path       string `msgpack:"-"`
	LocaleCode string `msgpack:"-"`
}

// NewEntry builds the cache projection of a page and its tags.
func NewEntry(page *data.Page, tags []data.Tag) *Entry {
	projected := make([]TagProjection, 0, len(tags))
	for _, t := range tags {
		projected = append(projected, TagProjection{Tag: t.Tag, Title: t.Title})
	}
	return &Entry{
		ID:               page.ID,
		AuthorID:         page.AuthorID,
		AuthorName:       page.AuthorName,
		CreatedAt:        page.CreatedAt,
		CreatorID:        page.CreatorID,
		CreatorName:      page.CreatorName,
		Description:      page.Description,
		EditorKey:        page.EditorKey,
		Extra:            ExtraProjection{JS: page.Extra.JS, CSS: page.Extra.CSS},
		IsPrivate:        page.IsPrivate,
		IsPublished:      page.IsPublished,
		PublishEndDate:   page.PublishEndDate,
		PublishStartDate: page.PublishStartDate,
		ContentType:      page.ContentType,
		Render:           page.Render,
		Tags:             projected,
		Title:            page.Title,
		TOC:              page.TOC,
		UpdatedAt:        page.UpdatedAt,
	}
}

// ToPage rebuilds the readable page view from a cache hit. Source
// content is not part of the projection and stays empty.
func (e *Entry) ToPage() (*data.Page, []data.Tag) {
	tags := make([]data.Tag, 0, len(e.Tags))
	for _, t := range e.Tags {
		tags = append(tags, data.Tag{Tag: t.Tag, Title: t.Title})
	}
	// The hash is the lookup key; the caller already has it.
	page := &data.Page{
		ID:               e.ID,
		Path:             e.Path,
		Title:            e.Title,
		Description:      e.Description,
		IsPrivate:        e.IsPrivate,
		IsPublished:      e.IsPublished,
		PublishStartDate: e.PublishStartDate,
		PublishEndDate:   e.PublishEndDate,
		Render:           e.Render,
		TOC:              e.TOC,
		ContentType:      e.ContentType,
		EditorKey:        e.EditorKey,
		LocaleCode:       e.LocaleCode,
		AuthorID:         e.AuthorID,
		AuthorName:       e.AuthorName,
		CreatorID:        e.CreatorID,
		CreatorName:      e.CreatorName,
		Extra:            data.PageExtra{JS: e.Extra.JS, CSS: e.Extra.CSS},
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
	return page, tags
}

// Encode serializes the entry to its compact binary form.
func (e *Entry) Encode() ([]byte, error) {
	b, err := msgpack.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache entry: %w", err)
	}
	return b, nil
}

// DecodeEntry deserializes a cache blob.
func DecodeEntry(b []byte) (*Entry, error) {
	var e Entry
	if err := msgpack.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return &e, nil
}
