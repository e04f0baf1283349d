package data

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// PageExtra is the {js, css} sidecar stored as a JSON column on pages.
type PageExtra struct {
	JS  string `json:"js"`
	CSS string `json:"css"`
}

// Value implements driver.Valuer so sqlx can persist the sidecar as JSON.
func (e PageExtra) Value() (driver.Value, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal page extra: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner. A NULL or empty column scans to the zero value.
func (e *PageExtra) Scan(src interface{}) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*e = PageExtra{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into PageExtra", src)
	}
	if len(b) == 0 {
		*e = PageExtra{}
		return nil
	}
	if err := json.Unmarshal(b, e); err != nil {
		return fmt.Errorf("failed to unmarshal page extra: %w", err)
	}
	return nil
}

// AncestorList is the ordered root-to-parent chain of tree node ids,
// persisted as a JSON array.
type AncestorList []int64

// Value implements driver.Valuer.
func (a AncestorList) Value() (driver.Value, error) {
	if a == nil {
		a = AncestorList{}
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ancestors: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (a *AncestorList) Scan(src interface{}) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*a = AncestorList{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into AncestorList", src)
	}
	if len(b) == 0 {
		*a = AncestorList{}
		return nil
	}
	if err := json.Unmarshal(b, a); err != nil {
		return fmt.Errorf("failed to unmarshal ancestors: %w", err)
	}
	return nil
}

// Page represents a single wiki page in the database. The (path,
// locale_code) pair is unique; hash is always recomputable from
// (path, locale_code, private_ns) and is refreshed on every move.
type Page struct {
	ID               int64     `db:"id"`
	Path             string    `db:"path"`
	Hash             string    `db:"hash"`
	Title            string    `db:"title"`
	Description      string    `db:"description"`
	IsPrivate        bool      `db:"is_private"`
	IsPublished      bool      `db:"is_published"`
	PrivateNS        string    `db:"private_ns"`
	PublishStartDate string    `db:"publish_start_date"`
	PublishEndDate   string    `db:"publish_end_date"`
	Content          string    `db:"content"`
	Render           string    `db:"render"`
	TOC              string    `db:"toc"`
	ContentType      string    `db:"content_type"`
	EditorKey        string    `db:"editor_key"`
	LocaleCode       string    `db:"locale_code"`
	AuthorID         int64     `db:"author_id"`
	AuthorName       string    `db:"author_name"`
	CreatorID        int64     `db:"creator_id"`
	CreatorName      string    `db:"creator_name"`
	Extra            PageExtra `db:"extra"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// Content types a page can hold.
const (
	ContentTypeMarkdown = "markdown"
	ContentTypeHTML     = "html"
	ContentTypeText     = "text"
)

// editorContentTypes maps an editor key to the content type it produces.
var editorContentTypes = map[string]string{
	"markdown": ContentTypeMarkdown,
	"code":     ContentTypeHTML,
	"ckeditor": ContentTypeHTML,
}

// ContentTypeForEditor resolves the content type produced by an editor
// key, defaulting to plain text for unknown editors.
func ContentTypeForEditor(editorKey string) string {
	if ct, ok := editorContentTypes[editorKey]; ok {
		return ct
	}
	return ContentTypeText
}

// TreeNode is one row of the materialized page hierarchy: a folder or a
// leaf segment for a locale. Ancestors always equals the parent chain
// collected root-first, and Depth equals len(Ancestors)+1.
type TreeNode struct {
	ID         int64        `db:"id"`
	LocaleCode string       `db:"locale_code"`
	Path       string       `db:"path"`
	Depth      int          `db:"depth"`
	Title      string       `db:"title"`
	IsFolder   bool         `db:"is_folder"`
	IsPrivate  bool         `db:"is_private"`
	PrivateNS  *string      `db:"private_ns"`
	Parent     *int64       `db:"parent"`
	PageID     *int64       `db:"page_id"`
	Ancestors  AncestorList `db:"ancestors"`
}

// History actions recorded in pageHistory snapshots.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionMoved   = "moved"
	ActionDeleted = "deleted"
)

// PageHistory is an immutable snapshot of a page's prior state, written
// before every mutation of an existing page.
type PageHistory struct {
	ID               int64     `db:"id"`
	PageID           int64     `db:"page_id"`
	Path             string    `db:"path"`
	Hash             string    `db:"hash"`
	Title            string    `db:"title"`
	Description      string    `db:"description"`
	IsPrivate        bool      `db:"is_private"`
	IsPublished      bool      `db:"is_published"`
	PublishStartDate string    `db:"publish_start_date"`
	PublishEndDate   string    `db:"publish_end_date"`
	Content          string    `db:"content"`
	ContentType      string    `db:"content_type"`
	EditorKey        string    `db:"editor_key"`
	LocaleCode       string    `db:"locale_code"`
	AuthorID         int64     `db:"author_id"`
	Action           string    `db:"action"`
	VersionDate      time.Time `db:"version_date"`
	CreatedAt        time.Time `db:"created_at"`
}

// PageLink is one row of the link index: page PageID embeds an internal
// link to (LocaleCode, Path).
type PageLink struct {
	ID         int64  `db:"id"`
	PageID     int64  `db:"page_id"`
	Path       string `db:"path"`
	LocaleCode string `db:"locale_code"`
}

// Tag is the {tag, title} pair associated with pages and projected into
// the render cache.
type Tag struct {
	ID    int64  `db:"id"`
	Tag   string `db:"tag"`
	Title string `db:"title"`
}
