package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"go-wiki-engine/internal/data"
	"go-wiki-engine/internal/logger"
	"go-wiki-engine/internal/middleware"
	"go-wiki-engine/internal/service"
	"go-wiki-engine/internal/tree"
)

// PageHandler holds the dependencies for the page handlers.
type PageHandler struct {
	pageService service.PageServicer
	log         logger.Logger
}

// NewPageHandler creates a new PageHandler with the given dependencies.
func NewPageHandler(ps service.PageServicer, log logger.Logger) *PageHandler {
	return &PageHandler{pageService: ps, log: log}
}

// pageResponse is the JSON projection of a page returned by the API.
type pageResponse struct {
	ID               int64    `json:"id"`
	Path             string   `json:"path"`
	Hash             string   `json:"hash"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	IsPrivate        bool     `json:"isPrivate"`
	IsPublished      bool     `json:"isPublished"`
	PrivateNS        string   `json:"privateNS,omitempty"`
	PublishStartDate string   `json:"publishStartDate,omitempty"`
	PublishEndDate   string   `json:"publishEndDate,omitempty"`
	Content          string   `json:"content,omitempty"`
	Render           string   `json:"render"`
	TOC              string   `json:"toc"`
	ContentType      string   `json:"contentType"`
	EditorKey        string   `json:"editorKey"`
	LocaleCode       string   `json:"locale"`
	AuthorName       string   `json:"authorName"`
	CreatorName      string   `json:"creatorName"`
	Tags             []string `json:"tags"`
	CreatedAt        string   `json:"createdAt"`
	UpdatedAt        string   `json:"updatedAt"`
}

func newPageResponse(page *data.Page, tags []data.Tag) *pageResponse {
	tagNames := make([]string, 0, len(tags))
	for _, t := range tags {
		tagNames = append(tagNames, t.Tag)
	}
	return &pageResponse{
		ID:               page.ID,
		Path:             page.Path,
		Hash:             page.Hash,
		Title:            page.Title,
		Description:      page.Description,
		IsPrivate:        page.IsPrivate,
		IsPublished:      page.IsPublished,
		PrivateNS:        page.PrivateNS,
		PublishStartDate: page.PublishStartDate,
		PublishEndDate:   page.PublishEndDate,
		Content:          page.Content,
		Render:           page.Render,
		TOC:              page.TOC,
		ContentType:      page.ContentType,
		EditorKey:        page.EditorKey,
		LocaleCode:       page.LocaleCode,
		AuthorName:       page.AuthorName,
		CreatorName:      page.CreatorName,
		Tags:             tagNames,
		CreatedAt:        page.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        page.UpdatedAt.Format(time.RFC3339),
	}
}

// viewHandler serves a page by locale and path, cache-first.
func (h *PageHandler) viewHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	user := middleware.GetUser(r.Context())
	opts := service.GetOptions{
		Locale:    chi.URLParam(r, "locale"),
		Path:      chi.URLParam(r, "*"),
		PrivateNS: r.URL.Query().Get("ns"),
	}
	opts.IsPrivate = opts.PrivateNS != ""

	page, tags, err := h.pageService.GetPage(r.Context(), user, opts)
	if err != nil {
		return serviceError(err)
	}
	return writeJSON(w, http.StatusOK, newPageResponse(page, tags))
}

type createRequest struct {
	Path             string   `json:"path"`
	Locale           string   `json:"locale"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Editor           string   `json:"editor"`
	Content          string   `json:"content"`
	IsPublished      bool     `json:"isPublished"`
	IsPrivate        bool     `json:"isPrivate"`
	PrivateNS        string   `json:"privateNS"`
	PublishStartDate string   `json:"publishStartDate"`
	PublishEndDate   string   `json:"publishEndDate"`
	Tags             []string `json:"tags"`
	ScriptJS         string   `json:"scriptJs"`
	ScriptCSS        string   `json:"scriptCss"`
}

func (h *PageHandler) createHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return badRequest(err)
	}
	user := middleware.GetUser(r.Context())

	page, err := h.pageService.CreatePage(r.Context(), user, service.CreateOptions{
		Path:             req.Path,
		Locale:           req.Locale,
		Title:            req.Title,
		Description:      req.Description,
		Editor:           req.Editor,
		Content:          req.Content,
		IsPublished:      req.IsPublished,
		IsPrivate:        req.IsPrivate,
		PrivateNS:        req.PrivateNS,
		PublishStartDate: req.PublishStartDate,
		PublishEndDate:   req.PublishEndDate,
		Tags:             req.Tags,
		ScriptJS:         req.ScriptJS,
		ScriptCSS:        req.ScriptCSS,
	})
	if err != nil {
		return serviceError(err)
	}
	return writeJSON(w, http.StatusCreated, newPageResponse(page, nil))
}

type updateRequest struct {
	Content          *string  `json:"content"`
	Title            *string  `json:"title"`
	Description      *string  `json:"description"`
	IsPublished      *bool    `json:"isPublished"`
	PublishStartDate *string  `json:"publishStartDate"`
	PublishEndDate   *string  `json:"publishEndDate"`
	Tags             []string `json:"tags"`
	ScriptJS         *string  `json:"scriptJs"`
	ScriptCSS        *string  `json:"scriptCss"`

	DestinationPath   string `json:"destinationPath"`
	DestinationLocale string `json:"destinationLocale"`
}

func (h *PageHandler) updateHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	id, appErr := pathID(r)
	if appErr != nil {
		return appErr
	}
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return badRequest(err)
	}
	user := middleware.GetUser(r.Context())

	page, err := h.pageService.UpdatePage(r.Context(), user, service.UpdateOptions{
		ID:                id,
		Content:           req.Content,
		Title:             req.Title,
		Description:       req.Description,
		IsPublished:       req.IsPublished,
		PublishStartDate:  req.PublishStartDate,
		PublishEndDate:    req.PublishEndDate,
		Tags:              req.Tags,
		ScriptJS:          req.ScriptJS,
		ScriptCSS:         req.ScriptCSS,
		DestinationPath:   req.DestinationPath,
		DestinationLocale: req.DestinationLocale,
	})
	if err != nil {
		return serviceError(err)
	}
	return writeJSON(w, http.StatusOK, newPageResponse(page, nil))
}

type convertRequest struct {
	Editor string `json:"editor"`
}

func (h *PageHandler) convertHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	id, appErr := pathID(r)
	if appErr != nil {
		return appErr
	}
	var req convertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return badRequest(err)
	}
	user := middleware.GetUser(r.Context())

	page, err := h.pageService.ConvertPage(r.Context(), user, id, req.Editor)
	if err != nil {
		return serviceError(err)
	}
	return writeJSON(w, http.StatusOK, newPageResponse(page, nil))
}

type moveRequest struct {
	DestinationPath   string `json:"destinationPath"`
	DestinationLocale string `json:"destinationLocale"`
}

func (h *PageHandler) moveHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	id, appErr := pathID(r)
	if appErr != nil {
		return appErr
	}
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return badRequest(err)
	}
	user := middleware.GetUser(r.Context())

	page, err := h.pageService.MovePage(r.Context(), user, service.MoveOptions{
		ID:                id,
		DestinationPath:   req.DestinationPath,
		DestinationLocale: req.DestinationLocale,
	})
	if err != nil {
		return serviceError(err)
	}
	return writeJSON(w, http.StatusOK, newPageResponse(page, nil))
}

func (h *PageHandler) deleteHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	id, appErr := pathID(r)
	if appErr != nil {
		return appErr
	}
	user := middleware.GetUser(r.Context())

	if err := h.pageService.DeletePage(r.Context(), user, id); err != nil {
		return serviceError(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

type batchMoveRequest struct {
	Items      []tree.MoveItem `json:"items"`
	TargetPath string          `json:"targetPath"`
}

func (h *PageHandler) batchMoveHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	var req batchMoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return badRequest(err)
	}
	user := middleware.GetUser(r.Context())

	if err := h.pageService.BatchMove(r.Context(), user, req.Items, req.TargetPath); err != nil {
		return serviceError(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

type batchDeleteRequest struct {
	Items []tree.MoveItem `json:"items"`
}

func (h *PageHandler) batchDeleteHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	var req batchDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return badRequest(err)
	}
	user := middleware.GetUser(r.Context())

	if err := h.pageService.BatchDelete(r.Context(), user, req.Items); err != nil {
		return serviceError(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

type migrateRequest struct {
	SourceLocale string `json:"sourceLocale"`
	TargetLocale string `json:"targetLocale"`
}

func (h *PageHandler) migrateLocaleHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	var req migrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return badRequest(err)
	}
	user := middleware.GetUser(r.Context())

	if err := h.pageService.MigrateToLocale(r.Context(), user, req.SourceLocale, req.TargetLocale); err != nil {
		return serviceError(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func pathID(r *http.Request) (int64, *middleware.AppError) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, &middleware.AppError{Error: err, Message: "Invalid page id", Code: http.StatusBadRequest}
	}
	return id, nil
}

func badRequest(err error) *middleware.AppError {
	return &middleware.AppError{Error: err, Message: "Invalid request body", Code: http.StatusBadRequest}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) *middleware.AppError {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return &middleware.AppError{Error: err, Message: "Failed to encode response", Code: http.StatusInternalServerError}
	}
	return nil
}

// serviceError maps lifecycle errors onto HTTP statuses.
func serviceError(err error) *middleware.AppError {
	switch {
	case errors.Is(err, service.ErrPageNotFound):
		return &middleware.AppError{Error: err, Message: "Page not found", Code: http.StatusNotFound}
	case errors.Is(err, service.ErrPageIllegalPath):
		return &middleware.AppError{Error: err, Message: "Invalid page path", Code: http.StatusBadRequest}
	case errors.Is(err, service.ErrPageEmptyContent):
		return &middleware.AppError{Error: err, Message: "Page content cannot be empty", Code: http.StatusBadRequest}
	case errors.Is(err, service.ErrPageDuplicateCreate):
		return &middleware.AppError{Error: err, Message: "A page already exists at this path", Code: http.StatusConflict}
	case errors.Is(err, service.ErrPagePathCollision):
		return &middleware.AppError{Error: err, Message: "Destination path is already occupied", Code: http.StatusConflict}
	case errors.Is(err, service.ErrPageRenderMissing):
		return &middleware.AppError{Error: err, Message: "Page has not been rendered yet", Code: http.StatusUnprocessableEntity}
	case errors.Is(err, service.ErrPageViewForbidden),
		errors.Is(err, service.ErrPageCreateForbidden),
		errors.Is(err, service.ErrPageUpdateForbidden),
		errors.Is(err, service.ErrPageMoveForbidden),
		errors.Is(err, service.ErrPageDeleteForbidden),
		errors.Is(err, service.ErrBatchForbidden):
		return &middleware.AppError{Error: err, Message: "Forbidden", Code: http.StatusForbidden}
	default:
		return &middleware.AppError{Error: err, Message: "Internal Server Error", Code: http.StatusInternalServerError}
	}
}
