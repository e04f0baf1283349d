package service

import "errors"

// Sentinel errors surfaced by the page lifecycle. Handlers map these to
// HTTP status codes.
var (
	ErrPageNotFound        = errors.New("page does not exist")
	ErrPageIllegalPath     = errors.New("page path contains illegal characters")
	ErrPageDuplicateCreate = errors.New("a page already exists at this path")
	ErrPageEmptyContent    = errors.New("page content cannot be empty")
	ErrPagePathCollision   = errors.New("destination path is already occupied")
	ErrPageRenderMissing   = errors.New("page has no rendered content")

	ErrPageViewForbidden   = errors.New("not authorized to view this page")
	ErrPageCreateForbidden = errors.New("not authorized to create this page")
	ErrPageUpdateForbidden = errors.New("not authorized to update this page")
	ErrPageMoveForbidden   = errors.New("not authorized to move this page")
	ErrPageDeleteForbidden = errors.New("not authorized to delete this page")
	ErrBatchForbidden      = errors.New("not authorized to perform batch page operations")
)
