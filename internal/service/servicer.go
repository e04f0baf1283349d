package service

import (
	"context"

	"go-wiki-engine/internal/auth"
	"go-wiki-engine/internal/data"
	"go-wiki-engine/internal/tree"
)

// PageServicer is the page lifecycle surface consumed by the handlers.
// This allows for easier testing and dependency injection.
type PageServicer interface {
	GetPage(ctx context.Context, user *auth.User, opts GetOptions) (*data.Page, []data.Tag, error)
	CreatePage(ctx context.Context, user *auth.User, opts CreateOptions) (*data.Page, error)
	UpdatePage(ctx context.Context, user *auth.User, opts UpdateOptions) (*data.Page, error)
	ConvertPage(ctx context.Context, user *auth.User, id int64, targetEditor string) (*data.Page, error)
	MovePage(ctx context.Context, user *auth.User, opts MoveOptions) (*data.Page, error)
	DeletePage(ctx context.Context, user *auth.User, id int64) error
	BatchMove(ctx context.Context, user *auth.User, items []tree.MoveItem, targetPath string) error
	BatchDelete(ctx context.Context, user *auth.User, items []tree.MoveItem) error
	MigrateToLocale(ctx context.Context, user *auth.User, sourceLocale, targetLocale string) error
}

var _ PageServicer = (*PageService)(nil)
