package session

import (
	"context"
	"net/http"
	"time"

	"github.com/alexedwards/scs/mysqlstore"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"

	"go-wiki-engine/internal/config"
)

// Manager is an interface that abstracts the session management implementation.
// This allows for easier testing and dependency injection.
type Manager interface {
	LoadAndSave(next http.Handler) http.Handler
	Put(ctx context.Context, key string, val interface{})
	GetString(ctx context.Context, key string) string
	PopString(ctx context.Context, key string) string
	Destroy(ctx context.Context) error
	Remove(ctx context.Context, key string)
}

// New builds a session manager backed by the application database.
// Sessions live in the sessions table next to the wiki data so a
// restart does not log everyone out.
func New(db *sqlx.DB, driver string, cfg config.SessionConfig, secureCookies bool) *scs.SessionManager {
	sm := scs.New()
	switch driver {
	case "sqlite":
		sm.Store = sqlite3store.New(db.DB)
	default:
		sm.Store = mysqlstore.New(db.DB)
	}
	sm.Lifetime = time.Duration(cfg.Lifetime) * time.Hour
	sm.Cookie.Persist = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = secureCookies
	return sm
}
