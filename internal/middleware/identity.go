package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"go-wiki-engine/internal/auth"
	"go-wiki-engine/internal/session"
)

// Session keys written by the auth callback and read back on every
// request.
const (
	SessionKeyUserID      = "user_id"
	SessionKeyUserSubject = "user_subject"
	SessionKeyUserName    = "user_name"
	SessionKeyUserEmail   = "user_email"
	SessionKeyUserRoles   = "user_roles"
)

// Identity resolves the session into an auth.User and attaches it to
// the request context. Requests without a session proceed as anonymous;
// authorization decisions happen in the service layer, per page.
func Identity(sm session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := auth.Anonymous()
			if subject := sm.GetString(r.Context(), SessionKeyUserSubject); subject != "" {
				user = &auth.User{
					Subject: subject,
					Name:    sm.GetString(r.Context(), SessionKeyUserName),
					Email:   sm.GetString(r.Context(), SessionKeyUserEmail),
				}
				if id, err := strconv.ParseInt(sm.GetString(r.Context(), SessionKeyUserID), 10, 64); err == nil {
					user.ID = id
				}
				if roles := sm.GetString(r.Context(), SessionKeyUserRoles); roles != "" {
					user.Roles = strings.Split(roles, ",")
				} else {
					user.Roles = []string{"anonymous"}
				}
			}
			next.ServeHTTP(w, r.WithContext(SetUser(r.Context(), user)))
		})
	}
}
