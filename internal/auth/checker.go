package auth

import (
	"fmt"

	"github.com/casbin/casbin/v2"
)

// Capabilities checked by the page lifecycle.
const (
	CapReadPages    = "read:pages"
	CapWritePages   = "write:pages"
	CapManagePages  = "manage:pages"
	CapDeletePages  = "delete:pages"
	CapWriteScripts = "write:scripts"
	CapWriteStyles  = "write:styles"
)

// User is the authenticated identity attached to a request. Anonymous
// requests carry the anonymous role and no subject.
type User struct {
	ID      int64
	Subject string
	Name    string
	Email   string
	Roles   []string
}

// Anonymous is the identity used when no session is present.
func Anonymous() *User {
	return &User{Name: "Guest", Roles: []string{"anonymous"}}
}

// Checker answers whether a user holds every given capability on a page
// location.
type Checker interface {
	CheckAccess(user *User, capabilities []string, locale, path string) (bool, error)
}

// CasbinChecker enforces capabilities through a Casbin policy keyed as
// (role, capability, /locale/path).
type CasbinChecker struct {
	enforcer casbin.IEnforcer
}

func NewCasbinChecker(enforcer casbin.IEnforcer) *CasbinChecker {
	return &CasbinChecker{enforcer: enforcer}
}

// CheckAccess grants only when every capability is allowed for at least
// one of the user's roles.
func (c *CasbinChecker) CheckAccess(user *User, capabilities []string, locale, path string) (bool, error) {
	roles := user.Roles
	if len(roles) == 0 {
		roles = []string{"anonymous"}
	}
	obj := "/" + locale + "/" + path

	for _, cap := range capabilities {
		allowed := false
		for _, role := range roles {
			ok, err := c.enforcer.Enforce(role, cap, obj)
			if err != nil {
				return false, fmt.Errorf("failed to check %s on %s: %w", cap, obj, err)
			}
			if ok {
				allowed = true
				break
			}
		}
		if !allowed {
			return false, nil
		}
	}
	return true, nil
}
