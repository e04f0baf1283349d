package auth

import (
	"fmt"

	"go-wiki-engine/internal/logger"

	"github.com/casbin/casbin/v2"
)

// SeedDefaultPolicies ensures that the application has a baseline set of authorization rules.
// It checks if each default policy exists before adding it, making the operation idempotent
// and safe to run on every application start.
func SeedDefaultPolicies(e casbin.IEnforcer, log logger.Logger) {
	log.Info("Seeding default authorization policies...")

	// Default policies grant read access to anonymous users, content
	// management to editors and structural operations to admins. The
	// 'editor' role inherits from 'anonymous', 'admin' from 'editor'.
	policies := [][]string{
		{"anonymous", CapReadPages, "/*"},

		{"editor", CapWritePages, "/*"},

		{"admin", CapManagePages, "/*"},
		{"admin", CapDeletePages, "/*"},
		{"admin", CapWriteScripts, "/*"},
		{"admin", CapWriteStyles, "/*"},
	}
	for _, p := range policies {
		if has, _ := e.HasPolicy(p); !has {
			if _, err := e.AddPolicy(p); err != nil {
				log.Error(err, fmt.Sprintf("Failed to add policy %v", p))
			}
		}
	}

	inherits := [][2]string{
		{"editor", "anonymous"},
		{"admin", "editor"},
	}
	for _, pair := range inherits {
		if has, _ := e.HasRoleForUser(pair[0], pair[1]); !has {
			if _, err := e.AddRoleForUser(pair[0], pair[1]); err != nil {
				log.Error(err, fmt.Sprintf("Failed to add role %s -> %s", pair[0], pair[1]))
			}
		}
	}
	log.Info("Policy seeding complete.")
}
