package access

import (
	"fmt"

	"github.com/sharath018/health-management-backend/internal/apperr"
)

const msgNotAuthenticated = "Authentication credentials were not provided."

// Authorize decides whether actor may perform method on res.
// Reads are always allowed to authenticated actors; object-level scoping
// belongs to the resource's service.
func Authorize(actor *Actor, method string, res Resource) error {
	if actor == nil {
		return apperr.Authentication(msgNotAuthenticated)
	}
	verb, needsCapability := VerbForMethod(method)
	if !needsCapability {
		return nil
	}
	required := Capability{Verb: verb, Resource: res}
	for _, g := range actor.Groups {
		if g.Has(required) {
			return nil
		}
	}
	return apperr.Forbidden(fmt.Sprintf(
		"You do not have permission to %s %s (missing capability %s).",
		required.Verb.Prefix(), res, required))
}

// RequireAuthenticated is used by reads that need an identity but no capability.
func RequireAuthenticated(actor *Actor) error {
	if actor == nil {
		return apperr.Authentication(msgNotAuthenticated)
	}
	return nil
}

func IsSuperAdmin(actor *Actor) bool {
	return actor != nil && actor.Role == RoleSuperAdmin
}

func IsAdmin(actor *Actor) bool {
	return actor != nil && actor.Role == RoleAdmin
}
