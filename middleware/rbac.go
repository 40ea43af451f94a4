package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sharath018/health-management-backend/internal/access"
	"github.com/sharath018/health-management-backend/internal/apperr"
)

// RequireRole admits callers whose role is one of roles.
func RequireRole(roles ...access.Role) gin.HandlerFunc {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	denied := fmt.Sprintf("This action is restricted to: %s.", strings.Join(names, ", "))

	return func(c *gin.Context) {
		actor := access.ActorFrom(c.Request.Context())
		if err := access.RequireAuthenticated(actor); err != nil {
			abort(c, err)
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		abort(c, apperr.Forbidden(denied))
	}
}
