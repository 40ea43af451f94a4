package middleware

import (
	"sort"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/sharath018/health-management-backend/internal/access"
)

var (
	gatedMu sync.Mutex
	gated   = map[access.Resource]struct{}{}
)

func track(res access.Resource) {
	gatedMu.Lock()
	gated[res] = struct{}{}
	gatedMu.Unlock()
}

// GatedResources lists every resource a permission check has been built for.
func GatedResources() []access.Resource {
	gatedMu.Lock()
	defer gatedMu.Unlock()
	out := make([]access.Resource, 0, len(gated))
	for r := range gated {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RequirePermission maps the request method to a capability on res and
// checks it against the caller's groups. Reads pass through.
func RequirePermission(res access.Resource) gin.HandlerFunc {
	track(res)
	return func(c *gin.Context) {
		if err := access.Authorize(access.ActorFrom(c.Request.Context()), c.Request.Method, res); err != nil {
			abort(c, err)
			return
		}
		c.Next()
	}
}

// RequirePermissionAs checks res as though the request used method.
func RequirePermissionAs(method string, res access.Resource) gin.HandlerFunc {
	track(res)
	return func(c *gin.Context) {
		if err := access.Authorize(access.ActorFrom(c.Request.Context()), method, res); err != nil {
			abort(c, err)
			return
		}
		c.Next()
	}
}
