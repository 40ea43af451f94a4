package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sharath018/health-management-backend/internal/access"
	"github.com/sharath018/health-management-backend/internal/apperr"
	"github.com/sharath018/health-management-backend/internal/auth"
)

// TokenAuthenticator is the part of auth.Service the middleware depends on.
type TokenAuthenticator interface {
	ParseAccessToken(ctx context.Context, token string) (*auth.AccessClaims, error)
	LoadActor(ctx context.Context, userID uint) (*auth.User, *access.Actor, error)
}

// AuthMiddleware verifies the bearer token and attaches the caller as an
// explicit Actor on the request context.
func AuthMiddleware(authSvc TokenAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c, apperr.Authentication("Authentication credentials were not provided."))
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			abort(c, apperr.Authentication("Authorization header must be: Bearer <token>"))
			return
		}

		ctx := c.Request.Context()
		claims, err := authSvc.ParseAccessToken(ctx, strings.TrimSpace(parts[1]))
		if err != nil {
			abort(c, err)
			return
		}
		user, actor, err := authSvc.LoadActor(ctx, claims.UserID)
		if err != nil {
			abort(c, err)
			return
		}
		actor.IP = GetIPFromContext(c)

		c.Set("user", user)
		c.Set("user_id", user.ID)
		c.Set(auth.AccessClaimsKey, claims)
		c.Request = c.Request.WithContext(access.WithActor(ctx, actor))

		c.Next()
	}
}

func abort(c *gin.Context, err error) {
	apperr.Respond(c, err)
	c.Abort()
}

// CurrentUser returns the authenticated user stored by AuthMiddleware.
func CurrentUser(c *gin.Context) (*auth.User, bool) {
	v, ok := c.Get("user")
	if !ok {
		return nil, false
	}
	u, ok := v.(*auth.User)
	return u, ok
}
