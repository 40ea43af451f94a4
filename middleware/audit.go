package middleware

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

// AuditMiddleware stores the client IP for actor construction and audit entries.
func AuditMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("client_ip", getClientIP(c))
		c.Next()
	}
}

// getClientIP prefers proxy headers and falls back to RemoteAddr.
func getClientIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if isValidIP(first) {
			return first
		}
	}
	for _, h := range []string{"X-Real-Ip", "CF-Connecting-IP"} {
		if v := c.GetHeader(h); v != "" && isValidIP(v) {
			return v
		}
	}
	ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return ip
}

func isValidIP(ip string) bool {
	return net.ParseIP(ip) != nil
}

// GetIPFromContext returns the IP stored by AuditMiddleware, resolving it if absent.
func GetIPFromContext(c *gin.Context) string {
	if ip, ok := c.Get("client_ip"); ok {
		if s, ok := ip.(string); ok {
			return s
		}
	}
	return getClientIP(c)
}
