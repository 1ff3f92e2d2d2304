package middleware

import (
	"github.com/gin-gonic/gin"
)

// SecurityHeadersMiddleware adds security headers to all responses
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Browsers must not guess content types
		c.Header("X-Content-Type-Options", "nosniff")

		// Responses are never framed
		c.Header("X-Frame-Options", "DENY")

		// The API serves JSON only; nothing should be loaded from a response.
		// connect-src keeps the event feed reachable from same-origin pages.
		c.Header("Content-Security-Policy",
			"default-src 'none'; "+
				"connect-src 'self' ws: wss:; "+
				"frame-ancestors 'none';",
		)

		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Cache-Control", "no-store")

		c.Next()
	}
}

// HSTSMiddleware enforces HTTPS (only for production)
func HSTSMiddleware(isProduction bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isProduction {
			// max-age: 1 year
			c.Header("Strict-Transport-Security",
				"max-age=31536000; includeSubDomains",
			)
		}
		c.Next()
	}
}
