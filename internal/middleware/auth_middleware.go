package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Baaaki/imf-gadgets/internal/utils"
	"github.com/Baaaki/imf-gadgets/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Context keys set by AuthMiddleware
const (
	ContextUserID = "user_id"
	ContextClaims = "claims"
)

// AuthMiddleware gates a route on a bearer token.
// No token at all is 401; a token that fails verification is 403.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Get Authorization header
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" || authHeader == "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
			})
			return
		}

		// 2. Extract token from "Bearer <token>"
		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Invalid authorization format. Use: Bearer <token>",
			})
			return
		}
		tokenString = strings.TrimSpace(tokenString)

		// 3. Validate token
		claims, err := utils.ValidateToken(tokenString, jwtSecret)
		if err != nil {
			message := "Invalid token"
			if errors.Is(err, utils.ErrExpiredToken) {
				message = "Token expired"
			}
			logger.Log.Debug("Rejected bearer token",
				zap.String("ip", c.ClientIP()),
				zap.String("path", c.FullPath()),
				zap.Error(err),
			)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": message,
			})
			return
		}

		// 4. Add claims to context (handlers can access)
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextClaims, claims)

		c.Next()
	}
}

// AccessTokenParam is the query parameter TokenFromQuery reads
const AccessTokenParam = "access_token"

// TokenFromQuery copies a token from the query string into the
// Authorization header when the request carries none. It must run before
// AuthMiddleware. An explicit header always wins.
func TokenFromQuery(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.TrimSpace(c.GetHeader("Authorization")) == "" {
			if token := strings.TrimSpace(c.Query(param)); token != "" {
				c.Request.Header.Set("Authorization", "Bearer "+token)
			}
		}
		c.Next()
	}
}

// ClaimsFromContext returns the claims stored by AuthMiddleware
func ClaimsFromContext(c *gin.Context) (*utils.Claims, bool) {
	value, exists := c.Get(ContextClaims)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*utils.Claims)
	return claims, ok
}
