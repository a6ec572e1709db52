package auth

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strings"

	"backlogwatch/internal/storage/sqlite"

	"github.com/gin-gonic/gin"
)

const (
	ContextUsername = "username"
	ContextRole     = "role"
)

// Middleware rejects requests without a valid bearer access token. With a
// non-nil db the account is reloaded on every request: deleted users are
// rejected and the stored role replaces the one in the token.
func Middleware(issuer *Issuer, db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(tokenStr) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		claims, err := issuer.ParseAccessToken(strings.TrimSpace(tokenStr))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		role := claims.Role
		if db != nil {
			user, err := sqlite.GetUserByUsername(db, claims.Username)
			if errors.Is(err, sqlite.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Account no longer exists"})
				return
			}
			if err != nil {
				log.Printf("auth middleware user=%s lookup error: %v", claims.Username, err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
				return
			}
			role = user.Role
		}
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextRole, role)
		c.Next()
	}
}

func RequirePermission(perm string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !HasPermission(c.GetString(ContextRole), perm) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Permission denied"})
			return
		}
		c.Next()
	}
}
