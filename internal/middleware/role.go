package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"novelistan/internal/pkg/jwt"
	"novelistan/internal/pkg/response"
)

// RequireRole ensures that the authenticated user has one of the given roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(c *gin.Context) {
		role := c.GetString("role")
		if role == "" {
			response.AbortError(c, http.StatusUnauthorized, response.CodeUnauthorized, "Role not found in token")
			return
		}

		if !allowed[role] {
			response.AbortError(c, http.StatusForbidden, response.CodeForbidden, "Access denied: insufficient permissions")
			return
		}

		c.Next()
	}
}

// AuthorOnly lets only authors publish books.
func AuthorOnly() gin.HandlerFunc {
	return RequireRole(jwt.RoleAuthor)
}
