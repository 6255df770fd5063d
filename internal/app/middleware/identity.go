package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rentum/rentum/internal/domain/services"
	"github.com/rentum/rentum/internal/infrastructure/database/models"
)

// Identity headers set by the fronting gateway
const (
	UserIDHeader   = "X-User-ID"
	UserRoleHeader = "X-User-Role"

	CallerContextKey = "caller"
)

// UserLookup resolves a caller's stored role when the role header is absent
type UserLookup interface {
	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// IdentityMiddleware turns the identity headers into a *services.Caller.
// Requests without X-User-ID continue anonymously.
func IdentityMiddleware(users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawID := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if rawID == "" {
			c.Next()
			return
		}

		userID, err := uuid.Parse(rawID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_identity",
				"message": UserIDHeader + " must be a UUID",
			})
			c.Abort()
			return
		}

		role := models.UserRole(strings.ToLower(strings.TrimSpace(c.GetHeader(UserRoleHeader))))
		if role == "" && users != nil {
			user, err := users.GetUser(c.Request.Context(), userID)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{
					"error":   "unknown_user",
					"message": "Caller is not a registered user",
				})
				c.Abort()
				return
			}
			role = user.Role
		}
		if !role.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_identity",
				"message": UserRoleHeader + " must be tenant, landlord or company",
			})
			c.Abort()
			return
		}

		c.Set(CallerContextKey, &services.Caller{ID: userID, Role: role})
		c.Next()
	}
}

// RequireCaller rejects anonymous requests
func RequireCaller() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetCaller(c) == nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "identity_required",
				"message": UserIDHeader + " header is required",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetCaller retrieves the caller from gin context, nil when anonymous
func GetCaller(c *gin.Context) *services.Caller {
	if value, exists := c.Get(CallerContextKey); exists {
		if caller, ok := value.(*services.Caller); ok {
			return caller
		}
	}
	return nil
}
