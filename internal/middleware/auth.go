package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stocktally/backend/internal/auth"
	"github.com/stocktally/backend/pkg/response"
)

const (
	// ContextUserID is the gin context key for the authenticated user id.
	ContextUserID = "user_id"
	// ContextOrganizationID is the gin context key for the tenant scope.
	ContextOrganizationID = "organization_id"
)

// TenantAuth is the gate every request except signup/login passes through.
// It extracts a bearer token from the Authorization header and verifies it
// statelessly: a missing or malformed header is 401 (no credentials), a
// token that fails verification is 403 (credentials present but invalid or
// expired). On success the trusted (user_id, organization_id) pair is set in
// the request context; every downstream store call must be parameterized by
// that organization id.
func TenantAuth(tokens *auth.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := tokens.Verify(parts[1])
		if err != nil {
			response.Forbidden(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextOrganizationID, claims.OrganizationID)
		c.Next()
	}
}

// UserID returns the authenticated user id set by TenantAuth.
func UserID(c *gin.Context) uuid.UUID {
	return c.MustGet(ContextUserID).(uuid.UUID)
}

// OrganizationID returns the tenant scope set by TenantAuth.
func OrganizationID(c *gin.Context) uuid.UUID {
	return c.MustGet(ContextOrganizationID).(uuid.UUID)
}
