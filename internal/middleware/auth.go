package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"healthnexus-portal/internal/models"
	"healthnexus-portal/internal/utils"
)

// Context keys set by AuthMiddleware.
const (
	ctxUserID         = "userID"
	ctxUserRole       = "userRole"
	ctxImpersonatedBy = "impersonatedBy"
)

// AuthMiddleware requires a valid bearer token and stores its claims on the
// context.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, msg := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			utils.Unauthorized(c, msg)
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(token, secret)
		if err != nil {
			utils.Unauthorized(c, "Invalid token: "+err.Error())
			c.Abort()
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxUserRole, claims.Role)
		if claims.ImpersonatedBy != "" {
			c.Set(ctxImpersonatedBy, claims.ImpersonatedBy)
		}
		c.Next()
	}
}

// bearerToken extracts the token from an Authorization header, or returns
// the reason it could not.
func bearerToken(header string) (string, string) {
	if header == "" {
		return "", "Authorization header required"
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" || strings.Contains(token, " ") {
		return "", "Invalid authorization header format"
	}
	return token, ""
}

// RoleAuthMiddleware lets through only the given roles. It must run after
// AuthMiddleware.
func RoleAuthMiddleware(allowed ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := GetUserRoleFromContext(c)
		if !ok {
			utils.InternalServerError(c, "User role not found in context")
			c.Abort()
			return
		}
		for _, r := range allowed {
			if role == r {
				c.Next()
				return
			}
		}
		utils.Forbidden(c, "You do not have permission to access this resource")
		c.Abort()
	}
}

func GetUserIDFromContext(c *gin.Context) (string, bool) {
	id := c.GetString(ctxUserID)
	return id, id != ""
}

func GetUserRoleFromContext(c *gin.Context) (models.Role, bool) {
	v, ok := c.Get(ctxUserRole)
	if !ok {
		return "", false
	}
	role, ok := v.(models.Role)
	return role, ok
}

// GetImpersonatorFromContext returns the admin acting through an
// impersonation token, if any.
func GetImpersonatorFromContext(c *gin.Context) (string, bool) {
	id := c.GetString(ctxImpersonatedBy)
	return id, id != ""
}

// CanAccessPatient reports whether the caller may read or change data that
// belongs to patientID: admins and doctors always, patients only their own.
func CanAccessPatient(c *gin.Context, patientID string) bool {
	role, _ := GetUserRoleFromContext(c)
	switch role {
	case models.RoleAdmin, models.RoleDoctor:
		return true
	case models.RolePatient:
		id, _ := GetUserIDFromContext(c)
		return id == patientID
	}
	return false
}
