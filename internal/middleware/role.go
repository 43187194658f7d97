package middleware

import (
	"github.com/dimitrije/vericheck-api/internal/models"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

// RequireSuperAdmin must run after Auth.
func RequireSuperAdmin() drift.HandlerFunc {
	return func(c *drift.Context) {
		user := GetUser(c)
		if user == nil {
			c.Unauthorized("access token required")
			return
		}
		if user.Role != models.RoleSuperAdmin {
			c.Forbidden("super admin access required")
			return
		}
		c.Next()
	}
}

// RequireAdmin admits admins and super admins.
func RequireAdmin() drift.HandlerFunc {
	return func(c *drift.Context) {
		user := GetUser(c)
		if user == nil {
			c.Unauthorized("access token required")
			return
		}
		if !user.Role.AtLeast(models.RoleAdmin) {
			c.Forbidden("admin access required")
			return
		}
		c.Next()
	}
}

// CanAccessUser lets admins through and limits plain users to their own :param.
func CanAccessUser(param string) drift.HandlerFunc {
	return func(c *drift.Context) {
		user := GetUser(c)
		if user == nil {
			c.Unauthorized("access token required")
			return
		}
		if user.Role.AtLeast(models.RoleAdmin) {
			c.Next()
			return
		}
		target, err := uuid.Parse(c.Param(param))
		if err != nil || target != user.ID {
			c.Forbidden("access denied")
			return
		}
		c.Next()
	}
}
