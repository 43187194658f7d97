package handlers

import (
	"github.com/dimitrije/vericheck-api/internal/middleware"
	"github.com/m1z23r/drift/pkg/drift"
)

// Routes groups everything mounted under the API prefix.
type Routes struct {
	Auth  *AuthHandler
	User  *UserHandler
	Admin *AdminHandler

	// Authenticate guards every non-public route.
	Authenticate drift.HandlerFunc
	// RateLimit fronts the credential endpoints. Optional.
	RateLimit drift.HandlerFunc
}

func (r Routes) limited(h drift.HandlerFunc) []drift.HandlerFunc {
	if r.RateLimit == nil {
		return []drift.HandlerFunc{h}
	}
	return []drift.HandlerFunc{r.RateLimit, h}
}

func (r Routes) Mount(api *drift.RouterGroup) {
	api.Get("/health", Health)

	auth := api.Group("/auth")
	auth.Post("/register", r.limited(r.Auth.Register)...)
	auth.Post("/login", r.limited(r.Auth.Login)...)
	auth.Post("/google", r.limited(r.Auth.GoogleAuth)...)
	auth.Get("/google/consent", r.Auth.GetConsentURL)
	auth.Get("/google/callback", r.Auth.Callback)

	protected := auth.Group("", r.Authenticate)

	protected.Get("/profile", r.User.GetProfile)
	protected.Put("/profile", r.User.UpdateProfile)
	protected.Put("/change-password", r.User.ChangePassword)
	protected.Put("/super-admin/profile", middleware.RequireSuperAdmin(), r.User.UpdateSuperAdminProfile)

	protected.Get("/users", middleware.RequireAdmin(), r.Admin.ListUsers)
	protected.Get("/users/:userId", middleware.CanAccessUser("userId"), r.Admin.GetUser)
	protected.Post("/create-admin", middleware.RequireSuperAdmin(), r.Admin.CreateAdmin)
	protected.Put("/users/:userId/role", middleware.RequireSuperAdmin(), r.Admin.UpdateRole)
	protected.Put("/users/:userId/status", middleware.RequireAdmin(), r.Admin.UpdateStatus)
	protected.Delete("/users/:userId", middleware.RequireSuperAdmin(), r.Admin.DeleteUser)
}
