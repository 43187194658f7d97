package handlers

import (
	"github.com/dimitrije/vericheck-api/internal/middleware"
	"github.com/dimitrije/vericheck-api/internal/services"
	"github.com/dimitrije/vericheck-api/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
)

// UserHandler serves the caller's own account.
type UserHandler struct {
	authService AuthServiceInterface
}

func NewUserHandler(authService AuthServiceInterface) *UserHandler {
	return &UserHandler{authService: authService}
}

func (h *UserHandler) GetProfile(c *drift.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		c.Unauthorized("access token required")
		return
	}

	_ = c.JSON(200, dto.UserEnvelope{User: toUserResponse(user)})
}

func (h *UserHandler) UpdateProfile(c *drift.Context) {
	h.updateProfile(c, false)
}

// UpdateSuperAdminProfile also allows the username to change.
func (h *UserHandler) UpdateSuperAdminProfile(c *drift.Context) {
	h.updateProfile(c, true)
}

func (h *UserHandler) updateProfile(c *drift.Context, superAdmin bool) {
	user := middleware.GetUser(c)
	if user == nil {
		c.Unauthorized("access token required")
		return
	}

	var req dto.UpdateProfileRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	in := services.ProfileInput{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}

	var err error
	message := "profile updated successfully"
	if superAdmin {
		user, err = h.authService.UpdateSuperAdminProfile(ctx, user, in)
		message = "super admin profile updated successfully"
	} else {
		user, err = h.authService.UpdateProfile(ctx, user, in)
	}
	if err != nil {
		respondError(c, err, "failed to update profile")
		return
	}

	_ = c.JSON(200, dto.UserMessageResponse{
		Message: message,
		User:    toUserResponse(user),
	})
}

func (h *UserHandler) ChangePassword(c *drift.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		c.Unauthorized("access token required")
		return
	}

	var req dto.ChangePasswordRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.authService.ChangePassword(ctx, user, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, err, "failed to change password")
		return
	}

	_ = c.JSON(200, dto.MessageResponse{Message: "password changed successfully"})
}
