package handlers

import (
	"fmt"

	"github.com/dimitrije/vericheck-api/internal/middleware"
	"github.com/dimitrije/vericheck-api/internal/services"
	"github.com/dimitrije/vericheck-api/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

// AdminHandler serves user management. Role checks happen in middleware;
// the per-target rules live in AuthService.
type AdminHandler struct {
	authService AuthServiceInterface
}

func NewAdminHandler(authService AuthServiceInterface) *AdminHandler {
	return &AdminHandler{authService: authService}
}

// targetID parses :userId. A malformed id cannot name any user, so it is a 404.
func targetID(c *drift.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.NotFound("user not found")
		return uuid.Nil, false
	}
	return id, true
}

func (h *AdminHandler) ListUsers(c *drift.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	users, err := h.authService.ListUsers(ctx)
	if err != nil {
		respondError(c, err, "failed to get users")
		return
	}

	resp := dto.UsersResponse{Users: make([]dto.UserResponse, len(users))}
	for i := range users {
		resp.Users[i] = toUserResponse(&users[i])
	}

	_ = c.JSON(200, resp)
}

func (h *AdminHandler) GetUser(c *drift.Context) {
	id, ok := targetID(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.authService.GetUser(ctx, id)
	if err != nil {
		respondError(c, err, "failed to get user")
		return
	}

	_ = c.JSON(200, dto.UserEnvelope{User: toUserResponse(user)})
}

func (h *AdminHandler) CreateAdmin(c *drift.Context) {
	actor := middleware.GetUser(c)

	var req dto.RegisterRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.authService.CreateAdmin(ctx, actor, services.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		respondError(c, err, "failed to create admin user")
		return
	}

	_ = c.JSON(201, dto.UserMessageResponse{
		Message: "admin user created successfully",
		User:    toUserResponse(user),
	})
}

func (h *AdminHandler) UpdateRole(c *drift.Context) {
	id, ok := targetID(c)
	if !ok {
		return
	}

	var req dto.UpdateRoleRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.authService.ChangeRole(ctx, middleware.GetUser(c), id, req.Role)
	if err != nil {
		respondError(c, err, "failed to update user role")
		return
	}

	_ = c.JSON(200, dto.UserMessageResponse{
		Message: "user role updated successfully",
		User:    toUserResponse(user),
	})
}

func (h *AdminHandler) UpdateStatus(c *drift.Context) {
	id, ok := targetID(c)
	if !ok {
		return
	}

	var req dto.UpdateStatusRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if req.IsActive == nil {
		c.BadRequest("isActive is required")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.authService.SetStatus(ctx, middleware.GetUser(c), id, *req.IsActive)
	if err != nil {
		respondError(c, err, "failed to update user status")
		return
	}

	state := "deactivated"
	if user.IsActive {
		state = "activated"
	}

	_ = c.JSON(200, dto.UserMessageResponse{
		Message: fmt.Sprintf("user %s successfully", state),
		User:    toUserResponse(user),
	})
}

func (h *AdminHandler) DeleteUser(c *drift.Context) {
	id, ok := targetID(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	deleted, err := h.authService.DeleteUser(ctx, middleware.GetUser(c), id)
	if err != nil {
		respondError(c, err, "failed to delete user")
		return
	}

	_ = c.JSON(200, dto.DeleteUserResponse{
		Message:     "user deleted successfully",
		DeletedUser: toUserResponse(deleted),
	})
}
