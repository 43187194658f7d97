package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/dimitrije/vericheck-api/internal/models"
	"github.com/dimitrije/vericheck-api/internal/services"
	"github.com/dimitrije/vericheck-api/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
)

const requestTimeout = 5 * time.Second

func requestContext(c *drift.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

type errorStatus struct {
	err     error
	status  int
	message string
}

// errorStatuses is checked in order. ErrEmailTaken and ErrUsernameTaken wrap
// ErrDuplicateUser, so they come first.
var errorStatuses = []errorStatus{
	{services.ErrEmailTaken, http.StatusBadRequest, "email already exists"},
	{services.ErrUsernameTaken, http.StatusBadRequest, "username already exists"},
	{services.ErrDuplicateUser, http.StatusBadRequest, ""},
	{services.ErrInvalidCurrentPassword, http.StatusBadRequest, ""},
	{services.ErrFederatedAccount, http.StatusBadRequest, ""},
	{services.ErrInvalidRole, http.StatusBadRequest, ""},
	{services.ErrLastSuperAdmin, http.StatusBadRequest, ""},
	{services.ErrInvalidCredentials, http.StatusUnauthorized, ""},
	{services.ErrAccountDeactivated, http.StatusUnauthorized, ""},
	{services.ErrCannotDeleteSelf, http.StatusForbidden, ""},
	{services.ErrCannotDeleteSuperAdmin, http.StatusForbidden, ""},
	{services.ErrCannotModifySuperAdmin, http.StatusForbidden, ""},
	{services.ErrUserNotFound, http.StatusNotFound, ""},
	{services.ErrValidation, http.StatusBadRequest, ""},
}

// respondError maps service errors to HTTP responses. Known errors answer with
// their own sentinel text, never the wrapped chain. Unknown errors are logged
// and answered with fallback.
func respondError(c *drift.Context, err error, fallback string) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		c.BadRequest(verr.Message)
		return
	}

	for _, es := range errorStatuses {
		if !errors.Is(err, es.err) {
			continue
		}
		message := es.message
		if message == "" {
			message = es.err.Error()
		}
		c.Error(es.status, message)
		return
	}

	log.Printf("%s: %v", fallback, err)
	c.InternalServerError(fallback)
}

func toUserResponse(u *models.User) dto.UserResponse {
	return dto.UserResponse{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Role:         string(u.Role),
		AuthProvider: string(u.AuthProvider),
		GoogleID:     u.GoogleID,
		IsActive:     u.IsActive,
		LastLogin:    u.LastLogin,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func toAuthResponse(message string, result *services.AuthResult) dto.AuthResponse {
	return dto.AuthResponse{
		Message:   message,
		Token:     result.Token,
		ExpiresIn: result.ExpiresIn,
		User:      toUserResponse(result.User),
	}
}
