package middleware

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/dimitrije/vericheck-api/internal/metrics"
	"github.com/dimitrije/vericheck-api/internal/models"
	"github.com/dimitrije/vericheck-api/internal/services"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

const (
	UserKey   = "user"
	UserIDKey = "user_id"
)

const userLookupTimeout = 5 * time.Second

// UserLookup loads the account a token refers to. *services.UserService satisfies it.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Auth verifies the bearer token and re-reads the user on every request, so
// deactivation and role changes apply to tokens that were issued earlier.
func Auth(jwtService *services.JWTService, users UserLookup, recorder metrics.Recorder) drift.HandlerFunc {
	if recorder == nil {
		recorder = metrics.NewNoopMetrics()
	}

	return func(c *drift.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Unauthorized("access token required")
			return
		}

		claims, err := jwtService.Verify(token)
		if err != nil {
			if errors.Is(err, services.ErrTokenExpired) {
				recorder.RecordTokenValidation(metrics.TokenExpired)
				c.Unauthorized("token expired")
				return
			}
			recorder.RecordTokenValidation(metrics.TokenInvalid)
			c.Unauthorized("invalid token")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), userLookupTimeout)
		defer cancel()

		user, err := users.GetByID(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, services.ErrUserNotFound) {
				recorder.RecordTokenValidation(metrics.TokenInactiveUser)
				c.Unauthorized("invalid or inactive user")
				return
			}
			log.Printf("auth: failed to load user %s: %v", claims.UserID, err)
			c.InternalServerError("authentication error")
			return
		}
		if !user.IsActive {
			recorder.RecordTokenValidation(metrics.TokenInactiveUser)
			c.Unauthorized("invalid or inactive user")
			return
		}

		recorder.RecordTokenValidation(metrics.TokenValid)
		c.Set(UserKey, user)
		c.Set(UserIDKey, user.ID)

		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func GetUser(c *drift.Context) *models.User {
	if v, ok := c.Get(UserKey); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

func GetUserID(c *drift.Context) uuid.UUID {
	if id, ok := c.Get(UserIDKey); ok {
		if uid, ok := id.(uuid.UUID); ok {
			return uid
		}
	}
	return uuid.Nil
}
