// Package events publishes user lifecycle events to RabbitMQ. Publishing is
// best effort: callers log failures and carry on.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	UserRegistered         = "user.registered"
	UserLoggedIn           = "user.logged_in"
	UserGoogleLinked       = "user.google_linked"
	UserProfileUpdated     = "user.profile_updated"
	UserPasswordChanged    = "user.password_changed"
	UserRoleChanged        = "user.role_changed"
	UserStatusChanged      = "user.status_changed"
	UserDeleted            = "user.deleted"
	SuperAdminBootstrapped = "user.super_admin_bootstrapped"
)

// Event is the JSON body of every message. Type doubles as the routing key.
type Event struct {
	Type       string            `json:"type"`
	UserID     uuid.UUID         `json:"userId"`
	ActorID    *uuid.UUID        `json:"actorId,omitempty"`
	Email      string            `json:"email,omitempty"`
	Role       string            `json:"role,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NoopPublisher is used when AMQP_URL is unset.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }

func (NoopPublisher) Close() error { return nil }
