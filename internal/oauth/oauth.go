package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"
)

// UserInfo is the verified identity returned by a provider after the code exchange.
type UserInfo struct {
	ID            string
	Email         string
	VerifiedEmail bool
	GivenName     string
	FamilyName    string
	Provider      string
}

type Provider interface {
	GetConsentURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*UserInfo, error)
	Name() string
}

func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// StateStore holds one-time OAuth state values in memory until they are consumed or expire.
type StateStore struct {
	ttl    time.Duration
	states sync.Map
}

func NewStateStore(ttl time.Duration) *StateStore {
	return &StateStore{ttl: ttl}
}

// Issue generates and remembers a fresh state value.
func (s *StateStore) Issue() (string, error) {
	state, err := GenerateState()
	if err != nil {
		return "", err
	}
	s.states.Store(state, time.Now().Add(s.ttl))
	return state, nil
}

// Consume reports whether state was issued and is still valid. A state can be consumed once.
func (s *StateStore) Consume(state string) bool {
	if state == "" {
		return false
	}
	v, ok := s.states.LoadAndDelete(state)
	if !ok {
		return false
	}
	expiresAt, ok := v.(time.Time)
	return ok && time.Now().Before(expiresAt)
}

// Cleanup drops expired entries every interval until ctx is done.
func (s *StateStore) Cleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.states.Range(func(key, value any) bool {
				if expiresAt, ok := value.(time.Time); ok && now.After(expiresAt) {
					s.states.Delete(key)
				}
				return true
			})
		}
	}
}
