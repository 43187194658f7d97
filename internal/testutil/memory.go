package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dimitrije/vericheck-api/internal/models"
	"github.com/dimitrije/vericheck-api/internal/services"
	"github.com/google/uuid"
)

var _ services.UserStore = (*MemoryUserStore)(nil)

// MemoryUserStore is an in-process services.UserStore that enforces the same
// unique keys as the users table. Used by end-to-end HTTP tests.
type MemoryUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
	clock time.Time
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		users: make(map[uuid.UUID]*models.User),
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// tick returns a strictly increasing timestamp so created_at ordering is deterministic.
func (s *MemoryUserStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func clone(u *models.User) *models.User {
	c := *u
	if u.PasswordHash != nil {
		h := *u.PasswordHash
		c.PasswordHash = &h
	}
	if u.GoogleID != nil {
		g := *u.GoogleID
		c.GoogleID = &g
	}
	if u.LastLogin != nil {
		l := *u.LastLogin
		c.LastLogin = &l
	}
	return &c
}

// conflictLocked mirrors the unique indexes on email, username and google_id.
func (s *MemoryUserStore) conflictLocked(self uuid.UUID, email, username string, googleID *string) error {
	for id, u := range s.users {
		if id == self {
			continue
		}
		switch {
		case u.Email == email:
			return services.ErrEmailTaken
		case u.Username == username:
			return services.ErrUsernameTaken
		case googleID != nil && u.GoogleID != nil && *u.GoogleID == *googleID:
			return services.ErrDuplicateUser
		}
	}
	return nil
}

func (s *MemoryUserStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, services.ErrUserNotFound
	}
	return clone(u), nil
}

func (s *MemoryUserStore) find(match func(*models.User) bool) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			return clone(u), nil
		}
	}
	return nil, services.ErrUserNotFound
}

func (s *MemoryUserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.Email == email })
}

func (s *MemoryUserStore) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.Username == username })
}

func (s *MemoryUserStore) List(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		c := clone(u)
		c.PasswordHash = nil
		users = append(users, *c)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return users, nil
}

func (s *MemoryUserStore) Create(_ context.Context, nu services.NewUser) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conflictLocked(uuid.Nil, nu.Email, nu.Username, nu.GoogleID); err != nil {
		return nil, err
	}
	now := s.tick()
	u := &models.User{
		ID:           uuid.New(),
		Username:     nu.Username,
		Email:        nu.Email,
		PasswordHash: nu.PasswordHash,
		AuthProvider: nu.AuthProvider,
		GoogleID:     nu.GoogleID,
		FirstName:    nu.FirstName,
		LastName:     nu.LastName,
		Role:         nu.Role,
		IsActive:     nu.IsActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[u.ID] = clone(u)
	return u, nil
}

// update applies fn to the stored row and returns a copy.
func (s *MemoryUserStore) update(id uuid.UUID, fn func(*models.User) error) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, services.ErrUserNotFound
	}
	next := clone(u)
	if err := fn(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = s.tick()
	s.users[id] = next
	return clone(next), nil
}

func (s *MemoryUserStore) UpdateProfile(_ context.Context, id uuid.UUID, ch services.ProfileChanges) (*models.User, error) {
	return s.update(id, func(u *models.User) error {
		if ch.Username != nil {
			u.Username = *ch.Username
		}
		if ch.Email != nil {
			u.Email = *ch.Email
		}
		if ch.FirstName != nil {
			u.FirstName = *ch.FirstName
		}
		if ch.LastName != nil {
			u.LastName = *ch.LastName
		}
		return s.conflictLocked(id, u.Email, u.Username, nil)
	})
}

func (s *MemoryUserStore) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	_, err := s.update(id, func(u *models.User) error {
		u.PasswordHash = &hash
		return nil
	})
	return err
}

func (s *MemoryUserStore) LinkGoogle(_ context.Context, id uuid.UUID, googleID string, provider models.AuthProvider) (*models.User, error) {
	return s.update(id, func(u *models.User) error {
		if err := s.conflictLocked(id, "", "", &googleID); err != nil {
			return err
		}
		u.GoogleID = &googleID
		u.AuthProvider = provider
		return nil
	})
}

func (s *MemoryUserStore) UpdateRole(_ context.Context, id uuid.UUID, role models.Role) (*models.User, error) {
	return s.update(id, func(u *models.User) error {
		u.Role = role
		return nil
	})
}

func (s *MemoryUserStore) UpdateStatus(_ context.Context, id uuid.UUID, active bool) (*models.User, error) {
	return s.update(id, func(u *models.User) error {
		u.IsActive = active
		return nil
	})
}

func (s *MemoryUserStore) TouchLastLogin(_ context.Context, id uuid.UUID) (time.Time, error) {
	var at time.Time
	_, err := s.update(id, func(u *models.User) error {
		at = s.clock.Add(time.Millisecond)
		u.LastLogin = &at
		return nil
	})
	return at, err
}

func (s *MemoryUserStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return services.ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *MemoryUserStore) ExistsWithEmailOrUsername(_ context.Context, email, username string) (bool, error) {
	u, _ := s.find(func(u *models.User) bool { return u.Email == email || u.Username == username })
	return u != nil, nil
}

func (s *MemoryUserStore) EmailTaken(_ context.Context, email string, excludeID uuid.UUID) (bool, error) {
	u, _ := s.find(func(u *models.User) bool { return u.Email == email && u.ID != excludeID })
	return u != nil, nil
}

func (s *MemoryUserStore) UsernameTaken(_ context.Context, username string, excludeID uuid.UUID) (bool, error) {
	u, _ := s.find(func(u *models.User) bool { return u.Username == username && u.ID != excludeID })
	return u != nil, nil
}

func (s *MemoryUserStore) SuperAdminExists(ctx context.Context) (bool, error) {
	n, err := s.CountByRole(ctx, models.RoleSuperAdmin)
	return n > 0, err
}

func (s *MemoryUserStore) CountByRole(_ context.Context, role models.Role) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

// PasswordHash returns the stored hash for id, for asserting that profile
// updates never rewrite it.
func (s *MemoryUserStore) PasswordHash(id uuid.UUID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok && u.PasswordHash != nil {
		return *u.PasswordHash
	}
	return ""
}
