package user

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps accounts in process memory. It backs STORE_DRIVER=memory
// for local runs and is the store used by service tests.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*User
	byEmail map[string]uuid.UUID
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[uuid.UUID]*User),
		byEmail: make(map[string]uuid.UUID),
		now:     time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := NormalizeEmail(u.Email)
	if _, exists := s.byEmail[email]; exists {
		return ErrDuplicateEmail
	}

	now := s.now()
	stored := *u
	stored.ID = uuid.New()
	stored.Email = email
	stored.Recovery = Recovery{}
	stored.CreatedAt = now
	stored.UpdatedAt = now
	if stored.Role == "" {
		stored.Role = RoleUser
	}

	s.byID[stored.ID] = &stored
	s.byEmail[email] = stored.ID

	*u = stored
	return nil
}

func (s *MemoryStore) GetByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return s.byID[id].clone(), nil
}

func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u.clone(), nil
}

func (s *MemoryStore) GetByResetTokenHash(_ context.Context, tokenHash string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.byID {
		if u.Recovery.TokenHash != nil && *u.Recovery.TokenHash == tokenHash {
			return u.clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateRecoveryByEmail(_ context.Context, email string, rec Recovery) error {
	return s.mutateByEmail(email, func(u *User) {
		u.Recovery = rec.clone()
	})
}

func (s *MemoryStore) IncrementCodeAttempts(_ context.Context, email string, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return ErrNotFound
	}
	u := s.byID[id]
	if u.Recovery.CodeAttempts >= limit {
		return ErrAttemptsExhausted
	}
	u.Recovery.CodeAttempts++
	u.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) UpdatePasswordByID(_ context.Context, id uuid.UUID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.Recovery = Recovery{}
	u.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) mutateByEmail(email string, fn func(u *User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return ErrNotFound
	}
	u := s.byID[id]
	fn(u)
	u.UpdatedAt = s.now()
	return nil
}

func (u *User) clone() *User {
	c := *u
	c.Recovery = u.Recovery.clone()
	return &c
}

func (r Recovery) clone() Recovery {
	return Recovery{
		CodeHash:       clonePtr(r.CodeHash),
		CodeExpiresAt:  clonePtr(r.CodeExpiresAt),
		CodeAttempts:   r.CodeAttempts,
		TokenHash:      clonePtr(r.TokenHash),
		TokenExpiresAt: clonePtr(r.TokenExpiresAt),
		LastSentAt:     clonePtr(r.LastSentAt),
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
