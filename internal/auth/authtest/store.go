// Package authtest provides an in-memory auth.Store and a settable clock for tests.
package authtest

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/billpay/backend/internal/auth"
	"github.com/billpay/backend/internal/models"
)

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// MemoryStore mirrors the Postgres repository, including the unique
// constraints on email and key digest.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*models.Account
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[int64]*models.Account)}
}

var _ auth.Store = (*MemoryStore)(nil)

func (m *MemoryStore) Create(_ context.Context, p auth.CreateParams) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.Email == p.Email {
			return nil, &pgconn.PgError{Code: "23505", ConstraintName: "user_accounts_email_key"}
		}
		if a.APIKeyHash == p.KeyHash {
			return nil, &pgconn.PgError{Code: "23505", ConstraintName: "user_accounts_api_key_hash_key"}
		}
	}
	m.nextID++
	a := &models.Account{
		ID:           m.nextID,
		Email:        p.Email,
		Name:         p.Name,
		BusinessName: p.BusinessName,
		Phone:        p.Phone,
		APIKeyHash:   p.KeyHash,
		APIKeyPrefix: p.KeyPrefix,
		IsActive:     true,
		KeyExpiresAt: p.KeyExpiresAt,
		CreatedAt:    p.Now,
		UpdatedAt:    p.Now,
	}
	m.byID[a.ID] = a
	return clone(a), nil
}

func (m *MemoryStore) GetByKeyHash(_ context.Context, keyHash string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.APIKeyHash == keyHash {
			return clone(a), nil
		}
	}
	return nil, auth.ErrAccountNotFound
}

func (m *MemoryStore) GetByID(_ context.Context, id int64) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, auth.ErrAccountNotFound
	}
	return clone(a), nil
}

func (m *MemoryStore) RotateKey(_ context.Context, id int64, keyHash, keyPrefix string, expiresAt, now time.Time) (*models.Account, error) {
	return m.update(id, func(a *models.Account) {
		a.APIKeyHash = keyHash
		a.APIKeyPrefix = keyPrefix
		a.KeyExpiresAt = expiresAt
		a.UpdatedAt = now
	})
}

func (m *MemoryStore) SetActive(_ context.Context, id int64, active bool, now time.Time) (*models.Account, error) {
	return m.update(id, func(a *models.Account) {
		a.IsActive = active
		a.UpdatedAt = now
	})
}

func (m *MemoryStore) SetVerified(_ context.Context, id int64, now time.Time) (*models.Account, error) {
	return m.update(id, func(a *models.Account) {
		a.IsVerified = true
		a.UpdatedAt = now
	})
}

func (m *MemoryStore) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	_, err := m.update(id, func(a *models.Account) {
		a.LastLoginAt = &at
	})
	return err
}

func (m *MemoryStore) List(_ context.Context, active *bool) ([]*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []*models.Account
	for id := int64(1); id <= m.nextID; id++ {
		a, ok := m.byID[id]
		if !ok {
			continue
		}
		if active != nil && a.IsActive != *active {
			continue
		}
		list = append(list, clone(a))
	}
	return list, nil
}

func (m *MemoryStore) update(id int64, fn func(*models.Account)) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, auth.ErrAccountNotFound
	}
	fn(a)
	return clone(a), nil
}

func clone(a *models.Account) *models.Account {
	c := *a
	if a.LastLoginAt != nil {
		t := *a.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}
