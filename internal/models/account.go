package models

import "time"

// Account is a registered business customer holding a single API key.
// Only the SHA-256 digest of the key is persisted; APIKey carries the
// plaintext solely on the response to issuance or regeneration.
type Account struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	BusinessName *string    `json:"businessName,omitempty"`
	Phone        *string    `json:"phone,omitempty"`
	APIKey       string     `json:"apiKey,omitempty"`
	APIKeyHash   string     `json:"-"`
	APIKeyPrefix string     `json:"apiKeyPrefix"`
	IsActive     bool       `json:"isActive"`
	IsVerified   bool       `json:"isVerified"`
	KeyExpiresAt time.Time  `json:"keyExpiresAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// AccountSummary is the admin listing projection. It never carries key material.
type AccountSummary struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	BusinessName *string    `json:"businessName,omitempty"`
	Phone        *string    `json:"phone,omitempty"`
	IsActive     bool       `json:"isActive"`
	IsVerified   bool       `json:"isVerified"`
	KeyExpiresAt time.Time  `json:"keyExpiresAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func (a *Account) Summary() AccountSummary {
	return AccountSummary{
		ID:           a.ID,
		Email:        a.Email,
		Name:         a.Name,
		BusinessName: a.BusinessName,
		Phone:        a.Phone,
		IsActive:     a.IsActive,
		IsVerified:   a.IsVerified,
		KeyExpiresAt: a.KeyExpiresAt,
		LastLoginAt:  a.LastLoginAt,
		CreatedAt:    a.CreatedAt,
	}
}
