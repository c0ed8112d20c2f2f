package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/billpay/backend/internal/apikey"
	"github.com/billpay/backend/internal/metrics"
	"github.com/billpay/backend/internal/models"
)

// DefaultKeyTTL is the lifetime of an issued API key.
const DefaultKeyTTL = 365 * 24 * time.Hour

const emailUniqueConstraint = "user_accounts_email_key"

type CreateAccountInput struct {
	Email        string
	Name         string
	BusinessName *string
	Phone        *string
}

// Service is the sole authority over account credentials and account state.
type Service interface {
	CreateAccount(ctx context.Context, in CreateAccountInput) (*models.Account, error)
	VerifyAPIKey(ctx context.Context, key string) (*models.Account, error)
	RegenerateAPIKey(ctx context.Context, accountID int64) (*models.Account, error)
	GetAccount(ctx context.Context, accountID int64) (*models.Account, error)
	ListAccounts(ctx context.Context, active *bool) ([]models.AccountSummary, error)
	ToggleAccountStatus(ctx context.Context, accountID int64, isActive bool) (*models.Account, error)
	VerifyAccount(ctx context.Context, accountID int64) (*models.Account, error)
}

// Store is the account persistence contract. Implementations return
// ErrAccountNotFound when no row matches.
type Store interface {
	Create(ctx context.Context, p CreateParams) (*models.Account, error)
	GetByKeyHash(ctx context.Context, keyHash string) (*models.Account, error)
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	RotateKey(ctx context.Context, id int64, keyHash, keyPrefix string, expiresAt, now time.Time) (*models.Account, error)
	SetActive(ctx context.Context, id int64, active bool, now time.Time) (*models.Account, error)
	SetVerified(ctx context.Context, id int64, now time.Time) (*models.Account, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	List(ctx context.Context, active *bool) ([]*models.Account, error)
}

type CreateParams struct {
	Email        string
	Name         string
	BusinessName *string
	Phone        *string
	KeyHash      string
	KeyPrefix    string
	KeyExpiresAt time.Time
	Now          time.Time
}

type service struct {
	store  Store
	gen    *apikey.Generator
	now    func() time.Time
	keyTTL time.Duration
	log    *slog.Logger
}

type Option func(*service)

// WithClock sets the clock used for issuance, expiry checks and login stamps.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

func WithKeyTTL(ttl time.Duration) Option {
	return func(s *service) {
		if ttl > 0 {
			s.keyTTL = ttl
		}
	}
}

func WithGenerator(gen *apikey.Generator) Option {
	return func(s *service) { s.gen = gen }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *service) {
		if log != nil {
			s.log = log
		}
	}
}

func NewService(store Store, opts ...Option) *service {
	s := &service{
		store:  store,
		now:    time.Now,
		keyTTL: DefaultKeyTTL,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.gen == nil {
		s.gen = apikey.NewGenerator(apikey.WithClock(s.now))
	}
	return s
}

// Ensure service implements Service at compile time.
var _ Service = (*service)(nil)

func (s *service) CreateAccount(ctx context.Context, in CreateAccountInput) (*models.Account, error) {
	now := s.now()
	key := s.gen.Generate()
	acc, err := s.store.Create(ctx, CreateParams{
		Email:        in.Email,
		Name:         in.Name,
		BusinessName: in.BusinessName,
		Phone:        in.Phone,
		KeyHash:      apikey.Hash(key),
		KeyPrefix:    apikey.DisplayPrefix(key),
		KeyExpiresAt: now.Add(s.keyTTL),
		Now:          now,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == emailUniqueConstraint {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	acc.APIKey = key
	metrics.RecordAPIKeyIssued("register")
	s.log.Info("account created", "account_id", acc.ID)
	return acc, nil
}

func (s *service) VerifyAPIKey(ctx context.Context, key string) (*models.Account, error) {
	acc, err := s.verify(ctx, key)
	switch {
	case err == nil:
		metrics.RecordAPIKeyVerification(metrics.OutcomeSuccess)
	case errors.Is(err, ErrInvalidFormat):
		metrics.RecordAPIKeyVerification(metrics.OutcomeInvalidFormat)
	case errors.Is(err, ErrNotFound):
		metrics.RecordAPIKeyVerification(metrics.OutcomeNotFound)
	case errors.Is(err, ErrDisabled):
		metrics.RecordAPIKeyVerification(metrics.OutcomeDisabled)
	case errors.Is(err, ErrExpired):
		metrics.RecordAPIKeyVerification(metrics.OutcomeExpired)
	default:
		metrics.RecordAPIKeyVerification(metrics.OutcomeError)
	}
	return acc, err
}

func (s *service) verify(ctx context.Context, key string) (*models.Account, error) {
	if !apikey.HasValidFormat(key) {
		return nil, ErrInvalidFormat
	}
	acc, err := s.store.GetByKeyHash(ctx, apikey.Hash(key))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !acc.IsActive {
		s.log.Warn("api key rejected", "account_id", acc.ID, "reason", ErrDisabled.Error())
		return nil, ErrDisabled
	}
	now := s.now()
	if now.After(acc.KeyExpiresAt) {
		s.log.Warn("api key rejected", "account_id", acc.ID, "reason", ErrExpired.Error())
		return nil, ErrExpired
	}
	if err := s.store.TouchLastLogin(ctx, acc.ID, now); err != nil {
		return nil, err
	}
	acc.LastLoginAt = &now
	return acc, nil
}

// RegenerateAPIKey replaces the account's key unconditionally. Callers must
// already have authorized the request for accountID.
func (s *service) RegenerateAPIKey(ctx context.Context, accountID int64) (*models.Account, error) {
	now := s.now()
	key := s.gen.Generate()
	acc, err := s.store.RotateKey(ctx, accountID, apikey.Hash(key), apikey.DisplayPrefix(key), now.Add(s.keyTTL), now)
	if err != nil {
		return nil, err
	}
	acc.APIKey = key
	metrics.RecordAPIKeyIssued("regenerate")
	s.log.Info("api key regenerated", "account_id", acc.ID)
	return acc, nil
}

func (s *service) GetAccount(ctx context.Context, accountID int64) (*models.Account, error) {
	return s.store.GetByID(ctx, accountID)
}

func (s *service) ListAccounts(ctx context.Context, active *bool) ([]models.AccountSummary, error) {
	list, err := s.store.List(ctx, active)
	if err != nil {
		return nil, err
	}
	out := make([]models.AccountSummary, 0, len(list))
	for _, a := range list {
		out = append(out, a.Summary())
	}
	return out, nil
}

func (s *service) ToggleAccountStatus(ctx context.Context, accountID int64, isActive bool) (*models.Account, error) {
	acc, err := s.store.SetActive(ctx, accountID, isActive, s.now())
	if err != nil {
		return nil, err
	}
	s.log.Info("account status changed", "account_id", acc.ID, "is_active", acc.IsActive)
	return acc, nil
}

func (s *service) VerifyAccount(ctx context.Context, accountID int64) (*models.Account, error) {
	acc, err := s.store.SetVerified(ctx, accountID, s.now())
	if err != nil {
		return nil, err
	}
	s.log.Info("account verified", "account_id", acc.ID)
	return acc, nil
}
