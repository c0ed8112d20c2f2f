package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billpay/backend/internal/apikey"
	"github.com/billpay/backend/internal/auth"
	"github.com/billpay/backend/internal/auth/authtest"
	"github.com/billpay/backend/internal/metrics"
	"github.com/billpay/backend/internal/models"
)

var start = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store *authtest.MemoryStore
	clock *authtest.Clock
	svc   auth.Service
}

func newFixture(t *testing.T, opts ...auth.Option) *fixture {
	t.Helper()
	f := &fixture{store: authtest.NewMemoryStore(), clock: authtest.NewClock(start)}
	opts = append([]auth.Option{auth.WithClock(f.clock.Now)}, opts...)
	f.svc = auth.NewService(f.store, opts...)
	return f
}

func (f *fixture) register(t *testing.T, email string) *models.Account {
	t.Helper()
	acc, err := f.svc.CreateAccount(context.Background(), auth.CreateAccountInput{Email: email, Name: "Test"})
	require.NoError(t, err)
	return acc
}

func TestCreateAccount_IssuesKey(t *testing.T) {
	f := newFixture(t)
	acc := f.register(t, "a@x.com")

	assert.True(t, apikey.HasValidFormat(acc.APIKey))
	assert.Equal(t, apikey.Hash(acc.APIKey), acc.APIKeyHash)
	assert.Equal(t, apikey.DisplayPrefix(acc.APIKey), acc.APIKeyPrefix)
	assert.True(t, acc.IsActive)
	assert.False(t, acc.IsVerified)
	assert.Equal(t, start.Add(auth.DefaultKeyTTL), acc.KeyExpiresAt)
	assert.Nil(t, acc.LastLoginAt)
}

func TestCreateAccount_CustomTTL(t *testing.T) {
	f := newFixture(t, auth.WithKeyTTL(time.Hour))
	acc := f.register(t, "a@x.com")
	assert.Equal(t, start.Add(time.Hour), acc.KeyExpiresAt)
}

func TestCreateAccount_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.com")

	_, err := f.svc.CreateAccount(context.Background(), auth.CreateAccountInput{Email: "a@x.com", Name: "Other"})
	assert.ErrorIs(t, err, auth.ErrDuplicateEmail)
}

func TestVerifyAPIKey_Success(t *testing.T) {
	f := newFixture(t)
	acc := f.register(t, "a@x.com")
	f.clock.Advance(time.Minute)

	got, err := f.svc.VerifyAPIKey(context.Background(), acc.APIKey)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, got.ID)
	require.NotNil(t, got.LastLoginAt)
	assert.Equal(t, start.Add(time.Minute), *got.LastLoginAt)
	assert.Empty(t, got.APIKey)

	stored, err := f.store.GetByID(context.Background(), acc.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginAt)
	assert.Equal(t, start.Add(time.Minute), *stored.LastLoginAt)
}

func TestVerifyAPIKey_InvalidFormat(t *testing.T) {
	f := newFixture(t)
	for _, key := range []string{"", "sk_123_abc", "PK_1_ab"} {
		_, err := f.svc.VerifyAPIKey(context.Background(), key)
		assert.ErrorIs(t, err, auth.ErrInvalidFormat, key)
	}
}

func TestVerifyAPIKey_NeverIssued(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.com")
	gen := apikey.NewGenerator()

	for i := 0; i < 20; i++ {
		_, err := f.svc.VerifyAPIKey(context.Background(), gen.Generate())
		assert.ErrorIs(t, err, auth.ErrNotFound)
	}
}

func TestVerifyAPIKey_DisabledBeforeExpiry(t *testing.T) {
	f := newFixture(t)
	acc := f.register(t, "a@x.com")
	_, err := f.svc.ToggleAccountStatus(context.Background(), acc.ID, false)
	require.NoError(t, err)

	_, err = f.svc.VerifyAPIKey(context.Background(), acc.APIKey)
	assert.ErrorIs(t, err, auth.ErrDisabled)

	// Disabled wins even once the key has also expired.
	f.clock.Advance(auth.DefaultKeyTTL + time.Hour)
	_, err = f.svc.VerifyAPIKey(context.Background(), acc.APIKey)
	assert.ErrorIs(t, err, auth.ErrDisabled)
}

func TestVerifyAPIKey_Expired(t *testing.T) {
	f := newFixture(t)
	acc := f.register(t, "a@x.com")

	f.clock.Advance(auth.DefaultKeyTTL)
	_, err := f.svc.VerifyAPIKey(context.Background(), acc.APIKey)
	require.NoError(t, err, "key is valid up to and including its expiry instant")

	f.clock.Advance(time.Millisecond)
	_, err = f.svc.VerifyAPIKey(context.Background(), acc.APIKey)
	assert.ErrorIs(t, err, auth.ErrExpired)
}

func TestVerifyAPIKey_FailureDoesNotTouchLogin(t *testing.T) {
	f := newFixture(t)
	acc := f.register(t, "a@x.com")
	_, err := f.svc.ToggleAccountStatus(context.Background(), acc.ID, false)
	require.NoError(t, err)

	_, err = f.svc.VerifyAPIKey(context.Background(), acc.APIKey)
	require.Error(t, err)

	stored, err := f.store.GetByID(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.LastLoginAt)
}

func TestVerifyAPIKey_RecordsOutcome(t *testing.T) {
	f := newFixture(t)
	c := metrics.APIKeyVerifications().WithLabelValues(metrics.OutcomeNotFound)
	before := testutil.ToFloat64(c)

	_, err := f.svc.VerifyAPIKey(context.Background(), apikey.NewGenerator().Generate())
	require.ErrorIs(t, err, auth.ErrNotFound)
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestRegenerateAPIKey_InvalidatesOldKey(t *testing.T) {
	f := newFixture(t)
	acc := f.register(t, "a@x.com")
	f.clock.Advance(time.Millisecond)

	rotated, err := f.svc.RegenerateAPIKey(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.NotEqual(t, acc.APIKey, rotated.APIKey)
	assert.Equal(t, f.clock.Now().Add(auth.DefaultKeyTTL), rotated.KeyExpiresAt)

	_, err = f.svc.VerifyAPIKey(context.Background(), acc.APIKey)
	assert.ErrorIs(t, err, auth.ErrNotFound)

	got, err := f.svc.VerifyAPIKey(context.Background(), rotated.APIKey)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, got.ID)
}

func TestRegenerateAPIKey_UnknownAccount(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RegenerateAPIKey(context.Background(), 404)
	assert.ErrorIs(t, err, auth.ErrAccountNotFound)
}

func TestToggleAccountStatus_Idempotent(t *testing.T) {
	f := newFixture(t)
	acc := f.register(t, "a@x.com")

	once, err := f.svc.ToggleAccountStatus(context.Background(), acc.ID, false)
	require.NoError(t, err)
	twice, err := f.svc.ToggleAccountStatus(context.Background(), acc.ID, false)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
	assert.False(t, twice.IsActive)

	back, err := f.svc.ToggleAccountStatus(context.Background(), acc.ID, true)
	require.NoError(t, err)
	assert.True(t, back.IsActive)
	_, err = f.svc.VerifyAPIKey(context.Background(), acc.APIKey)
	assert.NoError(t, err)
}

func TestVerifyAccount_Idempotent(t *testing.T) {
	f := newFixture(t)
	acc := f.register(t, "a@x.com")

	once, err := f.svc.VerifyAccount(context.Background(), acc.ID)
	require.NoError(t, err)
	twice, err := f.svc.VerifyAccount(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
	assert.True(t, twice.IsVerified)
}

func TestAccountOperations_UnknownID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ToggleAccountStatus(ctx, 9, true)
	assert.ErrorIs(t, err, auth.ErrAccountNotFound)
	_, err = f.svc.VerifyAccount(ctx, 9)
	assert.ErrorIs(t, err, auth.ErrAccountNotFound)
	_, err = f.svc.GetAccount(ctx, 9)
	assert.ErrorIs(t, err, auth.ErrAccountNotFound)
}

func TestListAccounts(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, "a@x.com")
	f.register(t, "b@x.com")
	_, err := f.svc.ToggleAccountStatus(context.Background(), a.ID, false)
	require.NoError(t, err)

	all, err := f.svc.ListAccounts(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a@x.com", all[0].Email)

	active := true
	onlyActive, err := f.svc.ListAccounts(context.Background(), &active)
	require.NoError(t, err)
	require.Len(t, onlyActive, 1)
	assert.Equal(t, "b@x.com", onlyActive[0].Email)

	inactive := false
	onlyInactive, err := f.svc.ListAccounts(context.Background(), &inactive)
	require.NoError(t, err)
	require.Len(t, onlyInactive, 1)
	assert.Equal(t, a.ID, onlyInactive[0].ID)
}

type failingStore struct {
	*authtest.MemoryStore
}

var errStorage = errors.New("connection refused")

func (failingStore) GetByKeyHash(context.Context, string) (*models.Account, error) {
	return nil, errStorage
}

func TestVerifyAPIKey_StorageErrorPropagates(t *testing.T) {
	svc := auth.NewService(failingStore{authtest.NewMemoryStore()})
	_, err := svc.VerifyAPIKey(context.Background(), apikey.NewGenerator().Generate())
	assert.ErrorIs(t, err, errStorage)
	assert.False(t, auth.IsAuthFailure(err))
}
