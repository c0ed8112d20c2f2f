package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/billpay/backend/internal/auth"
	"github.com/billpay/backend/internal/auth/authtest"
	"github.com/billpay/backend/internal/validation"
)

var secret = []byte("test-secret")

func newAuthenticator(t *testing.T, clock *authtest.Clock) *Authenticator {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	return NewAuthenticator("Admin@Example.com", string(hash), secret, WithClock(clock.Now))
}

func TestAuthenticator_LoginAndValidate(t *testing.T) {
	clock := authtest.NewClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	a := newAuthenticator(t, clock)

	token, err := a.Login("admin@example.com", "s3cret")
	require.NoError(t, err)

	subject, err := a.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", subject)

	clock.Advance(TokenTTL + time.Second)
	_, err = a.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticator_RejectsBadCredentials(t *testing.T) {
	a := newAuthenticator(t, authtest.NewClock(time.Now()))

	_, err := a.Login("admin@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = a.Login("other@example.com", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	disabled := NewAuthenticator("admin@example.com", "", secret)
	_, err = disabled.Login("admin@example.com", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticator_RejectsForeignTokens(t *testing.T) {
	a := newAuthenticator(t, authtest.NewClock(time.Now()))

	other := NewAuthenticator("admin@example.com", "", []byte("other-secret"))
	forged, err := other.issueToken()
	require.NoError(t, err)
	_, err = a.ValidateToken(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "admin@example.com"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = a.ValidateToken(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.ValidateToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticator_UnconfiguredRejectsSelfSignedTokens(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	cases := []struct {
		name  string
		authn *Authenticator
	}{
		{"nothing set", NewAuthenticator("", "", []byte(""))},
		{"email only", NewAuthenticator("admin@example.com", "", nil)},
		{"no secret", NewAuthenticator("admin@example.com", string(hash), nil)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.False(t, tc.authn.Enabled())
			for _, subject := range []string{"", "admin@example.com"} {
				c := claims{
					RegisteredClaims: jwt.RegisteredClaims{
						Subject:   subject,
						ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
					},
					Role: adminRole,
				}
				token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte{})
				require.NoError(t, err)
				_, err = tc.authn.ValidateToken(token)
				assert.ErrorIs(t, err, ErrInvalidToken, "subject %q", subject)
			}
			_, err := tc.authn.Login("admin@example.com", "s3cret")
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

type handlerFixture struct {
	h     *Handler
	svc   auth.Service
	clock *authtest.Clock
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	clock := authtest.NewClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	svc := auth.NewService(authtest.NewMemoryStore(), auth.WithClock(clock.Now))
	return &handlerFixture{
		h:     NewHandler(newAuthenticator(t, clock), svc, validation.MustNew(), nil),
		svc:   svc,
		clock: clock,
	}
}

func (f *handlerFixture) register(t *testing.T, email string) int64 {
	t.Helper()
	acc, err := f.svc.CreateAccount(context.Background(), auth.CreateAccountInput{Email: email, Name: "X"})
	require.NoError(t, err)
	return acc.ID
}

func TestHandler_Login(t *testing.T) {
	f := newHandlerFixture(t)

	rec := httptest.NewRecorder()
	f.h.Login(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"admin@example.com","password":"s3cret"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp LoginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, int64(86400), resp.ExpiresIn)

	rec = httptest.NewRecorder()
	f.h.Login(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"admin@example.com","password":"nope"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	f.h.Login(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"admin@example.com"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	want := validation.Message(validation.MustNew().Validate(validation.SchemaAdminLogin, []byte(`{"email":"admin@example.com"}`)))
	assert.JSONEq(t, `{"message":`+strconvQuote(want)+`}`, rec.Body.String())
}

func strconvQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestHandler_ListAccountsFilter(t *testing.T) {
	f := newHandlerFixture(t)
	a := f.register(t, "a@x.com")
	f.register(t, "b@x.com")
	_, err := f.svc.ToggleAccountStatus(context.Background(), a, false)
	require.NoError(t, err)

	list := func(query string) []map[string]any {
		rec := httptest.NewRecorder()
		f.h.ListAccounts(rec, httptest.NewRequest(http.MethodGet, "/api/admin/accounts"+query, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Accounts []map[string]any `json:"accounts"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		return body.Accounts
	}

	assert.Len(t, list(""), 2)
	inactive := list("?active=false")
	require.Len(t, inactive, 1)
	assert.Equal(t, "a@x.com", inactive[0]["email"])
	assert.NotContains(t, inactive[0], "apiKey")
	assert.NotContains(t, inactive[0], "apiKeyPrefix")

	rec := httptest.NewRecorder()
	f.h.ListAccounts(rec, httptest.NewRequest(http.MethodGet, "/api/admin/accounts?active=maybe", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_SetStatusAndVerify(t *testing.T) {
	f := newHandlerFixture(t)
	id := f.register(t, "a@x.com")

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"isActive":false}`))
	req.SetPathValue("id", "1")
	rec := httptest.NewRecorder()
	f.h.SetStatus(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	acc, err := f.svc.GetAccount(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, acc.IsActive)

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.SetPathValue("id", "1")
	rec = httptest.NewRecorder()
	f.h.Verify(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	acc, err = f.svc.GetAccount(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, acc.IsVerified)
}

func TestHandler_UnknownAndInvalidID(t *testing.T) {
	f := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.SetPathValue("id", "42")
	rec := httptest.NewRecorder()
	f.h.Verify(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetPathValue("id", "abc")
	rec = httptest.NewRecorder()
	f.h.GetAccount(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
