package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billpay/backend/internal/auth"
	"github.com/billpay/backend/internal/models"
	"github.com/billpay/backend/internal/validation"
)

type accountBody struct {
	Message string          `json:"message"`
	Account *models.Account `json:"account"`
}

func newHandler(f *fixture) *auth.Handler {
	return auth.NewHandler(f.svc, validation.MustNew(), nil)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) accountBody {
	t.Helper()
	var body accountBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestHandler_Register(t *testing.T) {
	f := newFixture(t)
	h := newHandler(f)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"email":"a@x.com","name":"Shop Owner","businessName":"Shop"}`))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decode(t, rec)
	require.NotNil(t, body.Account)
	assert.True(t, strings.HasPrefix(body.Account.APIKey, "pk_"))
	assert.Equal(t, "a@x.com", body.Account.Email)
	require.NotNil(t, body.Account.BusinessName)
	assert.Equal(t, "Shop", *body.Account.BusinessName)
}

func TestHandler_RegisterDoesNotLeakHash(t *testing.T) {
	f := newFixture(t)
	h := newHandler(f)

	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@x.com","name":"A"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "apiKeyHash")
}

func TestHandler_RegisterValidation(t *testing.T) {
	f := newFixture(t)
	h := newHandler(f)

	for _, body := range []string{`{`, `{"name":"A"}`, `{"email":"nope","name":"A"}`} {
		rec := httptest.NewRecorder()
		h.Register(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Contains(t, rec.Body.String(), `"message"`)
	}
}

func TestHandler_RegisterDuplicate(t *testing.T) {
	f := newFixture(t)
	h := newHandler(f)
	f.register(t, "a@x.com")

	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@x.com","name":"A"}`)))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandler_Login(t *testing.T) {
	f := newFixture(t)
	h := newHandler(f)
	acc := f.register(t, "a@x.com")
	f.clock.Advance(time.Second)

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"apiKey":"`+acc.APIKey+`"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.NotNil(t, body.Account.LastLoginAt)
	assert.False(t, body.Account.LastLoginAt.Before(acc.CreatedAt))
	assert.Empty(t, body.Account.APIKey)
}

func TestHandler_LoginUniformFailure(t *testing.T) {
	f := newFixture(t)
	h := newHandler(f)
	disabled := f.register(t, "d@x.com")
	_, err := f.svc.ToggleAccountStatus(context.Background(), disabled.ID, false)
	require.NoError(t, err)

	keys := []string{"bogus", "pk_1_deadbeef", disabled.APIKey}
	var bodies []string
	for _, key := range keys {
		rec := httptest.NewRecorder()
		h.Login(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"apiKey":"`+key+`"}`)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, key)
		bodies = append(bodies, rec.Body.String())
	}
	for _, b := range bodies[1:] {
		assert.Equal(t, bodies[0], b)
	}
}

func TestHandler_RegenerateKey(t *testing.T) {
	f := newFixture(t)
	h := newHandler(f)
	acc := f.register(t, "a@x.com")

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(auth.WithPrincipal(req.Context(), acc))
	rec := httptest.NewRecorder()
	h.RegenerateKey(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.NotEqual(t, acc.APIKey, body.Account.APIKey)
	assert.True(t, strings.HasPrefix(body.Account.APIKey, "pk_"))
}

func TestHandler_ProfileRequiresPrincipal(t *testing.T) {
	f := newFixture(t)
	h := newHandler(f)

	rec := httptest.NewRecorder()
	h.Profile(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	acc := f.register(t, "a@x.com")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithPrincipal(req.Context(), acc))
	rec = httptest.NewRecorder()
	h.Profile(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, acc.ID, decode(t, rec).Account.ID)
}
