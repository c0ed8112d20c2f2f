package admin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/billpay/backend/internal/auth"
	"github.com/billpay/backend/internal/middleware"
	"github.com/billpay/backend/internal/validation"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

type StatusRequest struct {
	IsActive bool `json:"isActive"`
}

type Handler struct {
	authn     *Authenticator
	accounts  auth.Service
	validator *validation.Validator
	log       *slog.Logger
}

func NewHandler(authn *Authenticator, accounts auth.Service, v *validation.Validator, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{authn: authn, accounts: accounts, validator: v, log: log}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeValidationError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, validation.Message(err))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// POST /api/admin/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := h.validator.Decode(validation.SchemaAdminLogin, r.Body, &req); err != nil {
		writeValidationError(w, err)
		return
	}
	token, err := h.authn.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			h.log.Warn("admin login rejected", "request_id", middleware.RequestIDFromCtx(r.Context()))
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.log.Error("admin login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, ExpiresIn: int64(TokenTTL.Seconds())})
}

// GET /api/admin/accounts?active=true|false
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	var active *bool
	if raw := r.URL.Query().Get("active"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "active must be true or false")
			return
		}
		active = &b
	}
	list, err := h.accounts.ListAccounts(r.Context(), active)
	if err != nil {
		h.log.Error("list accounts failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list accounts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": list})
}

// GET /api/admin/accounts/{id}
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	acc, err := h.accounts.GetAccount(r.Context(), id)
	if err != nil {
		h.accountError(w, "get account", id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account": acc.Summary()})
}

// POST /api/admin/accounts/{id}/status
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	var req StatusRequest
	if err := h.validator.Decode(validation.SchemaAccountStatus, r.Body, &req); err != nil {
		writeValidationError(w, err)
		return
	}
	acc, err := h.accounts.ToggleAccountStatus(r.Context(), id, req.IsActive)
	if err != nil {
		h.accountError(w, "toggle status", id, err)
		return
	}
	h.log.Info("admin changed account status",
		"admin", middleware.AdminFromCtx(r.Context()), "account_id", id, "is_active", req.IsActive)
	writeJSON(w, http.StatusOK, map[string]any{"account": acc.Summary()})
}

// POST /api/admin/accounts/{id}/verify
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	acc, err := h.accounts.VerifyAccount(r.Context(), id)
	if err != nil {
		h.accountError(w, "verify account", id, err)
		return
	}
	h.log.Info("admin verified account", "admin", middleware.AdminFromCtx(r.Context()), "account_id", id)
	writeJSON(w, http.StatusOK, map[string]any{"account": acc.Summary()})
}

func (h *Handler) accountError(w http.ResponseWriter, op string, id int64, err error) {
	if errors.Is(err, auth.ErrAccountNotFound) {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	h.log.Error(op+" failed", "account_id", id, "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func accountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return 0, false
	}
	return id, true
}
