package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/billpay/backend/internal/models"
	"github.com/billpay/backend/internal/validation"
)

// Request/response structs use camelCase JSON to match the web client.

type RegisterRequest struct {
	Email        string  `json:"email"`
	Name         string  `json:"name"`
	BusinessName *string `json:"businessName"`
	Phone        *string `json:"phone"`
}

type LoginRequest struct {
	APIKey string `json:"apiKey"`
}

type AccountResponse struct {
	Message string          `json:"message,omitempty"`
	Account *models.Account `json:"account"`
}

type Handler struct {
	svc       Service
	validator *validation.Validator
	log       *slog.Logger
}

func NewHandler(svc Service, v *validation.Validator, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, validator: v, log: log}
}

// POST /api/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := h.validator.Decode(validation.SchemaRegister, r.Body, &req); err != nil {
		writeValidationError(w, err)
		return
	}
	acc, err := h.svc.CreateAccount(r.Context(), CreateAccountInput{
		Email:        req.Email,
		Name:         req.Name,
		BusinessName: req.BusinessName,
		Phone:        req.Phone,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		h.log.Error("register failed", "error", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	writeJSON(w, http.StatusCreated, AccountResponse{Message: "account created", Account: acc})
}

// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := h.validator.Decode(validation.SchemaLogin, r.Body, &req); err != nil {
		writeValidationError(w, err)
		return
	}
	acc, err := h.svc.VerifyAPIKey(r.Context(), req.APIKey)
	if err != nil {
		if IsAuthFailure(err) {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}
		h.log.Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, AccountResponse{Message: "login successful", Account: acc})
}

// POST /api/auth/regenerate-key
func (h *Handler) RegenerateKey(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "API key required")
		return
	}
	acc, err := h.svc.RegenerateAPIKey(r.Context(), principal.ID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}
		h.log.Error("regenerate key failed", "account_id", principal.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to regenerate API key")
		return
	}
	writeJSON(w, http.StatusOK, AccountResponse{Message: "API key regenerated", Account: acc})
}

// GET /api/auth/profile
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "API key required")
		return
	}
	writeJSON(w, http.StatusOK, AccountResponse{Account: principal})
}

func writeValidationError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, validation.Message(err))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
