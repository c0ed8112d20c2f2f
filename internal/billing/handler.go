package billing

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/billpay/backend/internal/models"
	"github.com/billpay/backend/internal/validation"
)

type LookupRequest struct {
	BillType   string `json:"billType"`
	Provider   string `json:"provider"`
	CustomerID string `json:"customerId"`
}

type LookupResponse struct {
	Bill     *models.Bill     `json:"bill"`
	Customer *models.Customer `json:"customer"`
}

type PaymentRequest struct {
	BillID        int64  `json:"billId"`
	PaymentMethod string `json:"paymentMethod"`
}

type PaymentResponse struct {
	Payment       *models.Payment `json:"payment"`
	TransactionID string          `json:"transactionId,omitempty"`
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

// POST /api/bills/lookup
func (h *Handler) LookupBill(w http.ResponseWriter, r *http.Request) {
	var req LookupRequest
	if err := h.validator.Decode(validation.SchemaBillLookup, r.Body, &req); err != nil {
		writeValidationError(w, err)
		return
	}
	bill, customer, err := h.svc.LookupBill(r.Context(), req.CustomerID, req.BillType, req.Provider)
	if err != nil {
		h.writeServiceError(w, "bill lookup", err)
		return
	}
	writeJSON(w, http.StatusOK, LookupResponse{Bill: bill, Customer: customer})
}

// POST /api/payments
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if err := h.validator.Decode(validation.SchemaPaymentRequest, r.Body, &req); err != nil {
		writeValidationError(w, err)
		return
	}
	payment, err := h.svc.CreatePayment(r.Context(), req.BillID, req.PaymentMethod)
	if err != nil {
		h.writeServiceError(w, "create payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, PaymentResponse{Payment: payment, TransactionID: payment.TransactionID})
}

// GET /api/payments/{transactionId}
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := h.svc.GetPayment(r.Context(), r.PathValue("transactionId"))
	if err != nil {
		h.writeServiceError(w, "get payment", err)
		return
	}
	writeJSON(w, http.StatusOK, PaymentResponse{Payment: payment})
}

// GET /api/payments/history/{customerId}
func (h *Handler) PaymentHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.svc.PaymentHistory(r.Context(), r.PathValue("customerId"))
	if err != nil {
		h.writeServiceError(w, "payment history", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

// GET /api/providers/{billType}
func (h *Handler) Providers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"providers": h.svc.Providers(r.PathValue("billType"))})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrCustomerNotFound),
		errors.Is(err, ErrBillNotFound),
		errors.Is(err, ErrPaymentNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrBillAlreadyPaid), errors.Is(err, ErrUnknownProvider):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error(op+" failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
