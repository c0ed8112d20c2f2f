package models

import "time"

// Bill types served by the platform.
const (
	BillTypeElectricity = "electricity"
	BillTypeWater       = "water"
	BillTypeInternet    = "internet"
	BillTypeTV          = "tv"
)

// Bill status enums.
const (
	BillStatusPending = "pending"
	BillStatusPaid    = "paid"
	BillStatusOverdue = "overdue"
)

// Payment status enums.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

type Customer struct {
	ID         int64     `json:"id"`
	CustomerID string    `json:"customerId"`
	Name       string    `json:"name"`
	Address    string    `json:"address"`
	Phone      *string   `json:"phone,omitempty"`
	Email      *string   `json:"email,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Bill amounts are whole Vietnamese đồng.
type Bill struct {
	ID          int64     `json:"id"`
	CustomerID  string    `json:"customerId"`
	BillType    string    `json:"billType"`
	Provider    string    `json:"provider"`
	Period      string    `json:"period"`
	OldIndex    *int      `json:"oldIndex,omitempty"`
	NewIndex    *int      `json:"newIndex,omitempty"`
	Consumption *int      `json:"consumption,omitempty"`
	Amount      int64     `json:"amount"`
	Status      string    `json:"status"`
	DueDate     time.Time `json:"dueDate"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Payment struct {
	ID            int64      `json:"id"`
	BillID        int64      `json:"billId"`
	CustomerID    string     `json:"customerId"`
	Amount        int64      `json:"amount"`
	PaymentMethod string     `json:"paymentMethod"`
	TransactionID string     `json:"transactionId"`
	Status        string     `json:"status"`
	PaidAt        *time.Time `json:"paidAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Payment methods. Gateway methods settle through the provider, the rest
// are settled internally after a short delay.
const (
	PaymentMethodQR      = "qr"
	PaymentMethodBank    = "bank"
	PaymentMethodEWallet = "ewallet"
	PaymentMethodMoMo    = "momo"
	PaymentMethodVisa    = "visa"
)

// IsGatewayMethod reports whether method is settled by an external gateway.
func IsGatewayMethod(method string) bool {
	return method == PaymentMethodMoMo || method == PaymentMethodVisa
}

// HistoryEntry is a payment together with the bill it paid.
type HistoryEntry struct {
	Payment
	Bill *Bill `json:"bill,omitempty"`
}
