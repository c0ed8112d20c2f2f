package billing

import "errors"

var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrBillNotFound     = errors.New("bill not found")
	ErrBillAlreadyPaid  = errors.New("bill has already been paid")
	ErrPaymentNotFound  = errors.New("payment not found")
	// ErrUnknownProvider is returned when a lookup names a provider the
	// catalog does not list for the bill type.
	ErrUnknownProvider = errors.New("unknown provider for bill type")
)
