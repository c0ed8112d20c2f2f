// Package billing covers bill lookup, payment creation and settlement.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/billpay/backend/internal/execution"
	"github.com/billpay/backend/internal/metrics"
	"github.com/billpay/backend/internal/models"
)

// DefaultSettleDelay is how long internally settled methods stay pending.
const DefaultSettleDelay = 2 * time.Second

type Service interface {
	LookupBill(ctx context.Context, customerID, billType, provider string) (*models.Bill, *models.Customer, error)
	CreatePayment(ctx context.Context, billID int64, method string) (*models.Payment, error)
	GetPayment(ctx context.Context, transactionID string) (*models.Payment, error)
	PaymentHistory(ctx context.Context, customerID string) ([]models.HistoryEntry, error)
	Providers(billType string) []string
}

// Store is the billing persistence contract.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	GetCustomer(ctx context.Context, customerID string) (*models.Customer, error)
	FindBill(ctx context.Context, customerID, billType, provider string) (*models.Bill, error)
	GetBillForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*models.Bill, error)
	CreatePayment(ctx context.Context, tx pgx.Tx, p *models.Payment) (*models.Payment, error)
	GetPaymentByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error)
	ListHistory(ctx context.Context, customerID string) ([]models.HistoryEntry, error)
	CompletePayment(ctx context.Context, tx pgx.Tx, paymentID int64, paidAt time.Time) (*models.Payment, error)
	MarkBillPaid(ctx context.Context, tx pgx.Tx, billID int64) error
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
}

// InsertSettlementTxFunc enqueues a settlement job within the given transaction.
// Provided by main using river.Client.InsertTx.
type InsertSettlementTxFunc func(ctx context.Context, tx pgx.Tx, args execution.SettlePaymentArgs, runAt time.Time) error

type service struct {
	store       Store
	catalog     Catalog
	enqueue     InsertSettlementTxFunc
	settleDelay time.Duration
	now         func() time.Time
	log         *slog.Logger
}

type Option func(*service)

func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

func WithSettleDelay(d time.Duration) Option {
	return func(s *service) {
		if d >= 0 {
			s.settleDelay = d
		}
	}
}

func WithCatalog(c Catalog) Option {
	return func(s *service) { s.catalog = c }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *service) {
		if log != nil {
			s.log = log
		}
	}
}

// NewService returns *service so it can also serve as execution.BillingService.
func NewService(store Store, enqueue InsertSettlementTxFunc, opts ...Option) *service {
	s := &service{
		store:       store,
		enqueue:     enqueue,
		settleDelay: DefaultSettleDelay,
		now:         time.Now,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.catalog == nil {
		s.catalog = DefaultCatalog()
	}
	return s
}

var (
	_ Service                  = (*service)(nil)
	_ execution.BillingService = (*service)(nil)
)

func (s *service) LookupBill(ctx context.Context, customerID, billType, provider string) (*models.Bill, *models.Customer, error) {
	if !s.catalog.Has(billType, provider) {
		return nil, nil, ErrUnknownProvider
	}
	customer, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, nil, err
	}
	bill, err := s.store.FindBill(ctx, customerID, billType, provider)
	if err != nil {
		return nil, nil, err
	}
	return bill, customer, nil
}

func (s *service) CreatePayment(ctx context.Context, billID int64, method string) (*models.Payment, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	bill, err := s.store.GetBillForUpdate(ctx, tx, billID)
	if err != nil {
		return nil, err
	}
	if bill.Status == models.BillStatusPaid {
		return nil, ErrBillAlreadyPaid
	}

	now := s.now()
	payment, err := s.store.CreatePayment(ctx, tx, &models.Payment{
		BillID:        bill.ID,
		CustomerID:    bill.CustomerID,
		Amount:        bill.Amount,
		PaymentMethod: method,
		TransactionID: newTransactionID(now),
		Status:        models.PaymentStatusPending,
		CreatedAt:     now,
	})
	if err != nil {
		return nil, err
	}

	if !models.IsGatewayMethod(method) {
		runAt := now.Add(s.settleDelay)
		if err := s.enqueue(ctx, tx, execution.SettlePaymentArgs{PaymentID: payment.ID}, runAt); err != nil {
			return nil, fmt.Errorf("enqueue settlement: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	s.log.Info("payment created",
		"payment_id", payment.ID, "transaction_id", payment.TransactionID, "bill_id", bill.ID, "method", method)
	return payment, nil
}

// newTransactionID returns "TXN" + unix millis + 8 upper-case hex characters.
func newTransactionID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("TXN%d%s", now.UnixMilli(), suffix)
}

func (s *service) GetPayment(ctx context.Context, transactionID string) (*models.Payment, error) {
	return s.store.GetPaymentByTransactionID(ctx, transactionID)
}

func (s *service) PaymentHistory(ctx context.Context, customerID string) ([]models.HistoryEntry, error) {
	return s.store.ListHistory(ctx, customerID)
}

func (s *service) Providers(billType string) []string {
	return s.catalog.Providers(billType)
}

// SettlePayment implements execution.BillingService. It completes a pending
// payment and marks its bill paid in one transaction. It reports false when
// the payment was not pending.
func (s *service) SettlePayment(ctx context.Context, paymentID int64) (bool, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	payment, err := s.store.CompletePayment(ctx, tx, paymentID, s.now())
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := s.store.MarkBillPaid(ctx, tx, payment.BillID); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	metrics.RecordPaymentSettled()
	s.log.Info("payment settled", "payment_id", payment.ID, "bill_id", payment.BillID)
	return true, nil
}

// MarkOverdueBills implements execution.BillingService.
func (s *service) MarkOverdueBills(ctx context.Context) (int64, error) {
	n, err := s.store.MarkOverdue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	metrics.RecordBillsOverdue(n)
	return n, nil
}
