// Package billingtest provides an in-memory billing.Store for tests.
package billingtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/billpay/backend/internal/billing"
	"github.com/billpay/backend/internal/models"
)

// Tx satisfies pgx.Tx. Writes made through it are buffered and applied to
// the store on Commit.
type Tx struct {
	store     *MemoryStore
	ops       []func()
	committed bool
	done      bool
}

func (t *Tx) Begin(context.Context) (pgx.Tx, error) { return t, nil }

func (t *Tx) Commit(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.store.mu.Lock()
	for _, op := range t.ops {
		op()
	}
	t.store.commits++
	t.store.mu.Unlock()
	t.committed, t.done = true, true
	return nil
}

func (t *Tx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	return nil
}

func (t *Tx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *Tx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (t *Tx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (t *Tx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *Tx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *Tx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *Tx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *Tx) Conn() *pgx.Conn { return nil }

// Committed reports whether Commit was called.
func (t *Tx) Committed() bool { return t.committed }

type MemoryStore struct {
	mu         sync.Mutex
	customers  map[string]*models.Customer
	bills      map[int64]*models.Bill
	payments   map[int64]*models.Payment
	nextBill   int64
	nextPay    int64
	nextCust   int64
	commits    int
	BeginError error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customers: make(map[string]*models.Customer),
		bills:     make(map[int64]*models.Bill),
		payments:  make(map[int64]*models.Payment),
	}
}

var _ billing.Store = (*MemoryStore)(nil)

// AddCustomer seeds a customer.
func (m *MemoryStore) AddCustomer(c models.Customer) *models.Customer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextCust++
	c.ID = m.nextCust
	m.customers[c.CustomerID] = &c
	cp := c
	return &cp
}

// AddBill seeds a bill. An empty status becomes pending.
func (m *MemoryStore) AddBill(b models.Bill) *models.Bill {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextBill++
	b.ID = m.nextBill
	if b.Status == "" {
		b.Status = models.BillStatusPending
	}
	m.bills[b.ID] = &b
	cp := b
	return &cp
}

func (m *MemoryStore) Bill(id int64) *models.Bill {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bills[id]
	if !ok {
		return nil
	}
	cp := *b
	return &cp
}

func (m *MemoryStore) Payment(id int64) *models.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

// Commits counts committed transactions.
func (m *MemoryStore) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

func (m *MemoryStore) Begin(context.Context) (pgx.Tx, error) {
	if m.BeginError != nil {
		return nil, m.BeginError
	}
	return &Tx{store: m}, nil
}

func (m *MemoryStore) GetCustomer(_ context.Context, customerID string) (*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[customerID]
	if !ok {
		return nil, billing.ErrCustomerNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) FindBill(_ context.Context, customerID, billType, provider string) (*models.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *models.Bill
	for _, b := range m.bills {
		if b.CustomerID != customerID || b.BillType != billType || b.Provider != provider {
			continue
		}
		if found == nil || b.DueDate.After(found.DueDate) || (b.DueDate.Equal(found.DueDate) && b.ID > found.ID) {
			found = b
		}
	}
	if found == nil {
		return nil, billing.ErrBillNotFound
	}
	cp := *found
	return &cp, nil
}

func (m *MemoryStore) GetBillForUpdate(ctx context.Context, _ pgx.Tx, id int64) (*models.Bill, error) {
	if b := m.Bill(id); b != nil {
		return b, nil
	}
	return nil, billing.ErrBillNotFound
}

func (m *MemoryStore) CreatePayment(_ context.Context, tx pgx.Tx, p *models.Payment) (*models.Payment, error) {
	m.mu.Lock()
	for _, existing := range m.payments {
		if existing.TransactionID == p.TransactionID {
			m.mu.Unlock()
			return nil, &pgconn.PgError{Code: "23505", ConstraintName: "payments_transaction_id_key"}
		}
	}
	m.nextPay++
	created := *p
	created.ID = m.nextPay
	m.mu.Unlock()

	m.apply(tx, func() {
		stored := created
		m.payments[stored.ID] = &stored
	})
	return &created, nil
}

func (m *MemoryStore) GetPaymentByTransactionID(_ context.Context, transactionID string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.TransactionID == transactionID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, billing.ErrPaymentNotFound
}

func (m *MemoryStore) ListHistory(_ context.Context, customerID string) ([]models.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	history := []models.HistoryEntry{}
	for _, p := range m.payments {
		if p.CustomerID != customerID {
			continue
		}
		e := models.HistoryEntry{Payment: *p}
		if b, ok := m.bills[p.BillID]; ok {
			cp := *b
			e.Bill = &cp
		}
		history = append(history, e)
	}
	sort.Slice(history, func(i, j int) bool { return history[i].ID > history[j].ID })
	return history, nil
}

func (m *MemoryStore) CompletePayment(_ context.Context, tx pgx.Tx, paymentID int64, paidAt time.Time) (*models.Payment, error) {
	m.mu.Lock()
	p, ok := m.payments[paymentID]
	if !ok || p.Status != models.PaymentStatusPending {
		m.mu.Unlock()
		return nil, billing.ErrPaymentNotFound
	}
	updated := *p
	m.mu.Unlock()

	updated.Status = models.PaymentStatusCompleted
	updated.PaidAt = &paidAt
	m.apply(tx, func() {
		stored := updated
		m.payments[paymentID] = &stored
	})
	return &updated, nil
}

func (m *MemoryStore) MarkBillPaid(_ context.Context, tx pgx.Tx, billID int64) error {
	m.mu.Lock()
	_, ok := m.bills[billID]
	m.mu.Unlock()
	if !ok {
		return billing.ErrBillNotFound
	}
	m.apply(tx, func() {
		m.bills[billID].Status = models.BillStatusPaid
	})
	return nil
}

func (m *MemoryStore) MarkOverdue(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, b := range m.bills {
		if b.Status == models.BillStatusPending && b.DueDate.Before(now) {
			b.Status = models.BillStatusOverdue
			n++
		}
	}
	return n, nil
}

// apply buffers op on a memory transaction, or runs it at once otherwise.
func (m *MemoryStore) apply(tx pgx.Tx, op func()) {
	if t, ok := tx.(*Tx); ok && t.store == m {
		t.ops = append(t.ops, op)
		return
	}
	m.mu.Lock()
	op()
	m.mu.Unlock()
}
