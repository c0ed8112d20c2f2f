package billing

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/billpay/backend/internal/models"
)

const (
	billColumns = `id, customer_id, bill_type, provider, period, old_index, new_index, consumption,
		amount, status, due_date, created_at`
	paymentColumns = `id, bill_id, customer_id, amount, payment_method, transaction_id, status, paid_at, created_at`
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func scanBill(row pgx.Row) (*models.Bill, error) {
	var b models.Bill
	err := row.Scan(&b.ID, &b.CustomerID, &b.BillType, &b.Provider, &b.Period, &b.OldIndex, &b.NewIndex,
		&b.Consumption, &b.Amount, &b.Status, &b.DueDate, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBillNotFound
		}
		return nil, err
	}
	return &b, nil
}

func scanPayment(row pgx.Row) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(&p.ID, &p.BillID, &p.CustomerID, &p.Amount, &p.PaymentMethod, &p.TransactionID,
		&p.Status, &p.PaidAt, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *Repository) GetCustomer(ctx context.Context, customerID string) (*models.Customer, error) {
	var c models.Customer
	err := r.pool.QueryRow(ctx, `
		SELECT id, customer_id, name, address, phone, email, created_at
		FROM customers WHERE customer_id = $1
	`, customerID).Scan(&c.ID, &c.CustomerID, &c.Name, &c.Address, &c.Phone, &c.Email, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return &c, nil
}

// FindBill returns the customer's most recent bill for the type and provider.
func (r *Repository) FindBill(ctx context.Context, customerID, billType, provider string) (*models.Bill, error) {
	return scanBill(r.pool.QueryRow(ctx, `
		SELECT `+billColumns+` FROM bills
		WHERE customer_id = $1 AND bill_type = $2 AND provider = $3
		ORDER BY due_date DESC, id DESC
		LIMIT 1
	`, customerID, billType, provider))
}

// GetBillForUpdate locks the bill row for the rest of tx.
func (r *Repository) GetBillForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*models.Bill, error) {
	return scanBill(tx.QueryRow(ctx, `SELECT `+billColumns+` FROM bills WHERE id = $1 FOR UPDATE`, id))
}

func (r *Repository) CreatePayment(ctx context.Context, tx pgx.Tx, p *models.Payment) (*models.Payment, error) {
	return scanPayment(tx.QueryRow(ctx, `
		INSERT INTO payments (bill_id, customer_id, amount, payment_method, transaction_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+paymentColumns,
		p.BillID, p.CustomerID, p.Amount, p.PaymentMethod, p.TransactionID, p.Status, p.CreatedAt))
}

func (r *Repository) GetPaymentByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+` FROM payments WHERE transaction_id = $1
	`, transactionID))
}

// ListHistory returns the customer's payments, newest first, each joined with its bill.
func (r *Repository) ListHistory(ctx context.Context, customerID string) ([]models.HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.bill_id, p.customer_id, p.amount, p.payment_method, p.transaction_id, p.status,
			p.paid_at, p.created_at,
			b.id, b.customer_id, b.bill_type, b.provider, b.period, b.old_index, b.new_index, b.consumption,
			b.amount, b.status, b.due_date, b.created_at
		FROM payments p
		JOIN bills b ON b.id = p.bill_id
		WHERE p.customer_id = $1
		ORDER BY p.created_at DESC, p.id DESC
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	history := []models.HistoryEntry{}
	for rows.Next() {
		var e models.HistoryEntry
		var b models.Bill
		if err := rows.Scan(&e.ID, &e.BillID, &e.CustomerID, &e.Amount, &e.PaymentMethod, &e.TransactionID,
			&e.Status, &e.PaidAt, &e.CreatedAt,
			&b.ID, &b.CustomerID, &b.BillType, &b.Provider, &b.Period, &b.OldIndex, &b.NewIndex, &b.Consumption,
			&b.Amount, &b.Status, &b.DueDate, &b.CreatedAt); err != nil {
			return nil, err
		}
		e.Bill = &b
		history = append(history, e)
	}
	return history, rows.Err()
}

// CompletePayment moves a pending payment to completed. It returns
// ErrPaymentNotFound if no pending payment has that id.
func (r *Repository) CompletePayment(ctx context.Context, tx pgx.Tx, paymentID int64, paidAt time.Time) (*models.Payment, error) {
	return scanPayment(tx.QueryRow(ctx, `
		UPDATE payments SET status = 'completed', paid_at = $2
		WHERE id = $1 AND status = 'pending'
		RETURNING `+paymentColumns,
		paymentID, paidAt))
}

func (r *Repository) MarkBillPaid(ctx context.Context, tx pgx.Tx, billID int64) error {
	tag, err := tx.Exec(ctx, `UPDATE bills SET status = 'paid' WHERE id = $1`, billID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBillNotFound
	}
	return nil
}

// MarkOverdue flips pending bills whose due date has passed.
func (r *Repository) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bills SET status = 'overdue'
		WHERE status = 'pending' AND due_date < $1
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
