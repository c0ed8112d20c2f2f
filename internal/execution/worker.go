package execution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
	"github.com/robfig/cron/v3"
)

// DefaultOverdueSchedule runs the overdue sweep at the top of every hour.
const DefaultOverdueSchedule = "0 * * * *"

type SettlePaymentArgs struct {
	PaymentID int64 `json:"paymentId"`
}

func (SettlePaymentArgs) Kind() string { return "settle_payment" }

func (SettlePaymentArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: 5}
}

type OverdueSweepArgs struct{}

func (OverdueSweepArgs) Kind() string { return "overdue_bill_sweep" }

func (OverdueSweepArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: 1}
}

// BillingService defines the contract the workers need from billing.
type BillingService interface {
	SettlePayment(ctx context.Context, paymentID int64) (bool, error)
	MarkOverdueBills(ctx context.Context) (int64, error)
}

type SettlePaymentWorker struct {
	river.WorkerDefaults[SettlePaymentArgs]
	billing BillingService
	log     *slog.Logger
}

func NewSettlePaymentWorker(b BillingService, log *slog.Logger) *SettlePaymentWorker {
	if log == nil {
		log = slog.Default()
	}
	return &SettlePaymentWorker{billing: b, log: log}
}

func (w *SettlePaymentWorker) Timeout(*river.Job[SettlePaymentArgs]) time.Duration {
	return 30 * time.Second
}

func (w *SettlePaymentWorker) Work(ctx context.Context, job *river.Job[SettlePaymentArgs]) error {
	settled, err := w.billing.SettlePayment(ctx, job.Args.PaymentID)
	if err != nil {
		return fmt.Errorf("settle payment %d: %w", job.Args.PaymentID, err)
	}
	if !settled {
		w.log.Info("payment already settled or missing", "payment_id", job.Args.PaymentID, "job_id", job.ID)
	}
	return nil
}

type OverdueSweepWorker struct {
	river.WorkerDefaults[OverdueSweepArgs]
	billing BillingService
	log     *slog.Logger
}

func NewOverdueSweepWorker(b BillingService, log *slog.Logger) *OverdueSweepWorker {
	if log == nil {
		log = slog.Default()
	}
	return &OverdueSweepWorker{billing: b, log: log}
}

func (w *OverdueSweepWorker) Work(ctx context.Context, job *river.Job[OverdueSweepArgs]) error {
	n, err := w.billing.MarkOverdueBills(ctx)
	if err != nil {
		return fmt.Errorf("overdue sweep: %w", err)
	}
	if n > 0 {
		w.log.Info("bills marked overdue", "count", n, "job_id", job.ID)
	}
	return nil
}

// NewWorkers registers every billing worker.
func NewWorkers(b BillingService, log *slog.Logger) *river.Workers {
	workers := river.NewWorkers()
	river.AddWorker(workers, NewSettlePaymentWorker(b, log))
	river.AddWorker(workers, NewOverdueSweepWorker(b, log))
	return workers
}

// PeriodicJobs builds the overdue sweep from a standard five-field cron
// expression. An empty expression uses DefaultOverdueSchedule.
func PeriodicJobs(schedule string) ([]*river.PeriodicJob, error) {
	if schedule == "" {
		schedule = DefaultOverdueSchedule
	}
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, fmt.Errorf("parse overdue schedule %q: %w", schedule, err)
	}
	return []*river.PeriodicJob{
		river.NewPeriodicJob(
			sched,
			func() (river.JobArgs, *river.InsertOpts) {
				return OverdueSweepArgs{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		),
	}, nil
}
