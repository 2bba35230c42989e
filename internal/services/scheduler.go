package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"caixa/internal/core"
	"caixa/internal/log"
)

// PaymentLedger is the slice of the finance service the scheduler needs.
type PaymentLedger interface {
	Summary(ctx context.Context) (core.Summary, error)
	RecordAutomaticPayment(ctx context.Context, p core.AutoPayment) (core.Transaction, error)
}

// SchedulerService executes the configured automatic payments. A run walks
// the payment list in configuration order and checks the live balance before
// each payment, so earlier payments drain the funds available to later ones.
type SchedulerService struct {
	ledger  PaymentLedger
	audit   *AuditService
	modules SnapshotSource
	logger  *log.Logger

	// Weight 1: at most one run at a time, across HTTP triggers and cron.
	running *semaphore.Weighted
	lastRun atomicLastRun
}

func NewSchedulerService(ledger PaymentLedger, audit *AuditService, modules SnapshotSource, logger *log.Logger) *SchedulerService {
	return &SchedulerService{
		ledger:  ledger,
		audit:   audit,
		modules: modules,
		logger:  logger.WithComponent("scheduler"),
		running: semaphore.NewWeighted(1),
	}
}

// RunReport summarizes one scheduler run.
type RunReport struct {
	RunID     string          `json:"run_id"`
	StartedAt time.Time       `json:"started_at"`
	Processed int             `json:"processed"`
	Failed    int             `json:"failed"`
	Results   []PaymentResult `json:"results"`
}

// PaymentResult is the outcome for a single configured payment.
type PaymentResult struct {
	PaymentID      string `json:"payment_id"`
	Description    string `json:"description"`
	Success        bool   `json:"success"`
	AmountCents    int64  `json:"amount_cents"`
	Error          string `json:"error,omitempty"`
	RequiredCents  int64  `json:"required_cents,omitempty"`
	AvailableCents int64  `json:"available_cents,omitempty"`
}

// SchedulerStatus reports the configured payments, how they relate to the
// current balance, and the last run, for the admin dashboard.
type SchedulerStatus struct {
	Enabled      bool          `json:"enabled"`
	Payments     []PaymentPlan `json:"payments"`
	MonthlyCents int64         `json:"monthly_total_cents"`
	BalanceCents int64         `json:"balance_cents"`
	CanExecute   bool          `json:"can_execute"`
	LastRun      *RunReport    `json:"last_run,omitempty"`
}

// PaymentPlan is one configured payment annotated with whether the current
// balance covers it on its own.
type PaymentPlan struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents"`
	Recipient   string `json:"recipient,omitempty"`
	Category    string `json:"category,omitempty"`
	CanPay      bool   `json:"can_pay"`
}

// RunAutoPayments executes every configured payment once. Only one run may
// be in flight; a second trigger while a run is active gets ErrRunInProgress
// instead of queueing behind it.
func (s *SchedulerService) RunAutoPayments(ctx context.Context) (RunReport, error) {
	if !s.running.TryAcquire(1) {
		return RunReport{}, core.ErrRunInProgress
	}
	defer s.running.Release(1)

	payments, enabled := s.modules.Current().AutoPayments()
	report := RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Results:   []PaymentResult{},
	}
	if !enabled {
		s.logger.InfoContext(ctx, "automatic payments disabled, nothing to run", "run_id", report.RunID)
		s.lastRun.store(&report)
		return report, nil
	}

	s.logger.InfoContext(ctx, "payment run started", "run_id", report.RunID, "payments", len(payments))

	for _, p := range payments {
		result := s.processPayment(ctx, report.RunID, p)
		report.Results = append(report.Results, result)
		if result.Success {
			report.Processed++
		} else {
			report.Failed++
		}
	}

	s.logger.InfoContext(ctx, "payment run finished",
		"run_id", report.RunID,
		"processed", report.Processed,
		"failed", report.Failed)

	s.lastRun.store(&report)
	return report, nil
}

// processPayment checks the live balance and records the expense. Every
// failure mode lands in the audit log; an error with one payment never stops
// the rest of the run.
func (s *SchedulerService) processPayment(ctx context.Context, runID string, p core.AutoPayment) PaymentResult {
	result := PaymentResult{
		PaymentID:   p.ID,
		Description: p.Description,
		AmountCents: p.Amount.Cents,
	}

	summary, err := s.ledger.Summary(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "balance check failed", "run_id", runID, "payment_id", p.ID, "error", err)
		result.Error = "balance check failed"
		s.audit.Record(ctx, core.ActionCronPaymentError, "system", p.Description, map[string]any{
			"payment_id": p.ID,
			"run_id":     runID,
			"error":      err.Error(),
		})
		return result
	}

	if summary.Balance.LessThan(p.Amount) {
		s.logger.WarnContext(ctx, "insufficient balance for payment",
			"run_id", runID,
			"payment_id", p.ID,
			"required_cents", p.Amount.Cents,
			"available_cents", summary.Balance.Cents)
		result.Error = core.ErrInsufficientBalance.Error()
		result.RequiredCents = p.Amount.Cents
		result.AvailableCents = summary.Balance.Cents
		s.audit.Record(ctx, core.ActionCronPaymentFailed, "system", p.Description, map[string]any{
			"payment_id":      p.ID,
			"run_id":          runID,
			"reason":          core.ErrInsufficientBalance.Error(),
			"required_cents":  p.Amount.Cents,
			"available_cents": summary.Balance.Cents,
		})
		return result
	}

	if _, err := s.ledger.RecordAutomaticPayment(ctx, p); err != nil {
		s.logger.ErrorContext(ctx, "failed to record payment", "run_id", runID, "payment_id", p.ID, "error", err)
		result.Error = "failed to record payment"
		s.audit.Record(ctx, core.ActionCronPaymentError, "system", p.Description, map[string]any{
			"payment_id": p.ID,
			"run_id":     runID,
			"error":      err.Error(),
		})
		return result
	}

	result.Success = true
	s.audit.Record(ctx, core.ActionCronPayment, "system", p.Description, map[string]any{
		"payment_id":   p.ID,
		"run_id":       runID,
		"amount_cents": p.Amount.Cents,
		"recipient":    p.Recipient,
	})
	return result
}

// Status reports the current configuration, whether the present balance
// covers it, and the last completed run.
func (s *SchedulerService) Status(ctx context.Context) (SchedulerStatus, error) {
	summary, err := s.ledger.Summary(ctx)
	if err != nil {
		return SchedulerStatus{}, err
	}

	payments, enabled := s.modules.Current().AutoPayments()
	status := SchedulerStatus{
		Enabled:      enabled,
		Payments:     []PaymentPlan{},
		BalanceCents: summary.Balance.Cents,
		LastRun:      s.lastRun.load(),
	}
	for _, p := range payments {
		status.MonthlyCents += p.Amount.Cents
		status.Payments = append(status.Payments, PaymentPlan{
			ID:          p.ID,
			Description: p.Description,
			AmountCents: p.Amount.Cents,
			Recipient:   p.Recipient,
			Category:    p.Category,
			CanPay:      !summary.Balance.LessThan(p.Amount),
		})
	}
	status.CanExecute = enabled && status.BalanceCents >= status.MonthlyCents
	return status, nil
}

// atomicLastRun keeps the most recent run report for the status endpoint.
type atomicLastRun struct {
	p atomic.Pointer[RunReport]
}

func (a *atomicLastRun) store(r *RunReport) { a.p.Store(r) }
func (a *atomicLastRun) load() *RunReport   { return a.p.Load() }
