package services

import (
	"context"
	"fmt"
	"strings"

	"caixa/internal/amqp"
	"caixa/internal/core"
	"caixa/internal/log"
)

// FinanceService records money movements and serves balance reads. It never
// refuses an expense for lack of funds; only the payment scheduler checks
// the balance before spending.
type FinanceService struct {
	store   LedgerStore
	audit   *AuditService
	events  EventPublisher
	modules SnapshotSource
	logger  *log.Logger
}

func NewFinanceService(store LedgerStore, audit *AuditService, events EventPublisher, modules SnapshotSource, logger *log.Logger) *FinanceService {
	return &FinanceService{
		store:   store,
		audit:   audit,
		events:  events,
		modules: modules,
		logger:  logger.WithComponent("finance"),
	}
}

// DonationInput carries one incoming donation. Donor is nil for anonymous
// donations. ExternalRef ties the row to a payment provider session; when
// Pending is set the donation stays out of the balance until settled.
type DonationInput struct {
	Amount      core.Money
	Message     string
	Donor       *core.User
	ExternalRef string
	Pending     bool
}

// RecordDonation validates the donation against the configured bounds and
// anonymity policy, persists it and notifies the event queue.
func (s *FinanceService) RecordDonation(ctx context.Context, in DonationInput) (core.Transaction, error) {
	snapshot := s.modules.Current()

	if err := in.Amount.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if min, max, ok := snapshot.DonationBounds(); ok {
		if in.Amount.LessThan(min) || max.LessThan(in.Amount) {
			return core.Transaction{}, fmt.Errorf("donation of %s outside allowed range %s-%s: %w",
				in.Amount, min, max, core.ErrOutOfRange)
		}
	}
	if in.Donor == nil && !snapshot.AnonymousAllowed() {
		return core.Transaction{}, core.ErrAnonymousNotAllowed
	}

	t := core.Transaction{
		Type:        core.TypeIn,
		Amount:      in.Amount,
		Currency:    snapshot.Currency(),
		Message:     strings.TrimSpace(in.Message),
		ExternalRef: in.ExternalRef,
		Status:      core.StatusCompleted,
	}
	if in.Donor != nil {
		t.DonorID = &in.Donor.ID
		t.DonorHandle = in.Donor.Handle
	}
	if in.Pending {
		t.Status = core.StatusPending
	}

	created, err := s.store.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("record donation: %w", err)
	}

	if created.Status == core.StatusCompleted {
		s.publishDonation(ctx, created)
	}
	return created, nil
}

// ExpenseInput carries one admin-recorded expense.
type ExpenseInput struct {
	Amount      core.Money
	Description string
	Category    string
	Recipient   string
	Actor       string
}

// RecordExpense registers an outgoing transaction. Expenses have no upper
// bound and are accepted even when they push the balance negative.
func (s *FinanceService) RecordExpense(ctx context.Context, in ExpenseInput) (core.Transaction, error) {
	if err := in.Amount.Validate(); err != nil {
		return core.Transaction{}, err
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return core.Transaction{}, core.ErrEmptyDescription
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = "other"
	}

	created, err := s.store.CreateTransaction(ctx, core.Transaction{
		Type:        core.TypeOut,
		Amount:      in.Amount,
		Currency:    s.modules.Current().Currency(),
		Description: description,
		Category:    category,
		Recipient:   strings.TrimSpace(in.Recipient),
		Status:      core.StatusCompleted,
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("record expense: %w", err)
	}

	s.audit.Record(ctx, core.ActionCreateExpense, in.Actor, description, map[string]any{
		"amount_cents": created.Amount.Cents,
		"category":     category,
		"recipient":    created.Recipient,
	})
	return created, nil
}

// RecordAutomaticPayment registers the outgoing transaction for one
// scheduled payment. Called by the scheduler after its balance check.
func (s *FinanceService) RecordAutomaticPayment(ctx context.Context, p core.AutoPayment) (core.Transaction, error) {
	created, err := s.store.CreateTransaction(ctx, core.Transaction{
		Type:        core.TypeOut,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Description: p.Description,
		Category:    p.Category,
		Recipient:   p.Recipient,
		Status:      core.StatusCompleted,
		Automatic:   true,
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("record automatic payment %q: %w", p.ID, err)
	}
	return created, nil
}

// Settle flips a pending donation to completed once the payment provider
// confirms it, then emits the deferred notification.
func (s *FinanceService) Settle(ctx context.Context, externalRef string) (core.Transaction, error) {
	settled, err := s.store.SettleTransaction(ctx, externalRef)
	if err != nil {
		return core.Transaction{}, err
	}

	s.audit.Record(ctx, core.ActionSettlePayment, "system", externalRef, map[string]any{
		"amount_cents": settled.Amount.Cents,
	})
	s.publishDonation(ctx, settled)
	return settled, nil
}

// Summary returns the completed-transaction totals together with goal
// progress. The balance is computed fresh on every call.
func (s *FinanceService) Summary(ctx context.Context) (core.Summary, error) {
	summary, err := s.store.Summary(ctx)
	if err != nil {
		return core.Summary{}, fmt.Errorf("load summary: %w", err)
	}

	snapshot := s.modules.Current()
	summary.Currency = snapshot.Currency()
	// Goal progress tracks everything raised, not what is left after
	// expenses.
	if goal := snapshot.Goal(); goal != nil && goal.TargetAmount.Cents > 0 {
		percentage := float64(summary.TotalIn.Cents) / float64(goal.TargetAmount.Cents) * 100
		if percentage < 0 {
			percentage = 0
		}
		if percentage > 100 {
			percentage = 100
		}
		summary.Goal = &core.GoalProgress{
			Target:      goal.TargetAmount,
			Current:     summary.TotalIn,
			Percentage:  percentage,
			Description: goal.Description,
		}
	}
	return summary, nil
}

func (s *FinanceService) RecentTransactions(ctx context.Context, limit int) ([]core.Transaction, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	return s.store.RecentTransactions(ctx, limit)
}

func (s *FinanceService) ListTransactions(ctx context.Context, page, limit int, typ core.TransactionType) ([]core.Transaction, int, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.ListTransactions(ctx, page, limit, typ)
}

// TotalDonated reports the cumulative completed donations of one user, used
// by the voting gates.
func (s *FinanceService) TotalDonated(ctx context.Context, donorID int64) (core.Money, error) {
	cents, err := s.store.TotalDonatedCents(ctx, donorID)
	if err != nil {
		return core.Money{}, fmt.Errorf("total donated for user %d: %w", donorID, err)
	}
	return core.Money{Cents: cents}, nil
}

func (s *FinanceService) publishDonation(ctx context.Context, t core.Transaction) {
	if s.events == nil {
		return
	}
	msg := amqp.NewDonationEvent(t.Amount.Cents, t.Currency, t.DonorHandle, t.Message)
	if err := s.events.PublishEvent(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "failed to publish donation event", "error", err)
	}
}
