// Package services implements the ledger, scheduler, voting and audit
// operations over the storage layer. Each service takes the stores it needs
// as narrow interfaces so tests can substitute in-memory fakes.
package services

import (
	"context"

	"caixa/internal/amqp"
	"caixa/internal/config"
	"caixa/internal/core"
)

// LedgerStore is the transaction side of the repository.
type LedgerStore interface {
	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	SettleTransaction(ctx context.Context, externalRef string) (core.Transaction, error)
	Summary(ctx context.Context) (core.Summary, error)
	RecentTransactions(ctx context.Context, limit int) ([]core.Transaction, error)
	ListTransactions(ctx context.Context, page, limit int, typ core.TransactionType) ([]core.Transaction, int, error)
	TotalDonatedCents(ctx context.Context, donorID int64) (int64, error)
}

// ProposalStore is the governance side of the repository.
type ProposalStore interface {
	CreateProposal(ctx context.Context, p core.Proposal) (core.Proposal, error)
	CastVote(ctx context.Context, vote core.Vote) error
	CloseProposal(ctx context.Context, id int64, minVotes int) (core.Proposal, error)
	ActiveProposals(ctx context.Context) ([]core.Proposal, error)
	AllProposals(ctx context.Context, limit int) ([]core.Proposal, error)
	ProposalByID(ctx context.Context, id int64) (core.Proposal, error)
	VotesForProposal(ctx context.Context, proposalID int64) ([]core.Vote, error)
	HasVoted(ctx context.Context, proposalID int64, userHandle string) (bool, error)
	AddComment(ctx context.Context, c core.Comment) (core.Comment, error)
	CommentsForProposal(ctx context.Context, proposalID int64) ([]core.Comment, error)
}

// AuditStore persists and lists append-only audit rows.
type AuditStore interface {
	AppendAuditEntry(ctx context.Context, e core.AuditEntry) (core.AuditEntry, error)
	ListAuditEntries(ctx context.Context, page, limit int, publicOnly bool) ([]core.AuditEntry, int, error)
}

// UserStore persists identities.
type UserStore interface {
	UserByEmail(ctx context.Context, email string) (core.User, error)
	UserByHandle(ctx context.Context, handle string) (core.User, error)
	CreateUser(ctx context.Context, u core.User) (core.User, error)
	PromoteUser(ctx context.Context, id int64, role string) error
	BanUser(ctx context.Context, handle, reason string) error
	UnbanUser(ctx context.Context, handle string) error
}

// EventPublisher pushes engine events to the notification queue. Every use
// is fire-and-forget: a publish failure is logged and swallowed.
type EventPublisher interface {
	PublishEvent(ctx context.Context, msg *amqp.EventMessage) error
}

// SnapshotSource hands out the current configuration snapshot. Operations
// read it once up front and use that snapshot for their whole duration.
type SnapshotSource interface {
	Current() *config.Modules
}
