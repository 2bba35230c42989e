package core

import (
	"strings"
	"time"
)

const (
	TypeIn  TransactionType = "IN"
	TypeOut TransactionType = "OUT"

	StatusCompleted TransactionStatus = "completed"
	StatusPending   TransactionStatus = "pending"

	ProposalActive ProposalStatus = "active"
	ProposalClosed ProposalStatus = "closed"

	ResultNone     ProposalResult = "none"
	ResultApproved ProposalResult = "approved"
	ResultDenied   ProposalResult = "denied"
	ResultNoQuorum ProposalResult = "no_quorum"

	VoteYes     VoteChoice = "yes"
	VoteNo      VoteChoice = "no"
	VoteAbstain VoteChoice = "abstain"

	RoleAdmin  = "admin"
	RoleMember = "user"
)

type (
	TransactionType   string
	TransactionStatus string
	ProposalStatus    string
	ProposalResult    string
	VoteChoice        string

	// Transaction is a single ledger row. Rows are immutable once written,
	// except for the pending -> completed status transition driven by an
	// external settlement confirmation.
	Transaction struct {
		ID          int64
		Type        TransactionType
		Amount      Money
		Currency    string
		DonorID     *int64
		DonorHandle string
		Description string
		Category    string
		Recipient   string
		Message     string
		ExternalRef string
		Automatic   bool
		Status      TransactionStatus
		CreatedAt   time.Time
	}

	// Proposal carries denormalized vote counters. Each counter must equal
	// the number of persisted votes of that choice at all times.
	Proposal struct {
		ID           int64
		Title        string
		Description  string
		AuthorHandle string
		Status       ProposalStatus
		Result       ProposalResult
		YesCount     int
		NoCount      int
		AbstainCount int
		EndsAt       time.Time
		ClosedAt     *time.Time
		CreatedAt    time.Time
	}

	// Vote is immutable; at most one exists per (ProposalID, UserHandle).
	Vote struct {
		ProposalID int64
		UserHandle string
		Choice     VoteChoice
		VotedAt    time.Time
	}

	Comment struct {
		ID           int64
		ProposalID   int64
		AuthorHandle string
		Content      string
		CreatedAt    time.Time
	}

	// AuditEntry is append-only. Public is fixed from configuration at write
	// time and never changed afterwards.
	AuditEntry struct {
		ID          int64
		Action      string
		ActorHandle string
		Target      string
		Details     map[string]any
		Public      bool
		Timestamp   time.Time
	}

	User struct {
		ID        int64
		Email     string
		Handle    string
		Role      string
		Banned    bool
		CreatedAt time.Time
	}

	// AutoPayment is a configuration-provided recurring expense. The engine
	// never creates or mutates these.
	AutoPayment struct {
		ID          string
		Description string
		Amount      Money
		Currency    string
		Recipient   string
		Category    string
	}

	GoalProgress struct {
		Target      Money
		Current     Money
		Percentage  float64
		Description string
	}

	// Summary is derived from the ledger on every call. The balance gates
	// scheduler spending, so no field here may be cached between reads.
	Summary struct {
		TotalIn       Money
		TotalOut      Money
		Balance       Money
		Currency      string
		DonationCount int
		ExpenseCount  int
		Goal          *GoalProgress
	}
)

// Audit action vocabulary.
const (
	ActionCreateExpense     = "CREATE_EXPENSE"
	ActionCloseProposal     = "CLOSE_PROPOSAL"
	ActionCronPayment       = "CRON_PAYMENT"
	ActionCronPaymentFailed = "CRON_PAYMENT_FAILED"
	ActionCronPaymentError  = "CRON_PAYMENT_ERROR"
	ActionChangeSettings    = "CHANGE_SETTINGS"
	ActionBanUser           = "BAN_USER"
	ActionUnbanUser         = "UNBAN_USER"
	ActionSettlePayment     = "SETTLE_PAYMENT"
)

func (c VoteChoice) Valid() bool {
	switch c {
	case VoteYes, VoteNo, VoteAbstain:
		return true
	}
	return false
}

func (p Proposal) TotalVotes() int {
	return p.YesCount + p.NoCount + p.AbstainCount
}

// Resolve computes the closing result for a proposal. Quorum counts yes and
// no ballots only; abstentions never contribute. A tie denies the proposal.
func (p Proposal) Resolve(minVotes int) ProposalResult {
	decisive := p.YesCount + p.NoCount
	if decisive < minVotes {
		return ResultNoQuorum
	}
	if p.YesCount > p.NoCount {
		return ResultApproved
	}
	return ResultDenied
}

func (p Proposal) ValidateNew() error {
	if strings.TrimSpace(p.Title) == "" {
		return ErrEmptyTitle
	}
	if len(p.Title) > 200 {
		return ErrTitleTooLong
	}
	if strings.TrimSpace(p.Description) == "" {
		return ErrEmptyDescription
	}
	return nil
}
