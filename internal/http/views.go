package http

import (
	"time"

	"caixa/internal/core"
)

// View types decouple the wire format from the domain structs. Amounts
// render as decimal numbers via core.Money's JSON marshaling.

type transactionView struct {
	ID          int64      `json:"id"`
	Type        string     `json:"type"`
	Amount      core.Money `json:"amount"`
	Currency    string     `json:"currency"`
	DonorHandle string     `json:"donor_handle,omitempty"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category,omitempty"`
	Recipient   string     `json:"recipient,omitempty"`
	Message     string     `json:"message,omitempty"`
	Automatic   bool       `json:"automatic,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toTransactionView(t core.Transaction) transactionView {
	return transactionView{
		ID:          t.ID,
		Type:        string(t.Type),
		Amount:      t.Amount,
		Currency:    t.Currency,
		DonorHandle: t.DonorHandle,
		Description: t.Description,
		Category:    t.Category,
		Recipient:   t.Recipient,
		Message:     t.Message,
		Automatic:   t.Automatic,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
	}
}

func toTransactionViews(list []core.Transaction) []transactionView {
	out := make([]transactionView, 0, len(list))
	for _, t := range list {
		out = append(out, toTransactionView(t))
	}
	return out
}

type goalView struct {
	Target      core.Money `json:"target"`
	Current     core.Money `json:"current"`
	Percentage  float64    `json:"percentage"`
	Description string     `json:"description,omitempty"`
}

type summaryView struct {
	TotalIn       core.Money `json:"total_in"`
	TotalOut      core.Money `json:"total_out"`
	Balance       core.Money `json:"balance"`
	Currency      string     `json:"currency"`
	DonationCount int        `json:"donation_count"`
	ExpenseCount  int        `json:"expense_count"`
	Goal          *goalView  `json:"goal,omitempty"`
}

func toSummaryView(s core.Summary) summaryView {
	v := summaryView{
		TotalIn:       s.TotalIn,
		TotalOut:      s.TotalOut,
		Balance:       s.Balance,
		Currency:      s.Currency,
		DonationCount: s.DonationCount,
		ExpenseCount:  s.ExpenseCount,
	}
	if s.Goal != nil {
		v.Goal = &goalView{
			Target:      s.Goal.Target,
			Current:     s.Goal.Current,
			Percentage:  s.Goal.Percentage,
			Description: s.Goal.Description,
		}
	}
	return v
}

type proposalView struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	AuthorHandle string     `json:"author_handle"`
	Status       string     `json:"status"`
	Result       string     `json:"result"`
	YesCount     int        `json:"yes_count"`
	NoCount      int        `json:"no_count"`
	AbstainCount int        `json:"abstain_count"`
	EndsAt       time.Time  `json:"ends_at"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func toProposalView(p core.Proposal) proposalView {
	return proposalView{
		ID:           p.ID,
		Title:        p.Title,
		Description:  p.Description,
		AuthorHandle: p.AuthorHandle,
		Status:       string(p.Status),
		Result:       string(p.Result),
		YesCount:     p.YesCount,
		NoCount:      p.NoCount,
		AbstainCount: p.AbstainCount,
		EndsAt:       p.EndsAt,
		ClosedAt:     p.ClosedAt,
		CreatedAt:    p.CreatedAt,
	}
}

func toProposalViews(list []core.Proposal) []proposalView {
	out := make([]proposalView, 0, len(list))
	for _, p := range list {
		out = append(out, toProposalView(p))
	}
	return out
}

type voteView struct {
	UserHandle string    `json:"user_handle"`
	Choice     string    `json:"choice"`
	VotedAt    time.Time `json:"voted_at"`
}

type commentView struct {
	ID           int64     `json:"id"`
	AuthorHandle string    `json:"author_handle"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
}

type proposalDetailView struct {
	Proposal proposalView  `json:"proposal"`
	Votes    []voteView    `json:"votes"`
	Comments []commentView `json:"comments"`
	HasVoted bool          `json:"has_voted"`
}

type auditEntryView struct {
	ID        int64          `json:"id"`
	Action    string         `json:"action"`
	Actor     string         `json:"actor"`
	Target    string         `json:"target,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Public    bool           `json:"public"`
	Timestamp time.Time      `json:"timestamp"`
}

func toAuditViews(entries []core.AuditEntry) []auditEntryView {
	out := make([]auditEntryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryView{
			ID:        e.ID,
			Action:    e.Action,
			Actor:     e.ActorHandle,
			Target:    e.Target,
			Details:   e.Details,
			Public:    e.Public,
			Timestamp: e.Timestamp,
		})
	}
	return out
}

type pageView[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}
