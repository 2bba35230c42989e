package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"caixa/internal/amqp"
	"caixa/internal/config"
	"caixa/internal/core"
	"caixa/internal/log"
)

// fakeLedger is an in-memory LedgerStore. Summary recomputes from the rows
// on every call, like the SQL implementation does.
type fakeLedger struct {
	mu           sync.Mutex
	transactions []core.Transaction
	nextID       int64
	failSummary  error
	failCreate   error
}

func (f *fakeLedger) CreateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return core.Transaction{}, f.failCreate
	}
	f.nextID++
	t.ID = f.nextID
	if t.Status == "" {
		t.Status = core.StatusCompleted
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	f.transactions = append(f.transactions, t)
	return t, nil
}

func (f *fakeLedger) SettleTransaction(_ context.Context, externalRef string) (core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.transactions {
		if t.ExternalRef == externalRef && t.Status == core.StatusPending {
			f.transactions[i].Status = core.StatusCompleted
			return f.transactions[i], nil
		}
	}
	return core.Transaction{}, core.ErrNotFound
}

func (f *fakeLedger) Summary(context.Context) (core.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSummary != nil {
		return core.Summary{}, f.failSummary
	}
	var s core.Summary
	for _, t := range f.transactions {
		if t.Status != core.StatusCompleted {
			continue
		}
		switch t.Type {
		case core.TypeIn:
			s.TotalIn = s.TotalIn.Add(t.Amount)
			s.DonationCount++
		case core.TypeOut:
			s.TotalOut = s.TotalOut.Add(t.Amount)
			s.ExpenseCount++
		}
	}
	s.Balance = s.TotalIn.Sub(s.TotalOut)
	return s, nil
}

func (f *fakeLedger) RecentTransactions(_ context.Context, limit int) ([]core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.transactions)
	if limit > n {
		limit = n
	}
	out := make([]core.Transaction, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, f.transactions[i])
	}
	return out, nil
}

func (f *fakeLedger) ListTransactions(ctx context.Context, _, limit int, typ core.TransactionType) ([]core.Transaction, int, error) {
	f.mu.Lock()
	var filtered []core.Transaction
	for _, t := range f.transactions {
		if typ == "" || t.Type == typ {
			filtered = append(filtered, t)
		}
	}
	f.mu.Unlock()
	if limit > len(filtered) {
		limit = len(filtered)
	}
	return filtered[:limit], len(filtered), nil
}

func (f *fakeLedger) TotalDonatedCents(_ context.Context, donorID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, t := range f.transactions {
		if t.Type == core.TypeIn && t.Status == core.StatusCompleted &&
			t.DonorID != nil && *t.DonorID == donorID {
			total += t.Amount.Cents
		}
	}
	return total, nil
}

// fakeProposals is an in-memory ProposalStore with the same sentinel
// behavior as the SQL implementation.
type fakeProposals struct {
	mu        sync.Mutex
	proposals map[int64]*core.Proposal
	votes     map[int64][]core.Vote
	comments  map[int64][]core.Comment
	nextID    int64
}

func newFakeProposals() *fakeProposals {
	return &fakeProposals{
		proposals: map[int64]*core.Proposal{},
		votes:     map[int64][]core.Vote{},
		comments:  map[int64][]core.Comment{},
	}
}

func (f *fakeProposals) CreateProposal(_ context.Context, p core.Proposal) (core.Proposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p.ID = f.nextID
	p.CreatedAt = time.Now().UTC()
	f.proposals[p.ID] = &p
	return p, nil
}

func (f *fakeProposals) CastVote(_ context.Context, vote core.Vote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.proposals[vote.ProposalID]
	if !ok {
		return core.ErrNotFound
	}
	if p.Status != core.ProposalActive {
		return core.ErrVotingClosed
	}
	if !p.EndsAt.IsZero() && time.Now().After(p.EndsAt) {
		return core.ErrVotingClosed
	}
	for _, v := range f.votes[vote.ProposalID] {
		if v.UserHandle == vote.UserHandle {
			return core.ErrDuplicateVote
		}
	}
	f.votes[vote.ProposalID] = append(f.votes[vote.ProposalID], vote)
	switch vote.Choice {
	case core.VoteYes:
		p.YesCount++
	case core.VoteNo:
		p.NoCount++
	case core.VoteAbstain:
		p.AbstainCount++
	}
	return nil
}

func (f *fakeProposals) CloseProposal(_ context.Context, id int64, minVotes int) (core.Proposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.proposals[id]
	if !ok {
		return core.Proposal{}, core.ErrNotFound
	}
	if p.Status == core.ProposalClosed {
		return core.Proposal{}, core.ErrAlreadyClosed
	}
	now := time.Now().UTC()
	p.Status = core.ProposalClosed
	p.Result = p.Resolve(minVotes)
	p.ClosedAt = &now
	return *p, nil
}

func (f *fakeProposals) ActiveProposals(context.Context) ([]core.Proposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Proposal
	for _, p := range f.proposals {
		if p.Status == core.ProposalActive && time.Now().Before(p.EndsAt) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProposals) AllProposals(_ context.Context, limit int) ([]core.Proposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Proposal
	for _, p := range f.proposals {
		out = append(out, *p)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeProposals) ProposalByID(_ context.Context, id int64) (core.Proposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.proposals[id]
	if !ok {
		return core.Proposal{}, core.ErrNotFound
	}
	return *p, nil
}

func (f *fakeProposals) VotesForProposal(_ context.Context, proposalID int64) ([]core.Vote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Vote{}, f.votes[proposalID]...), nil
}

func (f *fakeProposals) HasVoted(_ context.Context, proposalID int64, userHandle string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.votes[proposalID] {
		if v.UserHandle == userHandle {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeProposals) AddComment(_ context.Context, c core.Comment) (core.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.proposals[c.ProposalID]; !ok {
		return core.Comment{}, core.ErrNotFound
	}
	c.ID = int64(len(f.comments[c.ProposalID]) + 1)
	f.comments[c.ProposalID] = append(f.comments[c.ProposalID], c)
	return c, nil
}

func (f *fakeProposals) CommentsForProposal(_ context.Context, proposalID int64) ([]core.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Comment{}, f.comments[proposalID]...), nil
}

// fakeAudit records appended entries for assertions.
type fakeAudit struct {
	mu      sync.Mutex
	entries []core.AuditEntry
}

func (f *fakeAudit) AppendAuditEntry(_ context.Context, e core.AuditEntry) (core.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = int64(len(f.entries) + 1)
	f.entries = append(f.entries, e)
	return e, nil
}

func (f *fakeAudit) ListAuditEntries(_ context.Context, _, _ int, publicOnly bool) ([]core.AuditEntry, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.AuditEntry
	for _, e := range f.entries {
		if publicOnly && !e.Public {
			continue
		}
		out = append(out, e)
	}
	return out, len(out), nil
}

func (f *fakeAudit) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

// fakeUsers is an in-memory UserStore. Set failCreates to make the next N
// CreateUser calls report a handle collision.
type fakeUsers struct {
	mu          sync.Mutex
	users       map[string]*core.User
	nextID      int64
	failCreates int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[string]*core.User{}}
}

func (f *fakeUsers) UserByEmail(_ context.Context, email string) (core.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return *u, nil
}

func (f *fakeUsers) UserByHandle(_ context.Context, handle string) (core.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Handle == handle {
			return *u, nil
		}
	}
	return core.User{}, core.ErrNotFound
}

func (f *fakeUsers) CreateUser(_ context.Context, u core.User) (core.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreates > 0 {
		f.failCreates--
		return core.User{}, core.ErrDuplicateHandle
	}
	for _, existing := range f.users {
		if existing.Handle == u.Handle {
			return core.User{}, core.ErrDuplicateHandle
		}
	}
	f.nextID++
	u.ID = f.nextID
	u.CreatedAt = time.Now().UTC()
	f.users[u.Email] = &u
	return u, nil
}

func (f *fakeUsers) PromoteUser(_ context.Context, id int64, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			u.Role = role
			return nil
		}
	}
	return core.ErrNotFound
}

func (f *fakeUsers) BanUser(_ context.Context, handle, _ string) error {
	return f.setBanned(handle, true)
}

func (f *fakeUsers) UnbanUser(_ context.Context, handle string) error {
	return f.setBanned(handle, false)
}

func (f *fakeUsers) setBanned(handle string, banned bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Handle == handle {
			u.Banned = banned
			return nil
		}
	}
	return core.ErrNotFound
}

// fakePublisher captures published events.
type fakePublisher struct {
	mu       sync.Mutex
	messages []*amqp.EventMessage
	fail     error
}

func (f *fakePublisher) PublishEvent(_ context.Context, msg *amqp.EventMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakePublisher) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.messages {
		out = append(out, m.Kind)
	}
	return out
}

var errBoom = errors.New("boom")

func testLogger() *log.Logger {
	return log.New(log.DefaultConfig())
}

func testModules(t interface{ Fatalf(string, ...any) }, raw string) *config.Store {
	m, err := config.ParseModules([]byte(raw))
	if err != nil {
		t.Fatalf("parse modules: %v", err)
	}
	return config.NewStore(m)
}

const baseModulesJSON = `{
	"version": "1.0",
	"organization": {"name": "Casa da Esquina", "currency": "BRL"},
	"modules": {
		"donations": {
			"enabled": true,
			"settings": {"min_amount": 1, "max_amount": "1000.00", "allow_anonymous": true}
		},
		"voting": {
			"enabled": true,
			"settings": {"duration_days": 7, "quorum": {"min_votes": 5}}
		},
		"audit_log": {
			"enabled": true,
			"settings": {"public": true}
		},
		"cron": {
			"enabled": true,
			"settings": {
				"auto_payments": {
					"enabled": true,
					"payments": [
						{"id": "hosting", "description": "Server hosting", "amount": "60.00", "recipient": "HostCo"},
						{"id": "domain", "description": "Domain renewal", "amount": "60.00", "recipient": "RegistrarCo"}
					]
				}
			}
		}
	}
}`
