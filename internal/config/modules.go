package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"caixa/internal/core"
)

// Modules is an immutable snapshot of the organization's module settings,
// mirroring the modules.json file. Operations read one snapshot for their
// whole duration; admin updates swap in a fresh snapshot via Store.Swap and
// never mutate a live one.
type Modules struct {
	Version      string       `json:"version"`
	Organization Organization `json:"organization"`
	Modules      ModuleSet    `json:"modules"`
}

type Organization struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Currency    string `json:"currency"`
	Locale      string `json:"locale,omitempty"`
}

type ModuleSet struct {
	Donations *DonationsModule `json:"donations,omitempty"`
	Voting    *VotingModule    `json:"voting,omitempty"`
	AuditLog  *AuditLogModule  `json:"audit_log,omitempty"`
	Cron      *CronModule      `json:"cron,omitempty"`
}

type DonationsModule struct {
	Enabled  bool               `json:"enabled"`
	Settings *DonationsSettings `json:"settings,omitempty"`
}

type DonationsSettings struct {
	MinAmount      core.Money `json:"min_amount"`
	MaxAmount      core.Money `json:"max_amount"`
	AllowAnonymous bool       `json:"allow_anonymous"`
	Goal           *GoalConfig `json:"goal,omitempty"`
}

type GoalConfig struct {
	Enabled      bool       `json:"enabled"`
	TargetAmount core.Money `json:"target_amount"`
	Description  string     `json:"description,omitempty"`
}

type VotingModule struct {
	Enabled  bool            `json:"enabled"`
	Settings *VotingSettings `json:"settings,omitempty"`
}

type VotingSettings struct {
	CreateProposalRole string        `json:"create_proposal_role,omitempty"`
	PayToCreate        *PaymentGate  `json:"pay_to_create,omitempty"`
	PayToVote          *PaymentGate  `json:"pay_to_vote,omitempty"`
	Quorum             *QuorumConfig `json:"quorum,omitempty"`
	DurationDays       int           `json:"duration_days,omitempty"`
}

type PaymentGate struct {
	Enabled bool       `json:"enabled"`
	Amount  core.Money `json:"amount"`
}

type QuorumConfig struct {
	MinVotes int `json:"min_votes"`
}

type AuditLogModule struct {
	Enabled  bool              `json:"enabled"`
	Settings *AuditLogSettings `json:"settings,omitempty"`
}

type AuditLogSettings struct {
	Public       bool     `json:"public"`
	ActionsToLog []string `json:"actions_to_log,omitempty"`
}

type CronModule struct {
	Enabled  bool          `json:"enabled"`
	Settings *CronSettings `json:"settings,omitempty"`
}

type CronSettings struct {
	AutoPayments *AutoPaymentsConfig `json:"auto_payments,omitempty"`
}

type AutoPaymentsConfig struct {
	Enabled  bool                `json:"enabled"`
	Payments []AutoPaymentConfig `json:"payments,omitempty"`
}

type AutoPaymentConfig struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Amount      core.Money `json:"amount"`
	Currency    string     `json:"currency,omitempty"`
	Recipient   string     `json:"recipient,omitempty"`
	Category    string     `json:"category,omitempty"`
}

// ParseModules decodes and validates a modules snapshot from raw JSON.
func ParseModules(raw []byte) (*Modules, error) {
	var m Modules
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse modules file: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if m.Organization.Currency == "" {
		m.Organization.Currency = "BRL"
	}
	return &m, nil
}

// LoadModules reads the modules snapshot from disk.
func LoadModules(path string) (*Modules, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read modules file: %w", err)
	}
	return ParseModules(raw)
}

// Validate collects all snapshot problems into a single error.
func (m *Modules) Validate() error {
	var errors []string

	if strings.TrimSpace(m.Organization.Name) == "" {
		errors = append(errors, "organization name is required")
	}
	if m.Organization.Currency != "" && len(m.Organization.Currency) != 3 {
		errors = append(errors, fmt.Sprintf("invalid currency '%s': must be a 3-letter code", m.Organization.Currency))
	}

	if d := m.Modules.Donations; d != nil && d.Settings != nil {
		s := d.Settings
		if s.MinAmount.Cents <= 0 {
			errors = append(errors, "donations min_amount must be positive")
		}
		if s.MaxAmount.Cents <= 0 {
			errors = append(errors, "donations max_amount must be positive")
		}
		if s.MinAmount.Cents > 0 && s.MaxAmount.Cents > 0 && s.MinAmount.Cents > s.MaxAmount.Cents {
			errors = append(errors, "donations min_amount cannot exceed max_amount")
		}
		if g := s.Goal; g != nil && g.Enabled && g.TargetAmount.Cents <= 0 {
			errors = append(errors, "donations goal target_amount must be positive when enabled")
		}
	}

	if v := m.Modules.Voting; v != nil && v.Settings != nil {
		s := v.Settings
		if s.Quorum != nil && s.Quorum.MinVotes < 1 {
			errors = append(errors, "voting quorum min_votes must be at least 1")
		}
		if s.DurationDays < 0 {
			errors = append(errors, "voting duration_days cannot be negative")
		}
		if s.CreateProposalRole != "" && s.CreateProposalRole != core.RoleAdmin && s.CreateProposalRole != core.RoleMember {
			errors = append(errors, fmt.Sprintf("invalid create_proposal_role '%s'", s.CreateProposalRole))
		}
	}

	if c := m.Modules.Cron; c != nil && c.Settings != nil && c.Settings.AutoPayments != nil {
		seen := map[string]bool{}
		for i, p := range c.Settings.AutoPayments.Payments {
			if p.ID == "" {
				errors = append(errors, fmt.Sprintf("auto payment #%d is missing an id", i))
				continue
			}
			if seen[p.ID] {
				errors = append(errors, fmt.Sprintf("duplicate auto payment id '%s'", p.ID))
			}
			seen[p.ID] = true
			if p.Amount.Cents <= 0 {
				errors = append(errors, fmt.Sprintf("auto payment '%s' amount must be positive", p.ID))
			}
			if strings.TrimSpace(p.Description) == "" {
				errors = append(errors, fmt.Sprintf("auto payment '%s' is missing a description", p.ID))
			}
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("modules validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Currency returns the organization currency code.
func (m *Modules) Currency() string {
	if m.Organization.Currency == "" {
		return "BRL"
	}
	return m.Organization.Currency
}

// DonationBounds returns the configured donation window, or ok=false when
// donations settings are absent (no bounds are then enforced).
func (m *Modules) DonationBounds() (min, max core.Money, ok bool) {
	d := m.Modules.Donations
	if d == nil || d.Settings == nil {
		return core.Money{}, core.Money{}, false
	}
	return d.Settings.MinAmount, d.Settings.MaxAmount, true
}

// AnonymousAllowed defaults to true when donations settings are absent.
func (m *Modules) AnonymousAllowed() bool {
	d := m.Modules.Donations
	if d == nil || d.Settings == nil {
		return true
	}
	return d.Settings.AllowAnonymous
}

// Goal returns the funding goal, or nil when none is enabled.
func (m *Modules) Goal() *GoalConfig {
	d := m.Modules.Donations
	if d == nil || d.Settings == nil || d.Settings.Goal == nil || !d.Settings.Goal.Enabled {
		return nil
	}
	return d.Settings.Goal
}

// AutoPayments returns the configured payment list and whether the
// automated-payments feature is enabled at all.
func (m *Modules) AutoPayments() (payments []core.AutoPayment, enabled bool) {
	c := m.Modules.Cron
	if c == nil || !c.Enabled || c.Settings == nil || c.Settings.AutoPayments == nil || !c.Settings.AutoPayments.Enabled {
		return nil, false
	}
	for _, p := range c.Settings.AutoPayments.Payments {
		currency := p.Currency
		if currency == "" {
			currency = m.Currency()
		}
		category := p.Category
		if category == "" {
			category = "infrastructure"
		}
		payments = append(payments, core.AutoPayment{
			ID:          p.ID,
			Description: p.Description,
			Amount:      p.Amount,
			Currency:    currency,
			Recipient:   p.Recipient,
			Category:    category,
		})
	}
	return payments, true
}

// DonationsEnabled reports whether the donations module is on.
func (m *Modules) DonationsEnabled() bool {
	d := m.Modules.Donations
	return d != nil && d.Enabled
}

// VotingEnabled reports whether the governance module is on.
func (m *Modules) VotingEnabled() bool {
	v := m.Modules.Voting
	return v != nil && v.Enabled
}

// CreateProposalRole returns the minimum role required to open a proposal.
// Absent configuration lets any member propose.
func (m *Modules) CreateProposalRole() string {
	v := m.Modules.Voting
	if v == nil || v.Settings == nil || v.Settings.CreateProposalRole == "" {
		return core.RoleMember
	}
	return v.Settings.CreateProposalRole
}

// ProposalGate returns the cumulative-donation threshold for opening a
// proposal, or ok=false when the gate is off.
func (m *Modules) ProposalGate() (amount core.Money, ok bool) {
	v := m.Modules.Voting
	if v == nil || v.Settings == nil || v.Settings.PayToCreate == nil || !v.Settings.PayToCreate.Enabled {
		return core.Money{}, false
	}
	return v.Settings.PayToCreate.Amount, true
}

// VoteGate returns the cumulative-donation threshold for casting a vote, or
// ok=false when the gate is off.
func (m *Modules) VoteGate() (amount core.Money, ok bool) {
	v := m.Modules.Voting
	if v == nil || v.Settings == nil || v.Settings.PayToVote == nil || !v.Settings.PayToVote.Enabled {
		return core.Money{}, false
	}
	return v.Settings.PayToVote.Amount, true
}

// VotingDurationDays defaults to 7.
func (m *Modules) VotingDurationDays() int {
	v := m.Modules.Voting
	if v == nil || v.Settings == nil || v.Settings.DurationDays <= 0 {
		return 7
	}
	return v.Settings.DurationDays
}

// QuorumMinVotes defaults to 5, matching the historical behavior when the
// quorum block is absent.
func (m *Modules) QuorumMinVotes() int {
	v := m.Modules.Voting
	if v == nil || v.Settings == nil || v.Settings.Quorum == nil {
		return 5
	}
	return v.Settings.Quorum.MinVotes
}

// AuditEnabled reports whether audit logging is on at all.
func (m *Modules) AuditEnabled() bool {
	a := m.Modules.AuditLog
	return a != nil && a.Enabled
}

// AuditPublicDefault is the visibility stamped on new entries.
func (m *Modules) AuditPublicDefault() bool {
	a := m.Modules.AuditLog
	if a == nil || a.Settings == nil {
		return true
	}
	return a.Settings.Public
}

// AuditActionAllowed applies the allow-list filter; an empty list allows
// every action.
func (m *Modules) AuditActionAllowed(action string) bool {
	a := m.Modules.AuditLog
	if a == nil || a.Settings == nil || len(a.Settings.ActionsToLog) == 0 {
		return true
	}
	for _, allowed := range a.Settings.ActionsToLog {
		if allowed == action {
			return true
		}
	}
	return false
}

// Store hands out the current modules snapshot and serializes updates.
// Readers get a stable *Modules they can use for a whole operation; Swap
// replaces the pointer atomically so no caller ever observes a half-written
// configuration.
type Store struct {
	mu      sync.Mutex
	current atomic.Pointer[Modules]
}

func NewStore(initial *Modules) *Store {
	s := &Store{}
	s.current.Store(initial)
	return s
}

// Current returns the live snapshot. The returned value must be treated as
// read-only.
func (s *Store) Current() *Modules {
	return s.current.Load()
}

// Swap validates raw JSON and installs it as the new snapshot. Updates are
// serialized; concurrent Swap calls apply one after the other.
func (s *Store) Swap(raw []byte) (*Modules, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := ParseModules(raw)
	if err != nil {
		return nil, err
	}
	s.current.Store(m)
	return m, nil
}
