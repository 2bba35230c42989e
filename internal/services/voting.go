package services

import (
	"context"
	"fmt"
	"time"

	"caixa/internal/amqp"
	"caixa/internal/core"
	"caixa/internal/log"
)

// VotingService runs the proposal lifecycle: creation gates, one-vote-per-
// member ballots, quorum resolution and discussion comments.
type VotingService struct {
	store   ProposalStore
	finance *FinanceService
	audit   *AuditService
	events  EventPublisher
	modules SnapshotSource
	logger  *log.Logger
}

func NewVotingService(store ProposalStore, finance *FinanceService, audit *AuditService, events EventPublisher, modules SnapshotSource, logger *log.Logger) *VotingService {
	return &VotingService{
		store:   store,
		finance: finance,
		audit:   audit,
		events:  events,
		modules: modules,
		logger:  logger.WithComponent("voting"),
	}
}

// ProposalDetail bundles a proposal with its ballots and discussion.
type ProposalDetail struct {
	Proposal core.Proposal
	Votes    []core.Vote
	Comments []core.Comment
	HasVoted bool
}

// CreateProposal opens a new proposal after checking the author's role and,
// when configured, their cumulative donations. Admins bypass the donation
// gate but not a stricter role requirement they already satisfy.
func (s *VotingService) CreateProposal(ctx context.Context, title, description string, author core.User) (core.Proposal, error) {
	snapshot := s.modules.Current()

	p := core.Proposal{
		Title:        title,
		Description:  description,
		AuthorHandle: author.Handle,
	}
	if err := p.ValidateNew(); err != nil {
		return core.Proposal{}, err
	}

	if snapshot.CreateProposalRole() == core.RoleAdmin && author.Role != core.RoleAdmin {
		return core.Proposal{}, fmt.Errorf("only admins may open proposals: %w", core.ErrForbidden)
	}
	if author.Role != core.RoleAdmin {
		if required, ok := snapshot.ProposalGate(); ok {
			if err := s.checkDonationGate(ctx, author, required, "open a proposal"); err != nil {
				return core.Proposal{}, err
			}
		}
	}

	p.Status = core.ProposalActive
	p.Result = core.ResultNone
	p.EndsAt = time.Now().UTC().AddDate(0, 0, snapshot.VotingDurationDays())

	created, err := s.store.CreateProposal(ctx, p)
	if err != nil {
		return core.Proposal{}, fmt.Errorf("create proposal: %w", err)
	}

	s.publishProposal(ctx, created)
	return created, nil
}

// CastVote records one ballot. Duplicates, closed proposals and expired
// voting windows surface as sentinel errors from the store.
func (s *VotingService) CastVote(ctx context.Context, proposalID int64, voter core.User, choice core.VoteChoice) error {
	if !choice.Valid() {
		return fmt.Errorf("choice %q: %w", choice, core.ErrInvalidChoice)
	}

	if required, ok := s.modules.Current().VoteGate(); ok {
		if err := s.checkDonationGate(ctx, voter, required, "vote"); err != nil {
			return err
		}
	}

	return s.store.CastVote(ctx, core.Vote{
		ProposalID: proposalID,
		UserHandle: voter.Handle,
		Choice:     choice,
		VotedAt:    time.Now().UTC(),
	})
}

// CloseProposal finalizes an active proposal with the current quorum rule
// and records the decision in the audit log.
func (s *VotingService) CloseProposal(ctx context.Context, proposalID int64, actorHandle string) (core.Proposal, error) {
	minVotes := s.modules.Current().QuorumMinVotes()

	closed, err := s.store.CloseProposal(ctx, proposalID, minVotes)
	if err != nil {
		return core.Proposal{}, err
	}

	s.logger.InfoContext(ctx, "proposal closed",
		"proposal_id", closed.ID,
		"result", closed.Result,
		"yes", closed.YesCount,
		"no", closed.NoCount,
		"abstain", closed.AbstainCount)

	s.audit.Record(ctx, core.ActionCloseProposal, actorHandle, closed.Title, map[string]any{
		"proposal_id": closed.ID,
		"result":      string(closed.Result),
		"yes":         closed.YesCount,
		"no":          closed.NoCount,
		"abstain":     closed.AbstainCount,
		"min_votes":   minVotes,
	})
	return closed, nil
}

func (s *VotingService) ActiveProposals(ctx context.Context) ([]core.Proposal, error) {
	return s.store.ActiveProposals(ctx)
}

func (s *VotingService) AllProposals(ctx context.Context, limit int) ([]core.Proposal, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.AllProposals(ctx, limit)
}

// ProposalDetail loads a proposal with its votes and comments. viewerHandle
// may be empty for unauthenticated reads.
func (s *VotingService) ProposalDetail(ctx context.Context, proposalID int64, viewerHandle string) (ProposalDetail, error) {
	p, err := s.store.ProposalByID(ctx, proposalID)
	if err != nil {
		return ProposalDetail{}, err
	}
	votes, err := s.store.VotesForProposal(ctx, proposalID)
	if err != nil {
		return ProposalDetail{}, fmt.Errorf("load votes for proposal %d: %w", proposalID, err)
	}
	comments, err := s.store.CommentsForProposal(ctx, proposalID)
	if err != nil {
		return ProposalDetail{}, fmt.Errorf("load comments for proposal %d: %w", proposalID, err)
	}

	detail := ProposalDetail{Proposal: p, Votes: votes, Comments: comments}
	if viewerHandle != "" {
		voted, err := s.store.HasVoted(ctx, proposalID, viewerHandle)
		if err != nil {
			return ProposalDetail{}, fmt.Errorf("check ballot of %s: %w", viewerHandle, err)
		}
		detail.HasVoted = voted
	}
	return detail, nil
}

// AddComment attaches a discussion comment. Commenting shares the voting
// donation gate; reading never requires one.
func (s *VotingService) AddComment(ctx context.Context, proposalID int64, author core.User, content string) (core.Comment, error) {
	if content == "" {
		return core.Comment{}, core.ErrEmptyDescription
	}
	if required, ok := s.modules.Current().VoteGate(); ok {
		if err := s.checkDonationGate(ctx, author, required, "comment"); err != nil {
			return core.Comment{}, err
		}
	}
	return s.store.AddComment(ctx, core.Comment{
		ProposalID:   proposalID,
		AuthorHandle: author.Handle,
		Content:      content,
		CreatedAt:    time.Now().UTC(),
	})
}

// checkDonationGate reads the member's cumulative donations fresh from the
// ledger and compares against the configured threshold.
func (s *VotingService) checkDonationGate(ctx context.Context, u core.User, required core.Money, action string) error {
	donated, err := s.finance.TotalDonated(ctx, u.ID)
	if err != nil {
		return err
	}
	if donated.LessThan(required) {
		return fmt.Errorf("donate at least %s to %s (donated so far: %s): %w",
			required, action, donated, core.ErrForbidden)
	}
	return nil
}

func (s *VotingService) publishProposal(ctx context.Context, p core.Proposal) {
	if s.events == nil {
		return
	}
	msg := amqp.NewProposalEvent(p.ID, p.Title, p.AuthorHandle)
	if err := s.events.PublishEvent(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "failed to publish proposal event", "error", err)
	}
}
