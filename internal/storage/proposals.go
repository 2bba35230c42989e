package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"caixa/internal/core"
)

const proposalColumns = `id, title, description, author_handle, status, result,
	yes_count, no_count, abstain_count, ends_at, closed_at, created_at`

func (r *SQLiteRepository) CreateProposal(ctx context.Context, p core.Proposal) (core.Proposal, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Status == "" {
		p.Status = core.ProposalActive
	}
	if p.Result == "" {
		p.Result = core.ResultNone
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO proposals (title, description, author_handle, status, result, ends_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Title, p.Description, p.AuthorHandle, string(p.Status), string(p.Result), p.EndsAt, p.CreatedAt)
	if err != nil {
		return core.Proposal{}, fmt.Errorf("insert proposal: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Proposal{}, fmt.Errorf("proposal insert id: %w", err)
	}
	p.ID = id

	slog.InfoContext(ctx, "Proposal created",
		"id", p.ID,
		"title", p.Title,
		"author", p.AuthorHandle,
		"ends_at", p.EndsAt)

	return p, nil
}

// CastVote persists a vote and bumps the matching denormalized counter as a
// single transaction. The (proposal_id, user_handle) primary key, not an
// application-level read, enforces one vote per user: two concurrent casts
// from the same user cannot both insert.
func (r *SQLiteRepository) CastVote(ctx context.Context, vote core.Vote) error {
	if vote.VotedAt.IsZero() {
		vote.VotedAt = time.Now().UTC()
	}

	countField := ""
	switch vote.Choice {
	case core.VoteYes:
		countField = "yes_count"
	case core.VoteNo:
		countField = "no_count"
	case core.VoteAbstain:
		countField = "abstain_count"
	default:
		return core.ErrInvalidChoice
	}

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var status string
		var endsAt time.Time
		err := tx.QueryRowContext(ctx,
			`SELECT status, ends_at FROM proposals WHERE id = ?`, vote.ProposalID).
			Scan(&status, &endsAt)
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load proposal %d: %w", vote.ProposalID, err)
		}
		if core.ProposalStatus(status) != core.ProposalActive || time.Now().UTC().After(endsAt) {
			return core.ErrVotingClosed
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO votes (proposal_id, user_handle, choice, voted_at)
			VALUES (?, ?, ?, ?)`,
			vote.ProposalID, vote.UserHandle, string(vote.Choice), vote.VotedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return core.ErrDuplicateVote
			}
			return fmt.Errorf("insert vote: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE proposals SET `+countField+` = `+countField+` + 1 WHERE id = ?`,
			vote.ProposalID)
		if err != nil {
			return fmt.Errorf("increment %s: %w", countField, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Vote recorded",
		"proposal_id", vote.ProposalID,
		"voter", vote.UserHandle,
		"choice", vote.Choice)

	return nil
}

// CloseProposal resolves and closes a proposal in one atomic read-modify-
// write. The guarded UPDATE (status = 'active') makes concurrent close
// attempts resolve to exactly one winner; losers get ErrAlreadyClosed and
// the persisted result is never recomputed.
func (r *SQLiteRepository) CloseProposal(ctx context.Context, id int64, minVotes int) (core.Proposal, error) {
	var closed core.Proposal
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT `+proposalColumns+` FROM proposals WHERE id = ?`, id)
		p, err := scanProposal(row)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return core.ErrNotFound
			}
			return fmt.Errorf("load proposal %d: %w", id, err)
		}
		if p.Status == core.ProposalClosed {
			return core.ErrAlreadyClosed
		}

		result := p.Resolve(minVotes)
		now := time.Now().UTC()

		res, err := tx.ExecContext(ctx, `
			UPDATE proposals SET status = ?, result = ?, closed_at = ?
			WHERE id = ? AND status = ?`,
			string(core.ProposalClosed), string(result), now, id, string(core.ProposalActive))
		if err != nil {
			return fmt.Errorf("close proposal %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("close rows affected: %w", err)
		}
		if n == 0 {
			return core.ErrAlreadyClosed
		}

		p.Status = core.ProposalClosed
		p.Result = result
		p.ClosedAt = &now
		closed = p
		return nil
	})
	if err != nil {
		return core.Proposal{}, err
	}

	slog.InfoContext(ctx, "Proposal closed",
		"id", closed.ID,
		"result", closed.Result,
		"yes", closed.YesCount,
		"no", closed.NoCount)

	return closed, nil
}

// ActiveProposals returns open proposals whose voting window has not ended,
// newest first.
func (r *SQLiteRepository) ActiveProposals(ctx context.Context) ([]core.Proposal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+proposalColumns+`
		FROM proposals
		WHERE status = ? AND ends_at > ?
		ORDER BY created_at DESC, id DESC`,
		string(core.ProposalActive), time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("list active proposals: %w", err)
	}
	defer rows.Close()
	return collectProposals(rows)
}

func (r *SQLiteRepository) AllProposals(ctx context.Context, limit int) ([]core.Proposal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+proposalColumns+`
		FROM proposals
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()
	return collectProposals(rows)
}

func (r *SQLiteRepository) ProposalByID(ctx context.Context, id int64) (core.Proposal, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+proposalColumns+` FROM proposals WHERE id = ?`, id)
	p, err := scanProposal(row)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Proposal{}, core.ErrNotFound
		}
		return core.Proposal{}, fmt.Errorf("load proposal %d: %w", id, err)
	}
	return p, nil
}

func (r *SQLiteRepository) VotesForProposal(ctx context.Context, proposalID int64) ([]core.Vote, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT proposal_id, user_handle, choice, voted_at
		FROM votes
		WHERE proposal_id = ?
		ORDER BY voted_at ASC`, proposalID)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	defer rows.Close()

	var votes []core.Vote
	for rows.Next() {
		var v core.Vote
		var choice string
		if err := rows.Scan(&v.ProposalID, &v.UserHandle, &choice, &v.VotedAt); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		v.Choice = core.VoteChoice(choice)
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate votes: %w", err)
	}
	return votes, nil
}

func (r *SQLiteRepository) HasVoted(ctx context.Context, proposalID int64, userHandle string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM votes WHERE proposal_id = ? AND user_handle = ?`,
		proposalID, userHandle).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check vote: %w", err)
	}
	return true, nil
}

func (r *SQLiteRepository) AddComment(ctx context.Context, c core.Comment) (core.Comment, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	var exists int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM proposals WHERE id = ?`, c.ProposalID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Comment{}, core.ErrNotFound
	}
	if err != nil {
		return core.Comment{}, fmt.Errorf("check proposal %d: %w", c.ProposalID, err)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO comments (proposal_id, author_handle, content, created_at)
		VALUES (?, ?, ?, ?)`,
		c.ProposalID, c.AuthorHandle, c.Content, c.CreatedAt)
	if err != nil {
		return core.Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Comment{}, fmt.Errorf("comment insert id: %w", err)
	}
	c.ID = id
	return c, nil
}

func (r *SQLiteRepository) CommentsForProposal(ctx context.Context, proposalID int64) ([]core.Comment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, proposal_id, author_handle, content, created_at
		FROM comments
		WHERE proposal_id = ?
		ORDER BY created_at DESC, id DESC`, proposalID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var comments []core.Comment
	for rows.Next() {
		var c core.Comment
		if err := rows.Scan(&c.ID, &c.ProposalID, &c.AuthorHandle, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return comments, nil
}

func scanProposal(row rowScanner) (core.Proposal, error) {
	var (
		p              core.Proposal
		status, result string
		closedAt       sql.NullTime
	)
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.AuthorHandle, &status, &result,
		&p.YesCount, &p.NoCount, &p.AbstainCount, &p.EndsAt, &closedAt, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Proposal{}, core.ErrNotFound
		}
		return core.Proposal{}, err
	}
	p.Status = core.ProposalStatus(status)
	p.Result = core.ProposalResult(result)
	if closedAt.Valid {
		p.ClosedAt = &closedAt.Time
	}
	return p, nil
}

func collectProposals(rows *sql.Rows) ([]core.Proposal, error) {
	var list []core.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proposals: %w", err)
	}
	return list, nil
}
