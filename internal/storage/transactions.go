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

const transactionColumns = `id, type, amount_cents, currency, donor_id, donor_handle,
	description, category, recipient, message, external_ref, automatic, status, created_at`

// CreateTransaction appends one row to the ledger and returns it with its
// assigned id. Rows are never updated afterwards except by SettleTransaction.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = core.StatusCompleted
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions
			(type, amount_cents, currency, donor_id, donor_handle, description,
			 category, recipient, message, external_ref, automatic, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(t.Type), t.Amount.Cents, t.Currency, nullInt(t.DonorID), nullStr(t.DonorHandle),
		t.Description, t.Category, nullStr(t.Recipient), nullStr(t.Message),
		nullStr(t.ExternalRef), t.Automatic, string(t.Status), t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// external_ref is the idempotency key for gateway transactions.
			return core.Transaction{}, fmt.Errorf("transaction with external ref %q already recorded: %w", t.ExternalRef, err)
		}
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction insert id: %w", err)
	}
	t.ID = id

	slog.InfoContext(ctx, "Transaction recorded",
		"id", t.ID,
		"type", t.Type,
		"amount_cents", t.Amount.Cents,
		"automatic", t.Automatic,
		"status", t.Status)

	return t, nil
}

// SettleTransaction flips a pending row to completed, keyed by the external
// settlement reference. Returns the settled transaction.
func (r *SQLiteRepository) SettleTransaction(ctx context.Context, externalRef string) (core.Transaction, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET status = ? WHERE external_ref = ? AND status = ?`,
		string(core.StatusCompleted), externalRef, string(core.StatusPending))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("settle transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("settle rows affected: %w", err)
	}
	if n == 0 {
		return core.Transaction{}, fmt.Errorf("no pending transaction for ref %q: %w", externalRef, core.ErrNotFound)
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE external_ref = ?`, externalRef)
	t, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("reload settled transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction settled", "id", t.ID, "external_ref", externalRef)
	return t, nil
}

// Summary scans the ledger for per-type sums and counts over completed rows.
// It runs a fresh aggregate on every call; the scheduler's balance gating
// depends on never seeing a cached value here.
func (r *SQLiteRepository) Summary(ctx context.Context) (core.Summary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT type, COALESCE(SUM(amount_cents), 0), COUNT(*)
		FROM transactions
		WHERE status = ?
		GROUP BY type`, string(core.StatusCompleted))
	if err != nil {
		return core.Summary{}, fmt.Errorf("aggregate ledger: %w", err)
	}
	defer rows.Close()

	var s core.Summary
	for rows.Next() {
		var typ string
		var sum int64
		var count int
		if err := rows.Scan(&typ, &sum, &count); err != nil {
			return core.Summary{}, fmt.Errorf("scan ledger aggregate: %w", err)
		}
		switch core.TransactionType(typ) {
		case core.TypeIn:
			s.TotalIn = core.Money{Cents: sum}
			s.DonationCount = count
		case core.TypeOut:
			s.TotalOut = core.Money{Cents: sum}
			s.ExpenseCount = count
		}
	}
	if err := rows.Err(); err != nil {
		return core.Summary{}, fmt.Errorf("iterate ledger aggregate: %w", err)
	}

	s.Balance = s.TotalIn.Sub(s.TotalOut)
	return s, nil
}

// RecentTransactions returns the newest rows first.
func (r *SQLiteRepository) RecentTransactions(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ListTransactions returns one page of the ledger, newest first, optionally
// filtered by type, along with the total row count for that filter.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, page, limit int, typ core.TransactionType) ([]core.Transaction, int, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	where := ""
	args := []any{}
	if typ != "" {
		where = "WHERE type = ?"
		args = append(args, string(typ))
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions `+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	list, err := collectTransactions(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// TotalDonatedCents sums a donor's completed IN transactions. The voting and
// proposal-creation money gates read this fresh on every check.
func (r *SQLiteRepository) TotalDonatedCents(ctx context.Context, donorID int64) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM transactions
		WHERE donor_id = ? AND type = ? AND status = ?`,
		donorID, string(core.TypeIn), string(core.StatusCompleted)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum donations for donor %d: %w", donorID, err)
	}
	return total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t           core.Transaction
		typ, status string
		donorID     sql.NullInt64
		donorHandle sql.NullString
		recipient   sql.NullString
		message     sql.NullString
		externalRef sql.NullString
	)
	err := row.Scan(&t.ID, &typ, &t.Amount.Cents, &t.Currency, &donorID, &donorHandle,
		&t.Description, &t.Category, &recipient, &message, &externalRef, &t.Automatic,
		&status, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, core.ErrNotFound
		}
		return core.Transaction{}, err
	}
	t.Type = core.TransactionType(typ)
	t.Status = core.TransactionStatus(status)
	if donorID.Valid {
		t.DonorID = &donorID.Int64
	}
	t.DonorHandle = donorHandle.String
	t.Recipient = recipient.String
	t.Message = message.String
	t.ExternalRef = externalRef.String
	return t, nil
}

func collectTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	var list []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		list = append(list, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return list, nil
}
