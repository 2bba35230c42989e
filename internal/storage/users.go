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

const userColumns = `id, email, handle, role, banned, created_at`

func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (r *SQLiteRepository) UserByHandle(ctx context.Context, handle string) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE handle = ?`, handle)
	return scanUser(row)
}

// CreateUser inserts a new identity. A unique-constraint failure on the
// handle surfaces as ErrDuplicateHandle so the caller can regenerate and
// retry.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO users (email, handle, role, banned, created_at)
		VALUES (?, ?, ?, 0, ?)`,
		u.Email, u.Handle, u.Role, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, core.ErrDuplicateHandle
		}
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.User{}, fmt.Errorf("user insert id: %w", err)
	}
	u.ID = id

	slog.InfoContext(ctx, "User created", "handle", u.Handle, "role", u.Role)
	return u, nil
}

func (r *SQLiteRepository) PromoteUser(ctx context.Context, id int64, role string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE users SET role = ? WHERE id = ?`, role, id); err != nil {
		return fmt.Errorf("update user role: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) BanUser(ctx context.Context, handle, reason string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET banned = 1, banned_at = ?, banned_reason = ?
		WHERE handle = ?`, time.Now().UTC(), nullStr(reason), handle)
	if err != nil {
		return fmt.Errorf("ban user: %w", err)
	}
	return requireRow(res, handle)
}

func (r *SQLiteRepository) UnbanUser(ctx context.Context, handle string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET banned = 0, banned_at = NULL, banned_reason = NULL
		WHERE handle = ?`, handle)
	if err != nil {
		return fmt.Errorf("unban user: %w", err)
	}
	return requireRow(res, handle)
}

func requireRow(res sql.Result, handle string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %q: %w", handle, core.ErrNotFound)
	}
	return nil
}

func scanUser(row rowScanner) (core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.Email, &u.Handle, &u.Role, &u.Banned, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.User{}, core.ErrNotFound
		}
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}
