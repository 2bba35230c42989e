package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"caixa/internal/core"
)

// AppendAuditEntry persists one audit row. Policy filtering (enabled flag,
// allow-list, public default) happens in the audit service before this is
// called; once a row lands here it is never mutated or deleted.
func (r *SQLiteRepository) AppendAuditEntry(ctx context.Context, e core.AuditEntry) (core.AuditEntry, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	var details sql.NullString
	if len(e.Details) > 0 {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			return core.AuditEntry{}, fmt.Errorf("marshal audit details: %w", err)
		}
		details = sql.NullString{String: string(raw), Valid: true}
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (action, actor_handle, target, details, public, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.Action, e.ActorHandle, nullStr(e.Target), details, e.Public, e.Timestamp)
	if err != nil {
		return core.AuditEntry{}, fmt.Errorf("insert audit entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.AuditEntry{}, fmt.Errorf("audit insert id: %w", err)
	}
	e.ID = id

	slog.InfoContext(ctx, "Audit entry recorded",
		"id", e.ID,
		"action", e.Action,
		"actor", e.ActorHandle,
		"target", e.Target,
		"public", e.Public)

	return e, nil
}

// ListAuditEntries returns one page of audit rows, newest first. When
// publicOnly is set, private rows are excluded.
func (r *SQLiteRepository) ListAuditEntries(ctx context.Context, page, limit int, publicOnly bool) ([]core.AuditEntry, int, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	where := ""
	args := []any{}
	if publicOnly {
		where = "WHERE public = 1"
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_log `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, action, actor_handle, target, details, public, timestamp
		FROM audit_log `+where+`
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []core.AuditEntry
	for rows.Next() {
		var (
			e       core.AuditEntry
			target  sql.NullString
			details sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Action, &e.ActorHandle, &target, &details, &e.Public, &e.Timestamp); err != nil {
			return nil, 0, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Target = target.String
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &e.Details); err != nil {
				return nil, 0, fmt.Errorf("unmarshal audit details for entry %d: %w", e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate audit entries: %w", err)
	}

	return entries, total, nil
}
