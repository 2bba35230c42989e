package services

import (
	"context"
	"fmt"
	"time"

	"caixa/internal/core"
	"caixa/internal/log"
)

// AuditService appends privileged actions to the audit log, applying the
// configured action allow-list and visibility policy at write time.
type AuditService struct {
	store   AuditStore
	modules SnapshotSource
	logger  *log.Logger
}

func NewAuditService(store AuditStore, modules SnapshotSource, logger *log.Logger) *AuditService {
	return &AuditService{store: store, modules: modules, logger: logger.WithComponent("audit")}
}

// Record appends one entry for the given action. Entries for disabled
// modules or actions outside the allow-list are silently skipped, so callers
// never have to consult the configuration themselves.
func (s *AuditService) Record(ctx context.Context, action, actor, target string, details map[string]any) {
	snapshot := s.modules.Current()
	if !snapshot.AuditEnabled() {
		return
	}
	if !snapshot.AuditActionAllowed(action) {
		return
	}

	entry := core.AuditEntry{
		Action:      action,
		ActorHandle: actor,
		Target:      target,
		Details:     details,
		Public:      snapshot.AuditPublicDefault(),
		Timestamp:   time.Now().UTC(),
	}
	if _, err := s.store.AppendAuditEntry(ctx, entry); err != nil {
		// The audited operation already succeeded. Losing the trail entry is
		// logged but never propagated back to the caller.
		s.logger.ErrorContext(ctx, "failed to append audit entry", "action", action, "actor", actor, "error", err)
	}
}

// ListPublic returns the publicly visible slice of the log. When the audit
// module is disabled, or entries default to private, the public view is
// empty rather than an error.
func (s *AuditService) ListPublic(ctx context.Context, page, limit int) ([]core.AuditEntry, int, error) {
	snapshot := s.modules.Current()
	if !snapshot.AuditEnabled() || !snapshot.AuditPublicDefault() {
		return []core.AuditEntry{}, 0, nil
	}
	entries, total, err := s.store.ListAuditEntries(ctx, page, limit, true)
	if err != nil {
		return nil, 0, fmt.Errorf("list public audit entries: %w", err)
	}
	return entries, total, nil
}

// ListAll returns every entry regardless of visibility. Admin only.
func (s *AuditService) ListAll(ctx context.Context, page, limit int) ([]core.AuditEntry, int, error) {
	entries, total, err := s.store.ListAuditEntries(ctx, page, limit, false)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, total, nil
}
