package services

import (
	"context"
	"testing"

	"caixa/internal/core"
)

func newAuditFixture(t *testing.T, modulesJSON string) (*AuditService, *fakeAudit) {
	t.Helper()
	store := &fakeAudit{}
	return NewAuditService(store, testModules(t, modulesJSON), testLogger()), store
}

func TestAuditRecordRespectsAllowList(t *testing.T) {
	const filtered = `{
		"version": "1.0",
		"organization": {"name": "Casa da Esquina", "currency": "BRL"},
		"modules": {
			"audit_log": {
				"enabled": true,
				"settings": {"public": true, "actions_to_log": ["CRON_PAYMENT", "CLOSE_PROPOSAL"]}
			}
		}
	}`
	audit, store := newAuditFixture(t, filtered)
	ctx := context.Background()

	audit.Record(ctx, core.ActionCronPayment, "system", "hosting", nil)
	audit.Record(ctx, core.ActionCreateExpense, "@admin_0a0a0a", "rent", nil)
	audit.Record(ctx, core.ActionCloseProposal, "@admin_0a0a0a", "projector", nil)

	got := store.actions()
	want := []string{core.ActionCronPayment, core.ActionCloseProposal}
	if len(got) != len(want) {
		t.Fatalf("recorded actions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("action %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAuditRecordEmptyAllowListLogsEverything(t *testing.T) {
	audit, store := newAuditFixture(t, baseModulesJSON)
	ctx := context.Background()

	audit.Record(ctx, core.ActionCronPayment, "system", "", nil)
	audit.Record(ctx, core.ActionBanUser, "@admin_0a0a0a", "@troll_ffffff", map[string]any{"reason": "spam"})

	if len(store.entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(store.entries))
	}
	if !store.entries[0].Public {
		t.Error("entry not stamped with the configured public default")
	}
	if store.entries[1].Details["reason"] != "spam" {
		t.Errorf("details = %v", store.entries[1].Details)
	}
}

func TestAuditRecordDisabledModule(t *testing.T) {
	const disabled = `{
		"version": "1.0",
		"organization": {"name": "Casa da Esquina", "currency": "BRL"},
		"modules": {"audit_log": {"enabled": false}}
	}`
	audit, store := newAuditFixture(t, disabled)

	audit.Record(context.Background(), core.ActionCronPayment, "system", "", nil)
	if len(store.entries) != 0 {
		t.Errorf("disabled module recorded %d entries", len(store.entries))
	}

	entries, total, err := audit.ListPublic(context.Background(), 1, 20)
	if err != nil {
		t.Fatalf("ListPublic: %v", err)
	}
	if len(entries) != 0 || total != 0 {
		t.Error("disabled module exposed a public log")
	}
}

func TestAuditListPublicHidesPrivateLog(t *testing.T) {
	const private = `{
		"version": "1.0",
		"organization": {"name": "Casa da Esquina", "currency": "BRL"},
		"modules": {
			"audit_log": {"enabled": true, "settings": {"public": false}}
		}
	}`
	audit, store := newAuditFixture(t, private)
	ctx := context.Background()

	audit.Record(ctx, core.ActionCronPayment, "system", "hosting", nil)
	if len(store.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(store.entries))
	}
	if store.entries[0].Public {
		t.Error("entry stamped public under a private default")
	}

	entries, _, err := audit.ListPublic(ctx, 1, 20)
	if err != nil {
		t.Fatalf("ListPublic: %v", err)
	}
	if len(entries) != 0 {
		t.Error("private entries leaked through the public view")
	}

	all, total, err := audit.ListAll(ctx, 1, 20)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 1 || total != 1 {
		t.Errorf("admin view = %d entries (total %d), want 1", len(all), total)
	}
}
