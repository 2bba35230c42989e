package http

import (
	"crypto/subtle"
	"io"
	"net/http"

	"caixa/internal/core"
)

const cronSecretHeader = "X-Cron-Secret"

// handleRunPayments triggers one scheduler run. The caller is a cron job,
// not a member, so the guard is a shared secret rather than an identity.
func (s *Server) handleRunPayments(w http.ResponseWriter, r *http.Request) {
	if !s.cronAuthorized(r) {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "invalid cron secret"})
		return
	}

	report, err := s.scheduler.RunAutoPayments(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleCronStatus(w http.ResponseWriter, r *http.Request) {
	if !s.cronAuthorized(r) {
		if _, err := s.requireAdmin(r); err != nil {
			writeError(w, err)
			return
		}
	}
	status, err := s.scheduler.Status(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) cronAuthorized(r *http.Request) bool {
	if s.cronSecret == "" {
		return false
	}
	given := r.Header.Get(cronSecretHeader)
	return subtle.ConstantTimeCompare([]byte(given), []byte(s.cronSecret)) == 1
}

func (s *Server) handlePublicAudit(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePage(r, 20)
	entries, total, err := s.audit.ListPublic(r.Context(), page, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageView[auditEntryView]{
		Items: toAuditViews(entries),
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

func (s *Server) handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireAdmin(r); err != nil {
		writeError(w, err)
		return
	}

	page, limit := parsePage(r, 20)
	entries, total, err := s.audit.ListAll(r.Context(), page, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageView[auditEntryView]{
		Items: toAuditViews(entries),
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// handleUpdateModules swaps in a new configuration snapshot. The body is the
// full modules.json document; a snapshot that fails validation leaves the
// previous one untouched.
func (s *Server) handleUpdateModules(w http.ResponseWriter, r *http.Request) {
	admin, err := s.requireAdmin(r)
	if err != nil {
		writeError(w, err)
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeBadRequest(w, "could not read request body")
		return
	}

	updated, err := s.modules.Swap(raw)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	s.audit.Record(r.Context(), core.ActionChangeSettings, admin.Handle, "modules", map[string]any{
		"organization": updated.Organization.Name,
		"version":      updated.Version,
	})
	writeJSON(w, http.StatusOK, updated)
}

type banRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleBanUser(w http.ResponseWriter, r *http.Request) {
	admin, err := s.requireAdmin(r)
	if err != nil {
		writeError(w, err)
		return
	}
	handle := r.PathValue("handle")

	var req banRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeBadRequest(w, "invalid request body: "+err.Error())
			return
		}
	}

	if err := s.identity.Ban(r.Context(), handle, sanitizeInput(req.Reason), admin.Handle); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "banned"})
}

func (s *Server) handleUnbanUser(w http.ResponseWriter, r *http.Request) {
	admin, err := s.requireAdmin(r)
	if err != nil {
		writeError(w, err)
		return
	}
	handle := r.PathValue("handle")

	if err := s.identity.Unban(r.Context(), handle, admin.Handle); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unbanned"})
}
