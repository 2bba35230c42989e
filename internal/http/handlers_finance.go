package http

import (
	"net/http"

	"caixa/internal/core"
	"caixa/internal/services"
)

type donationRequest struct {
	Amount      core.Money `json:"amount"`
	Message     string     `json:"message,omitempty"`
	ExternalRef string     `json:"external_ref,omitempty"`
	Pending     bool       `json:"pending,omitempty"`
}

func (s *Server) handleCreateDonation(w http.ResponseWriter, r *http.Request) {
	var req donationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	// Anonymous donations are requests without a forwarded identity.
	donor, err := s.resolveUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if donor != nil && donor.Banned {
		donor = nil
	}

	tx, err := s.finance.RecordDonation(r.Context(), services.DonationInput{
		Amount:      req.Amount,
		Message:     sanitizeInput(req.Message),
		Donor:       donor,
		ExternalRef: sanitizeInput(req.ExternalRef),
		Pending:     req.Pending,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionView(tx))
}

type expenseRequest struct {
	Amount      core.Money `json:"amount"`
	Description string     `json:"description"`
	Category    string     `json:"category,omitempty"`
	Recipient   string     `json:"recipient,omitempty"`
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	admin, err := s.requireAdmin(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	tx, err := s.finance.RecordExpense(r.Context(), services.ExpenseInput{
		Amount:      req.Amount,
		Description: sanitizeInput(req.Description),
		Category:    sanitizeInput(req.Category),
		Recipient:   sanitizeInput(req.Recipient),
		Actor:       admin.Handle,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionView(tx))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.finance.Summary(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryView(summary))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePage(r, 20)
	typ := core.TransactionType(r.URL.Query().Get("type"))
	if typ != "" && typ != core.TypeIn && typ != core.TypeOut {
		writeBadRequest(w, "type must be IN or OUT")
		return
	}

	list, total, err := s.finance.ListTransactions(r.Context(), page, limit, typ)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageView[transactionView]{
		Items: toTransactionViews(list),
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

type settlementRequest struct {
	ExternalRef string `json:"external_ref"`
}

// handleSettlement is the payment provider's confirmation callback. It only
// flips an already-recorded pending donation, so replays are harmless.
func (s *Server) handleSettlement(w http.ResponseWriter, r *http.Request) {
	var req settlementRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.ExternalRef == "" {
		writeBadRequest(w, "external_ref is required")
		return
	}

	tx, err := s.finance.Settle(r.Context(), req.ExternalRef)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionView(tx))
}
