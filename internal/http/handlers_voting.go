package http

import (
	"net/http"

	"caixa/internal/core"
)

func (s *Server) handleListProposals(w http.ResponseWriter, r *http.Request) {
	var (
		list []core.Proposal
		err  error
	)
	if r.URL.Query().Get("status") == "active" {
		list, err = s.voting.ActiveProposals(r.Context())
	} else {
		_, limit := parsePage(r, 50)
		list, err = s.voting.AllProposals(r.Context(), limit)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProposalViews(list))
}

type proposalRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (s *Server) handleCreateProposal(w http.ResponseWriter, r *http.Request) {
	author, err := s.requireMember(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req proposalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	p, err := s.voting.CreateProposal(r.Context(), sanitizeInput(req.Title), sanitizeInput(req.Description), author)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProposalView(p))
}

func (s *Server) handleProposalDetail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	viewer := ""
	if u, err := s.resolveUser(r); err == nil && u != nil {
		viewer = u.Handle
	}

	detail, err := s.voting.ProposalDetail(r.Context(), id, viewer)
	if err != nil {
		writeError(w, err)
		return
	}

	view := proposalDetailView{
		Proposal: toProposalView(detail.Proposal),
		Votes:    make([]voteView, 0, len(detail.Votes)),
		Comments: make([]commentView, 0, len(detail.Comments)),
		HasVoted: detail.HasVoted,
	}
	for _, v := range detail.Votes {
		view.Votes = append(view.Votes, voteView{
			UserHandle: v.UserHandle,
			Choice:     string(v.Choice),
			VotedAt:    v.VotedAt,
		})
	}
	for _, c := range detail.Comments {
		view.Comments = append(view.Comments, commentView{
			ID:           c.ID,
			AuthorHandle: c.AuthorHandle,
			Content:      c.Content,
			CreatedAt:    c.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, view)
}

type voteRequest struct {
	Choice string `json:"choice"`
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	voter, err := s.requireMember(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req voteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	if err := s.voting.CastVote(r.Context(), id, voter, core.VoteChoice(req.Choice)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

type commentRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	author, err := s.requireMember(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	c, err := s.voting.AddComment(r.Context(), id, author, sanitizeInput(req.Content))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, commentView{
		ID:           c.ID,
		AuthorHandle: c.AuthorHandle,
		Content:      c.Content,
		CreatedAt:    c.CreatedAt,
	})
}

func (s *Server) handleCloseProposal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	admin, err := s.requireAdmin(r)
	if err != nil {
		writeError(w, err)
		return
	}

	closed, err := s.voting.CloseProposal(r.Context(), id, admin.Handle)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProposalView(closed))
}
