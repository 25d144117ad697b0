package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/fairmatch/internal/api/middleware"
	"github.com/mcoot/fairmatch/internal/api/response"
	"github.com/mcoot/fairmatch/internal/model"
	"github.com/mcoot/fairmatch/internal/services/matchmaking"
)

// ProposalHandler handles proposal endpoints
type ProposalHandler struct {
	matchmaking *matchmaking.Service
}

// NewProposalHandler creates a new proposal handler
func NewProposalHandler(matchmaking *matchmaking.Service) *ProposalHandler {
	return &ProposalHandler{matchmaking: matchmaking}
}

// Get handles GET /api/v1/proposals/{id}
func (h *ProposalHandler) Get(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.MustGetPlayerID(r.Context())
	proposalID := model.ProposalID(mux.Vars(r)["id"])

	p, err := h.matchmaking.GetProposal(r.Context(), proposalID, playerID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.OK(w, response.ProposalFromModel(p))
}

// Accept handles POST /api/v1/proposals/{id}/accept
func (h *ProposalHandler) Accept(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.MustGetPlayerID(r.Context())
	proposalID := model.ProposalID(mux.Vars(r)["id"])

	p, err := h.matchmaking.Accept(r.Context(), proposalID, playerID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.OK(w, response.ProposalFromModel(p))
}

// Decline handles POST /api/v1/proposals/{id}/decline
func (h *ProposalHandler) Decline(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.MustGetPlayerID(r.Context())
	proposalID := model.ProposalID(mux.Vars(r)["id"])

	p, err := h.matchmaking.Decline(r.Context(), proposalID, playerID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.OK(w, response.ProposalFromModel(p))
}
