package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/fairmatch/internal/api/middleware"
	"github.com/mcoot/fairmatch/internal/api/response"
	"github.com/mcoot/fairmatch/internal/model"
	"github.com/mcoot/fairmatch/internal/services/matchmaking"
)

// MatchHandler handles match endpoints
type MatchHandler struct {
	matchmaking *matchmaking.Service
}

// NewMatchHandler creates a new match handler
func NewMatchHandler(matchmaking *matchmaking.Service) *MatchHandler {
	return &MatchHandler{matchmaking: matchmaking}
}

// Get handles GET /api/v1/matches/{id}. Match records are not secret; any
// authenticated caller may read one.
func (h *MatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	matchID := model.MatchID(mux.Vars(r)["id"])

	m, err := h.matchmaking.GetMatch(r.Context(), matchID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.OK(w, response.MatchFromModel(m))
}

// Complete handles POST /api/v1/matches/{id}/complete
func (h *MatchHandler) Complete(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.MustGetPlayerID(r.Context())
	matchID := model.MatchID(mux.Vars(r)["id"])

	m, err := h.matchmaking.CompleteMatch(r.Context(), matchID, playerID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.OK(w, response.MatchFromModel(m))
}
