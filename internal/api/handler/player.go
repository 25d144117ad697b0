package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/mcoot/fairmatch/internal/api/middleware"
	"github.com/mcoot/fairmatch/internal/api/request"
	"github.com/mcoot/fairmatch/internal/api/response"
	"github.com/mcoot/fairmatch/internal/model"
	"github.com/mcoot/fairmatch/internal/services/auth"
	"github.com/mcoot/fairmatch/internal/services/matchmaking"
)

// PlayerHandler handles player-related endpoints
type PlayerHandler struct {
	authService *auth.Service
	matchmaking *matchmaking.Service
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(authService *auth.Service, matchmaking *matchmaking.Service) *PlayerHandler {
	return &PlayerHandler{
		authService: authService,
		matchmaking: matchmaking,
	}
}

// Register handles POST /api/v1/players
func (h *PlayerHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req request.RegisterRequest
	// An empty body is allowed and means "generate an id for me"
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	session, err := h.authService.Register(r.Context(), model.PlayerID(req.PlayerID))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.Created(w, response.AuthResponseFromSession(session))
}

// GetMe handles GET /api/v1/players/me
func (h *PlayerHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.MustGetPlayerID(r.Context())

	status, err := h.matchmaking.Status(r.Context(), playerID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.OK(w, response.StatusFromService(status))
}
