package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mcoot/fairmatch/internal/api/middleware"
	"github.com/mcoot/fairmatch/internal/api/request"
	"github.com/mcoot/fairmatch/internal/api/response"
	"github.com/mcoot/fairmatch/internal/model"
	"github.com/mcoot/fairmatch/internal/services/matchmaking"
)

// QueueHandler handles queue endpoints
type QueueHandler struct {
	matchmaking *matchmaking.Service
}

// NewQueueHandler creates a new queue handler
func NewQueueHandler(matchmaking *matchmaking.Service) *QueueHandler {
	return &QueueHandler{matchmaking: matchmaking}
}

// Join handles POST /api/v1/queue
func (h *QueueHandler) Join(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.MustGetPlayerID(r.Context())

	var req request.EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if len(req.Rating) == 0 {
		WriteError(w, NewInvalidRequestError("rating is required"))
		return
	}

	entry, err := h.matchmaking.Enqueue(r.Context(), playerID, model.EncryptedRating(req.Rating))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.Created(w, response.QueueEntryFromModel(entry))
}

// Leave handles DELETE /api/v1/queue. Leaving while proposed declines the
// proposal.
func (h *QueueHandler) Leave(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.MustGetPlayerID(r.Context())

	if err := h.matchmaking.Leave(r.Context(), playerID); err != nil {
		WriteError(w, err)
		return
	}

	status, err := h.matchmaking.Status(r.Context(), playerID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.OK(w, response.LeaveResponse{State: string(status.State)})
}

// Size handles GET /api/v1/queue
func (h *QueueHandler) Size(w http.ResponseWriter, r *http.Request) {
	size, err := h.matchmaking.QueueSize(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	response.OK(w, response.QueueSize{Size: size})
}
