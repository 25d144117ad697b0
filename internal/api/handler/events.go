package handler

import (
	"net/http"
	"time"

	"github.com/mcoot/fairmatch/internal/api/middleware"
	"github.com/mcoot/fairmatch/internal/api/sse"
	"github.com/mcoot/fairmatch/internal/services/matchmaking"
)

// maxReplay bounds how many stored matches one reconnect replays
const maxReplay = 500

// EventsHandler streams matchmaking events over SSE
type EventsHandler struct {
	hubManager  *sse.HubManager
	matchmaking *matchmaking.Service
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(hubManager *sse.HubManager, matchmaking *matchmaking.Service) *EventsHandler {
	return &EventsHandler{hubManager: hubManager, matchmaking: matchmaking}
}

// Matches handles GET /api/v1/events: every committed match.
// A client resuming with Last-Event-ID, or asking for ?since=<RFC3339 time>,
// first receives the stored matches committed from then on.
func (h *EventsHandler) Matches(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.MustGetPlayerID(r.Context())

	since, resume, err := replayFrom(r)
	if err != nil {
		WriteError(w, NewInvalidRequestError("since must be an RFC3339 timestamp"))
		return
	}

	var backlog [][]byte
	if resume {
		matches, err := h.matchmaking.MatchesSince(r.Context(), since, maxReplay)
		if err != nil {
			WriteError(w, err)
			return
		}
		for _, m := range matches {
			msg, err := sse.MatchMessage(*m)
			if err != nil {
				WriteError(w, err)
				return
			}
			backlog = append(backlog, msg)
		}
	}

	hub := h.hubManager.GetOrCreateHub(sse.MatchesTopic)
	sse.ServeSSE(w, r, hub, string(playerID), backlog)
}

// Player handles GET /api/v1/players/me/events: everything concerning the
// authenticated player
func (h *EventsHandler) Player(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.MustGetPlayerID(r.Context())
	hub := h.hubManager.GetOrCreateHub(sse.PlayerTopic(string(playerID)))
	sse.ServeSSE(w, r, hub, string(playerID), nil)
}

// replayFrom reads the resume point of a matches stream. The query parameter
// wins over the header.
func replayFrom(r *http.Request) (time.Time, bool, error) {
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		return t, err == nil, err
	}
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		t, err := sse.ParseMatchEventID(v)
		return t, err == nil, err
	}
	return time.Time{}, false, nil
}
