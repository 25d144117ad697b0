package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/fairmatch/internal/api/handler"
	"github.com/mcoot/fairmatch/internal/api/middleware"
	"github.com/mcoot/fairmatch/internal/api/response"
	"github.com/mcoot/fairmatch/internal/api/sse"
	"github.com/mcoot/fairmatch/internal/metrics"
	"github.com/mcoot/fairmatch/internal/services/auth"
	"github.com/mcoot/fairmatch/internal/services/matchmaking"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger      *slog.Logger
	AuthService *auth.Service
	Matchmaking *matchmaking.Service
	HubManager  *sse.HubManager
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	playerHandler := handler.NewPlayerHandler(cfg.AuthService, cfg.Matchmaking)
	queueHandler := handler.NewQueueHandler(cfg.Matchmaking)
	proposalHandler := handler.NewProposalHandler(cfg.Matchmaking)
	matchHandler := handler.NewMatchHandler(cfg.Matchmaking)
	eventsHandler := handler.NewEventsHandler(cfg.HubManager, cfg.Matchmaking)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.AuthService)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(loggingMiddleware)
	api.Use(recoveryMiddleware)

	// Registration is the only unauthenticated write
	api.HandleFunc("/players", playerHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	protected := api.NewRoute().Subrouter()
	protected.Use(authMiddleware)

	protected.HandleFunc("/players/me", playerHandler.GetMe).Methods(http.MethodGet)
	protected.HandleFunc("/players/me/events", eventsHandler.Player).Methods(http.MethodGet)

	protected.HandleFunc("/queue", queueHandler.Join).Methods(http.MethodPost)
	protected.HandleFunc("/queue", queueHandler.Leave).Methods(http.MethodDelete)
	protected.HandleFunc("/queue", queueHandler.Size).Methods(http.MethodGet)

	protected.HandleFunc("/proposals/{id}", proposalHandler.Get).Methods(http.MethodGet)
	protected.HandleFunc("/proposals/{id}/accept", proposalHandler.Accept).Methods(http.MethodPost)
	protected.HandleFunc("/proposals/{id}/decline", proposalHandler.Decline).Methods(http.MethodPost)

	protected.HandleFunc("/matches/{id}", matchHandler.Get).Methods(http.MethodGet)
	protected.HandleFunc("/matches/{id}/complete", matchHandler.Complete).Methods(http.MethodPost)

	protected.HandleFunc("/events", eventsHandler.Matches).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{"status": "ok"})
}
