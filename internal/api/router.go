package api

import (
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"

	"github.com/mcoot/guessnumber-go/internal/api/apierr"
	"github.com/mcoot/guessnumber-go/internal/api/handler"
	"github.com/mcoot/guessnumber-go/internal/api/middleware"
	"github.com/mcoot/guessnumber-go/internal/relay"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger    *slog.Logger
	Hub       *relay.Hub
	PublicURL string
}

// NewRouter creates a new router serving the relay endpoint and the
// JSON API
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	relayHandler := handler.NewRelayHandler(cfg.Hub, cfg.Logger)
	roomHandler := handler.NewRoomHandler(cfg.Hub, cfg.PublicURL)
	participantHandler := handler.NewParticipantHandler(cfg.Hub)
	healthHandler := handler.NewHealthHandler(cfg.Hub)

	// Create middleware
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// Every request gets an X-Request-ID that the logs carry. Recovery sits
	// inside logging so a recovered panic is logged as a 500.
	r.Use(chimw.RequestID)
	r.Use(loggingMiddleware)
	r.Use(recoveryMiddleware)

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", healthHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/rooms", roomHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{id}", roomHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{id}/qr", roomHandler.QR).Methods(http.MethodGet)
	api.HandleFunc("/participants/{id}", participantHandler.Get).Methods(http.MethodGet)

	// Relay endpoint: websocket upgrades, plain text for anything else
	r.Handle("/", relayHandler).Methods(http.MethodGet)

	r.NotFoundHandler = loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		apierr.WriteError(w, apierr.NewNotFoundError())
	}))

	return r
}
