package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mcoot/guessnumber-go/internal/api/response"
	"github.com/mcoot/guessnumber-go/internal/relay"
	"github.com/mcoot/guessnumber-go/internal/transport/ws"
)

// AliveMessage is served on the relay endpoint to plain HTTP requests
const AliveMessage = "guessnumber relay alive\n"

// RelayHandler accepts websocket participants on the root path
type RelayHandler struct {
	hub    *relay.Hub
	logger *slog.Logger
}

// NewRelayHandler creates a new relay handler
func NewRelayHandler(hub *relay.Hub, logger *slog.Logger) *RelayHandler {
	return &RelayHandler{hub: hub, logger: logger}
}

// ServeHTTP handles GET /
// Upgrades websocket requests and answers anything else with a liveness line.
func (h *RelayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !ws.IsUpgrade(r) {
		response.Text(w, http.StatusOK, AliveMessage)
		return
	}

	ch, err := ws.Upgrade(w, r)
	if err != nil {
		// the upgrader has already written the failure response
		h.logger.Warn("websocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()))
		return
	}

	// the participant outlives this request
	h.hub.Register(context.WithoutCancel(r.Context()), ch)
}
