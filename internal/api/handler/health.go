package handler

import (
	"net/http"

	"github.com/mcoot/guessnumber-go/internal/api/response"
	"github.com/mcoot/guessnumber-go/internal/relay"
)

// HealthHandler reports relay liveness and load
type HealthHandler struct {
	hub *relay.Hub
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(hub *relay.Hub) *HealthHandler {
	return &HealthHandler{hub: hub}
}

// Get handles GET /api/v1/health
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.HealthFromStats(h.hub.Stats()))
}
