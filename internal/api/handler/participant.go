package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/guessnumber-go/internal/api/apierr"
	"github.com/mcoot/guessnumber-go/internal/api/response"
	"github.com/mcoot/guessnumber-go/internal/model"
	"github.com/mcoot/guessnumber-go/internal/relay"
)

// ParticipantHandler handles participant lookups
type ParticipantHandler struct {
	hub *relay.Hub
}

// NewParticipantHandler creates a new participant handler
func NewParticipantHandler(hub *relay.Hub) *ParticipantHandler {
	return &ParticipantHandler{hub: hub}
}

// Get handles GET /api/v1/participants/{id}
func (h *ParticipantHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := model.ParticipantID(mux.Vars(r)["id"])

	p, err := h.hub.Participant(r.Context(), id)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ParticipantFromModel(p))
}
