package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/mcoot/guessnumber-go/internal/api/apierr"
	"github.com/mcoot/guessnumber-go/internal/api/response"
	"github.com/mcoot/guessnumber-go/internal/model"
	"github.com/mcoot/guessnumber-go/internal/relay"
)

// Edge length in pixels of generated invite codes
const (
	QRSize    = 320
	QRMinSize = 64
	QRMaxSize = 1024
)

// RoomHandler handles room lookup endpoints
type RoomHandler struct {
	hub       *relay.Hub
	publicURL string
}

// NewRoomHandler creates a new room handler. publicURL is the address
// invites point at; when empty it is derived from each request.
func NewRoomHandler(hub *relay.Hub, publicURL string) *RoomHandler {
	return &RoomHandler{
		hub:       hub,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
}

// List handles GET /api/v1/rooms
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.hub.Rooms(r.Context())
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	out := response.RoomList{Rooms: make([]response.Room, 0, len(rooms))}
	for _, info := range rooms {
		out.Rooms = append(out.Rooms, response.RoomFromModel(info, h.joinURL(r, info.ID)))
	}
	out.Count = len(out.Rooms)
	response.JSON(w, http.StatusOK, out)
}

// Get handles GET /api/v1/rooms/{id}
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := model.RoomID(mux.Vars(r)["id"])

	info, err := h.hub.RoomInfo(r.Context(), id)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.RoomFromModel(info, h.joinURL(r, id)))
}

// QR handles GET /api/v1/rooms/{id}/qr?size=N
// Renders the room's invite link as a PNG.
func (h *RoomHandler) QR(w http.ResponseWriter, r *http.Request) {
	id := model.RoomID(mux.Vars(r)["id"])

	size := QRSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < QRMinSize || n > QRMaxSize {
			apierr.WriteError(w, apierr.NewInvalidRequestError(
				fmt.Sprintf("size must be an integer between %d and %d", QRMinSize, QRMaxSize)))
			return
		}
		size = n
	}

	exists, err := h.hub.RoomExists(r.Context(), id)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	if !exists {
		apierr.WriteError(w, model.ErrRoomNotFound)
		return
	}

	png, err := qrcode.Encode(h.joinURL(r, id), qrcode.Medium, size)
	if err != nil {
		apierr.WriteError(w, apierr.NewInternalError())
		return
	}

	response.PNG(w, png)
}

// joinURL is the link a guest follows to join the room
func (h *RoomHandler) joinURL(r *http.Request, id model.RoomID) string {
	base := h.publicURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base + "/?room=" + url.QueryEscape(string(id))
}
