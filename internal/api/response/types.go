package response

import (
	"time"

	"github.com/mcoot/guessnumber-go/internal/model"
	"github.com/mcoot/guessnumber-go/internal/relay"
)

// Health is the response for the health endpoint
type Health struct {
	Status       string `json:"status"`
	Participants int    `json:"participants"`
	Rooms        int    `json:"rooms"`
}

// HealthFromStats converts relay stats
func HealthFromStats(s relay.Stats) Health {
	return Health{
		Status:       "ok",
		Participants: s.Participants,
		Rooms:        s.Rooms,
	}
}

// Room represents a live room in API responses
type Room struct {
	ID          string    `json:"id"`
	Host        string    `json:"host"`
	HostPresent bool      `json:"host_present"`
	Members     []string  `json:"members"`
	Guests      int       `json:"guests"`
	Full        bool      `json:"full"`
	JoinURL     string    `json:"join_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RoomFromModel converts a model.RoomInfo. joinURL may be empty.
func RoomFromModel(r *model.RoomInfo, joinURL string) Room {
	members := make([]string, len(r.Members))
	for i, m := range r.Members {
		members[i] = string(m)
	}
	return Room{
		ID:          string(r.ID),
		Host:        string(r.ID.HostID()),
		HostPresent: r.HasMember(r.ID.HostID()),
		Members:     members,
		Guests:      r.GuestCount(),
		Full:        r.IsFull(),
		JoinURL:     joinURL,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// RoomList is the response for the room listing endpoint
type RoomList struct {
	Rooms []Room `json:"rooms"`
	Count int    `json:"count"`
}

// Participant represents a connected participant in API responses
type Participant struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
}

// ParticipantFromModel converts a model.Participant
func ParticipantFromModel(p *model.Participant) Participant {
	return Participant{
		ID:          string(p.ID),
		DisplayName: p.DisplayName,
		ConnectedAt: p.ConnectedAt,
	}
}
