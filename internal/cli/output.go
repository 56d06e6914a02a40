package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mcoot/guessnumber-go/internal/model"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	mu     sync.Mutex
	w      io.Writer
	errW   io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w, errW: os.Stderr}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(o.errW, string(data))
	} else {
		fmt.Fprintf(o.errW, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case HealthResult:
		o.printHealthResult(v)
	case Room:
		o.printRoom(v)
	case RoomList:
		o.printRoomList(v)
	case Participant:
		o.printParticipant(v)
	case GuessReport:
		fmt.Fprintln(o.w, v.Result.Format(v.Strategy))
	case model.SessionSnapshot:
		o.printSnapshot(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// HealthResult response type
type HealthResult struct {
	Status       string `json:"status"`
	Participants int    `json:"participants"`
	Rooms        int    `json:"rooms"`
}

// Room response type
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

// RoomList response type
type RoomList struct {
	Rooms []Room `json:"rooms"`
	Count int    `json:"count"`
}

// Participant response type
type Participant struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
}

// GuessReport is one scored guess as shown to the player
type GuessReport struct {
	Result   model.GuessResult   `json:"result"`
	Strategy model.MatchStrategy `json:"strategy"`
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Fprintf(o.w, "Status: %s\n", h.Status)
	fmt.Fprintf(o.w, "Participants: %d\n", h.Participants)
	fmt.Fprintf(o.w, "Rooms: %d\n", h.Rooms)
}

func (o *Output) printRoom(r Room) {
	fmt.Fprintf(o.w, "Room: %s\n", r.ID)
	hostStr := r.Host
	if !r.HostPresent {
		hostStr += " (left)"
	}
	fmt.Fprintf(o.w, "Host: %s\n", hostStr)
	full := ""
	if r.Full {
		full = " [full]"
	}
	fmt.Fprintf(o.w, "Members (%d/%d)%s:\n", len(r.Members), model.MaxPlayers, full)
	for _, m := range r.Members {
		fmt.Fprintf(o.w, "  - %s\n", m)
	}
	if r.JoinURL != "" {
		fmt.Fprintf(o.w, "Invite: %s\n", r.JoinURL)
	}
}

func (o *Output) printRoomList(l RoomList) {
	if l.Count == 0 {
		fmt.Fprintln(o.w, "No live rooms")
		return
	}
	fmt.Fprintf(o.w, "Rooms (%d):\n", l.Count)
	for _, r := range l.Rooms {
		full := ""
		if r.Full {
			full = " [full]"
		}
		fmt.Fprintf(o.w, "  - %s  %d/%d%s\n", r.ID, len(r.Members), model.MaxPlayers, full)
	}
}

func (o *Output) printParticipant(p Participant) {
	fmt.Fprintf(o.w, "Participant: %s\n", p.ID)
	if p.DisplayName != "" {
		fmt.Fprintf(o.w, "Name: %s\n", p.DisplayName)
	}
	fmt.Fprintf(o.w, "Connected: %s\n", p.ConnectedAt.Format(time.RFC3339))
}

func (o *Output) printSnapshot(s model.SessionSnapshot) {
	fmt.Fprintf(o.w, "Phase: %s\n", s.Phase)
	if s.Phase != model.PhaseLobby {
		fmt.Fprintf(o.w, "Game: %d digits, %s match, %s\n", s.Config.Digits, s.Config.MatchStrategy, s.Config.PlayStyle)
	}
	if s.CurrentTurn != "" {
		turn := string(s.CurrentTurn)
		if s.IsMyTurn() {
			turn += " (you)"
		}
		fmt.Fprintf(o.w, "Turn: %s\n", turn)
	}

	if s.Host != "" {
		role := "guest"
		if s.IsHost {
			role = "host"
		}
		fmt.Fprintf(o.w, "Room: %s (you are %s %s)\n", s.Host, role, s.Self)
	}
	if len(s.Peers) > 0 {
		fmt.Fprintf(o.w, "Players (%d):\n", len(s.Peers)+1)
		for _, p := range s.Peers {
			name := p.Username
			if name == "" {
				name = "?"
			}
			tags := []string{}
			if p.ID == s.Host {
				tags = append(tags, "host")
			}
			if p.Ready {
				tags = append(tags, "ready")
			}
			tagStr := ""
			if len(tags) > 0 {
				tagStr = " [" + strings.Join(tags, ", ") + "]"
			}
			fmt.Fprintf(o.w, "  - %s (%s)%s guesses=%d last=%d/%d\n",
				name, p.ID, tagStr, p.GuessCount, p.LastExact, p.LastTotal)
		}
	}

	if len(s.History) > 0 {
		fmt.Fprintln(o.w, "History:")
		for i, r := range s.History {
			fmt.Fprintf(o.w, "  %d. %s\n", i+1, r.Format(s.Config.MatchStrategy))
		}
	}

	if s.Secret != "" {
		fmt.Fprintf(o.w, "Secret: %s\n", s.Secret)
	}
	if s.Winner != "" {
		fmt.Fprintf(o.w, "Winner: %s\n", s.Winner)
	}
	if s.RestartAsked {
		fmt.Fprintln(o.w, "A player asked for a restart")
	}
	if s.KickReason != "" {
		fmt.Fprintf(o.w, "Kicked: %s\n", s.KickReason)
	}
	if s.Error != "" {
		fmt.Fprintf(o.w, "Error: %s\n", s.Error)
	}
}
