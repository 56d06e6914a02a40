package protocol

import (
	"encoding/json"

	"github.com/mcoot/guessnumber-go/internal/model"
)

// Type is the discriminator carried in every frame's "type" field
type Type string

// Relay control frames
const (
	TypeWelcome     Type = "WELCOME"
	TypeJoin        Type = "JOIN"
	TypeRoomMembers Type = "ROOM_MEMBERS"
	TypePeerJoined  Type = "PEER_JOINED"
	TypePeerLeft    Type = "PEER_LEFT"
	TypeSignal      Type = "SIGNAL"
	TypeEvict       Type = "EVICT"
	TypeError       Type = "ERROR"
)

// Game frames, carried inside SIGNAL data
const (
	TypeHandshake      Type = "HANDSHAKE"
	TypePlayerInfo     Type = "PLAYER_INFO"
	TypeGameStart      Type = "GAME_START"
	TypeDuelInit       Type = "DUEL_INIT"
	TypeDuelReady      Type = "DUEL_READY"
	TypeGuessUpdate    Type = "GUESS_UPDATE"
	TypeTurnChange     Type = "TURN_CHANGE"
	TypeGameOver       Type = "GAME_OVER"
	TypeKick           Type = "KICK"
	TypeRestartRequest Type = "RESTART_REQUEST"
	TypeRestartAccept  Type = "RESTART_ACCEPT"
)

// Message is implemented by every frame in the protocol
type Message interface {
	Kind() Type
}

// Welcome is sent by the relay once a channel is registered
type Welcome struct {
	ID model.ParticipantID `json:"id"`
}

// Join asks the relay to move the sender into a room
type Join struct {
	RoomID model.RoomID `json:"roomId"`
}

// RoomMembers tells a participant who else is in the room it just entered
type RoomMembers struct {
	RoomID  model.RoomID          `json:"roomId"`
	Members []model.ParticipantID `json:"members"`
}

// PeerJoined announces a new member to the rest of the room
type PeerJoined struct {
	PeerID model.ParticipantID `json:"peerId"`
}

// PeerLeft announces a departed member to the rest of the room
type PeerLeft struct {
	PeerID model.ParticipantID `json:"peerId"`
}

// Signal carries an opaque game payload between room members.
// Target is empty for a broadcast; From is stamped by the relay.
type Signal struct {
	Target model.ParticipantID `json:"target,omitempty"`
	From   model.ParticipantID `json:"from,omitempty"`
	Data   json.RawMessage     `json:"data"`
}

// Evict asks the relay to disconnect a member of the sender's own room
type Evict struct {
	Target model.ParticipantID `json:"target"`
}

// Error reports a relay-level failure to a single participant
type Error struct {
	Code    ErrorCode `json:"code,omitempty"`
	Message string    `json:"message"`
}

// Handshake probes the host. A request is answered with exactly one ack.
type Handshake struct {
	Ack bool `json:"ack"`
}

// PlayerInfo shares a participant's display name
type PlayerInfo struct {
	Username string `json:"username"`
}

// GameStart begins a race round
type GameStart struct {
	Digits        int                   `json:"digits"`
	MatchStrategy model.MatchStrategy   `json:"matchStrategy"`
	Secret        string                `json:"secret"`
	TurnOrder     []model.ParticipantID `json:"turnOrder,omitempty"`
	CurrentTurn   model.ParticipantID   `json:"currentTurn,omitempty"`
}

// DuelInit moves both duel participants into secret selection
type DuelInit struct {
	Digits        int                 `json:"digits"`
	MatchStrategy model.MatchStrategy `json:"matchStrategy"`
}

// DuelReady carries the secret the sender chose for its opponent
type DuelReady struct {
	Secret string `json:"secret"`
}

// Result is the public part of a scored guess
type Result struct {
	Exact int `json:"exact"`
	Total int `json:"total"`
}

// GuessUpdate announces the sender's latest guess outcome
type GuessUpdate struct {
	GuessCount int    `json:"guessCount"`
	LastResult Result `json:"lastResult"`
}

// TurnChange names the participant allowed to guess next
type TurnChange struct {
	CurrentTurn model.ParticipantID   `json:"currentTurn"`
	TurnOrder   []model.ParticipantID `json:"turnOrder,omitempty"`
}

// GameOver ends the round. Winner is empty when the round was abandoned.
type GameOver struct {
	Winner model.ParticipantID `json:"winner,omitempty"`
}

// Kick tells a guest it is being removed from the room
type Kick struct {
	Message string `json:"message"`
}

// RestartRequest asks the host for a new round
type RestartRequest struct{}

// RestartAccept tells guests a new round is about to start
type RestartAccept struct{}

// GameError reports a rejected game action to its sender
type GameError struct {
	Message string `json:"message"`
}

func (Welcome) Kind() Type        { return TypeWelcome }
func (Join) Kind() Type           { return TypeJoin }
func (RoomMembers) Kind() Type    { return TypeRoomMembers }
func (PeerJoined) Kind() Type     { return TypePeerJoined }
func (PeerLeft) Kind() Type       { return TypePeerLeft }
func (Signal) Kind() Type         { return TypeSignal }
func (Evict) Kind() Type          { return TypeEvict }
func (Error) Kind() Type          { return TypeError }
func (Handshake) Kind() Type      { return TypeHandshake }
func (PlayerInfo) Kind() Type     { return TypePlayerInfo }
func (GameStart) Kind() Type      { return TypeGameStart }
func (DuelInit) Kind() Type       { return TypeDuelInit }
func (DuelReady) Kind() Type      { return TypeDuelReady }
func (GuessUpdate) Kind() Type    { return TypeGuessUpdate }
func (TurnChange) Kind() Type     { return TypeTurnChange }
func (GameOver) Kind() Type       { return TypeGameOver }
func (Kick) Kind() Type           { return TypeKick }
func (RestartRequest) Kind() Type { return TypeRestartRequest }
func (RestartAccept) Kind() Type  { return TypeRestartAccept }
func (GameError) Kind() Type      { return TypeError }
