package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mcoot/guessnumber-go/internal/model"
)

// relayRegistry and gameRegistry are the closed sets of frames accepted
// on the relay channel and inside SIGNAL data respectively
var relayRegistry = map[Type]func() Message{
	TypeWelcome:     func() Message { return &Welcome{} },
	TypeJoin:        func() Message { return &Join{} },
	TypeRoomMembers: func() Message { return &RoomMembers{} },
	TypePeerJoined:  func() Message { return &PeerJoined{} },
	TypePeerLeft:    func() Message { return &PeerLeft{} },
	TypeSignal:      func() Message { return &Signal{} },
	TypeEvict:       func() Message { return &Evict{} },
	TypeError:       func() Message { return &Error{} },
}

var gameRegistry = map[Type]func() Message{
	TypeHandshake:      func() Message { return &Handshake{} },
	TypePlayerInfo:     func() Message { return &PlayerInfo{} },
	TypeGameStart:      func() Message { return &GameStart{} },
	TypeDuelInit:       func() Message { return &DuelInit{} },
	TypeDuelReady:      func() Message { return &DuelReady{} },
	TypeGuessUpdate:    func() Message { return &GuessUpdate{} },
	TypeTurnChange:     func() Message { return &TurnChange{} },
	TypeGameOver:       func() Message { return &GameOver{} },
	TypeKick:           func() Message { return &Kick{} },
	TypeRestartRequest: func() Message { return &RestartRequest{} },
	TypeRestartAccept:  func() Message { return &RestartAccept{} },
	TypeError:          func() Message { return &GameError{} },
}

type header struct {
	Type Type `json:"type"`
}

// Encode serializes a message as a flat JSON object with its "type" first
func Encode(msg Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Kind(), err)
	}
	typ, err := json.Marshal(msg.Kind())
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Kind(), err)
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + len(typ) + 9)
	buf.WriteString(`{"type":`)
	buf.Write(typ)
	if inner := bytes.TrimSpace(body[1 : len(body)-1]); len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DecodeRelay parses a frame received on a relay channel
func DecodeRelay(data []byte) (Message, error) {
	return decode(data, relayRegistry)
}

// DecodeGame parses a game frame carried inside SIGNAL data
func DecodeGame(data []byte) (Message, error) {
	return decode(data, gameRegistry)
}

func decode(data []byte, registry map[Type]func() Message) (Message, error) {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("%w: malformed frame: %v", model.ErrProtocolViolation, err)
	}
	if h.Type == "" {
		return nil, fmt.Errorf("%w: frame has no type", model.ErrProtocolViolation)
	}
	ctor, ok := registry[h.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownMessage, h.Type)
	}
	msg := ctor()
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: bad %s frame: %v", model.ErrProtocolViolation, h.Type, err)
	}
	return msg, nil
}

// NewSignal wraps a game message for delivery through the relay.
// An empty target broadcasts to the rest of the room.
func NewSignal(target model.ParticipantID, msg Message) (*Signal, error) {
	data, err := Encode(msg)
	if err != nil {
		return nil, err
	}
	return &Signal{Target: target, Data: data}, nil
}

// Payload decodes the game message carried by the signal
func (s *Signal) Payload() (Message, error) {
	if len(s.Data) == 0 {
		return nil, fmt.Errorf("%w: signal has no data", model.ErrProtocolViolation)
	}
	return DecodeGame(s.Data)
}
