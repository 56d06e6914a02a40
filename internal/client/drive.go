package client

import (
	"context"
	"log/slog"

	"github.com/mcoot/guessnumber-go/internal/protocol"
	"github.com/mcoot/guessnumber-go/internal/services/session"
)

// Drive applies relay events to the session until the channel closes or
// ctx ends. The session learns of a lost channel via HandleDisconnected.
func Drive(ctx context.Context, c *Client, s *session.Session) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-c.Events():
			if !ok {
				err := c.Err()
				s.HandleDisconnected(err)
				return err
			}
			c.dispatch(s, msg)
		}
	}
}

func (c *Client) dispatch(s *session.Session, msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.RoomMembers:
		s.HandleMembers(m.RoomID, m.Members)
	case *protocol.PeerJoined:
		s.HandlePeerJoined(m.PeerID)
	case *protocol.PeerLeft:
		s.HandlePeerLeft(m.PeerID)
	case *protocol.Signal:
		payload, err := m.Payload()
		if err != nil {
			c.logger.Warn("discarded signal", slog.String("from", string(m.From)), slog.String("error", err.Error()))
			return
		}
		if err := s.HandleSignal(m.From, payload); err != nil {
			c.logger.Debug("signal rejected", slog.String("error", err.Error()))
		}
	case *protocol.Error:
		s.HandleRelayError(m.Err())
	default:
		c.logger.Debug("ignored relay frame", slog.String("type", string(msg.Kind())))
	}
}
