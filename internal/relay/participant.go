package relay

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/guessnumber-go/internal/model"
	"github.com/mcoot/guessnumber-go/internal/protocol"
	"github.com/mcoot/guessnumber-go/internal/transport"
)

// participant is a registered channel and its outbound queue
type participant struct {
	id          model.ParticipantID
	ch          transport.Channel
	connectedAt time.Time
	logger      *slog.Logger

	// joinMu serializes membership changes for this participant
	joinMu sync.Mutex

	mu     sync.Mutex
	send   chan []byte
	closed bool
	room   *room
}

func newParticipant(id model.ParticipantID, ch transport.Channel, buffer int, now time.Time, logger *slog.Logger) *participant {
	return &participant{
		id:          id,
		ch:          ch,
		connectedAt: now,
		logger:      logger.With(slog.String("participant_id", string(id))),
		send:        make(chan []byte, buffer),
	}
}

// currentRoom returns the room the participant is in, or nil
func (p *participant) currentRoom() *room {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.room
}

func (p *participant) setRoom(r *room) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.room = r
}

// deliver encodes and queues a frame. Returns false if the participant is gone.
func (p *participant) deliver(msg protocol.Message) bool {
	data, err := protocol.Encode(msg)
	if err != nil {
		p.logger.Error("failed to encode frame", slog.String("type", string(msg.Kind())), slog.String("error", err.Error()))
		return false
	}
	return p.deliverRaw(data)
}

// deliverRaw queues an encoded frame. A full queue means the participant
// cannot keep up, so it is disconnected rather than silently losing frames.
func (p *participant) deliverRaw(data []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.send <- data:
		return true
	default:
		p.logger.Warn("send buffer full, disconnecting participant", slog.Int("buffer", cap(p.send)))
		p.closeLocked()
		return false
	}
}

// close stops accepting frames. The write pump flushes what is queued and
// then closes the channel, which ends the read pump.
func (p *participant) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
}

func (p *participant) closeLocked() {
	if p.closed {
		return
	}
	p.closed = true
	close(p.send)
}

func (p *participant) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// writePump drains the send queue onto the channel
func (p *participant) writePump() {
	defer func() {
		_ = p.ch.Close()
	}()
	for data := range p.send {
		if err := p.ch.Write(data); err != nil {
			p.logger.Debug("write failed", slog.String("error", err.Error()))
			p.close()
			return
		}
	}
}
