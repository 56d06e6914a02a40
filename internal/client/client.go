// Package client connects a game session to the relay
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/guessnumber-go/internal/model"
	"github.com/mcoot/guessnumber-go/internal/protocol"
	"github.com/mcoot/guessnumber-go/internal/services/session"
	"github.com/mcoot/guessnumber-go/internal/transport"
	"github.com/mcoot/guessnumber-go/internal/transport/ws"
)

// DefaultTimeout bounds the wait for WELCOME and for a join to be answered
const DefaultTimeout = 5 * time.Second

const eventBuffer = 64

// Client is one participant's connection to the relay. Relay frames are
// surfaced on Events in arrival order; Drive feeds them to a session.
type Client struct {
	ch      transport.Channel
	id      model.ParticipantID
	timeout time.Duration
	logger  *slog.Logger

	writeMu sync.Mutex

	mu     sync.Mutex
	waiter chan protocol.Message // pending Join

	welcome   chan *protocol.Welcome
	events    chan protocol.Message
	done      chan struct{}
	closing   chan struct{}
	closeOnce sync.Once
	err       error
}

var _ session.Transport = (*Client)(nil)

// Dial opens a websocket to the relay and waits for its greeting
func Dial(ctx context.Context, url string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch, err := ws.Dial(dialCtx, url)
	if err != nil {
		if errors.Is(dialCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", model.ErrConnectTimeout, err)
		}
		return nil, err
	}
	return Connect(ctx, ch, timeout, logger)
}

// Connect waits for the relay's WELCOME on an open channel. The channel
// is closed if none arrives within timeout.
func Connect(ctx context.Context, ch transport.Channel, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		ch:      ch,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "client")),
		welcome: make(chan *protocol.Welcome, 1),
		events:  make(chan protocol.Message, eventBuffer),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}
	go c.readLoop()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case w := <-c.welcome:
		c.id = w.ID
		c.logger.Info("connected to relay",
			slog.String("participant_id", string(w.ID)),
			slog.String("remote_addr", ch.RemoteAddr()))
		return c, nil
	case <-timer.C:
		c.Close()
		return nil, model.ErrConnectTimeout
	case <-c.done:
		return nil, fmt.Errorf("%w: %v", model.ErrChannelClosed, c.err)
	case <-ctx.Done():
		c.Close()
		return nil, ctx.Err()
	}
}

// SelfID returns the relay-assigned participant ID
func (c *Client) SelfID() model.ParticipantID {
	return c.id
}

// Events returns relay frames in arrival order. Closed once the channel is gone.
func (c *Client) Events() <-chan protocol.Message {
	return c.events
}

// Done is closed once the channel is gone
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the channel closed. Valid after Done.
func (c *Client) Err() error {
	<-c.done
	return c.err
}

// Join moves this participant into roomID and waits for the relay to
// confirm with ROOM_MEMBERS or refuse with ERROR
func (c *Client) Join(ctx context.Context, roomID model.RoomID) error {
	waiter := make(chan protocol.Message, 1)
	c.mu.Lock()
	c.waiter = waiter
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.waiter == waiter {
			c.waiter = nil
		}
		c.mu.Unlock()
	}()

	if err := c.write(&protocol.Join{RoomID: roomID}); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	for {
		select {
		case msg := <-waiter:
			switch m := msg.(type) {
			case *protocol.RoomMembers:
				if m.RoomID != roomID {
					continue
				}
				c.logger.Info("joined room", slog.String("room", string(roomID)), slog.Int("members", len(m.Members)))
				return nil
			case *protocol.Error:
				return fmt.Errorf("join %s: %w", roomID, m.Err())
			}
		case <-c.done:
			return fmt.Errorf("join %s: %w", roomID, model.ErrChannelClosed)
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("join %s: %w", roomID, model.ErrConnectTimeout)
			}
			return ctx.Err()
		}
	}
}

// Send relays a game message to one room member, or to all others when
// target is empty
func (c *Client) Send(target model.ParticipantID, msg protocol.Message) error {
	sig, err := protocol.NewSignal(target, msg)
	if err != nil {
		return err
	}
	return c.write(sig)
}

// Evict asks the relay to disconnect a member of our own room
func (c *Client) Evict(target model.ParticipantID) error {
	return c.write(&protocol.Evict{Target: target})
}

// Close tears down the channel
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closing)
		_ = c.ch.Close()
	})
}

func (c *Client) write(msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ch.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", msg.Kind(), err)
	}
	return nil
}

func (c *Client) readLoop() {
	defer close(c.events)
	defer close(c.done)

	greeted := false
	for {
		data, err := c.ch.Read()
		if err != nil {
			c.err = err
			if !errors.Is(err, model.ErrChannelClosed) {
				c.logger.Debug("read failed", slog.String("error", err.Error()))
			}
			return
		}

		msg, err := protocol.DecodeRelay(data)
		if err != nil {
			c.logger.Warn("discarded relay frame", slog.String("error", err.Error()))
			continue
		}

		if w, ok := msg.(*protocol.Welcome); ok {
			if !greeted {
				greeted = true
				c.welcome <- w
			}
			continue
		}

		switch msg.(type) {
		case *protocol.RoomMembers, *protocol.Error:
			c.mu.Lock()
			if c.waiter != nil {
				select {
				case c.waiter <- msg:
				default:
				}
			}
			c.mu.Unlock()
		}

		select {
		case c.events <- msg:
		case <-c.closing:
			c.err = model.ErrChannelClosed
			return
		}
	}
}
