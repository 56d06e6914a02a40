package relay

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/guessnumber-go/internal/dependencies/mocks"
	"github.com/mcoot/guessnumber-go/internal/model"
	"github.com/mcoot/guessnumber-go/internal/protocol"
	"github.com/mcoot/guessnumber-go/internal/storage/memory"
	"github.com/mcoot/guessnumber-go/internal/testutil"
	"github.com/mcoot/guessnumber-go/internal/transport/memchan"
)

const frameWait = time.Second

type HubSuite struct {
	suite.Suite
	hub       *Hub
	clock     *mocks.MockClock
	directory *memory.Storage
	ctx       context.Context
}

func TestHubSuite(t *testing.T) {
	suite.Run(t, new(HubSuite))
}

func (s *HubSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.directory = memory.New()
	s.ctx = context.Background()

	n := 0
	ids := func() model.ParticipantID {
		n++
		return model.ParticipantID(fmt.Sprintf("p%d", n))
	}
	s.hub = NewHub(DefaultConfig(), s.clock, s.directory, ids, testutil.NopLogger())
}

func (s *HubSuite) TearDownTest() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.NoError(s.hub.Close(ctx))
}

// connect registers a new participant and consumes its greeting frames
func (s *HubSuite) connect() (model.ParticipantID, *memchan.End) {
	server, client := memchan.Pipe()
	id := s.hub.Register(s.ctx, server)

	welcome := s.expect(client).(*protocol.Welcome)
	s.Require().Equal(id, welcome.ID)
	members := s.expect(client).(*protocol.RoomMembers)
	s.Require().Equal(model.RoomID(id), members.RoomID)
	s.Require().Empty(members.Members)
	return id, client
}

func (s *HubSuite) send(end *memchan.End, msg protocol.Message) {
	data, err := protocol.Encode(msg)
	s.Require().NoError(err)
	s.Require().NoError(end.Write(data))
}

func (s *HubSuite) expect(end *memchan.End) protocol.Message {
	data, err := end.ReadWithin(frameWait)
	s.Require().NoError(err)
	msg, err := protocol.DecodeRelay(data)
	s.Require().NoError(err)
	return msg
}

func (s *HubSuite) expectNothing(end *memchan.End) {
	data, err := end.ReadWithin(50 * time.Millisecond)
	s.Require().ErrorIs(err, memchan.ErrTimeout, "unexpected frame %s", data)
}

// joinRoom has the guest join the host's room and drains the resulting notifications
func (s *HubSuite) joinRoom(guest *memchan.End, roomID model.RoomID, others ...*memchan.End) *protocol.RoomMembers {
	s.send(guest, &protocol.Join{RoomID: roomID})
	members := s.expect(guest).(*protocol.RoomMembers)
	for _, other := range others {
		s.IsType(&protocol.PeerJoined{}, s.expect(other))
	}
	return members
}

// Registration

func (s *HubSuite) TestRegisterCreatesOwnRoom() {
	id, _ := s.connect()

	s.Equal(model.ParticipantID("p1"), id)
	s.Equal(Stats{Participants: 1, Rooms: 1}, s.hub.Stats())

	s.Eventually(func() bool {
		room, err := s.directory.GetRoom(s.ctx, "p1")
		return err == nil && room.HasMember("p1")
	}, time.Second, 10*time.Millisecond)
}

func (s *HubSuite) TestCancellingRegisterContextDisconnects() {
	hostID, host := s.connect()

	ctx, cancel := context.WithCancel(context.Background())
	server, guest := memchan.Pipe()
	guestID := s.hub.Register(ctx, server)
	s.IsType(&protocol.Welcome{}, s.expect(guest))
	s.IsType(&protocol.RoomMembers{}, s.expect(guest))
	s.joinRoom(guest, model.RoomID(hostID), host)

	cancel()

	left := s.expect(host).(*protocol.PeerLeft)
	s.Equal(guestID, left.PeerID)
	s.Eventually(guest.Closed, time.Second, 10*time.Millisecond)
	s.Eventually(func() bool { return s.hub.Stats().Participants == 1 }, time.Second, 10*time.Millisecond)
}

func (s *HubSuite) TestCloseDisconnectsEveryone() {
	_, a := s.connect()
	_, b := s.connect()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Require().NoError(s.hub.Close(ctx))

	s.True(a.Closed())
	s.True(b.Closed())
	s.Equal(Stats{}, s.hub.Stats())
}

func (s *HubSuite) TestDirectoryLookups() {
	hostID, host := s.connect()
	_, guest := s.connect()
	s.joinRoom(guest, model.RoomID(hostID), host)

	s.Eventually(func() bool {
		rooms, err := s.hub.Rooms(s.ctx)
		return err == nil && len(rooms) == 2 && len(rooms[0].Members) == 2
	}, time.Second, 10*time.Millisecond)

	exists, err := s.hub.RoomExists(s.ctx, model.RoomID(hostID))
	s.Require().NoError(err)
	s.True(exists)
	exists, err = s.hub.RoomExists(s.ctx, "nope")
	s.Require().NoError(err)
	s.False(exists)

	p, err := s.hub.Participant(s.ctx, hostID)
	s.Require().NoError(err)
	s.Equal(s.clock.Now(), p.ConnectedAt)
	_, err = s.hub.Participant(s.ctx, "nope")
	s.ErrorIs(err, model.ErrParticipantNotFound)
}

func (s *HubSuite) TestLookupsWithoutDirectory() {
	hub := NewHub(DefaultConfig(), s.clock, nil, UUIDGenerator(), testutil.NopLogger())
	defer func() { s.NoError(hub.Close(s.ctx)) }()
	server, client := memchan.Pipe()
	id := hub.Register(s.ctx, server)
	s.IsType(&protocol.Welcome{}, s.expect(client))

	rooms, err := hub.Rooms(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(rooms, 1)
	s.Equal([]model.ParticipantID{id}, rooms[0].Members)

	exists, err := hub.RoomExists(s.ctx, model.RoomID(id))
	s.Require().NoError(err)
	s.True(exists)

	p, err := hub.Participant(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(id, p.ID)
}

// Join

func (s *HubSuite) TestJoinUnknownRoomFails() {
	_, guest := s.connect()

	s.send(guest, &protocol.Join{RoomID: "nowhere"})

	errFrame := s.expect(guest).(*protocol.Error)
	s.Equal(protocol.CodeRoomNotFound, errFrame.Code)
	s.Equal(1, s.hub.Stats().Rooms)

	exists, err := s.directory.RoomExists(s.ctx, "nowhere")
	s.Require().NoError(err)
	s.False(exists)
}

func (s *HubSuite) TestJoinNotifiesBothSides() {
	hostID, host := s.connect()
	guestID, guest := s.connect()

	s.send(guest, &protocol.Join{RoomID: model.RoomID(hostID)})

	members := s.expect(guest).(*protocol.RoomMembers)
	s.Equal(model.RoomID(hostID), members.RoomID)
	s.Equal([]model.ParticipantID{hostID}, members.Members)

	joined := s.expect(host).(*protocol.PeerJoined)
	s.Equal(guestID, joined.PeerID)

	// guest's own room emptied and closed
	s.Eventually(func() bool { return s.hub.Stats().Rooms == 1 }, time.Second, 10*time.Millisecond)

	got, err := s.hub.Members(s.ctx, model.RoomID(hostID))
	s.Require().NoError(err)
	s.Equal([]model.ParticipantID{hostID, guestID}, got)
}

func (s *HubSuite) TestRoomFullRejectsJoiner() {
	hostID, host := s.connect()
	others := []*memchan.End{host}
	for i := 0; i < model.MaxPlayers-1; i++ {
		_, guest := s.connect()
		s.joinRoom(guest, model.RoomID(hostID), others...)
		others = append(others, guest)
	}

	_, late := s.connect()
	s.send(late, &protocol.Join{RoomID: model.RoomID(hostID)})

	errFrame := s.expect(late).(*protocol.Error)
	s.Equal(protocol.CodeRoomFull, errFrame.Code)
	for _, member := range others {
		s.expectNothing(member)
	}

	members, err := s.hub.Members(s.ctx, model.RoomID(hostID))
	s.Require().NoError(err)
	s.Len(members, model.MaxPlayers)

	// channel stays open for the grace period, then closes
	s.False(late.Closed())
	s.clock.Advance(DefaultConfig().RejectGrace)
	s.Eventually(late.Closed, time.Second, 10*time.Millisecond)
}

func (s *HubSuite) TestRejoinOwnRoomRecreatesIt() {
	hostID, host := s.connect()
	guestID, guest := s.connect()
	s.joinRoom(guest, model.RoomID(hostID), host)
	s.Eventually(func() bool { return s.hub.Stats().Rooms == 1 }, time.Second, 10*time.Millisecond)

	s.send(guest, &protocol.Join{RoomID: model.RoomID(guestID)})

	members := s.expect(guest).(*protocol.RoomMembers)
	s.Equal(model.RoomID(guestID), members.RoomID)
	s.Empty(members.Members)

	left := s.expect(host).(*protocol.PeerLeft)
	s.Equal(guestID, left.PeerID)
	s.Equal(2, s.hub.Stats().Rooms)
}

// Leave

func (s *HubSuite) TestDisconnectNotifiesRoom() {
	hostID, host := s.connect()
	guestID, guest := s.connect()
	s.joinRoom(guest, model.RoomID(hostID), host)

	s.Require().NoError(guest.Close())

	left := s.expect(host).(*protocol.PeerLeft)
	s.Equal(guestID, left.PeerID)
	s.Eventually(func() bool { return s.hub.Stats().Participants == 1 }, time.Second, 10*time.Millisecond)
}

func (s *HubSuite) TestRoomOutlivesItsHost() {
	hostID, host := s.connect()
	_, guest := s.connect()
	s.joinRoom(guest, model.RoomID(hostID), host)

	s.Require().NoError(host.Close())

	left := s.expect(guest).(*protocol.PeerLeft)
	s.Equal(hostID, left.PeerID)

	s.Eventually(func() bool {
		room, err := s.directory.GetRoom(s.ctx, model.RoomID(hostID))
		return err == nil && len(room.Members) == 1
	}, time.Second, 10*time.Millisecond)
}

func (s *HubSuite) TestRoomDestroyedWhenEmpty() {
	_, solo := s.connect()

	s.Require().NoError(solo.Close())

	s.Eventually(func() bool { return s.hub.Stats() == Stats{} }, time.Second, 10*time.Millisecond)
	s.Eventually(func() bool {
		rooms, err := s.directory.ListRooms(s.ctx)
		return err == nil && len(rooms) == 0
	}, time.Second, 10*time.Millisecond)
}

func (s *HubSuite) TestLeaveIsIdempotent() {
	id, _ := s.connect()

	s.NoError(s.hub.Leave(s.ctx, id))
	s.NoError(s.hub.Leave(s.ctx, id))
	s.ErrorIs(s.hub.Leave(s.ctx, "ghost"), model.ErrParticipantNotFound)
}

// Route

func (s *HubSuite) TestSignalTargetedAndBroadcast() {
	hostID, host := s.connect()
	g1, guest1 := s.connect()
	_, guest2 := s.connect()
	s.joinRoom(guest1, model.RoomID(hostID), host)
	s.joinRoom(guest2, model.RoomID(hostID), host, guest1)

	s.send(host, &protocol.Signal{Target: g1, Data: []byte(`{"type":"HANDSHAKE","ack":false}`)})

	sig := s.expect(guest1).(*protocol.Signal)
	s.Equal(hostID, sig.From)
	s.expectNothing(guest2)

	s.send(guest1, &protocol.Signal{Data: []byte(`{"type":"RESTART_REQUEST"}`)})

	s.Equal(g1, s.expect(host).(*protocol.Signal).From)
	s.Equal(g1, s.expect(guest2).(*protocol.Signal).From)
	s.expectNothing(guest1)
}

func (s *HubSuite) TestSignalOutsideRoomDropped() {
	_, alice := s.connect()
	bobID, bob := s.connect()

	s.send(alice, &protocol.Signal{Target: bobID, Data: []byte(`{"type":"HANDSHAKE"}`)})

	s.expectNothing(bob)
}

func (s *HubSuite) TestSignalOrderPreserved() {
	hostID, host := s.connect()
	_, guest := s.connect()
	s.joinRoom(guest, model.RoomID(hostID), host)

	for i := 1; i <= 20; i++ {
		s.send(host, &protocol.Signal{Data: []byte(fmt.Sprintf(`{"type":"GUESS_UPDATE","guessCount":%d}`, i))})
	}
	for i := 1; i <= 20; i++ {
		payload, err := s.expect(guest).(*protocol.Signal).Payload()
		s.Require().NoError(err)
		s.Equal(i, payload.(*protocol.GuessUpdate).GuessCount)
	}
}

// Evict

func (s *HubSuite) TestEvictRequiresRoomOwner() {
	hostID, host := s.connect()
	g1, guest1 := s.connect()
	_, guest2 := s.connect()
	s.joinRoom(guest1, model.RoomID(hostID), host)
	s.joinRoom(guest2, model.RoomID(hostID), host, guest1)

	s.send(guest2, &protocol.Evict{Target: g1})

	errFrame := s.expect(guest2).(*protocol.Error)
	s.Equal(protocol.CodeNotRoomOwner, errFrame.Code)
	s.False(guest1.Closed())
}

func (s *HubSuite) TestEvictDisconnectsTarget() {
	hostID, host := s.connect()
	guestID, guest := s.connect()
	s.joinRoom(guest, model.RoomID(hostID), host)

	s.send(host, &protocol.Evict{Target: guestID})

	left := s.expect(host).(*protocol.PeerLeft)
	s.Equal(guestID, left.PeerID)
	s.Eventually(guest.Closed, time.Second, 10*time.Millisecond)
}

func (s *HubSuite) TestEvictUnknownTarget() {
	hostID, _ := s.connect()

	err := s.hub.Evict(s.ctx, hostID, "stranger")
	s.ErrorIs(err, model.ErrNotInRoom)
}

// Malformed input

func (s *HubSuite) TestMalformedFrameAnsweredWithError() {
	_, alice := s.connect()

	s.Require().NoError(alice.Write([]byte(`{"type":"GAME_START"}`)))
	s.Equal(protocol.CodeProtocolViolation, s.expect(alice).(*protocol.Error).Code)

	s.Require().NoError(alice.Write([]byte(`garbage`)))
	s.Equal(protocol.CodeProtocolViolation, s.expect(alice).(*protocol.Error).Code)

	s.send(alice, &protocol.Welcome{ID: "forged"})
	s.Equal(protocol.CodeProtocolViolation, s.expect(alice).(*protocol.Error).Code)
}

func TestUUIDGeneratorShape(t *testing.T) {
	gen := UUIDGenerator()
	seen := map[model.ParticipantID]bool{}
	for i := 0; i < 100; i++ {
		id := gen()
		if len(id) != 8 {
			t.Fatalf("id %q has length %d", id, len(id))
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
