package app

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Countdown/internal/core"
	"github.com/dkeye/Countdown/internal/domain"
)

type capConn struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
}

func (c *capConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return errors.New("backpressure")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *capConn) Close() {}

func (c *capConn) events(t *testing.T, name domain.EventName) []json.RawMessage {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []json.RawMessage
	for _, raw := range c.frames {
		var f domain.Frame
		require.NoError(t, json.Unmarshal(raw, &f))
		if f.Event == name {
			out = append(out, f.Data)
		}
	}
	return out
}

func (c *capConn) lastParticipants(t *testing.T) int {
	t.Helper()
	updates := c.events(t, domain.EventParticipantsUpdate)
	require.NotEmpty(t, updates)
	var p domain.ParticipantsData
	require.NoError(t, json.Unmarshal(updates[len(updates)-1], &p))
	return p.Participants
}

func newTestOrch() (*Orchestrator, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC))
	return &Orchestrator{
		Registry: NewRegistry(),
		Rooms:    NewRoomManager(clock, 0),
		Policy:   SimplePolicy{},
		Clock:    clock,
	}, clock
}

func bind(o *Orchestrator, id string) *capConn {
	conn := &capConn{}
	user := domain.NewUser(domain.UserID(id), "")
	sess := core.NewMemberSession(domain.NewMember(user), conn)
	o.Registry.Bind(core.SessionID(id), user, sess, nil)
	return conn
}

var nye = domain.CreateRoomPayload{
	RoomID:     "abc123",
	Title:      "NYE",
	TargetDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
}

func TestCreateRoom_RegistersWithoutParticipants(t *testing.T) {
	req := require.New(t)
	o, _ := newTestOrch()
	connA := bind(o, "A")

	o.CreateRoom("A", nye)

	created := connA.events(t, domain.EventRoomCreated)
	req.Len(created, 1)
	var data domain.RoomCreatedData
	req.NoError(json.Unmarshal(created[0], &data))
	req.Equal("abc123", data.RoomID)

	room, ok := o.Rooms.Get("abc123")
	req.True(ok)
	req.Zero(room.ParticipantCount())
}

func TestCreateRoom_DuplicateIDOverwrites(t *testing.T) {
	req := require.New(t)
	o, _ := newTestOrch()
	bind(o, "A")

	o.CreateRoom("A", nye)
	second := nye
	second.Title = "NYE again"
	o.CreateRoom("A", second)

	room, ok := o.Rooms.Get("abc123")
	req.True(ok)
	req.Equal("NYE again", room.Room().Title)
}

func TestJoinRoom_UnknownIDYieldsSingleErrorAndNoMutation(t *testing.T) {
	req := require.New(t)
	o, _ := newTestOrch()
	connA := bind(o, "A")

	o.JoinRoom("A", domain.JoinRoomPayload{RoomID: "nope", Username: "Alice"})

	errs := connA.events(t, domain.EventError)
	req.Len(errs, 1)
	var msg string
	req.NoError(json.Unmarshal(errs[0], &msg))
	req.Equal("Room not found", msg)

	req.Empty(connA.events(t, domain.EventRoomData))
	req.Empty(connA.events(t, domain.EventParticipantsUpdate))
}

func TestJoinRoom_Scenario(t *testing.T) {
	req := require.New(t)
	o, _ := newTestOrch()
	connA := bind(o, "A")
	connB := bind(o, "B")

	o.CreateRoom("A", nye)

	// Alice joins first and sees herself alone.
	o.JoinRoom("A", domain.JoinRoomPayload{RoomID: "abc123", Username: "Alice"})
	roomData := connA.events(t, domain.EventRoomData)
	req.Len(roomData, 1)
	var rd domain.RoomData
	req.NoError(json.Unmarshal(roomData[0], &rd))
	req.Equal("NYE", rd.Title)
	req.Equal(1, rd.Participants)
	req.True(rd.TargetDate.Equal(nye.TargetDate))

	// Bob joins; both converge on a count of two.
	o.JoinRoom("B", domain.JoinRoomPayload{RoomID: "abc123", Username: "Bob"})
	req.Equal(2, connA.lastParticipants(t))
	req.Equal(2, connB.lastParticipants(t))

	users := connB.events(t, domain.EventUsersUpdate)
	req.NotEmpty(users)
	var u domain.UsersData
	req.NoError(json.Unmarshal(users[len(users)-1], &u))
	req.Len(u.Users, 2)
}

func TestSendInteraction_BroadcastIncludesSender(t *testing.T) {
	req := require.New(t)
	o, _ := newTestOrch()
	connA := bind(o, "A")
	connB := bind(o, "B")
	o.CreateRoom("A", nye)
	o.JoinRoom("A", domain.JoinRoomPayload{RoomID: "abc123", Username: "Alice"})
	o.JoinRoom("B", domain.JoinRoomPayload{RoomID: "abc123", Username: "Bob"})

	o.SendInteraction("A", domain.InteractionPayload{RoomID: "abc123", Type: "emoji", Content: "🎉"})

	for _, conn := range []*capConn{connA, connB} {
		got := conn.events(t, domain.EventReceiveInteraction)
		req.Len(got, 1)
		var ia domain.Interaction
		req.NoError(json.Unmarshal(got[0], &ia))
		req.Equal("emoji", ia.Type)
		req.Equal("🎉", ia.Content)
		req.Equal("A", ia.SenderID)
	}
}

func TestSendMessage_CarriesIdentityAndClockTimestamp(t *testing.T) {
	req := require.New(t)
	o, clock := newTestOrch()
	bind(o, "A")
	connB := bind(o, "B")
	o.CreateRoom("A", nye)
	o.JoinRoom("A", domain.JoinRoomPayload{RoomID: "abc123", Username: "Alice"})
	o.JoinRoom("B", domain.JoinRoomPayload{RoomID: "abc123", Username: "Bob"})

	o.SendMessage("A", domain.MessagePayload{RoomID: "abc123", Message: "almost midnight"})

	got := connB.events(t, domain.EventReceiveMessage)
	req.Len(got, 1)
	var msg domain.ChatMessage
	req.NoError(json.Unmarshal(got[0], &msg))
	req.NotEmpty(msg.ID)
	req.Equal("A", msg.SenderID)
	req.Equal("Alice", msg.Username)
	req.Equal("almost midnight", msg.Text)
	req.True(msg.Timestamp.Equal(clock.Now().UTC()))
}

func TestRelay_DeliversToTargetOnlyWithStampedSender(t *testing.T) {
	req := require.New(t)
	o, _ := newTestOrch()
	connA := bind(o, "A")
	connB := bind(o, "B")
	connC := bind(o, "C")

	payload := json.RawMessage(`{"sdp":"opaque-blob"}`)
	o.Relay("A", domain.SignalPayload{TargetID: "B", SignalData: payload})

	got := connB.events(t, domain.EventSignal)
	req.Len(got, 1)
	var env domain.SignalEnvelope
	req.NoError(json.Unmarshal(got[0], &env))
	req.Equal("A", env.SenderID)
	req.JSONEq(string(payload), string(env.SignalData))

	req.Empty(connA.events(t, domain.EventSignal))
	req.Empty(connC.events(t, domain.EventSignal))
}

func TestRelay_MissingTargetIsSilentlyDropped(t *testing.T) {
	req := require.New(t)
	o, _ := newTestOrch()
	connA := bind(o, "A")

	o.Relay("A", domain.SignalPayload{TargetID: "gone", SignalData: json.RawMessage(`{}`)})

	connA.mu.Lock()
	defer connA.mu.Unlock()
	req.Empty(connA.frames)
}

func TestJoinVoice_NotifiesOnlyExistingVoiceMembers(t *testing.T) {
	req := require.New(t)
	o, _ := newTestOrch()
	connA := bind(o, "A")
	connB := bind(o, "B")
	connC := bind(o, "C")
	o.CreateRoom("A", nye)
	for _, id := range []string{"A", "B", "C"} {
		o.JoinRoom(core.SessionID(id), domain.JoinRoomPayload{RoomID: "abc123"})
	}

	// First voice joiner: nobody to notify.
	o.JoinVoice("A", "abc123")
	req.Empty(connA.events(t, domain.EventUserJoinedVoice))

	// Second: only A hears about B.
	o.JoinVoice("B", "abc123")
	joinedAtA := connA.events(t, domain.EventUserJoinedVoice)
	req.Len(joinedAtA, 1)
	var peer domain.VoicePeer
	req.NoError(json.Unmarshal(joinedAtA[0], &peer))
	req.Equal("B", peer.ID)
	req.Empty(connB.events(t, domain.EventUserJoinedVoice))
	req.Empty(connC.events(t, domain.EventUserJoinedVoice))

	// Third: both A and B hear about C, once each.
	o.JoinVoice("C", "abc123")
	req.Len(connA.events(t, domain.EventUserJoinedVoice), 2)
	req.Len(connB.events(t, domain.EventUserJoinedVoice), 1)
}

func TestJoinVoice_ConcurrentJoinersAlwaysPair(t *testing.T) {
	req := require.New(t)
	for i := 0; i < 200; i++ {
		o, _ := newTestOrch()
		connA := bind(o, "A")
		connB := bind(o, "B")
		o.CreateRoom("A", nye)
		o.JoinRoom("A", domain.JoinRoomPayload{RoomID: "abc123"})
		o.JoinRoom("B", domain.JoinRoomPayload{RoomID: "abc123"})

		start := make(chan struct{})
		var wg sync.WaitGroup
		for _, id := range []core.SessionID{"A", "B"} {
			wg.Add(1)
			go func(id core.SessionID) {
				defer wg.Done()
				<-start
				o.JoinVoice(id, "abc123")
			}(id)
		}
		close(start)
		wg.Wait()

		// Whoever lands second must learn about the first; a race where
		// both snapshot an empty voice set would leave the pair with no
		// offer in either direction.
		total := len(connA.events(t, domain.EventUserJoinedVoice)) +
			len(connB.events(t, domain.EventUserJoinedVoice))
		req.Equal(1, total, "iteration %d", i)
	}
}

func TestBroadcast_KickPolicyCancelsSlowSessions(t *testing.T) {
	req := require.New(t)
	o, _ := newTestOrch()
	o.Policy = KickPolicy{}
	bind(o, "A")

	slowConn := &capConn{full: true}
	slowUser := domain.NewUser("slow", "")
	cancelled := false
	o.Registry.Bind("slow", slowUser,
		core.NewMemberSession(domain.NewMember(slowUser), slowConn),
		func() { cancelled = true })

	o.CreateRoom("A", nye)
	o.JoinRoom("A", domain.JoinRoomPayload{RoomID: "abc123"})
	o.JoinRoom("slow", domain.JoinRoomPayload{RoomID: "abc123"})

	req.True(cancelled, "overflowing member should have its session cancelled")
}

func TestLeaveVoice_NotifiesRemainingVoiceMembers(t *testing.T) {
	req := require.New(t)
	o, _ := newTestOrch()
	connA := bind(o, "A")
	bind(o, "B")
	o.CreateRoom("A", nye)
	o.JoinRoom("A", domain.JoinRoomPayload{RoomID: "abc123"})
	o.JoinRoom("B", domain.JoinRoomPayload{RoomID: "abc123"})
	o.JoinVoice("A", "abc123")
	o.JoinVoice("B", "abc123")

	o.LeaveVoice("B", "abc123")

	left := connA.events(t, domain.EventUserLeftVoice)
	req.Len(left, 1)
	var peer domain.VoicePeer
	req.NoError(json.Unmarshal(left[0], &peer))
	req.Equal("B", peer.ID)
}

func TestLeaveRoom_WithoutJoinFloorsAtZero(t *testing.T) {
	req := require.New(t)
	o, _ := newTestOrch()
	bind(o, "A")
	o.CreateRoom("A", nye)

	o.LeaveRoom("A", "abc123")
	o.LeaveRoom("A", "abc123")

	room, ok := o.Rooms.Get("abc123")
	req.True(ok)
	req.Zero(room.ParticipantCount())
}

func TestOnDisconnect_CleansEveryRoomAndVoiceExactlyOnce(t *testing.T) {
	req := require.New(t)
	o, _ := newTestOrch()
	bind(o, "S")
	connX := bind(o, "X") // shares R1, voice-active
	connY := bind(o, "Y") // shares R2 only

	r1 := nye
	r1.RoomID = "r1"
	r2 := nye
	r2.RoomID = "r2"
	o.CreateRoom("S", r1)
	o.CreateRoom("S", r2)

	o.JoinRoom("S", domain.JoinRoomPayload{RoomID: "r1"})
	o.JoinRoom("S", domain.JoinRoomPayload{RoomID: "r2"})
	o.JoinRoom("X", domain.JoinRoomPayload{RoomID: "r1"})
	o.JoinRoom("Y", domain.JoinRoomPayload{RoomID: "r2"})
	o.JoinVoice("X", "r1")
	o.JoinVoice("S", "r1")

	xUpdates := len(connX.events(t, domain.EventParticipantsUpdate))
	yUpdates := len(connY.events(t, domain.EventParticipantsUpdate))

	o.OnDisconnect("S")

	// Exactly one presence update per shared room, one voice teardown.
	req.Len(connX.events(t, domain.EventParticipantsUpdate), xUpdates+1)
	req.Len(connY.events(t, domain.EventParticipantsUpdate), yUpdates+1)
	left := connX.events(t, domain.EventUserLeftVoice)
	req.Len(left, 1)
	var peer domain.VoicePeer
	req.NoError(json.Unmarshal(left[0], &peer))
	req.Equal("S", peer.ID)
	req.Empty(connY.events(t, domain.EventUserLeftVoice))
	req.Equal(1, connX.lastParticipants(t))
	req.Equal(1, connY.lastParticipants(t))

	// A second disconnect for the same sid is a no-op.
	before := len(connX.events(t, domain.EventParticipantsUpdate))
	o.OnDisconnect("S")
	req.Len(connX.events(t, domain.EventParticipantsUpdate), before)
}
