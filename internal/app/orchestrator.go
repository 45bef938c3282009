package app

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Countdown/internal/core"
	"github.com/dkeye/Countdown/internal/domain"
)

// ErrorRoomNotFound is the exact error string surfaced to a client that
// joins an unknown room id.
const ErrorRoomNotFound = "Room not found"

// Orchestrator coordinates the room table, the session registry and the
// fan-out paths. Each operation snapshots under the registry/room locks
// and fans out afterwards, so concurrent joins/leaves/disconnects on one
// room serialize the same way the reference's single-threaded dispatch
// did.
type Orchestrator struct {
	Registry *Registry
	Rooms    core.RoomManager
	Policy   Policy
	Clock    clockwork.Clock
}

func marshalEvent(event domain.EventName, data any) (core.Frame, bool) {
	b, err := json.Marshal(domain.Envelope{Event: event, Data: data})
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Str("event", string(event)).Msg("marshal event")
		return nil, false
	}
	return core.Frame(b), true
}

func (o *Orchestrator) sendTo(sess core.MemberSession, event domain.EventName, data any) {
	frame, ok := marshalEvent(event, data)
	if !ok {
		return
	}
	if err := sess.Signal().TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "app.orch").Str("event", string(event)).Msg("direct send dropped")
	}
}

func (o *Orchestrator) sendToSID(sid core.SessionID, event domain.EventName, data any) {
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return
	}
	o.sendTo(sess, event, data)
}

func (o *Orchestrator) broadcastRoom(room core.RoomService, event domain.EventName, data any) {
	frame, ok := marshalEvent(event, data)
	if !ok {
		return
	}
	res := room.BroadcastAll(frame)
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		if o.Policy.OnBackPressure(room, slow) == KickMember {
			o.Registry.CancelSession(slow)
		}
	}
}

// CreateRoom registers (or silently overwrites) a countdown room. Nobody
// joins by creating; the creator joins like everyone else.
func (o *Orchestrator) CreateRoom(sid core.SessionID, p domain.CreateRoomPayload) {
	o.Rooms.Create(domain.Room{
		ID:         domain.RoomID(p.RoomID),
		Title:      p.Title,
		TargetDate: p.TargetDate,
	})
	o.sendToSID(sid, domain.EventRoomCreated, domain.RoomCreatedData{RoomID: p.RoomID})
}

func (o *Orchestrator) JoinRoom(sid core.SessionID, p domain.JoinRoomPayload) {
	roomID := domain.RoomID(p.RoomID)
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		log.Warn().Str("module", "app.orch").Str("sid", string(sid)).Str("room", p.RoomID).Msg("join against unknown room")
		o.sendToSID(sid, domain.EventError, ErrorRoomNotFound)
		return
	}
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return
	}
	if err := o.Registry.UpdateUsername(sid, p.Username); err != nil {
		log.Warn().Err(err).Str("module", "app.orch").Str("sid", string(sid)).Msg("username rejected, keeping previous")
	}

	room.AddMember(sid, sess)
	o.Registry.AddRoom(sid, roomID)

	o.sendTo(sess, domain.EventRoomData, room.Snapshot())
	o.broadcastPresence(room)
	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("room", p.RoomID).Msg("joined room")
}

func (o *Orchestrator) LeaveRoom(sid core.SessionID, roomID domain.RoomID) {
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return
	}
	room.RemoveMember(sid)
	o.Registry.RemoveRoom(sid, roomID)
	o.broadcastPresence(room)
	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(roomID)).Msg("left room")
}

// SendInteraction broadcasts an ephemeral reaction to the whole room,
// sender included; echo filtering belongs to the UI.
func (o *Orchestrator) SendInteraction(sid core.SessionID, p domain.InteractionPayload) {
	room, ok := o.Rooms.Get(domain.RoomID(p.RoomID))
	if !ok {
		return
	}
	o.broadcastRoom(room, domain.EventReceiveInteraction, domain.Interaction{
		Type:     p.Type,
		Content:  p.Content,
		SenderID: string(sid),
	})
}

func (o *Orchestrator) SendMessage(sid core.SessionID, p domain.MessagePayload) {
	room, ok := o.Rooms.Get(domain.RoomID(p.RoomID))
	if !ok {
		return
	}
	username := domain.AnonymousName
	if user, ok := o.Registry.UserOf(sid); ok {
		username = user.Username
	}
	o.broadcastRoom(room, domain.EventReceiveMessage, domain.ChatMessage{
		ID:        uuid.NewString(),
		SenderID:  string(sid),
		Username:  username,
		Text:      p.Message,
		Timestamp: o.Clock.Now().UTC(),
	})
}

// JoinVoice marks the newcomer voice-active and notifies every member
// that was already voice-active, so each of them starts an initiator
// negotiation toward the newcomer. Marking and snapshotting the prior
// members is a single registry operation; racing joiners always end up
// with one side notified about the other.
func (o *Orchestrator) JoinVoice(sid core.SessionID, roomID domain.RoomID) {
	for _, peer := range o.Registry.MarkVoice(sid, roomID) {
		o.sendTo(peer.Session, domain.EventUserJoinedVoice, domain.VoicePeer{ID: string(sid)})
	}
}

func (o *Orchestrator) LeaveVoice(sid core.SessionID, roomID domain.RoomID) {
	o.Registry.ClearVoice(sid, roomID)
	o.notifyVoiceLeft(sid, roomID)
}

func (o *Orchestrator) notifyVoiceLeft(sid core.SessionID, roomID domain.RoomID) {
	for _, peer := range o.Registry.VoiceMembersOfRoom(roomID) {
		if peer.SID == sid {
			continue
		}
		o.sendTo(peer.Session, domain.EventUserLeftVoice, domain.VoicePeer{ID: string(sid)})
	}
}

// Relay delivers an opaque negotiation payload to exactly one session.
// The sender id is stamped from the authenticated session; a missing
// target drops the envelope silently (fire-and-forget, as in the
// reference). The payload is never parsed and never broadcast.
func (o *Orchestrator) Relay(sid core.SessionID, p domain.SignalPayload) {
	target, ok := o.Registry.GetSession(core.SessionID(p.TargetID))
	if !ok {
		log.Debug().Str("module", "app.orch").Str("sid", string(sid)).Str("target", p.TargetID).Msg("relay target offline, dropped")
		return
	}
	o.sendTo(target, domain.EventSignal, domain.SignalEnvelope{
		SenderID:   string(sid),
		SignalData: p.SignalData,
	})
}

// OnDisconnect runs the full cleanup for a closed transport: voice peers
// are told to tear down their mirrored links, every room the session sat
// in loses a participant, presence is re-broadcast. Drain guarantees all
// of this happens exactly once per sid.
func (o *Orchestrator) OnDisconnect(sid core.SessionID) {
	rooms, voice, ok := o.Registry.Drain(sid)
	if !ok {
		return
	}
	for _, roomID := range voice {
		o.notifyVoiceLeft(sid, roomID)
	}
	for _, roomID := range rooms {
		room, ok := o.Rooms.Get(roomID)
		if !ok {
			continue
		}
		room.RemoveMember(sid)
		o.broadcastPresence(room)
	}
	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Msg("disconnected")
}
