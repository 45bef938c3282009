package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Countdown/internal/core"
	"github.com/dkeye/Countdown/internal/domain"
)

type sessionEntry struct {
	User    *domain.User
	Session core.MemberSession
	Rooms   map[domain.RoomID]struct{}
	Voice   map[domain.RoomID]struct{}
	Cancel  context.CancelFunc
}

// Registry tracks every live session: identity, room memberships and
// voice participation. The protocol assumes one room per session, but the
// membership is kept as a set so disconnect cleanup can walk everything
// the transport actually joined.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[core.SessionID]*sessionEntry)}
}

func (r *Registry) Bind(sid core.SessionID, user *domain.User, sess core.MemberSession, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &sessionEntry{
		User:    user,
		Session: sess,
		Rooms:   make(map[domain.RoomID]struct{}),
		Voice:   make(map[domain.RoomID]struct{}),
		Cancel:  cancel,
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound session")
}

func (r *Registry) GetSession(sid core.SessionID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Session, true
	}
	return nil, false
}

func (r *Registry) UserOf(sid core.SessionID) (*domain.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.User, true
	}
	return nil, false
}

func (r *Registry) UpdateUsername(sid core.SessionID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return nil
	}
	if err := e.User.SetUsername(name); err != nil {
		return err
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("username", e.User.Username).Msg("updated username")
	return nil
}

func (r *Registry) AddRoom(sid core.SessionID, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		e.Rooms[roomID] = struct{}{}
	}
}

func (r *Registry) RemoveRoom(sid core.SessionID, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		delete(e.Rooms, roomID)
	}
}

type regSnap struct {
	SID     core.SessionID
	Session core.MemberSession
}

// MarkVoice marks the session voice-active in a room and returns the
// sessions that were already voice-active there. Snapshot and mark
// happen under one lock: two racing joiners cannot both see an empty
// voice set, so one of them always learns about the other.
func (r *Registry) MarkVoice(sid core.SessionID, roomID domain.RoomID) []regSnap {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return nil
	}
	peers := make([]regSnap, 0, len(r.sessions))
	for other, oe := range r.sessions {
		if other == sid {
			continue
		}
		if _, ok := oe.Voice[roomID]; ok {
			peers = append(peers, regSnap{SID: other, Session: oe.Session})
		}
	}
	e.Voice[roomID] = struct{}{}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(roomID)).Bool("voice", true).Msg("voice state")
	return peers
}

func (r *Registry) ClearVoice(sid core.SessionID, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return
	}
	delete(e.Voice, roomID)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(roomID)).Bool("voice", false).Msg("voice state")
}

// VoiceMembersOfRoom lists sessions currently voice-active in a room.
func (r *Registry) VoiceMembersOfRoom(roomID domain.RoomID) []regSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]regSnap, 0, len(r.sessions))
	for sid, e := range r.sessions {
		if _, ok := e.Voice[roomID]; ok {
			out = append(out, regSnap{SID: sid, Session: e.Session})
		}
	}
	return out
}

// Drain removes the entry and hands back its final room and voice sets.
// It succeeds at most once per sid, which makes disconnect cleanup
// idempotent no matter how many layers report the same close.
func (r *Registry) Drain(sid core.SessionID) (rooms, voice []domain.RoomID, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return nil, nil, false
	}
	delete(r.sessions, sid)
	for id := range e.Rooms {
		rooms = append(rooms, id)
	}
	for id := range e.Voice {
		voice = append(voice, id)
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Int("rooms", len(rooms)).Int("voice", len(voice)).Msg("drained session")
	return rooms, voice, true
}

// CancelSession fires the connection-scoped cancel func, if any.
func (r *Registry) CancelSession(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	return true
}
