package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Countdown/internal/domain"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
//
// The participant counter is kept next to the roster rather than derived
// from it: a leave for a session that never joined still decrements the
// counter (floored at zero), matching the reference behavior. Matched
// add/remove sequences keep counter == len(roster).
type roomImpl struct {
	room *domain.Room

	mu           sync.RWMutex
	bySID        map[SessionID]MemberSession
	participants int
}

func NewRoomService(room *domain.Room) RoomService {
	return &roomImpl{
		room:  room,
		bySID: make(map[SessionID]MemberSession),
	}
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) ParticipantCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.participants
}

func (r *roomImpl) AddMember(sid SessionID, ms MemberSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bySID[sid]; ok {
		return
	}
	r.bySID[sid] = ms
	r.participants++
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(sid)).Int("participants", r.participants).Msg("member added")
}

func (r *roomImpl) RemoveMember(sid SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bySID, sid)
	if r.participants > 0 {
		r.participants--
	}
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(sid)).Int("participants", r.participants).Msg("member removed")
}

// BroadcastAll fans a frame out to every member, sender included; the
// reference emits to the whole room and leaves echo filtering to the UI.
func (r *roomImpl) BroadcastAll(data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for sid, m := range r.bySID {
		if err := m.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, sid)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.room.ID)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *roomImpl) MembersSnapshot() []domain.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.User, 0, len(r.bySID))
	for _, ms := range r.bySID {
		out = append(out, *ms.Meta().User)
	}
	return out
}

func (r *roomImpl) Snapshot() domain.RoomData {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]domain.User, 0, len(r.bySID))
	for _, ms := range r.bySID {
		users = append(users, *ms.Meta().User)
	}
	return domain.RoomData{
		Title:        r.room.Title,
		TargetDate:   r.room.TargetDate,
		Participants: r.participants,
		Users:        users,
	}
}
