package app

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Countdown/internal/core"
	"github.com/dkeye/Countdown/internal/domain"
)

// RoomManagerImpl is the in-memory room table. Create overwrites an
// existing id silently: the reference does the same and it is preserved
// as-is (see DESIGN.md).
type RoomManagerImpl struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]core.RoomService

	clock clockwork.Clock
	ttl   time.Duration
}

// NewRoomManager builds a manager. ttl > 0 enables the janitor started by
// StartJanitor; ttl == 0 keeps rooms for the life of the process, which is
// the reference behavior.
func NewRoomManager(clock clockwork.Clock, ttl time.Duration) *RoomManagerImpl {
	return &RoomManagerImpl{
		rooms: make(map[domain.RoomID]core.RoomService),
		clock: clock,
		ttl:   ttl,
	}
}

func (m *RoomManagerImpl) Create(room domain.Room) core.RoomService {
	room.CreatedAt = m.clock.Now().UTC()
	svc := core.NewRoomService(&room)
	m.mu.Lock()
	_, existed := m.rooms[room.ID]
	m.rooms[room.ID] = svc
	m.mu.Unlock()
	log.Info().Str("module", "app.rooms").Str("room", string(room.ID)).Str("title", room.Title).Bool("overwrote", existed).Msg("room created")
	return svc
}

func (m *RoomManagerImpl) Get(id domain.RoomID) (core.RoomService, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	return room, ok
}

func (m *RoomManagerImpl) List() []core.RoomInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(m.rooms))
	for id, r := range m.rooms {
		out = append(out, core.RoomInfo{ID: id, Title: r.Room().Title, Participants: r.ParticipantCount()})
	}
	return out
}

func (m *RoomManagerImpl) StopRoom(id domain.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, id)
}

// StartJanitor evicts rooms that are empty and whose target instant is
// more than ttl in the past. It does nothing when ttl == 0.
func (m *RoomManagerImpl) StartJanitor(ctx context.Context) {
	if m.ttl <= 0 {
		return
	}
	go func() {
		ticker := m.clock.NewTicker(m.ttl)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				m.sweep()
			}
		}
	}()
}

func (m *RoomManagerImpl) sweep() {
	cutoff := m.clock.Now().Add(-m.ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.rooms {
		if r.ParticipantCount() == 0 && r.Room().TargetDate.Before(cutoff) {
			delete(m.rooms, id)
			log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("expired room evicted")
		}
	}
}
