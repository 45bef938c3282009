package app

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Countdown/internal/core"
	"github.com/dkeye/Countdown/internal/domain"
)

func TestRoomManager_CreateOverwritesSilently(t *testing.T) {
	req := require.New(t)
	m := NewRoomManager(clockwork.NewFakeClock(), 0)

	m.Create(domain.Room{ID: "abc123", Title: "first"})
	m.Create(domain.Room{ID: "abc123", Title: "second"})

	room, ok := m.Get("abc123")
	req.True(ok)
	req.Equal("second", room.Room().Title)
	req.Len(m.List(), 1)
}

func TestRoomManager_SweepEvictsOnlyStaleEmptyRooms(t *testing.T) {
	req := require.New(t)
	base := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(base)
	m := NewRoomManager(clock, time.Hour)

	// Long past its target and empty: eligible.
	m.Create(domain.Room{ID: "stale", TargetDate: base.Add(-2 * time.Hour)})
	// Past its target but occupied: kept.
	occupied := m.Create(domain.Room{ID: "busy", TargetDate: base.Add(-2 * time.Hour)})
	user := domain.NewUser("a", "a")
	occupied.AddMember("a", core.NewMemberSession(domain.NewMember(user), nopConn{}))
	// Target still ahead: kept.
	m.Create(domain.Room{ID: "future", TargetDate: base.Add(24 * time.Hour)})

	m.sweep()

	_, ok := m.Get("stale")
	req.False(ok)
	_, ok = m.Get("busy")
	req.True(ok)
	_, ok = m.Get("future")
	req.True(ok)
}

type nopConn struct{}

func (nopConn) TrySend(core.Frame) error { return nil }
func (nopConn) Close()                   {}

func TestRoomManager_JanitorRunsOnTicker(t *testing.T) {
	req := require.New(t)
	base := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(base)
	m := NewRoomManager(clock, time.Hour)
	m.Create(domain.Room{ID: "stale", TargetDate: base.Add(-2 * time.Hour)})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx)

	clock.BlockUntil(1)
	clock.Advance(2 * time.Hour)

	req.Eventually(func() bool {
		_, ok := m.Get("stale")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestRoomManager_ZeroTTLKeepsRoomsForever(t *testing.T) {
	req := require.New(t)
	base := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(base)
	m := NewRoomManager(clock, 0)
	m.Create(domain.Room{ID: "stale", TargetDate: base.Add(-240 * time.Hour)})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx) // no-op with ttl == 0

	_, ok := m.Get("stale")
	req.True(ok)
}
