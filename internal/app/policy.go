package app

import "github.com/dkeye/Countdown/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
)

// Policy decides what happens to a member whose send buffer overflowed
// during a broadcast. The reference applies no backpressure at all, so
// the default policy does nothing; kicking is available for operators
// who prefer shedding slow consumers.
type Policy interface {
	OnBackPressure(room core.RoomService, sid core.SessionID) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(room core.RoomService, sid core.SessionID) BackpressureAction {
	return NoAction
}

type KickPolicy struct{}

func (KickPolicy) OnBackPressure(room core.RoomService, sid core.SessionID) BackpressureAction {
	return KickMember
}
