package domain

import "time"

type RoomID string

// Room is the countdown record itself. The roster lives in core; this is
// only the meta a client needs to render the countdown.
type Room struct {
	ID         RoomID
	Title      string
	TargetDate time.Time
	CreatedAt  time.Time
}
