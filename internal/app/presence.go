package app

import (
	"github.com/dkeye/Countdown/internal/core"
	"github.com/dkeye/Countdown/internal/domain"
)

// broadcastPresence pushes the membership count and the roster to every
// member of a room. Called after each registry mutation that touched the
// room, so all members converge on the same view.
func (o *Orchestrator) broadcastPresence(room core.RoomService) {
	o.broadcastRoom(room, domain.EventParticipantsUpdate, domain.ParticipantsData{
		Participants: room.ParticipantCount(),
	})
	o.broadcastRoom(room, domain.EventUsersUpdate, domain.UsersData{
		Users: room.MembersSnapshot(),
	})
}
