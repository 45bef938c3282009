package core

import (
	"github.com/dkeye/Countdown/internal/domain"
)

// Frame is a marshaled wire envelope ready to go out on a transport.
type Frame []byte

// SessionID identifies one live connection. It is minted by the transport
// layer and reused for nothing else.
type SessionID string

// SignalConnection abstracts the system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// MemberSession binds domain.Member and its transport endpoint.
// This is what a room stores and fans out to.
type MemberSession interface {
	Meta() *domain.Member
	Signal() SignalConnection
}

// memberSession implements MemberSession by pairing meta + transport.
type memberSession struct {
	meta *domain.Member
	conn SignalConnection
}

func NewMemberSession(meta *domain.Member, conn SignalConnection) MemberSession {
	return &memberSession{meta: meta, conn: conn}
}

func (m *memberSession) Meta() *domain.Member     { return m.meta }
func (m *memberSession) Signal() SignalConnection { return m.conn }

// PublishResult reports delivery stats/backpressure to the orchestrator.
type PublishResult struct {
	SentTo  int
	Dropped []SessionID
}

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Room() *domain.Room
	ParticipantCount() int
	MembersSnapshot() []domain.User
	Snapshot() domain.RoomData

	AddMember(sid SessionID, ms MemberSession)
	RemoveMember(sid SessionID)
	BroadcastAll(data Frame) PublishResult
}

type RoomInfo struct {
	ID           domain.RoomID `json:"roomId"`
	Title        string        `json:"title"`
	Participants int           `json:"participants"`
}

type RoomManager interface {
	Create(room domain.Room) RoomService
	Get(id domain.RoomID) (RoomService, bool)
	List() []RoomInfo
	StopRoom(id domain.RoomID)
}
