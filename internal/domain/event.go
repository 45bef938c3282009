package domain

import (
	"encoding/json"
	"time"
)

// EventName is the closed set of wire events. Dispatch happens through a
// single switch so a new event cannot be forgotten silently.
type EventName string

// Client -> server.
const (
	EventCreateRoom      EventName = "create_room"
	EventJoinRoom        EventName = "join_room"
	EventLeaveRoom       EventName = "leave_room"
	EventSendInteraction EventName = "send_interaction"
	EventSendMessage     EventName = "send_message"
	EventJoinVoice       EventName = "join_voice"
	EventLeaveVoice      EventName = "leave_voice"
	EventSignal          EventName = "signal"
)

// Server -> client.
const (
	EventConnected          EventName = "connected"
	EventRoomCreated        EventName = "room_created"
	EventRoomData           EventName = "room_data"
	EventParticipantsUpdate EventName = "participants_update"
	EventUsersUpdate        EventName = "users_update"
	EventReceiveInteraction EventName = "receive_interaction"
	EventReceiveMessage     EventName = "receive_message"
	EventUserJoinedVoice    EventName = "user_joined_voice"
	EventUserLeftVoice      EventName = "user_left_voice"
	EventError              EventName = "error"
)

// Frame is the wire envelope. Payloads stay raw until the event name is
// known; interaction payloads carry their own "type" field, so the
// envelope keeps event routing out of the payload namespace.
type Frame struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Envelope is the outbound counterpart of Frame.
type Envelope struct {
	Event EventName `json:"event"`
	Data  any       `json:"data,omitempty"`
}

// Client -> server payloads.

type CreateRoomPayload struct {
	RoomID     string    `json:"roomId"`
	Title      string    `json:"title"`
	TargetDate time.Time `json:"targetDate"`
}

type JoinRoomPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username,omitempty"`
}

// RoomRefPayload covers leave_room, join_voice and leave_voice, which all
// carry just the room id.
type RoomRefPayload struct {
	RoomID string `json:"roomId"`
}

type InteractionPayload struct {
	RoomID  string `json:"roomId"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

type MessagePayload struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

type SignalPayload struct {
	TargetID   string          `json:"targetId"`
	SignalData json.RawMessage `json:"signalData"`
}

// Server -> client payloads.

type ConnectedData struct {
	ID string `json:"id"`
}

type RoomCreatedData struct {
	RoomID string `json:"roomId"`
}

type RoomData struct {
	Title        string    `json:"title"`
	TargetDate   time.Time `json:"targetDate"`
	Participants int       `json:"participants"`
	Users        []User    `json:"users"`
}

type ParticipantsData struct {
	Participants int `json:"participants"`
}

type UsersData struct {
	Users []User `json:"users"`
}

// Interaction is ephemeral: broadcast once, never stored.
type Interaction struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	SenderID string `json:"senderId"`
}

type ChatMessage struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"senderId"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// VoicePeer identifies the session that joined or left voice.
type VoicePeer struct {
	ID string `json:"id"`
}

// SignalEnvelope routes an opaque negotiation payload between two
// sessions. SenderID is stamped by the relay from the authenticated
// session, never taken from the client. SignalData is never inspected.
type SignalEnvelope struct {
	SenderID   string          `json:"senderId"`
	SignalData json.RawMessage `json:"signalData"`
}
