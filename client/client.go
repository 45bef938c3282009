package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Countdown/internal/domain"
)

// Handlers receive server events the mesh does not consume. Nil funcs
// are skipped.
type Handlers struct {
	OnRoomCreated  func(roomID string)
	OnRoomData     func(domain.RoomData)
	OnParticipants func(count int)
	OnUsers        func([]domain.User)
	OnMessage      func(domain.ChatMessage)
	OnInteraction  func(domain.Interaction)
	OnError        func(msg string)
}

// Client is one connection to the server. All voice events are routed
// into the Mesh; everything else goes to Handlers.
type Client struct {
	conn     *websocket.Conn
	handlers Handlers
	mesh     *Mesh

	writeMu sync.Mutex

	idMu  sync.RWMutex
	id    string
	ready chan struct{}
	done  chan struct{}
}

// Dial connects to the server's /ws endpoint and waits for the connected
// handshake that carries the session id.
func Dial(ctx context.Context, url string, handlers Handlers, factory LinkFactory) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &Client{
		conn:     conn,
		handlers: handlers,
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
	c.mesh = NewMesh(c, factory)
	go c.readLoop()

	select {
	case <-c.ready:
		return c, nil
	case <-ctx.Done():
		_ = conn.Close()
		return nil, ctx.Err()
	case <-c.done:
		return nil, fmt.Errorf("connection closed before handshake")
	}
}

// ID is the session id the server assigned to this connection.
func (c *Client) ID() string {
	c.idMu.RLock()
	defer c.idMu.RUnlock()
	return c.id
}

// Mesh exposes the peer manager for mute/deafen and link inspection.
func (c *Client) Mesh() *Mesh { return c.mesh }

// Done closes when the read loop exits.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) send(event domain.EventName, data any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(domain.Envelope{Event: event, Data: data})
}

// Signal implements SignalSender for the mesh.
func (c *Client) Signal(targetID string, payload json.RawMessage) error {
	return c.send(domain.EventSignal, domain.SignalPayload{TargetID: targetID, SignalData: payload})
}

func (c *Client) CreateRoom(roomID, title string, targetDate time.Time) error {
	return c.send(domain.EventCreateRoom, domain.CreateRoomPayload{
		RoomID:     roomID,
		Title:      title,
		TargetDate: targetDate,
	})
}

func (c *Client) JoinRoom(roomID, username string) error {
	return c.send(domain.EventJoinRoom, domain.JoinRoomPayload{RoomID: roomID, Username: username})
}

func (c *Client) LeaveRoom(roomID string) error {
	return c.send(domain.EventLeaveRoom, domain.RoomRefPayload{RoomID: roomID})
}

func (c *Client) SendMessage(roomID, text string) error {
	return c.send(domain.EventSendMessage, domain.MessagePayload{RoomID: roomID, Message: text})
}

func (c *Client) SendInteraction(roomID, kind, content string) error {
	return c.send(domain.EventSendInteraction, domain.InteractionPayload{RoomID: roomID, Type: kind, Content: content})
}

// JoinVoice arms the mesh, then tells the server; existing voice members
// will come back as initiators through the relay.
func (c *Client) JoinVoice(roomID string) error {
	c.mesh.Activate()
	return c.send(domain.EventJoinVoice, domain.RoomRefPayload{RoomID: roomID})
}

// LeaveVoice tells the server first (so peers drop their mirrored links)
// and then destroys every local link.
func (c *Client) LeaveVoice(roomID string) error {
	err := c.send(domain.EventLeaveVoice, domain.RoomRefPayload{RoomID: roomID})
	c.mesh.Deactivate()
	return err
}

func (c *Client) Close() error {
	c.mesh.Deactivate()
	return c.conn.Close()
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Info().Err(err).Str("module", "client").Msg("read loop closed")
			return
		}
		c.dispatch(data)
	}
}

func (c *Client) dispatch(data []byte) {
	var frame domain.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Error().Err(err).Str("module", "client").Msg("bad server frame")
		return
	}

	switch frame.Event {
	case domain.EventConnected:
		var p domain.ConnectedData
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			return
		}
		c.idMu.Lock()
		if c.id == "" {
			c.id = p.ID
			close(c.ready)
		}
		c.idMu.Unlock()
	case domain.EventRoomCreated:
		var p domain.RoomCreatedData
		if err := json.Unmarshal(frame.Data, &p); err == nil && c.handlers.OnRoomCreated != nil {
			c.handlers.OnRoomCreated(p.RoomID)
		}
	case domain.EventRoomData:
		var p domain.RoomData
		if err := json.Unmarshal(frame.Data, &p); err == nil && c.handlers.OnRoomData != nil {
			c.handlers.OnRoomData(p)
		}
	case domain.EventParticipantsUpdate:
		var p domain.ParticipantsData
		if err := json.Unmarshal(frame.Data, &p); err == nil && c.handlers.OnParticipants != nil {
			c.handlers.OnParticipants(p.Participants)
		}
	case domain.EventUsersUpdate:
		var p domain.UsersData
		if err := json.Unmarshal(frame.Data, &p); err == nil && c.handlers.OnUsers != nil {
			c.handlers.OnUsers(p.Users)
		}
	case domain.EventReceiveMessage:
		var p domain.ChatMessage
		if err := json.Unmarshal(frame.Data, &p); err == nil && c.handlers.OnMessage != nil {
			c.handlers.OnMessage(p)
		}
	case domain.EventReceiveInteraction:
		var p domain.Interaction
		if err := json.Unmarshal(frame.Data, &p); err == nil && c.handlers.OnInteraction != nil {
			c.handlers.OnInteraction(p)
		}
	case domain.EventUserJoinedVoice:
		var p domain.VoicePeer
		if err := json.Unmarshal(frame.Data, &p); err == nil {
			c.mesh.HandlePeerJoined(p.ID)
		}
	case domain.EventUserLeftVoice:
		var p domain.VoicePeer
		if err := json.Unmarshal(frame.Data, &p); err == nil {
			c.mesh.HandlePeerLeft(p.ID)
		}
	case domain.EventSignal:
		var p domain.SignalEnvelope
		if err := json.Unmarshal(frame.Data, &p); err == nil {
			c.mesh.HandleSignal(p.SenderID, p.SignalData)
		}
	case domain.EventError:
		var msg string
		if err := json.Unmarshal(frame.Data, &msg); err == nil && c.handlers.OnError != nil {
			c.handlers.OnError(msg)
		}
	default:
		log.Warn().Str("module", "client").Str("event", string(frame.Event)).Msg("unknown server event")
	}
}
