// Package client is the Go client for the Countdown server: a thin WS
// event loop plus the full-mesh peer manager driven by the signaling
// relay. For N voice participants every pair negotiates one direct link;
// there is no media relay node.
package client

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
)

// Role of the local end of one peer link. The side already in voice
// initiates toward the newcomer; the newcomer responds.
type Role int

const (
	RoleInitiator Role = iota
	RoleResponder
)

func (r Role) String() string {
	if r == RoleInitiator {
		return "initiator"
	}
	return "responder"
}

// SignalSender relays one opaque payload to one remote session.
type SignalSender interface {
	Signal(targetID string, payload json.RawMessage) error
}

// PeerLink is one negotiated connection toward a remote participant.
// Offer and Accept return a single consolidated payload: ICE gathering
// completes before the payload exists, so there is exactly one signaling
// message per direction per link.
type PeerLink interface {
	Offer() (json.RawMessage, error)
	Accept(payload json.RawMessage) (json.RawMessage, error)
	Apply(payload json.RawMessage) error
	SetMuted(bool)
	SetDeafened(bool)
	Close()
}

// LinkFactory builds peer links; tests substitute an in-memory one.
type LinkFactory interface {
	NewLink(remoteID string, role Role) (PeerLink, error)
}

type meshLink struct {
	link PeerLink
	role Role
}

// Mesh keys exactly one PeerLink per remote participant by session id.
// Keying by sender id is what resolves the race between a locally
// created link and an incoming payload for the same peer.
type Mesh struct {
	sender  SignalSender
	factory LinkFactory

	mu       sync.Mutex
	links    map[string]*meshLink
	active   bool
	muted    bool
	deafened bool
}

func NewMesh(sender SignalSender, factory LinkFactory) *Mesh {
	return &Mesh{
		sender:  sender,
		factory: factory,
		links:   make(map[string]*meshLink),
	}
}

// Activate arms the mesh; voice events are ignored while inactive, the
// same way the reference only listens while in voice.
func (m *Mesh) Activate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = true
}

// Deactivate tears down every local link. The matching user_left_voice
// notification (sent by the caller via the server) is what lets each
// remote peer drop its mirrored link.
func (m *Mesh) Deactivate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ml := range m.links {
		ml.link.Close()
		delete(m.links, id)
	}
	m.active = false
}

// HandlePeerJoined starts an initiator negotiation toward a newcomer:
// build the link, produce the one-shot offer, relay it. A negotiation
// toward a peer that vanished is simply never answered; the dangling
// link is cleaned up only by an explicit leave/disconnect signal.
func (m *Mesh) HandlePeerJoined(remoteID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return
	}
	if _, ok := m.links[remoteID]; ok {
		return
	}
	link, err := m.factory.NewLink(remoteID, RoleInitiator)
	if err != nil {
		log.Error().Err(err).Str("module", "client.mesh").Str("peer", remoteID).Msg("new initiator link")
		return
	}
	link.SetMuted(m.muted)
	link.SetDeafened(m.deafened)
	m.links[remoteID] = &meshLink{link: link, role: RoleInitiator}

	payload, err := link.Offer()
	if err != nil {
		log.Error().Err(err).Str("module", "client.mesh").Str("peer", remoteID).Msg("offer failed")
		return
	}
	if err := m.sender.Signal(remoteID, payload); err != nil {
		log.Error().Err(err).Str("module", "client.mesh").Str("peer", remoteID).Msg("relay offer")
	}
}

// HandleSignal applies an incoming payload. An unknown sender means a
// fresh offer: create the responder link and relay the answer back. A
// known sender means the payload belongs to the existing link — never
// create a duplicate.
func (m *Mesh) HandleSignal(senderID string, payload json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return
	}
	if ml, ok := m.links[senderID]; ok {
		if err := ml.link.Apply(payload); err != nil {
			log.Error().Err(err).Str("module", "client.mesh").Str("peer", senderID).Msg("apply payload")
		}
		return
	}
	link, err := m.factory.NewLink(senderID, RoleResponder)
	if err != nil {
		log.Error().Err(err).Str("module", "client.mesh").Str("peer", senderID).Msg("new responder link")
		return
	}
	link.SetMuted(m.muted)
	link.SetDeafened(m.deafened)
	m.links[senderID] = &meshLink{link: link, role: RoleResponder}

	answer, err := link.Accept(payload)
	if err != nil {
		log.Error().Err(err).Str("module", "client.mesh").Str("peer", senderID).Msg("accept offer")
		return
	}
	if err := m.sender.Signal(senderID, answer); err != nil {
		log.Error().Err(err).Str("module", "client.mesh").Str("peer", senderID).Msg("relay answer")
	}
}

// HandlePeerLeft drops the mirrored link for a peer that left voice or
// disconnected. A link with no matching cleanup notification would leak.
func (m *Mesh) HandlePeerLeft(remoteID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ml, ok := m.links[remoteID]
	if !ok {
		return
	}
	ml.link.Close()
	delete(m.links, remoteID)
}

// SetMuted disables the local outgoing audio in place; no renegotiation.
func (m *Mesh) SetMuted(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = muted
	for _, ml := range m.links {
		ml.link.SetMuted(muted)
	}
}

// SetDeafened mutes local playback of all remote streams.
func (m *Mesh) SetDeafened(deafened bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deafened = deafened
	for _, ml := range m.links {
		ml.link.SetDeafened(deafened)
	}
}

// Links returns the current remote id -> role view, for UIs and tests.
func (m *Mesh) Links() map[string]Role {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Role, len(m.links))
	for id, ml := range m.links {
		out[id] = ml.role
	}
	return out
}
