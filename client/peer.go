package client

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"
)

// WebRTCLinkFactory builds pion-backed peer links. OnAudio, when set,
// receives decoded-side RTP payloads from remote peers; deafen gates it.
type WebRTCLinkFactory struct {
	Config  webrtc.Configuration
	OnAudio func(remoteID string, payload []byte)
}

func NewWebRTCLinkFactory() *WebRTCLinkFactory {
	return &WebRTCLinkFactory{
		Config: webrtc.Configuration{
			ICEServers: []webrtc.ICEServer{
				{URLs: []string{"stun:stun.l.google.com:19302"}},
			},
		},
	}
}

func (f *WebRTCLinkFactory) NewLink(remoteID string, role Role) (PeerLink, error) {
	pc, err := webrtc.NewPeerConnection(f.Config)
	if err != nil {
		return nil, err
	}

	l := &webrtcLink{pc: pc, remoteID: remoteID, role: role, onAudio: f.OnAudio}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", "countdown",
	)
	if err != nil {
		_ = pc.Close()
		return nil, err
	}
	if _, err := pc.AddTrack(track); err != nil {
		_ = pc.Close()
		return nil, err
	}
	l.track = track

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "client.peer").Str("peer", remoteID).Str("role", role.String()).Str("ice_state", s.String()).Msg("ICE state")
	})

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		go l.readRemote(remote)
	})

	return l, nil
}

// webrtcLink wraps one pion PeerConnection. Mute gates the outgoing
// sample writer in place; deafen gates delivery of remote payloads.
// Neither touches the negotiated state.
type webrtcLink struct {
	pc       *webrtc.PeerConnection
	track    *webrtc.TrackLocalStaticSample
	remoteID string
	role     Role
	onAudio  func(remoteID string, payload []byte)

	mu       sync.RWMutex
	muted    bool
	deafened bool
}

// Offer produces the single consolidated offer: local description is set
// first, then ICE gathering runs to completion, and only the final
// candidate-bearing SDP goes out.
func (l *webrtcLink) Offer() (json.RawMessage, error) {
	offer, err := l.pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	gatherComplete := webrtc.GatheringCompletePromise(l.pc)
	if err := l.pc.SetLocalDescription(offer); err != nil {
		return nil, err
	}
	<-gatherComplete
	return json.Marshal(l.pc.LocalDescription())
}

func (l *webrtcLink) Accept(payload json.RawMessage) (json.RawMessage, error) {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &offer); err != nil {
		return nil, err
	}
	if err := l.pc.SetRemoteDescription(offer); err != nil {
		return nil, err
	}
	answer, err := l.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	gatherComplete := webrtc.GatheringCompletePromise(l.pc)
	if err := l.pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	<-gatherComplete
	return json.Marshal(l.pc.LocalDescription())
}

func (l *webrtcLink) Apply(payload json.RawMessage) error {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(payload, &desc); err != nil {
		return err
	}
	return l.pc.SetRemoteDescription(desc)
}

func (l *webrtcLink) SetMuted(muted bool) {
	l.mu.Lock()
	l.muted = muted
	l.mu.Unlock()
}

func (l *webrtcLink) SetDeafened(deafened bool) {
	l.mu.Lock()
	l.deafened = deafened
	l.mu.Unlock()
}

// WriteAudio pushes one locally captured opus sample to the remote peer.
// While muted the sample is dropped; the track stays attached.
func (l *webrtcLink) WriteAudio(data []byte, duration time.Duration) error {
	l.mu.RLock()
	muted := l.muted
	l.mu.RUnlock()
	if muted {
		return nil
	}
	return l.track.WriteSample(media.Sample{Data: data, Duration: duration})
}

func (l *webrtcLink) readRemote(remote *webrtc.TrackRemote) {
	for {
		pkt, _, err := remote.ReadRTP()
		if err != nil {
			return
		}
		l.mu.RLock()
		deafened := l.deafened
		l.mu.RUnlock()
		if deafened || l.onAudio == nil {
			continue
		}
		l.onAudio(l.remoteID, pkt.Payload)
	}
}

func (l *webrtcLink) Close() {
	if err := l.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "client.peer").Str("peer", l.remoteID).Msg("close error")
	}
}
