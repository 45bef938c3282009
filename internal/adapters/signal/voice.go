package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Countdown/internal/core"
	"github.com/dkeye/Countdown/internal/domain"
)

func (ctl *SignalWSController) handleJoinVoice(
	sid core.SessionID,
	_ *WsSignalConn,
	data []byte,
) {
	var p domain.RoomRefPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join_voice payload")
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.RoomID).Msg("join_voice")
	ctl.Orch.JoinVoice(sid, domain.RoomID(p.RoomID))
}

func (ctl *SignalWSController) handleLeaveVoice(
	sid core.SessionID,
	_ *WsSignalConn,
	data []byte,
) {
	var p domain.RoomRefPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad leave_voice payload")
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.RoomID).Msg("leave_voice")
	ctl.Orch.LeaveVoice(sid, domain.RoomID(p.RoomID))
}

// handleRelay forwards one opaque negotiation payload to one session.
// The payload is never unmarshaled past the routing fields.
func (ctl *SignalWSController) handleRelay(
	sid core.SessionID,
	_ *WsSignalConn,
	data []byte,
) {
	var p domain.SignalPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad signal payload")
		return
	}
	ctl.Orch.Relay(sid, p)
}
