package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Countdown/internal/core"
	"github.com/dkeye/Countdown/internal/domain"
)

func (ctl *SignalWSController) allowChat(sid core.SessionID) bool {
	if ctl.limiter == nil {
		return true
	}
	return ctl.limiter.Allow(sid)
}

func (ctl *SignalWSController) handleSendInteraction(
	sid core.SessionID,
	_ *WsSignalConn,
	data []byte,
) {
	var p domain.InteractionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad send_interaction payload")
		return
	}
	if !ctl.allowChat(sid) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("interaction rate limited")
		return
	}
	ctl.Orch.SendInteraction(sid, p)
}

func (ctl *SignalWSController) handleSendMessage(
	sid core.SessionID,
	_ *WsSignalConn,
	data []byte,
) {
	var p domain.MessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad send_message payload")
		return
	}
	if !ctl.allowChat(sid) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("message rate limited")
		return
	}
	ctl.Orch.SendMessage(sid, p)
}
