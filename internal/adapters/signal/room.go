package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Countdown/internal/core"
	"github.com/dkeye/Countdown/internal/domain"
)

func (ctl *SignalWSController) handleCreateRoom(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var p domain.CreateRoomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad create_room payload")
		return
	}
	if p.RoomID == "" {
		ctl.sendJSON(conn, domain.EventError, "empty room id")
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.RoomID).Str("title", p.Title).Msg("create_room")
	ctl.Orch.CreateRoom(sid, p)
}

func (ctl *SignalWSController) handleJoinRoom(
	sid core.SessionID,
	_ *WsSignalConn,
	data []byte,
) {
	var p domain.JoinRoomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join_room payload")
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.RoomID).Str("username", p.Username).Msg("join_room")
	ctl.Orch.JoinRoom(sid, p)
}

// handleLeaveRoom drops the membership; the connection itself stays open.
func (ctl *SignalWSController) handleLeaveRoom(
	sid core.SessionID,
	_ *WsSignalConn,
	data []byte,
) {
	var p domain.RoomRefPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad leave_room payload")
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.RoomID).Msg("leave_room")
	ctl.Orch.LeaveRoom(sid, domain.RoomID(p.RoomID))
}
