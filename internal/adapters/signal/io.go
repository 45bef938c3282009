package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Countdown/internal/core"
	"github.com/dkeye/Countdown/internal/domain"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ping := time.NewTicker(ctl.Cfg.PingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump owns the connection lifecycle: when the read side dies for any
// reason the session is fully cleaned up, exactly as if the client had
// sent leave_room and leave_voice for everything it held.
func (ctl *SignalWSController) readPump(ctx context.Context, sid core.SessionID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.Orch.OnDisconnect(sid)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				return
			}
			ctl.dispatch(sid, c, data)
		}
	}
}

// dispatch is the single switch over the closed event set. Frames that
// fail to decode are logged and dropped; no schema validation beyond
// that, matching the permissive reference behavior.
func (ctl *SignalWSController) dispatch(sid core.SessionID, c *WsSignalConn, data []byte) {
	var frame domain.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad json frame")
		return
	}

	switch frame.Event {
	case domain.EventCreateRoom:
		ctl.handleCreateRoom(sid, c, frame.Data)
	case domain.EventJoinRoom:
		ctl.handleJoinRoom(sid, c, frame.Data)
	case domain.EventLeaveRoom:
		ctl.handleLeaveRoom(sid, c, frame.Data)
	case domain.EventSendInteraction:
		ctl.handleSendInteraction(sid, c, frame.Data)
	case domain.EventSendMessage:
		ctl.handleSendMessage(sid, c, frame.Data)
	case domain.EventJoinVoice:
		ctl.handleJoinVoice(sid, c, frame.Data)
	case domain.EventLeaveVoice:
		ctl.handleLeaveVoice(sid, c, frame.Data)
	case domain.EventSignal:
		ctl.handleRelay(sid, c, frame.Data)
	default:
		log.Warn().Str("module", "signal").Str("event", string(frame.Event)).Msg("unknown event")
	}
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, event domain.EventName, data any) {
	b, err := json.Marshal(domain.Envelope{Event: event, Data: data})
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(core.Frame(b))
}
