package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/medassist/internal/domain"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, id domain.ConnID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(id)).Msg("readPump closing")
		ctl.Orch.Disconnect(id)
		ctl.Limiter.Forget(id)
		c.Close()
		cancel()
	}()

	c.conn.SetReadLimit(ctl.readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait()))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("conn", string(id)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Error().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("readPump read error")
				}
				return
			}
			ctl.handleSignal(id, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(id domain.ConnID, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("bad json")
		ctl.Orch.Fail(id, "bad_payload")
		return
	}

	switch env.Type {
	case "ping":
		ctl.Orch.Pong(id)
	case "whoami":
		ctl.Orch.WhoAmI(id)
	case "register-patient":
		ctl.handleRegisterPatient(id, data)
	case "initiate-call":
		ctl.handleInitiateCall(id, data)
	case "join-room":
		ctl.handleJoin(id, data)
	case "leave-room":
		ctl.Orch.LeaveRoom(id)
	case "offer", "answer", "ice-candidate":
		ctl.handleRelay(id, env.Type, data)
	case "transcript":
		ctl.handleTranscript(id, data)
	case "request-ai-hints":
		ctl.handleAIHints(id, data)
	case "end-call":
		ctl.handleEndCall(id, data)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}

// decode unmarshals data into v, answering the sender with bad_payload on failure.
func (ctl *SignalWSController) decode(id domain.ConnID, event string, data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(id)).Str("type", event).Msg("bad payload")
		ctl.Orch.Fail(id, "bad_payload")
		return false
	}
	return true
}

func (ctl *SignalWSController) allow(id domain.ConnID, event string) bool {
	if ctl.Limiter.Allow(id, event) {
		return true
	}
	log.Warn().Str("module", "signal").Str("conn", string(id)).Str("type", event).Msg("rate limited")
	ctl.Orch.Fail(id, "rate_limited")
	return false
}
