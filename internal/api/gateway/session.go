package gateway

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/murmurchat/realtime/data/events"
	"github.com/murmurchat/realtime/internal/global"
	"github.com/murmurchat/realtime/internal/svc/registry"
	"go.uber.org/zap"
)

var jsonc = jsoniter.ConfigCompatibleWithStandardLibrary

const sendBufferSize = 64

// session owns one websocket for its whole lifetime: a buffered send
// channel drained by a single writer goroutine, and a read loop running on
// the connect handler's goroutine.
type session struct {
	id   string
	gCtx global.Context

	ws   *websocket.Conn
	send chan events.Message[json.RawMessage]

	conn *registry.Connection

	closeOnce sync.Once
	closed    chan struct{}

	heartbeat time.Duration
	seq       uint64
}

func newSession(gCtx global.Context, id string, ws *websocket.Conn, heartbeat time.Duration) *session {
	return &session{
		id:        id,
		gCtx:      gCtx,
		ws:        ws,
		send:      make(chan events.Message[json.RawMessage], sendBufferSize),
		closed:    make(chan struct{}),
		heartbeat: heartbeat,
	}
}

// SendEvent implements registry.EventSender. A full buffer means the client
// stopped draining; the session is torn down rather than blocking the
// broadcast path.
func (s *session) SendEvent(msg events.Message[json.RawMessage]) error {
	select {
	case <-s.closed:
		return fmt.Errorf("session closed")
	case s.send <- msg:
		return nil
	default:
		s.close(events.CloseCodeTimeout)

		return fmt.Errorf("send buffer overflow")
	}
}

func (s *session) close(code events.CloseCode) {
	s.closeOnce.Do(func() {
		close(s.closed)

		msg := websocket.FormatCloseMessage(int(code), code.String())
		_ = s.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = s.ws.Close()
	})
}

// writePump drains the send channel onto the socket and drives server
// heartbeats. It exits when the session closes.
func (s *session) writePump() {
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-s.closed:
			return
		case <-s.gCtx.Done():
			s.close(events.CloseCodeRestart)

			return
		case msg := <-s.send:
			buf, err := jsonc.Marshal(msg)
			if err != nil {
				zap.S().Errorw("failed to encode outbound event",
					"session", s.id,
					"error", err,
				)

				continue
			}

			_ = s.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))

			if err := s.ws.WriteMessage(websocket.TextMessage, buf); err != nil {
				s.close(events.CloseCodeServerError)

				return
			}

			if inst := s.gCtx.Inst().Prometheus; inst != nil {
				inst.EventsDispatched().Inc()
			}
		case <-ticker.C:
			s.seq++

			hb := events.NewMessage(events.OpcodeHeartbeat, events.HeartbeatPayload{Count: s.seq}).ToRaw()

			buf, _ := jsonc.Marshal(hb)

			_ = s.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))

			if err := s.ws.WriteMessage(websocket.TextMessage, buf); err != nil {
				s.close(events.CloseCodeTimeout)

				return
			}
		}
	}
}

// readLoop decodes inbound frames and dispatches commands until the client
// goes away. Returns on the first read error.
func (s *session) readLoop() {
	s.ws.SetReadLimit(1 << 16)

	deadline := s.heartbeat * 2
	_ = s.ws.SetReadDeadline(time.Now().Add(deadline))

	s.ws.SetPongHandler(func(string) error {
		return s.ws.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, buf, err := s.ws.ReadMessage()
		if err != nil {
			return
		}

		_ = s.ws.SetReadDeadline(time.Now().Add(deadline))

		var msg events.Message[json.RawMessage]
		if err := jsonc.Unmarshal(buf, &msg); err != nil {
			s.sendError("invalid payload", int(events.CloseCodeInvalidPayload), nil)

			continue
		}

		if !msg.Op.IsCommand() {
			s.sendError("unknown operation", int(events.CloseCodeUnknownOperation), map[string]any{
				"op": msg.Op.String(),
			})

			continue
		}

		if lim := s.gCtx.Inst().Limiter; lim != nil && !lim.Allow(s.id) {
			s.sendError("rate limited", int(events.CloseCodeRateLimit), nil)

			continue
		}

		s.handleCommand(msg)
	}
}

func (s *session) sendAck(command string, data any) {
	var raw json.RawMessage
	if data != nil {
		raw, _ = jsonc.Marshal(data)
	}

	_ = s.SendEvent(events.NewMessage(events.OpcodeAck, events.AckPayload{
		Command: command,
		Data:    raw,
	}).ToRaw())
}

func (s *session) sendError(message string, code int, fields map[string]any) {
	_ = s.SendEvent(events.NewMessage(events.OpcodeError, events.ErrorPayload{
		Message: message,
		Code:    code,
		Fields:  fields,
	}).ToRaw())
}

func (s *session) sendAPIError(err error) {
	aerr := apiErrorOf(err)
	fields := map[string]any{}

	for k, v := range aerr.GetFields() {
		fields[k] = v
	}

	s.sendError(aerr.Message(), aerr.Code(), fields)
}
