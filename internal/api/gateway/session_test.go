package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/murmurchat/realtime/data/events"
	"github.com/murmurchat/realtime/internal/svc/limiter"
	"github.com/murmurchat/realtime/internal/testutil"
)

// dialSession serves one live session over a real socket and dials it. The
// server side runs readLoop exactly like handleConnect does.
func dialSession(t *testing.T, h *harness, connID, identityID string) *websocket.Conn {
	t.Helper()

	up := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		s := newSession(h.gCtx, connID, ws, time.Minute)
		s.conn = h.gCtx.Inst().Registry.Register(connID, identityID, identityID, s)

		go s.writePump()

		s.readLoop()

		h.gCtx.Inst().Registry.Unregister(connID)
		s.close(events.CloseCodeServerError)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	testutil.IsNil(t, errOrNil(err), "dial")
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func writeFrame(t *testing.T, client *websocket.Conn, msg events.Message[json.RawMessage]) {
	t.Helper()

	buf, err := jsonc.Marshal(msg)
	testutil.IsNil(t, errOrNil(err), "frame encodes")
	testutil.IsNil(t, errOrNil(client.WriteMessage(websocket.TextMessage, buf)), "frame written")
}

func readFrame(t *testing.T, client *websocket.Conn) events.Message[json.RawMessage] {
	t.Helper()

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))

	_, buf, err := client.ReadMessage()
	testutil.IsNil(t, errOrNil(err), "frame read")

	var msg events.Message[json.RawMessage]

	testutil.IsNil(t, errOrNil(jsonc.Unmarshal(buf, &msg)), "frame decodes")

	return msg
}

func TestReadLoopRejectsMalformedFrame(t *testing.T) {
	t.Parallel()

	h := newHarness()
	client := dialSession(t, h, "c1", "alice")

	testutil.IsNil(t, errOrNil(client.WriteMessage(websocket.TextMessage, []byte(`{"op":`))), "garbage written")

	msg := readFrame(t, client)
	testutil.Assert(t, events.OpcodeError, msg.Op, "error envelope")

	perr, err := events.ConvertMessage[events.ErrorPayload](msg)
	testutil.IsNil(t, errOrNil(err), "error payload decodes")
	testutil.Assert(t, int(events.CloseCodeInvalidPayload), perr.Data.Code, "invalid payload code")

	// The loop keeps serving after a bad frame.
	writeFrame(t, client, command(events.OpcodeJoinConversation, events.JoinConversationPayload{ConversationID: "conv1"}))

	msg = readFrame(t, client)
	testutil.Assert(t, events.OpcodeAck, msg.Op, "next command still acked")
}

func TestReadLoopRejectsNonCommandOpcode(t *testing.T) {
	t.Parallel()

	h := newHarness()
	client := dialSession(t, h, "c1", "alice")

	// Server-side opcodes are not accepted from clients.
	writeFrame(t, client, command(events.OpcodeHello, events.HelloPayload{}))

	msg := readFrame(t, client)
	testutil.Assert(t, events.OpcodeError, msg.Op, "error envelope")

	perr, err := events.ConvertMessage[events.ErrorPayload](msg)
	testutil.IsNil(t, errOrNil(err), "error payload decodes")
	testutil.Assert(t, int(events.CloseCodeUnknownOperation), perr.Data.Code, "unknown operation code")

	op, _ := perr.Data.Fields["op"].(string)
	testutil.Assert(t, events.OpcodeHello.String(), op, "offending op named")
}

func TestReadLoopRateLimits(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.gCtx.Inst().Limiter = limiter.New(limiter.Options{Rate: 0.01, Burst: 1})

	client := dialSession(t, h, "c1", "alice")

	join := command(events.OpcodeJoinConversation, events.JoinConversationPayload{ConversationID: "conv1"})

	writeFrame(t, client, join)
	writeFrame(t, client, join)

	msg := readFrame(t, client)
	testutil.Assert(t, events.OpcodeAck, msg.Op, "first command within budget")

	msg = readFrame(t, client)
	testutil.Assert(t, events.OpcodeError, msg.Op, "second command rejected")

	perr, err := events.ConvertMessage[events.ErrorPayload](msg)
	testutil.IsNil(t, errOrNil(err), "error payload decodes")
	testutil.Assert(t, int(events.CloseCodeRateLimit), perr.Data.Code, "rate limit code")
}
