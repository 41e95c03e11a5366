// Package gateway terminates client websockets and translates socket
// commands into engine operations.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/murmurchat/realtime/data/events"
	"github.com/murmurchat/realtime/internal/global"
	"github.com/murmurchat/realtime/internal/svc/registry"
	"github.com/murmurchat/realtime/internal/svc/rooms"
	"go.uber.org/zap"
)

const defaultHeartbeatInterval = 45 * time.Second

func New(gCtx global.Context) <-chan struct{} {
	done := make(chan struct{})

	upgrader := newUpgrader(gCtx)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/gateway", func(w http.ResponseWriter, r *http.Request) {
		handleConnect(gCtx, upgrader, w, r)
	})

	srv := http.Server{
		Addr:    gCtx.Config().Gateway.Bind,
		Handler: mux,
	}

	go func() {
		defer close(done)
		zap.S().Infow("Gateway enabled",
			"bind", gCtx.Config().Gateway.Bind,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.S().Fatalw("failed to bind gateway",
				"error", err,
			)
		}
	}()

	go func() {
		<-gCtx.Done()

		// Tell every client the stream is ending before the listener goes
		// away; their sessions close with CloseCodeRestart from writePump.
		gCtx.Inst().Registry.Each(func(conn *registry.Connection) {
			_ = conn.SendEvent(events.NewMessage(events.OpcodeEndOfStream, events.EndOfStreamPayload{
				Code:    events.CloseCodeRestart,
				Message: events.CloseCodeRestart.String(),
			}).ToRaw())
		})

		sCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_ = srv.Shutdown(sCtx)
	}()

	return done
}

func newUpgrader(gCtx global.Context) websocket.Upgrader {
	allowed := map[string]bool{}
	for _, origin := range gCtx.Config().Gateway.OriginWhitelist {
		allowed[origin] = true
	}

	return websocket.Upgrader{
		ReadBufferSize:  gCtx.Config().Gateway.ReadBufferSize,
		WriteBufferSize: gCtx.Config().Gateway.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			// An empty whitelist admits non-browser clients, which send no
			// Origin header at all.
			if len(allowed) == 0 {
				return r.Header.Get("Origin") == ""
			}

			return allowed[r.Header.Get("Origin")]
		},
	}
}

func handleConnect(gCtx global.Context, upgrader websocket.Upgrader, w http.ResponseWriter, r *http.Request) {
	identityID, displayName, err := identityFromRequest(r, gCtx.Config().Gateway.JWTSecret)
	if err != nil {
		apiErr := apiErrorOf(err)
		http.Error(w, apiErr.Message(), http.StatusUnauthorized)

		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Warnw("websocket upgrade failed",
			"error", err,
			"identity_id", identityID,
		)

		return
	}

	heartbeat := gCtx.Config().Gateway.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	s := newSession(gCtx, uuid.New().String(), ws, heartbeat)

	// Register before Hello so broadcasts arriving during the greeting are
	// already routable to this connection.
	s.conn = gCtx.Inst().Registry.Register(s.id, identityID, displayName, s)

	gCtx.Inst().Prometheus.ConnectionsOnline().Inc()

	gCtx.Inst().Rooms.Join(rooms.PresenceRoom, s.conn)
	gCtx.Inst().Presence.SetOnline(identityID)

	go s.writePump()

	s.greet()

	zap.S().Infow("session opened",
		"session_id", s.id,
		"identity_id", identityID,
	)

	s.readLoop()

	// Unregister runs the engine cleanup hooks synchronously: room removal,
	// presence release, gauge updates.
	gCtx.Inst().Registry.Unregister(s.id)
	gCtx.Inst().Limiter.Forget(s.id)
	gCtx.Inst().Prometheus.ConnectionsOnline().Dec()

	// The socket is usually gone by now; closing here just releases the
	// writer goroutine if it has not exited yet.
	s.close(events.CloseCodeServerError)

	zap.S().Infow("session closed",
		"session_id", s.id,
		"identity_id", identityID,
	)
}

func (s *session) greet() {
	_ = s.SendEvent(events.NewMessage(events.OpcodeHello, events.HelloPayload{
		HeartbeatInterval: uint32(s.heartbeat.Milliseconds()),
		SessionID:         s.id,
		Actor:             s.conn.IdentityID,
	}).ToRaw())
}
