// Package bridge subscribes to the push stream and feeds externally
// published events into per-identity notification queues.
package bridge

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/murmurchat/realtime/internal/configure"
	"github.com/murmurchat/realtime/internal/global"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

var jsonc = jsoniter.ConfigCompatibleWithStandardLibrary

// envelope is the wire shape producers publish: one event or a batch,
// addressed to a single viewer. Producers name the target either "viewer"
// or "identity_id".
type envelope struct {
	Viewer     string           `json:"viewer,omitempty"`
	IdentityID string           `json:"identity_id,omitempty"`
	Event      map[string]any   `json:"event,omitempty"`
	Events     []map[string]any `json:"events,omitempty"`
}

func (e envelope) target() string {
	if e.Viewer != "" {
		return e.Viewer
	}

	return e.IdentityID
}

func New(gCtx global.Context) <-chan struct{} {
	done := make(chan struct{})

	switch gCtx.Config().PushStream.Mode {
	case configure.PushStreamModeRedis:
		go runRedis(gCtx, done)
	case configure.PushStreamModeNATS:
		go runNATS(gCtx, done)
	default:
		zap.S().Fatalw("invalid push stream mode",
			"mode", gCtx.Config().PushStream.Mode,
		)
	}

	return done
}

func runRedis(gCtx global.Context, done chan struct{}) {
	defer close(done)

	if gCtx.Inst().Redis == nil {
		zap.S().Fatal("push stream REDIS mode requires a redis connection")
	}

	channel := gCtx.Config().PushStream.RedisChannel
	if channel == "" {
		channel = "notifications"
	}

	ch := make(chan string, 1024)
	go gCtx.Inst().Redis.Subscribe(gCtx, ch, gCtx.Inst().Redis.ComposeKey("push", channel))

	zap.S().Infow("Push stream enabled",
		"mode", "REDIS",
		"channel", channel,
	)

	for {
		select {
		case <-gCtx.Done():
			return
		case payload := <-ch:
			ingest(gCtx, []byte(payload))
		}
	}
}

func runNATS(gCtx global.Context, done chan struct{}) {
	defer close(done)

	nc, err := nats.Connect(gCtx.Config().PushStream.NATS.URL,
		nats.RetryOnFailedConnect(true),
	)
	if err != nil {
		zap.S().Fatalw("failed to connect to nats",
			"error", err,
		)
	}

	defer nc.Close()

	subject := gCtx.Config().PushStream.NATS.Subject
	if subject == "" {
		subject = "realtime.notifications"
	}

	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		ingest(gCtx, msg.Data)
	})
	if err != nil {
		zap.S().Fatalw("failed to subscribe to nats subject",
			"subject", subject,
			"error", err,
		)
	}

	zap.S().Infow("Push stream enabled",
		"mode", "NATS",
		"subject", subject,
	)

	<-gCtx.Done()

	_ = sub.Unsubscribe()
}

// ingest decodes one published envelope and hands its events to the
// notification engine. Bad payloads are logged and dropped; the stream
// must keep flowing.
func ingest(gCtx global.Context, data []byte) {
	var env envelope
	if err := jsonc.Unmarshal(data, &env); err != nil {
		zap.S().Errorw("invalid push stream payload",
			"error", err,
		)

		return
	}

	viewer := env.target()
	if viewer == "" {
		zap.S().Errorw("push stream payload has no viewer",
			"payload", string(data),
		)

		return
	}

	notifs := gCtx.Inst().Notifications

	if env.Event != nil {
		notifs.Ingest(env.Event, viewer)
	}

	if len(env.Events) > 0 {
		notifs.IngestBatch(env.Events, viewer)
	}
}
