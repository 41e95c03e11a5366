package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/bugsnag/panicwrap"
	"github.com/murmurchat/realtime/internal/api/bridge"
	"github.com/murmurchat/realtime/internal/api/gateway"
	"github.com/murmurchat/realtime/internal/configure"
	"github.com/murmurchat/realtime/internal/global"
	"github.com/murmurchat/realtime/internal/health"
	"github.com/murmurchat/realtime/internal/monitoring"
	"github.com/murmurchat/realtime/internal/pprof"
	"github.com/murmurchat/realtime/internal/svc/limiter"
	"github.com/murmurchat/realtime/internal/svc/messages"
	"github.com/murmurchat/realtime/internal/svc/notifications"
	"github.com/murmurchat/realtime/internal/svc/presence"
	"github.com/murmurchat/realtime/internal/svc/prometheus"
	"github.com/murmurchat/realtime/internal/svc/redis"
	"github.com/murmurchat/realtime/internal/svc/registry"
	"github.com/murmurchat/realtime/internal/svc/rooms"
	"github.com/murmurchat/realtime/internal/svc/store"
	"github.com/murmurchat/realtime/internal/svc/typing"
	"go.uber.org/zap"
)

var (
	Version = "development"
	Unix    = ""
	Time    = "unknown"
	User    = "unknown"
)

func init() {
	debug.SetGCPercent(2000)
	if i, err := strconv.Atoi(Unix); err == nil {
		Time = time.Unix(int64(i), 0).Format(time.RFC3339)
	}
}

func main() {
	config := configure.New()

	exitStatus, err := panicwrap.BasicWrap(func(s string) {
		zap.S().Errorw("panic detected",
			"panic", s,
		)
	})
	if err != nil {
		zap.S().Errorw("failed to setup panic handler",
			"error", err,
		)
		os.Exit(2)
	}

	if exitStatus >= 0 {
		os.Exit(exitStatus)
	}

	if !config.NoHeader {
		zap.S().Info("MurmurChat Realtime")
		zap.S().Infof("Version: %s", Version)
		zap.S().Infof("build.Time: %s", Time)
		zap.S().Infof("build.User: %s", User)
	}

	zap.S().Debugf("MaxProcs: %d", runtime.GOMAXPROCS(0))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	gCtx, cancel := global.WithCancel(global.New(context.Background(), config))

	if len(config.Redis.Addresses) > 0 {
		gCtx.Inst().Redis, err = redis.Setup(gCtx, redis.SetupOptions{
			Username:   config.Redis.Username,
			Password:   config.Redis.Password,
			Database:   config.Redis.Database,
			Sentinel:   config.Redis.Sentinel,
			MasterName: config.Redis.MasterName,
			Addresses:  config.Redis.Addresses,
		})
		if err != nil {
			zap.S().Fatalw("failed to setup redis handler",
				"error", err,
			)
		}
	}

	if config.Mongo.Enabled {
		db, err := store.Connect(gCtx, store.MongoOptions{
			URI:    config.Mongo.URI,
			DB:     config.Mongo.DB,
			Direct: config.Mongo.Direct,
		})
		if err != nil {
			zap.S().Fatalw("failed to setup mongo handler",
				"error", err,
			)
		}

		gCtx.Inst().MessageStore = store.NewMessageStore(db)
		gCtx.Inst().Directory = store.NewDirectory(db, store.DirectoryOptions{
			CacheTTL: config.Engine.DirectoryCacheTTL,
		})
		gCtx.Inst().NotificationStore = store.NewNotificationStore(db)
	} else {
		// Development mode: everything stays in memory.
		zap.S().Warn("mongo is disabled, using in-memory stores")

		gCtx.Inst().MessageStore = store.NewMockMessageStore()
		gCtx.Inst().Directory = store.NewMockDirectory()
		gCtx.Inst().NotificationStore = store.NewMockNotificationStore()
	}

	gCtx.Inst().Prometheus = prometheus.New(prometheus.Options{
		Labels: config.Monitoring.Labels.ToPrometheus(),
	})

	gCtx.Inst().Registry = registry.New()

	gCtx.Inst().Rooms = rooms.New(rooms.Options{})

	gCtx.Inst().Presence = presence.New(presence.Options{
		Rooms: gCtx.Inst().Rooms,
	})

	gCtx.Inst().Typing = typing.New(typing.Options{
		Rooms: gCtx.Inst().Rooms,
	})

	gCtx.Inst().Messages = messages.New(messages.Options{
		Rooms:      gCtx.Inst().Rooms,
		Store:      gCtx.Inst().MessageStore,
		Directory:  gCtx.Inst().Directory,
		Prometheus: gCtx.Inst().Prometheus,
	})

	gCtx.Inst().Notifications = notifications.New(notifications.Options{
		Store:      gCtx.Inst().NotificationStore,
		Prometheus: gCtx.Inst().Prometheus,
		TTL:        config.Engine.NotificationTTL,
		QueueSize:  config.Engine.NotificationQueueSize,
	})

	gCtx.Inst().Limiter = limiter.New(limiter.Options{
		Rate:  config.Gateway.CommandRate,
		Burst: config.Gateway.CommandBurst,
	})

	// A dropped connection cleans up through these hooks, in order: rooms
	// first so no further broadcasts reach it, then its presence reference.
	gCtx.Inst().Registry.OnUnregister(func(conn *registry.Connection) {
		gCtx.Inst().Rooms.RemoveFromAll(conn)
		gCtx.Inst().Presence.SetOffline(conn.IdentityID)
		gCtx.Inst().Prometheus.RoomsActive().Set(float64(gCtx.Inst().Rooms.Size()))
	})

	wg := sync.WaitGroup{}

	if gCtx.Config().Health.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-health.New(gCtx)
		}()
	}
	if gCtx.Config().Monitoring.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-monitoring.New(gCtx)
		}()
	}
	if gCtx.Config().PProf.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-pprof.New(gCtx)
		}()
	}
	if gCtx.Config().PushStream.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-bridge.New(gCtx)
		}()
	}

	done := make(chan struct{})
	go func() {
		<-sig
		cancel()
		go func() {
			select {
			case <-time.After(time.Minute):
			case <-sig:
			}
			zap.S().Fatal("force shutdown")
		}()

		zap.S().Info("shutting down")

		wg.Wait()

		close(done)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-gateway.New(gCtx)
	}()

	zap.S().Info("running")

	<-done

	zap.S().Info("shutdown")
	os.Exit(0)
}
