package prometheus

import (
	"github.com/murmurchat/realtime/internal/instance"
	"github.com/prometheus/client_golang/prometheus"
)

type Options struct {
	Labels prometheus.Labels
}

func New(o Options) instance.Prometheus {
	return &Instance{
		connectionsOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "realtime_connections_online",
			Help:        "Live websocket connections currently registered.",
			ConstLabels: o.Labels,
		}),
		roomsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "realtime_rooms_active",
			Help:        "Broadcast rooms currently alive.",
			ConstLabels: o.Labels,
		}),
		eventsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "realtime_events_dispatched_total",
			Help:        "Events dispatched to connections.",
			ConstLabels: o.Labels,
		}),
		messagesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "realtime_messages_published_total",
			Help:        "Messages successfully persisted and fanned out.",
			ConstLabels: o.Labels,
		}),
		notificationsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "realtime_notifications_dropped_total",
			Help:        "Raw notification payloads dropped by validation.",
			ConstLabels: o.Labels,
		}),
		publishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "realtime_publish_duration_seconds",
			Help:        "Time spent in the persistence collaborator during publish.",
			ConstLabels: o.Labels,
		}),
	}
}

type Instance struct {
	connectionsOnline    prometheus.Gauge
	roomsActive          prometheus.Gauge
	eventsDispatched     prometheus.Counter
	messagesPublished    prometheus.Counter
	notificationsDropped prometheus.Counter
	publishDuration      prometheus.Histogram
}

func (m *Instance) Register(r prometheus.Registerer) {
	r.MustRegister(
		m.connectionsOnline,
		m.roomsActive,
		m.eventsDispatched,
		m.messagesPublished,
		m.notificationsDropped,
		m.publishDuration,
	)
}

func (m *Instance) ConnectionsOnline() prometheus.Gauge {
	return m.connectionsOnline
}

func (m *Instance) RoomsActive() prometheus.Gauge {
	return m.roomsActive
}

func (m *Instance) EventsDispatched() prometheus.Counter {
	return m.eventsDispatched
}

func (m *Instance) MessagesPublished() prometheus.Counter {
	return m.messagesPublished
}

func (m *Instance) NotificationsDropped() prometheus.Counter {
	return m.notificationsDropped
}

func (m *Instance) PublishDuration() prometheus.Histogram {
	return m.publishDuration
}
