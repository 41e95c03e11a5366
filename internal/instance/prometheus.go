package instance

import "github.com/prometheus/client_golang/prometheus"

type Prometheus interface {
	Register(r prometheus.Registerer)

	ConnectionsOnline() prometheus.Gauge
	RoomsActive() prometheus.Gauge
	EventsDispatched() prometheus.Counter
	MessagesPublished() prometheus.Counter
	NotificationsDropped() prometheus.Counter
	PublishDuration() prometheus.Histogram
}
