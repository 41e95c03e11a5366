package global

import (
	"github.com/murmurchat/realtime/internal/instance"
	"github.com/murmurchat/realtime/internal/svc/limiter"
	"github.com/murmurchat/realtime/internal/svc/messages"
	"github.com/murmurchat/realtime/internal/svc/notifications"
	"github.com/murmurchat/realtime/internal/svc/presence"
	"github.com/murmurchat/realtime/internal/svc/registry"
	"github.com/murmurchat/realtime/internal/svc/rooms"
	"github.com/murmurchat/realtime/internal/svc/typing"
)

type Instances struct {
	// External collaborators
	Redis             instance.Redis
	MessageStore      instance.MessageStore
	Directory         instance.Directory
	NotificationStore instance.NotificationStore
	Prometheus        instance.Prometheus

	// Engine components
	Registry      registry.Instance
	Rooms         rooms.Instance
	Presence      presence.Instance
	Typing        typing.Instance
	Messages      messages.Instance
	Notifications notifications.Instance
	Limiter       limiter.Instance
}
