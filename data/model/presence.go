package model

// PresenceStatus is the advertised availability of an identity. An identity
// is online while at least one of its connections is registered; the other
// statuses are user-selected refinements of online.
type PresenceStatus string

const (
	PresenceStatusOnline       PresenceStatus = "online"
	PresenceStatusAway         PresenceStatus = "away"
	PresenceStatusBusy         PresenceStatus = "busy"
	PresenceStatusDoNotDisturb PresenceStatus = "do_not_disturb"
	PresenceStatusOffline      PresenceStatus = "offline"
)

func (s PresenceStatus) IsValid() bool {
	switch s {
	case PresenceStatusOnline, PresenceStatusAway, PresenceStatusBusy,
		PresenceStatusDoNotDisturb, PresenceStatusOffline:
		return true
	}

	return false
}

// Settable reports whether a client may request this status directly.
// Offline is derived from connection count and cannot be requested.
func (s PresenceStatus) Settable() bool {
	return s.IsValid() && s != PresenceStatusOffline
}
