package events

import "strings"

// EventType names a dispatched event. Types are namespaced "<object>.<action>"
// so listeners can match on the object segment.
type EventType string

const (
	// System

	EventTypeAnySystem          EventType = "system.*"
	EventTypeSystemAnnouncement EventType = "system.announcement"

	// Conversation

	EventTypeAnyConversation    EventType = "conversation.*"
	EventTypeJoinedConversation EventType = "conversation.joined"
	EventTypeLeftConversation   EventType = "conversation.left"

	// Message

	EventTypeAnyMessage   EventType = "message.*"
	EventTypeNewMessage   EventType = "message.new"
	EventTypeMessagesRead EventType = "message.read"

	// Typing

	EventTypeTypingUpdate EventType = "typing.update"

	// Presence

	EventTypeAnyPresence     EventType = "presence.*"
	EventTypeUserOnline      EventType = "presence.online"
	EventTypeUserOffline     EventType = "presence.offline"
	EventTypePresenceUpdated EventType = "presence.updated"
)

func (et EventType) Split() []string {
	a := strings.Split(string(et), ".")
	if len(a) == 0 {
		return []string{"any", "*"}
	}

	return a
}

func (et EventType) ObjectName() string {
	return et.Split()[0]
}
