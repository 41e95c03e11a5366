package notifications

import (
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/murmurchat/realtime/data/model"
	"github.com/murmurchat/realtime/internal/errors"
)

// ErrSkipped marks raw input that is valid but intentionally produces no
// canonical event, such as a viewer's own message echo. It is not a
// validation failure and is never logged as a drop.
var ErrSkipped = stderrors.New("notification skipped")

// Normalize validates a raw notification payload and converts it into one
// of the canonical variants. Missing ids and timestamps are defaulted;
// unresolvable input is dropped with ErrValidationFailed rather than
// defaulted into a broken event.
//
// Raw payloads arrive from three origins (live socket events, push-stream
// events, persisted records) with inconsistent key casing, so both
// snake_case and camelCase keys are accepted.
func Normalize(raw map[string]any, viewerID string) (model.Notification, error) {
	if raw == nil {
		return nil, errors.ErrValidationFailed().SetDetail("Empty Payload")
	}

	typ := getString(raw, "type")
	if typ == "" {
		return nil, errors.ErrValidationFailed().SetDetail("Missing Type").SetFields(errors.Fields{
			"keys": keysOf(raw),
		})
	}

	switch typ {
	case "new_message":
		return normalizeNewMessage(raw, viewerID)
	case "notification":
		return normalizeGeneral(raw)
	default:
		return normalizeSSE(raw, typ)
	}
}

// NormalizeAll converts a batch fail-soft: malformed elements are collected
// into the returned multierror and never abort the remaining elements.
// Skipped elements (self-echo) contribute neither an event nor an error.
func NormalizeAll(raws []map[string]any, viewerID string) ([]model.Notification, error) {
	out := make([]model.Notification, 0, len(raws))

	var drops *multierror.Error

	for _, raw := range raws {
		n, err := Normalize(raw, viewerID)
		if err != nil {
			if !stderrors.Is(err, ErrSkipped) {
				drops = multierror.Append(drops, err)
			}

			continue
		}

		out = append(out, n)
	}

	return out, drops.ErrorOrNil()
}

func normalizeNewMessage(raw map[string]any, viewerID string) (model.Notification, error) {
	conversationID := getString(raw, "conversation_id", "conversationId")

	msg, _ := getMap(raw, "message")
	if conversationID == "" || msg == nil {
		return nil, errors.ErrValidationFailed().SetDetail("Incomplete Message Event").SetFields(errors.Fields{
			"conversation_id": conversationID,
			"has_message":     msg != nil,
		})
	}

	senderID := getString(raw, "sender_id", "senderId")
	if senderID == "" {
		senderID = getString(msg, "sender_id", "senderId")
	}

	if senderID == "" {
		return nil, errors.ErrValidationFailed().SetDetail("Missing Sender").SetFields(errors.Fields{
			"conversation_id": conversationID,
		})
	}

	// Self-echo suppression: the viewer is never notified about their own
	// message.
	if senderID == viewerID {
		return nil, ErrSkipped
	}

	id := getString(msg, "id")
	if id == "" {
		id = getString(raw, "id")
	}

	return model.MessageNotification{
		ID:             defaultID(id),
		Timestamp:      defaultTimestamp(raw, msg),
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderName:     getString(msg, "sender_name", "senderName"),
		Preview:        getString(msg, "content"),
	}, nil
}

func normalizeGeneral(raw map[string]any) (model.Notification, error) {
	data, _ := getMap(raw, "data")

	title := getString(raw, "title")
	if title == "" && data != nil {
		title = getString(data, "title")
	}

	if title == "" {
		return nil, errors.ErrValidationFailed().SetDetail("Missing Title")
	}

	return model.GeneralNotification{
		ID:        defaultID(getString(raw, "id")),
		Type:      "notification",
		Timestamp: defaultTimestamp(raw, nil),
		Title:     title,
		Content:   getString(raw, "content"),
		Data:      data,
	}, nil
}

func normalizeSSE(raw map[string]any, typ string) (model.Notification, error) {
	data, _ := getMap(raw, "data")

	return model.SSEMessage{
		ID:        defaultID(getString(raw, "id")),
		Type:      typ,
		Timestamp: defaultTimestamp(raw, nil),
		Data:      data,
	}, nil
}

func defaultID(id string) string {
	if id != "" {
		return id
	}

	return uuid.NewString()
}

func defaultTimestamp(maps ...map[string]any) int64 {
	for _, m := range maps {
		if m == nil {
			continue
		}

		for _, key := range []string{"timestamp", "created_at", "createdAt"} {
			if ts, ok := getInt64(m, key); ok && ts > 0 {
				return ts
			}
		}
	}

	return time.Now().UnixMilli()
}

func getString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := m[key].(string); ok {
			return v
		}
	}

	return ""
}

func getMap(m map[string]any, key string) (map[string]any, bool) {
	v, ok := m[key].(map[string]any)

	return v, ok
}

func getInt64(m map[string]any, key string) (int64, bool) {
	switch v := m[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	}

	return 0, false
}

func keysOf(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}

	return out
}
