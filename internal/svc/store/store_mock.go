package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/murmurchat/realtime/data/model"
	"github.com/murmurchat/realtime/internal/errors"
)

// MockMessageStore is an in-memory message store for tests and local runs.
// Ids are sequential so per-room ordering is observable.
type MockMessageStore struct {
	mtx      sync.Mutex
	messages []model.Message
	seq      int
	failing  bool
}

func NewMockMessageStore() *MockMessageStore {
	return &MockMessageStore{}
}

// SetFailing makes every subsequent Store/MarkRead call fail, simulating a
// persistence outage.
func (s *MockMessageStore) SetFailing(failing bool) {
	s.mtx.Lock()
	s.failing = failing
	s.mtx.Unlock()
}

func (s *MockMessageStore) Store(_ context.Context, conversationID, senderID, content string, msgType model.MessageType, attachment map[string]any) (model.Message, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.failing {
		return model.Message{}, fmt.Errorf("mock store: unavailable")
	}

	s.seq++

	msg := model.Message{
		ID:             fmt.Sprintf("m%d", s.seq),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Type:           msgType,
		Attachment:     attachment,
		CreatedAt:      time.Now().UnixMilli(),
	}

	s.messages = append(s.messages, msg)

	return msg, nil
}

func (s *MockMessageStore) MarkRead(_ context.Context, conversationID, readerID string, messageIDs []string) (int64, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.failing {
		return 0, fmt.Errorf("mock store: unavailable")
	}

	wanted := map[string]struct{}{}
	for _, id := range messageIDs {
		wanted[id] = struct{}{}
	}

	var n int64

	for idx, msg := range s.messages {
		if msg.ConversationID != conversationID || msg.Read || msg.SenderID == readerID {
			continue
		}

		if len(wanted) > 0 {
			if _, ok := wanted[msg.ID]; !ok {
				continue
			}
		}

		s.messages[idx].Read = true
		n++
	}

	return n, nil
}

func (s *MockMessageStore) Ping(context.Context) error {
	return nil
}

// Messages returns a copy of everything stored, in insertion order.
func (s *MockMessageStore) Messages() []model.Message {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)

	return out
}

// MockDirectory resolves identities from a fixed map.
type MockDirectory struct {
	mtx   sync.Mutex
	users map[string]model.User
}

func NewMockDirectory(users ...model.User) *MockDirectory {
	d := &MockDirectory{users: map[string]model.User{}}

	for _, u := range users {
		d.users[u.ID] = u
	}

	return d
}

func (d *MockDirectory) Put(u model.User) {
	d.mtx.Lock()
	d.users[u.ID] = u
	d.mtx.Unlock()
}

func (d *MockDirectory) Resolve(_ context.Context, identityID string) (model.User, error) {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	if u, ok := d.users[identityID]; ok {
		return u, nil
	}

	return model.User{}, errors.ErrNotFound().SetDetail("Unknown Identity")
}

// MockNotificationStore serves fixed raw records per identity.
type MockNotificationStore struct {
	mtx     sync.Mutex
	records map[string][]map[string]any
}

func NewMockNotificationStore() *MockNotificationStore {
	return &MockNotificationStore{records: map[string][]map[string]any{}}
}

func (s *MockNotificationStore) Add(identityID string, raw map[string]any) {
	s.mtx.Lock()
	s.records[identityID] = append(s.records[identityID], raw)
	s.mtx.Unlock()
}

func (s *MockNotificationStore) Fetch(_ context.Context, identityID string, limit int) ([]map[string]any, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	recs := s.records[identityID]
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}

	out := make([]map[string]any, len(recs))
	copy(out, recs)

	return out, nil
}
