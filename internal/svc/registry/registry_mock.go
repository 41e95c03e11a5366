package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/murmurchat/realtime/data/events"
)

// MockSender records delivered events in order. Tests across the engine
// use it as the write half of a connection.
type MockSender struct {
	mtx     sync.Mutex
	events  []events.Message[json.RawMessage]
	failing bool
}

func NewMockSender() *MockSender {
	return &MockSender{}
}

// SetFailing makes every subsequent send fail, simulating a connection
// whose socket went away.
func (m *MockSender) SetFailing(failing bool) {
	m.mtx.Lock()
	m.failing = failing
	m.mtx.Unlock()
}

func (m *MockSender) SendEvent(msg events.Message[json.RawMessage]) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.failing {
		return fmt.Errorf("mock sender: broken pipe")
	}

	m.events = append(m.events, msg)

	return nil
}

// Events returns a copy of everything delivered so far.
func (m *MockSender) Events() []events.Message[json.RawMessage] {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	out := make([]events.Message[json.RawMessage], len(m.events))
	copy(out, m.events)

	return out
}

func (m *MockSender) Count() int {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return len(m.events)
}

// LastDispatch decodes the most recent dispatch envelope, failing the
// lookup when nothing was delivered.
func (m *MockSender) LastDispatch() (events.DispatchPayload, bool) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	for n := len(m.events) - 1; n >= 0; n-- {
		if m.events[n].Op != events.OpcodeDispatch {
			continue
		}

		var payload events.DispatchPayload
		if err := json.Unmarshal(m.events[n].Data, &payload); err != nil {
			return events.DispatchPayload{}, false
		}

		return payload, true
	}

	return events.DispatchPayload{}, false
}
