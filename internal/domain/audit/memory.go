package audit

import (
	"context"
	"strconv"
	"sync"
)

// Memory keeps the audit trail in process. Used with the memory store driver.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Record(ctx context.Context, action, entityType, entityID string, before, after any) error {
	evt, err := newEvent(ctx, action, entityType, entityID, before, after)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	evt.ID = strconv.Itoa(len(m.events) + 1)
	m.events = append(m.events, evt)
	return nil
}

// List returns the newest events first.
func (m *Memory) List(_ context.Context, filter Filter, limit, offset int) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []Event{}
	skipped := 0
	for i := len(m.events) - 1; i >= 0; i-- {
		evt := m.events[i]
		if !filter.matches(evt) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, evt)
	}
	return out, nil
}
