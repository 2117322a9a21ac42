package timesheet

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process StoreAPI. It ignores Filter.Department;
// department filtering needs the employee directory and happens in the export aggregator.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]TimeEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]TimeEntry{}}
}

func memoryKey(employeeID string, date time.Time) string {
	return employeeID + "|" + dateOnly(date).Format("2006-01-02")
}

func (s *MemoryStore) CreateEntry(_ context.Context, entry TimeEntry) (TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey(entry.EmployeeID, entry.Date)
	if _, exists := s.entries[key]; exists {
		return TimeEntry{}, ErrDuplicateClockIn
	}
	stored := entry.Clone()
	stored.Version = 1
	s.entries[key] = stored
	return stored.Clone(), nil
}

func (s *MemoryStore) GetEntry(_ context.Context, employeeID string, date time.Time) (TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[memoryKey(employeeID, date)]
	if !ok {
		return TimeEntry{}, ErrEntryNotFound
	}
	return entry.Clone(), nil
}

func (s *MemoryStore) OpenEntry(_ context.Context, employeeID string) (TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		found TimeEntry
		ok    bool
	)
	for _, entry := range s.entries {
		if entry.EmployeeID != employeeID || entry.Status != StatusOpen {
			continue
		}
		if !ok || entry.Date.After(found.Date) {
			found, ok = entry, true
		}
	}
	if !ok {
		return TimeEntry{}, ErrEntryNotFound
	}
	return found.Clone(), nil
}

func (s *MemoryStore) UpdateEntry(_ context.Context, entry TimeEntry, expectedVersion int) (TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey(entry.EmployeeID, entry.Date)
	current, ok := s.entries[key]
	if !ok {
		return TimeEntry{}, ErrEntryNotFound
	}
	if current.Version != expectedVersion {
		return TimeEntry{}, ErrConcurrentModification
	}
	stored := entry.Clone()
	stored.Version = expectedVersion + 1
	s.entries[key] = stored
	return stored.Clone(), nil
}

func (s *MemoryStore) ListEntries(_ context.Context, filter Filter) ([]TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []TimeEntry
	for _, entry := range s.entries {
		if filter.Matches(entry) {
			out = append(out, entry.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].EmployeeID < out[j].EmployeeID
	})
	return out, nil
}
