package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pbaille/seen/internal/domain"
)

// Memory keeps seen entries in process memory. Ids come from monotonic
// counters and are never reused.
type Memory struct {
	mu          sync.RWMutex
	entries     map[int64]*domain.Entry
	lastEntryID int64
	lastFieldID int64
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{entries: make(map[int64]*domain.Entry)}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

func (m *Memory) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// sortedIDs returns entry ids in ascending order; callers hold the lock
func (m *Memory) sortedIDs() []int64 {
	ids := make([]int64, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *Memory) Search(ctx context.Context, filter domain.Filter) ([]domain.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Entry
	for _, id := range m.sortedIDs() {
		e := m.entries[id]
		if filter.Matches(e) {
			out = append(out, cloneEntry(e))
		}
	}
	return out, nil
}

func (m *Memory) Get(ctx context.Context, id int64) (*domain.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, domain.NotFoundError{ID: id}
	}
	c := cloneEntry(e)
	return &c, nil
}

func (m *Memory) FindDuplicate(ctx context.Context, values []string, local *bool) (*domain.Field, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findDuplicate(values, local), nil
}

// findDuplicate scans fields in ascending field id order; callers hold the lock
func (m *Memory) findDuplicate(values []string, local *bool) *domain.Field {
	if len(values) == 0 {
		return nil
	}
	wanted := make(map[string]struct{}, len(values))
	for _, v := range values {
		wanted[v] = struct{}{}
	}

	var best *domain.Field
	for _, e := range m.entries {
		if local != nil && e.Local != *local {
			continue
		}
		for i := range e.Fields {
			f := &e.Fields[i]
			if _, ok := wanted[f.Value]; !ok {
				continue
			}
			if best == nil || f.ID < best.ID {
				best = f
			}
		}
	}
	if best == nil {
		return nil
	}
	f := *best
	return &f
}

func (m *Memory) Insert(ctx context.Context, in domain.NewEntry) (*domain.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if dup := m.findDuplicate(in.Fields.Values(), &in.Local); dup != nil {
		return nil, domain.DuplicateEntryError{Value: dup.Value, Existing: *dup}
	}

	now := time.Now().UTC()
	m.lastEntryID++
	e := &domain.Entry{
		ID:     m.lastEntryID,
		Title:  in.Title,
		Task:   in.Task,
		Reason: in.Reason,
		Added:  now,
		Local:  in.Local,
		Fields: make([]domain.Field, 0, len(in.Fields)),
	}
	for _, name := range in.Fields.Names() {
		m.lastFieldID++
		e.Fields = append(e.Fields, domain.Field{
			ID:      m.lastFieldID,
			Field:   name,
			Value:   in.Fields[name],
			Added:   now,
			EntryID: e.ID,
		})
	}
	m.entries[e.ID] = e

	out := cloneEntry(e)
	return &out, nil
}

func (m *Memory) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[id]; !ok {
		return domain.NotFoundError{ID: id}
	}
	delete(m.entries, id)
	return nil
}

func cloneEntry(e *domain.Entry) domain.Entry {
	c := *e
	c.Fields = append([]domain.Field(nil), e.Fields...)
	if c.Fields == nil {
		c.Fields = []domain.Field{}
	}
	return c
}
