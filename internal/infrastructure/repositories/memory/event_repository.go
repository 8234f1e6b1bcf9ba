package memory

import (
	"context"
	"sync"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"
)

// DefaultMaxEvents bounds the in-memory event log when no limit is configured.
const DefaultMaxEvents = 500

// MemoryEventRepository keeps the newest events in a fixed-size ring.
type MemoryEventRepository struct {
	events []*domain.Event
	next   int
	full   bool
	mu     sync.RWMutex
}

func NewMemoryEventRepository(maxRecords int) ports.EventRepository {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxEvents
	}
	return &MemoryEventRepository{
		events: make([]*domain.Event, maxRecords),
	}
}

func (r *MemoryEventRepository) Save(ctx context.Context, event *domain.Event) error {
	stored := *event

	r.mu.Lock()
	defer r.mu.Unlock()

	r.events[r.next] = &stored
	r.next = (r.next + 1) % len(r.events)
	if r.next == 0 {
		r.full = true
	}
	return nil
}

// List returns up to limit events, newest first. A limit <= 0 returns all.
func (r *MemoryEventRepository) List(ctx context.Context, limit int) ([]*domain.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	size := r.next
	if r.full {
		size = len(r.events)
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	result := make([]*domain.Event, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (r.next - i + len(r.events)) % len(r.events)
		event := *r.events[idx]
		result = append(result, &event)
	}
	return result, nil
}
