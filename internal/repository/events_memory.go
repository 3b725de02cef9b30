package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/set-night/terranote/internal/domain"
)

// MemoryEventLog keeps the most recent max events in process memory.
type MemoryEventLog struct {
	mu     sync.RWMutex
	events []domain.CallbackEvent
	seq    int64
	max    int
}

func NewMemoryEventLog(max int) *MemoryEventLog {
	if max <= 0 {
		max = 1
	}
	return &MemoryEventLog{max: max}
}

func (l *MemoryEventLog) Append(_ context.Context, ev domain.CallbackEvent) (domain.CallbackEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	ev.Seq = l.seq
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	l.events = append(l.events, ev)
	if over := len(l.events) - l.max; over > 0 {
		l.events = append(l.events[:0:0], l.events[over:]...)
	}
	return ev, nil
}

func (l *MemoryEventLog) List(_ context.Context, since int64, limit int) ([]domain.CallbackEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	start := sort.Search(len(l.events), func(i int) bool { return l.events[i].Seq > since })
	end := len(l.events)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return append([]domain.CallbackEvent(nil), l.events[start:end]...), nil
}

func (l *MemoryEventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}
