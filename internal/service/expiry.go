package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/set-night/terranote/internal/domain"
)

// ExpiryScheduler periodically discards sessions whose window closed without
// both text and location. Expired sessions produce no note and no event.
type ExpiryScheduler struct {
	store    *SessionStore
	interval time.Duration
	now      func() time.Time
}

func NewExpiryScheduler(store *SessionStore, interval time.Duration, now func() time.Time) *ExpiryScheduler {
	if now == nil {
		now = time.Now
	}
	return &ExpiryScheduler{store: store, interval: interval, now: now}
}

// Run sweeps every interval until ctx is done.
func (s *ExpiryScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep expires everything due now and returns what it removed.
func (s *ExpiryScheduler) Sweep() []domain.Session {
	expired := s.store.ExpireDue(s.now())
	for _, sess := range expired {
		slog.Info("session expired",
			"user_id", sess.UserID,
			"session_id", sess.ID,
			"missing", sess.Missing(),
			"created_at", sess.CreatedAt,
		)
	}
	return expired
}
