package service

import (
	"context"
	"sync"
	"time"

	"github.com/set-night/terranote/internal/domain"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: t0}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakePublisher struct {
	mu     sync.Mutex
	calls  []domain.Session
	err    error
	nextID int64
}

func (p *fakePublisher) Publish(_ context.Context, sess domain.Session) (*domain.Note, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, sess)
	if p.err != nil {
		return nil, p.err
	}
	p.nextID++
	return &domain.Note{
		ID:        p.nextID,
		Latitude:  sess.Location.Latitude,
		Longitude: sess.Location.Longitude,
		Status:    "open",
		Comments:  []domain.NoteComment{{Action: "opened", Text: sess.Text}},
	}, nil
}

func (p *fakePublisher) Calls() []domain.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Session(nil), p.calls...)
}

type memLog struct {
	mu     sync.Mutex
	events []domain.CallbackEvent
	err    error
}

func (l *memLog) Append(_ context.Context, ev domain.CallbackEvent) (domain.CallbackEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return domain.CallbackEvent{}, l.err
	}
	ev.Seq = int64(len(l.events) + 1)
	l.events = append(l.events, ev)
	return ev, nil
}

func (l *memLog) List(_ context.Context, since int64, limit int) ([]domain.CallbackEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.CallbackEvent
	for _, ev := range l.events {
		if ev.Seq > since && len(out) < limit {
			out = append(out, ev)
		}
	}
	return out, nil
}

type fakeReporter struct {
	mu       sync.Mutex
	sessions []domain.Session
}

func (r *fakeReporter) PublishFailed(_ context.Context, sess domain.Session, _ error) {
	r.mu.Lock()
	r.sessions = append(r.sessions, sess)
	r.mu.Unlock()
}

func textEvent(user, text string) domain.InboundEvent {
	return domain.TextEvent(domain.PlatformTelegram, user, text, t0)
}

func locationEvent(user string, lat, lon float64) domain.InboundEvent {
	return domain.LocationEvent(domain.PlatformTelegram, user, lat, lon, t0)
}
