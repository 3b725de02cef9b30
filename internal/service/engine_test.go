package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/set-night/terranote/internal/domain"
)

type engineFixture struct {
	clock     *fakeClock
	store     *SessionStore
	publisher *fakePublisher
	log       *memLog
	notifier  *Notifier
	reporter  *fakeReporter
	engine    *Engine
	scheduler *ExpiryScheduler
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	f := &engineFixture{
		clock:     newFakeClock(),
		store:     NewSessionStore(20*time.Second, 4),
		publisher: &fakePublisher{},
		log:       &memLog{},
		reporter:  &fakeReporter{},
	}
	f.notifier = NewNotifier(f.log)
	f.engine = NewEngine(EngineDeps{
		Store:     f.store,
		Publisher: f.publisher,
		Notifier:  f.notifier,
		Reporter:  f.reporter,
		Now:       f.clock.Now,
	})
	f.scheduler = NewExpiryScheduler(f.store, time.Second, f.clock.Now)
	return f
}

func (f *engineFixture) handle(t *testing.T, ev domain.InboundEvent) Outcome {
	t.Helper()
	out, err := f.engine.Handle(context.Background(), ev)
	require.NoError(t, err)
	return out
}

func TestEngine_TextThenLocationCreatesOneNote(t *testing.T) {
	f := newEngineFixture(t)
	events, unsubscribe := f.notifier.Subscribe()
	defer unsubscribe()

	out := f.handle(t, textEvent("123456789", "Hay una vía cerrada por obras."))
	require.Equal(t, OutcomePending, out.Status)

	f.clock.Advance(time.Second)
	out = f.handle(t, locationEvent("123456789", 4.711, -74.0721))
	require.Equal(t, OutcomeCompleted, out.Status)
	require.NotNil(t, out.Note)
	require.NotNil(t, out.Event)

	calls := f.publisher.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "Hay una vía cerrada por obras.", calls[0].Text)
	require.InDelta(t, 4.711, calls[0].Location.Latitude, 1e-6)
	require.InDelta(t, -74.0721, calls[0].Location.Longitude, 1e-6)

	select {
	case ev := <-events:
		require.Equal(t, domain.EventNoteCreated, ev.Type)
		require.Equal(t, out.Note.ID, ev.Payload.NoteID)
	default:
		t.Fatal("subscriber registered before the publish did not see the event")
	}
	require.Equal(t, 0, f.store.Len())
}

func TestEngine_LocationThenText(t *testing.T) {
	f := newEngineFixture(t)

	require.Equal(t, OutcomePending, f.handle(t, locationEvent("u1", 4.711, -74.0721)).Status)
	f.clock.Advance(19 * time.Second)
	out := f.handle(t, textEvent("u1", "Árbol caído"))

	require.Equal(t, OutcomeCompleted, out.Status)
	require.Equal(t, "Árbol caído", out.Note.LatestComment())
	require.Len(t, f.log.events, 1)
}

func TestEngine_OnlyTextExpiresSilently(t *testing.T) {
	f := newEngineFixture(t)

	f.handle(t, textEvent("u1", "Prueba sin ubicación."))
	f.clock.Advance(25 * time.Second)
	expired := f.scheduler.Sweep()

	require.Len(t, expired, 1)
	require.Empty(t, f.publisher.Calls())
	require.Empty(t, f.log.events)
	require.Equal(t, 0, f.store.Len())
}

func TestEngine_OnlyLocationExpiresSilently(t *testing.T) {
	f := newEngineFixture(t)

	f.handle(t, locationEvent("u1", 4.711, -74.0721))
	f.clock.Advance(25 * time.Second)
	require.Len(t, f.scheduler.Sweep(), 1)
	require.Empty(t, f.publisher.Calls())
	require.Empty(t, f.log.events)
}

func TestEngine_PairAtExactExpiryStartsNewSession(t *testing.T) {
	f := newEngineFixture(t)

	first := f.handle(t, textEvent("u1", "hola"))
	f.clock.Advance(20 * time.Second)
	out := f.handle(t, locationEvent("u1", 1, 2))

	require.Equal(t, OutcomePending, out.Status)
	require.NotEqual(t, first.Session.ID, out.Session.ID)
	require.Empty(t, out.Session.Text)
	require.Empty(t, f.publisher.Calls())
}

func TestEngine_LateMessageAfterSweepStartsNewSession(t *testing.T) {
	f := newEngineFixture(t)

	f.handle(t, textEvent("u1", "hola"))
	f.clock.Advance(21 * time.Second)
	require.Len(t, f.scheduler.Sweep(), 1)

	out := f.handle(t, locationEvent("u1", 1, 2))
	require.Equal(t, OutcomePending, out.Status)
	require.Equal(t, f.clock.Now(), out.Session.CreatedAt)

	// The new session can still complete inside its own window.
	f.clock.Advance(time.Second)
	out = f.handle(t, textEvent("u1", "otra vez"))
	require.Equal(t, OutcomeCompleted, out.Status)
	require.Len(t, f.publisher.Calls(), 1)
}

func TestEngine_PublishFailureIsSurfacedAndNotRetried(t *testing.T) {
	f := newEngineFixture(t)
	f.publisher.err = fmt.Errorf("%w: status 503", domain.ErrPublishUnavailable)

	f.handle(t, textEvent("u1", "hola"))
	out, err := f.engine.Handle(context.Background(), locationEvent("u1", 1, 2))

	require.ErrorIs(t, err, domain.ErrPublishUnavailable)
	require.Equal(t, OutcomeFailed, out.Status)
	require.Len(t, f.publisher.Calls(), 1)
	require.Len(t, f.reporter.sessions, 1)
	require.Empty(t, f.log.events)
	require.Equal(t, 0, f.store.Len(), "failed session is not re-enqueued")

	f.clock.Advance(time.Minute)
	require.Empty(t, f.scheduler.Sweep())
	require.Len(t, f.publisher.Calls(), 1)
}

func TestEngine_NotifierFailureKeepsNote(t *testing.T) {
	f := newEngineFixture(t)
	f.log.err = errors.New("disk full")

	f.handle(t, textEvent("u1", "hola"))
	out, err := f.engine.Handle(context.Background(), locationEvent("u1", 1, 2))

	require.Error(t, err)
	require.Equal(t, OutcomeCompleted, out.Status)
	require.NotNil(t, out.Note)
	require.Nil(t, out.Event)
}

func TestEngine_UsersAreIndependent(t *testing.T) {
	f := newEngineFixture(t)

	f.handle(t, textEvent("alice", "hola"))
	out := f.handle(t, locationEvent("bob", 1, 2))
	require.Equal(t, OutcomePending, out.Status)
	require.Empty(t, f.publisher.Calls())
	require.Equal(t, 2, f.store.Len())
}

func TestEngine_ConcurrentPairsPublishOncePerSession(t *testing.T) {
	f := newEngineFixture(t)
	const users = 50

	var wg sync.WaitGroup
	errs := make(chan error, 2*users)
	for i := 0; i < users; i++ {
		user := fmt.Sprintf("u%d", i)
		for _, ev := range []domain.InboundEvent{textEvent(user, "hola"), locationEvent(user, 1, 2)} {
			wg.Add(1)
			go func(ev domain.InboundEvent) {
				defer wg.Done()
				if _, err := f.engine.Handle(context.Background(), ev); err != nil {
					errs <- err
				}
			}(ev)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.Len(t, f.publisher.Calls(), users)
	seen := map[string]bool{}
	for _, c := range f.publisher.Calls() {
		require.False(t, seen[c.UserID], "user %s published twice", c.UserID)
		seen[c.UserID] = true
	}
	require.Len(t, f.log.events, users)
}
