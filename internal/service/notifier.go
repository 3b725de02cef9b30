package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/set-night/terranote/internal/config"
	"github.com/set-night/terranote/internal/domain"
)

// EventLog is the append-only record behind the events feed.
type EventLog interface {
	// Append stores ev and returns it with Seq assigned.
	Append(ctx context.Context, ev domain.CallbackEvent) (domain.CallbackEvent, error)
	// List returns events with Seq greater than since, oldest first.
	List(ctx context.Context, since int64, limit int) ([]domain.CallbackEvent, error)
}

// Sink pushes events to an outside consumer.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev domain.CallbackEvent) error
}

// Notifier records note-created events and fans them out. Events reach the
// log before subscribers and sinks see them, so anything a consumer is told
// about can also be listed.
type Notifier struct {
	log   EventLog
	sinks []Sink
	now   func() time.Time

	mu      sync.Mutex
	subs    map[int]chan domain.CallbackEvent
	nextSub int
}

func NewNotifier(log EventLog, sinks ...Sink) *Notifier {
	return &Notifier{
		log:   log,
		sinks: sinks,
		now:   time.Now,
		subs:  make(map[int]chan domain.CallbackEvent),
	}
}

// NoteCreated emits the note-created event for note. Only a failure to record
// the event is returned; sink failures are logged.
func (n *Notifier) NoteCreated(ctx context.Context, note *domain.Note) (domain.CallbackEvent, error) {
	ev, err := n.log.Append(ctx, domain.CallbackEvent{
		Type:      domain.EventNoteCreated,
		Payload:   domain.CallbackPayload{NoteID: note.ID},
		CreatedAt: n.now().UTC(),
	})
	if err != nil {
		return domain.CallbackEvent{}, fmt.Errorf("record event: %w", err)
	}

	n.broadcast(ev)

	for _, sink := range n.sinks {
		if err := sink.Deliver(ctx, ev); err != nil {
			slog.Warn("callback delivery failed",
				"sink", sink.Name(),
				"seq", ev.Seq,
				"note_id", note.ID,
				"error", err,
			)
		}
	}
	return ev, nil
}

// Subscribe registers a listener for events emitted from now on. The
// returned function unsubscribes and closes the channel.
func (n *Notifier) Subscribe() (<-chan domain.CallbackEvent, func()) {
	ch := make(chan domain.CallbackEvent, config.SubscriberBuffer)

	n.mu.Lock()
	id := n.nextSub
	n.nextSub++
	n.subs[id] = ch
	n.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
			close(ch)
		})
	}
}

func (n *Notifier) broadcast(ev domain.CallbackEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for id, ch := range n.subs {
		select {
		case ch <- ev:
		default:
			slog.Warn("subscriber buffer full, event skipped", "subscriber", id, "seq", ev.Seq)
		}
	}
}

func (n *Notifier) List(ctx context.Context, since int64, limit int) ([]domain.CallbackEvent, error) {
	return n.log.List(ctx, since, limit)
}
