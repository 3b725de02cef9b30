package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/set-night/terranote/internal/domain"
)

type NotePublisher interface {
	Publish(ctx context.Context, sess domain.Session) (*domain.Note, error)
}

type CallbackNotifier interface {
	NoteCreated(ctx context.Context, note *domain.Note) (domain.CallbackEvent, error)
}

// FailureReporter is told about sessions lost to a failed publish.
type FailureReporter interface {
	PublishFailed(ctx context.Context, sess domain.Session, err error)
}

type OutcomeStatus string

const (
	// OutcomePending means the session is still waiting for its pair.
	OutcomePending OutcomeStatus = "pending"
	// OutcomeCompleted means a note was created and announced.
	OutcomeCompleted OutcomeStatus = "completed"
	// OutcomeFailed means the session completed but the note could not be
	// created. The session is gone.
	OutcomeFailed OutcomeStatus = "failed"
)

type Outcome struct {
	Status  OutcomeStatus
	Session domain.Session
	Note    *domain.Note
	Event   *domain.CallbackEvent
}

// Engine pairs text and location messages per user and turns each completed
// pair into exactly one note and one note-created event.
type Engine struct {
	store     *SessionStore
	publisher NotePublisher
	notifier  CallbackNotifier
	reporter  FailureReporter
	now       func() time.Time
}

type EngineDeps struct {
	Store     *SessionStore
	Publisher NotePublisher
	Notifier  CallbackNotifier
	Reporter  FailureReporter
	Now       func() time.Time
}

func NewEngine(deps EngineDeps) *Engine {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		store:     deps.Store,
		publisher: deps.Publisher,
		notifier:  deps.Notifier,
		reporter:  deps.Reporter,
		now:       now,
	}
}

// Handle applies one inbound event. Only the call that completes a session
// waits on the notes API. A failed publish is returned and not retried.
func (e *Engine) Handle(ctx context.Context, ev domain.InboundEvent) (Outcome, error) {
	now := e.now()

	current, superseded := e.store.Upsert(ev, now)
	if superseded != nil {
		slog.Info("session expired before pairing, starting a new one",
			"user_id", ev.UserID,
			"expired_session_id", superseded.ID,
			"session_id", current.ID,
		)
	}

	sess, ok := e.store.TakeIfCompleted(ev.UserID, now)
	if !ok {
		slog.Debug("session waiting for pair",
			"user_id", current.UserID,
			"session_id", current.ID,
			"missing", current.Missing(),
			"expires_at", current.ExpiresAt,
		)
		return Outcome{Status: OutcomePending, Session: current}, nil
	}

	note, err := e.publisher.Publish(ctx, sess)
	if err != nil {
		slog.Error("publish note failed",
			"user_id", sess.UserID,
			"session_id", sess.ID,
			"error", err,
		)
		if e.reporter != nil {
			e.reporter.PublishFailed(ctx, sess, err)
		}
		return Outcome{Status: OutcomeFailed, Session: sess}, fmt.Errorf("publish session %s: %w", sess.ID, err)
	}

	slog.Info("note created",
		"user_id", sess.UserID,
		"session_id", sess.ID,
		"note_id", note.ID,
	)

	cb, err := e.notifier.NoteCreated(ctx, note)
	if err != nil {
		return Outcome{Status: OutcomeCompleted, Session: sess, Note: note}, fmt.Errorf("notify note %d: %w", note.ID, err)
	}
	return Outcome{Status: OutcomeCompleted, Session: sess, Note: note, Event: &cb}, nil
}
