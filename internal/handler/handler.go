package handler

import (
	"context"
	"time"

	"github.com/set-night/terranote/internal/config"
	"github.com/set-night/terranote/internal/domain"
	"github.com/set-night/terranote/internal/inbound"
	"github.com/set-night/terranote/internal/service"
)

// EventHandler applies one normalized event; *service.Engine implements it.
type EventHandler interface {
	Handle(ctx context.Context, ev domain.InboundEvent) (service.Outcome, error)
}

// EventFeed backs GET /events; *service.Notifier implements it.
type EventFeed interface {
	Subscribe() (<-chan domain.CallbackEvent, func())
	List(ctx context.Context, since int64, limit int) ([]domain.CallbackEvent, error)
}

// SessionLister backs GET /sessions and /health; *service.SessionStore
// implements it.
type SessionLister interface {
	Active() []domain.Session
	Len() int
	TTL() time.Duration
}

// Handler holds all dependencies needed by the HTTP routes.
type Handler struct {
	cfg        *config.Config
	engine     EventHandler
	normalizer *inbound.Normalizer
	sessions   SessionLister
	events     EventFeed
	startedAt  time.Time
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Cfg        *config.Config
	Engine     EventHandler
	Normalizer *inbound.Normalizer
	Sessions   SessionLister
	Events     EventFeed
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		cfg:        deps.Cfg,
		engine:     deps.Engine,
		normalizer: deps.Normalizer,
		sessions:   deps.Sessions,
		events:     deps.Events,
		startedAt:  time.Now(),
	}
}
