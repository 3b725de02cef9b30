package handler

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/set-night/terranote/internal/config"
	"github.com/set-night/terranote/internal/domain"
	"github.com/set-night/terranote/internal/service"
)

// handleIngest accepts a canonical InboundEvent.
func (h *Handler) handleIngest(c *fiber.Ctx) error {
	ev, err := h.normalizer.Canonical(c.Body())
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	out, err := h.engine.Handle(c.UserContext(), ev)
	resp := newOutcomeResponse(out, err)

	// Only the publish step fails a session; whatever the publisher error
	// class, the note does not exist. A notify error leaves the note created.
	switch out.Status {
	case service.OutcomeFailed:
		return c.Status(fiber.StatusBadGateway).JSON(resp)
	case service.OutcomeCompleted:
		return c.Status(fiber.StatusCreated).JSON(resp)
	default:
		return c.Status(fiber.StatusAccepted).JSON(resp)
	}
}

type eventsResponse struct {
	Events  []domain.CallbackEvent `json:"events"`
	LastSeq int64                  `json:"last_seq"`
}

// handleListEvents returns events after ?since. With ?wait it holds the
// request until an event arrives or the wait elapses.
func (h *Handler) handleListEvents(c *fiber.Ctx) error {
	since, err := queryInt(c, "since", 0)
	if err != nil || since < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "since must be a non-negative integer")
	}
	limit, err := queryInt(c, "limit", config.DefaultEventsLimit)
	if err != nil || limit <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "limit must be a positive integer")
	}
	if limit > config.MaxEventsLimit {
		limit = config.MaxEventsLimit
	}
	wait, err := parseWait(c.Query("wait"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	var notify <-chan domain.CallbackEvent
	if wait > 0 {
		ch, unsubscribe := h.events.Subscribe()
		defer unsubscribe()
		notify = ch
	}

	events, err := h.events.List(c.UserContext(), since, int(limit))
	if err != nil {
		return err
	}

	if len(events) == 0 && wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()

		select {
		case <-notify:
			events, err = h.events.List(c.UserContext(), since, int(limit))
			if err != nil {
				return err
			}
		case <-timer.C:
		case <-c.Context().Done():
		}
	}

	resp := eventsResponse{Events: events, LastSeq: since}
	if resp.Events == nil {
		resp.Events = []domain.CallbackEvent{}
	}
	if n := len(events); n > 0 {
		resp.LastSeq = events[n-1].Seq
	}
	return c.JSON(resp)
}

func queryInt(c *fiber.Ctx, key string, def int64) (int64, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

// parseWait accepts a Go duration ("5s") or whole seconds ("5"), capped at
// MaxEventsWait.
func parseWait(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		secs, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return 0, fiber.NewError(fiber.StatusBadRequest, "wait must be a duration or a number of seconds")
		}
		d = time.Duration(secs) * time.Second
	}
	if d < 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "wait must not be negative")
	}
	if d > config.MaxEventsWait {
		d = config.MaxEventsWait
	}
	return d, nil
}
