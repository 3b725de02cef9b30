// Package fakeosm is an in-memory stand-in for the OpenStreetMap notes API.
// It also records callback events POSTed to /__control__/events so an
// end-to-end run can observe both sides of a note creation.
package fakeosm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/set-night/terranote/internal/domain"
	"github.com/set-night/terranote/internal/osm"
)

const (
	NotePath      = "/api/0.6/notes/:file"
	EventsPath    = "/__control__/events"
	FailPath      = "/__control__/fail"
	ResetPath     = "/__control__/reset"
	notesURLTempl = "https://www.openstreetmap.org/note/%d"
)

// Server keeps notes and callback events in memory.
type Server struct {
	mu       sync.Mutex
	notes    []osm.Feature
	byKey    map[string]int
	events   []json.RawMessage
	failures []int
	nextID   int64
	now      func() time.Time
}

func New() *Server {
	return &Server{
		byKey: make(map[string]int),
		now:   time.Now,
	}
}

// App returns a fiber app serving the notes API and the control endpoints.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "fake-osm",
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).SendString(err.Error())
		},
	})

	app.Post(osm.NotesPath, s.handleCreateNote)
	app.Get(osm.NotesPath, s.handleListNotes)
	app.Get(NotePath, s.handleGetNote)

	app.Post(EventsPath, s.handleRecordEvent)
	app.Get(EventsPath, s.handleListEvents)
	app.Post(FailPath, s.handleFail)
	app.Post(ResetPath, s.handleReset)
	return app
}

func (s *Server) handleCreateNote(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.failures) > 0 {
		status := s.failures[0]
		s.failures = s.failures[1:]
		return fiber.NewError(status, "injected failure")
	}

	lat, err := formFloat(c, "lat")
	if err != nil {
		return err
	}
	lon, err := formFloat(c, "lon")
	if err != nil {
		return err
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return fiber.NewError(fiber.StatusBadRequest, "Latitude or longitude out of range")
	}
	text := strings.TrimSpace(c.FormValue("text"))
	if text == "" {
		return fiber.NewError(fiber.StatusBadRequest, "No text was given")
	}

	key := c.Get("Idempotency-Key")
	if idx, ok := s.byKey[key]; ok && key != "" {
		return c.JSON(s.notes[idx])
	}

	s.nextID++
	note := osm.NewFeature(s.nextID, lat, lon, text, s.now())
	note.Properties.URL = fmt.Sprintf(notesURLTempl, s.nextID)
	s.notes = append(s.notes, note)
	if key != "" {
		s.byKey[key] = len(s.notes) - 1
	}

	slog.Info("fake osm note created", "note_id", note.Properties.ID, "lat", lat, "lon", lon)
	return c.JSON(note)
}

func formFloat(c *fiber.Ctx, key string) (float64, error) {
	raw := c.FormValue(key)
	if raw == "" {
		return 0, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("No %s was given", key))
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("%s is not a number", key))
	}
	return v, nil
}

// handleListNotes returns every note, oldest first.
func (s *Server) handleListNotes(c *fiber.Ctx) error {
	return c.JSON(osm.FeatureCollection{Type: "FeatureCollection", Features: s.Notes()})
}

func (s *Server) handleGetNote(c *fiber.Ctx) error {
	raw, ok := strings.CutSuffix(c.Params("file"), ".json")
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "only the json format is served")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid note id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, note := range s.notes {
		if note.Properties.ID == id {
			return c.JSON(note)
		}
	}
	return fiber.NewError(fiber.StatusNotFound, "Note not found")
}

func (s *Server) handleRecordEvent(c *fiber.Ctx) error {
	body := c.Body()
	if !json.Valid(body) {
		return fiber.NewError(fiber.StatusBadRequest, "body is not JSON")
	}

	s.mu.Lock()
	s.events = append(s.events, json.RawMessage(append([]byte(nil), body...)))
	s.mu.Unlock()
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleListEvents(c *fiber.Ctx) error {
	s.mu.Lock()
	events := append([]json.RawMessage{}, s.events...)
	s.mu.Unlock()
	return c.JSON(events)
}

type failRequest struct {
	Count  int `json:"count"`
	Status int `json:"status"`
}

func (s *Server) handleFail(c *fiber.Ctx) error {
	var req failRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if req.Count <= 0 {
		req.Count = 1
	}
	s.FailNext(req.Count, req.Status)
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleReset(c *fiber.Ctx) error {
	s.Reset()
	return c.SendStatus(fiber.StatusNoContent)
}

// FailNext makes the next n note creations answer status (503 when zero).
func (s *Server) FailNext(n, status int) {
	if status == 0 {
		status = fiber.StatusServiceUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.failures = append(s.failures, status)
	}
}

// Reset forgets notes, events and pending failures. Note ids keep counting.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = nil
	s.byKey = make(map[string]int)
	s.events = nil
	s.failures = nil
}

func (s *Server) Notes() []osm.Feature {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]osm.Feature{}, s.notes...)
}

// LatestNote returns the most recently created note.
func (s *Server) LatestNote() (osm.Feature, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.notes) == 0 {
		return osm.Feature{}, false
	}
	return s.notes[len(s.notes)-1], true
}

// Events decodes the recorded callback events. Bodies that are not events
// are skipped.
func (s *Server) Events() []domain.CallbackEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.CallbackEvent, 0, len(s.events))
	for _, raw := range s.events {
		var ev domain.CallbackEvent
		if err := json.Unmarshal(raw, &ev); err != nil || ev.Type == "" {
			continue
		}
		out = append(out, ev)
	}
	return out
}
