package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/set-night/terranote/internal/config"
	"github.com/set-night/terranote/internal/fakeosm"
	"github.com/set-night/terranote/internal/inbound"
	"github.com/set-night/terranote/internal/repository"
	"github.com/set-night/terranote/internal/service"
)

const (
	testUser    = 123456789
	testMessage = "Hay una vía cerrada por obras."
	testLat     = 4.711
	testLon     = -74.0721
	testTTL     = 20 * time.Second
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
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

// stack wires the core against a fake OSM listening on a real port, with
// callbacks delivered to the fake's control endpoint.
type stack struct {
	app       *fiber.App
	osm       *fakeosm.Server
	clock     *fakeClock
	store     *service.SessionStore
	notifier  *service.Notifier
	scheduler *service.ExpiryScheduler
}

func newStack(t *testing.T) *stack {
	t.Helper()

	osmServer := fakeosm.New()
	osmApp := osmServer.App()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go osmApp.Listener(ln)
	t.Cleanup(func() { osmApp.Shutdown() })
	osmURL := "http://" + ln.Addr().String()

	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	cfg := &config.Config{WhatsAppVerifyToken: "verify-me"}

	store := service.NewSessionStore(testTTL, 4)
	normalizer, err := inbound.NewNormalizer(clock.Now)
	require.NoError(t, err)

	notifier := service.NewNotifier(
		repository.NewMemoryEventLog(100),
		service.NewWebhookSink(osmURL+fakeosm.EventsPath, 5*time.Second),
	)
	engine := service.NewEngine(service.EngineDeps{
		Store:     store,
		Publisher: service.NewOSMPublisher(osmURL, "", 5*time.Second, time.Hour),
		Notifier:  notifier,
		Now:       clock.Now,
	})

	h := New(Deps{
		Cfg:        cfg,
		Engine:     engine,
		Normalizer: normalizer,
		Sessions:   store,
		Events:     notifier,
	})

	return &stack{
		app:       NewApp(h),
		osm:       osmServer,
		clock:     clock,
		store:     store,
		notifier:  notifier,
		scheduler: service.NewExpiryScheduler(store, time.Second, clock.Now),
	}
}

func (s *stack) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func (s *stack) doJSON(t *testing.T, method, path string, body, out any) *http.Response {
	t.Helper()
	resp, raw := s.do(t, method, path, body)
	require.NoError(t, json.Unmarshal(raw, out), "body: %s", raw)
	return resp
}

var updateSeq int64 = 100000000

func telegramText(userID int64, text string) map[string]any {
	updateSeq++
	return map[string]any{
		"update_id": updateSeq,
		"message": map[string]any{
			"message_id": updateSeq,
			"date":       1772366400,
			"from":       map[string]any{"id": userID, "is_bot": false, "first_name": "Test", "username": "testuser"},
			"chat":       map[string]any{"id": userID, "type": "private"},
			"text":       text,
		},
	}
}

func telegramLocation(userID int64, lat, lon float64) map[string]any {
	updateSeq++
	return map[string]any{
		"update_id": updateSeq,
		"message": map[string]any{
			"message_id": updateSeq,
			"date":       1772366401,
			"from":       map[string]any{"id": userID, "is_bot": false, "first_name": "Test", "username": "testuser"},
			"chat":       map[string]any{"id": userID, "type": "private"},
			"location":   map[string]any{"latitude": lat, "longitude": lon},
		},
	}
}

func whatsAppWebhook(messages ...string) string {
	joined := ""
	for i, m := range messages {
		if i > 0 {
			joined += ","
		}
		joined += m
	}
	return fmt.Sprintf(`{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "wa_e2e",
			"changes": [{
				"field": "messages",
				"value": {
					"messaging_product": "whatsapp",
					"metadata": {"display_phone_number": "1555000000", "phone_number_id": "phone-test"},
					"messages": [%s]
				}
			}]
		}]
	}`, joined)
}
