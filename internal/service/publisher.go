package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/terranote/internal/domain"
	"github.com/set-night/terranote/internal/osm"
)

// idempotencyNamespace scopes the name-based UUIDs used as idempotency keys.
var idempotencyNamespace = uuid.MustParse("6f0c6f4e-5a8e-4c1b-9d51-8f3a2b7c9e10")

// IdempotencyKey derives a stable key for a session from its user and
// creation instant, so the same session always maps to the same key.
func IdempotencyKey(sess domain.Session) string {
	name := sess.UserID + "|" + sess.CreatedAt.UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(idempotencyNamespace, []byte(name)).String()
}

// OSMPublisher creates notes through an OpenStreetMap-compatible notes API.
type OSMPublisher struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	published   *PublishedCache
}

func NewOSMPublisher(baseURL, accessToken string, timeout, cacheTTL time.Duration) *OSMPublisher {
	return &OSMPublisher{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: timeout},
		published:   NewPublishedCache(cacheTTL),
	}
}

// Publish creates the note for a completed session. Transport failures,
// throttling and 5xx answers are ErrPublishUnavailable; any other non-2xx is
// ErrPublishRejected.
func (p *OSMPublisher) Publish(ctx context.Context, sess domain.Session) (*domain.Note, error) {
	if !sess.IsComplete() {
		return nil, fmt.Errorf("session %s is missing %s", sess.ID, strings.Join(sess.Missing(), " and "))
	}

	key := IdempotencyKey(sess)
	if note := p.published.Get(key); note != nil {
		return note, nil
	}

	form := url.Values{}
	form.Set("lat", strconv.FormatFloat(sess.Location.Latitude, 'f', -1, 64))
	form.Set("lon", strconv.FormatFloat(sess.Location.Longitude, 'f', -1, 64))
	form.Set("text", sess.Text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+osm.NotesPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Idempotency-Key", key)
	if p.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.accessToken)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: create note: %v", domain.ErrPublishUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrPublishUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status %d", domain.ErrPublishUnavailable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrPublishRejected, resp.StatusCode, snippet(body))
	}

	var feature osm.Feature
	if err := json.Unmarshal(body, &feature); err != nil {
		return nil, fmt.Errorf("%w: parse note: %v", domain.ErrPublishUnavailable, err)
	}
	if !feature.Valid() {
		return nil, fmt.Errorf("%w: response is not a note: %s", domain.ErrPublishUnavailable, snippet(body))
	}

	note := feature.ToNote()
	p.published.Set(key, *note)
	return note, nil
}

func snippet(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}
