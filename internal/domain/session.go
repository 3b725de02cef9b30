package domain

import (
	"time"
)

type SessionState string

const (
	SessionPending   SessionState = "pending"
	SessionCompleted SessionState = "completed"
	SessionExpired   SessionState = "expired"
)

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Session is a report in progress for one user. Text and Location are filled
// independently; the session is complete once both are present.
type Session struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	Platform  Platform     `json:"platform"`
	Text      string       `json:"text,omitempty"`
	Location  *Location    `json:"location,omitempty"`
	State     SessionState `json:"state"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

func (s *Session) HasText() bool {
	return s.Text != ""
}

func (s *Session) HasLocation() bool {
	return s.Location != nil
}

func (s *Session) IsComplete() bool {
	return s.HasText() && s.HasLocation()
}

// IsDue reports whether the completion window has closed at now.
// The instant now == ExpiresAt counts as closed.
func (s *Session) IsDue(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Missing names the fields still absent, for logging.
func (s *Session) Missing() []string {
	var missing []string
	if !s.HasText() {
		missing = append(missing, "text")
	}
	if !s.HasLocation() {
		missing = append(missing, "location")
	}
	return missing
}
