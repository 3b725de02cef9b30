package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type Platform string

const (
	PlatformTelegram Platform = "telegram"
	PlatformWhatsApp Platform = "whatsapp"
	PlatformAPI      Platform = "api"
)

type MessageKind string

const (
	KindText     MessageKind = "text"
	KindLocation MessageKind = "location"
)

// InboundEvent is a chat message reduced to the one thing the core cares
// about: either a piece of text or a location, attributed to a user.
type InboundEvent struct {
	UserID     string      `json:"user_id"`
	Platform   Platform    `json:"platform"`
	Kind       MessageKind `json:"kind"`
	Text       string      `json:"text,omitempty"`
	Latitude   *float64    `json:"latitude,omitempty"`
	Longitude  *float64    `json:"longitude,omitempty"`
	ReceivedAt time.Time   `json:"received_at"`
}

func TextEvent(platform Platform, userID, text string, at time.Time) InboundEvent {
	return InboundEvent{
		UserID:     userID,
		Platform:   platform,
		Kind:       KindText,
		Text:       text,
		ReceivedAt: at,
	}
}

func LocationEvent(platform Platform, userID string, lat, lon float64, at time.Time) InboundEvent {
	return InboundEvent{
		UserID:     userID,
		Platform:   platform,
		Kind:       KindLocation,
		Latitude:   &lat,
		Longitude:  &lon,
		ReceivedAt: at,
	}
}

// Location returns the coordinates of a location event.
func (e InboundEvent) Location() Location {
	var loc Location
	if e.Latitude != nil {
		loc.Latitude = *e.Latitude
	}
	if e.Longitude != nil {
		loc.Longitude = *e.Longitude
	}
	return loc
}

// Validate checks that the event carries exactly what its kind requires.
func (e InboundEvent) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return fmt.Errorf("%w: empty user_id", ErrInvalidEvent)
	}
	switch e.Kind {
	case KindText:
		if strings.TrimSpace(e.Text) == "" {
			return fmt.Errorf("%w: empty text", ErrInvalidEvent)
		}
	case KindLocation:
		if e.Latitude == nil || e.Longitude == nil {
			return fmt.Errorf("%w: location without coordinates", ErrInvalidEvent)
		}
		if err := ValidateCoordinates(*e.Latitude, *e.Longitude); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
	default:
		return fmt.Errorf("%w: kind %q", ErrUnsupportedMessageKind, e.Kind)
	}
	return nil
}

// ValidateCoordinates checks well-formedness only: finite degrees in range.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return fmt.Errorf("coordinates must be finite")
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range", lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude %v out of range", lon)
	}
	return nil
}
