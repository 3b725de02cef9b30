// Package osm holds the wire format of the OpenStreetMap notes API (0.6,
// JSON flavour): a note is a GeoJSON point feature whose properties carry
// the note id, status and comment thread.
package osm

import (
	"time"

	"github.com/set-night/terranote/internal/domain"
)

// DateLayout is how the notes API renders timestamps, e.g.
// "2026-03-01 12:00:00 UTC".
const DateLayout = "2006-01-02 15:04:05 MST"

const (
	NotesPath = "/api/0.6/notes.json"

	StatusOpen = "open"

	ActionOpened = "opened"
)

type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

type Comment struct {
	Date   string `json:"date"`
	Action string `json:"action"`
	Text   string `json:"text"`
	HTML   string `json:"html,omitempty"`
}

type Properties struct {
	ID          int64     `json:"id"`
	URL         string    `json:"url,omitempty"`
	Status      string    `json:"status"`
	DateCreated string    `json:"date_created"`
	Comments    []Comment `json:"comments"`
}

type Feature struct {
	Type       string     `json:"type"`
	Geometry   Geometry   `json:"geometry"`
	Properties Properties `json:"properties"`
}

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// NewFeature builds an open note at (lat, lon) with text as its opening
// comment. GeoJSON orders coordinates longitude first.
func NewFeature(id int64, lat, lon float64, text string, at time.Time) Feature {
	date := FormatDate(at)
	return Feature{
		Type: "Feature",
		Geometry: Geometry{
			Type:        "Point",
			Coordinates: []float64{lon, lat},
		},
		Properties: Properties{
			ID:          id,
			Status:      StatusOpen,
			DateCreated: date,
			Comments: []Comment{
				{Date: date, Action: ActionOpened, Text: text},
			},
		},
	}
}

func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate returns the zero time for dates it cannot read.
func ParseDate(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Valid reports whether f looks like a note: a point with two coordinates
// and a positive id.
func (f *Feature) Valid() bool {
	return len(f.Geometry.Coordinates) == 2 && f.Properties.ID > 0
}

// ToNote converts the wire feature into the domain note.
func (f *Feature) ToNote() *domain.Note {
	note := &domain.Note{
		ID:        f.Properties.ID,
		Status:    f.Properties.Status,
		CreatedAt: ParseDate(f.Properties.DateCreated),
		Comments:  make([]domain.NoteComment, 0, len(f.Properties.Comments)),
	}
	if len(f.Geometry.Coordinates) == 2 {
		note.Longitude = f.Geometry.Coordinates[0]
		note.Latitude = f.Geometry.Coordinates[1]
	}
	for _, c := range f.Properties.Comments {
		note.Comments = append(note.Comments, domain.NoteComment{
			Action: c.Action,
			Text:   c.Text,
			Date:   ParseDate(c.Date),
		})
	}
	return note
}
