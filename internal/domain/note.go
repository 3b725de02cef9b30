package domain

import "time"

type NoteComment struct {
	Action string    `json:"action"`
	Text   string    `json:"text"`
	Date   time.Time `json:"date"`
}

// Note is the map annotation as returned by the notes API.
type Note struct {
	ID        int64         `json:"id"`
	Latitude  float64       `json:"latitude"`
	Longitude float64       `json:"longitude"`
	Status    string        `json:"status"`
	Comments  []NoteComment `json:"comments"`
	CreatedAt time.Time     `json:"created_at"`
}

// LatestComment returns the text of the most recent comment, or "".
func (n *Note) LatestComment() string {
	if len(n.Comments) == 0 {
		return ""
	}
	return n.Comments[len(n.Comments)-1].Text
}

const EventNoteCreated = "note-created"

type CallbackPayload struct {
	NoteID int64 `json:"note_id"`
}

// CallbackEvent is what consumers of the events feed observe.
type CallbackEvent struct {
	Seq       int64           `json:"seq"`
	Type      string          `json:"type"`
	Payload   CallbackPayload `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
