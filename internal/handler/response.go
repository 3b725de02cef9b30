package handler

import (
	"time"

	"github.com/set-night/terranote/internal/service"
)

const (
	statusAccepted = "accepted"
	statusIgnored  = "ignored"
	statusFailed   = "failed"
)

// outcomeResponse describes what happened to one inbound message.
type outcomeResponse struct {
	Status    string     `json:"status"`
	Session   string     `json:"session_id,omitempty"`
	State     string     `json:"state,omitempty"`
	Missing   []string   `json:"missing,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	NoteID    int64      `json:"note_id,omitempty"`
	EventSeq  int64      `json:"event_seq,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

func newOutcomeResponse(out service.Outcome, err error) outcomeResponse {
	resp := outcomeResponse{
		Status:  statusAccepted,
		Session: out.Session.ID,
		State:   string(out.Status),
	}

	switch out.Status {
	case service.OutcomePending:
		resp.Missing = out.Session.Missing()
		expiresAt := out.Session.ExpiresAt
		resp.ExpiresAt = &expiresAt
	case service.OutcomeCompleted:
		if out.Note != nil {
			resp.NoteID = out.Note.ID
		}
		if out.Event != nil {
			resp.EventSeq = out.Event.Seq
		}
	case service.OutcomeFailed:
		resp.Status = statusFailed
	}

	if err != nil {
		resp.Reason = err.Error()
	}
	return resp
}

func ignored(err error) outcomeResponse {
	return outcomeResponse{Status: statusIgnored, Reason: err.Error()}
}
