// Package inbound turns platform webhook payloads into domain.InboundEvent.
package inbound

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/set-night/terranote/internal/domain"
)

// Normalizer is safe for concurrent use; it holds only compiled schemas.
type Normalizer struct {
	telegram *jsonschema.Schema
	whatsapp *jsonschema.Schema
	waMsg    *jsonschema.Schema
	now      func() time.Time
}

func NewNormalizer(now func() time.Time) (*Normalizer, error) {
	if now == nil {
		now = time.Now
	}
	tg, err := compileSchema("telegram_update.json")
	if err != nil {
		return nil, err
	}
	wa, err := compileSchema("whatsapp_webhook.json")
	if err != nil {
		return nil, err
	}
	waMsg, err := compileSchema("whatsapp_message.json")
	if err != nil {
		return nil, err
	}
	return &Normalizer{telegram: tg, whatsapp: wa, waMsg: waMsg, now: now}, nil
}

// Canonical decodes an InboundEvent posted directly to the core.
func (n *Normalizer) Canonical(raw []byte) (domain.InboundEvent, error) {
	var ev domain.InboundEvent
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ev); err != nil {
		return domain.InboundEvent{}, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	if ev.Platform == "" {
		ev.Platform = domain.PlatformAPI
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = n.now()
	}
	if err := ev.Validate(); err != nil {
		return domain.InboundEvent{}, err
	}
	return ev, nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrMalformedPayload, fmt.Sprintf(format, args...))
}

func unsupported(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrUnsupportedMessageKind, fmt.Sprintf(format, args...))
}
