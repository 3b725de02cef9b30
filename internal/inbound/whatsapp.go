package inbound

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/set-night/terranote/internal/domain"
	"github.com/shopspring/decimal"
)

type waWebhook struct {
	Object string    `json:"object"`
	Entry  []waEntry `json:"entry"`
}

type waEntry struct {
	ID      string     `json:"id"`
	Changes []waChange `json:"changes"`
}

type waChange struct {
	Field string `json:"field"`
	Value struct {
		MessagingProduct string            `json:"messaging_product"`
		Messages         []json.RawMessage `json:"messages"`
	} `json:"value"`
}

type waMessage struct {
	From string `json:"from"`
	ID   string `json:"id"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text"`
	// Coordinates arrive as JSON numbers from the Cloud API but as strings
	// from some relays. They stay raw until the message itself is checked.
	Location *struct {
		Latitude  json.RawMessage `json:"latitude"`
		Longitude json.RawMessage `json:"longitude"`
		Name      string          `json:"name"`
		Address   string          `json:"address"`
	} `json:"location"`
}

// WhatsAppResult holds the events of one webhook call. A single notification
// may batch several messages; unusable ones are reported in Dropped without
// failing their siblings.
type WhatsAppResult struct {
	Events  []domain.InboundEvent
	Dropped []error
}

// WhatsApp normalizes a Cloud API webhook notification. Notifications that
// only carry delivery statuses yield no events and no error.
func (n *Normalizer) WhatsApp(raw []byte) (WhatsAppResult, error) {
	if err := validate(n.whatsapp, raw); err != nil {
		return WhatsAppResult{}, malformed("whatsapp webhook: %v", err)
	}

	var hook waWebhook
	if err := json.Unmarshal(raw, &hook); err != nil {
		return WhatsAppResult{}, malformed("whatsapp webhook: %v", err)
	}
	if len(hook.Entry) == 0 {
		return WhatsAppResult{}, malformed("whatsapp webhook has no entry")
	}

	now := n.now()
	var res WhatsAppResult
	for _, entry := range hook.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				ev, err := n.whatsAppMessage(msg)
				if err != nil {
					res.Dropped = append(res.Dropped, err)
					continue
				}
				ev.ReceivedAt = now
				res.Events = append(res.Events, ev)
			}
		}
	}
	return res, nil
}

func (n *Normalizer) whatsAppMessage(raw json.RawMessage) (domain.InboundEvent, error) {
	if err := validate(n.waMsg, raw); err != nil {
		return domain.InboundEvent{}, malformed("whatsapp message: %v", err)
	}
	var msg waMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.InboundEvent{}, malformed("whatsapp message: %v", err)
	}

	from := strings.TrimSpace(msg.From)
	if from == "" {
		return domain.InboundEvent{}, malformed("whatsapp message %s has no sender", msg.ID)
	}

	switch msg.Type {
	case "text":
		if msg.Text == nil || strings.TrimSpace(msg.Text.Body) == "" {
			return domain.InboundEvent{}, malformed("whatsapp text message %s has no body", msg.ID)
		}
		return domain.TextEvent(domain.PlatformWhatsApp, from, msg.Text.Body, n.now()), nil
	case "location":
		if msg.Location == nil {
			return domain.InboundEvent{}, malformed("whatsapp location message %s has no location", msg.ID)
		}
		lat, err := coordinate(msg.Location.Latitude)
		if err != nil {
			return domain.InboundEvent{}, malformed("whatsapp message %s latitude: %v", msg.ID, err)
		}
		lon, err := coordinate(msg.Location.Longitude)
		if err != nil {
			return domain.InboundEvent{}, malformed("whatsapp message %s longitude: %v", msg.ID, err)
		}
		if err := domain.ValidateCoordinates(lat, lon); err != nil {
			return domain.InboundEvent{}, malformed("whatsapp message %s: %v", msg.ID, err)
		}
		return domain.LocationEvent(domain.PlatformWhatsApp, from, lat, lon, n.now()), nil
	default:
		return domain.InboundEvent{}, unsupported("whatsapp message %s has type %q", msg.ID, msg.Type)
	}
}

func coordinate(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 {
		return 0, errors.New("missing")
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, err
		}
	}
	d, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}
