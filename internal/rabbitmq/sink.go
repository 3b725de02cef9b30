package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/set-night/terranote/internal/domain"
)

// EventSink forwards callback events to a fanout exchange.
type EventSink struct {
	publisher Publisher
	exchange  string
}

func NewEventSink(publisher Publisher, exchange string) *EventSink {
	return &EventSink{publisher: publisher, exchange: exchange}
}

func (s *EventSink) Name() string {
	return "amqp"
}

func (s *EventSink) Deliver(_ context.Context, ev domain.CallbackEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := s.publisher.Publish(s.exchange, body); err != nil {
		return fmt.Errorf("publish to %s: %w", s.exchange, err)
	}
	return nil
}
