package inbound

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"
	"github.com/set-night/terranote/internal/domain"
)

// Telegram normalizes a Bot API update. The sender is identified by from.id,
// falling back to chat.id for channel-style messages without a sender.
func (n *Normalizer) Telegram(raw []byte) (domain.InboundEvent, error) {
	if err := validate(n.telegram, raw); err != nil {
		return domain.InboundEvent{}, malformed("telegram update: %v", err)
	}

	var update models.Update
	if err := json.Unmarshal(raw, &update); err != nil {
		return domain.InboundEvent{}, malformed("telegram update: %v", err)
	}
	msg := update.Message
	if msg == nil {
		return domain.InboundEvent{}, malformed("telegram update %d has no message", update.ID)
	}

	userID := msg.Chat.ID
	if msg.From != nil && msg.From.ID != 0 {
		userID = msg.From.ID
	}
	if userID == 0 {
		return domain.InboundEvent{}, malformed("telegram message %d has no sender", msg.ID)
	}
	user := strconv.FormatInt(userID, 10)
	now := n.now()

	hasText := strings.TrimSpace(msg.Text) != ""
	switch {
	case hasText && msg.Location != nil:
		return domain.InboundEvent{}, malformed("telegram message %d carries both text and location", msg.ID)
	case hasText:
		return domain.TextEvent(domain.PlatformTelegram, user, msg.Text, now), nil
	case msg.Location != nil:
		lat, lon := msg.Location.Latitude, msg.Location.Longitude
		if err := domain.ValidateCoordinates(lat, lon); err != nil {
			return domain.InboundEvent{}, malformed("telegram message %d: %v", msg.ID, err)
		}
		return domain.LocationEvent(domain.PlatformTelegram, user, lat, lon, now), nil
	default:
		return domain.InboundEvent{}, unsupported("telegram message %d has neither text nor location", msg.ID)
	}
}
