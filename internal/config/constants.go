package config

import "time"

const (
	// Event log backends
	EventsBackendMemory   = "memory"
	EventsBackendPostgres = "postgres"
	EventsBackendDynamoDB = "dynamodb"

	// Longest long-poll accepted by GET /events
	MaxEventsWait = 30 * time.Second

	// Page size for GET /events
	DefaultEventsLimit = 100
	MaxEventsLimit     = 1000

	// Buffered events per in-process subscriber
	SubscriberBuffer = 16

	// How long a published note is remembered for idempotent republish,
	// as a multiple of the session TTL
	PublishedCacheTTLFactor = 10

	// Telegram limits
	MaxTelegramMessageLen = 4096

	// Request body limit for webhooks
	MaxWebhookBodyBytes = 1 << 20
)
