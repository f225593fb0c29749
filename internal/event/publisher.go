// Package event provides event publishing abstractions.
//
// Only the logging publisher is implemented today. When a real broker is
// needed, add a file implementing the Publisher interface and wire it up in
// main.go based on configuration.
package event

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/anivouch/anivouch/internal/domain"
)

// Publisher is the interface for publishing domain events.
// Implementations can be swapped without changing business logic.
type Publisher interface {
	// Publish sends an event to the message broker.
	// Implementations should handle retries and error logging internally.
	Publish(ctx context.Context, event domain.Event) error

	// Close cleanly shuts down the publisher.
	Close() error
}

// LoggingPublisher implements Publisher by logging events.
// Use this for development/testing or when you don't need a real broker yet.
type LoggingPublisher struct {
	logger *zap.Logger
}

func NewLoggingPublisher(logger *zap.Logger) *LoggingPublisher {
	return &LoggingPublisher{logger: logger}
}

func (p *LoggingPublisher) Publish(ctx context.Context, event domain.Event) error {
	data, _ := json.Marshal(event.Data)
	p.logger.Info("event published",
		zap.String("event_id", event.ID.String()),
		zap.String("event_type", event.Type),
		zap.String("user_id", event.UserID.String()),
		zap.ByteString("data", data),
	)
	return nil
}

func (p *LoggingPublisher) Close() error {
	return nil
}

// NoopPublisher is a no-op implementation for when event publishing is disabled.
type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

func (p *NoopPublisher) Publish(ctx context.Context, event domain.Event) error {
	return nil
}

func (p *NoopPublisher) Close() error {
	return nil
}
