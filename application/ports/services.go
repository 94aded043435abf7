package ports

import (
	"context"
	"time"

	"recipes-backend/domain/events"
)

// EventBus publishes domain events
type EventBus interface {
	Publish(ctx context.Context, event events.DomainEvent) error
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// PresignedUpload is a time-limited URL a client can PUT an object to
type PresignedUpload struct {
	URL       string
	Key       string
	ExpiresAt time.Time
}

// ImageSigner issues upload URLs for recipe images
type ImageSigner interface {
	PresignUpload(ctx context.Context, key, contentType string) (*PresignedUpload, error)
}
