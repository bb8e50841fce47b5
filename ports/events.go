package ports

import (
	"context"

	"github.com/layer-3/bustrack/core"
)

// EventPublisher publishes events for other services
type EventPublisher interface {
	PublishAuthEvent(ctx context.Context, eventType, username string) error
	PublishLocation(ctx context.Context, location core.Location) error
}
