package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/layer-3/bustrack/core"
	"github.com/layer-3/bustrack/ports"
)

// Auth event types
const (
	LoginSucceeded         = "login_succeeded"
	ChallengeIssued        = "challenge_issued"
	PasswordSet            = "password_set"
	PasswordResetRequested = "password_reset_requested"
	PasswordResetConfirmed = "password_reset_confirmed"
	PasswordChanged        = "password_changed"
	UserDisabled           = "user_disabled"
)

// AuthEvent is published whenever an authentication step completes
type AuthEvent struct {
	Type     string    `json:"type"`
	Username string    `json:"username"`
	At       time.Time `json:"at"`
}

// LocationEvent is published for every stored driver location
type LocationEvent struct {
	Location core.Location `json:"location"`
	At       time.Time     `json:"at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher     message.Publisher
	authTopic     string
	locationTopic string
	now           func() time.Time
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher, authTopic, locationTopic string) ports.EventPublisher {
	return &WatermillPublisher{
		publisher:     publisher,
		authTopic:     authTopic,
		locationTopic: locationTopic,
		now:           time.Now,
	}
}

// PublishAuthEvent publishes an auth event keyed by a fresh message id
func (p *WatermillPublisher) PublishAuthEvent(ctx context.Context, eventType, username string) error {
	return p.publish(ctx, p.authTopic, AuthEvent{
		Type:     eventType,
		Username: username,
		At:       p.now().UTC(),
	})
}

// PublishLocation publishes a stored location
func (p *WatermillPublisher) PublishLocation(ctx context.Context, location core.Location) error {
	return p.publish(ctx, p.locationTopic, LocationEvent{
		Location: location,
		At:       p.now().UTC(),
	})
}

func (p *WatermillPublisher) publish(ctx context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// NopPublisher drops every event; used when events are disabled
type NopPublisher struct{}

func (NopPublisher) PublishAuthEvent(context.Context, string, string) error { return nil }

func (NopPublisher) PublishLocation(context.Context, core.Location) error { return nil }
