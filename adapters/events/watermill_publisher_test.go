package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/bustrack/core"
)

func receive(t *testing.T, messages <-chan *message.Message) *message.Message {
	t.Helper()

	select {
	case msg := <-messages:
		msg.Ack()
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestPublishAuthEvent(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	messages, err := pubSub.Subscribe(context.Background(), "auth.events")
	require.NoError(t, err)

	publisher := NewWatermillPublisher(pubSub, "auth.events", "fleet.locations")
	require.NoError(t, publisher.PublishAuthEvent(context.Background(), LoginSucceeded, "alice"))

	msg := receive(t, messages)
	assert.NotEmpty(t, msg.UUID)

	var event AuthEvent
	require.NoError(t, json.Unmarshal(msg.Payload, &event))
	assert.Equal(t, LoginSucceeded, event.Type)
	assert.Equal(t, "alice", event.Username)
	assert.False(t, event.At.IsZero())
}

func TestPublishLocation(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	messages, err := pubSub.Subscribe(context.Background(), "fleet.locations")
	require.NoError(t, err)

	publisher := NewWatermillPublisher(pubSub, "auth.events", "fleet.locations")
	location := core.Location{
		BusID:     7,
		Latitude:  decimal.RequireFromString("6.9271"),
		Longitude: decimal.RequireFromString("79.8612"),
	}
	require.NoError(t, publisher.PublishLocation(context.Background(), location))

	msg := receive(t, messages)
	assert.JSONEq(t, `{"busId":7,"latitude":6.9271,"longitude":79.8612}`, string(mustField(t, msg.Payload, "location")))
}

func TestPublishAfterClose(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	require.NoError(t, pubSub.Close())

	publisher := NewWatermillPublisher(pubSub, "auth.events", "fleet.locations")
	require.Error(t, publisher.PublishAuthEvent(context.Background(), LoginSucceeded, "alice"))
}

func mustField(t *testing.T, payload []byte, field string) json.RawMessage {
	t.Helper()

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(payload, &fields))
	return fields[field]
}
