package logging

import (
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	logger, err := New("debug", "console")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	_, err = New("loud", "json")
	require.Error(t, err)

	_, err = New("info", "xml")
	require.Error(t, err)
}

func TestWatermillAdapter(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	adapter := NewWatermillAdapter(zap.New(core))

	adapter.With(watermill.LogFields{"topic": "auth.events"}).
		Error("publish failed", errors.New("boom"), watermill.LogFields{"uuid": "1"})
	adapter.Trace("trace message", nil)

	entries := logs.All()
	require.Len(t, entries, 2)

	ctx := entries[0].ContextMap()
	assert.Equal(t, "publish failed", entries[0].Message)
	assert.Equal(t, "auth.events", ctx["topic"])
	assert.Equal(t, "1", ctx["uuid"])
	assert.Equal(t, "boom", ctx["error"])
	assert.Equal(t, zap.DebugLevel, entries[1].Level)
}
