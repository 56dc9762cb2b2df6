package rabbitmq

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-room/internal/telemetry"
)

func TestNewPublisherWithoutURLIsNoop(t *testing.T) {
	p := NewPublisher("", "chat.events")

	assert.Equal(t, "noop", PublisherMode(p))
	assert.Equal(t, "empty amqp url", PublisherNoopReason(p))
	require.NoError(t, p.Publish(context.Background(), "audit.chat", telemetry.AuditEnvelope{EventType: "audit_log"}))
	require.NoError(t, p.Close())
}

func TestPublisherModeUnknown(t *testing.T) {
	assert.Equal(t, "unknown", PublisherMode(nil))
	assert.Empty(t, PublisherNoopReason(nil))
}
