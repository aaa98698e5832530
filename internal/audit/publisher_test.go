package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorbase/pkg/domain"
)

func TestPublisherDeliversSynchronously(t *testing.T) {
	sink := NewInMemorySink()
	p := NewPublisher(sink)

	userID := domain.UserID(uuid.New())
	err := p.Emit(context.Background(), Event{
		Action: string(EventAccountRegistered),
		UserID: userID,
		Email:  "ada@example.com",
	})
	require.NoError(t, err)

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, string(EventAccountRegistered), events[0].Action)
	assert.Equal(t, userID, events[0].UserID)
	assert.False(t, events[0].Timestamp.IsZero(), "missing timestamps are filled in")
}

func TestPublisherAsyncDrainsOnClose(t *testing.T) {
	sink := NewInMemorySink()
	p := NewPublisher(sink, WithAsyncBuffer(8))

	for range 5 {
		require.NoError(t, p.Emit(context.Background(), Event{Action: string(EventSignedIn)}))
	}
	p.Close()

	assert.Len(t, sink.Events(), 5)
}

func TestPublisherKeepsExplicitTimestamp(t *testing.T) {
	sink := NewInMemorySink()
	p := NewPublisher(sink)

	ts := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, p.Emit(context.Background(), Event{Action: string(EventEmailVerified), Timestamp: ts}))

	events := sink.Events()
	require.Len(t, events, 1)
	assert.True(t, events[0].Timestamp.Equal(ts))
}
