package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigshield.org/internal/events"
)

func TestPublishReachesSubscribers(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	a := s.Subscribe(ctx)
	b := s.Subscribe(ctx)
	require.Equal(t, 2, s.Subscribers())

	evt := events.New(time.Now(), events.ClaimSubmitted{ClaimID: "c1"})
	require.NoError(t, s.Publish(ctx, evt))
	assert.Equal(t, evt.ID, (<-a).ID)
	assert.Equal(t, evt.ID, (<-b).ID)

	cancel()
	_, open := <-a
	assert.False(t, open)
	assert.Eventually(t, func() bool { return s.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = s.Subscribe(ctx)

	for i := 0; i < 20; i++ {
		require.NoError(t, s.Publish(ctx, events.New(time.Now(), events.VoteCast{})))
	}
	assert.Equal(t, uint64(4), s.Dropped())
}
