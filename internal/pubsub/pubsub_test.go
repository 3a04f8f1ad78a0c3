package pubsub

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeEvent struct {
	Value string
}

func TestPubSub(t *testing.T) {
	testee := New[fakeEvent]()
	s := testee.Subscribe(context.Background())
	ch := s.ResultChan()

	for i := 0; i < 3; i++ {
		testee.Publish(fakeEvent{Value: fmt.Sprintf("fake value %d", i)})
	}

	s.Stop()
	testee.Publish(fakeEvent{Value: "event sent after stop"})

	actual := make([]string, 0, 3)
	for evt := range ch {
		actual = append(actual, evt.Value)
	}

	require.Equal(t, []string{"fake value 0", "fake value 1", "fake value 2"}, actual, "received events")
}

func TestPubSubStopsSubscriptionWhenContextDone(t *testing.T) {
	testee := New[fakeEvent]()
	ctx, cancel := context.WithCancel(context.Background())
	s := testee.Subscribe(ctx)
	ch := s.ResultChan()

	cancel()

	select {
	case _, ok := <-ch:
		require.False(t, ok, "channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("subscription was not closed after context cancellation")
	}
}

func TestPubSubDropsSlowSubscriber(t *testing.T) {
	testee := New[fakeEvent]()
	testee.Timeout = 10 * time.Millisecond
	testee.BufferSize = 1
	s := testee.Subscribe(context.Background())
	ch := s.ResultChan()

	testee.Publish(fakeEvent{Value: "buffered"})
	testee.Publish(fakeEvent{Value: "dropped"})

	require.Eventually(t, func() bool {
		testee.mutex.RLock()
		defer testee.mutex.RUnlock()
		return len(testee.subscriptions) == 0
	}, time.Second, 5*time.Millisecond)

	evt, ok := <-ch
	require.True(t, ok)
	require.Equal(t, "buffered", evt.Value)

	_, ok = <-ch
	require.False(t, ok)
}

func TestPubSubStop(t *testing.T) {
	testee := New[fakeEvent]()
	s := testee.Subscribe(context.Background())
	testee.Stop()

	_, ok := <-s.ResultChan()
	require.False(t, ok)

	_, ok = <-testee.Subscribe(context.Background()).ResultChan()
	require.False(t, ok)
}
