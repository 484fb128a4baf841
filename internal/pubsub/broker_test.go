package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func next[T any](t *testing.T, ch <-chan Event[T]) Event[T] {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		require.FailNow(t, "no event")
	}
	return Event[T]{}
}

func TestBroker_DeliversWithSequence(t *testing.T) {
	b := NewBroker[string]()
	defer b.Close()

	ch := b.Subscribe(context.Background())
	b.Publish(ItemAddedEvent, "2")
	b.Publish(ItemModifiedEvent, "2")

	first, second := next(t, ch), next(t, ch)
	require.Equal(t, ItemAddedEvent, first.Type)
	require.Equal(t, "2", first.Payload)
	require.False(t, first.Timestamp.IsZero())
	require.Equal(t, first.Seq+1, second.Seq)
}

func TestBroker_TypeFilterKeepsGlobalSequence(t *testing.T) {
	b := NewBroker[int]()
	defer b.Close()

	removed := b.Subscribe(context.Background(), ItemRemovedEvent)
	b.Publish(ItemAddedEvent, 1)
	b.Publish(ItemRemovedEvent, 2)

	ev := next(t, removed)
	require.Equal(t, 2, ev.Payload)
	require.Equal(t, uint64(2), ev.Seq)
	require.Empty(t, removed)
}

func TestBroker_EverySubscriberGetsACopy(t *testing.T) {
	b := NewBroker[int]()
	defer b.Close()

	ctx := context.Background()
	chans := []<-chan Event[int]{b.Subscribe(ctx), b.Subscribe(ctx), b.Subscribe(ctx, PassCompletedEvent)}
	require.Equal(t, 3, b.SubscriberCount())

	b.Publish(PassCompletedEvent, 7)
	for _, ch := range chans {
		require.Equal(t, 7, next(t, ch).Payload)
	}
}

func TestBroker_CancelUnsubscribes(t *testing.T) {
	b := NewBroker[string]()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := b.Subscribe(ctx)
	cancel()

	require.Eventually(t, func() bool { return b.SubscriberCount() == 0 }, time.Second, 5*time.Millisecond)
	_, ok := <-ch
	require.False(t, ok)

	b.Publish(ItemAddedEvent, "after cancel")
}

func TestBroker_FullBufferDropsWithoutBlocking(t *testing.T) {
	b := NewBrokerWithBuffer[int](1)
	defer b.Close()

	ch := b.Subscribe(context.Background())
	done := make(chan struct{})
	go func() {
		for i := 1; i <= 3; i++ {
			b.Publish(ItemModifiedEvent, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		require.FailNow(t, "Publish blocked")
	}
	require.Equal(t, 1, next(t, ch).Payload)
	require.Equal(t, uint64(2), b.Dropped())

	b.Publish(ItemModifiedEvent, 4)
	ev := next(t, ch)
	require.Equal(t, uint64(4), ev.Seq, "the gap shows what was missed")
}

func TestBroker_Close(t *testing.T) {
	b := NewBroker[string]()
	ctx := context.Background()
	ch1, ch2 := b.Subscribe(ctx), b.Subscribe(ctx)

	b.Close()
	b.Close()

	for _, ch := range []<-chan Event[string]{ch1, ch2} {
		_, ok := <-ch
		require.False(t, ok)
	}
	require.Zero(t, b.SubscriberCount())

	_, ok := <-b.Subscribe(ctx)
	require.False(t, ok, "subscribing after close yields a closed channel")
	b.Publish(ItemAddedEvent, "ignored")
}
