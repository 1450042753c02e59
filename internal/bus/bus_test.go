package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := New()
	sub := b.Subscribe(1)
	defer sub.Unsubscribe()

	b.Publish(1, "assistant", "hello")

	select {
	case evt := <-sub.Events():
		assert.Equal(t, int64(1), evt.TaskID)
		assert.Equal(t, "assistant", evt.Type)
		assert.Equal(t, "hello", evt.Content)
	case <-time.After(time.Second):
		t.Fatal("expected an event")
	}
}

func TestPublishDoesNotCrossTasks(t *testing.T) {
	b := New()
	subA := b.Subscribe(1)
	defer subA.Unsubscribe()
	subB := b.Subscribe(2)
	defer subB.Unsubscribe()

	b.Publish(1, "assistant", "for task 1")

	select {
	case <-subB.Events():
		t.Fatal("task 2 subscriber should not receive task 1 events")
	case <-time.After(50 * time.Millisecond):
	}

	select {
	case evt := <-subA.Events():
		assert.Equal(t, "for task 1", evt.Content)
	case <-time.After(time.Second):
		t.Fatal("expected an event")
	}
}

func TestPublishWithNoSubscribersDoesNotBlock(t *testing.T) {
	b := New()
	done := make(chan struct{})
	go func() {
		b.Publish(99, "assistant", "nobody listening")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked with no subscribers")
	}
}

func TestSlowSubscriberIsDroppedNotBlocked(t *testing.T) {
	b := New()
	sub := b.Subscribe(1)
	defer sub.Unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer+10; i++ {
			b.Publish(1, "assistant", "x")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber buffer")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	sub := b.Subscribe(1)
	sub.Unsubscribe()

	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.Equal(t, 0, b.SubscriberCount(1))
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := New()
	sub := b.Subscribe(1)
	sub.Unsubscribe()
	require.NotPanics(t, sub.Unsubscribe)
}
