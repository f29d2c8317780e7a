package relay

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTopic[T any](t *testing.T, capacity int) *Topic[T] {
	t.Helper()
	topic, err := NewTopic[T](capacity, nil)
	require.NoError(t, err)
	return topic
}

func drain[T any](sub *Subscription[T]) []T {
	var out []T
	for {
		select {
		case v := <-sub.C():
			out = append(out, v)
		default:
			return out
		}
	}
}

func TestNewTopic_InvalidCapacity(t *testing.T) {
	_, err := NewTopic[string](0, nil)
	assert.ErrorIs(t, err, ErrInvalidCapacity)

	_, err = NewTopic[string](-1, nil)
	assert.ErrorIs(t, err, ErrInvalidCapacity)
}

func TestTopic_FanOut(t *testing.T) {
	topic := newTestTopic[string](t, 10)
	a := topic.Subscribe()
	b := topic.Subscribe()

	assert.Equal(t, 2, topic.Publish("x", nil))
	assert.Equal(t, 2, topic.Publish("y", nil))

	assert.Equal(t, []string{"x", "y"}, drain(a))
	assert.Equal(t, []string{"x", "y"}, drain(b))
}

func TestTopic_ExcludesOrigin(t *testing.T) {
	topic := newTestTopic[string](t, 10)
	sender := topic.Subscribe()
	other := topic.Subscribe()

	assert.Equal(t, 1, topic.Publish("hello", sender))

	assert.Empty(t, drain(sender))
	assert.Equal(t, []string{"hello"}, drain(other))
}

func TestTopic_NoSubscribers(t *testing.T) {
	topic := newTestTopic[string](t, 10)
	assert.Equal(t, 0, topic.Publish("lost", nil))

	late := topic.Subscribe()
	assert.Empty(t, drain(late), "values published before subscribing are not replayed")
}

func TestTopic_DropOldest(t *testing.T) {
	var drops atomic.Int64
	topic, err := NewTopic[int](100, func() { drops.Add(1) })
	require.NoError(t, err)

	sub := topic.Subscribe()
	for i := 1; i <= 150; i++ {
		topic.Publish(i, nil)
	}

	got := drain(sub)
	require.Len(t, got, 100)
	assert.Equal(t, 51, got[0])
	assert.Equal(t, 150, got[99])
	for i := 1; i < len(got); i++ {
		assert.Equal(t, got[i-1]+1, got[i])
	}
	assert.Equal(t, uint64(50), sub.Dropped())
	assert.Equal(t, int64(50), drops.Load())
}

func TestTopic_SlowSubscriberIsolation(t *testing.T) {
	topic := newTestTopic[int](t, 5)
	slow := topic.Subscribe()
	fast := topic.Subscribe()

	var received []int
	for i := 0; i < 20; i++ {
		topic.Publish(i, nil)
		received = append(received, <-fast.C())
	}

	assert.Len(t, received, 20)
	assert.Equal(t, uint64(0), fast.Dropped())
	assert.Equal(t, []int{15, 16, 17, 18, 19}, drain(slow))
	assert.Equal(t, uint64(15), slow.Dropped())
}

func TestSubscription_Close(t *testing.T) {
	topic := newTestTopic[string](t, 10)
	sub := topic.Subscribe()
	require.Equal(t, 1, topic.Len())

	sub.Close()
	sub.Close()

	assert.Equal(t, 0, topic.Len())
	_, ok := <-sub.C()
	assert.False(t, ok, "channel should be closed")
	assert.Equal(t, 0, topic.Publish("after", nil))
}

func TestTopic_ConcurrentPublishAndClose(t *testing.T) {
	topic := newTestTopic[int](t, 4)

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				topic.Publish(i, nil)
			}
		}()
	}

	for s := 0; s < 8; s++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := topic.Subscribe()
			deadline := time.After(5 * time.Millisecond)
			for {
				select {
				case <-sub.C():
				case <-deadline:
					sub.Close()
					return
				}
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, 0, topic.Len())
}
