package telemetry

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solasta/solasta/pkg/engine"
)

func newTestBus(bufferSize int) *Bus {
	return NewBus(EventsConfig{Enabled: true, BufferSize: bufferSize}, zerolog.Nop())
}

func testEvent(goalID string) *engine.StreamEvent {
	return &engine.StreamEvent{
		Type:   engine.EventStepUpdate,
		GoalID: goalID,
	}
}

func receiveOne(t *testing.T, ch <-chan *engine.StreamEvent) *engine.StreamEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestBus_DeliversToSubscriber(t *testing.T) {
	bus := newTestBus(4)
	defer bus.Close()

	_, ch := bus.Subscribe("goal-1")
	bus.Publish(testEvent("goal-1"))

	ev := receiveOne(t, ch)
	assert.Equal(t, "goal-1", ev.GoalID)
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestBus_FiltersByGoalID(t *testing.T) {
	bus := newTestBus(4)
	defer bus.Close()

	_, filtered := bus.Subscribe("goal-1")
	_, all := bus.Subscribe("")

	bus.Publish(testEvent("goal-2"))

	ev := receiveOne(t, all)
	assert.Equal(t, "goal-2", ev.GoalID)

	select {
	case ev := <-filtered:
		t.Fatalf("filtered subscriber received event for %s", ev.GoalID)
	default:
	}
}

func TestBus_LateSubscriberMissesEarlierEvents(t *testing.T) {
	bus := newTestBus(4)
	defer bus.Close()

	bus.Publish(testEvent("goal-1"))

	_, ch := bus.Subscribe("goal-1")
	bus.Publish(testEvent("goal-1"))

	ev := receiveOne(t, ch)
	assert.Equal(t, "goal-1", ev.GoalID)

	select {
	case <-ch:
		t.Fatal("late subscriber received an event published before it registered")
	default:
	}
}

func TestBus_FullBufferDropsWithoutBlocking(t *testing.T) {
	bus := newTestBus(1)
	defer bus.Close()

	_, ch := bus.Subscribe("goal-1")

	done := make(chan struct{})
	go func() {
		bus.Publish(testEvent("goal-1"))
		bus.Publish(testEvent("goal-1"))
		bus.Publish(testEvent("goal-1"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber buffer")
	}

	// Only the first event fit the buffer
	receiveOne(t, ch)
	select {
	case <-ch:
		t.Fatal("dropped event was delivered")
	default:
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := newTestBus(4)
	defer bus.Close()

	id, ch := bus.Subscribe("")
	require.Equal(t, 1, bus.SubscriberCount())

	bus.Unsubscribe(id)
	assert.Equal(t, 0, bus.SubscriberCount())

	_, open := <-ch
	assert.False(t, open)

	// Unknown IDs are ignored
	bus.Unsubscribe("nope")
}

func TestBus_CloseIsIdempotent(t *testing.T) {
	bus := newTestBus(4)

	_, ch := bus.Subscribe("")
	bus.Close()
	bus.Close()

	_, open := <-ch
	assert.False(t, open)

	// Publishing after close is a no-op
	bus.Publish(testEvent("goal-1"))

	// Subscribing after close returns a closed channel
	_, late := bus.Subscribe("")
	_, open = <-late
	assert.False(t, open)
}

func TestBus_DisabledDropsEverything(t *testing.T) {
	bus := NewBus(EventsConfig{Enabled: false, BufferSize: 4}, zerolog.Nop())
	defer bus.Close()

	_, ch := bus.Subscribe("")
	bus.Publish(testEvent("goal-1"))

	select {
	case <-ch:
		t.Fatal("disabled bus delivered an event")
	default:
	}
}
