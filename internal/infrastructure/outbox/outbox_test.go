package outbox

import (
	"context"
	"sync"
	"testing"
	"time"

	domoutbox "github.com/minimart/order-settlement/internal/domain/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct{ name string }

func (e testEvent) EventName() string { return e.name }

func TestBus_DeliversToSubscriber(t *testing.T) {
	bus := NewBus(nil)
	received := make(chan domoutbox.Event, 1)

	bus.Subscribe("test.event", func(_ context.Context, e domoutbox.Event) error {
		received <- e
		return nil
	})
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "test.event"}))

	select {
	case e := <-received:
		assert.Equal(t, "test.event", e.EventName())
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestBus_DropsEventsWithoutSubscriber(t *testing.T) {
	bus := NewBus(nil)
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "nobody.listens"}))
}

func TestBus_FansOutToAllSubscribers(t *testing.T) {
	bus := NewBus(nil)

	var (
		mu    sync.Mutex
		calls int
	)
	done := make(chan struct{}, 2)
	handler := func(_ context.Context, _ domoutbox.Event) error {
		mu.Lock()
		calls++
		mu.Unlock()
		done <- struct{}{}
		return nil
	}
	bus.Subscribe("test.event", handler)
	bus.Subscribe("test.event", handler)
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "test.event"}))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("handler fanout incomplete")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, calls)
}

func TestBus_RecoversFromHandlerPanic(t *testing.T) {
	bus := NewBus(nil)
	survived := make(chan struct{}, 1)

	bus.Subscribe("test.event", func(_ context.Context, _ domoutbox.Event) error {
		panic("boom")
	})
	bus.Subscribe("test.event", func(_ context.Context, _ domoutbox.Event) error {
		survived <- struct{}{}
		return nil
	})
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "test.event"}))

	select {
	case <-survived:
	case <-time.After(2 * time.Second):
		t.Fatal("sibling handler did not run after panic")
	}
}

func TestBus_PublishSurvivesCallerCancellation(t *testing.T) {
	bus := NewBus(nil)
	received := make(chan struct{}, 1)

	bus.Subscribe("test.event", func(_ context.Context, _ domoutbox.Event) error {
		received <- struct{}{}
		return nil
	})
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	// The caller cancels right after publish, as a settle caller would after
	// receiving its failure response. The handler still runs.
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, bus.Publish(ctx, testEvent{name: "test.event"}))
	cancel()

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not run after caller cancellation")
	}
}
