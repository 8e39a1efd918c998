package event

import (
	"sync"
	"testing"
)

func TestBus_SubscribeAndPublish(t *testing.T) {
	bus := NewBus()

	var got Event
	id := bus.Subscribe(TypeTaskQueued, func(e Event) { got = e })
	if id == "" {
		t.Fatal("Subscribe should return a non-empty ID")
	}

	bus.Publish(NewTaskQueuedEvent("1/foo", "foo"))

	queued, ok := got.(TaskQueuedEvent)
	if !ok {
		t.Fatalf("handler received %T, want TaskQueuedEvent", got)
	}
	if queued.Task != "1/foo" || queued.Name != "foo" {
		t.Errorf("unexpected payload: %+v", queued)
	}
	if queued.Timestamp().IsZero() {
		t.Error("timestamp should be set")
	}
}

func TestBus_OnlyMatchingTypeReceives(t *testing.T) {
	bus := NewBus()

	calls := 0
	bus.Subscribe(TypeFlowStarted, func(Event) { calls++ })
	bus.Publish(NewQueueDepthChangedEvent(3))

	if calls != 0 {
		t.Errorf("handler for %s called %d times for another type", TypeFlowStarted, calls)
	}
}

func TestBus_SpecificBeforeWildcard(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.SubscribeAll(func(Event) { order = append(order, "all") })
	bus.Subscribe(TypeFlowsPruned, func(Event) { order = append(order, "specific") })

	bus.Publish(NewFlowsPrunedEvent([]int{2}))

	if len(order) != 2 || order[0] != "specific" || order[1] != "all" {
		t.Errorf("dispatch order = %v, want [specific all]", order)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	calls := 0
	id := bus.Subscribe(TypeTaskFinished, func(Event) { calls++ })
	keep := bus.Subscribe(TypeTaskFinished, func(Event) {})

	if !bus.Unsubscribe(id) {
		t.Fatal("Unsubscribe should report a known id")
	}
	if bus.Unsubscribe(id) {
		t.Error("second Unsubscribe should report false")
	}
	bus.Publish(NewTaskFinishedEvent("1/a", "succeeded"))

	if calls != 0 {
		t.Errorf("removed handler called %d times", calls)
	}
	if bus.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount = %d, want 1", bus.SubscriptionCount())
	}
	_ = keep
}

func TestBus_PanickingHandlerDoesNotStopDelivery(t *testing.T) {
	bus := NewBus()

	reached := false
	bus.Subscribe(TypeTasksReleased, func(Event) { panic("boom") })
	bus.Subscribe(TypeTasksReleased, func(Event) { reached = true })

	bus.Publish(NewTasksReleasedEvent([]string{"a"}))

	if !reached {
		t.Error("second handler should run after the first panics")
	}
}

func TestBus_NilPublishIsNoop(t *testing.T) {
	var bus *Bus
	bus.Publish(NewQueueDepthChangedEvent(0))
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	count := 0
	bus.SubscribeAll(func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				bus.Publish(NewQueueDepthChangedEvent(j))
			}
		}()
	}
	wg.Wait()

	if count != 100 {
		t.Errorf("received %d events, want 100", count)
	}
}
