package events

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestEventBus_Subscribe(t *testing.T) {
	bus := New(10)
	defer bus.Close()

	ch := bus.Subscribe()

	event := NewWorkflowStartedEvent("exec-1", "wf", "Nightly", 3, false)
	bus.Publish(event)

	select {
	case received := <-ch:
		if received.EventType() != TypeWorkflowStarted {
			t.Errorf("expected %s, got %s", TypeWorkflowStarted, received.EventType())
		}
		if received.ExecutionID() != "exec-1" {
			t.Errorf("expected exec-1, got %s", received.ExecutionID())
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for event")
	}
}

func TestEventBus_SubscribeByType(t *testing.T) {
	bus := New(10)
	defer bus.Close()

	taskCh := bus.Subscribe(TypeTaskStarted, TypeTaskCompleted)
	allCh := bus.Subscribe()

	bus.Publish(NewWorkflowStartedEvent("exec-1", "wf", "W", 1, false))
	bus.Publish(NewTaskStartedEvent("exec-1", "task-1", "Build", "cli_command"))

	// allCh should receive both
	for i := 0; i < 2; i++ {
		select {
		case <-allCh:
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("allCh should receive event %d", i)
		}
	}

	// taskCh should only receive task event
	select {
	case received := <-taskCh:
		if received.EventType() != TypeTaskStarted {
			t.Errorf("expected task_started, got %s", received.EventType())
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("taskCh should receive task event")
	}
	select {
	case e := <-taskCh:
		t.Errorf("taskCh received unexpected %s", e.EventType())
	default:
	}
}

func TestEventBus_SlowSubscriberNeverBlocksPublisher(t *testing.T) {
	bus := New(5)
	defer bus.Close()

	ch := bus.Subscribe() // never drained while publishing

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(NewTaskLogEvent("exec-1", "t1", "log line"))
		}
		bus.Publish(NewWorkflowFailedEvent("exec-1", []string{"t1 failed"}))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a full subscriber")
	}

	var last Event
	for len(ch) > 0 {
		last = <-ch
	}
	if last == nil || last.EventType() != TypeWorkflowFailed {
		t.Errorf("newest buffered event should be workflow_failed, got %v", last)
	}
}

func TestEventBus_RingBufferDropsOldest(t *testing.T) {
	bus := New(5)
	defer bus.Close()

	ch := bus.Subscribe()

	for i := 0; i < 10; i++ {
		bus.Publish(NewTaskLogEvent("exec-1", "t1", fmt.Sprintf("line %d", i)))
	}

	if bus.DroppedCount() == 0 {
		t.Error("expected some events to be dropped")
	}

	// The newest events survive.
	var last Event
drain:
	for {
		select {
		case e := <-ch:
			last = e
		default:
			break drain
		}
	}
	if last == nil {
		t.Fatal("should have received at least some events")
	}
	if line := last.(TaskLogEvent).Line; line != "line 9" {
		t.Errorf("expected newest event to survive, got %q", line)
	}
}

func TestEventBus_ConcurrentPublish(t *testing.T) {
	bus := New(100)
	defer bus.Close()

	ch := bus.Subscribe()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bus.Publish(NewTaskLogEvent("exec-1", fmt.Sprintf("t%d", id), "concurrent"))
			}
		}(i)
	}
	wg.Wait()

	received := 0
drainLoop:
	for {
		select {
		case <-ch:
			received++
		default:
			break drainLoop
		}
	}

	if received == 0 {
		t.Error("should have received some events")
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := New(10)
	defer bus.Close()

	ch := bus.Subscribe()
	if bus.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", bus.SubscriberCount())
	}
	bus.Unsubscribe(ch)

	_, ok := <-ch
	if ok {
		t.Error("channel should be closed after unsubscribe")
	}
	if bus.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", bus.SubscriberCount())
	}
}

func TestEventBus_SubscribeForExecution(t *testing.T) {
	bus := New(10)
	defer bus.Close()

	chA := bus.SubscribeForExecution("exec-a")
	chB := bus.SubscribeForExecution("exec-b", TypeTaskWaiting)
	chAll := bus.SubscribeForExecution("")

	bus.Publish(NewTaskStartedEvent("exec-a", "t1", "T1", "custom"))
	bus.Publish(NewTaskWaitingEvent("exec-b", "ask", "req-1", "Name?", "string"))
	bus.Publish(NewTaskStartedEvent("exec-b", "t2", "T2", "custom"))

	select {
	case e := <-chA:
		if e.ExecutionID() != "exec-a" {
			t.Errorf("chA received wrong execution: %s", e.ExecutionID())
		}
	default:
		t.Error("chA should have received an event")
	}
	select {
	case e := <-chA:
		t.Errorf("chA should not receive exec-b events, got %s", e.ExecutionID())
	default:
	}

	select {
	case e := <-chB:
		if e.EventType() != TypeTaskWaiting {
			t.Errorf("chB received wrong type: %s", e.EventType())
		}
	default:
		t.Error("chB should have received the waiting event")
	}
	select {
	case e := <-chB:
		t.Errorf("chB should only receive task_waiting, got %s", e.EventType())
	default:
	}

	count := 0
	for i := 0; i < 3; i++ {
		select {
		case <-chAll:
			count++
		default:
		}
	}
	if count != 3 {
		t.Errorf("chAll should receive 3 events, got %d", count)
	}
}

func TestEventBus_PublishAfterClose(t *testing.T) {
	bus := New(10)
	ch := bus.Subscribe()
	bus.Close()
	bus.Close()

	// Must not panic on closed channels.
	bus.Publish(NewTaskLogEvent("exec-1", "", "late"))
	bus.Publish(NewWorkflowPausedEvent("exec-1", []string{"ask"}))

	if _, ok := <-ch; ok {
		t.Error("channel should be closed")
	}
}

func TestConstructors(t *testing.T) {
	events := []Event{
		NewTaskStartedEvent("e", "t", "n", "custom"),
		NewTaskLogEvent("e", "t", "l"),
		NewTaskCompletedEvent("e", "t", "o"),
		NewTaskFailedEvent("e", "t", "boom"),
		NewTaskWaitingEvent("e", "t", "r", "p", "number"),
		NewInputProvidedEvent("e", "t", "r"),
		NewWorkflowStartedEvent("e", "w", "n", 1, true),
		NewWorkflowCompletedEvent("e", time.Second, 1),
		NewWorkflowFailedEvent("e", nil),
		NewWorkflowPausedEvent("e", nil),
	}
	want := []string{
		TypeTaskStarted, TypeTaskLog, TypeTaskCompleted, TypeTaskFailed, TypeTaskWaiting,
		TypeInputProvided, TypeWorkflowStarted, TypeWorkflowCompleted, TypeWorkflowFailed,
		TypeWorkflowPaused,
	}
	for i, e := range events {
		if e.EventType() != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], e.EventType())
		}
		if e.ExecutionID() != "e" {
			t.Errorf("event %d: expected execution e, got %s", i, e.ExecutionID())
		}
		if e.Timestamp().IsZero() {
			t.Errorf("event %d: timestamp not set", i)
		}
	}
}
