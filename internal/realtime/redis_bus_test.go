package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newBusPair(t *testing.T) (*RedisBus, *RedisBus) {
	t.Helper()
	mr := miniredis.RunT(t)

	a, err := NewRedisBus("redis://"+mr.Addr(), nil)
	if err != nil {
		t.Fatalf("creating bus a: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	b, err := NewRedisBus("redis://"+mr.Addr(), nil)
	if err != nil {
		t.Fatalf("creating bus b: %v", err)
	}
	t.Cleanup(func() { b.Close() })

	return a, b
}

func TestRedisBusDeliversAcrossInstances(t *testing.T) {
	a, b := newBusPair(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan Frame, 1)
	boards := make(chan string, 1)
	go b.Subscribe(ctx, func(boardID string, frame Frame) {
		boards <- boardID
		received <- frame
	})

	// Give the subscriber a moment to attach
	time.Sleep(50 * time.Millisecond)

	frame := Frame{Event: EventListCreate, Data: ListPayload{ID: "list-1", BoardID: "board-1", Title: "Todo"}}
	if err := a.Publish(ctx, "board-1", frame); err != nil {
		t.Fatalf("publishing: %v", err)
	}

	select {
	case boardID := <-boards:
		if boardID != "board-1" {
			t.Errorf("board %q, want board-1", boardID)
		}
		got := <-received
		if got.Event != EventListCreate {
			t.Errorf("event %q, want %q", got.Event, EventListCreate)
		}
		raw, _ := json.Marshal(got.Data)
		var p ListPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			t.Fatalf("decoding payload: %v", err)
		}
		if p.ID != "list-1" || p.Title != "Todo" {
			t.Errorf("payload %+v", p)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for the frame")
	}
}

func TestRedisBusSkipsOwnMessages(t *testing.T) {
	a, b := newBusPair(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fromA := make(chan string, 2)
	go a.Subscribe(ctx, func(boardID string, frame Frame) {
		fromA <- frame.Event
	})

	fromB := make(chan string, 2)
	go b.Subscribe(ctx, func(boardID string, frame Frame) {
		fromB <- frame.Event
	})

	time.Sleep(50 * time.Millisecond)

	if err := a.Publish(ctx, "board-1", Frame{Event: EventBoardUpdate}); err != nil {
		t.Fatalf("publishing: %v", err)
	}

	// The other instance receives it
	select {
	case event := <-fromB:
		if event != EventBoardUpdate {
			t.Errorf("event %q, want %q", event, EventBoardUpdate)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for the frame on bus b")
	}

	// The publishing instance does not hear itself
	select {
	case event := <-fromA:
		t.Errorf("publisher received its own frame %q", event)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestNoopBusSubscribeBlocksUntilCancel(t *testing.T) {
	bus := NewNoopBus()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- bus.Subscribe(ctx, func(string, Frame) {
			t.Error("noop bus delivered a frame")
		})
	}()

	if err := bus.Publish(ctx, "board-1", Frame{Event: EventBoardUpdate}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case <-done:
		t.Fatal("subscribe returned before cancellation")
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("subscribe returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("subscribe did not return after cancellation")
	}
}
