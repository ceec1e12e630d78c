package editor

import (
	"context"
	"testing"
	"time"
)

func TestDispatcherPublishesToSubscriber(t *testing.T) {
	dispatcher := NewDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, cleanup := dispatcher.Subscribe(ctx, "owner-1")
	defer cleanup()

	dispatcher.Publish(Event{
		OwnerID:    "owner-1",
		EventType:  EventSaveStatus,
		DocumentID: "doc-a",
		Status:     StatusSaving,
		Timestamp:  time.Now().UTC(),
	})

	select {
	case received := <-stream:
		if received.EventType != EventSaveStatus || received.Status != StatusSaving {
			t.Fatalf("unexpected event %+v", received)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected event within deadline")
	}
}

func TestDispatcherIsolatedByOwner(t *testing.T) {
	dispatcher := NewDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ownerStream, cleanup := dispatcher.Subscribe(ctx, "owner-2")
	defer cleanup()
	otherStream, otherCleanup := dispatcher.Subscribe(ctx, "owner-3")
	defer otherCleanup()

	dispatcher.Publish(Event{OwnerID: "owner-3", EventType: EventDocumentChanged, DocumentID: "doc-c"})

	select {
	case <-ownerStream:
		t.Fatal("did not expect event for unrelated owner")
	case <-time.After(200 * time.Millisecond):
	}

	select {
	case event := <-otherStream:
		if event.DocumentID != "doc-c" {
			t.Fatalf("expected doc-c, received %s", event.DocumentID)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected event for subscribed owner")
	}
}

func TestDispatcherDropsWhenBufferFull(t *testing.T) {
	dispatcher := NewDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, cleanup := dispatcher.Subscribe(ctx, "owner-4")
	defer cleanup()

	for index := 0; index < 100; index++ {
		dispatcher.Publish(Event{OwnerID: "owner-4", EventType: EventDocumentChanged})
	}
	if len(stream) != cap(stream) {
		t.Fatalf("expected full buffer of %d, got %d", cap(stream), len(stream))
	}
}

func TestDispatcherIgnoresAnonymousSubscribers(t *testing.T) {
	dispatcher := NewDispatcher()
	stream, cleanup := dispatcher.Subscribe(context.Background(), "")
	defer cleanup()

	if _, open := <-stream; open {
		t.Fatal("expected closed stream for anonymous subscriber")
	}
}
