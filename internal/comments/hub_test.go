package comments

import (
	"testing"

	"accord/api/internal/store"
)

func TestHubDeliversSnapshotToSubscriber(t *testing.T) {
	hub := NewHub()
	events, cancel := hub.Subscribe("prop-1")
	defer cancel()

	hub.Publish("prop-1", []store.Comment{{ID: "cmt-1"}})

	select {
	case snapshot := <-events:
		if len(snapshot) != 1 || snapshot[0].ID != "cmt-1" {
			t.Fatalf("unexpected snapshot %v", snapshot)
		}
	default:
		t.Fatal("expected snapshot to be buffered for the subscriber")
	}
}

func TestHubReplacesStaleSnapshot(t *testing.T) {
	hub := NewHub()
	events, cancel := hub.Subscribe("prop-1")
	defer cancel()

	hub.Publish("prop-1", []store.Comment{{ID: "stale"}})
	hub.Publish("prop-1", []store.Comment{{ID: "stale"}, {ID: "fresh"}})

	select {
	case snapshot := <-events:
		if len(snapshot) != 2 {
			t.Fatalf("expected the latest snapshot, got %v", snapshot)
		}
	default:
		t.Fatal("expected a snapshot after publish")
	}

	select {
	case extra := <-events:
		t.Fatalf("expected stale snapshot dropped, got %v", extra)
	default:
	}
}

func TestHubScopesDeliveryToProposal(t *testing.T) {
	hub := NewHub()
	events, cancel := hub.Subscribe("prop-1")
	defer cancel()

	hub.Publish("prop-2", []store.Comment{{ID: "other"}})

	select {
	case snapshot := <-events:
		t.Fatalf("expected no delivery for another proposal, got %v", snapshot)
	default:
	}
}

func TestHubCancelRemovesSubscriber(t *testing.T) {
	hub := NewHub()
	events, cancel := hub.Subscribe("prop-1")

	if count := hub.SubscriberCount("prop-1"); count != 1 {
		t.Fatalf("expected one subscriber, got %d", count)
	}

	cancel()

	if count := hub.SubscriberCount("prop-1"); count != 0 {
		t.Fatalf("expected zero subscribers after cancel, got %d", count)
	}
	if _, open := <-events; open {
		t.Fatal("expected event channel closed after cancel")
	}

	// Cancelling twice must not panic.
	cancel()

	// Publishing after cancel must not panic either.
	hub.Publish("prop-1", []store.Comment{{ID: "cmt-1"}})
}
