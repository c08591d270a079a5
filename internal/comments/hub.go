package comments

import (
	"sync"

	"accord/api/internal/store"
	"accord/api/internal/util"
)

// Hub fans comment snapshots out to subscribers. Every mutation publishes
// the full current snapshot, not a delta, so a slow consumer is simply
// skipped ahead to the latest state; there is no per-event queue to
// overflow.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]map[string]*subscription
}

type subscription struct {
	proposalID string
	events     chan []store.Comment
	closed     bool
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]map[string]*subscription)}
}

// Subscribe registers a listener for one proposal's comments. The returned
// cancel func must be called exactly once; a forgotten cancel leaks the
// listener.
func (h *Hub) Subscribe(proposalID string) (<-chan []store.Comment, func()) {
	sub := &subscription{
		proposalID: proposalID,
		events:     make(chan []store.Comment, 1),
	}
	subID := util.NewID("sub")

	h.mu.Lock()
	byProposal, ok := h.subscribers[proposalID]
	if !ok {
		byProposal = make(map[string]*subscription)
		h.subscribers[proposalID] = byProposal
	}
	byProposal[subID] = sub
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub.closed {
			return
		}
		sub.closed = true
		close(sub.events)
		delete(h.subscribers[proposalID], subID)
		if len(h.subscribers[proposalID]) == 0 {
			delete(h.subscribers, proposalID)
		}
	}
	return sub.events, cancel
}

// Publish delivers the snapshot to every subscriber of the proposal. A
// subscriber that has not consumed the previous snapshot has it replaced by
// this one.
func (h *Hub) Publish(proposalID string, snapshot []store.Comment) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subscribers[proposalID] {
		if sub.closed {
			continue
		}
		select {
		case sub.events <- snapshot:
		default:
			// Drop the stale snapshot, then deliver the fresh one.
			select {
			case <-sub.events:
			default:
			}
			select {
			case sub.events <- snapshot:
			default:
			}
		}
	}
}

// SubscriberCount reports active listeners for a proposal.
func (h *Hub) SubscriberCount(proposalID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[proposalID])
}
