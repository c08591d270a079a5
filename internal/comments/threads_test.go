package comments

import (
	"testing"
	"time"

	"accord/api/internal/store"
)

func commentAt(id, parentID string, createdAt time.Time) store.Comment {
	comment := store.Comment{ID: id, ProposalID: "prop-1", CreatedAt: createdAt}
	if parentID != "" {
		comment.ParentID = &parentID
	}
	return comment
}

func TestBuildThreadsGroupsRepliesUnderRoots(t *testing.T) {
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	input := []store.Comment{
		commentAt("root-1", "", base),
		commentAt("root-2", "", base.Add(time.Minute)),
		// Replies arrive out of creation order.
		commentAt("reply-b", "root-1", base.Add(3*time.Minute)),
		commentAt("reply-a", "root-1", base.Add(2*time.Minute)),
	}

	threads := BuildThreads(input)
	if len(threads) != 2 {
		t.Fatalf("expected two threads, got %d", len(threads))
	}

	first := threads[0]
	if first[0].ID != "root-1" {
		t.Fatalf("expected first thread rooted at root-1, got %q", first[0].ID)
	}
	if len(first) != 3 || first[1].ID != "reply-a" || first[2].ID != "reply-b" {
		t.Fatalf("expected replies sorted by creation time, got %v", first)
	}

	second := threads[1]
	if len(second) != 1 || second[0].ID != "root-2" {
		t.Fatalf("expected second thread to be root-2 alone, got %v", second)
	}
}

func TestBuildThreadsPreservesRootInputOrder(t *testing.T) {
	base := time.Now().UTC()
	input := []store.Comment{
		commentAt("root-late", "", base.Add(time.Hour)),
		commentAt("root-early", "", base),
	}

	threads := BuildThreads(input)
	if threads[0][0].ID != "root-late" || threads[1][0].ID != "root-early" {
		t.Fatalf("expected roots in input order, got %v", threads)
	}
}

func TestBuildThreadsDropsOrphanReplies(t *testing.T) {
	base := time.Now().UTC()
	input := []store.Comment{
		commentAt("root-1", "", base),
		commentAt("orphan", "missing-root", base.Add(time.Minute)),
	}

	threads := BuildThreads(input)
	if len(threads) != 1 {
		t.Fatalf("expected one thread, got %d", len(threads))
	}
	if len(threads[0]) != 1 {
		t.Fatalf("expected orphan reply not attached, got %v", threads[0])
	}
}

func TestBuildThreadsEmptyInput(t *testing.T) {
	threads := BuildThreads(nil)
	if len(threads) != 0 {
		t.Fatalf("expected no threads, got %v", threads)
	}
}
