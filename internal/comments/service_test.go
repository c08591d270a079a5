package comments

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"accord/api/internal/store"
)

type fakeCommentStore struct {
	insertFn  func(context.Context, store.Comment) error
	getFn     func(context.Context, string) (store.Comment, error)
	listFn    func(context.Context, string) ([]store.Comment, error)
	resolveFn func(context.Context, string, string, time.Time) (bool, error)
	reopenFn  func(context.Context, string) (bool, error)
	deleteFn  func(context.Context, string) (bool, error)
}

func (f *fakeCommentStore) InsertComment(ctx context.Context, comment store.Comment) error {
	if f.insertFn != nil {
		return f.insertFn(ctx, comment)
	}
	return nil
}

func (f *fakeCommentStore) GetComment(ctx context.Context, commentID string) (store.Comment, error) {
	if f.getFn != nil {
		return f.getFn(ctx, commentID)
	}
	return store.Comment{}, sql.ErrNoRows
}

func (f *fakeCommentStore) ListComments(ctx context.Context, proposalID string) ([]store.Comment, error) {
	if f.listFn != nil {
		return f.listFn(ctx, proposalID)
	}
	return nil, nil
}

func (f *fakeCommentStore) ResolveComment(ctx context.Context, commentID, resolvedBy string, resolvedAt time.Time) (bool, error) {
	if f.resolveFn != nil {
		return f.resolveFn(ctx, commentID, resolvedBy, resolvedAt)
	}
	return false, nil
}

func (f *fakeCommentStore) ReopenComment(ctx context.Context, commentID string) (bool, error) {
	if f.reopenFn != nil {
		return f.reopenFn(ctx, commentID)
	}
	return false, nil
}

func (f *fakeCommentStore) DeleteComment(ctx context.Context, commentID string) (bool, error) {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, commentID)
	}
	return false, nil
}

func TestAddRejectsEmptyContent(t *testing.T) {
	svc := New(&fakeCommentStore{})

	_, err := svc.Add(context.Background(), NewComment{
		ProposalID: "prop-1",
		AuthorType: store.AuthorAgency,
		Content:    "   ",
	})
	if err == nil {
		t.Fatal("expected error for blank content")
	}
}

func TestAddRejectsInvalidAuthorType(t *testing.T) {
	svc := New(&fakeCommentStore{})

	_, err := svc.Add(context.Background(), NewComment{
		ProposalID: "prop-1",
		AuthorType: "robot",
		Content:    "hi",
	})
	if err == nil {
		t.Fatal("expected error for invalid author type")
	}
}

func TestAddRejectsReplyToReply(t *testing.T) {
	rootID := "root-1"
	fs := &fakeCommentStore{
		getFn: func(_ context.Context, commentID string) (store.Comment, error) {
			return store.Comment{ID: commentID, ProposalID: "prop-1", ParentID: &rootID}, nil
		},
	}
	svc := New(fs)

	parentID := "reply-1"
	_, err := svc.Add(context.Background(), NewComment{
		ProposalID: "prop-1",
		AuthorType: store.AuthorClient,
		Content:    "nested",
		ParentID:   &parentID,
	})
	if !errors.Is(err, ErrReplyToReply) {
		t.Fatalf("expected ErrReplyToReply, got %v", err)
	}
}

func TestAddRejectsCrossProposalParent(t *testing.T) {
	fs := &fakeCommentStore{
		getFn: func(_ context.Context, commentID string) (store.Comment, error) {
			return store.Comment{ID: commentID, ProposalID: "prop-other"}, nil
		},
	}
	svc := New(fs)

	parentID := "root-1"
	_, err := svc.Add(context.Background(), NewComment{
		ProposalID: "prop-1",
		AuthorType: store.AuthorAgency,
		Content:    "reply",
		ParentID:   &parentID,
	})
	if err == nil {
		t.Fatal("expected error for parent on another proposal")
	}
}

func TestAddToleratesMissingParent(t *testing.T) {
	inserted := 0
	fs := &fakeCommentStore{
		insertFn: func(_ context.Context, comment store.Comment) error {
			inserted++
			if comment.ParentID == nil || *comment.ParentID != "gone" {
				t.Fatalf("expected parent id preserved, got %v", comment.ParentID)
			}
			return nil
		},
	}
	svc := New(fs)

	parentID := "gone"
	_, err := svc.Add(context.Background(), NewComment{
		ProposalID: "prop-1",
		AuthorType: store.AuthorAgency,
		Content:    "reply",
		ParentID:   &parentID,
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if inserted != 1 {
		t.Fatalf("expected one insert, got %d", inserted)
	}
}

func TestAddAssignsIdentityAndTimestamp(t *testing.T) {
	var inserted store.Comment
	fs := &fakeCommentStore{
		insertFn: func(_ context.Context, comment store.Comment) error {
			inserted = comment
			return nil
		},
	}
	svc := New(fs)

	comment, err := svc.Add(context.Background(), NewComment{
		ProposalID: "prop-1",
		SectionID:  store.SectionPricing,
		AuthorName: "Dana",
		AuthorType: store.AuthorClient,
		Content:    "Is the total final?",
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if comment.ID == "" || comment.CreatedAt.IsZero() {
		t.Fatal("expected id and timestamp assigned")
	}
	if inserted.ID != comment.ID {
		t.Fatalf("expected returned comment to match persisted one")
	}
}

func TestResolveNotFound(t *testing.T) {
	svc := New(&fakeCommentStore{})

	err := svc.Resolve(context.Background(), "missing", "avery@studio.dev")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolvePublishesSnapshot(t *testing.T) {
	fs := &fakeCommentStore{
		getFn: func(_ context.Context, commentID string) (store.Comment, error) {
			return store.Comment{ID: commentID, ProposalID: "prop-1"}, nil
		},
		resolveFn: func(_ context.Context, commentID, resolvedBy string, _ time.Time) (bool, error) {
			if resolvedBy != "avery@studio.dev" {
				t.Fatalf("expected resolver identity, got %q", resolvedBy)
			}
			return true, nil
		},
		listFn: func(_ context.Context, proposalID string) ([]store.Comment, error) {
			return []store.Comment{{ID: "cmt-1", ProposalID: proposalID, Resolved: true}}, nil
		},
	}
	svc := New(fs)

	events, cancel := svc.Subscribe("prop-1")
	defer cancel()

	if err := svc.Resolve(context.Background(), "cmt-1", "avery@studio.dev"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	select {
	case snapshot := <-events:
		if len(snapshot) != 1 || !snapshot[0].Resolved {
			t.Fatalf("expected resolved snapshot, got %v", snapshot)
		}
	default:
		t.Fatal("expected snapshot push after resolve")
	}
}

func TestReopenNotFoundWhenNoRowUpdated(t *testing.T) {
	fs := &fakeCommentStore{
		getFn: func(_ context.Context, commentID string) (store.Comment, error) {
			return store.Comment{ID: commentID, ProposalID: "prop-1"}, nil
		},
		reopenFn: func(context.Context, string) (bool, error) {
			return false, nil
		},
	}
	svc := New(fs)

	err := svc.Reopen(context.Background(), "cmt-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeletePublishesSnapshot(t *testing.T) {
	fs := &fakeCommentStore{
		getFn: func(_ context.Context, commentID string) (store.Comment, error) {
			return store.Comment{ID: commentID, ProposalID: "prop-1"}, nil
		},
		deleteFn: func(context.Context, string) (bool, error) {
			return true, nil
		},
		listFn: func(context.Context, string) ([]store.Comment, error) {
			return []store.Comment{}, nil
		},
	}
	svc := New(fs)

	events, cancel := svc.Subscribe("prop-1")
	defer cancel()

	if err := svc.Delete(context.Background(), "cmt-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	select {
	case snapshot := <-events:
		if len(snapshot) != 0 {
			t.Fatalf("expected empty snapshot after delete, got %v", snapshot)
		}
	default:
		t.Fatal("expected snapshot push after delete")
	}
}
