// Package comments is the collaborative-annotation store: root comments and
// single-level replies with resolve/reopen state, plus real-time snapshot
// fan-out to subscribers.
package comments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"accord/api/internal/store"
	"accord/api/internal/util"
)

var (
	ErrNotFound     = errors.New("comment not found")
	ErrReplyToReply = errors.New("parent comment is itself a reply")
)

type commentStore interface {
	InsertComment(context.Context, store.Comment) error
	GetComment(context.Context, string) (store.Comment, error)
	ListComments(context.Context, string) ([]store.Comment, error)
	ResolveComment(context.Context, string, string, time.Time) (bool, error)
	ReopenComment(context.Context, string) (bool, error)
	DeleteComment(context.Context, string) (bool, error)
}

type Service struct {
	store commentStore
	hub   *Hub
}

func New(commentStore commentStore) *Service {
	return &Service{store: commentStore, hub: NewHub()}
}

// NewComment is the input to Add before identity and timestamp assignment.
type NewComment struct {
	ProposalID  string
	SectionID   string
	AuthorName  string
	AuthorEmail string
	AuthorType  string
	Content     string
	ParentID    *string
}

// Add creates a root comment or a reply. A ParentID referencing a comment
// that is itself a reply is rejected; a ParentID that does not resolve is
// accepted as-is, since callers own id validity.
func (s *Service) Add(ctx context.Context, input NewComment) (store.Comment, error) {
	if strings.TrimSpace(input.Content) == "" {
		return store.Comment{}, errors.New("comment content is required")
	}
	if input.AuthorType != store.AuthorAgency && input.AuthorType != store.AuthorClient {
		return store.Comment{}, fmt.Errorf("invalid author type %q", input.AuthorType)
	}

	if input.ParentID != nil {
		parent, err := s.store.GetComment(ctx, *input.ParentID)
		if err == nil {
			if parent.ParentID != nil {
				return store.Comment{}, ErrReplyToReply
			}
			if parent.ProposalID != input.ProposalID {
				return store.Comment{}, errors.New("parent comment belongs to another proposal")
			}
		} else if !errors.Is(err, sql.ErrNoRows) {
			return store.Comment{}, fmt.Errorf("load parent comment: %w", err)
		}
	}

	comment := store.Comment{
		ID:          util.NewID("cmt"),
		ProposalID:  input.ProposalID,
		SectionID:   input.SectionID,
		AuthorName:  input.AuthorName,
		AuthorEmail: input.AuthorEmail,
		AuthorType:  input.AuthorType,
		Content:     input.Content,
		CreatedAt:   time.Now().UTC(),
		ParentID:    input.ParentID,
	}
	if err := s.store.InsertComment(ctx, comment); err != nil {
		return store.Comment{}, fmt.Errorf("add comment: %w", err)
	}

	s.notify(ctx, input.ProposalID)
	return comment, nil
}

// Resolve marks a comment resolved. Only meaningful on roots by UI
// convention; the store does not enforce that.
func (s *Service) Resolve(ctx context.Context, commentID, resolverEmail string) error {
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("load comment: %w", err)
	}

	updated, err := s.store.ResolveComment(ctx, commentID, resolverEmail, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("resolve comment: %w", err)
	}
	if !updated {
		return ErrNotFound
	}

	s.notify(ctx, comment.ProposalID)
	return nil
}

// Reopen clears the resolved state. Reopening an already-open comment is a
// no-op in effect.
func (s *Service) Reopen(ctx context.Context, commentID string) error {
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("load comment: %w", err)
	}

	updated, err := s.store.ReopenComment(ctx, commentID)
	if err != nil {
		return fmt.Errorf("reopen comment: %w", err)
	}
	if !updated {
		return ErrNotFound
	}

	s.notify(ctx, comment.ProposalID)
	return nil
}

// Delete removes a comment and its replies. This is an administrative
// escape hatch, not part of the normal comment lifecycle.
func (s *Service) Delete(ctx context.Context, commentID string) error {
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("load comment: %w", err)
	}

	deleted, err := s.store.DeleteComment(ctx, commentID)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if !deleted {
		return ErrNotFound
	}

	s.notify(ctx, comment.ProposalID)
	return nil
}

// List returns all comments for a proposal ordered by creation time.
func (s *Service) List(ctx context.Context, proposalID string) ([]store.Comment, error) {
	items, err := s.store.ListComments(ctx, proposalID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return items, nil
}

// Threads returns the proposal's comments grouped into display threads.
func (s *Service) Threads(ctx context.Context, proposalID string) ([][]store.Comment, error) {
	items, err := s.List(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	return BuildThreads(items), nil
}

// Subscribe registers a snapshot listener; see Hub.Subscribe.
func (s *Service) Subscribe(proposalID string) (<-chan []store.Comment, func()) {
	return s.hub.Subscribe(proposalID)
}

// notify pushes the full current snapshot to subscribers. A failed snapshot
// load only costs the notification, never the mutation that triggered it.
func (s *Service) notify(ctx context.Context, proposalID string) {
	if s.hub.SubscriberCount(proposalID) == 0 {
		return
	}
	snapshot, err := s.store.ListComments(ctx, proposalID)
	if err != nil {
		log.Printf("comments: snapshot load for %s failed: %v", proposalID, err)
		return
	}
	s.hub.Publish(proposalID, snapshot)
}
