package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"accord/api/internal/archive"
	"accord/api/internal/auth"
	"accord/api/internal/authpw"
	"accord/api/internal/comments"
	"accord/api/internal/config"
	"accord/api/internal/diff"
	"accord/api/internal/email"
	"accord/api/internal/history"
	"accord/api/internal/rbac"
	"accord/api/internal/search"
	"accord/api/internal/snapshots"
	"accord/api/internal/store"
	"accord/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

// CreateProposalInput is the payload for creating a proposal.
type CreateProposalInput struct {
	Title      string              `json:"title"`
	ClientName string              `json:"clientName"`
	AgencyName string              `json:"agencyName"`
	Data       *store.ProposalData `json:"data"`
}

// UpdateProposalInput is a full content snapshot; a save replaces the whole
// document. Status and lock state are never touched here, they have their
// own operations.
type UpdateProposalInput struct {
	Title      string             `json:"title"`
	ClientName string             `json:"clientName"`
	AgencyName string             `json:"agencyName"`
	Data       store.ProposalData `json:"data"`
}

// AddCommentInput is the payload for posting a comment.
type AddCommentInput struct {
	SectionID string  `json:"sectionId"`
	Content   string  `json:"content"`
	ParentID  *string `json:"parentId"`
}

var allowedStatuses = map[string]struct{}{
	store.StatusDraft:    {},
	store.StatusSent:     {},
	store.StatusApproved: {},
	store.StatusRejected: {},
}

type dataStore interface {
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	InsertProposal(context.Context, store.Proposal) error
	GetProposal(context.Context, string) (store.Proposal, error)
	ListProposals(context.Context) ([]store.Proposal, error)
	UpdateProposal(context.Context, store.Proposal) error
	DeleteProposal(context.Context, string) (bool, error)
	InsertShareLink(context.Context, store.ShareLink) error
	GetShareLinkByToken(context.Context, string) (store.ShareLink, error)
	GetShareLinkByProposal(context.Context, string) (store.ShareLink, error)
	RevokeShareLink(context.Context, string) error
	Ping(ctx context.Context) error
}

// sessionStore holds refresh tokens; Redis in production, Postgres as the
// fallback via PGSessionStore.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

// snapshotCache caches the public share view. Optional; nil disables caching.
type snapshotCache interface {
	CacheSharedSnapshot(ctx context.Context, token string, snapshot []byte, ttl time.Duration) error
	GetSharedSnapshot(ctx context.Context, token string) ([]byte, error)
	InvalidateSharedSnapshot(ctx context.Context, token string) error
}

// PGSessionStore adapts the Postgres refresh-session methods to the session
// store interface when Redis is not configured.
type PGSessionStore struct {
	Store *store.PostgresStore
}

func (a PGSessionStore) SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error {
	return a.Store.SaveRefreshSession(ctx, tokenHash, user.ID, expiresAt)
}

func (a PGSessionStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	return a.Store.LookupRefreshSession(ctx, tokenHash)
}

func (a PGSessionStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	return a.Store.RevokeRefreshSession(ctx, tokenHash)
}

// searchIndex is the slice of the search service the orchestrator uses.
type searchIndex interface {
	Search(search.Query) search.Response
	IndexProposal(search.ProposalRecord)
	IndexComment(search.CommentRecord)
	IndexEdit(search.EditRecordDoc)
	DeleteProposal(id string)
	DeleteComment(id string)
}

type versionStore interface {
	Ensure(proposalID string, initial snapshots.Content, author string) error
	Commit(proposalID string, content snapshots.Content, author, message string) (snapshots.Version, error)
	History(proposalID string, limit int) ([]snapshots.Version, error)
	GetByHash(proposalID, hash string) (snapshots.Content, error)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	cache    snapshotCache
	history  *history.Service
	comments *comments.Service
	versions versionStore
	search   searchIndex
	email    *email.Service
	archive  *archive.Service
	authpw   *authpw.Service
	tasks    sync.WaitGroup
}

// Options carries the optional collaborators. Any nil field disables the
// corresponding side effect rather than failing saves.
type Options struct {
	Sessions sessionStore
	Cache    snapshotCache
	Versions versionStore
	Search   *search.Service
	Email    *email.Service
	Archive  *archive.Service
}

func New(cfg config.Config, dataStore *store.PostgresStore, opts Options) *Service {
	sessions := opts.Sessions
	if sessions == nil {
		sessions = PGSessionStore{Store: dataStore}
	}
	var idx searchIndex
	if opts.Search != nil {
		idx = opts.Search
	}
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		cache:    opts.Cache,
		history:  history.New(dataStore),
		comments: comments.New(dataStore),
		versions: opts.Versions,
		search:   idx,
		email:    opts.Email,
		archive:  opts.Archive,
		authpw:   authpw.NewService(dataStore),
	}
}

// bestEffort detaches a side effect from the save that triggered it. History
// writes, version commits, archiving, indexing and notifications run after
// the save returns; failures are logged, never surfaced. The context is
// unhooked from the request so the write still lands once the caller is gone.
func (s *Service) bestEffort(ctx context.Context, label string, fn func(context.Context) error) {
	detached := context.WithoutCancel(ctx)
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		if err := fn(detached); err != nil {
			log.Printf("%s failed: %v", label, err)
		}
	}()
}

// DrainSideEffects blocks until every detached side effect started so far
// has finished. Called during shutdown.
func (s *Service) DrainSideEffects() {
	s.tasks.Wait()
}

// ── Sessions ──

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), auth.Claims{
		Sub:   user.ID,
		Name:  user.DisplayName,
		Email: user.Email,
		Role:  user.Role,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Email:        user.Email,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Email:     user.Email,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

func (s *Service) editorFromSession(session Session) history.Editor {
	return history.Editor{Name: session.UserName, Email: session.Email}
}

// ── Proposals ──

func (s *Service) ListProposals(ctx context.Context) ([]map[string]any, error) {
	proposals, err := s.store.ListProposals(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(proposals))
	for _, proposal := range proposals {
		items = append(items, map[string]any{
			"id":         proposal.ID,
			"title":      proposal.Title,
			"clientName": proposal.ClientName,
			"agencyName": proposal.AgencyName,
			"status":     proposal.Status,
			"isLocked":   proposal.IsLocked,
			"updatedAt":  proposal.UpdatedAt,
		})
	}
	return items, nil
}

func (s *Service) GetProposal(ctx context.Context, proposalID string) (map[string]any, error) {
	proposal, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	return proposalPayload(proposal), nil
}

func (s *Service) CreateProposal(ctx context.Context, input CreateProposalInput, session Session) (map[string]any, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}

	now := time.Now().UTC()
	proposal := store.Proposal{
		ID:         util.NewID("prop"),
		Title:      title,
		ClientName: strings.TrimSpace(input.ClientName),
		AgencyName: strings.TrimSpace(input.AgencyName),
		Status:     store.StatusDraft,
		CreatedBy:  session.UserID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if input.Data != nil {
		proposal.Data = *input.Data
	}

	if err := s.store.InsertProposal(ctx, proposal); err != nil {
		return nil, err
	}

	editor := s.editorFromSession(session)
	s.bestEffort(ctx, "history create record", func(ctx context.Context) error {
		record, err := s.history.RecordCreation(ctx, proposal.ID, proposal.Title, editor)
		if err != nil {
			return err
		}
		s.indexEditRecord(record)
		return nil
	})
	if s.versions != nil {
		s.bestEffort(ctx, "version baseline", func(context.Context) error {
			return s.versions.Ensure(proposal.ID, snapshots.ContentFromProposal(proposal), editor.Name)
		})
	}
	if s.search != nil {
		s.search.IndexProposal(searchRecord(proposal))
	}

	return proposalPayload(proposal), nil
}

// UpdateProposal is the save path: load, check the lock, replace the
// content, persist, then diff old against new for the edit history. The
// history write and the other side effects run detached from the request;
// the save itself either fully happened or returned an error.
func (s *Service) UpdateProposal(ctx context.Context, proposalID string, input UpdateProposalInput, session Session) (map[string]any, error) {
	current, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if current.IsLocked {
		return nil, lockedError(current)
	}

	next := current
	next.Title = strings.TrimSpace(input.Title)
	next.ClientName = strings.TrimSpace(input.ClientName)
	next.AgencyName = strings.TrimSpace(input.AgencyName)
	next.Data = input.Data
	next.UpdatedAt = time.Now().UTC()
	if next.Title == "" {
		next.Title = current.Title
	}
	// The client signature only ever changes through the sign operation.
	next.Data.Signatures.Client = current.Data.Signatures.Client

	if err := s.store.UpdateProposal(ctx, next); err != nil {
		return nil, err
	}

	changes := diff.Diff(current, next)
	editor := s.editorFromSession(session)
	if len(changes) > 0 {
		s.bestEffort(ctx, "history update record", func(ctx context.Context) error {
			record, err := s.history.RecordUpdate(ctx, proposalID, editor, changes)
			if err != nil {
				return err
			}
			s.indexEditRecord(record)
			return nil
		})
		if s.versions != nil {
			s.bestEffort(ctx, "version commit", func(context.Context) error {
				_, err := s.versions.Commit(proposalID, snapshots.ContentFromProposal(next), editor.Name, "Update proposal content")
				return err
			})
		}
	}
	if s.search != nil {
		s.search.IndexProposal(searchRecord(next))
	}
	s.invalidateSharedCache(ctx, proposalID)

	return proposalPayload(next), nil
}

func (s *Service) DeleteProposal(ctx context.Context, proposalID string) error {
	deleted, err := s.store.DeleteProposal(ctx, proposalID)
	if err != nil {
		return err
	}
	if !deleted {
		return sql.ErrNoRows
	}
	if s.search != nil {
		s.search.DeleteProposal(proposalID)
	}
	s.invalidateSharedCache(ctx, proposalID)
	return nil
}

// ChangeStatus moves the proposal through its lifecycle. A locked proposal
// rejects status changes the same way it rejects content saves.
func (s *Service) ChangeStatus(ctx context.Context, proposalID, newStatus string, session Session) (map[string]any, error) {
	if _, ok := allowedStatuses[newStatus]; !ok {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("unknown status %q", newStatus), nil)
	}

	current, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if current.IsLocked {
		return nil, lockedError(current)
	}
	if current.Status == newStatus {
		return proposalPayload(current), nil
	}

	next := current
	next.Status = newStatus
	next.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateProposal(ctx, next); err != nil {
		return nil, err
	}

	editor := s.editorFromSession(session)
	s.bestEffort(ctx, "history status record", func(ctx context.Context) error {
		record, err := s.history.RecordStatusChange(ctx, proposalID, editor, current.Status, newStatus)
		if err != nil {
			return err
		}
		s.indexEditRecord(record)
		return nil
	})
	if s.search != nil {
		s.search.IndexProposal(searchRecord(next))
	}
	s.invalidateSharedCache(ctx, proposalID)

	if newStatus == store.StatusSent {
		s.notifyProposalSent(ctx, next)
	}

	return proposalPayload(next), nil
}

// SignProposal records the client signature and locks the proposal in one
// write, so there is no window where the document is signed but editable.
func (s *Service) SignProposal(ctx context.Context, proposalID, signerName string, session Session) (map[string]any, error) {
	signerName = strings.TrimSpace(signerName)
	if signerName == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "signer name is required", nil)
	}

	current, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if current.IsLocked {
		return nil, lockedError(current)
	}
	if current.Data.Signatures.Client.SignedAt != nil {
		return nil, domainError(http.StatusConflict, "ALREADY_SIGNED", "Proposal has already been signed", nil)
	}

	now := time.Now().UTC()
	next := current
	next.Data.Signatures.Client = store.SignatureBlock{Name: signerName, SignedAt: &now}
	next.Status = store.StatusApproved
	next.IsLocked = true
	next.LockedReason = "signed"
	next.LockedAt = &now
	next.UpdatedAt = now

	if err := s.store.UpdateProposal(ctx, next); err != nil {
		return nil, err
	}

	editor := s.editorFromSession(session)
	if editor.Name == "" {
		editor.Name = signerName
	}
	s.bestEffort(ctx, "history signed record", func(ctx context.Context) error {
		record, err := s.history.RecordSigned(ctx, proposalID, signerName, editor)
		if err != nil {
			return err
		}
		s.indexEditRecord(record)
		return nil
	})
	if s.versions != nil {
		s.bestEffort(ctx, "version commit", func(context.Context) error {
			_, err := s.versions.Commit(proposalID, snapshots.ContentFromProposal(next), editor.Name, fmt.Sprintf("Signed by %s", signerName))
			return err
		})
	}
	if s.archive != nil {
		s.bestEffort(ctx, "archive signed snapshot", func(ctx context.Context) error {
			return s.archive.ArchiveSigned(ctx, next, signerName)
		})
	}
	if s.search != nil {
		s.search.IndexProposal(searchRecord(next))
	}
	s.invalidateSharedCache(ctx, proposalID)
	s.notifyProposalSigned(ctx, next, signerName)

	return proposalPayload(next), nil
}

func (s *Service) ArchiveDownloadURL(ctx context.Context, proposalID string) (string, error) {
	if s.archive == nil {
		return "", domainError(http.StatusServiceUnavailable, "ARCHIVE_UNAVAILABLE", "Archive storage not configured", nil)
	}
	exists, err := s.archive.Exists(ctx, proposalID)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", sql.ErrNoRows
	}
	return s.archive.SignedURL(ctx, proposalID, 15*time.Minute)
}

// ── Versions ──

func (s *Service) ProposalVersions(ctx context.Context, proposalID string, limit int) ([]snapshots.Version, error) {
	if s.versions == nil {
		return []snapshots.Version{}, nil
	}
	if _, err := s.store.GetProposal(ctx, proposalID); err != nil {
		return nil, err
	}
	return s.versions.History(proposalID, limit)
}

func (s *Service) ProposalVersionContent(ctx context.Context, proposalID, hash string) (snapshots.Content, error) {
	if s.versions == nil {
		return snapshots.Content{}, domainError(http.StatusServiceUnavailable, "VERSIONS_UNAVAILABLE", "Version storage not configured", nil)
	}
	if _, err := s.store.GetProposal(ctx, proposalID); err != nil {
		return snapshots.Content{}, err
	}
	return s.versions.GetByHash(proposalID, hash)
}

// ── History ──

func (s *Service) History(ctx context.Context, proposalID string, limit int) ([]store.EditRecord, error) {
	if _, err := s.store.GetProposal(ctx, proposalID); err != nil {
		return nil, err
	}
	return s.history.Query(ctx, proposalID, limit)
}

// ── Comments ──

func (s *Service) AddComment(ctx context.Context, proposalID string, input AddCommentInput, authorName, authorEmail, authorType string) (store.Comment, error) {
	if _, err := s.store.GetProposal(ctx, proposalID); err != nil {
		return store.Comment{}, err
	}

	comment, err := s.comments.Add(ctx, comments.NewComment{
		ProposalID:  proposalID,
		SectionID:   input.SectionID,
		AuthorName:  authorName,
		AuthorEmail: authorEmail,
		AuthorType:  authorType,
		Content:     input.Content,
		ParentID:    input.ParentID,
	})
	if err != nil {
		if errors.Is(err, comments.ErrReplyToReply) {
			return store.Comment{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Replies to replies are not supported", nil)
		}
		return store.Comment{}, err
	}

	if s.search != nil {
		s.search.IndexComment(search.CommentRecord{
			ID:         comment.ID,
			Content:    comment.Content,
			AuthorName: comment.AuthorName,
			AuthorType: comment.AuthorType,
			ProposalID: comment.ProposalID,
			SectionID:  comment.SectionID,
		})
	}
	return comment, nil
}

func (s *Service) ResolveComment(ctx context.Context, commentID, resolverEmail string) error {
	err := s.comments.Resolve(ctx, commentID, resolverEmail)
	if errors.Is(err, comments.ErrNotFound) {
		return sql.ErrNoRows
	}
	return err
}

func (s *Service) ReopenComment(ctx context.Context, commentID string) error {
	err := s.comments.Reopen(ctx, commentID)
	if errors.Is(err, comments.ErrNotFound) {
		return sql.ErrNoRows
	}
	return err
}

func (s *Service) DeleteComment(ctx context.Context, commentID string) error {
	err := s.comments.Delete(ctx, commentID)
	if errors.Is(err, comments.ErrNotFound) {
		return sql.ErrNoRows
	}
	if err == nil && s.search != nil {
		s.search.DeleteComment(commentID)
	}
	return err
}

func (s *Service) CommentThreads(ctx context.Context, proposalID string) ([][]store.Comment, error) {
	if _, err := s.store.GetProposal(ctx, proposalID); err != nil {
		return nil, err
	}
	return s.comments.Threads(ctx, proposalID)
}

func (s *Service) ListComments(ctx context.Context, proposalID string) ([]store.Comment, error) {
	if _, err := s.store.GetProposal(ctx, proposalID); err != nil {
		return nil, err
	}
	return s.comments.List(ctx, proposalID)
}

// SubscribeComments registers a live snapshot listener for a proposal.
func (s *Service) SubscribeComments(proposalID string) (<-chan []store.Comment, func()) {
	return s.comments.Subscribe(proposalID)
}

// ── Share links ──

func (s *Service) CreateShareLink(ctx context.Context, proposalID string, session Session) (map[string]any, error) {
	proposal, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	// Reuse the active link if one exists; a proposal has one live share URL.
	if existing, err := s.store.GetShareLinkByProposal(ctx, proposalID); err == nil {
		return shareLinkPayload(existing, s.cfg.PublicBaseURL), nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	link := store.ShareLink{
		ID:         util.NewID("share"),
		ProposalID: proposal.ID,
		Token:      util.NewShareToken(),
		CreatedBy:  session.UserID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.InsertShareLink(ctx, link); err != nil {
		return nil, err
	}
	return shareLinkPayload(link, s.cfg.PublicBaseURL), nil
}

func (s *Service) RevokeShareLink(ctx context.Context, proposalID string) error {
	link, err := s.store.GetShareLinkByProposal(ctx, proposalID)
	if err != nil {
		return err
	}
	if err := s.store.RevokeShareLink(ctx, link.ID); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.InvalidateSharedSnapshot(ctx, link.Token)
	}
	return nil
}

// PublicProposal resolves a share token to the client-facing view. The view
// omits the edit history and lock metadata; comments are served separately.
func (s *Service) PublicProposal(ctx context.Context, token string) (map[string]any, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetSharedSnapshot(ctx, token); err == nil {
			var payload map[string]any
			if err := json.Unmarshal(cached, &payload); err == nil {
				return payload, nil
			}
		}
	}

	link, err := s.store.GetShareLinkByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	proposal, err := s.store.GetProposal(ctx, link.ProposalID)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"id":         proposal.ID,
		"title":      proposal.Title,
		"clientName": proposal.ClientName,
		"agencyName": proposal.AgencyName,
		"status":     proposal.Status,
		"isLocked":   proposal.IsLocked,
		"data":       proposal.Data,
	}

	if s.cache != nil {
		if encoded, err := json.Marshal(payload); err == nil {
			_ = s.cache.CacheSharedSnapshot(ctx, token, encoded, time.Minute)
		}
	}
	return payload, nil
}

func (s *Service) invalidateSharedCache(ctx context.Context, proposalID string) {
	if s.cache == nil {
		return
	}
	link, err := s.store.GetShareLinkByProposal(ctx, proposalID)
	if err != nil {
		return
	}
	_ = s.cache.InvalidateSharedSnapshot(ctx, link.Token)
}

// ── Search ──

func (s *Service) Search(ctx context.Context, query, filterType, proposalID string, limit, offset int, isClient bool) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: query}, nil
	}
	return s.search.Search(search.Query{
		Text:             query,
		FilterType:       search.ResultType(filterType),
		FilterProposalID: proposalID,
		Limit:            limit,
		Offset:           offset,
		IsClient:         isClient,
	}), nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ── Notifications ──

func (s *Service) notifyProposalSent(ctx context.Context, proposal store.Proposal) {
	if !s.SMTPConfigured() {
		return
	}
	// The client email lives outside this system; send to the recorded
	// contact when the client name doubles as an address, otherwise skip.
	if !strings.Contains(proposal.ClientName, "@") {
		return
	}
	s.bestEffort(ctx, "proposal sent email", func(ctx context.Context) error {
		link, err := s.store.GetShareLinkByProposal(ctx, proposal.ID)
		if err != nil {
			return err
		}
		return s.email.SendProposalSentEmail(proposal.ClientName, proposal.ClientName, proposal.AgencyName, proposal.Title, shareURL(s.cfg.PublicBaseURL, link.Token))
	})
}

func (s *Service) notifyProposalSigned(ctx context.Context, proposal store.Proposal, signerName string) {
	if !s.SMTPConfigured() {
		return
	}
	s.bestEffort(ctx, "proposal signed email", func(ctx context.Context) error {
		owner, err := s.store.GetUserByID(ctx, proposal.CreatedBy)
		if err != nil {
			return err
		}
		if owner.Email == "" {
			return nil
		}
		return s.email.SendProposalSignedEmail(owner.Email, owner.DisplayName, signerName, proposal.Title)
	})
}

// ── Payload helpers ──

func proposalPayload(proposal store.Proposal) map[string]any {
	return map[string]any{
		"id":           proposal.ID,
		"title":        proposal.Title,
		"clientName":   proposal.ClientName,
		"agencyName":   proposal.AgencyName,
		"status":       proposal.Status,
		"isLocked":     proposal.IsLocked,
		"lockedReason": proposal.LockedReason,
		"lockedAt":     proposal.LockedAt,
		"data":         proposal.Data,
		"createdBy":    proposal.CreatedBy,
		"createdAt":    proposal.CreatedAt,
		"updatedAt":    proposal.UpdatedAt,
	}
}

func shareLinkPayload(link store.ShareLink, baseURL string) map[string]any {
	return map[string]any{
		"id":         link.ID,
		"proposalId": link.ProposalID,
		"token":      link.Token,
		"url":        shareURL(baseURL, link.Token),
		"createdAt":  link.CreatedAt,
	}
}

func shareURL(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/share/" + token
}

// indexEditRecord pushes a freshly written history entry to the search
// index, keeping the primary index as fresh as the PG fallback.
func (s *Service) indexEditRecord(record store.EditRecord) {
	if s.search == nil {
		return
	}
	s.search.IndexEdit(search.EditRecordDoc{
		ID:             record.ID,
		Summary:        record.Summary,
		ChangeType:     record.ChangeType,
		ProposalID:     record.ProposalID,
		SectionChanged: record.SectionChanged,
	})
}

func searchRecord(proposal store.Proposal) search.ProposalRecord {
	return search.ProposalRecord{
		ID:         proposal.ID,
		Title:      proposal.Title,
		ClientName: proposal.ClientName,
		AgencyName: proposal.AgencyName,
		Status:     proposal.Status,
	}
}

func lockedError(proposal store.Proposal) *DomainError {
	return domainError(http.StatusConflict, "LOCKED", "Proposal is locked and cannot be modified", map[string]any{
		"lockedReason": proposal.LockedReason,
		"lockedAt":     proposal.LockedAt,
	})
}
