package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"accord/api/internal/store"
)

func newTestServer(fs *fakeStore) (*httptest.Server, *Service) {
	svc := newTestService(fs)
	server := httptest.NewServer(NewHTTPServer(svc, "*").Handler())
	return server, svc
}

func decodeResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return payload
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(&fakeStore{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	payload := decodeResponse(t, resp)
	if payload["ok"] != true {
		t.Fatalf("expected ok true, got %v", payload)
	}
}

func TestProposalsRequireAuthentication(t *testing.T) {
	server, _ := newTestServer(&fakeStore{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/proposals")
	if err != nil {
		t.Fatalf("GET /api/proposals: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	payload := decodeResponse(t, resp)
	if payload["code"] != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED code, got %v", payload)
	}
}

func TestProposalsListWithValidToken(t *testing.T) {
	fs := &fakeStore{
		listProposalsFn: func(context.Context) ([]store.Proposal, error) {
			return []store.Proposal{{ID: "prop-1", Title: "Website Redesign", Status: store.StatusDraft}}, nil
		},
	}
	server, svc := newTestServer(fs)
	defer server.Close()

	session, err := svc.CreateSession(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/proposals", nil)
	req.Header.Set("Authorization", "Bearer "+session.Token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/proposals: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	payload := decodeResponse(t, resp)
	proposals, ok := payload["proposals"].([]any)
	if !ok || len(proposals) != 1 {
		t.Fatalf("expected one proposal in payload, got %v", payload)
	}
}

func TestUpdateLockedProposalReturnsConflict(t *testing.T) {
	fs := &fakeStore{
		getProposalFn: func(context.Context, string) (store.Proposal, error) {
			return lockedProposal(), nil
		},
	}
	server, svc := newTestServer(fs)
	defer server.Close()

	session, err := svc.CreateSession(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	body := strings.NewReader(`{"title":"New Title","data":{}}`)
	req, _ := http.NewRequest(http.MethodPut, server.URL+"/api/proposals/prop-1", body)
	req.Header.Set("Authorization", "Bearer "+session.Token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT /api/proposals/prop-1: %v", err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for locked proposal, got %d", resp.StatusCode)
	}
	payload := decodeResponse(t, resp)
	if payload["code"] != "LOCKED" {
		t.Fatalf("expected LOCKED code, got %v", payload)
	}
}

func TestShareViewIsPublic(t *testing.T) {
	fs := &fakeStore{
		getShareLinkByTokenFn: func(_ context.Context, token string) (store.ShareLink, error) {
			return store.ShareLink{ID: "share-1", ProposalID: "prop-1", Token: token}, nil
		},
		getProposalFn: func(context.Context, string) (store.Proposal, error) {
			return draftProposal(), nil
		},
	}
	server, _ := newTestServer(fs)
	defer server.Close()

	resp, err := http.Get(server.URL + "/share/tok-1")
	if err != nil {
		t.Fatalf("GET /share/tok-1: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for public share view, got %d", resp.StatusCode)
	}
	payload := decodeResponse(t, resp)
	if payload["title"] != "Website Redesign" {
		t.Fatalf("expected proposal title in share view, got %v", payload)
	}
}

func TestShareCommentPostedAsClient(t *testing.T) {
	var inserted store.Comment
	fs := &fakeStore{
		getShareLinkByTokenFn: func(_ context.Context, token string) (store.ShareLink, error) {
			return store.ShareLink{ID: "share-1", ProposalID: "prop-1", Token: token}, nil
		},
		getProposalFn: func(context.Context, string) (store.Proposal, error) {
			return draftProposal(), nil
		},
		insertCommentFn: func(_ context.Context, comment store.Comment) error {
			inserted = comment
			return nil
		},
	}
	server, _ := newTestServer(fs)
	defer server.Close()

	body := strings.NewReader(`{"sectionId":"pricing","content":"Can we revisit the total?","authorName":"Dana Li"}`)
	resp, err := http.Post(server.URL+"/share/tok-1/comments", "application/json", body)
	if err != nil {
		t.Fatalf("POST /share/tok-1/comments: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if inserted.AuthorType != store.AuthorClient {
		t.Fatalf("expected share-route comments stamped as client, got %q", inserted.AuthorType)
	}
	if inserted.ProposalID != "prop-1" {
		t.Fatalf("expected comment bound to the shared proposal, got %q", inserted.ProposalID)
	}
	payload := decodeResponse(t, resp)
	if payload["authorType"] != store.AuthorClient {
		t.Fatalf("expected client author type in payload, got %v", payload)
	}
}

func TestShareCommentRequiresAuthorName(t *testing.T) {
	fs := &fakeStore{
		getShareLinkByTokenFn: func(_ context.Context, token string) (store.ShareLink, error) {
			return store.ShareLink{ID: "share-1", ProposalID: "prop-1", Token: token}, nil
		},
	}
	server, _ := newTestServer(fs)
	defer server.Close()

	body := strings.NewReader(`{"sectionId":"pricing","content":"anonymous"}`)
	resp, err := http.Post(server.URL+"/share/tok-1/comments", "application/json", body)
	if err != nil {
		t.Fatalf("POST /share/tok-1/comments: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 without author name, got %d", resp.StatusCode)
	}
}

func TestUnknownShareTokenNotFound(t *testing.T) {
	server, _ := newTestServer(&fakeStore{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/share/unknown")
	if err != nil {
		t.Fatalf("GET /share/unknown: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for revoked or unknown token, got %d", resp.StatusCode)
	}
}

func TestSessionEndpointWithoutToken(t *testing.T) {
	server, _ := newTestServer(&fakeStore{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/session")
	if err != nil {
		t.Fatalf("GET /api/session: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	payload := decodeResponse(t, resp)
	if payload["authenticated"] != false {
		t.Fatalf("expected authenticated false, got %v", payload)
	}
}
