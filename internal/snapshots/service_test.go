package snapshots

import (
	"testing"

	"accord/api/internal/store"
)

func testContent(total string) Content {
	return Content{
		Title:      "Website Redesign",
		ClientName: "Acme Corp",
		AgencyName: "Studio North",
		Status:     store.StatusDraft,
		Data: store.ProposalData{
			Overview: "Scope of work",
			Pricing:  store.Pricing{Total: total},
		},
	}
}

func TestEnsureCreatesBaseline(t *testing.T) {
	svc := New(t.TempDir())

	if err := svc.Ensure("prop-1", testContent("$100"), "Avery"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	versions, err := svc.History("prop-1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(versions) != 1 {
		t.Fatalf("expected one baseline version, got %d", len(versions))
	}
	if versions[0].Message != "Create proposal baseline" {
		t.Fatalf("unexpected baseline message %q", versions[0].Message)
	}
	if versions[0].Author != "Avery" {
		t.Fatalf("expected author Avery, got %q", versions[0].Author)
	}
}

func TestEnsureIsIdempotent(t *testing.T) {
	svc := New(t.TempDir())

	if err := svc.Ensure("prop-1", testContent("$100"), "Avery"); err != nil {
		t.Fatalf("first Ensure() error = %v", err)
	}
	if err := svc.Ensure("prop-1", testContent("$999"), "Avery"); err != nil {
		t.Fatalf("second Ensure() error = %v", err)
	}

	versions, err := svc.History("prop-1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(versions) != 1 {
		t.Fatalf("expected repeated Ensure to be a no-op, got %d versions", len(versions))
	}
}

func TestCommitAndHistoryNewestFirst(t *testing.T) {
	svc := New(t.TempDir())

	if err := svc.Ensure("prop-1", testContent("$100"), "Avery"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	version, err := svc.Commit("prop-1", testContent("$200"), "Avery", "Update proposal content")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if version.Hash == "" || len(version.Hash) != 7 {
		t.Fatalf("expected short hash, got %q", version.Hash)
	}

	versions, err := svc.History("prop-1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected two versions, got %d", len(versions))
	}
	if versions[0].Message != "Update proposal content" {
		t.Fatalf("expected newest version first, got %q", versions[0].Message)
	}
}

func TestHistoryHonorsLimit(t *testing.T) {
	svc := New(t.TempDir())

	if err := svc.Ensure("prop-1", testContent("$100"), "Avery"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	for _, total := range []string{"$200", "$300", "$400"} {
		if _, err := svc.Commit("prop-1", testContent(total), "Avery", "Update proposal content"); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
	}

	versions, err := svc.History("prop-1", 2)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected limit applied, got %d versions", len(versions))
	}
}

func TestGetByHashRestoresContent(t *testing.T) {
	svc := New(t.TempDir())

	if err := svc.Ensure("prop-1", testContent("$100"), "Avery"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	version, err := svc.Commit("prop-1", testContent("$200"), "Avery", "Update proposal content")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	content, err := svc.GetByHash("prop-1", version.Hash)
	if err != nil {
		t.Fatalf("GetByHash() error = %v", err)
	}
	if content.Data.Pricing.Total != "$200" {
		t.Fatalf("expected committed total $200, got %q", content.Data.Pricing.Total)
	}

	versions, err := svc.History("prop-1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	baseline, err := svc.GetByHash("prop-1", versions[len(versions)-1].Hash)
	if err != nil {
		t.Fatalf("GetByHash() baseline error = %v", err)
	}
	if baseline.Data.Pricing.Total != "$100" {
		t.Fatalf("expected baseline total $100, got %q", baseline.Data.Pricing.Total)
	}
}

func TestGetByHashUnknownRepo(t *testing.T) {
	svc := New(t.TempDir())

	if _, err := svc.GetByHash("missing", "abc1234"); err == nil {
		t.Fatal("expected error for unknown proposal repository")
	}
}
