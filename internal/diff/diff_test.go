package diff

import (
	"strings"
	"testing"
	"time"

	"accord/api/internal/store"
)

func baseProposal() store.Proposal {
	return store.Proposal{
		ID:         "prop-1",
		Title:      "Website Redesign",
		ClientName: "Acme Corp",
		AgencyName: "Studio North",
		Status:     store.StatusDraft,
		Data: store.ProposalData{
			Overview: "<p>We will redesign the site.</p>",
			AboutUs:  "Founded in 2015.",
			Pricing: store.Pricing{
				Total: "$100",
				Items: []store.PricingItem{
					{Name: "Design", Price: "$60", Description: "UI design"},
					{Name: "Build", Price: "$40", Description: "Implementation"},
				},
			},
			Timeline: store.Timeline{
				Phases: []store.TimelinePhase{
					{Title: "Discovery", Duration: "2 weeks"},
				},
			},
			Terms: "Net 30.",
		},
	}
}

func TestDiffIdenticalProposalsIsEmpty(t *testing.T) {
	oldDoc := baseProposal()
	newDoc := baseProposal()

	changes := Diff(oldDoc, newDoc)
	if len(changes) != 0 {
		t.Fatalf("expected no changes, got %v", changes)
	}
}

func TestDiffPricingTotalChange(t *testing.T) {
	oldDoc := baseProposal()
	newDoc := baseProposal()
	newDoc.Data.Pricing.Total = "$200"

	changes := Diff(oldDoc, newDoc)
	if len(changes) != 1 {
		t.Fatalf("expected one changed section, got %v", changes)
	}
	pricing := changes[store.SectionPricing]
	if len(pricing) != 1 {
		t.Fatalf("expected one pricing change, got %v", pricing)
	}
	change := pricing[0]
	if change.Field != "Total" {
		t.Fatalf("expected field Total, got %q", change.Field)
	}
	if change.OldValue == nil || *change.OldValue != "$100" {
		t.Fatalf("expected old value $100, got %v", change.OldValue)
	}
	if change.NewValue == nil || *change.NewValue != "$200" {
		t.Fatalf("expected new value $200, got %v", change.NewValue)
	}
}

func TestDiffGeneralAndOverviewTogether(t *testing.T) {
	oldDoc := baseProposal()
	newDoc := baseProposal()
	newDoc.Title = "Website Relaunch"
	newDoc.Data.Overview = "<p>New scope.</p>"

	changes := Diff(oldDoc, newDoc)
	if len(changes) != 2 {
		t.Fatalf("expected two changed sections, got %v", changes)
	}
	general := changes[store.SectionGeneral]
	if len(general) != 1 || general[0].Field != "Title" {
		t.Fatalf("expected single Title change in general, got %v", general)
	}
	overview := changes[store.SectionOverview]
	if len(overview) != 1 {
		t.Fatalf("expected single overview change, got %v", overview)
	}
	if got := *overview[0].NewValue; got != "New scope." {
		t.Fatalf("expected tags stripped from captured value, got %q", got)
	}
}

func TestDiffItemRemoval(t *testing.T) {
	oldDoc := baseProposal()
	newDoc := baseProposal()
	newDoc.Data.Pricing.Items = newDoc.Data.Pricing.Items[:1]

	changes := Diff(oldDoc, newDoc)
	pricing := changes[store.SectionPricing]
	if len(pricing) != 1 {
		t.Fatalf("expected one pricing change, got %v", pricing)
	}
	change := pricing[0]
	if change.Field != "Item 2" {
		t.Fatalf("expected field Item 2, got %q", change.Field)
	}
	if change.OldValue == nil || *change.OldValue != "Build" {
		t.Fatalf("expected old value Build, got %v", change.OldValue)
	}
	if change.NewValue != nil {
		t.Fatalf("expected nil new value for removed item, got %v", change.NewValue)
	}
}

func TestDiffPhaseAddition(t *testing.T) {
	oldDoc := baseProposal()
	newDoc := baseProposal()
	newDoc.Data.Timeline.Phases = append(newDoc.Data.Timeline.Phases, store.TimelinePhase{Title: "Delivery"})

	changes := Diff(oldDoc, newDoc)
	timeline := changes[store.SectionTimeline]
	if len(timeline) != 1 {
		t.Fatalf("expected one timeline change, got %v", timeline)
	}
	change := timeline[0]
	if change.Field != "Phase 2" {
		t.Fatalf("expected field Phase 2, got %q", change.Field)
	}
	if change.OldValue != nil {
		t.Fatalf("expected nil old value for added phase, got %v", change.OldValue)
	}
	if change.NewValue == nil || *change.NewValue != "Delivery" {
		t.Fatalf("expected new value Delivery, got %v", change.NewValue)
	}
}

func TestDiffEmptyCapturedAsAbsent(t *testing.T) {
	oldDoc := baseProposal()
	oldDoc.Data.Terms = ""
	newDoc := baseProposal()
	newDoc.Data.Terms = "Net 15."

	changes := Diff(oldDoc, newDoc)
	terms := changes[store.SectionTerms]
	if len(terms) != 1 {
		t.Fatalf("expected one terms change, got %v", terms)
	}
	if terms[0].OldValue != nil {
		t.Fatalf("expected absent old value to be nil, got %v", terms[0].OldValue)
	}
	if terms[0].NewValue == nil || *terms[0].NewValue != "Net 15." {
		t.Fatalf("expected new value Net 15., got %v", terms[0].NewValue)
	}
}

func TestDiffClientSignature(t *testing.T) {
	signedAt := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	oldDoc := baseProposal()
	newDoc := baseProposal()
	newDoc.Data.Signatures.Client = store.SignatureBlock{Name: "Dana Li", SignedAt: &signedAt}

	changes := Diff(oldDoc, newDoc)
	signatures := changes[store.SectionSignatures]
	if len(signatures) != 2 {
		t.Fatalf("expected two signature changes, got %v", signatures)
	}
	byField := map[string]store.FieldChange{}
	for _, change := range signatures {
		byField[change.Field] = change
	}
	if change, ok := byField["Client Signature"]; !ok || *change.NewValue != "Dana Li" {
		t.Fatalf("expected Client Signature change to Dana Li, got %v", signatures)
	}
	if change, ok := byField["Client Signed At"]; !ok || *change.NewValue != "2026-03-14T10:30:00Z" {
		t.Fatalf("expected Client Signed At timestamp change, got %v", signatures)
	}
}

func TestCleanValueStripsTagsAndTrims(t *testing.T) {
	got := CleanValue("  <p>Hello <strong>world</strong></p>  ")
	if got != "Hello world" {
		t.Fatalf("expected %q, got %q", "Hello world", got)
	}
}

func TestCleanValueTruncatesLongValues(t *testing.T) {
	long := strings.Repeat("a", 150)
	got := CleanValue(long)
	if len(got) != 103 {
		t.Fatalf("expected 100 runes plus ellipsis, got length %d", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected truncated value to end in ellipsis, got %q", got)
	}
}

func TestCleanValueKeepsShortValues(t *testing.T) {
	exact := strings.Repeat("b", 100)
	if got := CleanValue(exact); got != exact {
		t.Fatalf("expected 100-rune value untouched, got %q", got)
	}
}
