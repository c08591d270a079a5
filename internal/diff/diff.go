// Package diff compares two proposal-document snapshots and produces a
// section-keyed list of field-level changes. It is pure: no I/O, no error
// paths, and neither snapshot is mutated.
package diff

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"accord/api/internal/store"
)

const (
	// maxValueLength bounds the captured old/new values. Detection always
	// compares raw values; truncation applies only to what is stored on
	// the FieldChange.
	maxValueLength = 100
	ellipsis       = "..."
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// CleanValue strips markup tags, trims whitespace and truncates the result
// to maxValueLength runes plus an ellipsis marker.
func CleanValue(value string) string {
	cleaned := strings.TrimSpace(tagPattern.ReplaceAllString(value, ""))
	runes := []rune(cleaned)
	if len(runes) <= maxValueLength {
		return cleaned
	}
	return string(runes[:maxValueLength]) + ellipsis
}

// Diff compares two proposal snapshots and returns the changed fields keyed
// by section id. An empty map means the documents are equivalent.
func Diff(oldDoc, newDoc store.Proposal) map[string][]store.FieldChange {
	changes := make(map[string][]store.FieldChange)

	general := diffGeneral(oldDoc, newDoc)
	if len(general) > 0 {
		changes[store.SectionGeneral] = general
	}

	appendTextSection(changes, store.SectionOverview, oldDoc.Data.Overview, newDoc.Data.Overview)
	appendTextSection(changes, store.SectionAboutUs, oldDoc.Data.AboutUs, newDoc.Data.AboutUs)

	pricing := diffPricing(oldDoc.Data.Pricing, newDoc.Data.Pricing)
	if len(pricing) > 0 {
		changes[store.SectionPricing] = pricing
	}

	timeline := defaultListDiffer.DiffPhases(oldDoc.Data.Timeline.Phases, newDoc.Data.Timeline.Phases)
	if len(timeline) > 0 {
		changes[store.SectionTimeline] = timeline
	}

	appendTextSection(changes, store.SectionTerms, oldDoc.Data.Terms, newDoc.Data.Terms)

	signatures := diffSignatures(oldDoc.Data.Signatures, newDoc.Data.Signatures)
	if len(signatures) > 0 {
		changes[store.SectionSignatures] = signatures
	}

	return changes
}

func diffGeneral(oldDoc, newDoc store.Proposal) []store.FieldChange {
	result := make([]store.FieldChange, 0)
	result = appendScalar(result, "Title", oldDoc.Title, newDoc.Title)
	result = appendScalar(result, "Client Name", oldDoc.ClientName, newDoc.ClientName)
	result = appendScalar(result, "Agency Name", oldDoc.AgencyName, newDoc.AgencyName)
	result = appendScalar(result, "Status", oldDoc.Status, newDoc.Status)
	return result
}

func appendTextSection(changes map[string][]store.FieldChange, sectionID, oldValue, newValue string) {
	if oldValue == newValue {
		return
	}
	changes[sectionID] = []store.FieldChange{{
		Field:    store.SectionLabel(sectionID),
		OldValue: captured(oldValue),
		NewValue: captured(newValue),
	}}
}

func diffPricing(oldPricing, newPricing store.Pricing) []store.FieldChange {
	if serialize(oldPricing) == serialize(newPricing) {
		return nil
	}
	result := make([]store.FieldChange, 0)
	result = appendScalar(result, "Total", oldPricing.Total, newPricing.Total)
	result = append(result, defaultListDiffer.DiffItems(oldPricing.Items, newPricing.Items)...)
	return result
}

func diffSignatures(oldSignatures, newSignatures store.Signatures) []store.FieldChange {
	result := make([]store.FieldChange, 0)
	result = appendScalar(result, "Agency Signature", oldSignatures.Agency.Name, newSignatures.Agency.Name)
	result = appendScalar(result, "Client Signature", oldSignatures.Client.Name, newSignatures.Client.Name)

	oldSigned := formatSignedAt(oldSignatures.Client)
	newSigned := formatSignedAt(newSignatures.Client)
	result = appendScalar(result, "Client Signed At", oldSigned, newSigned)
	return result
}

func formatSignedAt(block store.SignatureBlock) string {
	if block.SignedAt == nil {
		return ""
	}
	return block.SignedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
}

// appendScalar emits a change when the raw values differ. Empty strings on
// both sides are equal; an empty side is captured as absent (nil).
func appendScalar(result []store.FieldChange, field, oldValue, newValue string) []store.FieldChange {
	if oldValue == newValue {
		return result
	}
	return append(result, store.FieldChange{
		Field:    field,
		OldValue: captured(oldValue),
		NewValue: captured(newValue),
	})
}

// captured normalizes a raw value for storage on a FieldChange. Empty maps
// to nil so "field absent" is distinguishable from "field set to empty".
func captured(value string) *string {
	if value == "" {
		return nil
	}
	cleaned := CleanValue(value)
	return &cleaned
}

func serialize(value any) string {
	payload, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	return string(payload)
}

func itemLabel(prefix string, index int) string {
	return fmt.Sprintf("%s %d", prefix, index+1)
}
