// Package history is the append-only audit log of proposal edits. Records
// are written once and listed newest-first; no update or delete exists.
package history

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"accord/api/internal/diff"
	"accord/api/internal/store"
	"accord/api/internal/util"
)

type recordStore interface {
	InsertEditRecord(context.Context, store.EditRecord) error
	ListEditRecords(context.Context, string, int) ([]store.EditRecord, error)
}

type Service struct {
	store recordStore
}

func New(recordStore recordStore) *Service {
	return &Service{store: recordStore}
}

// Editor identifies who performed a mutation.
type Editor struct {
	Name  string
	Email string
}

// NewEditRecord is the input to Record before identity and timestamp are
// assigned. Summary may be left empty to use the generated one.
type NewEditRecord struct {
	ProposalID     string
	Editor         Editor
	SectionChanged string
	ChangeType     string
	Summary        string
	Changes        []store.FieldChange
}

// Record assigns identity and a timestamp, persists the entry and returns
// it. Callers on the save path run this through their best-effort runner;
// Record itself reports failures normally.
func (s *Service) Record(ctx context.Context, input NewEditRecord) (store.EditRecord, error) {
	record := store.EditRecord{
		ID:             util.NewID("edit"),
		ProposalID:     input.ProposalID,
		Timestamp:      time.Now().UTC(),
		EditorName:     input.Editor.Name,
		EditorEmail:    input.Editor.Email,
		SectionChanged: input.SectionChanged,
		ChangeType:     input.ChangeType,
		Summary:        input.Summary,
		Changes:        input.Changes,
	}
	if record.SectionChanged == "" {
		record.SectionChanged = store.SectionGeneral
	}
	if err := s.store.InsertEditRecord(ctx, record); err != nil {
		return store.EditRecord{}, fmt.Errorf("record edit: %w", err)
	}
	return record, nil
}

// Query returns the newest-first history for a proposal.
func (s *Service) Query(ctx context.Context, proposalID string, limit int) ([]store.EditRecord, error) {
	records, err := s.store.ListEditRecords(ctx, proposalID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return records, nil
}

// RecordUpdate aggregates one save's section diffs into a single update
// entry. The section is the single changed one, or general when the save
// touched more than one section.
func (s *Service) RecordUpdate(ctx context.Context, proposalID string, editor Editor, changesBySection map[string][]store.FieldChange) (store.EditRecord, error) {
	sections := sortedSections(changesBySection)
	flattened := make([]store.FieldChange, 0)
	for _, sectionID := range sections {
		flattened = append(flattened, changesBySection[sectionID]...)
	}

	sectionChanged := store.SectionGeneral
	if len(sections) == 1 {
		sectionChanged = sections[0]
	}

	return s.Record(ctx, NewEditRecord{
		ProposalID:     proposalID,
		Editor:         editor,
		SectionChanged: sectionChanged,
		ChangeType:     store.ChangeTypeUpdate,
		Summary:        UpdateSummary(sections, flattened),
		Changes:        flattened,
	})
}

// RecordCreation writes the create entry for a new proposal.
func (s *Service) RecordCreation(ctx context.Context, proposalID, title string, editor Editor) (store.EditRecord, error) {
	return s.Record(ctx, NewEditRecord{
		ProposalID:     proposalID,
		Editor:         editor,
		SectionChanged: store.SectionGeneral,
		ChangeType:     store.ChangeTypeCreate,
		Summary:        fmt.Sprintf("Created proposal: %q", diff.CleanValue(title)),
	})
}

// RecordStatusChange writes a status transition entry.
func (s *Service) RecordStatusChange(ctx context.Context, proposalID string, editor Editor, oldStatus, newStatus string) (store.EditRecord, error) {
	change := store.FieldChange{Field: "Status"}
	if oldStatus != "" {
		change.OldValue = &oldStatus
	}
	if newStatus != "" {
		change.NewValue = &newStatus
	}
	return s.Record(ctx, NewEditRecord{
		ProposalID:     proposalID,
		Editor:         editor,
		SectionChanged: store.SectionGeneral,
		ChangeType:     store.ChangeTypeStatusChange,
		Summary:        fmt.Sprintf("Changed status: %s → %s", oldStatus, newStatus),
		Changes:        []store.FieldChange{change},
	})
}

// RecordSigned writes the signing entry.
func (s *Service) RecordSigned(ctx context.Context, proposalID, clientName string, editor Editor) (store.EditRecord, error) {
	return s.Record(ctx, NewEditRecord{
		ProposalID:     proposalID,
		Editor:         editor,
		SectionChanged: store.SectionSignatures,
		ChangeType:     store.ChangeTypeSigned,
		Summary:        fmt.Sprintf("Proposal signed by %s", clientName),
	})
}

// UpdateSummary is the summary policy for update records: a single change
// names the field with its before/after, multiple changes count fields and
// name the sections touched.
func UpdateSummary(sections []string, changes []store.FieldChange) string {
	if len(changes) == 1 {
		change := changes[0]
		return fmt.Sprintf("Updated %s: %q → %q", change.Field, valueOrEmpty(change.OldValue), valueOrEmpty(change.NewValue))
	}
	labels := make([]string, 0, len(sections))
	for _, sectionID := range sections {
		labels = append(labels, store.SectionLabel(sectionID))
	}
	return fmt.Sprintf("Updated %d fields (%s)", len(changes), strings.Join(labels, ", "))
}

func sortedSections(changesBySection map[string][]store.FieldChange) []string {
	sections := make([]string, 0, len(changesBySection))
	for sectionID, sectionChanges := range changesBySection {
		if len(sectionChanges) == 0 {
			continue
		}
		sections = append(sections, sectionID)
	}
	sort.Strings(sections)
	return sections
}

func valueOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
