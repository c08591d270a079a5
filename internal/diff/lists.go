package diff

import "accord/api/internal/store"

// ListDiffer compares the ordered item lists of a proposal. The positional
// implementation below is the shipping strategy; a content-addressed one can
// replace it without touching Diff's callers.
type ListDiffer interface {
	DiffItems(oldItems, newItems []store.PricingItem) []store.FieldChange
	DiffPhases(oldPhases, newPhases []store.TimelinePhase) []store.FieldChange
}

var defaultListDiffer ListDiffer = positionalDiffer{}

// positionalDiffer walks both lists by index up to max(len). Reordering
// items without editing them therefore reports pairwise changes rather than
// a move; callers that treat diffs as a semantic no-op check must account
// for that.
type positionalDiffer struct{}

func (positionalDiffer) DiffItems(oldItems, newItems []store.PricingItem) []store.FieldChange {
	result := make([]store.FieldChange, 0)
	for index := 0; index < maxLen(len(oldItems), len(newItems)); index++ {
		label := itemLabel("Item", index)
		switch {
		case index >= len(oldItems):
			result = append(result, store.FieldChange{
				Field:    label,
				NewValue: captured(newItems[index].Name),
			})
		case index >= len(newItems):
			result = append(result, store.FieldChange{
				Field:    label,
				OldValue: captured(oldItems[index].Name),
			})
		default:
			oldItem, newItem := oldItems[index], newItems[index]
			result = appendScalar(result, label+" Name", oldItem.Name, newItem.Name)
			result = appendScalar(result, label+" Price", oldItem.Price, newItem.Price)
			result = appendScalar(result, label+" Description", oldItem.Description, newItem.Description)
		}
	}
	return result
}

func (positionalDiffer) DiffPhases(oldPhases, newPhases []store.TimelinePhase) []store.FieldChange {
	result := make([]store.FieldChange, 0)
	for index := 0; index < maxLen(len(oldPhases), len(newPhases)); index++ {
		label := itemLabel("Phase", index)
		switch {
		case index >= len(oldPhases):
			result = append(result, store.FieldChange{
				Field:    label,
				NewValue: captured(newPhases[index].Title),
			})
		case index >= len(newPhases):
			result = append(result, store.FieldChange{
				Field:    label,
				OldValue: captured(oldPhases[index].Title),
			})
		default:
			oldPhase, newPhase := oldPhases[index], newPhases[index]
			result = appendScalar(result, label+" Title", oldPhase.Title, newPhase.Title)
			result = appendScalar(result, label+" Description", oldPhase.Description, newPhase.Description)
			result = appendScalar(result, label+" Duration", oldPhase.Duration, newPhase.Duration)
			result = appendScalar(result, label+" Start Date", oldPhase.StartDate, newPhase.StartDate)
			result = appendScalar(result, label+" End Date", oldPhase.EndDate, newPhase.EndDate)
		}
	}
	return result
}

func maxLen(a, b int) int {
	if a > b {
		return a
	}
	return b
}
