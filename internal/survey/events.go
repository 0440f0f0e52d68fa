package survey

import (
	"sort"

	"github.com/symeon158/CVF-Survey-App/internal/catalog"
)

// Event is one edit made by the respondent.
type Event interface {
	apply(cat *catalog.Catalog, r *Response) error
}

// SetAllocation assigns points to one option. The value must lie in
// [0,100] on the catalog's step grid.
type SetAllocation struct {
	Field string
	Value int
}

func (e SetAllocation) apply(cat *catalog.Catalog, r *Response) error {
	f, ok := cat.Field(e.Field)
	if !ok || f.Kind != catalog.FieldAllocation {
		return &FieldError{Field: e.Field, Value: e.Value, Reason: "unknown allocation field"}
	}
	if e.Value < 0 || e.Value > catalog.Points {
		return &FieldError{Field: e.Field, Value: e.Value, Reason: "outside 0..100"}
	}
	if e.Value%cat.Step != 0 {
		return &FieldError{Field: e.Field, Value: e.Value, Reason: "not a multiple of the step"}
	}
	r.Allocations[e.Field] = e.Value
	return nil
}

// SetDemographic selects a choice. An empty value clears the field.
type SetDemographic struct {
	Field string
	Value string
}

func (e SetDemographic) apply(cat *catalog.Catalog, r *Response) error {
	d, ok := cat.Demographic(e.Field)
	if !ok {
		return &FieldError{Field: e.Field, Value: e.Value, Reason: "unknown demographic field"}
	}
	if e.Value != "" && !d.HasChoice(e.Value) {
		return &FieldError{Field: e.Field, Value: e.Value, Reason: "not one of the choices"}
	}
	r.Demographics[e.Field] = e.Value
	return nil
}

// ChangeSet is the wire form of a batch of edits.
type ChangeSet struct {
	Demographics map[string]string `json:"demographics,omitempty"`
	Allocations  map[string]int    `json:"allocations,omitempty"`
}

// Events expands the change set in key order.
func (c ChangeSet) Events() []Event {
	events := make([]Event, 0, len(c.Demographics)+len(c.Allocations))
	for _, k := range sortedKeys(c.Demographics) {
		events = append(events, SetDemographic{Field: k, Value: c.Demographics[k]})
	}
	for _, k := range sortedKeys(c.Allocations) {
		events = append(events, SetAllocation{Field: k, Value: c.Allocations[k]})
	}
	return events
}

func (c ChangeSet) Empty() bool {
	return len(c.Demographics) == 0 && len(c.Allocations) == 0
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
