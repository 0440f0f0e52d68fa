// Package survey implements the respondent-side core of the culture
// assessment form: response state, validation of the forced distribution,
// row building, and the submit/reset lifecycle of one respondent session.
package survey

import (
	"maps"

	"github.com/symeon158/CVF-Survey-App/internal/catalog"
)

// Response is the in-progress answer set of one respondent. Demographics map
// field key to the selected choice ("" while unset); Allocations map
// "{section}_{option}" to the allocated points.
type Response struct {
	Demographics map[string]string `json:"demographics"`
	Allocations  map[string]int    `json:"allocations"`
}

// NewResponse returns the initial state for cat: every demographic unset and
// every allocation at zero.
func NewResponse(cat *catalog.Catalog) Response {
	r := Response{
		Demographics: make(map[string]string, len(cat.Demographics)),
		Allocations:  make(map[string]int, len(cat.Sections)*catalog.OptionsPerSection),
	}
	for _, d := range cat.Demographics {
		r.Demographics[d.Key] = ""
	}
	for _, s := range cat.Sections {
		for _, key := range s.AllocationKeys() {
			r.Allocations[key] = 0
		}
	}
	return r
}

func (r Response) Clone() Response {
	return Response{
		Demographics: maps.Clone(r.Demographics),
		Allocations:  maps.Clone(r.Allocations),
	}
}

// SectionTotal sums the allocations of one section.
func (r Response) SectionTotal(s *catalog.Section) int {
	total := 0
	for _, key := range s.AllocationKeys() {
		total += r.Allocations[key]
	}
	return total
}

// Demographic returns the selected value, or "" when unset.
func (r Response) Demographic(key string) string {
	return r.Demographics[key]
}

func (r Response) Allocation(key string) int {
	return r.Allocations[key]
}
