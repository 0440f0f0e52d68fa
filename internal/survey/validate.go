package survey

import (
	"errors"
	"fmt"

	"github.com/symeon158/CVF-Survey-App/internal/catalog"
)

type SectionStatus struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Total int    `json:"total"`
	Valid bool   `json:"valid"`
}

// Report is the validator's verdict on a response.
type Report struct {
	Sections            []SectionStatus `json:"sections"`
	MissingDemographics []string        `json:"missingDemographics"`
}

// Validate checks every section for an exact total of 100 and every
// demographic for a selection. There is no tolerance: 99 and 101 both fail.
func Validate(cat *catalog.Catalog, r *Response) Report {
	rep := Report{
		Sections:            make([]SectionStatus, 0, len(cat.Sections)),
		MissingDemographics: []string{},
	}
	for i := range cat.Sections {
		s := &cat.Sections[i]
		total := r.SectionTotal(s)
		rep.Sections = append(rep.Sections, SectionStatus{
			Key:   s.Key,
			Title: s.Title,
			Total: total,
			Valid: total == catalog.Points,
		})
	}
	for _, d := range cat.Demographics {
		if r.Demographic(d.Key) == "" {
			rep.MissingDemographics = append(rep.MissingDemographics, d.Key)
		}
	}
	return rep
}

func (rep Report) SectionsValid() bool {
	for _, s := range rep.Sections {
		if !s.Valid {
			return false
		}
	}
	return true
}

func (rep Report) DemographicsComplete() bool {
	return len(rep.MissingDemographics) == 0
}

// Valid is the global submit condition.
func (rep Report) Valid() bool {
	return rep.SectionsValid() && rep.DemographicsComplete()
}

func (rep Report) Section(key string) (SectionStatus, bool) {
	for _, s := range rep.Sections {
		if s.Key == key {
			return s, true
		}
	}
	return SectionStatus{}, false
}

// Err joins one ValidationError per problem, or returns nil when valid.
func (rep Report) Err() error {
	var errs []error
	for _, s := range rep.Sections {
		if !s.Valid {
			errs = append(errs, &ValidationError{Kind: SectionTotalMismatch, Section: s.Key, Total: s.Total})
		}
	}
	if !rep.DemographicsComplete() {
		errs = append(errs, &ValidationError{Kind: MissingDemographic, Fields: rep.MissingDemographics})
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrIncomplete, errors.Join(errs...))
}

// SectionMessages renders one message per invalid section using the
// catalog's section_total text.
func (rep Report) SectionMessages(cat *catalog.Catalog) []string {
	format := cat.Messages.SectionTotal
	if format == "" {
		format = "Section %q must total 100 (has %d)."
	}
	var msgs []string
	for _, s := range rep.Sections {
		if !s.Valid {
			msgs = append(msgs, fmt.Sprintf(format, s.Title, s.Total))
		}
	}
	return msgs
}

// Hint is the single line shown next to the submit control. Missing
// demographics are reported before section totals.
func (rep Report) Hint(cat *catalog.Catalog) string {
	switch {
	case !rep.DemographicsComplete():
		return orDefault(cat.Messages.MissingDemographics, "Please fill in all demographic fields.")
	case !rep.SectionsValid():
		return orDefault(cat.Messages.FixTotals, "Please fix the totals so that each equals 100.")
	}
	return ""
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
