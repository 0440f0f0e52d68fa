// Package export renders stored survey rows as an Excel workbook.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/symeon158/CVF-Survey-App/internal/catalog"
	"github.com/symeon158/CVF-Survey-App/internal/gateway"
)

const (
	ResponsesSheet = "Responses"
	SummarySheet   = "Summary"
)

// Profile is the mean allocation per option of every section, the "current
// culture" profile of the respondents.
type Profile struct {
	Respondents int
	Sections    []SectionProfile
}

type SectionProfile struct {
	Key   string
	Title string
	Means map[string]float64 // option key -> mean points
}

// Summarize averages the allocations of rows.
func Summarize(cat *catalog.Catalog, rows []gateway.Row) Profile {
	p := Profile{Respondents: len(rows)}
	for _, s := range cat.Sections {
		sp := SectionProfile{Key: s.Key, Title: s.Title, Means: make(map[string]float64, len(s.Options))}
		for _, o := range s.Options {
			if len(rows) == 0 {
				sp.Means[o.Key] = 0
				continue
			}
			col := s.ColumnName(o.Key)
			total := 0
			for _, r := range rows {
				if v, ok := r[col].(int); ok {
					total += v
				}
			}
			sp.Means[o.Key] = float64(total) / float64(len(rows))
		}
		p.Sections = append(p.Sections, sp)
	}
	return p
}

// WriteWorkbook writes a workbook with every row on the Responses sheet and
// the per-option means on the Summary sheet.
func WriteWorkbook(w io.Writer, cat *catalog.Catalog, rows []gateway.Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ResponsesSheet); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := writeResponses(f, cat, rows); err != nil {
		return err
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("export: add summary sheet: %w", err)
	}
	if err := writeSummary(f, cat, Summarize(cat, rows)); err != nil {
		return err
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

func writeResponses(f *excelize.File, cat *catalog.Catalog, rows []gateway.Row) error {
	columns := cat.Columns()
	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(ResponsesSheet, "A1", &header); err != nil {
		return fmt.Errorf("export: header: %w", err)
	}
	for i, r := range rows {
		cells := make([]any, len(columns))
		for j, c := range columns {
			if v := r[c]; v != nil {
				cells[j] = v
			} else {
				cells[j] = ""
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(ResponsesSheet, cell, &cells); err != nil {
			return fmt.Errorf("export: row %d: %w", i+1, err)
		}
	}
	if len(columns) > 0 {
		last, err := excelize.CoordinatesToCellName(len(columns), 1)
		if err != nil {
			return err
		}
		if err := f.AutoFilter(ResponsesSheet, "A1:"+last, nil); err != nil {
			return fmt.Errorf("export: autofilter: %w", err)
		}
	}
	return nil
}

func writeSummary(f *excelize.File, cat *catalog.Catalog, p Profile) error {
	header := []any{"Section", "Respondents"}
	var options []string
	if len(cat.Sections) > 0 {
		for _, o := range cat.Sections[0].Options {
			options = append(options, o.Key)
			header = append(header, o.Key)
		}
	}
	if err := f.SetSheetRow(SummarySheet, "A1", &header); err != nil {
		return fmt.Errorf("export: summary header: %w", err)
	}
	for i, sp := range p.Sections {
		cells := []any{sp.Title, p.Respondents}
		for _, o := range options {
			cells = append(cells, sp.Means[o])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &cells); err != nil {
			return fmt.Errorf("export: summary row: %w", err)
		}
	}
	return nil
}
