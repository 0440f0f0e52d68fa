package gateway

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/symeon158/CVF-Survey-App/internal/catalog"
	"github.com/symeon158/CVF-Survey-App/internal/survey"
)

// ResponsesSheet is the worksheet rows are written to.
const ResponsesSheet = "Responses"

// XLSX appends rows to a local workbook. Writes are serialized within the
// process; the file must not be shared with another writer.
type XLSX struct {
	path   string
	schema []catalog.Column

	mu sync.Mutex
}

// NewXLSX opens the workbook at path, creating it with a header row if it
// does not exist yet.
func NewXLSX(path string, cat *catalog.Catalog) (*XLSX, error) {
	x := &XLSX{path: path, schema: cat.Schema()}
	if err := x.ensureHeader(); err != nil {
		return nil, err
	}
	return x, nil
}

func (x *XLSX) Name() string { return "xlsx" }

func (x *XLSX) ensureHeader() error {
	f, err := excelize.OpenFile(x.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		f = excelize.NewFile()
		if err := f.SetSheetName(f.GetSheetName(0), ResponsesSheet); err != nil {
			return fmt.Errorf("xlsx: name sheet: %w", err)
		}
	case err != nil:
		return fmt.Errorf("xlsx: open %s: %w", x.path, err)
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(ResponsesSheet)
	if err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	if idx < 0 {
		if _, err := f.NewSheet(ResponsesSheet); err != nil {
			return fmt.Errorf("xlsx: add sheet: %w", err)
		}
	}
	rows, err := f.GetRows(ResponsesSheet)
	if err != nil {
		return fmt.Errorf("xlsx: read rows: %w", err)
	}
	header := columnNames(x.schema)
	if len(rows) > 0 {
		if !slices.Equal(rows[0], header) {
			return fmt.Errorf("xlsx: %s has a header that does not match the survey columns", x.path)
		}
		return nil
	}
	cells := make([]any, len(header))
	for i, h := range header {
		cells[i] = h
	}
	if err := f.SetSheetRow(ResponsesSheet, "A1", &cells); err != nil {
		return fmt.Errorf("xlsx: write header: %w", err)
	}
	if err := f.SaveAs(x.path); err != nil {
		return fmt.Errorf("xlsx: save %s: %w", x.path, err)
	}
	return nil
}

func (x *XLSX) Append(ctx context.Context, rec survey.Record) (survey.Ack, error) {
	ack := survey.Ack{Gateway: x.Name()}
	if err := ctx.Err(); err != nil {
		return ack, err
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	f, err := excelize.OpenFile(x.path)
	if err != nil {
		return ack, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(ResponsesSheet)
	if err != nil {
		return ack, fmt.Errorf("read rows: %w", err)
	}
	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return ack, err
	}
	values := rec.Values()
	for i, v := range values {
		if v == nil {
			values[i] = ""
		}
	}
	if err := f.SetSheetRow(ResponsesSheet, cell, &values); err != nil {
		return ack, fmt.Errorf("write row: %w", err)
	}
	if err := f.Save(); err != nil {
		return ack, fmt.Errorf("save workbook: %w", err)
	}
	ack.Ref = ResponsesSheet + "!" + cell
	return ack, nil
}

func (x *XLSX) ReadRows(ctx context.Context, limit int) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	f, err := excelize.OpenFile(x.path)
	if err != nil {
		return nil, fmt.Errorf("xlsx: open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(ResponsesSheet)
	if err != nil {
		return nil, fmt.Errorf("xlsx: read rows: %w", err)
	}
	if len(rows) > 0 {
		rows = rows[1:]
	}
	rows = tail(rows, limit)
	out := make([]Row, len(rows))
	for i, r := range rows {
		cells := make([]any, len(r))
		for j, c := range r {
			cells[j] = c
		}
		out[i] = rowFromCells(x.schema, cells)
	}
	return out, nil
}

func (x *XLSX) Close() error { return nil }

func columnNames(schema []catalog.Column) []string {
	names := make([]string, len(schema))
	for i, c := range schema {
		names[i] = c.Name
	}
	return names
}
