package gateway

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/symeon158/CVF-Survey-App/internal/catalog"
	"github.com/symeon158/CVF-Survey-App/internal/survey"
)

// Sheets appends rows to a Google spreadsheet through the Sheets API v4.
type Sheets struct {
	svc           *sheets.Service
	spreadsheetID string
	sheet         string
	schema        []catalog.Column
}

// SheetsCredentials turns the configured service-account credential into
// client options. Inline JSON wins over a file path.
func SheetsCredentials(credentialsJSON, credentialsFile string) ([]option.ClientOption, error) {
	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	switch {
	case credentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	case credentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	default:
		return nil, fmt.Errorf("sheets: no service account credentials configured")
	}
	return opts, nil
}

// NewSheets connects to the spreadsheet and writes the header row to sheet
// when it is still empty.
func NewSheets(ctx context.Context, spreadsheetID, sheet string, cat *catalog.Catalog, opts ...option.ClientOption) (*Sheets, error) {
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets: new service: %w", err)
	}
	s := &Sheets{svc: svc, spreadsheetID: spreadsheetID, sheet: sheet, schema: cat.Schema()}
	if err := s.EnsureHeader(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sheets) Name() string { return "sheets" }

// EnsureHeader writes the column names into row 1 if that row is empty.
func (s *Sheets) EnsureHeader(ctx context.Context) error {
	got, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.sheet+"!1:1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets: read header: %w", err)
	}
	if len(got.Values) > 0 && len(got.Values[0]) > 0 {
		return nil
	}
	header := make([]any, len(s.schema))
	for i, c := range s.schema {
		header[i] = c.Name
	}
	_, err = s.svc.Spreadsheets.Values.Update(s.spreadsheetID, s.sheet+"!A1", &sheets.ValueRange{
		Values: [][]any{header},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets: write header: %w", err)
	}
	return nil
}

func (s *Sheets) Append(ctx context.Context, rec survey.Record) (survey.Ack, error) {
	ack := survey.Ack{Gateway: s.Name()}
	values := rec.Values()
	for i, v := range values {
		if v == nil {
			values[i] = ""
		}
	}
	resp, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, s.sheet, &sheets.ValueRange{
		Values: [][]any{values},
	}).ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return ack, err
	}
	if resp.Updates != nil {
		ack.Ref = resp.Updates.UpdatedRange
	}
	return ack, nil
}

func (s *Sheets) ReadRows(ctx context.Context, limit int) ([]Row, error) {
	got, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.sheet).
		ValueRenderOption("UNFORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("sheets: read rows: %w", err)
	}
	rows := got.Values
	if len(rows) > 0 && len(rows[0]) > 0 && toText(rows[0][0]) == catalog.TimestampColumn {
		rows = rows[1:]
	}
	rows = tail(rows, limit)
	out := make([]Row, len(rows))
	for i, cells := range rows {
		out[i] = rowFromCells(s.schema, cells)
	}
	return out, nil
}

func (s *Sheets) Close() error { return nil }
