package survey

import (
	"slices"
	"time"

	"github.com/symeon158/CVF-Survey-App/internal/catalog"
)

// Record is the flat row persisted for one submission. It is built once and
// exposes copies only, so nothing can change it after the fact.
type Record struct {
	at      time.Time
	columns []string
	values  []any
}

// BuildRecord snapshots r at the given time into the persisted column
// order. Unset demographics become nil; no column is ever dropped.
func BuildRecord(cat *catalog.Catalog, r *Response, at time.Time) Record {
	schema := cat.Schema()
	rec := Record{
		at:      at,
		columns: make([]string, len(schema)),
		values:  make([]any, len(schema)),
	}
	for i, col := range schema {
		rec.columns[i] = col.Name
		switch col.Kind {
		case catalog.KindTimestamp:
			rec.values[i] = at.Format(time.RFC3339)
		case catalog.KindText:
			if v := r.Demographic(col.Field); v != "" {
				rec.values[i] = v
			}
		case catalog.KindInt:
			rec.values[i] = r.Allocation(col.Field)
		}
	}
	return rec
}

func (rec Record) Timestamp() time.Time { return rec.at }

func (rec Record) Len() int { return len(rec.values) }

func (rec Record) Columns() []string { return slices.Clone(rec.columns) }

func (rec Record) Values() []any { return slices.Clone(rec.values) }

// Value returns the cell of the named column.
func (rec Record) Value(column string) (any, bool) {
	i := slices.Index(rec.columns, column)
	if i < 0 {
		return nil, false
	}
	return rec.values[i], true
}

// Map returns the row keyed by column name.
func (rec Record) Map() map[string]any {
	m := make(map[string]any, len(rec.columns))
	for i, c := range rec.columns {
		m[c] = rec.values[i]
	}
	return m
}
