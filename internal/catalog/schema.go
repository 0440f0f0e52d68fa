package catalog

// TimestampColumn is always the first column of a persisted row.
const TimestampColumn = "Timestamp"

type ColumnKind int

const (
	KindTimestamp ColumnKind = iota
	KindText
	KindInt
)

// Column is one cell position of the persisted row.
type Column struct {
	Name string
	Kind ColumnKind
	// Field is the response field feeding the column; empty for the timestamp.
	Field string
}

// Schema lists the persisted columns in row order: timestamp, demographics
// in declaration order, then every section x option allocation.
func (c *Catalog) Schema() []Column {
	cols := make([]Column, 0, 1+len(c.Demographics)+len(c.Sections)*OptionsPerSection)
	cols = append(cols, Column{Name: TimestampColumn, Kind: KindTimestamp})
	for _, d := range c.Demographics {
		cols = append(cols, Column{Name: d.Column, Kind: KindText, Field: d.Key})
	}
	for _, s := range c.Sections {
		for _, o := range s.Options {
			cols = append(cols, Column{Name: s.ColumnName(o.Key), Kind: KindInt, Field: AllocationKey(s.Key, o.Key)})
		}
	}
	return cols
}

// Columns returns just the column names of Schema.
func (c *Catalog) Columns() []string {
	schema := c.Schema()
	names := make([]string, len(schema))
	for i, col := range schema {
		names[i] = col.Name
	}
	return names
}

type FieldKind int

const (
	FieldDemographic FieldKind = iota + 1
	FieldAllocation
)

// Field resolves a response field key to its catalog entry.
type Field struct {
	Kind        FieldKind
	Demographic *Demographic
	Section     *Section
	Option      *Option
}

// Field looks up a response field key.
func (c *Catalog) Field(key string) (Field, bool) {
	if d, ok := c.Demographic(key); ok {
		return Field{Kind: FieldDemographic, Demographic: d}, true
	}
	for i := range c.Sections {
		s := &c.Sections[i]
		for j := range s.Options {
			if AllocationKey(s.Key, s.Options[j].Key) == key {
				return Field{Kind: FieldAllocation, Section: s, Option: &s.Options[j]}, true
			}
		}
	}
	return Field{}, false
}
