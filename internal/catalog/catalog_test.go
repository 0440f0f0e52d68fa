package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Len(t, c.Sections, 6)
	assert.Len(t, c.Demographics, 5)
	assert.Equal(t, 5, c.Step)
	for _, s := range c.Sections {
		assert.Len(t, s.Options, OptionsPerSection, s.Key)
	}

	division, ok := c.Demographic("division")
	require.True(t, ok)
	assert.Len(t, division.Choices, 11)
	level, _ := c.Demographic("level")
	assert.Len(t, level.Choices, 4)
	gender, _ := c.Demographic("gender")
	assert.Len(t, gender.Choices, 3)
	tenure, _ := c.Demographic("tenure")
	assert.Len(t, tenure.Choices, 5)
	generation, _ := c.Demographic("generation")
	assert.Equal(t, []string{"Gen Z", "Millennials", "Gen X", "Baby Boomers"}, generation.Choices)
	assert.Contains(t, generation.Help, "1997–2012")
}

func TestDefaultReturnsIndependentCopies(t *testing.T) {
	a, err := Default()
	require.NoError(t, err)
	b, err := Default()
	require.NoError(t, err)

	a.Sections[0].Title = "changed"
	assert.NotEqual(t, a.Sections[0].Title, b.Sections[0].Title)
}

func TestColumnsOrder(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	cols := c.Columns()
	require.Len(t, cols, 30)
	assert.Equal(t, []string{"Timestamp", "Division", "Level", "Gender", "Generation", "Tenure"}, cols[:6])
	assert.Equal(t, []string{
		"dominant_characteristics_Clan",
		"dominant_characteristics_Adhocracy",
		"dominant_characteristics_Market",
		"dominant_characteristics_Hierarchy",
	}, cols[6:10])
	assert.Equal(t, "criteria_of_success_Hierarchy", cols[29])

	schema := c.Schema()
	assert.Equal(t, KindTimestamp, schema[0].Kind)
	assert.Equal(t, KindText, schema[1].Kind)
	assert.Equal(t, "division", schema[1].Field)
	assert.Equal(t, KindInt, schema[6].Kind)
}

func TestFieldLookup(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	f, ok := c.Field("gender")
	require.True(t, ok)
	assert.Equal(t, FieldDemographic, f.Kind)
	assert.Equal(t, "Gender", f.Demographic.Column)

	f, ok = c.Field("organization_glue_Market")
	require.True(t, ok)
	assert.Equal(t, FieldAllocation, f.Kind)
	assert.Equal(t, "organization_glue", f.Section.Key)
	assert.Equal(t, "Market", f.Option.Key)

	_, ok = c.Field("organization_glue_Chaos")
	assert.False(t, ok)
}

func TestSetStep(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	require.NoError(t, c.SetStep(10))
	assert.Equal(t, 10, c.Step)
	require.NoError(t, c.SetStep(0))
	assert.Equal(t, 10, c.Step)

	assert.Error(t, c.SetStep(7))
	assert.Error(t, c.SetStep(-5))
	assert.Error(t, c.SetStep(200))
}

func TestParseRejectsBadCatalogs(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "three options",
			yaml: `
demographics: [{key: d, column: D, label: D, choices: [a]}]
sections:
  - key: s
    options: [{key: A}, {key: B}, {key: C}]
`,
		},
		{
			name: "duplicate option",
			yaml: `
demographics: [{key: d, column: D, label: D, choices: [a]}]
sections:
  - key: s
    options: [{key: A}, {key: A}, {key: C}, {key: D}]
`,
		},
		{
			name: "empty choices",
			yaml: `
demographics: [{key: d, column: D, label: D}]
sections:
  - key: s
    options: [{key: A}, {key: B}, {key: C}, {key: D}]
`,
		},
		{
			name: "example off total",
			yaml: `
demographics: [{key: d, column: D, label: D, choices: [a]}]
sections:
  - key: s
    example: {text: x, allocation: {A: 50, B: 40}}
    options: [{key: A}, {key: B}, {key: C}, {key: D}]
`,
		},
		{
			name: "bad step",
			yaml: `
step: 30
demographics: [{key: d, column: D, label: D, choices: [a]}]
sections:
  - key: s
    options: [{key: A}, {key: B}, {key: C}, {key: D}]
`,
		},
		{
			name: "column clash",
			yaml: `
demographics: [{key: d, column: D, label: D, choices: [a]}]
sections:
  - key: s
    options: [{key: A}, {key: B}, {key: C}, {key: D}]
  - key: t
    column: s
    options: [{key: A}, {key: B}, {key: C}, {key: D}]
`,
		},
		{
			name: "no sections",
			yaml: `
demographics: [{key: d, column: D, label: D, choices: [a]}]
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	err := os.WriteFile(path, []byte(`
title: Mini
step: 10
demographics: [{key: team, column: Team, label: Team, choices: [red, blue]}]
sections:
  - key: focus
    title: Focus
    options: [{key: A}, {key: B}, {key: C}, {key: D}]
`), 0o644)
	require.NoError(t, err)

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Mini", c.Title)
	assert.Equal(t, 10, c.Step)
	assert.Equal(t, "A", c.Sections[0].Options[0].Label)
	assert.Equal(t, []string{"Timestamp", "Team", "focus_A", "focus_B", "focus_C", "focus_D"}, c.Columns())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSectionColumnOverride(t *testing.T) {
	c, err := Parse([]byte(`
demographics: [{key: team, column: Team, label: Team, choices: [red]}]
sections:
  - key: dominant_characteristics
    column: Κυρίαρχα Χαρακτηριστικά
    options: [{key: Clan}, {key: Adhocracy}, {key: Market}, {key: Hierarchy}]
`))
	require.NoError(t, err)

	schema := c.Schema()
	require.Len(t, schema, 6)
	assert.Equal(t, "Κυρίαρχα Χαρακτηριστικά_Clan", schema[2].Name)
	assert.Equal(t, "dominant_characteristics_Clan", schema[2].Field)

	// Field keys stay on the section key.
	f, ok := c.Field("dominant_characteristics_Market")
	require.True(t, ok)
	assert.Equal(t, "Market", f.Option.Key)
	_, ok = c.Field("Κυρίαρχα Χαρακτηριστικά_Market")
	assert.False(t, ok)
}
