// Package catalog holds the fixed survey content: sections with their four
// option statements, the demographic enumerations and the allocation step.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// OptionsPerSection is the fixed number of statements in every section.
const OptionsPerSection = 4

// Points is the total every section has to distribute.
const Points = 100

//go:embed default.yaml
var defaultYAML []byte

type Option struct {
	Key       string `yaml:"key" json:"key"`
	Label     string `yaml:"label,omitempty" json:"label"`
	Statement string `yaml:"statement" json:"statement"`
}

// Example is an illustrative allocation shown next to a section.
type Example struct {
	Text       string         `yaml:"text" json:"text"`
	Allocation map[string]int `yaml:"allocation,omitempty" json:"allocation,omitempty"`
}

type Section struct {
	Key   string `yaml:"key" json:"key"`
	Title string `yaml:"title" json:"title"`
	// Column prefixes the persisted column names; Key when empty.
	Column  string   `yaml:"column,omitempty" json:"column,omitempty"`
	Options []Option `yaml:"options" json:"options"`
	Example *Example `yaml:"example,omitempty" json:"example,omitempty"`
}

type Demographic struct {
	Key         string   `yaml:"key" json:"key"`
	Column      string   `yaml:"column" json:"column"`
	Label       string   `yaml:"label" json:"label"`
	Placeholder string   `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	Help        string   `yaml:"help,omitempty" json:"help,omitempty"`
	Choices     []string `yaml:"choices" json:"choices"`
}

// HasChoice reports whether v is one of the enumeration values.
func (d *Demographic) HasChoice(v string) bool {
	for _, c := range d.Choices {
		if c == v {
			return true
		}
	}
	return false
}

// Messages are the user-visible texts. SectionTotal takes the section title
// and its current total; SubmitFailed takes the error detail.
type Messages struct {
	SectionTotal        string `yaml:"section_total" json:"sectionTotal"`
	MissingDemographics string `yaml:"missing_demographics" json:"missingDemographics"`
	FixTotals           string `yaml:"fix_totals" json:"fixTotals"`
	Submitted           string `yaml:"submitted" json:"submitted"`
	SubmitFailed        string `yaml:"submit_failed" json:"submitFailed"`
	Submit              string `yaml:"submit" json:"submit"`
}

type Catalog struct {
	Title        string        `yaml:"title" json:"title"`
	Intro        string        `yaml:"intro,omitempty" json:"intro,omitempty"`
	Step         int           `yaml:"step" json:"step"`
	Messages     Messages      `yaml:"messages" json:"messages"`
	Demographics []Demographic `yaml:"demographics" json:"demographics"`
	Sections     []Section     `yaml:"sections" json:"sections"`
}

// Default returns a fresh copy of the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultYAML)
}

// Load reads a catalog file. An empty path yields the embedded default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for i := range c.Sections {
		for j := range c.Sections[i].Options {
			if c.Sections[i].Options[j].Label == "" {
				c.Sections[i].Options[j].Label = c.Sections[i].Options[j].Key
			}
		}
	}
	if c.Step == 0 {
		c.Step = 5
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// SetStep overrides the allocation step. Zero keeps the current value.
func (c *Catalog) SetStep(step int) error {
	if step == 0 {
		return nil
	}
	if err := checkStep(step); err != nil {
		return err
	}
	c.Step = step
	return nil
}

func checkStep(step int) error {
	if step <= 0 || step > Points || Points%step != 0 {
		return fmt.Errorf("step %d does not divide %d", step, Points)
	}
	return nil
}

// Validate checks the structural invariants: exactly four options per
// section, unique keys and columns, non-empty enumerations.
func (c *Catalog) Validate() error {
	var errs []error
	if err := checkStep(c.Step); err != nil {
		errs = append(errs, err)
	}
	if len(c.Sections) == 0 {
		errs = append(errs, errors.New("catalog has no sections"))
	}
	if len(c.Demographics) == 0 {
		errs = append(errs, errors.New("catalog has no demographics"))
	}

	columns := map[string]bool{TimestampColumn: true}
	keys := map[string]bool{}
	claim := func(key, column string) {
		if keys[key] {
			errs = append(errs, fmt.Errorf("duplicate field key %q", key))
		}
		if columns[column] {
			errs = append(errs, fmt.Errorf("duplicate column %q", column))
		}
		keys[key] = true
		columns[column] = true
	}

	for _, d := range c.Demographics {
		if d.Key == "" || d.Column == "" {
			errs = append(errs, fmt.Errorf("demographic %q needs key and column", d.Label))
			continue
		}
		if len(d.Choices) == 0 {
			errs = append(errs, fmt.Errorf("demographic %q has no choices", d.Key))
		}
		claim(d.Key, d.Column)
	}

	for _, s := range c.Sections {
		if s.Key == "" {
			errs = append(errs, fmt.Errorf("section %q has no key", s.Title))
			continue
		}
		if strings.Contains(s.Key, " ") {
			errs = append(errs, fmt.Errorf("section key %q contains spaces", s.Key))
		}
		if len(s.Options) != OptionsPerSection {
			errs = append(errs, fmt.Errorf("section %q has %d options, want %d", s.Key, len(s.Options), OptionsPerSection))
		}
		for _, o := range s.Options {
			claim(AllocationKey(s.Key, o.Key), s.ColumnName(o.Key))
		}
		if s.Example != nil && len(s.Example.Allocation) > 0 {
			total := 0
			for opt, v := range s.Example.Allocation {
				if _, ok := s.Option(opt); !ok {
					errs = append(errs, fmt.Errorf("section %q example names unknown option %q", s.Key, opt))
				}
				total += v
			}
			if total != Points {
				errs = append(errs, fmt.Errorf("section %q example totals %d, want %d", s.Key, total, Points))
			}
		}
	}
	return errors.Join(errs...)
}

// Option looks up an option of the section by key.
func (s *Section) Option(key string) (*Option, bool) {
	for i := range s.Options {
		if s.Options[i].Key == key {
			return &s.Options[i], true
		}
	}
	return nil, false
}

// AllocationKeys returns the field keys of the section's options in
// declaration order.
func (s *Section) AllocationKeys() []string {
	keys := make([]string, len(s.Options))
	for i, o := range s.Options {
		keys[i] = AllocationKey(s.Key, o.Key)
	}
	return keys
}

func (c *Catalog) Section(key string) (*Section, bool) {
	for i := range c.Sections {
		if c.Sections[i].Key == key {
			return &c.Sections[i], true
		}
	}
	return nil, false
}

func (c *Catalog) Demographic(key string) (*Demographic, bool) {
	for i := range c.Demographics {
		if c.Demographics[i].Key == key {
			return &c.Demographics[i], true
		}
	}
	return nil, false
}

// ColumnName is the persisted column of one option of the section.
func (s *Section) ColumnName(option string) string {
	prefix := s.Column
	if prefix == "" {
		prefix = s.Key
	}
	return AllocationKey(prefix, option)
}

// AllocationKey builds the field key of one option: "{section}_{option}".
func AllocationKey(section, option string) string {
	return section + "_" + option
}
