// Package schema loads the static descriptor of the queryable relation.
// The descriptor is read once at startup and is immutable afterwards; a
// malformed descriptor is a programming error and fatal.
package schema

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed columns.yaml
var descriptorYAML []byte

// Column describes one physical column of the statistics table.
type Column struct {
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type"`
	Quoted  bool     `yaml:"quoted"`
	Aliases []string `yaml:"aliases"`
}

// Derived describes a pseudo-column expression reachable through aliases
// (shooting percentages) but not stored in the table.
type Derived struct {
	Expr    string   `yaml:"expr"`
	Aliases []string `yaml:"aliases"`
}

// Descriptor is the ordered, read-only description of the queryable table.
type Descriptor struct {
	Table   string    `yaml:"table"`
	Columns []Column  `yaml:"columns"`
	Derived []Derived `yaml:"derived"`

	byName map[string]*Column
}

// Load parses the embedded descriptor. Call once at startup.
func Load() (*Descriptor, error) {
	return Parse(descriptorYAML)
}

// Parse decodes a descriptor from YAML and validates it.
func Parse(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse schema descriptor: %w", err)
	}
	if d.Table == "" {
		return nil, fmt.Errorf("schema descriptor: table name is required")
	}
	if len(d.Columns) == 0 {
		return nil, fmt.Errorf("schema descriptor: at least one column is required")
	}
	d.byName = make(map[string]*Column, len(d.Columns))
	for i := range d.Columns {
		col := &d.Columns[i]
		if col.Name == "" || col.Type == "" {
			return nil, fmt.Errorf("schema descriptor: column %d missing name or type", i)
		}
		if _, dup := d.byName[col.Name]; dup {
			return nil, fmt.Errorf("schema descriptor: duplicate column %q", col.Name)
		}
		d.byName[col.Name] = col
	}
	return &d, nil
}

// Column returns the column with the given physical name, or nil.
func (d *Descriptor) Column(name string) *Column {
	return d.byName[name]
}

// SQLName returns the column name as it must appear in SQL, quoting
// reserved or special-character names.
func (c *Column) SQLName() string {
	if c.Quoted {
		return `"` + c.Name + `"`
	}
	return c.Name
}

// TermMap builds the user-term to SQL-expression mapping from column
// aliases and derived expressions. Keys are lowercase terms.
func (d *Descriptor) TermMap() map[string]string {
	m := make(map[string]string)
	for i := range d.Columns {
		col := &d.Columns[i]
		for _, a := range col.Aliases {
			m[strings.ToLower(a)] = col.SQLName()
		}
	}
	for _, dv := range d.Derived {
		for _, a := range dv.Aliases {
			m[strings.ToLower(a)] = dv.Expr
		}
	}
	return m
}

// PromptSchema renders the table shape for inclusion in completion prompts.
func (d *Descriptor) PromptSchema() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Table: %s\n", d.Table)
	for i := range d.Columns {
		col := &d.Columns[i]
		fmt.Fprintf(&b, "- %s (%s)\n", col.Name, col.Type)
	}
	return strings.TrimRight(b.String(), "\n")
}

// QuotedColumns returns the physical names that must be double-quoted in SQL.
func (d *Descriptor) QuotedColumns() []string {
	var out []string
	for i := range d.Columns {
		if d.Columns[i].Quoted {
			out = append(out, d.Columns[i].Name)
		}
	}
	return out
}
