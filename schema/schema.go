// Package schema defines the typed data-source model every later stage
// resolves against: tables with typed columns, joins, blends, and the
// calculated-field specs awaiting translation.  A Schema is built once per
// data source and is read-only afterward.
package schema

import (
	"fmt"
	"strings"
)

// Type is a column or expression result type.
type Type int

const (
	TypeUnknown Type = iota
	TypeNumber
	TypeInteger
	TypeString
	TypeBool
	TypeDate
	TypeDateTime
)

func (t Type) String() string {
	switch t {
	case TypeNumber:
		return "number"
	case TypeInteger:
		return "integer"
	case TypeString:
		return "string"
	case TypeBool:
		return "boolean"
	case TypeDate:
		return "date"
	case TypeDateTime:
		return "datetime"
	}
	return "unknown"
}

// ParseType maps a Tableau datatype attribute to a Type.  Unrecognized
// datatypes decay to string, matching the source tool's behavior.
func ParseType(s string) Type {
	switch strings.ToLower(s) {
	case "integer":
		return TypeInteger
	case "real", "number":
		return TypeNumber
	case "string":
		return TypeString
	case "boolean":
		return TypeBool
	case "date":
		return TypeDate
	case "datetime":
		return TypeDateTime
	}
	return TypeString
}

// Numeric reports whether t is a numeric type.
func (t Type) Numeric() bool {
	return t == TypeNumber || t == TypeInteger
}

// Role distinguishes grouping columns from aggregated ones.
type Role int

const (
	RoleDimension Role = iota
	RoleMeasure
)

func (r Role) String() string {
	if r == RoleMeasure {
		return "measure"
	}
	return "dimension"
}

type Column struct {
	Name    string
	Caption string
	Type    Type
	Role    Role
	// Unique marks declared or inferred key columns and drives
	// relationship cardinality inference.
	Unique bool
}

// DisplayName prefers the user-facing caption.
func (c *Column) DisplayName() string {
	if c.Caption != "" {
		return c.Caption
	}
	return c.Name
}

// SourceInfo describes where a table's data lives, mapped from the
// connection class of the source workbook.
type SourceInfo struct {
	Type     string `json:"type"`
	Server   string `json:"server,omitempty"`
	Database string `json:"database,omitempty"`
	Username string `json:"username,omitempty"`
	Path     string `json:"path,omitempty"`
}

type Table struct {
	Name    string
	Columns []Column
	Source  SourceInfo
}

// LookupColumn finds a column by name or caption, case-insensitively.
func (t *Table) LookupColumn(name string) *Column {
	for i := range t.Columns {
		c := &t.Columns[i]
		if strings.EqualFold(c.Name, name) || strings.EqualFold(c.Caption, name) {
			return c
		}
	}
	return nil
}

type JoinType string

const (
	JoinInner JoinType = "inner"
	JoinLeft  JoinType = "left"
	JoinRight JoinType = "right"
	JoinFull  JoinType = "full"
)

type JoinClause struct {
	LeftTable   string
	LeftColumn  string
	RightTable  string
	RightColumn string
	Op          string
}

// A Join connects two tables of one data source.  DeclOrder preserves
// workbook declaration order for deterministic tie-breaking.
type Join struct {
	Left      string
	Right     string
	Type      JoinType
	Clauses   []JoinClause
	DeclOrder int
}

// A Blend links two data sources at the granularity of LinkFields without
// a formal join.
type Blend struct {
	Primary    string
	Secondary  string
	LinkFields []string
}

// A CalcSpec is a calculated field awaiting translation.
type CalcSpec struct {
	Name     string
	Caption  string
	Formula  string
	Declared Type
}

// A Schema is the typed model of one data source.
type Schema struct {
	Name   string
	Tables []*Table
	Joins  []Join
	Blends []Blend
	Calcs  []CalcSpec
}

// Table returns the named table or nil.
func (s *Schema) Table(name string) *Table {
	for _, t := range s.Tables {
		if strings.EqualFold(t.Name, name) {
			return t
		}
	}
	return nil
}

// LookupColumn resolves an unqualified field name against every table in
// declaration order, returning the owning table and the column.
func (s *Schema) LookupColumn(name string) (*Table, *Column) {
	for _, t := range s.Tables {
		if c := t.LookupColumn(name); c != nil {
			return t, c
		}
	}
	return nil, nil
}

// LookupQualified resolves table.column references; table may be empty for
// an unqualified lookup.
func (s *Schema) LookupQualified(table, name string) (*Table, *Column, error) {
	if table == "" {
		t, c := s.LookupColumn(name)
		if c == nil {
			return nil, nil, fmt.Errorf("unknown reference [%s]", name)
		}
		return t, c, nil
	}
	t := s.Table(table)
	if t == nil {
		return nil, nil, fmt.Errorf("unknown table [%s]", table)
	}
	c := t.LookupColumn(name)
	if c == nil {
		return nil, nil, fmt.Errorf("unknown reference [%s].[%s]", table, name)
	}
	return t, c, nil
}

// Calc returns the named calculated-field spec or nil.
func (s *Schema) Calc(name string) *CalcSpec {
	for i := range s.Calcs {
		c := &s.Calcs[i]
		if strings.EqualFold(c.Name, name) || strings.EqualFold(c.Caption, name) {
			return c
		}
	}
	return nil
}
