// Package model maps source schemas onto the target tabular model: typed
// tables, relationships with a single active path between any two tables,
// and the translated measures and calculated columns.
package model

import (
	"fmt"
	"strings"

	"github.com/tabxdata/tabx/compiler/dax"
	"github.com/tabxdata/tabx/schema"
)

type Cardinality string

const (
	OneToOne   Cardinality = "OneToOne"
	OneToMany  Cardinality = "OneToMany"
	ManyToOne  Cardinality = "ManyToOne"
	ManyToMany Cardinality = "ManyToMany"
)

type CrossFilter string

const (
	// FilterSingle propagates filters from the "one" side to the "many"
	// side only.
	FilterSingle CrossFilter = "OneDirection"
	// FilterBoth propagates filters both ways; needed when a blend must
	// reconcile granularity across sources.
	FilterBoth CrossFilter = "BothDirections"
)

type Relationship struct {
	FromTable   string      `json:"fromTable"`
	FromColumn  string      `json:"fromColumn"`
	ToTable     string      `json:"toTable"`
	ToColumn    string      `json:"toColumn"`
	Cardinality Cardinality `json:"cardinality"`
	CrossFilter CrossFilter `json:"crossFilteringBehavior"`
	Active      bool        `json:"isActive"`
}

func (r *Relationship) String() string {
	return fmt.Sprintf("%s[%s] -> %s[%s]", r.FromTable, r.FromColumn, r.ToTable, r.ToColumn)
}

type Column struct {
	Name         string `json:"name"`
	DataType     string `json:"dataType"`
	SourceColumn string `json:"sourceColumn"`
	FormatString string `json:"formatString,omitempty"`
	Hidden       bool   `json:"isHidden"`
}

type Table struct {
	Name    string            `json:"name"`
	Columns []Column          `json:"columns"`
	Hidden  bool              `json:"isHidden"`
	Source  schema.SourceInfo `json:"source"`
}

// A Model is the full tabular model handed to the assembler.
type Model struct {
	Tables            []Table         `json:"tables"`
	Relationships     []*Relationship `json:"relationships"`
	Measures          []*dax.Target   `json:"measures"`
	CalculatedColumns []*dax.Target   `json:"calculatedColumns"`
}

// An IntegrityError reports a relationship shape the target model cannot
// express.  It is fatal to the named tables' relationships only; the rest
// of the run proceeds.
type IntegrityError struct {
	Tables []string `json:"tables"`
	Msg    string   `json:"error"`
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("model integrity: %s (tables %s)", e.Msg, strings.Join(e.Tables, ", "))
}
