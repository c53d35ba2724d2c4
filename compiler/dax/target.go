package dax

import (
	"fmt"

	"github.com/tabxdata/tabx/schema"
)

// Class says how a translated calculation lands in the tabular model.
type Class string

const (
	// ClassMeasure is evaluated in aggregate context at query time.
	ClassMeasure Class = "Measure"
	// ClassColumn is evaluated once per row and materialized.
	ClassColumn Class = "CalculatedColumn"
)

// A Target is one translated calculation.  A non-empty Unsupported slice
// flags a best-effort translation; each entry is a human-readable note on
// what was lost.
type Target struct {
	Name         string   `json:"name"`
	Table        string   `json:"table"`
	Expression   string   `json:"expression"`
	Class        Class    `json:"class"`
	DataType     string   `json:"dataType"`
	FormatString string   `json:"formatString,omitempty"`
	Unsupported  []string `json:"unsupported,omitempty"`
}

// DataTypeName maps a schema type to its tabular-model data type.
func DataTypeName(t schema.Type) string {
	switch t {
	case schema.TypeInteger:
		return "Int64"
	case schema.TypeNumber:
		return "Double"
	case schema.TypeBool:
		return "Boolean"
	case schema.TypeDate, schema.TypeDateTime:
		return "DateTime"
	}
	return "String"
}

// FormatStringFor returns the default format string for a type, empty when
// the target applies its own default.
func FormatStringFor(t schema.Type) string {
	switch t {
	case schema.TypeInteger:
		return "#,0"
	case schema.TypeNumber:
		return "#,0.00"
	case schema.TypeDate:
		return "MM/dd/yyyy"
	case schema.TypeDateTime:
		return "MM/dd/yyyy hh:mm:ss"
	}
	return ""
}

// ReviewMeasure builds the placeholder measure for a field whose
// translation failed.  The original formula and the error ride along in a
// comment so the workbook owner can translate by hand; the measure itself
// evaluates to zero.
func ReviewMeasure(spec schema.CalcSpec, table string, err error) *Target {
	name := spec.Caption
	if name == "" {
		name = spec.Name
	}
	return &Target{
		Name:  name + "_REVIEW",
		Table: table,
		Expression: fmt.Sprintf("/* Translation failed. Original formula: %s */\n/* Error: %s */\n0",
			spec.Formula, err),
		Class:       ClassMeasure,
		DataType:    "Double",
		Unsupported: []string{err.Error()},
	}
}
