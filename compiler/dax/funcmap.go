// Package dax renders resolved calculation trees as DAX expression text and
// classifies each as a measure or a calculated column.
package dax

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rewrite selects the emission strategy for one source function.  Most
// functions rename cleanly; the rest need argument reordering or a
// structural rewrite before the rename is meaningful.
type Rewrite int

const (
	// RewriteNone renames the function and passes arguments through.
	RewriteNone Rewrite = iota
	// RewriteDateAdd reorders DATEADD(part, n, date) to DATEADD(date, n, PART).
	RewriteDateAdd
	// RewriteDateDiff reorders DATEDIFF(part, a, b) to DATEDIFF(a, b, PART).
	RewriteDateDiff
	// RewriteDatePart maps DATEPART('year', d) onto the dedicated
	// extractor YEAR(d) and so on per part.
	RewriteDatePart
	// RewriteDateName maps DATENAME('month', d) onto FORMAT(d, "MMMM").
	RewriteDateName
	// RewriteDateTrunc maps DATETRUNC('month', d) onto STARTOFMONTH(d)
	// and the other period starts.
	RewriteDateTrunc
	// RewriteFind swaps FIND(string, substring) argument order.
	RewriteFind
	// RewriteStartsWith expands to a LEFT comparison.
	RewriteStartsWith
	// RewriteEndsWith expands to a RIGHT comparison.
	RewriteEndsWith
	// RewriteSplit expands to PATHITEM over a delimiter substitution.
	RewriteSplit
	// RewriteSpace expands SPACE(n) to REPT(" ", n).
	RewriteSpace
	// RewriteStr expands STR(x) to FORMAT(x, "General Number").
	RewriteStr
	// RewriteZN expands ZN(x) to COALESCE(x, 0).
	RewriteZN
	// RewriteIsDate expands to NOT(ISERROR(DATEVALUE(x))).
	RewriteIsDate
	// RewriteCeiling expands CEILING(x) to ROUNDUP(x, 0).
	RewriteCeiling
	// RewriteFloor expands FLOOR(x) to ROUNDDOWN(x, 0).
	RewriteFloor
	// RewriteFloat multiplies by 1.0 to force a float result.
	RewriteFloat
	// RewriteAtan2 expands ATAN2(y, x) to ATAN(DIVIDE(y, x)).
	RewriteAtan2
	// RewriteNoEquivalent emits a BLANK() placeholder and records an
	// unsupported-feature note; the field is never dropped.
	RewriteNoEquivalent
)

// A Mapping translates one source function.
type Mapping struct {
	Target  string
	Rewrite Rewrite
}

// A FuncMap is the source-to-target function table the emitter consults.
// It is configuration: construct one, hand it to NewEmitter, and treat it
// as immutable from then on.
type FuncMap map[string]Mapping

// Default returns the built-in mapping table.
func Default() FuncMap {
	out := make(FuncMap, len(defaultMappings))
	for name, m := range defaultMappings {
		out[name] = m
	}
	return out
}

// Load reads target-name overrides from a YAML file of source-to-target
// name pairs and applies them over the defaults.  Overriding a name keeps
// its rewrite strategy.
func Load(path string) (FuncMap, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	overrides := make(map[string]string)
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	fm := Default()
	for name, target := range overrides {
		m, ok := fm[name]
		if !ok {
			return nil, fmt.Errorf("%s: override for unknown function %q", path, name)
		}
		m.Target = target
		fm[name] = m
	}
	return fm, nil
}

var defaultMappings = FuncMap{
	// Aggregates.
	"SUM":        {Target: "SUM"},
	"AVG":        {Target: "AVERAGE"},
	"MIN":        {Target: "MIN"},
	"MAX":        {Target: "MAX"},
	"COUNT":      {Target: "COUNTA"},
	"COUNTD":     {Target: "DISTINCTCOUNT"},
	"MEDIAN":     {Target: "MEDIAN"},
	"STDEV":      {Target: "STDEV.S"},
	"STDEVP":     {Target: "STDEV.P"},
	"VAR":        {Target: "VAR.S"},
	"VARP":       {Target: "VAR.P"},
	"ATTR":       {Target: "SELECTEDVALUE"},
	"PERCENTILE": {Target: "PERCENTILE.INC"},
	"CORR":       {Rewrite: RewriteNoEquivalent},
	"COVAR":      {Rewrite: RewriteNoEquivalent},

	// Date functions.
	"DATEADD":   {Target: "DATEADD", Rewrite: RewriteDateAdd},
	"DATEDIFF":  {Target: "DATEDIFF", Rewrite: RewriteDateDiff},
	"DATENAME":  {Target: "FORMAT", Rewrite: RewriteDateName},
	"DATEPART":  {Rewrite: RewriteDatePart},
	"DATETRUNC": {Rewrite: RewriteDateTrunc},
	"TODAY":     {Target: "TODAY"},
	"NOW":       {Target: "NOW"},
	"YEAR":      {Target: "YEAR"},
	"MONTH":     {Target: "MONTH"},
	"DAY":       {Target: "DAY"},
	"MAKEDATE":  {Target: "DATE"},
	"ISDATE":    {Rewrite: RewriteIsDate},
	"DATE":      {Target: "DATEVALUE"},
	"DATETIME":  {Target: "DATEVALUE"},

	// String functions.
	"LEFT":       {Target: "LEFT"},
	"RIGHT":      {Target: "RIGHT"},
	"MID":        {Target: "MID"},
	"LEN":        {Target: "LEN"},
	"FIND":       {Target: "FIND", Rewrite: RewriteFind},
	"CONTAINS":   {Target: "CONTAINSSTRING"},
	"STARTSWITH": {Rewrite: RewriteStartsWith},
	"ENDSWITH":   {Rewrite: RewriteEndsWith},
	"TRIM":       {Target: "TRIM"},
	"LTRIM":      {Target: "TRIM"},
	"RTRIM":      {Target: "TRIM"},
	"UPPER":      {Target: "UPPER"},
	"LOWER":      {Target: "LOWER"},
	"REPLACE":    {Target: "SUBSTITUTE"},
	"SPLIT":      {Rewrite: RewriteSplit},
	"SPACE":      {Rewrite: RewriteSpace},
	"STR":        {Rewrite: RewriteStr},

	// Logical functions.
	"IIF":    {Target: "IF"},
	"IFNULL": {Target: "COALESCE"},
	"ISNULL": {Target: "ISBLANK"},
	"ZN":     {Rewrite: RewriteZN},

	// Math functions.
	"ABS":     {Target: "ABS"},
	"ROUND":   {Target: "ROUND"},
	"CEILING": {Rewrite: RewriteCeiling},
	"FLOOR":   {Rewrite: RewriteFloor},
	"SQRT":    {Target: "SQRT"},
	"LOG":     {Target: "LOG"},
	"LN":      {Target: "LN"},
	"EXP":     {Target: "EXP"},
	"POWER":   {Target: "POWER"},
	"SIGN":    {Target: "SIGN"},
	"DIV":     {Target: "QUOTIENT"},
	"INT":     {Target: "INT"},
	"FLOAT":   {Rewrite: RewriteFloat},
	"PI":      {Target: "PI"},
	"SIN":     {Target: "SIN"},
	"COS":     {Target: "COS"},
	"TAN":     {Target: "TAN"},
	"ASIN":    {Target: "ASIN"},
	"ACOS":    {Target: "ACOS"},
	"ATAN":    {Target: "ATAN"},
	"ATAN2":   {Rewrite: RewriteAtan2},
}
