package parser

import "strings"

// Kind classifies how a builtin evaluates relative to the rows it sees.
type Kind int

const (
	// KindRow functions evaluate once per row.
	KindRow Kind = iota
	// KindAgg functions aggregate their argument over the current group.
	KindAgg
	// KindTableCalc functions operate over the rendered partition and have
	// no direct equivalent in most target dialects.
	KindTableCalc
)

// Result describes the result type of a builtin independent of its
// arguments, or ResultArg when the result type follows the argument.
type Result int

const (
	ResultArg Result = iota
	ResultNumber
	ResultInteger
	ResultString
	ResultBool
	ResultDate
	ResultDateTime
)

// Func describes one builtin of the Tableau calculation language.
// MaxArgs of -1 means variadic.
type Func struct {
	Name    string
	MinArgs int
	MaxArgs int
	Kind    Kind
	Result  Result
}

// funcs is the builtin catalog.  The parser rejects calls to names not
// listed here; the semantic pass uses Kind and Result for context and type
// annotation.
var funcs = map[string]*Func{
	// Aggregates.
	"SUM":        {"SUM", 1, 1, KindAgg, ResultArg},
	"AVG":        {"AVG", 1, 1, KindAgg, ResultNumber},
	"MIN":        {"MIN", 1, 2, KindAgg, ResultArg},
	"MAX":        {"MAX", 1, 2, KindAgg, ResultArg},
	"COUNT":      {"COUNT", 1, 1, KindAgg, ResultInteger},
	"COUNTD":     {"COUNTD", 1, 1, KindAgg, ResultInteger},
	"MEDIAN":     {"MEDIAN", 1, 1, KindAgg, ResultNumber},
	"STDEV":      {"STDEV", 1, 1, KindAgg, ResultNumber},
	"STDEVP":     {"STDEVP", 1, 1, KindAgg, ResultNumber},
	"VAR":        {"VAR", 1, 1, KindAgg, ResultNumber},
	"VARP":       {"VARP", 1, 1, KindAgg, ResultNumber},
	"ATTR":       {"ATTR", 1, 1, KindAgg, ResultArg},
	"PERCENTILE": {"PERCENTILE", 2, 2, KindAgg, ResultNumber},
	"CORR":       {"CORR", 2, 2, KindAgg, ResultNumber},
	"COVAR":      {"COVAR", 2, 2, KindAgg, ResultNumber},

	// Table calculations.
	"RUNNING_SUM":    {"RUNNING_SUM", 1, 1, KindTableCalc, ResultNumber},
	"RUNNING_AVG":    {"RUNNING_AVG", 1, 1, KindTableCalc, ResultNumber},
	"RUNNING_COUNT":  {"RUNNING_COUNT", 1, 1, KindTableCalc, ResultInteger},
	"RUNNING_MIN":    {"RUNNING_MIN", 1, 1, KindTableCalc, ResultArg},
	"RUNNING_MAX":    {"RUNNING_MAX", 1, 1, KindTableCalc, ResultArg},
	"WINDOW_SUM":     {"WINDOW_SUM", 1, 3, KindTableCalc, ResultNumber},
	"WINDOW_AVG":     {"WINDOW_AVG", 1, 3, KindTableCalc, ResultNumber},
	"WINDOW_MIN":     {"WINDOW_MIN", 1, 3, KindTableCalc, ResultArg},
	"WINDOW_MAX":     {"WINDOW_MAX", 1, 3, KindTableCalc, ResultArg},
	"WINDOW_MEDIAN":  {"WINDOW_MEDIAN", 1, 3, KindTableCalc, ResultNumber},
	"INDEX":          {"INDEX", 0, 0, KindTableCalc, ResultInteger},
	"FIRST":          {"FIRST", 0, 0, KindTableCalc, ResultInteger},
	"LAST":           {"LAST", 0, 0, KindTableCalc, ResultInteger},
	"SIZE":           {"SIZE", 0, 0, KindTableCalc, ResultInteger},
	"LOOKUP":         {"LOOKUP", 1, 2, KindTableCalc, ResultArg},
	"TOTAL":          {"TOTAL", 1, 1, KindTableCalc, ResultArg},
	"RANK":           {"RANK", 1, 2, KindTableCalc, ResultInteger},
	"PREVIOUS_VALUE": {"PREVIOUS_VALUE", 1, 1, KindTableCalc, ResultArg},

	// Date functions.
	"DATEADD":   {"DATEADD", 3, 3, KindRow, ResultDate},
	"DATEDIFF":  {"DATEDIFF", 3, 4, KindRow, ResultInteger},
	"DATENAME":  {"DATENAME", 2, 3, KindRow, ResultString},
	"DATEPART":  {"DATEPART", 2, 3, KindRow, ResultInteger},
	"DATETRUNC": {"DATETRUNC", 2, 3, KindRow, ResultDate},
	"TODAY":     {"TODAY", 0, 0, KindRow, ResultDate},
	"NOW":       {"NOW", 0, 0, KindRow, ResultDateTime},
	"YEAR":      {"YEAR", 1, 1, KindRow, ResultInteger},
	"MONTH":     {"MONTH", 1, 1, KindRow, ResultInteger},
	"DAY":       {"DAY", 1, 1, KindRow, ResultInteger},
	"MAKEDATE":  {"MAKEDATE", 3, 3, KindRow, ResultDate},
	"ISDATE":    {"ISDATE", 1, 1, KindRow, ResultBool},
	"DATE":      {"DATE", 1, 1, KindRow, ResultDate},
	"DATETIME":  {"DATETIME", 1, 1, KindRow, ResultDateTime},

	// String functions.
	"LEFT":       {"LEFT", 2, 2, KindRow, ResultString},
	"RIGHT":      {"RIGHT", 2, 2, KindRow, ResultString},
	"MID":        {"MID", 2, 3, KindRow, ResultString},
	"LEN":        {"LEN", 1, 1, KindRow, ResultInteger},
	"FIND":       {"FIND", 2, 3, KindRow, ResultInteger},
	"CONTAINS":   {"CONTAINS", 2, 2, KindRow, ResultBool},
	"STARTSWITH": {"STARTSWITH", 2, 2, KindRow, ResultBool},
	"ENDSWITH":   {"ENDSWITH", 2, 2, KindRow, ResultBool},
	"TRIM":       {"TRIM", 1, 1, KindRow, ResultString},
	"LTRIM":      {"LTRIM", 1, 1, KindRow, ResultString},
	"RTRIM":      {"RTRIM", 1, 1, KindRow, ResultString},
	"UPPER":      {"UPPER", 1, 1, KindRow, ResultString},
	"LOWER":      {"LOWER", 1, 1, KindRow, ResultString},
	"REPLACE":    {"REPLACE", 3, 3, KindRow, ResultString},
	"SPLIT":      {"SPLIT", 3, 3, KindRow, ResultString},
	"SPACE":      {"SPACE", 1, 1, KindRow, ResultString},
	"STR":        {"STR", 1, 1, KindRow, ResultString},

	// Logical functions.
	"IIF":    {"IIF", 3, 4, KindRow, ResultArg},
	"IFNULL": {"IFNULL", 2, 2, KindRow, ResultArg},
	"ISNULL": {"ISNULL", 1, 1, KindRow, ResultBool},
	"ZN":     {"ZN", 1, 1, KindRow, ResultNumber},

	// Math functions.
	"ABS":     {"ABS", 1, 1, KindRow, ResultArg},
	"ROUND":   {"ROUND", 1, 2, KindRow, ResultNumber},
	"CEILING": {"CEILING", 1, 1, KindRow, ResultInteger},
	"FLOOR":   {"FLOOR", 1, 1, KindRow, ResultInteger},
	"SQRT":    {"SQRT", 1, 1, KindRow, ResultNumber},
	"LOG":     {"LOG", 1, 2, KindRow, ResultNumber},
	"LN":      {"LN", 1, 1, KindRow, ResultNumber},
	"EXP":     {"EXP", 1, 1, KindRow, ResultNumber},
	"POWER":   {"POWER", 2, 2, KindRow, ResultNumber},
	"SIGN":    {"SIGN", 1, 1, KindRow, ResultInteger},
	"DIV":     {"DIV", 2, 2, KindRow, ResultInteger},
	"INT":     {"INT", 1, 1, KindRow, ResultInteger},
	"FLOAT":   {"FLOAT", 1, 1, KindRow, ResultNumber},
	"PI":      {"PI", 0, 0, KindRow, ResultNumber},
	"SIN":     {"SIN", 1, 1, KindRow, ResultNumber},
	"COS":     {"COS", 1, 1, KindRow, ResultNumber},
	"TAN":     {"TAN", 1, 1, KindRow, ResultNumber},
	"ASIN":    {"ASIN", 1, 1, KindRow, ResultNumber},
	"ACOS":    {"ACOS", 1, 1, KindRow, ResultNumber},
	"ATAN":    {"ATAN", 1, 1, KindRow, ResultNumber},
	"ATAN2":   {"ATAN2", 2, 2, KindRow, ResultNumber},
}

// LookupFunc returns the catalog entry for name, or nil if the name is not
// a builtin.  Lookup is case-insensitive like the source language.
func LookupFunc(name string) *Func {
	return funcs[strings.ToUpper(name)]
}

// FuncNames returns every builtin name in the catalog, unordered.
func FuncNames() []string {
	names := make([]string, 0, len(funcs))
	for name := range funcs {
		names = append(names, name)
	}
	return names
}
