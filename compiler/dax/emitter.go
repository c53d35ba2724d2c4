package dax

import (
	"fmt"
	"strings"

	"github.com/tabxdata/tabx/compiler/ast"
	"github.com/tabxdata/tabx/compiler/semantic"
	"github.com/tabxdata/tabx/schema"
)

// An Emitter renders resolved calculations as DAX.  It holds only
// immutable state, so one Emitter serves concurrent emissions.
type Emitter struct {
	fm        FuncMap
	sch       *schema.Schema
	upstream  semantic.Upstream
	baseTable string
}

// NewEmitter builds an emitter over a schema and the upstream calculations
// resolved so far.  The function map is copied, so later mutation of fm
// cannot affect emission.
func NewEmitter(fm FuncMap, sch *schema.Schema, upstream semantic.Upstream) *Emitter {
	own := make(FuncMap, len(fm))
	for name, m := range fm {
		own[name] = m
	}
	base := sch.Name
	if len(sch.Tables) > 0 {
		base = sch.Tables[0].Name
	}
	return &Emitter{fm: own, sch: sch, upstream: upstream, baseTable: base}
}

// Emit renders one resolved calculation.  Emission never fails: source
// constructs with no target equivalent degrade to the closest
// approximation and are flagged on the Target.
func (em *Emitter) Emit(res *semantic.Resolved) *Target {
	w := &writer{em: em, res: res}
	w.expr(res.AST, !res.Context().Aggregated(), 0)
	class := ClassColumn
	if res.Context().Aggregated() {
		class = ClassMeasure
	}
	typ := res.Type()
	if typ == schema.TypeUnknown {
		typ = res.Declared
	}
	name := res.Caption
	if name == "" {
		name = res.Name
	}
	return &Target{
		Name:         name,
		Table:        em.baseTable,
		Expression:   w.String(),
		Class:        class,
		DataType:     DataTypeName(typ),
		FormatString: FormatStringFor(typ),
		Unsupported:  w.notes,
	}
}

// DAX operator precedence, loosest first, for minimal parenthesization.
var daxPrec = map[string]int{
	"||": 1,
	"&&": 2,
	"=":  4,
	"<>": 4,
	"<":  4,
	"<=": 4,
	">":  4,
	">=": 4,
	"&":  5,
	"+":  5,
	"-":  5,
	"*":  6,
	"/":  6,
	"^":  7,
}

type writer struct {
	strings.Builder
	em    *Emitter
	res   *semantic.Resolved
	notes []string
}

func (w *writer) write(format string, args ...interface{}) {
	if len(args) == 0 {
		w.WriteString(format)
		return
	}
	fmt.Fprintf(w, format, args...)
}

func (w *writer) note(format string, args ...interface{}) {
	w.notes = append(w.notes, fmt.Sprintf(format, args...))
}

// expr emits e.  row says whether the ambient evaluation context at this
// point is row context, which decides where explicit context transitions
// are inserted.  ctx is the precedence of the enclosing operator.
func (w *writer) expr(e ast.Expr, row bool, ctx int) {
	switch e := e.(type) {
	case *ast.Literal:
		w.literal(e)
	case *ast.FieldRef:
		w.fieldRef(e, row)
	case *ast.ParamRef:
		// What-if parameters surface as a generated "<name> Value"
		// measure on the target side.
		w.write("[%s Value]", e.Name)
	case *ast.UnaryExpr:
		if e.Op == "NOT" {
			w.write("NOT(")
			w.expr(e.Operand, row, 0)
			w.write(")")
			return
		}
		w.write(e.Op)
		w.expr(e.Operand, row, daxPrec["^"]+1)
	case *ast.BinaryExpr:
		w.binary(e, row, ctx)
	case *ast.Call:
		w.call(e, row)
	case *ast.If:
		w.ifExpr(e, row)
	case *ast.Case:
		w.caseExpr(e, row)
	case *ast.LOD:
		w.lod(e)
	default:
		w.note("internal: unknown expression %T", e)
		w.write("BLANK()")
	}
}

func (w *writer) literal(e *ast.Literal) {
	switch e.Type {
	case ast.LiteralString:
		w.write(quote(e.Text))
	case ast.LiteralDate:
		w.write("DATEVALUE(%s)", quote(e.Text))
	case ast.LiteralBool:
		w.write("%s()", strings.ToUpper(e.Text))
	case ast.LiteralNull:
		w.write("BLANK()")
	default:
		// Numeric text passes through verbatim, preserving precision.
		w.write(e.Text)
	}
}

// quote converts a source string or date literal to a DAX double-quoted
// string, doubling embedded quotes.
func quote(text string) string {
	inner := text
	if len(inner) >= 2 {
		switch inner[0] {
		case '\'', '"', '#':
			inner = inner[1 : len(inner)-1]
		}
	}
	inner = strings.ReplaceAll(inner, `\'`, `'`)
	inner = strings.ReplaceAll(inner, `\"`, `"`)
	return `"` + strings.ReplaceAll(inner, `"`, `""`) + `"`
}

func (w *writer) fieldRef(e *ast.FieldRef, row bool) {
	if up := w.em.upstream.Lookup(e.Name); up != nil {
		name := up.Caption
		if name == "" {
			name = up.Name
		}
		if !up.Root().Context.Aggregated() {
			w.write("'%s'[%s]", w.em.baseTable, name)
			return
		}
		// A measure referenced in row context needs an explicit context
		// transition so it aggregates over the current row's filters.
		if row {
			w.write("CALCULATE([%s])", name)
		} else {
			w.write("[%s]", name)
		}
		return
	}
	t, col, err := w.em.sch.LookupQualified(e.Table, e.Name)
	if err != nil {
		// Resolution guarantees this cannot happen; degrade rather
		// than panic if an unresolved tree slips through.
		w.note("unresolved reference [%s]", e.Name)
		w.write("BLANK()")
		return
	}
	w.write("'%s'[%s]", t.Name, col.DisplayName())
}

func (w *writer) binary(e *ast.BinaryExpr, row bool, ctx int) {
	if e.Op == "%" {
		w.write("MOD(")
		w.expr(e.LHS, row, 0)
		w.write(", ")
		w.expr(e.RHS, row, 0)
		w.write(")")
		return
	}
	op := daxOp(e.Op)
	if op == "+" && w.stringOperands(e) {
		op = "&"
	}
	p := daxPrec[op]
	if p < ctx {
		w.write("(")
	}
	lhsCtx, rhsCtx := p, p+1
	if op == "^" {
		lhsCtx, rhsCtx = p+1, p
	}
	w.expr(e.LHS, row, lhsCtx)
	w.write(" %s ", op)
	w.expr(e.RHS, row, rhsCtx)
	if p < ctx {
		w.write(")")
	}
}

func (w *writer) stringOperands(e *ast.BinaryExpr) bool {
	lhs, rhs := w.res.Note(e.LHS), w.res.Note(e.RHS)
	if lhs == nil || rhs == nil {
		return false
	}
	return lhs.Type == schema.TypeString || rhs.Type == schema.TypeString
}

func daxOp(op string) string {
	switch op {
	case "AND":
		return "&&"
	case "OR":
		return "||"
	case "=", "==":
		return "="
	case "!=", "<>":
		return "<>"
	}
	return op
}

func (w *writer) args(e *ast.Call, row bool) {
	for i, arg := range e.Args {
		if i > 0 {
			w.write(", ")
		}
		w.expr(arg, row, 0)
	}
}

func (w *writer) call(e *ast.Call, row bool) {
	if note := w.res.Note(e); note != nil && note.TableCalc {
		w.tableCalc(e)
		return
	}
	m, ok := w.em.fm[e.Name]
	if !ok {
		w.note("no mapping for function %s(); emitted unchanged", e.Name)
		w.write("%s(", e.Name)
		w.args(e, row)
		w.write(")")
		return
	}
	switch m.Rewrite {
	case RewriteNone:
		// Aggregate arguments evaluate per row inside the aggregation.
		argRow := row
		if f := w.res.Note(e); f != nil && f.Context.Kind == semantic.ContextAggregate && !f.TableCalc {
			argRow = true
		}
		if e.Name == "IIF" && len(e.Args) == 4 {
			w.note("IIF() fourth argument (unknown result) has no DAX counterpart and was dropped")
			e = &ast.Call{Name: e.Name, Args: e.Args[:3], RParen: e.RParen}
		}
		w.write("%s(", m.Target)
		w.args(e, argRow)
		// Source ROUND defaults the digit count; DAX ROUND requires it.
		if e.Name == "ROUND" && len(e.Args) == 1 {
			w.write(", 0")
		}
		w.write(")")
	case RewriteDateAdd:
		w.write("DATEADD(")
		w.expr(e.Args[2], row, 0)
		w.write(", ")
		w.expr(e.Args[1], row, 0)
		w.write(", %s)", datePartKeyword(w, e.Args[0]))
	case RewriteDateDiff:
		w.write("DATEDIFF(")
		w.expr(e.Args[1], row, 0)
		w.write(", ")
		w.expr(e.Args[2], row, 0)
		w.write(", %s)", datePartKeyword(w, e.Args[0]))
	case RewriteDatePart:
		w.datePart(e, row)
	case RewriteDateName:
		w.dateName(e, row)
	case RewriteDateTrunc:
		w.dateTrunc(e, row)
	case RewriteFind:
		w.write("FIND(")
		w.expr(e.Args[1], row, 0)
		w.write(", ")
		w.expr(e.Args[0], row, 0)
		if len(e.Args) == 3 {
			w.write(", ")
			w.expr(e.Args[2], row, 0)
		}
		w.write(")")
	case RewriteStartsWith:
		w.write("LEFT(")
		w.expr(e.Args[0], row, 0)
		w.write(", LEN(")
		w.expr(e.Args[1], row, 0)
		w.write(")) = ")
		w.expr(e.Args[1], row, daxPrec["="]+1)
	case RewriteEndsWith:
		w.write("RIGHT(")
		w.expr(e.Args[0], row, 0)
		w.write(", LEN(")
		w.expr(e.Args[1], row, 0)
		w.write(")) = ")
		w.expr(e.Args[1], row, daxPrec["="]+1)
	case RewriteSplit:
		w.write("PATHITEM(SUBSTITUTE(")
		w.expr(e.Args[0], row, 0)
		w.write(", ")
		w.expr(e.Args[1], row, 0)
		w.write(`, "|"), `)
		w.expr(e.Args[2], row, 0)
		w.write(")")
	case RewriteSpace:
		w.write(`REPT(" ", `)
		w.expr(e.Args[0], row, 0)
		w.write(")")
	case RewriteStr:
		w.write(`FORMAT(`)
		w.expr(e.Args[0], row, 0)
		w.write(`, "General Number")`)
	case RewriteZN:
		w.write("COALESCE(")
		w.expr(e.Args[0], row, 0)
		w.write(", 0)")
	case RewriteIsDate:
		w.write("NOT(ISERROR(DATEVALUE(")
		w.expr(e.Args[0], row, 0)
		w.write(")))")
	case RewriteCeiling:
		w.write("ROUNDUP(")
		w.expr(e.Args[0], row, 0)
		w.write(", 0)")
	case RewriteFloor:
		w.write("ROUNDDOWN(")
		w.expr(e.Args[0], row, 0)
		w.write(", 0)")
	case RewriteFloat:
		w.write("(")
		w.expr(e.Args[0], row, 0)
		w.write(" * 1.0)")
	case RewriteAtan2:
		w.write("ATAN(DIVIDE(")
		w.expr(e.Args[0], row, 0)
		w.write(", ")
		w.expr(e.Args[1], row, 0)
		w.write("))")
	case RewriteNoEquivalent:
		w.note("%s() has no DAX equivalent; emitted BLANK() placeholder", e.Name)
		w.write("BLANK()")
	}
}

// tableCalc approximates the table-scoped calculations.  Running and
// window forms re-aggregate over the current selection; positional forms
// have no counterpart at all.  Every path records exactly one note.
func (w *writer) tableCalc(e *ast.Call) {
	switch e.Name {
	case "RUNNING_SUM", "RUNNING_AVG", "RUNNING_COUNT", "RUNNING_MIN", "RUNNING_MAX",
		"WINDOW_SUM", "WINDOW_AVG", "WINDOW_MIN", "WINDOW_MAX", "WINDOW_MEDIAN", "TOTAL":
		w.note("%s() approximated with CALCULATE over ALLSELECTED(); partition ordering is not preserved", e.Name)
		w.write("CALCULATE(")
		w.aggArg(e)
		w.write(", ALLSELECTED())")
	case "RANK":
		w.note("RANK() approximated with RANKX over ALLSELECTED(); partition and ordering options are not preserved")
		w.write("RANKX(ALLSELECTED('%s'), ", w.em.baseTable)
		w.aggArg(e)
		w.write(")")
	default:
		w.note("%s() is a table calculation with no DAX equivalent; emitted BLANK() placeholder", e.Name)
		w.write("BLANK()")
	}
}

// aggArg emits a table calculation's argument, wrapping it in the matching
// plain aggregate when the source passed a bare row expression.
func (w *writer) aggArg(e *ast.Call) {
	if len(e.Args) == 0 {
		w.write("BLANK()")
		return
	}
	arg := e.Args[0]
	if n := w.res.Note(arg); n != nil && !n.Context.Aggregated() {
		w.write("%s(", implicitAgg(e.Name))
		w.expr(arg, true, 0)
		w.write(")")
		return
	}
	w.expr(arg, false, 0)
}

func implicitAgg(name string) string {
	switch {
	case strings.HasSuffix(name, "_AVG"):
		return "AVERAGE"
	case strings.HasSuffix(name, "_COUNT"):
		return "COUNTA"
	case strings.HasSuffix(name, "_MIN"):
		return "MIN"
	case strings.HasSuffix(name, "_MAX"):
		return "MAX"
	}
	return "SUM"
}

// datePartKeyword extracts the interval keyword from a date-part string
// literal, e.g. 'month' becomes MONTH.
func datePartKeyword(w *writer, arg ast.Expr) string {
	part, ok := literalString(arg)
	if !ok {
		w.note("date part must be a literal for translation; assumed DAY")
		return "DAY"
	}
	return strings.ToUpper(part)
}

var datePartFuncs = map[string]string{
	"year":    "YEAR",
	"quarter": "QUARTER",
	"month":   "MONTH",
	"week":    "WEEKNUM",
	"day":     "DAY",
	"hour":    "HOUR",
	"minute":  "MINUTE",
	"second":  "SECOND",
}

func (w *writer) datePart(e *ast.Call, row bool) {
	part, ok := literalString(e.Args[0])
	fn := datePartFuncs[strings.ToLower(part)]
	if !ok || fn == "" {
		w.note("DATEPART(%q) has no DAX equivalent; emitted BLANK() placeholder", part)
		w.write("BLANK()")
		return
	}
	w.write("%s(", fn)
	w.expr(e.Args[1], row, 0)
	w.write(")")
}

var dateNameFormats = map[string]string{
	"year":    "YYYY",
	"quarter": "Q",
	"month":   "MMMM",
	"week":    "WW",
	"day":     "DD",
	"weekday": "dddd",
	"hour":    "hh",
	"minute":  "mm",
	"second":  "ss",
}

func (w *writer) dateName(e *ast.Call, row bool) {
	part, _ := literalString(e.Args[0])
	format := dateNameFormats[strings.ToLower(part)]
	if format == "" {
		w.note("DATENAME(%q) has no direct format; used long date", part)
		format = "DDDD"
	}
	w.write("FORMAT(")
	w.expr(e.Args[1], row, 0)
	w.write(`, "%s")`, format)
}

var dateTruncFuncs = map[string]string{
	"year":    "STARTOFYEAR",
	"quarter": "STARTOFQUARTER",
	"month":   "STARTOFMONTH",
}

func (w *writer) dateTrunc(e *ast.Call, row bool) {
	part, _ := literalString(e.Args[0])
	lower := strings.ToLower(part)
	if fn := dateTruncFuncs[lower]; fn != "" {
		w.write("%s(", fn)
		w.expr(e.Args[1], row, 0)
		w.write(")")
		return
	}
	if lower == "day" {
		w.write("INT(")
		w.expr(e.Args[1], row, 0)
		w.write(")")
		return
	}
	w.note("DATETRUNC(%q) has no DAX equivalent; date passed through untruncated", part)
	w.expr(e.Args[1], row, 0)
}

func literalString(e ast.Expr) (string, bool) {
	lit, ok := e.(*ast.Literal)
	if !ok || lit.Type != ast.LiteralString {
		return "", false
	}
	text := lit.Text
	if len(text) >= 2 {
		text = text[1 : len(text)-1]
	}
	return text, true
}

func (w *writer) ifExpr(e *ast.If, row bool) {
	for i, b := range e.Branches {
		if i > 0 {
			w.write(", ")
		}
		w.write("IF(")
		w.expr(b.Cond, row, 0)
		w.write(", ")
		w.expr(b.Then, row, 0)
	}
	if e.Else != nil {
		w.write(", ")
		w.expr(e.Else, row, 0)
	} else {
		w.write(", BLANK()")
	}
	w.write(strings.Repeat(")", len(e.Branches)))
}

func (w *writer) caseExpr(e *ast.Case, row bool) {
	w.write("SWITCH(")
	if e.Input != nil {
		w.expr(e.Input, row, 0)
	} else {
		w.write("TRUE()")
	}
	for _, arm := range e.Whens {
		w.write(", ")
		w.expr(arm.Cond, row, 0)
		w.write(", ")
		w.expr(arm.Then, row, 0)
	}
	if e.Else != nil {
		w.write(", ")
		w.expr(e.Else, row, 0)
	}
	w.write(")")
}

// lod emits the explicit re-context operation for a level-of-detail
// expression: FIXED restricts filters to exactly the declared scope,
// EXCLUDE removes the declared dimensions, INCLUDE has no faithful
// counterpart and degrades.
func (w *writer) lod(e *ast.LOD) {
	switch e.Kind {
	case ast.LODFixed:
		w.write("CALCULATE(")
		w.expr(e.Expr, false, 0)
		if len(e.Dims) == 0 {
			w.write(", REMOVEFILTERS())")
			return
		}
		table := w.dimTable(e.Dims[0])
		w.write(", ALLEXCEPT('%s'", table)
		for _, dim := range e.Dims {
			w.write(", ")
			w.dimRef(dim)
		}
		w.write("))")
	case ast.LODExclude:
		w.write("CALCULATE(")
		w.expr(e.Expr, false, 0)
		w.write(", REMOVEFILTERS(")
		for i, dim := range e.Dims {
			if i > 0 {
				w.write(", ")
			}
			w.dimRef(dim)
		}
		w.write("))")
	case ast.LODInclude:
		w.note("INCLUDE level of detail cannot extend the ambient grouping in DAX; emitted plain CALCULATE")
		w.write("CALCULATE(")
		w.expr(e.Expr, false, 0)
		w.write(")")
	}
}

func (w *writer) dimTable(dim *ast.FieldRef) string {
	if t, _, err := w.em.sch.LookupQualified(dim.Table, dim.Name); err == nil {
		return t.Name
	}
	return w.em.baseTable
}

func (w *writer) dimRef(dim *ast.FieldRef) {
	if t, col, err := w.em.sch.LookupQualified(dim.Table, dim.Name); err == nil {
		w.write("'%s'[%s]", t.Name, col.DisplayName())
		return
	}
	w.write("'%s'[%s]", w.em.baseTable, dim.Name)
}
