// Package semantic orders calculated fields by reference dependency and
// annotates their syntax trees with result types and evaluation contexts.
package semantic

import (
	"fmt"
	"strings"

	"github.com/araddon/dateparse"

	"github.com/tabxdata/tabx/compiler/ast"
	"github.com/tabxdata/tabx/compiler/parser"
	"github.com/tabxdata/tabx/schema"
)

// ContextKind is the evaluation context of an expression node.
type ContextKind int

const (
	// ContextRow expressions evaluate once per row.
	ContextRow ContextKind = iota
	// ContextAggregate expressions evaluate over the ambient group.
	ContextAggregate
	// ContextLOD expressions aggregate at an explicitly declared
	// dimension scope, independent of the ambient group.
	ContextLOD
)

func (k ContextKind) String() string {
	switch k {
	case ContextAggregate:
		return "AGGREGATE"
	case ContextLOD:
		return "LOD"
	}
	return "ROW"
}

// EvalContext pairs a context kind with the LOD dimension scope, which is
// set only for ContextLOD.
type EvalContext struct {
	Kind  ContextKind
	Scope []string
}

// Aggregated reports whether the context is AGGREGATE or LOD, the two
// contexts that classify a calculation as a measure.
func (c EvalContext) Aggregated() bool {
	return c.Kind != ContextRow
}

// A Note is the per-node annotation produced by resolution.
type Note struct {
	Type    schema.Type
	Context EvalContext
	// Deps is the set of field names reachable from this node, in
	// first-seen order.
	Deps []string
	// TableCalc marks calls to functions that operate over the rendered
	// partition; the emitter degrades these with a warning.
	TableCalc bool
}

// Constant reports whether the node depends on no fields.  Constants
// combine freely with aggregate nodes under plain operators.
func (n *Note) Constant() bool { return len(n.Deps) == 0 }

// A Resolved is a calculation's syntax tree plus its annotations.  Later
// calculations reference earlier ones through their Resolved values.
type Resolved struct {
	Name     string
	Caption  string
	Declared schema.Type
	AST      ast.Expr
	Notes    map[ast.Expr]*Note
}

// Note returns the annotation of e, which must be a node of r.AST.
func (r *Resolved) Note(e ast.Expr) *Note { return r.Notes[e] }

// Root returns the annotation of the root node.
func (r *Resolved) Root() *Note { return r.Notes[r.AST] }

// Type returns the result type of the whole calculation.
func (r *Resolved) Type() schema.Type { return r.Root().Type }

// Context returns the evaluation context of the whole calculation.
func (r *Resolved) Context() EvalContext { return r.Root().Context }

// Upstream is the set of already-resolved calculations available to a
// resolution pass, keyed case-insensitively by name and caption.
type Upstream map[string]*Resolved

// Add indexes r by name and caption.
func (u Upstream) Add(r *Resolved) {
	u[strings.ToLower(r.Name)] = r
	if r.Caption != "" {
		u[strings.ToLower(r.Caption)] = r
	}
}

// Lookup finds an upstream calculation by name or caption.
func (u Upstream) Lookup(name string) *Resolved {
	return u[strings.ToLower(name)]
}

// Resolve annotates the syntax tree of the named calculation bottom-up
// against the schema and the upstream calculations.  Any violation returns
// a *Error and no Resolved.
func Resolve(spec schema.CalcSpec, e ast.Expr, sch *schema.Schema, upstream Upstream) (*Resolved, error) {
	r := &resolver{
		field:    spec.Name,
		sch:      sch,
		upstream: upstream,
		notes:    make(map[ast.Expr]*Note),
	}
	if _, err := r.resolve(e); err != nil {
		return nil, err
	}
	return &Resolved{
		Name:     spec.Name,
		Caption:  spec.Caption,
		Declared: spec.Declared,
		AST:      e,
		Notes:    r.notes,
	}, nil
}

type resolver struct {
	field    string
	sch      *schema.Schema
	upstream Upstream
	notes    map[ast.Expr]*Note
}

func (r *resolver) error(n ast.Node, format string, args ...interface{}) *Error {
	return &Error{
		Field: r.field,
		Msg:   fmt.Sprintf(format, args...),
		Pos:   n.Pos(),
		End:   n.End(),
	}
}

func (r *resolver) note(e ast.Expr, n *Note) (*Note, error) {
	r.notes[e] = n
	return n, nil
}

func (r *resolver) resolve(e ast.Expr) (*Note, error) {
	switch e := e.(type) {
	case *ast.Literal:
		return r.literal(e)
	case *ast.FieldRef:
		return r.fieldRef(e)
	case *ast.ParamRef:
		// Parameters are scalar inputs: row context, type unknown until
		// bound at refresh time.
		return r.note(e, &Note{Type: schema.TypeUnknown})
	case *ast.UnaryExpr:
		operand, err := r.resolve(e.Operand)
		if err != nil {
			return nil, err
		}
		typ := operand.Type
		if e.Op == "NOT" {
			typ = schema.TypeBool
		}
		return r.note(e, &Note{Type: typ, Context: operand.Context, Deps: operand.Deps})
	case *ast.BinaryExpr:
		return r.binary(e)
	case *ast.Call:
		return r.call(e)
	case *ast.If:
		return r.conditional(e, e.Branches, e.Else)
	case *ast.Case:
		return r.caseExpr(e)
	case *ast.LOD:
		return r.lod(e)
	}
	return nil, r.error(e, "invalid expression type %T", e)
}

func (r *resolver) literal(e *ast.Literal) (*Note, error) {
	var typ schema.Type
	switch e.Type {
	case ast.LiteralNumber:
		typ = schema.TypeNumber
	case ast.LiteralInteger:
		typ = schema.TypeInteger
	case ast.LiteralString:
		typ = schema.TypeString
	case ast.LiteralBool:
		typ = schema.TypeBool
	case ast.LiteralDate:
		text := strings.Trim(e.Text, "#")
		if _, err := dateparse.ParseAny(text); err != nil {
			return nil, r.error(e, "invalid date literal %s", e.Text)
		}
		typ = schema.TypeDate
	case ast.LiteralNull:
		typ = schema.TypeUnknown
	}
	return r.note(e, &Note{Type: typ})
}

func (r *resolver) fieldRef(e *ast.FieldRef) (*Note, error) {
	if up := r.upstream.Lookup(e.Name); up != nil {
		root := up.Root()
		return r.note(e, &Note{
			Type:    root.Type,
			Context: root.Context,
			Deps:    []string{up.Name},
		})
	}
	_, col, err := r.sch.LookupQualified(e.Table, e.Name)
	if err != nil {
		msg := err.Error()
		if s := suggest(e.Name, r.knownNames()); s != "" {
			msg += fmt.Sprintf(" (did you mean [%s]?)", s)
		}
		return nil, r.error(e, "%s", msg)
	}
	return r.note(e, &Note{Type: col.Type, Deps: []string{e.Name}})
}

func (r *resolver) knownNames() []string {
	var names []string
	for _, t := range r.sch.Tables {
		for i := range t.Columns {
			names = append(names, t.Columns[i].Name)
		}
	}
	for i := range r.sch.Calcs {
		names = append(names, r.sch.Calcs[i].Name)
	}
	return names
}

func (r *resolver) binary(e *ast.BinaryExpr) (*Note, error) {
	lhs, err := r.resolve(e.LHS)
	if err != nil {
		return nil, err
	}
	rhs, err := r.resolve(e.RHS)
	if err != nil {
		return nil, err
	}
	ctx, err := r.merge(e, lhs, rhs)
	if err != nil {
		return nil, err
	}
	var typ schema.Type
	switch e.Op {
	case "AND", "OR", "=", "==", "!=", "<>", "<", "<=", ">", ">=":
		typ = schema.TypeBool
	case "+":
		typ = addType(lhs.Type, rhs.Type)
	case "-":
		typ = arithType(lhs.Type, rhs.Type)
		if lhs.Type == schema.TypeDate || lhs.Type == schema.TypeDateTime {
			typ = lhs.Type
			if rhs.Type == lhs.Type {
				typ = schema.TypeInteger
			}
		}
	case "%":
		typ = schema.TypeInteger
	case "/":
		// Division always widens, as in the source language.
		typ = schema.TypeNumber
	default: // * ^
		typ = arithType(lhs.Type, rhs.Type)
	}
	return r.note(e, &Note{
		Type:    typ,
		Context: ctx,
		Deps:    union(lhs.Deps, rhs.Deps),
	})
}

// merge combines the contexts of sibling operands under a plain operator.
// An aggregated operand next to a row operand that references fields is the
// classic context mismatch; constants combine with anything.
func (r *resolver) merge(at ast.Node, notes ...*Note) (EvalContext, error) {
	out := EvalContext{Kind: ContextRow}
	aggregated := false
	for _, n := range notes {
		if n.Context.Aggregated() {
			aggregated = true
			if out.Kind == ContextRow || out.Kind == ContextAggregate {
				out = n.Context
			}
		}
	}
	if !aggregated {
		return out, nil
	}
	for _, n := range notes {
		if !n.Context.Aggregated() && !n.Constant() {
			return out, r.error(at,
				"context mismatch: cannot mix aggregate and row-level arguments without wrapping the row-level part in an aggregate")
		}
	}
	return out, nil
}

func (r *resolver) call(e *ast.Call) (*Note, error) {
	f := parser.LookupFunc(e.Name)
	if f == nil {
		return nil, r.error(e, "unknown function %q", e.Name)
	}
	args := make([]*Note, len(e.Args))
	for i, arg := range e.Args {
		n, err := r.resolve(arg)
		if err != nil {
			return nil, err
		}
		args[i] = n
	}
	var deps []string
	for _, n := range args {
		deps = union(deps, n.Deps)
	}
	kind := f.Kind
	// Two-argument MIN/MAX compare scalars per row rather than aggregating
	// a column.
	if len(e.Args) == 2 && (f.Name == "MIN" || f.Name == "MAX") {
		kind = parser.KindRow
	}
	switch kind {
	case parser.KindAgg:
		for i, n := range args {
			if n.Context.Aggregated() {
				return nil, r.error(e.Args[i],
					"context mismatch: argument of aggregate %s() is already aggregated", f.Name)
			}
		}
		return r.note(e, &Note{
			Type:    resultType(f, args),
			Context: EvalContext{Kind: ContextAggregate},
			Deps:    deps,
		})
	case parser.KindTableCalc:
		// Table calculations consume aggregated arguments and produce an
		// aggregate-context result over the rendered partition.
		return r.note(e, &Note{
			Type:      resultType(f, args),
			Context:   EvalContext{Kind: ContextAggregate},
			Deps:      deps,
			TableCalc: true,
		})
	}
	ctx, err := r.merge(e, args...)
	if err != nil {
		return nil, err
	}
	return r.note(e, &Note{Type: resultType(f, args), Context: ctx, Deps: deps})
}

func (r *resolver) conditional(e ast.Expr, branches []ast.Branch, elseExpr ast.Expr) (*Note, error) {
	var notes []*Note
	typ := schema.TypeUnknown
	for _, b := range branches {
		cond, err := r.resolve(b.Cond)
		if err != nil {
			return nil, err
		}
		if cond.Type != schema.TypeBool && cond.Type != schema.TypeUnknown {
			return nil, r.error(b.Cond, "condition must be boolean, not %s", cond.Type)
		}
		then, err := r.resolve(b.Then)
		if err != nil {
			return nil, err
		}
		notes = append(notes, cond, then)
		if typ == schema.TypeUnknown {
			typ = then.Type
		}
	}
	if elseExpr != nil {
		n, err := r.resolve(elseExpr)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
		if typ == schema.TypeUnknown {
			typ = n.Type
		}
	}
	ctx, err := r.merge(e, notes...)
	if err != nil {
		return nil, err
	}
	var deps []string
	for _, n := range notes {
		deps = union(deps, n.Deps)
	}
	return r.note(e, &Note{Type: typ, Context: ctx, Deps: deps})
}

func (r *resolver) caseExpr(e *ast.Case) (*Note, error) {
	var notes []*Note
	if e.Input != nil {
		n, err := r.resolve(e.Input)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	typ := schema.TypeUnknown
	for _, w := range e.Whens {
		cond, err := r.resolve(w.Cond)
		if err != nil {
			return nil, err
		}
		// A searched CASE tests each WHEN as a condition; with an input the
		// WHEN is a comparison value of the input's type instead.
		if e.Input == nil && cond.Type != schema.TypeBool && cond.Type != schema.TypeUnknown {
			return nil, r.error(w.Cond, "condition must be boolean, not %s", cond.Type)
		}
		then, err := r.resolve(w.Then)
		if err != nil {
			return nil, err
		}
		notes = append(notes, cond, then)
		if typ == schema.TypeUnknown {
			typ = then.Type
		}
	}
	if e.Else != nil {
		n, err := r.resolve(e.Else)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
		if typ == schema.TypeUnknown {
			typ = n.Type
		}
	}
	ctx, err := r.merge(e, notes...)
	if err != nil {
		return nil, err
	}
	var deps []string
	for _, n := range notes {
		deps = union(deps, n.Deps)
	}
	return r.note(e, &Note{Type: typ, Context: ctx, Deps: deps})
}

// lod resolves a level-of-detail expression.  The inner expression
// evaluates in its own ambient context scoped to the declared dimensions,
// so the enclosing context places no constraint on it, but it must itself
// aggregate.
func (r *resolver) lod(e *ast.LOD) (*Note, error) {
	var scope []string
	deps := []string{}
	for _, dim := range e.Dims {
		_, col, err := r.sch.LookupQualified(dim.Table, dim.Name)
		if err != nil {
			return nil, r.error(dim, "%s", err.Error())
		}
		if col.Role != schema.RoleDimension {
			return nil, r.error(dim, "level-of-detail scope requires dimensions; [%s] is a measure", dim.Name)
		}
		if _, err := r.resolve(dim); err != nil {
			return nil, err
		}
		scope = append(scope, dim.Name)
		deps = union(deps, []string{dim.Name})
	}
	inner, err := r.resolve(e.Expr)
	if err != nil {
		return nil, err
	}
	if !inner.Context.Aggregated() && !inner.Constant() {
		return nil, r.error(e.Expr, "level-of-detail expression requires an aggregated inner expression")
	}
	return r.note(e, &Note{
		Type:    inner.Type,
		Context: EvalContext{Kind: ContextLOD, Scope: scope},
		Deps:    union(deps, inner.Deps),
	})
}

// resultType computes a call's result type from the catalog entry, falling
// back to the first argument's type for ResultArg builtins.
func resultType(f *parser.Func, args []*Note) schema.Type {
	switch f.Result {
	case parser.ResultNumber:
		return schema.TypeNumber
	case parser.ResultInteger:
		return schema.TypeInteger
	case parser.ResultString:
		return schema.TypeString
	case parser.ResultBool:
		return schema.TypeBool
	case parser.ResultDate:
		return schema.TypeDate
	case parser.ResultDateTime:
		return schema.TypeDateTime
	}
	for _, n := range args {
		if n.Type != schema.TypeUnknown {
			return n.Type
		}
	}
	return schema.TypeUnknown
}

func addType(a, b schema.Type) schema.Type {
	if a == schema.TypeString || b == schema.TypeString {
		return schema.TypeString
	}
	if a == schema.TypeDate || a == schema.TypeDateTime {
		return a
	}
	return arithType(a, b)
}

func arithType(a, b schema.Type) schema.Type {
	if a == schema.TypeInteger && b == schema.TypeInteger {
		return schema.TypeInteger
	}
	return schema.TypeNumber
}

func union(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]struct{}, len(a))
	out := append([]string(nil), a...)
	for _, s := range a {
		seen[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
