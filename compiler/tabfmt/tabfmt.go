// Package tabfmt formats calculation ASTs back into canonical Tableau
// source text.  Formatting then re-parsing yields the same tree, which the
// parser tests rely on.
package tabfmt

import (
	"fmt"
	"strings"

	"github.com/tabxdata/tabx/compiler/ast"
)

// Expr returns the canonical source text of e.
func Expr(e ast.Expr) string {
	c := &canon{}
	c.expr(e, 0)
	return c.String()
}

type canon struct {
	strings.Builder
}

func (c *canon) write(format string, args ...interface{}) {
	if len(args) == 0 {
		c.WriteString(format)
		return
	}
	fmt.Fprintf(c, format, args...)
}

// Mirrors the parser's precedence table.  Binary children at looser
// precedence than their context are parenthesized.
var prec = map[string]int{
	"OR":  1,
	"AND": 2,
	"=":   4,
	"==":  4,
	"!=":  4,
	"<>":  4,
	"<":   4,
	"<=":  4,
	">":   4,
	">=":  4,
	"+":   5,
	"-":   5,
	"*":   6,
	"/":   6,
	"%":   6,
	"^":   7,
}

const precNot = 3

func (c *canon) expr(e ast.Expr, ctx int) {
	switch e := e.(type) {
	case *ast.Literal:
		c.write(e.Text)
	case *ast.FieldRef:
		if e.Table != "" {
			c.write("[%s].", e.Table)
		}
		c.write("[%s]", e.Name)
	case *ast.ParamRef:
		c.write("[Parameters].[%s]", e.Name)
	case *ast.UnaryExpr:
		if e.Op == "NOT" {
			if ctx > precNot {
				c.write("(")
				c.unaryNot(e)
				c.write(")")
			} else {
				c.unaryNot(e)
			}
			return
		}
		c.write(e.Op)
		c.expr(e.Operand, prec["^"]+1)
	case *ast.BinaryExpr:
		p := prec[e.Op]
		if p < ctx {
			c.write("(")
		}
		// The tighter side of an associative pair needs one extra level:
		// the right child for left-associative operators, the left child
		// for right-associative ^.
		lhsCtx, rhsCtx := p, p+1
		if e.Op == "^" {
			lhsCtx, rhsCtx = p+1, p
		}
		c.expr(e.LHS, lhsCtx)
		c.write(" %s ", e.Op)
		c.expr(e.RHS, rhsCtx)
		if p < ctx {
			c.write(")")
		}
	case *ast.Call:
		c.write("%s(", e.Name)
		for k, arg := range e.Args {
			if k > 0 {
				c.write(", ")
			}
			c.expr(arg, 0)
		}
		c.write(")")
	case *ast.If:
		for k, b := range e.Branches {
			if k == 0 {
				c.write("IF ")
			} else {
				c.write(" ELSEIF ")
			}
			c.expr(b.Cond, 0)
			c.write(" THEN ")
			c.expr(b.Then, 0)
		}
		if e.Else != nil {
			c.write(" ELSE ")
			c.expr(e.Else, 0)
		}
		c.write(" END")
	case *ast.Case:
		c.write("CASE ")
		if e.Input != nil {
			c.expr(e.Input, 0)
			c.write(" ")
		}
		for k, w := range e.Whens {
			if k > 0 {
				c.write(" ")
			}
			c.write("WHEN ")
			c.expr(w.Cond, 0)
			c.write(" THEN ")
			c.expr(w.Then, 0)
		}
		if e.Else != nil {
			c.write(" ELSE ")
			c.expr(e.Else, 0)
		}
		c.write(" END")
	case *ast.LOD:
		c.write("{%s ", e.Kind)
		for k, d := range e.Dims {
			if k > 0 {
				c.write(", ")
			}
			c.expr(d, 0)
		}
		if len(e.Dims) > 0 {
			c.write(" ")
		}
		c.write(": ")
		c.expr(e.Expr, 0)
		c.write("}")
	default:
		c.write("(unknown expr %T)", e)
	}
}

func (c *canon) unaryNot(e *ast.UnaryExpr) {
	c.write("NOT ")
	c.expr(e.Operand, precNot)
}
