// Package parser implements a precedence-climbing parser for the Tableau
// calculation language.
package parser

import (
	"fmt"
	"strings"

	"github.com/tabxdata/tabx/compiler/ast"
)

// Operator precedence, loosest first.  Comparison operators are left
// associative like the source language; only ^ is right associative.
var binaryPrec = map[string]int{
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

func rightAssoc(op string) bool { return op == "^" }

// Parse parses one calculation source string into its syntax tree.  The
// returned error, if any, is a *Error localized to the offending token.
func Parse(src string) (ast.Expr, error) {
	p := &parser{lexer: newLexer(src)}
	if err := p.next(); err != nil {
		return nil, err
	}
	e, err := p.expr(0)
	if err != nil {
		return nil, err
	}
	if p.tok.typ != tokenEOF {
		return nil, p.unexpected("end of input")
	}
	return e, nil
}

type parser struct {
	*lexer
	tok token
}

func (p *parser) next() error {
	tok, err := p.lexer.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

// keyword returns the upper-cased text of the current token when it is an
// identifier, else "".
func (p *parser) keyword() string {
	if p.tok.typ != tokenIdent {
		return ""
	}
	return strings.ToUpper(p.tok.text)
}

func (p *parser) unexpected(expected ...string) *Error {
	return &Error{
		Msg:      fmt.Sprintf("unexpected %s", p.tok.typ),
		Pos:      p.tok.pos,
		End:      p.tok.pos + len(p.tok.text),
		Token:    p.tok.String(),
		Expected: expected,
	}
}

func (p *parser) expr(min int) (ast.Expr, error) {
	if p.keyword() == "NOT" && min <= precNot {
		pos := p.tok.pos
		if err := p.next(); err != nil {
			return nil, err
		}
		operand, err := p.expr(precNot)
		if err != nil {
			return nil, err
		}
		lhs := ast.Expr(&ast.UnaryExpr{Op: "NOT", OpPos: pos, Operand: operand})
		return p.binaryTail(lhs, min)
	}
	lhs, err := p.unary()
	if err != nil {
		return nil, err
	}
	return p.binaryTail(lhs, min)
}

func (p *parser) binaryTail(lhs ast.Expr, min int) (ast.Expr, error) {
	for {
		op := p.binaryOp()
		prec, ok := binaryPrec[op]
		if !ok || prec < min {
			return lhs, nil
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		next := prec + 1
		if rightAssoc(op) {
			next = prec
		}
		rhs, err := p.expr(next)
		if err != nil {
			return nil, err
		}
		lhs = &ast.BinaryExpr{Op: op, LHS: lhs, RHS: rhs}
	}
}

// binaryOp returns the normalized operator text of the current token when
// it can begin a binary operation, else "".
func (p *parser) binaryOp() string {
	switch p.tok.typ {
	case tokenOp:
		return p.tok.text
	case tokenIdent:
		if kw := p.keyword(); kw == "AND" || kw == "OR" {
			return kw
		}
	}
	return ""
}

func (p *parser) unary() (ast.Expr, error) {
	if p.tok.typ == tokenOp && (p.tok.text == "-" || p.tok.text == "+") {
		pos := p.tok.pos
		op := p.tok.text
		if err := p.next(); err != nil {
			return nil, err
		}
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: op, OpPos: pos, Operand: operand}, nil
	}
	return p.primary()
}

func (p *parser) primary() (ast.Expr, error) {
	switch p.tok.typ {
	case tokenNumber:
		typ := ast.LiteralInteger
		if strings.ContainsAny(p.tok.text, ".eE") {
			typ = ast.LiteralNumber
		}
		lit := &ast.Literal{Type: typ, Text: p.tok.text, TextPos: p.tok.pos}
		return lit, p.next()
	case tokenString:
		lit := &ast.Literal{Type: ast.LiteralString, Text: p.tok.text, TextPos: p.tok.pos}
		return lit, p.next()
	case tokenDate:
		lit := &ast.Literal{Type: ast.LiteralDate, Text: p.tok.text, TextPos: p.tok.pos}
		return lit, p.next()
	case tokenField:
		return p.fieldRef()
	case tokenLParen:
		if err := p.next(); err != nil {
			return nil, err
		}
		e, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		if p.tok.typ != tokenRParen {
			return nil, p.unexpected("')'")
		}
		return e, p.next()
	case tokenLBrace:
		return p.lod()
	case tokenIdent:
		switch p.keyword() {
		case "IF":
			return p.ifExpr()
		case "CASE":
			return p.caseExpr()
		case "TRUE", "FALSE":
			lit := &ast.Literal{Type: ast.LiteralBool, Text: p.tok.text, TextPos: p.tok.pos}
			return lit, p.next()
		case "NULL":
			lit := &ast.Literal{Type: ast.LiteralNull, Text: p.tok.text, TextPos: p.tok.pos}
			return lit, p.next()
		case "THEN", "ELSEIF", "ELSE", "END", "WHEN", "AND", "OR", "NOT",
			"FIXED", "INCLUDE", "EXCLUDE":
			return nil, p.unexpected("expression")
		}
		return p.call()
	}
	return nil, p.unexpected("expression")
}

// fieldRef parses [Name], [Table].[Name], and [Parameters].[Name].
func (p *parser) fieldRef() (ast.Expr, error) {
	pos := p.tok.pos
	first := strings.TrimSuffix(strings.TrimPrefix(p.tok.text, "["), "]")
	end := p.tok.pos + len(p.tok.text)
	if err := p.next(); err != nil {
		return nil, err
	}
	if p.tok.typ != tokenDot {
		return &ast.FieldRef{Name: first, NamePos: pos, NameEnd: end}, nil
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	if p.tok.typ != tokenField {
		return nil, p.unexpected("field reference")
	}
	second := strings.TrimSuffix(strings.TrimPrefix(p.tok.text, "["), "]")
	end = p.tok.pos + len(p.tok.text)
	if err := p.next(); err != nil {
		return nil, err
	}
	if strings.EqualFold(first, "Parameters") {
		return &ast.ParamRef{Name: second, NamePos: pos, NameEnd: end}, nil
	}
	return &ast.FieldRef{Table: first, Name: second, NamePos: pos, NameEnd: end}, nil
}

func (p *parser) call() (ast.Expr, error) {
	name := p.tok.text
	namePos := p.tok.pos
	nameEnd := p.tok.pos + len(p.tok.text)
	if err := p.next(); err != nil {
		return nil, err
	}
	if p.tok.typ != tokenLParen {
		return nil, &Error{
			Msg:   fmt.Sprintf("unknown identifier %q", name),
			Pos:   namePos,
			End:   nameEnd,
			Token: fmt.Sprintf("%q", name),
		}
	}
	f := LookupFunc(name)
	if f == nil {
		return nil, unknownFuncError(name, namePos, nameEnd)
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	var args []ast.Expr
	if p.tok.typ != tokenRParen {
		for {
			arg, err := p.expr(0)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.tok.typ != tokenComma {
				break
			}
			if err := p.next(); err != nil {
				return nil, err
			}
		}
	}
	if p.tok.typ != tokenRParen {
		return nil, p.unexpected("')'", "','")
	}
	rparen := p.tok.pos
	if err := p.next(); err != nil {
		return nil, err
	}
	if len(args) < f.MinArgs || (f.MaxArgs >= 0 && len(args) > f.MaxArgs) {
		return nil, &Error{
			Msg: fmt.Sprintf("%s(): expects %s", f.Name, arityText(f)),
			Pos: namePos,
			End: rparen + 1,
		}
	}
	return &ast.Call{Name: f.Name, NamePos: namePos, Args: args, RParen: rparen}, nil
}

func arityText(f *Func) string {
	if f.MinArgs == f.MaxArgs {
		return fmt.Sprintf("%d argument(s)", f.MinArgs)
	}
	return fmt.Sprintf("%d to %d arguments", f.MinArgs, f.MaxArgs)
}

func (p *parser) ifExpr() (ast.Expr, error) {
	ifPos := p.tok.pos
	out := &ast.If{IfPos: ifPos}
	for {
		if err := p.next(); err != nil { // consume IF or ELSEIF
			return nil, err
		}
		cond, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		if p.keyword() != "THEN" {
			return nil, p.unexpected("THEN")
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		then, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		out.Branches = append(out.Branches, ast.Branch{Cond: cond, Then: then})
		if p.keyword() != "ELSEIF" {
			break
		}
	}
	if p.keyword() == "ELSE" {
		if err := p.next(); err != nil {
			return nil, err
		}
		e, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		out.Else = e
	}
	if p.keyword() != "END" {
		return nil, p.unexpected("ELSEIF", "ELSE", "END")
	}
	out.EndPos = p.tok.pos
	return out, p.next()
}

func (p *parser) caseExpr() (ast.Expr, error) {
	out := &ast.Case{CasePos: p.tok.pos}
	if err := p.next(); err != nil {
		return nil, err
	}
	if p.keyword() != "WHEN" {
		input, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		out.Input = input
	}
	for p.keyword() == "WHEN" {
		if err := p.next(); err != nil {
			return nil, err
		}
		cond, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		if p.keyword() != "THEN" {
			return nil, p.unexpected("THEN")
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		then, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		out.Whens = append(out.Whens, ast.Branch{Cond: cond, Then: then})
	}
	if len(out.Whens) == 0 {
		return nil, p.unexpected("WHEN")
	}
	if p.keyword() == "ELSE" {
		if err := p.next(); err != nil {
			return nil, err
		}
		e, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		out.Else = e
	}
	if p.keyword() != "END" {
		return nil, p.unexpected("WHEN", "ELSE", "END")
	}
	out.EndPos = p.tok.pos
	return out, p.next()
}

// lod parses {FIXED|INCLUDE|EXCLUDE dims : expr} and the table-scoped
// shorthand {expr}, which is FIXED with an empty dimension set.
func (p *parser) lod() (ast.Expr, error) {
	lbrace := p.tok.pos
	if err := p.next(); err != nil {
		return nil, err
	}
	out := &ast.LOD{LBrace: lbrace, Kind: ast.LODFixed}
	switch p.keyword() {
	case "FIXED", "INCLUDE", "EXCLUDE":
		out.Kind = ast.LODKind(p.keyword())
		if err := p.next(); err != nil {
			return nil, err
		}
		for p.tok.typ == tokenField {
			dim, err := p.fieldRef()
			if err != nil {
				return nil, err
			}
			f, ok := dim.(*ast.FieldRef)
			if !ok {
				return nil, &Error{
					Msg: "parameter cannot be a level-of-detail dimension",
					Pos: dim.Pos(),
					End: dim.End(),
				}
			}
			out.Dims = append(out.Dims, f)
			if p.tok.typ != tokenComma {
				break
			}
			if err := p.next(); err != nil {
				return nil, err
			}
		}
		if p.tok.typ != tokenColon {
			return nil, p.unexpected("':'")
		}
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	e, err := p.expr(0)
	if err != nil {
		return nil, err
	}
	out.Expr = e
	if p.tok.typ != tokenRBrace {
		return nil, p.unexpected("'}'")
	}
	out.RBrace = p.tok.pos
	return out, p.next()
}
