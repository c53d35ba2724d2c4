// Package ast declares the types used to represent syntax trees for Tableau
// calculation expressions.
package ast

// This module is derived from the GO AST design pattern in
// https://golang.org/pkg/go/ast/
//
// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Node is implemented by all AST nodes and locates the node in the
// source text.
type Node interface {
	Pos() int // Position of first character belonging to the node.
	End() int // Position of first character immediately after the node.
}

// Expr is the interface implemented by all AST expression nodes.
type Expr interface {
	Node
	ExprAST()
}

// LiteralType discriminates the lexical class of a Literal.
type LiteralType string

const (
	LiteralNumber  LiteralType = "number"
	LiteralInteger LiteralType = "integer"
	LiteralString  LiteralType = "string"
	LiteralBool    LiteralType = "boolean"
	LiteralDate    LiteralType = "date"
	LiteralNull    LiteralType = "null"
)

// A Literal carries its source text verbatim so the emitter can reproduce
// numeric precision and date formatting exactly as authored.
type Literal struct {
	Type    LiteralType `json:"type"`
	Text    string      `json:"text"`
	TextPos int         `json:"text_pos"`
}

func (l *Literal) Pos() int { return l.TextPos }
func (l *Literal) End() int { return l.TextPos + len(l.Text) }

// A FieldRef is a bracketed reference to a schema column or to another
// calculated field, e.g. [Sales] or [Orders].[Sales].
type FieldRef struct {
	Table   string `json:"table,omitempty"`
	Name    string `json:"name"`
	NamePos int    `json:"name_pos"`
	NameEnd int    `json:"name_end"`
}

func (f *FieldRef) Pos() int { return f.NamePos }
func (f *FieldRef) End() int { return f.NameEnd }

// A ParamRef references a workbook parameter, e.g. [Parameters].[Top N].
type ParamRef struct {
	Name    string `json:"name"`
	NamePos int    `json:"name_pos"`
	NameEnd int    `json:"name_end"`
}

func (p *ParamRef) Pos() int { return p.NamePos }
func (p *ParamRef) End() int { return p.NameEnd }

type UnaryExpr struct {
	Op      string `json:"op"`
	OpPos   int    `json:"op_pos"`
	Operand Expr   `json:"operand"`
}

func (u *UnaryExpr) Pos() int { return u.OpPos }
func (u *UnaryExpr) End() int { return u.Operand.End() }

// A BinaryExpr is any expression of the form "lhs op rhs" including
// arithmetic (+, -, *, /, %, ^), logical connectives (AND, OR), and
// comparisons (=, !=, <, <=, >, >=).
type BinaryExpr struct {
	Op  string `json:"op"`
	LHS Expr   `json:"lhs"`
	RHS Expr   `json:"rhs"`
}

func (b *BinaryExpr) Pos() int { return b.LHS.Pos() }
func (b *BinaryExpr) End() int { return b.RHS.End() }

// A Call is a function invocation, aggregate or row-level alike.  Whether
// the call aggregates is determined by the semantic pass from the function
// catalog, not by the syntax tree.
type Call struct {
	Name    string `json:"name"`
	NamePos int    `json:"name_pos"`
	Args    []Expr `json:"args"`
	RParen  int    `json:"rparen"`
}

func (c *Call) Pos() int { return c.NamePos }
func (c *Call) End() int { return c.RParen + 1 }

// A Branch is one condition/result arm of an If or Case expression.
type Branch struct {
	Cond Expr `json:"cond"`
	Then Expr `json:"then"`
}

// An If represents IF/THEN[/ELSEIF...][/ELSE]/END.  Branches holds the IF
// arm and every ELSEIF arm in source order.
type If struct {
	IfPos    int      `json:"if_pos"`
	Branches []Branch `json:"branches"`
	Else     Expr     `json:"else,omitempty"`
	EndPos   int      `json:"end_pos"`
}

func (i *If) Pos() int { return i.IfPos }
func (i *If) End() int { return i.EndPos + len("END") }

// A Case represents CASE [input] WHEN ... THEN ... [ELSE ...] END.  When
// Input is nil each WHEN arm is a boolean condition, mirroring searched-case
// syntax.
type Case struct {
	CasePos int      `json:"case_pos"`
	Input   Expr     `json:"input,omitempty"`
	Whens   []Branch `json:"whens"`
	Else    Expr     `json:"else,omitempty"`
	EndPos  int      `json:"end_pos"`
}

func (c *Case) Pos() int { return c.CasePos }
func (c *Case) End() int { return c.EndPos + len("END") }

// LODKind selects the scoping rule of a level-of-detail expression.
type LODKind string

const (
	LODFixed   LODKind = "FIXED"
	LODInclude LODKind = "INCLUDE"
	LODExclude LODKind = "EXCLUDE"
)

// A LOD is a level-of-detail expression {FIXED|INCLUDE|EXCLUDE dims : expr}.
// Dims may be empty, as in {FIXED : MIN([Order Date])}.
type LOD struct {
	LBrace int         `json:"lbrace"`
	Kind   LODKind     `json:"kind"`
	Dims   []*FieldRef `json:"dims"`
	Expr   Expr        `json:"expr"`
	RBrace int         `json:"rbrace"`
}

func (l *LOD) Pos() int { return l.LBrace }
func (l *LOD) End() int { return l.RBrace + 1 }

func (*Literal) ExprAST()    {}
func (*FieldRef) ExprAST()   {}
func (*ParamRef) ExprAST()   {}
func (*UnaryExpr) ExprAST()  {}
func (*BinaryExpr) ExprAST() {}
func (*Call) ExprAST()       {}
func (*If) ExprAST()         {}
func (*Case) ExprAST()       {}
func (*LOD) ExprAST()        {}
