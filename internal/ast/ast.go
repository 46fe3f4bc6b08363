// Package ast declares the syntax tree produced by the parser. Trees are
// never mutated after parsing, so one tree may be executed by several
// interpreters at once.
package ast

import (
	"github.com/eugenenazirov/oxido/internal/token"
	"github.com/eugenenazirov/oxido/internal/value"
)

// Node is anything with a source location.
type Node interface {
	Pos() token.Span
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Program is the root of a parsed file.
type Program struct {
	Statements []Stmt
}

// Block is a braced statement list.
type Block struct {
	Statements []Stmt
	Span       token.Span
}

type (
	// LetStmt declares a variable, optionally with an explicit type.
	LetStmt struct {
		Name     string
		Type     *value.Type
		Value    Expr
		Span     token.Span
		NameSpan token.Span
	}

	// AssignStmt re-assigns an existing variable.
	AssignStmt struct {
		Name  string
		Value Expr
		Span  token.Span
	}

	// IndexAssignStmt replaces or appends a vector element.
	IndexAssignStmt struct {
		Name  string
		Index Expr
		Value Expr
		Span  token.Span
	}

	// CallStmt is a call whose result is discarded.
	CallStmt struct {
		Call *CallExpr
		Span token.Span
	}

	// IfStmt has an optional Else block; `else if` is an Else block holding a
	// single IfStmt.
	IfStmt struct {
		Cond Expr
		Then *Block
		Else *Block
		Span token.Span
	}

	LoopStmt struct {
		Body *Block
		Span token.Span
	}

	BreakStmt struct {
		Span token.Span
	}

	// ReturnStmt may omit its value.
	ReturnStmt struct {
		Value Expr
		Span  token.Span
	}

	ExitStmt struct {
		Value Expr
		Span  token.Span
	}

	// FnDecl declares a function. Result is nil for functions without a
	// return type.
	FnDecl struct {
		Name   string
		Params []Param
		Result *value.Type
		Body   *Block
		Span   token.Span
	}
)

// Param is a typed function parameter.
type Param struct {
	Name string
	Type value.Type
	Span token.Span
}

type (
	IntLit struct {
		Value int64
		Span  token.Span
	}

	StrLit struct {
		Value string
		Span  token.Span
	}

	BoolLit struct {
		Value bool
		Span  token.Span
	}

	Ident struct {
		Name string
		Span token.Span
	}

	// VecLit is a vector literal. Element type is inferred at run time.
	VecLit struct {
		Elems []Expr
		Span  token.Span
	}

	UnaryExpr struct {
		Op      token.Kind
		Operand Expr
		Span    token.Span
	}

	BinaryExpr struct {
		Op    token.Kind
		Left  Expr
		Right Expr
		Span  token.Span
	}

	CallExpr struct {
		Name     string
		Args     []Expr
		Span     token.Span
		NameSpan token.Span
	}

	IndexExpr struct {
		Target Expr
		Index  Expr
		Span   token.Span
	}
)

func (b *Block) Pos() token.Span           { return b.Span }
func (s *LetStmt) Pos() token.Span         { return s.Span }
func (s *AssignStmt) Pos() token.Span      { return s.Span }
func (s *IndexAssignStmt) Pos() token.Span { return s.Span }
func (s *CallStmt) Pos() token.Span        { return s.Span }
func (s *IfStmt) Pos() token.Span          { return s.Span }
func (s *LoopStmt) Pos() token.Span        { return s.Span }
func (s *BreakStmt) Pos() token.Span       { return s.Span }
func (s *ReturnStmt) Pos() token.Span      { return s.Span }
func (s *ExitStmt) Pos() token.Span        { return s.Span }
func (s *FnDecl) Pos() token.Span          { return s.Span }

func (*LetStmt) stmtNode()         {}
func (*AssignStmt) stmtNode()      {}
func (*IndexAssignStmt) stmtNode() {}
func (*CallStmt) stmtNode()        {}
func (*IfStmt) stmtNode()          {}
func (*LoopStmt) stmtNode()        {}
func (*BreakStmt) stmtNode()       {}
func (*ReturnStmt) stmtNode()      {}
func (*ExitStmt) stmtNode()        {}
func (*FnDecl) stmtNode()          {}

func (e *IntLit) Pos() token.Span     { return e.Span }
func (e *StrLit) Pos() token.Span     { return e.Span }
func (e *BoolLit) Pos() token.Span    { return e.Span }
func (e *Ident) Pos() token.Span      { return e.Span }
func (e *VecLit) Pos() token.Span     { return e.Span }
func (e *UnaryExpr) Pos() token.Span  { return e.Span }
func (e *BinaryExpr) Pos() token.Span { return e.Span }
func (e *CallExpr) Pos() token.Span   { return e.Span }
func (e *IndexExpr) Pos() token.Span  { return e.Span }

func (*IntLit) exprNode()     {}
func (*StrLit) exprNode()     {}
func (*BoolLit) exprNode()    {}
func (*Ident) exprNode()      {}
func (*VecLit) exprNode()     {}
func (*UnaryExpr) exprNode()  {}
func (*BinaryExpr) exprNode() {}
func (*CallExpr) exprNode()   {}
func (*IndexExpr) exprNode()  {}
