package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Dump renders the program as an indented tree, one node per line.
func Dump(p *Program) string {
	var d dumper
	d.line(0, "Program")
	for _, stmt := range p.Statements {
		d.stmt(1, stmt)
	}
	return strings.TrimSuffix(d.b.String(), "\n")
}

type dumper struct {
	b strings.Builder
}

func (d *dumper) line(depth int, format string, args ...any) {
	d.b.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(&d.b, format, args...)
	d.b.WriteByte('\n')
}

func (d *dumper) block(depth int, label string, b *Block) {
	d.line(depth, "%s", label)
	for _, stmt := range b.Statements {
		d.stmt(depth+1, stmt)
	}
}

func (d *dumper) stmt(depth int, s Stmt) {
	switch n := s.(type) {
	case *LetStmt:
		if n.Type != nil {
			d.line(depth, "Let %s: %s", n.Name, n.Type)
		} else {
			d.line(depth, "Let %s", n.Name)
		}
		d.expr(depth+1, n.Value)
	case *AssignStmt:
		d.line(depth, "Assign %s", n.Name)
		d.expr(depth+1, n.Value)
	case *IndexAssignStmt:
		d.line(depth, "IndexAssign %s", n.Name)
		d.expr(depth+1, n.Index)
		d.expr(depth+1, n.Value)
	case *CallStmt:
		d.expr(depth, n.Call)
	case *IfStmt:
		d.line(depth, "If")
		d.expr(depth+1, n.Cond)
		d.block(depth+1, "Then", n.Then)
		if n.Else != nil {
			d.block(depth+1, "Else", n.Else)
		}
	case *LoopStmt:
		d.block(depth, "Loop", n.Body)
	case *BreakStmt:
		d.line(depth, "Break")
	case *ReturnStmt:
		d.line(depth, "Return")
		if n.Value != nil {
			d.expr(depth+1, n.Value)
		}
	case *ExitStmt:
		d.line(depth, "Exit")
		d.expr(depth+1, n.Value)
	case *FnDecl:
		params := make([]string, len(n.Params))
		for i, p := range n.Params {
			params[i] = p.Name + ": " + p.Type.String()
		}
		sig := "Fn " + n.Name + "(" + strings.Join(params, ", ") + ")"
		if n.Result != nil {
			sig += " -> " + n.Result.String()
		}
		d.block(depth, sig, n.Body)
	}
}

func (d *dumper) expr(depth int, e Expr) {
	switch n := e.(type) {
	case *IntLit:
		d.line(depth, "Int %d", n.Value)
	case *StrLit:
		d.line(depth, "Str %s", strconv.Quote(n.Value))
	case *BoolLit:
		d.line(depth, "Bool %t", n.Value)
	case *Ident:
		d.line(depth, "Ident %s", n.Name)
	case *VecLit:
		d.line(depth, "Vec")
		for _, elem := range n.Elems {
			d.expr(depth+1, elem)
		}
	case *UnaryExpr:
		d.line(depth, "Unary %s", n.Op)
		d.expr(depth+1, n.Operand)
	case *BinaryExpr:
		d.line(depth, "Binary %s", n.Op)
		d.expr(depth+1, n.Left)
		d.expr(depth+1, n.Right)
	case *CallExpr:
		d.line(depth, "Call %s", n.Name)
		for _, arg := range n.Args {
			d.expr(depth+1, arg)
		}
	case *IndexExpr:
		d.line(depth, "Index")
		d.expr(depth+1, n.Target)
		d.expr(depth+1, n.Index)
	}
}
