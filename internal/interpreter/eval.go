package interpreter

import (
	"fmt"

	"github.com/eugenenazirov/oxido/internal/ast"
	"github.com/eugenenazirov/oxido/internal/diag"
	"github.com/eugenenazirov/oxido/internal/token"
	"github.com/eugenenazirov/oxido/internal/value"
)

// eval computes an expression. hint, when set, is the type the surrounding
// context expects; it only matters for empty vector literals.
func (it *Interpreter) eval(expr ast.Expr, env *scope, hint *value.Type) (value.Value, error) {
	switch e := expr.(type) {
	case *ast.IntLit:
		return value.IntValue(e.Value), nil
	case *ast.StrLit:
		return value.StrValue(e.Value), nil
	case *ast.BoolLit:
		return value.BoolValue(e.Value), nil
	case *ast.Ident:
		slot, ok := env.lookup(e.Name)
		if !ok {
			return nil, undeclared(e.Name, e.Span)
		}
		return slot.val, nil
	case *ast.VecLit:
		return it.evalVector(e, env, hint)
	case *ast.UnaryExpr:
		operand, err := it.eval(e.Operand, env, nil)
		if err != nil {
			return nil, err
		}
		n, ok := operand.(value.IntValue)
		if !ok {
			return nil, expected("int", operand, e.Operand.Pos())
		}
		return -n, nil
	case *ast.BinaryExpr:
		return it.evalBinary(e, env)
	case *ast.CallExpr:
		return it.call(e, env, true)
	case *ast.IndexExpr:
		return it.evalIndex(e, env)
	}
	return nil, diag.New(diag.CodeSyntax, "unsupported expression", "", expr.Pos())
}

func (it *Interpreter) evalVector(e *ast.VecLit, env *scope, hint *value.Type) (value.Value, error) {
	var elemType *value.Type
	if hint != nil && hint.IsVec() {
		t := hint.Elem()
		elemType = &t
	}

	items := make([]value.Value, 0, len(e.Elems))
	for _, elemExpr := range e.Elems {
		v, err := it.eval(elemExpr, env, elemType)
		if err != nil {
			return nil, err
		}
		if elemType == nil {
			t := v.Type()
			elemType = &t
		} else if v.Type() != *elemType {
			return nil, typeMismatch(*elemType, v.Type(), elemExpr.Pos())
		}
		items = append(items, v)
	}

	if elemType == nil {
		return nil, diag.New(diag.CodeIncorrectType,
			"cannot infer the type of an empty vector",
			"add a type annotation such as `vec<int>`", e.Span)
	}
	return value.VecValue{ElemType: *elemType, Items: items}, nil
}

func (it *Interpreter) evalIndex(e *ast.IndexExpr, env *scope) (value.Value, error) {
	target, err := it.eval(e.Target, env, nil)
	if err != nil {
		return nil, err
	}
	vec, ok := target.(value.VecValue)
	if !ok {
		return nil, expected("vector", target, e.Target.Pos())
	}
	idxVal, err := it.eval(e.Index, env, nil)
	if err != nil {
		return nil, err
	}
	idx, ok := idxVal.(value.IntValue)
	if !ok {
		return nil, expected("int", idxVal, e.Index.Pos())
	}
	if idx < 0 {
		return nil, diag.New(diag.CodeIndex, "index cannot be negative", "index cannot be negative", e.Index.Pos())
	}
	if int64(idx) >= int64(vec.Len()) {
		return nil, diag.New(diag.CodeIndex,
			fmt.Sprintf("index out of bounds, index %d is out of bounds for vector of length %d", idx, vec.Len()),
			"index out of bounds", e.Index.Pos())
	}
	return vec.Items[idx], nil
}

func (it *Interpreter) evalBinary(e *ast.BinaryExpr, env *scope) (value.Value, error) {
	lhs, err := it.eval(e.Left, env, nil)
	if err != nil {
		return nil, err
	}
	// an empty vector on the right adopts the left operand's type
	hint := lhs.Type()
	rhs, err := it.eval(e.Right, env, &hint)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case token.Plus:
		switch l := lhs.(type) {
		case value.IntValue:
			r, ok := rhs.(value.IntValue)
			if !ok {
				return nil, expected("int", rhs, e.Right.Pos())
			}
			return l + r, nil
		case value.StrValue:
			r, ok := rhs.(value.StrValue)
			if !ok {
				return nil, expected("str", rhs, e.Right.Pos())
			}
			return l + r, nil
		}
		return nil, expected("str` or `int", lhs, e.Left.Pos())

	case token.Minus, token.Star, token.Slash, token.Caret:
		l, ok := lhs.(value.IntValue)
		if !ok {
			return nil, expected("int", lhs, e.Left.Pos())
		}
		r, ok := rhs.(value.IntValue)
		if !ok {
			return nil, expected("int", rhs, e.Right.Pos())
		}
		return arithmetic(e, l, r)

	case token.Eq, token.NotEq, token.Gt, token.Lt, token.GtEq, token.LtEq:
		c, ok := value.Compare(lhs, rhs)
		if !ok {
			return nil, expected(lhs.Type().String(), rhs, e.Right.Pos())
		}
		return value.BoolValue(compareResult(e.Op, c)), nil
	}
	return nil, diag.New(diag.CodeSyntax, "unsupported operator "+e.Op.String(), "", e.Span)
}

func arithmetic(e *ast.BinaryExpr, l, r value.IntValue) (value.Value, error) {
	switch e.Op {
	case token.Minus:
		return l - r, nil
	case token.Star:
		return l * r, nil
	case token.Slash:
		if r == 0 {
			return nil, diag.New(diag.CodeArithmetic, "division by zero", "the divisor evaluates to zero", e.Right.Pos())
		}
		return l / r, nil
	default:
		if r < 0 {
			return nil, diag.New(diag.CodeArithmetic, "negative exponent", "exponents must not be negative", e.Right.Pos())
		}
		return power(l, r), nil
	}
}

// power computes base^exp by squaring; overflow wraps like the other
// integer operators.
func power(base, exp value.IntValue) value.IntValue {
	result := value.IntValue(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}

func compareResult(op token.Kind, c int) bool {
	switch op {
	case token.Eq:
		return c == 0
	case token.NotEq:
		return c != 0
	case token.Gt:
		return c > 0
	case token.Lt:
		return c < 0
	case token.GtEq:
		return c >= 0
	default:
		return c <= 0
	}
}
