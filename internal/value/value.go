// Package value holds the runtime values and static types of the language.
package value

import (
	"cmp"
	"strconv"
	"strings"
)

// Base is the scalar part of a type.
type Base int

const (
	Invalid Base = iota
	IntBase
	StrBase
	BoolBase
)

// Type is a scalar base wrapped in Dims levels of vec<...>. Types are
// comparable with ==.
type Type struct {
	Base Base
	Dims int
}

var (
	Int  = Type{Base: IntBase}
	Str  = Type{Base: StrBase}
	Bool = Type{Base: BoolBase}
)

// VecOf returns vec<t>.
func VecOf(t Type) Type {
	return Type{Base: t.Base, Dims: t.Dims + 1}
}

// IsVec reports whether t is a vector type.
func (t Type) IsVec() bool { return t.Dims > 0 }

// Elem returns the element type of a vector type.
func (t Type) Elem() Type {
	if t.Dims == 0 {
		return Type{}
	}
	return Type{Base: t.Base, Dims: t.Dims - 1}
}

func (t Type) String() string {
	var name string
	switch t.Base {
	case IntBase:
		name = "int"
	case StrBase:
		name = "str"
	case BoolBase:
		name = "bool"
	default:
		return "invalid"
	}
	return strings.Repeat("vec<", t.Dims) + name + strings.Repeat(">", t.Dims)
}

// ParseScalar maps a scalar type name to its Type.
func ParseScalar(name string) (Type, bool) {
	switch name {
	case "int":
		return Int, true
	case "str":
		return Str, true
	case "bool":
		return Bool, true
	}
	return Type{}, false
}

// Value is an immutable runtime value.
type Value interface {
	Type() Type
	String() string
}

type (
	IntValue  int64
	StrValue  string
	BoolValue bool
)

// VecValue is a homogeneous vector. Mutation always goes through With or
// Append, which copy, so values can be shared freely.
type VecValue struct {
	ElemType Type
	Items    []Value
}

func (IntValue) Type() Type  { return Int }
func (StrValue) Type() Type  { return Str }
func (BoolValue) Type() Type { return Bool }
func (v VecValue) Type() Type {
	return VecOf(v.ElemType)
}

func (v IntValue) String() string  { return strconv.FormatInt(int64(v), 10) }
func (v StrValue) String() string  { return string(v) }
func (v BoolValue) String() string { return strconv.FormatBool(bool(v)) }

func (v VecValue) String() string {
	parts := make([]string, len(v.Items))
	for i, item := range v.Items {
		parts[i] = item.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Len returns the number of elements.
func (v VecValue) Len() int { return len(v.Items) }

// With returns a copy of v with index i replaced. i must be in range.
func (v VecValue) With(i int, item Value) VecValue {
	items := make([]Value, len(v.Items))
	copy(items, v.Items)
	items[i] = item
	return VecValue{ElemType: v.ElemType, Items: items}
}

// Append returns a copy of v with item added at the end.
func (v VecValue) Append(item Value) VecValue {
	items := make([]Value, len(v.Items), len(v.Items)+1)
	copy(items, v.Items)
	return VecValue{ElemType: v.ElemType, Items: append(items, item)}
}

// Equal reports deep equality. Values of different types are never equal.
func Equal(a, b Value) bool {
	if a.Type() != b.Type() {
		return false
	}
	c, ok := Compare(a, b)
	return ok && c == 0
}

// Compare orders two values of the same type. ok is false when the types
// differ.
func Compare(a, b Value) (result int, ok bool) {
	if a.Type() != b.Type() {
		return 0, false
	}
	switch x := a.(type) {
	case IntValue:
		return cmp.Compare(x, b.(IntValue)), true
	case StrValue:
		return strings.Compare(string(x), string(b.(StrValue))), true
	case BoolValue:
		return cmp.Compare(boolRank(x), boolRank(b.(BoolValue))), true
	case VecValue:
		y := b.(VecValue)
		for i := 0; i < len(x.Items) && i < len(y.Items); i++ {
			if c, _ := Compare(x.Items[i], y.Items[i]); c != 0 {
				return c, true
			}
		}
		return cmp.Compare(len(x.Items), len(y.Items)), true
	}
	return 0, false
}

func boolRank(b BoolValue) int {
	if b {
		return 1
	}
	return 0
}
