package interpreter

import "github.com/eugenenazirov/oxido/internal/value"

type slot struct {
	typ value.Type
	val value.Value
}

// scope is one level of variable bindings. Only function calls open a new
// scope, chained straight to the globals; if and loop bodies declare into the
// scope they run in.
type scope struct {
	vars   map[string]*slot
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: make(map[string]*slot), parent: parent}
}

func (s *scope) lookup(name string) (*slot, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// declare binds name in this scope, replacing any earlier binding here.
func (s *scope) declare(name string, typ value.Type, val value.Value) {
	s.vars[name] = &slot{typ: typ, val: val}
}
