package model

import (
	"errors"
	"fmt"
)

// Closure is a delegate construction site: a delegate type bound to a target
// method, with the generic witnesses the target needs.
type Closure struct {
	Delegate   string
	Target     MethodRef
	TypeArgs   []TypeRef
	MethodArgs []TypeRef
}

// Module is the reachability-pruned input of one compilation.
type Module struct {
	Name     string
	Types    []*Type
	Closures []Closure
	// JavaClasses lists the class names the class loader can resolve.
	JavaClasses []string

	byName map[string]*Type
	linked bool
}

// Link wires declaring-type back references, indexes all types by full name
// and resolves override links. It is idempotent.
func (m *Module) Link() error {
	if m == nil {
		return errors.New("nil module")
	}
	m.byName = make(map[string]*Type)
	var errs []error
	var walk func(parent *Type, ts []*Type)
	walk = func(parent *Type, ts []*Type) {
		for _, t := range ts {
			if t == nil {
				continue
			}
			t.DeclaringType = parent
			name := t.FullName()
			if _, dup := m.byName[name]; dup {
				errs = append(errs, fmt.Errorf("duplicate type %s", name))
			}
			m.byName[name] = t
			for _, f := range t.Fields {
				f.DeclaringType = t
			}
			for _, meth := range t.Methods {
				meth.DeclaringType = t
			}
			walk(t, t.Nested)
		}
	}
	walk(nil, m.Types)

	for _, t := range m.byName {
		for _, meth := range t.Methods {
			meth.Bases = meth.Bases[:0]
			for _, ref := range meth.Overrides {
				base := m.ResolveMethod(ref)
				if base == nil {
					// unresolved bases are left to lowering, which reports them
					continue
				}
				meth.Bases = append(meth.Bases, base)
			}
		}
	}
	m.linked = true
	return errors.Join(errs...)
}

// Lookup finds a type by full name.
func (m *Module) Lookup(name string) *Type {
	if m == nil {
		return nil
	}
	if !m.linked {
		// duplicate names surface from an explicit Link call
		_ = m.Link()
	}
	return m.byName[name]
}

// ResolveMethod finds the method a MethodRef designates.
func (m *Module) ResolveMethod(ref MethodRef) *Method {
	t := m.byName[ref.Type]
	if t == nil || ref.Name == "" {
		return nil
	}
	return t.Method(ref.Name, ref.Arity)
}

// All returns every type in pre-order (declaring types before nested ones).
func (m *Module) All() []*Type {
	var out []*Type
	var walk func(ts []*Type)
	walk = func(ts []*Type) {
		for _, t := range ts {
			out = append(out, t)
			walk(t.Nested)
		}
	}
	walk(m.Types)
	return out
}

// BaseType resolves the base type of t inside the module, or nil when the
// base lives outside of it (framework types) or t has none.
func (m *Module) BaseType(t *Type) *Type {
	if t == nil || t.Base == nil {
		return nil
	}
	return m.Lookup(t.Base.Name)
}

// InheritsFrom reports whether t derives from the named type, walking bases
// known to the module.
func (m *Module) InheritsFrom(t *Type, name string) bool {
	seen := map[*Type]bool{}
	for cur := t; cur != nil && !seen[cur]; cur = m.BaseType(cur) {
		seen[cur] = true
		if cur.BaseName() == name {
			return true
		}
	}
	return false
}
