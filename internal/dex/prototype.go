package dex

import (
	"errors"
	"strings"
)

// ErrFrozen is returned when a frozen structure is mutated.
var ErrFrozen = errors.New("dex: frozen")

// Parameter is one declared parameter of a prototype.
type Parameter struct {
	Name string
	Type TypeRef
}

// Prototype is a method signature: return type plus ordered parameters.
// After Freeze every mutator fails with ErrFrozen.
type Prototype struct {
	ret    TypeRef
	params []Parameter
	frozen bool
}

// NewPrototype builds an unfrozen prototype.
func NewPrototype(ret TypeRef, params ...Parameter) *Prototype {
	if ret.IsZero() {
		ret = Void
	}
	return &Prototype{ret: ret, params: append([]Parameter(nil), params...)}
}

// ReturnType returns the declared return type.
func (p *Prototype) ReturnType() TypeRef { return p.ret }

// SetReturnType replaces the return type.
func (p *Prototype) SetReturnType(t TypeRef) error {
	if p.frozen {
		return ErrFrozen
	}
	p.ret = t
	return nil
}

// AddParameter appends a parameter.
func (p *Prototype) AddParameter(prm Parameter) error {
	if p.frozen {
		return ErrFrozen
	}
	p.params = append(p.params, prm)
	return nil
}

// Params returns a copy of the parameter list.
func (p *Prototype) Params() []Parameter {
	return append([]Parameter(nil), p.params...)
}

// ParamCount returns the number of declared parameters.
func (p *Prototype) ParamCount() int { return len(p.params) }

// Param returns the i-th parameter.
func (p *Prototype) Param(i int) Parameter { return p.params[i] }

// Freeze makes the prototype immutable.
func (p *Prototype) Freeze() { p.frozen = true }

// Frozen reports whether Freeze was called.
func (p *Prototype) Frozen() bool { return p.frozen }

// Clone returns an unfrozen copy.
func (p *Prototype) Clone() *Prototype {
	return NewPrototype(p.ret, p.params...)
}

// Equal compares return and parameter types; parameter names are ignored.
func (p *Prototype) Equal(o *Prototype) bool {
	if p == nil || o == nil {
		return p == o
	}
	if p.ret != o.ret || len(p.params) != len(o.params) {
		return false
	}
	for i := range p.params {
		if p.params[i].Type != o.params[i].Type {
			return false
		}
	}
	return true
}

// Signature returns the descriptor form "(IJ)V".
func (p *Prototype) Signature() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, prm := range p.params {
		sb.WriteString(prm.Type.Descriptor())
	}
	sb.WriteByte(')')
	sb.WriteString(p.ret.Descriptor())
	return sb.String()
}

// InSlots returns the register slots taken by the parameters.
func (p *Prototype) InSlots() int {
	n := 0
	for _, prm := range p.params {
		n += prm.Type.Slots()
	}
	return n
}

func (p *Prototype) String() string { return p.Signature() }
