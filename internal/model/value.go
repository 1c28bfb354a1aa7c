package model

import (
	"encoding/binary"
	"hash"
	"hash/fnv"
	"math"
)

// ValueKind tags the payload of an attribute argument value.
type ValueKind uint8

const (
	ValNull ValueKind = iota
	ValBool
	ValInt
	ValUint
	ValFloat
	ValString
	ValType
	ValEnum
	ValArray
	// ValBoxed wraps a value passed through an object-typed slot.
	ValBoxed
)

// Value is a constant used as an attribute argument or a literal field value.
// Type is the declared type of the slot the value was written to.
type Value struct {
	Kind  ValueKind
	Type  TypeRef
	Bool  bool
	Int   int64
	Uint  uint64
	Float float64
	Str   string
	Ref   TypeRef
	Elems []Value
	Boxed *Value
}

// Int64 returns the numeric payload as a signed 64-bit integer.
func (v Value) Int64() int64 {
	switch v.Kind {
	case ValInt, ValEnum:
		return v.Int
	case ValUint:
		return int64(v.Uint)
	case ValFloat:
		return int64(v.Float)
	case ValBool:
		if v.Bool {
			return 1
		}
	}
	return 0
}

// Equal reports structural equality, recursing through arrays and boxes.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind || !v.Type.Equal(o.Type) {
		return false
	}
	switch v.Kind {
	case ValNull:
		return true
	case ValBool:
		return v.Bool == o.Bool
	case ValInt, ValEnum:
		return v.Int == o.Int
	case ValUint:
		return v.Uint == o.Uint
	case ValFloat:
		return math.Float64bits(v.Float) == math.Float64bits(o.Float)
	case ValString:
		return v.Str == o.Str
	case ValType:
		return v.Ref.Equal(o.Ref)
	case ValArray:
		if len(v.Elems) != len(o.Elems) {
			return false
		}
		for i := range v.Elems {
			if !v.Elems[i].Equal(o.Elems[i]) {
				return false
			}
		}
		return true
	case ValBoxed:
		if v.Boxed == nil || o.Boxed == nil {
			return v.Boxed == o.Boxed
		}
		return v.Boxed.Equal(*o.Boxed)
	}
	return false
}

// hashInto feeds the structure of v into h so that Equal values hash equally.
func (v Value) hashInto(h hash.Hash64) {
	var buf [8]byte
	h.Write([]byte{byte(v.Kind)})
	h.Write([]byte(v.Type.String()))
	switch v.Kind {
	case ValBool:
		if v.Bool {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	case ValInt, ValEnum:
		binary.LittleEndian.PutUint64(buf[:], uint64(v.Int))
		h.Write(buf[:])
	case ValUint:
		binary.LittleEndian.PutUint64(buf[:], v.Uint)
		h.Write(buf[:])
	case ValFloat:
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v.Float))
		h.Write(buf[:])
	case ValString:
		h.Write([]byte(v.Str))
	case ValType:
		h.Write([]byte(v.Ref.String()))
	case ValArray:
		binary.LittleEndian.PutUint64(buf[:], uint64(len(v.Elems)))
		h.Write(buf[:])
		for _, e := range v.Elems {
			e.hashInto(h)
		}
	case ValBoxed:
		if v.Boxed != nil {
			v.Boxed.hashInto(h)
		}
	}
}

// Hash returns a structural hash consistent with Equal.
func (v Value) Hash() uint64 {
	h := fnv.New64a()
	v.hashInto(h)
	return h.Sum64()
}

// Equal reports whether two attribute applications construct equal instances.
func (a *Attribute) Equal(o *Attribute) bool {
	if a == nil || o == nil {
		return a == o
	}
	if a.Type != o.Type || len(a.CtorArgs) != len(o.CtorArgs) ||
		len(a.Fields) != len(o.Fields) || len(a.Properties) != len(o.Properties) {
		return false
	}
	for i := range a.CtorArgs {
		if !a.CtorArgs[i].Equal(o.CtorArgs[i]) {
			return false
		}
	}
	return namedEqual(a.Fields, o.Fields) && namedEqual(a.Properties, o.Properties)
}

func namedEqual(a, b []NamedValue) bool {
	for i := range a {
		if a[i].Name != b[i].Name || !a[i].Value.Equal(b[i].Value) {
			return false
		}
	}
	return true
}

// Hash returns a structural hash consistent with Equal.
func (a *Attribute) Hash() uint64 {
	h := fnv.New64a()
	h.Write([]byte(a.Type))
	for _, v := range a.CtorArgs {
		v.hashInto(h)
	}
	h.Write([]byte{0xfe})
	for _, nv := range a.Fields {
		h.Write([]byte(nv.Name))
		nv.Value.hashInto(h)
	}
	h.Write([]byte{0xff})
	for _, nv := range a.Properties {
		h.Write([]byte(nv.Name))
		nv.Value.hashInto(h)
	}
	return h.Sum64()
}
