package dex

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// snapshotSchema is bumped whenever the Snapshot layout changes.
const snapshotSchema uint16 = 1

// Snapshot is the serialized form of a frozen class graph handed to the
// binary writer.
type Snapshot struct {
	Schema  uint16
	Module  string
	Classes []SnapClass
}

// SnapClass mirrors ClassDef with plain data only.
type SnapClass struct {
	Name        string
	Flags       uint32
	Super       string
	Interfaces  []string
	Fields      []SnapField
	Methods     []SnapMethod
	Annotations []SnapAnnotation
	Inner       []SnapClass
	MapFileID   int
}

// SnapField mirrors FieldDef.
type SnapField struct {
	Name        string
	Type        string
	Flags       uint32
	Value       *SnapValue `msgpack:",omitempty"`
	Annotations []SnapAnnotation
}

// SnapMethod mirrors MethodDef; the body is kept as its listing.
type SnapMethod struct {
	Name        string
	Signature   string
	Flags       uint32
	NewSlot     bool
	Registers   int
	Body        string
	Annotations []SnapAnnotation
	MapFileID   int
}

// SnapAnnotation mirrors Annotation.
type SnapAnnotation struct {
	Type       string
	Visibility uint8
	Names      []string
	Values     []SnapValue
}

// Value kinds used by SnapValue.
const (
	SnapNull uint8 = iota
	SnapBool
	SnapInt
	SnapLong
	SnapFloat
	SnapDouble
	SnapString
	SnapType
	SnapEnum
	SnapAnnotationValue
	SnapArray
)

// SnapValue is a tagged annotation or field constant.
type SnapValue struct {
	Kind       uint8
	Int        int64           `msgpack:",omitempty"`
	Float      float64         `msgpack:",omitempty"`
	Bool       bool            `msgpack:",omitempty"`
	Str        string          `msgpack:",omitempty"`
	Annotation *SnapAnnotation `msgpack:",omitempty"`
	Elems      []SnapValue     `msgpack:",omitempty"`
}

// NewSnapshot converts frozen classes into a Snapshot.
func NewSnapshot(module string, classes []*ClassDef) (*Snapshot, error) {
	s := &Snapshot{Schema: snapshotSchema, Module: module}
	for _, c := range classes {
		if !c.Frozen() {
			return nil, fmt.Errorf("snapshot: class %s is not frozen", c.Fullname())
		}
		sc, err := snapClass(c)
		if err != nil {
			return nil, err
		}
		s.Classes = append(s.Classes, sc)
	}
	return s, nil
}

// WriteSnapshot encodes the classes to w.
func WriteSnapshot(w io.Writer, module string, classes []*ClassDef) error {
	s, err := NewSnapshot(module, classes)
	if err != nil {
		return err
	}
	enc := msgpack.NewEncoder(w)
	enc.UseCompactInts(true)
	return enc.Encode(s)
}

// ReadSnapshot decodes a snapshot written by WriteSnapshot.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := msgpack.NewDecoder(r).Decode(&s); err != nil {
		return nil, err
	}
	if s.Schema != snapshotSchema {
		return nil, fmt.Errorf("snapshot: schema %d, want %d", s.Schema, snapshotSchema)
	}
	return &s, nil
}

func snapClass(c *ClassDef) (SnapClass, error) {
	sc := SnapClass{
		Name:      c.Fullname(),
		Flags:     uint32(c.Flags),
		Super:     c.Super.Descriptor(),
		MapFileID: c.MapFileID,
	}
	for _, i := range c.Interfaces {
		sc.Interfaces = append(sc.Interfaces, i.Descriptor())
	}
	var err error
	if sc.Annotations, err = snapAnnotations(c.Annotations); err != nil {
		return sc, fmt.Errorf("%s: %w", sc.Name, err)
	}
	for _, f := range c.Fields {
		sf := SnapField{Name: f.Name, Type: f.Type.Descriptor(), Flags: uint32(f.Flags)}
		if f.Value != nil {
			v, err := snapValue(f.Value)
			if err != nil {
				return sc, fmt.Errorf("%s.%s: %w", sc.Name, f.Name, err)
			}
			sf.Value = &v
		}
		if sf.Annotations, err = snapAnnotations(f.Annotations); err != nil {
			return sc, fmt.Errorf("%s.%s: %w", sc.Name, f.Name, err)
		}
		sc.Fields = append(sc.Fields, sf)
	}
	for _, m := range c.Methods {
		sm := SnapMethod{
			Name:      m.Name,
			Signature: m.Proto.Signature(),
			Flags:     uint32(m.Flags),
			NewSlot:   m.NewSlot,
			MapFileID: m.MapFileID,
		}
		if m.Body != nil {
			sm.Registers = m.Body.RegisterCount()
			sm.Body = m.Body.String()
		}
		if sm.Annotations, err = snapAnnotations(m.Annotations); err != nil {
			return sc, fmt.Errorf("%s.%s: %w", sc.Name, m.Name, err)
		}
		sc.Methods = append(sc.Methods, sm)
	}
	for _, ic := range c.InnerClasses {
		inner, err := snapClass(ic)
		if err != nil {
			return sc, err
		}
		sc.Inner = append(sc.Inner, inner)
	}
	return sc, nil
}

func snapAnnotations(as []*Annotation) ([]SnapAnnotation, error) {
	var out []SnapAnnotation
	for _, a := range as {
		sa, err := snapAnnotation(a)
		if err != nil {
			return nil, err
		}
		out = append(out, sa)
	}
	return out, nil
}

func snapAnnotation(a *Annotation) (SnapAnnotation, error) {
	sa := SnapAnnotation{Type: a.Type.Descriptor(), Visibility: uint8(a.Visibility)}
	for _, arg := range a.Arguments {
		v, err := snapValue(arg.Value)
		if err != nil {
			return sa, fmt.Errorf("annotation %s.%s: %w", a.Type, arg.Name, err)
		}
		sa.Names = append(sa.Names, arg.Name)
		sa.Values = append(sa.Values, v)
	}
	return sa, nil
}

func snapValue(v any) (SnapValue, error) {
	switch x := v.(type) {
	case nil:
		return SnapValue{Kind: SnapNull}, nil
	case bool:
		return SnapValue{Kind: SnapBool, Bool: x}, nil
	case int32:
		return SnapValue{Kind: SnapInt, Int: int64(x)}, nil
	case int64:
		return SnapValue{Kind: SnapLong, Int: x}, nil
	case float32:
		return SnapValue{Kind: SnapFloat, Float: float64(x)}, nil
	case float64:
		return SnapValue{Kind: SnapDouble, Float: x}, nil
	case string:
		return SnapValue{Kind: SnapString, Str: x}, nil
	case TypeRef:
		return SnapValue{Kind: SnapType, Str: x.Descriptor()}, nil
	case EnumValue:
		return SnapValue{Kind: SnapEnum, Str: x.Field.String()}, nil
	case *Annotation:
		sa, err := snapAnnotation(x)
		if err != nil {
			return SnapValue{}, err
		}
		return SnapValue{Kind: SnapAnnotationValue, Annotation: &sa}, nil
	case []any:
		out := SnapValue{Kind: SnapArray, Elems: make([]SnapValue, 0, len(x))}
		for _, e := range x {
			ev, err := snapValue(e)
			if err != nil {
				return SnapValue{}, err
			}
			out.Elems = append(out.Elems, ev)
		}
		return out, nil
	}
	return SnapValue{}, fmt.Errorf("unsupported constant %T", v)
}
