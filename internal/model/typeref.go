package model

import (
	"fmt"
	"strconv"
	"strings"
)

// RefKind tags the shape of a TypeRef.
type RefKind uint8

const (
	RefVoid RefKind = iota
	RefPrimitive
	RefNamed
	RefArray
	// RefTypeParam is a generic parameter of the declaring type (!N).
	RefTypeParam
	// RefMethodParam is a generic parameter of the declaring method (!!N).
	RefMethodParam
)

// Primitive enumerates the managed primitive types.
type Primitive uint8

const (
	PrimNone Primitive = iota
	PrimBool
	PrimChar
	PrimInt8
	PrimUint8
	PrimInt16
	PrimUint16
	PrimInt32
	PrimUint32
	PrimInt64
	PrimUint64
	PrimFloat32
	PrimFloat64
)

var primNames = map[Primitive]string{
	PrimBool:    "bool",
	PrimChar:    "char",
	PrimInt8:    "sbyte",
	PrimUint8:   "byte",
	PrimInt16:   "short",
	PrimUint16:  "ushort",
	PrimInt32:   "int",
	PrimUint32:  "uint",
	PrimInt64:   "long",
	PrimUint64:  "ulong",
	PrimFloat32: "float",
	PrimFloat64: "double",
}

func (p Primitive) String() string {
	if s, ok := primNames[p]; ok {
		return s
	}
	return "none"
}

// Wide reports whether values of p occupy 64 bits.
func (p Primitive) Wide() bool {
	return p == PrimInt64 || p == PrimUint64 || p == PrimFloat64
}

// Unsigned reports whether p is one of the unsigned integer kinds.
func (p Primitive) Unsigned() bool {
	switch p {
	case PrimUint8, PrimUint16, PrimUint32, PrimUint64:
		return true
	}
	return false
}

// Integral reports whether p is an integer kind (char included).
func (p Primitive) Integral() bool {
	switch p {
	case PrimChar, PrimInt8, PrimUint8, PrimInt16, PrimUint16, PrimInt32, PrimUint32, PrimInt64, PrimUint64:
		return true
	}
	return false
}

// ParsePrimitive maps a keyword such as "int" to its Primitive.
func ParsePrimitive(s string) (Primitive, bool) {
	for p, name := range primNames {
		if name == s {
			return p, true
		}
	}
	return PrimNone, false
}

// Well-known framework type names used by the lowering stage.
const (
	ObjectName         = "System.Object"
	StringName         = "System.String"
	TypeName           = "System.Type"
	ValueTypeName      = "System.ValueType"
	EnumName           = "System.Enum"
	AttributeName      = "System.Attribute"
	DelegateName       = "System.Delegate"
	MulticastName      = "System.MulticastDelegate"
	ApplicationName    = "Android.App.Application"
	IAttributeName     = "Dot42.Internal.IAttribute"
	AnnotationAttrName = "Dot42.AnnotationAttribute"
)

// TypeRef is a use-site reference to a source type.
type TypeRef struct {
	Kind     RefKind
	Prim     Primitive
	Name     string    // full name for RefNamed, nested types use '/'
	Elem     *TypeRef  // element type for RefArray
	Args     []TypeRef // generic instance arguments
	Index    int       // position for RefTypeParam and RefMethodParam
	Nullable bool      // Nullable<T> over a value type
}

// Void is the empty return type.
func Void() TypeRef { return TypeRef{Kind: RefVoid} }

// Prim returns a primitive reference.
func Prim(p Primitive) TypeRef { return TypeRef{Kind: RefPrimitive, Prim: p} }

// Named returns a reference to a named type.
func Named(name string, args ...TypeRef) TypeRef {
	return TypeRef{Kind: RefNamed, Name: name, Args: args}
}

// ArrayOf wraps elem in a single-dimension array.
func ArrayOf(elem TypeRef) TypeRef {
	e := elem
	return TypeRef{Kind: RefArray, Elem: &e}
}

// TypeParam returns the declaring type's N-th generic parameter.
func TypeParam(i int) TypeRef { return TypeRef{Kind: RefTypeParam, Index: i} }

// MethodParam returns the declaring method's N-th generic parameter.
func MethodParam(i int) TypeRef { return TypeRef{Kind: RefMethodParam, Index: i} }

// AsNullable marks the reference as Nullable<T>.
func (t TypeRef) AsNullable() TypeRef {
	t.Nullable = true
	return t
}

// IsVoid reports whether t is the void type.
func (t TypeRef) IsVoid() bool { return t.Kind == RefVoid }

// IsWide reports whether t is a 64-bit primitive (not boxed by Nullable).
func (t TypeRef) IsWide() bool {
	return t.Kind == RefPrimitive && !t.Nullable && t.Prim.Wide()
}

// IsPrimitive reports whether t is an unboxed primitive.
func (t TypeRef) IsPrimitive() bool {
	return t.Kind == RefPrimitive && !t.Nullable
}

// Is reports whether t names the given type.
func (t TypeRef) Is(name string) bool {
	return t.Kind == RefNamed && !t.Nullable && t.Name == name
}

// Equal compares two references structurally.
func (t TypeRef) Equal(o TypeRef) bool {
	if t.Kind != o.Kind || t.Nullable != o.Nullable {
		return false
	}
	switch t.Kind {
	case RefVoid:
		return true
	case RefPrimitive:
		return t.Prim == o.Prim
	case RefTypeParam, RefMethodParam:
		return t.Index == o.Index
	case RefArray:
		return t.Elem != nil && o.Elem != nil && t.Elem.Equal(*o.Elem)
	case RefNamed:
		if t.Name != o.Name || len(t.Args) != len(o.Args) {
			return false
		}
		for i := range t.Args {
			if !t.Args[i].Equal(o.Args[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func (t TypeRef) String() string {
	var s string
	switch t.Kind {
	case RefVoid:
		return "void"
	case RefPrimitive:
		s = t.Prim.String()
	case RefArray:
		if t.Elem == nil {
			return "?[]"
		}
		s = t.Elem.String() + "[]"
	case RefTypeParam:
		s = "!" + strconv.Itoa(t.Index)
	case RefMethodParam:
		s = "!!" + strconv.Itoa(t.Index)
	case RefNamed:
		s = t.Name
		if len(t.Args) > 0 {
			parts := make([]string, len(t.Args))
			for i, a := range t.Args {
				parts[i] = a.String()
			}
			s += "<" + strings.Join(parts, ",") + ">"
		}
	default:
		s = "?"
	}
	if t.Nullable {
		s += "?"
	}
	return s
}

var keywordRefs = map[string]string{
	"string": StringName,
	"object": ObjectName,
	"type":   TypeName,
}

// ParseTypeRef parses the textual form produced by TypeRef.String, plus the
// "string", "object" and "type" keywords.
func ParseTypeRef(s string) (TypeRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TypeRef{}, fmt.Errorf("empty type reference")
	}
	if strings.HasSuffix(s, "[]") {
		elem, err := ParseTypeRef(s[:len(s)-2])
		if err != nil {
			return TypeRef{}, err
		}
		return ArrayOf(elem), nil
	}
	if strings.HasSuffix(s, "?") {
		inner, err := ParseTypeRef(s[:len(s)-1])
		if err != nil {
			return TypeRef{}, err
		}
		return inner.AsNullable(), nil
	}
	if s == "void" {
		return Void(), nil
	}
	if strings.HasPrefix(s, "!!") {
		n, err := strconv.Atoi(s[2:])
		if err != nil {
			return TypeRef{}, fmt.Errorf("bad method generic parameter %q", s)
		}
		return MethodParam(n), nil
	}
	if strings.HasPrefix(s, "!") {
		n, err := strconv.Atoi(s[1:])
		if err != nil {
			return TypeRef{}, fmt.Errorf("bad generic parameter %q", s)
		}
		return TypeParam(n), nil
	}
	if p, ok := ParsePrimitive(s); ok {
		return Prim(p), nil
	}
	if full, ok := keywordRefs[s]; ok {
		return Named(full), nil
	}
	open := strings.IndexByte(s, '<')
	if open < 0 {
		return Named(s), nil
	}
	if !strings.HasSuffix(s, ">") {
		return TypeRef{}, fmt.Errorf("unterminated generic arguments in %q", s)
	}
	args, err := splitArgs(s[open+1 : len(s)-1])
	if err != nil {
		return TypeRef{}, fmt.Errorf("%q: %w", s, err)
	}
	ref := Named(s[:open])
	for _, a := range args {
		ar, err := ParseTypeRef(a)
		if err != nil {
			return TypeRef{}, err
		}
		ref.Args = append(ref.Args, ar)
	}
	return ref, nil
}

func splitArgs(s string) ([]string, error) {
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced '>'")
			}
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced '<'")
	}
	return append(out, s[start:]), nil
}
