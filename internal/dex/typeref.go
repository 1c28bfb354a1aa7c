package dex

import "strings"

// TypeRef is a target type identified by its descriptor ("I", "[J",
// "Ljava/lang/Object;"). Two refs are equal iff their descriptors are.
type TypeRef struct {
	desc string
}

var (
	Void    = TypeRef{"V"}
	Boolean = TypeRef{"Z"}
	Byte    = TypeRef{"B"}
	Short   = TypeRef{"S"}
	Char    = TypeRef{"C"}
	Int     = TypeRef{"I"}
	Long    = TypeRef{"J"}
	Float   = TypeRef{"F"}
	Double  = TypeRef{"D"}
)

// Class returns a reference to the class with the given slash-separated name.
func Class(name string) TypeRef {
	return TypeRef{"L" + strings.ReplaceAll(name, ".", "/") + ";"}
}

// ArrayOf returns the array type with element t.
func ArrayOf(t TypeRef) TypeRef { return TypeRef{"[" + t.desc} }

// FromDescriptor wraps an already formed descriptor.
func FromDescriptor(desc string) TypeRef { return TypeRef{desc} }

// Descriptor returns the type descriptor.
func (t TypeRef) Descriptor() string { return t.desc }

// IsZero reports an unset reference.
func (t TypeRef) IsZero() bool { return t.desc == "" }

// IsVoid reports the void type.
func (t TypeRef) IsVoid() bool { return t.desc == "V" }

// IsWide reports 64-bit primitives.
func (t TypeRef) IsWide() bool { return t.desc == "J" || t.desc == "D" }

// IsPrimitive reports non-void primitive types.
func (t TypeRef) IsPrimitive() bool {
	return len(t.desc) == 1 && t.desc != "V"
}

// IsArray reports array types.
func (t TypeRef) IsArray() bool { return strings.HasPrefix(t.desc, "[") }

// IsClass reports class (non-array) reference types.
func (t TypeRef) IsClass() bool { return strings.HasPrefix(t.desc, "L") }

// IsReference reports class and array types.
func (t TypeRef) IsReference() bool { return t.IsClass() || t.IsArray() }

// Elem returns the element type of an array, or the zero TypeRef.
func (t TypeRef) Elem() TypeRef {
	if !t.IsArray() {
		return TypeRef{}
	}
	return TypeRef{t.desc[1:]}
}

// ClassName returns "java/lang/Object" for "Ljava/lang/Object;" and "" otherwise.
func (t TypeRef) ClassName() string {
	if !t.IsClass() {
		return ""
	}
	return t.desc[1 : len(t.desc)-1]
}

// Slots returns the number of registers a value of t occupies.
func (t TypeRef) Slots() int {
	switch {
	case t.IsVoid() || t.IsZero():
		return 0
	case t.IsWide():
		return 2
	}
	return 1
}

func (t TypeRef) String() string {
	if t.IsClass() {
		return t.ClassName()
	}
	return t.desc
}
