package dex

import (
	"fmt"
	"strings"
)

// FieldRef names a field of a class.
type FieldRef struct {
	Owner TypeRef
	Name  string
	Type  TypeRef
}

func (r FieldRef) String() string {
	return r.Owner.Descriptor() + "->" + r.Name + ":" + r.Type.Descriptor()
}

// MethodRef names a method of a class.
type MethodRef struct {
	Owner TypeRef
	Name  string
	Proto *Prototype
}

func (r MethodRef) String() string {
	return r.Owner.Descriptor() + "->" + r.Name + r.Proto.Signature()
}

// Body is an instruction-level method body. The rl package provides the
// concrete implementation; dex only needs to validate and print it.
type Body interface {
	Validate() error
	RegisterCount() int
	String() string
}

// Visibility of an annotation.
type Visibility uint8

const (
	VisibilityBuild Visibility = iota
	VisibilityRuntime
	VisibilitySystem
)

func (v Visibility) String() string {
	switch v {
	case VisibilityRuntime:
		return "runtime"
	case VisibilitySystem:
		return "system"
	}
	return "build"
}

// Argument is one named element of an annotation. Value holds a constant
// (bool, int32, int64, float32, float64, string), a TypeRef, an EnumValue,
// a nested *Annotation, a []any array, or nil.
type Argument struct {
	Name  string
	Value any
}

// EnumValue references an enum constant by field.
type EnumValue struct {
	Field FieldRef
}

// Annotation is a declarative metadata attachment.
type Annotation struct {
	Type       TypeRef
	Visibility Visibility
	Arguments  []Argument
}

// Arg returns the value of a named argument.
func (a *Annotation) Arg(name string) (any, bool) {
	for _, arg := range a.Arguments {
		if arg.Name == name {
			return arg.Value, true
		}
	}
	return nil, false
}

// FieldDef is a field of a target class.
type FieldDef struct {
	Name        string
	Type        TypeRef
	Flags       AccessFlags
	Owner       *ClassDef
	Value       any
	Annotations []*Annotation
}

// Ref returns a reference to the field.
func (f *FieldDef) Ref() FieldRef {
	return FieldRef{Owner: f.Owner.Ref(), Name: f.Name, Type: f.Type}
}

// IsStatic reports static fields.
func (f *FieldDef) IsStatic() bool { return f.Flags.Has(AccStatic) }

// MethodDef is a method of a target class.
type MethodDef struct {
	Name  string
	Proto *Prototype
	Flags AccessFlags
	Owner *ClassDef
	Body  Body
	// NewSlot marks a virtual method that does not override its base.
	NewSlot          bool
	Annotations      []*Annotation
	ParamAnnotations [][]*Annotation
	MapFileID        int
}

// Ref returns a reference to the method.
func (m *MethodDef) Ref() MethodRef {
	return MethodRef{Owner: m.Owner.Ref(), Name: m.Name, Proto: m.Proto}
}

// IsStatic reports static methods.
func (m *MethodDef) IsStatic() bool { return m.Flags.Has(AccStatic) }

// IsAbstract reports abstract methods.
func (m *MethodDef) IsAbstract() bool { return m.Flags.Has(AccAbstract) }

// IsDirect reports methods dispatched without a vtable.
func (m *MethodDef) IsDirect() bool {
	return m.Flags&(AccStatic|AccPrivate|AccConstructor) != 0
}

// ClassDef is an emitted class.
type ClassDef struct {
	Name      string
	Namespace string
	Flags     AccessFlags
	// Super is unset only for the universal root.
	Super        TypeRef
	Interfaces   []TypeRef
	Fields       []*FieldDef
	Methods      []*MethodDef
	Annotations  []*Annotation
	InnerClasses []*ClassDef
	Owner        *ClassDef
	// NullableMarker is the marker class registered for the struct this class backs.
	NullableMarker       *ClassDef
	GenericInstanceField *FieldDef
	SourceFile           string
	MapFileID            int

	frozen bool
}

// Fullname returns the slash separated class name; nested classes use '$'.
func (c *ClassDef) Fullname() string {
	if c.Owner != nil {
		return c.Owner.Fullname() + "$" + c.Name
	}
	if c.Namespace == "" {
		return c.Name
	}
	return c.Namespace + "/" + c.Name
}

// Ref returns a reference to the class.
func (c *ClassDef) Ref() TypeRef { return Class(c.Fullname()) }

// IsInterface reports interface classes.
func (c *ClassDef) IsInterface() bool { return c.Flags.Has(AccInterface) }

// AddInnerClass nests inner in c.
func (c *ClassDef) AddInnerClass(inner *ClassDef) error {
	if c.frozen {
		return ErrFrozen
	}
	inner.Owner = c
	c.InnerClasses = append(c.InnerClasses, inner)
	return nil
}

// RemoveInnerClass detaches inner from c.
func (c *ClassDef) RemoveInnerClass(inner *ClassDef) {
	for i, ic := range c.InnerClasses {
		if ic == inner {
			c.InnerClasses = append(c.InnerClasses[:i], c.InnerClasses[i+1:]...)
			return
		}
	}
}

// AddField appends f and sets its owner.
func (c *ClassDef) AddField(f *FieldDef) error {
	if c.frozen {
		return ErrFrozen
	}
	f.Owner = c
	c.Fields = append(c.Fields, f)
	return nil
}

// AddMethod appends m and sets its owner.
func (c *ClassDef) AddMethod(m *MethodDef) error {
	if c.frozen {
		return ErrFrozen
	}
	m.Owner = c
	c.Methods = append(c.Methods, m)
	return nil
}

// AddAnnotation attaches an annotation.
func (c *ClassDef) AddAnnotation(a *Annotation) error {
	if c.frozen {
		return ErrFrozen
	}
	c.Annotations = append(c.Annotations, a)
	return nil
}

// FieldNamed finds a declared field.
func (c *ClassDef) FieldNamed(name string) *FieldDef {
	for _, f := range c.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// MethodNamed finds the first declared method with the given name.
func (c *ClassDef) MethodNamed(name string) *MethodDef {
	for _, m := range c.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// HasMethod reports whether a method with name and an equal prototype exists.
func (c *ClassDef) HasMethod(name string, proto *Prototype) bool {
	for _, m := range c.Methods {
		if m.Name == name && m.Proto.Equal(proto) {
			return true
		}
	}
	return false
}

// ImplementsInterface reports whether c lists iface directly.
func (c *ClassDef) ImplementsInterface(iface TypeRef) bool {
	for _, i := range c.Interfaces {
		if i == iface {
			return true
		}
	}
	return false
}

// Freeze makes the class, its members and nested classes immutable.
func (c *ClassDef) Freeze() {
	c.frozen = true
	for _, m := range c.Methods {
		m.Proto.Freeze()
	}
	for _, ic := range c.InnerClasses {
		ic.Freeze()
	}
}

// Frozen reports whether Freeze was called.
func (c *ClassDef) Frozen() bool { return c.frozen }

// Walk visits c and its nested classes in pre-order.
func (c *ClassDef) Walk(fn func(*ClassDef)) {
	fn(c)
	for _, ic := range c.InnerClasses {
		ic.Walk(fn)
	}
}

// Validate checks structural invariants of a finished class.
func (c *ClassDef) Validate() error {
	name := c.Fullname()
	if c.Super.IsZero() && name != "java/lang/Object" {
		return fmt.Errorf("%s: missing super class", name)
	}
	seen := map[string]bool{}
	for _, m := range c.Methods {
		if !m.Proto.Frozen() {
			return fmt.Errorf("%s.%s: prototype not frozen", name, m.Name)
		}
		key := m.Name + m.Proto.Signature()
		if seen[key] {
			return fmt.Errorf("%s: duplicate method %s", name, key)
		}
		seen[key] = true
		needsBody := !m.Flags.Has(AccAbstract) && !m.Flags.Has(AccNative)
		switch {
		case needsBody && m.Body == nil:
			return fmt.Errorf("%s.%s: missing body", name, m.Name)
		case !needsBody && m.Body != nil:
			return fmt.Errorf("%s.%s: unexpected body", name, m.Name)
		}
		if m.Body != nil {
			if err := m.Body.Validate(); err != nil {
				return fmt.Errorf("%s.%s%s: %w", name, m.Name, m.Proto.Signature(), err)
			}
		}
	}
	fields := map[string]bool{}
	for _, f := range c.Fields {
		if fields[f.Name] {
			return fmt.Errorf("%s: duplicate field %s", name, f.Name)
		}
		fields[f.Name] = true
		if c.IsInterface() && !f.IsStatic() {
			return fmt.Errorf("%s: instance field %s in interface", name, f.Name)
		}
	}
	return nil
}

func (c *ClassDef) String() string {
	var sb strings.Builder
	sb.WriteString(c.Fullname())
	if !c.Super.IsZero() {
		sb.WriteString(" : ")
		sb.WriteString(c.Super.String())
	}
	return sb.String()
}
