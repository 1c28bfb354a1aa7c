package model

import "strings"

// Kind classifies a source type.
type Kind uint8

const (
	KindClass Kind = iota + 1
	KindInterface
	KindStruct
	KindEnum
	KindDelegate
	KindAttribute
	// KindAnnotation is an interface declared as a target annotation type.
	KindAnnotation
	// KindModule is the module-level placeholder type.
	KindModule
)

var kindNames = [...]string{
	KindClass:      "class",
	KindInterface:  "interface",
	KindStruct:     "struct",
	KindEnum:       "enum",
	KindDelegate:   "delegate",
	KindAttribute:  "attribute",
	KindAnnotation: "annotation",
	KindModule:     "module",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "unknown"
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name != "" && name == s {
			return Kind(k), true
		}
	}
	return 0, false
}

// Access is the managed member accessibility.
type Access uint8

const (
	AccessPrivate Access = iota
	AccessAssembly
	AccessFamilyAndAssembly
	AccessFamily
	AccessFamilyOrAssembly
	AccessPublic
)

var accessNames = map[string]Access{
	"private":            AccessPrivate,
	"internal":           AccessAssembly,
	"private protected":  AccessFamilyAndAssembly,
	"protected":          AccessFamily,
	"protected internal": AccessFamilyOrAssembly,
	"public":             AccessPublic,
}

// ParseAccess maps a C#-style accessibility keyword to Access.
func ParseAccess(s string) (Access, bool) {
	a, ok := accessNames[s]
	return a, ok
}

// ImportKind tells whether a type or member already exists in the target runtime.
type ImportKind uint8

const (
	ImportNone ImportKind = iota
	// ImportDex marks a type stubbed from a target binary library.
	ImportDex
	// ImportJava marks a type resolved through the class loader.
	ImportJava
)

// Type is a reachable source type. It is produced by the front end and is
// read-only to the lowering stage.
type Type struct {
	Namespace     string
	Name          string
	Kind          Kind
	Scope         string
	Token         uint32
	Base          *TypeRef
	Interfaces    []TypeRef
	GenericParams []string
	Fields        []*Field
	Methods       []*Method
	Properties    []*Property
	Nested        []*Type
	Attributes    []*Attribute

	Reachable bool
	Sealed    bool
	Abstract  bool
	Static    bool

	Import     ImportKind
	ImportName string

	// UsedInNullable is set when the type appears as T in Nullable<T>.
	UsedInNullable bool
	// EnumUnderlying is the numeric storage of an enum.
	EnumUnderlying Primitive
	// IgnoreAttributes suppresses annotation output for attributes of this type.
	IgnoreAttributes bool

	DeclaringType *Type
}

// FullName returns "Ns.Name" for top-level types and "Ns.Outer/Inner" for nested ones.
func (t *Type) FullName() string {
	if t == nil {
		return ""
	}
	if t.DeclaringType != nil {
		return t.DeclaringType.FullName() + "/" + t.Name
	}
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

// RootNamespace returns the namespace of the outermost declaring type.
func (t *Type) RootNamespace() string {
	for t.DeclaringType != nil {
		t = t.DeclaringType
	}
	return t.Namespace
}

// Ref returns a use-site reference to t.
func (t *Type) Ref() TypeRef { return Named(t.FullName()) }

// IsValueType reports whether t has value semantics.
func (t *Type) IsValueType() bool { return t.Kind == KindStruct || t.Kind == KindEnum }

// IsGeneric reports whether t declares generic parameters.
func (t *Type) IsGeneric() bool { return len(t.GenericParams) > 0 }

// BaseName returns the full name of the base type or "".
func (t *Type) BaseName() string {
	if t.Base == nil {
		return ""
	}
	return t.Base.Name
}

// FieldNamed finds a declared field by name.
func (t *Type) FieldNamed(name string) *Field {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// PropertyNamed finds a declared property by name.
func (t *Type) PropertyNamed(name string) *Property {
	for _, p := range t.Properties {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// MethodsNamed returns the declared methods called name.
func (t *Type) MethodsNamed(name string) []*Method {
	var out []*Method
	for _, m := range t.Methods {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// Method finds a method by name and parameter count; arity < 0 matches any.
func (t *Type) Method(name string, arity int) *Method {
	for _, m := range t.Methods {
		if m.Name == name && (arity < 0 || len(m.Params) == arity) {
			return m
		}
	}
	return nil
}

// Constructors returns the instance constructors of t.
func (t *Type) Constructors() []*Method {
	return t.MethodsNamed(CtorName)
}

// StaticConstructor returns the type initializer, if any.
func (t *Type) StaticConstructor() *Method {
	for _, m := range t.Methods {
		if m.Name == CctorName {
			return m
		}
	}
	return nil
}

// HasAttribute reports whether an attribute of the given type decorates t.
func (t *Type) HasAttribute(name string) bool {
	for _, a := range t.Attributes {
		if a.Type == name {
			return true
		}
	}
	return false
}

func (t *Type) String() string { return t.FullName() }

// Field is a declared field.
type Field struct {
	Name              string
	Type              TypeRef
	Access            Access
	Static            bool
	InitOnly          bool
	Literal           bool
	Constant          *Value
	CompilerGenerated bool
	Reachable         bool
	Import            bool
	// Interlocked marks fields targeted by atomic operations.
	Interlocked bool
	Volatile    bool
	Attributes  []*Attribute
	Token       uint32

	DeclaringType *Type
}

// Names of the special methods.
const (
	CtorName  = ".ctor"
	CctorName = ".cctor"
)

// PropertyRole marks accessor methods.
type PropertyRole uint8

const (
	RoleNone PropertyRole = iota
	RoleGetter
	RoleSetter
)

// Param is a method parameter.
type Param struct {
	Name       string
	Type       TypeRef
	Attributes []*Attribute
}

// MethodRef names a method by declaring type, name and arity.
type MethodRef struct {
	Type  string
	Name  string
	Arity int
}

func (r MethodRef) String() string {
	return r.Type + "::" + r.Name
}

// Method is a declared method.
type Method struct {
	Name          string
	Params        []Param
	Return        TypeRef
	Access        Access
	GenericParams []string

	Static   bool
	Virtual  bool
	Abstract bool
	NewSlot  bool
	HasBody  bool

	Reachable         bool
	CompilerGenerated bool
	// Import marks members that exist in the target runtime already.
	Import bool
	// Native marks members bound to a target native method.
	Native bool
	// DllImport names the native library for external calls.
	DllImport string
	// DexName overrides the converted target name.
	DexName string

	// NeedsTypeWitness and NeedsMethodWitness request the trailing generic
	// instance parameters.
	NeedsTypeWitness   bool
	NeedsMethodWitness bool

	// Overrides lists the base and interface methods this one implements.
	Overrides []MethodRef
	// Bases is resolved from Overrides by Module.Link.
	Bases []*Method

	Property string
	Role     PropertyRole

	Attributes []*Attribute
	// Body is opaque to lowering and handed to the body translator.
	Body  any
	Token uint32

	DeclaringType *Type
}

// IsConstructor reports whether m is an instance constructor.
func (m *Method) IsConstructor() bool { return m.Name == CtorName }

// IsStaticConstructor reports whether m is a type initializer.
func (m *Method) IsStaticConstructor() bool { return m.Name == CctorName }

// FullName returns "Type::Name".
func (m *Method) FullName() string {
	if m.DeclaringType == nil {
		return m.Name
	}
	return m.DeclaringType.FullName() + "::" + m.Name
}

func (m *Method) String() string {
	parts := make([]string, len(m.Params))
	for i, p := range m.Params {
		parts[i] = p.Type.String()
	}
	return m.Return.String() + " " + m.FullName() + "(" + strings.Join(parts, ",") + ")"
}

// Property groups accessor methods by name.
type Property struct {
	Name       string
	Type       TypeRef
	Reachable  bool
	Attributes []*Attribute
}

// NamedValue is a named field or property argument of an attribute.
type NamedValue struct {
	Name  string
	Value Value
}

// Attribute is a custom attribute application.
type Attribute struct {
	Type       string
	CtorArgs   []Value
	Fields     []NamedValue
	Properties []NamedValue
}
