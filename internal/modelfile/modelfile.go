// Package modelfile reads a model.Module from its TOML description.
//
// The format mirrors the model types one to one. Type references use the
// textual form of model.TypeRef ("int", "Demo.Point?", "string[]", "!0").
// Constant values are tables with a type and a value:
//
//	args = [{type = "int", value = 3}, {type = "Demo.Color", kind = "enum", value = 1}]
//
// Method references are written "Type::Name/arity"; the arity may be omitted.
package modelfile

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"dexlower/internal/model"
)

type rawFile struct {
	Module      string       `toml:"module"`
	JavaClasses []string     `toml:"java_classes"`
	Types       []rawType    `toml:"types"`
	Closures    []rawClosure `toml:"closures"`
}

type rawType struct {
	Namespace        string         `toml:"namespace"`
	Name             string         `toml:"name"`
	Kind             string         `toml:"kind"`
	Scope            string         `toml:"scope"`
	Token            uint32         `toml:"token"`
	Base             string         `toml:"base"`
	Interfaces       []string       `toml:"interfaces"`
	GenericParams    []string       `toml:"generic_params"`
	Reachable        *bool          `toml:"reachable"`
	Sealed           bool           `toml:"sealed"`
	Abstract         bool           `toml:"abstract"`
	Static           bool           `toml:"static"`
	Import           string         `toml:"import"`
	ImportName       string         `toml:"import_name"`
	UsedInNullable   bool           `toml:"used_in_nullable"`
	EnumUnderlying   string         `toml:"enum_underlying"`
	IgnoreAttributes bool           `toml:"ignore_attributes"`
	Fields           []rawField     `toml:"fields"`
	Methods          []rawMethod    `toml:"methods"`
	Properties       []rawProperty  `toml:"properties"`
	Attributes       []rawAttribute `toml:"attributes"`
	Nested           []rawType      `toml:"nested"`
}

type rawField struct {
	Name              string         `toml:"name"`
	Type              string         `toml:"type"`
	Access            string         `toml:"access"`
	Static            bool           `toml:"static"`
	ReadOnly          bool           `toml:"readonly"`
	Literal           bool           `toml:"literal"`
	Value             *rawValue      `toml:"value"`
	CompilerGenerated bool           `toml:"compiler_generated"`
	Reachable         *bool          `toml:"reachable"`
	Import            bool           `toml:"import"`
	Interlocked       bool           `toml:"interlocked"`
	Volatile          bool           `toml:"volatile"`
	Attributes        []rawAttribute `toml:"attributes"`
	Token             uint32         `toml:"token"`
}

type rawParam struct {
	Name       string         `toml:"name"`
	Type       string         `toml:"type"`
	Attributes []rawAttribute `toml:"attributes"`
}

type rawMethod struct {
	Name              string         `toml:"name"`
	Params            []rawParam     `toml:"params"`
	Return            string         `toml:"return"`
	Access            string         `toml:"access"`
	GenericParams     []string       `toml:"generic_params"`
	Static            bool           `toml:"static"`
	Virtual           bool           `toml:"virtual"`
	Abstract          bool           `toml:"abstract"`
	NewSlot           bool           `toml:"new_slot"`
	HasBody           *bool          `toml:"has_body"`
	Body              string         `toml:"body"`
	Reachable         *bool          `toml:"reachable"`
	CompilerGenerated bool           `toml:"compiler_generated"`
	Import            bool           `toml:"import"`
	Native            bool           `toml:"native"`
	DllImport         string         `toml:"dll_import"`
	DexName           string         `toml:"dex_name"`
	TypeWitness       bool           `toml:"type_witness"`
	MethodWitness     bool           `toml:"method_witness"`
	Overrides         []string       `toml:"overrides"`
	Property          string         `toml:"property"`
	Role              string         `toml:"role"`
	Attributes        []rawAttribute `toml:"attributes"`
	Token             uint32         `toml:"token"`
}

type rawProperty struct {
	Name       string         `toml:"name"`
	Type       string         `toml:"type"`
	Reachable  *bool          `toml:"reachable"`
	Attributes []rawAttribute `toml:"attributes"`
}

type rawAttribute struct {
	Type       string     `toml:"type"`
	Args       []rawValue `toml:"args"`
	Fields     []rawNamed `toml:"fields"`
	Properties []rawNamed `toml:"properties"`
}

type rawValue struct {
	Type  string     `toml:"type"`
	Kind  string     `toml:"kind"`
	Value any        `toml:"value"`
	Boxed *rawValue  `toml:"boxed"`
	Elems []rawValue `toml:"elems"`
}

type rawNamed struct {
	Name  string     `toml:"name"`
	Type  string     `toml:"type"`
	Kind  string     `toml:"kind"`
	Value any        `toml:"value"`
	Boxed *rawValue  `toml:"boxed"`
	Elems []rawValue `toml:"elems"`
}

type rawClosure struct {
	Delegate   string   `toml:"delegate"`
	Target     string   `toml:"target"`
	TypeArgs   []string `toml:"type_args"`
	MethodArgs []string `toml:"method_args"`
}

// Load reads and links the module described by path.
func Load(path string) (*model.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes TOML text into a linked module.
func Parse(text string) (*model.Module, error) {
	var raw rawFile
	meta, err := toml.Decode(text, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %q", undecoded[0].String())
	}
	m := &model.Module{Name: raw.Module, JavaClasses: raw.JavaClasses}
	var errs []error
	for i := range raw.Types {
		t, err := convertType(&raw.Types[i])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		m.Types = append(m.Types, t)
	}
	for _, rc := range raw.Closures {
		c, err := convertClosure(rc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		m.Closures = append(m.Closures, c)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := m.Link(); err != nil {
		return nil, err
	}
	return m, nil
}

func orTrue(b *bool) bool { return b == nil || *b }

func parseRef(s, what string) (model.TypeRef, error) {
	ref, err := model.ParseTypeRef(s)
	if err != nil {
		return model.TypeRef{}, fmt.Errorf("%s: %w", what, err)
	}
	return ref, nil
}

func parseAccess(s string, what string) (model.Access, error) {
	if s == "" {
		return model.AccessPrivate, nil
	}
	a, ok := model.ParseAccess(s)
	if !ok {
		return 0, fmt.Errorf("%s: unknown access %q", what, s)
	}
	return a, nil
}

func convertType(rt *rawType) (*model.Type, error) {
	if rt.Name == "" {
		return nil, errors.New("type without name")
	}
	name := rt.Name
	if rt.Namespace != "" {
		name = rt.Namespace + "." + rt.Name
	}
	kind := model.KindClass
	if rt.Kind != "" {
		k, ok := model.ParseKind(rt.Kind)
		if !ok {
			return nil, fmt.Errorf("%s: unknown kind %q", name, rt.Kind)
		}
		kind = k
	}
	t := &model.Type{
		Namespace:        rt.Namespace,
		Name:             rt.Name,
		Kind:             kind,
		Scope:            rt.Scope,
		Token:            rt.Token,
		GenericParams:    rt.GenericParams,
		Reachable:        orTrue(rt.Reachable),
		Sealed:           rt.Sealed,
		Abstract:         rt.Abstract,
		Static:           rt.Static,
		ImportName:       rt.ImportName,
		UsedInNullable:   rt.UsedInNullable,
		IgnoreAttributes: rt.IgnoreAttributes,
	}
	switch rt.Import {
	case "":
	case "dex":
		t.Import = model.ImportDex
	case "java":
		t.Import = model.ImportJava
	default:
		return nil, fmt.Errorf("%s: unknown import kind %q", name, rt.Import)
	}
	if rt.Base != "" {
		base, err := parseRef(rt.Base, name+" base")
		if err != nil {
			return nil, err
		}
		t.Base = &base
	}
	for _, s := range rt.Interfaces {
		ref, err := parseRef(s, name+" interface")
		if err != nil {
			return nil, err
		}
		t.Interfaces = append(t.Interfaces, ref)
	}
	if kind == model.KindEnum {
		t.EnumUnderlying = model.PrimInt32
		if rt.EnumUnderlying != "" {
			p, ok := model.ParsePrimitive(rt.EnumUnderlying)
			if !ok || !p.Integral() {
				return nil, fmt.Errorf("%s: bad enum underlying type %q", name, rt.EnumUnderlying)
			}
			t.EnumUnderlying = p
		}
	}
	var err error
	if t.Attributes, err = convertAttributes(rt.Attributes, name); err != nil {
		return nil, err
	}
	for _, rf := range rt.Fields {
		f, err := convertField(rf, name)
		if err != nil {
			return nil, err
		}
		t.Fields = append(t.Fields, f)
	}
	for _, rm := range rt.Methods {
		m, err := convertMethod(rm, name)
		if err != nil {
			return nil, err
		}
		t.Methods = append(t.Methods, m)
	}
	for _, rp := range rt.Properties {
		what := name + "." + rp.Name
		ref, err := parseRef(rp.Type, what)
		if err != nil {
			return nil, err
		}
		attrs, err := convertAttributes(rp.Attributes, what)
		if err != nil {
			return nil, err
		}
		t.Properties = append(t.Properties, &model.Property{
			Name: rp.Name, Type: ref, Reachable: orTrue(rp.Reachable), Attributes: attrs,
		})
	}
	for i := range rt.Nested {
		n, err := convertType(&rt.Nested[i])
		if err != nil {
			return nil, err
		}
		t.Nested = append(t.Nested, n)
	}
	return t, nil
}

func convertField(rf rawField, owner string) (*model.Field, error) {
	what := owner + "." + rf.Name
	ref, err := parseRef(rf.Type, what)
	if err != nil {
		return nil, err
	}
	access, err := parseAccess(rf.Access, what)
	if err != nil {
		return nil, err
	}
	attrs, err := convertAttributes(rf.Attributes, what)
	if err != nil {
		return nil, err
	}
	f := &model.Field{
		Name:              rf.Name,
		Type:              ref,
		Access:            access,
		Static:            rf.Static || rf.Literal,
		InitOnly:          rf.ReadOnly,
		Literal:           rf.Literal,
		CompilerGenerated: rf.CompilerGenerated,
		Reachable:         orTrue(rf.Reachable),
		Import:            rf.Import,
		Interlocked:       rf.Interlocked,
		Volatile:          rf.Volatile,
		Attributes:        attrs,
		Token:             rf.Token,
	}
	if rf.Value != nil {
		v, err := convertValue(*rf.Value, what)
		if err != nil {
			return nil, err
		}
		f.Constant = &v
	}
	return f, nil
}

func convertMethod(rm rawMethod, owner string) (*model.Method, error) {
	what := owner + "::" + rm.Name
	ret := model.Void()
	if rm.Return != "" {
		r, err := parseRef(rm.Return, what+" return")
		if err != nil {
			return nil, err
		}
		ret = r
	}
	access, err := parseAccess(rm.Access, what)
	if err != nil {
		return nil, err
	}
	m := &model.Method{
		Name:               rm.Name,
		Return:             ret,
		Access:             access,
		GenericParams:      rm.GenericParams,
		Static:             rm.Static || rm.Name == model.CctorName,
		Virtual:            rm.Virtual || rm.Abstract,
		Abstract:           rm.Abstract,
		NewSlot:            rm.NewSlot,
		Reachable:          orTrue(rm.Reachable),
		CompilerGenerated:  rm.CompilerGenerated,
		Import:             rm.Import,
		Native:             rm.Native,
		DllImport:          rm.DllImport,
		DexName:            rm.DexName,
		NeedsTypeWitness:   rm.TypeWitness,
		NeedsMethodWitness: rm.MethodWitness,
		Property:           rm.Property,
		Token:              rm.Token,
	}
	if rm.HasBody != nil {
		m.HasBody = *rm.HasBody
	} else {
		m.HasBody = !rm.Abstract && !rm.Native && !rm.Import && rm.DllImport == ""
	}
	if rm.Body != "" {
		m.Body = rm.Body
	}
	switch rm.Role {
	case "":
	case "get":
		m.Role = model.RoleGetter
	case "set":
		m.Role = model.RoleSetter
	default:
		return nil, fmt.Errorf("%s: unknown accessor role %q", what, rm.Role)
	}
	for _, rp := range rm.Params {
		ref, err := parseRef(rp.Type, what+" parameter "+rp.Name)
		if err != nil {
			return nil, err
		}
		attrs, err := convertAttributes(rp.Attributes, what)
		if err != nil {
			return nil, err
		}
		m.Params = append(m.Params, model.Param{Name: rp.Name, Type: ref, Attributes: attrs})
	}
	for _, s := range rm.Overrides {
		ref, err := ParseMethodRef(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", what, err)
		}
		m.Overrides = append(m.Overrides, ref)
	}
	if m.Attributes, err = convertAttributes(rm.Attributes, what); err != nil {
		return nil, err
	}
	return m, nil
}

// ParseMethodRef parses "Type::Name" or "Type::Name/arity".
func ParseMethodRef(s string) (model.MethodRef, error) {
	typ, rest, ok := strings.Cut(s, "::")
	if !ok || typ == "" || rest == "" {
		return model.MethodRef{}, fmt.Errorf("bad method reference %q", s)
	}
	ref := model.MethodRef{Type: typ, Name: rest, Arity: -1}
	if name, arity, ok := strings.Cut(rest, "/"); ok {
		n, err := strconv.Atoi(arity)
		if err != nil || n < 0 {
			return model.MethodRef{}, fmt.Errorf("bad arity in method reference %q", s)
		}
		ref.Name, ref.Arity = name, n
	}
	return ref, nil
}

func convertClosure(rc rawClosure) (model.Closure, error) {
	target, err := ParseMethodRef(rc.Target)
	if err != nil {
		return model.Closure{}, fmt.Errorf("closure of %s: %w", rc.Delegate, err)
	}
	c := model.Closure{Delegate: rc.Delegate, Target: target}
	for _, s := range rc.TypeArgs {
		ref, err := parseRef(s, "closure type argument")
		if err != nil {
			return model.Closure{}, err
		}
		c.TypeArgs = append(c.TypeArgs, ref)
	}
	for _, s := range rc.MethodArgs {
		ref, err := parseRef(s, "closure method argument")
		if err != nil {
			return model.Closure{}, err
		}
		c.MethodArgs = append(c.MethodArgs, ref)
	}
	return c, nil
}

func convertAttributes(raws []rawAttribute, what string) ([]*model.Attribute, error) {
	var out []*model.Attribute
	for _, ra := range raws {
		where := what + " [" + ra.Type + "]"
		a := &model.Attribute{Type: ra.Type}
		for _, rv := range ra.Args {
			v, err := convertValue(rv, where)
			if err != nil {
				return nil, err
			}
			a.CtorArgs = append(a.CtorArgs, v)
		}
		var err error
		if a.Fields, err = convertNamed(ra.Fields, where); err != nil {
			return nil, err
		}
		if a.Properties, err = convertNamed(ra.Properties, where); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func convertNamed(raws []rawNamed, what string) ([]model.NamedValue, error) {
	var out []model.NamedValue
	for _, rn := range raws {
		v, err := convertValue(rawValue{Type: rn.Type, Kind: rn.Kind, Value: rn.Value, Boxed: rn.Boxed, Elems: rn.Elems}, what+"."+rn.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, model.NamedValue{Name: rn.Name, Value: v})
	}
	return out, nil
}

func convertValue(rv rawValue, what string) (model.Value, error) {
	typ, err := parseRef(rv.Type, what)
	if err != nil {
		return model.Value{}, err
	}
	v := model.Value{Type: typ}
	switch rv.Kind {
	case "null":
		v.Kind = model.ValNull
		return v, nil
	case "enum":
		v.Kind = model.ValEnum
		n, err := asInt(rv.Value, what)
		v.Int = n
		return v, err
	case "type":
		return typeValue(v, rv.Value, what)
	case "boxed":
		return boxedValue(v, rv, what)
	case "":
	default:
		return model.Value{}, fmt.Errorf("%s: unknown value kind %q", what, rv.Kind)
	}

	switch {
	case typ.Kind == model.RefArray:
		v.Kind = model.ValArray
		if rv.Value == nil && rv.Elems == nil {
			v.Kind = model.ValNull
			return v, nil
		}
		elems := rv.Elems
		if elems == nil {
			items, ok := rv.Value.([]any)
			if !ok {
				return model.Value{}, fmt.Errorf("%s: array value must be a list", what)
			}
			for _, it := range items {
				elems = append(elems, rawValue{Type: typ.Elem.String(), Value: it})
			}
		}
		for i, re := range elems {
			if re.Type == "" {
				re.Type = typ.Elem.String()
			}
			e, err := convertValue(re, fmt.Sprintf("%s[%d]", what, i))
			if err != nil {
				return model.Value{}, err
			}
			v.Elems = append(v.Elems, e)
		}
		return v, nil
	case typ.IsPrimitive():
		return primitiveValue(v, rv.Value, what)
	case typ.Is(model.StringName):
		if rv.Value == nil {
			v.Kind = model.ValNull
			return v, nil
		}
		s, ok := rv.Value.(string)
		if !ok {
			return model.Value{}, fmt.Errorf("%s: string value expected", what)
		}
		v.Kind, v.Str = model.ValString, s
		return v, nil
	case typ.Is(model.TypeName):
		return typeValue(v, rv.Value, what)
	case typ.Is(model.ObjectName):
		if rv.Boxed == nil {
			v.Kind = model.ValNull
			return v, nil
		}
		return boxedValue(v, rv, what)
	case typ.Kind == model.RefNamed && rv.Value != nil:
		v.Kind = model.ValEnum
		n, err := asInt(rv.Value, what)
		v.Int = n
		return v, err
	}
	v.Kind = model.ValNull
	return v, nil
}

func typeValue(v model.Value, raw any, what string) (model.Value, error) {
	if raw == nil {
		v.Kind = model.ValNull
		return v, nil
	}
	s, ok := raw.(string)
	if !ok {
		return model.Value{}, fmt.Errorf("%s: type value must be a string", what)
	}
	ref, err := parseRef(s, what)
	if err != nil {
		return model.Value{}, err
	}
	v.Kind, v.Ref = model.ValType, ref
	return v, nil
}

func boxedValue(v model.Value, rv rawValue, what string) (model.Value, error) {
	if rv.Boxed == nil {
		return model.Value{}, fmt.Errorf("%s: boxed value without payload", what)
	}
	inner, err := convertValue(*rv.Boxed, what)
	if err != nil {
		return model.Value{}, err
	}
	v.Kind, v.Boxed = model.ValBoxed, &inner
	return v, nil
}

func primitiveValue(v model.Value, raw any, what string) (model.Value, error) {
	p := v.Type.Prim
	switch {
	case p == model.PrimBool:
		b, ok := raw.(bool)
		if !ok {
			return model.Value{}, fmt.Errorf("%s: bool value expected", what)
		}
		v.Kind, v.Bool = model.ValBool, b
	case p == model.PrimFloat32 || p == model.PrimFloat64:
		switch x := raw.(type) {
		case float64:
			v.Float = x
		case int64:
			v.Float = float64(x)
		default:
			return model.Value{}, fmt.Errorf("%s: numeric value expected", what)
		}
		v.Kind = model.ValFloat
	case p == model.PrimChar:
		if s, ok := raw.(string); ok {
			r := []rune(s)
			if len(r) != 1 {
				return model.Value{}, fmt.Errorf("%s: char value must be one character", what)
			}
			v.Kind, v.Int = model.ValInt, int64(r[0])
			return v, nil
		}
		n, err := asInt(raw, what)
		if err != nil {
			return model.Value{}, err
		}
		v.Kind, v.Int = model.ValInt, n
	case p.Unsigned():
		n, err := asInt(raw, what)
		if err != nil {
			return model.Value{}, err
		}
		if n < 0 {
			return model.Value{}, fmt.Errorf("%s: negative value for %s", what, p)
		}
		v.Kind, v.Uint = model.ValUint, uint64(n)
	default:
		n, err := asInt(raw, what)
		if err != nil {
			return model.Value{}, err
		}
		v.Kind, v.Int = model.ValInt, n
	}
	return v, nil
}

func asInt(raw any, what string) (int64, error) {
	switch x := raw.(type) {
	case int64:
		return x, nil
	case float64:
		if x != float64(int64(x)) {
			return 0, fmt.Errorf("%s: integer value expected", what)
		}
		return int64(x), nil
	}
	return 0, fmt.Errorf("%s: integer value expected", what)
}
