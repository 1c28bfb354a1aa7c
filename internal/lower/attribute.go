package lower

import (
	"errors"
	"strconv"

	"dexlower/internal/dex"
	"dexlower/internal/model"
	"dexlower/internal/names"
	"dexlower/internal/rl"
)

// attributeMapping is the annotation side of one attribute type: the
// annotation interface with its getters, one build method per constructor
// and the factory methods created so far.
type attributeMapping struct {
	builder *classBuilder
	iface   *dex.ClassDef

	fields     []*attrGetter
	properties []*attrGetter
	ctors      []*ctorMapping

	// factories buckets by Attribute.Hash; Equal decides within a bucket.
	factories map[uint64][]*factory
	created   int
}

// attrGetter is one annotation interface method. Getters return an array:
// empty means the value is absent.
type attrGetter struct {
	name   string
	method *dex.MethodDef
	elem   dex.TypeRef
	field  *model.Field
	setter *model.Method
}

type ctorMapping struct {
	ctor  *model.Method
	args  []*attrGetter
	build *dex.MethodDef
}

type factory struct {
	attr   *model.Attribute
	method *dex.MethodDef
}

func implementAttribute(c *compiler, b *classBuilder) error {
	if err := implementStandard(c, b); err != nil {
		return err
	}
	return c.buildAttributeInterface(b)
}

// buildAttributeInterface creates the nested annotation interface:
// getters for public fields, then settable properties, then constructor
// parameters, each name unique in the interface.
func (c *compiler) buildAttributeInterface(b *classBuilder) error {
	t, cls := b.typ, b.class
	simple := names.Unique("annotation", func(n string) bool {
		for _, ic := range cls.InnerClasses {
			if ic.Name == n {
				return true
			}
		}
		return false
	})
	iface := &dex.ClassDef{
		Name:       simple,
		Flags:      dex.AccPublic | dex.AccAbstract | dex.AccInterface | dex.AccAnnotation,
		Super:      refObject,
		Interfaces: []dex.TypeRef{refAnnotation},
		MapFileID:  c.nextID(),
	}
	if err := cls.AddInnerClass(iface); err != nil {
		return asError(err, t.FullName())
	}
	m := &attributeMapping{builder: b, iface: iface, factories: make(map[uint64][]*factory)}
	taken := names.Set{}
	add := func(base string, ref model.TypeRef, member string) (*attrGetter, error) {
		elem, err := c.dexType(ref)
		if err != nil {
			return nil, unresolved(t.FullName(), member, "attribute member type %s", ref)
		}
		name := taken.Claim(base)
		def, err := newMethod(iface, name, dex.AccPublic|dex.AccAbstract, proto(dex.ArrayOf(elem)))
		if err != nil {
			return nil, err
		}
		return &attrGetter{name: name, method: def, elem: elem}, nil
	}

	seen := map[string]bool{}
	for cur := t; cur != nil; cur = c.module.BaseType(cur) {
		for _, f := range cur.Fields {
			if seen[f.Name] || !f.Reachable || f.Static || f.Literal || f.Access != model.AccessPublic {
				continue
			}
			seen[f.Name] = true
			g, err := add(names.Field(f.Name), f.Type, f.Name)
			if err != nil {
				return err
			}
			g.field = f
			m.fields = append(m.fields, g)
		}
	}
	for cur := t; cur != nil; cur = c.module.BaseType(cur) {
		for _, p := range cur.Properties {
			if seen[p.Name] || !p.Reachable {
				continue
			}
			setter := settableProperty(cur, p.Name)
			if setter == nil {
				continue
			}
			seen[p.Name] = true
			g, err := add(names.Identifier(p.Name), p.Type, p.Name)
			if err != nil {
				return err
			}
			g.setter = setter
			m.properties = append(m.properties, g)
		}
	}
	arg := 0
	for _, ctor := range t.Constructors() {
		if !ctor.Reachable {
			continue
		}
		cm := &ctorMapping{ctor: ctor}
		for _, p := range ctor.Params {
			g, err := add("c"+strconv.Itoa(arg), p.Type, ctor.Name)
			if err != nil {
				return err
			}
			arg++
			cm.args = append(cm.args, g)
		}
		build, err := newMethod(cls, "__build"+strconv.Itoa(len(m.ctors)),
			dex.AccPublic|dex.AccStatic|dex.AccSynthetic, proto(cls.Ref(), iface.Ref()))
		if err != nil {
			return err
		}
		cm.build = build
		m.ctors = append(m.ctors, cm)
		b.later(func() error { return c.generateBuild(m, cm) })
	}
	if err := iface.AddAnnotation(defaultsAnnotation(iface)); err != nil {
		return asError(err, t.FullName())
	}
	c.attrs[t] = m
	return nil
}

// settableProperty finds the public instance setter of a property.
func settableProperty(t *model.Type, name string) *model.Method {
	for _, m := range t.Methods {
		if m.Property == name && m.Role == model.RoleSetter && m.Reachable &&
			m.Access == model.AccessPublic && !m.Static && len(m.Params) == 1 {
			return m
		}
	}
	return nil
}

// defaultsAnnotation gives every getter an empty array default.
func defaultsAnnotation(iface *dex.ClassDef) *dex.Annotation {
	value := &dex.Annotation{Type: iface.Ref(), Visibility: dex.VisibilityRuntime}
	for _, g := range iface.Methods {
		value.Arguments = append(value.Arguments, dex.Argument{Name: g.Name, Value: []any{}})
	}
	return &dex.Annotation{
		Type:       refAnnotationDefault,
		Visibility: dex.VisibilitySystem,
		Arguments:  []dex.Argument{{Name: "value", Value: value}},
	}
}

// readGetter calls a getter on the annotation and, when the returned array
// is not empty, loads its single element into dst and runs present.
func readGetter(body *rl.MethodBody, ann *rl.Register, g *attrGetter, dst *rl.Register, present func()) {
	body.Add(rl.InvokeInterface, g.method.Ref(), ann)
	arr := body.AllocateTemp(rl.Object)
	body.Add(rl.MoveResultObject, nil, arr)
	n := body.AllocateTemp(rl.Value)
	body.Add(rl.ArrayLength, nil, n, arr)
	skip := body.NewLabel()
	body.Add(rl.IfEqz, skip, n)
	body.Add(rl.AgetFor(g.elem), nil, dst, arr, constInt(body, 0))
	if present != nil {
		present()
	}
	body.Mark(skip)
}

// generateBuild emits __build<N>: construct through the constructor, then
// store every present field and property value.
func (c *compiler) generateBuild(m *attributeMapping, cm *ctorMapping) error {
	cls := m.builder.class
	owner := m.builder.typ.FullName()
	body := rl.NewBody(cm.build.Proto, true)
	ann := body.Param(0)
	inst := body.AllocateTemp(rl.Object)
	body.Add(rl.NewInstance, cls.Ref(), inst)
	args := []*rl.Register{inst}
	for _, g := range cm.args {
		dst := zeroValue(body, g.elem)
		readGetter(body, ann, g, dst, nil)
		args = append(args, dst)
	}
	ctor := c.methods[cm.ctor]
	if ctor == nil {
		return unresolved(owner, cm.ctor.Name, "constructor not lowered")
	}
	body.Add(rl.InvokeDirect, ctor.Ref(), args...)
	for _, g := range m.fields {
		fd := c.fields[g.field]
		if fd == nil {
			return unresolved(owner, g.field.Name, "attribute field not lowered")
		}
		dst := body.AllocateFor(g.elem)
		readGetter(body, ann, g, dst, func() {
			body.Add(rl.IputFor(g.elem), fd.Ref(), dst, inst)
		})
	}
	for _, g := range m.properties {
		set := c.methods[g.setter]
		if set == nil {
			return unresolved(owner, g.setter.Name, "property setter not lowered")
		}
		dst := body.AllocateFor(g.elem)
		readGetter(body, ann, g, dst, func() {
			body.Add(invokeOp(set), set.Ref(), inst, dst)
		})
	}
	body.Add(rl.ReturnObject, nil, inst)
	cm.build.Body = body
	return nil
}

// selectCtor picks the constructor mapping an application uses: the one
// whose parameter types match the argument slots, else the first with the
// right arity.
func (m *attributeMapping) selectCtor(a *model.Attribute) *ctorMapping {
	var fallback *ctorMapping
	for _, cm := range m.ctors {
		if len(cm.ctor.Params) != len(a.CtorArgs) {
			continue
		}
		exact := true
		for i, p := range cm.ctor.Params {
			if !p.Type.Equal(a.CtorArgs[i].Type) {
				exact = false
				break
			}
		}
		if exact {
			return cm
		}
		if fallback == nil {
			fallback = cm
		}
	}
	return fallback
}

func (m *attributeMapping) fieldGetter(name string) *attrGetter {
	for _, g := range m.fields {
		if g.field.Name == name {
			return g
		}
	}
	return nil
}

func (m *attributeMapping) propertyGetter(name string) *attrGetter {
	for _, g := range m.properties {
		if g.setter.Property == name {
			return g
		}
	}
	return nil
}

// factoryFor returns the factory method constructing a, creating it on the
// first request for a structurally new application.
func (c *compiler) factoryFor(m *attributeMapping, a *model.Attribute) (*ctorMapping, *dex.MethodDef, error) {
	owner := m.builder.typ.FullName()
	cm := m.selectCtor(a)
	if cm == nil {
		return nil, nil, unresolved(owner, model.CtorName, "no constructor takes %d arguments", len(a.CtorArgs))
	}
	h := a.Hash()
	for _, f := range m.factories[h] {
		if f.attr.Equal(a) {
			return cm, f.method, nil
		}
	}
	cls := m.builder.class
	name := names.Unique("__createInstance"+strconv.Itoa(m.created), func(n string) bool {
		return cls.MethodNamed(n) != nil
	})
	m.created++
	def := &dex.MethodDef{Name: name, Proto: proto(cls.Ref()), Flags: dex.AccPublic | dex.AccStatic | dex.AccSynthetic}
	if err := c.generateFactory(m, cm, a, def); err != nil {
		return nil, nil, err
	}
	if err := cls.AddMethod(def); err != nil {
		return nil, nil, asError(err, owner)
	}
	m.factories[h] = append(m.factories[h], &factory{attr: a, method: def})
	return cm, def, nil
}

// generateFactory emits the body of a factory: allocate, construct with the
// converted arguments, then assign the named fields and properties.
func (c *compiler) generateFactory(m *attributeMapping, cm *ctorMapping, a *model.Attribute, def *dex.MethodDef) error {
	owner := m.builder.typ.FullName()
	convErr := func(member string, err error) error {
		var le *Error
		if errors.As(err, &le) {
			return le
		}
		return &Error{Kind: KindUnsupportedConversion, Type: owner, Member: member, Err: err}
	}
	body := rl.NewBody(def.Proto, true)
	inst := body.AllocateTemp(rl.Object)
	body.Add(rl.NewInstance, m.builder.class.Ref(), inst)
	args := []*rl.Register{inst}
	for i, v := range a.CtorArgs {
		r, err := c.loadValue(body, v, cm.args[i].elem)
		if err != nil {
			return convErr(cm.args[i].name, err)
		}
		args = append(args, r)
	}
	ctor := c.methods[cm.ctor]
	if ctor == nil {
		return unresolved(owner, model.CtorName, "constructor not lowered")
	}
	body.Add(rl.InvokeDirect, ctor.Ref(), args...)
	for _, nv := range a.Fields {
		g := m.fieldGetter(nv.Name)
		if g == nil || c.fields[g.field] == nil {
			return unresolved(owner, nv.Name, "attribute field not found")
		}
		r, err := c.loadValue(body, nv.Value, g.elem)
		if err != nil {
			return convErr(nv.Name, err)
		}
		body.Add(rl.IputFor(g.elem), c.fields[g.field].Ref(), r, inst)
	}
	for _, nv := range a.Properties {
		g := m.propertyGetter(nv.Name)
		if g == nil || c.methods[g.setter] == nil {
			return unresolved(owner, nv.Name, "settable property not found")
		}
		set := c.methods[g.setter]
		r, err := c.loadValue(body, nv.Value, g.elem)
		if err != nil {
			return convErr(nv.Name, err)
		}
		body.Add(invokeOp(set), set.Ref(), inst, r)
	}
	body.Add(rl.ReturnObject, nil, inst)
	def.Body = body
	return nil
}
