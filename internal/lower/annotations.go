package lower

import (
	"fmt"
	"slices"

	"dexlower/internal/dex"
	"dexlower/internal/diag"
	"dexlower/internal/model"
	"dexlower/internal/trace"
)

// annotateStandard attaches the attribute annotations of the type and its
// members, and the properties annotation.
func annotateStandard(c *compiler, b *classBuilder) error {
	if b.primaryOf() {
		anns, err := c.attributeAnnotations(b.typ.Attributes, false)
		if err != nil {
			return err
		}
		for _, a := range anns {
			if err := b.class.AddAnnotation(a); err != nil {
				return asError(err, b.typ.FullName())
			}
		}
	}
	for _, fb := range b.fields {
		if fb.src == nil {
			continue
		}
		anns, err := c.attributeAnnotations(fb.src.Attributes, false)
		if err != nil {
			return err
		}
		fb.def.Annotations = append(fb.def.Annotations, anns...)
	}
	for _, mb := range b.methods {
		if err := c.annotateMethod(mb); err != nil {
			return err
		}
	}
	if c.opts.PropertyAnnotations && b.primaryOf() && len(b.typ.Properties) > 0 {
		a, err := c.propertiesAnnotation(b)
		if err != nil {
			return err
		}
		if a != nil {
			if err := b.class.AddAnnotation(a); err != nil {
				return asError(err, b.typ.FullName())
			}
		}
	}
	return nil
}

func (c *compiler) annotateMethod(mb *methodBuilder) error {
	m, def := mb.src, mb.def
	anns, err := c.attributeAnnotations(m.Attributes, false)
	if err != nil {
		return err
	}
	def.Annotations = append(def.Annotations, anns...)
	offset := 0
	if mb.kind == methodRelocated && !m.Static {
		offset = 1
	}
	for i, p := range m.Params {
		anns, err := c.attributeAnnotations(p.Attributes, true)
		if err != nil {
			return err
		}
		if len(anns) == 0 {
			continue
		}
		if def.ParamAnnotations == nil {
			def.ParamAnnotations = make([][]*dex.Annotation, def.Proto.ParamCount())
		}
		def.ParamAnnotations[i+offset] = append(def.ParamAnnotations[i+offset], anns...)
	}
	return nil
}

// attributeAnnotations converts attribute applications into one IAttributes
// annotation plus a plain annotation per AnnotationAttribute application.
// A failure inside an attribute type's mapping abandons that attribute
// type, not the decorated one.
func (c *compiler) attributeAnnotations(attrs []*model.Attribute, customOnly bool) ([]*dex.Annotation, error) {
	var items []any
	var out []*dex.Annotation
	for _, a := range attrs {
		if a.Type == model.AnnotationAttrName {
			if customOnly || len(a.CtorArgs) == 0 || a.CtorArgs[0].Kind != model.ValType {
				continue
			}
			t, err := c.dexType(a.CtorArgs[0].Ref)
			if err != nil {
				return nil, unresolved("", "", "annotation type %s", a.CtorArgs[0].Ref)
			}
			out = append(out, &dex.Annotation{Type: t, Visibility: dex.VisibilityRuntime})
			continue
		}
		at := c.module.Lookup(a.Type)
		if at == nil || at.IgnoreAttributes {
			continue
		}
		m := c.attrs[at]
		if m == nil || m.builder.dead() {
			continue
		}
		item, err := c.attributeItem(m, a)
		if err != nil {
			c.fail(m.builder, err)
			continue
		}
		c.attrItems[item] = m
		items = append(items, item)
	}
	if len(items) > 0 {
		wrapper := &dex.Annotation{
			Type:       refIAttributes,
			Visibility: dex.VisibilityRuntime,
			Arguments:  []dex.Argument{{Name: "Attributes", Value: items}},
		}
		out = append([]*dex.Annotation{wrapper}, out...)
	}
	return out, nil
}

// attributeItem builds the IAttribute annotation of one application: the
// build method, the attribute class, the factory and the annotation
// interface instance carrying the values.
func (c *compiler) attributeItem(m *attributeMapping, a *model.Attribute) (*dex.Annotation, error) {
	cm, factory, err := c.factoryFor(m, a)
	if err != nil {
		return nil, err
	}
	owner := m.builder.typ.FullName()
	value := &dex.Annotation{Type: m.iface.Ref(), Visibility: dex.VisibilityRuntime}
	add := func(g *attrGetter, member string, v model.Value) error {
		av, err := c.annotationValue(v)
		if err != nil {
			return &Error{Kind: KindUnsupportedConversion, Type: owner, Member: member, Err: err}
		}
		value.Arguments = append(value.Arguments, dex.Argument{Name: g.name, Value: []any{av}})
		return nil
	}
	for i, v := range a.CtorArgs {
		if err := add(cm.args[i], cm.args[i].name, v); err != nil {
			return nil, err
		}
	}
	for _, nv := range a.Fields {
		if err := add(m.fieldGetter(nv.Name), nv.Name, nv.Value); err != nil {
			return nil, err
		}
	}
	for _, nv := range a.Properties {
		if err := add(m.propertyGetter(nv.Name), nv.Name, nv.Value); err != nil {
			return nil, err
		}
	}
	return &dex.Annotation{
		Type:       refIAttribute,
		Visibility: dex.VisibilityRuntime,
		Arguments: []dex.Argument{
			{Name: "AttributeBuilder", Value: cm.build.Name},
			{Name: "AttributeType", Value: m.builder.class.Ref()},
			{Name: "FactoryMethod", Value: factory.Name},
			{Name: "Annotation", Value: value},
		},
	}, nil
}

// propertiesAnnotation describes the accessor pairs of the class. Getters
// with parameters are skipped; more than one setter candidate is ambiguous.
func (c *compiler) propertiesAnnotation(b *classBuilder) (*dex.Annotation, error) {
	var props []any
	for _, p := range b.typ.Properties {
		if !p.Reachable {
			continue
		}
		var get *dex.MethodDef
		var sets []*dex.MethodDef
		skip := false
		for _, mb := range b.methods {
			m := mb.src
			if m.Property != p.Name || m.Static {
				continue
			}
			switch m.Role {
			case model.RoleGetter:
				if len(m.Params) > 0 {
					trace.Point(c.tracer, trace.ScopeMember, "property:"+p.Name, "indexed getter skipped")
					skip = true
				}
				get = mb.def
			case model.RoleSetter:
				if len(m.Params) != 1 {
					c.warn(diag.LowSetterArity, b.typ.FullName(), p.Name,
						fmt.Sprintf("setter %s takes %d parameters, property skipped", m.Name, len(m.Params)))
					skip = true
					continue
				}
				sets = append(sets, mb.def)
			}
		}
		if skip || (get == nil && len(sets) == 0) {
			continue
		}
		if len(sets) > 1 {
			c.warn(diag.LowAmbiguousProperty, b.typ.FullName(), p.Name, "more than one setter matches the property")
			continue
		}
		item := &dex.Annotation{Type: refIProperty, Visibility: dex.VisibilityRuntime}
		item.Arguments = append(item.Arguments, dex.Argument{Name: "Name", Value: p.Name})
		if get != nil {
			item.Arguments = append(item.Arguments, dex.Argument{Name: "Get", Value: get.Name})
		}
		if len(sets) == 1 {
			item.Arguments = append(item.Arguments, dex.Argument{Name: "Set", Value: sets[0].Name})
		}
		anns, err := c.attributeAnnotations(p.Attributes, true)
		if err != nil {
			return nil, asError(err, b.typ.FullName())
		}
		if len(anns) > 0 {
			item.Arguments = append(item.Arguments, dex.Argument{Name: "Attributes", Value: anns[0]})
		}
		props = append(props, item)
	}
	if len(props) == 0 {
		return nil, nil
	}
	return &dex.Annotation{
		Type:       refIProperties,
		Visibility: dex.VisibilityRuntime,
		Arguments:  []dex.Argument{{Name: "Properties", Value: props}},
	}, nil
}

// pruneAttributeItems removes the IAttribute items of attribute types that
// were abandoned after the items were built, on every emitted class and
// member. IAttributes annotations left without items are dropped too.
func (c *compiler) pruneAttributeItems() {
	if len(c.attrItems) == 0 {
		return
	}
	for _, cls := range c.pkg.classes {
		cls.Walk(func(cd *dex.ClassDef) {
			cd.Annotations = c.pruneAnnotations(cd.Annotations)
			for _, f := range cd.Fields {
				f.Annotations = c.pruneAnnotations(f.Annotations)
			}
			for _, m := range cd.Methods {
				m.Annotations = c.pruneAnnotations(m.Annotations)
				for i := range m.ParamAnnotations {
					m.ParamAnnotations[i] = c.pruneAnnotations(m.ParamAnnotations[i])
				}
			}
		})
	}
}

func (c *compiler) pruneAnnotations(as []*dex.Annotation) []*dex.Annotation {
	if len(as) == 0 {
		return as
	}
	out := as[:0]
	for _, a := range as {
		switch a.Type {
		case refIAttributes:
			if !c.pruneItems(a) {
				continue
			}
		case refIProperties:
			c.pruneProperties(a)
		}
		out = append(out, a)
	}
	return out
}

// pruneItems filters the items of an IAttributes annotation and reports
// whether any remain.
func (c *compiler) pruneItems(wrapper *dex.Annotation) bool {
	left := 0
	for i, arg := range wrapper.Arguments {
		items, ok := arg.Value.([]any)
		if arg.Name != "Attributes" || !ok {
			continue
		}
		kept := items[:0]
		for _, it := range items {
			if ann, ok := it.(*dex.Annotation); ok {
				if m := c.attrItems[ann]; m != nil && m.builder.dead() {
					continue
				}
			}
			kept = append(kept, it)
		}
		wrapper.Arguments[i].Value = kept
		left += len(kept)
	}
	return left > 0
}

func (c *compiler) pruneProperties(a *dex.Annotation) {
	for _, arg := range a.Arguments {
		props, ok := arg.Value.([]any)
		if arg.Name != "Properties" || !ok {
			continue
		}
		for _, p := range props {
			prop, ok := p.(*dex.Annotation)
			if !ok {
				continue
			}
			prop.Arguments = slices.DeleteFunc(prop.Arguments, func(pa dex.Argument) bool {
				w, ok := pa.Value.(*dex.Annotation)
				return pa.Name == "Attributes" && ok && !c.pruneItems(w)
			})
		}
	}
}
