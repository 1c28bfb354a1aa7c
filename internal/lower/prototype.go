package lower

import (
	"fmt"

	"dexlower/internal/dex"
	"dexlower/internal/diag"
	"dexlower/internal/model"
	"dexlower/internal/names"
)

// buildPrototype converts the signature of m. withThis prepends the receiver
// as an explicit first parameter, for instance methods relocated to a static
// holder. Parameters whose type does not resolve degrade to Object with a
// warning; an unresolved return type is fatal. Witness parameters come last.
func (c *compiler) buildPrototype(m *model.Method, withThis bool) (*dex.Prototype, [][]*dex.Annotation, error) {
	owner := m.DeclaringType.FullName()
	ret, err := c.dexType(m.Return)
	if err != nil {
		return nil, nil, unresolved(owner, m.Name, "return type %s", m.Return)
	}
	var params []dex.Parameter
	var anns [][]*dex.Annotation
	annotated := false
	add := func(name string, t dex.TypeRef, ann *dex.Annotation) {
		params = append(params, dex.Parameter{Name: name, Type: t})
		if ann != nil {
			annotated = true
			anns = append(anns, []*dex.Annotation{ann})
		} else {
			anns = append(anns, nil)
		}
	}
	if withThis {
		this, err := c.dexType(m.DeclaringType.Ref())
		if err != nil {
			return nil, nil, unresolved(owner, m.Name, "declaring type")
		}
		add("this", this, nil)
	}
	for i, prm := range m.Params {
		t, err := c.dexType(prm.Type)
		if err != nil {
			c.warn(diag.LowUnresolvedParamType, owner, m.Name,
				fmt.Sprintf("parameter %d type %s not found, using java/lang/Object", i, prm.Type))
			t = refObject
		}
		name := prm.Name
		if name == "" {
			name = paramName(i)
		}
		add(names.Identifier(name), t, nil)
	}
	if m.NeedsTypeWitness {
		add(typeWitnessParam, refClassArray, &dex.Annotation{Type: refGenericTypeArg, Visibility: dex.VisibilityRuntime})
	}
	if m.NeedsMethodWitness {
		add(methodWitnessParam, refClassArray, &dex.Annotation{Type: refGenericMethArg, Visibility: dex.VisibilityRuntime})
	}
	if !annotated {
		anns = nil
	}
	return dex.NewPrototype(ret, params...), anns, nil
}

// methodName returns the target name of m. Overrides of imported methods
// keep the imported name.
func (c *compiler) methodName(m *model.Method) string {
	if m.DexName != "" {
		return m.DexName
	}
	if m.IsConstructor() || m.IsStaticConstructor() {
		return names.Method(m.Name)
	}
	for _, base := range m.Bases {
		if base.DeclaringType != nil && base.DeclaringType.Import != model.ImportNone {
			return c.methodName(base)
		}
	}
	return names.Method(m.Name)
}
