package lower

import (
	"context"
	"slices"

	"dexlower/internal/dex"
	"dexlower/internal/model"
	"dexlower/internal/names"
)

type methodKind uint8

const (
	methodStandard methodKind = iota
	// methodNative is declared native and has no body.
	methodNative
	// methodRelocated is an extension of an imported type moved to the
	// generated code holder as a static method.
	methodRelocated
)

type methodBuilder struct {
	kind     methodKind
	src      *model.Method
	def      *dex.MethodDef
	prologue []dex.MethodRef
}

func kindOf(m *model.Method) methodKind {
	if m.Native || m.DllImport != "" {
		return methodNative
	}
	return methodStandard
}

// lowerMethod declares the target method of m in the host class of b.
func (c *compiler) lowerMethod(b *classBuilder, m *model.Method, kind methodKind) (*methodBuilder, error) {
	withThis := kind == methodRelocated && !m.Static
	p, paramAnns, err := c.buildPrototype(m, withThis)
	if err != nil {
		return nil, err
	}
	def := &dex.MethodDef{
		Name:             c.methodName(m),
		Proto:            p,
		Flags:            methodFlags(m, kind),
		ParamAnnotations: paramAnns,
		MapFileID:        c.nextID(),
	}
	if kind == methodRelocated {
		// extensions of different imported types share the holder
		def.Name = names.Unique(def.Name, func(n string) bool { return b.host.HasMethod(n, p) })
	}
	if b.host.HasMethod(def.Name, p) {
		return nil, newError(KindInvalidStructure, m.DeclaringType.FullName(), m.Name,
			"duplicate target method %s%s", def.Name, p.Signature())
	}
	if err := b.host.AddMethod(def); err != nil {
		return nil, &Error{Kind: KindInternal, Type: m.DeclaringType.FullName(), Member: m.Name, Err: err}
	}
	c.methods[m] = def
	mb := &methodBuilder{kind: kind, src: m, def: def}
	b.methods = append(b.methods, mb)
	return mb, nil
}

// fixUpMembers applies return type covariance to every method of b.
func fixUpMembers(c *compiler, b *classBuilder) error {
	for _, mb := range b.methods {
		if err := c.fixUpMethod(mb); err != nil {
			return err
		}
	}
	return nil
}

// fixUpMethod widens the return type of an override to the inherited one.
// When neither side is abstract the signature stays and the method takes a
// new virtual slot instead.
func (c *compiler) fixUpMethod(mb *methodBuilder) error {
	m := mb.src
	if m.IsConstructor() || m.IsStaticConstructor() || m.Static || mb.kind == methodRelocated {
		return nil
	}
	owner := m.DeclaringType.FullName()
	for _, ref := range m.Overrides {
		if c.module.Lookup(ref.Type) != nil && c.module.ResolveMethod(ref) == nil {
			return unresolved(owner, m.Name, "overridden method %s", ref)
		}
	}
	for _, base := range overrideOrder(m.Bases) {
		ret, err := c.dexType(base.Return)
		if err != nil {
			return unresolved(owner, m.Name, "return type %s of %s", base.Return, base.FullName())
		}
		if ret == mb.def.Proto.ReturnType() {
			continue
		}
		if !m.Abstract && !isAbstract(base) {
			mb.def.NewSlot = true
			continue
		}
		if err := mb.def.Proto.SetReturnType(ret); err != nil {
			return &Error{Kind: KindInternal, Type: owner, Member: m.Name, Err: err}
		}
	}
	return nil
}

// overrideOrder puts interface methods before class methods so the class
// base decides last.
func overrideOrder(bases []*model.Method) []*model.Method {
	out := slices.Clone(bases)
	slices.SortStableFunc(out, func(a, b *model.Method) int {
		return rank(a) - rank(b)
	})
	return out
}

func rank(m *model.Method) int {
	if m.DeclaringType != nil && m.DeclaringType.Kind == model.KindInterface {
		return 0
	}
	return 1
}

func isAbstract(m *model.Method) bool {
	return m.Abstract || m.DeclaringType != nil && m.DeclaringType.Kind == model.KindInterface
}

// generateMethod translates the body of one lowered method.
func (c *compiler) generateMethod(ctx context.Context, b *classBuilder, mb *methodBuilder) error {
	def := mb.def
	if def.IsAbstract() || def.Flags.Has(dex.AccNative) {
		return nil
	}
	body, err := c.translator.Translate(ctx, TranslateRequest{
		Source: mb.src, Method: def, Class: b.host, Prologue: mb.prologue,
	})
	if err != nil {
		return &Error{Kind: KindInternal, Type: mb.src.DeclaringType.FullName(), Member: mb.src.Name, Err: err}
	}
	if body == nil {
		return newError(KindInternal, mb.src.DeclaringType.FullName(), mb.src.Name, "translator returned no body")
	}
	def.Body = body
	return nil
}
