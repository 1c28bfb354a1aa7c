package lower

import (
	"slices"

	"dexlower/internal/dex"
	"dexlower/internal/diag"
	"dexlower/internal/mapping"
	"dexlower/internal/model"
	"dexlower/internal/names"
)

func createStandard(c *compiler, b *classBuilder) error {
	if _, err := c.newClass(b, names.Class(b.typ.Name), classFlags(b.typ)); err != nil {
		return err
	}
	b.class.SourceFile = b.typ.Scope
	return createNested(c, b)
}

func implementStandard(c *compiler, b *classBuilder) error {
	if err := c.implementSuper(b); err != nil {
		return err
	}
	if err := c.implementInterfaces(b); err != nil {
		return err
	}
	c.implementCloneable(b)
	return c.createMembers(b, memberFilter(b.typ))
}

// implementSuper derives the class from its source base, or from the
// nullable base companion when the type has one.
func (c *compiler) implementSuper(b *classBuilder) error {
	t, cls := b.typ, b.class
	switch {
	case b.nullableBase != nil:
		cls.Super = b.nullableBase.class.Ref()
	case t.Base != nil:
		super, err := c.dexType(*t.Base)
		if err != nil {
			return unresolved(t.FullName(), "", "base type %s", t.Base)
		}
		cls.Super = super
	case t.Kind == model.KindInterface:
		cls.Super = refObject
	default:
		return unresolved(t.FullName(), "", "type has no base type")
	}
	if b.nullableMarker != nil {
		cls.NullableMarker = b.nullableMarker.class
	}
	return nil
}

func (c *compiler) implementInterfaces(b *classBuilder) error {
	for _, ref := range b.typ.Interfaces {
		iface, err := c.dexType(ref)
		if err != nil {
			return unresolved(b.typ.FullName(), "", "interface %s", ref)
		}
		if !b.class.ImplementsInterface(iface) {
			b.class.Interfaces = append(b.class.Interfaces, iface)
		}
	}
	return nil
}

// implementCloneable adds java/lang/Cloneable to classes rooted directly in
// framework or imported types; module bases already carry it.
func (c *compiler) implementCloneable(b *classBuilder) {
	t := b.typ
	if t.Kind == model.KindInterface || t.Static {
		return
	}
	if base := c.module.BaseType(t); base != nil && base.Import == model.ImportNone {
		return
	}
	if !b.class.ImplementsInterface(refCloneable) {
		b.class.Interfaces = append(b.class.Interfaces, refCloneable)
	}
}

// memberFilter selects the members a type's own class declares. Statics of
// interfaces move to the constants holder.
func memberFilter(t *model.Type) func(static bool) bool {
	if t.Kind == model.KindInterface {
		return func(static bool) bool { return !static }
	}
	return func(bool) bool { return true }
}

// createMembers declares every reachable, non-imported field and method.
func (c *compiler) createMembers(b *classBuilder, keep func(static bool) bool) error {
	t := b.typ
	for _, f := range t.Fields {
		if !f.Reachable || f.Import || !keep(f.Static || f.Literal) {
			continue
		}
		if _, err := c.lowerField(b, f, fieldStandard); err != nil {
			return err
		}
	}
	if t.IsGeneric() && !t.Static && t.Kind != model.KindInterface && t.Import == model.ImportNone {
		gf, err := newField(b.class, genericInstanceField, refClassArray, dex.AccProtected|dex.AccSynthetic)
		if err != nil {
			return err
		}
		b.class.GenericInstanceField = gf
	}
	for _, m := range t.Methods {
		if !m.Reachable || m.Import || !keep(m.Static) {
			continue
		}
		if _, err := c.lowerMethod(b, m, kindOf(m)); err != nil {
			return err
		}
	}
	return c.implementUpdaterInit(b)
}

func implementApplication(c *compiler, b *classBuilder) error {
	if err := implementStandard(c, b); err != nil {
		return err
	}
	if c.app == "" {
		c.app = b.class.Fullname()
	}
	hasDefault := slices.ContainsFunc(b.typ.Constructors(), func(m *model.Method) bool {
		return m.Access == model.AccessPublic && len(m.Params) == 0
	})
	if !hasDefault {
		c.warn(diag.LowApplicationConstructor, b.typ.FullName(), "",
			"application class needs a public constructor without parameters")
	}
	return nil
}

// generateStandard translates the bodies of lowered methods, then runs the
// synthesized bodies queued during earlier phases.
func generateStandard(c *compiler, b *classBuilder) error {
	for _, mb := range b.methods {
		if err := c.generateMethod(c.ctx, b, mb); err != nil {
			return err
		}
	}
	for _, fn := range b.bodies {
		if err := fn(); err != nil {
			return asError(err, b.typ.FullName())
		}
	}
	return nil
}

// recordClass appends the mapping entry of b. Nullable companions are
// recorded under the source name with a "?" suffix.
func recordClass(c *compiler, b *classBuilder, rec mapping.Recorder) {
	cls := b.host
	if cls == nil {
		return
	}
	name := b.typ.FullName()
	switch b.variant {
	case variantNullableBase, variantNullableMarker:
		name += "?"
	}
	tr := rec.RecordType(name, b.typ.Scope, cls.Fullname(), cls.MapFileID, int(b.typ.Token))
	for _, fb := range b.fields {
		if fb.src == nil {
			continue
		}
		tr.RecordField(fb.src.Name, fb.src.Type.String(), fb.def.Name, fb.def.Type.Descriptor())
	}
	for _, mb := range b.methods {
		tr.RecordMethod(mb.src.Name, mb.src.String(), mb.def.Name, mb.def.Proto.Signature(), mb.def.MapFileID)
	}
}
