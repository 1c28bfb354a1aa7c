package lower

import (
	"dexlower/internal/dex"
	"dexlower/internal/model"
	"dexlower/internal/names"
	"dexlower/internal/rl"
)

// A value type used as T? gets two companions. The base class sits between
// the struct and its source base; the marker class only answers instance-of
// checks for the nullable form. Enums get the base class alone.

func createNullableBase(c *compiler, b *classBuilder) error {
	simple := names.Class(b.typ.Name) + nullableBase
	_, err := c.newClass(b, simple, dex.AccPublic|dex.AccAbstract|dex.AccSynthetic)
	return err
}

func implementNullableBase(c *compiler, b *classBuilder) error {
	t, cls := b.typ, b.class
	switch {
	case t.Base != nil:
		super, err := c.dexType(*t.Base)
		if err != nil {
			return unresolved(t.FullName(), "", "base type %s", t.Base)
		}
		cls.Super = super
	case t.Kind == model.KindEnum:
		cls.Super = refEnum
	default:
		cls.Super = refObject
	}
	if t.Kind == model.KindEnum {
		cls.Interfaces = append(cls.Interfaces, refNullableMarker)
	}
	if err := c.addUnderlying(b); err != nil {
		return err
	}
	return c.forwardConstructors(b)
}

// addUnderlying declares the static class reference back to the real
// value type.
func (c *compiler) addUnderlying(b *classBuilder) error {
	if b.underlying == nil || b.underlying.class == nil {
		return newError(KindInternal, b.typ.FullName(), underlyingField, "nullable companion without value type")
	}
	f, err := newField(b.class, underlyingField, refClass, dex.AccPublic|dex.AccStatic|dex.AccFinal|dex.AccSynthetic)
	if err != nil {
		return err
	}
	f.Value = b.underlying.class.Ref()
	return nil
}

// forwardConstructors mirrors the reachable non-private constructors of a
// module base. Framework bases get the constructor the runtime class has.
func (c *compiler) forwardConstructors(b *classBuilder) error {
	t, cls := b.typ, b.class
	var protos []*dex.Prototype
	if base := c.module.BaseType(t); base != nil && base.Import == model.ImportNone {
		for _, ctor := range base.Constructors() {
			if !ctor.Reachable || ctor.Access == model.AccessPrivate {
				continue
			}
			p, _, err := c.buildPrototype(ctor, false)
			if err != nil {
				return err
			}
			protos = append(protos, p)
		}
	} else if t.Kind == model.KindEnum {
		protos = append(protos, dex.NewPrototype(dex.Void,
			dex.Parameter{Name: "name", Type: refString}, dex.Parameter{Name: "ordinal", Type: dex.Int}))
	} else {
		protos = append(protos, dex.NewPrototype(dex.Void))
	}
	for _, p := range protos {
		if cls.HasMethod(names.Init, p) {
			continue
		}
		p.Freeze()
		ctor, err := newMethod(cls, names.Init, dex.AccProtected|dex.AccConstructor, p)
		if err != nil {
			return err
		}
		super := dex.MethodRef{Owner: cls.Super, Name: names.Init, Proto: p}
		b.later(func() error {
			body := rl.NewBody(ctor.Proto, false)
			body.Add(rl.InvokeDirect, super, append([]*rl.Register{body.This()}, body.Params()...)...)
			body.Add(rl.ReturnVoid, nil)
			ctor.Body = body
			return nil
		})
	}
	return nil
}

func createNullableMarker(c *compiler, b *classBuilder) error {
	simple := names.Class(b.typ.Name) + nullableMarker
	_, err := c.newClass(b, simple, dex.AccPublic|dex.AccFinal|dex.AccAbstract|dex.AccSynthetic)
	return err
}

func implementNullableMarker(c *compiler, b *classBuilder) error {
	b.class.Super = refObject
	b.class.Interfaces = append(b.class.Interfaces, refNullableMarker)
	return c.addUnderlying(b)
}
