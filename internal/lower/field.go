package lower

import (
	"dexlower/internal/dex"
	"dexlower/internal/model"
	"dexlower/internal/names"
	"dexlower/internal/rl"
)

type fieldKind uint8

const (
	fieldStandard fieldKind = iota
	// fieldEnumConstant holds one enum instance, typed as the enum class.
	fieldEnumConstant
	// fieldUpdater is the atomic updater companion of an interlocked field.
	fieldUpdater
)

type fieldBuilder struct {
	kind fieldKind
	src  *model.Field
	def  *dex.FieldDef
	// target is the field an updater serves.
	target *dex.FieldDef
}

// lowerField declares the target field of f in the host class of b.
func (c *compiler) lowerField(b *classBuilder, f *model.Field, kind fieldKind) (*fieldBuilder, error) {
	owner := f.DeclaringType.FullName()
	def := &dex.FieldDef{Name: names.Field(f.Name), Flags: fieldFlags(f)}
	switch kind {
	case fieldEnumConstant:
		def.Type = b.class.Ref()
		def.Flags = dex.AccPublic | dex.AccStatic | dex.AccFinal | dex.AccEnum
	default:
		t, err := c.dexType(f.Type)
		if err != nil {
			return nil, unresolved(owner, f.Name, "field type %s", f.Type)
		}
		def.Type = t
		if f.Constant != nil && def.IsStatic() {
			v, err := c.annotationValue(*f.Constant)
			if err != nil {
				return nil, &Error{Kind: KindUnsupportedConversion, Type: owner, Member: f.Name, Err: err}
			}
			def.Value = v
		}
	}
	if err := b.host.AddField(def); err != nil {
		return nil, &Error{Kind: KindInternal, Type: owner, Member: f.Name, Err: err}
	}
	c.fields[f] = def
	fb := &fieldBuilder{kind: kind, src: f, def: def}
	b.fields = append(b.fields, fb)
	if f.Interlocked && !def.IsStatic() {
		if err := c.addUpdater(b, fb); err != nil {
			return nil, err
		}
	}
	return fb, nil
}

// addUpdater gives an interlocked instance field its static updater
// companion; the field itself becomes volatile.
func (c *compiler) addUpdater(b *classBuilder, fb *fieldBuilder) error {
	var t dex.TypeRef
	switch {
	case fb.def.Type == dex.Int:
		t = refAtomicInt
	case fb.def.Type == dex.Long:
		t = refAtomicLong
	case fb.def.Type.IsReference():
		t = refAtomicRef
	default:
		return newError(KindUnsupportedConversion, fb.src.DeclaringType.FullName(), fb.src.Name,
			"no atomic updater for %s", fb.def.Type)
	}
	fb.def.Flags |= dex.AccVolatile
	name := uniqueField(b.host, fb.def.Name+updaterSuffix)
	def, err := newField(b.host, name, t, dex.AccPrivate|dex.AccStatic|dex.AccFinal|dex.AccSynthetic)
	if err != nil {
		return err
	}
	upd := &fieldBuilder{kind: fieldUpdater, def: def, target: fb.def}
	b.fields = append(b.fields, upd)
	b.updaters = append(b.updaters, upd)
	return nil
}

// implementUpdaterInit synthesizes $initUpdaters and makes the class
// initializer call it first.
func (c *compiler) implementUpdaterInit(b *classBuilder) error {
	if len(b.updaters) == 0 {
		return nil
	}
	cls := b.host
	init, err := newMethod(cls, initUpdaters, dex.AccPrivate|dex.AccStatic|dex.AccSynthetic, proto(dex.Void))
	if err != nil {
		return err
	}
	b.later(func() error {
		body := rl.NewBody(init.Proto, true)
		owner := loadClass(body, cls.Ref())
		for _, u := range b.updaters {
			name := body.AllocateTemp(rl.Object)
			body.Add(rl.ConstString, u.target.Name, name)
			var ref dex.MethodRef
			args := []*rl.Register{owner}
			switch u.def.Type {
			case refAtomicRef:
				ref = methodRef(refAtomicRef, "newUpdater", refAtomicRef, refClass, refClass, refString)
				args = append(args, loadClass(body, u.target.Type))
			default:
				ref = methodRef(u.def.Type, "newUpdater", u.def.Type, refClass, refString)
			}
			body.Add(rl.InvokeStatic, ref, append(args, name)...)
			res := body.AllocateTemp(rl.Object)
			body.Add(rl.MoveResultObject, nil, res)
			body.Add(rl.SputObject, u.def.Ref(), res)
		}
		body.Add(rl.ReturnVoid, nil)
		init.Body = body
		return nil
	})
	for _, mb := range b.methods {
		if mb.def.Name == names.Clinit {
			mb.prologue = append(mb.prologue, init.Ref())
			return nil
		}
	}
	clinit, err := newMethod(cls, names.Clinit, dex.AccStatic|dex.AccConstructor, proto(dex.Void))
	if err != nil {
		return err
	}
	b.later(func() error {
		body := rl.NewBody(clinit.Proto, true)
		body.Add(rl.InvokeStatic, init.Ref())
		body.Add(rl.ReturnVoid, nil)
		clinit.Body = body
		return nil
	})
	return nil
}
