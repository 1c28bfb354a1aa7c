package lower

import (
	"fmt"

	"fortio.org/safecast"

	"dexlower/internal/dex"
	"dexlower/internal/model"
	"dexlower/internal/names"
	"dexlower/internal/rl"
)

// enumState is the materialized shape of an enum class.
type enumState struct {
	storage dex.TypeRef
	value   *dex.FieldDef
	info    *dex.FieldDef
	def     *dex.FieldDef
	ctor    *dex.MethodDef
	plan    []enumEntry
	// constants maps a declared constant to its static field; unreachable
	// constants have none but are still registered.
	constants map[*model.Field]*dex.FieldDef
}

// enumEntry is one declared constant in declaration order.
type enumEntry struct {
	field   *model.Field
	bits    int64
	ordinal int32
	// first is the index of the entry whose instance this one shares, or
	// the entry's own index when it creates a new instance.
	first int
}

// planEnum orders the declared constants, assigns ordinals and decides
// which constants share an instance because their values repeat.
func planEnum(t *model.Type, storage dex.TypeRef) ([]enumEntry, error) {
	var out []enumEntry
	seen := map[int64]int{}
	for _, f := range t.Fields {
		if !f.Literal || f.Constant == nil {
			continue
		}
		bits, err := enumBits(t, *f.Constant, storage)
		if err != nil {
			return nil, &Error{Kind: KindUnsupportedConversion, Type: t.FullName(), Member: f.Name, Err: err}
		}
		ord, err := safecast.Conv[int32](len(out))
		if err != nil {
			return nil, &Error{Kind: KindInternal, Type: t.FullName(), Member: f.Name, Err: err}
		}
		first, dup := seen[bits]
		if !dup {
			first = len(out)
			seen[bits] = first
		}
		out = append(out, enumEntry{field: f, bits: bits, ordinal: ord, first: first})
	}
	return out, nil
}

// enumBits is the stored payload of an enum constant. Constants of an
// unsigned underlying type keep their bit pattern in the signed storage of
// the same width.
func enumBits(t *model.Type, v model.Value, storage dex.TypeRef) (int64, error) {
	if t == nil || !t.EnumUnderlying.Unsigned() || v.Kind == model.ValUint {
		return primitiveBits(v, storage)
	}
	if storage.IsWide() {
		return v.Int64(), nil
	}
	u, err := safecast.Conv[uint32](v.Int64())
	if err != nil {
		return 0, fmt.Errorf("%d does not fit %s: %w", v.Int64(), t.EnumUnderlying, err)
	}
	return int64(int32(u)), nil
}

func createEnum(c *compiler, b *classBuilder) error {
	if err := createStandard(c, b); err != nil {
		return err
	}
	b.class.Flags |= dex.AccEnum | dex.AccFinal
	info := &classBuilder{variant: variantEnumInfo, typ: b.typ, group: b.group, parent: b, underlying: b}
	b.group.builders = append(b.group.builders, info)
	b.nested = append(b.nested, info)
	b.enumInfo = info
	return nil
}

func createEnumInfo(c *compiler, b *classBuilder) error {
	owner := b.parent.class
	simple := names.Unique(enumInfoClass, func(n string) bool {
		for _, ic := range owner.InnerClasses {
			if ic.Name == n {
				return true
			}
		}
		return false
	})
	_, err := c.newClass(b, simple, dex.AccPublic|dex.AccFinal|dex.AccSynthetic)
	return err
}

// implementEnum declares the value field, the constructor, the registry
// fields, one static field per constant and the conversion methods.
func implementEnum(c *compiler, b *classBuilder) error {
	t, cls := b.typ, b.class
	switch {
	case b.nullableBase != nil:
		cls.Super = b.nullableBase.class.Ref()
		cls.NullableMarker = b.nullableBase.class
	default:
		cls.Super = refEnum
	}
	if err := c.implementInterfaces(b); err != nil {
		return err
	}
	storage := enumStorage(t)
	plan, err := planEnum(t, storage)
	if err != nil {
		return err
	}
	st := &enumState{storage: storage, plan: plan, constants: make(map[*model.Field]*dex.FieldDef)}
	b.enum = st

	if st.value, err = newField(cls, enumValueField, storage, dex.AccProtected|dex.AccFinal); err != nil {
		return err
	}
	if st.info, err = newField(cls, enumInfoField, refEnumInfo, dex.AccPrivate|dex.AccStatic|dex.AccFinal|dex.AccSynthetic); err != nil {
		return err
	}
	if st.def, err = newField(cls, enumDefaultField, cls.Ref(), dex.AccPublic|dex.AccStatic|dex.AccFinal|dex.AccSynthetic); err != nil {
		return err
	}
	for _, e := range plan {
		if !e.field.Reachable {
			continue
		}
		fb, err := c.lowerField(b, e.field, fieldEnumConstant)
		if err != nil {
			return err
		}
		st.constants[e.field] = fb.def
	}
	for _, m := range t.Methods {
		if !m.Reachable || m.Import || m.IsConstructor() || m.IsStaticConstructor() {
			continue
		}
		if _, err := c.lowerMethod(b, m, kindOf(m)); err != nil {
			return err
		}
	}

	ctorProto := proto(dex.Void, refString, dex.Int, storage)
	if st.ctor, err = newMethod(cls, names.Init, dex.AccProtected|dex.AccConstructor, ctorProto); err != nil {
		return err
	}
	clinit, err := newMethod(cls, names.Clinit, dex.AccStatic|dex.AccConstructor, proto(dex.Void))
	if err != nil {
		return err
	}
	intValue, err := newMethod(cls, "IntValue", dex.AccPublic|dex.AccFinal, proto(dex.Int))
	if err != nil {
		return err
	}
	longValue, err := newMethod(cls, "LongValue", dex.AccPublic|dex.AccFinal, proto(dex.Long))
	if err != nil {
		return err
	}
	unbox, err := newMethod(cls, "Unbox", dex.AccPublic|dex.AccStatic, proto(cls.Ref(), refObject))
	if err != nil {
		return err
	}
	b.later(func() error {
		st.ctor.Body = enumCtorBody(st, cls)
		intValue.Body = enumValueBody(st, intValue)
		longValue.Body = enumValueBody(st, longValue)
		unbox.Body = enumUnboxBody(st, cls, unbox)
		body, err := enumInitBody(st, b, clinit)
		if err != nil {
			return err
		}
		clinit.Body = body
		return nil
	})
	return nil
}

func enumCtorBody(st *enumState, cls *dex.ClassDef) *rl.MethodBody {
	body := rl.NewBody(st.ctor.Proto, false)
	super := methodRef(cls.Super, names.Init, dex.Void, refString, dex.Int)
	body.Add(rl.InvokeDirect, super, body.This(), body.Param(0), body.Param(1))
	body.Add(rl.IputFor(st.storage), st.value.Ref(), body.Param(2), body.This())
	body.Add(rl.ReturnVoid, nil)
	return body
}

// enumValueBody returns the underlying value, widened or narrowed to the
// method's return type.
func enumValueBody(st *enumState, m *dex.MethodDef) *rl.MethodBody {
	body := rl.NewBody(m.Proto, false)
	v := body.AllocateFor(st.storage)
	body.Add(rl.IgetFor(st.storage), st.value.Ref(), v, body.This())
	ret := m.Proto.ReturnType()
	switch {
	case ret == st.storage:
	case ret == dex.Long:
		w := body.AllocateTemp(rl.Wide)
		body.Add(rl.IntToLong, nil, w, v)
		v = w
	default:
		n := body.AllocateTemp(rl.Value)
		body.Add(rl.LongToInt, nil, n, v)
		v = n
	}
	body.Add(rl.ReturnFor(ret), nil, v)
	return body
}

// enumUnboxBody returns an instance unchanged and maps a boxed number
// through the registry.
func enumUnboxBody(st *enumState, cls *dex.ClassDef, m *dex.MethodDef) *rl.MethodBody {
	body := rl.NewBody(m.Proto, true)
	obj := body.Param(0)
	ok := body.AllocateTemp(rl.Value)
	body.Add(rl.InstanceOf, cls.Ref(), ok, obj)
	boxed := body.NewLabel()
	body.Add(rl.IfEqz, boxed, ok)
	same := body.AllocateTemp(rl.Object)
	body.Add(rl.MoveObject, nil, same, obj)
	body.Add(rl.CheckCast, cls.Ref(), same)
	body.Add(rl.ReturnObject, nil, same)
	body.Mark(boxed)
	unboxName := "UnboxInteger"
	if st.storage == dex.Long {
		unboxName = "UnboxLong"
	}
	body.Add(rl.InvokeStatic, methodRef(refBoxing, unboxName, st.storage, refObject), obj)
	v := body.AllocateFor(st.storage)
	body.Add(rl.MoveResultFor(st.storage), nil, v)
	info := body.AllocateTemp(rl.Object)
	body.Add(rl.SgetObject, st.info.Ref(), info)
	body.Add(rl.InvokeVirtual, methodRef(refEnumInfo, "GetValue", refEnum, st.storage), info, v)
	out := body.AllocateTemp(rl.Object)
	body.Add(rl.MoveResultObject, nil, out)
	body.Add(rl.CheckCast, cls.Ref(), out)
	body.Add(rl.ReturnObject, nil, out)
	return body
}

// enumInitBody builds the registry: constants with a repeated value reuse
// the first instance, new instances are registered under their value, and
// the first registered instance becomes the default.
func enumInitBody(st *enumState, b *classBuilder, clinit *dex.MethodDef) (*rl.MethodBody, error) {
	cls := b.class
	infoCls := b.enumInfo.class
	if infoCls == nil {
		return nil, fmt.Errorf("enum %s has no registry class", b.typ.FullName())
	}
	body := rl.NewBody(clinit.Proto, true)
	info := body.AllocateTemp(rl.Object)
	body.Add(rl.NewInstance, infoCls.Ref(), info)
	body.Add(rl.InvokeDirect, methodRef(infoCls.Ref(), names.Init, dex.Void), info)
	body.Add(rl.SputObject, st.info.Ref(), info)

	add := methodRef(refEnumInfo, "Add", dex.Void, st.storage, refString, refEnum)
	instances := make([]*rl.Register, len(st.plan))
	for i, e := range st.plan {
		if e.first != i {
			instances[i] = instances[e.first]
		} else {
			inst := body.AllocateTemp(rl.Object)
			body.Add(rl.NewInstance, cls.Ref(), inst)
			name := body.AllocateTemp(rl.Object)
			body.Add(rl.ConstString, e.field.Name, name)
			val := body.AllocateFor(st.storage)
			if st.storage.IsWide() {
				body.Add(rl.ConstWide, e.bits, val)
			} else {
				body.Add(rl.Const, int32(e.bits), val)
			}
			body.Add(rl.InvokeDirect, st.ctor.Ref(), inst, name, constInt(body, e.ordinal), val)
			body.Add(rl.InvokeVirtual, add, info, val, name, inst)
			instances[i] = inst
		}
		if f := st.constants[e.field]; f != nil {
			body.Add(rl.SputObject, f.Ref(), instances[i])
		}
	}
	var def *rl.Register
	if len(instances) > 0 {
		def = instances[0]
	} else {
		def = body.AllocateTemp(rl.Object)
		body.Add(rl.InvokeVirtual, methodRef(refEnumInfo, "GetValue", refEnum, st.storage), info, zeroValue(body, st.storage))
		body.Add(rl.MoveResultObject, nil, def)
		body.Add(rl.CheckCast, cls.Ref(), def)
	}
	body.Add(rl.SputObject, st.def.Ref(), def)
	body.Add(rl.ReturnVoid, nil)
	return body, nil
}

// implementEnumInfo derives the registry class from EnumInfo and gives it
// a default constructor plus the Create fallback for unnamed values.
func implementEnumInfo(c *compiler, b *classBuilder) error {
	cls := b.class
	enum := b.underlying
	cls.Super = refEnumInfo
	st := enum.enum
	if st == nil {
		return newError(KindInternal, b.typ.FullName(), enumInfoClass, "enum state missing")
	}
	ctor, err := newMethod(cls, names.Init, dex.AccPublic|dex.AccConstructor, proto(dex.Void))
	if err != nil {
		return err
	}
	create, err := newMethod(cls, "Create", dex.AccProtected, proto(refEnum, st.storage))
	if err != nil {
		return err
	}
	b.later(func() error {
		body := rl.NewBody(ctor.Proto, false)
		bx, _ := boxOf(st.storage)
		typ := body.AllocateTemp(rl.Object)
		body.Add(rl.SgetObject, bx.typeOf, typ)
		body.Add(rl.InvokeDirect, methodRef(refEnumInfo, names.Init, dex.Void, refClass), body.This(), typ)
		body.Add(rl.ReturnVoid, nil)
		ctor.Body = body

		cb := rl.NewBody(create.Proto, false)
		inst := cb.AllocateTemp(rl.Object)
		cb.Add(rl.NewInstance, enum.class.Ref(), inst)
		name := cb.AllocateTemp(rl.Object)
		cb.Add(rl.ConstString, "?", name)
		cb.Add(rl.InvokeDirect, st.ctor.Ref(), inst, name, constInt(cb, -1), cb.Param(0))
		cb.Add(rl.ReturnObject, nil, inst)
		create.Body = cb
		return nil
	})
	return nil
}
