package lower

import (
	"fmt"

	"fortio.org/safecast"

	"dexlower/internal/dex"
	"dexlower/internal/names"
	"dexlower/internal/rl"
)

// boxValue wraps a primitive register in its wrapper class.
func boxValue(body *rl.MethodBody, r *rl.Register, prim dex.TypeRef) (*rl.Register, error) {
	bx, ok := boxOf(prim)
	if !ok {
		return nil, newError(KindUnsupportedConversion, "", "", "cannot box %s", prim)
	}
	body.Add(rl.InvokeStatic, bx.valueOf(), r)
	out := body.AllocateTemp(rl.Object)
	body.Add(rl.MoveResultObject, nil, out)
	return out, nil
}

// unboxValue extracts a primitive from a reference register.
func unboxValue(body *rl.MethodBody, r *rl.Register, prim dex.TypeRef) (*rl.Register, error) {
	bx, ok := boxOf(prim)
	if !ok {
		return nil, newError(KindUnsupportedConversion, "", "", "cannot unbox %s", prim)
	}
	tmp := body.AllocateTemp(rl.Object)
	body.Add(rl.MoveObject, nil, tmp, r)
	body.Add(rl.CheckCast, bx.class, tmp)
	body.Add(rl.InvokeVirtual, bx.unboxRef(), tmp)
	out := body.AllocateFor(prim)
	body.Add(rl.MoveResultFor(prim), nil, out)
	return out, nil
}

// coerce converts the value in r from one target type to another, boxing,
// unboxing, widening or casting as needed.
func coerce(body *rl.MethodBody, r *rl.Register, from, to dex.TypeRef) (*rl.Register, error) {
	switch {
	case from == to:
		return r, nil
	case from.IsPrimitive() && to.IsReference():
		out, err := boxValue(body, r, from)
		if err != nil {
			return nil, err
		}
		if bx, _ := boxOf(from); to != refObject && to != bx.class {
			body.Add(rl.CheckCast, to, out)
		}
		return out, nil
	case from.IsReference() && to.IsPrimitive():
		return unboxValue(body, r, to)
	case from.IsReference() && to.IsReference():
		out := body.AllocateTemp(rl.Object)
		body.Add(rl.MoveObject, nil, out, r)
		body.Add(rl.CheckCast, to, out)
		return out, nil
	case from == dex.Int && to == dex.Long:
		out := body.AllocateTemp(rl.Wide)
		body.Add(rl.IntToLong, nil, out, r)
		return out, nil
	case from == dex.Long && to == dex.Int:
		out := body.AllocateTemp(rl.Value)
		body.Add(rl.LongToInt, nil, out, r)
		return out, nil
	case narrowInt(from) && narrowInt(to):
		return r, nil
	}
	return nil, newError(KindUnsupportedConversion, "", "", "cannot convert %s to %s", from, to)
}

// narrowInt reports the 32-bit integral types, which share one register form.
func narrowInt(t dex.TypeRef) bool {
	switch t {
	case dex.Boolean, dex.Byte, dex.Short, dex.Char, dex.Int:
		return true
	}
	return false
}

// loadClass loads the class object of t, using the wrapper TYPE field for
// primitives.
func loadClass(body *rl.MethodBody, t dex.TypeRef) *rl.Register {
	r := body.AllocateTemp(rl.Object)
	if bx, ok := boxOf(t); ok {
		body.Add(rl.SgetObject, bx.typeOf, r)
	} else {
		body.Add(rl.ConstClass, t, r)
	}
	return r
}

// zeroValue loads the default value of t into a fresh register.
func zeroValue(body *rl.MethodBody, t dex.TypeRef) *rl.Register {
	r := body.AllocateFor(t)
	if t.IsWide() {
		body.Add(rl.ConstWide, int64(0), r)
	} else {
		body.Add(rl.Const, int32(0), r)
	}
	return r
}

// constInt loads a 32-bit constant.
func constInt(body *rl.MethodBody, v int32) *rl.Register {
	r := body.AllocateTemp(rl.Value)
	body.Add(rl.Const, v, r)
	return r
}

// constIndex loads a parameter or witness count or index.
func constIndex(body *rl.MethodBody, n int) (*rl.Register, error) {
	v, err := safecast.Conv[int32](n)
	if err != nil {
		return nil, &Error{Kind: KindUnsupportedConversion, Err: fmt.Errorf("index %d: %w", n, err)}
	}
	return constInt(body, v), nil
}

// returnValue ends body with the return matching t.
func returnValue(body *rl.MethodBody, t dex.TypeRef, r *rl.Register) {
	if t.IsVoid() {
		body.Add(rl.ReturnVoid, nil)
		return
	}
	body.Add(rl.ReturnFor(t), nil, r)
}

// invokeOp picks the invoke form for a call to m.
func invokeOp(m *dex.MethodDef) rl.Opcode {
	switch {
	case m.IsStatic():
		return rl.InvokeStatic
	case m.Owner != nil && m.Owner.IsInterface():
		return rl.InvokeInterface
	case m.IsDirect():
		return rl.InvokeDirect
	}
	return rl.InvokeVirtual
}

// newMethod adds a synthesized method to cls.
func newMethod(cls *dex.ClassDef, name string, flags dex.AccessFlags, p *dex.Prototype) (*dex.MethodDef, error) {
	m := &dex.MethodDef{Name: name, Proto: p, Flags: flags}
	if err := cls.AddMethod(m); err != nil {
		return nil, &Error{Kind: KindInternal, Member: name, Err: err}
	}
	return m, nil
}

// newField adds a synthesized field to cls.
func newField(cls *dex.ClassDef, name string, t dex.TypeRef, flags dex.AccessFlags) (*dex.FieldDef, error) {
	f := &dex.FieldDef{Name: name, Type: t, Flags: flags}
	if err := cls.AddField(f); err != nil {
		return nil, &Error{Kind: KindInternal, Member: name, Err: err}
	}
	return f, nil
}

// uniqueField returns base or the first suffixed variant unused in cls.
func uniqueField(cls *dex.ClassDef, base string) string {
	return names.Unique(base, func(n string) bool { return cls.FieldNamed(n) != nil })
}
