package lower

import (
	"fmt"
	"math"

	"fortio.org/safecast"

	"dexlower/internal/dex"
	"dexlower/internal/model"
	"dexlower/internal/rl"
)

// naturalType is the target type a constant was written as. Object-typed
// slots fall back to the payload kind.
func (c *compiler) naturalType(v model.Value) (dex.TypeRef, error) {
	if t, err := c.dexType(v.Type); err == nil && (t.IsPrimitive() || !numeric(v.Kind)) {
		return t, nil
	}
	switch v.Kind {
	case model.ValBool:
		return dex.Boolean, nil
	case model.ValInt:
		if _, err := safecast.Conv[int32](v.Int); err != nil {
			return dex.Long, nil
		}
		return dex.Int, nil
	case model.ValUint:
		if _, err := safecast.Conv[uint32](v.Uint); err != nil {
			return dex.Long, nil
		}
		return dex.Int, nil
	case model.ValFloat:
		return dex.Double, nil
	case model.ValString:
		return refString, nil
	case model.ValType:
		return refClass, nil
	}
	return dex.TypeRef{}, fmt.Errorf("no type for %s value", v.Type)
}

func numeric(k model.ValueKind) bool {
	switch k {
	case model.ValBool, model.ValInt, model.ValUint, model.ValFloat:
		return true
	}
	return false
}

// primitiveBits returns the register payload of a numeric constant stored
// as t: float bits for floating point, two's complement otherwise.
// Unsigned values reinterpret into the signed type of the same width.
func primitiveBits(v model.Value, t dex.TypeRef) (int64, error) {
	var f float64
	switch v.Kind {
	case model.ValFloat:
		f = v.Float
	case model.ValUint:
		f = float64(v.Uint)
	case model.ValInt, model.ValEnum, model.ValBool:
		f = float64(v.Int64())
	default:
		return 0, fmt.Errorf("%s value is not numeric", v.Type)
	}
	switch t {
	case dex.Double:
		return int64(math.Float64bits(f)), nil
	case dex.Float:
		return int64(math.Float32bits(float32(f))), nil
	case dex.Boolean:
		if v.Kind == model.ValBool {
			if v.Bool {
				return 1, nil
			}
			return 0, nil
		}
	}
	if v.Kind == model.ValFloat {
		return 0, fmt.Errorf("cannot store %v as %s", v.Float, t)
	}
	if t == dex.Long {
		if v.Kind == model.ValUint {
			return int64(v.Uint), nil
		}
		return v.Int64(), nil
	}
	if v.Kind == model.ValUint {
		u, err := safecast.Conv[uint32](v.Uint)
		if err != nil {
			return 0, fmt.Errorf("%d does not fit %s: %w", v.Uint, t, err)
		}
		return int64(int32(u)), nil
	}
	i, err := safecast.Conv[int32](v.Int64())
	if err != nil {
		return 0, fmt.Errorf("%d does not fit %s: %w", v.Int64(), t, err)
	}
	return int64(i), nil
}

// annotationValue converts a constant into an annotation argument value.
// Enum constants become their underlying number.
func (c *compiler) annotationValue(v model.Value) (any, error) {
	switch v.Kind {
	case model.ValNull:
		return nil, nil
	case model.ValBoxed:
		if v.Boxed == nil {
			return nil, nil
		}
		return c.annotationValue(*v.Boxed)
	case model.ValString:
		return v.Str, nil
	case model.ValType:
		t, err := c.dexType(v.Ref)
		if err != nil {
			return nil, err
		}
		return t, nil
	case model.ValEnum:
		et := c.enumType(v.Type)
		storage := dex.Int
		if et != nil {
			storage = enumStorage(et)
		}
		bits, err := enumBits(et, v, storage)
		if err != nil {
			return nil, err
		}
		return bitsValue(bits, storage), nil
	case model.ValArray:
		out := make([]any, 0, len(v.Elems))
		for _, e := range v.Elems {
			ev, err := c.annotationValue(e)
			if err != nil {
				return nil, err
			}
			out = append(out, ev)
		}
		return out, nil
	}
	t, err := c.naturalType(v)
	if err != nil {
		return nil, err
	}
	return numberValue(v, t)
}

// numberValue returns the Go value an annotation stores for a primitive.
func numberValue(v model.Value, t dex.TypeRef) (any, error) {
	bits, err := primitiveBits(v, t)
	if err != nil {
		return nil, err
	}
	return bitsValue(bits, t), nil
}

func bitsValue(bits int64, t dex.TypeRef) any {
	switch t {
	case dex.Boolean:
		return bits != 0
	case dex.Long:
		return bits
	case dex.Float:
		return math.Float32frombits(uint32(bits))
	case dex.Double:
		return math.Float64frombits(uint64(bits))
	}
	return int32(bits)
}

// loadValue emits code that materializes v as a value of type target.
func (c *compiler) loadValue(body *rl.MethodBody, v model.Value, target dex.TypeRef) (*rl.Register, error) {
	switch v.Kind {
	case model.ValNull:
		if !target.IsReference() {
			return nil, fmt.Errorf("null for %s", target)
		}
		r := body.AllocateTemp(rl.Object)
		body.Add(rl.Const, int32(0), r)
		body.Add(rl.CheckCast, target, r)
		return r, nil
	case model.ValBoxed:
		if v.Boxed == nil {
			return c.loadValue(body, model.Value{Kind: model.ValNull}, target)
		}
		inner := *v.Boxed
		it, err := c.naturalType(inner)
		if err != nil {
			return nil, err
		}
		r, err := c.loadValue(body, inner, it)
		if err != nil {
			return nil, err
		}
		return coerce(body, r, it, target)
	case model.ValArray:
		return c.loadArray(body, v, target)
	case model.ValEnum:
		return c.loadEnum(body, v, target)
	case model.ValString:
		r := body.AllocateTemp(rl.Object)
		body.Add(rl.ConstString, v.Str, r)
		return r, nil
	case model.ValType:
		t, err := c.dexType(v.Ref)
		if err != nil {
			return nil, err
		}
		return loadClass(body, t), nil
	}
	if target.IsReference() {
		nt, err := c.naturalType(v)
		if err != nil {
			return nil, err
		}
		if !nt.IsPrimitive() {
			return nil, fmt.Errorf("%s value for %s", v.Type, target)
		}
		r, err := c.loadValue(body, v, nt)
		if err != nil {
			return nil, err
		}
		return coerce(body, r, nt, target)
	}
	bits, err := primitiveBits(v, target)
	if err != nil {
		return nil, err
	}
	r := body.AllocateFor(target)
	if target.IsWide() {
		body.Add(rl.ConstWide, bits, r)
	} else {
		body.Add(rl.Const, int32(bits), r)
	}
	return r, nil
}

// loadArray allocates the array with an explicit length and stores every
// element.
func (c *compiler) loadArray(body *rl.MethodBody, v model.Value, target dex.TypeRef) (*rl.Register, error) {
	at := target
	if !at.IsArray() {
		t, err := c.dexType(v.Type)
		if err != nil || !t.IsArray() {
			return nil, fmt.Errorf("array value for %s", target)
		}
		at = t
	}
	n, err := safecast.Conv[int32](len(v.Elems))
	if err != nil {
		return nil, err
	}
	arr := body.AllocateTemp(rl.Object)
	body.Add(rl.NewArray, at, arr, constInt(body, n))
	elem := at.Elem()
	for i, e := range v.Elems {
		er, err := c.loadValue(body, e, elem)
		if err != nil {
			return nil, err
		}
		idx, err := safecast.Conv[int32](i)
		if err != nil {
			return nil, err
		}
		body.Add(rl.AputFor(elem), nil, er, arr, constInt(body, idx))
	}
	return arr, nil
}

// loadEnum looks the instance up by value, through the int overload when
// the value fits 32 bits.
func (c *compiler) loadEnum(body *rl.MethodBody, v model.Value, target dex.TypeRef) (*rl.Register, error) {
	et := c.enumType(v.Type)
	if et == nil || target.IsPrimitive() {
		return nil, fmt.Errorf("enum %s for %s", v.Type, target)
	}
	bits, err := enumBits(et, v, enumStorage(et))
	if err != nil {
		return nil, err
	}
	cls := dex.Class(c.className(et))
	clsReg := body.AllocateTemp(rl.Object)
	body.Add(rl.ConstClass, cls, clsReg)
	if i, err := safecast.Conv[int32](bits); err == nil {
		body.Add(rl.InvokeStatic, methodRef(refEnum, "Get", refEnum, refClass, dex.Int), clsReg, constInt(body, i))
	} else {
		w := body.AllocateTemp(rl.Wide)
		body.Add(rl.ConstWide, bits, w)
		body.Add(rl.InvokeStatic, methodRef(refEnum, "Get", refEnum, refClass, dex.Long), clsReg, w)
	}
	r := body.AllocateTemp(rl.Object)
	body.Add(rl.MoveResultObject, nil, r)
	cast := cls
	if target.IsClass() && target != refObject {
		cast = target
	}
	body.Add(rl.CheckCast, cast, r)
	return r, nil
}
