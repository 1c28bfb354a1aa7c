package lower

import (
	"fmt"
	"strings"

	"dexlower/internal/dex"
	"dexlower/internal/model"
	"dexlower/internal/names"
)

var primitives = map[model.Primitive]dex.TypeRef{
	model.PrimBool:    dex.Boolean,
	model.PrimChar:    dex.Char,
	model.PrimInt8:    dex.Byte,
	model.PrimUint8:   dex.Byte,
	model.PrimInt16:   dex.Short,
	model.PrimUint16:  dex.Short,
	model.PrimInt32:   dex.Int,
	model.PrimUint32:  dex.Int,
	model.PrimInt64:   dex.Long,
	model.PrimUint64:  dex.Long,
	model.PrimFloat32: dex.Float,
	model.PrimFloat64: dex.Double,
}

// className returns the target class name of a source type. Types nested in
// an imported type are flattened into "Outer_Inner" siblings.
func (c *compiler) className(t *model.Type) string {
	if t.Import != model.ImportNone && t.ImportName != "" {
		return strings.ReplaceAll(t.ImportName, ".", "/")
	}
	if n, ok := names.Framework(t.FullName()); ok {
		return n
	}
	if p := t.DeclaringType; p != nil {
		if p.Import != model.ImportNone {
			return c.className(p) + "_" + names.Class(t.Name)
		}
		return c.className(p) + "$" + names.Class(t.Name)
	}
	return names.Qualify(names.Package(t.Namespace), names.Class(t.Name))
}

// dexType maps a source type reference onto the target. Generic parameters
// erase to Object and nullable primitives to their wrapper class.
func (c *compiler) dexType(ref model.TypeRef) (dex.TypeRef, error) {
	switch ref.Kind {
	case model.RefVoid:
		return dex.Void, nil
	case model.RefPrimitive:
		p, ok := primitives[ref.Prim]
		if !ok {
			return dex.TypeRef{}, &Error{Kind: KindInternal, Err: fmt.Errorf("primitive %s", ref.Prim)}
		}
		if ref.Nullable {
			b, _ := boxOf(p)
			return b.class, nil
		}
		return p, nil
	case model.RefArray:
		if ref.Elem == nil {
			return dex.TypeRef{}, &Error{Kind: KindInternal, Err: fmt.Errorf("array without element type")}
		}
		elem, err := c.dexType(*ref.Elem)
		if err != nil {
			return dex.TypeRef{}, err
		}
		return dex.ArrayOf(elem), nil
	case model.RefTypeParam, model.RefMethodParam:
		return refObject, nil
	case model.RefNamed:
		if t := c.module.Lookup(ref.Name); t != nil {
			return dex.Class(c.className(t)), nil
		}
		if n, ok := names.Framework(ref.Name); ok {
			return dex.Class(n), nil
		}
	}
	return dex.TypeRef{}, &Error{Kind: KindUnresolved, Err: fmt.Errorf("type %s", ref)}
}

// enumType returns the enum a reference designates, or nil.
func (c *compiler) enumType(ref model.TypeRef) *model.Type {
	if ref.Kind != model.RefNamed {
		return nil
	}
	if t := c.module.Lookup(ref.Name); t != nil && t.Kind == model.KindEnum {
		return t
	}
	return nil
}

// enumStorage is the target type of an enum's underlying value.
func enumStorage(t *model.Type) dex.TypeRef {
	if t.EnumUnderlying.Wide() {
		return dex.Long
	}
	return dex.Int
}

// splitClassName splits "a/b/C" into "a/b" and "C".
func splitClassName(full string) (string, string) {
	if i := strings.LastIndexByte(full, '/'); i >= 0 {
		return full[:i], full[i+1:]
	}
	return "", full
}
