package lower

import (
	"strconv"

	"dexlower/internal/dex"
)

// Runtime classes referenced by synthesized code.
var (
	refObject      = dex.Class("java/lang/Object")
	refString      = dex.Class("java/lang/String")
	refClass       = dex.Class("java/lang/Class")
	refClassArray  = dex.ArrayOf(refClass)
	refCloneable   = dex.Class("java/lang/Cloneable")
	refRunnable    = dex.Class("java/lang/Runnable")
	refSystem      = dex.Class("java/lang/System")
	refReflectMeth = dex.Class("java/lang/reflect/Method")
	refAnnotation  = dex.Class("java/lang/annotation/Annotation")

	refAnnotationDefault = dex.Class("dalvik/annotation/AnnotationDefault")

	refEnum           = dex.Class("dot42/internal/Enum")
	refEnumInfo       = dex.Class("dot42/internal/EnumInfo")
	refBoxing         = dex.Class("dot42/internal/Boxing")
	refNullableMarker = dex.Class("dot42/internal/NullableMarker")
	refIAttribute     = dex.Class("dot42/internal/IAttribute")
	refIAttributes    = dex.Class("dot42/internal/IAttributes")
	refIProperty      = dex.Class("dot42/internal/IProperty")
	refIProperties    = dex.Class("dot42/internal/IProperties")
	refGenericTypeArg = dex.Class("dot42/internal/GenericTypeParameter")
	refGenericMethArg = dex.Class("dot42/internal/GenericMethodParameter")

	refMulticast = dex.Class("system/MulticastDelegate")

	refAtomicInt  = dex.Class("java/util/concurrent/atomic/AtomicIntegerFieldUpdater")
	refAtomicLong = dex.Class("java/util/concurrent/atomic/AtomicLongFieldUpdater")
	refAtomicRef  = dex.Class("java/util/concurrent/atomic/AtomicReferenceFieldUpdater")
)

// Names of synthesized members.
const (
	genericInstanceField = "$g"
	typeWitnessParam     = "__$$git"
	methodWitnessParam   = "__$$gim"

	enumValueField   = "value__"
	enumInfoField    = "info$"
	enumDefaultField = "default$"
	enumInfoClass    = "Info"

	underlyingField = "underlying$"
	nullableMarker  = "$Nullable"
	nullableBase    = "$NullableBase"
	constantsHolder = "$Constants"
	updaterSuffix   = "$updater"
	initUpdaters    = "$initUpdaters"

	invocationList       = "InvocationList"
	invocationListLength = "InvocationListLength"
)

// box describes the wrapper class of one primitive.
type box struct {
	class  dex.TypeRef
	unbox  string
	prim   dex.TypeRef
	typeOf dex.FieldRef
}

var boxes = map[dex.TypeRef]box{}

func init() {
	for _, b := range []struct {
		prim  dex.TypeRef
		class string
		unbox string
	}{
		{dex.Boolean, "java/lang/Boolean", "booleanValue"},
		{dex.Byte, "java/lang/Byte", "byteValue"},
		{dex.Short, "java/lang/Short", "shortValue"},
		{dex.Char, "java/lang/Character", "charValue"},
		{dex.Int, "java/lang/Integer", "intValue"},
		{dex.Long, "java/lang/Long", "longValue"},
		{dex.Float, "java/lang/Float", "floatValue"},
		{dex.Double, "java/lang/Double", "doubleValue"},
	} {
		cls := dex.Class(b.class)
		boxes[b.prim] = box{
			class:  cls,
			unbox:  b.unbox,
			prim:   b.prim,
			typeOf: dex.FieldRef{Owner: cls, Name: "TYPE", Type: refClass},
		}
	}
}

// boxOf returns the wrapper of a primitive type.
func boxOf(prim dex.TypeRef) (box, bool) {
	b, ok := boxes[prim]
	return b, ok
}

func (b box) valueOf() dex.MethodRef {
	return methodRef(b.class, "valueOf", b.class, b.prim)
}

func (b box) unboxRef() dex.MethodRef {
	return methodRef(b.class, b.unbox, b.prim)
}

// methodRef builds a method reference with a frozen prototype; ret comes first.
func methodRef(owner dex.TypeRef, name string, ret dex.TypeRef, params ...dex.TypeRef) dex.MethodRef {
	return dex.MethodRef{Owner: owner, Name: name, Proto: proto(ret, params...)}
}

// proto builds a frozen prototype with positional parameter names.
func proto(ret dex.TypeRef, params ...dex.TypeRef) *dex.Prototype {
	prms := make([]dex.Parameter, len(params))
	for i, t := range params {
		prms[i] = dex.Parameter{Name: paramName(i), Type: t}
	}
	p := dex.NewPrototype(ret, prms...)
	p.Freeze()
	return p
}

func paramName(i int) string { return "p" + strconv.Itoa(i) }
