package lower

import (
	"errors"
	"math"
	"testing"

	"dexlower/internal/dex"
	"dexlower/internal/model"
	"dexlower/internal/rl"
)

func newTestBody(param dex.TypeRef) *rl.MethodBody {
	return rl.NewBody(proto(dex.Void, param), true)
}

func enumConst(name string, v int64) *model.Field {
	c := model.Value{Kind: model.ValEnum, Type: model.Named("Demo.E"), Int: v}
	return &model.Field{Name: name, Static: true, Literal: true, Reachable: true, Constant: &c}
}

func TestPlanEnum(t *testing.T) {
	e := &model.Type{Namespace: "Demo", Name: "E", Kind: model.KindEnum, EnumUnderlying: model.PrimInt32}
	e.Fields = []*model.Field{
		{Name: "value__", Type: model.Prim(model.PrimInt32)},
		enumConst("A", 1),
		enumConst("B", 2),
		enumConst("C", 1),
		enumConst("D", 2),
		enumConst("E", 7),
	}
	plan, err := planEnum(e, dex.Int)
	if err != nil {
		t.Fatalf("planEnum: %v", err)
	}
	want := []struct {
		name    string
		ordinal int32
		first   int
	}{
		{"A", 0, 0},
		{"B", 1, 1},
		{"C", 2, 0},
		{"D", 3, 1},
		{"E", 4, 4},
	}
	if len(plan) != len(want) {
		t.Fatalf("%d entries, want %d", len(plan), len(want))
	}
	for i, w := range want {
		got := plan[i]
		if got.field.Name != w.name || got.ordinal != w.ordinal || got.first != w.first {
			t.Errorf("entry %d = %s/%d/%d, want %s/%d/%d", i,
				got.field.Name, got.ordinal, got.first, w.name, w.ordinal, w.first)
		}
	}
}

func TestPlanEnumRejectsOverflow(t *testing.T) {
	e := &model.Type{Namespace: "Demo", Name: "E", Kind: model.KindEnum}
	e.Fields = []*model.Field{enumConst("Huge", 1<<40)}
	_, err := planEnum(e, dex.Int)
	var le *Error
	if !errors.As(err, &le) || le.Kind != KindUnsupportedConversion || le.Member != "Huge" {
		t.Fatalf("err = %v", err)
	}
	if _, err := planEnum(e, dex.Long); err != nil {
		t.Fatalf("long storage: %v", err)
	}
}

func TestVisibility(t *testing.T) {
	plain := &model.Type{Name: "Plain"}
	outer := &model.Type{Name: "Outer", Nested: []*model.Type{{Name: "Inner"}}}
	tests := []struct {
		name   string
		access model.Access
		owner  *model.Type
		want   dex.AccessFlags
	}{
		{"private", model.AccessPrivate, plain, dex.AccPrivate},
		{"private with nested types", model.AccessPrivate, outer, dex.AccProtected},
		{"protected", model.AccessFamily, plain, dex.AccProtected},
		{"protected internal", model.AccessFamilyOrAssembly, plain, dex.AccProtected},
		{"internal", model.AccessAssembly, plain, dex.AccPublic},
		{"public", model.AccessPublic, plain, dex.AccPublic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := visibility(tt.access, tt.owner); got != tt.want {
				t.Fatalf("visibility = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMethodFlags(t *testing.T) {
	class := &model.Type{Name: "C", Kind: model.KindClass}
	iface := &model.Type{Name: "I", Kind: model.KindInterface}
	tests := []struct {
		name string
		m    *model.Method
		kind methodKind
		want dex.AccessFlags
	}{
		{"final instance", &model.Method{Name: "M", Access: model.AccessPublic, DeclaringType: class},
			methodStandard, dex.AccPublic | dex.AccFinal},
		{"virtual", &model.Method{Name: "M", Access: model.AccessPublic, Virtual: true, DeclaringType: class},
			methodStandard, dex.AccPublic},
		{"abstract", &model.Method{Name: "M", Access: model.AccessFamily, Virtual: true, Abstract: true, DeclaringType: class},
			methodStandard, dex.AccProtected | dex.AccAbstract},
		{"static", &model.Method{Name: "M", Static: true, DeclaringType: class},
			methodStandard, dex.AccPrivate | dex.AccStatic},
		{"constructor", &model.Method{Name: model.CtorName, Access: model.AccessPublic, DeclaringType: class},
			methodStandard, dex.AccPublic | dex.AccConstructor},
		{"type initializer", &model.Method{Name: model.CctorName, Static: true, DeclaringType: class},
			methodStandard, dex.AccStatic | dex.AccConstructor},
		{"interface member", &model.Method{Name: "M", Access: model.AccessPublic, DeclaringType: iface},
			methodStandard, dex.AccPublic | dex.AccAbstract},
		{"native", &model.Method{Name: "M", Access: model.AccessPublic, Static: true, Native: true, DeclaringType: class},
			methodNative, dex.AccPublic | dex.AccStatic | dex.AccNative},
		{"relocated", &model.Method{Name: "M", Access: model.AccessPrivate, DeclaringType: class},
			methodRelocated, dex.AccPublic | dex.AccStatic | dex.AccFinal},
		{"generated", &model.Method{Name: "M", Access: model.AccessPublic, Virtual: true, CompilerGenerated: true, DeclaringType: class},
			methodStandard, dex.AccPublic | dex.AccSynthetic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := methodFlags(tt.m, tt.kind); got != tt.want {
				t.Fatalf("flags = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPrimitiveBits(t *testing.T) {
	tests := []struct {
		name    string
		v       model.Value
		t       dex.TypeRef
		want    int64
		wantErr bool
	}{
		{"int", model.Value{Kind: model.ValInt, Int: -5}, dex.Int, -5, false},
		{"uint reinterpreted", model.Value{Kind: model.ValUint, Uint: 0xFFFFFFFF}, dex.Int, -1, false},
		{"long", model.Value{Kind: model.ValInt, Int: 1 << 40}, dex.Long, 1 << 40, false},
		{"int overflow", model.Value{Kind: model.ValInt, Int: 1 << 40}, dex.Int, 0, true},
		{"bool", model.Value{Kind: model.ValBool, Bool: true}, dex.Boolean, 1, false},
		{"double one", model.Value{Kind: model.ValFloat, Float: 1}, dex.Double, 0x3FF0000000000000, false},
		{"float one", model.Value{Kind: model.ValFloat, Float: 1}, dex.Float, 0x3F800000, false},
		{"float as int", model.Value{Kind: model.ValFloat, Float: 1.5}, dex.Int, 0, true},
		{"string", model.Value{Kind: model.ValString, Str: "x"}, dex.Int, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := primitiveBits(tt.v, tt.t)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("want error, got %d", got)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("bits = %#x, %v; want %#x", got, err, tt.want)
			}
		})
	}
}

func TestEnumBitsUnsigned(t *testing.T) {
	tests := []struct {
		name    string
		under   model.Primitive
		v       int64
		storage dex.TypeRef
		want    int64
		wantErr bool
	}{
		{"uint high bit", model.PrimUint32, 1 << 31, dex.Int, -1 << 31, false},
		{"uint max", model.PrimUint32, 1<<32 - 1, dex.Int, -1, false},
		{"uint too large", model.PrimUint32, 1 << 32, dex.Int, 0, true},
		{"uint negative", model.PrimUint32, -1, dex.Int, 0, true},
		{"byte", model.PrimUint8, 200, dex.Int, 200, false},
		{"ulong keeps bits", model.PrimUint64, -1, dex.Long, -1, false},
		{"int high bit rejected", model.PrimInt32, 1 << 31, dex.Int, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &model.Type{Namespace: "Demo", Name: "E", Kind: model.KindEnum, EnumUnderlying: tt.under}
			got, err := enumBits(e, model.Value{Kind: model.ValEnum, Int: tt.v}, tt.storage)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("want error, got %d", got)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("bits = %d, %v; want %d", got, err, tt.want)
			}
		})
	}
}

func TestConstIndexRange(t *testing.T) {
	body := newTestBody(dex.Int)
	if r, err := constIndex(body, 3); err != nil || r == nil {
		t.Fatalf("constIndex(3) = %v, %v", r, err)
	}
	n := body.Len()
	_, err := constIndex(body, math.MaxInt32+1)
	var le *Error
	if !errors.As(err, &le) || le.Kind != KindUnsupportedConversion {
		t.Fatalf("err = %v, want unsupported conversion", err)
	}
	if body.Len() != n {
		t.Fatal("out of range index emitted code")
	}
}

func TestProtoNamesParameters(t *testing.T) {
	p := proto(dex.Long, dex.Int, refString)
	if !p.Frozen() || p.ReturnType() != dex.Long || p.ParamCount() != 2 {
		t.Fatalf("proto = %s frozen=%v", p.Signature(), p.Frozen())
	}
	for i, want := range []dex.Parameter{{Name: "p0", Type: dex.Int}, {Name: "p1", Type: refString}} {
		if got := p.Param(i); got != want {
			t.Fatalf("param %d = %+v, want %+v", i, got, want)
		}
	}
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name     string
		from, to dex.TypeRef
		ops      int
		wantErr  bool
	}{
		{"same", dex.Int, dex.Int, 0, false},
		{"narrow ints share a register", dex.Short, dex.Int, 0, false},
		{"box", dex.Int, refObject, 2, false},
		{"box to wrapper", dex.Int, dex.Class("java/lang/Integer"), 2, false},
		{"unbox", refObject, dex.Int, 4, false},
		{"cast", refObject, refString, 2, false},
		{"widen", dex.Int, dex.Long, 1, false},
		{"narrow", dex.Long, dex.Int, 1, false},
		{"float to int", dex.Float, dex.Int, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := newTestBody(tt.from)
			r, err := coerce(body, body.Param(0), tt.from, tt.to)
			if tt.wantErr {
				if err == nil {
					t.Fatal("want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("coerce: %v", err)
			}
			if r == nil || body.Len() != tt.ops {
				t.Fatalf("%d instructions, want %d", body.Len(), tt.ops)
			}
		})
	}
}
