package rl_test

import (
	"errors"
	"strings"
	"testing"

	"dexlower/internal/dex"
	"dexlower/internal/rl"
)

var _ dex.Body = (*rl.MethodBody)(nil)

func TestArgumentLayout(t *testing.T) {
	proto := dex.NewPrototype(dex.Long,
		dex.Parameter{Name: "a", Type: dex.Int},
		dex.Parameter{Name: "b", Type: dex.Long},
		dex.Parameter{Name: "c", Type: dex.Class("java/lang/String")},
	)
	b := rl.NewBody(proto, false)
	tmp := b.AllocateTemp(rl.Wide)
	b.Add(rl.ConstWide, int64(0), tmp)
	b.Add(rl.ReturnWide, nil, tmp)

	if b.RegisterCount() != 7 {
		t.Fatalf("RegisterCount = %d, want 7", b.RegisterCount())
	}
	wantIdx := map[*rl.Register]int{tmp: 0, b.This(): 2, b.Param(0): 3, b.Param(1): 4, b.Param(2): 6}
	for r, want := range wantIdx {
		if r.Index() != want {
			t.Errorf("%s index = %d, want %d", r, r.Index(), want)
		}
	}
	if b.This().String() != "p0" || b.Param(1).String() != "p2" {
		t.Fatalf("argument names %s %s", b.This(), b.Param(1))
	}
	f, err := b.Frame()
	if err != nil {
		t.Fatal(err)
	}
	if f.Registers != 7 || f.Ins != 5 {
		t.Fatalf("frame = %+v", f)
	}
	if err := b.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestWideOperandsUsePairs(t *testing.T) {
	tests := []struct {
		name string
		t    dex.TypeRef
		want int
	}{
		{"long", dex.Long, 2},
		{"double", dex.Double, 2},
		{"int", dex.Int, 1},
		{"float", dex.Float, 1},
		{"object", dex.Class("java/lang/Object"), 1},
		{"array", dex.ArrayOf(dex.Long), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := rl.NewBody(dex.NewPrototype(dex.Void, dex.Parameter{Type: tt.t}), true)
			if w := b.Param(0).Width(); w != tt.want {
				t.Fatalf("argument width = %d, want %d", w, tt.want)
			}
			if w := b.AllocateFor(tt.t).Width(); w != tt.want {
				t.Fatalf("temp width = %d, want %d", w, tt.want)
			}
		})
	}
}

func TestValidateRejectsWidthMismatch(t *testing.T) {
	b := rl.NewBody(dex.NewPrototype(dex.Void), true)
	narrow := b.AllocateTemp(rl.Value)
	b.Add(rl.ConstWide, int64(1), narrow)
	b.Add(rl.ReturnVoid, nil)
	if err := b.Validate(); !errors.Is(err, rl.ErrWidth) {
		t.Fatalf("Validate = %v, want ErrWidth", err)
	}
}

func TestValidateRejectsForeignRegister(t *testing.T) {
	other := rl.NewBody(dex.NewPrototype(dex.Void), true)
	foreign := other.AllocateTemp(rl.Value)

	b := rl.NewBody(dex.NewPrototype(dex.Void), true)
	b.Add(rl.Const, int32(1), foreign)
	b.Add(rl.ReturnVoid, nil)
	if err := b.Validate(); !errors.Is(err, rl.ErrUnallocated) {
		t.Fatalf("Validate = %v, want ErrUnallocated", err)
	}
}

func TestValidateInvokeArguments(t *testing.T) {
	callee := dex.MethodRef{
		Owner: dex.Class("java/lang/Long"),
		Name:  "valueOf",
		Proto: dex.NewPrototype(dex.Class("java/lang/Long"), dex.Parameter{Type: dex.Long}),
	}
	b := rl.NewBody(dex.NewPrototype(dex.Void), true)
	wide := b.AllocateTemp(rl.Wide)
	narrow := b.AllocateTemp(rl.Value)
	b.Add(rl.ConstWide, int64(7), wide)
	b.Add(rl.Const, int32(7), narrow)
	good := b.Add(rl.InvokeStatic, callee, wide)
	b.Add(rl.ReturnVoid, nil)
	if err := b.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	good.Regs = []*rl.Register{narrow}
	if err := b.Validate(); !errors.Is(err, rl.ErrWidth) {
		t.Fatalf("narrow argument for long parameter: %v", err)
	}
}

func TestValidateBranches(t *testing.T) {
	b := rl.NewBody(dex.NewPrototype(dex.Int, dex.Parameter{Type: dex.Int}), true)
	done := b.NewLabel()
	b.Add(rl.IfEqz, done, b.Param(0))
	b.Add(rl.MulIntLit, int32(397), b.Param(0), b.Param(0))
	if err := b.Validate(); err == nil || !strings.Contains(err.Error(), "unbound") {
		t.Fatalf("Validate = %v, want unbound label", err)
	}
	b.Mark(done)
	b.Add(rl.Return, nil, b.Param(0))
	if err := b.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if b.Instructions()[0].Target() != b.Instructions()[2] {
		t.Fatal("label bound to the wrong instruction")
	}
}

func TestValidateFallOff(t *testing.T) {
	b := rl.NewBody(dex.NewPrototype(dex.Void), true)
	b.Add(rl.Nop, nil)
	if err := b.Validate(); err == nil {
		t.Fatal("body without terminal instruction accepted")
	}
}

func TestOpcodeVariants(t *testing.T) {
	obj := dex.Class("java/lang/Object")
	if rl.IgetFor(dex.Long) != rl.IgetWide || rl.IputFor(obj) != rl.IputObject || rl.SgetFor(dex.Boolean) != rl.SgetBoolean {
		t.Fatal("field access variants")
	}
	if rl.ReturnFor(dex.Void) != rl.ReturnVoid || rl.ReturnFor(dex.Double) != rl.ReturnWide {
		t.Fatal("return variants")
	}
	if rl.AputFor(dex.Char) != rl.AputChar || rl.AgetFor(dex.ArrayOf(dex.Int)) != rl.AgetObject {
		t.Fatal("array access variants")
	}
}
