package dex_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"dexlower/internal/dex"
)

func TestPrototypeFreeze(t *testing.T) {
	p := dex.NewPrototype(dex.Int, dex.Parameter{Name: "a", Type: dex.Long})
	if err := p.AddParameter(dex.Parameter{Name: "b", Type: dex.Class("java/lang/String")}); err != nil {
		t.Fatalf("AddParameter before freeze: %v", err)
	}
	p.Freeze()
	if err := p.AddParameter(dex.Parameter{Name: "c", Type: dex.Int}); !errors.Is(err, dex.ErrFrozen) {
		t.Fatalf("AddParameter after freeze = %v, want ErrFrozen", err)
	}
	if err := p.SetReturnType(dex.Void); !errors.Is(err, dex.ErrFrozen) {
		t.Fatalf("SetReturnType after freeze = %v, want ErrFrozen", err)
	}
	if got := p.Signature(); got != "(JLjava/lang/String;)I" {
		t.Fatalf("Signature = %q", got)
	}
	if p.InSlots() != 3 {
		t.Fatalf("InSlots = %d, want 3", p.InSlots())
	}
	if c := p.Clone(); c.Frozen() || !c.Equal(p) {
		t.Fatal("Clone must be an unfrozen equal copy")
	}
}

func TestPrototypeEqualIgnoresNames(t *testing.T) {
	tests := []struct {
		name  string
		a, b  *dex.Prototype
		equal bool
	}{
		{
			name:  "names differ",
			a:     dex.NewPrototype(dex.Void, dex.Parameter{Name: "x", Type: dex.Int}),
			b:     dex.NewPrototype(dex.Void, dex.Parameter{Name: "y", Type: dex.Int}),
			equal: true,
		},
		{
			name:  "return differs",
			a:     dex.NewPrototype(dex.Int),
			b:     dex.NewPrototype(dex.Long),
			equal: false,
		},
		{
			name:  "param type differs",
			a:     dex.NewPrototype(dex.Void, dex.Parameter{Type: dex.ArrayOf(dex.Int)}),
			b:     dex.NewPrototype(dex.Void, dex.Parameter{Type: dex.ArrayOf(dex.Long)}),
			equal: false,
		},
		{
			name:  "arity differs",
			a:     dex.NewPrototype(dex.Void, dex.Parameter{Type: dex.Int}),
			b:     dex.NewPrototype(dex.Void),
			equal: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.equal {
				t.Fatalf("Equal = %v, want %v", got, tt.equal)
			}
		})
	}
}

func TestTypeRef(t *testing.T) {
	obj := dex.Class("java.lang.Object")
	if obj.Descriptor() != "Ljava/lang/Object;" || obj.ClassName() != "java/lang/Object" {
		t.Fatalf("Class = %q", obj.Descriptor())
	}
	arr := dex.ArrayOf(dex.Double)
	if !arr.IsArray() || arr.Elem() != dex.Double || !arr.Elem().IsWide() {
		t.Fatalf("array ref %v", arr)
	}
	if dex.Long.Slots() != 2 || dex.Int.Slots() != 1 || obj.Slots() != 1 || dex.Void.Slots() != 0 {
		t.Fatal("slot widths")
	}
}

type listing string

func (l listing) Validate() error    { return nil }
func (l listing) RegisterCount() int { return 1 }
func (l listing) String() string     { return string(l) }

func sampleClass() *dex.ClassDef {
	c := &dex.ClassDef{
		Name:      "Point",
		Namespace: "demo",
		Flags:     dex.AccPublic | dex.AccFinal,
		Super:     dex.Class("java/lang/Object"),
	}
	_ = c.AddField(&dex.FieldDef{Name: "x", Type: dex.Int, Flags: dex.AccPublic})
	_ = c.AddMethod(&dex.MethodDef{
		Name:  "<init>",
		Proto: dex.NewPrototype(dex.Void),
		Flags: dex.AccPublic | dex.AccConstructor,
		Body:  listing("return-void"),
	})
	_ = c.AddAnnotation(&dex.Annotation{
		Type:       dex.Class("dot42/internal/IAttributes"),
		Visibility: dex.VisibilityRuntime,
		Arguments: []dex.Argument{
			{Name: "Attributes", Value: []any{int32(1), "two", dex.Long}},
		},
	})
	return c
}

func TestClassFreezeAndValidate(t *testing.T) {
	c := sampleClass()
	inner := &dex.ClassDef{Name: "Info", Super: dex.Class("java/lang/Object")}
	if err := c.AddInnerClass(inner); err != nil {
		t.Fatal(err)
	}
	if inner.Fullname() != "demo/Point$Info" {
		t.Fatalf("inner name = %q", inner.Fullname())
	}
	if err := c.Validate(); err == nil {
		t.Fatal("unfrozen prototypes must fail validation")
	}
	c.Freeze()
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := c.AddField(&dex.FieldDef{Name: "y", Type: dex.Int}); !errors.Is(err, dex.ErrFrozen) {
		t.Fatalf("AddField on frozen class = %v", err)
	}
	if !inner.Frozen() {
		t.Fatal("nested classes freeze with their owner")
	}
}

func TestValidateMissingBody(t *testing.T) {
	c := &dex.ClassDef{Name: "A", Super: dex.Class("java/lang/Object")}
	_ = c.AddMethod(&dex.MethodDef{Name: "run", Proto: dex.NewPrototype(dex.Void), Flags: dex.AccPublic})
	c.Freeze()
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "missing body") {
		t.Fatalf("Validate = %v, want missing body", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	c := sampleClass()
	c.Freeze()
	var buf bytes.Buffer
	if err := dex.WriteSnapshot(&buf, "demo", []*dex.ClassDef{c}); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	s, err := dex.ReadSnapshot(&buf)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if len(s.Classes) != 1 || s.Classes[0].Name != "demo/Point" {
		t.Fatalf("classes = %+v", s.Classes)
	}
	got := s.Classes[0]
	if len(got.Methods) != 1 || got.Methods[0].Signature != "()V" || got.Methods[0].Body != "return-void" {
		t.Fatalf("methods = %+v", got.Methods)
	}
	vals := got.Annotations[0].Values[0]
	if vals.Kind != dex.SnapArray || len(vals.Elems) != 3 || vals.Elems[2].Str != "J" {
		t.Fatalf("annotation array = %+v", vals)
	}
}

func TestSnapshotRejectsUnfrozen(t *testing.T) {
	if _, err := dex.NewSnapshot("demo", []*dex.ClassDef{sampleClass()}); err == nil {
		t.Fatal("unfrozen class accepted")
	}
}

func TestDump(t *testing.T) {
	c := sampleClass()
	var buf bytes.Buffer
	if err := dex.Dump(&buf, []*dex.ClassDef{c}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"class demo/Point", "extends java/lang/Object", "method <init>()V", "return-void"} {
		if !strings.Contains(out, want) {
			t.Errorf("dump lacks %q:\n%s", want, out)
		}
	}
}
