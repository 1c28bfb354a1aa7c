package lower_test

import (
	"context"
	"strings"
	"testing"

	"dexlower/internal/dex"
	"dexlower/internal/diag"
	"dexlower/internal/lower"
	"dexlower/internal/mapping"
	"dexlower/internal/modelfile"
	"dexlower/internal/pipeline"
	"dexlower/internal/rl"
)

type run struct {
	res *lower.Result
	bag *diag.Bag
	m   *mapping.MapFile
}

func lowerText(t *testing.T, text string) run {
	t.Helper()
	mod, err := modelfile.Parse("module = \"demo\"\n" + text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	bag := diag.NewBag(100)
	mf := &mapping.MapFile{}
	res, err := lower.Lower(context.Background(), lower.Request{
		Module:   mod,
		Options:  lower.DefaultOptions(),
		Reporter: diag.BagReporter{Bag: bag},
		Mapping:  mf,
	})
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	return run{res: res, bag: bag, m: mf}
}

func (r run) class(t *testing.T, name string) *dex.ClassDef {
	t.Helper()
	cls := r.res.Class(name)
	if cls == nil {
		var all []string
		for _, c := range r.res.Classes {
			c.Walk(func(cd *dex.ClassDef) { all = append(all, cd.Fullname()) })
		}
		t.Fatalf("class %s not emitted; have %s", name, strings.Join(all, ", "))
	}
	return cls
}

func (r run) noErrors(t *testing.T) {
	t.Helper()
	if r.bag.HasErrors() {
		t.Fatalf("unexpected errors:\n%s", diag.FormatShort(r.bag.Items(), false))
	}
	if len(r.res.Failed) > 0 {
		t.Fatalf("failed types: %v", r.res.Failed)
	}
}

func (r run) hasCode(code diag.Code) bool {
	for _, d := range r.bag.Items() {
		if d.Code == code {
			return true
		}
	}
	return false
}

func method(t *testing.T, cls *dex.ClassDef, name string) *dex.MethodDef {
	t.Helper()
	m := cls.MethodNamed(name)
	if m == nil {
		t.Fatalf("%s has no method %s", cls.Fullname(), name)
	}
	return m
}

func code(t *testing.T, m *dex.MethodDef) []*rl.Instruction {
	t.Helper()
	body, ok := m.Body.(*rl.MethodBody)
	if !ok {
		t.Fatalf("%s has no register body", m.Name)
	}
	return body.Instructions()
}

func count(ins []*rl.Instruction, op rl.Opcode) int {
	n := 0
	for _, in := range ins {
		if in.Op == op {
			n++
		}
	}
	return n
}

const pointModel = `
[[types]]
namespace = "Demo"
name = "Point"
kind = "struct"
base = "System.ValueType"
used_in_nullable = true
  [[types.fields]]
  name = "X"
  type = "int"
  access = "public"
  [[types.fields]]
  name = "Y"
  type = "int"
  access = "public"

[[types]]
namespace = "Demo"
name = "Plain"
kind = "struct"
base = "System.ValueType"
`

func TestNullableStruct(t *testing.T) {
	r := lowerText(t, pointModel)
	r.noErrors(t)

	point := r.class(t, "demo/Point")
	base := r.class(t, "demo/Point$NullableBase")
	marker := r.class(t, "demo/Point$Nullable")
	if point.Super != base.Ref() {
		t.Fatalf("Point super = %s, want %s", point.Super, base.Ref())
	}
	if base.Super != dex.Class("system/ValueType") {
		t.Fatalf("base super = %s", base.Super)
	}
	if point.NullableMarker != marker {
		t.Fatal("Point does not know its marker class")
	}
	if !marker.Flags.Has(dex.AccAbstract|dex.AccFinal) || len(marker.Methods) != 0 {
		t.Fatalf("marker flags %s, %d methods", marker.Flags, len(marker.Methods))
	}
	if !marker.ImplementsInterface(dex.Class("dot42/internal/NullableMarker")) {
		t.Fatal("marker does not implement NullableMarker")
	}
	for _, cls := range []*dex.ClassDef{base, marker} {
		f := cls.FieldNamed("underlying$")
		if f == nil || f.Value != point.Ref() {
			t.Fatalf("%s: underlying$ = %+v", cls.Fullname(), f)
		}
	}

	companions := 0
	for _, c := range r.res.Classes {
		if strings.HasPrefix(c.Name, "Point$") {
			companions++
		}
	}
	if companions != 2 {
		t.Fatalf("%d Point companions, want 2", companions)
	}
	if plain := r.class(t, "demo/Plain"); plain.Super != dex.Class("system/ValueType") {
		t.Fatalf("Plain super = %s", plain.Super)
	}
	if r.res.Class("demo/Plain$Nullable") != nil {
		t.Fatal("Plain got a nullable marker")
	}
	if e := r.m.ByName("Demo.Point?"); e == nil {
		t.Fatal("nullable companion not recorded")
	}
}

const enumModel = `
[[types]]
namespace = "Demo"
name = "Dup"
kind = "enum"
base = "System.Enum"
  [[types.fields]]
  name = "A"
  type = "Demo.Dup"
  access = "public"
  literal = true
  value = {type = "Demo.Dup", kind = "enum", value = 1}
  [[types.fields]]
  name = "B"
  type = "Demo.Dup"
  access = "public"
  literal = true
  value = {type = "Demo.Dup", kind = "enum", value = 2}
  [[types.fields]]
  name = "C"
  type = "Demo.Dup"
  access = "public"
  literal = true
  value = {type = "Demo.Dup", kind = "enum", value = 1}

[[types]]
namespace = "Demo"
name = "Big"
kind = "enum"
base = "System.Enum"
enum_underlying = "long"
used_in_nullable = true
  [[types.fields]]
  name = "Huge"
  type = "Demo.Big"
  access = "public"
  literal = true
  value = {type = "Demo.Big", kind = "enum", value = 8589934592}

[[types]]
namespace = "Demo"
name = "Empty"
kind = "enum"
base = "System.Enum"
`

func TestEnumRegistry(t *testing.T) {
	r := lowerText(t, enumModel)
	r.noErrors(t)

	dup := r.class(t, "demo/Dup")
	if !dup.Flags.Has(dex.AccEnum) || dup.Super != dex.Class("dot42/internal/Enum") {
		t.Fatalf("Dup flags %s super %s", dup.Flags, dup.Super)
	}
	if dup.ImplementsInterface(dex.Class("java/lang/Cloneable")) {
		t.Fatal("enum must not be cloneable")
	}
	if f := dup.FieldNamed("value__"); f == nil || f.Type != dex.Int || !f.Flags.Has(dex.AccProtected|dex.AccFinal) {
		t.Fatalf("value__ = %+v", f)
	}
	for _, name := range []string{"A", "B", "C", "info$", "default$"} {
		if dup.FieldNamed(name) == nil {
			t.Fatalf("missing field %s", name)
		}
	}
	ctor := method(t, dup, "<init>")
	if got := ctor.Proto.Signature(); got != "(Ljava/lang/String;II)V" {
		t.Fatalf("ctor = %s", got)
	}

	clinit := code(t, method(t, dup, "<clinit>"))
	news := 0
	sputs := map[string]int{}
	for _, in := range clinit {
		if in.Op == rl.NewInstance && in.Operand == dup.Ref() {
			news++
		}
		if in.Op == rl.SputObject {
			sputs[in.Operand.(dex.FieldRef).Name]++
		}
	}
	if news != 2 {
		t.Fatalf("%d instances constructed, want 2", news)
	}
	for _, name := range []string{"A", "B", "C", "info$", "default$"} {
		if sputs[name] != 1 {
			t.Fatalf("field %s stored %d times", name, sputs[name])
		}
	}
	// A and C store the same register
	var regA, regC *rl.Register
	for _, in := range clinit {
		if in.Op != rl.SputObject {
			continue
		}
		switch in.Operand.(dex.FieldRef).Name {
		case "A":
			regA = in.Regs[0]
		case "C":
			regC = in.Regs[0]
		}
	}
	if regA == nil || regA != regC {
		t.Fatal("A and C do not share an instance")
	}
	// ordinals 0, 1 are passed to the two constructors; C reuses A
	var ordinals []int32
	for i, in := range clinit {
		if in.Op != rl.InvokeDirect || in.Operand.(dex.MethodRef).Owner != dup.Ref() {
			continue
		}
		ord := in.Regs[2]
		for j := i - 1; j >= 0; j-- {
			if clinit[j].Op == rl.Const && len(clinit[j].Regs) == 1 && clinit[j].Regs[0] == ord {
				ordinals = append(ordinals, clinit[j].Operand.(int32))
				break
			}
		}
	}
	if len(ordinals) != 2 || ordinals[0] != 0 || ordinals[1] != 1 {
		t.Fatalf("ordinals = %v", ordinals)
	}

	info := r.class(t, "demo/Dup$Info")
	if info.Super != dex.Class("dot42/internal/EnumInfo") || info.MethodNamed("Create") == nil {
		t.Fatalf("Info super %s", info.Super)
	}
	for _, name := range []string{"IntValue", "LongValue", "Unbox"} {
		method(t, dup, name)
	}

	big := r.class(t, "demo/Big")
	if f := big.FieldNamed("value__"); f == nil || f.Type != dex.Long {
		t.Fatalf("Big value__ = %+v", f)
	}
	base := r.class(t, "demo/Big$NullableBase")
	if big.Super != base.Ref() || big.NullableMarker != base {
		t.Fatalf("Big super %s", big.Super)
	}
	if !base.ImplementsInterface(dex.Class("dot42/internal/NullableMarker")) {
		t.Fatal("enum nullable base must be the marker")
	}
	if !base.HasMethod("<init>", dex.NewPrototype(dex.Void,
		dex.Parameter{Type: dex.Class("java/lang/String")}, dex.Parameter{Type: dex.Int})) {
		t.Fatal("enum nullable base lacks (String, int) constructor")
	}
	if r.res.Class("demo/Big$Nullable") != nil {
		t.Fatal("enum got a marker class")
	}

	empty := code(t, method(t, r.class(t, "demo/Empty"), "<clinit>"))
	if count(empty, rl.InvokeVirtual) != 1 {
		t.Fatal("empty enum must look its default up in the registry")
	}
}

const attributeModel = `
[[types]]
namespace = "Demo"
name = "TagAttribute"
kind = "attribute"
base = "System.Attribute"
  [[types.fields]]
  name = "Level"
  type = "int"
  access = "public"
  [[types.fields]]
  name = "c0"
  type = "string"
  access = "public"
  [[types.properties]]
  name = "Name"
  type = "string"
  [[types.methods]]
  name = "set_Name"
  access = "public"
  property = "Name"
  role = "set"
  params = [{name = "value", type = "string"}]
  [[types.methods]]
  name = "get_Name"
  access = "public"
  property = "Name"
  role = "get"
  return = "string"
  [[types.methods]]
  name = ".ctor"
  access = "public"
  params = [{name = "text", type = "string"}, {name = "codes", type = "int[]"}]

[[types]]
namespace = "Demo"
name = "Widget"
base = "object"
  [[types.attributes]]
  type = "Demo.TagAttribute"
  args = [{type = "string", value = "x"}, {type = "int[]", value = [1, 2]}]
  fields = [{name = "Level", type = "int", value = 3}]
  properties = [{name = "Name", type = "string", value = "n"}]

[[types]]
namespace = "Demo"
name = "Gadget"
base = "object"
  [[types.attributes]]
  type = "Demo.TagAttribute"
  args = [{type = "string", value = "x"}, {type = "int[]", value = [1, 2]}]
  fields = [{name = "Level", type = "int", value = 3}]
  properties = [{name = "Name", type = "string", value = "n"}]

[[types]]
namespace = "Demo"
name = "Other"
base = "object"
  [[types.attributes]]
  type = "Demo.TagAttribute"
  args = [{type = "string", value = "x"}, {type = "int[]", value = [1, 2, 3]}]
`

func TestUnsignedEnumKeepsBitPattern(t *testing.T) {
	r := lowerText(t, `
[[types]]
namespace = "Demo"
name = "Flags"
kind = "enum"
base = "System.Enum"
enum_underlying = "uint"
  [[types.fields]]
  name = "Low"
  type = "Demo.Flags"
  access = "public"
  literal = true
  value = {type = "Demo.Flags", kind = "enum", value = 1}
  [[types.fields]]
  name = "High"
  type = "Demo.Flags"
  access = "public"
  literal = true
  value = {type = "Demo.Flags", kind = "enum", value = 2147483648}
`)
	r.noErrors(t)

	flags := r.class(t, "demo/Flags")
	if f := flags.FieldNamed("value__"); f == nil || f.Type != dex.Int {
		t.Fatalf("value__ = %+v", f)
	}
	if flags.FieldNamed("High") == nil {
		t.Fatal("High constant not emitted")
	}
	var consts []int32
	for _, in := range code(t, method(t, flags, "<clinit>")) {
		if in.Op == rl.Const {
			consts = append(consts, in.Operand.(int32))
		}
	}
	found := false
	for _, v := range consts {
		if v == -2147483648 {
			found = true
		}
	}
	if !found {
		t.Fatalf("High not stored as 0x80000000; constants %v", consts)
	}
}

func TestAttributeInterface(t *testing.T) {
	r := lowerText(t, attributeModel)
	r.noErrors(t)

	iface := r.class(t, "demo/TagAttribute$annotation")
	if !iface.Flags.Has(dex.AccAnnotation | dex.AccInterface) {
		t.Fatalf("interface flags %s", iface.Flags)
	}
	want := map[string]dex.TypeRef{
		"Level": dex.ArrayOf(dex.Int),
		"c0":    dex.ArrayOf(dex.Class("java/lang/String")),
		"Name":  dex.ArrayOf(dex.Class("java/lang/String")),
		"c00":   dex.ArrayOf(dex.Class("java/lang/String")),
		"c1":    dex.ArrayOf(dex.ArrayOf(dex.Int)),
	}
	if len(iface.Methods) != len(want) {
		t.Fatalf("%d getters, want %d", len(iface.Methods), len(want))
	}
	for _, m := range iface.Methods {
		ret, ok := want[m.Name]
		if !ok {
			t.Fatalf("unexpected getter %s", m.Name)
		}
		if m.Proto.ReturnType() != ret || m.Proto.ParamCount() != 0 {
			t.Fatalf("getter %s%s", m.Name, m.Proto.Signature())
		}
	}

	if len(iface.Annotations) != 1 {
		t.Fatalf("%d interface annotations", len(iface.Annotations))
	}
	defaults, _ := iface.Annotations[0].Arg("value")
	values := defaults.(*dex.Annotation)
	if len(values.Arguments) != len(want) {
		t.Fatalf("%d defaults", len(values.Arguments))
	}
	for _, a := range values.Arguments {
		if arr, ok := a.Value.([]any); !ok || len(arr) != 0 {
			t.Fatalf("default of %s = %v", a.Name, a.Value)
		}
	}

	attr := r.class(t, "demo/TagAttribute")
	build := code(t, method(t, attr, "__build0"))
	if got := count(build, rl.InvokeInterface); got != len(want) {
		t.Fatalf("build reads %d getters", got)
	}
}

func factoryOf(t *testing.T, cls *dex.ClassDef) string {
	t.Helper()
	for _, a := range cls.Annotations {
		if a.Type != dex.Class("dot42/internal/IAttributes") {
			continue
		}
		items, _ := a.Arg("Attributes")
		list := items.([]any)
		if len(list) != 1 {
			t.Fatalf("%s: %d attribute items", cls.Fullname(), len(list))
		}
		name, _ := list[0].(*dex.Annotation).Arg("FactoryMethod")
		return name.(string)
	}
	t.Fatalf("%s has no IAttributes annotation", cls.Fullname())
	return ""
}

func TestAttributeFactoryDedup(t *testing.T) {
	r := lowerText(t, attributeModel)
	r.noErrors(t)

	w := factoryOf(t, r.class(t, "demo/Widget"))
	g := factoryOf(t, r.class(t, "demo/Gadget"))
	o := factoryOf(t, r.class(t, "demo/Other"))
	if w != g {
		t.Fatalf("equal applications use %s and %s", w, g)
	}
	if w == o {
		t.Fatal("different applications share a factory")
	}

	attr := r.class(t, "demo/TagAttribute")
	factories := 0
	for _, m := range attr.Methods {
		if strings.HasPrefix(m.Name, "__createInstance") {
			factories++
		}
	}
	if factories != 2 {
		t.Fatalf("%d factories, want 2", factories)
	}

	body := code(t, method(t, attr, w))
	if count(body, rl.NewArray) != 1 || count(body, rl.Aput) != 2 || count(body, rl.Iput) != 1 {
		t.Fatalf("factory body:\n%s", method(t, attr, w).Body)
	}
}

// mentions reports whether v refers to ref anywhere inside it.
func mentions(v any, ref dex.TypeRef) bool {
	switch x := v.(type) {
	case dex.TypeRef:
		return x == ref
	case *dex.Annotation:
		if x.Type == ref {
			return true
		}
		for _, a := range x.Arguments {
			if mentions(a.Value, ref) {
				return true
			}
		}
	case []any:
		for _, e := range x {
			if mentions(e, ref) {
				return true
			}
		}
	}
	return false
}

// annotationSites lists every annotation of cls and its members.
func annotationSites(cls *dex.ClassDef) map[string][]*dex.Annotation {
	sites := map[string][]*dex.Annotation{cls.Fullname(): cls.Annotations}
	for _, f := range cls.Fields {
		sites[cls.Fullname()+"."+f.Name] = f.Annotations
	}
	for _, m := range cls.Methods {
		anns := append([]*dex.Annotation(nil), m.Annotations...)
		for _, pa := range m.ParamAnnotations {
			anns = append(anns, pa...)
		}
		sites[cls.Fullname()+"."+m.Name] = anns
	}
	return sites
}

func TestAttributeFailureAbandonsAttributeType(t *testing.T) {
	// the failing application sorts before and after the healthy users
	for _, name := range []string{"Abroken", "Broken", "Zbroken"} {
		t.Run(name, func(t *testing.T) {
			r := lowerText(t, attributeModel+`
[[types]]
namespace = "Demo"
name = "`+name+`"
base = "object"
  [[types.attributes]]
  type = "Demo.TagAttribute"
  args = [{type = "string", value = "x"}, {type = "int[]", value = [1]}]
  properties = [{name = "Missing", type = "string", value = "n"}]
`)
			if !r.hasCode(diag.LowUnresolved) {
				t.Fatal("missing unresolved diagnostic")
			}
			if len(r.res.Failed) != 1 || r.res.Failed[0] != "Demo.TagAttribute" {
				t.Fatalf("failed = %v", r.res.Failed)
			}
			if r.res.Class("demo/TagAttribute") != nil {
				t.Fatal("failed attribute type still emitted")
			}
			r.class(t, "demo/"+name)
			r.class(t, "demo/Widget")

			tag := dex.Class("demo/TagAttribute")
			iattrs := dex.Class("dot42/internal/IAttributes")
			for _, top := range r.res.Classes {
				top.Walk(func(cd *dex.ClassDef) {
					for site, anns := range annotationSites(cd) {
						for _, a := range anns {
							if mentions(a, tag) {
								t.Errorf("%s still refers to %s", site, tag)
							}
							if a.Type != iattrs {
								continue
							}
							if items, _ := a.Arg("Attributes"); len(items.([]any)) == 0 {
								t.Errorf("%s keeps an empty IAttributes annotation", site)
							}
						}
					}
				})
			}
		})
	}
}

func TestPropertiesAnnotationSkipsMalformedSetter(t *testing.T) {
	r := lowerText(t, `
[[types]]
namespace = "Demo"
name = "Box"
base = "object"
  [[types.properties]]
  name = "Size"
  type = "int"
  [[types.properties]]
  name = "Pair"
  type = "int"
  [[types.methods]]
  name = "get_Size"
  access = "public"
  property = "Size"
  role = "get"
  return = "int"
  [[types.methods]]
  name = "set_Size"
  access = "public"
  property = "Size"
  role = "set"
  params = [{name = "value", type = "int"}]
  [[types.methods]]
  name = "get_Pair"
  access = "public"
  property = "Pair"
  role = "get"
  return = "int"
  [[types.methods]]
  name = "set_Pair"
  access = "public"
  property = "Pair"
  role = "set"
  params = [{name = "a", type = "int"}, {name = "b", type = "int"}]
`)
	r.noErrors(t)
	if !r.hasCode(diag.LowSetterArity) {
		t.Fatal("missing setter arity warning")
	}

	box := r.class(t, "demo/Box")
	var names []string
	for _, a := range box.Annotations {
		if a.Type != dex.Class("dot42/internal/IProperties") {
			continue
		}
		props, _ := a.Arg("Properties")
		for _, p := range props.([]any) {
			name, _ := p.(*dex.Annotation).Arg("Name")
			names = append(names, name.(string))
		}
	}
	if len(names) != 1 || names[0] != "Size" {
		t.Fatalf("described properties = %v, want [Size]", names)
	}
}

const delegateModel = `
[[types]]
namespace = "Demo"
name = "Action"
kind = "delegate"
base = "System.MulticastDelegate"
  [[types.methods]]
  name = "Invoke"
  access = "public"
  virtual = true

[[types]]
namespace = "Demo"
name = "Func"
kind = "delegate"
base = "System.MulticastDelegate"
  [[types.methods]]
  name = "Invoke"
  access = "public"
  virtual = true
  return = "object"
  params = [{name = "x", type = "int"}]

[[types]]
namespace = "Demo"
name = "Host"
base = "object"
  [[types.methods]]
  name = "Tick"
  access = "public"
  static = true
  [[types.methods]]
  name = "Run"
  [[types.methods]]
  name = "Calc"
  access = "public"
  return = "int"
  params = [{name = "x", type = "int"}]
  [[types.methods]]
  name = "Many"
  access = "public"
  static = true
  return = "object"
  method_witness = true
  params = [{name = "x", type = "int"}]
  [[types.methods]]
  name = "Few"
  access = "public"
  static = true
  return = "object"
  method_witness = true
  params = [{name = "x", type = "int"}]

[[closures]]
delegate = "Demo.Action"
target = "Demo.Host::Tick/0"

[[closures]]
delegate = "Demo.Action"
target = "Demo.Host::Tick/0"

[[closures]]
delegate = "Demo.Action"
target = "Demo.Host::Run/0"

[[closures]]
delegate = "Demo.Func"
target = "Demo.Host::Calc/1"

[[closures]]
delegate = "Demo.Func"
target = "Demo.Host::Many/1"
method_args = ["int", "string", "object", "long", "Demo.Host"]

[[closures]]
delegate = "Demo.Func"
target = "Demo.Host::Few/1"
method_args = ["int", "string"]
`

func instanceFor(t *testing.T, host *dex.ClassDef, target string) *dex.ClassDef {
	t.Helper()
	for _, ic := range host.InnerClasses {
		for _, in := range code(t, method(t, ic, "<clinit>")) {
			if in.Op == rl.ConstString && in.Operand == target {
				return ic
			}
		}
	}
	t.Fatalf("no delegate instance calls %s", target)
	return nil
}

func TestDelegateInstances(t *testing.T) {
	r := lowerText(t, delegateModel)
	r.noErrors(t)

	action := r.class(t, "demo/Action")
	if !action.Flags.Has(dex.AccAbstract) || action.Flags.Has(dex.AccFinal) {
		t.Fatalf("delegate flags %s", action.Flags)
	}
	if action.Super != dex.Class("system/MulticastDelegate") {
		t.Fatalf("delegate super %s", action.Super)
	}
	if inv := method(t, action, "Invoke"); !inv.IsAbstract() || inv.Body != nil {
		t.Fatal("Invoke must be abstract")
	}
	if !action.ImplementsInterface(dex.Class("java/lang/Runnable")) || action.MethodNamed("run") == nil {
		t.Fatal("void() delegate is not a Runnable")
	}
	fn := r.class(t, "demo/Func")
	if fn.ImplementsInterface(dex.Class("java/lang/Runnable")) {
		t.Fatal("Func must not be a Runnable")
	}

	host := r.class(t, "demo/Host")
	if len(host.InnerClasses) != 5 {
		t.Fatalf("%d instance classes, want 5", len(host.InnerClasses))
	}
	if run := method(t, host, "Run"); !run.Flags.Has(dex.AccProtected) {
		t.Fatalf("private target flags %s", run.Flags)
	}

	tick := instanceFor(t, host, "Tick")
	if tick.Super != action.Ref() || tick.FieldNamed("instance") != nil {
		t.Fatalf("static target instance: super %s", tick.Super)
	}
	if n := count(code(t, method(t, tick, "EqualsWithoutInvocationList")), rl.IgetObject); n != 0 {
		t.Fatalf("static target Equals reads %d fields", n)
	}
	for _, name := range []string{"Invoke", "HashCodeWithoutInvocationList", "CloneWithNewInvocationList", "GetMethodInfo"} {
		method(t, tick, name)
	}
	if f := tick.FieldNamed("$method"); f == nil || !f.IsStatic() {
		t.Fatal("missing $method field")
	}

	calc := instanceFor(t, host, "Calc")
	if f := calc.FieldNamed("instance"); f == nil || f.Type != host.Ref() {
		t.Fatalf("receiver field = %+v", f)
	}
	ctor := method(t, calc, "<init>")
	if got := ctor.Proto.Signature(); got != "(Ldemo/Host;)V" {
		t.Fatalf("ctor = %s", got)
	}
	invoke := code(t, method(t, calc, "Invoke"))
	boxed := false
	for _, in := range invoke {
		if in.Op == rl.InvokeStatic && in.Operand.(dex.MethodRef).Name == "valueOf" {
			boxed = true
		}
	}
	if !boxed {
		t.Fatal("int result is not boxed for the object-returning delegate")
	}

	many := instanceFor(t, host, "Many")
	if f := many.FieldNamed("$gim"); f == nil || f.Type != dex.ArrayOf(dex.Class("java/lang/Class")) {
		t.Fatalf("$gim = %+v", f)
	}
	few := instanceFor(t, host, "Few")
	if few.FieldNamed("$gim0") == nil || few.FieldNamed("$gim1") == nil || few.FieldNamed("$gim2") != nil {
		t.Fatal("want $gim0 and $gim1 fields")
	}
	if got := method(t, few, "<init>").Proto.Signature(); got != "(Ljava/lang/Class;Ljava/lang/Class;)V" {
		t.Fatalf("ctor = %s", got)
	}

	e := r.m.ByName("Demo.Action(Demo.Host::Tick)")
	if e == nil {
		t.Fatal("delegate instance not recorded")
	}
}

func TestDelegateUnknownTarget(t *testing.T) {
	r := lowerText(t, delegateModel+`
[[closures]]
delegate = "Demo.Action"
target = "Demo.Host::Missing/0"

[[closures]]
delegate = "Demo.Nope"
target = "Demo.Host::Tick/0"
`)
	if got := r.bag.Count(diag.SevError); got != 2 {
		t.Fatalf("%d errors, want 2:\n%s", got, diag.FormatShort(r.bag.Items(), false))
	}
	if len(r.res.Failed) != 0 {
		t.Fatalf("failed = %v", r.res.Failed)
	}
	if n := len(r.class(t, "demo/Host").InnerClasses); n != 5 {
		t.Fatalf("%d instance classes", n)
	}
}

const covarianceModel = `
[[types]]
namespace = "Demo"
name = "Animal"
base = "object"
abstract = true
  [[types.methods]]
  name = "Make"
  access = "public"
  abstract = true
  return = "object"
  [[types.methods]]
  name = "Copy"
  access = "public"
  virtual = true
  return = "object"

[[types]]
namespace = "Demo"
name = "Dog"
base = "Demo.Animal"
  [[types.methods]]
  name = "Make"
  access = "public"
  virtual = true
  return = "Demo.Dog"
  overrides = ["Demo.Animal::Make/0"]
  [[types.methods]]
  name = "Copy"
  access = "public"
  virtual = true
  return = "Demo.Dog"
  overrides = ["Demo.Animal::Copy/0"]
`

func TestCovariantReturns(t *testing.T) {
	r := lowerText(t, covarianceModel)
	r.noErrors(t)

	dog := r.class(t, "demo/Dog")
	tests := []struct {
		name    string
		ret     dex.TypeRef
		newSlot bool
	}{
		{"Make", dex.Class("java/lang/Object"), false},
		{"Copy", dog.Ref(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := method(t, dog, tt.name)
			if m.Proto.ReturnType() != tt.ret || m.NewSlot != tt.newSlot {
				t.Fatalf("%s%s newSlot=%v", m.Name, m.Proto.Signature(), m.NewSlot)
			}
			if !m.Proto.Frozen() {
				t.Fatal("prototype not frozen")
			}
		})
	}
	if dog.ImplementsInterface(dex.Class("java/lang/Cloneable")) {
		t.Fatal("Cloneable belongs on the module root only")
	}
	if !r.class(t, "demo/Animal").ImplementsInterface(dex.Class("java/lang/Cloneable")) {
		t.Fatal("Animal is not cloneable")
	}
}

func TestFailureIsolation(t *testing.T) {
	r := lowerText(t, pointModel+`
[[types]]
namespace = "Demo"
name = "Orphan"
base = "Demo.Missing"
used_in_nullable = true
kind = "struct"
`)
	if !r.hasCode(diag.LowUnresolved) {
		t.Fatal("missing unresolved diagnostic")
	}
	if len(r.res.Failed) != 1 || r.res.Failed[0] != "Demo.Orphan" {
		t.Fatalf("failed = %v", r.res.Failed)
	}
	for _, name := range []string{"demo/Orphan", "demo/Orphan$NullableBase", "demo/Orphan$Nullable"} {
		if r.res.Class(name) != nil {
			t.Fatalf("%s survived its group", name)
		}
	}
	r.class(t, "demo/Point")
	r.class(t, "demo/Point$NullableBase")
	if e := r.m.ByName("Demo.Orphan"); e != nil {
		t.Fatal("failed type recorded")
	}
}

func TestWitnessParameters(t *testing.T) {
	r := lowerText(t, `
[[types]]
namespace = "Demo"
name = "Box"
base = "object"
generic_params = ["T"]
  [[types.methods]]
  name = "Put"
  access = "public"
  type_witness = true
  method_witness = true
  params = [{name = "value", type = "!0"}]
`)
	r.noErrors(t)

	box := r.class(t, "demo/Box")
	if f := box.GenericInstanceField; f == nil || f.Name != "$g" {
		t.Fatalf("generic instance field = %+v", f)
	}
	put := method(t, box, "Put")
	if got := put.Proto.Signature(); got != "(Ljava/lang/Object;[Ljava/lang/Class;[Ljava/lang/Class;)V" {
		t.Fatalf("Put = %s", got)
	}
	if put.Proto.Param(1).Name != "__$$git" || put.Proto.Param(2).Name != "__$$gim" {
		t.Fatalf("witness names %s, %s", put.Proto.Param(1).Name, put.Proto.Param(2).Name)
	}
	if len(put.ParamAnnotations) != 3 || put.ParamAnnotations[0] != nil {
		t.Fatalf("param annotations = %v", put.ParamAnnotations)
	}
	if a := put.ParamAnnotations[1]; len(a) != 1 || a[0].Type != dex.Class("dot42/internal/GenericTypeParameter") {
		t.Fatalf("type witness annotation = %v", a)
	}
	if a := put.ParamAnnotations[2]; len(a) != 1 || a[0].Type != dex.Class("dot42/internal/GenericMethodParameter") {
		t.Fatalf("method witness annotation = %v", a)
	}
}

const interfaceModel = `
[[types]]
namespace = "Demo"
name = "IShape"
kind = "interface"
  [[types.fields]]
  name = "Sides"
  type = "int"
  access = "public"
  literal = true
  value = {type = "int", value = 3}
  [[types.methods]]
  name = "Area"
  access = "public"
  return = "double"
  [[types.methods]]
  name = "Unit"
  access = "public"
  static = true
  return = "string"

[[types]]
namespace = "Demo"
name = "Counter"
base = "object"
interfaces = ["Demo.IShape"]
  [[types.fields]]
  name = "count"
  type = "int"
  interlocked = true
  [[types.fields]]
  name = "last"
  type = "object"
  interlocked = true
  [[types.methods]]
  name = "Area"
  access = "public"
  virtual = true
  return = "double"
  overrides = ["Demo.IShape::Area/0"]

[[types]]
namespace = "Demo"
name = "App"
base = "Android.App.Application"
  [[types.methods]]
  name = ".ctor"
  access = "public"
  params = [{name = "n", type = "int"}]
`

func TestInterfaceStaticsAndUpdaters(t *testing.T) {
	r := lowerText(t, interfaceModel)
	r.noErrors(t)

	shape := r.class(t, "demo/IShape")
	if !shape.IsInterface() || len(shape.Fields) != 0 {
		t.Fatalf("interface keeps %d fields", len(shape.Fields))
	}
	if area := method(t, shape, "Area"); !area.IsAbstract() {
		t.Fatal("interface method not abstract")
	}
	holder := r.class(t, "demo/IShape$Constants")
	if f := holder.FieldNamed("Sides"); f == nil || f.Value != int32(3) {
		t.Fatalf("Sides = %+v", f)
	}
	if u := method(t, holder, "Unit"); !u.IsStatic() {
		t.Fatal("Unit is not static")
	}

	counter := r.class(t, "demo/Counter")
	if !counter.ImplementsInterface(shape.Ref()) {
		t.Fatal("Counter does not implement IShape")
	}
	tests := []struct {
		field   string
		updater dex.TypeRef
	}{
		{"count", dex.Class("java/util/concurrent/atomic/AtomicIntegerFieldUpdater")},
		{"last", dex.Class("java/util/concurrent/atomic/AtomicReferenceFieldUpdater")},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			if f := counter.FieldNamed(tt.field); f == nil || !f.Flags.Has(dex.AccVolatile) {
				t.Fatalf("%s = %+v", tt.field, f)
			}
			if u := counter.FieldNamed(tt.field + "$updater"); u == nil || u.Type != tt.updater || !u.IsStatic() {
				t.Fatalf("updater = %+v", u)
			}
		})
	}
	clinit := code(t, method(t, counter, "<clinit>"))
	if clinit[0].Op != rl.InvokeStatic || clinit[0].Operand.(dex.MethodRef).Name != "$initUpdaters" {
		t.Fatalf("class initializer starts with %s", clinit[0].Op)
	}

	if r.res.Application != "demo/App" {
		t.Fatalf("application = %q", r.res.Application)
	}
	if !r.hasCode(diag.LowApplicationConstructor) {
		t.Fatal("missing application constructor warning")
	}
}

func TestCombinedModelVerifies(t *testing.T) {
	r := lowerText(t, pointModel+enumModel+attributeModel+delegateModel+covarianceModel+interfaceModel)
	r.noErrors(t)
	if r.hasCode(diag.LowVerification) {
		t.Fatal("verification failures")
	}
	for _, cls := range r.res.Classes {
		if !cls.Frozen() {
			t.Fatalf("%s not frozen", cls.Fullname())
		}
	}
	for _, st := range []pipeline.Stage{pipeline.StageCreate, pipeline.StageGenerate, pipeline.StageVerify} {
		if !r.res.Timings.Has(st) {
			t.Fatalf("no timing for %s", st)
		}
	}
}
