package lower

import (
	"strconv"

	"dexlower/internal/dex"
	"dexlower/internal/diag"
	"dexlower/internal/model"
	"dexlower/internal/names"
	"dexlower/internal/rl"
	"dexlower/internal/trace"
)

// delegateState is the abstract side of a delegate type.
type delegateState struct {
	invoke *dex.MethodDef
	ctor   *dex.MethodDef
}

// delegateInstance is the concrete subclass synthesized for one bound
// target method. Closures over the same delegate and target share it.
type delegateInstance struct {
	delegate *classBuilder
	target   *model.Method
	call     dex.MethodRef
	op       rl.Opcode
	// relocated targets receive the receiver as their first argument.
	relocated bool

	class    *dex.ClassDef
	instance *dex.FieldDef
	// witnesses holds one Class field per witness, or one Class[] field per
	// witness kind above the threshold.
	typeWitness   []*dex.FieldDef
	methodWitness []*dex.FieldDef
	arrays        bool
	ctor          *dex.MethodDef
	method        *dex.FieldDef
}

var (
	refDelegateArray   = dex.ArrayOf(refMulticast)
	fieldInvocations   = dex.FieldRef{Owner: refMulticast, Name: invocationList, Type: refDelegateArray}
	fieldInvocationLen = dex.FieldRef{Owner: refMulticast, Name: invocationListLength, Type: dex.Int}
)

// implementDelegate turns the delegate type into an abstract class with an
// abstract Invoke. A void() delegate is also a Runnable.
func implementDelegate(c *compiler, b *classBuilder) error {
	t, cls := b.typ, b.class
	cls.Flags = cls.Flags&^dex.AccFinal | dex.AccAbstract
	if err := c.implementSuper(b); err != nil {
		return err
	}
	src := t.Method("Invoke", -1)
	if src == nil {
		return newError(KindInvalidStructure, t.FullName(), "Invoke", "delegate has no Invoke method")
	}
	mb, err := c.lowerMethod(b, src, methodStandard)
	if err != nil {
		return err
	}
	mb.def.Flags = dex.AccPublic | dex.AccAbstract
	ctor, err := newMethod(cls, names.Init, dex.AccProtected|dex.AccConstructor, proto(dex.Void))
	if err != nil {
		return err
	}
	super := dex.MethodRef{Owner: cls.Super, Name: names.Init, Proto: proto(dex.Void)}
	b.later(func() error {
		body := rl.NewBody(ctor.Proto, false)
		body.Add(rl.InvokeDirect, super, body.This())
		body.Add(rl.ReturnVoid, nil)
		ctor.Body = body
		return nil
	})
	b.delegate = &delegateState{invoke: mb.def, ctor: ctor}

	p := mb.def.Proto
	if p.ReturnType().IsVoid() && p.ParamCount() == 0 {
		cls.Interfaces = append(cls.Interfaces, refRunnable)
		run, err := newMethod(cls, "run", dex.AccPublic|dex.AccFinal, proto(dex.Void))
		if err != nil {
			return err
		}
		invoke := mb.def
		b.later(func() error {
			body := rl.NewBody(run.Proto, false)
			body.Add(rl.InvokeVirtual, invoke.Ref(), body.This())
			body.Add(rl.ReturnVoid, nil)
			run.Body = body
			return nil
		})
	}
	return nil
}

// instantiateDelegates creates the instance class of every closure. It runs
// once all prototypes are frozen and before any body is generated.
func (c *compiler) instantiateDelegates() {
	for _, cl := range c.module.Closures {
		dt := c.module.Lookup(cl.Delegate)
		db := c.primary[dt]
		if dt == nil || db == nil || db.variant != variantDelegate {
			diag.ReportError(c.report, diag.LowUnresolved, diag.Subject{Type: cl.Delegate},
				"closure over unknown delegate type").Emit()
			continue
		}
		if db.dead() {
			continue
		}
		key := cl.Delegate + "|" + cl.Target.String() + "/" + strconv.Itoa(cl.Target.Arity)
		if _, ok := c.delegates[key]; ok {
			continue
		}
		target := c.module.ResolveMethod(cl.Target)
		if target == nil {
			diag.ReportError(c.report, diag.LowUnresolved, diag.Subject{Type: cl.Target.Type, Member: cl.Target.Name},
				"closure target not found").Emit()
			continue
		}
		if owner := c.primary[target.DeclaringType]; owner != nil && owner.dead() {
			continue
		}
		inst, err := c.newDelegateInstance(db, target, len(cl.TypeArgs), len(cl.MethodArgs))
		if err != nil {
			c.fail(db, err)
			continue
		}
		c.delegates[key] = inst
		c.instances = append(c.instances, inst)
		trace.Point(c.tracer, trace.ScopeType, "delegate:"+inst.class.Fullname(), "target %s", target.FullName())
	}
}

// targetRef resolves how an instance calls its target. Imported targets are
// referenced by their signature; private targets become protected so the
// nested instance class can reach them.
func (c *compiler) targetRef(m *model.Method) (dex.MethodRef, rl.Opcode, bool, error) {
	owner := m.DeclaringType
	if def := c.methods[m]; def != nil {
		if def.Flags.Has(dex.AccPrivate) && !def.IsStatic() && !m.IsConstructor() {
			def.Flags = def.Flags.WithVisibility(dex.AccProtected)
		}
		relocated := def.IsStatic() && !m.Static
		return def.Ref(), invokeOp(def), relocated, nil
	}
	if !m.Import && owner.Import == model.ImportNone {
		return dex.MethodRef{}, 0, false, unresolved(owner.FullName(), m.Name, "closure target was not lowered")
	}
	p, _, err := c.buildPrototype(m, false)
	if err != nil {
		return dex.MethodRef{}, 0, false, err
	}
	p.Freeze()
	ref := dex.MethodRef{Owner: dex.Class(c.className(owner)), Name: c.methodName(m), Proto: p}
	switch {
	case m.Static:
		return ref, rl.InvokeStatic, false, nil
	case owner.Kind == model.KindInterface:
		return ref, rl.InvokeInterface, false, nil
	}
	return ref, rl.InvokeVirtual, false, nil
}

func (c *compiler) newDelegateInstance(db *classBuilder, target *model.Method, typeArgs, methodArgs int) (_ *delegateInstance, err error) {
	dname := db.typ.FullName()
	invoke := db.delegate.invoke
	if len(target.Params) != invoke.Proto.ParamCount() {
		return nil, newError(KindInvalidStructure, dname, "Invoke",
			"target %s takes %d parameters, delegate %d", target.FullName(), len(target.Params), invoke.Proto.ParamCount())
	}
	call, op, relocated, err := c.targetRef(target)
	if err != nil {
		return nil, err
	}
	inst := &delegateInstance{delegate: db, target: target, call: call, op: op, relocated: relocated}

	owner := c.generatedCode()
	if ob := c.primary[target.DeclaringType]; ob != nil && ob.class != nil && ob.class == ob.host {
		owner = ob.class
	}
	simple := names.Unique("d"+strconv.Itoa(len(c.instances)), func(n string) bool {
		for _, ic := range owner.InnerClasses {
			if ic.Name == n {
				return true
			}
		}
		return false
	})
	cls := &dex.ClassDef{
		Name:      simple,
		Flags:     dex.AccPublic | dex.AccFinal | dex.AccSynthetic,
		Super:     db.class.Ref(),
		MapFileID: c.nextID(),
	}
	if err := owner.AddInnerClass(cls); err != nil {
		return nil, asError(err, dname)
	}
	defer func() {
		if err != nil {
			owner.RemoveInnerClass(cls)
		}
	}()
	inst.class = cls

	var ctorArgs []dex.TypeRef
	if !target.Static {
		recv, err := c.dexType(target.DeclaringType.Ref())
		if err != nil {
			return nil, unresolved(dname, target.Name, "receiver type %s", target.DeclaringType.FullName())
		}
		if inst.instance, err = newField(cls, "instance", recv, dex.AccPrivate|dex.AccFinal); err != nil {
			return nil, err
		}
		ctorArgs = append(ctorArgs, recv)
	}
	if !target.NeedsTypeWitness {
		typeArgs = 0
	}
	if !target.NeedsMethodWitness {
		methodArgs = 0
	}
	inst.arrays = typeArgs+methodArgs > c.opts.WitnessFieldThreshold
	addWitness := func(prefix string, n int) ([]*dex.FieldDef, error) {
		var out []*dex.FieldDef
		if inst.arrays {
			if n == 0 {
				return nil, nil
			}
			f, err := newField(cls, prefix, refClassArray, dex.AccPrivate|dex.AccFinal)
			if err != nil {
				return nil, err
			}
			ctorArgs = append(ctorArgs, refClassArray)
			return append(out, f), nil
		}
		for i := 0; i < n; i++ {
			f, err := newField(cls, prefix+strconv.Itoa(i), refClass, dex.AccPrivate|dex.AccFinal)
			if err != nil {
				return nil, err
			}
			ctorArgs = append(ctorArgs, refClass)
			out = append(out, f)
		}
		return out, nil
	}
	if inst.typeWitness, err = addWitness("$git", typeArgs); err != nil {
		return nil, err
	}
	if inst.methodWitness, err = addWitness("$gim", methodArgs); err != nil {
		return nil, err
	}
	if inst.ctor, err = newMethod(cls, names.Init, dex.AccPublic|dex.AccConstructor, proto(dex.Void, ctorArgs...)); err != nil {
		return nil, err
	}
	if inst.method, err = newField(cls, "$method", refReflectMeth, dex.AccPrivate|dex.AccStatic); err != nil {
		return nil, err
	}
	if err := c.generateInstance(inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// fields returns the receiver and witness fields in constructor order.
func (inst *delegateInstance) fields() []*dex.FieldDef {
	var out []*dex.FieldDef
	if inst.instance != nil {
		out = append(out, inst.instance)
	}
	out = append(out, inst.typeWitness...)
	return append(out, inst.methodWitness...)
}

func (c *compiler) generateInstance(inst *delegateInstance) error {
	dname := inst.delegate.typ.FullName()
	steps := []struct {
		name string
		fn   func(*delegateInstance) error
	}{
		{names.Init, c.instanceCtor},
		{"Invoke", c.instanceInvoke},
		{"EqualsWithoutInvocationList", c.instanceEquals},
		{"HashCodeWithoutInvocationList", c.instanceHashCode},
		{"CloneWithNewInvocationList", c.instanceClone},
		{names.Clinit, c.instanceMethodInfo},
	}
	for _, s := range steps {
		if err := s.fn(inst); err != nil {
			le := asError(err, dname)
			if le.Member == "" {
				le.Member = s.name
			}
			return le
		}
	}
	return nil
}

func (c *compiler) instanceCtor(inst *delegateInstance) error {
	ctor := inst.ctor
	body := rl.NewBody(ctor.Proto, false)
	body.Add(rl.InvokeDirect, inst.delegate.delegate.ctor.Ref(), body.This())
	for i, f := range inst.fields() {
		body.Add(rl.IputFor(f.Type), f.Ref(), body.Param(i), body.This())
	}
	body.Add(rl.ReturnVoid, nil)
	ctor.Body = body
	return nil
}

// loadWitnesses builds the Class[] argument of one witness kind.
func loadWitnesses(body *rl.MethodBody, this *rl.Register, fields []*dex.FieldDef, arrays bool) (*rl.Register, error) {
	arr := body.AllocateTemp(rl.Object)
	if arrays {
		if len(fields) == 0 {
			body.Add(rl.NewArray, refClassArray, arr, constInt(body, 0))
			return arr, nil
		}
		body.Add(rl.IgetObject, fields[0].Ref(), arr, this)
		return arr, nil
	}
	n, err := constIndex(body, len(fields))
	if err != nil {
		return nil, err
	}
	body.Add(rl.NewArray, refClassArray, arr, n)
	for i, f := range fields {
		v := body.AllocateTemp(rl.Object)
		body.Add(rl.IgetObject, f.Ref(), v, this)
		idx, err := constIndex(body, i)
		if err != nil {
			return nil, err
		}
		body.Add(rl.AputObject, nil, v, arr, idx)
	}
	return arr, nil
}

// instanceInvoke calls the target with coerced arguments, then every link
// of the invocation list in order. The last call's result is returned.
func (c *compiler) instanceInvoke(inst *delegateInstance) error {
	invoke := inst.delegate.delegate.invoke
	p := invoke.Proto.Clone()
	p.Freeze()
	def, err := newMethod(inst.class, invoke.Name, dex.AccPublic|dex.AccFinal, p)
	if err != nil {
		return err
	}
	body := rl.NewBody(p, false)
	this := body.This()
	var args []*rl.Register
	if inst.instance != nil {
		recv := body.AllocateTemp(rl.Object)
		body.Add(rl.IgetObject, inst.instance.Ref(), recv, this)
		args = append(args, recv)
	}
	target := inst.call.Proto
	first := 0
	if inst.relocated {
		first = 1
	}
	for i := range inst.target.Params {
		r, err := coerce(body, body.Param(i), p.Param(i).Type, target.Param(first+i).Type)
		if err != nil {
			return err
		}
		args = append(args, r)
	}
	if inst.target.NeedsTypeWitness {
		w, err := loadWitnesses(body, this, inst.typeWitness, inst.arrays)
		if err != nil {
			return err
		}
		args = append(args, w)
	}
	if inst.target.NeedsMethodWitness {
		w, err := loadWitnesses(body, this, inst.methodWitness, inst.arrays)
		if err != nil {
			return err
		}
		args = append(args, w)
	}
	body.Add(inst.op, inst.call, args...)

	ret := p.ReturnType()
	var result *rl.Register
	if !ret.IsVoid() {
		tret := target.ReturnType()
		if tret.IsVoid() {
			return newError(KindInvalidStructure, "", "Invoke", "target %s returns void", inst.target.FullName())
		}
		raw := body.AllocateFor(tret)
		body.Add(rl.MoveResultFor(tret), nil, raw)
		if result, err = coerce(body, raw, tret, ret); err != nil {
			return err
		}
	}

	n := body.AllocateTemp(rl.Value)
	body.Add(rl.Iget, fieldInvocationLen, n, this)
	done := body.NewLabel()
	body.Add(rl.IfEqz, done, n)
	list := body.AllocateTemp(rl.Object)
	body.Add(rl.IgetObject, fieldInvocations, list, this)
	i := constInt(body, 0)
	loop := body.NewLabel()
	body.Mark(loop)
	body.Add(rl.IfGe, done, i, n)
	link := body.AllocateTemp(rl.Object)
	body.Add(rl.AgetObject, nil, link, list, i)
	body.Add(rl.CheckCast, inst.delegate.class.Ref(), link)
	body.Add(rl.InvokeVirtual, invoke.Ref(), append([]*rl.Register{link}, body.Params()...)...)
	if result != nil {
		body.Add(rl.MoveResultFor(ret), nil, result)
	}
	body.Add(rl.AddIntLit, int32(1), i, i)
	body.Add(rl.Goto, loop)
	body.Mark(done)
	returnValue(body, ret, result)
	def.Body = body
	return nil
}

// instanceEquals compares the class, the receiver and every witness.
// Witness arrays compare element by element after a length check.
func (c *compiler) instanceEquals(inst *delegateInstance) error {
	def, err := newMethod(inst.class, "EqualsWithoutInvocationList", dex.AccProtected|dex.AccFinal,
		proto(dex.Boolean, refMulticast))
	if err != nil {
		return err
	}
	body := rl.NewBody(def.Proto, false)
	this, other := body.This(), body.Param(0)
	differ := body.NewLabel()
	ok := body.AllocateTemp(rl.Value)
	body.Add(rl.InstanceOf, inst.class.Ref(), ok, other)
	body.Add(rl.IfEqz, differ, ok)
	fields := inst.fields()
	if len(fields) > 0 {
		o := body.AllocateTemp(rl.Object)
		body.Add(rl.MoveObject, nil, o, other)
		body.Add(rl.CheckCast, inst.class.Ref(), o)
		for _, f := range fields {
			a, b := body.AllocateTemp(rl.Object), body.AllocateTemp(rl.Object)
			body.Add(rl.IgetObject, f.Ref(), a, this)
			body.Add(rl.IgetObject, f.Ref(), b, o)
			if f.Type != refClassArray {
				body.Add(rl.IfNe, differ, a, b)
				continue
			}
			// same array, or both absent
			equal := body.NewLabel()
			body.Add(rl.IfEq, equal, a, b)
			body.Add(rl.IfEqz, differ, a)
			body.Add(rl.IfEqz, differ, b)
			na, nb := body.AllocateTemp(rl.Value), body.AllocateTemp(rl.Value)
			body.Add(rl.ArrayLength, nil, na, a)
			body.Add(rl.ArrayLength, nil, nb, b)
			body.Add(rl.IfNe, differ, na, nb)
			i := constInt(body, 0)
			loop := body.NewLabel()
			body.Mark(loop)
			body.Add(rl.IfGe, equal, i, na)
			ea, eb := body.AllocateTemp(rl.Object), body.AllocateTemp(rl.Object)
			body.Add(rl.AgetObject, nil, ea, a, i)
			body.Add(rl.AgetObject, nil, eb, b, i)
			body.Add(rl.IfNe, differ, ea, eb)
			body.Add(rl.AddIntLit, int32(1), i, i)
			body.Add(rl.Goto, loop)
			body.Mark(equal)
		}
	}
	body.Add(rl.Return, nil, constInt(body, 1))
	body.Mark(differ)
	body.Add(rl.Return, nil, constInt(body, 0))
	def.Body = body
	return nil
}

// instanceHashCode folds the class identity hash with the receiver and
// witness hashes: h = h*397 ^ hash(x).
func (c *compiler) instanceHashCode(inst *delegateInstance) error {
	def, err := newMethod(inst.class, "HashCodeWithoutInvocationList", dex.AccProtected|dex.AccFinal, proto(dex.Int))
	if err != nil {
		return err
	}
	body := rl.NewBody(def.Proto, false)
	this := body.This()
	h := body.AllocateTemp(rl.Value)
	body.Add(rl.InvokeStatic, methodRef(refSystem, "identityHashCode", dex.Int, refObject), loadClass(body, inst.class.Ref()))
	body.Add(rl.MoveResult, nil, h)
	hashCode := methodRef(refObject, "hashCode", dex.Int)
	fold := func(v *rl.Register) {
		skip := body.NewLabel()
		body.Add(rl.IfEqz, skip, v)
		x := body.AllocateTemp(rl.Value)
		body.Add(rl.InvokeVirtual, hashCode, v)
		body.Add(rl.MoveResult, nil, x)
		body.Add(rl.MulIntLit, int32(397), h, h)
		body.Add(rl.XorInt, nil, h, h, x)
		body.Mark(skip)
	}
	for _, f := range inst.fields() {
		v := body.AllocateTemp(rl.Object)
		body.Add(rl.IgetObject, f.Ref(), v, this)
		if f.Type != refClassArray {
			fold(v)
			continue
		}
		end := body.NewLabel()
		body.Add(rl.IfEqz, end, v)
		n := body.AllocateTemp(rl.Value)
		body.Add(rl.ArrayLength, nil, n, v)
		i := constInt(body, 0)
		loop := body.NewLabel()
		body.Mark(loop)
		body.Add(rl.IfGe, end, i, n)
		e := body.AllocateTemp(rl.Object)
		body.Add(rl.AgetObject, nil, e, v, i)
		fold(e)
		body.Add(rl.AddIntLit, int32(1), i, i)
		body.Add(rl.Goto, loop)
		body.Mark(end)
	}
	body.Add(rl.Return, nil, h)
	def.Body = body
	return nil
}

// instanceClone constructs a copy bound to the same receiver and witnesses
// and installs the given invocation list.
func (c *compiler) instanceClone(inst *delegateInstance) error {
	def, err := newMethod(inst.class, "CloneWithNewInvocationList", dex.AccProtected|dex.AccFinal,
		proto(refMulticast, refDelegateArray, dex.Int))
	if err != nil {
		return err
	}
	body := rl.NewBody(def.Proto, false)
	this := body.This()
	out := body.AllocateTemp(rl.Object)
	body.Add(rl.NewInstance, inst.class.Ref(), out)
	args := []*rl.Register{out}
	for _, f := range inst.fields() {
		v := body.AllocateTemp(rl.Object)
		body.Add(rl.IgetObject, f.Ref(), v, this)
		args = append(args, v)
	}
	body.Add(rl.InvokeDirect, inst.ctor.Ref(), args...)
	body.Add(rl.IputObject, fieldInvocations, body.Param(0), out)
	body.Add(rl.Iput, fieldInvocationLen, body.Param(1), out)
	body.Add(rl.ReturnObject, nil, out)
	def.Body = body
	return nil
}

// instanceMethodInfo resolves the target's reflection object once in the
// class initializer and exposes it through GetMethodInfo.
func (c *compiler) instanceMethodInfo(inst *delegateInstance) error {
	clinit, err := newMethod(inst.class, names.Clinit, dex.AccStatic|dex.AccConstructor, proto(dex.Void))
	if err != nil {
		return err
	}
	body := rl.NewBody(clinit.Proto, true)
	owner := loadClass(body, inst.call.Owner)
	name := body.AllocateTemp(rl.Object)
	body.Add(rl.ConstString, inst.call.Name, name)
	params := inst.call.Proto.Params()
	types := body.AllocateTemp(rl.Object)
	n, err := constIndex(body, len(params))
	if err != nil {
		return err
	}
	body.Add(rl.NewArray, refClassArray, types, n)
	for i, prm := range params {
		idx, err := constIndex(body, i)
		if err != nil {
			return err
		}
		body.Add(rl.AputObject, nil, loadClass(body, prm.Type), types, idx)
	}
	lookup := methodRef(refClass, "getDeclaredMethod", refReflectMeth, refString, refClassArray)
	body.Add(rl.InvokeVirtual, lookup, owner, name, types)
	m := body.AllocateTemp(rl.Object)
	body.Add(rl.MoveResultObject, nil, m)
	body.Add(rl.SputObject, inst.method.Ref(), m)
	body.Add(rl.ReturnVoid, nil)
	clinit.Body = body

	get, err := newMethod(inst.class, "GetMethodInfo", dex.AccPublic|dex.AccFinal, proto(refReflectMeth))
	if err != nil {
		return err
	}
	gb := rl.NewBody(get.Proto, false)
	r := gb.AllocateTemp(rl.Object)
	gb.Add(rl.SgetObject, inst.method.Ref(), r)
	gb.Add(rl.ReturnObject, nil, r)
	get.Body = gb
	return nil
}
