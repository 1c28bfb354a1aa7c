package lower

// recordAll appends the mapping entries of every surviving class. Delegate
// instances are recorded under "Delegate(Target)".
func (c *compiler) recordAll() {
	if c.rec == nil {
		return
	}
	c.visit(c.roots, func(b *classBuilder) {
		if fn := b.strategy().record; fn != nil {
			fn(c, b, c.rec)
		}
	})
	for _, inst := range c.instances {
		if inst.delegate.dead() || inst.class.Owner == nil {
			continue
		}
		if ob := c.primary[inst.target.DeclaringType]; ob != nil && ob.dead() {
			continue
		}
		d := inst.delegate.typ
		name := d.FullName() + "(" + inst.target.FullName() + ")"
		tr := c.rec.RecordType(name, d.Scope, inst.class.Fullname(), inst.class.MapFileID, int(d.Token))
		for _, m := range inst.class.Methods {
			tr.RecordMethod(m.Name, m.Proto.Signature(), m.Name, m.Proto.Signature(), m.MapFileID)
		}
	}
}
