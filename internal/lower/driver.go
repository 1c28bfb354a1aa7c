// Package lower turns the reachable source type model into target classes:
// class builders for every type, field and method lowering, the attribute to
// annotation mapper, delegate instance classes, enum registries and nullable
// wrappers.
//
// Lowering runs as a sequence of global phases. Every builder finishes a
// phase before any builder starts the next one:
//
//	Create      classes exist and are named, nested classes are attached
//	Implement   super classes, interfaces, fields and method prototypes
//	FixUp       covariant return types; prototypes freeze afterwards
//	Annotate    attribute annotations and attribute factory methods
//	Generate    method bodies; classes freeze afterwards
//	Verify      structural validation of the frozen output
//	Record      mapping records for the debug map
package lower

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dexlower/internal/dex"
	"dexlower/internal/diag"
	"dexlower/internal/pipeline"
	"dexlower/internal/trace"
)

// Lower runs every phase over req.Module. Per-type failures are reported
// through req.Reporter and listed in Result.Failed; the returned error is
// reserved for an unusable request or a cancelled context.
func Lower(ctx context.Context, req Request) (*Result, error) {
	if req.Module == nil {
		return nil, errors.New("lower: nil module")
	}
	if err := req.Module.Link(); err != nil {
		return nil, fmt.Errorf("lower: %w", err)
	}
	c := newCompiler(ctx, req)
	if err := c.run(ctx); err != nil {
		return nil, err
	}
	return &Result{
		Classes:     c.pkg.classes,
		Application: c.app,
		Failed:      c.failed,
		Timings:     c.timings,
	}, nil
}

type phase struct {
	stage  pipeline.Stage
	pick   func(*strategy) phaseFunc
	before func()
	after  func()
}

func (c *compiler) run(ctx context.Context) error {
	c.selectRoots()
	phases := []phase{
		{stage: pipeline.StageCreate, pick: func(s *strategy) phaseFunc { return s.create }},
		{stage: pipeline.StageImplement, pick: func(s *strategy) phaseFunc { return s.implement }},
		{stage: pipeline.StageFixUp, pick: func(s *strategy) phaseFunc { return s.fixUp }, after: c.freezePrototypes},
		{stage: pipeline.StageAnnotate, pick: func(s *strategy) phaseFunc { return s.annotate }},
		{
			stage: pipeline.StageGenerate, pick: func(s *strategy) phaseFunc { return s.generate },
			before: c.instantiateDelegates, after: c.sealClasses,
		},
	}
	for _, ph := range phases {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.runPhase(ph)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	failed := len(c.failed)
	if err := c.verify(ctx); err != nil {
		return err
	}
	if len(c.failed) > failed {
		c.pruneAttributeItems()
	}
	c.recordAll()
	c.visit(c.roots, func(b *classBuilder) {
		if b.primaryOf() {
			pipeline.Emit(c.progress, pipeline.Event{Type: b.typ.FullName(), Stage: pipeline.StageRecord, Status: pipeline.StatusDone})
		}
	})
	return nil
}

// runPhase applies one phase to every live builder in pre-order. Builders
// nested in a type are visited after it, so Create can queue them.
func (c *compiler) runPhase(ph phase) {
	c.stage = ph.stage
	sp := trace.Begin(c.tracer, trace.ScopePhase, "lower."+string(ph.stage), c.span)
	pipeline.Emit(c.progress, pipeline.Event{Stage: ph.stage, Status: pipeline.StatusWorking})
	start := time.Now()
	if ph.before != nil {
		ph.before()
	}
	c.visit(c.roots, func(b *classBuilder) {
		fn := ph.pick(b.strategy())
		if fn == nil {
			return
		}
		if b.primaryOf() {
			pipeline.Emit(c.progress, pipeline.Event{Type: b.typ.FullName(), Stage: ph.stage, Status: pipeline.StatusWorking})
		}
		tsp := trace.Begin(c.tracer, trace.ScopeType, b.label(), sp.ID())
		err := fn(c, b)
		if err != nil {
			tsp.End(err.Error())
			c.fail(b, err)
			return
		}
		tsp.End("")
	})
	if ph.after != nil {
		ph.after()
	}
	elapsed := time.Since(start)
	c.timings.Set(ph.stage, elapsed)
	pipeline.Emit(c.progress, pipeline.Event{Stage: ph.stage, Status: pipeline.StatusDone, Elapsed: elapsed})
	sp.End(fmt.Sprintf("%d failed", len(c.failed)))
}

// visit walks live builders in pre-order.
func (c *compiler) visit(bs []*classBuilder, fn func(*classBuilder)) {
	for _, b := range bs {
		if b.dead() {
			continue
		}
		fn(b)
		if b.dead() {
			continue
		}
		c.visit(b.nested, fn)
	}
}

// fail abandons the group of b.
func (c *compiler) fail(b *classBuilder, err error) {
	c.failGroup(b.group, err)
}

func (c *compiler) failGroup(g *group, err error) {
	if g.failed {
		return
	}
	g.failed = true
	name := g.typ.FullName()
	le := asError(err, name)
	if le.Type == "" {
		le.Type = name
	}
	for _, b := range g.builders {
		c.detach(b)
	}
	for _, inst := range c.instances {
		if inst.delegate.group == g && inst.class.Owner != nil {
			inst.class.Owner.RemoveInnerClass(inst.class)
		}
	}
	c.failed = append(c.failed, name)
	msg := le.Kind.String()
	if le.Err != nil {
		msg += ": " + le.Err.Error()
	}
	diag.ReportError(c.report, le.Kind.Code(), diag.Subject{Type: le.Type, Member: le.Member}, msg).Emit()
	pipeline.Emit(c.progress, pipeline.Event{Type: name, Stage: c.stage, Status: pipeline.StatusError, Err: le})
	trace.Point(c.tracer, trace.ScopeType, "fail:"+name, "%s", msg)
}

// freezePrototypes makes every prototype created so far immutable.
func (c *compiler) freezePrototypes() {
	for _, cls := range c.pkg.classes {
		cls.Walk(func(cd *dex.ClassDef) {
			for _, m := range cd.Methods {
				m.Proto.Freeze()
			}
		})
	}
}

// freezeClasses makes the whole output immutable.
// sealClasses drops stale attribute items and freezes the output.
func (c *compiler) sealClasses() {
	c.pruneAttributeItems()
	c.freezeClasses()
}

func (c *compiler) freezeClasses() {
	for _, cls := range c.pkg.classes {
		cls.Freeze()
	}
}
