package lower

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"dexlower/internal/dex"
	"dexlower/internal/diag"
	"dexlower/internal/pipeline"
	"dexlower/internal/trace"
)

// verify validates every frozen top-level class and its nested classes in
// parallel. A class that fails abandons the group owning it. The classes
// are read-only here; results land in per-index slots.
func (c *compiler) verify(ctx context.Context) error {
	c.stage = pipeline.StageVerify
	sp := trace.Begin(c.tracer, trace.ScopePhase, "lower.verify", c.span)
	start := time.Now()
	classes := c.pkg.classes
	type failure struct {
		class *dex.ClassDef
		err   error
	}
	results := make([][]failure, len(classes))

	jobs := c.opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(jobs, len(classes))))
	for i, cls := range classes {
		i, cls := i, cls
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cls.Walk(func(cd *dex.ClassDef) {
				if err := cd.Validate(); err != nil {
					results[i] = append(results[i], failure{class: cd, err: err})
				}
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		sp.End(err.Error())
		return err
	}

	owners := c.classOwners()
	for _, fs := range results {
		for _, f := range fs {
			le := &Error{Kind: KindVerification, Err: f.err}
			if grp := ownerGroup(owners, f.class); grp != nil {
				c.failGroup(grp, le)
				continue
			}
			diag.ReportError(c.report, le.Kind.Code(), diag.Subject{Type: f.class.Fullname()}, le.Error()).Emit()
		}
	}
	elapsed := time.Since(start)
	c.timings.Set(pipeline.StageVerify, elapsed)
	pipeline.Emit(c.progress, pipeline.Event{Stage: pipeline.StageVerify, Status: pipeline.StatusDone, Elapsed: elapsed})
	sp.End("")
	return nil
}

// classOwners maps every emitted class to the group that produced it.
func (c *compiler) classOwners() map[*dex.ClassDef]*group {
	owners := make(map[*dex.ClassDef]*group)
	c.visit(c.roots, func(b *classBuilder) {
		if b.class != nil {
			owners[b.class] = b.group
		}
	})
	for _, inst := range c.instances {
		owners[inst.class] = inst.delegate.group
	}
	return owners
}

// ownerGroup finds the group of cls or of its closest enclosing class.
func ownerGroup(owners map[*dex.ClassDef]*group, cls *dex.ClassDef) *group {
	for cur := cls; cur != nil; cur = cur.Owner {
		if g, ok := owners[cur]; ok {
			return g
		}
	}
	return nil
}
