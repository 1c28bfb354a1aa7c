package lower

import (
	"context"
	"slices"

	"dexlower/internal/dex"
	"dexlower/internal/diag"
	"dexlower/internal/mapping"
	"dexlower/internal/model"
	"dexlower/internal/pipeline"
	"dexlower/internal/trace"
)

// compiler holds the state of one lowering run. It is single-writer: the
// memo tables below are plain maps and must not be shared between goroutines.
type compiler struct {
	ctx        context.Context
	module     *model.Module
	opts       Options
	report     diag.Reporter
	tracer     trace.Tracer
	translator BodyTranslator
	loader     ClassLoader
	progress   pipeline.ProgressSink
	rec        mapping.Recorder

	pkg   targetPackage
	roots []*classBuilder
	// primary maps a source type to the builder that owns its class.
	primary map[*model.Type]*classBuilder

	methods   map[*model.Method]*dex.MethodDef
	fields    map[*model.Field]*dex.FieldDef
	attrs     map[*model.Type]*attributeMapping
	// attrItems maps every built IAttribute item to its attribute type.
	attrItems map[*dex.Annotation]*attributeMapping
	delegates map[string]*delegateInstance
	instances []*delegateInstance

	stage   pipeline.Stage
	span    uint64
	timings pipeline.Timings
	failed  []string
	app     string
	mapID   int
}

func newCompiler(ctx context.Context, req Request) *compiler {
	c := &compiler{
		ctx:        ctx,
		module:     req.Module,
		opts:       req.Options,
		report:     req.Reporter,
		tracer:     trace.FromContext(ctx),
		translator: req.Translator,
		loader:     req.ClassLoader,
		progress:   req.Progress,
		rec:        req.Mapping,
		span:       trace.ParentSpan(ctx),
		primary:    make(map[*model.Type]*classBuilder),
		methods:    make(map[*model.Method]*dex.MethodDef),
		fields:     make(map[*model.Field]*dex.FieldDef),
		attrs:      make(map[*model.Type]*attributeMapping),
		attrItems:  make(map[*dex.Annotation]*attributeMapping),
		delegates:  make(map[string]*delegateInstance),
	}
	if c.report == nil {
		c.report = diag.NopReporter{}
	}
	if c.translator == nil {
		c.translator = ZeroBodies{}
	}
	if c.loader == nil {
		c.loader = NewClassSet(req.Module.JavaClasses)
	}
	if c.opts.WitnessFieldThreshold <= 0 {
		c.opts.WitnessFieldThreshold = DefaultOptions().WitnessFieldThreshold
	}
	if c.opts.GeneratedCodeClass == "" {
		c.opts.GeneratedCodeClass = DefaultOptions().GeneratedCodeClass
	}
	c.pkg.namespace = c.opts.GeneratedCodeNamespace
	c.pkg.holder = c.opts.GeneratedCodeClass
	return c
}

func (c *compiler) nextID() int {
	c.mapID++
	return c.mapID
}

// targetPackage owns the top-level classes of the output.
type targetPackage struct {
	classes   []*dex.ClassDef
	generated *dex.ClassDef
	namespace string
	holder    string
}

func (p *targetPackage) add(cls *dex.ClassDef) {
	p.classes = append(p.classes, cls)
}

func (p *targetPackage) remove(cls *dex.ClassDef) {
	if i := slices.Index(p.classes, cls); i >= 0 {
		p.classes = slices.Delete(p.classes, i, i+1)
	}
}

// generatedCode returns the holder of relocated extension members and of
// delegate instances that have no owning class, creating it on first use.
func (c *compiler) generatedCode() *dex.ClassDef {
	if c.pkg.generated == nil {
		c.pkg.generated = &dex.ClassDef{
			Name:      c.pkg.holder,
			Namespace: c.pkg.namespace,
			Flags:     dex.AccPublic | dex.AccFinal | dex.AccSynthetic,
			Super:     refObject,
			MapFileID: c.nextID(),
		}
		c.pkg.add(c.pkg.generated)
	}
	return c.pkg.generated
}

// warn reports a non-fatal diagnostic.
func (c *compiler) warn(code diag.Code, typ, member, msg string) {
	diag.ReportWarning(c.report, code, diag.Subject{Type: typ, Member: member}, msg).Emit()
}
