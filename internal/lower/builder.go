package lower

import (
	"slices"

	"dexlower/internal/dex"
	"dexlower/internal/mapping"
	"dexlower/internal/model"
	"dexlower/internal/names"
)

// variant is the closed set of class builder kinds.
type variant uint8

const (
	variantSkip variant = iota
	variantStandard
	variantDelegate
	variantAttribute
	variantAnnotation
	variantDexImport
	variantApplication
	variantEnum
	variantEnumInfo
	variantNullableBase
	variantNullableMarker
	variantConstants
	variantCount
)

var variantNames = [variantCount]string{
	variantSkip:           "skip",
	variantStandard:       "class",
	variantDelegate:       "delegate",
	variantAttribute:      "attribute",
	variantAnnotation:     "annotation",
	variantDexImport:      "dex-import",
	variantApplication:    "application",
	variantEnum:           "enum",
	variantEnumInfo:       "enum-info",
	variantNullableBase:   "nullable-base",
	variantNullableMarker: "nullable-marker",
	variantConstants:      "constants",
}

func (v variant) String() string { return variantNames[v] }

type phaseFunc func(c *compiler, b *classBuilder) error

type recordFunc func(c *compiler, b *classBuilder, rec mapping.Recorder)

// strategy is the per-variant behaviour of every phase; nil entries are no-ops.
type strategy struct {
	create    phaseFunc
	implement phaseFunc
	fixUp     phaseFunc
	annotate  phaseFunc
	generate  phaseFunc
	record    recordFunc
}

var strategies [variantCount]strategy

func init() {
	strategies = [variantCount]strategy{
		variantSkip: {},
		variantStandard: {
			create: createStandard, implement: implementStandard, fixUp: fixUpMembers,
			annotate: annotateStandard, generate: generateStandard, record: recordClass,
		},
		variantApplication: {
			create: createStandard, implement: implementApplication, fixUp: fixUpMembers,
			annotate: annotateStandard, generate: generateStandard, record: recordClass,
		},
		variantAttribute: {
			create: createStandard, implement: implementAttribute, fixUp: fixUpMembers,
			annotate: annotateStandard, generate: generateStandard, record: recordClass,
		},
		variantAnnotation: {
			create: createAnnotationType, implement: implementAnnotationType,
			annotate: annotateStandard, record: recordClass,
		},
		variantDexImport: {
			create: createNested, implement: implementDexImport, fixUp: fixUpMembers,
			generate: generateStandard, record: recordClass,
		},
		variantDelegate: {
			create: createStandard, implement: implementDelegate,
			annotate: annotateStandard, generate: generateStandard, record: recordClass,
		},
		variantEnum: {
			create: createEnum, implement: implementEnum, fixUp: fixUpMembers,
			annotate: annotateStandard, generate: generateStandard, record: recordClass,
		},
		variantEnumInfo: {
			create: createEnumInfo, implement: implementEnumInfo, generate: generateStandard,
		},
		variantNullableBase: {
			create: createNullableBase, implement: implementNullableBase,
			generate: generateStandard, record: recordClass,
		},
		variantNullableMarker: {
			create: createNullableMarker, implement: implementNullableMarker, record: recordClass,
		},
		variantConstants: {
			create: createConstants, implement: implementConstants,
			annotate: annotateStandard, generate: generateStandard, record: recordClass,
		},
	}
}

// group is the primary builder of one source type plus its companions. A
// fatal error fails the whole group.
type group struct {
	typ      *model.Type
	builders []*classBuilder
	failed   bool
}

// classBuilder lowers one source type (or one synthesized companion) into
// one target class.
type classBuilder struct {
	variant  variant
	typ      *model.Type
	group    *group
	parent   *classBuilder
	nested   []*classBuilder
	priority int
	// topLevel forces a top-level class even when parent is set.
	topLevel bool

	class *dex.ClassDef
	// host receives members; it is class except for relocated extensions.
	host    *dex.ClassDef
	fields  []*fieldBuilder
	methods []*methodBuilder
	// bodies are synthesized during GenerateCode.
	bodies   []func() error
	updaters []*fieldBuilder

	nullableBase   *classBuilder
	nullableMarker *classBuilder
	// underlying is the struct or enum a nullable companion serves.
	underlying *classBuilder
	enumInfo   *classBuilder
	enum       *enumState
	delegate   *delegateState
}

func (b *classBuilder) strategy() *strategy { return &strategies[b.variant] }

func (b *classBuilder) label() string {
	return b.variant.String() + ":" + b.typ.FullName()
}

// dead reports builders whose group, or an enclosing group, failed.
func (b *classBuilder) dead() bool {
	for cur := b; cur != nil; cur = cur.parent {
		if cur.group.failed {
			return true
		}
	}
	return false
}

// primaryOf reports whether b is the first builder of its group.
func (b *classBuilder) primaryOf() bool { return b.group.builders[0] == b }

func (b *classBuilder) later(fn func() error) { b.bodies = append(b.bodies, fn) }

func sortBuilders(bs []*classBuilder) {
	slices.SortStableFunc(bs, func(a, b *classBuilder) int { return a.priority - b.priority })
}

// selectBuilders picks the builder variants for a source type. The checks
// run in a fixed priority order; the first match wins.
func (c *compiler) selectBuilders(t *model.Type, parent *classBuilder) ([]*classBuilder, error) {
	g := &group{typ: t}
	add := func(v variant, priority int) *classBuilder {
		b := &classBuilder{variant: v, typ: t, group: g, parent: parent, priority: priority}
		g.builders = append(g.builders, b)
		return b
	}
	switch {
	case t.Kind == model.KindModule:
		add(variantSkip, 0)
	case t.Kind == model.KindDelegate || t.Import == model.ImportNone && t.BaseName() == model.MulticastName:
		add(variantDelegate, 0)
	case t.Kind == model.KindAttribute || c.module.InheritsFrom(t, model.AttributeName):
		add(variantAttribute, 0)
	case t.Kind == model.KindAnnotation:
		add(variantAnnotation, 0)
	case t.Import == model.ImportDex:
		add(variantDexImport, 0)
	case t.Import == model.ImportJava:
		name := c.className(t)
		if !c.loader.HasClass(name) {
			return nil, unresolved(t.FullName(), "", "java class %s not found by the class loader", name)
		}
		add(variantSkip, 0)
	case c.module.InheritsFrom(t, model.ApplicationName):
		add(variantApplication, 0)
	case t.Kind == model.KindEnum:
		e := add(variantEnum, 0)
		if t.UsedInNullable {
			e.priority = -50
			base := add(variantNullableBase, -60)
			base.underlying, e.nullableBase = e, base
		}
	default:
		s := add(variantStandard, 0)
		if t.Kind == model.KindStruct && t.UsedInNullable {
			base := add(variantNullableBase, -60)
			marker := add(variantNullableMarker, -60)
			base.underlying, marker.underlying = s, s
			s.nullableBase, s.nullableMarker = base, marker
		}
		if t.Kind == model.KindInterface && hasInterfaceStatics(t) {
			h := add(variantConstants, 0)
			h.topLevel = true
			h.underlying = s
		}
	}
	c.primary[t] = g.builders[0]
	return g.builders, nil
}

func hasInterfaceStatics(t *model.Type) bool {
	for _, f := range t.Fields {
		if f.Reachable && !f.Import && (f.Static || f.Literal) {
			return true
		}
	}
	for _, m := range t.Methods {
		if m.Reachable && !m.Import && m.Static {
			return true
		}
	}
	return false
}

// selectRoots selects the builders of every reachable top-level type.
func (c *compiler) selectRoots() {
	for _, t := range c.module.Types {
		if !t.Reachable {
			continue
		}
		bs, err := c.selectBuilders(t, nil)
		if err != nil {
			c.failGroup(&group{typ: t}, err)
			continue
		}
		c.roots = append(c.roots, bs...)
	}
	sortBuilders(c.roots)
}

// createNested selects and queues the builders of reachable nested types.
// Their Create runs right after the enclosing builder's.
func createNested(c *compiler, b *classBuilder) error {
	for _, nt := range b.typ.Nested {
		if !nt.Reachable {
			continue
		}
		bs, err := c.selectBuilders(nt, b)
		if err != nil {
			c.failGroup(&group{typ: nt}, err)
			continue
		}
		b.nested = append(b.nested, bs...)
	}
	sortBuilders(b.nested)
	return nil
}

// newClass creates the class of b and places it: nested in the enclosing
// class, or top-level when there is none, when the enclosing type has no
// class of its own (imported types), or when b declines nesting.
func (c *compiler) newClass(b *classBuilder, simple string, flags dex.AccessFlags) (*dex.ClassDef, error) {
	cls := &dex.ClassDef{Name: simple, Flags: flags, MapFileID: c.nextID()}
	b.class, b.host = cls, cls
	owner := b.parent
	switch {
	case owner != nil && owner.class != nil && !b.topLevel:
		if err := owner.class.AddInnerClass(cls); err != nil {
			return nil, asError(err, b.typ.FullName())
		}
		return cls, nil
	case owner != nil && owner.class == nil:
		ns, outer := splitClassName(c.className(owner.typ))
		cls.Namespace, cls.Name = ns, outer+"_"+simple
	case owner != nil:
		ns, outer := splitClassName(owner.class.Fullname())
		cls.Namespace, cls.Name = ns, outer+"$"+simple
	default:
		cls.Namespace = names.Package(b.typ.RootNamespace())
	}
	c.pkg.add(cls)
	return cls, nil
}

// detach removes the classes of b and everything nested in it from the output.
func (c *compiler) detach(b *classBuilder) {
	if cls := b.class; cls != nil {
		if cls.Owner != nil {
			cls.Owner.RemoveInnerClass(cls)
		} else {
			c.pkg.remove(cls)
		}
	}
	for _, n := range b.nested {
		c.detach(n)
	}
}
