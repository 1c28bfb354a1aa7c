package lower

import (
	"dexlower/internal/dex"
	"dexlower/internal/names"
)

// Annotation types are declared interfaces that compile to target
// annotation interfaces.

func createAnnotationType(c *compiler, b *classBuilder) error {
	flags := dex.AccPublic | dex.AccInterface | dex.AccAbstract | dex.AccAnnotation
	if _, err := c.newClass(b, names.Class(b.typ.Name), flags); err != nil {
		return err
	}
	return createNested(c, b)
}

func implementAnnotationType(c *compiler, b *classBuilder) error {
	b.class.Super = refObject
	b.class.Interfaces = append(b.class.Interfaces, refAnnotation)
	for _, m := range b.typ.Methods {
		if !m.Reachable || m.Import || m.Static {
			continue
		}
		if len(m.Params) > 0 {
			return newError(KindInvalidStructure, b.typ.FullName(), m.Name, "annotation member has parameters")
		}
		mb, err := c.lowerMethod(b, m, methodStandard)
		if err != nil {
			return err
		}
		mb.def.Flags = dex.AccPublic | dex.AccAbstract
	}
	return nil
}

// implementDexImport relocates the source-level extensions of an imported
// type into the generated code holder. The imported class itself is never
// emitted.
func implementDexImport(c *compiler, b *classBuilder) error {
	b.host = c.generatedCode()
	for _, m := range b.typ.Methods {
		if !m.Reachable || m.Import || m.IsConstructor() || m.IsStaticConstructor() {
			continue
		}
		if _, err := c.lowerMethod(b, m, methodRelocated); err != nil {
			return err
		}
	}
	return nil
}

// The constants holder carries the static members of an interface. It is
// always top-level since interfaces cannot own state.

func createConstants(c *compiler, b *classBuilder) error {
	simple := names.Class(b.typ.Name) + constantsHolder
	_, err := c.newClass(b, simple, dex.AccPublic|dex.AccFinal|dex.AccSynthetic)
	return err
}

func implementConstants(c *compiler, b *classBuilder) error {
	b.class.Super = refObject
	return c.createMembers(b, func(static bool) bool { return static })
}
