package lower

import (
	"dexlower/internal/dex"
	"dexlower/internal/model"
)

// visibility maps managed accessibility onto the target's three levels.
// Private members of a type with nested types become protected, since the
// nested classes compile to separate classes.
func visibility(a model.Access, declaring *model.Type) dex.AccessFlags {
	switch a {
	case model.AccessPrivate:
		if declaring != nil && len(declaring.Nested) > 0 {
			return dex.AccProtected
		}
		return dex.AccPrivate
	case model.AccessFamily, model.AccessFamilyOrAssembly:
		return dex.AccProtected
	}
	return dex.AccPublic
}

func fieldFlags(f *model.Field) dex.AccessFlags {
	flags := visibility(f.Access, f.DeclaringType)
	if f.Static || f.Literal {
		flags |= dex.AccStatic
	}
	if f.InitOnly || f.Literal {
		flags |= dex.AccFinal
	}
	if f.CompilerGenerated {
		flags |= dex.AccSynthetic
	}
	if f.Volatile {
		flags |= dex.AccVolatile
	}
	return flags
}

func methodFlags(m *model.Method, kind methodKind) dex.AccessFlags {
	if m.IsStaticConstructor() {
		return dex.AccStatic | dex.AccConstructor
	}
	if kind == methodRelocated {
		return dex.AccPublic | dex.AccStatic | dex.AccFinal
	}
	flags := visibility(m.Access, m.DeclaringType)
	inInterface := m.DeclaringType != nil && m.DeclaringType.Kind == model.KindInterface
	switch {
	case inInterface && !m.Static:
		flags |= dex.AccAbstract
	case m.IsConstructor():
		flags |= dex.AccConstructor
	case m.Abstract:
		flags |= dex.AccAbstract
	case m.Static:
		flags |= dex.AccStatic
	case !m.Virtual:
		flags |= dex.AccFinal
	}
	if m.CompilerGenerated {
		flags |= dex.AccSynthetic
	}
	if kind == methodNative {
		flags |= dex.AccNative
	}
	return flags
}

func classFlags(t *model.Type) dex.AccessFlags {
	flags := dex.AccPublic
	switch t.Kind {
	case model.KindInterface:
		return flags | dex.AccInterface | dex.AccAbstract
	case model.KindStruct:
		flags |= dex.AccFinal
	}
	if t.Sealed {
		flags |= dex.AccFinal
	}
	if t.Abstract {
		flags |= dex.AccAbstract
	}
	return flags
}
