package lower

import (
	"context"

	"dexlower/internal/dex"
	"dexlower/internal/diag"
	"dexlower/internal/mapping"
	"dexlower/internal/model"
	"dexlower/internal/pipeline"
	"dexlower/internal/rl"
)

// Options tunes the lowering run.
type Options struct {
	// WitnessFieldThreshold is the largest witness count a delegate instance
	// stores in individual fields; above it one Class[] field is used.
	WitnessFieldThreshold int
	// PropertyAnnotations enables the IProperties class annotation.
	PropertyAnnotations    bool
	GeneratedCodeClass     string
	GeneratedCodeNamespace string
	// Jobs bounds parallel verification; zero means GOMAXPROCS.
	Jobs int
}

// DefaultOptions matches config.Default.
func DefaultOptions() Options {
	return Options{
		WitnessFieldThreshold:  4,
		PropertyAnnotations:    true,
		GeneratedCodeClass:     "GeneratedCode",
		GeneratedCodeNamespace: "dot42/generated",
	}
}

// TranslateRequest describes one method body to translate.
type TranslateRequest struct {
	Source *model.Method
	Method *dex.MethodDef
	Class  *dex.ClassDef
	// Prologue lists static calls the body must make before anything else.
	Prologue []dex.MethodRef
}

// BodyTranslator turns a source method body into register-level code.
type BodyTranslator interface {
	Translate(ctx context.Context, req TranslateRequest) (*rl.MethodBody, error)
}

// ClassLoader resolves class names of java-imported types.
type ClassLoader interface {
	HasClass(name string) bool
}

// ClassSet is a ClassLoader over a fixed set of names.
type ClassSet map[string]bool

func (s ClassSet) HasClass(name string) bool { return s[name] }

// NewClassSet builds a ClassSet from the module's java class list.
func NewClassSet(names []string) ClassSet {
	s := make(ClassSet, len(names))
	for _, n := range names {
		s[n] = true
	}
	return s
}

// Request is the input of one lowering run.
type Request struct {
	Module   *model.Module
	Options  Options
	Reporter diag.Reporter
	// Translator defaults to ZeroBodies.
	Translator BodyTranslator
	// ClassLoader defaults to the module's JavaClasses.
	ClassLoader ClassLoader
	// Mapping receives one record per emitted class; nil skips recording.
	Mapping  mapping.Recorder
	Progress pipeline.ProgressSink
}

// Result is the frozen output of a run.
type Result struct {
	// Classes lists the top-level classes; nested ones hang off InnerClasses.
	Classes []*dex.ClassDef
	// Application is the class deriving from the application root, if any.
	Application string
	// Failed lists the source types whose output was abandoned.
	Failed  []string
	Timings pipeline.Timings
}

// Class finds an emitted class, nested or not, by its full name.
func (r *Result) Class(fullname string) *dex.ClassDef {
	var found *dex.ClassDef
	for _, c := range r.Classes {
		c.Walk(func(cd *dex.ClassDef) {
			if found == nil && cd.Fullname() == fullname {
				found = cd
			}
		})
	}
	return found
}
