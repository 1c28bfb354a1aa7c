// Package names converts source names into target class, field and method
// names.
package names

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Reserved target method names.
const (
	Init   = "<init>"
	Clinit = "<clinit>"
)

// framework maps source framework types onto their target classes.
var framework = map[string]string{
	"System.Object":            "java/lang/Object",
	"System.String":            "java/lang/String",
	"System.Type":              "java/lang/Class",
	"System.Enum":              "dot42/internal/Enum",
	"System.ValueType":         "system/ValueType",
	"System.Attribute":         "system/Attribute",
	"System.Delegate":          "system/Delegate",
	"System.MulticastDelegate": "system/MulticastDelegate",
	"System.Exception":         "java/lang/Exception",
	"System.ICloneable":        "java/lang/Cloneable",
	"Android.App.Application":  "android/app/Application",
}

// Framework returns the target class for a well-known source type.
func Framework(fullName string) (string, bool) {
	n, ok := framework[fullName]
	return n, ok
}

// Identifier normalises s to NFC and replaces characters that cannot appear
// in a target simple name.
func Identifier(s string) string {
	s = norm.NFC.String(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case '`', '<', '>', ',', ' ', '.', '/', ';', '[', ']':
			return '_'
		}
		return r
	}, s)
}

// Package converts a dotted namespace into a slash separated lower-case package.
func Package(namespace string) string {
	if namespace == "" {
		return ""
	}
	parts := strings.Split(namespace, ".")
	for i, p := range parts {
		parts[i] = strings.ToLower(Identifier(p))
	}
	return strings.Join(parts, "/")
}

// Class converts a source type name (generic arity suffix included).
func Class(name string) string { return Identifier(name) }

// Method returns the target name of a source method.
func Method(name string) string {
	switch name {
	case ".ctor":
		return Init
	case ".cctor":
		return Clinit
	}
	return Identifier(name)
}

// Field returns the target name of a source field.
func Field(name string) string { return Identifier(name) }

// Qualify joins a package and a simple name.
func Qualify(pkg, name string) string {
	if pkg == "" {
		return name
	}
	return pkg + "/" + name
}

// Unique returns base, or base0, base1, ... the first candidate taken rejects.
func Unique(base string, taken func(string) bool) string {
	if !taken(base) {
		return base
	}
	for i := 0; ; i++ {
		name := base + strconv.Itoa(i)
		if !taken(name) {
			return name
		}
	}
}

// Set tracks names already used in one scope.
type Set map[string]struct{}

// Has reports whether name is in use.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Claim reserves the first free variant of base and returns it.
func (s Set) Claim(base string) string {
	name := Unique(base, s.Has)
	s[name] = struct{}{}
	return name
}
