package dex

import "strings"

// AccessFlags mirrors the dex access_flags bit set.
type AccessFlags uint32

const (
	AccPublic       AccessFlags = 0x1
	AccPrivate      AccessFlags = 0x2
	AccProtected    AccessFlags = 0x4
	AccStatic       AccessFlags = 0x8
	AccFinal        AccessFlags = 0x10
	AccSynchronized AccessFlags = 0x20
	AccVolatile     AccessFlags = 0x40
	AccBridge       AccessFlags = 0x40
	AccTransient    AccessFlags = 0x80
	AccVarargs      AccessFlags = 0x80
	AccNative       AccessFlags = 0x100
	AccInterface    AccessFlags = 0x200
	AccAbstract     AccessFlags = 0x400
	AccStrict       AccessFlags = 0x800
	AccSynthetic    AccessFlags = 0x1000
	AccAnnotation   AccessFlags = 0x2000
	AccEnum         AccessFlags = 0x4000
	AccConstructor  AccessFlags = 0x10000
)

// AccVisibility masks the visibility bits.
const AccVisibility = AccPublic | AccPrivate | AccProtected

// Has reports whether all bits of f are set.
func (a AccessFlags) Has(f AccessFlags) bool { return a&f == f }

// WithVisibility replaces the visibility bits.
func (a AccessFlags) WithVisibility(v AccessFlags) AccessFlags {
	return a&^AccVisibility | v&AccVisibility
}

var flagNames = []struct {
	f    AccessFlags
	name string
}{
	{AccPublic, "public"},
	{AccPrivate, "private"},
	{AccProtected, "protected"},
	{AccStatic, "static"},
	{AccFinal, "final"},
	{AccSynchronized, "synchronized"},
	{AccVolatile, "volatile"},
	{AccTransient, "transient"},
	{AccNative, "native"},
	{AccInterface, "interface"},
	{AccAbstract, "abstract"},
	{AccStrict, "strict"},
	{AccSynthetic, "synthetic"},
	{AccAnnotation, "annotation"},
	{AccEnum, "enum"},
	{AccConstructor, "constructor"},
}

func (a AccessFlags) String() string {
	var parts []string
	for _, fn := range flagNames {
		if a&fn.f != 0 {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, " ")
}
