package lower

import (
	"errors"
	"fmt"

	"dexlower/internal/diag"
)

// Kind classifies a fatal lowering failure.
type Kind uint8

const (
	// KindUnresolved is a base type, interface, attribute member or foreign
	// symbol that cannot be found.
	KindUnresolved Kind = iota + 1
	// KindInvalidStructure is a framework contract violation.
	KindInvalidStructure
	// KindUnsupportedConversion is an attribute value with no coercion path.
	KindUnsupportedConversion
	// KindInternal is a broken lowering invariant.
	KindInternal
	// KindVerification is frozen output that fails structural validation.
	KindVerification
)

func (k Kind) String() string {
	switch k {
	case KindUnresolved:
		return "unresolved reference"
	case KindInvalidStructure:
		return "invalid structure"
	case KindUnsupportedConversion:
		return "unsupported conversion"
	case KindInternal:
		return "internal error"
	case KindVerification:
		return "verification failed"
	}
	return "unknown"
}

// Code returns the diagnostic code reported for k.
func (k Kind) Code() diag.Code {
	switch k {
	case KindUnresolved:
		return diag.LowUnresolved
	case KindInvalidStructure:
		return diag.LowInvalidStructure
	case KindUnsupportedConversion:
		return diag.LowUnsupportedConversion
	case KindVerification:
		return diag.LowVerification
	}
	return diag.LowInternal
}

// Error is a fatal failure that abandons the output of one source type.
type Error struct {
	Kind   Kind
	Type   string
	Member string
	Err    error
}

func (e *Error) Error() string {
	subject := e.Type
	if e.Member != "" {
		subject += "::" + e.Member
	}
	if e.Err == nil {
		return fmt.Sprintf("lower: %s: %s", subject, e.Kind)
	}
	return fmt.Sprintf("lower: %s: %s: %v", subject, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, typ, member, format string, args ...any) *Error {
	return &Error{Kind: kind, Type: typ, Member: member, Err: fmt.Errorf(format, args...)}
}

func unresolved(typ, member, format string, args ...any) *Error {
	return newError(KindUnresolved, typ, member, format, args...)
}

// asError classifies err, wrapping foreign errors as internal failures of typ.
func asError(err error, typ string) *Error {
	var le *Error
	if errors.As(err, &le) {
		return le
	}
	return &Error{Kind: KindInternal, Type: typ, Err: err}
}
