package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Fatal per type (1000-series)
	LowUnresolved            Code = 1001
	LowInvalidStructure      Code = 1002
	LowUnsupportedConversion Code = 1003
	LowInternal              Code = 1004

	// Warnings (2000-series)
	LowAmbiguousProperty      Code = 2001
	LowUnresolvedParamType    Code = 2002
	LowApplicationConstructor Code = 2003
	LowSetterArity            Code = 2004

	// Output verification (3000-series)
	LowVerification Code = 3001

	// Input model loading
	ModelLoad Code = 4001

	// Observability
	ObsInfo    Code = 6000
	ObsTimings Code = 6001
)

var codeDescription = map[Code]string{
	UnknownCode:               "Unknown error",
	LowUnresolved:             "Unresolved reference",
	LowInvalidStructure:       "Invalid structural assumption",
	LowUnsupportedConversion:  "Unsupported value conversion",
	LowInternal:               "Internal lowering invariant violated",
	LowAmbiguousProperty:      "Ambiguous property mapping",
	LowUnresolvedParamType:    "Unresolved parameter type",
	LowApplicationConstructor: "Application class lacks a public default constructor",
	LowSetterArity:            "Property setter does not take exactly one value",
	LowVerification:           "Lowered output failed verification",
	ModelLoad:                 "Cannot load input model",
	ObsInfo:                   "Observability information",
	ObsTimings:                "Phase timings",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 4000:
		return fmt.Sprintf("LOW%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("MDL%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("OBS%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
