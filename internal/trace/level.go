package trace

import (
	"fmt"
	"strings"
)

// Level controls tracing verbosity.
type Level uint8

const (
	LevelOff    Level = iota // no tracing
	LevelError               // only crash dumps from the ring
	LevelPhase               // driver + phase boundaries
	LevelDetail              // per type spans
	LevelDebug               // everything including members
)

var levelNames = [...]string{"off", "error", "phase", "detail", "debug"}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "unknown"
}

// ParseLevel converts a string to a Level.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return Level(i), nil
		}
	}
	return LevelOff, fmt.Errorf("invalid trace level: %q (expected: off|error|phase|detail|debug)", s)
}

// ShouldEmit returns true if the given scope should emit at this level.
func (l Level) ShouldEmit(scope Scope) bool {
	switch l {
	case LevelPhase:
		return scope <= ScopePhase
	case LevelDetail:
		return scope <= ScopeType
	case LevelDebug:
		return true
	}
	return false
}

// Records reports whether spans of scope are created at all. At LevelError
// phase boundaries are still recorded so the ring can dump them on a crash.
func (l Level) Records(scope Scope) bool {
	return l.ShouldEmit(scope) || (l == LevelError && scope <= ScopePhase)
}
