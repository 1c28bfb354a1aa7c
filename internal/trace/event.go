package trace

import (
	"fmt"
	"time"
)

// Kind represents the type of trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	KindPoint
	KindHeartbeat
)

var kindNames = [...]string{
	KindSpanBegin: "begin",
	KindSpanEnd:   "end",
	KindPoint:     "point",
	KindHeartbeat: "heartbeat",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "unknown"
}

// Scope is the granularity of an event; smaller is coarser.
type Scope uint8

const (
	// ScopeDriver covers a whole CLI command.
	ScopeDriver Scope = iota + 1
	// ScopePhase covers one lowering phase over every builder.
	ScopePhase
	// ScopeType covers one source type inside a phase.
	ScopeType
	// ScopeMember covers a single synthesized or lowered member.
	ScopeMember
)

var scopeNames = [...]string{
	ScopeDriver: "driver",
	ScopePhase:  "phase",
	ScopeType:   "type",
	ScopeMember: "member",
}

func (s Scope) String() string {
	if int(s) < len(scopeNames) && scopeNames[s] != "" {
		return scopeNames[s]
	}
	return "unknown"
}

// Event represents a single trace event.
type Event struct {
	Time     time.Time
	Seq      uint64
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64
	GID      uint64
	Name     string // "implement", "type:Demo.Point", "factory:__createInstance0"
	Detail   string
	Extra    map[string]string
	// Elapsed is set on span end events.
	Elapsed time.Duration
}

// Point emits an instant event when the tracer accepts the scope.
func Point(t Tracer, scope Scope, name, format string, args ...any) {
	if t == nil || !t.Level().Records(scope) {
		return
	}
	detail := format
	if len(args) > 0 {
		detail = fmt.Sprintf(format, args...)
	}
	t.Emit(&Event{
		Time:   time.Now(),
		Kind:   KindPoint,
		Scope:  scope,
		GID:    goroutineID(),
		Name:   name,
		Detail: detail,
	})
}
