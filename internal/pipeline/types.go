// Package pipeline describes progress of a lowering run: stages, per-type
// status events and stage timings.
package pipeline

import "time"

// Stage describes a lowering phase.
type Stage string

const (
	StageLoad      Stage = "load"
	StageCreate    Stage = "create"
	StageImplement Stage = "implement"
	StageFixUp     Stage = "fixup"
	StageAnnotate  Stage = "annotate"
	StageGenerate  Stage = "generate"
	StageVerify    Stage = "verify"
	StageRecord    Stage = "record"
	StageWrite     Stage = "write"
)

// Stages lists the stages in execution order.
var Stages = []Stage{
	StageLoad, StageCreate, StageImplement, StageFixUp, StageAnnotate,
	StageGenerate, StageVerify, StageRecord, StageWrite,
}

// Fraction returns how far along the run a type is once stage completed.
func (s Stage) Fraction() float64 {
	for i, st := range Stages {
		if st == s {
			return float64(i+1) / float64(len(Stages))
		}
	}
	return 0
}

// Status captures progress state within a stage.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusWorking Status = "working"
	StatusDone    Status = "done"
	// StatusError marks a type whose output was abandoned.
	StatusError Status = "error"
)

// Event reports progress for a source type, or for the whole run when Type is empty.
type Event struct {
	Type    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}

// Timings holds stage durations.
type Timings struct {
	stages map[Stage]time.Duration
}

// Set stores a duration for the given stage.
func (t *Timings) Set(stage Stage, dur time.Duration) {
	if t == nil {
		return
	}
	if t.stages == nil {
		t.stages = make(map[Stage]time.Duration)
	}
	t.stages[stage] = dur
}

// Has reports whether a duration for stage is recorded.
func (t Timings) Has(stage Stage) bool {
	_, ok := t.stages[stage]
	return ok
}

// Duration returns the recorded duration for stage.
func (t Timings) Duration(stage Stage) time.Duration { return t.stages[stage] }

// Sum returns the sum of durations across the provided stages.
func (t Timings) Sum(stages ...Stage) time.Duration {
	var total time.Duration
	for _, s := range stages {
		total += t.stages[s]
	}
	return total
}
