package pipeline_test

import (
	"testing"
	"time"

	"dexlower/internal/pipeline"
)

func TestTimings(t *testing.T) {
	var tm pipeline.Timings
	if tm.Has(pipeline.StageCreate) {
		t.Fatal("zero Timings reports a stage")
	}
	tm.Set(pipeline.StageCreate, 2*time.Millisecond)
	tm.Set(pipeline.StageImplement, 3*time.Millisecond)
	if got := tm.Sum(pipeline.StageCreate, pipeline.StageImplement, pipeline.StageFixUp); got != 5*time.Millisecond {
		t.Fatalf("Sum = %v", got)
	}
}

func TestChannelSink(t *testing.T) {
	ch := make(chan pipeline.Event, 1)
	pipeline.Emit(pipeline.ChannelSink{Ch: ch}, pipeline.Event{Type: "Demo.A", Stage: pipeline.StageCreate, Status: pipeline.StatusDone})
	if ev := <-ch; ev.Type != "Demo.A" || ev.Status != pipeline.StatusDone {
		t.Fatalf("event = %+v", ev)
	}
	pipeline.Emit(nil, pipeline.Event{})
}

func TestStageFraction(t *testing.T) {
	if pipeline.StageWrite.Fraction() != 1 {
		t.Fatal("last stage must complete the run")
	}
	if f := pipeline.StageCreate.Fraction(); f <= 0 || f >= pipeline.StageGenerate.Fraction() {
		t.Fatalf("fractions out of order: create=%v", f)
	}
}
