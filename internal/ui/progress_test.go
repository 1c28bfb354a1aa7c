package ui

import (
	"strings"
	"testing"

	"dexlower/internal/pipeline"
)

func TestApplyEventUpdatesRows(t *testing.T) {
	events := make(chan pipeline.Event)
	m := NewProgressModel("lowering demo", []string{"Demo.Point", "Demo.Color"}, events).(*progressModel)

	m.apply(pipeline.Event{Stage: pipeline.StageImplement, Status: pipeline.StatusWorking})
	m.apply(pipeline.Event{Type: "Demo.Point", Stage: pipeline.StageGenerate, Status: pipeline.StatusWorking})
	m.apply(pipeline.Event{Type: "Demo.Color", Stage: pipeline.StageCreate, Status: pipeline.StatusError})
	m.apply(pipeline.Event{Type: "Unknown", Stage: pipeline.StageCreate, Status: pipeline.StatusDone})

	if m.stageLabel != "implement" {
		t.Fatalf("stage label = %q", m.stageLabel)
	}
	if m.items[0].status != "generate" || m.items[1].status != "error" {
		t.Fatalf("rows = %+v", m.items)
	}
	view := m.View()
	if !strings.Contains(view, "Demo.Point") || !strings.Contains(view, "lowering demo (implement)") {
		t.Fatalf("view:\n%s", view)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("Demo.VeryLongTypeName", 10); got != "Demo.Ve..." {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate = %q", got)
	}
}
