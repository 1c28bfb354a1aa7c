package diag_test

import (
	"testing"

	"dexlower/internal/diag"
)

func TestFormatShortSortedDeduped(t *testing.T) {
	bag := diag.NewBag(10)
	r := diag.NewDedupReporter(diag.BagReporter{Bag: bag})

	diag.ReportWarning(r, diag.LowAmbiguousProperty, diag.Subject{Type: "Demo.B", Member: "Value"}, "two setters\nmatch").Emit()
	diag.ReportError(r, diag.LowUnresolved, diag.TypeSubject("Demo.A"), "base type Demo.Missing not found").
		WithNote(diag.TypeSubject("Demo.Missing"), "referenced here").
		Emit()
	// duplicate is dropped by the dedup reporter
	diag.ReportError(r, diag.LowUnresolved, diag.TypeSubject("Demo.A"), "base type Demo.Missing not found").Emit()

	bag.Sort()
	want := "error LOW1001 Demo.A: base type Demo.Missing not found\n" +
		"  note Demo.Missing: referenced here\n" +
		"warning LOW2001 Demo.B::Value: two setters match"
	if got := diag.FormatShort(bag.Items(), true); got != want {
		t.Fatalf("unexpected output:\nwant:\n%s\n\ngot:\n%s", want, got)
	}
	if !bag.HasErrors() || bag.Count(diag.SevWarning) != 1 {
		t.Fatalf("counts: errors=%v warnings=%d", bag.HasErrors(), bag.Count(diag.SevWarning))
	}
}

func TestBagLimit(t *testing.T) {
	bag := diag.NewBag(1)
	if !bag.Add(diag.NewError(diag.LowInternal, diag.Subject{}, "a")) {
		t.Fatal("first diagnostic rejected")
	}
	if bag.Add(diag.NewError(diag.LowInternal, diag.Subject{}, "b")) {
		t.Fatal("limit ignored")
	}
}

func TestCodeID(t *testing.T) {
	tests := []struct {
		code diag.Code
		want string
	}{
		{diag.LowUnresolved, "LOW1001"},
		{diag.LowAmbiguousProperty, "LOW2001"},
		{diag.LowVerification, "LOW3001"},
		{diag.ModelLoad, "MDL4001"},
		{diag.ObsTimings, "OBS6001"},
	}
	for _, tt := range tests {
		if got := tt.code.ID(); got != tt.want {
			t.Errorf("%d.ID() = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestPromoteReporter(t *testing.T) {
	bag := diag.NewBag(10)
	r := diag.PromoteReporter{Next: diag.BagReporter{Bag: bag}}
	diag.ReportWarning(r, diag.LowAmbiguousProperty, diag.TypeSubject("Demo.B"), "two setters").Emit()
	diag.ReportInfo(r, diag.LowInternal, diag.TypeSubject("Demo.B"), "fyi").Emit()
	if bag.Count(diag.SevError) != 1 || bag.Count(diag.SevInfo) != 1 || !bag.HasWarnings() {
		t.Fatalf("severities: %s", diag.FormatShort(bag.Items(), false))
	}
	if !diag.SevError.Blocking() || diag.SevWarning.Blocking() {
		t.Fatal("only errors block")
	}
}
