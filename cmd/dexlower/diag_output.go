package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"dexlower/internal/dex"
	"dexlower/internal/diag"
	"dexlower/internal/lower"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
	subjectColor = color.New(color.Bold)
	noteColor    = color.New(color.FgHiBlack)
)

func severityColor(sev diag.Severity) *color.Color {
	switch {
	case sev.Blocking():
		return errorColor
	case sev == diag.SevWarning:
		return warningColor
	default:
		return infoColor
	}
}

// printDiagnostics writes one line per diagnostic, coloured by severity.
func printDiagnostics(w io.Writer, items []diag.Diagnostic, withNotes bool) {
	for _, d := range items {
		sev := severityColor(d.Severity).Sprintf("%s[%s]", d.Severity, d.Code.ID())
		fmt.Fprintf(w, "%s %s: %s\n", sev, subjectColor.Sprint(d.Subject), d.Message)
		if !withNotes {
			continue
		}
		for _, n := range d.Notes {
			fmt.Fprintf(w, "  %s %s: %s\n", noteColor.Sprint("note"), n.Subject, n.Msg)
		}
	}
}

func printSummary(w io.Writer, res *lower.Result, bag *diag.Bag) {
	classes := 0
	for _, c := range res.Classes {
		c.Walk(func(*dex.ClassDef) { classes++ })
	}
	fmt.Fprintf(w, "%d classes", classes)
	if res.Application != "" {
		fmt.Fprintf(w, ", application %s", res.Application)
	}
	if n := bag.Count(diag.SevError); n > 0 {
		fmt.Fprintf(w, ", %s", errorColor.Sprintf("%d errors", n))
	}
	if n := bag.Count(diag.SevWarning); n > 0 {
		fmt.Fprintf(w, ", %s", warningColor.Sprintf("%d warnings", n))
	}
	if len(res.Failed) > 0 {
		fmt.Fprintf(w, ", %s", errorColor.Sprintf("%d abandoned types", len(res.Failed)))
	}
	fmt.Fprintln(w)
	for _, name := range res.Failed {
		fmt.Fprintf(w, "  %s %s\n", errorColor.Sprint("abandoned"), name)
	}
}
