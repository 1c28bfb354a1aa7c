package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dexlower/internal/config"
	"dexlower/internal/dex"
	"dexlower/internal/mapping"
)

const cliModel = `module = "demo"

[[types]]
namespace = "Demo"
name = "Point"
kind = "struct"
base = "System.ValueType"
used_in_nullable = true
  [[types.fields]]
  name = "X"
  type = "int"
  access = "public"
`

// execute runs the root command with args. Flag values survive between
// Execute calls, so the output flags are reset first.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	for _, name := range []string{"output", "map"} {
		if err := lowerCmd.Flags().Set(name, ""); err != nil {
			t.Fatal(err)
		}
	}
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err = rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func TestReadSwitch(t *testing.T) {
	tests := []struct {
		in      string
		want    switchMode
		wantErr bool
	}{
		{"", modeAuto, false},
		{"AUTO", modeAuto, false},
		{" on ", modeOn, false},
		{"off", modeOff, false},
		{"sometimes", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := readSwitch("ui", tt.in)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Fatalf("readSwitch(%q) = %q, %v", tt.in, got, err)
			}
		})
	}
	if !modeOn.enabled(nil) || modeOff.enabled(nil) {
		t.Fatal("explicit modes ignore the terminal")
	}
}

func TestLowerOptionsFromConfig(t *testing.T) {
	cfg, err := config.Parse("[lower]\nwitness_field_threshold = 2\njobs = 3\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	opts := lowerOptions(cfg.Lower)
	if opts.WitnessFieldThreshold != 2 || opts.Jobs != 3 || !opts.PropertyAnnotations {
		t.Fatalf("options = %+v", opts)
	}
	if opts.GeneratedCodeClass != "GeneratedCode" || opts.GeneratedCodeNamespace != "dot42/generated" {
		t.Fatalf("generated code location = %s/%s", opts.GeneratedCodeNamespace, opts.GeneratedCodeClass)
	}
}

func TestLowerCommandWritesOutputs(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.toml")
	if err := os.WriteFile(modelPath, []byte(cliModel), 0o644); err != nil {
		t.Fatal(err)
	}
	snapPath := filepath.Join(dir, "out.snap")
	mapPath := filepath.Join(dir, "out.map")

	out, errOut, err := execute(t, "lower", "--ui", "off", "--color", "off", "-o", snapPath, "--map", mapPath, modelPath)
	if err != nil {
		t.Fatalf("lower: %v\n%s", err, errOut)
	}
	if !strings.Contains(out, "3 classes") {
		t.Fatalf("summary = %q", out)
	}

	f, err := os.Open(snapPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	snap, err := dex.ReadSnapshot(f)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snap.Module != "demo" || len(snap.Classes) != 3 {
		t.Fatalf("snapshot = %s with %d classes", snap.Module, len(snap.Classes))
	}
	var point *dex.SnapClass
	for i := range snap.Classes {
		if snap.Classes[i].Name == "demo/Point" {
			point = &snap.Classes[i]
		}
	}
	if point == nil || point.Super != "Ldemo/Point$NullableBase;" {
		t.Fatalf("Point = %+v", point)
	}

	mf, err := os.Open(mapPath)
	if err != nil {
		t.Fatal(err)
	}
	defer mf.Close()
	m, err := mapping.Decode(mf)
	if err != nil {
		t.Fatalf("decode map: %v", err)
	}
	if e := m.ByName("Demo.Point"); e == nil || e.DexName != "demo/Point" {
		t.Fatalf("map entry = %+v", e)
	}
}

func TestLowerCommandFailsOnAbandonedType(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.toml")
	text := cliModel + `
[[types]]
namespace = "Demo"
name = "Orphan"
kind = "class"
base = "Demo.Missing"
`
	if err := os.WriteFile(modelPath, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	out, errOut, err := execute(t, "lower", "--ui", "off", "--color", "off", modelPath)
	if !errors.Is(err, errLowerFailed) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(out, "abandoned Demo.Orphan") {
		t.Fatalf("summary = %q", out)
	}
	if !strings.Contains(errOut, "Demo.Orphan") {
		t.Fatalf("diagnostics = %q", errOut)
	}
}
