package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dexlower/internal/config"
)

func TestParseOverridesDefaults(t *testing.T) {
	opts, err := config.Parse(`
[lower]
witness_field_threshold = 2
generated_code_namespace = "/my/gen/"

[trace]
level = "detail"
`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if opts.Lower.WitnessFieldThreshold != 2 || opts.Lower.GeneratedCodeNamespace != "my/gen" {
		t.Fatalf("lower = %+v", opts.Lower)
	}
	if !opts.Lower.PropertyAnnotations || opts.Lower.MaxDiagnostics != 200 || opts.Trace.Mode != "stream" {
		t.Fatalf("defaults lost: %+v", opts)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"threshold", "[lower]\nwitness_field_threshold = -1\n", "witness_field_threshold"},
		{"class", "[lower]\ngenerated_code_class = \" \"\n", "generated_code_class"},
		{"level", "[trace]\nlevel = \"loud\"\n", "[trace].level"},
		{"syntax", "[lower\n", "TOML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse(tt.text)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestDiscoverWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, config.FileName), []byte("[lower]\nmax_diagnostics = 7\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	opts, err := config.Discover(nested)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if opts.Lower.MaxDiagnostics != 7 || filepath.Base(opts.Path) != config.FileName {
		t.Fatalf("opts = %+v", opts)
	}
}

func TestLoadReportsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.FileName)
	if err := os.WriteFile(path, []byte("[lower]\nmax_diagnostics = 0\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := config.Load(path)
	if err == nil || !strings.HasPrefix(err.Error(), path+": invalid [lower].max_diagnostics") {
		t.Fatalf("err = %v", err)
	}
}
