// Package config loads lowering options from dexlower.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file searched for by Find.
const FileName = "dexlower.toml"

// Lower holds the [lower] section.
type Lower struct {
	WitnessFieldThreshold  int    `toml:"witness_field_threshold"`
	PropertyAnnotations    bool   `toml:"property_annotations"`
	GeneratedCodeClass     string `toml:"generated_code_class"`
	GeneratedCodeNamespace string `toml:"generated_code_namespace"`
	MaxDiagnostics         int    `toml:"max_diagnostics"`
	Jobs                   int    `toml:"jobs"`
}

// Trace holds the [trace] section.
type Trace struct {
	Level  string `toml:"level"`
	Mode   string `toml:"mode"`
	Output string `toml:"output"`
}

// Options is the decoded configuration file.
type Options struct {
	Lower Lower `toml:"lower"`
	Trace Trace `toml:"trace"`

	// Path is the file the options came from; empty for defaults.
	Path string `toml:"-"`
}

// Default returns the options used when no file is present.
func Default() Options {
	return Options{
		Lower: Lower{
			WitnessFieldThreshold:  4,
			PropertyAnnotations:    true,
			GeneratedCodeClass:     "GeneratedCode",
			GeneratedCodeNamespace: "dot42/generated",
			MaxDiagnostics:         200,
		},
		Trace: Trace{
			Level:  "off",
			Mode:   "stream",
			Output: "-",
		},
	}
}

// Find walks up from startDir to locate dexlower.toml.
func Find(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load decodes path over the defaults.
func Load(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, err
	}
	opts, err := Parse(string(data))
	if err != nil {
		return Options{}, fmt.Errorf("%s: %w", path, err)
	}
	opts.Path = path
	return opts, nil
}

// Parse decodes TOML text over the defaults.
func Parse(text string) (Options, error) {
	opts := Default()
	if _, err := toml.Decode(text, &opts); err != nil {
		return Options{}, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if err := opts.validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Discover loads the nearest dexlower.toml above startDir, or the defaults.
func Discover(startDir string) (Options, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Options{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

func (o *Options) validate() error {
	if o.Lower.WitnessFieldThreshold <= 0 {
		return errors.New("invalid [lower].witness_field_threshold")
	}
	if o.Lower.MaxDiagnostics <= 0 {
		return errors.New("invalid [lower].max_diagnostics")
	}
	if o.Lower.Jobs < 0 {
		return errors.New("invalid [lower].jobs")
	}
	o.Lower.GeneratedCodeClass = strings.TrimSpace(o.Lower.GeneratedCodeClass)
	if o.Lower.GeneratedCodeClass == "" {
		return errors.New("invalid [lower].generated_code_class")
	}
	o.Lower.GeneratedCodeNamespace = strings.Trim(strings.TrimSpace(o.Lower.GeneratedCodeNamespace), "/")
	switch o.Trace.Level {
	case "off", "error", "phase", "detail", "debug":
	default:
		return fmt.Errorf("invalid [trace].level %q", o.Trace.Level)
	}
	switch o.Trace.Mode {
	case "stream", "ring", "both":
	default:
		return fmt.Errorf("invalid [trace].mode %q", o.Trace.Mode)
	}
	return nil
}
