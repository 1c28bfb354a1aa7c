package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"dexlower/internal/config"
	"dexlower/internal/dex"
	"dexlower/internal/diag"
	"dexlower/internal/lower"
	"dexlower/internal/mapping"
	"dexlower/internal/model"
	"dexlower/internal/modelfile"
	"dexlower/internal/observ"
)

var lowerCmd = &cobra.Command{
	Use:   "lower [flags] <model.toml>",
	Short: "Lower a type model to register-level classes",
	Long:  `Lower reads a type model, builds every reachable class and writes a snapshot and a name map`,
	Args:  cobra.ExactArgs(1),
	RunE:  runLower,
}

func init() {
	lowerCmd.Flags().StringP("output", "o", "", "write the class snapshot (msgpack) to this file")
	lowerCmd.Flags().String("map", "", "write the source-to-dex name map to this file")
	lowerCmd.Flags().Bool("dump", false, "print the lowered classes")
	lowerCmd.Flags().Int("jobs", 0, "max parallel verification workers (0 = config or GOMAXPROCS)")
	lowerCmd.Flags().Bool("warnings-as-errors", false, "treat warnings as errors")
	lowerCmd.Flags().Bool("with-notes", false, "include diagnostic notes in output")
}

// errLowerFailed is returned once diagnostics are printed; main only needs
// the exit status.
var errLowerFailed = errors.New("lowering failed")

type lowerFlags struct {
	output           string
	mapPath          string
	dump             bool
	jobs             int
	warningsAsErrors bool
	withNotes        bool
	quiet            bool
	timings          bool
	maxDiagnostics   int
	ui               switchMode
}

func readLowerFlags(cmd *cobra.Command) (lowerFlags, error) {
	var f lowerFlags
	var err error
	if f.output, err = cmd.Flags().GetString("output"); err != nil {
		return f, fmt.Errorf("failed to get output flag: %w", err)
	}
	if f.mapPath, err = cmd.Flags().GetString("map"); err != nil {
		return f, fmt.Errorf("failed to get map flag: %w", err)
	}
	if f.dump, err = cmd.Flags().GetBool("dump"); err != nil {
		return f, fmt.Errorf("failed to get dump flag: %w", err)
	}
	if f.jobs, err = cmd.Flags().GetInt("jobs"); err != nil {
		return f, fmt.Errorf("failed to get jobs flag: %w", err)
	}
	if f.jobs < 0 {
		return f, fmt.Errorf("invalid --jobs value %d", f.jobs)
	}
	if f.warningsAsErrors, err = cmd.Flags().GetBool("warnings-as-errors"); err != nil {
		return f, fmt.Errorf("failed to get warnings-as-errors flag: %w", err)
	}
	if f.withNotes, err = cmd.Flags().GetBool("with-notes"); err != nil {
		return f, fmt.Errorf("failed to get with-notes flag: %w", err)
	}
	root := cmd.Root().PersistentFlags()
	if f.quiet, err = root.GetBool("quiet"); err != nil {
		return f, fmt.Errorf("failed to get quiet flag: %w", err)
	}
	if f.timings, err = root.GetBool("timings"); err != nil {
		return f, fmt.Errorf("failed to get timings flag: %w", err)
	}
	if f.maxDiagnostics, err = root.GetInt("max-diagnostics"); err != nil {
		return f, fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	uiValue, err := root.GetString("ui")
	if err != nil {
		return f, fmt.Errorf("failed to get ui flag: %w", err)
	}
	if f.ui, err = readSwitch("ui", uiValue); err != nil {
		return f, err
	}
	return f, nil
}

// runLower executes the "lower" command: it loads the configuration and the
// model, lowers it, writes the requested outputs and prints diagnostics.
// It fails when any error was reported or any type was abandoned.
func runLower(cmd *cobra.Command, args []string) error {
	modelPath := args[0]
	flags, err := readLowerFlags(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, filepath.Dir(modelPath))
	if err != nil {
		return err
	}
	cleanup, err := setupTracing(cmd, cfg.Trace)
	if err != nil {
		return err
	}
	defer cleanup()
	cmd.SilenceUsage = true

	timer := observ.NewTimer()
	idx := timer.Begin("load")
	module, err := modelfile.Load(modelPath)
	if err != nil {
		timer.End(idx, "failed")
		return err
	}
	timer.End(idx, fmt.Sprintf("%d types", len(module.Types)))

	maxDiagnostics := cfg.Lower.MaxDiagnostics
	if flags.maxDiagnostics > 0 {
		maxDiagnostics = flags.maxDiagnostics
	}
	bag := diag.NewBag(maxDiagnostics)
	opts := lowerOptions(cfg.Lower)
	if flags.jobs > 0 {
		opts.Jobs = flags.jobs
	}
	var sink diag.Reporter = diag.BagReporter{Bag: bag}
	if flags.warningsAsErrors {
		sink = diag.PromoteReporter{Next: sink}
	}
	req := lower.Request{
		Module:   module,
		Options:  opts,
		Reporter: diag.NewDedupReporter(sink),
	}
	var mapFile *mapping.MapFile
	if flags.mapPath != "" {
		mapFile = &mapping.MapFile{}
		req.Mapping = mapFile
	}

	idx = timer.Begin("lower")
	var res *lower.Result
	if !flags.quiet && flags.ui.enabled(os.Stdout) {
		res, err = runLowerWithUI(cmd.Context(), "lowering "+module.Name, typeNames(module), &req)
	} else {
		res, err = lower.Lower(cmd.Context(), req)
	}
	if err != nil {
		timer.End(idx, "failed")
		return err
	}
	timer.End(idx, fmt.Sprintf("%d classes", len(res.Classes)))

	idx = timer.Begin("write")
	if err := writeOutputs(module.Name, res, mapFile, flags); err != nil {
		timer.End(idx, "failed")
		return err
	}
	timer.End(idx, "")

	out := cmd.OutOrStdout()
	if flags.dump {
		if err := dex.Dump(out, res.Classes); err != nil {
			return err
		}
	}

	bag.Sort()
	printDiagnostics(cmd.ErrOrStderr(), bag.Items(), flags.withNotes)
	if flags.timings {
		printStageTimings(cmd.ErrOrStderr(), res.Timings)
		fmt.Fprint(cmd.ErrOrStderr(), timer.Summary())
	}
	if !flags.quiet {
		printSummary(out, res, bag)
	}

	if bag.HasErrors() || len(res.Failed) > 0 {
		return errLowerFailed
	}
	return nil
}

// loadConfig reads --config when given, otherwise the nearest dexlower.toml
// above dir.
func loadConfig(cmd *cobra.Command, dir string) (config.Options, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return config.Options{}, fmt.Errorf("failed to get config flag: %w", err)
	}
	if path != "" {
		return config.Load(path)
	}
	return config.Discover(dir)
}

func lowerOptions(l config.Lower) lower.Options {
	return lower.Options{
		WitnessFieldThreshold:  l.WitnessFieldThreshold,
		PropertyAnnotations:    l.PropertyAnnotations,
		GeneratedCodeClass:     l.GeneratedCodeClass,
		GeneratedCodeNamespace: l.GeneratedCodeNamespace,
		Jobs:                   l.Jobs,
	}
}

func typeNames(m *model.Module) []string {
	all := m.All()
	names := make([]string, 0, len(all))
	for _, t := range all {
		names = append(names, t.FullName())
	}
	return names
}

func writeOutputs(moduleName string, res *lower.Result, mapFile *mapping.MapFile, flags lowerFlags) error {
	if flags.output != "" {
		if err := writeFile(flags.output, func(f *os.File) error {
			return dex.WriteSnapshot(f, moduleName, res.Classes)
		}); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}
	if mapFile != nil {
		mapFile.Sort()
		if err := writeFile(flags.mapPath, func(f *os.File) error {
			return mapFile.Encode(f)
		}); err != nil {
			return fmt.Errorf("write map: %w", err)
		}
	}
	return nil
}

func writeFile(path string, write func(*os.File) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}
