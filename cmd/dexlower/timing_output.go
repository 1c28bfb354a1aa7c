package main

import (
	"fmt"
	"io"
	"time"

	"dexlower/internal/pipeline"
)

func printStageTimings(out io.Writer, timings pipeline.Timings) {
	if out == nil {
		return
	}
	for _, stage := range pipeline.Stages {
		if !timings.Has(stage) {
			continue
		}
		fmt.Fprintf(out, "%-10s %.1f ms\n", stage, toMillis(timings.Duration(stage)))
	}
	built := timings.Sum(pipeline.StageCreate, pipeline.StageImplement, pipeline.StageFixUp,
		pipeline.StageAnnotate, pipeline.StageGenerate)
	if built > 0 {
		fmt.Fprintf(out, "built %.1f ms\n", toMillis(built))
	}
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
