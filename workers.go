package manuscript

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Worker sizing constants.
const (
	// MinWorkers ensures at least one project builds at a time.
	MinWorkers = 1

	// MaxWorkers caps concurrent TeX runs; each engine process is memory heavy.
	MaxWorkers = 4

	// cpuDivisor leaves headroom for the engine's own child processes.
	cpuDivisor = 2
)

// ResolveWorkers determines how many projects to build at once.
// Priority: explicit workers > GOMAXPROCS-based calculation.
func ResolveWorkers(workers int) int {
	if workers > 0 {
		return workers
	}

	// GOMAXPROCS is adjusted by automaxprocs for containers.
	n := runtime.GOMAXPROCS(0) / cpuDivisor

	if n < MinWorkers {
		return MinWorkers
	}
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}

// BuildOutcome pairs one project's input with its result.
type BuildOutcome struct {
	Input  Input
	Result *Result
	Err    error
}

// BuildAll builds independent projects concurrently, at most workers at a
// time (0 = ResolveWorkers). A failing project does not stop the others.
// Outcomes are returned in input order. Projects sharing an output
// directory are rejected before anything runs.
func (b *Builder) BuildAll(ctx context.Context, inputs []Input, workers int) ([]BuildOutcome, error) {
	seen := make(map[string]string, len(inputs))
	for _, in := range inputs {
		dir, err := filepath.Abs(in.OutputDir)
		if err != nil {
			return nil, fmt.Errorf("%w: output directory %q: %v", ErrInvalidInput, in.OutputDir, err)
		}
		if other, dup := seen[dir]; dup {
			return nil, fmt.Errorf("%w: projects %q and %q share output directory %s", ErrInvalidInput, other, in.Name, dir)
		}
		seen[dir] = in.Name
	}

	outcomes := make([]BuildOutcome, len(inputs))
	var g errgroup.Group
	g.SetLimit(ResolveWorkers(workers))

	for i, in := range inputs {
		g.Go(func() error {
			res, err := b.Build(ctx, in)
			outcomes[i] = BuildOutcome{Input: in, Result: res, Err: err}
			return nil
		})
	}

	// Goroutines never return errors; cancellation surfaces per outcome.
	_ = g.Wait()
	return outcomes, ctx.Err()
}
