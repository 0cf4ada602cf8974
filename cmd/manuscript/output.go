package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	manuscript "github.com/docxology/go-manuscript"
	"github.com/docxology/go-manuscript/internal/config"
	"github.com/docxology/go-manuscript/internal/hints"
)

// newLogger writes production-encoded console logs to w. Errors only by
// default; --verbose logs down to debug, one line per tool invocation.
func newLogger(w io.Writer, quiet, verbose bool) *zap.Logger {
	level := zapcore.ErrorLevel
	if verbose && !quiet {
		level = zapcore.DebugLevel
	}

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = ""
	enc.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), level)
	return zap.New(core)
}

// printOutcomes reports every project and returns the first failure,
// already printed, or nil when all projects produced a PDF.
func printOutcomes(outcomes []manuscript.BuildOutcome, common commonFlags, env *Environment) error {
	var firstErr error
	failed := 0

	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			if firstErr == nil {
				firstErr = o.Err
			}
			fmt.Fprintf(env.Stderr, "FAILED %s: %v%s\n", projectLabel(o.Input), o.Err, hintFor(o.Err))
			if o.Result != nil {
				printDiagnostics(env.Stderr, o.Result.Diagnostics, figuresDirOf(o.Input))
			}
			continue
		}

		res := o.Result
		if !common.quiet {
			for _, w := range res.Warnings {
				fmt.Fprintf(env.Stderr, "warning: %s\n", w)
			}
			printDiagnostics(env.Stderr, res.Diagnostics, figuresDirOf(o.Input))
		}

		if common.quiet {
			continue
		}
		if common.verbose {
			fmt.Fprintf(env.Stdout, "%s -> %s (%s, %d %s, bibliography %s)\n",
				projectLabel(o.Input), res.ArtifactPath, res.State, res.Passes,
				plural(res.Passes, "pass", "passes"), bibliographySummary(res.Bibliography))
		} else {
			fmt.Fprintf(env.Stdout, "Created %s\n", res.ArtifactPath)
		}
	}

	if !common.quiet && len(outcomes) > 1 {
		fmt.Fprintf(env.Stdout, "\n%d succeeded, %d failed\n", len(outcomes)-failed, failed)
	}

	if firstErr != nil {
		return &reportedError{err: firstErr}
	}
	return nil
}

// printDiagnostics lists the non-empty log findings, each with its hint.
func printDiagnostics(w io.Writer, d manuscript.Diagnostics, figuresDir string) {
	if d.IsEmpty() {
		return
	}
	if len(d.MissingPackages) > 0 {
		fmt.Fprintf(w, "  missing packages: %s%s\n", strings.Join(d.MissingPackages, ", "), hints.ForMissingPackages(d.MissingPackages))
	}
	if len(d.MissingAssets) > 0 {
		fmt.Fprintf(w, "  missing files: %s%s\n", strings.Join(d.MissingAssets, ", "), hints.ForMissingAssets(figuresDir))
	}
	if len(d.UndefinedGraphics) > 0 {
		fmt.Fprintf(w, "  undefined \\includegraphics: %d%s\n", len(d.UndefinedGraphics), hints.ForUndefinedGraphics())
	}
	for _, g := range d.GraphicsWarnings {
		fmt.Fprintf(w, "  graphics: %s\n", g)
	}
	if len(d.UnresolvedReferences) > 0 {
		fmt.Fprintf(w, "  unresolved references: %s\n", strings.Join(d.UnresolvedReferences, ", "))
	}
}

// hintFor returns an actionable suffix for errors with a known remedy.
func hintFor(err error) string {
	var missing *manuscript.MissingToolError
	switch {
	case errors.As(err, &missing):
		return hints.ForToolNotFound(missing.Tool)
	case errors.Is(err, manuscript.ErrToolTimeout):
		return hints.ForTimeout()
	case errors.Is(err, config.ErrConfigNotFound):
		return hints.ForConfigNotFound(nil)
	case errors.Is(err, manuscript.ErrNoFragments):
		return hints.ForNoFragments()
	case errors.Is(err, os.ErrPermission):
		return hints.ForOutputDirectory()
	}
	return ""
}

func bibliographySummary(b manuscript.BibliographyOutcome) string {
	switch {
	case b.Performed && b.Warning != "":
		return b.Tool + " with warnings"
	case b.Performed:
		return b.Tool
	case b.Reason != "":
		return "skipped: " + b.Reason
	}
	return "not configured"
}

// figuresDirOf mirrors the builder's default figures location.
func figuresDirOf(in manuscript.Input) string {
	if in.FiguresDir != "" {
		return in.FiguresDir
	}
	return filepath.Join(in.OutputDir, manuscript.FiguresDirName)
}

func projectLabel(in manuscript.Input) string {
	if in.SourceDir != "" {
		return in.SourceDir
	}
	return in.Name
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
