package manuscript

import (
	"time"

	"go.uber.org/zap"

	"github.com/docxology/go-manuscript/internal/pipeline"
	"github.com/docxology/go-manuscript/internal/process"
	"github.com/docxology/go-manuscript/internal/toolchain"
)

// Engine selects the LaTeX compiler.
type Engine = toolchain.Engine

// Supported engines.
const (
	PDFLaTeX = toolchain.PDFLaTeX
	XeLaTeX  = toolchain.XeLaTeX
	LuaLaTeX = toolchain.LuaLaTeX
)

// Target selects the separator placed between fragments.
type Target = pipeline.Target

// Supported targets.
const (
	TargetPrint  = pipeline.TargetPrint
	TargetScreen = pipeline.TargetScreen
)

// BibTool selects the bibliography processor.
type BibTool = toolchain.BibTool

// Supported bibliography tools.
const (
	BibTeX = toolchain.BibTeX
	Biber  = toolchain.Biber
)

// State is the terminal state of the compilation loop.
type State = toolchain.State

// Terminal compilation states.
const (
	StateConverged = toolchain.StateConverged
	StateFailed    = toolchain.StateFailed
	StateExhausted = toolchain.StateExhausted
)

// Diagnostics summarizes problems found in the final compiler log.
type Diagnostics = toolchain.Diagnostics

// BibliographyOutcome reports what the bibliography stage did.
type BibliographyOutcome = toolchain.BibOutcome

// AssetRef records how one figure reference was rewritten.
type AssetRef = pipeline.AssetRef

// ConvergenceFunc reports whether a compiler log shows a stable document.
type ConvergenceFunc = toolchain.ConvergenceFunc

// Runner executes external tools. Replace it to run builds without pandoc
// or TeX installed.
type Runner = process.Runner

// Command and CommandOutput are the Runner's request and response.
type (
	Command       = process.Command
	CommandOutput = process.Output
)

// ParseEngine converts "pdflatex", "xelatex" or "lualatex" (empty = xelatex).
func ParseEngine(s string) (Engine, error) { return toolchain.ParseEngine(s) }

// ParseTarget converts "print" or "screen" (empty = print).
func ParseTarget(s string) (Target, error) { return pipeline.ParseTarget(s) }

// ParseBibTool converts "bibtex" or "biber" (empty = bibtex).
func ParseBibTool(s string) (BibTool, error) { return toolchain.ParseBibTool(s) }

// Default names.
const (
	DefaultName = "manuscript"
	// WorkingName is shared by the aggregated markdown and everything the
	// compiler writes, so renaming the PDF never collides with them.
	WorkingName = "_combined_manuscript"
	// WorkDirName is the compiler's working directory inside OutputDir.
	WorkDirName = "pdf"
	// FiguresDirName is the default figures directory inside OutputDir.
	FiguresDirName = "figures"
)

// Input describes one manuscript build.
type Input struct {
	Name         string    // public artifact name without extension (default "manuscript")
	Fragments    []string  // ordered markdown fragment paths (required)
	PreamblePath string    // fragment holding fenced latex blocks (optional)
	SourceDir    string    // pandoc resource path (default: directory of the first fragment)
	FiguresDir   string    // default <OutputDir>/figures
	OutputDir    string    // required; the build writes to <OutputDir>/pdf
	Bibliography string    // .bib database (optional)
	Metadata     *Metadata // title page data (optional, nil = no title block)
	Target       Target
}

// Metadata is the per-project title page data.
type Metadata struct {
	Title    string
	Subtitle string
	Authors  []string
	Date     string // explicit text, "auto", "auto:FORMAT", or empty for \today
}

// Result describes a finished build.
type Result struct {
	ArtifactPath  string
	Intermediates []string // retained working files, in pipeline order
	Passes        int
	State         State
	Partial       bool // a later pass aborted; the artifact is from an earlier pass
	Bibliography  BibliographyOutcome
	Diagnostics   Diagnostics
	Assets        []AssetRef
	Warnings      []string
}

// Option configures a Builder.
type Option func(*Builder)

// builderConfig holds internal configuration for Builder.
type builderConfig struct {
	timeout     time.Duration
	engine      Engine
	bibTool     BibTool
	biblioStyle string
	maxPasses   int
	pandocArgs  []string
	pandocBin   string
	convergence ConvergenceFunc
	now         func() time.Time
}

// defaultTimeout bounds each external tool invocation.
const defaultTimeout = 5 * time.Minute

// WithTimeout sets the per-invocation timeout for pandoc, the engine and
// the bibliography tool.
// Panics if d <= 0 (programmer error, similar to time.NewTicker).
func WithTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("manuscript: WithTimeout duration must be positive")
	}
	return func(b *Builder) {
		b.cfg.timeout = d
	}
}

// WithEngine selects the LaTeX engine.
func WithEngine(e Engine) Option {
	return func(b *Builder) {
		b.cfg.engine = e
	}
}

// WithBibTool selects bibtex or biber.
func WithBibTool(t BibTool) Option {
	return func(b *Builder) {
		b.cfg.bibTool = t
	}
}

// WithBiblioStyle sets the natbib bibliography style (default "plainnat").
func WithBiblioStyle(style string) Option {
	return func(b *Builder) {
		b.cfg.biblioStyle = style
	}
}

// WithMaxPasses lowers the compiler pass ceiling. It never exceeds four.
func WithMaxPasses(n int) Option {
	return func(b *Builder) {
		b.cfg.maxPasses = n
	}
}

// WithPandocArgs appends extra arguments to the pandoc command line.
func WithPandocArgs(args ...string) Option {
	return func(b *Builder) {
		b.cfg.pandocArgs = append(b.cfg.pandocArgs, args...)
	}
}

// WithPandocBinary overrides the pandoc executable name or path.
func WithPandocBinary(bin string) Option {
	return func(b *Builder) {
		b.cfg.pandocBin = bin
	}
}

// WithConvergence replaces the engine's convergence predicate.
func WithConvergence(fn ConvergenceFunc) Option {
	return func(b *Builder) {
		b.cfg.convergence = fn
	}
}

// WithNow sets the clock used for "auto" title dates.
func WithNow(now func() time.Time) Option {
	return func(b *Builder) {
		b.cfg.now = now
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// WithRunner replaces the process runner used for every external tool.
func WithRunner(r Runner) Option {
	return func(b *Builder) {
		b.runner = r
	}
}
