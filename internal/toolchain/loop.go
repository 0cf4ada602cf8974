package toolchain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/docxology/go-manuscript/internal/fileutil"
	"github.com/docxology/go-manuscript/internal/process"
)

// MaxPasses is the hard ceiling on compiler invocations per run.
const MaxPasses = 4

// State is a Compilation Loop state.
type State int

const (
	StateInitial State = iota
	StateFirstPass
	StateBibliography
	StateAdditionalPass
	StateConverged
	StateFailed
	StateExhausted
)

var stateNames = [...]string{
	StateInitial:        "initial",
	StateFirstPass:      "first-pass",
	StateBibliography:   "bibliography",
	StateAdditionalPass: "additional-pass",
	StateConverged:      "converged",
	StateFailed:         "failed",
	StateExhausted:      "exhausted",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether the loop stops in this state.
func (s State) Terminal() bool {
	return s == StateConverged || s == StateFailed || s == StateExhausted
}

// Job is one compilation request. JobName.tex must exist in Dir.
type Job struct {
	Dir          string // sandbox: compiler working directory
	JobName      string // shared working name of .tex/.log/.aux/.pdf
	OutputName   string // public artifact name without extension
	Bibliography string // .bib path; empty skips the bibliography stage
}

// Attempt records one compiler invocation.
type Attempt struct {
	Pass           int
	ExitCode       int
	Log            string
	Fatal          bool
	Converged      bool
	ArtifactExists bool
	Duration       time.Duration
}

// LoopResult is the outcome of a run. It is returned alongside compilation
// errors so callers can surface diagnostics.
type LoopResult struct {
	State        State
	Attempts     []Attempt
	Artifact     string
	Partial      bool
	Bibliography BibOutcome
	Diagnostics  Diagnostics
	Warnings     []string
}

// Passes returns the number of compiler invocations.
func (r *LoopResult) Passes() int {
	return len(r.Attempts)
}

// Loop drives the compiler until the document converges.
type Loop struct {
	Engine    Engine
	Runner    process.Runner
	Bib       BibliographyResolver
	Converged ConvergenceFunc // nil = Engine.Convergence()
	MaxPasses int             // 0 or > MaxPasses = MaxPasses
	Timeout   time.Duration
	Logger    *zap.Logger
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithBibResolver sets the bibliography stage.
func WithBibResolver(b BibliographyResolver) LoopOption {
	return func(l *Loop) { l.Bib = b }
}

// WithConvergence replaces the engine's convergence predicate.
func WithConvergence(fn ConvergenceFunc) LoopOption {
	return func(l *Loop) { l.Converged = fn }
}

// WithMaxPasses lowers the pass ceiling. Values above MaxPasses are clamped.
func WithMaxPasses(n int) LoopOption {
	return func(l *Loop) { l.MaxPasses = n }
}

// WithLoopTimeout bounds each compiler invocation.
func WithLoopTimeout(d time.Duration) LoopOption {
	return func(l *Loop) { l.Timeout = d }
}

// WithLoopLogger sets the logger.
func WithLoopLogger(logger *zap.Logger) LoopOption {
	return func(l *Loop) { l.Logger = logger }
}

// NewLoop creates a Loop for engine. A nil runner uses a real process runner.
func NewLoop(engine Engine, runner process.Runner, opts ...LoopOption) *Loop {
	if runner == nil {
		runner = process.NewExecRunner()
	}
	l := &Loop{Engine: engine, Runner: runner, MaxPasses: MaxPasses}
	for _, opt := range opts {
		opt(l)
	}
	if l.Logger == nil {
		l.Logger = zap.NewNop()
	}
	return l
}

func (l *Loop) maxPasses() int {
	if l.MaxPasses <= 0 || l.MaxPasses > MaxPasses {
		return MaxPasses
	}
	return l.MaxPasses
}

func (l *Loop) convergence() ConvergenceFunc {
	if l.Converged != nil {
		return l.Converged
	}
	return l.Engine.Convergence()
}

// Run executes FIRST_PASS, the optional BIBLIOGRAPHY stage, and up to
// MaxPasses-1 ADDITIONAL_PASSes. It fails only when no artifact was ever
// produced or a compiler invocation could not complete. Intermediate files
// are never deleted.
func (l *Loop) Run(ctx context.Context, job Job) (*LoopResult, error) {
	if job.Dir == "" || job.JobName == "" {
		return nil, fmt.Errorf("%w: working directory and job name are required", ErrInvalidJob)
	}
	if job.OutputName == "" {
		job.OutputName = job.JobName
	}

	res := &LoopResult{State: StateInitial}
	artifact := l.Engine.ArtifactPath(job.Dir, job.JobName)
	public := filepath.Join(job.Dir, job.OutputName+".pdf")
	logPath := filepath.Join(job.Dir, job.JobName+".log")

	for _, stale := range []string{artifact, public} {
		if _, err := fileutil.RemoveIfExists(stale); err != nil {
			return nil, fmt.Errorf("%w: removing stale artifact: %w", ErrCompilation, err)
		}
	}

	defer func() {
		res.Diagnostics = ExtractDiagnostics(logPath)
	}()

	maxPasses := l.maxPasses()
	converged := l.convergence()

	res.State = StateFirstPass
	att, err := l.compile(ctx, job, 1, converged)
	if err != nil {
		res.State = StateFailed
		return res, err
	}
	res.Attempts = append(res.Attempts, att.Attempt)
	if att.Fatal && !att.ArtifactExists {
		res.State = StateFailed
		return res, fmt.Errorf("%w: %w", ErrCompilation, att.toolError(l.Engine))
	}

	bibPerformed := false
	if job.Bibliography != "" && l.Bib != nil {
		res.State = StateBibliography
		res.Bibliography = l.Bib.Resolve(ctx, job.Dir, job.JobName, job.Bibliography)
		switch {
		case !res.Bibliography.Performed:
			l.warn(res, "bibliography not resolved: "+res.Bibliography.Reason)
		case res.Bibliography.Warning != "":
			l.warn(res, "bibliography tool reported problems: "+res.Bibliography.Warning)
		}
		bibPerformed = res.Bibliography.Performed
	} else {
		l.Logger.Debug("bibliography stage skipped")
	}

	if att.Converged && !bibPerformed {
		res.State = StateConverged
		return res, l.publish(res, artifact, public)
	}

	for pass := 2; pass <= maxPasses; pass++ {
		res.State = StateAdditionalPass
		att, err = l.compile(ctx, job, pass, converged)
		if err != nil {
			res.State = StateFailed
			return res, err
		}
		res.Attempts = append(res.Attempts, att.Attempt)

		if att.Fatal {
			if !att.ArtifactExists {
				res.State = StateFailed
				return res, fmt.Errorf("%w: %w", ErrCompilation, att.toolError(l.Engine))
			}
			res.Partial = true
			res.State = StateConverged
			l.warn(res, fmt.Sprintf("pass %d aborted; keeping the artifact from the earlier pass", pass))
			return res, l.publish(res, artifact, public)
		}

		if att.Converged {
			res.State = StateConverged
			return res, l.publish(res, artifact, public)
		}
	}

	res.State = StateExhausted
	if !fileutil.FileExists(artifact) {
		res.State = StateFailed
		return res, fmt.Errorf("%w: no artifact after %d passes", ErrCompilation, res.Passes())
	}
	l.warn(res, fmt.Sprintf("document did not converge after %d passes; cross-references may be stale", res.Passes()))
	return res, l.publish(res, artifact, public)
}

// attempt carries the log text alongside the recorded Attempt.
type attempt struct {
	Attempt
	text   string
	stdout string
}

func (a attempt) toolError(e Engine) *ToolError {
	text := a.text
	if text == "" {
		text = a.stdout
	}
	return newToolError(e.Binary(), a.ExitCode, text)
}

func (l *Loop) compile(ctx context.Context, job Job, pass int, converged ConvergenceFunc) (attempt, error) {
	binary := l.Engine.Binary()
	l.Logger.Debug("compiling", zap.String("engine", binary), zap.Int("pass", pass))

	out, err := l.Runner.Run(ctx, process.Command{
		Name:    binary,
		Args:    l.Engine.Args(job.JobName + ".tex"),
		Dir:     job.Dir,
		Timeout: l.Timeout,
	})
	if err != nil {
		return attempt{}, fmt.Errorf("%w: pass %d: %w", ErrCompilation, pass, classify(binary, err))
	}

	logPath := filepath.Join(job.Dir, job.JobName+".log")
	text := readLog(logPath)

	a := attempt{
		Attempt: Attempt{
			Pass:           pass,
			ExitCode:       out.ExitCode,
			Log:            logPath,
			ArtifactExists: fileutil.FileExists(l.Engine.ArtifactPath(job.Dir, job.JobName)),
			Duration:       out.Duration,
		},
		text:   text,
		stdout: out.Stdout,
	}
	if text == "" {
		text = out.Stdout
	}
	a.Fatal = out.ExitCode != 0 || HasFatalSignature(text)
	a.Converged = !a.Fatal && converged(text)

	l.Logger.Debug("pass finished",
		zap.Int("pass", pass),
		zap.Int("exit_code", out.ExitCode),
		zap.Bool("fatal", a.Fatal),
		zap.Bool("converged", a.Converged),
		zap.Bool("artifact", a.ArtifactExists))

	return a, nil
}

// publish renames the working-name artifact to the public name.
func (l *Loop) publish(res *LoopResult, artifact, public string) error {
	if artifact != public {
		if err := os.Rename(artifact, public); err != nil {
			res.State = StateFailed
			return fmt.Errorf("%w: publishing artifact: %w", ErrCompilation, err)
		}
	}
	res.Artifact = public
	l.Logger.Info("compiled",
		zap.String("artifact", public),
		zap.Int("passes", res.Passes()),
		zap.Stringer("state", res.State),
		zap.Bool("partial", res.Partial))
	return nil
}

func (l *Loop) warn(res *LoopResult, msg string) {
	res.Warnings = append(res.Warnings, msg)
	l.Logger.Warn(msg)
}

func readLog(path string) string {
	data, err := os.ReadFile(path) // #nosec G304 -- log path is derived from the job
	if err != nil {
		return ""
	}
	return string(data)
}
