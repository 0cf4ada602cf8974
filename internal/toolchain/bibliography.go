package toolchain

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/docxology/go-manuscript/internal/fileutil"
	"github.com/docxology/go-manuscript/internal/process"
)

// BibTool is a bibliography processor. The set is closed.
type BibTool int

const (
	BibTeX BibTool = iota
	Biber
)

// ParseBibTool converts a tool name (case-insensitive, empty = bibtex).
func ParseBibTool(s string) (BibTool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "bibtex":
		return BibTeX, nil
	case "biber":
		return Biber, nil
	}
	return BibTeX, fmt.Errorf("%w: %q (must be bibtex or biber)", ErrInvalidBibTool, s)
}

func (t BibTool) String() string {
	if t == Biber {
		return "biber"
	}
	return "bibtex"
}

// ControlExt is the extension of the control file the first compiler pass
// must leave behind for this tool.
func (t BibTool) ControlExt() string {
	if t == Biber {
		return ".bcf"
	}
	return ".aux"
}

// BibOutcome reports what the bibliography stage did.
type BibOutcome struct {
	Performed bool
	Tool      string
	ExitCode  int
	Reason    string // why the tool was not run
	Warning   string // non-zero exit summary; the stage still counts as performed
}

// BibliographyResolver defines the contract for citation resolution.
type BibliographyResolver interface {
	Resolve(ctx context.Context, sandbox, jobName, bibPath string) BibOutcome
}

// BibResolver runs bibtex or biber inside the compiler's working directory.
type BibResolver struct {
	Tool    BibTool
	Runner  process.Runner
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewBibResolver creates a BibResolver. A nil runner uses a real process
// runner and a nil logger disables logging.
func NewBibResolver(tool BibTool, runner process.Runner, timeout time.Duration, logger *zap.Logger) *BibResolver {
	if runner == nil {
		runner = process.NewExecRunner()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BibResolver{Tool: tool, Runner: runner, Timeout: timeout, Logger: logger}
}

// Resolve never fails. Missing inputs, a missing tool, a timeout, or a copy
// failure yield Performed=false with a Reason. A non-zero exit is recorded
// as a Warning on a performed outcome.
func (r *BibResolver) Resolve(ctx context.Context, sandbox, jobName, bibPath string) BibOutcome {
	outcome := BibOutcome{Tool: r.Tool.String()}

	if bibPath == "" || !fileutil.FileExists(bibPath) {
		outcome.Reason = "bibliography database not found"
		return outcome
	}

	control := jobName + r.Tool.ControlExt()
	if !fileutil.FileExists(filepath.Join(sandbox, control)) {
		outcome.Reason = control + " not produced by the first pass"
		return outcome
	}

	// Restricted openout/openin modes keep the tool inside its working
	// directory, so the database travels with the job.
	dst := filepath.Join(sandbox, filepath.Base(bibPath))
	if !samePath(bibPath, dst) {
		if err := fileutil.CopyFile(bibPath, dst); err != nil {
			outcome.Reason = "copying bibliography database: " + err.Error()
			return outcome
		}
	}

	r.Logger.Debug("resolving bibliography", zap.String("tool", outcome.Tool), zap.String("control", control))

	out, err := r.Runner.Run(ctx, process.Command{
		Name:    outcome.Tool,
		Args:    []string{control},
		Dir:     sandbox,
		Timeout: r.Timeout,
	})
	if err != nil {
		outcome.Reason = classify(outcome.Tool, err).Error()
		return outcome
	}

	outcome.Performed = true
	outcome.ExitCode = out.ExitCode
	if out.ExitCode != 0 {
		outcome.Warning = newToolError(outcome.Tool, out.ExitCode, out.Stdout, out.Stderr).Error()
	}
	return outcome
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
