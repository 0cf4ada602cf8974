package toolchain

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Engine is a LaTeX compiler backend. The set is closed.
type Engine int

const (
	PDFLaTeX Engine = iota
	XeLaTeX
	LuaLaTeX
)

// DefaultEngine handles Unicode input without extra packages.
const DefaultEngine = XeLaTeX

var engineNames = map[Engine]string{
	PDFLaTeX: "pdflatex",
	XeLaTeX:  "xelatex",
	LuaLaTeX: "lualatex",
}

// Engines lists every supported engine.
func Engines() []Engine {
	return []Engine{PDFLaTeX, XeLaTeX, LuaLaTeX}
}

// ParseEngine converts an engine name (case-insensitive, empty = default).
func ParseEngine(s string) (Engine, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return DefaultEngine, nil
	}
	for e, n := range engineNames {
		if n == name {
			return e, nil
		}
	}
	return DefaultEngine, fmt.Errorf("%w: %q (must be pdflatex, xelatex, or lualatex)", ErrInvalidEngine, s)
}

func (e Engine) String() string {
	if n, ok := engineNames[e]; ok {
		return n
	}
	return fmt.Sprintf("Engine(%d)", int(e))
}

// Binary returns the executable name.
func (e Engine) Binary() string {
	return e.String()
}

// Args returns the command line for compiling jobFile from the working directory.
func (e Engine) Args(jobFile string) []string {
	return []string{"-interaction=nonstopmode", jobFile}
}

// ArtifactPath returns where the engine writes the PDF for jobName.
func (e Engine) ArtifactPath(dir, jobName string) string {
	return filepath.Join(dir, jobName+".pdf")
}

// Convergence returns the engine's default convergence predicate.
func (e Engine) Convergence() ConvergenceFunc {
	return LaTeXConverged
}

// ConvergenceFunc reports whether a compiler log shows a stable document,
// one where another pass would not change cross-references.
type ConvergenceFunc func(log string) bool

var (
	// Rerun requests only. The rerunfilecheck package banner ("Rerun checks
	// for auxiliary files") appears in every hyperref log and is not one.
	rerunRe     = regexp.MustCompile(`(?i)rerun to get|please rerun|rerun latex|\(rerunfilecheck\)\s+rerun`)
	undefinedRe = regexp.MustCompile("There were undefined (?:references|citations)|(?:Citation|Reference) `[^']*' on page \\S+ undefined")
)

// LaTeXConverged is the convergence check shared by the TeX engines: no
// rerun request and no undefined reference in the log.
func LaTeXConverged(log string) bool {
	return !rerunRe.MatchString(log) && !undefinedRe.MatchString(log)
}

// fatalSignatures mark a pass that aborted.
var fatalSignatures = []string{
	"Emergency stop",
	"Fatal error occurred",
	"no output PDF file produced",
	"==> Fatal error",
}

// HasFatalSignature reports whether the log shows an aborted run.
func HasFatalSignature(log string) bool {
	for _, sig := range fatalSignatures {
		if strings.Contains(log, sig) {
			return true
		}
	}
	return false
}
