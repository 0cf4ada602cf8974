package pipeline

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/docxology/go-manuscript/internal/fileutil"
)

// DefaultCanonicalPrefix is the figure prefix seen from <output>/pdf when
// figures live in <output>/figures.
const DefaultCanonicalPrefix = "../figures/"

// includeGraphicsRe matches \includegraphics[options]{target}.
// Group 1: options including brackets (optional). Group 2: target.
var includeGraphicsRe = regexp.MustCompile(`\\includegraphics(\s*\[[^\]]*\])?\s*\{([^{}]*)\}`)

// AssetRef records what happened to one \includegraphics reference.
type AssetRef struct {
	Original  string // target as found in the markup
	Target    string // target after rewriting (== Original when untouched)
	Options   string // rendering options, verbatim, brackets included
	Filename  string // path relative to the figures directory
	Found     bool   // file exists in the figures directory
	Rewritten bool
}

// AssetRewriter defines the contract for figure path normalization.
type AssetRewriter interface {
	Rewrite(tex string) (string, []AssetRef)
}

// PathRewriter normalizes figure references to the canonical prefix the
// compiler's working directory expects.
type PathRewriter struct {
	FiguresDir string
	Prefix     string
	Logger     *zap.Logger
}

// NewPathRewriter builds a rewriter whose prefix is the relative path from
// workDir to figuresDir (DefaultCanonicalPrefix when that cannot be computed).
func NewPathRewriter(figuresDir, workDir string, logger *zap.Logger) *PathRewriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PathRewriter{
		FiguresDir: figuresDir,
		Prefix:     CanonicalPrefix(figuresDir, workDir),
		Logger:     logger,
	}
}

// CanonicalPrefix returns the slash-terminated relative path from workDir to figuresDir.
func CanonicalPrefix(figuresDir, workDir string) string {
	if figuresDir == "" || workDir == "" {
		return DefaultCanonicalPrefix
	}
	absFig, err := filepath.Abs(figuresDir)
	if err != nil {
		return DefaultCanonicalPrefix
	}
	absWork, err := filepath.Abs(workDir)
	if err != nil {
		return DefaultCanonicalPrefix
	}
	rel, err := filepath.Rel(absWork, absFig)
	if err != nil {
		return DefaultCanonicalPrefix
	}
	return filepath.ToSlash(rel) + "/"
}

// Rewrite rewrites every figure reference in tex and reports each one.
// References already under the canonical prefix are left byte-for-byte
// unchanged, so Rewrite is idempotent. Missing files are still rewritten;
// the compiler reports them.
func (r *PathRewriter) Rewrite(tex string) (string, []AssetRef) {
	var refs []AssetRef

	out := includeGraphicsRe.ReplaceAllStringFunc(tex, func(match string) string {
		sub := includeGraphicsRe.FindStringSubmatch(match)
		options, target := sub[1], strings.TrimSpace(sub[2])

		ref := AssetRef{Original: target, Target: target, Options: options}

		switch {
		case target == "" || fileutil.IsURL(target):
			refs = append(refs, ref)
			return match
		case strings.HasPrefix(target, r.prefix()):
			ref.Filename = strings.TrimPrefix(target, r.prefix())
			ref.Found = r.exists(ref.Filename)
			refs = append(refs, ref)
			return match
		}

		name, found := r.resolve(r.stripLegacy(target))
		ref.Filename = name
		ref.Found = found
		ref.Target = r.prefix() + name
		ref.Rewritten = true
		refs = append(refs, ref)

		if !found {
			r.Logger.Warn("figure not found in figures directory",
				zap.String("reference", target),
				zap.String("figures_dir", r.FiguresDir))
		}

		return `\includegraphics` + options + "{" + ref.Target + "}"
	})

	return out, refs
}

func (r *PathRewriter) prefix() string {
	if r.Prefix == "" {
		return DefaultCanonicalPrefix
	}
	return r.Prefix
}

// stripLegacy reduces a reference to its path inside the figures directory.
// Recognized forms, in order:
//   - the absolute figures directory (/abs/output/figures/plot.png)
//   - anything up to and including a "<figures>/" segment
//     (../output/figures/, output/figures/, ./figures/, figures/, /elsewhere/figures/)
//   - anything else: the bare file name
func (r *PathRewriter) stripLegacy(target string) string {
	slashed := filepath.ToSlash(target)

	if r.FiguresDir != "" {
		if abs, err := filepath.Abs(r.FiguresDir); err == nil {
			if rest, ok := strings.CutPrefix(slashed, filepath.ToSlash(abs)+"/"); ok {
				return rest
			}
		}
	}

	segment := "/" + r.figuresBase() + "/"
	if idx := strings.LastIndex("/"+slashed, segment); idx >= 0 {
		return ("/" + slashed)[idx+len(segment):]
	}

	return path.Base(slashed)
}

func (r *PathRewriter) figuresBase() string {
	if r.FiguresDir == "" {
		return "figures"
	}
	return filepath.Base(filepath.Clean(r.FiguresDir))
}

// resolve applies canonical composition and picks the on-disk spelling:
// composed if it exists, else as-given if it exists, else composed.
func (r *PathRewriter) resolve(name string) (string, bool) {
	composed := norm.NFC.String(name)
	if r.exists(composed) {
		return composed, true
	}
	if composed != name && r.exists(name) {
		return name, true
	}
	return composed, false
}

func (r *PathRewriter) exists(name string) bool {
	if r.FiguresDir == "" || name == "" {
		return false
	}
	return fileutil.FileExists(filepath.Join(r.FiguresDir, filepath.FromSlash(name)))
}
