// Package hints provides actionable error hints for common failure scenarios.
// Hints are formatted consistently as "\n  hint: <text>" for appending to error messages.
package hints

import (
	"sort"
	"strings"

	"github.com/docxology/go-manuscript/internal/fileutil"
)

// IsInContainer detects if running inside a Docker container or similar.
// Checks for /.dockerenv file which Docker creates automatically.
var IsInContainer = func() bool {
	return fileutil.FileExists("/.dockerenv")
}

// ForToolNotFound returns install hints for a missing external tool.
func ForToolNotFound(tool string) string {
	var hints []string
	switch tool {
	case "pandoc":
		hints = append(hints, "install pandoc (https://pandoc.org/installing.html)")
	case "pdflatex", "xelatex", "lualatex", "bibtex", "biber":
		hints = append(hints, "install a TeX distribution providing "+tool+" (TeX Live, MiKTeX, MacTeX)")
		if IsInContainer() {
			hints = append(hints, "use a TeX Live base image such as texlive/texlive")
		}
	default:
		hints = append(hints, "make sure "+tool+" is on PATH")
	}
	hints = append(hints, "run 'manuscript doctor' to check the toolchain")
	return formatHints(hints)
}

// ForTimeout returns a hint about increasing timeout for slow operations.
func ForTimeout() string {
	return format("for large manuscripts, use --timeout flag")
}

// ForMissingPackages suggests a tlmgr command for LaTeX packages the log reported missing.
func ForMissingPackages(packages []string) string {
	if len(packages) == 0 {
		return ""
	}
	sorted := append([]string(nil), packages...)
	sort.Strings(sorted)
	return format("install missing LaTeX packages: tlmgr install " + strings.Join(sorted, " "))
}

// ForMissingAssets points at the figures directory when the compiler could not find figures.
func ForMissingAssets(figuresDir string) string {
	if figuresDir == "" {
		return ""
	}
	return format("check that referenced figures exist in " + figuresDir)
}

// ForUndefinedGraphics explains an undefined \includegraphics.
func ForUndefinedGraphics() string {
	return format(`add \usepackage{graphicx} to a latex block in the preamble fragment`)
}

// ForConfigNotFound returns hints for config file not found errors.
// Suggests --config flag and creating a config in ~/.config/go-manuscript/.
func ForConfigNotFound(searchedPaths []string) string {
	hint := "use --config /path/to/file.yaml"

	for _, p := range searchedPaths {
		if strings.Contains(p, ".config/go-manuscript") {
			hint += " or create " + p
			break
		}
	}

	return format(hint)
}

// ForOutputDirectory returns hints for output directory creation errors.
func ForOutputDirectory() string {
	return format("check parent directory exists and is writable")
}

// format creates a single hint string with consistent formatting.
func format(hint string) string {
	if hint == "" {
		return ""
	}
	return "\n  hint: " + hint
}

// formatHints joins multiple hints with consistent formatting.
func formatHints(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	return format(strings.Join(hints, "; "))
}

// ForNoFragments explains which files count as manuscript fragments.
func ForNoFragments() string {
	return format("fragments are *.md files in the manuscript directory, excluding preamble.md and names starting with _ or .")
}
