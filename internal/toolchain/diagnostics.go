package toolchain

import (
	"bufio"
	"os"
	"regexp"
	"strings"
)

// Diagnostics summarizes problems found in a compiler log. Each family
// holds every distinct match in log order.
type Diagnostics struct {
	MissingAssets        []string
	GraphicsWarnings     []string
	UndefinedGraphics    []string
	MissingPackages      []string
	UnresolvedReferences []string
}

// IsEmpty reports whether no family has a match.
func (d Diagnostics) IsEmpty() bool {
	return len(d.MissingAssets) == 0 &&
		len(d.GraphicsWarnings) == 0 &&
		len(d.UndefinedGraphics) == 0 &&
		len(d.MissingPackages) == 0 &&
		len(d.UnresolvedReferences) == 0
}

var (
	fileNotFoundRe    = regexp.MustCompile("File `([^']+)' not found")
	packageExtRe      = regexp.MustCompile(`\.(?:sty|cls)$`)
	graphicsWarningRe = regexp.MustCompile(`^Package (?:graphics|graphicx|pdftex\.def|xetex\.def|luatex\.def|dvipdfmx\.def) Warning: .*`)
	unresolvedRe      = regexp.MustCompile("(?:Citation|Reference) `([^']+)' on page \\S+ undefined")
)

// undefinedLookahead is how many lines after "! Undefined control sequence."
// may hold the offending \includegraphics.
const undefinedLookahead = 3

// ExtractDiagnostics scans the log at logPath. A missing or unreadable log
// yields an empty value.
func ExtractDiagnostics(logPath string) Diagnostics {
	data, err := os.ReadFile(logPath) // #nosec G304 -- log path is derived from the job
	if err != nil {
		return Diagnostics{}
	}
	return ParseDiagnostics(string(data))
}

// ParseDiagnostics scans compiler log text.
func ParseDiagnostics(log string) Diagnostics {
	var (
		d    Diagnostics
		seen = map[string]bool{}
	)
	add := func(family string, dst *[]string, v string) {
		key := family + "\x00" + v
		if v == "" || seen[key] {
			return
		}
		seen[key] = true
		*dst = append(*dst, v)
	}

	var lines []string
	sc := bufio.NewScanner(strings.NewReader(log))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}

	for i, line := range lines {
		for _, m := range fileNotFoundRe.FindAllStringSubmatch(line, -1) {
			if packageExtRe.MatchString(m[1]) {
				add("pkg", &d.MissingPackages, packageExtRe.ReplaceAllString(m[1], ""))
			} else {
				add("asset", &d.MissingAssets, m[1])
			}
		}

		if m := graphicsWarningRe.FindString(line); m != "" {
			add("gfx", &d.GraphicsWarnings, strings.TrimSpace(m))
		}

		if strings.HasPrefix(line, "! Undefined control sequence.") {
			for j := i + 1; j < len(lines) && j <= i+undefinedLookahead; j++ {
				if strings.Contains(lines[j], `\includegraphics`) {
					add("undef", &d.UndefinedGraphics, strings.TrimSpace(lines[j]))
					break
				}
			}
		}

		for _, m := range unresolvedRe.FindAllStringSubmatch(line, -1) {
			add("ref", &d.UnresolvedReferences, m[1])
		}
	}

	return d
}
