package pipeline

import (
	"strings"
	"time"

	"github.com/docxology/go-manuscript/internal/dateutil"
)

// LaTeX fragments used by the title block.
const (
	AuthorSeparator = ` \and `
	TodaySentinel   = `\today`
	titleBodyBlock  = "\\maketitle\n\\thispagestyle{empty}\n"
)

// TitleData holds title page metadata for block generation.
type TitleData struct {
	Title    string
	Subtitle string
	Authors  []string
	Date     string // explicit, "auto", "auto:FORMAT", or empty for \today
}

// TitleBlock is the pair of independent LaTeX injections for the title page.
// Preamble goes before \begin{document}; Body goes right after it.
type TitleBlock struct {
	Preamble string
	Body     string
}

// IsEmpty reports whether neither injection carries content.
func (b TitleBlock) IsEmpty() bool {
	return b.Preamble == "" && b.Body == ""
}

// GenerateTitleBlock renders data into preamble-scope and body-scope LaTeX.
// Partially populated data renders what it has; a missing title becomes
// \title{}. Nil or blank data, or an unusable date, degrade to an empty block.
func GenerateTitleBlock(data *TitleData, now time.Time) TitleBlock {
	if data.isBlank() {
		return TitleBlock{}
	}

	date := TodaySentinel
	if d := strings.TrimSpace(data.Date); d != "" {
		resolved, err := dateutil.Resolve(d, now)
		if err != nil {
			return TitleBlock{}
		}
		date = EscapeLaTeX(resolved)
	}

	title := EscapeLaTeX(strings.TrimSpace(data.Title))
	if sub := strings.TrimSpace(data.Subtitle); sub != "" {
		if title == "" {
			title = EscapeLaTeX(sub)
		} else {
			title += `\\[0.5em]\large ` + EscapeLaTeX(sub)
		}
	}

	authors := make([]string, 0, len(data.Authors))
	for _, a := range data.Authors {
		if a = strings.TrimSpace(a); a != "" {
			authors = append(authors, EscapeLaTeX(a))
		}
	}

	var b strings.Builder
	b.WriteString(`\title{` + title + "}\n")
	b.WriteString(`\author{` + strings.Join(authors, AuthorSeparator) + "}\n")
	b.WriteString(`\date{` + date + "}\n")

	return TitleBlock{Preamble: b.String(), Body: titleBodyBlock}
}

func (d *TitleData) isBlank() bool {
	if d == nil {
		return true
	}
	if strings.TrimSpace(d.Title+d.Subtitle+d.Date) != "" {
		return false
	}
	for _, a := range d.Authors {
		if strings.TrimSpace(a) != "" {
			return false
		}
	}
	return true
}

// latexSpecials are escaped unless already preceded by a backslash. Braces
// and backslashes pass through so metadata may carry LaTeX commands.
const latexSpecials = "&%$#_"

// EscapeLaTeX escapes the characters of s that would break a LaTeX argument.
func EscapeLaTeX(s string) string {
	if !strings.ContainsAny(s, latexSpecials) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	prev := rune(0)
	for _, r := range s {
		if strings.ContainsRune(latexSpecials, r) && prev != '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}
