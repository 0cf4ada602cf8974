package pipeline

import (
	"bytes"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// latexLanguages are the fenced-block info strings treated as LaTeX.
// "{=latex}" is pandoc's raw-attribute form.
var latexLanguages = map[string]bool{
	"latex":    true,
	"tex":      true,
	"{=latex}": true,
}

// ExtractPreamble returns the LaTeX fenced blocks of the preamble fragment at
// path, in document order, separated by a blank line. It never fails: a
// missing or unreadable file, or one without LaTeX blocks, yields "".
func ExtractPreamble(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path) // #nosec G304 -- preamble path comes from configuration
	if err != nil {
		return ""
	}
	return ExtractLatexBlocks(data)
}

// ExtractLatexBlocks parses markdown and collects fenced LaTeX code blocks.
func ExtractLatexBlocks(src []byte) string {
	src = bytes.TrimPrefix(src, utf8BOM)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var blocks []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		block, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		if !latexLanguages[strings.ToLower(string(block.Language(src)))] {
			return ast.WalkSkipChildren, nil
		}

		var b strings.Builder
		lines := block.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(src))
		}
		if content := strings.TrimRight(b.String(), " \t\r\n"); strings.TrimSpace(content) != "" {
			blocks = append(blocks, content)
		}
		return ast.WalkSkipChildren, nil
	})

	return strings.Join(blocks, "\n\n")
}
