package toolchain

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/docxology/go-manuscript/internal/process"
)

func TestTail(t *testing.T) {
	t.Parallel()

	var many []string
	for i := 1; i <= 30; i++ {
		many = append(many, fmt.Sprintf("line %02d", i))
	}

	tests := []struct {
		name  string
		in    string
		lines int
		bytes int
		want  string
	}{
		{name: "empty", in: "", lines: 20, bytes: 100, want: ""},
		{name: "short", in: "a\nb\n", lines: 20, bytes: 100, want: "a\nb"},
		{name: "line limit", in: strings.Join(many, "\n"), lines: 3, bytes: 1000, want: "line 28\nline 29\nline 30"},
		{name: "byte limit drops partial line", in: "aaaa\nbbbb\ncccc", lines: 20, bytes: 7, want: "cccc"},
		{name: "single long line", in: strings.Repeat("x", 50), lines: 20, bytes: 10, want: strings.Repeat("x", 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Tail(tt.in, tt.lines, tt.bytes); got != tt.want {
				t.Errorf("Tail() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToolError(t *testing.T) {
	t.Parallel()

	e := newToolError("pandoc", 64, "  \n", "Unknown option --bogus\n")
	if e.Output != "Unknown option --bogus" {
		t.Errorf("Output = %q", e.Output)
	}
	if got := e.Error(); !strings.HasPrefix(got, "pandoc exited with status 64") {
		t.Errorf("Error() = %q", got)
	}

	killed := &ToolError{Tool: "xelatex", ExitCode: -1}
	if killed.Error() != "xelatex did not exit" {
		t.Errorf("Error() = %q", killed.Error())
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	other := errors.New("boom")
	tests := []struct {
		in   error
		want error
	}{
		{in: fmt.Errorf("%w: pandoc", process.ErrNotFound), want: ErrToolNotFound},
		{in: fmt.Errorf("%w: pandoc", process.ErrTimeout), want: ErrToolTimeout},
		{in: other, want: other},
	}

	for _, tt := range tests {
		if got := classify("pandoc", tt.in); !errors.Is(got, tt.want) {
			t.Errorf("classify(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}

	var mt *MissingToolError
	if err := classify("biber", process.ErrNotFound); !errors.As(err, &mt) || mt.Tool != "biber" {
		t.Errorf("classify(ErrNotFound) = %v, want *MissingToolError for biber", err)
	}
}
