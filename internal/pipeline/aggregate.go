package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Sentinel errors for aggregation.
var (
	ErrNoFragments     = errors.New("no manuscript fragments")
	ErrInvalidEncoding = errors.New("fragment is not valid UTF-8")
	ErrEmptyDocument   = errors.New("aggregated manuscript is empty")
	ErrInvalidTarget   = errors.New("invalid output target")
)

// EncodingUTF8 is the only fragment encoding accepted.
const EncodingUTF8 = "utf-8"

// utf8BOM is the UTF-8 byte-order mark.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Target selects the separator placed between fragments.
type Target int

const (
	// TargetPrint separates fragments with a page break.
	TargetPrint Target = iota
	// TargetScreen separates fragments with a horizontal rule.
	TargetScreen
)

// Separators as they appear in the aggregated markdown. Pandoc passes the raw
// \newpage through to LaTeX.
const (
	PageBreakSeparator = "\n\\newpage\n\n"
	RuleSeparator      = "\n---\n\n"
)

// ParseTarget converts "print" / "screen" (case-insensitive, empty = print).
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "print":
		return TargetPrint, nil
	case "screen":
		return TargetScreen, nil
	}
	return TargetPrint, fmt.Errorf("%w: %q (must be print or screen)", ErrInvalidTarget, s)
}

func (t Target) String() string {
	if t == TargetScreen {
		return "screen"
	}
	return "print"
}

// Separator returns the markdown inserted between two fragments.
func (t Target) Separator() string {
	if t == TargetScreen {
		return RuleSeparator
	}
	return PageBreakSeparator
}

// Fragment is one ordered source file. Immutable once read.
type Fragment struct {
	Path     string
	Content  string
	Encoding string
}

// Document is the ordered concatenation of fragments.
type Document struct {
	Content    string
	Fragments  []Fragment
	Separators int
}

// FragmentError identifies the fragment that could not be aggregated.
type FragmentError struct {
	Path   string
	Index  int // position in the ordered input, 0-based
	Offset int // byte offset of the first invalid byte, -1 if not applicable
	Err    error
}

func (e *FragmentError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("fragment %d (%s): %v at byte %d", e.Index+1, e.Path, e.Err, e.Offset)
	}
	return fmt.Sprintf("fragment %d (%s): %v", e.Index+1, e.Path, e.Err)
}

func (e *FragmentError) Unwrap() error { return e.Err }

// SourceAggregator defines the contract for fragment aggregation.
type SourceAggregator interface {
	Aggregate(paths []string) (*Document, error)
}

// Aggregator reads fragments from disk and joins them for one target.
type Aggregator struct {
	Target Target
	Logger *zap.Logger
}

// NewAggregator creates an Aggregator. A nil logger disables logging.
func NewAggregator(target Target, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{Target: target, Logger: logger}
}

// Aggregate reads each path as strict UTF-8 and joins the fragments in order.
// Each fragment ends with exactly one newline. A byte-order mark is stripped
// from the first fragment only. No separator is emitted for a single fragment.
func (a *Aggregator) Aggregate(paths []string) (*Document, error) {
	if len(paths) == 0 {
		return nil, ErrNoFragments
	}

	fragments := make([]Fragment, 0, len(paths))
	for i, p := range paths {
		frag, err := a.readFragment(p, i)
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, frag)
	}

	return a.join(fragments)
}

func (a *Aggregator) readFragment(path string, index int) (Fragment, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- fragment paths come from discovery
	if err != nil {
		return Fragment{}, &FragmentError{Path: path, Index: index, Offset: -1, Err: err}
	}

	if off := invalidUTF8Offset(data); off >= 0 {
		return Fragment{}, &FragmentError{Path: path, Index: index, Offset: off, Err: ErrInvalidEncoding}
	}

	if bytes.HasPrefix(data, utf8BOM) {
		if index == 0 {
			data = data[len(utf8BOM):]
		} else {
			a.Logger.Warn("byte-order mark inside manuscript left in place",
				zap.String("path", path), zap.Int("index", index))
		}
	}

	return Fragment{
		Path:     path,
		Content:  strings.TrimRight(string(data), "\r\n") + "\n",
		Encoding: EncodingUTF8,
	}, nil
}

func (a *Aggregator) join(fragments []Fragment) (*Document, error) {
	var body strings.Builder
	for _, f := range fragments {
		body.WriteString(f.Content)
	}
	if strings.TrimSpace(body.String()) == "" {
		return nil, ErrEmptyDocument
	}

	sep := a.Target.Separator()
	var b strings.Builder
	b.Grow(body.Len() + len(sep)*(len(fragments)-1))
	for i, f := range fragments {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(f.Content)
	}

	return &Document{
		Content:    b.String(),
		Fragments:  fragments,
		Separators: len(fragments) - 1,
	}, nil
}

// invalidUTF8Offset returns the offset of the first byte that is not part of
// a valid UTF-8 sequence, or -1.
func invalidUTF8Offset(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return -1
}
