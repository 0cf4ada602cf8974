package fileutil_test

// Notes:
// - CopyFile close-error branch is not tested: triggering a failing Close on a
//   regular file is platform-specific.
// - RemoveIfExists permission failures are not tested; they need a read-only
//   parent directory, which behaves differently when tests run as root.

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/docxology/go-manuscript/internal/fileutil"
)

// ---------------------------------------------------------------------------
// TestFileExists / TestDirExists - Existence checks
// ---------------------------------------------------------------------------

func TestFileExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "plot.png")
	if err := os.WriteFile(file, []byte("png"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want bool
	}{
		{name: "existing file", path: file, want: true},
		{name: "directory is not a file", path: dir, want: false},
		{name: "missing file", path: filepath.Join(dir, "missing.png"), want: false},
		{name: "empty path", path: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := fileutil.FileExists(tt.path); got != tt.want {
				t.Errorf("FileExists(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestDirExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	if !fileutil.DirExists(dir) {
		t.Errorf("DirExists(%q) = false, want true", dir)
	}
	if fileutil.DirExists(file) {
		t.Errorf("DirExists(%q) = true, want false", file)
	}
	if fileutil.DirExists(filepath.Join(dir, "nope")) {
		t.Error("DirExists(missing) = true, want false")
	}
}

// ---------------------------------------------------------------------------
// TestIsFilePath / TestIsURL - String classification
// ---------------------------------------------------------------------------

func TestIsFilePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  bool
	}{
		{"thesis", false},
		{"my-config", false},
		{"./thesis.yaml", true},
		{"../shared/thesis.yaml", true},
		{"/etc/manuscript.yaml", true},
		{`C:\configs\thesis.yaml`, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			if got := fileutil.IsFilePath(tt.input); got != tt.want {
				t.Errorf("IsFilePath(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  bool
	}{
		{"https://example.com/plot.png", true},
		{"HTTP://example.com/plot.png", true},
		{"file:///tmp/plot.png", true},
		{"data:image/png;base64,AAA", true},
		{"../figures/plot.png", false},
		{"plot.png", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			if got := fileutil.IsURL(tt.input); got != tt.want {
				t.Errorf("IsURL(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestWriteFile / TestCopyFile / TestRemoveIfExists - File operations
// ---------------------------------------------------------------------------

func TestWriteFile_CreatesParents(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "output", "pdf", "_combined_manuscript.md")
	if err := fileutil.WriteFile(path, "# Intro\n"); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "# Intro\n" {
		t.Errorf("content = %q, want %q", got, "# Intro\n")
	}
}

func TestCopyFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "references.bib")
	dst := filepath.Join(dir, "sandbox.bib")
	content := "@article{key, title={T}}\n"
	if err := os.WriteFile(src, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	// Pre-existing destination must be replaced, not appended to.
	if err := os.WriteFile(dst, []byte("stale stale stale stale stale stale"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := fileutil.CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile() error = %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != content {
		t.Errorf("copied content = %q, want %q", got, content)
	}
}

func TestCopyFile_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	t.Run("missing source", func(t *testing.T) {
		t.Parallel()

		err := fileutil.CopyFile(filepath.Join(dir, "missing.bib"), filepath.Join(dir, "out.bib"))
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("CopyFile() error = %v, want os.ErrNotExist", err)
		}
	})

	t.Run("directory source", func(t *testing.T) {
		t.Parallel()

		err := fileutil.CopyFile(dir, filepath.Join(dir, "out.bib"))
		if !errors.Is(err, fileutil.ErrNotRegularFile) {
			t.Errorf("CopyFile() error = %v, want ErrNotRegularFile", err)
		}
	})
}

func TestRemoveIfExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "manuscript.pdf")
	if err := os.WriteFile(path, []byte("%PDF"), 0o600); err != nil {
		t.Fatal(err)
	}

	removed, err := fileutil.RemoveIfExists(path)
	if err != nil || !removed {
		t.Fatalf("RemoveIfExists(existing) = %v, %v; want true, nil", removed, err)
	}
	if fileutil.FileExists(path) {
		t.Error("file still exists after RemoveIfExists")
	}

	removed, err = fileutil.RemoveIfExists(path)
	if err != nil || removed {
		t.Errorf("RemoveIfExists(missing) = %v, %v; want false, nil", removed, err)
	}
}
