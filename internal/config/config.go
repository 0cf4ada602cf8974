package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docxology/go-manuscript/internal/fileutil"
	"github.com/docxology/go-manuscript/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrInvalidValue    = errors.New("invalid config value")
)

// Field length limits.
const (
	MaxProjectNameLength = 100
	MaxPathLength        = 4096
	MaxStyleLength       = 50
	MaxBinaryLength      = 255
)

// MaxPasses is the ceiling on compiler invocations per build.
const MaxPasses = 4

// Accepted enum values.
var (
	validEngines  = []string{"pdflatex", "xelatex", "lualatex"}
	validTargets  = []string{"print", "screen"}
	validBibTools = []string{"bibtex", "biber"}
)

// Config holds the build configuration for one manuscript project.
type Config struct {
	Project      ProjectConfig      `yaml:"project"`
	Paths        PathsConfig        `yaml:"paths"`
	Build        BuildConfig        `yaml:"build"`
	Bibliography BibliographyConfig `yaml:"bibliography"`
}

// ProjectConfig identifies the project and its metadata file.
type ProjectConfig struct {
	Name     string `yaml:"name"`     // Public artifact base name (<name>.pdf)
	Metadata string `yaml:"metadata"` // Metadata YAML (empty = <manuscript>/config.yaml)
}

// PathsConfig locates inputs and outputs.
type PathsConfig struct {
	Manuscript string `yaml:"manuscript"` // Directory holding ordered fragments
	Preamble   string `yaml:"preamble"`   // Preamble fragment (empty = <manuscript>/preamble.md)
	Figures    string `yaml:"figures"`    // Figures directory (empty = <output>/figures)
	Output     string `yaml:"output"`     // Output root; the compiler works in <output>/pdf
}

// BuildConfig selects the toolchain.
type BuildConfig struct {
	Engine    string `yaml:"engine"`    // "pdflatex", "xelatex", "lualatex"
	Target    string `yaml:"target"`    // "print" (page breaks) or "screen" (rules)
	Timeout   string `yaml:"timeout"`   // Per-invocation timeout, Go duration syntax
	MaxPasses int    `yaml:"maxPasses"` // 1..4, 0 = 4
	Pandoc    string `yaml:"pandoc"`    // Converter binary override
}

// BibliographyConfig configures citation resolution.
type BibliographyConfig struct {
	Database string `yaml:"database"` // .bib file (empty = <manuscript>/references.bib)
	Tool     string `yaml:"tool"`     // "bibtex" or "biber"
	Style    string `yaml:"style"`    // BibTeX style, e.g. "plainnat"
}

// DefaultConfig returns the layout used when no config file is given.
func DefaultConfig() *Config {
	return &Config{
		Project: ProjectConfig{Name: "manuscript"},
		Paths: PathsConfig{
			Manuscript: "manuscript",
			Output:     "output",
		},
		Build: BuildConfig{
			Engine:    "xelatex",
			Target:    "print",
			Timeout:   "5m",
			MaxPasses: MaxPasses,
		},
		Bibliography: BibliographyConfig{
			Tool:  "bibtex",
			Style: "plainnat",
		},
	}
}

// Validate checks lengths, enums, and ranges.
// Called automatically by LoadConfig, but available for callers that build
// Config manually.
func (c *Config) Validate() error {
	if err := validateFieldLength("project.name", c.Project.Name, MaxProjectNameLength); err != nil {
		return err
	}
	if strings.ContainsAny(c.Project.Name, "/\\\x00") {
		return fmt.Errorf("%w: project.name %q must be a bare file name", ErrInvalidValue, c.Project.Name)
	}

	for field, value := range map[string]string{
		"project.metadata":      c.Project.Metadata,
		"paths.manuscript":      c.Paths.Manuscript,
		"paths.preamble":        c.Paths.Preamble,
		"paths.figures":         c.Paths.Figures,
		"paths.output":          c.Paths.Output,
		"bibliography.database": c.Bibliography.Database,
	} {
		if err := validateFieldLength(field, value, MaxPathLength); err != nil {
			return err
		}
	}

	if err := validateEnum("build.engine", c.Build.Engine, validEngines); err != nil {
		return err
	}
	if err := validateEnum("build.target", c.Build.Target, validTargets); err != nil {
		return err
	}
	if err := validateEnum("bibliography.tool", c.Bibliography.Tool, validBibTools); err != nil {
		return err
	}
	if err := validateFieldLength("bibliography.style", c.Bibliography.Style, MaxStyleLength); err != nil {
		return err
	}
	if err := validateFieldLength("build.pandoc", c.Build.Pandoc, MaxBinaryLength); err != nil {
		return err
	}

	if c.Build.MaxPasses < 0 || c.Build.MaxPasses > MaxPasses {
		return fmt.Errorf("%w: build.maxPasses must be between 1 and %d, got %d", ErrInvalidValue, MaxPasses, c.Build.MaxPasses)
	}
	if _, err := c.Build.TimeoutDuration(); err != nil {
		return err
	}

	return nil
}

// TimeoutDuration parses Build.Timeout. Empty means zero (no timeout).
func (b BuildConfig) TimeoutDuration() (time.Duration, error) {
	if b.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(b.Timeout)
	if err != nil {
		return 0, fmt.Errorf("%w: build.timeout %q: %v", ErrInvalidValue, b.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: build.timeout must be positive, got %s", ErrInvalidValue, d)
	}
	return d, nil
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// validateEnum accepts empty (default) or one of allowed, case-insensitively.
func validateEnum(fieldName, value string, allowed []string) error {
	if value == "" {
		return nil
	}
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s %q (must be one of %s)", ErrInvalidValue, fieldName, value, strings.Join(allowed, ", "))
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Values absent from the file keep their DefaultConfig value.
// Returns error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	var configPath string
	var err error

	if fileutil.IsFilePath(nameOrPath) {
		configPath = nameOrPath
	} else {
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yamlutil.Strict(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// resolveConfigPath searches for a config file by name in standard locations.
// Tries extensions in order: .yaml, .yml
// Tries locations in order: current directory, ~/.config/go-manuscript/
func resolveConfigPath(name string) (string, error) {
	extensions := []string{".yaml", ".yml"}
	triedPaths := make([]string, 0, len(extensions)*2)

	for _, ext := range extensions {
		localPath := name + ext
		if fileutil.FileExists(localPath) {
			return localPath, nil
		}
		triedPaths = append(triedPaths, localPath)
	}

	userConfigDir, err := os.UserConfigDir()
	if err == nil {
		for _, ext := range extensions {
			userPath := filepath.Join(userConfigDir, "go-manuscript", name+ext)
			if fileutil.FileExists(userPath) {
				return userPath, nil
			}
			triedPaths = append(triedPaths, userPath)
		}
	}

	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(triedPaths, ", "))
}
