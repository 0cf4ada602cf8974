package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/docxology/go-manuscript/internal/yamlutil"
)

// ErrEmptyMetadata indicates metadata that parsed but carries no title page field.
var ErrEmptyMetadata = errors.New("metadata has no title, subtitle, date or authors")

// Metadata is the per-project document metadata file.
//
//	paper:
//	  title: Graph Rewriting
//	  subtitle: A Survey
//	  date: auto:long
//	authors:
//	  - name: Ada Lovelace
//	  - Alan Turing
type Metadata struct {
	Paper   PaperMetadata `yaml:"paper"`
	Authors []Author      `yaml:"authors"`
}

// PaperMetadata holds the title page fields.
type PaperMetadata struct {
	Title    string `yaml:"title"`
	Subtitle string `yaml:"subtitle"`
	Date     string `yaml:"date"` // explicit, "auto", "auto:FORMAT", or empty for the compile date
}

// Author is one entry of the author list. A plain string is accepted as the name.
type Author struct {
	Name        string `yaml:"name"`
	Affiliation string `yaml:"affiliation"`
	Email       string `yaml:"email"`
}

// UnmarshalYAML accepts either "Ada Lovelace" or {name: Ada Lovelace, ...}.
func (a *Author) UnmarshalYAML(unmarshal func(any) error) error {
	var raw any
	if err := unmarshal(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		*a = Author{Name: v}
	case map[string]any:
		*a = Author{
			Name:        stringField(v, "name"),
			Affiliation: stringField(v, "affiliation"),
			Email:       stringField(v, "email"),
		}
	default:
		return fmt.Errorf("author entry must be a string or mapping, got %T", raw)
	}
	return nil
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// AuthorNames returns the non-empty, trimmed author names in order.
func (m *Metadata) AuthorNames() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.Authors))
	for _, a := range m.Authors {
		if n := strings.TrimSpace(a.Name); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// LoadMetadata reads a metadata file leniently. Callers treat any error as
// "no title block"; the error exists only so it can be logged.
func LoadMetadata(path string) (*Metadata, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrConfigNotFound)
	}
	var m Metadata
	if err := yamlutil.ReadFile(path, &m, false); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigParse, path, err)
	}
	if strings.TrimSpace(m.Paper.Title+m.Paper.Subtitle+m.Paper.Date) == "" && len(m.AuthorNames()) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyMetadata, path)
	}
	return &m, nil
}
