// Package suite reads and writes generated check suites. A suite is a
// rubric resolved into one plan per criterion; it is what a grading run
// executes and it may be edited by hand between plan and run.
package suite

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/webgrade/pkg/rubric"
	"github.com/ormasoftchile/webgrade/pkg/templates"
)

// Ext is the suite file suffix.
const Ext = ".suite.yaml"

// Suite is the generated, ordered check list for one assignment.
type Suite struct {
	Assignment int              `yaml:"assignment"       json:"assignment"`
	Title      string           `yaml:"title,omitempty"  json:"title,omitempty"`
	Source     string           `yaml:"source,omitempty" json:"source,omitempty"`
	Checks     []templates.Plan `yaml:"checks"           json:"checks"`
}

// Entry describes a suite found on disk.
type Entry struct {
	Assignment int    `json:"assignment"`
	Title      string `json:"title,omitempty"`
	Path       string `json:"path"`
	Checks     int    `json:"checks"`
}

// FileName is the conventional file name for an assignment's suite.
func FileName(assignment int) string {
	return strconv.Itoa(assignment) + Ext
}

// FromRubric resolves every criterion, in order.
func FromRubric(rb *rubric.Rubric, source string) *Suite {
	return &Suite{
		Assignment: rb.AssignmentNumber,
		Title:      rb.Title,
		Source:     source,
		Checks:     templates.ResolveAll(rb),
	}
}

// Possible is the sum of every check's best tier.
func (s *Suite) Possible() float64 {
	var total float64
	for _, c := range s.Checks {
		total += c.Points.Best
	}
	return total
}

// Validate reports every problem that would make the suite unrunnable.
func (s *Suite) Validate() error {
	var errs []error
	for i, c := range s.Checks {
		if strings.TrimSpace(c.Name) == "" {
			errs = append(errs, fmt.Errorf("checks[%d]: name is required", i))
		}
		if c.Route == "" {
			errs = append(errs, fmt.Errorf("checks[%d]: route is required", i))
		}
		if !slices.Contains(templates.Kinds, c.Kind) {
			errs = append(errs, fmt.Errorf("checks[%d]: unknown kind %q", i, c.Kind))
		}
		for _, v := range c.Points.Tiers() {
			if v > c.Points.Best {
				errs = append(errs, fmt.Errorf("checks[%d]: tier %g exceeds best %g", i, v, c.Points.Best))
				break
			}
		}
	}
	return errors.Join(errs...)
}

// Load parses a suite with strict unknown-field rejection and validates it.
func Load(r io.Reader) (*Suite, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Suite
	if err := dec.Decode(&s); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("decode suite: empty document")
		}
		return nil, fmt.Errorf("decode suite: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid suite: %w", err)
	}
	return &s, nil
}

// LoadFile reads a suite file.
func LoadFile(path string) (*Suite, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open suite: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Write encodes s as YAML.
func Write(w io.Writer, s *Suite) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode suite: %w", err)
	}
	return enc.Close()
}

// Save writes s to dir under its conventional file name and returns the path.
func Save(dir string, s *Suite) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create suite dir: %w", err)
	}
	path := filepath.Join(dir, FileName(s.Assignment))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create suite: %w", err)
	}
	if err := Write(f, s); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

// Open loads whatever path holds: a suite file, a Markdown rubric or a
// YAML/JSON rubric. Rubrics are validated and resolved; any validation error
// is fatal.
func Open(path string) (*Suite, error) {
	switch {
	case strings.HasSuffix(path, Ext):
		return LoadFile(path)
	case strings.EqualFold(filepath.Ext(path), ".md"):
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read rubric: %w", err)
		}
		rb, err := rubric.ParseMarkdown(src)
		if err != nil {
			return nil, err
		}
		if err := errorsOf(rubric.Validate(rb)); err != nil {
			return nil, err
		}
		return FromRubric(rb, path), nil
	}
	rb, verrs := rubric.ValidateFile(path)
	if err := errorsOf(verrs); err != nil {
		return nil, err
	}
	return FromRubric(rb, path), nil
}

func errorsOf(verrs []*rubric.ValidationError) error {
	var errs []error
	for _, e := range verrs {
		if e.Severity == "error" {
			errs = append(errs, e)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid rubric: %w", errors.Join(errs...))
}

// Discover lists the suites in dir, ordered by assignment number. Files that
// fail to load are skipped.
func Discover(dir string) ([]Entry, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+Ext))
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, path := range matches {
		s, err := LoadFile(path)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Assignment: s.Assignment,
			Title:      s.Title,
			Path:       path,
			Checks:     len(s.Checks),
		})
	}
	slices.SortFunc(entries, func(a, b Entry) int { return a.Assignment - b.Assignment })
	return entries, nil
}

// Find returns the suite for assignment from dir.
func Find(dir string, assignment int) (*Suite, error) {
	path := filepath.Join(dir, FileName(assignment))
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("assignment %d: %w", assignment, err)
	}
	return LoadFile(path)
}
