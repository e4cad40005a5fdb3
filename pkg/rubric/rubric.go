// Package rubric defines the rubric document model: an assignment number and
// an ordered list of gradable criteria, each with a point scale.
package rubric

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TestType is the primary dispatch key of a criterion.
type TestType string

const (
	TestFormInput       TestType = "form_input"
	TestFormCheckbox    TestType = "form_checkbox"
	TestFormRadio       TestType = "form_radio"
	TestFormSelect      TestType = "form_select"
	TestNavigationClick TestType = "navigation_click"
	TestLinkExists      TestType = "link_exists"
	TestGeneric         TestType = "generic"
	TestCSSStyle        TestType = "css_style"
	TestLayout          TestType = "layout"
)

// KnownTestTypes lists the test types the selector dispatches on directly.
var KnownTestTypes = []TestType{
	TestFormInput, TestFormCheckbox, TestFormRadio, TestFormSelect,
	TestNavigationClick, TestLinkExists, TestGeneric, TestCSSStyle, TestLayout,
}

// Rubric is one assignment's grading document.
type Rubric struct {
	AssignmentNumber int         `yaml:"assignmentNumber" json:"assignmentNumber" jsonschema:"required,minimum=0"`
	Title            string      `yaml:"title,omitempty"  json:"title,omitempty"`
	Criteria         []Criterion `yaml:"criteria"         json:"criteria"`
}

// Criterion is one gradable rubric line.
type Criterion struct {
	OriginalText string     `yaml:"originalText"       json:"originalText"       jsonschema:"required,minLength=1"`
	Route        string     `yaml:"route"              json:"route"`
	TestType     TestType   `yaml:"testType"           json:"testType"           jsonschema:"required"`
	Category     string     `yaml:"category,omitempty" json:"category,omitempty"`
	Detail       string     `yaml:"detail,omitempty"   json:"detail,omitempty"`
	Points       Points     `yaml:"points"             json:"points"             jsonschema:"required"`
	Style        *StyleSpec `yaml:"style,omitempty"    json:"style,omitempty"`
}

// Points is the ordered tier scale of a criterion. Lower tiers are explicit
// partial-credit values and are never interpolated.
type Points struct {
	Best   float64  `yaml:"best"             json:"best"             jsonschema:"minimum=0"`
	Better *float64 `yaml:"better,omitempty" json:"better,omitempty" jsonschema:"minimum=0"`
	Almost *float64 `yaml:"almost,omitempty" json:"almost,omitempty" jsonschema:"minimum=0"`
	Zero   float64  `yaml:"zero,omitempty"   json:"zero,omitempty"   jsonschema:"minimum=0"`
}

// Partial returns the highest declared partial tier: better, else almost,
// else zero.
func (p Points) Partial() float64 {
	if p.Better != nil {
		return *p.Better
	}
	if p.Almost != nil {
		return *p.Almost
	}
	return p.Zero
}

// Lower returns the tier below better: almost if declared, else zero.
func (p Points) Lower() float64 {
	if p.Almost != nil {
		return *p.Almost
	}
	return p.Zero
}

// Tiers returns every declared tier from best to zero.
func (p Points) Tiers() []float64 {
	tiers := []float64{p.Best}
	if p.Better != nil {
		tiers = append(tiers, *p.Better)
	}
	if p.Almost != nil {
		tiers = append(tiers, *p.Almost)
	}
	return append(tiers, p.Zero)
}

// IsTier reports whether v is one of the declared tiers.
func (p Points) IsTier(v float64) bool {
	for _, t := range p.Tiers() {
		if t == v {
			return true
		}
	}
	return false
}

// StyleSpec parameterizes the CSS-style check. Tier predicates are boolean
// expressions evaluated against the matched element's computed style.
type StyleSpec struct {
	Selector   string   `yaml:"selector,omitempty"   json:"selector,omitempty"`
	Properties []string `yaml:"properties,omitempty" json:"properties,omitempty"`
	Tiers      Tiers    `yaml:"tiers,omitempty"      json:"tiers,omitempty"`
}

// Tiers holds one predicate per partial-credit level. Empty means unused.
type Tiers struct {
	Best   string `yaml:"best,omitempty"   json:"best,omitempty"`
	Better string `yaml:"better,omitempty" json:"better,omitempty"`
	Almost string `yaml:"almost,omitempty" json:"almost,omitempty"`
}

// Empty reports whether no predicate is set.
func (t Tiers) Empty() bool {
	return t.Best == "" && t.Better == "" && t.Almost == ""
}

// Float returns a pointer to v, for building optional tiers.
func Float(v float64) *float64 { return &v }

// LoadFile reads a rubric from a YAML or JSON file.
func LoadFile(path string) (*Rubric, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rubric: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a rubric with strict unknown-field rejection. JSON documents
// are accepted since they are valid YAML.
func Load(r io.Reader) (*Rubric, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var rb Rubric
	if err := dec.Decode(&rb); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("decode rubric: empty document")
		}
		return nil, fmt.Errorf("decode rubric: %w", err)
	}
	for i := range rb.Criteria {
		if strings.TrimSpace(rb.Criteria[i].Route) == "" {
			rb.Criteria[i].Route = "/"
		}
	}
	return &rb, nil
}

// Save writes the rubric as YAML.
func Save(w io.Writer, rb *Rubric) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rb); err != nil {
		return fmt.Errorf("encode rubric: %w", err)
	}
	return enc.Close()
}
