package rubric

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/ormasoftchile/webgrade/pkg/stylexpr"
)

// ValidationError represents a single validation problem with location context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // e.g. "criteria[2].points.better"
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// HasErrors reports whether any entry is error severity. Warnings never block.
func HasErrors(errs []*ValidationError) bool {
	for _, e := range errs {
		if e.Severity == "error" {
			return true
		}
	}
	return false
}

// ValidateFile runs the 3-phase pipeline on a rubric file:
// structural (strict decode), semantic (JSON Schema), domain (Go rules).
func ValidateFile(path string) (*Rubric, []*ValidationError) {
	rb, err := LoadFile(path)
	if err != nil {
		return nil, []*ValidationError{{
			Phase:    "structural",
			Message:  err.Error(),
			Severity: "error",
		}}
	}
	return rb, Validate(rb)
}

// Validate runs the semantic and domain phases on an already-decoded rubric.
func Validate(rb *Rubric) []*ValidationError {
	var all []*ValidationError
	all = append(all, validateSemantic(rb)...)
	all = append(all, ValidateDomain(rb)...)
	return all
}

func validateSemantic(rb *Rubric) []*ValidationError {
	fail := func(format string, args ...any) []*ValidationError {
		return []*ValidationError{{
			Phase:    "semantic",
			Message:  fmt.Sprintf(format, args...),
			Severity: "error",
		}}
	}

	doc := *rb
	if doc.Criteria == nil {
		doc.Criteria = []Criterion{}
	}
	data, err := json.Marshal(&doc)
	if err != nil {
		return fail("marshal for schema validation: %v", err)
	}
	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return fail("generate schema: %v", err)
	}
	schemaDoc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return fail("unmarshal schema: %v", err)
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("rubric-v1.json", schemaDoc); err != nil {
		return fail("add schema resource: %v", err)
	}
	sch, err := c.Compile("rubric-v1.json")
	if err != nil {
		return fail("compile schema: %v", err)
	}

	inst, err := sjsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fail("unmarshal document: %v", err)
	}
	if err := sch.Validate(inst); err != nil {
		ve, ok := err.(*sjsonschema.ValidationError)
		if !ok {
			return fail("%v", err)
		}
		var errs []*ValidationError
		for _, cause := range flattenValidationErrors(ve) {
			errs = append(errs, &ValidationError{
				Phase:    "semantic",
				Path:     strings.Join(cause.InstanceLocation, "/"),
				Message:  fmt.Sprintf("%v", cause.ErrorKind),
				Severity: "error",
			})
		}
		return errs
	}
	return nil
}

func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

var routePattern = regexp.MustCompile(`^(/|https?://)`)

// ValidateDomain checks rules the schema cannot express: tier ordering,
// route shape, style parameters (predicates must compile) and duplicate
// criteria.
func ValidateDomain(rb *Rubric) []*ValidationError {
	var errs []*ValidationError
	add := func(path, severity, format string, args ...any) {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     path,
			Message:  fmt.Sprintf(format, args...),
			Severity: severity,
		})
	}

	if len(rb.Criteria) == 0 {
		add("criteria", "warning", "rubric has no criteria; the score will be 0/0")
	}

	seen := make(map[string]int)
	for i, c := range rb.Criteria {
		base := fmt.Sprintf("criteria[%d]", i)

		if strings.TrimSpace(c.OriginalText) == "" {
			add(base+".originalText", "error", "criterion requires originalText")
		} else if prev, ok := seen[c.OriginalText]; ok {
			add(base+".originalText", "warning", "duplicate criterion %q (first at criteria[%d]); results are reported by name", c.OriginalText, prev)
		} else {
			seen[c.OriginalText] = i
		}

		if !routePattern.MatchString(c.Route) {
			add(base+".route", "error", "route %q must start with / or be an absolute http(s) URL", c.Route)
		}

		if c.TestType != "" && !slices.Contains(KnownTestTypes, c.TestType) {
			add(base+".testType", "warning", "unknown testType %q; dispatch falls back to category and detail", c.TestType)
		}

		errs = append(errs, validatePoints(base+".points", c.Points)...)

		if c.Style != nil {
			if !c.Style.Tiers.Empty() && c.Style.Tiers.Best == "" {
				add(base+".style.tiers.best", "error", "style tiers require a best predicate")
			}
			for _, tier := range []struct{ name, src string }{
				{"best", c.Style.Tiers.Best},
				{"better", c.Style.Tiers.Better},
				{"almost", c.Style.Tiers.Almost},
			} {
				if tier.src == "" {
					continue
				}
				if err := stylexpr.Check(tier.src); err != nil {
					add(base+".style.tiers."+tier.name, "error", "%v", err)
				}
			}
			if c.Style.Tiers.Better != "" && c.Points.Better == nil {
				add(base+".style.tiers.better", "warning", "better predicate set but points.better is not declared; it scores the next lower tier")
			}
			if !strings.Contains(strings.ToUpper(c.Category), "CSS") && c.TestType != TestCSSStyle {
				add(base+".style", "warning", "style parameters only apply to CSS criteria (category containing CSS)")
			}
		}
	}
	return errs
}

func validatePoints(path string, p Points) []*ValidationError {
	var errs []*ValidationError
	prevName, prev := "best", p.Best
	check := func(name string, v float64) {
		if v > prev {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     path + "." + name,
				Message:  fmt.Sprintf("%s (%g) exceeds %s (%g); tiers must be non-increasing", name, v, prevName, prev),
				Severity: "error",
			})
		}
		prevName, prev = name, v
	}
	if p.Better != nil {
		check("better", *p.Better)
	}
	if p.Almost != nil {
		check("almost", *p.Almost)
	}
	check("zero", p.Zero)
	if p.Zero < 0 {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     path + ".zero",
			Message:  "zero tier must be >= 0",
			Severity: "error",
		})
	}
	return errs
}
