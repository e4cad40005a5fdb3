package rubric

import (
	"strings"
	"testing"
)

func TestValidateFileValid(t *testing.T) {
	rb, errs := ValidateFile("testdata/a3.yaml")
	if rb == nil {
		t.Fatal("expected rubric")
	}
	if HasErrors(errs) {
		t.Fatalf("unexpected errors: %v", errs)
	}
}

func TestValidateFileStructural(t *testing.T) {
	_, errs := ValidateFile("testdata/unknown-field.yaml")
	if len(errs) != 1 || errs[0].Phase != "structural" {
		t.Fatalf("expected one structural error, got %v", errs)
	}
}

func TestValidateFileDomain(t *testing.T) {
	_, errs := ValidateFile("testdata/bad-tiers.yaml")
	var route, tiers bool
	for _, e := range errs {
		if e.Phase != "domain" {
			continue
		}
		if strings.HasSuffix(e.Path, ".route") {
			route = true
		}
		if strings.HasSuffix(e.Path, ".points.better") {
			tiers = true
		}
	}
	if !route {
		t.Errorf("expected route error, got %v", errs)
	}
	if !tiers {
		t.Errorf("expected tier ordering error, got %v", errs)
	}
}

func TestValidateSemanticNegativePoints(t *testing.T) {
	rb := &Rubric{
		AssignmentNumber: 1,
		Criteria: []Criterion{{
			OriginalText: "x",
			Route:        "/",
			TestType:     TestGeneric,
			Points:       Points{Best: -1},
		}},
	}
	errs := validateSemantic(rb)
	if len(errs) == 0 {
		t.Fatal("expected schema error for negative best")
	}
}

func TestValidateDomainWarnings(t *testing.T) {
	rb := &Rubric{
		Criteria: []Criterion{
			{OriginalText: "a", Route: "/", TestType: "hover_menu", Points: Points{Best: 1}},
			{OriginalText: "a", Route: "/", TestType: TestGeneric, Points: Points{Best: 1},
				Style: &StyleSpec{Tiers: Tiers{Best: "count > 0"}}},
		},
	}
	errs := ValidateDomain(rb)
	if HasErrors(errs) {
		t.Fatalf("expected warnings only, got %v", errs)
	}
	if len(errs) != 3 {
		t.Errorf("expected 3 warnings (unknown type, duplicate, style on non-CSS), got %d: %v", len(errs), errs)
	}
}

func TestValidateEmptyRubric(t *testing.T) {
	errs := ValidateDomain(&Rubric{AssignmentNumber: 1})
	if HasErrors(errs) {
		t.Fatalf("empty rubric must not be an error: %v", errs)
	}
	if len(errs) != 1 || errs[0].Severity != "warning" {
		t.Errorf("expected one warning, got %v", errs)
	}
}

func TestValidateStyleTiersNeedBest(t *testing.T) {
	rb := &Rubric{Criteria: []Criterion{{
		OriginalText: "border",
		Route:        "/",
		TestType:     TestCSSStyle,
		Category:     "CSS",
		Points:       Points{Best: 2, Almost: Float(1)},
		Style:        &StyleSpec{Tiers: Tiers{Almost: `px("border-width") > 0`}},
	}}}
	if !HasErrors(ValidateDomain(rb)) {
		t.Fatal("expected error when tiers omit best")
	}
}

func TestValidateStylePredicatesCompile(t *testing.T) {
	tests := []struct {
		name    string
		tiers   Tiers
		wantErr string
	}{
		{"valid", Tiers{Best: `match("color", "^rgb")`, Almost: `value("color") matches "red"`}, ""},
		{"reserved operator as call", Tiers{Best: `matches("color", "x")`}, "criteria[0].style.tiers.best"},
		{"syntax", Tiers{Best: `count > 0`, Almost: `px("margin-top" >`}, "criteria[0].style.tiers.almost"},
		{"not boolean", Tiers{Best: `px("margin-top")`}, "criteria[0].style.tiers.best"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := &Rubric{Criteria: []Criterion{{
				OriginalText: "heading color",
				Route:        "/",
				TestType:     TestCSSStyle,
				Category:     "CSS",
				Points:       Points{Best: 2, Almost: Float(1)},
				Style:        &StyleSpec{Selector: "h1", Tiers: tt.tiers},
			}}}
			errs := ValidateDomain(rb)
			if tt.wantErr == "" {
				if HasErrors(errs) {
					t.Fatalf("unexpected errors: %v", errs)
				}
				return
			}
			var found bool
			for _, e := range errs {
				if e.Severity == "error" && e.Phase == "domain" && e.Path == tt.wantErr {
					found = true
				}
			}
			if !found {
				t.Errorf("expected domain error at %s, got %v", tt.wantErr, errs)
			}
		})
	}
}

func TestGenerateJSONSchema(t *testing.T) {
	data, err := GenerateJSONSchema()
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{"originalText", "assignmentNumber", "rubric-v1.json"} {
		if !strings.Contains(s, want) {
			t.Errorf("schema missing %q", want)
		}
	}
}
