package rubric

import (
	"os"
	"testing"
)

func TestParseMarkdown(t *testing.T) {
	src, err := os.ReadFile("testdata/a3.md")
	if err != nil {
		t.Fatal(err)
	}
	rb, err := ParseMarkdown(src)
	if err != nil {
		t.Fatalf("ParseMarkdown: %v", err)
	}
	if rb.AssignmentNumber != 3 {
		t.Errorf("AssignmentNumber = %d, want 3", rb.AssignmentNumber)
	}
	if len(rb.Criteria) != 3 {
		t.Fatalf("got %d criteria, want 3: %+v", len(rb.Criteria), rb.Criteria)
	}

	pw := rb.Criteria[0]
	if pw.Route != "/Kanbas/Account/Signin" || pw.TestType != TestFormInput || pw.Detail != "password" {
		t.Errorf("criteria[0] = %+v", pw)
	}
	if pw.Points.Better != nil || pw.Points.Almost == nil || *pw.Points.Almost != 1 || pw.Points.Best != 3 {
		t.Errorf("criteria[0] points = %+v", pw.Points)
	}
	if pw.OriginalText != "Password field uses a password input" {
		t.Errorf("criteria[0] text = %q", pw.OriginalText)
	}

	grid := rb.Criteria[2]
	if grid.Category != "CSS" || grid.Route != "/Labs/Lab2" || grid.TestType != TestGeneric {
		t.Errorf("criteria[2] = %+v", grid)
	}
	if grid.Points.Better == nil || *grid.Points.Better != 2 {
		t.Errorf("criteria[2] points = %+v", grid.Points)
	}
}

func TestSplitAttrs(t *testing.T) {
	label, attrs := splitAttrs("Sign in (route: /a, type: form_input)")
	if label != "Sign in" {
		t.Errorf("label = %q", label)
	}
	if attrs["route"] != "/a" || attrs["type"] != "form_input" {
		t.Errorf("attrs = %v", attrs)
	}
	label, attrs = splitAttrs("No attributes (really)")
	if label != "No attributes (really)" || len(attrs) != 0 {
		t.Errorf("plain parenthetical should not parse: %q %v", label, attrs)
	}
}
