// Package score accumulates per-criterion check results and reduces them to
// a score report.
package score

import (
	"fmt"
	"math"
	"slices"
	"sync"
)

// Points is the earned/possible pair of one result.
type Points struct {
	Earned   float64 `json:"earned"   yaml:"earned"`
	Possible float64 `json:"possible" yaml:"possible"`
}

// CheckResult is emitted once per executed check.
type CheckResult struct {
	Criterion string `json:"criterion" yaml:"criterion"`
	Points    Points `json:"points"    yaml:"points"`
	Passed    bool   `json:"passed"    yaml:"passed"`
	Details   string `json:"details"   yaml:"details"`
}

// NewResult builds a result whose Passed flag follows earned == possible.
// An empty details string is replaced so reports never show a blank line.
func NewResult(criterion string, earned, possible float64, details string) CheckResult {
	if details == "" {
		details = fmt.Sprintf("earned %g of %g", earned, possible)
	}
	return CheckResult{
		Criterion: criterion,
		Points:    Points{Earned: earned, Possible: possible},
		Passed:    earned == possible,
		Details:   details,
	}
}

// Shortfall reports whether the result earned less than full credit.
func (r CheckResult) Shortfall() bool {
	return r.Points.Earned < r.Points.Possible
}

// Report is the reduction of a results list.
type Report struct {
	TotalEarned   float64 `json:"totalEarned"   yaml:"totalEarned"`
	TotalPossible float64 `json:"totalPossible" yaml:"totalPossible"`
	Percentage    float64 `json:"percentage"    yaml:"percentage"`
	PassedCount   int     `json:"passedCount"   yaml:"passedCount"`
	FailedCount   int     `json:"failedCount"   yaml:"failedCount"`
}

// Collector is the run-lifetime, append-only results list. It is safe for
// concurrent readers while a run records.
type Collector struct {
	mu      sync.Mutex
	results []CheckResult
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Record appends r. Results are never deduplicated or replaced.
func (c *Collector) Record(r CheckResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
}

// Results returns a copy of the results in record order.
func (c *Collector) Results() []CheckResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CheckResult, len(c.results))
	copy(out, c.results)
	return out
}

// Len returns the number of recorded results.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

// Summarize reduces the recorded results.
func (c *Collector) Summarize() Report {
	return Summarize(c.Results())
}

// Shortfalls returns the results that earned less than full credit.
func (c *Collector) Shortfalls() []CheckResult {
	var out []CheckResult
	for _, r := range c.Results() {
		if r.Shortfall() {
			out = append(out, r)
		}
	}
	return out
}

// Summarize computes totals and a percentage rounded to two decimals.
// The percentage is 0 when nothing is possible.
func Summarize(results []CheckResult) Report {
	var rep Report
	earned := make([]float64, 0, len(results))
	possible := make([]float64, 0, len(results))
	for _, r := range results {
		earned = append(earned, r.Points.Earned)
		possible = append(possible, r.Points.Possible)
		if r.Passed {
			rep.PassedCount++
		} else {
			rep.FailedCount++
		}
	}
	rep.TotalEarned = sum(earned)
	rep.TotalPossible = sum(possible)
	if rep.TotalPossible > 0 {
		rep.Percentage = Round2(100 * rep.TotalEarned / rep.TotalPossible)
	}
	return rep
}

// sum adds in sorted order so totals do not depend on result order.
func sum(vs []float64) float64 {
	slices.Sort(vs)
	var t float64
	for _, v := range vs {
		t += v
	}
	return t
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
