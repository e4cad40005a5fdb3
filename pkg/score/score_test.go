package score

import (
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResult(t *testing.T) {
	r := NewResult("Password field", 3, 3, "Password input found")
	assert.True(t, r.Passed)
	assert.False(t, r.Shortfall())

	r = NewResult("Password field", 1, 3, "")
	assert.False(t, r.Passed)
	assert.True(t, r.Shortfall())
	assert.NotEmpty(t, r.Details, "details must never be empty")
}

func TestSummarize(t *testing.T) {
	c := NewCollector()
	c.Record(NewResult("a", 3, 3, "ok"))
	c.Record(NewResult("b", 0, 2, "Link not found"))
	c.Record(NewResult("c", 2, 5, "2 grid items"))

	rep := c.Summarize()
	assert.Equal(t, 5.0, rep.TotalEarned)
	assert.Equal(t, 10.0, rep.TotalPossible)
	assert.Equal(t, 50.0, rep.Percentage)
	assert.Equal(t, 1, rep.PassedCount)
	assert.Equal(t, 2, rep.FailedCount)
	assert.Len(t, c.Shortfalls(), 2)
}

func TestSummarizeRounding(t *testing.T) {
	rep := Summarize([]CheckResult{
		NewResult("a", 1, 3, "x"),
	})
	assert.Equal(t, 33.33, rep.Percentage)

	rep = Summarize([]CheckResult{NewResult("a", 2, 3, "x")})
	assert.Equal(t, 66.67, rep.Percentage)
}

func TestSummarizeEmpty(t *testing.T) {
	rep := NewCollector().Summarize()
	assert.Zero(t, rep.TotalPossible)
	assert.Zero(t, rep.Percentage)
	assert.Zero(t, rep.PassedCount+rep.FailedCount)
}

func TestZeroPossibleIsZeroPercent(t *testing.T) {
	rep := Summarize([]CheckResult{NewResult("bonus", 0, 0, "nothing to earn")})
	assert.Zero(t, rep.Percentage)
	assert.Equal(t, 1, rep.PassedCount)
}

func TestRecordKeepsOrderAndDuplicates(t *testing.T) {
	c := NewCollector()
	c.Record(NewResult("same", 1, 1, "first"))
	c.Record(NewResult("same", 0, 1, "second"))

	got := c.Results()
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Details)
	assert.Equal(t, "second", got[1].Details)

	got[0].Details = "mutated"
	assert.Equal(t, "first", c.Results()[0].Details, "Results must return a copy")
}

func TestCollectorConcurrentReaders(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = c.Summarize()
			}
		}()
	}
	for i := 0; i < 100; i++ {
		c.Record(NewResult("x", 1, 2, "half"))
	}
	wg.Wait()
	assert.Equal(t, 100, c.Len())
}

// buildResults decodes each seed into a possible value 0..10 and an earned
// value no greater than it, both in half points.
func buildResults(seeds []int) []CheckResult {
	out := make([]CheckResult, 0, len(seeds))
	for _, v := range seeds {
		possible := v / 11
		earned := min(v%11, possible)
		out = append(out, NewResult("c", float64(earned)/2, float64(possible)/2, "generated"))
	}
	return out
}

func TestSummarizeProperties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	properties.Property("totals are permutation invariant", prop.ForAll(
		func(seeds []int) bool {
			results := buildResults(seeds)
			reversed := make([]CheckResult, len(results))
			for i, r := range results {
				reversed[len(results)-1-i] = r
			}
			return Summarize(results) == Summarize(reversed)
		},
		gen.SliceOf(gen.IntRange(0, 120)),
	))

	properties.Property("passed plus failed equals result count", prop.ForAll(
		func(seeds []int) bool {
			results := buildResults(seeds)
			rep := Summarize(results)
			return rep.PassedCount+rep.FailedCount == len(results)
		},
		gen.SliceOf(gen.IntRange(0, 120)),
	))

	properties.Property("percentage stays within 0..100", prop.ForAll(
		func(seeds []int) bool {
			results := buildResults(seeds)
			rep := Summarize(results)
			return rep.Percentage >= 0 && rep.Percentage <= 100
		},
		gen.SliceOf(gen.IntRange(0, 120)),
	))

	properties.TestingRun(t)
}
