package debugger

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/webgrade/pkg/report"
	"github.com/ormasoftchile/webgrade/pkg/score"
)

// handleNext runs the next check.
func (d *Debugger) handleNext(ctx context.Context) {
	if d.session.Done() {
		fmt.Fprintf(d.output, "All checks completed.\n")
		return
	}
	i := d.session.Position()
	plan := d.session.Plans()[i]
	fmt.Fprintf(d.output, "Running check %d: %s [%s %s]\n", i+1, plan.Name, plan.Kind, plan.Route)

	res, err := d.session.Step(ctx)
	if err != nil {
		fmt.Fprintf(d.output, "Error: %v\n", err)
		return
	}
	d.printResult(res)
}

// handleContinue runs every remaining check.
func (d *Debugger) handleContinue(ctx context.Context) {
	for !d.session.Done() {
		d.handleNext(ctx)
	}
	fmt.Fprintf(d.output, "All checks completed.\n")
	d.handleSummary()
}

func (d *Debugger) printResult(r score.CheckResult) {
	fmt.Fprintf(d.output, "  %s %g/%g  %s\n", report.Glyph(r), r.Points.Earned, r.Points.Possible, r.Details)
}

// handlePlan prints the plan of the next check, or of check N.
func (d *Debugger) handlePlan(parts []string) {
	plans := d.session.Plans()
	i := d.session.Position()
	if len(parts) > 1 {
		n, err := strconv.Atoi(parts[1])
		if err != nil || n < 1 || n > len(plans) {
			fmt.Fprintf(d.output, "Usage: plan [1-%d]\n", len(plans))
			return
		}
		i = n - 1
	}
	if i >= len(plans) {
		fmt.Fprintf(d.output, "No checks left; use 'plan N'.\n")
		return
	}
	out, err := yaml.Marshal(plans[i])
	if err != nil {
		fmt.Fprintf(d.output, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(d.output, "%s", out)
}

// handleResults lists the results so far.
func (d *Debugger) handleResults() {
	results := d.session.Results()
	if len(results) == 0 {
		fmt.Fprintf(d.output, "No checks run yet.\n")
		return
	}
	fmt.Fprint(d.output, report.RenderTable(results, 100))
}

// handleShow prints one result in full.
func (d *Debugger) handleShow(parts []string) {
	results := d.session.Results()
	if len(parts) < 2 {
		fmt.Fprintf(d.output, "Usage: show N\n")
		return
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil || n < 1 || n > len(results) {
		fmt.Fprintf(d.output, "No result %q (%d recorded).\n", parts[1], len(results))
		return
	}
	r := results[n-1]
	fmt.Fprintf(d.output, "%s\n", r.Criterion)
	d.printResult(r)
}

// handleSummary prints the running score.
func (d *Debugger) handleSummary() {
	s := d.session.Summary()
	fmt.Fprintf(d.output, "Score: %g/%g (%.2f%%), %d passed, %d not passed\n",
		s.TotalEarned, s.TotalPossible, s.Percentage, s.PassedCount, s.FailedCount)
}

func (d *Debugger) handleHelp() {
	help := []string{
		"next (n)        run the next check",
		"continue (c)    run every remaining check",
		"plan (p) [N]    show the resolved plan of the next check or check N",
		"results (r)     list results so far",
		"show N          show result N in full",
		"summary (s)     show the running score",
		"help (?)        show this help",
		"quit (q)        leave the debugger",
	}
	fmt.Fprintf(d.output, "Commands:\n  %s\n", strings.Join(help, "\n  "))
}
