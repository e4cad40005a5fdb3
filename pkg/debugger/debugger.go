// Package debugger implements the interactive REPL for stepping through a
// grading run one check at a time.
package debugger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/ormasoftchile/webgrade/pkg/runner"
)

// Debugger provides an interactive REPL over a grading session.
type Debugger struct {
	session *runner.Session
	output  io.Writer
	rl      *readline.Instance
}

// New creates a debugger for a session that has not started stepping.
func New(sess *runner.Session) *Debugger {
	return &Debugger{session: sess, output: os.Stdout}
}

// SetOutput redirects command output.
func (d *Debugger) SetOutput(w io.Writer) { d.output = w }

var commands = []string{"next", "continue", "plan", "results", "show", "summary", "help", "quit"}

// Run starts the interactive REPL loop. The run is finished, and its result
// returned, when the loop exits, however it exits.
func (d *Debugger) Run(ctx context.Context) (*runner.Result, error) {
	completer := readline.NewPrefixCompleter()
	for _, cmd := range commands {
		completer.Children = append(completer.Children, readline.PcItem(cmd))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          d.buildPrompt(),
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return nil, fmt.Errorf("init readline: %w", err)
	}
	d.rl = rl
	defer rl.Close()

	fmt.Fprintf(d.output, "webgrade debugger: %d checks\n", len(d.session.Plans()))
	fmt.Fprintf(d.output, "Type 'help' for available commands, 'next' to run the next check.\n\n")

	for {
		rl.SetPrompt(d.buildPrompt())
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				break
			}
			return nil, err
		}
		if d.Exec(ctx, line) {
			break
		}
	}
	return d.session.Finish(ctx)
}

// Exec runs one command line and reports whether the REPL should exit.
func (d *Debugger) Exec(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}

	switch parts[0] {
	case "next", "n":
		d.handleNext(ctx)
	case "continue", "c":
		d.handleContinue(ctx)
	case "plan", "p":
		d.handlePlan(parts)
	case "results", "r":
		d.handleResults()
	case "show":
		d.handleShow(parts)
	case "summary", "s":
		d.handleSummary()
	case "help", "?":
		d.handleHelp()
	case "quit", "q":
		fmt.Fprintf(d.output, "Exiting debugger; remaining checks still run.\n")
		return true
	default:
		fmt.Fprintf(d.output, "Unknown command: %q. Type 'help' for available commands.\n", parts[0])
	}
	return false
}

// buildPrompt creates the prompt string: webgrade[N/total | kind]>
func (d *Debugger) buildPrompt() string {
	plans := d.session.Plans()
	i := d.session.Position()
	if i >= len(plans) {
		return "webgrade[done]> "
	}
	return fmt.Sprintf("webgrade[%d/%d | %s]> ", i+1, len(plans), plans[i].Kind)
}
