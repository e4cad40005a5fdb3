// Package trace implements the grading run's append-only JSONL event log.
package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ormasoftchile/webgrade/pkg/score"
)

// EventType enumerates all run trace event types.
type EventType string

const (
	EventRunStart        EventType = "run_start"
	EventRunComplete     EventType = "run_complete"
	EventCheckStart      EventType = "check_start"
	EventCheckComplete   EventType = "check_complete"
	EventNavigationRetry EventType = "navigation_retry"
	EventLoginWall       EventType = "login_wall"
	EventIdleTimeout     EventType = "idle_timeout"
)

// CheckStatus is the outcome class of one check.
type CheckStatus string

const (
	StatusPassed  CheckStatus = "passed"
	StatusPartial CheckStatus = "partial"
	StatusFailed  CheckStatus = "failed"
)

// StatusOf classifies a result.
func StatusOf(r score.CheckResult) CheckStatus {
	switch {
	case r.Passed:
		return StatusPassed
	case r.Points.Earned > 0:
		return StatusPartial
	}
	return StatusFailed
}

// Event is a single trace event written to the JSONL stream.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// Writer writes trace events to an append-only JSONL stream and fans them
// out to subscribers.
type Writer struct {
	mu     sync.Mutex
	runID  string
	enc    *json.Encoder
	closer io.Closer
	subs   []func(Event)
}

// NewWriter creates a trace writer that writes to w. A nil w only feeds
// subscribers.
func NewWriter(w io.Writer, runID string) *Writer {
	tw := &Writer{runID: runID}
	if w != nil {
		tw.enc = json.NewEncoder(w)
	}
	return tw
}

// NewFileWriter creates a trace writer that appends to a JSONL file.
func NewFileWriter(path, runID string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	tw := NewWriter(f, runID)
	tw.closer = f
	return tw, nil
}

// RunID returns the run identifier stamped on every event.
func (tw *Writer) RunID() string { return tw.runID }

// Subscribe registers fn to receive every event after it is written.
func (tw *Writer) Subscribe(fn func(Event)) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.subs = append(tw.subs, fn)
}

// Emit writes a single trace event.
func (tw *Writer) Emit(eventType EventType, data map[string]any) error {
	tw.mu.Lock()
	evt := Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		RunID:     tw.runID,
		Data:      data,
	}
	var err error
	if tw.enc != nil {
		err = tw.enc.Encode(evt)
	}
	subs := tw.subs
	tw.mu.Unlock()

	for _, fn := range subs {
		fn(evt)
	}
	return err
}

// Close closes the underlying file, if the writer owns one.
func (tw *Writer) Close() error {
	if tw.closer == nil {
		return nil
	}
	return tw.closer.Close()
}

// EmitRunStart emits a run_start event.
func (tw *Writer) EmitRunStart(assignment int, title, baseURL string, checks int, strict bool) error {
	data := map[string]any{
		"assignment": assignment,
		"base_url":   baseURL,
		"checks":     checks,
		"strict":     strict,
	}
	if title != "" {
		data["title"] = title
	}
	return tw.Emit(EventRunStart, data)
}

// EmitCheckStart emits a check_start event.
func (tw *Writer) EmitCheckStart(index int, name, kind, route string) error {
	return tw.Emit(EventCheckStart, map[string]any{
		"check_id": CheckID(index),
		"index":    index,
		"name":     name,
		"kind":     kind,
		"route":    route,
	})
}

// EmitCheckComplete emits a check_complete event.
func (tw *Writer) EmitCheckComplete(index int, res score.CheckResult, duration time.Duration) error {
	return tw.Emit(EventCheckComplete, map[string]any{
		"check_id": CheckID(index),
		"index":    index,
		"name":     res.Criterion,
		"status":   string(StatusOf(res)),
		"earned":   res.Points.Earned,
		"possible": res.Points.Possible,
		"details":  res.Details,
		"duration": duration.String(),
	})
}

// EmitNavigation emits a navigation_retry, login_wall or idle_timeout event
// for the check at index.
func (tw *Writer) EmitNavigation(index int, kind EventType, url string, attempt int, cause error) error {
	data := map[string]any{
		"check_id": CheckID(index),
		"url":      url,
	}
	if attempt > 0 {
		data["attempt"] = attempt
	}
	if cause != nil {
		data["error"] = cause.Error()
	}
	return tw.Emit(kind, data)
}

// EmitRunComplete emits a run_complete event.
func (tw *Writer) EmitRunComplete(rep score.Report, status string, shortfalls int, duration time.Duration) error {
	return tw.Emit(EventRunComplete, map[string]any{
		"status":         status,
		"total_earned":   rep.TotalEarned,
		"total_possible": rep.TotalPossible,
		"percentage":     rep.Percentage,
		"passed":         rep.PassedCount,
		"failed":         rep.FailedCount,
		"shortfalls":     shortfalls,
		"duration":       duration.String(),
	})
}

// CheckID is the stable identifier of the check at index.
func CheckID(index int) string {
	return fmt.Sprintf("check-%03d", index+1)
}

// ReadEvents parses a JSONL trace stream.
func ReadEvents(r io.Reader) ([]Event, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	var events []Event
	line := 0
	for scanner.Scan() {
		line++
		b := scanner.Bytes()
		if len(b) == 0 {
			continue
		}
		var evt Event
		if err := json.Unmarshal(b, &evt); err != nil {
			return nil, fmt.Errorf("event %d: invalid JSON: %w", line, err)
		}
		events = append(events, evt)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	return events, nil
}

// ReadFile parses a JSONL trace file.
func ReadFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	defer f.Close()
	return ReadEvents(f)
}
