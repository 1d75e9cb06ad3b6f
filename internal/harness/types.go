package harness

import (
	"fmt"
	"strings"
)

// Trace event types.
const (
	EventStep     = "step"
	EventBatch    = "batch"
	EventRegister = "register"
	EventComplete = "complete"
	EventReset    = "reset"
	EventNotify   = "notify"
)

// TraceEvent is one line of a scenario trace. Which fields are set depends
// on Type.
type TraceEvent struct {
	Type string `json:"type"`

	// Seq is the batch sequence number; 0 for step markers.
	Seq int64 `json:"seq,omitempty"`

	// Step describes a step marker.
	Step string `json:"step,omitempty"`

	// Batch fields.
	Token    string `json:"token,omitempty"`
	Records  int    `json:"records,omitempty"`
	Internal bool   `json:"internal,omitempty"`

	// Run is the RunID of register, complete and reset events.
	Run string `json:"run,omitempty"`

	// Listener is the scenario name of a notified listener.
	Listener string `json:"listener,omitempty"`

	// Outcome is the batch outcome or notification outcome.
	Outcome string `json:"outcome,omitempty"`
	Message string `json:"message,omitempty"`
}

// String renders the event as one trace line.
func (e TraceEvent) String() string {
	switch e.Type {
	case EventStep:
		return e.Step
	case EventBatch:
		token := e.Token
		if token == "" {
			token = "-"
		}
		line := fmt.Sprintf("  [%d] batch token=%s records=%d outcome=%s", e.Seq, token, e.Records, e.Outcome)
		if e.Internal {
			line += " internal"
		}
		return line
	case EventRegister, EventComplete, EventReset:
		return fmt.Sprintf("      %s %s", e.Type, e.Run)
	case EventNotify:
		line := fmt.Sprintf("      notify %s %s", e.Listener, e.Outcome)
		if e.Message != "" {
			// Only the headline; structural details follow on later lines
			headline, _, _ := strings.Cut(e.Message, "\n")
			line += ": " + headline
		}
		return line
	default:
		return fmt.Sprintf("  ? %s", e.Type)
	}
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Trace lists step markers, each followed by the batches it caused.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// FormatTrace renders a trace as text, headed by the scenario name.
func FormatTrace(name string, trace []TraceEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", name)
	for _, e := range trace {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return b.String()
}
