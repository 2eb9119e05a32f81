package harness

// Step outcomes recorded in the trace.
const (
	OutcomeOK       = "ok"
	OutcomeFound    = "found"
	OutcomeMissing  = "missing"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

// TraceEvent records what one step did.
type TraceEvent struct {
	Seq     int    `json:"seq"`
	Op      string `json:"op"`
	Ref     string `json:"ref,omitempty"`
	ID      string `json:"id,omitempty"`
	Outcome string `json:"outcome"`
	Count   *int   `json:"count,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds one event per executed step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// FinalCount is the number of records visible after the last step.
	FinalCount int `json:"final_count"`
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

// AddTrace appends an event, numbering it from 1.
func (r *Result) AddTrace(ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}
