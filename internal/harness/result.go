package harness

import "strings"

// StepOutcome records what one step did.
type StepOutcome struct {
	Step    int    `json:"step"`
	Action  string `json:"action"`
	Outcome string `json:"outcome,omitempty"`
	HasNext bool   `json:"has_next"`
	Loads   int    `json:"loads,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation held.
	Pass bool `json:"pass"`

	// Items is the folded list after the last step, placeholders skipped.
	Items        []int `json:"items"`
	Placeholders int   `json:"placeholders"`

	Outcomes []StepOutcome `json:"outcomes"`

	// Trace has one line per step, batch, event and step result.
	Trace []string `json:"trace"`

	Errors []string `json:"errors,omitempty"`

	// Session is the journal session id when the run was recorded.
	Session string `json:"session,omitempty"`
}

// NewResult creates an empty passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Items:    []int{},
		Outcomes: []StepOutcome{},
		Trace:    []string{},
		Errors:   []string{},
	}
}

// AddError records a failed expectation.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}

// TraceText renders the trace as newline-terminated lines.
func (r *Result) TraceText() string {
	if len(r.Trace) == 0 {
		return ""
	}
	return strings.Join(r.Trace, "\n") + "\n"
}
