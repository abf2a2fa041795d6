package core

import "time"

// StepResult captures the outcome of a single chain step
type StepResult struct {
	Index    int           `json:"index"`   // 0-based position in the chain
	Command  string        `json:"command"` // click, waitDisplayed, elementsByXpath, ...
	Label    string        `json:"label,omitempty"`
	Status   StepStatus    `json:"status"`
	Category ErrorCategory `json:"errorCategory,omitempty"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// RunResult captures the outcome of running one script against a session
type RunResult struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	FilePath  string        `json:"filePath"`
	Status    StepStatus    `json:"status"`
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`
	Steps     []StepResult  `json:"steps"`
	Error     string        `json:"error,omitempty"`
	Output    interface{}   `json:"output,omitempty"` // Value produced by the last step

	// Values scripts stored in the JS output object
	ScriptOutput map[string]interface{} `json:"scriptOutput,omitempty"`
}

// Summary counts step statuses.
func (r *RunResult) Summary() (passed, failed, skipped int) {
	for _, s := range r.Steps {
		switch s.Status {
		case StatusPassed, StatusRecovered:
			passed++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	return passed, failed, skipped
}
