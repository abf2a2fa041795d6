// Package report writes JSON run reports and Allure results.
//
// Layout:
//   - report.json: run index (status, summary, one entry per script)
//   - scripts/script-XXX.json: per-script step details
//   - allure-results/: optional Allure export generated from the above
//
// report.json is rewritten as scripts finish, so consumers can poll it.
package report

import "time"

// Version is the report schema version.
const Version = "1.0.0"

// Status represents the execution status.
type Status string

// Status values.
const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusSkipped
}

// ============================================================================
// INDEX (report.json)
// ============================================================================

// Index is the main report file.
type Index struct {
	Version   string        `json:"version"`
	Status    Status        `json:"status"`
	StartTime time.Time     `json:"startTime"`
	EndTime   *time.Time    `json:"endTime,omitempty"`
	Server    Server        `json:"server"`
	Runner    RunnerInfo    `json:"runner"`
	Summary   Summary       `json:"summary"`
	Scripts   []ScriptEntry `json:"scripts"`
}

// Server describes the automation server the run talked to.
type Server struct {
	URL         string `json:"url"`
	PackageName string `json:"packageName,omitempty"`
}

// RunnerInfo contains runner information.
type RunnerInfo struct {
	Version string `json:"version"`
}

// Summary contains aggregated counts.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Running int `json:"running"`
	Pending int `json:"pending"`
}

// ScriptEntry is the index entry for a script.
type ScriptEntry struct {
	Index      int         `json:"index"`
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	SourceFile string      `json:"sourceFile"`
	DataFile   string      `json:"dataFile,omitempty"` // Relative path of the detail file
	Status     Status      `json:"status"`
	StartTime  *time.Time  `json:"startTime,omitempty"`
	Duration   *int64      `json:"duration,omitempty"` // milliseconds
	Steps      StepSummary `json:"steps"`
	Error      *string     `json:"error,omitempty"`
}

// StepSummary contains step counts for a script.
type StepSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// ============================================================================
// SCRIPT DETAIL (scripts/script-XXX.json)
// ============================================================================

// ScriptDetail contains full script execution details.
type ScriptDetail struct {
	ID           string                 `json:"id"`
	RunID        string                 `json:"runId,omitempty"`
	Name         string                 `json:"name"`
	SourceFile   string                 `json:"sourceFile"`
	StartTime    time.Time              `json:"startTime"`
	Duration     int64                  `json:"duration"` // milliseconds
	Steps        []Step                 `json:"steps"`
	Output       interface{}            `json:"output,omitempty"`
	ScriptOutput map[string]interface{} `json:"scriptOutput,omitempty"`
}

// Step represents a single step execution.
type Step struct {
	Index    int    `json:"index"`
	Type     string `json:"type"`
	Label    string `json:"label,omitempty"`
	Status   Status `json:"status"`
	Duration int64  `json:"duration"` // milliseconds
	Error    *Error `json:"error,omitempty"`
}

// Error contains error details.
type Error struct {
	Type    string `json:"type"` // assertion, timeout, connection, contract, config
	Message string `json:"message"`
}
