package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/devicelab-dev/fastest-runner/pkg/core"
	"github.com/devicelab-dev/fastest-runner/pkg/script"
)

const (
	indexFile  = "report.json"
	scriptsDir = "scripts"
)

// NewIndex creates an index listing every script as pending.
func NewIndex(server Server, runnerVersion string, scripts []*script.Script) *Index {
	index := &Index{
		Version: Version,
		Status:  StatusPending,
		Server:  server,
		Runner:  RunnerInfo{Version: runnerVersion},
		Scripts: make([]ScriptEntry, len(scripts)),
	}
	for i, s := range scripts {
		index.Scripts[i] = ScriptEntry{
			Index:      i,
			ID:         fmt.Sprintf("script-%03d", i),
			Name:       s.Name,
			SourceFile: s.SourcePath,
			Status:     StatusPending,
			Steps:      StepSummary{Total: len(s.Steps)},
		}
	}
	index.Summary = computeSummary(index.Scripts)
	return index
}

// WriteReport writes a complete report for finished results.
func WriteReport(outputDir string, server Server, runnerVersion string, scripts []*script.Script, results []*core.RunResult) (*Index, error) {
	w, err := NewIndexWriter(outputDir, NewIndex(server, runnerVersion, scripts))
	if err != nil {
		return nil, err
	}
	if err := w.Start(); err != nil {
		return nil, err
	}
	if err := w.End(results); err != nil {
		return nil, err
	}
	return w.Index(), nil
}

// ReadReport loads report.json and every script detail it references.
// Entries without a detail file get an empty detail carrying their id.
func ReadReport(reportDir string) (*Index, []ScriptDetail, error) {
	var index Index
	if err := readJSON(filepath.Join(reportDir, indexFile), &index); err != nil {
		return nil, nil, err
	}

	details := make([]ScriptDetail, len(index.Scripts))
	for i, entry := range index.Scripts {
		if entry.DataFile == "" {
			details[i] = ScriptDetail{ID: entry.ID, Name: entry.Name, SourceFile: entry.SourceFile}
			continue
		}
		if err := readJSON(filepath.Join(reportDir, entry.DataFile), &details[i]); err != nil {
			return nil, nil, err
		}
	}
	return &index, details, nil
}

// buildDetail converts a run result into its detail file contents.
func buildDetail(id string, r *core.RunResult) ScriptDetail {
	steps := make([]Step, len(r.Steps))
	for i, s := range r.Steps {
		steps[i] = Step{
			Index:    s.Index,
			Type:     s.Command,
			Label:    s.Label,
			Status:   statusOf(s.Status),
			Duration: s.Duration.Milliseconds(),
		}
		if s.Error != "" {
			steps[i].Error = &Error{Type: s.Category.String(), Message: s.Error}
		}
	}
	return ScriptDetail{
		ID:           id,
		RunID:        r.ID,
		Name:         r.Name,
		SourceFile:   r.FilePath,
		StartTime:    r.StartTime,
		Duration:     r.Duration.Milliseconds(),
		Steps:        steps,
		Output:       r.Output,
		ScriptOutput: r.ScriptOutput,
	}
}

// applyResult copies a finished result into its index entry.
func applyResult(entry *ScriptEntry, r *core.RunResult) {
	ms := r.Duration.Milliseconds()
	passed, failed, skipped := r.Summary()

	entry.Status = statusOf(r.Status)
	if !r.StartTime.IsZero() {
		start := r.StartTime
		entry.StartTime = &start
	}
	entry.Duration = &ms
	entry.Steps = StepSummary{Total: len(r.Steps), Passed: passed, Failed: failed, Skipped: skipped}
	entry.Error = nil
	if r.Error != "" {
		msg := r.Error
		entry.Error = &msg
	}
}

func computeSummary(entries []ScriptEntry) Summary {
	s := Summary{Total: len(entries)}
	for _, e := range entries {
		switch e.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		case StatusRunning:
			s.Running++
		default:
			s.Pending++
		}
	}
	return s
}

// statusOf maps a chain status onto a report status. Recovered steps
// count as passed.
func statusOf(s core.StepStatus) Status {
	switch s {
	case core.StatusPassed, core.StatusRecovered:
		return StatusPassed
	case core.StatusFailed:
		return StatusFailed
	case core.StatusSkipped:
		return StatusSkipped
	case core.StatusRunning:
		return StatusRunning
	default:
		return StatusPending
	}
}

func ensureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}

// atomicWriteJSON writes v to path via a temp file and rename, so readers
// never see a partial file.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
