package report

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Allure result schema types.

// AllureResult represents a single test result in Allure format.
type AllureResult struct {
	UUID          string              `json:"uuid"`
	HistoryID     string              `json:"historyId"`
	FullName      string              `json:"fullName"`
	Name          string              `json:"name"`
	Status        string              `json:"status"`
	Stage         string              `json:"stage"`
	Start         int64               `json:"start"`
	Stop          int64               `json:"stop"`
	Labels        []AllureLabel       `json:"labels"`
	Parameters    []AllureParameter   `json:"parameters,omitempty"`
	StatusDetails AllureStatusDetails `json:"statusDetails"`
	Steps         []AllureStep        `json:"steps"`
}

// AllureStep represents a step within a test result.
type AllureStep struct {
	Name          string              `json:"name"`
	Status        string              `json:"status"`
	Stage         string              `json:"stage"`
	Start         int64               `json:"start"`
	Stop          int64               `json:"stop"`
	StatusDetails AllureStatusDetails `json:"statusDetails"`
	Steps         []AllureStep        `json:"steps"`
}

// AllureLabel represents a label on a test result.
type AllureLabel struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AllureParameter is a name/value pair shown with the result; scripts'
// output values end up here.
type AllureParameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AllureStatusDetails holds failure message and trace.
type AllureStatusDetails struct {
	Message string `json:"message,omitempty"`
	Trace   string `json:"trace,omitempty"`
}

// AllureCategory defines a failure category with regex matching.
type AllureCategory struct {
	Name            string   `json:"name"`
	MatchedStatuses []string `json:"matchedStatuses"`
	MessageRegex    string   `json:"messageRegex"`
}

// GenerateAllure generates Allure-compatible result files in
// <reportDir>/allure-results/ from a written report.
func GenerateAllure(reportDir string) error {
	index, details, err := ReadReport(reportDir)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	allureDir := filepath.Join(reportDir, "allure-results")
	if err := ensureDir(allureDir); err != nil {
		return fmt.Errorf("create allure-results dir: %w", err)
	}

	// One result file per script
	for i, entry := range index.Scripts {
		if entry.Status == StatusPending || entry.Status == StatusRunning {
			continue
		}
		result := buildAllureResult(&entry, &details[i], index)
		resultPath := filepath.Join(allureDir, result.UUID+"-result.json")
		if err := atomicWriteJSON(resultPath, result); err != nil {
			return fmt.Errorf("write allure result %s: %w", entry.ID, err)
		}
	}

	if err := writeAllureCategories(allureDir); err != nil {
		return err
	}
	return writeAllureEnvironment(allureDir, index)
}

// buildAllureResult builds an AllureResult from a script entry and its detail.
func buildAllureResult(entry *ScriptEntry, detail *ScriptDetail, index *Index) AllureResult {
	var startMs, stopMs int64
	if entry.StartTime != nil {
		startMs = entry.StartTime.UnixMilli()
		stopMs = startMs
		if entry.Duration != nil {
			stopMs += *entry.Duration
		}
	}

	labels := []AllureLabel{
		{Name: "suite", Value: entry.Name},
		{Name: "parentSuite", Value: filepath.Base(entry.SourceFile)},
		{Name: "framework", Value: "fastest"},
		{Name: "severity", Value: "normal"},
	}
	if index.Server.PackageName != "" {
		labels = append(labels, AllureLabel{Name: "package", Value: index.Server.PackageName})
	}

	var statusDetails AllureStatusDetails
	if entry.Error != nil {
		statusDetails.Message = *entry.Error
	}

	// Allure merges results by uuid across runs; prefer the run id.
	uuid := entry.ID
	if detail.RunID != "" {
		uuid = detail.RunID
	}

	return AllureResult{
		UUID:          uuid,
		HistoryID:     fnv32aHash(entry.Name + ":" + entry.SourceFile),
		FullName:      entry.SourceFile + "#" + entry.Name,
		Name:          entry.Name,
		Status:        mapAllureStatus(entry.Status),
		Stage:         "finished",
		Start:         startMs,
		Stop:          stopMs,
		Labels:        labels,
		Parameters:    buildAllureParameters(detail.ScriptOutput),
		StatusDetails: statusDetails,
		Steps:         buildAllureSteps(detail.Steps, startMs),
	}
}

// buildAllureSteps lays the steps out back to back from start, since only
// durations are recorded per step.
func buildAllureSteps(steps []Step, start int64) []AllureStep {
	out := make([]AllureStep, 0, len(steps))
	at := start
	for _, s := range steps {
		name := s.Type
		if s.Label != "" {
			name = s.Type + ": " + s.Label
		}
		var details AllureStatusDetails
		if s.Error != nil {
			details.Message = s.Error.Message
			details.Trace = s.Error.Type
		}
		out = append(out, AllureStep{
			Name:          name,
			Status:        mapAllureStatus(s.Status),
			Stage:         "finished",
			Start:         at,
			Stop:          at + s.Duration,
			StatusDetails: details,
			Steps:         []AllureStep{},
		})
		at += s.Duration
	}
	return out
}

func buildAllureParameters(output map[string]interface{}) []AllureParameter {
	if len(output) == 0 {
		return nil
	}
	names := make([]string, 0, len(output))
	for k := range output {
		names = append(names, k)
	}
	sort.Strings(names)

	params := make([]AllureParameter, len(names))
	for i, k := range names {
		params[i] = AllureParameter{Name: k, Value: fmt.Sprint(output[k])}
	}
	return params
}

// mapAllureStatus maps report Status to Allure status string.
func mapAllureStatus(s Status) string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// fnv32aHash returns a hex-encoded FNV-32a hash of the input string.
func fnv32aHash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}

// writeAllureCategories writes categories.json for failure categorization.
func writeAllureCategories(allureDir string) error {
	categories := []AllureCategory{
		{Name: "Element Not Found", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*could not find element.*"},
		{Name: "Element Not Visible", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*is not displayed.*"},
		{Name: "Element State", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*is not (enabled|selected).*|.* is displayed.*"},
		{Name: "Element Moving", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*did not stop moving.*"},
		{Name: "Timeout", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*timeout.*|.*timed out.*|.*deadline exceeded.*"},
		{Name: "Session Error", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*session.*"},
		{Name: "Connection Error", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*connection.*|.*connect:.*|.*status \\d{3}.*"},
		{Name: "Script Error", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*JS eval error.*"},
		{Name: "Configuration Error", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*serverUrl.*|.*implicitWaitMs.*"},
	}

	if err := atomicWriteJSON(filepath.Join(allureDir, "categories.json"), categories); err != nil {
		return fmt.Errorf("write categories.json: %w", err)
	}
	return nil
}

// writeAllureEnvironment writes environment.properties with run metadata.
func writeAllureEnvironment(allureDir string, index *Index) error {
	var b strings.Builder
	b.WriteString("framework=fastest\n")

	if index.Server.URL != "" {
		b.WriteString(fmt.Sprintf("server.url=%s\n", index.Server.URL))
	}
	if index.Server.PackageName != "" {
		b.WriteString(fmt.Sprintf("app.package=%s\n", index.Server.PackageName))
	}
	if index.Runner.Version != "" {
		b.WriteString(fmt.Sprintf("runner.version=%s\n", index.Runner.Version))
	}

	path := filepath.Join(allureDir, "environment.properties")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write environment.properties: %w", err)
	}
	return nil
}
