package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRunResult_Summary(t *testing.T) {
	r := &RunResult{
		Steps: []StepResult{
			{Status: StatusPassed},
			{Status: StatusPassed},
			{Status: StatusFailed},
			{Status: StatusSkipped},
			{Status: StatusSkipped},
			{Status: StatusRecovered},
		},
	}

	passed, failed, skipped := r.Summary()
	if passed != 3 || failed != 1 || skipped != 2 {
		t.Errorf("Summary() = (%d, %d, %d), want (3, 1, 2)", passed, failed, skipped)
	}
}

func TestStepResult_JSON(t *testing.T) {
	step := StepResult{
		Index:    2,
		Command:  "waitDisplayed",
		Status:   StatusFailed,
		Category: ErrCategoryAssertion,
		Duration: 1500 * time.Millisecond,
		Error:    `element "ok[0]" is not displayed`,
	}

	data, err := json.Marshal(step)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"index":2,"command":"waitDisplayed","status":"failed","errorCategory":"assertion","duration":1500000000,"error":"element \"ok[0]\" is not displayed"}`
	if string(data) != want {
		t.Errorf("Marshal() =\n%s\nwant\n%s", data, want)
	}

	passed, err := json.Marshal(StepResult{Command: "click", Status: StatusPassed})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if want := `{"index":0,"command":"click","status":"passed","duration":0}`; string(passed) != want {
		t.Errorf("Marshal() = %s, want %s", passed, want)
	}
}
