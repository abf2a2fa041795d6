package executor

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/devicelab-dev/fastest-runner/pkg/config"
	"github.com/devicelab-dev/fastest-runner/pkg/core"
	"github.com/devicelab-dev/fastest-runner/pkg/script"
	"github.com/devicelab-dev/fastest-runner/pkg/webdriver/mock"
)

const testSessionID = "5f1c2d3e-4a5b-4c6d-8e7f-901234567890"

// fakeServer answers the calls a script makes: session create/delete,
// finds returning one element, text and displayed queries.
type fakeServer struct {
	*mock.Server
	elementID string
	text      string
	displayed bool
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{
		Server:    mock.NewServer(),
		elementID: mock.NewElementID(),
		text:      "Hello",
		displayed: true,
	}
	t.Cleanup(fs.Close)
	fs.install()
	return fs
}

func (fs *fakeServer) install() {
	fs.SetHandler(func(req mock.Request) (mock.Reply, bool) {
		switch {
		case req.Method == http.MethodPost && req.Path == "/wd/hub/session":
			return mock.Reply{Body: map[string]interface{}{"sessionId": testSessionID}}, true
		case strings.HasSuffix(req.Path, "/elements"):
			return mock.Reply{Body: map[string]interface{}{
				"value": []interface{}{mock.ElementObject(fs.elementID)},
			}}, true
		case strings.HasSuffix(req.Path, "/text"):
			return mock.Reply{Body: map[string]interface{}{"value": fs.text}}, true
		case strings.HasSuffix(req.Path, "/displayed"):
			return mock.Reply{Body: map[string]interface{}{"value": fs.displayed}}, true
		}
		return mock.Reply{}, false
	})
}

func (fs *fakeServer) config() *config.Config {
	cfg := config.Defaults()
	cfg.ServerURL = fs.URL
	cfg.PackageName = "fi.foo.bar"
	cfg.ImplicitWaitMs = 500
	return cfg
}

func (fs *fakeServer) deleted() bool {
	for _, req := range fs.Requests() {
		if req.Method == http.MethodDelete && req.Path == "/wd/hub/session/"+testSessionID {
			return true
		}
	}
	return false
}

func mustParse(t *testing.T, name, src string) *script.Script {
	t.Helper()
	s, err := script.Parse([]byte(src), name+".yaml")
	if err != nil {
		t.Fatalf("parse %s: %v", name, err)
	}
	return s
}

func stepStatuses(steps []core.StepResult) []core.StepStatus {
	out := make([]core.StepStatus, len(steps))
	for i, s := range steps {
		out[i] = s.Status
	}
	return out
}

func TestRun_Passes(t *testing.T) {
	fs := newFakeServer(t)
	s := mustParse(t, "greet", `
- elementsByXpath: //android.widget.TextView
- at: 0
- text: {saveAs: greeting}
- evalScript: "output.result = greeting + '!'"
`)

	result, err := Run(context.Background(), fs.config(), s)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Status != core.StatusPassed {
		t.Fatalf("Status = %v, error %q", result.Status, result.Error)
	}
	want := []core.StepStatus{core.StatusPassed, core.StatusPassed, core.StatusPassed, core.StatusPassed}
	if diff := cmp.Diff(want, stepStatuses(result.Steps)); diff != "" {
		t.Errorf("step statuses mismatch (-want +got):\n%s", diff)
	}
	if result.Steps[2].Command != "text" {
		t.Errorf("Steps[2].Command = %q", result.Steps[2].Command)
	}
	if result.Output != "Hello!" {
		t.Errorf("Output = %v", result.Output)
	}
	if result.ScriptOutput["result"] != "Hello!" {
		t.Errorf("ScriptOutput = %v", result.ScriptOutput)
	}
	if result.ID == "" {
		t.Error("expected a run id")
	}
	if !fs.deleted() {
		t.Error("session was not deleted")
	}
}

func TestRun_SessionCapabilities(t *testing.T) {
	fs := newFakeServer(t)
	s := mustParse(t, "caps", `
capabilities: {platformName: Android}
---
- hideKeyboard
`)

	if _, err := Run(context.Background(), fs.config(), s); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	reqs := fs.Requests()
	if len(reqs) == 0 || reqs[0].Path != "/wd/hub/session" {
		t.Fatalf("first request = %+v", reqs)
	}
	caps, _ := reqs[0].Body["desiredCapabilities"].(map[string]interface{})
	want := map[string]interface{}{"platformName": "Android", "appPackage": "fi.foo.bar"}
	if diff := cmp.Diff(want, caps); diff != "" {
		t.Errorf("capabilities mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_SavedValueFeedsLaterSelector(t *testing.T) {
	fs := newFakeServer(t)
	fs.text = "Sign in"
	s := mustParse(t, "chain", `
- textView
- at: 0
- text: {saveAs: label}
- elementsByXpath: '//android.widget.Button[@text="$label"]'
`)

	result, err := Run(context.Background(), fs.config(), s)
	if err != nil || result.Status != core.StatusPassed {
		t.Fatalf("Run = %v, %v (%s)", result, err, result.Error)
	}

	var selectors []interface{}
	for _, req := range fs.Requests() {
		if strings.HasSuffix(req.Path, "/elements") {
			selectors = append(selectors, req.Body["value"])
		}
	}
	want := []interface{}{"android.widget.TextView", `//android.widget.Button[@text="Sign in"]`}
	if diff := cmp.Diff(want, selectors); diff != "" {
		t.Errorf("selectors mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_AssertionFailureStillQuits(t *testing.T) {
	fs := newFakeServer(t)
	fs.displayed = false
	s := mustParse(t, "hidden", `
- button: OK
- at: 0
- isDisplayed
- click
`)

	result, err := Run(context.Background(), fs.config(), s)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Status != core.StatusFailed {
		t.Fatalf("Status = %v", result.Status)
	}
	want := []core.StepStatus{core.StatusPassed, core.StatusPassed, core.StatusFailed, core.StatusSkipped}
	if diff := cmp.Diff(want, stepStatuses(result.Steps)); diff != "" {
		t.Errorf("step statuses mismatch (-want +got):\n%s", diff)
	}
	if result.Steps[2].Category != core.ErrCategoryAssertion {
		t.Errorf("Category = %v", result.Steps[2].Category)
	}
	if !strings.Contains(result.Error, "is not displayed") {
		t.Errorf("Error = %q", result.Error)
	}
	if !fs.deleted() {
		t.Error("session was not deleted after failure")
	}
	for _, req := range fs.Requests() {
		if strings.HasSuffix(req.Path, "/click") {
			t.Error("click ran after failed assertion")
		}
	}
}

func TestRun_SessionCreateFails(t *testing.T) {
	fs := newFakeServer(t)
	fs.SetHandler(nil)
	fs.EnqueueReply(mock.Reply{
		Status: http.StatusInternalServerError,
		Body:   map[string]interface{}{"value": map[string]interface{}{"error": "session not created", "message": "no device"}},
	})
	s := mustParse(t, "nodevice", `
- textView
- click
`)

	result, err := Run(context.Background(), fs.config(), s)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Status != core.StatusFailed || result.Error == "" {
		t.Fatalf("result = %+v", result)
	}
	want := []core.StepStatus{core.StatusSkipped, core.StatusSkipped}
	if diff := cmp.Diff(want, stepStatuses(result.Steps)); diff != "" {
		t.Errorf("step statuses mismatch (-want +got):\n%s", diff)
	}
	if len(fs.Requests()) != 1 {
		t.Errorf("requests = %+v, want only the session create", fs.Requests())
	}
	if strings.Contains(result.Error, core.ErrServerUnreachable.Message) {
		t.Errorf("server reply reported as unreachable: %s", result.Error)
	}
}

func TestRun_ServerUnreachable(t *testing.T) {
	fs := newFakeServer(t)
	cfg := fs.config()
	fs.Close()

	result, err := Run(context.Background(), cfg, mustParse(t, "offline", "- textView\n"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Status != core.StatusFailed {
		t.Fatalf("status = %s, want failed", result.Status)
	}
	if !strings.HasPrefix(result.Error, core.ErrServerUnreachable.Message+": ") {
		t.Errorf("error = %q, want it to start with %q", result.Error, core.ErrServerUnreachable.Message)
	}
}

func TestRun_DeadlineExceeded(t *testing.T) {
	fs := newFakeServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	result, err := Run(ctx, fs.config(), mustParse(t, "slow", "- sleep: 5000\n"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.HasPrefix(result.Error, "script timed out") {
		t.Errorf("error = %q, want a timeout", result.Error)
	}
	if got := stepStatuses(result.Steps); len(got) != 1 || got[0] != core.StatusFailed {
		t.Errorf("step statuses = %v", got)
	}
	if !fs.deleted() {
		t.Error("session should be deleted after the deadline")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	s := mustParse(t, "bad", `
serverUrl: ftp://example.com
---
- click
`)
	_, err := Run(context.Background(), config.Defaults(), s)
	if !errors.Is(err, core.ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestRun_SetImplicitWaitTimeout(t *testing.T) {
	fs := newFakeServer(t)
	s := mustParse(t, "wait", `
- setImplicitWaitTimeout: 1500
`)

	if _, err := Run(context.Background(), fs.config(), s); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	var body map[string]interface{}
	for _, req := range fs.Requests() {
		if strings.HasSuffix(req.Path, "/timeouts/implicit_wait") {
			body = req.Body
		}
	}
	if diff := cmp.Diff(map[string]interface{}{"ms": float64(1500)}, body); diff != "" {
		t.Errorf("implicit wait body mismatch (-want +got):\n%s", diff)
	}
}

func TestRunner_StopOnFail(t *testing.T) {
	fs := newFakeServer(t)
	fs.displayed = false
	failing := mustParse(t, "failing", "- button\n- at: 0\n- isDisplayed\n")
	never := mustParse(t, "never", "- click\n")

	var started, ended []string
	runner := New(RunnerConfig{
		Config:        fs.config(),
		StopOnFail:    true,
		OnScriptStart: func(_, _ int, name, _ string) { started = append(started, name) },
		OnScriptEnd:   func(r *core.RunResult) { ended = append(ended, r.Name) },
	})
	batch := runner.Run(context.Background(), []*script.Script{failing, never})

	if batch.Status != core.StatusFailed || batch.Failed != 1 || batch.Skipped != 1 || batch.Total != 2 {
		t.Errorf("batch = %+v", batch)
	}
	if batch.Results[1].Status != core.StatusSkipped {
		t.Errorf("second script status = %v", batch.Results[1].Status)
	}
	if diff := cmp.Diff([]string{"failing"}, started); diff != "" {
		t.Errorf("started mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"failing"}, ended); diff != "" {
		t.Errorf("ended mismatch (-want +got):\n%s", diff)
	}
}

func TestRunner_ContinuesWithoutStopOnFail(t *testing.T) {
	fs := newFakeServer(t)
	bad := mustParse(t, "bad", "serverUrl: ftp://nowhere\n---\n- click\n")
	good := mustParse(t, "good", "- hideKeyboard\n")

	var steps int
	runner := New(RunnerConfig{
		Config:         fs.config(),
		OnStepComplete: func(core.StepResult) { steps++ },
	})
	batch := runner.Run(context.Background(), []*script.Script{bad, good})

	if batch.Passed != 1 || batch.Failed != 1 || batch.Skipped != 0 {
		t.Errorf("batch = %+v", batch)
	}
	if batch.Results[0].Status != core.StatusFailed || !strings.Contains(batch.Results[0].Error, "serverUrl") {
		t.Errorf("bad result = %+v", batch.Results[0])
	}
	if steps != 2 {
		t.Errorf("OnStepComplete called %d times, want 2", steps)
	}
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := mustParse(t, "cancelled", "- click\n")
	batch := New(RunnerConfig{}).Run(ctx, []*script.Script{s})
	if batch.Skipped != 1 || batch.Results[0].Status != core.StatusSkipped {
		t.Errorf("batch = %+v", batch)
	}
}
