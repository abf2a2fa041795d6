package android

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/devicelab-dev/fastest-runner/pkg/chain"
	"github.com/devicelab-dev/fastest-runner/pkg/webdriver/mock"
)

const testSessionID = "a3d1c7f0-52b4-4e8f-8a19-6c0d2e7b9f31"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
	)
}

func newStartedTester(t *testing.T) (*Tester, *mock.Server) {
	t.Helper()
	server := mock.NewServer()
	t.Cleanup(server.Close)

	tester := New(Options{
		Options:     chain.Options{ServerURL: server.URL},
		PackageName: "fi.foo.bar",
	})
	server.Enqueue(map[string]interface{}{"sessionId": testSessionID})
	if err := tester.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	wait(t, tester)
	server.Reset()
	return tester, server
}

func wait(t *testing.T, tester *Tester) interface{} {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	value, err := tester.Wait(ctx)
	if err != nil {
		t.Fatalf("chain failed: %v", err)
	}
	return value
}

func findBodies(reqs []mock.Request) []map[string]interface{} {
	var out []map[string]interface{}
	for _, r := range reqs {
		if r.Path == "/wd/hub/session/"+testSessionID+"/elements" {
			out = append(out, r.Body)
		}
	}
	return out
}

func find(using, value string) map[string]interface{} {
	return map[string]interface{}{"using": using, "value": value}
}

func TestWidgetSelectors(t *testing.T) {
	tests := []struct {
		name string
		call func(*Tester) *Tester
		want map[string]interface{}
	}{
		{"textViews all", func(t *Tester) *Tester { return t.TextViews() }, find("class name", "android.widget.TextView")},
		{"textViews text", func(t *Tester) *Tester { return t.TextViews(chain.V("Hello")) }, find("xpath", `//android.widget.TextView[@text="Hello"]`)},
		{"textView text", func(t *Tester) *Tester { return t.TextView(chain.V("Hello")) }, find("xpath", `//android.widget.TextView[@text="Hello"]`)},
		{"textInputs all", func(t *Tester) *Tester { return t.TextInputs() }, find("class name", "android.widget.EditText")},
		{"textInput text", func(t *Tester) *Tester { return t.TextInput(chain.V("Name")) }, find("xpath", `//android.widget.EditText[@text="Name"]`)},
		{"buttons all", func(t *Tester) *Tester { return t.Buttons() }, find("class name", "android.widget.Button")},
		{"button text", func(t *Tester) *Tester { return t.Button(chain.V("OK")) }, find("xpath", `//android.widget.Button[@text="OK"]`)},
		{"button empty text", func(t *Tester) *Tester { return t.Button(chain.V("")) }, find("class name", "android.widget.Button")},
		{"viewsById", func(t *Tester) *Tester { return t.ViewsByID(chain.V("title")) }, find("id", "fi.foo.bar:id/title")},
		{"viewById", func(t *Tester) *Tester { return t.ViewByID(chain.V("title")) }, find("id", "fi.foo.bar:id/title")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tester, server := newStartedTester(t)
			wait(t, tt.call(tester))

			if diff := cmp.Diff([]map[string]interface{}{tt.want}, findBodies(server.Requests())); diff != "" {
				t.Errorf("find mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLazyTextResolvedOnce(t *testing.T) {
	tester, server := newStartedTester(t)

	calls := 0
	wait(t, tester.Button(chain.F(func() string {
		calls++
		return "Later"
	})))

	if calls != 1 {
		t.Errorf("producer calls = %d, want 1", calls)
	}
	want := []map[string]interface{}{find("xpath", `//android.widget.Button[@text="Later"]`)}
	if diff := cmp.Diff(want, findBodies(server.Requests())); diff != "" {
		t.Errorf("find mismatch (-want +got):\n%s", diff)
	}
}

func TestTexts(t *testing.T) {
	tester, server := newStartedTester(t)
	first, second := mock.NewElementID(), mock.NewElementID()
	server.Enqueue(
		map[string]interface{}{"value": []interface{}{mock.ElementObject(first), mock.ElementObject(second)}},
		map[string]interface{}{"value": "one"},
		map[string]interface{}{"value": "two"},
	)

	value := wait(t, tester.Texts())

	if diff := cmp.Diff([]string{"one", "two"}, value); diff != "" {
		t.Errorf("texts mismatch (-want +got):\n%s", diff)
	}
	reqs := server.Requests()
	if len(reqs) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(reqs))
	}
	if reqs[1].Path != "/wd/hub/session/"+testSessionID+"/element/"+first+"/text" {
		t.Errorf("first text request = %s", reqs[1].Path)
	}
}

func TestSugarChainsIntoChainMethods(t *testing.T) {
	tester, server := newStartedTester(t)
	id := mock.NewElementID()
	server.Enqueue(
		map[string]interface{}{"value": []interface{}{mock.ElementObject(id)}},
		map[string]interface{}{},
	)

	tester.Button(chain.V("OK")).Click()
	wait(t, tester)

	reqs := server.Requests()
	if got := reqs[len(reqs)-1].Path; got != "/wd/hub/session/"+testSessionID+"/element/"+id+"/click" {
		t.Errorf("last request = %s", got)
	}
}

func TestSelector(t *testing.T) {
	if got := Selector(ClassButton, ""); got != ClassButton {
		t.Errorf("Selector empty = %q", got)
	}
	if got := Selector(ClassButton, "Go"); got != `//android.widget.Button[@text="Go"]` {
		t.Errorf("Selector text = %q", got)
	}
}

func TestResourceID(t *testing.T) {
	tester := New(Options{PackageName: "com.example"})
	if got := tester.ResourceID("list"); got != "com.example:id/list" {
		t.Errorf("ResourceID = %q", got)
	}
}
