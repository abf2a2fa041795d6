package webdriver

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/devicelab-dev/fastest-runner/pkg/webdriver/mock"
)

func TestNewConnection_NormalizesTrailingSlash(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://localhost:4723", "http://localhost:4723/wd/hub/session"},
		{"http://localhost:4723/", "http://localhost:4723/wd/hub/session"},
	}
	for _, tt := range tests {
		c := NewConnection(tt.in)
		if got := c.Path("session"); got != tt.want {
			t.Errorf("Path() = %q, want %q", got, tt.want)
		}
	}
}

func TestConnection_Verbs(t *testing.T) {
	server := mock.NewServer()
	defer server.Close()

	server.Enqueue(
		map[string]interface{}{"value": "a"},
		map[string]interface{}{"value": "b"},
		map[string]interface{}{},
	)

	c := NewConnection(server.URL)
	ctx := context.Background()

	res, err := c.Get(ctx, "status")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if res.Status != http.StatusOK || res.Value() != "a" {
		t.Errorf("Get = %d %v", res.Status, res.Value())
	}

	res, err = c.Post(ctx, "session/s1/elements", map[string]interface{}{"using": "id", "value": "x"})
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if res.Value() != "b" {
		t.Errorf("Post value = %v", res.Value())
	}

	if _, err := c.Delete(ctx, "session/s1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	want := []mock.Request{
		{Method: "GET", Path: "/wd/hub/status"},
		{Method: "POST", Path: "/wd/hub/session/s1/elements", Body: map[string]interface{}{"using": "id", "value": "x"}},
		{Method: "DELETE", Path: "/wd/hub/session/s1"},
	}
	if diff := cmp.Diff(want, server.Requests()); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
}

func TestConnection_PostNilBodySendsEmptyObject(t *testing.T) {
	server := mock.NewServer()
	defer server.Close()

	c := NewConnection(server.URL)
	if _, err := c.Post(context.Background(), "session/s1/appium/app/reset", nil); err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	reqs := server.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	if diff := cmp.Diff(map[string]interface{}{}, reqs[0].Body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestConnection_EmptyResponseBody(t *testing.T) {
	server := mock.NewServer()
	defer server.Close()
	server.SetHandler(func(req mock.Request) (mock.Reply, bool) {
		return mock.Reply{Body: nil}, true
	})

	c := NewConnection(server.URL)
	res, err := c.Post(context.Background(), "session/s1/element/e1/click", nil)
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if res.Value() != nil {
		t.Errorf("Value() = %v, want nil", res.Value())
	}
}

func TestConnection_ProtocolError(t *testing.T) {
	server := mock.NewServer()
	defer server.Close()

	server.EnqueueReply(mock.Reply{
		Status: http.StatusNotFound,
		Body: map[string]interface{}{
			"value": map[string]interface{}{
				"error":   "no such element",
				"message": "An element could not be located",
			},
		},
	})

	c := NewConnection(server.URL)
	res, err := c.Get(context.Background(), "session/s1/element/e1/text")

	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ProtocolError, got %T: %v", err, err)
	}
	if pe.Status != http.StatusNotFound || pe.Code != "no such element" {
		t.Errorf("unexpected error fields: %+v", pe)
	}
	if pe.Message != "An element could not be located" {
		t.Errorf("Message = %q", pe.Message)
	}
	if res == nil || res.Status != http.StatusNotFound {
		t.Error("response should still be returned with the error")
	}
}

func TestConnection_TransportErrorIsNotWrapped(t *testing.T) {
	server := mock.NewServer()
	url := server.URL
	server.Close()

	c := NewConnection(url)
	_, err := c.Get(context.Background(), "status")
	if err == nil {
		t.Fatal("expected transport error")
	}
	var pe *ProtocolError
	if errors.As(err, &pe) {
		t.Error("transport failure must not be reported as a protocol error")
	}
}

func TestConnection_ContextCancelled(t *testing.T) {
	server := mock.NewServer()
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewConnection(server.URL)
	if _, err := c.Get(ctx, "status"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
