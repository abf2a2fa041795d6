// Package mock provides a fake Appium server for tests: it records every
// request and answers from a queue of canned replies.
package mock

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/google/uuid"
)

// Request is one recorded request.
type Request struct {
	Method string
	Path   string
	Body   map[string]interface{}
}

// Reply is a canned response. A zero Status means 200.
type Reply struct {
	Status int
	Body   interface{}
}

// HandlerFunc answers a request dynamically. Returning false falls through
// to the reply queue.
type HandlerFunc func(req Request) (Reply, bool)

// Server is a recording fake automation server.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	requests []Request
	replies  []Reply
	handler  HandlerFunc
}

// NewServer starts a fake server. Callers must Close it.
func NewServer() *Server {
	s := &Server{}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// NewElementID returns a fresh element id in the shape servers hand out.
func NewElementID() string {
	return "element-" + uuid.NewString()
}

// ElementObject returns an element object as found in an elements reply.
func ElementObject(id string) map[string]interface{} {
	return map[string]interface{}{"element": id}
}

// Enqueue queues 200 replies with the given bodies.
func (s *Server) Enqueue(bodies ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range bodies {
		s.replies = append(s.replies, Reply{Body: b})
	}
}

// EnqueueReply queues a reply with an explicit status.
func (s *Server) EnqueueReply(r Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, r)
}

// SetHandler installs a dynamic handler consulted before the queue.
func (s *Server) SetHandler(fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = fn
}

// Requests returns a copy of the recorded requests.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Reset clears recorded requests, queued replies and the handler.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
	s.replies = nil
	s.handler = nil
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	req := Request{Method: r.Method, Path: r.URL.Path}
	if data, err := io.ReadAll(r.Body); err == nil && len(data) > 0 {
		_ = json.Unmarshal(data, &req.Body)
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	handler := s.handler
	s.mu.Unlock()

	reply, ok := Reply{}, false
	if handler != nil {
		reply, ok = handler(req)
	}
	if !ok {
		s.mu.Lock()
		if len(s.replies) > 0 {
			reply = s.replies[0]
			s.replies = s.replies[1:]
		} else {
			reply = Reply{Body: map[string]interface{}{"value": nil}}
		}
		s.mu.Unlock()
	}

	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(reply.Body)
}
