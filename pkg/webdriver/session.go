package webdriver

import (
	"context"
	"fmt"

	"github.com/devicelab-dev/fastest-runner/pkg/core"
)

// Rect is a position and size in pixels.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Session is one server-side automation context. The id is empty until
// Create succeeds and is cleared again by Destroy. Session-scoped calls do
// not check the id: callers sequence Create first.
type Session struct {
	gateway      Gateway
	capabilities map[string]interface{}
	id           string
}

// NewSession creates an unstarted session that will send capabilities as
// desiredCapabilities on Create.
func NewSession(gateway Gateway, capabilities map[string]interface{}) *Session {
	if capabilities == nil {
		capabilities = map[string]interface{}{}
	}
	return &Session{
		gateway:      gateway,
		capabilities: capabilities,
	}
}

// ID returns the session id, or "" when no session is live.
func (s *Session) ID() string {
	return s.id
}

// Capabilities returns the capabilities sent on Create.
func (s *Session) Capabilities() map[string]interface{} {
	return s.capabilities
}

// Create starts the session and returns the server's reply body.
func (s *Session) Create(ctx context.Context) (map[string]interface{}, error) {
	res, err := s.gateway.Post(ctx, "session", map[string]interface{}{
		"desiredCapabilities": s.capabilities,
	})
	if err != nil {
		return nil, err
	}

	id, _ := res.Body["sessionId"].(string)
	if id == "" {
		// W3C servers nest it under value.
		if value, ok := res.Body["value"].(map[string]interface{}); ok {
			id, _ = value["sessionId"].(string)
		}
	}
	if id == "" {
		return nil, core.ErrNoSession
	}
	s.id = id
	return res.Body, nil
}

// Destroy deletes the session and clears the id.
func (s *Session) Destroy(ctx context.Context) error {
	if _, err := s.gateway.Delete(ctx, "session/"+s.id); err != nil {
		return err
	}
	s.id = ""
	return nil
}

// SetImplicitWaitTimeout sets the server-side implicit wait in milliseconds.
func (s *Session) SetImplicitWaitTimeout(ctx context.Context, ms int64) error {
	_, err := s.Post(ctx, "timeouts/implicit_wait", map[string]interface{}{
		"ms": ms,
	})
	return err
}

// WindowRect returns the window bounds.
func (s *Session) WindowRect(ctx context.Context) (Rect, error) {
	res, err := s.Get(ctx, "window/rect")
	if err != nil {
		return Rect{}, err
	}
	return rectFromValue(res.Value())
}

// Elements finds all elements matching selector using the given strategy
// ("xpath", "id", "class name"). The strategy is passed through unchecked.
func (s *Session) Elements(ctx context.Context, using, selector string) ([]*Element, error) {
	res, err := s.Post(ctx, "elements", map[string]interface{}{
		"using": using,
		"value": selector,
	})
	if err != nil {
		return nil, err
	}
	return s.wrapElements(res), nil
}

// ResetApp resets the app under test.
func (s *Session) ResetApp(ctx context.Context) error {
	_, err := s.Post(ctx, "appium/app/reset", nil)
	return err
}

// HideKeyboard hides the on-screen keyboard.
func (s *Session) HideKeyboard(ctx context.Context) error {
	_, err := s.Post(ctx, "appium/device/hide_keyboard", nil)
	return err
}

// Get issues a session-scoped GET.
func (s *Session) Get(ctx context.Context, path string) (*Response, error) {
	return s.gateway.Get(ctx, s.path(path))
}

// Post issues a session-scoped POST.
func (s *Session) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return s.gateway.Post(ctx, s.path(path), body)
}

func (s *Session) path(path string) string {
	return "session/" + s.id + "/" + path
}

func (s *Session) wrapElements(res *Response) []*Element {
	values, _ := res.Value().([]interface{})
	elements := make([]*Element, 0, len(values))
	for _, v := range values {
		if raw, ok := v.(map[string]interface{}); ok {
			elements = append(elements, NewElement(s, raw))
		}
	}
	return elements
}

func rectFromValue(v interface{}) (Rect, error) {
	value, ok := v.(map[string]interface{})
	if !ok {
		return Rect{}, fmt.Errorf("invalid rect response: %v", v)
	}
	xf, _ := value["x"].(float64)
	yf, _ := value["y"].(float64)
	wf, _ := value["width"].(float64)
	hf, _ := value["height"].(float64)
	return Rect{X: int(xf), Y: int(yf), Width: int(wf), Height: int(hf)}, nil
}
