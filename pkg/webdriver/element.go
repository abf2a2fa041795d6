package webdriver

import (
	"context"
	"encoding/json"
	"regexp"
	"sort"
)

const (
	// DefaultFlickOffset is the flick distance in pixels.
	DefaultFlickOffset = 2000
	// DefaultFlickSpeed is the flick speed in pixels per second.
	DefaultFlickSpeed = 8000
)

// Keys servers are known to put element ids under. They are checked before
// scanning the rest of the object.
var knownElementKeys = []string{"element-6066-11e4-a52e-4f735466cecf", "ELEMENT"}

var elementIDPattern = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

// ExtractElementID returns the first UUID-shaped string value in raw.
// The protocol only promises the id is one of the object's own properties,
// so the key name is not trusted.
func ExtractElementID(raw map[string]interface{}) string {
	for _, key := range knownElementKeys {
		if s, ok := raw[key].(string); ok && elementIDPattern.MatchString(s) {
			return s
		}
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s, ok := raw[k].(string); ok && elementIDPattern.MatchString(s) {
			return s
		}
	}
	return ""
}

// Element is a handle on one remote UI element, valid while its session is.
type Element struct {
	id      string
	session *Session
}

// NewElement wraps a server-returned element object.
func NewElement(session *Session, raw map[string]interface{}) *Element {
	return &Element{
		id:      ExtractElementID(raw),
		session: session,
	}
}

// ID returns the element id.
func (e *Element) ID() string {
	return e.id
}

// Text returns the element's visible text.
func (e *Element) Text(ctx context.Context) (string, error) {
	res, err := e.get(ctx, "text")
	if err != nil {
		return "", err
	}
	text, _ := res.Value().(string)
	return text, nil
}

// Rect returns the element's bounds.
func (e *Element) Rect(ctx context.Context) (Rect, error) {
	res, err := e.get(ctx, "rect")
	if err != nil {
		return Rect{}, err
	}
	return rectFromValue(res.Value())
}

// IsDisplayed reports whether the element is visible.
func (e *Element) IsDisplayed(ctx context.Context) (bool, error) {
	return e.boolQuery(ctx, "displayed")
}

// IsEnabled reports whether the element is enabled.
func (e *Element) IsEnabled(ctx context.Context) (bool, error) {
	return e.boolQuery(ctx, "enabled")
}

// IsSelected reports whether the element is selected.
func (e *Element) IsSelected(ctx context.Context) (bool, error) {
	return e.boolQuery(ctx, "selected")
}

// Click clicks the element.
func (e *Element) Click(ctx context.Context) error {
	_, err := e.post(ctx, "click", nil)
	return err
}

// SetValue types text into the element. The server expects the text split
// into single characters.
func (e *Element) SetValue(ctx context.Context, text string) error {
	chars := make([]string, 0, len(text))
	for _, r := range text {
		chars = append(chars, string(r))
	}
	_, err := e.post(ctx, "value", map[string]interface{}{
		"value": chars,
	})
	return err
}

// Clear clears the element's text.
func (e *Element) Clear(ctx context.Context) error {
	_, err := e.post(ctx, "clear", nil)
	return err
}

// Flick performs a flick gesture starting on the element. Offsets are in
// pixels, speed in pixels per second.
func (e *Element) Flick(ctx context.Context, xoffset, yoffset, speed int) error {
	_, err := e.session.Post(ctx, "touch/flick", map[string]interface{}{
		"element": e.id,
		"xoffset": xoffset,
		"yoffset": yoffset,
		"speed":   speed,
	})
	return err
}

// FlickUp flicks up by offset pixels. Zero values select the defaults.
func (e *Element) FlickUp(ctx context.Context, offset, speed int) error {
	offset, speed = flickDefaults(offset, speed)
	return e.Flick(ctx, 0, -offset, speed)
}

// FlickDown flicks down by offset pixels. Zero values select the defaults.
func (e *Element) FlickDown(ctx context.Context, offset, speed int) error {
	offset, speed = flickDefaults(offset, speed)
	return e.Flick(ctx, 0, offset, speed)
}

// FlickLeft flicks left by offset pixels. Zero values select the defaults.
func (e *Element) FlickLeft(ctx context.Context, offset, speed int) error {
	offset, speed = flickDefaults(offset, speed)
	return e.Flick(ctx, -offset, 0, speed)
}

// FlickRight flicks right by offset pixels. Zero values select the defaults.
func (e *Element) FlickRight(ctx context.Context, offset, speed int) error {
	offset, speed = flickDefaults(offset, speed)
	return e.Flick(ctx, offset, 0, speed)
}

// MarshalJSON encodes the element the way the protocol embeds element
// references in request bodies.
func (e *Element) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"ELEMENT": e.id})
}

func (e *Element) String() string {
	data, _ := json.MarshalIndent(map[string]string{"ELEMENT": e.id}, "", "  ")
	return string(data)
}

func (e *Element) boolQuery(ctx context.Context, path string) (bool, error) {
	res, err := e.get(ctx, path)
	if err != nil {
		return false, err
	}
	v, _ := res.Value().(bool)
	return v, nil
}

func (e *Element) get(ctx context.Context, path string) (*Response, error) {
	return e.session.Get(ctx, e.path(path))
}

func (e *Element) post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return e.session.Post(ctx, e.path(path), body)
}

func (e *Element) path(path string) string {
	return "element/" + e.id + "/" + path
}

func flickDefaults(offset, speed int) (int, int) {
	if offset == 0 {
		offset = DefaultFlickOffset
	}
	if speed == 0 {
		speed = DefaultFlickSpeed
	}
	return offset, speed
}
