package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/devicelab-dev/fastest-runner/pkg/core"
	"github.com/devicelab-dev/fastest-runner/pkg/webdriver"
)

// Selector strategies understood by Appium.
const (
	UsingXpath     = "xpath"
	UsingID        = "id"
	UsingClassName = "class name"
)

// SetImplicitWaitTimeout changes the default wait timeout for later polls
// and sends it to the server.
func (t *Tester) SetImplicitWaitTimeout(timeout Arg[time.Duration]) *Tester {
	return t.then("setImplicitWaitTimeout", func(ctx context.Context, _ interface{}) (interface{}, error) {
		t.timeout = timeout.Resolve()
		return nil, t.session.SetImplicitWaitTimeout(ctx, t.timeout.Milliseconds())
	})
}

// At selects the index-th element of the last find.
func (t *Tester) At(index Arg[int]) *Tester {
	return t.then("at", func(context.Context, interface{}) (interface{}, error) {
		t.index = index.Resolve()
		return nil, nil
	})
}

// ReverseAt selects the index-th element counting from the end of the last
// find: 0 is the last element.
func (t *Tester) ReverseAt(index Arg[int]) *Tester {
	return t.then("reverseAt", func(context.Context, interface{}) (interface{}, error) {
		t.index = len(t.elements) - index.Resolve() - 1
		return nil, nil
	})
}

// Elements finds elements and makes the first one current. The step's value
// is the []*webdriver.Element found.
func (t *Tester) Elements(using, selector Arg[string]) *Tester {
	return t.then("elements", func(ctx context.Context, _ interface{}) (interface{}, error) {
		u, sel := using.Resolve(), selector.Resolve()
		elements, err := t.session.Elements(ctx, u, sel)
		if err != nil {
			return nil, err
		}
		t.elements = elements
		t.index = 0
		t.selector = sel
		return elements, nil
	})
}

// ElementsByXpath finds elements by xpath.
func (t *Tester) ElementsByXpath(selector Arg[string]) *Tester {
	return t.Elements(V(UsingXpath), selector)
}

// ElementsByID finds elements by resource id.
func (t *Tester) ElementsByID(selector Arg[string]) *Tester {
	return t.Elements(V(UsingID), selector)
}

// ElementsByClassName finds elements by class name.
func (t *Tester) ElementsByClassName(selector Arg[string]) *Tester {
	return t.Elements(V(UsingClassName), selector)
}

// Click clicks the current element.
func (t *Tester) Click() *Tester {
	return t.onElement("click", func(ctx context.Context, el *webdriver.Element) (interface{}, error) {
		return nil, el.Click(ctx)
	})
}

// SetValue types text into the current element.
func (t *Tester) SetValue(text Arg[string]) *Tester {
	return t.onElement("setValue", func(ctx context.Context, el *webdriver.Element) (interface{}, error) {
		return nil, el.SetValue(ctx, text.Resolve())
	})
}

// Clear clears the current element's text.
func (t *Tester) Clear() *Tester {
	return t.onElement("clear", func(ctx context.Context, el *webdriver.Element) (interface{}, error) {
		return nil, el.Clear(ctx)
	})
}

// Text yields the current element's text as a string.
func (t *Tester) Text() *Tester {
	return t.onElement("text", func(ctx context.Context, el *webdriver.Element) (interface{}, error) {
		return el.Text(ctx)
	})
}

// Rect yields the current element's bounds as a webdriver.Rect.
func (t *Tester) Rect() *Tester {
	return t.onElement("rect", func(ctx context.Context, el *webdriver.Element) (interface{}, error) {
		return el.Rect(ctx)
	})
}

// Flick flicks the current element by the given offsets and speed.
func (t *Tester) Flick(xoffset, yoffset, speed Arg[int]) *Tester {
	return t.onElement("flick", func(ctx context.Context, el *webdriver.Element) (interface{}, error) {
		return nil, el.Flick(ctx, xoffset.Resolve(), yoffset.Resolve(), speed.Resolve())
	})
}

// FlickUp flicks the current element up with the default offset and speed.
func (t *Tester) FlickUp() *Tester { return t.FlickUpBy(V(0), V(0)) }

// FlickDown flicks the current element down with the default offset and speed.
func (t *Tester) FlickDown() *Tester { return t.FlickDownBy(V(0), V(0)) }

// FlickLeft flicks the current element left with the default offset and speed.
func (t *Tester) FlickLeft() *Tester { return t.FlickLeftBy(V(0), V(0)) }

// FlickRight flicks the current element right with the default offset and speed.
func (t *Tester) FlickRight() *Tester { return t.FlickRightBy(V(0), V(0)) }

// FlickUpBy flicks up by offset pixels at speed px/s. Zero selects the default.
func (t *Tester) FlickUpBy(offset, speed Arg[int]) *Tester {
	return t.onElement("flickUp", func(ctx context.Context, el *webdriver.Element) (interface{}, error) {
		return nil, el.FlickUp(ctx, offset.Resolve(), speed.Resolve())
	})
}

// FlickDownBy flicks down by offset pixels at speed px/s. Zero selects the default.
func (t *Tester) FlickDownBy(offset, speed Arg[int]) *Tester {
	return t.onElement("flickDown", func(ctx context.Context, el *webdriver.Element) (interface{}, error) {
		return nil, el.FlickDown(ctx, offset.Resolve(), speed.Resolve())
	})
}

// FlickLeftBy flicks left by offset pixels at speed px/s. Zero selects the default.
func (t *Tester) FlickLeftBy(offset, speed Arg[int]) *Tester {
	return t.onElement("flickLeft", func(ctx context.Context, el *webdriver.Element) (interface{}, error) {
		return nil, el.FlickLeft(ctx, offset.Resolve(), speed.Resolve())
	})
}

// FlickRightBy flicks right by offset pixels at speed px/s. Zero selects the default.
func (t *Tester) FlickRightBy(offset, speed Arg[int]) *Tester {
	return t.onElement("flickRight", func(ctx context.Context, el *webdriver.Element) (interface{}, error) {
		return nil, el.FlickRight(ctx, offset.Resolve(), speed.Resolve())
	})
}

// Sleep pauses the chain.
func (t *Tester) Sleep(d Arg[time.Duration]) *Tester {
	return t.then("sleep", func(ctx context.Context, _ interface{}) (interface{}, error) {
		return nil, sleep(ctx, d.Resolve())
	})
}

// WindowRect yields the window bounds as a webdriver.Rect.
func (t *Tester) WindowRect() *Tester {
	return t.then("windowRect", func(ctx context.Context, _ interface{}) (interface{}, error) {
		return t.session.WindowRect(ctx)
	})
}

// ResetApp resets the app under test.
func (t *Tester) ResetApp() *Tester {
	return t.then("resetApp", func(ctx context.Context, _ interface{}) (interface{}, error) {
		return nil, t.session.ResetApp(ctx)
	})
}

// HideKeyboard hides the on-screen keyboard.
func (t *Tester) HideKeyboard() *Tester {
	return t.then("hideKeyboard", func(ctx context.Context, _ interface{}) (interface{}, error) {
		return nil, t.session.HideKeyboard(ctx)
	})
}

func (t *Tester) onElement(name string, fn func(ctx context.Context, el *webdriver.Element) (interface{}, error)) *Tester {
	return t.then(name, func(ctx context.Context, _ interface{}) (interface{}, error) {
		el, err := t.currentElement()
		if err != nil {
			return nil, err
		}
		return fn(ctx, el)
	})
}

// currentElement dereferences the current index into the last find's result.
func (t *Tester) currentElement() (*webdriver.Element, error) {
	if t.index < 0 || t.index >= len(t.elements) {
		return nil, t.elementError(core.ErrElementNotFound, `could not find element "%s"`)
	}
	return t.elements[t.index], nil
}

// elementError builds an error naming the current element. format has one
// verb for the "<selector>[<index>]" description.
func (t *Tester) elementError(base *core.ExecutionError, format string) *core.ExecutionError {
	desc := fmt.Sprintf("%s[%d]", t.selector, t.index)
	msg := fmt.Sprintf(format, desc)
	return base.WithMessage(msg).WithDetails(map[string]interface{}{
		"selector": t.selector,
		"index":    t.index,
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
