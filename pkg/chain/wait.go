package chain

import (
	"context"
	"time"

	"github.com/devicelab-dev/fastest-runner/pkg/core"
	"github.com/devicelab-dev/fastest-runner/pkg/webdriver"
)

// Poll calls op until it succeeds or timeout has elapsed since the first
// attempt, sleeping a constant PollInterval between attempts. A timeout of
// zero or less means the chain's current implicit wait, read once here.
// When time runs out the last failure is returned unchanged.
func (t *Tester) Poll(ctx context.Context, op func(ctx context.Context) (interface{}, error), timeout time.Duration) (interface{}, error) {
	if timeout <= 0 {
		timeout = t.timeout
	}
	start := time.Now()
	for {
		value, err := op(ctx)
		if err == nil {
			return value, nil
		}
		if time.Since(start) >= timeout {
			return nil, err
		}
		if sleep(ctx, t.pollInterval) != nil {
			return nil, err
		}
	}
}

// IsDisplayed fails unless the current element is displayed.
func (t *Tester) IsDisplayed() *Tester {
	return t.onElement("isDisplayed", t.assertDisplayed)
}

// WaitDisplayed polls until the current element is displayed. An optional
// timeout overrides the implicit wait.
func (t *Tester) WaitDisplayed(timeout ...Arg[time.Duration]) *Tester {
	return t.waitFor("waitDisplayed", t.assertDisplayed, timeout)
}

// IsEnabled fails unless the current element is enabled.
func (t *Tester) IsEnabled() *Tester {
	return t.onElement("isEnabled", t.assertEnabled)
}

// WaitEnabled polls until the current element is enabled.
func (t *Tester) WaitEnabled(timeout ...Arg[time.Duration]) *Tester {
	return t.waitFor("waitEnabled", t.assertEnabled, timeout)
}

// IsSelected fails unless the current element is selected.
func (t *Tester) IsSelected() *Tester {
	return t.onElement("isSelected", t.assertSelected)
}

// WaitSelected polls until the current element is selected.
func (t *Tester) WaitSelected(timeout ...Arg[time.Duration]) *Tester {
	return t.waitFor("waitSelected", t.assertSelected, timeout)
}

// IsNotDisplayed fails if the current element is displayed. An empty find
// result passes without asking the server. The check is not polled.
func (t *Tester) IsNotDisplayed() *Tester {
	return t.then("isNotDisplayed", func(ctx context.Context, _ interface{}) (interface{}, error) {
		if len(t.elements) == 0 {
			return true, nil
		}
		el, err := t.currentElement()
		if err != nil {
			return nil, err
		}
		displayed, err := el.IsDisplayed(ctx)
		if err != nil {
			return nil, err
		}
		if displayed {
			return nil, t.elementError(core.ErrDisplayed, `element "%s" is displayed`)
		}
		return true, nil
	})
}

// WaitStop polls the current element's bounds until two consecutive samples
// have the same position.
func (t *Tester) WaitStop(timeout ...Arg[time.Duration]) *Tester {
	return t.onElement("waitStop", func(ctx context.Context, el *webdriver.Element) (interface{}, error) {
		var prev *webdriver.Rect
		return t.Poll(ctx, func(ctx context.Context) (interface{}, error) {
			rect, err := el.Rect(ctx)
			if err != nil {
				return nil, err
			}
			if prev == nil || prev.X != rect.X || prev.Y != rect.Y {
				prev = &rect
				return nil, t.elementError(core.ErrStillMoving, `element "%s" did not stop moving`)
			}
			return rect, nil
		}, optional(timeout))
	})
}

// waitFor polls an assertion on the current element. The element is
// dereferenced once, before polling, so a bad index fails immediately.
func (t *Tester) waitFor(name string, assert func(context.Context, *webdriver.Element) (interface{}, error), timeout []Arg[time.Duration]) *Tester {
	return t.onElement(name, func(ctx context.Context, el *webdriver.Element) (interface{}, error) {
		return t.Poll(ctx, func(ctx context.Context) (interface{}, error) {
			return assert(ctx, el)
		}, optional(timeout))
	})
}

func (t *Tester) assertDisplayed(ctx context.Context, el *webdriver.Element) (interface{}, error) {
	return t.assert(ctx, el.IsDisplayed, core.ErrNotDisplayed, `element "%s" is not displayed`)
}

func (t *Tester) assertEnabled(ctx context.Context, el *webdriver.Element) (interface{}, error) {
	return t.assert(ctx, el.IsEnabled, core.ErrNotEnabled, `element "%s" is not enabled`)
}

func (t *Tester) assertSelected(ctx context.Context, el *webdriver.Element) (interface{}, error) {
	return t.assert(ctx, el.IsSelected, core.ErrNotSelected, `element "%s" is not selected`)
}

func (t *Tester) assert(ctx context.Context, query func(context.Context) (bool, error), base *core.ExecutionError, format string) (interface{}, error) {
	ok, err := query(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, t.elementError(base, format)
	}
	return true, nil
}
