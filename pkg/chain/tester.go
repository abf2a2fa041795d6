// Package chain builds deferred pipelines of UI automation steps against an
// Appium session.
//
// Every fluent method appends a step and returns the Tester. Nothing runs
// until Init has created the session; from then on steps run one at a time,
// in the order they were appended, on a background goroutine. A failing step
// makes every following step skip until a Catch step handles the error.
// Wait blocks until the steps appended before the call have run and returns
// the value or error of the last of them.
//
//	t := chain.New(chain.Options{ServerURL: "http://127.0.0.1:4723"})
//	t.ElementsByXpath(chain.V(`//android.widget.Button[@text="OK"]`)).
//		WaitDisplayed().
//		Click().
//		Quit()
//	if err := t.Init(ctx); err != nil { ... }
//	_, err := t.Wait(ctx)
//
// A Tester drives one session from one goroutine of steps. Running two
// chains against the same session is not supported.
package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/devicelab-dev/fastest-runner/pkg/core"
	"github.com/devicelab-dev/fastest-runner/pkg/logger"
	"github.com/devicelab-dev/fastest-runner/pkg/webdriver"
)

const (
	// DefaultTimeout bounds every wait unless changed with
	// SetImplicitWaitTimeout or overridden per call.
	DefaultTimeout = 10 * time.Second

	// PollInterval is the constant delay between poll attempts.
	PollInterval = 50 * time.Millisecond

	// quitTimeout bounds session deletion once the chain's context is done.
	quitTimeout = 10 * time.Second
)

// ErrNotStarted is returned by Wait when Init has not been called.
var ErrNotStarted = errors.New("chain not started: call Init first")

// StepFunc is a continuation: it receives the previous step's value.
type StepFunc func(ctx context.Context, value interface{}) (interface{}, error)

// CatchFunc handles a failure; returning nil error resumes the chain.
type CatchFunc func(ctx context.Context, err error) (interface{}, error)

type outcome struct {
	value interface{}
	err   error
}

type step struct {
	index int
	name  string
	run   StepFunc
	catch CatchFunc
}

// Options configures a Tester.
type Options struct {
	ServerURL    string
	Capabilities map[string]interface{}

	// Session, when set, is used instead of creating one from ServerURL and
	// Capabilities.
	Session *webdriver.Session

	// ImplicitWait is the initial wait timeout. Zero means DefaultTimeout.
	ImplicitWait time.Duration
}

// Tester is a deferred execution chain bound to one session.
type Tester struct {
	session *webdriver.Session

	mu       sync.Mutex
	queue    []*step
	trace    []core.StepResult
	started  bool
	draining bool
	ctx      context.Context
	value    interface{}
	err      error

	// outcomes[i] is what step i settled on; steps settle in index order.
	outcomes []outcome
	progress chan struct{}

	// Only read and written by the running step.
	elements     []*webdriver.Element
	index        int
	selector     string
	timeout      time.Duration
	pollInterval time.Duration
}

// New creates an uninitialized chain.
func New(opts Options) *Tester {
	session := opts.Session
	if session == nil {
		session = webdriver.NewSession(webdriver.NewConnection(opts.ServerURL), opts.Capabilities)
	}
	timeout := opts.ImplicitWait
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Tester{
		session:      session,
		timeout:      timeout,
		pollInterval: PollInterval,
		ctx:          context.Background(),
		progress:     make(chan struct{}),
	}
}

// Session returns the underlying session.
func (t *Tester) Session() *webdriver.Session {
	return t.session
}

// Timeout returns the current implicit wait timeout. Call it from a step or
// after Wait has returned.
func (t *Tester) Timeout() time.Duration {
	return t.timeout
}

// Init creates the session and starts running queued steps. It must be
// called exactly once. If the session cannot be created, the error is
// returned here and becomes the chain's failure, so queued steps skip.
func (t *Tester) Init(ctx context.Context) error {
	_, err := t.session.Create(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()

	if err != nil {
		logger.Error("session create failed: %v", err)
		t.err = err
	} else {
		logger.Info("session %s created", t.session.ID())
	}
	t.ctx = ctx
	t.started = true
	t.kickLocked()
	return err
}

// Quit queues a step that destroys the session. Without a live session it
// does nothing. The delete is sent even after the chain's context is done.
// The chain should not be used afterwards.
func (t *Tester) Quit() *Tester {
	return t.then("quit", func(ctx context.Context, _ interface{}) (interface{}, error) {
		id := t.session.ID()
		if id == "" {
			logger.Debug("quit: no live session")
			return nil, nil
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), quitTimeout)
		defer cancel()
		if err := t.session.Destroy(ctx); err != nil {
			return nil, err
		}
		logger.Info("session %s destroyed", id)
		return nil, nil
	})
}

// Then appends a continuation receiving the previous step's value.
func (t *Tester) Then(fn StepFunc) *Tester {
	return t.then("then", fn)
}

// Catch appends a failure handler. It runs only when an earlier step failed;
// otherwise the previous value passes through.
func (t *Tester) Catch(fn CatchFunc) *Tester {
	return t.push(&step{name: "catch", catch: fn})
}

// Wait blocks until every step appended before the call has settled and
// returns the value or error of the last of them. Steps appended while
// waiting are not waited for. With no steps it returns the Init outcome.
func (t *Tester) Wait(ctx context.Context) (interface{}, error) {
	t.mu.Lock()
	target := len(t.trace)
	t.mu.Unlock()

	for {
		t.mu.Lock()
		if !t.started {
			t.mu.Unlock()
			return nil, ErrNotStarted
		}
		if target == 0 {
			value, err := t.value, t.err
			t.mu.Unlock()
			return value, err
		}
		if len(t.outcomes) >= target {
			o := t.outcomes[target-1]
			t.mu.Unlock()
			return o.value, o.err
		}
		progress := t.progress
		t.mu.Unlock()

		select {
		case <-progress:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Steps returns a snapshot of every step appended so far.
func (t *Tester) Steps() []core.StepResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]core.StepResult, len(t.trace))
	copy(out, t.trace)
	return out
}

// Len returns the number of steps appended so far.
func (t *Tester) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.trace)
}

func (t *Tester) then(name string, fn StepFunc) *Tester {
	return t.push(&step{name: name, run: fn})
}

func (t *Tester) push(s *step) *Tester {
	t.mu.Lock()
	defer t.mu.Unlock()

	s.index = len(t.trace)
	t.queue = append(t.queue, s)
	t.trace = append(t.trace, core.StepResult{
		Index:   s.index,
		Command: s.name,
		Status:  core.StatusPending,
	})
	t.kickLocked()
	return t
}

// kickLocked starts a drain goroutine if the gate is open and none is running.
func (t *Tester) kickLocked() {
	if !t.started || t.draining || len(t.queue) == 0 {
		return
	}
	t.draining = true
	go t.drain()
}

func (t *Tester) drain() {
	for {
		t.mu.Lock()
		if len(t.queue) == 0 {
			t.draining = false
			t.mu.Unlock()
			return
		}
		s := t.queue[0]
		t.queue = t.queue[1:]
		ctx, prev, prevErr := t.ctx, t.value, t.err
		t.trace[s.index].Status = core.StatusRunning
		t.mu.Unlock()

		start := time.Now()
		value, status, err := t.execute(ctx, s, prev, prevErr)
		elapsed := time.Since(start)

		t.mu.Lock()
		t.value, t.err = value, err
		r := &t.trace[s.index]
		r.Status = status
		r.Duration = elapsed
		if status == core.StatusFailed {
			r.Error = err.Error()
			r.Category = core.CategoryOf(err)
		}
		t.outcomes = append(t.outcomes, outcome{value: value, err: err})
		close(t.progress)
		t.progress = make(chan struct{})
		t.mu.Unlock()
	}
}

func (t *Tester) execute(ctx context.Context, s *step, prev interface{}, prevErr error) (interface{}, core.StepStatus, error) {
	if s.catch != nil {
		if prevErr == nil {
			return prev, core.StatusSkipped, nil
		}
		logger.Debug("step %d catch: handling %v", s.index, prevErr)
		value, err := t.guard(ctx, s, func(ctx context.Context) (interface{}, error) {
			return s.catch(ctx, prevErr)
		})
		if err != nil {
			return nil, core.StatusFailed, err
		}
		return value, core.StatusRecovered, nil
	}

	if prevErr != nil {
		return nil, core.StatusSkipped, prevErr
	}

	logger.Debug("step %d %s", s.index, s.name)
	value, err := t.guard(ctx, s, func(ctx context.Context) (interface{}, error) {
		return s.run(ctx, prev)
	})
	if err != nil {
		logger.Warn("step %d %s failed: %v", s.index, s.name, err)
		return nil, core.StatusFailed, err
	}
	return value, core.StatusPassed, nil
}

// guard turns a panic in a step, producer or handler into the step's error.
func (t *Tester) guard(ctx context.Context, s *step, fn func(ctx context.Context) (interface{}, error)) (value interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = fmt.Errorf("step %d %s panicked: %v", s.index, s.name, r)
		}
	}()
	return fn(ctx)
}
