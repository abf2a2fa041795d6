package executor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/fastest-runner/pkg/android"
	"github.com/devicelab-dev/fastest-runner/pkg/chain"
	"github.com/devicelab-dev/fastest-runner/pkg/config"
	"github.com/devicelab-dev/fastest-runner/pkg/core"
	"github.com/devicelab-dev/fastest-runner/pkg/logger"
	"github.com/devicelab-dev/fastest-runner/pkg/script"
	"github.com/devicelab-dev/fastest-runner/pkg/webdriver"
)

// span is the range of chain steps [first, end) one script step expanded to.
type span struct {
	step  script.Step
	first int
	end   int
}

// scriptRunner translates one script into a chain and runs it.
type scriptRunner struct {
	script *script.Script
	cfg    *config.Config
	tester *android.Tester
	engine *ScriptEngine
	spans  []span
}

func newScriptRunner(cfg *config.Config, s *script.Script) *scriptRunner {
	tester := android.New(android.Options{
		Options: chain.Options{
			ServerURL:    cfg.ServerURL,
			Capabilities: cfg.DesiredCapabilities(),
			ImplicitWait: cfg.ImplicitWait(),
		},
		PackageName: cfg.PackageName,
	})

	engine := NewScriptEngine()
	engine.ImportSystemEnv()
	if cfg.PackageName != "" {
		engine.SetVariable("PACKAGE_NAME", cfg.PackageName)
		engine.SetPackageName(cfg.PackageName)
	}
	engine.SetVariables(cfg.Env)

	return &scriptRunner{script: s, cfg: cfg, tester: tester, engine: engine}
}

func (r *scriptRunner) run(ctx context.Context) *core.RunResult {
	start := time.Now()
	result := &core.RunResult{
		ID:        uuid.NewString(),
		Name:      r.script.Name,
		FilePath:  r.script.SourcePath,
		Status:    core.StatusRunning,
		StartTime: start,
	}
	logger.Info("script %s: %d steps against %s", r.script.Name, len(r.script.Steps), r.cfg.ServerURL)

	if err := r.build(); err != nil {
		result.Status = core.StatusFailed
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result
	}

	// Teardown: remember the outcome, always quit, then re-raise.
	var (
		output  interface{}
		failure error
	)
	r.tester.
		Then(func(_ context.Context, v interface{}) (interface{}, error) {
			output = v
			return v, nil
		}).
		Catch(func(_ context.Context, err error) (interface{}, error) {
			failure = err
			return nil, nil
		}).
		Quit().
		Then(func(context.Context, interface{}) (interface{}, error) {
			return output, failure
		})

	initErr := r.tester.Init(ctx)
	if initErr != nil {
		logger.Error("script %s: could not start session: %v", r.script.Name, initErr)
	}
	_, err := r.tester.Wait(ctx)
	if ctx.Err() != nil {
		// Steps share ctx, so they unwind promptly once it is done.
		_, err = r.tester.Wait(context.Background())
		if err == nil {
			err = ctx.Err()
		}
	}
	if failure != nil {
		err = failure
	}
	if initErr != nil {
		err = startError(initErr)
	} else if errors.Is(err, context.DeadlineExceeded) {
		err = core.ErrWaitTimeout.WithMessage("script timed out").WithCause(err)
	}

	result.Steps = r.collect(r.tester.Steps())
	result.Duration = time.Since(start)
	result.Output = jsValue(output)
	if out := r.engine.GetOutput(); len(out) > 0 {
		result.ScriptOutput = out
	}
	if err != nil {
		result.Status = core.StatusFailed
		result.Error = err.Error()
		logger.Warn("script %s failed: %v", r.script.Name, err)
	} else {
		result.Status = core.StatusPassed
		logger.Info("script %s passed in %v", r.script.Name, result.Duration)
	}
	return result
}

// build appends every script step to the chain, recording which chain
// steps each one produced.
func (r *scriptRunner) build() error {
	for _, step := range r.script.Steps {
		first := r.tester.Len()
		if err := r.add(step); err != nil {
			return err
		}
		if name := step.SaveAs(); name != "" {
			r.tester.Then(func(_ context.Context, v interface{}) (interface{}, error) {
				r.engine.SetVariable(name, jsValue(v))
				return v, nil
			})
		}
		r.spans = append(r.spans, span{step: step, first: first, end: r.tester.Len()})
	}
	return nil
}

//nolint:gocyclo
func (r *scriptRunner) add(step script.Step) error {
	t, e := r.tester, r.engine

	switch s := step.(type) {
	case *script.ElementsStep:
		selector := e.Lazy(s.Selector)
		switch s.StepType {
		case script.StepElements:
			t.Elements(e.Lazy(s.Using), selector)
		case script.StepElementsByXpath:
			t.ElementsByXpath(selector)
		case script.StepElementsByID:
			t.ElementsByID(selector)
		case script.StepElementsByClassName:
			t.ElementsByClassName(selector)
		}

	case *script.WidgetStep:
		var text []chain.Arg[string]
		if s.Text != "" {
			text = append(text, e.Lazy(s.Text))
		}
		switch s.StepType {
		case script.StepTextViews, script.StepTextView:
			t.TextViews(text...)
		case script.StepTextInputs, script.StepTextInput:
			t.TextInputs(text...)
		case script.StepButtons, script.StepButton:
			t.Buttons(text...)
		}

	case *script.ViewsByIDStep:
		t.ViewsByID(e.Lazy(s.ID))

	case *script.TextsStep:
		t.Texts()

	case *script.IndexStep:
		if s.StepType == script.StepReverseAt {
			t.ReverseAt(chain.V(s.Index))
		} else {
			t.At(chain.V(s.Index))
		}

	case *script.SetValueStep:
		t.SetValue(e.Lazy(s.Text))

	case *script.FlickStep:
		speed := s.Speed
		if speed == 0 {
			speed = webdriver.DefaultFlickSpeed
		}
		t.Flick(chain.V(s.XOffset), chain.V(s.YOffset), chain.V(speed))

	case *script.DirectionalFlickStep:
		offset, speed := chain.V(s.Offset), chain.V(s.Speed)
		switch s.StepType {
		case script.StepFlickUp:
			t.FlickUpBy(offset, speed)
		case script.StepFlickDown:
			t.FlickDownBy(offset, speed)
		case script.StepFlickLeft:
			t.FlickLeftBy(offset, speed)
		case script.StepFlickRight:
			t.FlickRightBy(offset, speed)
		}

	case *script.WaitStep:
		timeout := millis(s.TimeoutMs)
		switch s.StepType {
		case script.StepWaitDisplayed:
			t.WaitDisplayed(timeout...)
		case script.StepWaitEnabled:
			t.WaitEnabled(timeout...)
		case script.StepWaitSelected:
			t.WaitSelected(timeout...)
		case script.StepWaitStop:
			t.WaitStop(timeout...)
		}

	case *script.SleepStep:
		t.Sleep(chain.V(time.Duration(s.DurationMs) * time.Millisecond))

	case *script.SetImplicitWaitStep:
		t.SetImplicitWaitTimeout(chain.V(time.Duration(s.TimeoutMs) * time.Millisecond))

	case *script.EvalScriptStep:
		body := s.Script
		t.Then(func(_ context.Context, v interface{}) (interface{}, error) {
			return e.Eval(body, v)
		})

	case *script.ActionStep:
		switch s.StepType {
		case script.StepClick:
			t.Click()
		case script.StepClear:
			t.Clear()
		case script.StepText:
			t.Text()
		case script.StepRect:
			t.Rect()
		case script.StepIsDisplayed:
			t.IsDisplayed()
		case script.StepIsEnabled:
			t.IsEnabled()
		case script.StepIsSelected:
			t.IsSelected()
		case script.StepIsNotDisplayed:
			t.IsNotDisplayed()
		case script.StepWindowRect:
			t.WindowRect()
		case script.StepResetApp:
			t.ResetApp()
		case script.StepHideKeyboard:
			t.HideKeyboard()
		default:
			return fmt.Errorf("unsupported step: %s", s.StepType)
		}

	default:
		return fmt.Errorf("unsupported step: %s", step.Type())
	}
	return nil
}

// collect folds the chain trace back into one result per script step: the
// first failing chain step decides a failure, otherwise any step that ran
// makes it passed, otherwise it was skipped.
func (r *scriptRunner) collect(trace []core.StepResult) []core.StepResult {
	results := make([]core.StepResult, len(r.spans))
	for i, sp := range r.spans {
		res := core.StepResult{
			Index:   i,
			Command: string(sp.step.Type()),
			Label:   sp.step.Label(),
			Status:  core.StatusSkipped,
		}
		ran := false
		for _, tr := range trace[sp.first:sp.end] {
			res.Duration += tr.Duration
			switch tr.Status {
			case core.StatusFailed:
				if res.Status != core.StatusFailed {
					res.Status = core.StatusFailed
					res.Error = tr.Error
					res.Category = tr.Category
				}
			case core.StatusPassed, core.StatusRecovered:
				ran = true
			}
		}
		if res.Status != core.StatusFailed && ran {
			res.Status = core.StatusPassed
		}
		results[i] = res
	}
	return results
}

// startError reports a session that could not be created because the server
// did not answer as ErrServerUnreachable. Server replies and cancellation
// pass through unchanged.
func startError(err error) error {
	var protocolErr *webdriver.ProtocolError
	if errors.As(err, &protocolErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return core.ErrServerUnreachable.WithCause(err)
	}
	return err
}

func millis(ms int) []chain.Arg[time.Duration] {
	if ms <= 0 {
		return nil
	}
	return []chain.Arg[time.Duration]{chain.V(time.Duration(ms) * time.Millisecond)}
}
