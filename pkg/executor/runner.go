// Package executor runs parsed scripts against an automation server, one
// session per script.
package executor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/fastest-runner/pkg/config"
	"github.com/devicelab-dev/fastest-runner/pkg/core"
	"github.com/devicelab-dev/fastest-runner/pkg/logger"
	"github.com/devicelab-dev/fastest-runner/pkg/script"
)

// RunnerConfig configures the script runner.
type RunnerConfig struct {
	// Base configuration; each script's header document overrides it.
	Config *config.Config

	StopOnFail bool // Skip remaining scripts after the first failure

	// Live progress callbacks
	OnScriptStart  func(idx, total int, name, file string)
	OnStepComplete func(step core.StepResult)
	OnScriptEnd    func(result *core.RunResult)
}

// BatchResult contains the outcome of running several scripts.
type BatchResult struct {
	Status   core.StepStatus // StatusPassed or StatusFailed
	Total    int
	Passed   int
	Failed   int
	Skipped  int
	Duration time.Duration
	Results  []*core.RunResult
}

// Runner runs scripts sequentially.
type Runner struct {
	config RunnerConfig
}

// New creates a new Runner.
func New(cfg RunnerConfig) *Runner {
	if cfg.Config == nil {
		cfg.Config = config.Defaults()
	}
	return &Runner{config: cfg}
}

// Run executes all scripts. A script whose configuration is invalid is
// reported as failed without contacting the server.
func (r *Runner) Run(ctx context.Context, scripts []*script.Script) *BatchResult {
	start := time.Now()
	batch := &BatchResult{
		Status:  core.StatusPassed,
		Total:   len(scripts),
		Results: make([]*core.RunResult, len(scripts)),
	}

	stop := false
	for i, s := range scripts {
		if stop || ctx.Err() != nil {
			reason := "run cancelled"
			if stop {
				reason = "skipped after earlier failure"
			}
			batch.Results[i] = skippedResult(s, reason)
			batch.Skipped++
			continue
		}

		if r.config.OnScriptStart != nil {
			r.config.OnScriptStart(i, len(scripts), s.Name, s.SourcePath)
		}

		result := r.runOne(ctx, s)
		batch.Results[i] = result

		if r.config.OnStepComplete != nil {
			for _, step := range result.Steps {
				r.config.OnStepComplete(step)
			}
		}
		if r.config.OnScriptEnd != nil {
			r.config.OnScriptEnd(result)
		}

		if result.Status == core.StatusPassed {
			batch.Passed++
		} else {
			batch.Failed++
			batch.Status = core.StatusFailed
			stop = r.config.StopOnFail
		}
	}

	batch.Duration = time.Since(start)
	logger.Info("run finished: %d passed, %d failed, %d skipped in %v",
		batch.Passed, batch.Failed, batch.Skipped, batch.Duration)
	return batch
}

func (r *Runner) runOne(ctx context.Context, s *script.Script) *core.RunResult {
	cfg := r.config.Config.Merge(&s.Config)
	if err := cfg.Validate(); err != nil {
		logger.Error("script %s: %v", s.Name, err)
		result := skippedResult(s, err.Error())
		result.Status = core.StatusFailed
		return result
	}
	return newScriptRunner(cfg, s).run(ctx)
}

// Run executes one script with cfg (merged with the script's own header)
// and returns its result. The error is non-nil only when the configuration
// is invalid; script failures are reported in the result.
func Run(ctx context.Context, cfg *config.Config, s *script.Script) (*core.RunResult, error) {
	if cfg == nil {
		cfg = config.Defaults()
	}
	merged := cfg.Merge(&s.Config)
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return newScriptRunner(merged, s).run(ctx), nil
}

func skippedResult(s *script.Script, reason string) *core.RunResult {
	steps := make([]core.StepResult, len(s.Steps))
	for i, step := range s.Steps {
		steps[i] = core.StepResult{
			Index:   i,
			Command: string(step.Type()),
			Label:   step.Label(),
			Status:  core.StatusSkipped,
		}
	}
	return &core.RunResult{
		ID:        uuid.NewString(),
		Name:      s.Name,
		FilePath:  s.SourcePath,
		Status:    core.StatusSkipped,
		StartTime: time.Now(),
		Steps:     steps,
		Error:     reason,
	}
}
