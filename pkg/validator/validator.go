// Package validator checks scripts before execution. It parses every file
// up front and reports all problems at once instead of stopping at the
// first one.
package validator

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/devicelab-dev/fastest-runner/pkg/config"
	"github.com/devicelab-dev/fastest-runner/pkg/script"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	File    string
	Step    int // 1-based; 0 when the error is not about a step
	Message string
}

func (e *ValidationError) Error() string {
	if e.Step > 0 {
		return fmt.Sprintf("%s: step %d: %s", e.File, e.Step, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Result contains the validation result.
type Result struct {
	// Scripts that parsed, in execution order. Scripts with errors are
	// included too so callers can still count them.
	Scripts []*script.Script
	// Errors contains all validation errors found.
	Errors []error
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator validates script files against a base configuration.
type Validator struct {
	base *config.Config
}

// New creates a new Validator. Each script's header is merged over base
// before its configuration is checked.
func New(base *config.Config) *Validator {
	if base == nil {
		base = config.Defaults()
	}
	return &Validator{base: base}
}

// Validate validates files and directories in order.
func (v *Validator) Validate(paths ...string) *Result {
	result := &Result{}
	for _, path := range paths {
		files, err := collectScriptFiles(path)
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{File: path, Message: err.Error()})
			continue
		}
		for _, file := range files {
			v.validateFile(file, result)
		}
	}
	if len(result.Scripts) == 0 && result.IsValid() {
		result.Errors = append(result.Errors, fmt.Errorf("no scripts found in %v", paths))
	}
	return result
}

// collectScriptFiles returns path itself, or every script below it when it
// is a directory.
func collectScriptFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && script.IsScriptFile(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

func (v *Validator) validateFile(file string, result *Result) {
	s, err := script.ParseFile(file)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{File: file, Message: fmt.Sprintf("parse error: %v", err)})
		return
	}
	result.Scripts = append(result.Scripts, s)

	cfg := v.base.Merge(&s.Config)
	if err := cfg.Validate(); err != nil {
		result.Errors = append(result.Errors, &ValidationError{File: file, Message: err.Error()})
	}
	for _, err := range CheckSteps(s, cfg) {
		result.Errors = append(result.Errors, err)
	}
}

var identPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// CheckSteps reports steps that are certain to fail at run time: element
// steps with no find before them, viewsById without a package name, and
// saveAs names that are not JS identifiers.
func CheckSteps(s *script.Script, cfg *config.Config) []error {
	var errs []error
	report := func(i int, format string, args ...interface{}) {
		errs = append(errs, &ValidationError{File: s.SourcePath, Step: i + 1, Message: fmt.Sprintf(format, args...)})
	}

	found := false
	for i, step := range s.Steps {
		t := step.Type()
		switch {
		case isFind(t):
			found = true
		case needsElement(t) && !found:
			report(i, "%s needs an element; add a find step (elements, button, textView, ...) before it", t)
		}
		if (t == script.StepViewsByID || t == script.StepViewByID) && cfg.PackageName == "" {
			report(i, "%s needs packageName", t)
		}
		if name := step.SaveAs(); name != "" && !identPattern.MatchString(name) {
			report(i, "saveAs %q is not a valid variable name", name)
		}
	}
	return errs
}

func isFind(t script.StepType) bool {
	switch t {
	case script.StepElements, script.StepElementsByXpath, script.StepElementsByID, script.StepElementsByClassName,
		script.StepTextViews, script.StepTextView, script.StepTextInputs, script.StepTextInput,
		script.StepButtons, script.StepButton, script.StepViewsByID, script.StepViewByID, script.StepTexts:
		return true
	}
	return false
}

func needsElement(t script.StepType) bool {
	switch t {
	case script.StepClick, script.StepSetValue, script.StepClear, script.StepText, script.StepRect,
		script.StepFlick, script.StepFlickUp, script.StepFlickDown, script.StepFlickLeft, script.StepFlickRight,
		script.StepIsDisplayed, script.StepWaitDisplayed, script.StepIsEnabled, script.StepWaitEnabled,
		script.StepIsSelected, script.StepWaitSelected, script.StepWaitStop:
		return true
	}
	return false
}
