package executor

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/devicelab-dev/fastest-runner/pkg/chain"
	"github.com/devicelab-dev/fastest-runner/pkg/jsengine"
	"github.com/devicelab-dev/fastest-runner/pkg/webdriver"
)

// envVarPattern matches ALL_CAPS identifiers that look like env variables
var envVarPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{2,}$`)

// ScriptEngine handles JavaScript execution and variable management for one
// script run.
type ScriptEngine struct {
	js *jsengine.Engine

	mu        sync.Mutex
	variables map[string]string
}

// NewScriptEngine creates a new script engine.
func NewScriptEngine() *ScriptEngine {
	return &ScriptEngine{
		js:        jsengine.New(),
		variables: make(map[string]string),
	}
}

// SetVariable sets a variable in both the $VAR table and the JS engine.
func (se *ScriptEngine) SetVariable(name string, value interface{}) {
	se.mu.Lock()
	se.variables[name] = fmt.Sprint(value)
	se.mu.Unlock()
	se.js.SetVariable(name, value)
}

// SetVariables sets multiple variables.
func (se *ScriptEngine) SetVariables(vars map[string]string) {
	for k, v := range vars {
		se.SetVariable(k, v)
	}
}

// ImportSystemEnv imports environment variables with upper-case names
// (THING, MY_VAR) into the script engine.
func (se *ScriptEngine) ImportSystemEnv() {
	for _, env := range os.Environ() {
		name, value, ok := strings.Cut(env, "=")
		if ok && envVarPattern.MatchString(name) {
			se.SetVariable(name, value)
		}
	}
}

// GetVariable returns a variable value.
func (se *ScriptEngine) GetVariable(name string) string {
	se.mu.Lock()
	defer se.mu.Unlock()
	return se.variables[name]
}

// SetPackageName exposes the app package to scripts.
func (se *ScriptEngine) SetPackageName(name string) {
	se.js.SetPackageName(name)
}

// GetOutput returns the JS output variables.
func (se *ScriptEngine) GetOutput() map[string]interface{} {
	return se.js.GetOutput()
}

// SyncOutputToVariables copies JS output back to variables.
func (se *ScriptEngine) SyncOutputToVariables() {
	for k, v := range se.js.GetOutput() {
		se.SetVariable(k, v)
	}
}

// ExpandVariables expands ${expr} and $VAR syntax in text.
func (se *ScriptEngine) ExpandVariables(text string) string {
	// First pass: JS engine for ${expression} syntax
	if jsengine.HasExpressions(text) {
		if result, err := se.js.ExpandVariables(text); err == nil {
			text = result
		}
	}

	return se.expandDollarVars(text)
}

// Lazy returns text as a step argument. Text with variable references is
// expanded when the step runs, so it sees values saved by earlier steps.
func (se *ScriptEngine) Lazy(text string) chain.Arg[string] {
	if !strings.Contains(text, "$") {
		return chain.V(text)
	}
	return chain.F(func() string {
		return se.ExpandVariables(text)
	})
}

// Eval runs an evalScript body. lastValue is exposed as fastest.lastValue;
// values the script puts on output become variables.
func (se *ScriptEngine) Eval(script string, lastValue interface{}) (interface{}, error) {
	se.js.SetLastValue(jsValue(lastValue))
	result, err := se.js.Eval(extractJS(script))
	if err != nil {
		return nil, err
	}
	se.SyncOutputToVariables()
	return result, nil
}

// extractJS extracts JavaScript from a ${...} wrapper if present.
func extractJS(script string) string {
	script = strings.TrimSpace(script)
	if strings.HasPrefix(script, "${") && strings.HasSuffix(script, "}") {
		return script[2 : len(script)-1]
	}
	return script
}

// expandDollarVars expands $VAR syntax (without braces) using stored variables.
func (se *ScriptEngine) expandDollarVars(text string) string {
	if !strings.Contains(text, "$") {
		return text
	}

	se.mu.Lock()
	defer se.mu.Unlock()

	// Sort by length (longest first) to avoid partial matches
	names := make([]string, 0, len(se.variables))
	for name := range se.variables {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return len(names[i]) > len(names[j])
	})

	for _, name := range names {
		text = expandDollarVar(text, name, se.variables[name])
	}
	return text
}

// expandDollarVar replaces $VAR with value, checking word boundaries.
func expandDollarVar(text, name, value string) string {
	pattern := "$" + name
	idx := 0
	for {
		pos := strings.Index(text[idx:], pattern)
		if pos == -1 {
			break
		}
		pos += idx

		// Followed by an identifier character: a different variable
		endPos := pos + len(pattern)
		if endPos < len(text) {
			next := text[endPos]
			if (next >= 'a' && next <= 'z') || (next >= 'A' && next <= 'Z') ||
				(next >= '0' && next <= '9') || next == '_' {
				idx = endPos
				continue
			}
		}

		text = text[:pos] + value + text[endPos:]
		idx = pos + len(value)
	}
	return text
}

// jsValue converts a chain value into something scripts can read.
func jsValue(v interface{}) interface{} {
	switch v := v.(type) {
	case webdriver.Rect:
		return map[string]interface{}{"x": v.X, "y": v.Y, "width": v.Width, "height": v.Height}
	case []*webdriver.Element:
		ids := make([]string, len(v))
		for i, el := range v {
			ids[i] = el.ID()
		}
		return ids
	default:
		return v
	}
}
