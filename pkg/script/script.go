// Package script parses YAML automation scripts: an optional configuration
// document, a "---" separator, then a list of steps.
package script

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/fastest-runner/pkg/config"
)

// Script is a parsed script file.
type Script struct {
	SourcePath string        // Path to the source file
	Name       string        // From the header's name key, else the file name
	Config     config.Config // Header document; zero when absent
	Steps      []Step
}

// ParseError represents a parsing error with location info.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ParseFile parses a single script file.
func ParseFile(path string) (*Script, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is user-provided script file
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data, path)
}

// Parse parses script YAML content.
func Parse(data []byte, sourcePath string) (*Script, error) {
	parts := splitYAMLDocuments(string(data))

	s := &Script{
		SourcePath: sourcePath,
		Name:       strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath)),
	}

	switch len(parts) {
	case 0:
		return nil, &ParseError{Path: sourcePath, Line: 1, Message: "empty script file"}
	case 1:
		if err := parseSteps(parts[0], s); err != nil {
			return nil, err
		}
	case 2:
		if err := parseHeader(parts[0], s); err != nil {
			return nil, err
		}
		if err := parseSteps(parts[1], s); err != nil {
			return nil, err
		}
	default:
		return nil, &ParseError{Path: sourcePath, Message: "expected a header and one step list, found more documents"}
	}

	return s, nil
}

// ParseDirectory parses every script in dir, skipping fastest.yaml config
// files. Scripts are returned in path order.
func ParseDirectory(dir string) ([]*Script, error) {
	var paths []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !IsScriptFile(path) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scripts := make([]*Script, 0, len(paths))
	for _, path := range paths {
		s, err := ParseFile(path)
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, s)
	}
	return scripts, nil
}

// IsScriptFile reports whether path looks like a script rather than a
// config file.
func IsScriptFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return false
	}
	base := strings.ToLower(filepath.Base(path))
	return base != "fastest.yaml" && base != "fastest.yml"
}

func splitYAMLDocuments(content string) []string {
	var parts []string
	var current strings.Builder
	inMultiline := false
	multilineIndent := 0

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		// A "---" inside a block scalar is content, not a separator.
		if !inMultiline {
			if strings.HasSuffix(trimmed, "|") || strings.HasSuffix(trimmed, ">") ||
				strings.HasSuffix(trimmed, "|-") || strings.HasSuffix(trimmed, ">-") {
				inMultiline = true
				if i+1 < len(lines) {
					next := lines[i+1]
					multilineIndent = len(next) - len(strings.TrimLeft(next, " \t"))
				}
			}
		} else {
			indent := len(line) - len(strings.TrimLeft(line, " \t"))
			if trimmed != "" && indent < multilineIndent {
				inMultiline = false
			}
		}

		if !inMultiline && trimmed == "---" && strings.TrimLeft(line, " \t") == "---" {
			if strings.TrimSpace(current.String()) != "" {
				parts = append(parts, current.String())
			}
			current.Reset()
		} else {
			current.WriteString(line)
			current.WriteString("\n")
		}
	}

	if strings.TrimSpace(current.String()) != "" {
		parts = append(parts, current.String())
	}

	return parts
}

func parseHeader(content string, s *Script) error {
	cfg, err := config.Parse([]byte(content))
	if err != nil {
		return &ParseError{Path: s.SourcePath, Message: fmt.Sprintf("invalid config: %v", err)}
	}
	var named struct {
		Name string `yaml:"name"`
	}
	if err := yaml.Unmarshal([]byte(content), &named); err == nil && named.Name != "" {
		s.Name = named.Name
	}
	s.Config = *cfg
	return nil
}

func parseSteps(content string, s *Script) error {
	var rawSteps []yaml.Node
	if err := yaml.Unmarshal([]byte(content), &rawSteps); err != nil {
		return &ParseError{
			Path:    s.SourcePath,
			Message: fmt.Sprintf("invalid steps: %v", err),
		}
	}

	for _, node := range rawSteps {
		step, err := parseStep(&node, s.SourcePath)
		if err != nil {
			return err
		}
		s.Steps = append(s.Steps, step)
	}

	return nil
}

func parseStep(node *yaml.Node, sourcePath string) (Step, error) {
	// "- click" (no colon, no params)
	if node.Kind == yaml.ScalarNode {
		if !isStepType(node.Value) {
			return nil, &ParseError{
				Path:    sourcePath,
				Line:    node.Line,
				Message: fmt.Sprintf("unknown step type: %s", node.Value),
			}
		}
		return decodeStep(StepType(node.Value), &yaml.Node{Kind: yaml.MappingNode, Line: node.Line}, sourcePath)
	}

	if node.Kind != yaml.MappingNode {
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    node.Line,
			Message: "step must be a mapping or command name",
		}
	}

	stepType, valueNode := extractStepType(node)
	if stepType == "" || valueNode == nil {
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    node.Line,
			Message: "unknown step type",
		}
	}

	return decodeStep(StepType(stepType), valueNode, sourcePath)
}

func extractStepType(node *yaml.Node) (string, *yaml.Node) {
	for i := 0; i < len(node.Content)-1; i += 2 {
		key := node.Content[i].Value
		if isStepType(key) {
			return key, node.Content[i+1]
		}
	}
	return "", nil
}

func isStepType(key string) bool {
	switch StepType(key) {
	case StepElements, StepElementsByXpath, StepElementsByID, StepElementsByClassName,
		StepTextViews, StepTextView, StepTextInputs, StepTextInput, StepButtons, StepButton,
		StepViewsByID, StepViewByID, StepTexts, StepAt, StepReverseAt,
		StepClick, StepSetValue, StepClear, StepText, StepRect,
		StepFlick, StepFlickUp, StepFlickDown, StepFlickLeft, StepFlickRight,
		StepIsDisplayed, StepWaitDisplayed, StepIsEnabled, StepWaitEnabled,
		StepIsSelected, StepWaitSelected, StepIsNotDisplayed, StepWaitStop,
		StepSleep, StepWindowRect, StepResetApp, StepHideKeyboard, StepSetImplicitWaitTimeout,
		StepEvalScript:
		return true
	}
	return false
}

type typedStep interface {
	Step
	setType(StepType)
}

func (b *BaseStep) setType(t StepType) { b.StepType = t }

//nolint:gocyclo
func decodeStep(stepType StepType, valueNode *yaml.Node, sourcePath string) (Step, error) {
	var (
		step   typedStep
		scalar func(*yaml.Node) error
		check  func() string
	)

	switch stepType {
	case StepElements:
		s := &ElementsStep{}
		step = s
		check = func() string {
			if s.Using == "" || s.Selector == "" {
				return "elements requires using and selector"
			}
			return ""
		}

	case StepElementsByXpath, StepElementsByID, StepElementsByClassName:
		s := &ElementsStep{}
		step = s
		scalar = func(n *yaml.Node) error { s.Selector = n.Value; return nil }
		check = func() string {
			if s.Selector == "" {
				return fmt.Sprintf("%s requires a selector", stepType)
			}
			return ""
		}

	case StepTextViews, StepTextView, StepTextInputs, StepTextInput, StepButtons, StepButton:
		s := &WidgetStep{}
		step = s
		scalar = func(n *yaml.Node) error { s.Text = n.Value; return nil }

	case StepViewsByID, StepViewByID:
		s := &ViewsByIDStep{}
		step = s
		scalar = func(n *yaml.Node) error { s.ID = n.Value; return nil }
		check = func() string {
			if s.ID == "" {
				return fmt.Sprintf("%s requires an id", stepType)
			}
			return ""
		}

	case StepTexts:
		step = &TextsStep{}

	case StepAt, StepReverseAt:
		s := &IndexStep{}
		step = s
		scalar = func(n *yaml.Node) error { return n.Decode(&s.Index) }
		check = func() string {
			if s.Index < 0 {
				return fmt.Sprintf("%s index must not be negative", stepType)
			}
			return ""
		}

	case StepSetValue:
		s := &SetValueStep{}
		step = s
		scalar = func(n *yaml.Node) error { s.Text = n.Value; return nil }

	case StepFlick:
		step = &FlickStep{}

	case StepFlickUp, StepFlickDown, StepFlickLeft, StepFlickRight:
		s := &DirectionalFlickStep{}
		step = s
		check = func() string {
			if s.Offset < 0 || s.Speed < 0 {
				return fmt.Sprintf("%s offset and speed must not be negative", stepType)
			}
			return ""
		}

	case StepWaitDisplayed, StepWaitEnabled, StepWaitSelected, StepWaitStop:
		s := &WaitStep{}
		step = s
		scalar = func(n *yaml.Node) error { return n.Decode(&s.TimeoutMs) }
		check = nonNegative(stepType, &s.TimeoutMs)

	case StepSleep:
		s := &SleepStep{}
		step = s
		scalar = func(n *yaml.Node) error { return n.Decode(&s.DurationMs) }
		check = nonNegative(stepType, &s.DurationMs)

	case StepSetImplicitWaitTimeout:
		s := &SetImplicitWaitStep{}
		step = s
		scalar = func(n *yaml.Node) error { return n.Decode(&s.TimeoutMs) }
		check = nonNegative(stepType, &s.TimeoutMs)

	case StepEvalScript:
		s := &EvalScriptStep{}
		step = s
		scalar = func(n *yaml.Node) error { s.Script = n.Value; return nil }
		check = func() string {
			if strings.TrimSpace(s.Script) == "" {
				return "evalScript requires a script"
			}
			return ""
		}

	default:
		// click, clear, text, rect, is*, windowRect, resetApp, hideKeyboard
		step = &ActionStep{}
	}

	if err := decodeValue(valueNode, step, scalar); err != nil {
		return nil, wrapParseError(sourcePath, valueNode.Line, err)
	}
	step.setType(stepType)
	if check != nil {
		if msg := check(); msg != "" {
			return nil, &ParseError{Path: sourcePath, Line: valueNode.Line, Message: msg}
		}
	}
	return step, nil
}

// decodeValue decodes a step's value node. A null value leaves the step at
// its zero value; other scalars go to scalar.
func decodeValue(node *yaml.Node, step interface{}, scalar func(*yaml.Node) error) error {
	if node.Kind == yaml.ScalarNode {
		if node.Tag == "!!null" {
			return nil
		}
		if scalar == nil {
			return fmt.Errorf("step takes no value, got %q", node.Value)
		}
		return scalar(node)
	}
	return node.Decode(step)
}

func nonNegative(stepType StepType, v *int) func() string {
	return func() string {
		if *v < 0 {
			return fmt.Sprintf("%s must not be negative", stepType)
		}
		return ""
	}
}

func wrapParseError(path string, line int, err error) error {
	return &ParseError{
		Path:    path,
		Line:    line,
		Message: err.Error(),
	}
}
