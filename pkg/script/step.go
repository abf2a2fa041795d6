package script

import "fmt"

// StepType represents the type of step.
type StepType string

// Step type constants.
const (
	// Finding
	StepElements            StepType = "elements"
	StepElementsByXpath     StepType = "elementsByXpath"
	StepElementsByID        StepType = "elementsById"
	StepElementsByClassName StepType = "elementsByClassName"
	StepTextViews           StepType = "textViews"
	StepTextView            StepType = "textView"
	StepTextInputs          StepType = "textInputs"
	StepTextInput           StepType = "textInput"
	StepButtons             StepType = "buttons"
	StepButton              StepType = "button"
	StepViewsByID           StepType = "viewsById"
	StepViewByID            StepType = "viewById"
	StepTexts               StepType = "texts"
	StepAt                  StepType = "at"
	StepReverseAt           StepType = "reverseAt"

	// Element actions
	StepClick      StepType = "click"
	StepSetValue   StepType = "setValue"
	StepClear      StepType = "clear"
	StepText       StepType = "text"
	StepRect       StepType = "rect"
	StepFlick      StepType = "flick"
	StepFlickUp    StepType = "flickUp"
	StepFlickDown  StepType = "flickDown"
	StepFlickLeft  StepType = "flickLeft"
	StepFlickRight StepType = "flickRight"

	// Assertions and waits
	StepIsDisplayed    StepType = "isDisplayed"
	StepWaitDisplayed  StepType = "waitDisplayed"
	StepIsEnabled      StepType = "isEnabled"
	StepWaitEnabled    StepType = "waitEnabled"
	StepIsSelected     StepType = "isSelected"
	StepWaitSelected   StepType = "waitSelected"
	StepIsNotDisplayed StepType = "isNotDisplayed"
	StepWaitStop       StepType = "waitStop"

	// Session
	StepSleep                  StepType = "sleep"
	StepWindowRect             StepType = "windowRect"
	StepResetApp               StepType = "resetApp"
	StepHideKeyboard           StepType = "hideKeyboard"
	StepSetImplicitWaitTimeout StepType = "setImplicitWaitTimeout"

	// Scripting
	StepEvalScript StepType = "evalScript"
)

// Step is the interface for all script steps.
type Step interface {
	Type() StepType
	Label() string
	SaveAs() string
	Describe() string
}

// BaseStep contains common fields for all steps.
type BaseStep struct {
	StepType  StepType `yaml:"-"`
	StepLabel string   `yaml:"label"`
	SaveName  string   `yaml:"saveAs"` // JS variable receiving the step's value
}

// Type returns the step type.
func (b *BaseStep) Type() StepType { return b.StepType }

// Label returns the step label.
func (b *BaseStep) Label() string { return b.StepLabel }

// SaveAs returns the variable name the step's value is stored under.
func (b *BaseStep) SaveAs() string { return b.SaveName }

// Describe returns a human-readable description.
func (b *BaseStep) Describe() string {
	if b.StepLabel != "" {
		return b.StepLabel
	}
	return string(b.StepType)
}

// ============================================
// Finding Steps
// ============================================

// ElementsStep finds elements with an explicit strategy. For the
// elementsBy* shorthands Using is implied by the step type.
type ElementsStep struct {
	BaseStep `yaml:",inline"`
	Using    string `yaml:"using"`
	Selector string `yaml:"selector"`
}

// Describe returns a human-readable description.
func (s *ElementsStep) Describe() string {
	if s.StepLabel != "" {
		return s.StepLabel
	}
	return fmt.Sprintf("%s %q", s.StepType, s.Selector)
}

// WidgetStep finds Android widgets of one class, optionally by text.
type WidgetStep struct {
	BaseStep `yaml:",inline"`
	Text     string `yaml:"text"`
}

// Describe returns a human-readable description.
func (s *WidgetStep) Describe() string {
	if s.StepLabel != "" || s.Text == "" {
		return s.BaseStep.Describe()
	}
	return fmt.Sprintf("%s %q", s.StepType, s.Text)
}

// ViewsByIDStep finds views by resource id within the app package.
type ViewsByIDStep struct {
	BaseStep `yaml:",inline"`
	ID       string `yaml:"id"`
}

// TextsStep collects the text of every TextView.
type TextsStep struct {
	BaseStep `yaml:",inline"`
}

// IndexStep selects an element of the last find (at, reverseAt).
type IndexStep struct {
	BaseStep `yaml:",inline"`
	Index    int `yaml:"index"`
}

// ============================================
// Element Action Steps
// ============================================

// ActionStep is an element or session command without arguments (click,
// clear, text, rect, isDisplayed, windowRect, resetApp, ...).
type ActionStep struct {
	BaseStep `yaml:",inline"`
}

// SetValueStep types text into the current element.
type SetValueStep struct {
	BaseStep `yaml:",inline"`
	Text     string `yaml:"text"`
}

// FlickStep flicks the current element by explicit offsets.
type FlickStep struct {
	BaseStep `yaml:",inline"`
	XOffset  int `yaml:"xoffset"`
	YOffset  int `yaml:"yoffset"`
	Speed    int `yaml:"speed"`
}

// DirectionalFlickStep flicks up, down, left or right. Zero offset or speed
// selects the default.
type DirectionalFlickStep struct {
	BaseStep `yaml:",inline"`
	Offset   int `yaml:"offset"`
	Speed    int `yaml:"speed"`
}

// ============================================
// Wait Steps
// ============================================

// WaitStep polls a condition on the current element (waitDisplayed,
// waitEnabled, waitSelected, waitStop). Zero timeout means the implicit wait.
type WaitStep struct {
	BaseStep  `yaml:",inline"`
	TimeoutMs int `yaml:"timeout"`
}

// ============================================
// Session Steps
// ============================================

// SleepStep pauses the chain.
type SleepStep struct {
	BaseStep   `yaml:",inline"`
	DurationMs int `yaml:"ms"`
}

// SetImplicitWaitStep changes the default wait timeout.
type SetImplicitWaitStep struct {
	BaseStep  `yaml:",inline"`
	TimeoutMs int `yaml:"ms"`
}

// ============================================
// Scripting Steps
// ============================================

// EvalScriptStep evaluates JavaScript; its value is the script's result.
type EvalScriptStep struct {
	BaseStep `yaml:",inline"`
	Script   string `yaml:"script"`
}
