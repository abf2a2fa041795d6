// Package android adds Android widget selectors to the automation chain.
package android

import (
	"context"
	"fmt"

	"github.com/devicelab-dev/fastest-runner/pkg/chain"
	"github.com/devicelab-dev/fastest-runner/pkg/webdriver"
)

// Widget classes.
const (
	ClassTextView = "android.widget.TextView"
	ClassEditText = "android.widget.EditText"
	ClassButton   = "android.widget.Button"
)

// Options configures an Android tester.
type Options struct {
	chain.Options

	// PackageName qualifies ids passed to ViewsByID.
	PackageName string
}

// Tester is a chain with Android selector shortcuts. Its own methods return
// *Tester; methods promoted from chain.Tester return *chain.Tester.
type Tester struct {
	*chain.Tester
	packageName string
}

// New creates an uninitialized Android tester.
func New(opts Options) *Tester {
	return &Tester{
		Tester:      chain.New(opts.Options),
		packageName: opts.PackageName,
	}
}

// PackageName returns the app package.
func (t *Tester) PackageName() string {
	return t.packageName
}

// Texts yields the text of every TextView on screen as []string.
func (t *Tester) Texts() *Tester {
	t.ElementsByClassName(chain.V(ClassTextView)).
		Then(func(ctx context.Context, value interface{}) (interface{}, error) {
			elements, _ := value.([]*webdriver.Element)
			texts := make([]string, 0, len(elements))
			for _, el := range elements {
				text, err := el.Text(ctx)
				if err != nil {
					return nil, err
				}
				texts = append(texts, text)
			}
			return texts, nil
		})
	return t
}

// TextViews finds TextViews, all of them or those showing text.
func (t *Tester) TextViews(text ...chain.Arg[string]) *Tester {
	return t.widgets(ClassTextView, text)
}

// TextView is an alias of TextViews.
func (t *Tester) TextView(text ...chain.Arg[string]) *Tester {
	return t.TextViews(text...)
}

// TextInputs finds EditTexts, all of them or those showing text.
func (t *Tester) TextInputs(text ...chain.Arg[string]) *Tester {
	return t.widgets(ClassEditText, text)
}

// TextInput is an alias of TextInputs.
func (t *Tester) TextInput(text ...chain.Arg[string]) *Tester {
	return t.TextInputs(text...)
}

// Buttons finds Buttons, all of them or those labelled text.
func (t *Tester) Buttons(text ...chain.Arg[string]) *Tester {
	return t.widgets(ClassButton, text)
}

// Button is an alias of Buttons.
func (t *Tester) Button(text ...chain.Arg[string]) *Tester {
	return t.Buttons(text...)
}

// ViewsByID finds views by resource id within the app package.
func (t *Tester) ViewsByID(id chain.Arg[string]) *Tester {
	t.ElementsByID(chain.Map(id, t.ResourceID))
	return t
}

// ViewByID is an alias of ViewsByID.
func (t *Tester) ViewByID(id chain.Arg[string]) *Tester {
	return t.ViewsByID(id)
}

// ResourceID qualifies id with the app package: "<package>:id/<id>".
func (t *Tester) ResourceID(id string) string {
	return t.packageName + ":id/" + id
}

// widgets finds by class name when text is absent or empty, otherwise by
// xpath on the text attribute. The text is resolved once per step.
func (t *Tester) widgets(class string, text []chain.Arg[string]) *Tester {
	if len(text) == 0 {
		t.ElementsByClassName(chain.V(class))
		return t
	}
	label := chain.Memo(text[0])
	using := chain.Map(label, func(s string) string {
		if s == "" {
			return chain.UsingClassName
		}
		return chain.UsingXpath
	})
	selector := chain.Map(label, func(s string) string {
		return Selector(class, s)
	})
	t.Elements(using, selector)
	return t
}

// Selector returns the selector for widgets of class showing text: the class
// itself when text is empty, otherwise an xpath.
func Selector(class, text string) string {
	if text == "" {
		return class
	}
	return fmt.Sprintf(`//%s[@text="%s"]`, class, text)
}
