package jsengine

import (
	"testing"
)

func TestNew(t *testing.T) {
	engine := New()

	if engine == nil {
		t.Fatal("expected engine to be created")
	}
	if engine.runtime == nil {
		t.Fatal("expected runtime to be initialized")
	}
}

func TestEval(t *testing.T) {
	engine := New()

	tests := []struct {
		name     string
		script   string
		expected interface{}
	}{
		{"simple number", "1 + 2", int64(3)},
		{"string concat", "'hello' + ' ' + 'world'", "hello world"},
		{"boolean", "true && false", false},
		{"null coalescing", "null ?? 'default'", "default"},
		{"array length", "[1, 2, 3].length", int64(3)},
		{"object property", "({name: 'test'}).name", "test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Eval(tt.script)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %v (%T), got %v (%T)", tt.expected, tt.expected, result, result)
			}
		})
	}
}

func TestSetVariable(t *testing.T) {
	engine := New()

	engine.SetVariable("username", "john")
	engine.SetVariable("count", 42)

	result, err := engine.EvalString("username")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "john" {
		t.Errorf("expected 'john', got %q", result)
	}

	result, err = engine.EvalString("count")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "42" {
		t.Errorf("expected '42', got %q", result)
	}

	if v, ok := engine.Variable("username"); !ok || v != "john" {
		t.Errorf("Variable(username) = %v, %v", v, ok)
	}
	if _, ok := engine.Variable("missing"); ok {
		t.Error("expected missing variable")
	}
}

func TestSetVariables(t *testing.T) {
	engine := New()
	engine.SetVariables(map[string]string{"USER": "alice", "PASS": "secret"})

	result, err := engine.EvalString("USER + ':' + PASS")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "alice:secret" {
		t.Errorf("got %q", result)
	}
}

func TestExpandVariables(t *testing.T) {
	engine := New()

	engine.SetVariable("name", "John")
	engine.SetVariable("age", 30)

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple var", "Hello ${name}", "Hello John"},
		{"expression", "Age: ${age + 5}", "Age: 35"},
		{"multiple vars", "${name} is ${age}", "John is 30"},
		{"no vars", "plain text", "plain text"},
		{"string concat", "${name + ' Doe'}", "John Doe"},
		{"nested braces", "${({a: 1}).a}", "1"},
		{"unterminated", "Hi ${name", "Hi ${name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.ExpandVariables(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestExpandVariablesWithError(t *testing.T) {
	engine := New()

	result, err := engine.ExpandVariables("Value: ${undefinedVar}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "Value: ${undefinedVar}" {
		t.Errorf("expected expression left as written, got %q", result)
	}
}

func TestHasExpressions(t *testing.T) {
	if !HasExpressions("hi ${name}") {
		t.Error("expected expression")
	}
	if HasExpressions("plain $ text {}") {
		t.Error("unexpected expression")
	}
}

func TestConsoleLog(t *testing.T) {
	engine := New()

	_, err := engine.Eval(`
		console.log("test message", 1);
		console.error("error message");
		console.warn("warning message");
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestJSON(t *testing.T) {
	engine := New()

	_, err := engine.Eval(`
		var data = json('{"name": "test", "value": 123}');
		parsedName = data.name;
		parsedValue = data.value;
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	name, _ := engine.EvalString("parsedName")
	if name != "test" {
		t.Errorf("expected 'test', got %q", name)
	}

	value, _ := engine.EvalString("parsedValue")
	if value != "123" {
		t.Errorf("expected '123', got %q", value)
	}
}

func TestOutput(t *testing.T) {
	engine := New()

	_, err := engine.Eval(`
		output.result = "success";
		output.count = 42;
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := engine.GetOutput()
	if output["result"] != "success" {
		t.Errorf("expected output.result = 'success', got %v", output["result"])
	}
	if output["count"] != int64(42) {
		t.Errorf("expected output.count = 42, got %v", output["count"])
	}
}

func TestFastestObject(t *testing.T) {
	engine := New()

	engine.SetLastValue("last text")
	engine.SetPackageName("fi.foo.bar")

	result, err := engine.EvalString("fastest.lastValue")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "last text" {
		t.Errorf("expected 'last text', got %q", result)
	}

	result, err = engine.EvalString("fastest.packageName")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "fi.foo.bar" {
		t.Errorf("expected 'fi.foo.bar', got %q", result)
	}
}

func TestArrowFunctions(t *testing.T) {
	engine := New()

	result, err := engine.Eval(`
		const add = (a, b) => a + b;
		add(2, 3);
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != int64(5) {
		t.Errorf("expected 5, got %v", result)
	}
}

func TestTemplateLiterals(t *testing.T) {
	engine := New()

	engine.SetVariable("name", "World")

	result, err := engine.EvalString("`Hello, ${name}!`")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "Hello, World!" {
		t.Errorf("expected 'Hello, World!', got %q", result)
	}
}

func TestEvalSyntaxError(t *testing.T) {
	engine := New()

	_, err := engine.Eval("invalid javascript {{{{")
	if err == nil {
		t.Error("expected error for invalid javascript")
	}
}

func TestEvalError(t *testing.T) {
	engine := New()

	_, err := engine.Eval("undefinedVariable.property")
	if err == nil {
		t.Error("expected error for undefined variable")
	}
}
