package validator

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/devicelab-dev/fastest-runner/pkg/config"
	"github.com/devicelab-dev/fastest-runner/pkg/script"
)

func writeScripts(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func errorMessages(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "\n")
}

func TestValidate_SingleFile(t *testing.T) {
	dir := t.TempDir()
	writeScripts(t, dir, map[string]string{"login.yaml": "- button: Login\n- click\n"})

	result := New(nil).Validate(filepath.Join(dir, "login.yaml"))
	if !result.IsValid() {
		t.Errorf("expected valid result, got errors: %v", result.Errors)
	}
	if len(result.Scripts) != 1 || len(result.Scripts[0].Steps) != 2 {
		t.Errorf("Scripts = %+v", result.Scripts)
	}
}

func TestValidate_Directory(t *testing.T) {
	dir := t.TempDir()
	writeScripts(t, dir, map[string]string{
		"b.yaml":       "- textView\n",
		"a.yaml":       "- buttons\n",
		"nested/c.yml": "- texts\n",
		"fastest.yaml": "serverUrl: http://localhost:4723\n",
		"notes.txt":    "not a script",
	})

	result := New(nil).Validate(dir)
	if !result.IsValid() {
		t.Fatalf("expected valid result, got errors: %v", result.Errors)
	}
	var names []string
	for _, s := range result.Scripts {
		names = append(names, s.Name)
	}
	if strings.Join(names, ",") != "a,b,c" {
		t.Errorf("scripts = %v", names)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	dir := t.TempDir()
	writeScripts(t, dir, map[string]string{
		"broken.yaml":  "- frobnicate\n",
		"badconf.yaml": "serverUrl: ftp://example.com\n---\n- button\n",
		"order.yaml":   "- click\n- button\n- click\n",
		"good.yaml":    "- button\n- click\n",
	})

	result := New(nil).Validate(dir)
	if result.IsValid() {
		t.Fatal("expected errors")
	}
	if len(result.Errors) != 3 {
		t.Errorf("got %d errors:\n%s", len(result.Errors), errorMessages(result.Errors))
	}
	if len(result.Scripts) != 3 {
		t.Errorf("expected the 3 parsed scripts, got %d", len(result.Scripts))
	}

	msgs := errorMessages(result.Errors)
	for _, want := range []string{"broken.yaml: parse error", "badconf.yaml: serverUrl", "order.yaml: step 1: click needs an element"} {
		if !strings.Contains(msgs, want) {
			t.Errorf("errors missing %q:\n%s", want, msgs)
		}
	}
}

func TestValidate_MissingPath(t *testing.T) {
	result := New(nil).Validate(filepath.Join(t.TempDir(), "missing.yaml"))
	if result.IsValid() || !strings.Contains(result.Errors[0].Error(), "cannot access") {
		t.Errorf("errors = %v", result.Errors)
	}
}

func TestValidate_EmptyDirectory(t *testing.T) {
	result := New(nil).Validate(t.TempDir())
	if result.IsValid() {
		t.Error("expected an error for a directory without scripts")
	}
}

func TestCheckSteps(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		pkg     string
		wantErr string
	}{
		{"find first", "- elementsByXpath: //a\n- at: 1\n- text\n", "", ""},
		{"isNotDisplayed alone", "- isNotDisplayed\n", "", ""},
		{"at alone", "- at: 0\n", "", ""},
		{"wait before find", "- waitDisplayed\n- button\n", "", "step 1: waitDisplayed needs an element"},
		{"viewsById without package", "- viewsById: login\n- click\n", "", "step 1: viewsById needs packageName"},
		{"viewsById with package", "- viewsById: login\n- click\n", "fi.foo.bar", ""},
		{"bad saveAs", "- windowRect: {saveAs: my-rect}\n", "", `saveAs "my-rect" is not a valid variable name`},
		{"good saveAs", "- windowRect: {saveAs: rect}\n", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := script.Parse([]byte(tt.src), "s.yaml")
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			cfg := config.Defaults()
			cfg.PackageName = tt.pkg

			errs := CheckSteps(s, cfg)
			if tt.wantErr == "" {
				if len(errs) != 0 {
					t.Errorf("unexpected errors: %v", errs)
				}
				return
			}
			if len(errs) != 1 || !strings.Contains(errs[0].Error(), tt.wantErr) {
				t.Errorf("errors = %v, want %q", errs, tt.wantErr)
			}
			var ve *ValidationError
			if !errors.As(errs[0], &ve) || ve.File != "s.yaml" {
				t.Errorf("expected a ValidationError for s.yaml, got %#v", errs[0])
			}
		})
	}
}
