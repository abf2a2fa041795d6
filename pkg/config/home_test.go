package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestGetHome_EnvVar(t *testing.T) {
	ResetHome()
	t.Setenv("FASTEST_HOME", "/custom/path")

	got := GetHome()
	if got != "/custom/path" {
		t.Errorf("GetHome() = %q, want %q", got, "/custom/path")
	}
}

func TestGetHome_Fallback(t *testing.T) {
	ResetHome()
	t.Setenv("FASTEST_HOME", "")

	if got := GetHome(); got == "" {
		t.Error("GetHome() returned empty string")
	}
}

func TestGetHome_Cached(t *testing.T) {
	ResetHome()
	t.Setenv("FASTEST_HOME", "/first")

	first := GetHome()

	t.Setenv("FASTEST_HOME", "/second")
	second := GetHome()

	if first != second {
		t.Errorf("GetHome() not cached: first=%q, second=%q", first, second)
	}
}

func TestGetLogsDir(t *testing.T) {
	ResetHome()
	t.Setenv("FASTEST_HOME", "/test/home")

	got := GetLogsDir()
	want := filepath.Join("/test/home", "logs")
	if got != want {
		t.Errorf("GetLogsDir() = %q, want %q", got, want)
	}
}

func TestDefaultLogFile(t *testing.T) {
	ResetHome()
	t.Setenv("FASTEST_HOME", "/test/home")

	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	got := DefaultLogFile(now)
	want := filepath.Join("/test/home", "logs", "fastest-20240309-140507.log")
	if got != want {
		t.Errorf("DefaultLogFile() = %q, want %q", got, want)
	}
	if !strings.HasSuffix(got, ".log") {
		t.Errorf("unexpected extension: %q", got)
	}
}
