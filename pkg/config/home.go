package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"
)

const envHome = "FASTEST_HOME"

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the fastest-runner home directory.
//
// Resolution order:
//  1. $FASTEST_HOME environment variable
//  2. Parent of the binary's directory (if binary is in <home>/bin/)
//  3. Current working directory (development fallback)
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = resolveHome()
	})
	return homeDir
}

// GetLogsDir returns <home>/logs.
func GetLogsDir() string {
	return filepath.Join(GetHome(), "logs")
}

// DefaultLogFile returns a timestamped log file path under GetLogsDir.
func DefaultLogFile(now time.Time) string {
	return filepath.Join(GetLogsDir(), "fastest-"+now.Format("20060102-150405")+".log")
}

func resolveHome() string {
	if env := os.Getenv(envHome); env != "" {
		return env
	}

	// Binary-relative: if binary is at <home>/bin/fastest, use <home>
	if execPath, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
			execPath = resolved
		}
		binDir := filepath.Dir(execPath)
		if filepath.Base(binDir) == "bin" {
			return filepath.Dir(binDir)
		}
	}

	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}

	return "."
}

// ResetHome resets the cached home directory (for testing).
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}
