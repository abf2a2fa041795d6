package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"

	"github.com/devicelab-dev/fastest-runner/pkg/config"
	"github.com/devicelab-dev/fastest-runner/pkg/core"
	"github.com/devicelab-dev/fastest-runner/pkg/executor"
	"github.com/devicelab-dev/fastest-runner/pkg/logger"
	"github.com/devicelab-dev/fastest-runner/pkg/report"
	"github.com/devicelab-dev/fastest-runner/pkg/script"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run scripts against the automation server",
	ArgsUsage: "<script-file-or-folder>...",
	Description: `Run one or more YAML scripts. Folders are scanned for *.yaml/*.yml
files in name order; fastest.yaml in a folder is configuration, not a script.

Reports are written to the output directory:
  - Default: ./reports/<timestamp>/
  - With --output: <output>/<timestamp>/
  - With --output and --flatten: <output>/

Examples:
  fastest run login.yaml
  fastest run scripts/ -e USER=test -e PASS=secret
  fastest --cap platformName=Android --cap appium:noReset=true run scripts/
  fastest run scripts/ --output ./my-reports --flatten --allure`,
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Script variables (KEY=VALUE)",
		},
		&cli.StringFlag{
			Name:    "output",
			Usage:   "Output directory for reports (default: ./reports)",
			EnvVars: []string{"FASTEST_OUTPUT"},
		},
		&cli.BoolFlag{
			Name:  "flatten",
			Usage: "Don't create timestamp subfolder (requires --output)",
		},
		&cli.BoolFlag{
			Name:  "stop-on-fail",
			Usage: "Skip remaining scripts after the first failure",
		},
		&cli.BoolFlag{
			Name:  "allure",
			Usage: "Also write allure-results/ into the output directory",
		},
	},
	Action: runScripts,
}

func runScripts(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("at least one script file or folder is required")
	}
	paths := c.Args().Slice()

	outputDir, err := resolveOutputDir(c.String("output"), c.Bool("flatten"))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	closeLog, err := initLogging(c.String("log-file"), c.Bool("verbose"))
	if err != nil {
		fmt.Printf("Warning: Failed to initialize logger: %v\n", err)
	}
	defer closeLog()

	cfg, err := resolveConfig(c, paths, parseEnvVars(c.StringSlice("env")))
	if err != nil {
		return err
	}
	scripts, err := checkScripts(c.App.ErrWriter, cfg, paths, false)
	if err != nil {
		return err
	}

	logger.Info("=== Run started ===")
	logger.Info("Output directory: %s", outputDir)
	logger.Info("Server: %s, package: %q, implicit wait: %dms", cfg.ServerURL, cfg.PackageName, cfg.ImplicitWaitMs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := report.Server{URL: cfg.ServerURL, PackageName: cfg.PackageName}
	w, err := report.NewIndexWriter(outputDir, report.NewIndex(server, Version, scripts))
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := w.Start(); err != nil {
		logger.Warn("report: %v", err)
	}

	batch := executeScripts(ctx, cfg, scripts, c.Bool("stop-on-fail"), w)

	if err := w.End(batch.Results); err != nil {
		logger.Warn("report: %v", err)
	}
	if c.Bool("allure") {
		if err := report.GenerateAllure(outputDir); err != nil {
			fmt.Printf("Warning: Failed to generate Allure results: %v\n", err)
		}
	}

	printSummary(batch)
	fmt.Printf("\n  Report: %s\n", filepath.Join(outputDir, "report.json"))

	if batch.Status != core.StatusPassed {
		return errScriptsFailed
	}
	return nil
}

// executeScripts runs scripts, printing progress and keeping the report
// index current.
func executeScripts(ctx context.Context, cfg *config.Config, scripts []*script.Script, stopOnFail bool, w *report.IndexWriter) *executor.BatchResult {
	current := -1
	runner := executor.New(executor.RunnerConfig{
		Config:     cfg,
		StopOnFail: stopOnFail,
		OnScriptStart: func(idx, total int, name, file string) {
			current = idx
			if err := w.ScriptStarted(idx); err != nil {
				logger.Warn("report: %v", err)
			}
			onScriptStart(idx, total, name, file)
		},
		OnStepComplete: onStepComplete,
		OnScriptEnd: func(result *core.RunResult) {
			if err := w.ScriptFinished(current, result); err != nil {
				logger.Warn("report: %v", err)
			}
			onScriptEnd(result)
		},
	})
	return runner.Run(ctx, scripts)
}

// initLogging opens the log file, defaulting to a timestamped file under
// the home logs directory.
func initLogging(path string, verbose bool) (func(), error) {
	if path == "" {
		if err := os.MkdirAll(config.GetLogsDir(), 0o755); err != nil {
			return func() {}, err
		}
		path = config.DefaultLogFile(time.Now())
	}
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	if err := logger.InitLevel(path, level); err != nil {
		return func() {}, err
	}
	return logger.Close, nil
}

// resolveOutputDir determines the output directory based on flags.
// - No --output: ./reports/<timestamp>/
// - --output given: <output>/<timestamp>/
// - --output + --flatten: <output>/ (error if --output not given)
func resolveOutputDir(output string, flatten bool) (string, error) {
	if flatten && output == "" {
		return "", fmt.Errorf("--flatten requires --output to be specified")
	}

	baseDir := output
	if baseDir == "" {
		baseDir = "./reports"
	}

	if flatten {
		return filepath.Clean(baseDir), nil
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(baseDir, timestamp), nil
}
