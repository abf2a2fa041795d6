package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/devicelab-dev/fastest-runner/pkg/core"
	"github.com/devicelab-dev/fastest-runner/pkg/executor"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Slow step threshold in milliseconds (5 seconds)
const slowThresholdMs = 5000

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

func init() {
	// Respect NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

// Live progress callbacks

func onScriptStart(idx, total int, name, file string) {
	fmt.Printf("\n  %s[%d/%d]%s %s%s%s (%s)\n",
		color(colorCyan), idx+1, total, color(colorReset),
		color(colorBold), name, color(colorReset), file)
	fmt.Println(strings.Repeat("─", 60))
}

func onStepComplete(step core.StepResult) {
	fmt.Print(formatStep(step))
}

func formatStep(step core.StepResult) string {
	desc := step.Command
	if step.Label != "" {
		desc = step.Command + ": " + step.Label
	}
	durationMs := step.Duration.Milliseconds()
	durStr := formatDuration(durationMs)

	switch step.Status {
	case core.StatusSkipped:
		return fmt.Sprintf("    %s-%s %s%s%s\n", color(colorGray), color(colorReset), color(colorGray), desc, color(colorReset))
	case core.StatusFailed:
		var b strings.Builder
		fmt.Fprintf(&b, "    %s✗%s %s (%s)\n", color(colorRed), color(colorReset), desc, durStr)
		if step.Error != "" {
			fmt.Fprintf(&b, "      %s╰─%s %s\n", color(colorGray), color(colorReset), step.Error)
		}
		return b.String()
	default:
		symbol, symbolColor, durColor := "✓", color(colorGreen), ""
		// sleep is slow on purpose
		if durationMs >= slowThresholdMs && step.Command != "sleep" {
			symbol, symbolColor, durColor = "⚠", color(colorYellow), color(colorYellow)
		}
		return fmt.Sprintf("    %s%s%s %s %s(%s)%s\n",
			symbolColor, symbol, color(colorReset), desc, durColor, durStr, color(colorReset))
	}
}

func onScriptEnd(result *core.RunResult) {
	ms := result.Duration.Milliseconds()
	switch result.Status {
	case core.StatusPassed:
		fmt.Printf("%s✓ %s%s %s%s%s\n",
			color(colorGreen), color(colorReset), result.Name, color(colorGray), formatDuration(ms), color(colorReset))
	default:
		fmt.Printf("%s✗ %s%s %s%s%s\n",
			color(colorRed), color(colorReset), result.Name, color(colorGray), formatDuration(ms), color(colorReset))
		if result.Error != "" {
			fmt.Printf("  %s╰─%s %s\n", color(colorGray), color(colorReset), result.Error)
		}
	}
}

func printSummary(batch *executor.BatchResult) {
	fmt.Print(formatSummary(batch))
}

func formatSummary(batch *executor.BatchResult) string {
	var b strings.Builder

	var totalSteps, passedSteps, failedSteps, skippedSteps int
	for _, r := range batch.Results {
		p, f, s := r.Summary()
		totalSteps += len(r.Steps)
		passedSteps += p
		failedSteps += f
		skippedSteps += s
	}

	b.WriteString("\n")
	if passedSteps > 0 {
		fmt.Fprintf(&b, "  %s%d steps passing%s (%s)\n", color(colorGreen), passedSteps, color(colorReset), formatDuration(batch.Duration.Milliseconds()))
	}
	if failedSteps > 0 {
		fmt.Fprintf(&b, "  %s%d steps failing%s\n", color(colorRed), failedSteps, color(colorReset))
	}
	if skippedSteps > 0 {
		fmt.Fprintf(&b, "  %s%d steps skipped%s\n", color(colorCyan), skippedSteps, color(colorReset))
	}
	b.WriteString("\n")

	tableWidth := 92
	b.WriteString(strings.Repeat("═", tableWidth) + "\n")
	fmt.Fprintf(&b, "  %-42s %6s %7s %6s %6s %6s %10s\n", "Script", "Status", "Steps", "Pass", "Fail", "Skip", "Duration")
	b.WriteString(strings.Repeat("─", tableWidth) + "\n")

	for _, r := range batch.Results {
		var status, statusColor string
		switch r.Status {
		case core.StatusFailed:
			status, statusColor = "✗ FAIL", color(colorRed)
		case core.StatusSkipped:
			status, statusColor = "- SKIP", color(colorCyan)
		default:
			status, statusColor = "✓ PASS", color(colorGreen)
		}

		name := r.Name
		if len(name) > 42 {
			name = name[:39] + "..."
		}
		p, f, s := r.Summary()
		fmt.Fprintf(&b, "  %-42s %s%6s%s %7d %6d %6d %6d %10s\n",
			name, statusColor, status, color(colorReset),
			len(r.Steps), p, f, s, formatDuration(r.Duration.Milliseconds()))
	}

	b.WriteString(strings.Repeat("─", tableWidth) + "\n")
	statusStr := fmt.Sprintf("%d/%d", batch.Passed, batch.Total)
	statusColor := color(colorGreen)
	if batch.Failed > 0 {
		statusColor = color(colorRed)
	}
	fmt.Fprintf(&b, "  %s%-42s%s %s%6s%s %7d %6d %6d %6d %10s\n",
		color(colorBold), "TOTAL", color(colorReset),
		statusColor, statusStr, color(colorReset),
		totalSteps, passedSteps, failedSteps, skippedSteps,
		formatDuration(batch.Duration.Milliseconds()))
	b.WriteString(strings.Repeat("═", tableWidth) + "\n")
	return b.String()
}

// formatDuration formats milliseconds to a human-readable string.
// Shows milliseconds for values < 1s, seconds otherwise.
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	d := time.Duration(ms) * time.Millisecond
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}
