package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/fastest-runner/pkg/config"
	"github.com/devicelab-dev/fastest-runner/pkg/script"
	"github.com/devicelab-dev/fastest-runner/pkg/validator"
)

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "Parse scripts and check them without a server",
	ArgsUsage: "<script-file-or-folder>...",
	Description: `Parse every script, merge its header over the configuration and
report steps that cannot succeed, such as click before any find.`,
	Action: validateScripts,
}

func validateScripts(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("at least one script file or folder is required")
	}
	paths := c.Args().Slice()

	cfg, err := resolveConfig(c, paths, nil)
	if err != nil {
		return err
	}
	_, err = checkScripts(c.App.Writer, cfg, paths, true)
	return err
}

// checkScripts validates paths and prints every problem to w. With listValid
// set, valid scripts are listed too.
func checkScripts(w io.Writer, cfg *config.Config, paths []string, listValid bool) ([]*script.Script, error) {
	result := validator.New(cfg).Validate(paths...)

	invalid := map[string]bool{}
	for _, err := range result.Errors {
		var ve *validator.ValidationError
		if errors.As(err, &ve) {
			invalid[ve.File] = true
		}
		fmt.Fprintf(w, "  %s✗%s %v\n", color(colorRed), color(colorReset), err)
	}
	if listValid {
		for _, s := range result.Scripts {
			if !invalid[s.SourcePath] {
				fmt.Fprintf(w, "  %s✓%s %s (%s)\n", color(colorGreen), color(colorReset), s.SourcePath, describeSteps(s))
			}
		}
	}

	if !result.IsValid() {
		return nil, fmt.Errorf("validation failed: %d errors", len(result.Errors))
	}
	return result.Scripts, nil
}

func describeSteps(s *script.Script) string {
	if len(s.Steps) == 1 {
		return "1 step"
	}
	return fmt.Sprintf("%d steps", len(s.Steps))
}
