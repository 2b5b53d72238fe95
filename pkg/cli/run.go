package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/appui-runner/pkg/config"
	"github.com/devicelab-dev/appui-runner/pkg/core"
	"github.com/devicelab-dev/appui-runner/pkg/logger"
	"github.com/devicelab-dev/appui-runner/pkg/report"
	"github.com/devicelab-dev/appui-runner/pkg/scenario"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run scenarios against the configured device",
	ArgsUsage: "[scenario...]",
	Description: `Run one or more scenarios, each in its own driver session.
Without arguments the scenarios listed in the config are run.

Reports are written to the output directory:
  - Default: <home>/reports/<timestamp>/
  - With --output: <output>/<timestamp>/
  - With --output and --flatten: <output>/ (no timestamp subfolder)

Examples:
  appui-runner run
  appui-runner run slide-and-click-entry --swipe-max-attempts 20
  appui-runner run --output ./my-reports --flatten`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "output",
			Usage: "Output directory for reports",
		},
		&cli.BoolFlag{
			Name:  "flatten",
			Usage: "Don't create timestamp subfolder (requires --output)",
		},
		&cli.IntFlag{
			Name:  "swipe-max-attempts",
			Usage: "Lookups before swipe-until-found gives up",
		},
		&cli.DurationFlag{
			Name:  "swipe-timeout",
			Usage: "Overall time budget for swipe-until-found",
		},
		&cli.StringFlag{
			Name:  "screenshot-dir",
			Usage: "Directory for failure screenshots (default: <output>/screenshots)",
		},
	},
	Action: runScenarios,
}

var listCommand = &cli.Command{
	Name:   "list",
	Usage:  "List available scenarios",
	Action: listScenarios,
}

func runScenarios(c *cli.Context) error {
	outputDir, err := resolveOutputDir(c.String("output"), c.Bool("flatten"), time.Now())
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if !c.IsSet("screenshot-dir") {
		cfg.Screenshots.Dir = filepath.Join(outputDir, "screenshots")
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := execute(ctx, cfg, c.Args().Slice())
	if err != nil {
		return err
	}

	out := c.App.Writer
	report.PrintSummary(out, result, colorsEnabled(c))

	path, err := report.Write(outputDir, result, cfg, Version)
	if err != nil {
		logger.Error("writing report: %v", err)
		fmt.Fprintf(c.App.ErrWriter, "Warning: failed to write report: %v\n", err)
	} else {
		fmt.Fprintf(out, "\n  Report: %s\n", path)
	}

	if !result.Success() {
		return cli.Exit("", 1)
	}
	return nil
}

func execute(ctx context.Context, cfg *config.Config, names []string) (*core.RunResult, error) {
	runner := scenario.NewRunner(cfg)
	runner.Open = openSession
	return runner.Run(ctx, names)
}

// resolveOutputDir returns the report directory for a run started at now.
func resolveOutputDir(output string, flatten bool, now time.Time) (string, error) {
	if flatten && output == "" {
		return "", fmt.Errorf("--flatten requires --output to be specified")
	}

	baseDir := output
	if baseDir == "" {
		baseDir = config.GetReportsDir()
	}

	if flatten {
		return filepath.Clean(baseDir), nil
	}

	// Create timestamp-based subfolder
	return filepath.Join(baseDir, now.Format("2006-01-02_15-04-05")), nil
}

func listScenarios(c *cli.Context) error {
	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	for _, name := range scenario.Names() {
		s, _ := scenario.Lookup(name)
		fmt.Fprintf(w, "%s\t%s\n", name, s.Description())
	}
	return w.Flush()
}
