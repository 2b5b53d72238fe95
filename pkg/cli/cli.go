// Package cli provides the command-line interface for appui-runner.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/appui-runner/pkg/config"
	"github.com/devicelab-dev/appui-runner/pkg/logger"
	"github.com/devicelab-dev/appui-runner/pkg/scenario"
)

// Version is set at build time.
var Version = "dev"

// openSession opens the driver session used by the device commands and the
// runner. Tests replace it to run against a fake server.
var openSession scenario.OpenFunc = scenario.Open

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to config.yaml (default: ./config.yaml if present)",
		EnvVars: []string{"APPUI_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "appium-url",
		Usage:   "Appium server URL",
		EnvVars: []string{"APPIUM_URL"},
	},
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"udid"},
		Usage:   "Device serial to run on",
		EnvVars: []string{"APPUI_DEVICE"},
	},
	&cli.StringFlag{
		Name:  "platform-version",
		Usage: "Android version of the device",
	},
	&cli.StringFlag{
		Name:  "app-package",
		Usage: "Package of the app under test",
	},
	&cli.StringFlag{
		Name:  "app-activity",
		Usage: "Launch activity of the app under test",
	},
	&cli.StringFlag{
		Name:    "log-file",
		Usage:   "Write logs to this file instead of stderr",
		EnvVars: []string{"APPUI_LOG_FILE"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"APPUI_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// NewApp builds the command tree.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "appui-runner",
		Usage:   "UI test runner for Android apps driven through Appium",
		Version: Version,
		Description: `appui-runner drives an Android app through an Appium server and runs
end-to-end scenarios against it: onboarding, login, clicking every home
screen icon and swiping to hidden entries.

Examples:
  appui-runner run
  appui-runner --device 7c1fddbf run all-icons-clickable
  appui-runner --config ci.yaml run --output ./reports/ci
  appui-runner permission grant android.permission.CAMERA`,
		Flags: GlobalFlags,
		Commands: []*cli.Command{
			runCommand,
			listCommand,
			permissionCommand,
			appCommand,
			devicesCommand,
			inspectCommand,
		},
		After: func(*cli.Context) error {
			logger.Close()
			return nil
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, applies flag overrides, validates the
// result and configures logging.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(".")
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	applyOverrides(c, cfg)

	if err := setupLogging(c, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyOverrides copies explicitly set flags over config values.
func applyOverrides(c *cli.Context, cfg *config.Config) {
	override := func(flag string, dst *string) {
		if c.IsSet(flag) {
			*dst = c.String(flag)
		}
	}
	override("appium-url", &cfg.Server.URL)
	override("device", &cfg.Device.Name)
	override("platform-version", &cfg.Device.PlatformVersion)
	override("app-package", &cfg.App.Package)
	override("app-activity", &cfg.App.Activity)
	override("log-file", &cfg.Log.Path)
	override("screenshot-dir", &cfg.Screenshots.Dir)

	if c.IsSet("swipe-max-attempts") {
		cfg.Swipe.MaxAttempts = c.Int("swipe-max-attempts")
	}
	if c.IsSet("swipe-timeout") {
		cfg.Swipe.Timeout = c.Duration("swipe-timeout")
	}
	if c.Bool("verbose") {
		cfg.Log.Level = "debug"
	}
}

func setupLogging(c *cli.Context, cfg *config.Config) error {
	if cfg.Log.Level != "" {
		if err := logger.SetLevel(cfg.Log.Level); err != nil {
			return err
		}
	}
	if cfg.Log.Path != "" {
		if err := logger.Init(cfg.Log.Path, nil); err != nil {
			return err
		}
	} else {
		logger.SetOutput(c.App.ErrWriter)
	}
	return nil
}

// colorsEnabled reports whether output to stdout may use ANSI colors.
func colorsEnabled(c *cli.Context) bool {
	if c.Bool("no-ansi") || os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// withSession loads config, opens a session, runs fn and closes the session.
func withSession(c *cli.Context, fn func(sess *scenario.Session) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	sess, err := openSession(c.Context, cfg)
	if err != nil {
		return err
	}
	defer sess.Close()
	return fn(sess)
}

// firstArg returns the single required positional argument.
func firstArg(c *cli.Context, name string) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("expected exactly one <%s> argument, got %d", name, c.NArg())
	}
	return strings.TrimSpace(c.Args().First()), nil
}
