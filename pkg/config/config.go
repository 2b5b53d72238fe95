// Package config handles configuration for appui-runner.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/devicelab-dev/appui-runner/pkg/core"
	"gopkg.in/yaml.v3"
)

// Config is the run configuration (config.yaml). It replaces fixed
// module-level constants: every session is built from one of these.
type Config struct {
	Server      Server              `yaml:"server"`
	Device      Device              `yaml:"device"`
	App         App                 `yaml:"app"`
	Timeouts    Timeouts            `yaml:"timeouts"`
	Swipe       Swipe               `yaml:"swipe"`
	Screenshots core.ArtifactConfig `yaml:"screenshots"`
	Locators    Locators            `yaml:"locators"`
	Credentials Credentials         `yaml:"credentials"`
	Scenarios   []string            `yaml:"scenarios"` // Scenario names to run, in order
	Log         Log                 `yaml:"log"`
}

// Server is the Appium endpoint.
type Server struct {
	URL string `yaml:"url"`
}

// Device selects the target device.
type Device struct {
	Name            string `yaml:"name"` // adb serial or emulator name
	PlatformName    string `yaml:"platformName"`
	PlatformVersion string `yaml:"platformVersion"`
	AutomationName  string `yaml:"automationName"`
	NoReset         bool   `yaml:"noReset"`

	// Settings are driver settings applied right after the session starts,
	// e.g. waitForIdleTimeout for UiAutomator2.
	Settings map[string]interface{} `yaml:"settings"`
}

// App is the application under test.
type App struct {
	Package  string `yaml:"package"`
	Activity string `yaml:"activity"`
}

// Timeouts for element lookup.
type Timeouts struct {
	Implicit time.Duration `yaml:"implicit"` // server-side wait applied to every lookup
	Explicit time.Duration `yaml:"explicit"` // default client-side wait for clickable/visible
	Poll     time.Duration `yaml:"poll"`     // interval between client-side wait attempts
}

// Swipe bounds gestures and the swipe-until-found loop.
type Swipe struct {
	Duration    time.Duration `yaml:"duration"`
	MaxAttempts int           `yaml:"maxAttempts"`
	Timeout     time.Duration `yaml:"timeout"`
	Settle      time.Duration `yaml:"settle"` // pause after each swipe before the next lookup
}

// Locators for every page object.
type Locators struct {
	Start StartLocators `yaml:"start"`
	Login LoginLocators `yaml:"login"`
	Home  HomeLocators  `yaml:"home"`
}

// StartLocators drive the onboarding flow.
type StartLocators struct {
	AgreeService   core.Locator `yaml:"agreeService"`
	AgreeLaunch    core.Locator `yaml:"agreeLaunch"`
	CarouselSwipes int          `yaml:"carouselSwipes"`
}

// LoginLocators drive the login form.
type LoginLocators struct {
	Account   core.Locator `yaml:"account"`
	Password  core.Locator `yaml:"password"`
	Agreement core.Locator `yaml:"agreement"`
	Submit    core.Locator `yaml:"submit"`
}

// HomeLocators identify the home screen icons and the entry reached by swiping.
type HomeLocators struct {
	Icons core.Locator `yaml:"icons"`
	Entry core.Locator `yaml:"entry"`
}

// Credentials for the login flow.
type Credentials struct {
	Account  string `yaml:"account"`
	Password string `yaml:"password"`
}

// Log settings.
type Log struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file overrides a field.
func Default() *Config {
	return &Config{
		Server: Server{URL: "http://127.0.0.1:4723/wd/hub"},
		Device: Device{
			PlatformName:   "Android",
			AutomationName: "UiAutomator2",
		},
		Timeouts: Timeouts{
			Implicit: 10 * time.Second,
			Explicit: 15 * time.Second,
			Poll:     250 * time.Millisecond,
		},
		Swipe: Swipe{
			Duration:    time.Second,
			MaxAttempts: 10,
			Timeout:     time.Minute,
			Settle:      300 * time.Millisecond,
		},
		Screenshots: core.DefaultArtifactConfig(),
		Locators: Locators{
			Start: StartLocators{CarouselSwipes: 4},
		},
		Scenarios: []string{"all-icons-clickable", "slide-and-click-entry"},
		Log:       Log{Level: "info"},
	}
}

// Load loads configuration from a file, on top of Default().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, core.ErrInvalidConfig.WithCause(err).WithDetails(map[string]interface{}{"path": path})
	}

	return cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	// Try config.yaml first
	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// Try config.yml
	configPath = filepath.Join(dir, "config.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, return defaults
	return Default(), nil
}

// Validate checks the fields a session cannot start without.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return missing("server.url")
	}
	if !strings.HasPrefix(c.Server.URL, "http://") && !strings.HasPrefix(c.Server.URL, "https://") {
		return invalid("server.url", fmt.Sprintf("%q is not an http(s) URL", c.Server.URL))
	}
	if c.App.Package == "" {
		return missing("app.package")
	}
	if c.Swipe.MaxAttempts <= 0 {
		return invalid("swipe.maxAttempts", "must be positive")
	}
	if c.Locators.Start.CarouselSwipes < 0 {
		return invalid("locators.start.carouselSwipes", "must not be negative")
	}

	named := []struct {
		field string
		loc   core.Locator
	}{
		{"locators.start.agreeService", c.Locators.Start.AgreeService},
		{"locators.start.agreeLaunch", c.Locators.Start.AgreeLaunch},
		{"locators.login.account", c.Locators.Login.Account},
		{"locators.login.password", c.Locators.Login.Password},
		{"locators.login.agreement", c.Locators.Login.Agreement},
		{"locators.login.submit", c.Locators.Login.Submit},
		{"locators.home.icons", c.Locators.Home.Icons},
		{"locators.home.entry", c.Locators.Home.Entry},
	}
	for _, n := range named {
		if !n.loc.IsZero() && !n.loc.Valid() {
			return invalid(n.field, fmt.Sprintf("unsupported locator %s", n.loc))
		}
	}
	return nil
}

// Capabilities builds the W3C alwaysMatch capabilities for a new session.
func (c *Config) Capabilities() map[string]interface{} {
	caps := map[string]interface{}{
		"platformName":   c.Device.PlatformName,
		"appium:noReset": c.Device.NoReset,
	}
	set := func(key, value string) {
		if value != "" {
			caps[key] = value
		}
	}
	set("appium:automationName", c.Device.AutomationName)
	set("appium:deviceName", c.Device.Name)
	set("appium:udid", c.Device.Name)
	set("appium:platformVersion", c.Device.PlatformVersion)
	set("appium:appPackage", c.App.Package)
	set("appium:appActivity", c.App.Activity)
	return caps
}

func missing(field string) error {
	return core.ErrMissingRequired.WithMessage("missing required field: " + field)
}

func invalid(field, reason string) error {
	return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("invalid %s: %s", field, reason))
}
