// Package scenario runs end-to-end scenarios against a live session.
package scenario

import (
	"context"
	"errors"
	"net/url"

	"github.com/devicelab-dev/appui-runner/pkg/action"
	"github.com/devicelab-dev/appui-runner/pkg/config"
	"github.com/devicelab-dev/appui-runner/pkg/core"
	"github.com/devicelab-dev/appui-runner/pkg/device"
	"github.com/devicelab-dev/appui-runner/pkg/driver/appium"
	"github.com/devicelab-dev/appui-runner/pkg/logger"
	"github.com/devicelab-dev/appui-runner/pkg/page"
)

// Session is one driver connection plus the facade and page objects built on it.
// It is owned by a single scenario and must be closed when the scenario ends.
type Session struct {
	Config  *config.Config
	Client  *appium.Client
	Actions *action.Actions

	Start *page.StartPage
	Login *page.LoginPage
	Home  *page.HomePage
}

// Open creates a session and attaches the adb shell channel when a device is
// reachable. Without adb the session still works, but permission and app
// data operations fail with core.ErrNoDeviceShell.
func Open(ctx context.Context, cfg *config.Config) (*Session, error) {
	var shell device.Shell
	if d, err := device.New(cfg.Device.Name); err != nil {
		logger.Warn("device shell unavailable, package manager operations disabled: %v", err)
	} else {
		shell = d
	}
	return OpenWith(ctx, cfg, shell)
}

// OpenWith creates a session using the given shell channel, which may be nil.
func OpenWith(ctx context.Context, cfg *config.Config, shell device.Shell) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := appium.NewClient(cfg.Server.URL)
	client.SetContext(ctx)
	if err := client.Connect(cfg.Capabilities()); err != nil {
		return nil, connectError(cfg.Server.URL, err)
	}
	if cfg.Timeouts.Implicit > 0 {
		if err := client.SetImplicitWait(cfg.Timeouts.Implicit); err != nil {
			_ = client.Disconnect()
			return nil, connectError(cfg.Server.URL, err)
		}
	}
	if len(cfg.Device.Settings) > 0 {
		if err := client.SetSettings(cfg.Device.Settings); err != nil {
			_ = client.Disconnect()
			return nil, connectError(cfg.Server.URL, err)
		}
	}

	var pm action.PackageManager
	if shell != nil {
		pm = device.NewPackageManager(shell)
	}
	acts := action.New(client, pm, ActionOptions(cfg))

	logger.With(map[string]interface{}{
		"session":  client.SessionID(),
		"server":   cfg.Server.URL,
		"platform": client.Platform(),
		"package":  cfg.App.Package,
	}).Info("session opened")

	return &Session{
		Config:  cfg,
		Client:  client,
		Actions: acts,
		Start:   page.NewStartPage(acts, cfg.Locators.Start, cfg.Timeouts.Explicit),
		Login:   page.NewLoginPage(acts, cfg.Locators.Login, cfg.Credentials, cfg.Timeouts.Explicit),
		Home:    page.NewHomePage(acts, cfg.Locators.Home),
	}, nil
}

// Close quits the driver session. Safe to call more than once.
func (s *Session) Close() error {
	id := s.Client.SessionID()
	if id == "" {
		return nil
	}
	if err := s.Client.Disconnect(); err != nil {
		logger.Warn("closing session %s: %v", id, err)
		return err
	}
	logger.Debug("session %s closed", id)
	return nil
}

// ActionOptions maps the config timeouts and swipe bounds onto facade options.
func ActionOptions(cfg *config.Config) action.Options {
	return action.Options{
		WaitTimeout:      cfg.Timeouts.Explicit,
		PollInterval:     cfg.Timeouts.Poll,
		SwipeDuration:    cfg.Swipe.Duration,
		SwipeMaxAttempts: cfg.Swipe.MaxAttempts,
		SwipeTimeout:     cfg.Swipe.Timeout,
		SwipeSettle:      cfg.Swipe.Settle,
	}
}

func connectError(server string, err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return core.ErrServerUnreachable.
			WithDetails(map[string]interface{}{"server": server}).
			WithCause(err)
	}
	return core.ErrServerUnreachable.
		WithMessage("could not create session").
		WithDetails(map[string]interface{}{"server": server}).
		WithCause(err)
}
