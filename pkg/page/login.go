package page

import (
	"context"
	"time"

	"github.com/devicelab-dev/appui-runner/pkg/action"
	"github.com/devicelab-dev/appui-runner/pkg/config"
	"github.com/devicelab-dev/appui-runner/pkg/core"
	"github.com/devicelab-dev/appui-runner/pkg/logger"
)

// LoginPage fills in the login form.
type LoginPage struct {
	actions     *action.Actions
	locators    config.LoginLocators
	credentials config.Credentials
	timeout     time.Duration
}

// NewLoginPage creates the login page.
func NewLoginPage(a *action.Actions, locators config.LoginLocators, creds config.Credentials, timeout time.Duration) *LoginPage {
	return &LoginPage{actions: a, locators: locators, credentials: creds, timeout: timeout}
}

// Configured reports whether every locator and credential the flow needs is set.
func (p *LoginPage) Configured() bool {
	return p.check() == nil
}

func (p *LoginPage) check() error {
	if err := require(
		field{"locators.login.account", p.locators.Account},
		field{"locators.login.password", p.locators.Password},
		field{"locators.login.agreement", p.locators.Agreement},
		field{"locators.login.submit", p.locators.Submit},
	); err != nil {
		return err
	}
	if p.credentials.Account == "" {
		return core.ErrMissingRequired.WithMessage("credentials not configured: credentials.account")
	}
	return nil
}

// Login enters the account and password, ticks the agreement and submits.
func (p *LoginPage) Login(ctx context.Context) error {
	if err := p.check(); err != nil {
		return err
	}

	if _, err := p.actions.WaitUntilVisible(ctx, p.locators.Account, p.timeout); err != nil {
		return err
	}
	if err := p.actions.InputText(p.locators.Account, p.credentials.Account); err != nil {
		return err
	}
	if err := p.actions.InputText(p.locators.Password, p.credentials.Password); err != nil {
		return err
	}
	if err := p.actions.Click(p.locators.Agreement); err != nil {
		return err
	}
	if err := p.actions.Click(p.locators.Submit); err != nil {
		return err
	}
	logger.Info("submitted login for %s", maskAccount(p.credentials.Account))
	return nil
}

// maskAccount keeps the last four characters of an account name.
func maskAccount(account string) string {
	r := []rune(account)
	if len(r) <= 4 {
		return "****"
	}
	return "****" + string(r[len(r)-4:])
}
