package page

import (
	"context"
	"time"

	"github.com/devicelab-dev/appui-runner/pkg/action"
	"github.com/devicelab-dev/appui-runner/pkg/config"
	"github.com/devicelab-dev/appui-runner/pkg/logger"
)

// StartPage is the first-launch screen: service agreement, onboarding
// carousel and launch consent.
type StartPage struct {
	actions  *action.Actions
	locators config.StartLocators
	timeout  time.Duration
}

// NewStartPage creates the start page. timeout bounds each consent wait;
// zero uses the facade default.
func NewStartPage(a *action.Actions, locators config.StartLocators, timeout time.Duration) *StartPage {
	return &StartPage{actions: a, locators: locators, timeout: timeout}
}

// Configured reports whether both consent locators are set.
func (p *StartPage) Configured() bool {
	return p.check() == nil
}

func (p *StartPage) check() error {
	return require(
		field{"locators.start.agreeService", p.locators.AgreeService},
		field{"locators.start.agreeLaunch", p.locators.AgreeLaunch},
	)
}

// Start accepts the service agreement, swipes through the carousel and
// accepts the launch consent.
func (p *StartPage) Start(ctx context.Context) error {
	if err := p.check(); err != nil {
		return err
	}

	agree, err := p.actions.WaitUntilClickable(ctx, p.locators.AgreeService, p.timeout)
	if err != nil {
		return err
	}
	if err := p.actions.ClickElement(agree); err != nil {
		return err
	}

	for i := 0; i < p.locators.CarouselSwipes; i++ {
		if err := p.actions.SwipeLeft(); err != nil {
			return err
		}
	}
	logger.Debug("swiped through %d carousel pages", p.locators.CarouselSwipes)

	launch, err := p.actions.WaitUntilClickable(ctx, p.locators.AgreeLaunch, p.timeout)
	if err != nil {
		return err
	}
	return p.actions.ClickElement(launch)
}
