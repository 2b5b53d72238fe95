package page

import (
	"context"
	"fmt"

	"github.com/devicelab-dev/appui-runner/pkg/action"
	"github.com/devicelab-dev/appui-runner/pkg/config"
	"github.com/devicelab-dev/appui-runner/pkg/core"
	"github.com/devicelab-dev/appui-runner/pkg/driver/appium"
	"github.com/devicelab-dev/appui-runner/pkg/logger"
)

// HomePage is the icon grid shown after login.
type HomePage struct {
	actions  *action.Actions
	locators config.HomeLocators
}

// NewHomePage creates the home page.
func NewHomePage(a *action.Actions, locators config.HomeLocators) *HomePage {
	return &HomePage{actions: a, locators: locators}
}

// Icons enumerates the icons currently on screen.
func (p *HomePage) Icons() ([]core.Element, error) {
	if err := require(field{"locators.home.icons", p.locators.Icons}); err != nil {
		return nil, err
	}
	return p.actions.FindElements(p.locators.Icons)
}

// IconCount returns the number of icons currently on screen.
func (p *HomePage) IconCount() (int, error) {
	icons, err := p.Icons()
	if err != nil {
		return 0, err
	}
	return len(icons), nil
}

// ClickIcon re-enumerates the icons and clicks the one at index. Icons whose
// view rejects the click as not interactable are tapped at their centre.
// It fails with ErrIndexOutOfRange unless 0 <= index < count.
func (p *HomePage) ClickIcon(index int) error {
	icons, err := p.Icons()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(icons) {
		return core.ErrIndexOutOfRange.
			WithMessage(fmt.Sprintf("icon index %d out of range [0, %d)", index, len(icons))).
			WithDetails(map[string]interface{}{"index": index, "count": len(icons)})
	}
	logger.Debug("click icon %d/%d", index+1, len(icons))
	err = p.actions.ClickElement(icons[index])
	if appium.IsNotInteractable(err) {
		logger.Debug("icon %d not interactable, tapping instead", index+1)
		return p.actions.TapElement(icons[index])
	}
	return err
}

// OpenEntry swipes down until the entry is on screen and clicks it.
func (p *HomePage) OpenEntry(ctx context.Context) error {
	if err := require(field{"locators.home.entry", p.locators.Entry}); err != nil {
		return err
	}
	entry, err := p.actions.SwipeDownUntilFound(ctx, p.locators.Entry)
	if err != nil {
		return err
	}
	return p.actions.ClickElement(entry)
}
