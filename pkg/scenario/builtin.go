package scenario

import (
	"context"
	"fmt"

	"github.com/devicelab-dev/appui-runner/pkg/core"
	"github.com/devicelab-dev/appui-runner/pkg/logger"
)

// Built-in scenario names.
const (
	AllIconsClickableName  = "all-icons-clickable"
	SlideAndClickEntryName = "slide-and-click-entry"
)

func init() {
	Register(AllIconsClickable{})
	Register(SlideAndClickEntry{})
}

// AllIconsClickable runs the start and login flows, then clicks every home
// screen icon in order. The first icon that cannot be clicked fails the scenario.
type AllIconsClickable struct{}

func (AllIconsClickable) Name() string { return AllIconsClickableName }

func (AllIconsClickable) Description() string {
	return "start flow, login, then click every home icon in order"
}

func (AllIconsClickable) Run(ctx context.Context, s *Session, rec *Recorder) error {
	if s.Start.Configured() {
		if err := rec.Step("start", func() error { return s.Start.Start(ctx) }); err != nil {
			return err
		}
	} else {
		rec.Skip("start", "start locators not configured")
	}

	if s.Login.Configured() {
		if err := rec.Step("login", func() error { return s.Login.Login(ctx) }); err != nil {
			return err
		}
	} else {
		rec.Skip("login", "login locators or credentials not configured")
	}

	var count int
	err := rec.Step("enumerate icons", func() error {
		var err error
		count, err = s.Home.IconCount()
		if err != nil {
			return err
		}
		if count == 0 {
			return core.ErrAssertionFailed.WithMessage("no icons found on the home screen")
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("found %d icons", count)

	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		index := i
		if err := rec.Step(fmt.Sprintf("click icon %d", index+1), func() error {
			return s.Home.ClickIcon(index)
		}); err != nil {
			return fmt.Errorf("icon %d of %d: %w", index+1, count, err)
		}
	}
	return nil
}

// SlideAndClickEntry swipes down the home screen until the entry appears,
// then clicks it.
type SlideAndClickEntry struct{}

func (SlideAndClickEntry) Name() string { return SlideAndClickEntryName }

func (SlideAndClickEntry) Description() string {
	return "swipe down the home screen until the entry is found, then click it"
}

func (SlideAndClickEntry) Run(ctx context.Context, s *Session, rec *Recorder) error {
	return rec.Step("swipe to entry and click", func() error {
		return s.Home.OpenEntry(ctx)
	})
}
