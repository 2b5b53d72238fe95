package action

import (
	"context"
	"fmt"
	"time"

	"github.com/devicelab-dev/appui-runner/pkg/core"
)

// AssertElementExists fails with ErrAssertionFailed unless loc appears within timeout.
func (a *Actions) AssertElementExists(ctx context.Context, loc core.Locator, timeout time.Duration) (core.Element, error) {
	el, err := a.WaitUntilPresent(ctx, loc, timeout)
	if err != nil {
		if ctx.Err() != nil {
			return core.Element{}, err
		}
		return core.Element{}, core.ErrAssertionFailed.
			WithMessage("expected element to exist").
			WithDetails(map[string]interface{}{"locator": loc.String()}).
			WithCause(err)
	}
	return el, nil
}

// AssertElementText fails with ErrTextMismatch unless the element text equals expected.
func (a *Actions) AssertElementText(loc core.Locator, expected string) error {
	actual, err := a.GetText(loc)
	if err != nil {
		return err
	}
	if actual != expected {
		return core.ErrTextMismatch.
			WithMessage(fmt.Sprintf("text is %q, expected %q", actual, expected)).
			WithDetails(map[string]interface{}{
				"locator":  loc.String(),
				"expected": expected,
				"actual":   actual,
			})
	}
	return nil
}
