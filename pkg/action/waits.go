package action

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/devicelab-dev/appui-runner/pkg/core"
	"github.com/devicelab-dev/appui-runner/pkg/driver/appium"
	"github.com/devicelab-dev/appui-runner/pkg/logger"
)

// condition reports whether the located element is in the awaited state.
type condition func(elementID string) (bool, error)

// WaitUntilPresent waits until an element matching loc exists.
// A timeout <= 0 uses Options.WaitTimeout. Each poll is a find that the
// server may hold for its implicit wait, so a wait can return up to one
// implicit wait after timeout. Canceling ctx aborts the in-flight find
// when the client was bound to ctx with SetContext.
func (a *Actions) WaitUntilPresent(ctx context.Context, loc core.Locator, timeout time.Duration) (core.Element, error) {
	return a.waitFor(ctx, loc, timeout, "present", nil)
}

// WaitUntilVisible waits until an element matching loc is displayed.
func (a *Actions) WaitUntilVisible(ctx context.Context, loc core.Locator, timeout time.Duration) (core.Element, error) {
	return a.waitFor(ctx, loc, timeout, "visible", a.remote.IsElementDisplayed)
}

// WaitUntilClickable waits until an element matching loc is displayed and enabled.
func (a *Actions) WaitUntilClickable(ctx context.Context, loc core.Locator, timeout time.Duration) (core.Element, error) {
	return a.waitFor(ctx, loc, timeout, "clickable", func(id string) (bool, error) {
		displayed, err := a.remote.IsElementDisplayed(id)
		if err != nil || !displayed {
			return false, err
		}
		return a.remote.IsElementEnabled(id)
	})
}

// waitFor polls until loc resolves and cond holds. On expiry the error is
// ErrElementNotFound wrapping ErrWaitTimeout wrapping the last poll failure.
// Transport and session failures end the wait immediately.
func (a *Actions) waitFor(ctx context.Context, loc core.Locator, timeout time.Duration, state string, cond condition) (core.Element, error) {
	if timeout <= 0 {
		timeout = a.opts.WaitTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		found   core.Element
		lastErr error
		fatal   error
		polls   int
	)
	op := func() error {
		polls++
		id, err := a.remote.FindElement(loc.Strategy, loc.Value)
		if err == nil && cond != nil {
			var ok bool
			ok, err = cond(id)
			if err == nil && !ok {
				err = fmt.Errorf("element %s is not %s", loc, state)
			}
		}
		if err != nil {
			lastErr = err
			if isFatal(err) {
				fatal = err
				cancel()
			}
			return err
		}
		found = core.Element{ID: id, Locator: loc}
		return nil
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(a.opts.PollInterval), waitCtx)
	if err := backoff.Retry(op, b); err == nil {
		logger.Debug("%s is %s after %d poll(s)", loc, state, polls)
		return found, nil
	}

	if ctx.Err() != nil {
		return core.Element{}, ctx.Err()
	}
	if fatal != nil {
		return core.Element{}, a.remoteError(loc.String(), fatal)
	}
	return core.Element{}, core.ErrElementNotFound.
		WithMessage(fmt.Sprintf("element not %s within %s", state, timeout)).
		WithDetails(map[string]interface{}{"locator": loc.String(), "polls": polls}).
		WithCause(core.ErrWaitTimeout.WithCause(lastErr))
}

// SwipeDownUntilFound looks loc up, swiping down between misses, for at most
// Options.SwipeMaxAttempts lookups and Options.SwipeTimeout overall.
// Giving up yields ErrSwipeExhausted.
func (a *Actions) SwipeDownUntilFound(ctx context.Context, loc core.Locator) (core.Element, error) {
	swipeCtx, cancel := context.WithTimeout(ctx, a.opts.SwipeTimeout)
	defer cancel()

	maxAttempts := a.opts.SwipeMaxAttempts
	var (
		found    core.Element
		lastErr  error
		fatal    error
		attempts int
	)
	op := func() error {
		attempts++
		id, err := a.remote.FindElement(loc.Strategy, loc.Value)
		if err == nil {
			found = core.Element{ID: id, Locator: loc}
			return nil
		}
		lastErr = err
		if !appium.IsNoSuchElement(err) {
			fatal = err
			cancel()
			return err
		}
		if attempts >= maxAttempts {
			return err
		}
		// the settle delay between this swipe and the next lookup is the backoff interval
		if err := a.SwipeDown(); err != nil {
			fatal = err
			cancel()
			return err
		}
		return lastErr
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(a.opts.SwipeSettle), uint64(maxAttempts-1)),
		swipeCtx,
	)
	notify := func(err error, next time.Duration) {
		logger.Debug("%s not found on attempt %d/%d, swiped down", loc, attempts, maxAttempts)
	}
	if err := backoff.RetryNotify(op, b, notify); err == nil {
		logger.Info("found %s after %d attempt(s)", loc, attempts)
		return found, nil
	}

	if fatal != nil {
		return core.Element{}, a.lookupError(loc, fatal)
	}
	if ctx.Err() != nil {
		return core.Element{}, ctx.Err()
	}
	return core.Element{}, core.ErrSwipeExhausted.
		WithMessage(fmt.Sprintf("element not found after %d attempt(s)", attempts)).
		WithDetails(map[string]interface{}{"locator": loc.String(), "attempts": attempts}).
		WithCause(lastErr)
}

// isFatal reports errors that no amount of polling can recover from.
func isFatal(err error) bool {
	return isTransportError(err) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, appium.ErrNoSession) ||
		appium.IsInvalidSession(err)
}

// isTransportError reports connection failures. Requests aborted by a
// canceled context are not transport failures.
func isTransportError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
