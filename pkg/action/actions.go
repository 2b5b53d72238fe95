// Package action is the facade page objects use to drive the app. Every
// operation re-resolves its locator; element handles are never cached.
package action

import (
	"errors"
	"fmt"
	"time"

	"github.com/devicelab-dev/appui-runner/pkg/core"
	"github.com/devicelab-dev/appui-runner/pkg/driver/appium"
	"github.com/devicelab-dev/appui-runner/pkg/logger"
)

// Remote is the WebDriver surface the facade needs. *appium.Client implements it.
type Remote interface {
	FindElement(strategy, value string) (string, error)
	FindElements(strategy, value string) ([]string, error)
	ClickElement(elementID string) error
	ClearElement(elementID string) error
	SendKeysToElement(elementID, text string) error
	GetElementText(elementID string) (string, error)
	IsElementDisplayed(elementID string) (bool, error)
	IsElementEnabled(elementID string) (bool, error)
	GetElementRect(elementID string) (x, y, w, h int, err error)
	LongPressElement(elementID string, durationMs int) error

	WindowRect() (width, height int, err error)
	Tap(x, y int) error
	Swipe(startX, startY, endX, endY, durationMs int) error
	TwoFingerGesture(first, second appium.Path, durationMs int) error

	AcceptAlert() error
	DismissAlert() error
	GetAlertText() (string, error)

	Back() error
	HideKeyboard() error
	CurrentPackage() (string, error)
	NetworkConnection() (int, error)
	Screenshot() ([]byte, error)
	Source() (string, error)
	ExecuteMobile(command string, args map[string]interface{}) (interface{}, error)
}

// PackageManager runs package-manager commands on the device. *device.PackageManager implements it.
type PackageManager interface {
	CheckPermission(pkg, perm string) (bool, error)
	GrantPermission(pkg, perm string) error
	RevokePermission(pkg, perm string) error
	ClearData(pkg string) error
	Path(pkg string) (string, error)
}

// Options tunes waits and gestures. Zero fields take the defaults;
// a negative SwipeSettle disables the settle pause.
type Options struct {
	WaitTimeout       time.Duration // default timeout for waits
	PollInterval      time.Duration // delay between wait polls
	SwipeDuration     time.Duration // duration of one swipe gesture
	SwipeMaxAttempts  int           // lookups made by SwipeDownUntilFound
	SwipeTimeout      time.Duration // overall bound for SwipeDownUntilFound
	SwipeSettle       time.Duration // pause after a swipe before the next lookup
	LongPressDuration time.Duration
}

// DefaultOptions returns the facade defaults.
func DefaultOptions() Options {
	return Options{
		WaitTimeout:       10 * time.Second,
		PollInterval:      250 * time.Millisecond,
		SwipeDuration:     time.Second,
		SwipeMaxAttempts:  10,
		SwipeTimeout:      60 * time.Second,
		SwipeSettle:       300 * time.Millisecond,
		LongPressDuration: time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.WaitTimeout <= 0 {
		o.WaitTimeout = d.WaitTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.SwipeDuration <= 0 {
		o.SwipeDuration = d.SwipeDuration
	}
	if o.SwipeMaxAttempts <= 0 {
		o.SwipeMaxAttempts = d.SwipeMaxAttempts
	}
	if o.SwipeTimeout <= 0 {
		o.SwipeTimeout = d.SwipeTimeout
	}
	switch {
	case o.SwipeSettle == 0:
		o.SwipeSettle = d.SwipeSettle
	case o.SwipeSettle < 0:
		o.SwipeSettle = 0
	}
	if o.LongPressDuration <= 0 {
		o.LongPressDuration = d.LongPressDuration
	}
	return o
}

// Actions translates high-level intents into remote driver calls.
// It is not safe for concurrent use.
type Actions struct {
	remote Remote
	pm     PackageManager
	opts   Options
}

// New creates the facade. pm may be nil when no device shell is attached;
// permission and app-data operations then fail with core.ErrNoDeviceShell.
func New(remote Remote, pm PackageManager, opts Options) *Actions {
	return &Actions{
		remote: remote,
		pm:     pm,
		opts:   opts.withDefaults(),
	}
}

// Options returns the effective options.
func (a *Actions) Options() Options {
	return a.opts
}

// Lookup

// FindElement locates the first element matching loc.
func (a *Actions) FindElement(loc core.Locator) (core.Element, error) {
	id, err := a.remote.FindElement(loc.Strategy, loc.Value)
	if err != nil {
		return core.Element{}, a.lookupError(loc, err)
	}
	return core.Element{ID: id, Locator: loc}, nil
}

// FindElements locates all elements matching loc. No match is an empty slice.
func (a *Actions) FindElements(loc core.Locator) ([]core.Element, error) {
	ids, err := a.remote.FindElements(loc.Strategy, loc.Value)
	if err != nil {
		return nil, a.lookupError(loc, err)
	}
	elems := make([]core.Element, 0, len(ids))
	for _, id := range ids {
		elems = append(elems, core.Element{ID: id, Locator: loc})
	}
	return elems, nil
}

// Element interaction

// Click locates the element and clicks it.
func (a *Actions) Click(loc core.Locator) error {
	el, err := a.FindElement(loc)
	if err != nil {
		return err
	}
	logger.Debug("click %s", loc)
	if err := a.remote.ClickElement(el.ID); err != nil {
		return a.lookupError(loc, err)
	}
	return nil
}

// ClickElement clicks an element handle returned by a lookup in the current screen.
func (a *Actions) ClickElement(el core.Element) error {
	logger.Debug("click %s (%s)", el.Locator, el.ID)
	if err := a.remote.ClickElement(el.ID); err != nil {
		return a.lookupError(el.Locator, err)
	}
	return nil
}

// InputText locates the element and types text into it.
func (a *Actions) InputText(loc core.Locator, text string) error {
	el, err := a.FindElement(loc)
	if err != nil {
		return err
	}
	logger.Debug("input %d chars into %s", len(text), loc)
	if err := a.remote.SendKeysToElement(el.ID, text); err != nil {
		return a.lookupError(loc, err)
	}
	return nil
}

// ClearText locates the element and clears its text.
func (a *Actions) ClearText(loc core.Locator) error {
	el, err := a.FindElement(loc)
	if err != nil {
		return err
	}
	if err := a.remote.ClearElement(el.ID); err != nil {
		return a.lookupError(loc, err)
	}
	return nil
}

// GetText locates the element and returns its text.
func (a *Actions) GetText(loc core.Locator) (string, error) {
	el, err := a.FindElement(loc)
	if err != nil {
		return "", err
	}
	text, err := a.remote.GetElementText(el.ID)
	if err != nil {
		return "", a.lookupError(loc, err)
	}
	return text, nil
}

// Navigation

// GoBack presses the system back button.
func (a *Actions) GoBack() error {
	return a.remoteError("back", a.remote.Back())
}

// HideKeyboard dismisses the on-screen keyboard.
func (a *Actions) HideKeyboard() error {
	return a.remoteError("hide keyboard", a.remote.HideKeyboard())
}

// lookupError maps a driver error for loc into the runner taxonomy.
// A missing or stale element becomes ErrElementNotFound with the driver
// error kept as cause.
func (a *Actions) lookupError(loc core.Locator, err error) error {
	if appium.IsNoSuchElement(err) || appium.IsStaleElement(err) {
		return core.ErrElementNotFound.
			WithDetails(map[string]interface{}{"locator": loc.String()}).
			WithCause(err)
	}
	return a.remoteError(loc.String(), err)
}

// remoteError wraps transport failures as ErrServerUnreachable and passes
// other driver errors through with context.
func (a *Actions) remoteError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isTransportError(err) {
		return core.ErrServerUnreachable.WithCause(err)
	}
	var execErr *core.ExecutionError
	if errors.As(err, &execErr) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
