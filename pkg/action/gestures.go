package action

import (
	"math"

	"github.com/devicelab-dev/appui-runner/pkg/core"
	"github.com/devicelab-dev/appui-runner/pkg/driver/appium"
	"github.com/devicelab-dev/appui-runner/pkg/logger"
)

// frac is a point expressed as fractions of the window size.
type frac struct{ x, y float64 }

// Swipe paths as window fractions. The names follow finger direction for
// left/right and content direction for up/down.
var (
	swipeUpPath    = [2]frac{{0.5, 0.8}, {0.5, 0.2}}
	swipeDownPath  = [2]frac{{0.5, 0.2}, {0.5, 0.8}}
	swipeLeftPath  = [2]frac{{0.8, 0.5}, {0.2, 0.5}}
	swipeRightPath = [2]frac{{0.2, 0.5}, {0.8, 0.5}}

	// two fingers spreading away from the center
	zoomFirst  = [2]frac{{0.4, 0.4}, {0.3, 0.3}}
	zoomSecond = [2]frac{{0.6, 0.6}, {0.7, 0.7}}
)

// SwipeUp swipes from the lower to the upper part of the screen.
func (a *Actions) SwipeUp() error {
	return a.swipe("up", swipeUpPath)
}

// SwipeDown swipes from the upper to the lower part of the screen.
func (a *Actions) SwipeDown() error {
	return a.swipe("down", swipeDownPath)
}

// SwipeLeft swipes from right to left, e.g. to advance a carousel.
func (a *Actions) SwipeLeft() error {
	return a.swipe("left", swipeLeftPath)
}

// SwipeRight swipes from left to right.
func (a *Actions) SwipeRight() error {
	return a.swipe("right", swipeRightPath)
}

// ZoomIn spreads two fingers apart around the screen center.
func (a *Actions) ZoomIn() error {
	w, h, err := a.remote.WindowRect()
	if err != nil {
		return a.remoteError("zoom in", err)
	}
	logger.Debug("zoom in on %dx%d", w, h)
	err = a.remote.TwoFingerGesture(toPath(zoomFirst, w, h), toPath(zoomSecond, w, h), a.durationMs())
	return a.remoteError("zoom in", err)
}

// LongPress locates the element and holds it for Options.LongPressDuration.
func (a *Actions) LongPress(loc core.Locator) error {
	el, err := a.FindElement(loc)
	if err != nil {
		return err
	}
	logger.Debug("long press %s for %s", loc, a.opts.LongPressDuration)
	if err := a.remote.LongPressElement(el.ID, int(a.opts.LongPressDuration.Milliseconds())); err != nil {
		return a.lookupError(loc, err)
	}
	return nil
}

// TapElement taps the centre of an element's bounds with a pointer gesture.
// It reaches views that reject the WebDriver click command.
func (a *Actions) TapElement(el core.Element) error {
	x, y, w, h, err := a.remote.GetElementRect(el.ID)
	if err != nil {
		return a.lookupError(el.Locator, err)
	}
	c := appium.Bounds{X: x, Y: y, Width: w, Height: h}.Center()
	logger.Debug("tap %s at (%d,%d)", el.Locator, c.X, c.Y)
	return a.remoteError("tap "+el.Locator.String(), a.remote.Tap(c.X, c.Y))
}

// swipe re-reads the window size on every call since rotation changes it.
func (a *Actions) swipe(name string, path [2]frac) error {
	w, h, err := a.remote.WindowRect()
	if err != nil {
		return a.remoteError("swipe "+name, err)
	}
	p := toPath(path, w, h)
	logger.Debug("swipe %s (%d,%d)->(%d,%d)", name, p.Start.X, p.Start.Y, p.End.X, p.End.Y)
	err = a.remote.Swipe(p.Start.X, p.Start.Y, p.End.X, p.End.Y, a.durationMs())
	return a.remoteError("swipe "+name, err)
}

func (a *Actions) durationMs() int {
	return int(a.opts.SwipeDuration.Milliseconds())
}

func toPath(f [2]frac, w, h int) appium.Path {
	return appium.Path{
		Start: appium.Point{X: scale(f[0].x, w), Y: scale(f[0].y, h)},
		End:   appium.Point{X: scale(f[1].x, w), Y: scale(f[1].y, h)},
	}
}

func scale(f float64, size int) int {
	return int(math.Round(f * float64(size)))
}
