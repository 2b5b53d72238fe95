package appium

import (
	"errors"
	"fmt"
)

// ErrNoSession is returned by session-scoped calls made before Connect or after Disconnect.
var ErrNoSession = errors.New("no active session")

// W3C WebDriver error codes the runner reacts to.
const (
	CodeNoSuchElement    = "no such element"
	CodeStaleElement     = "stale element reference"
	CodeNoSuchAlert      = "no such alert"
	CodeInvalidSessionID = "invalid session id"
	CodeNotInteractable  = "element not interactable"
)

// WebDriverError is an error response from the server.
type WebDriverError struct {
	Status  int    // HTTP status
	Code    string // W3C error code, e.g. "no such element"
	Message string
}

func (e *WebDriverError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("webdriver: HTTP %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, code string) bool {
	var wdErr *WebDriverError
	return errors.As(err, &wdErr) && wdErr.Code == code
}

// IsNoSuchElement reports whether err is a "no such element" response.
func IsNoSuchElement(err error) bool { return hasCode(err, CodeNoSuchElement) }

// IsStaleElement reports whether err is a "stale element reference" response.
func IsStaleElement(err error) bool { return hasCode(err, CodeStaleElement) }

// IsNoSuchAlert reports whether err is a "no such alert" response.
func IsNoSuchAlert(err error) bool { return hasCode(err, CodeNoSuchAlert) }

// IsNotInteractable reports whether err is an "element not interactable" response.
func IsNotInteractable(err error) bool { return hasCode(err, CodeNotInteractable) }

// IsInvalidSession reports whether err is an "invalid session id" response.
func IsInvalidSession(err error) bool { return hasCode(err, CodeInvalidSessionID) }
