// Package page holds the page objects. A page binds the action facade to
// the locators of one screen and has no state of its own.
package page

import (
	"github.com/devicelab-dev/appui-runner/pkg/core"
)

// field pairs a config path with its locator for required-locator checks.
type field struct {
	name string
	loc  core.Locator
}

// require fails with ErrMissingRequired naming the first unset locator.
func require(fields ...field) error {
	for _, f := range fields {
		if f.loc.IsZero() {
			return core.ErrMissingRequired.
				WithMessage("locator not configured: " + f.name).
				WithDetails(map[string]interface{}{"field": f.name})
		}
	}
	return nil
}
