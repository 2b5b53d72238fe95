package core

import "fmt"

// Locator strategies understood by the Appium UiAutomator2 driver.
const (
	StrategyID              = "id"
	StrategyClassName       = "class name"
	StrategyXPath           = "xpath"
	StrategyAccessibilityID = "accessibility id"
	StrategyUIAutomator     = "-android uiautomator"
)

// Locator identifies zero or more on-screen elements.
// Two lookups with the same locator may return different handles if the UI changed in between.
type Locator struct {
	Strategy string `yaml:"strategy" json:"strategy"`
	Value    string `yaml:"value" json:"value"`
}

// ByID locates elements by resource-id.
func ByID(id string) Locator { return Locator{Strategy: StrategyID, Value: id} }

// ByClassName locates elements by widget class.
func ByClassName(class string) Locator { return Locator{Strategy: StrategyClassName, Value: class} }

// ByXPath locates elements by XPath over the page source.
func ByXPath(xpath string) Locator { return Locator{Strategy: StrategyXPath, Value: xpath} }

// ByAccessibilityID locates elements by content-desc.
func ByAccessibilityID(id string) Locator {
	return Locator{Strategy: StrategyAccessibilityID, Value: id}
}

// ByUIAutomator locates elements with a UiSelector expression.
func ByUIAutomator(selector string) Locator {
	return Locator{Strategy: StrategyUIAutomator, Value: selector}
}

// IsZero reports whether the locator is unset.
func (l Locator) IsZero() bool {
	return l.Strategy == "" && l.Value == ""
}

// Valid reports whether the strategy is known and a value is present.
func (l Locator) Valid() bool {
	if l.Value == "" {
		return false
	}
	switch l.Strategy {
	case StrategyID, StrategyClassName, StrategyXPath, StrategyAccessibilityID, StrategyUIAutomator:
		return true
	default:
		return false
	}
}

// String returns "strategy=value".
func (l Locator) String() string {
	return fmt.Sprintf("%s=%s", l.Strategy, l.Value)
}

// Element is a handle to a located UI node.
// It is only valid until the next UI mutation and must not be reused across page transitions.
type Element struct {
	ID      string  `json:"id"`
	Locator Locator `json:"locator"`
}
