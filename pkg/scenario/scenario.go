package scenario

import (
	"context"
	"fmt"
	"sync"
)

// Scenario is one end-to-end test script. Run drives page objects of the
// session and returns the first failure.
type Scenario interface {
	Name() string
	Description() string
	Run(ctx context.Context, s *Session, rec *Recorder) error
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Scenario{}
	order      []string
)

// Register makes a scenario available by name. It panics on a duplicate name.
func Register(s Scenario) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[s.Name()]; dup {
		panic(fmt.Sprintf("scenario: Register called twice for %q", s.Name()))
	}
	registry[s.Name()] = s
	order = append(order, s.Name())
}

// Lookup returns the scenario registered under name.
func Lookup(name string) (Scenario, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[name]
	return s, ok
}

// Names returns the registered scenario names in registration order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return append([]string(nil), order...)
}
