// Package factory resolves configuration type names into component
// instances. Component packages register their builders at init time;
// the simulation builder looks them up while loading a topology.
package factory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vortexsim/vortex/params"
	"github.com/vortexsim/vortex/sim"
)

// A Builder constructs a component on the given rank. Parameter errors
// must be returned, not panicked; they surface as setup failures.
type Builder func(
	s *sim.Simulation,
	id sim.ComponentID,
	name string,
	p params.Params,
) (sim.Component, error)

var (
	registryLock sync.RWMutex
	builders     = make(map[string]Builder)
)

// Register makes a component type available under the given name.
// Registering the same name twice panics; it is a programming error in
// the element library.
func Register(typeName string, b Builder) {
	registryLock.Lock()
	defer registryLock.Unlock()

	if _, dup := builders[typeName]; dup {
		panic(fmt.Sprintf("component type %q registered twice", typeName))
	}

	builders[typeName] = b
}

// Create builds a component of the named type. An unresolved type or a
// builder failure is a configuration error.
func Create(
	typeName string,
	s *sim.Simulation,
	id sim.ComponentID,
	name string,
	p params.Params,
) (sim.Component, error) {
	registryLock.RLock()
	b, found := builders[typeName]
	registryLock.RUnlock()

	if !found {
		return nil, fmt.Errorf("unresolved component type %q", typeName)
	}

	c, err := b(s, id, name, p)
	if err != nil {
		return nil, fmt.Errorf("building %s of type %q: %w",
			name, typeName, err)
	}

	return c, nil
}

// Types returns the registered type names in sorted order.
func Types() []string {
	registryLock.RLock()
	defer registryLock.RUnlock()

	names := make([]string, 0, len(builders))
	for n := range builders {
		names = append(names, n)
	}
	sort.Strings(names)

	return names
}
