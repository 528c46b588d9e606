package serialization

import (
	"fmt"
	"reflect"
	"sync"
)

var (
	registryLock  sync.RWMutex
	factoryByName = make(map[string]func() Serializable)
	nameByGoType  = make(map[reflect.Type]string)
)

// RegisterType makes a Serializable type known by name so instances can
// be rebuilt on another rank or after a restart. The factory must return
// a pointer to a zero value of the type. Registration normally happens
// in the package init of the component that owns the type.
func RegisterType(name string, factory func() Serializable) {
	registryLock.Lock()
	defer registryLock.Unlock()

	if _, dup := factoryByName[name]; dup {
		panic(fmt.Sprintf("serializable type %s registered twice", name))
	}

	factoryByName[name] = factory
	nameByGoType[reflect.TypeOf(factory())] = name
}

func nameOf(s Serializable) (string, error) {
	registryLock.RLock()
	defer registryLock.RUnlock()

	name, found := nameByGoType[reflect.TypeOf(s)]
	if !found {
		return "", fmt.Errorf(
			"type %T is not a registered serializable", s)
	}

	return name, nil
}

func newByName(name string) (Serializable, error) {
	registryLock.RLock()
	defer registryLock.RUnlock()

	factory, found := factoryByName[name]
	if !found {
		return nil, fmt.Errorf("unknown serializable type %s", name)
	}

	return factory(), nil
}
