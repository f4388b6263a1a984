package anvil

import (
	"sync/atomic"

	"github.com/xraph/anvil/internal/errors"
)

type holder struct {
	c Container
}

var current atomic.Pointer[holder]

// SetContainer publishes c as the process-wide container for code that
// cannot receive it by injection. The last call wins; nil clears it.
func SetContainer(c Container) {
	if c == nil {
		current.Store(nil)
		return
	}

	current.Store(&holder{c: c})
}

// ResetContainer clears the published container.
func ResetContainer() {
	current.Store(nil)
}

// CurrentContainer returns the published container.
func CurrentContainer() (Container, error) {
	h := current.Load()
	if h == nil {
		return nil, errors.ErrContainerNotSet()
	}

	return h.c, nil
}

// MustContainer returns the published container or panics.
func MustContainer() Container {
	c, err := CurrentContainer()
	if err != nil {
		panic(err)
	}

	return c
}

// Lookup resolves name from the published container as T.
func Lookup[T any](name string) (T, error) {
	c, err := CurrentContainer()
	if err != nil {
		var zero T

		return zero, err
	}

	return Get[T](c, name)
}

// LookupByType resolves T from the published container.
func LookupByType[T any]() (T, error) {
	c, err := CurrentContainer()
	if err != nil {
		var zero T

		return zero, err
	}

	return GetByType[T](c)
}
