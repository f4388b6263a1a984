package anvil

import (
	"github.com/xraph/anvil/internal/di"
)

// Get resolves name from r as T.
func Get[T any](r Resolver, name string) (T, error) {
	return di.Get[T](r, name)
}

// GetByType resolves the first component whose declared type is assignable
// to T.
func GetByType[T any](r Resolver) (T, error) {
	return di.GetByType[T](r)
}

// Must resolves name or panics. Use only during startup.
func Must[T any](r Resolver, name string) T {
	return di.Must[T](r, name)
}

// MustByType resolves by type or panics.
func MustByType[T any](r Resolver) T {
	return di.MustByType[T](r)
}
