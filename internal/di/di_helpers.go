package di

import (
	"fmt"

	"github.com/xraph/anvil/internal/errors"
)

// Get resolves name with type safety
func Get[T any](r Resolver, name string) (T, error) {
	var zero T
	instance, err := r.Resolve(name)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("%w: component %s is %T, not %s", errors.ErrTypeMismatch, name, instance, TypeOf[T]())
	}
	return typed, nil
}

// GetByType resolves the first component assignable to T
func GetByType[T any](r Resolver) (T, error) {
	var zero T
	instance, err := r.ResolveType(TypeOf[T]())
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %T is not %s", errors.ErrTypeMismatch, instance, TypeOf[T]())
	}
	return typed, nil
}

// Must resolves or panics - use only during startup
func Must[T any](r Resolver, name string) T {
	instance, err := Get[T](r, name)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve %s: %v", name, err))
	}
	return instance
}

// MustByType resolves by type or panics
func MustByType[T any](r Resolver) T {
	instance, err := GetByType[T](r)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve %s: %v", TypeOf[T](), err))
	}
	return instance
}
