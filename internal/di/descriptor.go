package di

import (
	"reflect"
)

// Factory produces a component instance. The Resolver it receives is bound to
// the current resolution chain, so lookups made from inside a factory take
// part in cycle detection.
type Factory func(r Resolver) (any, error)

// Descriptor holds the declarative metadata of one managed component.
type Descriptor struct {
	// Name is the unique registry key.
	Name string
	// Type is the declared type. For default construction it must be a
	// pointer to a struct; for factories it is the type the factory exposes.
	Type reflect.Type
	// Singleton components are constructed at most once per container.
	Singleton bool
	// Lazy singletons are skipped by eager start and built on first lookup.
	Lazy bool
	// Factory, when set, replaces default construction.
	Factory Factory
	// FactoryOwner and FactoryMethod name a method on another managed
	// component that produces the instance.
	FactoryOwner  string
	FactoryMethod string
	// DependsOn lists dependencies the container cannot see through inject
	// tags, e.g. those a factory resolves itself. Used for graph validation.
	DependsOn []string
	Metadata  map[string]string

	// guarded by the owning container's mutex
	instance    any
	hasInstance bool
}

// Option configures a Descriptor during registration.
type Option func(*Descriptor)

// Singleton marks the component as shared (the default).
func Singleton() Option {
	return func(d *Descriptor) { d.Singleton = true }
}

// Prototype makes every lookup construct a fresh instance.
func Prototype() Option {
	return func(d *Descriptor) { d.Singleton = false }
}

// Lazy defers construction of a singleton until it is first requested.
func Lazy() Option {
	return func(d *Descriptor) { d.Lazy = true }
}

// As overrides the declared type, typically with an interface the
// component is looked up by.
func As[T any]() Option {
	return func(d *Descriptor) { d.Type = TypeOf[T]() }
}

// WithFactory sets a factory used instead of default construction.
func WithFactory(f Factory) Option {
	return func(d *Descriptor) { d.Factory = f }
}

// FromMethod produces the instance by calling method on the component
// registered as owner. The method takes no arguments and returns either the
// instance or the instance and an error.
func FromMethod(owner, method string) Option {
	return func(d *Descriptor) {
		d.FactoryOwner = owner
		d.FactoryMethod = method
	}
}

// DependsOn declares dependencies for graph validation.
func DependsOn(names ...string) Option {
	return func(d *Descriptor) { d.DependsOn = append(d.DependsOn, names...) }
}

// WithMetadata attaches a key/value pair read by post-processors.
func WithMetadata(key, value string) Option {
	return func(d *Descriptor) {
		if d.Metadata == nil {
			d.Metadata = make(map[string]string)
		}
		d.Metadata[key] = value
	}
}

// TypeOf returns the reflect.Type of T, including interface types.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func (d *Descriptor) constructsByDefault() bool {
	return d.Factory == nil && d.FactoryMethod == ""
}

func (d *Descriptor) lifecycle() string {
	if d.Singleton {
		return "singleton"
	}
	return "prototype"
}
