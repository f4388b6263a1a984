package di

import (
	"context"
	"reflect"
)

// Resolver is the lookup surface shared by the container and the
// chain-bound resolvers handed to factories.
type Resolver interface {
	// Resolve returns the component registered under name.
	Resolve(name string) (any, error)

	// ResolveType returns the first component, in registration order, whose
	// declared type is assignable to t.
	ResolveType(t reflect.Type) (any, error)

	// Has reports whether name is registered.
	Has(name string) bool
}

// Container owns component instances built from a frozen Registry.
type Container interface {
	Resolver

	// ResolveAs resolves name and checks the instance is assignable to t.
	ResolveAs(name string, t reflect.Type) (any, error)

	// IsSingleton reports whether name is a singleton. Unknown names report
	// false.
	IsSingleton(name string) bool

	// TypeOf returns the declared type of name.
	TypeOf(name string) (reflect.Type, bool)

	// Names returns component names in registration order.
	Names() []string

	// Start validates the dependency graph, eagerly builds non-lazy
	// singletons and starts those implementing Service.
	Start(ctx context.Context) error

	// Close stops started services in reverse order and drops every cached
	// instance and descriptor. Close must not race in-flight resolution.
	Close(ctx context.Context) error

	// Health checks all instantiated singletons implementing HealthChecker.
	Health(ctx context.Context) error

	// Inspect returns diagnostic information about a component.
	Inspect(name string) ComponentInfo
}

// Service is implemented by components with a start/stop lifecycle.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// HealthChecker is implemented by components that can report health.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// PostProcessor may replace an instance after field injection and before it
// is cached, e.g. to wrap it in a decorator.
type PostProcessor interface {
	PostProcess(d Descriptor, instance any) (any, error)
}

// PostProcessorFunc adapts a function to PostProcessor.
type PostProcessorFunc func(d Descriptor, instance any) (any, error)

// PostProcess calls f.
func (f PostProcessorFunc) PostProcess(d Descriptor, instance any) (any, error) {
	return f(d, instance)
}

// ComponentInfo contains diagnostic information about a component.
type ComponentInfo struct {
	Name         string
	Type         string
	Lifecycle    string
	Lazy         bool
	Dependencies []string
	Instantiated bool
	Started      bool
	Healthy      bool
	Metadata     map[string]string
}
