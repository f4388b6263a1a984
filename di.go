package anvil

import (
	"github.com/xraph/anvil/internal/di"
)

// Container owns component instances built from a frozen Registry.
type Container = di.Container

// Registry collects component descriptors before a container is built.
type Registry = di.Registry

// Descriptor holds the declarative metadata of one component.
type Descriptor = di.Descriptor

// Option configures a Descriptor during registration.
type Option = di.Option

// Resolver is the lookup surface handed to factories.
type Resolver = di.Resolver

// Service is implemented by components with a start/stop lifecycle.
type Service = di.Service

// HealthChecker is implemented by components that can report health.
type HealthChecker = di.HealthChecker

// PostProcessor may replace an instance before it is cached.
type PostProcessor = di.PostProcessor

// ComponentInfo contains diagnostic information about a component.
type ComponentInfo = di.ComponentInfo

// ContainerOption configures a Container.
type ContainerOption = di.ContainerOption

// Registration options.
var (
	Singleton    = di.Singleton
	Prototype    = di.Prototype
	Lazy         = di.Lazy
	WithFactory  = di.WithFactory
	FromMethod   = di.FromMethod
	DependsOn    = di.DependsOn
	WithMetadata = di.WithMetadata
)

// Container options.
var (
	WithContainerLogger  = di.WithLogger
	WithContainerMetrics = di.WithMetrics
	WithPostProcessor    = di.WithPostProcessor
	WithGraphValidation  = di.WithGraphValidation
	NewContainerMetrics  = di.NewMetrics
)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return di.NewRegistry()
}

// NewContainer builds a container over reg and freezes it.
func NewContainer(reg *Registry, opts ...ContainerOption) Container {
	return di.New(reg, opts...)
}

// As declares the component type as T, typically an interface.
func As[T any]() Option {
	return di.As[T]()
}

// Component registers T, a pointer to a struct, for default construction.
func Component[T any](reg *Registry, name string, opts ...Option) error {
	return di.Component[T](reg, name, opts...)
}

// Provide registers a typed factory.
func Provide[T any](reg *Registry, name string, fn func(Resolver) (T, error), opts ...Option) error {
	return di.Provide(reg, name, fn, opts...)
}

// Value registers a pre-built singleton.
func Value[T any](reg *Registry, name string, instance T, opts ...Option) error {
	return di.Value(reg, name, instance, opts...)
}

// Method registers a component produced by a method of another component.
func Method[T any](reg *Registry, name, owner, method string, opts ...Option) error {
	return di.Method[T](reg, name, owner, method, opts...)
}
