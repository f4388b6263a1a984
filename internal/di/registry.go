package di

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/xraph/anvil/internal/errors"
)

// Registry holds component descriptors in registration order. It must be
// fully populated before it is handed to New; after that it is frozen.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]*Descriptor
	order       []string
	frozen      atomic.Bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		descriptors: make(map[string]*Descriptor),
	}
}

// Register adds a descriptor built from opts. Either a type (via As) or a
// factory must be supplied.
func (r *Registry) Register(name string, opts ...Option) error {
	d := &Descriptor{Name: name, Singleton: true}
	for _, opt := range opts {
		opt(d)
	}
	return r.Add(d)
}

// Add validates and stores a prepared descriptor.
func (r *Registry) Add(d *Descriptor) error {
	if d == nil {
		return errors.ErrInvalidComponent("", "nil descriptor")
	}
	if d.Name == "" {
		return errors.ErrInvalidComponent(d.Name, "component name cannot be empty")
	}
	if err := validateDescriptor(d); err != nil {
		return err
	}
	if r.frozen.Load() {
		return errors.ErrRegistryFrozen(d.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.descriptors[d.Name]; exists {
		return errors.ErrComponentAlreadyExists(d.Name)
	}

	r.descriptors[d.Name] = d
	r.order = append(r.order, d.Name)
	return nil
}

func validateDescriptor(d *Descriptor) error {
	if d.FactoryMethod != "" && d.FactoryOwner == "" {
		return errors.ErrInvalidComponent(d.Name, "factory method without owner")
	}
	if d.Factory != nil && d.FactoryMethod != "" {
		return errors.ErrInvalidComponent(d.Name, "both factory and factory method set")
	}
	if d.Type == nil {
		if d.constructsByDefault() {
			return errors.ErrInvalidComponent(d.Name, "no type and no factory")
		}
		return errors.ErrInvalidComponent(d.Name, "declared type is required")
	}
	if d.constructsByDefault() && !isStructPointer(d.Type) {
		return errors.ErrInvalidComponent(d.Name,
			fmt.Sprintf("default construction needs a pointer to a struct, got %s", d.Type))
	}
	return nil
}

func isStructPointer(t reflect.Type) bool {
	return t != nil && t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[name]
	return d, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Descriptors returns the descriptors in registration order.
func (r *Registry) Descriptors() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.descriptors[name])
	}
	return out
}

// Len returns the number of descriptors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Frozen reports whether the registry has been handed to a container.
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

func (r *Registry) freeze() {
	r.frozen.Store(true)
}

func (r *Registry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptors = make(map[string]*Descriptor)
	r.order = nil
}

// Component registers T for default construction. T must be a pointer to a
// struct; its inject-tagged fields are wired by the container.
func Component[T any](r *Registry, name string, opts ...Option) error {
	return r.Register(name, append([]Option{withType(TypeOf[T]())}, opts...)...)
}

// Provide registers a typed factory. The declared type is T.
func Provide[T any](r *Registry, name string, fn func(Resolver) (T, error), opts ...Option) error {
	factory := func(res Resolver) (any, error) {
		return fn(res)
	}
	return r.Register(name, append([]Option{withType(TypeOf[T]()), WithFactory(factory)}, opts...)...)
}

// Value registers a pre-built singleton instance.
func Value[T any](r *Registry, name string, instance T, opts ...Option) error {
	factory := func(Resolver) (any, error) {
		return instance, nil
	}
	return r.Register(name, append([]Option{withType(TypeOf[T]()), WithFactory(factory)}, append(opts, Singleton())...)...)
}

// Method registers a component produced by a method on another component.
func Method[T any](r *Registry, name, owner, method string, opts ...Option) error {
	return r.Register(name, append([]Option{withType(TypeOf[T]()), FromMethod(owner, method)}, opts...)...)
}

func withType(t reflect.Type) Option {
	return func(d *Descriptor) { d.Type = t }
}
