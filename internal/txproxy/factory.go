package txproxy

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/xraph/anvil/internal/di"
	"github.com/xraph/anvil/internal/errors"
	"github.com/xraph/anvil/internal/logger"
	"github.com/xraph/anvil/internal/tx"
)

// MetadataTransactional is the descriptor metadata key set by
// Transactional.
const MetadataTransactional = "txproxy.transactional"

// Transactional marks a component for wrapping by a Factory registered as a
// container post-processor.
func Transactional() di.Option {
	return di.WithMetadata(MetadataTransactional, "true")
}

type binding struct {
	iface reflect.Type
	wrap  func(target any, ic *Interceptor) any
}

// Factory builds transactional decorators. Decorator constructors are bound
// per capability interface with Bind.
type Factory struct {
	manager *tx.Manager
	opts    options
	logger  logger.Logger

	mu       sync.RWMutex
	bindings []binding
	declared map[string]Attributes
}

var _ di.PostProcessor = (*Factory)(nil)

// NewFactory creates a factory whose interceptors use manager.
func NewFactory(manager *tx.Manager, opts ...Option) *Factory {
	o := buildOptions(opts)
	return &Factory{
		manager:  manager,
		opts:     o,
		logger:   o.logger.Named("txproxy"),
		declared: make(map[string]Attributes),
	}
}

// Bind registers ctor as the decorator constructor for interface I. A later
// Bind for the same interface replaces the earlier one.
//
// Example:
//
//	txproxy.Bind[school.ClazzService](factory, school.NewTxClazzService)
func Bind[I any](f *Factory, ctor func(target I, ic *Interceptor) I) {
	iface := di.TypeOf[I]()
	if iface.Kind() != reflect.Interface {
		panic(fmt.Sprintf("txproxy: Bind requires an interface type, got %s", iface))
	}

	b := binding{
		iface: iface,
		wrap: func(target any, ic *Interceptor) any {
			return ctor(target.(I), ic)
		},
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for idx := range f.bindings {
		if f.bindings[idx].iface == iface {
			f.bindings[idx] = b
			return
		}
	}
	f.bindings = append(f.bindings, b)
}

// Declare records attributes for component, overriding what the instance
// itself declares.
func (f *Factory) Declare(component string, attrs Attributes) {
	f.mu.Lock()
	f.declared[component] = attrs
	f.mu.Unlock()
}

// Interceptor returns an interceptor for component using the factory's
// manager and options.
func (f *Factory) Interceptor(component string, attrs Attributes) *Interceptor {
	return newInterceptor(f.manager, component, attrs, f.opts)
}

// Wrap wraps instance with the first bound decorator whose interface it
// implements. Markers come from Declare or from the instance itself; an
// instance with no markers is returned unchanged.
func (f *Factory) Wrap(component string, instance any) (any, error) {
	return f.wrap(component, instance, nil)
}

// Wrap wraps target with the decorator bound for I.
func Wrap[I any](f *Factory, component string, target I) (I, error) {
	wrapped, err := f.wrap(component, target, di.TypeOf[I]())
	if err != nil {
		var zero I
		return zero, err
	}
	return wrapped.(I), nil
}

// PostProcess wraps components registered with Transactional. It
// implements di.PostProcessor.
func (f *Factory) PostProcess(d di.Descriptor, instance any) (any, error) {
	if d.Metadata[MetadataTransactional] != "true" {
		return instance, nil
	}

	var want reflect.Type
	if d.Type != nil && d.Type.Kind() == reflect.Interface {
		want = d.Type
	}

	wrapped, err := f.wrap(d.Name, instance, want)
	if err != nil {
		return nil, err
	}
	if d.Type != nil && !reflect.TypeOf(wrapped).AssignableTo(d.Type) {
		return nil, errors.ErrInvalidComponent(d.Name,
			fmt.Sprintf("transactional decorator %T is not assignable to declared type %s", wrapped, d.Type))
	}
	return wrapped, nil
}

func (f *Factory) wrap(component string, instance any, want reflect.Type) (any, error) {
	if instance == nil {
		return nil, errors.ErrInvalidComponent(component, "cannot wrap nil instance")
	}

	f.mu.RLock()
	attrs, declared := f.declared[component]
	b, found := f.lookup(reflect.TypeOf(instance), want)
	f.mu.RUnlock()

	if !declared {
		attrs = AttributesOf(instance)
	}
	if attrs.IsEmpty() {
		f.logger.Debug("component has no transaction markers, not wrapped", logger.Component(component))
		return instance, nil
	}
	if !found {
		return nil, errors.ErrInvalidComponent(component,
			fmt.Sprintf("no transactional decorator bound for %T", instance))
	}

	ic := f.Interceptor(component, attrs)
	wrapped := b.wrap(instance, ic)
	f.logger.Debug("component wrapped",
		logger.Component(component),
		logger.String("interface", b.iface.String()),
		logger.Strings("methods", attrs.MarkedMethods()),
		logger.Bool("type_marker", attrs.Type != nil),
	)
	return wrapped, nil
}

// lookup must be called with f.mu held.
func (f *Factory) lookup(t reflect.Type, want reflect.Type) (binding, bool) {
	for _, b := range f.bindings {
		if want != nil && b.iface != want {
			continue
		}
		if t.Implements(b.iface) {
			return b, true
		}
	}
	return binding{}, false
}
