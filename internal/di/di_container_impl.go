package di

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/xraph/anvil/internal/errors"
	"github.com/xraph/anvil/internal/logger"
)

// containerImpl implements Container
type containerImpl struct {
	registry       *Registry
	postProcessors []PostProcessor
	logger         logger.Logger
	metrics        *Metrics
	validateGraph  bool

	// mu guards descriptor instances and the maps below
	mu          sync.RWMutex
	building    map[string]*construction
	waiting     map[*chain]string
	constructed []string // singletons in construction order
	started     []string // services in start order
	starting    bool
	running     bool
	closed      bool
}

// ContainerOption configures a container.
type ContainerOption func(*containerImpl)

// WithLogger sets the container logger.
func WithLogger(l logger.Logger) ContainerOption {
	return func(c *containerImpl) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records container activity to m.
func WithMetrics(m *Metrics) ContainerOption {
	return func(c *containerImpl) { c.metrics = m }
}

// WithPostProcessor appends a post-processor. Post-processors run in the
// order they were added.
func WithPostProcessor(pp PostProcessor) ContainerOption {
	return func(c *containerImpl) { c.postProcessors = append(c.postProcessors, pp) }
}

// WithGraphValidation toggles the static dependency check run by Start.
func WithGraphValidation(enabled bool) ContainerOption {
	return func(c *containerImpl) { c.validateGraph = enabled }
}

// New creates a container over reg and freezes it. Nothing is constructed
// until Start or the first lookup.
func New(reg *Registry, opts ...ContainerOption) Container {
	if reg == nil {
		reg = NewRegistry()
	}
	reg.freeze()

	c := &containerImpl{
		registry:      reg,
		logger:        logger.NewNoopLogger(),
		validateGraph: true,
		building:      make(map[string]*construction),
		waiting:       make(map[*chain]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("container")
	return c
}

// Resolve returns a component by name
func (c *containerImpl) Resolve(name string) (any, error) {
	return c.resolve(newChain(), name)
}

// ResolveType returns the first component assignable to t
func (c *containerImpl) ResolveType(t reflect.Type) (any, error) {
	return c.resolveType(newChain(), t, "")
}

// ResolveAs resolves name and checks its type
func (c *containerImpl) ResolveAs(name string, t reflect.Type) (any, error) {
	instance, err := c.Resolve(name)
	if err != nil {
		return nil, err
	}
	if t != nil && !reflect.TypeOf(instance).AssignableTo(t) {
		return nil, errors.NewComponentError(name, "resolve",
			fmt.Errorf("%w: %T is not assignable to %s", errors.ErrTypeMismatch, instance, t))
	}
	return instance, nil
}

// Has checks if a component is registered
func (c *containerImpl) Has(name string) bool {
	return c.registry.Has(name)
}

// IsSingleton reports the lifecycle of name
func (c *containerImpl) IsSingleton(name string) bool {
	d, ok := c.registry.Lookup(name)
	return ok && d.Singleton
}

// TypeOf returns the declared type of name
func (c *containerImpl) TypeOf(name string) (reflect.Type, bool) {
	d, ok := c.registry.Lookup(name)
	if !ok {
		return nil, false
	}
	return d.Type, true
}

// Names returns all registered component names in registration order
func (c *containerImpl) Names() []string {
	return c.registry.Names()
}

// Health checks all instantiated singletons
func (c *containerImpl) Health(ctx context.Context) error {
	c.mu.RLock()
	instances := make(map[string]any, len(c.constructed))
	names := append([]string(nil), c.constructed...)
	for _, name := range names {
		if d, ok := c.registry.Lookup(name); ok && d.hasInstance {
			instances[name] = d.instance
		}
	}
	c.mu.RUnlock()

	for _, name := range names {
		if checker, ok := instances[name].(HealthChecker); ok {
			if err := checker.Health(ctx); err != nil {
				return errors.NewComponentError(name, "health", err)
			}
		}
	}

	return nil
}

// Inspect returns diagnostic information about a component
func (c *containerImpl) Inspect(name string) ComponentInfo {
	d, exists := c.registry.Lookup(name)
	if !exists {
		return ComponentInfo{Name: name}
	}

	c.mu.RLock()
	instance, instantiated := d.instance, d.hasInstance
	started := contains(c.started, name)
	c.mu.RUnlock()

	typeName := "unknown"
	if d.Type != nil {
		typeName = d.Type.String()
	}
	if instantiated {
		typeName = fmt.Sprintf("%T", instance)
	}

	healthy := false
	if checker, ok := instance.(HealthChecker); ok {
		healthy = checker.Health(context.Background()) == nil
	}

	return ComponentInfo{
		Name:         name,
		Type:         typeName,
		Lifecycle:    d.lifecycle(),
		Lazy:         d.Lazy,
		Dependencies: c.staticDependencies(d),
		Instantiated: instantiated,
		Started:      started,
		Healthy:      healthy,
		Metadata:     d.Metadata,
	}
}

// Start validates the graph, builds eager singletons in registration order
// and starts services in construction order.
func (c *containerImpl) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.ErrContainerClosed
	}
	if c.running || c.starting {
		c.mu.Unlock()
		return errors.ErrContainerStarted
	}
	c.starting = true
	c.mu.Unlock()

	order, err := c.start(ctx)

	c.mu.Lock()
	c.starting = false
	c.running = err == nil
	c.mu.Unlock()

	if err != nil {
		return err
	}

	c.logger.Info("container started",
		logger.Int("components", c.registry.Len()),
		logger.Int("singletons", len(order)),
	)
	return nil
}

// start runs validation, eager construction and service start. It returns
// the construction order.
func (c *containerImpl) start(ctx context.Context) ([]string, error) {
	if c.validateGraph {
		if err := c.dependencyGraph().ValidateFrom(c.eagerRoots()...); err != nil {
			c.logger.Error("dependency graph invalid", logger.Error(err))
			return nil, errors.ErrLifecycleError("validate", err)
		}
	}

	for _, name := range c.eagerRoots() {
		if err := ctx.Err(); err != nil {
			c.discard()
			return nil, errors.ErrLifecycleError("start", err)
		}
		if _, err := c.Resolve(name); err != nil {
			c.logger.Error("eager instantiation failed",
				logger.Component(name),
				logger.Error(err),
			)
			c.discard()
			return nil, errors.NewComponentError(name, "start", err)
		}
	}

	c.mu.RLock()
	order := append([]string(nil), c.constructed...)
	c.mu.RUnlock()

	for _, name := range order {
		if err := c.startService(ctx, name); err != nil {
			// Rollback: stop already started services
			_ = c.stopServices(ctx)
			c.discard()
			return nil, errors.NewComponentError(name, "start", err)
		}
	}
	return order, nil
}

// Close shuts down services in reverse order and clears all state
func (c *containerImpl) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.stopServices(ctx)
	c.discard()
	c.registry.clear()

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("container closed with errors", logger.Error(err))
		return errors.ErrLifecycleError("close", err)
	}
	c.logger.Debug("container closed")
	return nil
}

// startService starts a single service
func (c *containerImpl) startService(ctx context.Context, name string) error {
	d, ok := c.registry.Lookup(name)
	if !ok {
		return nil
	}

	c.mu.RLock()
	instance := d.instance
	c.mu.RUnlock()

	svc, ok := instance.(Service)
	if !ok {
		return nil
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.started = append(c.started, name)
	c.mu.Unlock()

	c.logger.Debug("service started", logger.Component(name))
	return nil
}

// stopServices stops started services in reverse start order and collects
// every failure.
func (c *containerImpl) stopServices(ctx context.Context) error {
	c.mu.Lock()
	started := c.started
	c.started = nil
	c.mu.Unlock()

	var errs []error
	for i := len(started) - 1; i >= 0; i-- {
		name := started[i]
		d, ok := c.registry.Lookup(name)
		if !ok {
			continue
		}

		c.mu.RLock()
		svc, _ := d.instance.(Service)
		c.mu.RUnlock()

		if svc == nil {
			continue
		}
		if err := svc.Stop(ctx); err != nil {
			errs = append(errs, errors.NewComponentError(name, "stop", err))
		}
	}

	return errors.Join(errs...)
}

// discard drops every cached singleton.
func (c *containerImpl) discard() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, name := range c.constructed {
		if d, ok := c.registry.Lookup(name); ok {
			d.instance = nil
			d.hasInstance = false
		}
	}
	c.constructed = nil
	c.metrics.cached(0)
}

func contains(list []string, name string) bool {
	for _, s := range list {
		if s == name {
			return true
		}
	}
	return false
}
