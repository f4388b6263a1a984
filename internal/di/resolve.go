package di

import (
	"fmt"
	"reflect"
	"time"

	"github.com/xraph/anvil/internal/errors"
	"github.com/xraph/anvil/internal/logger"
)

// chain is the set of names under construction for one top-level lookup.
// It is only touched by the goroutine driving that lookup.
type chain struct {
	path []string
}

func newChain() *chain {
	return &chain{}
}

func (ch *chain) enter(name string) {
	ch.path = append(ch.path, name)
}

func (ch *chain) leave() {
	ch.path = ch.path[:len(ch.path)-1]
}

func (ch *chain) contains(name string) bool {
	return contains(ch.path, name)
}

// cycle returns the path from the first occurrence of name, closed by name.
func (ch *chain) cycle(name string) []string {
	for i, p := range ch.path {
		if p == name {
			return append(append([]string{}, ch.path[i:]...), name)
		}
	}
	return append(append([]string{}, ch.path...), name)
}

// construction is an in-flight singleton build. done is closed once
// instance and err are final.
type construction struct {
	owner    *chain
	done     chan struct{}
	instance any
	err      error
}

// chainResolver is handed to factories so nested lookups join the chain of
// the component being built.
type chainResolver struct {
	c  *containerImpl
	ch *chain
}

func (r *chainResolver) Resolve(name string) (any, error) {
	return r.c.resolve(r.ch, name)
}

func (r *chainResolver) ResolveType(t reflect.Type) (any, error) {
	return r.c.resolveType(r.ch, t, "")
}

func (r *chainResolver) Has(name string) bool {
	return r.c.registry.Has(name)
}

func (c *containerImpl) resolve(ch *chain, name string) (any, error) {
	d, ok := c.registry.Lookup(name)
	if !ok {
		c.metrics.resolved("not_found")
		if c.isClosed() {
			return nil, errors.ErrContainerClosed
		}
		return nil, errors.ErrComponentNotFound(name)
	}

	if !d.Singleton {
		if ch.contains(name) {
			c.metrics.resolved("error")
			return nil, errors.ErrCircularDependency(ch.cycle(name))
		}
		instance, err := c.build(ch, d)
		c.outcome(err, "constructed")
		return instance, err
	}

	// Fast path: already cached
	c.mu.RLock()
	if d.hasInstance {
		instance := d.instance
		c.mu.RUnlock()
		c.metrics.resolved("cached")
		return instance, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	if d.hasInstance {
		instance := d.instance
		c.mu.Unlock()
		c.metrics.resolved("cached")
		return instance, nil
	}

	if b, inFlight := c.building[name]; inFlight {
		if b.owner == ch {
			c.mu.Unlock()
			c.metrics.resolved("error")
			return nil, errors.ErrCircularDependency(ch.cycle(name))
		}
		if c.waitsOn(b.owner, ch) {
			// the builder is, transitively, waiting on something this chain
			// is building: neither can finish
			path := append(append([]string{}, ch.path...), name)
			c.mu.Unlock()
			c.metrics.resolved("error")
			return nil, errors.ErrCircularDependency(path)
		}

		c.waiting[ch] = name
		c.mu.Unlock()

		<-b.done

		c.mu.Lock()
		delete(c.waiting, ch)
		c.mu.Unlock()

		c.outcome(b.err, "cached")
		return b.instance, b.err
	}

	b := &construction{owner: ch, done: make(chan struct{})}
	c.building[name] = b
	c.mu.Unlock()

	b.instance, b.err = c.build(ch, d)

	c.mu.Lock()
	delete(c.building, name)
	if b.err == nil {
		d.instance = b.instance
		d.hasInstance = true
		c.constructed = append(c.constructed, name)
		c.metrics.cached(len(c.constructed))
	}
	c.mu.Unlock()
	close(b.done)

	c.outcome(b.err, "constructed")
	return b.instance, b.err
}

// waitsOn reports whether chain from is blocked, directly or through other
// builders, on a construction owned by target. Caller holds c.mu.
func (c *containerImpl) waitsOn(from, target *chain) bool {
	for hops := 0; from != nil && hops <= len(c.waiting); hops++ {
		if from == target {
			return true
		}
		name, blocked := c.waiting[from]
		if !blocked {
			return false
		}
		b, ok := c.building[name]
		if !ok {
			return false
		}
		from = b.owner
	}
	return false
}

func (c *containerImpl) resolveType(ch *chain, t reflect.Type, exclude string) (any, error) {
	if t == nil {
		return nil, errors.ErrNoComponentOfType("<nil>")
	}
	for _, d := range c.registry.Descriptors() {
		if d.Name == exclude || d.Type == nil || !d.Type.AssignableTo(t) {
			continue
		}
		instance, err := c.resolve(ch, d.Name)
		if err != nil {
			return nil, err
		}
		if reflect.TypeOf(instance).AssignableTo(t) {
			return instance, nil
		}
	}
	return nil, errors.ErrNoComponentOfType(t.String())
}

// build constructs, injects and post-processes one instance. The name stays
// on the chain until build returns, whatever the outcome.
func (c *containerImpl) build(ch *chain, d *Descriptor) (instance any, err error) {
	ch.enter(d.Name)
	defer ch.leave()

	defer func() {
		if r := recover(); r != nil {
			instance = nil
			err = errors.NewComponentError(d.Name, "construct", fmt.Errorf("panic: %v", r))
			c.logger.Error("component construction panicked",
				logger.Component(d.Name),
				logger.Any("panic", r),
			)
		}
	}()

	start := time.Now()

	instance, err = c.instantiate(ch, d)
	if err != nil {
		return nil, err
	}

	if err = c.inject(ch, d, instance); err != nil {
		return nil, err
	}

	for _, pp := range c.postProcessors {
		instance, err = pp.PostProcess(*d, instance)
		if err != nil {
			return nil, errors.NewComponentError(d.Name, "post-process", err)
		}
		if instance == nil {
			return nil, errors.ErrInvalidComponent(d.Name, "post-processor returned nil")
		}
	}

	c.metrics.built(d, time.Since(start))
	c.logger.Debug("component constructed",
		logger.Component(d.Name),
		logger.String("lifecycle", d.lifecycle()),
		logger.Duration("elapsed", time.Since(start)),
	)
	return instance, nil
}

func (c *containerImpl) instantiate(ch *chain, d *Descriptor) (any, error) {
	var (
		instance any
		err      error
	)

	switch {
	case d.Factory != nil:
		instance, err = d.Factory(&chainResolver{c: c, ch: ch})
		if err != nil {
			if isContainerError(err) {
				return nil, err
			}
			return nil, errors.NewComponentError(d.Name, "factory", err)
		}

	case d.FactoryMethod != "":
		instance, err = c.invokeFactoryMethod(ch, d)
		if err != nil {
			return nil, err
		}

	default:
		instance = reflect.New(d.Type.Elem()).Interface()
	}

	if instance == nil || isNilValue(reflect.ValueOf(instance)) {
		return nil, errors.ErrInvalidComponent(d.Name, "factory returned nil")
	}
	if d.Type != nil && !reflect.TypeOf(instance).AssignableTo(d.Type) {
		return nil, errors.NewComponentError(d.Name, "construct",
			fmt.Errorf("%w: %T is not assignable to %s", errors.ErrTypeMismatch, instance, d.Type))
	}
	return instance, nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func (c *containerImpl) invokeFactoryMethod(ch *chain, d *Descriptor) (any, error) {
	owner, err := c.resolve(ch, d.FactoryOwner)
	if err != nil {
		if errors.IsComponentNotFound(err) {
			return nil, errors.ErrMissingDependency(d.Name, d.FactoryOwner, err)
		}
		return nil, err
	}

	method := reflect.ValueOf(owner).MethodByName(d.FactoryMethod)
	if !method.IsValid() {
		return nil, errors.ErrInvalidComponent(d.Name,
			fmt.Sprintf("%T has no method %s", owner, d.FactoryMethod))
	}

	mt := method.Type()
	if mt.NumIn() != 0 || mt.NumOut() < 1 || mt.NumOut() > 2 ||
		(mt.NumOut() == 2 && mt.Out(1) != errorType) {
		return nil, errors.ErrInvalidComponent(d.Name,
			fmt.Sprintf("factory method %s must have signature func() T or func() (T, error)", d.FactoryMethod))
	}

	out := method.Call(nil)
	if len(out) == 2 && !out[1].IsNil() {
		return nil, errors.NewComponentError(d.Name, "factory", out[1].Interface().(error))
	}
	if isNilValue(out[0]) {
		return nil, nil
	}
	return out[0].Interface(), nil
}

func (c *containerImpl) outcome(err error, success string) {
	if err != nil {
		c.metrics.resolved("error")
		return
	}
	c.metrics.resolved(success)
}

func (c *containerImpl) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// isContainerError reports errors that already describe a resolution
// failure and must reach the caller unchanged.
func isContainerError(err error) bool {
	return errors.IsCircularDependency(err) ||
		errors.IsMissingDependency(err) ||
		errors.IsComponentNotFound(err)
}

func isNilValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
