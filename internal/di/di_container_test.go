package di

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errors2 "github.com/xraph/anvil/internal/errors"
)

// Mock service for testing
type mockService struct {
	name      string
	started   bool
	stopped   bool
	healthy   bool
	startErr  error
	stopErr   error
	healthErr error
	onStart   func()
	onStop    func()
}

func (m *mockService) Start(ctx context.Context) error {
	if m.onStart != nil {
		m.onStart()
	}
	if m.startErr != nil {
		return m.startErr
	}
	m.started = true
	return nil
}

func (m *mockService) Stop(ctx context.Context) error {
	if m.onStop != nil {
		m.onStop()
	}
	if m.stopErr != nil {
		return m.stopErr
	}
	m.stopped = true
	return nil
}

func (m *mockService) Health(ctx context.Context) error {
	if m.healthErr != nil {
		return m.healthErr
	}
	if !m.healthy {
		return errors.New("unhealthy")
	}
	return nil
}

// school-shaped fixtures
type teacherDAO struct{}

type clazzDAO struct {
	Teachers *teacherDAO `inject:""`
}

type teacherService struct {
	TeacherDAO *teacherDAO `inject:""`
	Clazzes    *clazzDAO   `inject:"clazzDAO"`
}

type cycleA struct {
	B *cycleB `inject:""`
}

type cycleB struct {
	A *cycleA `inject:""`
}

func schoolRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, Component[*teacherService](reg, "teacherService"))
	require.NoError(t, Component[*clazzDAO](reg, "clazzDAO"))
	require.NoError(t, Component[*teacherDAO](reg, "teacherDAO"))
	return reg
}

func TestRegister_Validation(t *testing.T) {
	reg := NewRegistry()

	t.Run("EmptyName", func(t *testing.T) {
		err := Component[*teacherDAO](reg, "")
		assert.ErrorIs(t, err, errors2.ErrInvalidComponentSentinel)
		assert.Contains(t, err.Error(), "cannot be empty")
	})

	t.Run("Duplicate", func(t *testing.T) {
		require.NoError(t, Component[*teacherDAO](reg, "dao"))
		err := Component[*clazzDAO](reg, "dao")
		assert.ErrorIs(t, err, errors2.ErrComponentAlreadyExistsSentinel)
	})

	t.Run("DefaultConstructionNeedsStructPointer", func(t *testing.T) {
		err := Component[string](reg, "name")
		assert.ErrorIs(t, err, errors2.ErrInvalidComponentSentinel)
	})

	t.Run("NoTypeNoFactory", func(t *testing.T) {
		err := reg.Register("bare")
		assert.ErrorIs(t, err, errors2.ErrInvalidComponentSentinel)
	})

	t.Run("FrozenAfterNew", func(t *testing.T) {
		_ = New(reg)
		assert.True(t, reg.Frozen())

		err := Component[*teacherDAO](reg, "late")
		assert.ErrorIs(t, err, errors2.ErrRegistryFrozenSentinel)
		assert.False(t, reg.Has("late"))
	})
}

func TestResolve_TransitiveInjection(t *testing.T) {
	c := New(schoolRegistry(t))
	require.NoError(t, c.Start(context.Background()))

	svc, err := Get[*teacherService](c, "teacherService")
	require.NoError(t, err)
	require.NotNil(t, svc.TeacherDAO)
	require.NotNil(t, svc.Clazzes)
	assert.Same(t, svc.TeacherDAO, svc.Clazzes.Teachers)

	byType, err := GetByType[*teacherService](c)
	require.NoError(t, err)
	assert.Same(t, svc, byType)

	assert.Equal(t, []string{"teacherService", "clazzDAO", "teacherDAO"}, c.Names())
}

func TestResolve_SingletonAndPrototype(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, Component[*teacherDAO](reg, "shared"))
	require.NoError(t, Component[*clazzDAO](reg, "fresh", Prototype()))

	c := New(reg)

	a1, _ := c.Resolve("shared")
	a2, _ := c.Resolve("shared")
	assert.Same(t, a1, a2)
	assert.True(t, c.IsSingleton("shared"))

	b1, err := Get[*clazzDAO](c, "fresh")
	require.NoError(t, err)
	b2, err := Get[*clazzDAO](c, "fresh")
	require.NoError(t, err)
	assert.NotSame(t, b1, b2)
	// prototypes still receive singleton dependencies
	assert.Same(t, a1, b1.Teachers)
	assert.False(t, c.IsSingleton("fresh"))
	assert.False(t, c.IsSingleton("unknown"))
}

func TestResolve_NotFound(t *testing.T) {
	c := New(NewRegistry())

	_, err := c.Resolve("missing")
	assert.True(t, errors2.IsComponentNotFound(err))

	_, err = c.ResolveType(TypeOf[*teacherDAO]())
	assert.True(t, errors2.IsComponentNotFound(err))

	_, ok := c.TypeOf("missing")
	assert.False(t, ok)
}

type needsMissing struct {
	Clock fmt.Stringer `inject:"clock"`
}

type optionalDeps struct {
	Clock fmt.Stringer `inject:"clock,optional"`
	DAO   *teacherDAO  `inject:",optional"`
}

func TestResolve_RequiredAndOptionalDependencies(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, Component[*needsMissing](reg, "strict", Lazy()))
	require.NoError(t, Component[*optionalDeps](reg, "lenient"))
	require.NoError(t, Component[*teacherDAO](reg, "teacherDAO"))

	c := New(reg, WithGraphValidation(false))

	_, err := c.Resolve("strict")
	require.Error(t, err)
	assert.True(t, errors2.IsMissingDependency(err))
	assert.True(t, errors2.IsComponentNotFound(err))
	assert.Contains(t, err.Error(), "clock")

	lenient, err := Get[*optionalDeps](c, "lenient")
	require.NoError(t, err)
	assert.Nil(t, lenient.Clock)
	assert.NotNil(t, lenient.DAO)
}

func TestStart_MissingDependencyFailsValidation(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, Component[*needsMissing](reg, "strict"))

	err := New(reg).Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors2.ErrLifecycleErrorSentinel)
	assert.True(t, errors2.IsMissingDependency(err))
}

type writer interface{ Write(string) }

type flusher interface{ Flush() }

type auditLog struct{ flushed int }

func (*auditLog) Write(string) {}
func (a *auditLog) Flush()     { a.flushed++ }

type reporter struct {
	AuditLog flusher `inject:""`
}

func TestResolve_FieldNameFallback(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, Provide[writer](reg, "auditLog", func(Resolver) (writer, error) {
		return &auditLog{}, nil
	}))
	require.NoError(t, Component[*reporter](reg, "reporter"))

	c := New(reg)
	require.NoError(t, c.Start(context.Background()))

	r, err := Get[*reporter](c, "reporter")
	require.NoError(t, err)
	require.NotNil(t, r.AuditLog)

	log, err := Get[writer](c, "auditLog")
	require.NoError(t, err)
	assert.Same(t, log.(*auditLog), r.AuditLog.(*auditLog))
}

func TestResolve_CircularDependency(t *testing.T) {
	newCycle := func() *Registry {
		reg := NewRegistry()
		require.NoError(t, Component[*cycleA](reg, "cycleA"))
		require.NoError(t, Component[*cycleB](reg, "cycleB"))
		return reg
	}

	t.Run("DetectedByGraph", func(t *testing.T) {
		err := New(newCycle()).Start(context.Background())
		require.Error(t, err)
		assert.True(t, errors2.IsCircularDependency(err))
	})

	t.Run("DetectedAtResolution", func(t *testing.T) {
		c := New(newCycle(), WithGraphValidation(false))

		_, err := c.Resolve("cycleA")
		require.Error(t, err)

		var anvilErr *errors2.AnvilError
		require.True(t, errors.As(err, &anvilErr))
		assert.Equal(t, errors2.CodeCircularDependency, anvilErr.Code)
		assert.Equal(t, []string{"cycleA", "cycleB", "cycleA"}, anvilErr.Context["path"])

		// nothing half-built was cached
		assert.False(t, c.Inspect("cycleA").Instantiated)
		assert.False(t, c.Inspect("cycleB").Instantiated)

		_, err = c.Resolve("cycleB")
		assert.True(t, errors2.IsCircularDependency(err))
	})

	t.Run("EagerStartFails", func(t *testing.T) {
		err := New(newCycle(), WithGraphValidation(false)).Start(context.Background())
		require.Error(t, err)
		assert.True(t, errors2.IsCircularDependency(err))
	})
}

type softA struct {
	B *softB `inject:",optional"`
}

type softB struct {
	A *softA `inject:""`
}

func TestResolve_OptionalCycleIsSwallowed(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, Component[*softB](reg, "softB"))
	require.NoError(t, Component[*softA](reg, "softA"))

	c := New(reg)
	require.NoError(t, c.Start(context.Background()))

	b, err := Get[*softB](c, "softB")
	require.NoError(t, err)
	require.NotNil(t, b.A)
	assert.Nil(t, b.A.B)
}

func TestResolve_FactoryPanic(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, Provide[*teacherDAO](reg, "boom", func(Resolver) (*teacherDAO, error) {
		panic("exploded")
	}))
	require.NoError(t, Component[*clazzDAO](reg, "clazzDAO", WithMetadata("k", "v")))

	c := New(reg, WithGraphValidation(false))

	for i := 0; i < 2; i++ {
		_, err := c.Resolve("boom")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exploded")
	}

	// clazzDAO depends on boom by type
	_, err := c.Resolve("clazzDAO")
	assert.Error(t, err)
}

func TestResolve_FactoryError(t *testing.T) {
	boom := errors.New("no connection")
	reg := NewRegistry()
	require.NoError(t, Provide[*teacherDAO](reg, "dao", func(Resolver) (*teacherDAO, error) {
		return nil, boom
	}))

	_, err := New(reg).Resolve("dao")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, &errors2.ComponentError{Component: "dao"})
}

func TestResolve_ConcurrentSingletonConstructedOnce(t *testing.T) {
	var calls atomic.Int32
	reg := NewRegistry()
	require.NoError(t, Provide[*teacherDAO](reg, "dao", func(Resolver) (*teacherDAO, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return &teacherDAO{}, nil
	}))

	c := New(reg)

	const n = 50
	results := make([]any, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inst, err := c.Resolve("dao")
			assert.NoError(t, err)
			results[i] = inst
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestResolve_CrossGoroutineCycleDoesNotDeadlock(t *testing.T) {
	var entered sync.WaitGroup
	entered.Add(2)

	reg := NewRegistry()
	require.NoError(t, Provide[*cycleA](reg, "x", func(r Resolver) (*cycleA, error) {
		entered.Done()
		entered.Wait()
		if _, err := r.Resolve("y"); err != nil {
			return nil, err
		}
		return &cycleA{}, nil
	}))
	require.NoError(t, Provide[*cycleB](reg, "y", func(r Resolver) (*cycleB, error) {
		entered.Done()
		entered.Wait()
		if _, err := r.Resolve("x"); err != nil {
			return nil, err
		}
		return &cycleB{}, nil
	}))

	c := New(reg, WithGraphValidation(false))

	errs := make(chan error, 2)
	for _, name := range []string{"x", "y"} {
		go func(name string) {
			_, err := c.Resolve(name)
			errs <- err
		}(name)
	}

	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			assert.True(t, errors2.IsCircularDependency(err), "got %v", err)
		case <-time.After(5 * time.Second):
			t.Fatal("resolution deadlocked")
		}
	}
}

type settings struct{ dsn string }

func (s *settings) DSN() string { return s.dsn }

func (s *settings) Broken() (*teacherDAO, error) { return nil, errors.New("broken") }

func TestResolve_FactoryMethod(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, Value(reg, "settings", &settings{dsn: "postgres://school"}))
	require.NoError(t, Method[string](reg, "dsn", "settings", "DSN"))
	require.NoError(t, Method[*teacherDAO](reg, "broken", "settings", "Broken", Lazy()))
	require.NoError(t, Method[string](reg, "nosuch", "settings", "Nope", Lazy()))

	c := New(reg)
	require.NoError(t, c.Start(context.Background()))

	dsn, err := Get[string](c, "dsn")
	require.NoError(t, err)
	assert.Equal(t, "postgres://school", dsn)
	assert.Contains(t, c.Inspect("dsn").Dependencies, "settings")

	_, err = c.Resolve("broken")
	assert.ErrorContains(t, err, "broken")

	_, err = c.Resolve("nosuch")
	assert.ErrorIs(t, err, errors2.ErrInvalidComponentSentinel)
}

func TestStart_LazyComponentsAreDeferred(t *testing.T) {
	var built atomic.Bool
	reg := NewRegistry()
	require.NoError(t, Provide[*teacherDAO](reg, "lazy", func(Resolver) (*teacherDAO, error) {
		built.Store(true)
		return &teacherDAO{}, nil
	}, Lazy()))

	c := New(reg)
	require.NoError(t, c.Start(context.Background()))
	assert.False(t, built.Load())
	assert.False(t, c.Inspect("lazy").Instantiated)
	assert.True(t, c.Inspect("lazy").Lazy)

	_, err := c.Resolve("lazy")
	require.NoError(t, err)
	assert.True(t, built.Load())
	assert.True(t, c.Inspect("lazy").Instantiated)
}

func TestStart_LazyCycleSurfacesOnResolve(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, Component[*cycleA](reg, "cycleA", Lazy()))
	require.NoError(t, Component[*cycleB](reg, "cycleB", Lazy()))
	require.NoError(t, Component[*teacherDAO](reg, "teacherDAO"))

	c := New(reg)
	require.NoError(t, c.Start(context.Background()))
	assert.True(t, c.Inspect("teacherDAO").Instantiated)

	_, err := c.Resolve("cycleA")
	require.Error(t, err)
	assert.True(t, errors2.IsCircularDependency(err))
}

func TestStart_LazyMissingDependencySurfacesOnResolve(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, Component[*needsMissing](reg, "lazyMissing", Lazy()))
	require.NoError(t, Component[*teacherDAO](reg, "teacherDAO"))

	c := New(reg)
	require.NoError(t, c.Start(context.Background()))

	_, err := c.Resolve("lazyMissing")
	require.Error(t, err)
	assert.True(t, errors2.IsMissingDependency(err))
}

type needsLazyMissing struct {
	Strict *needsMissing `inject:"lazyMissing"`
}

func TestStart_EagerComponentReachingLazyProblemFails(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, Component[*needsMissing](reg, "lazyMissing", Lazy()))
	require.NoError(t, Component[*needsLazyMissing](reg, "eager"))

	err := New(reg).Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors2.ErrLifecycleErrorSentinel)
	assert.True(t, errors2.IsMissingDependency(err))
}

func TestStart_ConcurrentStartRunsOnce(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var starts atomic.Int32

	reg := NewRegistry()
	require.NoError(t, Value(reg, "slow", &mockService{
		healthy: true,
		onStart: func() {
			starts.Add(1)
			close(entered)
			<-release
		},
	}))

	c := New(reg)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	<-entered
	assert.ErrorIs(t, c.Start(ctx), errors2.ErrContainerStarted)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), starts.Load())
	assert.ErrorIs(t, c.Start(ctx), errors2.ErrContainerStarted)
}

func TestLifecycle_StartAndCloseOrder(t *testing.T) {
	var order []string
	svc := func(name string) *mockService {
		return &mockService{
			name:    name,
			healthy: true,
			onStart: func() { order = append(order, "start:"+name) },
			onStop:  func() { order = append(order, "stop:"+name) },
		}
	}

	reg := NewRegistry()
	require.NoError(t, Value(reg, "db", svc("db")))
	require.NoError(t, Value(reg, "cache", svc("cache")))

	c := New(reg)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	assert.ErrorIs(t, c.Start(ctx), errors2.ErrContainerStarted)

	info := c.Inspect("db")
	assert.True(t, info.Started)
	assert.True(t, info.Healthy)
	assert.Equal(t, "singleton", info.Lifecycle)
	assert.NoError(t, c.Health(ctx))

	require.NoError(t, c.Close(ctx))
	assert.Equal(t, []string{"start:db", "start:cache", "stop:cache", "stop:db"}, order)

	assert.Empty(t, c.Names())
	_, err := c.Resolve("db")
	assert.ErrorIs(t, err, errors2.ErrContainerClosed)
	assert.NoError(t, c.Close(ctx))
	assert.ErrorIs(t, c.Start(ctx), errors2.ErrContainerClosed)
}

func TestLifecycle_StartFailureRollsBack(t *testing.T) {
	first := &mockService{name: "first", healthy: true}
	second := &mockService{name: "second", startErr: errors.New("port in use")}

	reg := NewRegistry()
	require.NoError(t, Value(reg, "first", first))
	require.NoError(t, Value(reg, "second", second))

	c := New(reg)
	err := c.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port in use")

	assert.True(t, first.stopped)
	assert.False(t, c.Inspect("first").Instantiated)
}

func TestLifecycle_CloseCollectsStopErrors(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, Value(reg, "a", &mockService{stopErr: errors.New("a failed")}))
	require.NoError(t, Value(reg, "b", &mockService{stopErr: errors.New("b failed")}))

	c := New(reg)
	require.NoError(t, c.Start(context.Background()))

	err := c.Close(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a failed")
	assert.Contains(t, err.Error(), "b failed")
}

func TestHealth_ReportsUnhealthyComponent(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, Value(reg, "sick", &mockService{healthErr: errors.New("disk full")}))

	c := New(reg)
	require.NoError(t, c.Start(context.Background()))

	err := c.Health(context.Background())
	assert.ErrorContains(t, err, "disk full")
	assert.False(t, c.Inspect("sick").Healthy)
}

type wrapped struct {
	inner any
}

func TestPostProcessor_ReplacesInstance(t *testing.T) {
	var seen []string
	pp := PostProcessorFunc(func(d Descriptor, instance any) (any, error) {
		seen = append(seen, d.Name)
		if d.Metadata["wrap"] == "true" {
			return &wrapped{inner: instance}, nil
		}
		return instance, nil
	})

	reg := NewRegistry()
	require.NoError(t, reg.Register("teacherDAO",
		As[any](),
		WithFactory(func(Resolver) (any, error) { return &teacherDAO{}, nil }),
		WithMetadata("wrap", "true"),
	))
	require.NoError(t, Value(reg, "settings", &settings{}))

	c := New(reg, WithPostProcessor(pp))
	require.NoError(t, c.Start(context.Background()))

	inst, err := c.Resolve("teacherDAO")
	require.NoError(t, err)
	w, ok := inst.(*wrapped)
	require.True(t, ok)
	assert.IsType(t, &teacherDAO{}, w.inner)
	assert.Equal(t, []string{"teacherDAO", "settings"}, seen)
}

func TestResolveAs_TypeMismatch(t *testing.T) {
	c := New(schoolRegistry(t))

	_, err := c.ResolveAs("teacherDAO", TypeOf[*clazzDAO]())
	assert.ErrorIs(t, err, errors2.ErrTypeMismatch)

	inst, err := c.ResolveAs("teacherDAO", TypeOf[*teacherDAO]())
	require.NoError(t, err)
	assert.IsType(t, &teacherDAO{}, inst)

	_, err = Get[*clazzDAO](c, "teacherDAO")
	assert.ErrorIs(t, err, errors2.ErrTypeMismatch)

	assert.Panics(t, func() { Must[*clazzDAO](c, "teacherDAO") })
	assert.NotPanics(t, func() { MustByType[*teacherDAO](c) })
}

func TestMetrics_RecordsResolutions(t *testing.T) {
	m, err := NewMetrics(prometheus.NewRegistry(), "test")
	require.NoError(t, err)

	c := New(schoolRegistry(t), WithMetrics(m))
	require.NoError(t, c.Start(context.Background()))
	_, err = c.Resolve("teacherDAO")
	require.NoError(t, err)
	_, _ = c.Resolve("missing")

	assert.Equal(t, float64(3), testutil.ToFloat64(m.singletons))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.resolutions.WithLabelValues("not_found")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.resolutions.WithLabelValues("cached")), float64(1))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.constructed.WithLabelValues("teacherDAO", "singleton")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.resolved("cached")
		m.cached(1)
	})
}
