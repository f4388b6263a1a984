package txproxy

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/anvil/internal/logger"
	"github.com/xraph/anvil/internal/tx"
	"github.com/xraph/anvil/internal/validation"
)

const instrumentationName = "github.com/xraph/anvil/internal/txproxy"

type options struct {
	logger         logger.Logger
	tracerProvider trace.TracerProvider
	validator      *validation.Validator
}

// Option configures an Interceptor or a Factory.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTracerProvider sets the provider spans are recorded with. The global
// provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

// WithValidator checks the arguments of every intercepted call with v
// before anything else runs. A rejected call never begins a transaction.
func WithValidator(v *validation.Validator) Option {
	return func(o *options) { o.validator = v }
}

func buildOptions(opts []Option) options {
	o := options{logger: logger.NewNoopLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}
	return o
}

// Interceptor runs the methods of one component under the transaction
// definitions its Attributes declare. Decorators call Invoke (or Call) for
// every method; unmarked methods run directly.
type Interceptor struct {
	manager   *tx.Manager
	component string
	attrs     Attributes
	tracer    trace.Tracer
	logger    logger.Logger
	validator *validation.Validator
}

// NewInterceptor creates an interceptor for component.
func NewInterceptor(manager *tx.Manager, component string, attrs Attributes, opts ...Option) *Interceptor {
	o := buildOptions(opts)
	return newInterceptor(manager, component, attrs, o)
}

func newInterceptor(manager *tx.Manager, component string, attrs Attributes, o options) *Interceptor {
	return &Interceptor{
		manager:   manager,
		component: component,
		attrs:     attrs,
		tracer:    o.tracerProvider.Tracer(instrumentationName),
		logger:    o.logger.Named("txproxy").With(logger.Component(component)),
		validator: o.validator,
	}
}

// Component returns the name of the intercepted component.
func (i *Interceptor) Component() string {
	if i == nil {
		return ""
	}
	return i.component
}

// Attributes returns the markers the interceptor applies.
func (i *Interceptor) Attributes() Attributes {
	if i == nil {
		return Attributes{}
	}
	return i.attrs
}

// Invoke runs call as method. args are the method's arguments; with a
// validator configured they are checked first and a failure is returned
// without calling. Without a marker call runs directly with ctx. Otherwise
// it runs under the marker's definition: success commits, an error is
// handled by the rollback rules and returned unchanged, and a panic rolls
// back before propagating.
func (i *Interceptor) Invoke(ctx context.Context, method string, call tx.TxFunc, args ...any) error {
	if i == nil {
		return call(ctx)
	}
	if i.validator != nil {
		if err := i.validator.Arguments(args...); err != nil {
			i.logger.Debug("arguments rejected",
				logger.String("method", method),
				logger.Error(err),
			)
			return err
		}
	}
	def, ok := i.attrs.Lookup(method)
	if !ok {
		return call(ctx)
	}

	ctx, span := i.tracer.Start(ctx, i.component+"."+method,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("anvil.component", i.component),
			attribute.String("anvil.method", method),
			attribute.String("tx.propagation", def.Propagation.String()),
			attribute.String("tx.isolation", def.Isolation.String()),
			attribute.Bool("tx.read_only", def.ReadOnly),
		),
	)
	defer span.End()

	if def.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, def.Timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			span.SetStatus(codes.Error, fmt.Sprintf("panic: %v", r))
			panic(r)
		}
	}()

	err := i.manager.Execute(ctx, def, call)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		i.logger.Debug("transactional method failed",
			logger.String("method", method),
			logger.Stringer("definition", def),
			logger.Error(err),
		)
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Call is Invoke for methods returning a value.
func Call[T any](ctx context.Context, i *Interceptor, method string, call func(ctx context.Context) (T, error), args ...any) (T, error) {
	var result T
	err := i.Invoke(ctx, method, func(ctx context.Context) error {
		var err error
		result, err = call(ctx)
		return err
	}, args...)
	return result, err
}
