package main

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/xraph/anvil"
	"github.com/xraph/anvil/internal/config"
	"github.com/xraph/anvil/internal/di"
	"github.com/xraph/anvil/internal/logger"
	"github.com/xraph/anvil/internal/metrics"
	"github.com/xraph/anvil/internal/school"
	"github.com/xraph/anvil/internal/tracing"
	"github.com/xraph/anvil/internal/tx"
	"github.com/xraph/anvil/internal/txproxy"
	"github.com/xraph/anvil/internal/validation"
)

// app is the wired runtime behind the HTTP server.
type app struct {
	container anvil.Container
	manager   *tx.Manager
	metrics   *metrics.Registry
	tracing   *tracing.Provider
	log       logger.Logger
}

// newApp builds the container over db, starts it and publishes it through
// the accessor.
func newApp(ctx context.Context, cfg *config.Config, db *sqlx.DB, log logger.Logger) (*app, error) {
	reg := metrics.New(cfg.Metrics)

	containerMetrics, err := di.NewMetrics(reg.Registerer(), reg.Namespace())
	if err != nil {
		return nil, err
	}
	txMetrics, err := tx.NewMetrics(reg.Registerer(), reg.Namespace())
	if err != nil {
		return nil, err
	}

	manager := tx.NewManager(db,
		tx.WithLogger(log),
		tx.WithMetrics(txMetrics),
		tx.WithAcquireTimeout(cfg.DataSource.AcquireTimeout),
		tx.WithDefaultTimeout(cfg.Transactions.DefaultTimeout),
	)

	tp, err := tracing.New(ctx, cfg.Tracing)
	if err != nil {
		return nil, err
	}

	proxyOpts := []txproxy.Option{
		txproxy.WithLogger(log),
		txproxy.WithTracerProvider(tp.TracerProvider()),
	}
	if cfg.Transactions.ValidateArguments {
		proxyOpts = append(proxyOpts, txproxy.WithValidator(validation.Default()))
	}
	factory := txproxy.NewFactory(manager, proxyOpts...)
	school.BindDecorators(factory)

	components := anvil.NewRegistry()
	if err := school.Register(components, db, log); err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	c := anvil.NewContainer(components,
		anvil.WithContainerLogger(log),
		anvil.WithContainerMetrics(containerMetrics),
		anvil.WithPostProcessor(factory),
		anvil.WithGraphValidation(cfg.Container.ValidateGraph),
	)

	startCtx := ctx
	if cfg.Container.StartTimeout > 0 {
		var cancel context.CancelFunc
		startCtx, cancel = context.WithTimeout(ctx, cfg.Container.StartTimeout)
		defer cancel()
	}
	if err := c.Start(startCtx); err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	anvil.SetContainer(c)

	log.Info("container started",
		logger.Strings("components", c.Names()),
		logger.Bool("metrics", reg.Enabled()),
		logger.Bool("tracing", cfg.Tracing.Enabled),
	)

	return &app{container: c, manager: manager, metrics: reg, tracing: tp, log: log}, nil
}

// Close unpublishes and closes the container, then flushes spans.
func (a *app) Close(ctx context.Context) error {
	anvil.ResetContainer()
	return errors.Join(a.container.Close(ctx), a.tracing.Shutdown(ctx))
}
