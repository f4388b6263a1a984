// Command anvil-demo serves the school API on top of an anvil container.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/xraph/anvil/internal/config"
	"github.com/xraph/anvil/internal/logger"
	"github.com/xraph/anvil/internal/school"
	"github.com/xraph/anvil/internal/tx"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	configPath string
	envFiles   []string
	migrate    bool
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "anvil-demo",
		Short:        "School API wired through the anvil container",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "anvil.yaml", "configuration file")
	flags.StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "env files loaded before the configuration")
	flags.BoolVar(&opts.migrate, "migrate", false, "create the school tables before serving")

	return cmd
}

func serve(ctx context.Context, opts serveOptions) error {
	if err := config.LoadEnvFiles(opts.envFiles...); err != nil {
		return err
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	log := logger.NewLogger(cfg.Logging)
	defer func() { _ = log.Sync() }()

	db, err := tx.Connect(ctx, cfg.DataSource)
	if err != nil {
		return err
	}
	defer db.Close()

	if opts.migrate {
		if err := school.Migrate(ctx, db); err != nil {
			return err
		}
		log.Info("schema migrated")
	}

	a, err := newApp(ctx, cfg, db, log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           newRouter(a),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", logger.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err = <-errCh:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Warn("http shutdown", logger.Error(serr))
	}
	if cerr := a.Close(shutdownCtx); cerr != nil {
		log.Warn("container close", logger.Error(cerr))
	}

	stats := a.manager.Stats()
	log.Info("stopped",
		logger.Int64("tx_committed", stats.Committed),
		logger.Int64("tx_rolled_back", stats.RolledBack),
	)
	return err
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
