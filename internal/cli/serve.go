package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"uangku/internal/backend"
	"uangku/internal/cache"
	"uangku/internal/config"
	apphttp "uangku/internal/http"
	"uangku/internal/log"
	"uangku/internal/services"
)

const shutdownTimeout = 30 * time.Second

type serveOptions struct {
	*rootOptions
	port      string
	rateLimit int
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ledger HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadAndValidateConfig(opts.envFile)
			if err != nil {
				return err
			}
			if opts.port != "" {
				cfg.Port = opts.port
			}
			logger := SetupLogger(cfg, opts.debug)
			ctx, cancel := SignalContext(cmd.Context(), logger)
			defer cancel()
			return runServe(ctx, cfg, logger, opts.rateLimit)
		},
	}
	cmd.Flags().StringVar(&opts.port, "port", "", "listen port (overrides PORT)")
	cmd.Flags().IntVar(&opts.rateLimit, "rate-limit", 120, "requests per minute per client, negative disables")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, logger *log.Logger, rateLimit int) error {
	logger.Info("Starting uangku server", log.FieldOperation, log.OpStartup, "port", cfg.Port)

	budgets, err := services.LoadBudgets(cfg.BudgetsFile)
	if err != nil {
		return fmt.Errorf("load budgets: %w", err)
	}

	res, err := backend.NewFactory(logger).CreateRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeWith(logger, "backend", res.Cleanup)

	ledger := services.NewLedger(res.Repository,
		services.WithHistoryLimit(cfg.HistoryLimit),
		services.WithSessionLimit(cfg.SessionLimit, cfg.SessionIdle),
		services.WithBudgets(budgets...),
		services.WithLogger(logger))

	caches := cache.NewManager(logger)
	caches.Register(ledger.SummaryCache())
	caches.Register(ledger.SessionCache())
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	srv := apphttp.NewServer(":"+cfg.Port, ledger, logger, apphttp.Options{RateLimitPerMinute: rateLimit})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on :%s: %w", cfg.Port, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("Shutting down server", log.FieldOperation, log.OpShutdown)
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("Server stopped", "sessions", ledger.Sessions())
	return err
}
