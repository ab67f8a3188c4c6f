package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"uangku/internal/backend"
	"uangku/internal/config"
	"uangku/internal/log"
	"uangku/internal/worker"
)

const statsInterval = 5 * time.Minute

func newWorkerCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Apply queued mirror messages to Google Sheets",
		Long: `worker consumes the mirror queue filled by "uangku serve" when
REMOTE_BACKEND=queued and applies each message to the spreadsheet with
bounded retries. Malformed messages are dropped, transient failures are
requeued.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadAndValidateConfig(root.envFile)
			if err != nil {
				return err
			}
			if !cfg.NeedsAMQP() {
				return fmt.Errorf("worker requires REMOTE_BACKEND=%s, got %q", config.BackendQueued, cfg.RemoteBackend)
			}
			logger := SetupLogger(cfg, root.debug)
			ctx, cancel := SignalContext(cmd.Context(), logger)
			defer cancel()
			return runWorker(ctx, cfg, logger)
		},
	}
}

func runWorker(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	logger.Info("Starting uangku worker", log.FieldOperation, log.OpStartup, log.FieldQueue, cfg.AMQPQueue)

	factory := backend.NewFactory(logger)
	sheets, err := factory.CreateSheets(ctx, cfg)
	if err != nil {
		return err
	}
	if err := sheets.EnsureHeader(ctx); err != nil {
		logger.Warn("Could not verify sheet header", log.FieldError, err.Error())
	}

	client, err := factory.CreateAMQP(cfg)
	if err != nil {
		return err
	}
	defer closeWith(logger, "AMQP client", client.Close)

	mirror := worker.NewMirrorWorker(sheets, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return mirror.Run(gctx, client)
	})
	g.Go(func() error {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				st := mirror.Stats()
				logger.Info("Mirror worker stats", "applied", st.Applied, "dropped", st.Dropped, "failed", st.Failed, "stale", st.Stale)
			}
		}
	})

	err = g.Wait()
	st := mirror.Stats()
	logger.Info("Worker stopped", log.FieldOperation, log.OpShutdown, "applied", st.Applied, "dropped", st.Dropped, "failed", st.Failed, "stale", st.Stale)
	return err
}
