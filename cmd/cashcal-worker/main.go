package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"cashcal/internal/cli"
	"cashcal/internal/log"
	"cashcal/internal/services"
	"cashcal/internal/worker"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(os.Stdout)
	logger = logger.WithComponent(log.ComponentWorker)
	logger.Info("Starting cashcal-worker")

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	result := cli.OpenBackend(ctx, logger, cfg)
	defer cli.CloseBackend(logger, result)

	// The worker runs projections itself, so it gets no publisher.
	projections := services.NewProjectionService(nil, nil, cfg.ProjectionHorizon)
	w := worker.NewProjectionWorker(result.Directory, projections, logger)

	g, gctx := errgroup.WithContext(ctx)
	if result.Queue != nil {
		g.Go(func() error {
			return result.Queue.ConsumeProjections(gctx, w.HandleProjection)
		})
	} else {
		logger.Info("Skipping AMQP consumption - no broker available, running periodic projections only")
	}
	g.Go(func() error {
		return w.RunPeriodic(gctx, cfg.ProjectionInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped", log.FieldError, err)
		cli.CloseBackend(logger, result)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
