// Package app assembles the daemon: event distribution, sweep devices, and
// presentation controllers, with graceful shutdown on signal.
package app

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/freqsweep/freqsweep/internal/events"
	"github.com/freqsweep/freqsweep/internal/log"
	"github.com/freqsweep/freqsweep/internal/managers"
	"github.com/freqsweep/freqsweep/pkg/config"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Event distributor fans controller events out to presentation sinks;
	// the recorder retains the recent log, chart and stats for REST reads
	distributor := events.NewDistributor(ctx, &wg)
	recorder := events.NewRecorder()
	distributor.RegisterSink(recorder)

	// Initialize the device manager
	dm, err := managers.NewDeviceManager(ctx, &wg, a.configProvider, distributor, a.logger)
	if err != nil {
		return err
	}
	go dm.StartDevices()

	// Initialize the controller manager
	cm, err := managers.NewControllerManager(ctx, &wg, a.configProvider, dm, recorder, a.logger)
	if err != nil {
		return err
	}
	if err := cm.StartControllers(); err != nil {
		return err
	}

	log.Info("Application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for all workers to terminate
	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}
