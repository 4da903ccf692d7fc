// Package restserver exposes the sweep core to presentation clients over a
// REST API: sweep control, chart points, statistics, the event log, and
// one-shot raw sends.
package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/freqsweep/freqsweep/internal/events"
	"github.com/freqsweep/freqsweep/internal/log"
	"github.com/freqsweep/freqsweep/internal/sweep"
	"github.com/freqsweep/freqsweep/pkg/config"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// DeviceHandle is the narrow view of a device the REST API operates on.
type DeviceHandle struct {
	Controller    *sweep.Controller
	DefaultConfig sweep.Config
}

// Controller represents the REST server controller
type Controller struct {
	ctx           context.Context
	wg            *sync.WaitGroup
	restConfig    config.RESTServerData
	Server        http.Server
	devices       map[string]DeviceHandle
	defaultDevice string
	recorder      *events.Recorder
	logger        *zap.SugaredLogger
	handlers      *Handlers
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, rc config.RESTServerData, devices map[string]DeviceHandle, defaultDevice string, recorder *events.Recorder, logger *zap.SugaredLogger) (*Controller, error) {
	if len(devices) == 0 {
		return nil, fmt.Errorf("REST server requires at least one configured device")
	}
	if _, ok := devices[defaultDevice]; !ok {
		return nil, fmt.Errorf("default device %q is not a configured device", defaultDevice)
	}

	ctrl := &Controller{
		ctx:           ctx,
		wg:            wg,
		restConfig:    rc,
		devices:       devices,
		defaultDevice: defaultDevice,
		recorder:      recorder,
		logger:        logger,
	}

	if rc.ListenAddr == "" {
		logger.Info("rest.listen-addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		rc.ListenAddr = "0.0.0.0"
	}
	if rc.Port == 0 {
		logger.Info("rest.port not provided; defaulting to 8080")
		rc.Port = 8080
	}

	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", rc.ListenAddr, rc.Port)
	ctrl.Server.Handler = ctrl.setupRouter()

	return ctrl, nil
}

// setupRouter wires the API routes.
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/devices", c.handlers.handleDevices).Methods(http.MethodGet)
	api.HandleFunc("/sweep/start", c.handlers.handleSweepStart).Methods(http.MethodPost)
	api.HandleFunc("/sweep/stop", c.handlers.handleSweepStop).Methods(http.MethodPost)
	api.HandleFunc("/send", c.handlers.handleSendOnce).Methods(http.MethodPost)
	api.HandleFunc("/chart", c.handlers.handleChart).Methods(http.MethodGet)
	api.HandleFunc("/stats", c.handlers.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/log", c.handlers.handleLog).Methods(http.MethodGet)
	api.HandleFunc("/live", c.handlers.handleLive).Methods(http.MethodGet)
	api.HandleFunc("/summary", c.handlers.handleSummary).Methods(http.MethodGet)

	return router
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	log.Info("Starting REST server controller...")
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
			log.Errorf("REST server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		log.Info("Shutting down the REST server...")
		c.Server.Shutdown(context.Background())
	}()

	return nil
}

// device resolves the device a request targets: ?device=name, or the default.
func (c *Controller) device(req *http.Request) (DeviceHandle, error) {
	name := req.URL.Query().Get("device")
	if name == "" {
		name = c.defaultDevice
	}
	handle, ok := c.devices[name]
	if !ok {
		return DeviceHandle{}, fmt.Errorf("unknown device %q", name)
	}
	return handle, nil
}
