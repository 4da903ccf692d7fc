package managers

import (
	"context"
	"fmt"
	"sync"

	"github.com/freqsweep/freqsweep/internal/controllers/restserver"
	"github.com/freqsweep/freqsweep/internal/events"
	"github.com/freqsweep/freqsweep/pkg/config"
	"go.uber.org/zap"
)

// Controller is a presentation controller backend.
type Controller interface {
	StartController() error
}

// ControllerManager creates and starts the configured presentation
// controllers.
type ControllerManager struct {
	ctx         context.Context
	wg          *sync.WaitGroup
	logger      *zap.SugaredLogger
	controllers []Controller
}

// NewControllerManager creates a ControllerManager populated with all
// configured controllers.
func NewControllerManager(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, dm *DeviceManager, recorder *events.Recorder, logger *zap.SugaredLogger) (*ControllerManager, error) {
	cfgData, err := configProvider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %v", err)
	}

	cm := &ControllerManager{
		ctx:    ctx,
		wg:     wg,
		logger: logger,
	}

	for _, controllerConfig := range cfgData.Controllers {
		switch controllerConfig.Type {
		case "rest":
			rc := config.RESTServerData{}
			if controllerConfig.RESTServer != nil {
				rc = *controllerConfig.RESTServer
			}

			handles, defaultDevice := buildDeviceHandles(dm)
			restController, err := restserver.NewController(ctx, wg, rc, handles, defaultDevice, recorder, logger)
			if err != nil {
				return nil, fmt.Errorf("could not create REST controller: %w", err)
			}
			cm.controllers = append(cm.controllers, restController)
		default:
			return nil, fmt.Errorf("unknown controller type: %s", controllerConfig.Type)
		}
	}

	return cm, nil
}

// StartControllers starts every configured controller.
func (cm *ControllerManager) StartControllers() error {
	for _, controller := range cm.controllers {
		if err := controller.StartController(); err != nil {
			return err
		}
	}
	return nil
}

// buildDeviceHandles maps the managed devices into the narrow handles the
// REST controller operates on. The first device in name order is the
// default target for requests that don't name one.
func buildDeviceHandles(dm *DeviceManager) (map[string]restserver.DeviceHandle, string) {
	handles := make(map[string]restserver.DeviceHandle)
	var defaultDevice string

	for _, name := range dm.Names() {
		device, _ := dm.Device(name)
		handles[name] = restserver.DeviceHandle{
			Controller:    device.Controller(),
			DefaultConfig: device.SweepConfig(),
		}
		if defaultDevice == "" {
			defaultDevice = name
		}
	}

	return handles, defaultDevice
}
