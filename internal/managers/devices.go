// Package managers wires configured devices and presentation controllers
// into running components.
package managers

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/freqsweep/freqsweep/internal/devices"
	"github.com/freqsweep/freqsweep/internal/devices/sweeper"
	"github.com/freqsweep/freqsweep/internal/events"
	"github.com/freqsweep/freqsweep/pkg/config"
	"go.uber.org/zap"
)

// DeviceManager creates and starts all configured sweep devices.
type DeviceManager struct {
	ctx            context.Context
	wg             *sync.WaitGroup
	configProvider config.ConfigProvider
	distributor    *events.Distributor
	logger         *zap.SugaredLogger

	mu      sync.RWMutex
	devices map[string]devices.SweepDevice
}

// NewDeviceManager creates a DeviceManager populated with all enabled
// devices from the configuration.
func NewDeviceManager(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, distributor *events.Distributor, logger *zap.SugaredLogger) (*DeviceManager, error) {
	cfgData, err := configProvider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %v", err)
	}

	dm := &DeviceManager{
		ctx:            ctx,
		wg:             wg,
		configProvider: configProvider,
		distributor:    distributor,
		logger:         logger,
		devices:        make(map[string]devices.SweepDevice),
	}

	for _, deviceConfig := range cfgData.Devices {
		if !deviceConfig.Enabled {
			logger.Infof("Skipping disabled device [%s]", deviceConfig.Name)
			continue
		}
		device, err := sweeper.NewDevice(ctx, wg, deviceConfig, distributor, logger)
		if err != nil {
			return nil, fmt.Errorf("error creating sweep device [%s]: %w", deviceConfig.Name, err)
		}
		dm.devices[deviceConfig.Name] = device
	}

	return dm, nil
}

// StartDevices starts every managed device.
func (m *DeviceManager) StartDevices() error {
	for name, device := range m.devices {
		m.logger.Infof("Starting sweep device [%v]...", name)
		if err := device.StartDevice(); err != nil {
			return fmt.Errorf("failed to start sweep device [%s]: %w", name, err)
		}
	}
	return nil
}

// Device returns the named device.
func (m *DeviceManager) Device(name string) (devices.SweepDevice, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	device, ok := m.devices[name]
	return device, ok
}

// Names returns the managed device names in sorted order.
func (m *DeviceManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.devices))
	for name := range m.devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
