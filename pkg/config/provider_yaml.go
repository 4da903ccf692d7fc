package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
}

// Device and controller shapes with YAML tags, converted to the internal
// format after parsing.
type deviceYAML struct {
	Name         string    `yaml:"name"`
	Enabled      *bool     `yaml:"enabled,omitempty"`
	SerialDevice string    `yaml:"serialdevice,omitempty"`
	Baud         int       `yaml:"baud,omitempty"`
	Hostname     string    `yaml:"hostname,omitempty"`
	Port         string    `yaml:"port,omitempty"`
	Sweep        sweepYAML `yaml:"sweep"`
}

type sweepYAML struct {
	Start            uint16 `yaml:"start"`
	End              uint16 `yaml:"end"`
	Step             uint16 `yaml:"step"`
	IntervalMs       int    `yaml:"interval-ms,omitempty"`
	CommandTemplate  string `yaml:"command-template"`
	TargetByteOffset int    `yaml:"target-byte-offset"`
	TxEndianness     string `yaml:"tx-endianness,omitempty"`
	RxByteOffset     int    `yaml:"rx-byte-offset,omitempty"`
	RxEndianness     string `yaml:"rx-endianness,omitempty"`
	StrictValidation bool   `yaml:"strict-validation"`
	TrimConsumedOnly bool   `yaml:"trim-consumed-only,omitempty"`
	AutoStart        bool   `yaml:"auto-start,omitempty"`
}

type controllerYAML struct {
	Type       string          `yaml:"type,omitempty"`
	RESTServer *restServerYAML `yaml:"rest,omitempty"`
}

type restServerYAML struct {
	ListenAddr string `yaml:"listen-addr,omitempty"`
	Port       int    `yaml:"port,omitempty"`
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{filename: filename}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	var yamlConfig struct {
		Devices     []deviceYAML     `yaml:"devices"`
		Controllers []controllerYAML `yaml:"controllers,omitempty"`
	}

	if err := yaml.Unmarshal(cfgFile, &yamlConfig); err != nil {
		return nil, err
	}

	config := &ConfigData{
		Devices:     make([]DeviceData, len(yamlConfig.Devices)),
		Controllers: make([]ControllerData, len(yamlConfig.Controllers)),
	}

	for i, device := range yamlConfig.Devices {
		// Devices are enabled unless the config says otherwise
		enabled := true
		if device.Enabled != nil {
			enabled = *device.Enabled
		}

		config.Devices[i] = DeviceData{
			Name:         device.Name,
			Enabled:      enabled,
			SerialDevice: device.SerialDevice,
			Baud:         device.Baud,
			Hostname:     device.Hostname,
			Port:         device.Port,
			Sweep: SweepData{
				Start:            device.Sweep.Start,
				End:              device.Sweep.End,
				Step:             device.Sweep.Step,
				IntervalMs:       device.Sweep.IntervalMs,
				CommandTemplate:  device.Sweep.CommandTemplate,
				TargetByteOffset: device.Sweep.TargetByteOffset,
				TxEndianness:     device.Sweep.TxEndianness,
				RxByteOffset:     device.Sweep.RxByteOffset,
				RxEndianness:     device.Sweep.RxEndianness,
				StrictValidation: device.Sweep.StrictValidation,
				TrimConsumedOnly: device.Sweep.TrimConsumedOnly,
				AutoStart:        device.Sweep.AutoStart,
			},
		}
	}

	for i, controller := range yamlConfig.Controllers {
		config.Controllers[i] = ControllerData{Type: controller.Type}
		if controller.RESTServer != nil {
			config.Controllers[i].RESTServer = &RESTServerData{
				ListenAddr: controller.RESTServer.ListenAddr,
				Port:       controller.RESTServer.Port,
			}
		}
	}

	return config, nil
}

// GetDevices returns device configurations
func (y *YAMLProvider) GetDevices() ([]DeviceData, error) {
	config, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return config.Devices, nil
}

// GetControllers returns controller configurations
func (y *YAMLProvider) GetControllers() ([]ControllerData, error) {
	config, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return config.Controllers, nil
}

// IsReadOnly returns true: YAML files are not written back
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for the YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}
