// Package config defines the configuration model for sweep devices and
// presentation controllers, behind a provider interface with YAML and SQLite
// backends.
package config

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetDevices() ([]DeviceData, error)
	GetControllers() ([]ControllerData, error)

	// Configuration management
	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Devices     []DeviceData     `json:"devices"`
	Controllers []ControllerData `json:"controllers,omitempty"`
}

// DeviceData holds configuration for one sweep device
type DeviceData struct {
	Name         string    `json:"name"`
	Enabled      bool      `json:"enabled"`
	SerialDevice string    `json:"serial_device,omitempty"`
	Baud         int       `json:"baud,omitempty"`
	Hostname     string    `json:"hostname,omitempty"`
	Port         string    `json:"port,omitempty"`
	Sweep        SweepData `json:"sweep"`
}

// SweepData holds the sweep parameters for a device. CommandTemplate is hex
// text; the frequency code is written over two bytes at TargetByteOffset.
type SweepData struct {
	Start            uint16 `json:"start"`
	End              uint16 `json:"end"`
	Step             uint16 `json:"step"`
	IntervalMs       int    `json:"interval_ms,omitempty"`
	CommandTemplate  string `json:"command_template"`
	TargetByteOffset int    `json:"target_byte_offset"`
	TxEndianness     string `json:"tx_endianness,omitempty"`
	RxByteOffset     int    `json:"rx_byte_offset,omitempty"`
	RxEndianness     string `json:"rx_endianness,omitempty"`
	StrictValidation bool   `json:"strict_validation"`
	TrimConsumedOnly bool   `json:"trim_consumed_only,omitempty"`
	AutoStart        bool   `json:"auto_start,omitempty"`
}

// ControllerData holds the configuration for presentation controllers
type ControllerData struct {
	Type       string          `json:"type,omitempty"`
	RESTServer *RESTServerData `json:"rest,omitempty"`
}

// RESTServerData configures the REST presentation API
type RESTServerData struct {
	ListenAddr string `json:"listen_addr,omitempty"`
	Port       int    `json:"port,omitempty"`
}
