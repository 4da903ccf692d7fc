package config

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider creates a new SQLite configuration provider
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	devices, err := s.GetDevices()
	if err != nil {
		return nil, fmt.Errorf("failed to load devices: %w", err)
	}
	config.Devices = devices

	controllers, err := s.GetControllers()
	if err != nil {
		return nil, fmt.Errorf("failed to load controllers: %w", err)
	}
	config.Controllers = controllers

	return config, nil
}

// GetDevices returns device configurations from the database
func (s *SQLiteProvider) GetDevices() ([]DeviceData, error) {
	query := `
		SELECT name, enabled, serial_device, baud, hostname, port,
		       sweep_start, sweep_end, sweep_step, sweep_interval_ms,
		       command_template, target_byte_offset, tx_endianness,
		       rx_byte_offset, rx_endianness, strict_validation,
		       trim_consumed_only, auto_start
		FROM devices
		ORDER BY name
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var devices []DeviceData
	for rows.Next() {
		var device DeviceData
		var serialDevice, hostname, port sql.NullString
		var baud, intervalMs, rxByteOffset sql.NullInt64
		var txEndianness, rxEndianness sql.NullString
		var trimConsumedOnly, autoStart sql.NullBool

		err := rows.Scan(
			&device.Name, &device.Enabled, &serialDevice, &baud,
			&hostname, &port, &device.Sweep.Start, &device.Sweep.End,
			&device.Sweep.Step, &intervalMs, &device.Sweep.CommandTemplate,
			&device.Sweep.TargetByteOffset, &txEndianness,
			&rxByteOffset, &rxEndianness, &device.Sweep.StrictValidation,
			&trimConsumedOnly, &autoStart,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device row: %w", err)
		}

		if serialDevice.Valid {
			device.SerialDevice = serialDevice.String
		}
		if hostname.Valid {
			device.Hostname = hostname.String
		}
		if port.Valid {
			device.Port = port.String
		}
		if baud.Valid {
			device.Baud = int(baud.Int64)
		}
		if intervalMs.Valid {
			device.Sweep.IntervalMs = int(intervalMs.Int64)
		}
		if txEndianness.Valid {
			device.Sweep.TxEndianness = txEndianness.String
		}
		if rxByteOffset.Valid {
			device.Sweep.RxByteOffset = int(rxByteOffset.Int64)
		}
		if rxEndianness.Valid {
			device.Sweep.RxEndianness = rxEndianness.String
		}
		if trimConsumedOnly.Valid {
			device.Sweep.TrimConsumedOnly = trimConsumedOnly.Bool
		}
		if autoStart.Valid {
			device.Sweep.AutoStart = autoStart.Bool
		}

		devices = append(devices, device)
	}

	return devices, rows.Err()
}

// GetControllers returns controller configurations from the database
func (s *SQLiteProvider) GetControllers() ([]ControllerData, error) {
	query := `
		SELECT type, rest_listen_addr, rest_port
		FROM controllers
		ORDER BY type
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query controllers: %w", err)
	}
	defer rows.Close()

	var controllers []ControllerData
	for rows.Next() {
		var controller ControllerData
		var listenAddr sql.NullString
		var port sql.NullInt64

		if err := rows.Scan(&controller.Type, &listenAddr, &port); err != nil {
			return nil, fmt.Errorf("failed to scan controller row: %w", err)
		}

		if controller.Type == "rest" {
			rest := &RESTServerData{}
			if listenAddr.Valid {
				rest.ListenAddr = listenAddr.String
			}
			if port.Valid {
				rest.Port = int(port.Int64)
			}
			controller.RESTServer = rest
		}

		controllers = append(controllers, controller)
	}

	return controllers, rows.Err()
}

// IsReadOnly returns false: the SQLite backend supports writes
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
