// Package sweeper implements the serial/TCP sweep device driver: it owns the
// transport connection, feeds received chunks into the sweep controller, and
// reconnects when the link drops.
package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/freqsweep/freqsweep/internal/devices"
	"github.com/freqsweep/freqsweep/internal/log"
	"github.com/freqsweep/freqsweep/internal/sweep"
	"github.com/freqsweep/freqsweep/internal/transport"
	"github.com/freqsweep/freqsweep/internal/wire"
	"github.com/freqsweep/freqsweep/pkg/config"
	"go.uber.org/zap"
)

// reconnectWait paces reconnection attempts after a transport failure.
const reconnectWait = 5 * time.Second

// readBufferSize is the chunk size handed to the reassembler. Chunks of any
// size are fine; this just bounds a single read.
const readBufferSize = 512

// Device drives one sweep device over a serial port or TCP socket.
type Device struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	config     config.DeviceData
	trans      transport.Transport
	controller *sweep.Controller
	sweepCfg   sweep.Config
	logger     *zap.SugaredLogger

	connecting   bool
	connectingMu sync.RWMutex
	connected    bool
	connectedMu  sync.RWMutex
}

// NewDevice builds a sweep device from configuration. The publisher receives
// all events the device's controller emits.
func NewDevice(ctx context.Context, wg *sync.WaitGroup, cfg config.DeviceData, pub sweep.Publisher, logger *zap.SugaredLogger) (devices.SweepDevice, error) {
	if cfg.SerialDevice == "" && (cfg.Hostname == "" || cfg.Port == "") {
		return nil, fmt.Errorf("device [%s] must define either a serial device or hostname+port", cfg.Name)
	}

	sweepCfg, err := BuildSweepConfig(cfg.Sweep)
	if err != nil {
		return nil, fmt.Errorf("device [%s]: %w", cfg.Name, err)
	}

	d := &Device{
		ctx:      ctx,
		wg:       wg,
		config:   cfg,
		sweepCfg: sweepCfg,
		logger:   logger,
	}

	if cfg.SerialDevice != "" {
		log.Infof("Configuring sweep device [%s] via serial port...", cfg.Name)
		d.trans = transport.NewSerial(cfg.SerialDevice, cfg.Baud)
	} else {
		log.Infof("Configuring sweep device [%s] via TCP/IP", cfg.Name)
		d.trans = transport.NewTCP(cfg.Hostname, cfg.Port)
	}

	d.controller = sweep.NewController(d, pub, sweepCfg, logger)

	return d, nil
}

// DeviceName returns the configured device name.
func (d *Device) DeviceName() string {
	return d.config.Name
}

// Controller returns the device's sweep controller.
func (d *Device) Controller() *sweep.Controller {
	return d.controller
}

// SweepConfig returns the configured default sweep parameters.
func (d *Device) SweepConfig() sweep.Config {
	return d.sweepCfg
}

// StartDevice connects to the device and launches the read-loop goroutine.
func (d *Device) StartDevice() error {
	log.Infof("Starting sweep device [%v]...", d.config.Name)

	d.connect()

	d.wg.Add(1)
	go d.readLoop()

	if d.config.Sweep.AutoStart {
		if err := d.controller.Start(d.sweepCfg); err != nil {
			d.logger.Errorf("auto-start sweep on [%s] failed: %v", d.config.Name, err)
		}
	}

	return nil
}

// Write sends bytes to the device and logs them. Implements io.Writer for
// the sweep controller.
func (d *Device) Write(p []byte) (int, error) {
	if d.logger != nil && len(p) > 0 {
		d.logger.Debugf("writing to device [%s]: %s", d.config.Name, wire.ToHex(p))
	}

	nn, err := d.trans.Write(p)
	if err != nil {
		d.logger.Errorf("error writing to device [%s]: %v", d.config.Name, err)
	}
	return nn, err
}

// connect opens the transport, retrying until it succeeds or the context is
// cancelled.
func (d *Device) connect() {
	d.connectingMu.RLock()
	if d.connecting {
		d.connectingMu.RUnlock()
		d.logger.Info("skipping reconnect since a connection attempt is already in progress")
		return
	}

	d.connectingMu.RUnlock()
	d.connectingMu.Lock()
	d.connecting = true
	d.connectingMu.Unlock()

	d.logger.Infof("connecting to %v ...", d.trans.Describe())

	for {
		err := d.trans.Open()
		if err == nil {
			d.connectedMu.Lock()
			d.connected = true
			d.connectedMu.Unlock()

			d.connectingMu.Lock()
			d.connecting = false
			d.connectingMu.Unlock()
			return
		}

		d.logger.Errorf("could not connect to %v: %v", d.trans.Describe(), err)
		d.logger.Errorf("sleeping %v and trying again", reconnectWait)

		select {
		case <-d.ctx.Done():
			d.logger.Info("cancellation request received during connect wait")
			d.connectingMu.Lock()
			d.connecting = false
			d.connectingMu.Unlock()
			return
		case <-time.After(reconnectWait):
			// Continue to next iteration
		}
	}
}

// readLoop reads chunks from the transport and feeds them into the
// controller until cancellation. A read error aborts any running sweep and
// triggers a reconnect.
func (d *Device) readLoop() {
	defer d.wg.Done()
	log.Infof("starting read loop for device [%v]", d.config.Name)

	buf := make([]byte, readBufferSize)
	for {
		select {
		case <-d.ctx.Done():
			log.Infof("cancellation request received. Cancelling read loop for [%v]", d.config.Name)
			d.controller.Stop()
			d.trans.Close()
			return
		default:
		}

		n, err := d.trans.Read(buf)
		if err != nil {
			// Don't reconnect when we're shutting down
			select {
			case <-d.ctx.Done():
				continue
			default:
			}

			d.logger.Errorf("read error on device [%s]: %v", d.config.Name, err)
			d.controller.Stop()

			d.connectedMu.Lock()
			d.connected = false
			d.connectedMu.Unlock()

			d.trans.Close()
			d.logger.Info("attempting to reconnect...")
			d.connect()
			continue
		}

		if n > 0 {
			d.controller.Ingest(buf[:n])
		}
	}
}

// BuildSweepConfig converts configuration data into a sweep.Config, parsing
// the hex command template and endianness names.
func BuildSweepConfig(data config.SweepData) (sweep.Config, error) {
	template, err := wire.ParseHex(data.CommandTemplate)
	if err != nil {
		return sweep.Config{}, fmt.Errorf("bad command template: %w", err)
	}

	txEnd, err := wire.ParseEndianness(data.TxEndianness)
	if err != nil {
		return sweep.Config{}, fmt.Errorf("bad tx endianness: %w", err)
	}

	rxEnd, err := wire.ParseEndianness(data.RxEndianness)
	if err != nil {
		return sweep.Config{}, fmt.Errorf("bad rx endianness: %w", err)
	}

	// Reject bad offsets here rather than at sweep start: the receive path
	// parses replies with this config before any sweep runs.
	if data.TargetByteOffset < 0 {
		return sweep.Config{}, fmt.Errorf("bad target byte offset %d: must not be negative", data.TargetByteOffset)
	}
	if data.RxByteOffset < 0 {
		return sweep.Config{}, fmt.Errorf("bad rx byte offset %d: must not be negative", data.RxByteOffset)
	}

	return sweep.Config{
		Start:            data.Start,
		End:              data.End,
		Step:             data.Step,
		Interval:         time.Duration(data.IntervalMs) * time.Millisecond,
		Template:         template,
		TargetOffset:     data.TargetByteOffset,
		TxEndianness:     txEnd,
		Strict:           data.StrictValidation,
		RxOffset:         data.RxByteOffset,
		RxEndianness:     rxEnd,
		TrimConsumedOnly: data.TrimConsumedOnly,
	}, nil
}
