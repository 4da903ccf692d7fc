package transport

import (
	"fmt"
	"io"
	"sync"

	serial "github.com/tarm/goserial"
)

// defaultBaud applies when the device config does not set a rate.
const defaultBaud = 9600

// Serial is a Transport over a local serial port.
type Serial struct {
	device string
	baud   int

	mu   sync.Mutex
	port io.ReadWriteCloser
}

// NewSerial creates a serial transport for the named device.
func NewSerial(device string, baud int) *Serial {
	if baud == 0 {
		baud = defaultBaud
	}
	return &Serial{device: device, baud: baud}
}

// Open opens the serial port.
func (s *Serial) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port != nil {
		return nil
	}

	port, err := serial.OpenPort(&serial.Config{Name: s.device, Baud: s.baud})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.device, err)
	}
	s.port = port
	return nil
}

func (s *Serial) Read(p []byte) (int, error) {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()

	if port == nil {
		return 0, ErrNotOpen
	}
	return port.Read(p)
}

func (s *Serial) Write(p []byte) (int, error) {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()

	if port == nil {
		return 0, ErrNotOpen
	}
	return port.Write(p)
}

// Close closes the port. A later Open reopens it.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

// Describe implements Transport.
func (s *Serial) Describe() string {
	return fmt.Sprintf("serial %s @ %d baud", s.device, s.baud)
}
