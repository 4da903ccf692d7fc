package transport

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// dialTimeout bounds the TCP connection attempt.
const dialTimeout = 10 * time.Second

// TCP is a Transport over a network socket, for devices hanging off a
// serial-to-ethernet bridge.
type TCP struct {
	addr string

	mu   sync.Mutex
	conn net.Conn
}

// NewTCP creates a TCP transport for host:port.
func NewTCP(hostname, port string) *TCP {
	return &TCP{addr: net.JoinHostPort(hostname, port)}
}

// Open dials the device.
func (t *TCP) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return nil
	}

	conn, err := net.DialTimeout("tcp", t.addr, dialTimeout)
	if err != nil {
		return fmt.Errorf("could not connect to %v: %w", t.addr, err)
	}
	t.conn = conn
	return nil
}

func (t *TCP) Read(p []byte) (int, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return 0, ErrNotOpen
	}
	return conn.Read(p)
}

func (t *TCP) Write(p []byte) (int, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return 0, ErrNotOpen
	}
	return conn.Write(p)
}

// Close closes the connection. A later Open redials.
func (t *TCP) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

// Describe implements Transport.
func (t *TCP) Describe() string {
	return fmt.Sprintf("tcp %s", t.addr)
}
