package sweep

import (
	"time"

	"github.com/google/uuid"
)

// Session is the mutable state of one sweep run. A new Start always creates
// a fresh session; a stopped or completed session is never resumed.
type Session struct {
	ID string

	// Counter is the current frequency code. Held as uint32 so stepping past
	// the top of the 16-bit range terminates instead of wrapping.
	Counter uint32

	// PendingKHz is the frequency derived from the command currently
	// awaiting a reply. Valid only while HasPending is set.
	PendingKHz float64
	HasPending bool

	// LastSent is the exact byte sequence of the most recent command, kept
	// for verbatim retransmission on the retry path.
	LastSent []byte

	Waiting  bool
	Retrying bool

	Tx        uint64
	StartedAt time.Time
}

func newSession(start uint16) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Counter:   uint32(start),
		StartedAt: time.Now(),
	}
}

// FrequencyKHz maps a frequency code onto the device's output range: the
// full 16-bit code space spans 0-32000 kHz.
func FrequencyKHz(code uint32) float64 {
	return float64(code) / 65536.0 * 32000.0
}
