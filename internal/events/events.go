// Package events defines the event types the sweep core emits toward
// presentation clients, along with a distributor that fans events out to
// registered sinks.
package events

import "time"

// Event is anything the core publishes: LogEntry, ChartPoint, StatsSnapshot,
// LiveValue or SweepCompleted.
type Event interface{}

// LogKind classifies a log entry.
type LogKind string

const (
	LogTx    LogKind = "tx"
	LogRx    LogKind = "rx"
	LogInfo  LogKind = "info"
	LogError LogKind = "error"
)

// LogEntry is one line of the device interaction log.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      LogKind   `json:"kind"`
	Text      string    `json:"text"`
}

// ChartPoint is one correlated measurement: the frequency that was pending
// when the measurement arrived, and the decoded value.
type ChartPoint struct {
	FrequencyKHz float64 `json:"frequency_khz"`
	Value        uint16  `json:"value"`
}

// StatsSnapshot reports sweep progress counters.
type StatsSnapshot struct {
	Tx        uint64        `json:"tx"`
	RxValid   uint64        `json:"rx_valid"`
	RxInvalid uint64        `json:"rx_invalid"`
	Elapsed   time.Duration `json:"elapsed"`
}

// LiveState describes what the live-value display should show.
type LiveState string

const (
	LiveOff     LiveState = "off"
	LiveValid   LiveState = "value"
	LiveInvalid LiveState = "invalid"
)

// LiveValue is the most recently received measurement, valid or not.
type LiveValue struct {
	State LiveState `json:"state"`
	Value uint16    `json:"value,omitempty"`
}

// SweepStarted marks the beginning of a new sweep session so sinks can
// reset any retained per-session state.
type SweepStarted struct {
	SessionID string `json:"session_id"`
}

// SweepCompleted announces that a sweep walked its whole range.
type SweepCompleted struct {
	SessionID string        `json:"session_id"`
	Points    int           `json:"points"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Sink receives published events. Receive must not block for long; slow
// sinks cause events to be dropped for everyone behind them.
type Sink interface {
	Receive(Event)
}
