package events

import "sync"

// defaultLogCapacity bounds the in-memory log ring.
const defaultLogCapacity = 500

// Recorder is a Sink that retains the recent event log, the current chart,
// and the latest stats and live value so that REST clients can poll them.
type Recorder struct {
	mu          sync.RWMutex
	logCapacity int
	logEntries  []LogEntry
	chart       []ChartPoint
	stats       StatsSnapshot
	live        LiveValue
	completed   *SweepCompleted
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		logCapacity: defaultLogCapacity,
		live:        LiveValue{State: LiveOff},
	}
}

// Receive implements Sink.
func (r *Recorder) Receive(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e := ev.(type) {
	case LogEntry:
		r.logEntries = append(r.logEntries, e)
		if len(r.logEntries) > r.logCapacity {
			r.logEntries = r.logEntries[len(r.logEntries)-r.logCapacity:]
		}
	case ChartPoint:
		r.chart = append(r.chart, e)
	case StatsSnapshot:
		r.stats = e
	case LiveValue:
		r.live = e
	case SweepCompleted:
		completed := e
		r.completed = &completed
	case SweepStarted:
		// A new sweep invalidates the previous chart and completion marker.
		r.chart = nil
		r.completed = nil
		r.live = LiveValue{State: LiveOff}
	}
}

// Log returns a copy of the retained log entries, oldest first.
func (r *Recorder) Log() []LogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]LogEntry, len(r.logEntries))
	copy(out, r.logEntries)
	return out
}

// Chart returns a copy of the chart points collected so far.
func (r *Recorder) Chart() []ChartPoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ChartPoint, len(r.chart))
	copy(out, r.chart)
	return out
}

// Stats returns the most recent stats snapshot.
func (r *Recorder) Stats() StatsSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// Live returns the most recent live value.
func (r *Recorder) Live() LiveValue {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.live
}

// Completed returns the completion event of the current session, if any.
func (r *Recorder) Completed() (SweepCompleted, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.completed == nil {
		return SweepCompleted{}, false
	}
	return *r.completed, true
}
