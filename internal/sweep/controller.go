// Package sweep implements the lock-step sweep controller: a periodic tick
// loop that walks a frequency range, transmits one command per tick, and
// correlates each validated reply with the frequency that produced it.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/freqsweep/freqsweep/internal/events"
	"github.com/freqsweep/freqsweep/internal/frame"
	"github.com/freqsweep/freqsweep/internal/wire"
	"go.uber.org/zap"
)

// State is the sweep controller lifecycle state.
type State int

const (
	Idle State = iota
	Running
	Completed
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Completed:
		return "completed"
	}
	return "idle"
}

var (
	// ErrInvalidRange is returned by Start when start > end or step == 0.
	ErrInvalidRange = errors.New("invalid sweep range: start must not exceed end and step must be positive")
	// ErrInvalidTemplate is returned when the command template is too short
	// to hold the frequency code at the target offset.
	ErrInvalidTemplate = errors.New("invalid command template: too short for target byte offset")
	// ErrInvalidOffset is returned when a byte offset is negative.
	ErrInvalidOffset = errors.New("invalid byte offset: offsets must not be negative")
	// ErrSweepRunning is returned by Start while a sweep is already running.
	ErrSweepRunning = errors.New("a sweep is already running")
)

// DefaultInterval paces the tick loop when the config does not set one.
const DefaultInterval = 100 * time.Millisecond

// Config is the immutable per-run sweep configuration.
type Config struct {
	Start uint16
	End   uint16
	Step  uint16

	// Interval is the tick period; it is the sweep's only pacing mechanism.
	Interval time.Duration

	// Template is the outbound command; the frequency code is written over
	// two bytes at TargetOffset on every tick.
	Template     []byte
	TargetOffset int
	TxEndianness wire.Endianness

	// Strict enables framed reply validation and the retry path. RxOffset
	// and TrimConsumedOnly only apply when Strict is off.
	Strict           bool
	RxOffset         int
	RxEndianness     wire.Endianness
	TrimConsumedOnly bool
}

func (c Config) validate() error {
	if c.Start > c.End || c.Step == 0 {
		return ErrInvalidRange
	}
	if c.TargetOffset < 0 || c.RxOffset < 0 {
		return ErrInvalidOffset
	}
	if len(c.Template) < c.TargetOffset+2 {
		return ErrInvalidTemplate
	}
	return nil
}

func (c Config) frameConfig() frame.Config {
	return frame.Config{
		Strict:           c.Strict,
		RxOffset:         c.RxOffset,
		RxEndianness:     c.RxEndianness,
		TrimConsumedOnly: c.TrimConsumedOnly,
	}
}

// Publisher receives the events the controller emits. Implementations must
// not block.
type Publisher interface {
	Publish(events.Event)
}

// Controller drives sweeps over a transport writer. The tick handler and the
// receive path share one mutex, so a tick and an ingest never interleave.
type Controller struct {
	mu      sync.Mutex
	state   State
	cfg     Config
	writer  io.Writer
	pub     Publisher
	logger  *zap.SugaredLogger
	reasm   *frame.Reassembler
	session *Session
	chart   []events.ChartPoint
	summary *Summary

	// gen invalidates ticker goroutines from prior sessions: a stale ticker
	// that fires between cancellation and exit must not drive a new session.
	gen         uint64
	cancelTicks context.CancelFunc
	tickerDone  chan struct{}
}

// NewController creates an idle controller. The initial config is used to
// parse replies that arrive outside a sweep (after SendOnce, for instance);
// Start replaces it.
func NewController(writer io.Writer, pub Publisher, cfg Config, logger *zap.SugaredLogger) *Controller {
	return &Controller{
		state:  Idle,
		cfg:    cfg,
		writer: writer,
		pub:    pub,
		logger: logger,
		reasm:  frame.NewReassembler(cfg.frameConfig()),
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Chart returns a copy of the chart points collected by the current session.
func (c *Controller) Chart() []events.ChartPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]events.ChartPoint, len(c.chart))
	copy(out, c.chart)
	return out
}

// Stats returns a snapshot of the transmit and receive counters.
func (c *Controller) Stats() events.StatsSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statsLocked()
}

// Summary returns the completed sweep's summary, if one has completed.
func (c *Controller) Summary() (Summary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.summary == nil {
		return Summary{}, false
	}
	return *c.summary, true
}

// Start validates the config, resets all session state, and begins ticking.
func (c *Controller) Start(cfg Config) error {
	c.mu.Lock()

	if c.state == Running {
		c.mu.Unlock()
		return ErrSweepRunning
	}
	if err := cfg.validate(); err != nil {
		c.emitLocked(events.LogEntry{Timestamp: time.Now(), Kind: events.LogError, Text: fmt.Sprintf("sweep not started: %v", err)})
		c.mu.Unlock()
		return err
	}

	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}

	c.cfg = cfg
	c.reasm = frame.NewReassembler(cfg.frameConfig())
	c.session = newSession(cfg.Start)
	c.chart = nil
	c.summary = nil
	c.state = Running
	c.gen++

	ctx, cancel := context.WithCancel(context.Background())
	c.cancelTicks = cancel
	c.tickerDone = make(chan struct{})

	c.emitLocked(events.SweepStarted{SessionID: c.session.ID})
	c.emitLocked(events.LogEntry{
		Timestamp: time.Now(),
		Kind:      events.LogInfo,
		Text: fmt.Sprintf("sweep started: %#04x..%#04x step %d, interval %v, strict=%v",
			cfg.Start, cfg.End, cfg.Step, cfg.Interval, cfg.Strict),
	})
	c.emitLocked(c.statsLocked())

	gen := c.gen
	done := c.tickerDone
	c.mu.Unlock()

	go c.runTicker(ctx, done, gen, cfg.Interval)

	return nil
}

// Stop cancels a running sweep. It returns after the ticker goroutine has
// exited, so no tick fires once Stop has returned. Collected chart points
// are retained.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state != Running {
		c.mu.Unlock()
		return
	}

	c.state = Idle
	c.clearTransientLocked()
	cancel := c.cancelTicks
	done := c.tickerDone
	c.cancelTicks = nil
	c.tickerDone = nil
	c.emitLocked(events.LogEntry{Timestamp: time.Now(), Kind: events.LogInfo, Text: "sweep stopped"})
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// SendOnce transmits raw bytes outside a sweep, for manual probing.
func (c *Controller) SendOnce(cmd []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.writer.Write(cmd); err != nil {
		c.emitLocked(events.LogEntry{Timestamp: time.Now(), Kind: events.LogError, Text: fmt.Sprintf("send failed: %v", err)})
		return fmt.Errorf("error writing command: %w", err)
	}
	c.emitLocked(events.LogEntry{Timestamp: time.Now(), Kind: events.LogTx, Text: wire.ToHex(cmd)})
	return nil
}

// runTicker fires tick once per interval until cancelled. Cancellation is
// re-checked after each timer pop so a Stop that races the timer wins.
func (c *Controller) runTicker(ctx context.Context, done chan struct{}, gen uint64, interval time.Duration) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case <-ctx.Done():
				return
			default:
			}
			c.tick(gen)
		}
	}
}

// tick performs one step of the sweep: retry, complete, or advance-and-send.
func (c *Controller) tick(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Running || gen != c.gen {
		return
	}
	s := c.session

	// Retry path: the last command is still unanswered. Retransmit it
	// verbatim and keep waiting. There is deliberately no retry bound; the
	// operator stops a sweep that never gets a valid reply.
	if c.cfg.Strict && s.Waiting {
		s.Retrying = true
		if _, err := c.writer.Write(s.LastSent); err != nil {
			c.abortLocked(fmt.Errorf("retransmit failed: %w", err))
			return
		}
		c.emitLocked(events.LogEntry{
			Timestamp: time.Now(),
			Kind:      events.LogTx,
			Text:      fmt.Sprintf("retry: %s", wire.ToHex(s.LastSent)),
		})
		return
	}
	s.Retrying = false

	if s.Counter > uint32(c.cfg.End) {
		c.completeLocked()
		return
	}

	if len(c.cfg.Template) < c.cfg.TargetOffset+2 {
		c.abortLocked(ErrInvalidTemplate)
		return
	}

	cmd := make([]byte, len(c.cfg.Template))
	copy(cmd, c.cfg.Template)
	b1, b2 := wire.Encode16(uint16(s.Counter), c.cfg.TxEndianness)
	cmd[c.cfg.TargetOffset] = b1
	cmd[c.cfg.TargetOffset+1] = b2

	if _, err := c.writer.Write(cmd); err != nil {
		c.abortLocked(fmt.Errorf("transmit failed: %w", err))
		return
	}

	s.PendingKHz = FrequencyKHz(s.Counter)
	s.HasPending = true
	s.LastSent = cmd
	s.Tx++
	if c.cfg.Strict {
		s.Waiting = true
	}
	s.Counter += uint32(c.cfg.Step)

	c.emitLocked(events.LogEntry{Timestamp: time.Now(), Kind: events.LogTx, Text: wire.ToHex(cmd)})
	c.emitLocked(c.statsLocked())
}

// Ingest feeds a received chunk through the reassembler and correlates any
// validated measurements with the pending frequency. Called from the
// transport read path; shares the controller mutex with tick.
func (c *Controller) Ingest(chunk []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.emitLocked(events.LogEntry{Timestamp: time.Now(), Kind: events.LogRx, Text: wire.ToHex(chunk)})

	measurements := c.reasm.Ingest(chunk)

	for _, m := range measurements {
		if !m.Valid {
			c.emitLocked(events.LiveValue{State: events.LiveInvalid, Value: m.Value})
			continue
		}

		if c.state == Running && c.session != nil {
			s := c.session
			s.Waiting = false
			s.Retrying = false
			if s.HasPending {
				point := events.ChartPoint{FrequencyKHz: s.PendingKHz, Value: m.Value}
				c.chart = append(c.chart, point)
				c.emitLocked(point)
				// One measurement per command: clear the pending frequency
				// so a duplicate reply cannot be charted twice.
				s.HasPending = false
			}
		}
		c.emitLocked(events.LiveValue{State: events.LiveValid, Value: m.Value})
	}

	if len(measurements) == 0 && c.session != nil && c.session.Waiting {
		// Not an error: the reply may still be in flight, and the next tick
		// retries regardless.
		if c.logger != nil {
			c.logger.Debugf("no valid packet yet (%d bytes buffered)", c.reasm.Buffered())
		}
	}

	c.emitLocked(c.statsLocked())
}

// completeLocked finishes the sweep: the counter has walked past the end of
// the range.
func (c *Controller) completeLocked() {
	c.state = Completed
	c.clearTransientLocked()
	if c.cancelTicks != nil {
		// Cancel without waiting: this runs inside the tick itself.
		c.cancelTicks()
		c.cancelTicks = nil
	}

	summary := newSummary(c.chart)
	c.summary = &summary

	elapsed := time.Since(c.session.StartedAt)
	c.emitLocked(events.LogEntry{
		Timestamp: time.Now(),
		Kind:      events.LogInfo,
		Text:      fmt.Sprintf("sweep completed: %d points in %v", len(c.chart), elapsed.Round(time.Millisecond)),
	})
	c.emitLocked(events.SweepCompleted{
		SessionID: c.session.ID,
		Points:    len(c.chart),
		Elapsed:   elapsed,
	})
	c.emitLocked(c.statsLocked())
}

// abortLocked drops a running sweep back to Idle after a transport or
// template failure. Chart points already collected are kept.
func (c *Controller) abortLocked(err error) {
	c.state = Idle
	c.clearTransientLocked()
	if c.cancelTicks != nil {
		c.cancelTicks()
		c.cancelTicks = nil
	}
	if c.logger != nil {
		c.logger.Errorf("sweep aborted: %v", err)
	}
	c.emitLocked(events.LogEntry{Timestamp: time.Now(), Kind: events.LogError, Text: fmt.Sprintf("sweep aborted: %v", err)})
}

func (c *Controller) clearTransientLocked() {
	if c.session == nil {
		return
	}
	c.session.Waiting = false
	c.session.Retrying = false
	c.session.HasPending = false
}

func (c *Controller) statsLocked() events.StatsSnapshot {
	snap := events.StatsSnapshot{}
	rx := c.reasm.Stats()
	snap.RxValid = rx.RxValid
	snap.RxInvalid = rx.RxInvalid
	if c.session != nil {
		snap.Tx = c.session.Tx
		snap.Elapsed = time.Since(c.session.StartedAt)
	}
	return snap
}

func (c *Controller) emitLocked(ev events.Event) {
	if c.pub != nil {
		c.pub.Publish(ev)
	}
}
