package sweep

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/freqsweep/freqsweep/internal/events"
	"github.com/freqsweep/freqsweep/internal/wire"
)

// fakeWriter records every write, optionally failing.
type fakeWriter struct {
	mu     sync.Mutex
	writes [][]byte
	err    error
}

func (w *fakeWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return 0, w.err
	}
	cp := make([]byte, len(p))
	copy(cp, p)
	w.writes = append(w.writes, cp)
	return len(p), nil
}

func (w *fakeWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.writes)
}

func (w *fakeWriter) at(i int) []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writes[i]
}

// capturePub collects published events.
type capturePub struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePub) Publish(ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *capturePub) chartPoints() []events.ChartPoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.ChartPoint
	for _, ev := range p.events {
		if cp, ok := ev.(events.ChartPoint); ok {
			out = append(out, cp)
		}
	}
	return out
}

func (p *capturePub) completions() []events.SweepCompleted {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.SweepCompleted
	for _, ev := range p.events {
		if sc, ok := ev.(events.SweepCompleted); ok {
			out = append(out, sc)
		}
	}
	return out
}

// replyFrame builds a well-formed strict-mode reply carrying the payload.
func replyFrame(p1, p2 byte) []byte {
	return []byte{
		0xFF, 0xFE, 0xFD, 0xFC, 0x02, 0x56,
		p1, p2,
		0xAA, 0xBB, 0xCC,
		0xFB, 0xFA, 0xF9, 0xF8,
	}
}

func testConfig() Config {
	return Config{
		Start:        0x0000,
		End:          0x0003,
		Step:         3,
		Interval:     time.Hour, // ticks are driven manually in tests
		Template:     []byte{0xAA, 0x00, 0x00, 0x55},
		TargetOffset: 1,
		TxEndianness: wire.HighFirst,
		RxEndianness: wire.HighFirst,
	}
}

func newTestController(w *fakeWriter, pub *capturePub, cfg Config) *Controller {
	return NewController(w, pub, cfg, nil)
}

func TestStartInvalidRange(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"start greater than end", func(c *Config) { c.Start = 10; c.End = 5 }},
		{"zero step", func(c *Config) { c.Step = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			c := newTestController(&fakeWriter{}, &capturePub{}, cfg)

			if err := c.Start(cfg); !errors.Is(err, ErrInvalidRange) {
				t.Fatalf("Start error = %v, want ErrInvalidRange", err)
			}
			if c.State() != Idle {
				t.Errorf("state = %v, want Idle", c.State())
			}
		})
	}
}

func TestStartInvalidTemplate(t *testing.T) {
	cfg := testConfig()
	cfg.Template = []byte{0xAA, 0x00} // too short for offset 1 + 2 bytes
	c := newTestController(&fakeWriter{}, &capturePub{}, cfg)

	if err := c.Start(cfg); !errors.Is(err, ErrInvalidTemplate) {
		t.Fatalf("Start error = %v, want ErrInvalidTemplate", err)
	}
	if c.State() != Idle {
		t.Errorf("state = %v, want Idle", c.State())
	}
}

func TestStartNegativeOffsets(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative target offset", func(c *Config) { c.TargetOffset = -1 }},
		{"negative rx offset", func(c *Config) { c.RxOffset = -2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			c := newTestController(&fakeWriter{}, &capturePub{}, cfg)

			if err := c.Start(cfg); !errors.Is(err, ErrInvalidOffset) {
				t.Fatalf("Start error = %v, want ErrInvalidOffset", err)
			}
			if c.State() != Idle {
				t.Errorf("state = %v, want Idle", c.State())
			}
		})
	}
}

func TestStartWhileRunning(t *testing.T) {
	cfg := testConfig()
	c := newTestController(&fakeWriter{}, &capturePub{}, cfg)
	if err := c.Start(cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	if err := c.Start(cfg); !errors.Is(err, ErrSweepRunning) {
		t.Fatalf("second Start error = %v, want ErrSweepRunning", err)
	}
}

func TestSweepWalksRangeAndCompletes(t *testing.T) {
	w := &fakeWriter{}
	pub := &capturePub{}
	cfg := testConfig() // 0x0000..0x0003 step 3: counters 0 and 3, then done
	c := newTestController(w, pub, cfg)

	if err := c.Start(cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}

	c.tick(c.gen)
	c.tick(c.gen)
	if c.State() != Running {
		t.Fatalf("state after 2 ticks = %v, want Running", c.State())
	}
	c.tick(c.gen) // counter is now 6 > end: completes without transmitting

	if c.State() != Completed {
		t.Fatalf("state = %v, want Completed", c.State())
	}
	if w.count() != 2 {
		t.Fatalf("transmitted %d commands, want 2", w.count())
	}

	want0 := []byte{0xAA, 0x00, 0x00, 0x55}
	want1 := []byte{0xAA, 0x00, 0x03, 0x55}
	if !bytes.Equal(w.at(0), want0) {
		t.Errorf("first command = % X, want % X", w.at(0), want0)
	}
	if !bytes.Equal(w.at(1), want1) {
		t.Errorf("second command = % X, want % X", w.at(1), want1)
	}

	if got := c.Stats().Tx; got != 2 {
		t.Errorf("tx count = %d, want 2", got)
	}
	if comps := pub.completions(); len(comps) != 1 {
		t.Errorf("got %d SweepCompleted events, want 1", len(comps))
	}

	// Completed is terminal for this session: further ticks do nothing.
	c.tick(c.gen)
	if w.count() != 2 {
		t.Errorf("tick after completion transmitted a command")
	}
}

func TestLowFirstTransmitEncoding(t *testing.T) {
	w := &fakeWriter{}
	cfg := testConfig()
	cfg.Start = 0x1234
	cfg.End = 0x1234
	cfg.Step = 1
	cfg.TxEndianness = wire.LowFirst
	c := newTestController(w, &capturePub{}, cfg)

	if err := c.Start(cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.tick(c.gen)

	want := []byte{0xAA, 0x34, 0x12, 0x55}
	if w.count() != 1 || !bytes.Equal(w.at(0), want) {
		t.Fatalf("command = % X, want % X", w.at(0), want)
	}
}

func TestStrictRetryRetransmitsVerbatim(t *testing.T) {
	w := &fakeWriter{}
	cfg := testConfig()
	cfg.Strict = true
	c := newTestController(w, &capturePub{}, cfg)

	if err := c.Start(cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}

	c.tick(c.gen) // transmit counter 0, now waiting
	for i := 0; i < 3; i++ {
		c.tick(c.gen) // retries
	}

	if w.count() != 4 {
		t.Fatalf("wrote %d commands, want 1 original + 3 retries", w.count())
	}
	for i := 1; i < 4; i++ {
		if !bytes.Equal(w.at(i), w.at(0)) {
			t.Errorf("retry %d = % X, differs from original % X", i, w.at(i), w.at(0))
		}
	}

	c.mu.Lock()
	if !c.session.Waiting || !c.session.Retrying {
		t.Errorf("session flags = waiting=%v retrying=%v, want both true", c.session.Waiting, c.session.Retrying)
	}
	counter := c.session.Counter
	c.mu.Unlock()
	if counter != 3 {
		t.Errorf("counter advanced to %d during retries, want 3 (one step)", counter)
	}

	// Retries must not attribute anything to the chart or advance tx count.
	if got := c.Stats().Tx; got != 1 {
		t.Errorf("tx count = %d, want 1", got)
	}
}

func TestStrictCorrelation(t *testing.T) {
	w := &fakeWriter{}
	pub := &capturePub{}
	cfg := testConfig()
	cfg.Strict = true
	cfg.Start = 0x1000 // (0x1000/65536)*32000 = 2000 kHz
	cfg.End = 0x2000
	cfg.Step = 0x1000
	c := newTestController(w, pub, cfg)

	if err := c.Start(cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}

	c.tick(c.gen)
	c.Ingest(replyFrame(0x00, 0x64))

	chart := c.Chart()
	if len(chart) != 1 {
		t.Fatalf("chart has %d points, want 1", len(chart))
	}
	if chart[0].FrequencyKHz != 2000.0 || chart[0].Value != 100 {
		t.Errorf("point = %+v, want {2000 100}", chart[0])
	}

	c.mu.Lock()
	waiting := c.session.Waiting
	c.mu.Unlock()
	if waiting {
		t.Error("still waiting after a valid measurement")
	}

	// The frequency charted is the one pending at send time, even though
	// the next tick has already advanced the counter.
	c.tick(c.gen)
	c.Ingest(replyFrame(0x01, 0x00))
	chart = c.Chart()
	if len(chart) != 2 {
		t.Fatalf("chart has %d points, want 2", len(chart))
	}
	if chart[1].FrequencyKHz != 4000.0 || chart[1].Value != 256 {
		t.Errorf("point = %+v, want {4000 256}", chart[1])
	}
}

func TestUnsolicitedMeasurementNotCharted(t *testing.T) {
	w := &fakeWriter{}
	pub := &capturePub{}
	cfg := testConfig()
	cfg.Strict = true
	c := newTestController(w, pub, cfg)

	if err := c.Start(cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}

	c.tick(c.gen)
	c.Ingest(replyFrame(0x00, 0x64)) // consumes the pending frequency
	c.Ingest(replyFrame(0x00, 0x65)) // duplicate/unsolicited

	if chart := c.Chart(); len(chart) != 1 {
		t.Fatalf("chart has %d points, want 1 (duplicate must not be attributed)", len(chart))
	}
	if points := pub.chartPoints(); len(points) != 1 {
		t.Errorf("published %d chart points, want 1", len(points))
	}
}

func TestInvalidMeasurementKeepsWaiting(t *testing.T) {
	w := &fakeWriter{}
	cfg := testConfig()
	cfg.Strict = true
	c := newTestController(w, &capturePub{}, cfg)

	if err := c.Start(cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}

	c.tick(c.gen)
	c.Ingest(replyFrame(0x13, 0x88)) // 5000: out of range

	c.mu.Lock()
	waiting := c.session.Waiting
	c.mu.Unlock()
	if !waiting {
		t.Error("out-of-range measurement cleared the waiting flag")
	}
	if chart := c.Chart(); len(chart) != 0 {
		t.Errorf("chart has %d points, want 0", len(chart))
	}
	if s := c.Stats(); s.RxInvalid != 1 || s.RxValid != 0 {
		t.Errorf("stats = %+v, want RxInvalid=1 RxValid=0", s)
	}
}

func TestWriteFailureAbortsSweep(t *testing.T) {
	w := &fakeWriter{err: errors.New("port gone")}
	cfg := testConfig()
	c := newTestController(w, &capturePub{}, cfg)

	if err := c.Start(cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.tick(c.gen)

	if c.State() != Idle {
		t.Errorf("state = %v after write failure, want Idle", c.State())
	}
}

func TestStopRetainsChart(t *testing.T) {
	w := &fakeWriter{}
	cfg := testConfig()
	cfg.Strict = true
	c := newTestController(w, &capturePub{}, cfg)

	if err := c.Start(cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.tick(c.gen)
	c.Ingest(replyFrame(0x00, 0x64))
	c.Stop()

	if c.State() != Idle {
		t.Errorf("state = %v, want Idle", c.State())
	}
	if chart := c.Chart(); len(chart) != 1 {
		t.Errorf("chart has %d points after Stop, want 1", len(chart))
	}

	// Stop is idempotent.
	c.Stop()
}

func TestRestartCreatesFreshSession(t *testing.T) {
	w := &fakeWriter{}
	cfg := testConfig()
	c := newTestController(w, &capturePub{}, cfg)

	if err := c.Start(cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.tick(c.gen)
	c.Stop()

	firstTx := c.Stats().Tx
	if firstTx != 1 {
		t.Fatalf("tx after first run = %d, want 1", firstTx)
	}

	if err := c.Start(cfg); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer c.Stop()

	if got := c.Stats().Tx; got != 0 {
		t.Errorf("tx after restart = %d, want 0 (stats must reset)", got)
	}
	if chart := c.Chart(); len(chart) != 0 {
		t.Errorf("chart has %d points after restart, want 0", len(chart))
	}

	c.mu.Lock()
	counter := c.session.Counter
	c.mu.Unlock()
	if counter != uint32(cfg.Start) {
		t.Errorf("counter = %d after restart, want %d", counter, cfg.Start)
	}
}

func TestFrequencyMapping(t *testing.T) {
	tests := []struct {
		code uint32
		want float64
	}{
		{0, 0},
		{0x1000, 2000},
		{0x8000, 16000},
		{0xFFFF, (65535.0 / 65536.0) * 32000.0},
	}
	for _, tt := range tests {
		if got := FrequencyKHz(tt.code); got != tt.want {
			t.Errorf("FrequencyKHz(%#x) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestSummaryOnCompletion(t *testing.T) {
	w := &fakeWriter{}
	cfg := testConfig()
	cfg.Strict = true
	cfg.Start = 0
	cfg.End = 1
	cfg.Step = 1
	c := newTestController(w, &capturePub{}, cfg)

	if err := c.Start(cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}

	c.tick(c.gen)
	c.Ingest(replyFrame(0x00, 0x64)) // 100
	c.tick(c.gen)
	c.Ingest(replyFrame(0x01, 0x2C)) // 300
	c.tick(c.gen)                    // completes

	if c.State() != Completed {
		t.Fatalf("state = %v, want Completed", c.State())
	}

	sum, ok := c.Summary()
	if !ok {
		t.Fatal("no summary after completion")
	}
	if sum.Points != 2 || sum.MinValue != 100 || sum.MaxValue != 300 {
		t.Errorf("summary = %+v, want 2 points min 100 max 300", sum)
	}
	if sum.Mean != 200 {
		t.Errorf("mean = %v, want 200", sum.Mean)
	}
	if sum.PeakFrequencyKHz != FrequencyKHz(1) {
		t.Errorf("peak frequency = %v, want %v", sum.PeakFrequencyKHz, FrequencyKHz(1))
	}
}
