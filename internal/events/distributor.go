package events

import (
	"context"
	"sync"

	"github.com/freqsweep/freqsweep/internal/log"
)

// distributorBuffer sizes the publish channel. Bursts larger than this are
// dropped by Publish rather than stalling the tick path.
const distributorBuffer = 64

// Distributor receives events from the sweep core and fans them out to the
// registered sinks. Publishers never block on a slow sink.
type Distributor struct {
	C chan Event

	mu    sync.RWMutex
	sinks []Sink
}

// NewDistributor creates a Distributor and starts its fan-out goroutine.
func NewDistributor(ctx context.Context, wg *sync.WaitGroup) *Distributor {
	d := &Distributor{
		C: make(chan Event, distributorBuffer),
	}

	wg.Add(1)
	go d.run(ctx, wg)

	return d
}

// RegisterSink adds a sink to the fan-out set.
func (d *Distributor) RegisterSink(s Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, s)
}

// Publish offers an event to the distributor without blocking. Events are
// dropped when the buffer is full; the tick loop must never wait on
// presentation.
func (d *Distributor) Publish(ev Event) {
	select {
	case d.C <- ev:
	default:
		log.Debug("event distributor buffer full, dropping event")
	}
}

// run fans events out to the various sinks until the context is cancelled.
func (d *Distributor) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			log.Info("cancellation request received. Cancelling event distributor")
			return
		case ev := <-d.C:
			d.mu.RLock()
			for _, s := range d.sinks {
				s.Receive(ev)
			}
			d.mu.RUnlock()
		}
	}
}
