package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultCriticalWait bounds how long a critical event waits for buffer
// space when DropIfFull is set.
const DefaultCriticalWait = 250 * time.Millisecond

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// Critical lists event types that are not dropped on a full buffer.
	// They wait up to CriticalWait for space and count as dropped only
	// after that.
	Critical     []string
	CriticalWait time.Duration
}

// Stats is a point-in-time view of dispatcher throughput.
type Stats struct {
	Delivered     uint64
	Dropped       uint64
	DroppedByType map[string]uint64
}

// Dispatcher hands events to a sink from one background goroutine.
type Dispatcher struct {
	cfg      Config
	sink     Sink
	critical map[string]struct{}
	queue    chan Event
	stop     chan struct{}
	wg       sync.WaitGroup

	delivered atomic.Uint64
	dropped   atomic.Uint64
	mu        sync.Mutex
	dropsBy   map[string]uint64

	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher returns nil when cfg is disabled; a nil *Dispatcher accepts
// and discards events.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.CriticalWait <= 0 {
		cfg.CriticalWait = DefaultCriticalWait
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:      cfg,
		sink:     sink,
		critical: make(map[string]struct{}, len(cfg.Critical)),
		queue:    make(chan Event, cfg.BufferSize),
		stop:     make(chan struct{}),
		dropsBy:  make(map[string]uint64),
	}
	for _, t := range cfg.Critical {
		d.critical[t] = struct{}{}
	}
	d.wg.Add(1)
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()
	for {
		select {
		case ev := <-d.queue:
			d.forward(ev)
		case <-d.stop:
			// Flush what was accepted before Close.
			for {
				select {
				case ev := <-d.queue:
					d.forward(ev)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) forward(ev Event) {
	d.sink.Emit(context.Background(), ev)
	d.delivered.Add(1)
}

// Emit enqueues event. With DropIfFull a full buffer drops ordinary events
// at once and critical ones after CriticalWait; otherwise Emit waits for
// space or ctx.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if !d.cfg.DropIfFull {
		select {
		case d.queue <- event:
		case <-ctx.Done():
			d.recordDrop(event.EventType)
		case <-d.stop:
		}
		return
	}

	select {
	case d.queue <- event:
		return
	case <-d.stop:
		return
	default:
	}
	if _, ok := d.critical[event.EventType]; !ok {
		d.recordDrop(event.EventType)
		return
	}

	timer := time.NewTimer(d.cfg.CriticalWait)
	defer timer.Stop()
	select {
	case d.queue <- event:
	case <-d.stop:
	case <-ctx.Done():
		d.recordDrop(event.EventType)
	case <-timer.C:
		d.recordDrop(event.EventType)
	}
}

func (d *Dispatcher) recordDrop(eventType string) {
	d.dropped.Add(1)
	d.mu.Lock()
	d.dropsBy[eventType]++
	d.mu.Unlock()
}

// Close stops intake and flushes buffered events to the sink.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.stop)
		d.wg.Wait()
	})
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}

// Stats copies the delivery and per-type drop counters.
func (d *Dispatcher) Stats() Stats {
	if d == nil {
		return Stats{DroppedByType: map[string]uint64{}}
	}
	d.mu.Lock()
	by := make(map[string]uint64, len(d.dropsBy))
	for t, n := range d.dropsBy {
		by[t] = n
	}
	d.mu.Unlock()
	return Stats{
		Delivered:     d.delivered.Load(),
		Dropped:       d.dropped.Load(),
		DroppedByType: by,
	}
}
