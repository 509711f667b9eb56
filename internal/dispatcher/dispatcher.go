package dispatcher

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/algorand/go-deadlock"
	log "github.com/sirupsen/logrus"
)

// ErrClosedDispatcher is returned to callers once the dispatcher is stopped
var ErrClosedDispatcher = errors.New("dispatcher is closed")

// Config controls the release rate feedback loop
type Config struct {
	TargetInbox      int     `yaml:"target_inbox"`
	OverflowFactor   float64 `yaml:"overflow_factor"`
	UnderflowFactor  float64 `yaml:"underflow_factor"`
	SensitivityRatio float64 `yaml:"sensitivity_ratio"`
	MaxEvents        int     `yaml:"max_events"`
}

// Validate checks the feedback parameters
func (c Config) Validate() error {
	switch {
	case c.TargetInbox <= 0:
		return fmt.Errorf("target_inbox must be positive, got %d", c.TargetInbox)
	case c.OverflowFactor <= 1:
		return fmt.Errorf("overflow_factor must be greater than 1, got %v", c.OverflowFactor)
	case c.UnderflowFactor >= 1:
		return fmt.Errorf("underflow_factor must be less than 1, got %v", c.UnderflowFactor)
	case c.SensitivityRatio <= 1:
		return fmt.Errorf("sensitivity_ratio must be greater than 1, got %v", c.SensitivityRatio)
	case c.MaxEvents <= 0:
		return fmt.Errorf("max_events must be positive, got %d", c.MaxEvents)
	}
	return nil
}

// NextRate applies one step of the feedback rule. The rate grows while the
// queue is above target_inbox*overflow_factor, shrinks while it is below
// target_inbox*underflow_factor and stays in [max_events/6, max_events].
func NextRate(cfg Config, rate float64, queueLen int) float64 {
	target := float64(cfg.TargetInbox)
	switch {
	case float64(queueLen) > target*cfg.OverflowFactor:
		return math.Min(rate*cfg.SensitivityRatio, float64(cfg.MaxEvents))
	case float64(queueLen) < target*cfg.UnderflowFactor:
		return math.Max(rate/cfg.SensitivityRatio, float64(cfg.MaxEvents)/6)
	}
	return rate
}

// interval returns the sleep between two releases at the given rate
func interval(rate float64) time.Duration {
	pps := math.Max(1, math.Floor(rate))
	return time.Duration(float64(time.Second) / pps)
}

// Dispatcher releases blocked callers one at a time in priority order, at
// a rate adapted to the queue length
type Dispatcher struct {
	mutex    deadlock.Mutex
	cfg      Config
	queue    itemHeap
	seq      uint64
	rate     float64
	started  bool
	closed   bool
	observer func(rate float64, queueLen int)

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// CreateDispatcher validates cfg and returns a stopped dispatcher
func CreateDispatcher(cfg Config) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Dispatcher{
		cfg:    cfg,
		queue:  make(itemHeap, 0),
		rate:   float64(cfg.MaxEvents) / 2,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	heap.Init(&d.queue)
	return d, nil
}

// SetObserver registers a function called with the rate and queue length
// on every loop iteration
func (d *Dispatcher) SetObserver(fn func(rate float64, queueLen int)) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.observer = fn
}

// Rate returns the current release rate in events per second
func (d *Dispatcher) Rate() float64 {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.rate
}

// QueueLen returns the number of waiting callers
func (d *Dispatcher) QueueLen() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.queue.Len()
}

// Start launches the dispatch loop. It is a no-op if already started or stopped.
func (d *Dispatcher) Start() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	go d.run()
	log.Infof("[Dispatcher] Started with rate %.1f events/s", d.rate)
}

func (d *Dispatcher) run() {
	defer close(d.doneCh)
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		d.mutex.Lock()
		queueLen := d.queue.Len()
		d.rate = NextRate(d.cfg, d.rate, queueLen)
		rate := d.rate
		observer := d.observer
		d.mutex.Unlock()

		if observer != nil {
			observer(rate, queueLen)
		}

		timer.Reset(interval(rate))
		select {
		case <-d.stopCh:
			return
		case <-timer.C:
		}
		d.releaseNext()
	}
}

// releaseNext releases the head of the queue. It reports whether a caller
// was released.
func (d *Dispatcher) releaseNext() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.queue.Len() == 0 {
		return false
	}
	item := heap.Pop(&d.queue).(*queueItem)
	item.release <- nil
	return true
}

// Ticket is a queued caller
type Ticket struct {
	d    *Dispatcher
	item *queueItem
}

// Submit enqueues a caller with the given priority without blocking. Lower
// values are released first, ties in submission order.
func (d *Dispatcher) Submit(priority int64) (*Ticket, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.closed {
		return nil, ErrClosedDispatcher
	}
	item := &queueItem{
		priority: priority,
		seq:      d.seq,
		release:  make(chan error, 1),
	}
	d.seq++
	heap.Push(&d.queue, item)
	return &Ticket{d: d, item: item}, nil
}

// Wait blocks until the ticket is released, the dispatcher stops or ctx is
// done. On cancellation only this ticket leaves the queue.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case err := <-t.item.release:
		return err
	case <-ctx.Done():
	}

	t.d.mutex.Lock()
	if t.item.index >= 0 {
		heap.Remove(&t.d.queue, t.item.index)
		t.d.mutex.Unlock()
		return ctx.Err()
	}
	t.d.mutex.Unlock()
	// Released concurrently with the cancellation
	return <-t.item.release
}

// Wait enqueues the caller and blocks until it is released
func (d *Dispatcher) Wait(ctx context.Context, priority int64) error {
	ticket, err := d.Submit(priority)
	if err != nil {
		return err
	}
	return ticket.Wait(ctx)
}

// Stop ends the dispatch loop and fails every waiting caller with
// ErrClosedDispatcher. Safe to call more than once.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.mutex.Lock()
		d.closed = true
		pending := d.queue.Len()
		for d.queue.Len() > 0 {
			item := heap.Pop(&d.queue).(*queueItem)
			item.release <- ErrClosedDispatcher
		}
		started := d.started
		d.mutex.Unlock()

		close(d.stopCh)
		if started {
			<-d.doneCh
		}
		log.Infof("[Dispatcher] Stopped, released %d waiting callers", pending)
	})
}
