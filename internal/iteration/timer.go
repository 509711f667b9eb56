package iteration

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Timer is a restartable one shot timer. Expirations are delivered on
// TimeoutCh; an expiration nobody reads is dropped when the next one fires.
type Timer struct {
	mutex     sync.Mutex
	timer     *time.Timer
	timeout   time.Duration
	running   bool
	closed    bool
	TimeoutCh chan time.Time
	closeCh   chan struct{}
}

// CreateTimer creates a stopped timer
func CreateTimer(timeout time.Duration) *Timer {
	t := &Timer{
		mutex:     sync.Mutex{},
		timer:     time.NewTimer(timeout),
		timeout:   timeout,
		running:   false,
		TimeoutCh: make(chan time.Time, 1),
		closeCh:   make(chan struct{}),
	}
	t.timer.Stop()
	go t.run()
	return t
}

// StartIfNotRunning starts the timer if it is not running
func (t *Timer) StartIfNotRunning() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.closed || t.running {
		return
	}
	t.timer.Reset(t.timeout)
	t.running = true
	log.Debugf("[Timer] Started %s timer", t.timeout)
}

// Reset restarts the countdown
func (t *Timer) Reset() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.closed {
		return
	}
	active := t.timer.Reset(t.timeout)
	t.running = true
	log.Debugf("[Timer] Reset %s timer, was active: %t", t.timeout, active)
}

// Running reports whether the countdown is active
func (t *Timer) Running() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.running
}

// Close stops the timer and its goroutine. Safe to call more than once.
func (t *Timer) Close() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	t.running = false
	t.timer.Stop()
	close(t.closeCh)
}

func (t *Timer) run() {
	for {
		select {
		case <-t.closeCh:
			return
		case expired := <-t.timer.C:
			t.mutex.Lock()
			if t.closed {
				t.mutex.Unlock()
				return
			}
			t.running = false
			t.mutex.Unlock()
			log.Debugf("[Timer] %s timer expired", t.timeout)

			select {
			case t.TimeoutCh <- expired:
			default:
			}
		}
	}
}
