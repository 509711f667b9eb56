package strategy

import (
	"context"
	"sync"

	"github.com/mavleo96/rocket/internal/dispatcher"
)

// DispatchObserved is implemented by strategies that pace packets through a
// dispatcher
type DispatchObserved interface {
	SetDispatchObserver(fn func(rate float64, queueLen int))
}

// DefaultDispatchConfig returns the feedback parameters used when a
// strategy config leaves them out
func DefaultDispatchConfig() dispatcher.Config {
	return dispatcher.Config{
		TargetInbox:      10,
		OverflowFactor:   1.2,
		UnderflowFactor:  0.8,
		SensitivityRatio: 1.2,
		MaxEvents:        100,
	}
}

// paced owns the dispatcher of a strategy. Every Setup replaces the
// dispatcher, so a network update never reuses a stopped one.
type paced struct {
	mutex      sync.RWMutex
	cfg        dispatcher.Config
	dispatcher *dispatcher.Dispatcher
	observer   func(rate float64, queueLen int)
}

func (p *paced) SetDispatchObserver(fn func(rate float64, queueLen int)) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.observer = fn
	if p.dispatcher != nil {
		p.dispatcher.SetObserver(fn)
	}
}

func (p *paced) restart() error {
	d, err := dispatcher.CreateDispatcher(p.cfg)
	if err != nil {
		return err
	}

	p.mutex.Lock()
	old := p.dispatcher
	p.dispatcher = d
	if p.observer != nil {
		d.SetObserver(p.observer)
	}
	p.mutex.Unlock()

	if old != nil {
		old.Stop()
	}
	d.Start()
	return nil
}

func (p *paced) wait(ctx context.Context, priority int64) error {
	p.mutex.RLock()
	d := p.dispatcher
	p.mutex.RUnlock()
	if d == nil {
		return dispatcher.ErrClosedDispatcher
	}
	return d.Wait(ctx, priority)
}

func (p *paced) stop() {
	p.mutex.RLock()
	d := p.dispatcher
	p.mutex.RUnlock()
	if d != nil {
		d.Stop()
	}
}
