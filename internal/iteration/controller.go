package iteration

import (
	"context"
	"sync"
	"time"

	"github.com/mavleo96/rocket/internal/codec"
	"github.com/mavleo96/rocket/internal/config"
	"github.com/mavleo96/rocket/internal/metrics"
	log "github.com/sirupsen/logrus"
)

// Hooks are the side effects of a run: starting the network, recording
// results and checking every finished iteration
type Hooks interface {
	StartIteration(n int) error
	LedgerValidated(n, seq int, elapsed time.Duration)
	EndIteration(n int, outcome Outcome)
	Finish()
}

// Controller runs the configured number of iterations back to back
type Controller struct {
	mutex   sync.RWMutex
	cfg     config.IterationConfig
	hooks   Hooks
	nodes   int
	current *Iteration
	metrics *metrics.Metrics

	// timeout replaces the configured bound when set
	timeout time.Duration
}

// CreateController creates a controller. Iterations start with Run.
func CreateController(cfg config.IterationConfig, hooks Hooks, m *metrics.Metrics) *Controller {
	return &Controller{
		cfg:     cfg,
		hooks:   hooks,
		metrics: m,
	}
}

// SetNodeCount is called whenever a node list is registered
func (c *Controller) SetNodeCount(n int) {
	c.mutex.Lock()
	c.nodes = n
	current := c.current
	c.mutex.Unlock()
	if current != nil {
		current.SetNodeCount(n)
	}
}

// OnStatusChange forwards a status change to the running iteration
func (c *Controller) OnStatusChange(status *codec.StatusChange) {
	c.mutex.RLock()
	current := c.current
	c.mutex.RUnlock()
	if current != nil {
		current.OnStatusChange(status)
	}
}

// CurrentLedgerSeq returns the last validated ledger of the running iteration
func (c *Controller) CurrentLedgerSeq() int {
	c.mutex.RLock()
	current := c.current
	c.mutex.RUnlock()
	if current == nil {
		return 1
	}
	return current.CurrentLedgerSeq()
}

// CurrentIteration returns the number of the running iteration, 0 before the first
func (c *Controller) CurrentIteration() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if c.current == nil {
		return 0
	}
	return c.current.Number()
}

func (c *Controller) iterations() int {
	if c.cfg.Type == config.IterationNone {
		return 1
	}
	return c.cfg.MaxIterations
}

func (c *Controller) newIteration(n int) *Iteration {
	c.mutex.RLock()
	nodes := c.nodes
	c.mutex.RUnlock()

	validated := func(seq int, elapsed time.Duration) {
		c.metrics.LedgerValidated()
		c.hooks.LedgerValidated(n, seq, elapsed)
	}
	if c.timeout > 0 {
		return newIteration(n, c.cfg, nodes, c.timeout, validated)
	}
	return CreateIteration(n, c.cfg, nodes, validated)
}

// Run executes every iteration and calls Finish at the end. A cancelled
// context ends the running iteration as timed out and stops the run.
func (c *Controller) Run(ctx context.Context) error {
	defer c.hooks.Finish()

	total := c.iterations()
	for n := 1; n <= total; n++ {
		it := c.newIteration(n)
		c.mutex.Lock()
		c.current = it
		c.mutex.Unlock()

		log.Infof("[Controller] Starting iteration %d of %d", n, total)
		if err := c.hooks.StartIteration(n); err != nil {
			it.Stop()
			return err
		}
		it.Start()

		var outcome Outcome
		select {
		case outcome = <-it.Done():
		case <-ctx.Done():
			it.Stop()
			outcome = Outcome{State: StateTimedOut, Reason: "run cancelled", LedgerSeq: it.CurrentLedgerSeq()}
			c.metrics.IterationFinished(outcome.State.String())
			c.hooks.EndIteration(n, outcome)
			return ctx.Err()
		}
		it.Stop()

		c.metrics.IterationFinished(outcome.State.String())
		c.hooks.EndIteration(n, outcome)
	}
	log.Infof("[Controller] Finished %d iterations", total)
	return nil
}
