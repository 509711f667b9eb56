// Package iteration bounds test runs. An iteration ends when the network
// reaches a goal ledger or when one of its timeouts fires.
package iteration

import (
	"strconv"
	"sync"
	"time"

	"github.com/mavleo96/rocket/internal/codec"
	"github.com/mavleo96/rocket/internal/config"
	log "github.com/sirupsen/logrus"
)

// State of one iteration
type State int

const (
	StateWaiting State = iota
	StateActive
	StateGoalReached
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateActive:
		return "active"
	case StateGoalReached:
		return "goal_reached"
	case StateTimedOut:
		return "timed_out"
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// Outcome describes how an iteration ended
type Outcome struct {
	State     State
	Reason    string
	LedgerSeq int
}

// Validated is called for every ledger the whole network closed
type Validated func(seq int, elapsed time.Duration)

// Iteration tracks the ledgers validated during one run. Status changes are
// its only input.
type Iteration struct {
	mutex          sync.Mutex
	number         int
	cfg            config.IterationConfig
	nodes          int
	state          State
	ledgerSeq      int
	acceptCount    int
	stalls         int
	prevValidation time.Time
	onValidated    Validated
	timer          *Timer

	doneCh chan Outcome
	stopCh chan struct{}
	once   sync.Once
}

// CreateIteration creates a waiting iteration for a network of nodes validators
func CreateIteration(number int, cfg config.IterationConfig, nodes int, onValidated Validated) *Iteration {
	timeout := cfg.Timeout()
	if cfg.Type == config.IterationLedger {
		timeout = cfg.LedgerTimeout()
	}
	return newIteration(number, cfg, nodes, timeout, onValidated)
}

func newIteration(number int, cfg config.IterationConfig, nodes int, timeout time.Duration, onValidated Validated) *Iteration {
	return &Iteration{
		number:      number,
		cfg:         cfg,
		nodes:       nodes,
		state:       StateWaiting,
		ledgerSeq:   1,
		onValidated: onValidated,
		timer:       CreateTimer(timeout),
		doneCh:      make(chan Outcome, 1),
		stopCh:      make(chan struct{}),
	}
}

// Number returns the iteration counter
func (it *Iteration) Number() int {
	return it.number
}

// SetNodeCount updates the number of validators once they registered
func (it *Iteration) SetNodeCount(nodes int) {
	it.mutex.Lock()
	defer it.mutex.Unlock()
	it.nodes = nodes
}

// State returns the current state
func (it *Iteration) State() State {
	it.mutex.Lock()
	defer it.mutex.Unlock()
	return it.state
}

// CurrentLedgerSeq returns the last ledger validated by the whole network
func (it *Iteration) CurrentLedgerSeq() int {
	it.mutex.Lock()
	defer it.mutex.Unlock()
	return it.ledgerSeq
}

// Done delivers the outcome once the iteration ends
func (it *Iteration) Done() <-chan Outcome {
	return it.doneCh
}

// Start moves a waiting iteration to Active and starts its timeout
func (it *Iteration) Start() {
	it.mutex.Lock()
	defer it.mutex.Unlock()
	if it.state != StateWaiting {
		return
	}
	it.state = StateActive
	it.prevValidation = time.Now()
	it.timer.StartIfNotRunning()
	go it.watch()
	log.Infof("[Iteration] Iteration %d started (%s)", it.number, it.cfg.Type)
}

func (it *Iteration) watch() {
	select {
	case <-it.stopCh:
	case <-it.timer.TimeoutCh:
		it.mutex.Lock()
		it.finishLocked(StateTimedOut, "timeout reached")
		it.mutex.Unlock()
	}
}

// Stop releases the timer. The iteration keeps its final state.
func (it *Iteration) Stop() {
	it.once.Do(func() {
		close(it.stopCh)
		it.timer.Close()
	})
}

// OnStatusChange feeds one observed status change. It is ignored unless the
// iteration is active.
func (it *Iteration) OnStatusChange(status *codec.StatusChange) {
	if status == nil {
		return
	}
	it.mutex.Lock()
	if it.state != StateActive || it.cfg.Type == config.IterationNone {
		it.mutex.Unlock()
		return
	}

	progressed := false
	var validatedSeq int
	var elapsed time.Duration
	if status.NewEvent == codec.EventClosingLedger && int(status.LedgerSeq) == it.ledgerSeq+1 {
		progressed = true
		it.acceptCount++
		// every node announced the close to every other node
		if it.nodes > 1 && it.acceptCount == it.nodes*(it.nodes-1) {
			now := time.Now()
			elapsed = now.Sub(it.prevValidation)
			it.prevValidation = now
			it.ledgerSeq = int(status.LedgerSeq)
			it.acceptCount = 0
			validatedSeq = it.ledgerSeq
			if it.cfg.Type == config.IterationLedger {
				it.timer.Reset()
			}
			log.Infof("[Iteration] Ledger %d validated, time elapsed: %s", it.ledgerSeq, elapsed)
		}
	}

	if progressed {
		it.stalls = 0
	} else {
		it.stalls++
	}
	onValidated := it.onValidated
	it.mutex.Unlock()

	// results of the goal ledger are recorded before the outcome is published
	if validatedSeq > 0 && onValidated != nil {
		onValidated(validatedSeq, elapsed)
	}

	it.mutex.Lock()
	defer it.mutex.Unlock()
	switch {
	case it.cfg.MaxLedgerSeq > 0 && it.ledgerSeq >= it.cfg.MaxLedgerSeq:
		it.finishLocked(StateGoalReached, "goal ledger reached")
	case it.cfg.MaxStallObservations > 0 && it.stalls >= it.cfg.MaxStallObservations:
		it.finishLocked(StateTimedOut, "no progress in "+strconv.Itoa(it.stalls)+" status changes")
	}
}

func (it *Iteration) finishLocked(state State, reason string) {
	if it.state != StateActive {
		return
	}
	it.state = state
	it.doneCh <- Outcome{State: state, Reason: reason, LedgerSeq: it.ledgerSeq}
	log.Infof("[Iteration] Iteration %d ended at ledger %d: %s", it.number, it.ledgerSeq, reason)
}
