// Package harness wires a run: the strategy engine, the iteration
// controller, the interceptor, the loggers and the spec checker.
package harness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mavleo96/rocket/internal/checker"
	"github.com/mavleo96/rocket/internal/config"
	"github.com/mavleo96/rocket/internal/csvlog"
	"github.com/mavleo96/rocket/internal/interceptor"
	"github.com/mavleo96/rocket/internal/iteration"
	"github.com/mavleo96/rocket/internal/ledger"
	"github.com/mavleo96/rocket/internal/metrics"
	"github.com/mavleo96/rocket/internal/models"
	"github.com/mavleo96/rocket/internal/strategy"
	log "github.com/sirupsen/logrus"
)

// Options are the collaborators of a harness. Interceptor may be nil, in
// which case the interceptor is expected to be run by hand. Store and
// Metrics may be nil.
type Options struct {
	LogDir      string
	Interceptor interceptor.Process
	Fetcher     ledger.Fetcher
	Store       checker.VerdictStore
	Metrics     *metrics.Metrics
}

// iterationRun is the state of one iteration
type iterationRun struct {
	number   int
	dir      string
	actions  *csvlog.ActionLogger
	results  *csvlog.ResultLogger
	recorder *ledger.Recorder
	nodes    []models.ValidatorNode
	pending  sync.WaitGroup
	ended    bool
}

// Harness runs the configured iterations of one strategy
type Harness struct {
	mutex       sync.Mutex
	networkCfg  *config.NetworkConfig
	strategyCfg *config.StrategyConfig
	opts        Options
	engine      *strategy.Engine
	controller  *iteration.Controller
	checker     *checker.SpecChecker
	current     *iterationRun
	ctx         context.Context
}

// CreateHarness creates the engine and the controller around strat. The
// spec checker is only created for runs that are checked.
func CreateHarness(networkCfg *config.NetworkConfig, strategyCfg *config.StrategyConfig, strat strategy.Strategy, opts Options) (*Harness, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("harness needs a ledger fetcher")
	}
	h := &Harness{
		networkCfg:  networkCfg,
		strategyCfg: strategyCfg,
		opts:        opts,
		ctx:         context.Background(),
	}

	h.engine = strategy.CreateEngine(strat, strategy.OptionsFromConfig(strategyCfg, networkCfg))
	h.engine.SetMetrics(opts.Metrics)
	h.controller = iteration.CreateController(strategyCfg.Iteration, h, opts.Metrics)
	h.engine.SetObserver(h.controller)

	if strategyCfg.Iteration.Type != config.IterationNone {
		c, err := checker.CreateSpecChecker(opts.LogDir, networkCfg.ByzantineNodes, opts.Store)
		if err != nil {
			return nil, err
		}
		h.checker = c
	}
	return h, nil
}

// Engine returns the packet engine served to the interceptor
func (h *Harness) Engine() *strategy.Engine {
	return h.engine
}

// Controller returns the iteration controller
func (h *Harness) Controller() *iteration.Controller {
	return h.controller
}

// Run executes every iteration. It returns when the run is over or ctx is
// cancelled.
func (h *Harness) Run(ctx context.Context) error {
	h.mutex.Lock()
	h.ctx = ctx
	h.mutex.Unlock()
	return h.controller.Run(ctx)
}

// RegisterNodes installs the validators reported by the interceptor and
// starts processing packets
func (h *Harness) RegisterNodes(nodes []models.ValidatorNode) error {
	if len(nodes) != h.networkCfg.NumberOfNodes {
		log.Warnf("[Harness] Expected %d validators, got %d", h.networkCfg.NumberOfNodes, len(nodes))
	}
	if err := h.engine.UpdateNetwork(nodes); err != nil {
		return err
	}
	h.controller.SetNodeCount(len(nodes))

	h.mutex.Lock()
	run := h.current
	if run != nil {
		run.nodes = nodes
	}
	h.mutex.Unlock()
	if run != nil {
		if err := csvlog.WriteNodeInfo(run.dir, nodes); err != nil {
			log.Warnf("[Harness] Could not write node info: %v", err)
		}
	}
	return h.engine.Start()
}

// StartIteration opens the logs of iteration n and restarts the interceptor
func (h *Harness) StartIteration(n int) error {
	run := &iterationRun{number: n, dir: checker.IterationDir(h.opts.LogDir, n)}
	actions, err := csvlog.CreateActionLogger(run.dir, n)
	if err != nil {
		return err
	}
	results, err := csvlog.CreateResultLogger(run.dir, n)
	if err != nil {
		actions.Close()
		return err
	}
	run.actions, run.results = actions, results
	run.recorder = ledger.CreateRecorder(h.opts.Fetcher, results, h.strategyCfg.Iteration.MaxLedgerSeq)

	h.engine.ResetHistory()
	h.engine.SetActionRecorder(actions)
	h.mutex.Lock()
	h.current = run
	h.mutex.Unlock()

	if h.opts.Interceptor == nil {
		log.Infof("[Harness] Iteration %d waiting for an external interceptor", n)
		return nil
	}
	if err := h.opts.Interceptor.Restart(); err != nil {
		actions.Close()
		results.Close()
		return fmt.Errorf("start interceptor: %w", err)
	}
	return nil
}

// LedgerValidated records the ledger of every node in the background
func (h *Harness) LedgerValidated(n, seq int, elapsed time.Duration) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	run := h.current
	if run == nil || run.number != n || run.ended || len(run.nodes) == 0 {
		return
	}
	nodes, recorder, ctx := run.nodes, run.recorder, h.ctx
	run.pending.Go(func() {
		if err := recorder.RecordValidated(ctx, nodes, seq, elapsed); err != nil {
			log.Warnf("[Harness] Incomplete results for ledger %d: %v", seq, err)
		}
	})
}

// EndIteration waits for outstanding results, closes the logs and checks
// the iteration
func (h *Harness) EndIteration(n int, outcome iteration.Outcome) {
	h.mutex.Lock()
	run := h.current
	if run == nil || run.number != n {
		h.mutex.Unlock()
		return
	}
	run.ended = true
	started := len(run.nodes) > 0
	h.mutex.Unlock()

	run.pending.Wait()
	h.engine.SetActionRecorder(nil)
	run.actions.Close()
	run.results.Close()
	log.Infof("[Harness] Iteration %d %s at ledger %d: %s", n, outcome.State, outcome.LedgerSeq, outcome.Reason)

	if h.checker == nil {
		return
	}
	if !started {
		if err := h.checker.Record(checker.StatusVerdict(n, checker.TimeoutBeforeStartup)); err != nil {
			log.Errorf("[Harness] Could not record verdict of iteration %d: %v", n, err)
		}
		return
	}
	if _, err := h.checker.Check(n); err != nil {
		log.Errorf("[Harness] Could not record verdict of iteration %d: %v", n, err)
	}
}

// Finish stops the interceptor and the engine and aggregates the verdicts
func (h *Harness) Finish() {
	if h.opts.Interceptor != nil {
		if err := h.opts.Interceptor.Stop(); err != nil {
			log.Warnf("[Harness] Could not stop interceptor: %v", err)
		}
	}
	h.engine.Stop()

	if h.checker == nil {
		return
	}
	if _, err := h.checker.Aggregate(); err != nil {
		log.Errorf("[Harness] Could not aggregate verdicts: %v", err)
	}
	if err := h.checker.Close(); err != nil {
		log.Warnf("[Harness] Could not close spec check log: %v", err)
	}
}
