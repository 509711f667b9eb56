package strategy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/mavleo96/rocket/internal/codec"
	"github.com/mavleo96/rocket/internal/config"
	"github.com/mavleo96/rocket/internal/csvlog"
	"github.com/mavleo96/rocket/internal/metrics"
	"github.com/mavleo96/rocket/internal/models"
	"github.com/mavleo96/rocket/internal/network"
	"github.com/mavleo96/rocket/internal/utils"
	log "github.com/sirupsen/logrus"
)

// State is the lifecycle state of an Engine
type State int

const (
	StateIdle State = iota
	StateConfigured
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConfigured:
		return "Configured"
	case StateRunning:
		return "Running"
	case StateStopped:
		return "Stopped"
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}

var (
	ErrNotRunning       = errors.New("engine is not running")
	ErrNoActionRecorder = errors.New("action log is enabled but no action recorder is set")
)

// StatusObserver receives every decoded status change
type StatusObserver interface {
	OnStatusChange(status *codec.StatusChange)
	CurrentLedgerSeq() int
}

// ActionRecorder persists processed packets
type ActionRecorder interface {
	LogAction(r csvlog.ActionRecord) error
}

// Options are the strategy independent engine settings
type Options struct {
	AutoPartition      bool
	AutoParseIdentical bool
	AutoParseSubsets   bool
	KeepActionLog      bool
	Partition          [][]int
	Subsets            map[int][][]int
	Seed               *uint64
}

// OptionsFromConfig collects the engine settings of a run
func OptionsFromConfig(strategyCfg *config.StrategyConfig, networkCfg *config.NetworkConfig) Options {
	subsets := make(map[int][][]int, len(strategyCfg.Subsets))
	for sender, groups := range strategyCfg.Subsets {
		subsets[sender] = groups
	}
	opts := Options{
		AutoPartition:      strategyCfg.AutoPartition,
		AutoParseIdentical: strategyCfg.AutoParseIdentical,
		AutoParseSubsets:   strategyCfg.AutoParseSubsets,
		KeepActionLog:      strategyCfg.KeepActionLog,
		Subsets:            subsets,
		Seed:               strategyCfg.Seed,
	}
	if networkCfg != nil {
		opts.Partition = networkCfg.NetworkPartition
	}
	return opts
}

// Engine runs every intercepted packet through the partition, replay and
// strategy stages
type Engine struct {
	mutex    sync.RWMutex
	state    State
	strategy Strategy
	network  *network.Network
	options  Options
	rng      *rand.Rand
	observer StatusObserver
	recorder ActionRecorder
	metrics  *metrics.Metrics
}

// CreateEngine creates an idle engine around strategy
func CreateEngine(strategy Strategy, opts Options) *Engine {
	seed := uint64(time.Now().UnixNano())
	if opts.Seed != nil {
		seed = *opts.Seed
	}
	log.Infof("[Engine] Using seed %d", seed)
	return &Engine{
		mutex:    sync.RWMutex{},
		state:    StateIdle,
		strategy: strategy,
		network:  network.CreateNetwork(),
		options:  opts,
		rng:      rand.New(rand.NewPCG(seed, seed)),
	}
}

// SetMetrics attaches collectors. A nil value disables metrics.
func (e *Engine) SetMetrics(m *metrics.Metrics) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.metrics = m
	if observed, ok := e.strategy.(DispatchObserved); ok && m != nil {
		observed.SetDispatchObserver(m.ObserveDispatch)
	}
}

// SetObserver attaches the status change observer
func (e *Engine) SetObserver(observer StatusObserver) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.observer = observer
}

// SetActionRecorder replaces the action recorder, usually once per iteration
func (e *Engine) SetActionRecorder(recorder ActionRecorder) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.recorder = recorder
}

// State returns the current lifecycle state
func (e *Engine) State() State {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.state
}

// Network returns the network model
func (e *Engine) Network() *network.Network {
	return e.network
}

// UpdateNetwork registers a node list, applies the configured partition and
// subsets and sets the strategy up again. A running engine stays running.
func (e *Engine) UpdateNetwork(nodes []models.ValidatorNode) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.state == StateStopped {
		return fmt.Errorf("cannot update network: %w", ErrNotRunning)
	}

	// a rejected node list leaves the current network and strategy untouched
	if err := e.registerOn(network.CreateNetwork(), nodes); err != nil {
		return err
	}
	if e.state != StateIdle {
		e.strategy.Stop()
	}
	if err := e.registerOn(e.network, nodes); err != nil {
		return err
	}
	if e.options.AutoParseSubsets {
		e.network.SetSubsets(e.options.Subsets)
	}
	if err := e.strategy.Setup(e.network, e.rng); err != nil {
		return fmt.Errorf("strategy setup: %w", err)
	}
	if e.state == StateIdle {
		e.state = StateConfigured
	}
	log.Infof("[Engine] Registered %d nodes, state %s", len(nodes), e.state)
	return nil
}

func (e *Engine) registerOn(net *network.Network, nodes []models.ValidatorNode) error {
	if err := net.Register(nodes); err != nil {
		return err
	}
	if e.options.AutoPartition && len(e.options.Partition) > 0 {
		return net.Partition(e.options.Partition)
	}
	return nil
}

// Start moves a configured engine to Running
func (e *Engine) Start() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	switch e.state {
	case StateRunning:
		return nil
	case StateConfigured:
		e.state = StateRunning
		log.Info("[Engine] Running")
		return nil
	}
	return fmt.Errorf("cannot start engine in state %s", e.state)
}

// Stop stops the strategy. Blocked ProcessPacket calls return with an error.
func (e *Engine) Stop() {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.state == StateStopped {
		return
	}
	if e.state != StateIdle {
		e.strategy.Stop()
	}
	e.state = StateStopped
	log.Info("[Engine] Stopped")
}

// ResetHistory clears the per pair history before a new iteration
func (e *Engine) ResetHistory() {
	e.network.ClearHistory()
}

// ProcessPacket decides the fate of one packet sent from the node listening
// on fromPort to the node listening on toPort
func (e *Engine) ProcessPacket(ctx context.Context, fromPort, toPort uint32, data []byte) (Decision, error) {
	e.mutex.RLock()
	state, observer, recorder, m := e.state, e.observer, e.recorder, e.metrics
	e.mutex.RUnlock()
	if state != StateRunning {
		return Decision{}, ErrNotRunning
	}
	if e.options.KeepActionLog && recorder == nil {
		return Decision{}, ErrNoActionRecorder
	}

	from, err := e.network.PortToID(fromPort)
	if err != nil {
		return Decision{}, err
	}
	to, err := e.network.PortToID(toPort)
	if err != nil {
		return Decision{}, err
	}

	msg, decodeErr := codec.Decode(data)
	if decodeErr != nil {
		log.Debugf("[Engine] Forwarding undecodable packet %d -> %d: %v", from, to, decodeErr)
	}

	decision, err := e.decide(ctx, from, to, data, msg)
	if err != nil {
		return Decision{}, err
	}
	e.network.Record(from, to, data, decision.Action, decision.Data, decision.SendAmount)

	if status, ok := msg.(*codec.StatusChange); ok && observer != nil {
		observer.OnStatusChange(status)
	}

	messageType := messageTypeName(msg, data)
	if e.options.KeepActionLog {
		record := csvlog.ActionRecord{
			Timestamp:    time.Now().UnixMilli(),
			Action:       decision.Action,
			SendAmount:   decision.SendAmount,
			FromNode:     from,
			ToNode:       to,
			MessageType:  messageType,
			OriginalData: describe(msg, data, observer),
			MutatedData:  describeFinal(msg, data, decision.Data, observer),
		}
		if err := recorder.LogAction(record); err != nil {
			log.Warnf("[Engine] Failed to log action: %v", err)
		}
	}
	m.ObservePacket(messageType, decision.Action, decision.SendAmount)

	return decision, nil
}

func (e *Engine) decide(ctx context.Context, from, to int, data []byte, msg codec.Message) (Decision, error) {
	if e.options.AutoPartition {
		allowed, err := e.network.CheckCommunication(from, to)
		if err == nil && !allowed {
			return Drop(data), nil
		}
	}
	if e.options.AutoParseIdentical {
		if prev, ok := e.network.MatchPrevious(from, to, data); ok {
			return Decision{Data: prev.Final, Action: prev.Action, SendAmount: prev.SendAmount}, nil
		}
		if e.options.AutoParseSubsets {
			if prev, ok := e.network.MatchSubsets(from, to, data); ok {
				return Decision{Data: prev.Final, Action: prev.Action, SendAmount: prev.SendAmount}, nil
			}
		}
	}
	if msg == nil {
		return Forward(data), nil
	}
	return e.strategy.HandlePacket(ctx, &Packet{Data: data, From: from, To: to, Message: msg})
}

func messageTypeName(msg codec.Message, data []byte) string {
	if msg != nil {
		return msg.Type().String()
	}
	if h, err := codec.DecodeHeader(data); err == nil {
		return h.Type.String()
	}
	return codec.MessageType(0).String()
}

// describe renders a message for the action log. Proposals carry the
// sequence of the ledger they are proposed for.
func describe(msg codec.Message, data []byte, observer StatusObserver) string {
	if msg == nil {
		return utils.HexString(data)
	}
	fields := codec.Fields(msg)
	if _, ok := msg.(*codec.ProposeSet); ok && observer != nil {
		fields = append(fields, codec.Field{Key: "ledger_seq", Value: strconv.Itoa(observer.CurrentLedgerSeq() + 1)})
	}
	return codec.FormatFields(fields)
}

func describeFinal(msg codec.Message, original, final []byte, observer StatusObserver) string {
	if bytes.Equal(original, final) {
		return describe(msg, original, observer)
	}
	mutated, err := codec.Decode(final)
	if err != nil {
		return utils.HexString(final)
	}
	return describe(mutated, final, observer)
}
