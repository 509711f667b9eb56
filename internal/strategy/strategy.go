package strategy

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/mavleo96/rocket/internal/codec"
	"github.com/mavleo96/rocket/internal/config"
	"github.com/mavleo96/rocket/internal/models"
	"github.com/mavleo96/rocket/internal/network"
	"github.com/mavleo96/rocket/internal/utils"
)

// Packet is an intercepted message handed to a strategy. Message is nil
// only for packets the codec could not decode, which never reach a strategy.
type Packet struct {
	Data    []byte
	From    int
	To      int
	Message codec.Message
}

// Decision is what happens to a packet: the bytes to deliver, the action
// and how many times the bytes are delivered
type Decision struct {
	Data       []byte
	Action     models.Action
	SendAmount uint32
}

// Forward delivers data once without delay
func Forward(data []byte) Decision {
	return Decision{Data: data, Action: models.ActionSend, SendAmount: 1}
}

// Drop discards data
func Drop(data []byte) Decision {
	return Decision{Data: data, Action: models.ActionDrop, SendAmount: 1}
}

// Strategy decides the fate of every packet between two connected nodes
type Strategy interface {
	// Setup is called whenever a new node list is registered
	Setup(net *network.Network, rng *rand.Rand) error
	// HandlePacket may block, for example until a dispatcher releases the packet
	HandlePacket(ctx context.Context, pkt *Packet) (Decision, error)
	// Stop releases every blocked HandlePacket call
	Stop()
}

// Factory builds a strategy from its configuration. Parameters must be
// validated here.
type Factory func(cfg *config.StrategyConfig) (Strategy, error)

var (
	registryMutex sync.RWMutex
	registry      = make(map[string]Factory)
)

// Register makes a strategy available by name
func Register(name string, factory Factory) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	if _, exists := registry[name]; exists {
		panic("strategy: Register called twice for " + name)
	}
	registry[name] = factory
}

// New builds the strategy registered under name
func New(name string, cfg *config.StrategyConfig) (Strategy, error) {
	registryMutex.RLock()
	factory, ok := registry[name]
	registryMutex.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q, available: %v", name, Names())
	}
	return factory(cfg)
}

// Names returns the registered strategy names in sorted order
func Names() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	names := utils.Keys(registry)
	slices.Sort(names)
	return names
}

// lockedRand serializes access to a *rand.Rand shared by concurrent
// HandlePacket calls
type lockedRand struct {
	mutex sync.Mutex
	rng   *rand.Rand
}

func (r *lockedRand) set(rng *rand.Rand) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.rng = rng
}

func (r *lockedRand) Float64() float64 {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.rng.Float64()
}

// IntRange returns a uniform value in [lo, hi]
func (r *lockedRand) IntRange(lo, hi int64) int64 {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return lo + r.rng.Int64N(hi-lo+1)
}
