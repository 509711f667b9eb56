package strategy

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/mavleo96/rocket/internal/config"
	"github.com/mavleo96/rocket/internal/dispatcher"
	"github.com/mavleo96/rocket/internal/network"
)

func init() {
	Register("RandomPriority", NewRandomPriority)
}

// RandomPriorityParams configures RandomPriority
type RandomPriorityParams struct {
	MinPriority       int64 `yaml:"min_priority"`
	MaxPriority       int64 `yaml:"max_priority"`
	dispatcher.Config `yaml:",inline"`
}

// Validate checks the priority range and the dispatcher settings
func (p RandomPriorityParams) Validate() error {
	if p.MinPriority < 0 || p.MaxPriority <= p.MinPriority {
		return &config.ConfigurationError{
			Field:  "params",
			Reason: fmt.Sprintf("priority range [%d, %d] is invalid", p.MinPriority, p.MaxPriority),
		}
	}
	if err := p.Config.Validate(); err != nil {
		return &config.ConfigurationError{Field: "params", Reason: err.Error()}
	}
	return nil
}

// RandomPriority delivers every packet unchanged, in an order given by a
// random priority and at a rate set by the dispatcher
type RandomPriority struct {
	paced
	params RandomPriorityParams
	rng    lockedRand
}

// CreateRandomPriority validates params and returns the strategy
func CreateRandomPriority(params RandomPriorityParams) (*RandomPriority, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	s := &RandomPriority{params: params}
	s.cfg = params.Config
	return s, nil
}

// NewRandomPriority is the registry factory
func NewRandomPriority(cfg *config.StrategyConfig) (Strategy, error) {
	params := RandomPriorityParams{MinPriority: 1, MaxPriority: 100, Config: DefaultDispatchConfig()}
	if err := cfg.DecodeParams(&params); err != nil {
		return nil, err
	}
	return CreateRandomPriority(params)
}

func (s *RandomPriority) Setup(_ *network.Network, rng *rand.Rand) error {
	s.rng.set(rng)
	return s.restart()
}

func (s *RandomPriority) HandlePacket(ctx context.Context, pkt *Packet) (Decision, error) {
	priority := s.rng.IntRange(s.params.MinPriority, s.params.MaxPriority)
	if err := s.wait(ctx, priority); err != nil {
		return Decision{}, err
	}
	return Forward(pkt.Data), nil
}

func (s *RandomPriority) Stop() {
	s.stop()
}
