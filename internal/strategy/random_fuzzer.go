package strategy

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/mavleo96/rocket/internal/config"
	"github.com/mavleo96/rocket/internal/models"
	"github.com/mavleo96/rocket/internal/network"
)

func init() {
	Register("RandomFuzzer", NewRandomFuzzer)
}

// RandomFuzzerParams configures RandomFuzzer. Packets that are neither
// dropped nor delayed are sent immediately.
type RandomFuzzerParams struct {
	DropProbability  float64 `yaml:"drop_probability"`
	DelayProbability float64 `yaml:"delay_probability"`
	MinDelayMs       int64   `yaml:"min_delay_ms"`
	MaxDelayMs       int64   `yaml:"max_delay_ms"`
}

// Validate checks that the probabilities and the delay range are usable
func (p RandomFuzzerParams) Validate() error {
	if p.DropProbability < 0 || p.DelayProbability < 0 {
		return &config.ConfigurationError{
			Field:  "params",
			Reason: fmt.Sprintf("drop and delay probabilities must be non-negative, got %v and %v", p.DropProbability, p.DelayProbability),
		}
	}
	if p.DropProbability+p.DelayProbability > 1 {
		return &config.ConfigurationError{
			Field:  "params",
			Reason: fmt.Sprintf("drop and delay probabilities must sum to at most 1, got %v", p.DropProbability+p.DelayProbability),
		}
	}
	if p.MinDelayMs < 0 || p.MaxDelayMs < 0 {
		return &config.ConfigurationError{
			Field:  "params",
			Reason: fmt.Sprintf("delays must be non-negative, got %d and %d", p.MinDelayMs, p.MaxDelayMs),
		}
	}
	if p.MinDelayMs > p.MaxDelayMs {
		return &config.ConfigurationError{
			Field:  "params",
			Reason: fmt.Sprintf("min_delay_ms %d is larger than max_delay_ms %d", p.MinDelayMs, p.MaxDelayMs),
		}
	}
	if p.MaxDelayMs >= int64(models.ActionDrop) {
		return &config.ConfigurationError{Field: "params", Reason: "max_delay_ms collides with the drop action"}
	}
	return nil
}

// RandomFuzzer sends, drops or delays every packet at random
type RandomFuzzer struct {
	params RandomFuzzerParams
	rng    lockedRand
}

// CreateRandomFuzzer validates params and returns the strategy
func CreateRandomFuzzer(params RandomFuzzerParams) (*RandomFuzzer, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &RandomFuzzer{params: params}, nil
}

// NewRandomFuzzer is the registry factory
func NewRandomFuzzer(cfg *config.StrategyConfig) (Strategy, error) {
	params := RandomFuzzerParams{}
	if err := cfg.DecodeParams(&params); err != nil {
		return nil, err
	}
	return CreateRandomFuzzer(params)
}

func (s *RandomFuzzer) Setup(_ *network.Network, rng *rand.Rand) error {
	s.rng.set(rng)
	return nil
}

func (s *RandomFuzzer) HandlePacket(_ context.Context, pkt *Packet) (Decision, error) {
	send := 1 - s.params.DropProbability - s.params.DelayProbability
	choice := s.rng.Float64()
	switch {
	case choice < send:
		return Forward(pkt.Data), nil
	case choice < send+s.params.DropProbability:
		return Drop(pkt.Data), nil
	}
	delay := s.rng.IntRange(s.params.MinDelayMs, s.params.MaxDelayMs)
	return Decision{Data: pkt.Data, Action: models.Action(delay), SendAmount: 1}, nil
}

func (s *RandomFuzzer) Stop() {}
