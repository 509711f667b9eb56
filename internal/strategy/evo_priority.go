package strategy

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/mavleo96/rocket/internal/codec"
	"github.com/mavleo96/rocket/internal/config"
	"github.com/mavleo96/rocket/internal/dispatcher"
	"github.com/mavleo96/rocket/internal/network"
)

func init() {
	Register("EvoPriority", NewEvoPriority)
}

// EvoPriorityParams configures EvoPriority. Encoding holds one priority per
// consensus message class and ordered node pair, laid out as PriorityIndex
// describes.
type EvoPriorityParams struct {
	Encoding          []int64 `yaml:"encoding"`
	dispatcher.Config `yaml:",inline"`
}

// EvoPriority paces consensus messages with priorities looked up from a
// fixed table. Other messages are forwarded immediately.
type EvoPriority struct {
	paced
	encoding []int64

	nodesMutex sync.RWMutex
	nodes      int
}

// CreateEvoPriority validates the dispatcher settings and returns the
// strategy. The table size is checked once the node count is known.
func CreateEvoPriority(params EvoPriorityParams) (*EvoPriority, error) {
	if err := params.Config.Validate(); err != nil {
		return nil, &config.ConfigurationError{Field: "params", Reason: err.Error()}
	}
	if len(params.Encoding) == 0 {
		return nil, &config.ConfigurationError{Field: "params.encoding", Reason: "encoding is empty"}
	}
	s := &EvoPriority{encoding: params.Encoding}
	s.cfg = params.Config
	return s, nil
}

// NewEvoPriority is the registry factory
func NewEvoPriority(cfg *config.StrategyConfig) (Strategy, error) {
	params := EvoPriorityParams{Config: DefaultDispatchConfig()}
	if err := cfg.DecodeParams(&params); err != nil {
		return nil, err
	}
	return CreateEvoPriority(params)
}

func (s *EvoPriority) Setup(net *network.Network, _ *rand.Rand) error {
	n := net.NodeCount()
	if want := dispatcher.TableSize(n); len(s.encoding) != want {
		return &config.ConfigurationError{
			Field:  "params.encoding",
			Reason: fmt.Sprintf("expected %d priorities for %d nodes, got %d", want, n, len(s.encoding)),
		}
	}
	s.nodesMutex.Lock()
	s.nodes = n
	s.nodesMutex.Unlock()
	return s.restart()
}

func (s *EvoPriority) HandlePacket(ctx context.Context, pkt *Packet) (Decision, error) {
	class, ok := codec.ConsensusClass(pkt.Message.Type())
	if !ok {
		return Forward(pkt.Data), nil
	}
	s.nodesMutex.RLock()
	n := s.nodes
	s.nodesMutex.RUnlock()

	index, err := dispatcher.PriorityIndex(class, pkt.From, pkt.To, n)
	if err != nil {
		return Decision{}, err
	}
	if err := s.wait(ctx, s.encoding[index]); err != nil {
		return Decision{}, err
	}
	return Forward(pkt.Data), nil
}

func (s *EvoPriority) Stop() {
	s.stop()
}
