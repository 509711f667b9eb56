package strategy

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/mavleo96/rocket/internal/codec"
	"github.com/mavleo96/rocket/internal/config"
	"github.com/mavleo96/rocket/internal/crypto"
	"github.com/mavleo96/rocket/internal/network"
	log "github.com/sirupsen/logrus"
)

// rippleEpoch is 2000-01-01T00:00:00Z in unix seconds
const rippleEpoch = 946684800

func init() {
	Register("MutationExample", NewMutationExample)
}

// RippleTime converts t to seconds since the ripple epoch
func RippleTime(t time.Time) uint32 {
	return uint32(t.Unix() - rippleEpoch)
}

// MutationExample rewrites the close time of every proposal to the current
// time and signs it again with the proposer's validation key
type MutationExample struct {
	mutex   sync.RWMutex
	network *network.Network
	now     func() time.Time
}

// CreateMutationExample returns the strategy. A nil clock uses time.Now.
func CreateMutationExample(now func() time.Time) *MutationExample {
	if now == nil {
		now = time.Now
	}
	return &MutationExample{now: now}
}

// NewMutationExample is the registry factory
func NewMutationExample(_ *config.StrategyConfig) (Strategy, error) {
	return CreateMutationExample(nil), nil
}

func (s *MutationExample) Setup(net *network.Network, _ *rand.Rand) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.network = net
	return nil
}

func (s *MutationExample) HandlePacket(_ context.Context, pkt *Packet) (Decision, error) {
	proposal, ok := pkt.Message.(*codec.ProposeSet)
	if !ok {
		return Forward(pkt.Data), nil
	}
	s.mutex.RLock()
	net := s.network
	s.mutex.RUnlock()

	priv, ok := net.PrivateKeyFor(proposal.NodePubKey)
	if !ok {
		log.Warnf("[MutationExample] No validation key for proposer of packet %d -> %d, forwarding", pkt.From, pkt.To)
		return Forward(pkt.Data), nil
	}

	mutated := *proposal
	mutated.CloseTime = RippleTime(s.now())
	digest := crypto.ProposalDigest(mutated.ProposeSeq, mutated.CloseTime, mutated.PreviousLedger, mutated.CurrentTxHash)
	sig, err := crypto.Sign(priv, digest)
	if err != nil {
		return Decision{}, fmt.Errorf("sign proposal: %w", err)
	}
	mutated.Signature = sig

	data, err := codec.Encode(&mutated)
	if err != nil {
		return Decision{}, err
	}
	return Forward(data), nil
}

func (s *MutationExample) Stop() {}
