package network

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/mavleo96/rocket/internal/config"
	"github.com/mavleo96/rocket/internal/crypto"
	"github.com/mavleo96/rocket/internal/models"
	"github.com/mavleo96/rocket/internal/utils"
	log "github.com/sirupsen/logrus"
)

var ErrUnknownPort = errors.New("unknown peer port")

// MutatedMessage is one processed packet between an ordered pair of nodes
type MutatedMessage struct {
	Initial    []byte
	Action     models.Action
	Final      []byte
	SendAmount uint32
}

// Network is the harness view of the validator network: node ids, port
// mappings, which pairs may communicate and the per pair message history.
type Network struct {
	mutex         sync.RWMutex
	nodes         []models.ValidatorNode
	portToID      map[uint32]int
	idToPort      []uint32
	communication [][]bool
	subsets       map[int][][]int
	history       [][][]MutatedMessage
	privateKeys   map[string][]byte
}

// CreateNetwork creates an empty network. Register must be called before use.
func CreateNetwork() *Network {
	return &Network{
		mutex:       sync.RWMutex{},
		portToID:    make(map[uint32]int),
		subsets:     make(map[int][][]int),
		privateKeys: make(map[string][]byte),
	}
}

// Register rebuilds every mapping for a new node list. Communication is
// allowed between all distinct nodes and history is empty afterwards.
func (n *Network) Register(nodes []models.ValidatorNode) error {
	if len(nodes) == 0 {
		return &config.ConfigurationError{Field: "validator_nodes", Reason: "node list is empty"}
	}
	portToID := make(map[uint32]int, len(nodes))
	idToPort := make([]uint32, len(nodes))
	for id, node := range nodes {
		if other, exists := portToID[node.Peer.Port]; exists {
			return &config.ConfigurationError{
				Field:  "validator_nodes",
				Reason: fmt.Sprintf("nodes %d and %d share peer port %d", other, id, node.Peer.Port),
			}
		}
		portToID[node.Peer.Port] = id
		idToPort[id] = node.Peer.Port
	}

	privateKeys := make(map[string][]byte)
	for id, node := range nodes {
		if node.Keys.ValidationPublicKey == "" || node.Keys.ValidationPrivateKey == "" {
			continue
		}
		pub, err := crypto.DecodeNodePublic(node.Keys.ValidationPublicKey)
		if err != nil {
			log.Warnf("[Network] Node %d: skipping undecodable public key: %v", id, err)
			continue
		}
		priv, err := crypto.DecodeNodePrivate(node.Keys.ValidationPrivateKey)
		if err != nil {
			log.Warnf("[Network] Node %d: skipping undecodable private key: %v", id, err)
			continue
		}
		privateKeys[utils.HexString(pub)] = priv
	}

	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.nodes = slices.Clone(nodes)
	n.portToID = portToID
	n.idToPort = idToPort
	n.privateKeys = privateKeys
	n.subsets = make(map[int][][]int)
	n.communication = fullMatrix(len(nodes))
	n.history = emptyHistory(len(nodes))
	log.Infof("[Network] Registered %d validator nodes", len(nodes))
	return nil
}

func fullMatrix(size int) [][]bool {
	matrix := make([][]bool, size)
	for i := range matrix {
		matrix[i] = make([]bool, size)
		for j := range matrix[i] {
			matrix[i][j] = i != j
		}
	}
	return matrix
}

func emptyHistory(size int) [][][]MutatedMessage {
	history := make([][][]MutatedMessage, size)
	for i := range history {
		history[i] = make([][]MutatedMessage, size)
	}
	return history
}

// NodeCount returns the number of registered nodes
func (n *Network) NodeCount() int {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	return len(n.nodes)
}

// Nodes returns a copy of the registered node list
func (n *Network) Nodes() []models.ValidatorNode {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	return slices.Clone(n.nodes)
}

// PortToID maps a peer port to its node id
func (n *Network) PortToID(port uint32) (int, error) {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	id, ok := n.portToID[port]
	if !ok {
		return -1, fmt.Errorf("%w: no node listens on peer port %d", ErrUnknownPort, port)
	}
	return id, nil
}

// IDToPort maps a node id to its peer port
func (n *Network) IDToPort(id int) (uint32, error) {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	if id < 0 || id >= len(n.idToPort) {
		return 0, fmt.Errorf("node id %d out of range", id)
	}
	return n.idToPort[id], nil
}

// PrivateKeyFor returns the validation private key of the node owning the
// given compressed public key
func (n *Network) PrivateKeyFor(pub []byte) ([]byte, bool) {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	priv, ok := n.privateKeys[utils.HexString(pub)]
	return priv, ok
}

func (n *Network) validPair(from, to int) error {
	if err := utils.ValidatePorts(int64(from), int64(to)); err != nil {
		return err
	}
	if from >= len(n.nodes) || to >= len(n.nodes) {
		return fmt.Errorf("node pair (%d, %d) out of range for %d nodes", from, to, len(n.nodes))
	}
	return nil
}

// Partition allows communication only inside each group. Groups must be
// disjoint and cover every node.
func (n *Network) Partition(groups [][]int) error {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	if err := config.CheckPartition("partition", groups, len(n.nodes)); err != nil {
		return err
	}
	matrix := make([][]bool, len(n.nodes))
	for i := range matrix {
		matrix[i] = make([]bool, len(n.nodes))
	}
	for _, group := range groups {
		for _, i := range group {
			for _, j := range group {
				matrix[i][j] = i != j
			}
		}
	}
	n.communication = matrix
	log.Infof("[Network] Applied partition %v", groups)
	return nil
}

// Connect allows communication between two nodes in both directions
func (n *Network) Connect(i, j int) error {
	return n.setLink(i, j, true)
}

// Disconnect blocks communication between two nodes in both directions
func (n *Network) Disconnect(i, j int) error {
	return n.setLink(i, j, false)
}

func (n *Network) setLink(i, j int, allowed bool) error {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	if err := n.validPair(i, j); err != nil {
		return err
	}
	n.communication[i][j] = allowed
	n.communication[j][i] = allowed
	return nil
}

// ResetCommunications allows communication between all distinct nodes
func (n *Network) ResetCommunications() {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.communication = fullMatrix(len(n.nodes))
}

// CheckCommunication reports whether from may send to to
func (n *Network) CheckCommunication(from, to int) (bool, error) {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	if err := n.validPair(from, to); err != nil {
		return false, err
	}
	return n.communication[from][to], nil
}

// SetSubsets replaces the receiver groups used for subset matching
func (n *Network) SetSubsets(subsets map[int][][]int) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.subsets = make(map[int][][]int, len(subsets))
	for sender, groups := range subsets {
		n.subsets[sender] = slices.Clone(groups)
	}
}

// Record appends a processed packet to the history of the pair. Invalid
// pairs are logged and ignored.
func (n *Network) Record(from, to int, initial []byte, action models.Action, final []byte, sendAmount uint32) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	if err := n.validPair(from, to); err != nil {
		log.Warnf("[Network] Not recording message: %v", err)
		return
	}
	n.history[from][to] = append(n.history[from][to], MutatedMessage{
		Initial:    bytes.Clone(initial),
		Action:     action,
		Final:      bytes.Clone(final),
		SendAmount: sendAmount,
	})
}

// History returns the recorded messages of a pair
func (n *Network) History(from, to int) []MutatedMessage {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	if n.validPair(from, to) != nil {
		return nil
	}
	return slices.Clone(n.history[from][to])
}

// ClearHistory empties the history of every pair
func (n *Network) ClearHistory() {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.history = emptyHistory(len(n.nodes))
}

func findInitial(messages []MutatedMessage, data []byte) (MutatedMessage, bool) {
	for _, m := range messages {
		if bytes.Equal(m.Initial, data) {
			return m, true
		}
	}
	return MutatedMessage{}, false
}

// MatchPrevious looks for an earlier packet with the same bytes between the
// same pair
func (n *Network) MatchPrevious(from, to int, data []byte) (MutatedMessage, bool) {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	if n.validPair(from, to) != nil {
		return MutatedMessage{}, false
	}
	return findInitial(n.history[from][to], data)
}

// MatchSubsets looks for an earlier packet with the same bytes sent by from
// to another member of a receiver group that contains to
func (n *Network) MatchSubsets(from, to int, data []byte) (MutatedMessage, bool) {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	if n.validPair(from, to) != nil {
		return MutatedMessage{}, false
	}
	for _, group := range n.subsets[from] {
		if !slices.Contains(group, to) {
			continue
		}
		for _, member := range group {
			if member == to || member == from || member < 0 || member >= len(n.nodes) {
				continue
			}
			if m, ok := findInitial(n.history[from][member], data); ok {
				return m, true
			}
		}
	}
	return MutatedMessage{}, false
}
