package models

import (
	"fmt"

	"github.com/mavleo96/rocket/pb"
)

const defaultHost = "127.0.0.1"

// ValidatorNode represents a validator in the network under test. The index
// of a node in the registered node list is its node id.
type ValidatorNode struct {
	Peer     SocketAddress
	WSPublic SocketAddress
	WSAdmin  SocketAddress
	RPC      SocketAddress
	Keys     ValidatorKeyData
}

// String returns a short description of the node
func (n ValidatorNode) String() string {
	return fmt.Sprintf("ValidatorNode(peer=%s, ws_admin=%s, key=%s)", n.Peer, n.WSAdmin, n.Keys.ValidationPublicKey)
}

// NodeFromInfo converts the node info streamed by the interceptor into a ValidatorNode
func NodeFromInfo(info *pb.ValidatorNodeInfo) ValidatorNode {
	return ValidatorNode{
		Peer:     SocketAddress{Host: defaultHost, Port: info.PeerPort},
		WSPublic: SocketAddress{Host: defaultHost, Port: info.WsPublicPort},
		WSAdmin:  SocketAddress{Host: defaultHost, Port: info.WsAdminPort},
		RPC:      SocketAddress{Host: defaultHost, Port: info.RpcPort},
		Keys: ValidatorKeyData{
			Status:               info.Status,
			ValidationKey:        info.ValidationKey,
			ValidationPrivateKey: info.ValidationPrivateKey,
			ValidationPublicKey:  info.ValidationPublicKey,
			ValidationSeed:       info.ValidationSeed,
		},
	}
}

// NodesFromInfo converts a list of node infos preserving order
func NodesFromInfo(infos []*pb.ValidatorNodeInfo) []ValidatorNode {
	nodes := make([]ValidatorNode, 0, len(infos))
	for _, info := range infos {
		nodes = append(nodes, NodeFromInfo(info))
	}
	return nodes
}

// Info converts the node back into the message the interceptor streams
func (n ValidatorNode) Info() *pb.ValidatorNodeInfo {
	return &pb.ValidatorNodeInfo{
		PeerPort:             n.Peer.Port,
		WsPublicPort:         n.WSPublic.Port,
		WsAdminPort:          n.WSAdmin.Port,
		RpcPort:              n.RPC.Port,
		Status:               n.Keys.Status,
		ValidationKey:        n.Keys.ValidationKey,
		ValidationPrivateKey: n.Keys.ValidationPrivateKey,
		ValidationPublicKey:  n.Keys.ValidationPublicKey,
		ValidationSeed:       n.Keys.ValidationSeed,
	}
}
