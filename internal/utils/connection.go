package utils

import (
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// MaxMessageSize bounds the gRPC messages exchanged with the interceptor.
// A peer frame payload may use the whole 26-bit size field, plus headers.
const MaxMessageSize = 64<<20 + 1024

// Connect creates a lazy client connection to the packet service at addr.
// Calls wait for the connection to be ready instead of failing fast, since
// the harness may still be starting.
func Connect(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.WaitForReady(true),
			grpc.MaxCallRecvMsgSize(MaxMessageSize),
			grpc.MaxCallSendMsgSize(MaxMessageSize),
		),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to packet service at %s: %w", addr, err)
	}
	return conn, nil
}
