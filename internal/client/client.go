package client

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/mavleo96/rocket/internal/models"
	"github.com/mavleo96/rocket/internal/utils"
	"github.com/mavleo96/rocket/pb"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	clientTimeout = 500 * time.Millisecond
	maxAttempts   = 20
)

// Client speaks to the packet service of a running harness the same way
// the interceptor does
type Client struct {
	conn    *grpc.ClientConn
	service pb.PacketServiceClient

	timeout  time.Duration
	attempts int
}

// CreateClient connects lazily to the packet service at addr
func CreateClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	conn, err := utils.Connect(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{
		conn:     conn,
		service:  pb.NewPacketServiceClient(conn),
		timeout:  clientTimeout,
		attempts: maxAttempts,
	}, nil
}

// Close closes the underlying connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// Config returns the network layout served by the harness
func (c *Client) Config(ctx context.Context) (*pb.Config, error) {
	var cfg *pb.Config
	err := c.retry(ctx, "GetConfig", func(ctx context.Context) (err error) {
		cfg, err = c.service.GetConfig(ctx, &pb.GetConfig{})
		return err
	})
	return cfg, err
}

// RegisterNodes streams the validators of the network to the harness and
// returns its acknowledgement
func (c *Client) RegisterNodes(ctx context.Context, nodes []models.ValidatorNode) (string, error) {
	stream, err := c.service.SendValidatorNodeInfo(ctx)
	if err != nil {
		return "", err
	}
	for _, node := range nodes {
		if err := stream.Send(node.Info()); err != nil {
			if errors.Is(err, io.EOF) {
				// the server closed the stream, its status comes with CloseAndRecv
				break
			}
			return "", err
		}
	}
	ack, err := stream.CloseAndRecv()
	if err != nil {
		return "", err
	}
	log.Infof("[Client] Registered %d validators: %s", len(nodes), ack.Status)
	return ack.Status, nil
}

// SendPacket asks the harness what to do with a packet. Attempts are
// repeated while the harness is not running an iteration.
func (c *Client) SendPacket(ctx context.Context, fromPort, toPort uint32, data []byte) (*pb.PacketAck, error) {
	var ack *pb.PacketAck
	err := c.retry(ctx, "SendPacket", func(ctx context.Context) (err error) {
		ack, err = c.service.SendPacket(ctx, &pb.Packet{Data: data, FromPort: fromPort, ToPort: toPort})
		return err
	})
	return ack, err
}

// retry runs call until it succeeds, fails with a code other than
// Unavailable or DeadlineExceeded, or runs out of attempts
func (c *Client) retry(ctx context.Context, name string, call func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err = call(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		if code := status.Code(err); code != codes.Unavailable && code != codes.DeadlineExceeded {
			return err
		}
		log.Debugf("[Client] %s attempt %d failed: %v", name, attempt, status.Convert(err).Message())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.timeout):
		}
	}
	return err
}
