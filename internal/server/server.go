// Package server implements the PacketService the interceptor talks to.
package server

import (
	"context"
	"errors"
	"io"

	"github.com/mavleo96/rocket/internal/config"
	"github.com/mavleo96/rocket/internal/dispatcher"
	"github.com/mavleo96/rocket/internal/models"
	"github.com/mavleo96/rocket/internal/network"
	"github.com/mavleo96/rocket/internal/strategy"
	"github.com/mavleo96/rocket/internal/utils"
	"github.com/mavleo96/rocket/pb"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// PacketProcessor decides the fate of intercepted packets
type PacketProcessor interface {
	ProcessPacket(ctx context.Context, fromPort, toPort uint32, data []byte) (strategy.Decision, error)
}

// NodeInfoHandler receives the validators of a freshly started network
type NodeInfoHandler func(nodes []models.ValidatorNode) error

// PacketServer serves packets, node info and the network configuration
type PacketServer struct {
	processor PacketProcessor
	onNodes   NodeInfoHandler
	config    *pb.Config
	ceiling   int64

	pb.UnimplementedPacketServiceServer
}

// CreatePacketServer creates a server handing packets to processor and
// node lists to onNodes
func CreatePacketServer(processor PacketProcessor, cfg *config.NetworkConfig, onNodes NodeInfoHandler) *PacketServer {
	return &PacketServer{
		processor: processor,
		onNodes:   onNodes,
		config:    cfg.Proto(),
		ceiling:   int64(cfg.Ceiling()),
	}
}

// NewGRPCServer creates a grpc server with the PacketService registered
func NewGRPCServer(s *PacketServer, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.ForceServerCodec(pb.Codec{}),
		grpc.MaxRecvMsgSize(utils.MaxMessageSize),
		grpc.MaxSendMsgSize(utils.MaxMessageSize),
	}, opts...)
	grpcServer := grpc.NewServer(opts...)
	pb.RegisterPacketServiceServer(grpcServer, s)
	return grpcServer
}

// SendPacket validates the ports of a packet and returns the decision for it
func (s *PacketServer) SendPacket(ctx context.Context, req *pb.Packet) (*pb.PacketAck, error) {
	if err := utils.ValidatePortsBelow(int64(req.GetFromPort()), int64(req.GetToPort()), s.ceiling); err != nil {
		log.Warnf("[SendPacket] Rejected packet: %v", err)
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	decision, err := s.processor.ProcessPacket(ctx, req.GetFromPort(), req.GetToPort(), req.GetData())
	if err != nil {
		return nil, statusError(err)
	}
	return &pb.PacketAck{
		Data:       decision.Data,
		Action:     uint32(decision.Action),
		SendAmount: decision.SendAmount,
	}, nil
}

func statusError(err error) error {
	switch {
	case errors.Is(err, strategy.ErrNotRunning):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, network.ErrUnknownPort):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, strategy.ErrNoActionRecorder):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, dispatcher.ErrClosedDispatcher):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	}
	log.Errorf("[SendPacket] Processing failed: %v", err)
	return status.Error(codes.Internal, err.Error())
}

// SendValidatorNodeInfo collects the streamed node list and registers it
func (s *PacketServer) SendValidatorNodeInfo(stream grpc.ClientStreamingServer[pb.ValidatorNodeInfo, pb.ValidatorNodeInfoAck]) error {
	infos := make([]*pb.ValidatorNodeInfo, 0)
	for {
		info, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		infos = append(infos, info)
	}
	log.Infof("[SendValidatorNodeInfo] Received %d validators", len(infos))

	if s.onNodes == nil {
		return status.Error(codes.Unimplemented, "validator registration is not enabled")
	}
	if err := s.onNodes(models.NodesFromInfo(infos)); err != nil {
		log.Errorf("[SendValidatorNodeInfo] Could not register validators: %v", err)
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return stream.SendAndClose(&pb.ValidatorNodeInfoAck{Status: "Received validator node info"})
}

// GetConfig returns the network layout the interceptor should start
func (s *PacketServer) GetConfig(ctx context.Context, req *pb.GetConfig) (*pb.Config, error) {
	return s.config, nil
}
