package pb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	PacketService_SendPacket_FullMethodName            = "/packet.PacketService/send_packet"
	PacketService_SendValidatorNodeInfo_FullMethodName = "/packet.PacketService/send_validator_node_info"
	PacketService_GetConfig_FullMethodName             = "/packet.PacketService/get_config"
)

// PacketServiceClient is the client API for the PacketService.
type PacketServiceClient interface {
	SendPacket(ctx context.Context, in *Packet, opts ...grpc.CallOption) (*PacketAck, error)
	SendValidatorNodeInfo(ctx context.Context, opts ...grpc.CallOption) (grpc.ClientStreamingClient[ValidatorNodeInfo, ValidatorNodeInfoAck], error)
	GetConfig(ctx context.Context, in *GetConfig, opts ...grpc.CallOption) (*Config, error)
}

type packetServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewPacketServiceClient(cc grpc.ClientConnInterface) PacketServiceClient {
	return &packetServiceClient{cc}
}

func callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.ForceCodec(Codec{})}, opts...)
}

func (c *packetServiceClient) SendPacket(ctx context.Context, in *Packet, opts ...grpc.CallOption) (*PacketAck, error) {
	out := new(PacketAck)
	err := c.cc.Invoke(ctx, PacketService_SendPacket_FullMethodName, in, out, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *packetServiceClient) SendValidatorNodeInfo(ctx context.Context, opts ...grpc.CallOption) (grpc.ClientStreamingClient[ValidatorNodeInfo, ValidatorNodeInfoAck], error) {
	stream, err := c.cc.NewStream(ctx, &PacketService_ServiceDesc.Streams[0], PacketService_SendValidatorNodeInfo_FullMethodName, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[ValidatorNodeInfo, ValidatorNodeInfoAck]{ClientStream: stream}, nil
}

func (c *packetServiceClient) GetConfig(ctx context.Context, in *GetConfig, opts ...grpc.CallOption) (*Config, error) {
	out := new(Config)
	err := c.cc.Invoke(ctx, PacketService_GetConfig_FullMethodName, in, out, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PacketServiceServer is the server API for the PacketService.
type PacketServiceServer interface {
	SendPacket(context.Context, *Packet) (*PacketAck, error)
	SendValidatorNodeInfo(grpc.ClientStreamingServer[ValidatorNodeInfo, ValidatorNodeInfoAck]) error
	GetConfig(context.Context, *GetConfig) (*Config, error)
}

// UnimplementedPacketServiceServer can be embedded to have forward compatible implementations.
type UnimplementedPacketServiceServer struct{}

func (UnimplementedPacketServiceServer) SendPacket(context.Context, *Packet) (*PacketAck, error) {
	return nil, status.Errorf(codes.Unimplemented, "method send_packet not implemented")
}

func (UnimplementedPacketServiceServer) SendValidatorNodeInfo(grpc.ClientStreamingServer[ValidatorNodeInfo, ValidatorNodeInfoAck]) error {
	return status.Errorf(codes.Unimplemented, "method send_validator_node_info not implemented")
}

func (UnimplementedPacketServiceServer) GetConfig(context.Context, *GetConfig) (*Config, error) {
	return nil, status.Errorf(codes.Unimplemented, "method get_config not implemented")
}

// RegisterPacketServiceServer registers srv on s. The grpc server must be
// created with grpc.ForceServerCodec(pb.Codec{}).
func RegisterPacketServiceServer(s grpc.ServiceRegistrar, srv PacketServiceServer) {
	s.RegisterService(&PacketService_ServiceDesc, srv)
}

func _PacketService_SendPacket_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Packet)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PacketServiceServer).SendPacket(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: PacketService_SendPacket_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PacketServiceServer).SendPacket(ctx, req.(*Packet))
	}
	return interceptor(ctx, in, info, handler)
}

func _PacketService_SendValidatorNodeInfo_Handler(srv any, stream grpc.ServerStream) error {
	return srv.(PacketServiceServer).SendValidatorNodeInfo(&grpc.GenericServerStream[ValidatorNodeInfo, ValidatorNodeInfoAck]{ServerStream: stream})
}

func _PacketService_GetConfig_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetConfig)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PacketServiceServer).GetConfig(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: PacketService_GetConfig_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PacketServiceServer).GetConfig(ctx, req.(*GetConfig))
	}
	return interceptor(ctx, in, info, handler)
}

// PacketService_ServiceDesc is the grpc.ServiceDesc for the PacketService.
var PacketService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "packet.PacketService",
	HandlerType: (*PacketServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "send_packet",
			Handler:    _PacketService_SendPacket_Handler,
		},
		{
			MethodName: "get_config",
			Handler:    _PacketService_GetConfig_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "send_validator_node_info",
			Handler:       _PacketService_SendValidatorNodeInfo_Handler,
			ClientStreams: true,
		},
	},
	Metadata: "packet.proto",
}
