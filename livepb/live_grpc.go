package livepb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	LiveService_AuthorizePresenter_FullMethodName     = "/livedeck.v1.LiveService/AuthorizePresenter"
	LiveService_PublishSlideChange_FullMethodName     = "/livedeck.v1.LiveService/PublishSlideChange"
	LiveService_ReportPosition_FullMethodName         = "/livedeck.v1.LiveService/ReportPosition"
	LiveService_GetSlideState_FullMethodName          = "/livedeck.v1.LiveService/GetSlideState"
	LiveService_ListActiveParticipants_FullMethodName = "/livedeck.v1.LiveService/ListActiveParticipants"
	LiveService_Subscribe_FullMethodName              = "/livedeck.v1.LiveService/Subscribe"
)

type LiveServiceClient interface {
	AuthorizePresenter(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	PublishSlideChange(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ReportPosition(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetSlideState(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListActiveParticipants(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Subscribe(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error)
}

type liveServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewLiveServiceClient(cc grpc.ClientConnInterface) LiveServiceClient {
	return &liveServiceClient{cc}
}

func (c *liveServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	cOpts := append([]grpc.CallOption{grpc.StaticMethod()}, opts...)
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, cOpts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *liveServiceClient) AuthorizePresenter(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, LiveService_AuthorizePresenter_FullMethodName, in, opts)
}

func (c *liveServiceClient) PublishSlideChange(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, LiveService_PublishSlideChange_FullMethodName, in, opts)
}

func (c *liveServiceClient) ReportPosition(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, LiveService_ReportPosition_FullMethodName, in, opts)
}

func (c *liveServiceClient) GetSlideState(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, LiveService_GetSlideState_FullMethodName, in, opts)
}

func (c *liveServiceClient) ListActiveParticipants(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, LiveService_ListActiveParticipants_FullMethodName, in, opts)
}

func (c *liveServiceClient) Subscribe(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	cOpts := append([]grpc.CallOption{grpc.StaticMethod()}, opts...)
	stream, err := c.cc.NewStream(ctx, &LiveService_ServiceDesc.Streams[0], LiveService_Subscribe_FullMethodName, cOpts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type LiveService_SubscribeClient = grpc.ServerStreamingClient[structpb.Struct]

// LiveServiceServer must embed UnimplementedLiveServiceServer.
type LiveServiceServer interface {
	AuthorizePresenter(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PublishSlideChange(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReportPosition(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSlideState(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListActiveParticipants(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Subscribe(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
	mustEmbedUnimplementedLiveServiceServer()
}

type UnimplementedLiveServiceServer struct{}

func (UnimplementedLiveServiceServer) AuthorizePresenter(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method AuthorizePresenter not implemented")
}
func (UnimplementedLiveServiceServer) PublishSlideChange(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method PublishSlideChange not implemented")
}
func (UnimplementedLiveServiceServer) ReportPosition(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ReportPosition not implemented")
}
func (UnimplementedLiveServiceServer) GetSlideState(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetSlideState not implemented")
}
func (UnimplementedLiveServiceServer) ListActiveParticipants(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ListActiveParticipants not implemented")
}
func (UnimplementedLiveServiceServer) Subscribe(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error {
	return status.Errorf(codes.Unimplemented, "method Subscribe not implemented")
}
func (UnimplementedLiveServiceServer) mustEmbedUnimplementedLiveServiceServer() {}

func RegisterLiveServiceServer(s grpc.ServiceRegistrar, srv LiveServiceServer) {
	s.RegisterService(&LiveService_ServiceDesc, srv)
}

type LiveService_SubscribeServer = grpc.ServerStreamingServer[structpb.Struct]

func unaryHandler(method string, call func(LiveServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LiveServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LiveServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func _LiveService_Subscribe_Handler(srv any, stream grpc.ServerStream) error {
	m := new(structpb.Struct)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(LiveServiceServer).Subscribe(m, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

var LiveService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "livedeck.v1.LiveService",
	HandlerType: (*LiveServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "AuthorizePresenter",
			Handler:    unaryHandler(LiveService_AuthorizePresenter_FullMethodName, LiveServiceServer.AuthorizePresenter),
		},
		{
			MethodName: "PublishSlideChange",
			Handler:    unaryHandler(LiveService_PublishSlideChange_FullMethodName, LiveServiceServer.PublishSlideChange),
		},
		{
			MethodName: "ReportPosition",
			Handler:    unaryHandler(LiveService_ReportPosition_FullMethodName, LiveServiceServer.ReportPosition),
		},
		{
			MethodName: "GetSlideState",
			Handler:    unaryHandler(LiveService_GetSlideState_FullMethodName, LiveServiceServer.GetSlideState),
		},
		{
			MethodName: "ListActiveParticipants",
			Handler:    unaryHandler(LiveService_ListActiveParticipants_FullMethodName, LiveServiceServer.ListActiveParticipants),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       _LiveService_Subscribe_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "livepb/live.proto",
}
