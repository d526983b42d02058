// Package bridge exposes the home commands to the game host over gRPC.
//
// HomeService carries google.protobuf.Struct messages, so hosts in any
// language can call it with only the well-known types:
//
//	rpc Execute(Struct) returns (Struct)  // {player, world, x, y, z, line, request_id?}
//	rpc Save(Struct) returns (Struct)     // {} -> {request_id}
package bridge

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "simplehome.v1.HomeService"

const (
	executeMethod = "/" + ServiceName + "/Execute"
	saveMethod    = "/" + ServiceName + "/Save"
)

// HomeServiceServer is the server API for HomeService.
type HomeServiceServer interface {
	Execute(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Save(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterHomeServiceServer registers srv on s.
func RegisterHomeServiceServer(s grpc.ServiceRegistrar, srv HomeServiceServer) {
	s.RegisterService(&HomeServiceDesc, srv)
}

// HomeServiceDesc describes HomeService for grpc.ServiceRegistrar.
var HomeServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*HomeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Execute", Handler: executeHandler},
		{MethodName: "Save", Handler: saveHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "simplehome/v1/home.proto",
}

func executeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HomeServiceServer).Execute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: executeMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(HomeServiceServer).Execute(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func saveHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HomeServiceServer).Save(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: saveMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(HomeServiceServer).Save(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
