// Package grpcapi serves the access tracker over gRPC. Messages are protobuf
// well-known types, so the service descriptor is written by hand instead of
// generated.
package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "libaccess.v1.AccessService"

// AccessServiceServer is the server API for libaccess.v1.AccessService.
type AccessServiceServer interface {
	CheckIn(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckOut(context.Context, *structpb.Struct) (*structpb.Struct, error)
	IsInside(context.Context, *structpb.Struct) (*wrapperspb.BoolValue, error)
	CurrentlyInside(context.Context, *structpb.Struct) (*structpb.Struct, error)
	History(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Report(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Occupancy(context.Context, *emptypb.Empty) (*wrapperspb.Int64Value, error)
	GenerateCode(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
}

func RegisterAccessServiceServer(s grpc.ServiceRegistrar, srv AccessServiceServer) {
	s.RegisterService(&AccessServiceDesc, srv)
}

var AccessServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AccessServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CheckIn", func(s AccessServiceServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return s.CheckIn(ctx, in)
		}),
		unary("CheckOut", func(s AccessServiceServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return s.CheckOut(ctx, in)
		}),
		unary("IsInside", func(s AccessServiceServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return s.IsInside(ctx, in)
		}),
		unary("CurrentlyInside", func(s AccessServiceServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return s.CurrentlyInside(ctx, in)
		}),
		unary("History", func(s AccessServiceServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return s.History(ctx, in)
		}),
		unary("Report", func(s AccessServiceServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return s.Report(ctx, in)
		}),
		unary("Occupancy", func(s AccessServiceServer, ctx context.Context, in *emptypb.Empty) (proto.Message, error) {
			return s.Occupancy(ctx, in)
		}),
		unary("GenerateCode", func(s AccessServiceServer, ctx context.Context, in *emptypb.Empty) (proto.Message, error) {
			return s.GenerateCode(ctx, in)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "libaccess/v1/access.proto",
}

// unary builds the MethodDesc that decodes the request into a fresh T and
// runs call through the server's interceptor chain.
func unary[T any, PT interface {
	*T
	proto.Message
}](name string, call func(AccessServiceServer, context.Context, PT) (proto.Message, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := PT(new(T))
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(AccessServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(PT))
			})
		},
	}
}
