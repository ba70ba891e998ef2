package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/svcbackup/internal/service"
)

// AdminServiceName is the fully qualified gRPC service name.
const AdminServiceName = "svcbackup.v1.AdminService"

// Full method names of the admin service.
const (
	AdminUpdateMethod = "/" + AdminServiceName + "/Update"
	AdminCallMethod   = "/" + AdminServiceName + "/Call"
)

// ErrorCodeKey is the trailer carrying a service error's numeric code.
const ErrorCodeKey = "x-error-code"

// AdminServiceServer is the gRPC admin API. Requests and responses are
// google.protobuf.Struct:
//
//	Update: {"order_id": 1, "config": {...}} -> {"result": true}
//	Call:   {"method": "status", "data": {"order_id": 1, ...}} -> {"result": ...}
type AdminServiceServer interface {
	Update(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Call(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// AdminServiceDesc describes AdminServiceServer for grpc.Server.RegisterService.
var AdminServiceDesc = grpc.ServiceDesc{
	ServiceName: AdminServiceName,
	HandlerType: (*AdminServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Update", Handler: unaryHandler(AdminUpdateMethod, AdminServiceServer.Update)},
		{MethodName: "Call", Handler: unaryHandler(AdminCallMethod, AdminServiceServer.Call)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "svcbackup/v1/admin.proto",
}

func unaryHandler(fullMethod string, call func(AdminServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AdminServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AdminServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// grpcAdmin adapts Server to AdminServiceServer.
type grpcAdmin struct {
	s *Server
}

func (g grpcAdmin) Update(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ok, err := g.s.admin.Update(ctx, req.AsMap())
	if err != nil {
		return nil, grpcError(ctx, err)
	}
	return resultStruct(ok)
}

func (g grpcAdmin) Call(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.AsMap()
	method, _ := fields["method"].(string)
	if method == "" {
		return nil, status.Error(codes.InvalidArgument, "method is required")
	}

	var args []map[string]any
	if data, ok := fields["data"].(map[string]any); ok {
		args = append(args, data)
	}
	result, err := g.s.admin.Call(ctx, method, args...)
	if err != nil {
		return nil, grpcError(ctx, err)
	}
	return resultStruct(result)
}

// resultStruct wraps v as {"result": v}. v goes through encoding/json so
// that times, int64 and adapter-defined structs become JSON values.
func resultStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(map[string]any{"result": v})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode result: %v", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode result: %v", err)
	}
	return out, nil
}

// grpcError maps a service error onto a gRPC status and attaches its code
// as a trailer. Internal causes are logged, not returned.
func grpcError(ctx context.Context, err error) error {
	if service.KindOf(err) == service.KindInternal {
		slog.ErrorContext(ctx, "admin rpc failed", "error", err)
	}
	if code := service.CodeOf(err); code != 0 {
		_ = grpc.SetTrailer(ctx, metadata.Pairs(ErrorCodeKey, strconv.Itoa(code)))
	}
	return status.Error(grpcCode(service.KindOf(err)), service.PublicMessage(err))
}

func grpcCode(k service.Kind) codes.Code {
	switch k {
	case service.KindInvalid:
		return codes.InvalidArgument
	case service.KindNotFound:
		return codes.NotFound
	case service.KindUnsupported:
		return codes.Unimplemented
	default:
		return codes.Internal
	}
}

// NewGRPCServer creates a gRPC server with standard interceptors and
// registers the admin service, the health service and reflection.
func NewGRPCServer(s *Server, authToken string) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor,
			ActorInterceptor,
			LoggingInterceptor,
			AuthInterceptor(authToken),
		),
	)

	srv.RegisterService(&AdminServiceDesc, grpcAdmin{s: s})

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(AdminServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	reflection.Register(srv)

	return srv
}
