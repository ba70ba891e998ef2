package client

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/svcbackup/internal/model"
	"github.com/alfredjeanlab/svcbackup/internal/server"
)

// GRPCClient implements Client using the gRPC transport. Only the admin API
// and health are served over gRPC.
type GRPCClient struct {
	conn   *grpc.ClientConn
	health healthpb.HealthClient
	token  string
	actor  string
}

// NewGRPCClient connects to the given gRPC address and returns a client.
func NewGRPCClient(addr, token string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{
		conn:   conn,
		health: healthpb.NewHealthClient(conn),
		token:  token,
	}, nil
}

// SetActor sets the x-actor metadata recorded on events caused by this client.
func (c *GRPCClient) SetActor(actor string) { c.actor = actor }

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// --- Orders ---

func (c *GRPCClient) CreateService(context.Context, int64) (map[string]any, error) {
	return nil, fmt.Errorf("CreateService is not supported over gRPC transport; use --transport=http")
}

func (c *GRPCClient) GetService(context.Context, int64) (map[string]any, error) {
	return nil, fmt.Errorf("GetService is not supported over gRPC transport; use --transport=http")
}

func (c *GRPCClient) Action(context.Context, int64, string) (bool, error) {
	return false, fmt.Errorf("Action is not supported over gRPC transport; use --transport=http")
}

// --- Admin ---

func (c *GRPCClient) AdminUpdate(ctx context.Context, data map[string]any) (bool, error) {
	out, err := c.invoke(ctx, server.AdminUpdateMethod, data)
	if err != nil {
		return false, err
	}
	return out.GetFields()["result"].GetBoolValue(), nil
}

func (c *GRPCClient) AdminCall(ctx context.Context, method string, data map[string]any) (any, error) {
	req := map[string]any{"method": method}
	if data != nil {
		req["data"] = data
	}
	out, err := c.invoke(ctx, server.AdminCallMethod, req)
	if err != nil {
		return nil, err
	}
	return out.GetFields()["result"].AsInterface(), nil
}

// --- Introspection ---

func (c *GRPCClient) GetEvents(context.Context, int64) ([]*model.Event, error) {
	return nil, fmt.Errorf("not supported over gRPC")
}

func (c *GRPCClient) ListPlugins(context.Context) ([]string, error) {
	return nil, fmt.Errorf("not supported over gRPC")
}

// --- Health ---

func (c *GRPCClient) Health(ctx context.Context) (string, error) {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: server.AdminServiceName})
	if err != nil {
		return "", err
	}
	if resp.GetStatus() == healthpb.HealthCheckResponse_SERVING {
		return "ok", nil
	}
	return resp.GetStatus().String(), nil
}

// invoke sends req as a google.protobuf.Struct. Values pass through
// encoding/json so callers can hand in any JSON-marshalable map.
func (c *GRPCClient) invoke(ctx context.Context, method string, req map[string]any) (*structpb.Struct, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	in := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, in); err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}
	if c.actor != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "x-actor", c.actor)
	}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}
