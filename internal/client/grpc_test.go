package client

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/svcbackup/internal/server"
)

// fakeAdmin records the last request and metadata it received.
type fakeAdmin struct {
	req *structpb.Struct
	md  metadata.MD
	err error
}

func (f *fakeAdmin) Update(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f.req = req
	f.md, _ = metadata.FromIncomingContext(ctx)
	if f.err != nil {
		return nil, f.err
	}
	return structpb.NewStruct(map[string]any{"result": true})
}

func (f *fakeAdmin) Call(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f.req = req
	f.md, _ = metadata.FromIncomingContext(ctx)
	if f.err != nil {
		return nil, f.err
	}
	return structpb.NewStruct(map[string]any{"result": map[string]any{"method": req.Fields["method"].GetStringValue()}})
}

func newTestGRPCClient(t *testing.T, fake *fakeAdmin) *GRPCClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	srv.RegisterService(&server.AdminServiceDesc, fake)
	hs := health.NewServer()
	hs.SetServingStatus(server.AdminServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := NewGRPCClient("passthrough:///bufnet", "secret",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestGRPCClient_AdminUpdate(t *testing.T) {
	fake := &fakeAdmin{}
	c := newTestGRPCClient(t, fake)
	c.SetActor("ops")

	ok, err := c.AdminUpdate(context.Background(), map[string]any{
		"order_id": int64(42),
		"config":   map[string]any{"datastore": "tank"},
	})
	if err != nil || !ok {
		t.Fatalf("AdminUpdate() = %v, %v", ok, err)
	}
	got := fake.req.AsMap()
	if got["order_id"] != float64(42) {
		t.Errorf("order_id = %v", got["order_id"])
	}
	if cfg, _ := got["config"].(map[string]any); cfg["datastore"] != "tank" {
		t.Errorf("config = %v", got["config"])
	}
	if v := fake.md.Get("authorization"); len(v) != 1 || v[0] != "Bearer secret" {
		t.Errorf("authorization = %v", v)
	}
	if v := fake.md.Get("x-actor"); len(v) != 1 || v[0] != "ops" {
		t.Errorf("x-actor = %v", v)
	}
}

func TestGRPCClient_AdminCall(t *testing.T) {
	fake := &fakeAdmin{}
	c := newTestGRPCClient(t, fake)

	res, err := c.AdminCall(context.Background(), "usage", map[string]any{"order_id": 42})
	if err != nil {
		t.Fatalf("AdminCall() error = %v", err)
	}
	if m, _ := res.(map[string]any); m["method"] != "usage" {
		t.Errorf("result = %v", res)
	}
	if data, _ := fake.req.AsMap()["data"].(map[string]any); data["order_id"] != float64(42) {
		t.Errorf("data = %v", fake.req.AsMap())
	}

	// Without data the request carries only the method.
	if _, err := c.AdminCall(context.Background(), "usage", nil); err != nil {
		t.Fatal(err)
	}
	if _, ok := fake.req.Fields["data"]; ok {
		t.Errorf("unexpected data field: %v", fake.req)
	}
}

func TestGRPCClient_Error(t *testing.T) {
	fake := &fakeAdmin{err: status.Error(codes.NotFound, "Order not found")}
	c := newTestGRPCClient(t, fake)

	_, err := c.AdminCall(context.Background(), "usage", map[string]any{"order_id": 1})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestGRPCClient_Health(t *testing.T) {
	c := newTestGRPCClient(t, &fakeAdmin{})

	got, err := c.Health(context.Background())
	if err != nil || got != "ok" {
		t.Fatalf("Health() = %q, %v", got, err)
	}
}

func TestGRPCClient_UnsupportedOverGRPC(t *testing.T) {
	c := newTestGRPCClient(t, &fakeAdmin{})
	ctx := context.Background()

	if _, err := c.CreateService(ctx, 1); err == nil {
		t.Error("CreateService: expected error")
	}
	if _, err := c.Action(ctx, 1, "activate"); err == nil {
		t.Error("Action: expected error")
	}
	if _, err := c.ListPlugins(ctx); err == nil {
		t.Error("ListPlugins: expected error")
	}
}
