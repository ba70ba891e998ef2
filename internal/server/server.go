// Package server exposes the service module to the order engine and to
// administrators over HTTP/JSON and gRPC.
package server

import (
	"context"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/alfredjeanlab/svcbackup/internal/service"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the handlers shared by both transports.
type Server struct {
	svc     *service.Service
	admin   *service.Admin
	metrics *prometheus.Registry
	health  healthcheck.Handler
	hub     *Stream
}

// New returns a Server for svc. pinger backs the readiness probe, reg the
// /metrics endpoint and stream GET /v1/events/stream; any may be nil. The
// stream only sees events when it is also part of svc's publisher.
func New(svc *service.Service, pinger Pinger, reg *prometheus.Registry, stream *Stream) *Server {
	if stream == nil {
		stream = NewStream()
	}
	return &Server{
		svc:     svc,
		admin:   service.NewAdmin(svc),
		metrics: reg,
		health:  newHealthHandler(pinger),
		hub:     stream,
	}
}
