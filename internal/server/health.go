package server

import (
	"context"
	"time"

	"github.com/heptiolabs/healthcheck"
)

const (
	readyTimeout       = 2 * time.Second
	goroutineThreshold = 10000
)

func newHealthHandler(p Pinger) healthcheck.Handler {
	h := healthcheck.NewHandler()
	h.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(goroutineThreshold))
	if p != nil {
		h.AddReadinessCheck("database", healthcheck.Timeout(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), readyTimeout)
			defer cancel()
			return p.Ping(ctx)
		}, readyTimeout))
	}
	return h
}
