package core

import (
	"context"
	"time"

	"github.com/sawpanic/pumpshort/internal/httpserver"
)

// Status implements httpserver.StatusProvider.
func (c *Core) Status(ctx context.Context) (httpserver.StatusReport, error) {
	return httpserver.StatusReport{
		Uptime:          time.Since(c.startAt).Round(time.Second).String(),
		ActiveActors:    c.orch.ActiveActorCount(),
		ExchangeHealthy: c.lastPollOK.Load(),
	}, nil
}

// Stats implements httpserver.StatusProvider.
func (c *Core) Stats(ctx context.Context) (httpserver.StatsReport, error) {
	return httpserver.StatsReport{
		ClassifierTrained: c.classify.IsTrained(),
		ClassifierSamples: c.classify.SampleCount(),
	}, nil
}
