package riskengine

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/riskmonitor/engine/pkg/observability"
)

// IdleRescorer periodically recomputes risk for positions that have not
// had a fresh update recently, separate from the update-triggered
// recompute path — spec.md §2's "opportunistic scheduler for idle
// positions".
type IdleRescorer struct {
	cron    *cron.Cron
	rescore func(ctx context.Context) error
	logger  *observability.Logger
}

// NewIdleRescorer builds a scheduler that invokes rescore on the given cron
// spec (e.g. "@every 15m").
func NewIdleRescorer(spec string, rescore func(ctx context.Context) error, logger *observability.Logger) (*IdleRescorer, error) {
	r := &IdleRescorer{cron: cron.New(), rescore: rescore, logger: logger}
	_, err := r.cron.AddFunc(spec, r.tick)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *IdleRescorer) tick() {
	ctx := context.Background()
	if err := r.rescore(ctx); err != nil && r.logger != nil {
		r.logger.Error(ctx, "idle position rescore failed", err, nil)
	}
}

// Start begins the schedule. Stop must be called to release the goroutine.
func (r *IdleRescorer) Start() { r.cron.Start() }

// Stop halts the schedule and waits for any in-flight rescore to finish.
func (r *IdleRescorer) Stop() { <-r.cron.Stop().Done() }
