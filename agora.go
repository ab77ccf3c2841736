// Package agora provides a one-call façade over the runtime package for
// running policy-governed multi-actor sessions. Most applications interact
// with this package by:
//  1. Loading a roster and settings (config package) and pointing at a
//     policy file
//  2. Calling Run for a bounded session, or runtime.Bootstrap directly for
//     tick-level control
//
// The façade delegates orchestration to runtime.Runtime while folding the
// bootstrap / run / drain / shutdown sequence into one call. All defaults
// are safe for local use: without a configured backend the session runs on
// the deterministic rule-based pipeline.
package agora

import (
	"context"
	"errors"
	"time"

	"github.com/agora-sim/agora/core"
	"github.com/agora-sim/agora/runtime"
)

const drainTimeout = 30 * time.Second

// Run bootstraps a session from cfg, drives it for maxTicks scheduling
// ticks (or until ctx is cancelled when maxTicks <= 0), drains the
// maintenance pool, and shuts everything down. It returns the full
// committed event log, derived fields included.
func Run(ctx context.Context, cfg runtime.Config, maxTicks int) ([]core.Event, error) {
	rt, err := runtime.Bootstrap(cfg)
	if err != nil {
		return nil, err
	}

	runErr := rt.Run(ctx, maxTicks)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	// Drain before reading so derived tags and reweighted references are
	// in place; the shutdown drain below is then a no-op. Draining keeps
	// going after a cancelled run, but not forever.
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer cancel()
	drainErr := rt.Memory().Drain(drainCtx)
	events, readErr := rt.Store().All()
	shutdownErr := rt.Shutdown(drainCtx)

	if runErr != nil {
		return events, runErr
	}
	if drainErr != nil {
		return events, drainErr
	}
	if readErr != nil {
		return events, readErr
	}
	return events, shutdownErr
}
