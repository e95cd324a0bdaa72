package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"relevance-engine/infrastructure/di"
)

// maintenance interval knobs. The teacher has no background-worker
// concept to ground these against directly; spacing follows the TTLs
// the sweeps themselves enforce (spec §4.6, §4.3, §4.8) rather than an
// arbitrary fixed cadence.
const (
	globalSweepInterval = time.Minute
	perUserSweepInterval = 5 * time.Minute
)

// startMaintenanceLoop launches the background sweepers documented in
// spec §4.3/§4.6/§4.8/§4.9 (loop expiry, recall-session expiry, tier
// demotion, pattern detection, care-circle pressure checks) as
// goroutines ticking on their own schedule. It returns a stop function
// that cancels every loop and waits for them to exit.
func startMaintenanceLoop(ctx context.Context, c *di.Container) func() {
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		globalTicker := time.NewTicker(globalSweepInterval)
		defer globalTicker.Stop()
		userTicker := time.NewTicker(perUserSweepInterval)
		defer userTicker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case now := <-globalTicker.C:
				runGlobalSweeps(loopCtx, c, now)
			case now := <-userTicker.C:
				runPerUserSweeps(loopCtx, c, now)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func runGlobalSweeps(ctx context.Context, c *di.Container, now time.Time) {
	if n, err := c.Workers.SweepLoopExpiry(ctx, now); err != nil {
		c.Logger.Warn("loop expiry sweep failed", zap.Error(err))
	} else if n > 0 {
		c.Logger.Info("expired open loops", zap.Int("count", n))
	}

	if n, err := c.Workers.SweepRecallSessionExpiry(ctx, now); err != nil {
		c.Logger.Warn("recall session expiry sweep failed", zap.Error(err))
	} else if n > 0 {
		c.Logger.Info("expired recall sessions", zap.Int("count", n))
	}

	if n, err := c.Workers.SweepColdArchival(ctx, now); err != nil {
		c.Logger.Warn("cold archival sweep failed", zap.Error(err))
	} else if n > 0 {
		c.Logger.Info("archived memories to cold storage", zap.Int("count", n))
	}

	if n, err := c.Workers.RunPatternDetection(ctx, now); err != nil {
		c.Logger.Warn("pattern detection sweep failed", zap.Error(err))
	} else if n > 0 {
		c.Logger.Info("updated temporal patterns", zap.Int("count", n))
	}
}

// runPerUserSweeps iterates every user with recorded temporal pattern
// activity as a stand-in for "every known user" (the pattern repository
// is the only store that indexes users directly, per
// infrastructure/persistence/dynamodb/temporalpattern_repository.go).
func runPerUserSweeps(ctx context.Context, c *di.Container, now time.Time) {
	users, err := c.PatternRepo.ListAllUsers(ctx)
	if err != nil {
		c.Logger.Warn("listing users for per-user maintenance failed", zap.Error(err))
		return
	}
	for _, userID := range users {
		if _, err := c.Workers.SweepHotDemotion(ctx, userID); err != nil {
			c.Logger.Warn("hot demotion sweep failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
		if _, err := c.Workers.CareCirclePressureCheck(ctx, userID, now); err != nil {
			c.Logger.Warn("care circle pressure check failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
		if n, err := c.Workers.SweepSideEffectRepair(ctx, userID, now); err != nil {
			c.Logger.Warn("side-effect repair sweep failed", zap.String("user_id", userID.String()), zap.Error(err))
		} else if n > 0 {
			c.Logger.Info("repaired incomplete ingest side effects", zap.String("user_id", userID.String()), zap.Int("count", n))
		}
	}
}
