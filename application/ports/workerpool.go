package ports

import "context"

// SideEffectTask is one unit of background work dispatched from the
// ingest orchestrator's async stage (spec §4.5 step 5, §9: "messages
// dispatched to a background worker pool with at-least-once semantics
// and idempotent keys"). Key identifies the task for dedup/observability
// — the ingest orchestrator keys it by memory id, so re-dispatch after a
// crash targets the same logical unit of work.
type SideEffectTask struct {
	Key     string
	Execute func(ctx context.Context) error
}

// WorkerPool runs SideEffectTasks off the request path. Submit returns
// once the task is queued, not once it has run — callers that need the
// outcome must observe it some other way (here: the repair sweep
// re-checking the memory's persisted state, spec §4.5 "If any async step
// fails after retries, a repair job reconciles").
type WorkerPool interface {
	Submit(task SideEffectTask) error
}
