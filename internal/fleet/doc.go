// Package fleet is the single source of truth for machine and runner
// state.
//
// The Tracker owns every Machine and Runner record and is the only
// component permitted to mutate them. Probes and action outcomes are
// recorded through it; planners read point-in-time snapshots so they never
// observe a half-updated fleet. All mutation happens under one mutex;
// the serialized reconciliation cycle means contention is not a concern,
// correctness of concurrent probe/outcome recording is.
//
// Runner ids are deterministic ("<machine>-runner-<slot>" with a
// monotonic per-machine slot index), which makes container creation
// idempotent across retries and lets the tracker re-adopt runners found
// on a machine after a process restart.
package fleet
