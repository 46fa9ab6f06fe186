// Package scaler runs the reconciliation loop that keeps the runner
// fleet sized to the GitHub Actions job queue.
//
// One cycle probes the fleet, observes the queue, plans demand and
// placement, and executes the resulting actions. Cycles are
// single-flight: a trigger arriving while a cycle is in progress is
// coalesced into exactly one follow-up cycle, never a concurrent one.
// Triggers come from the interval timer, the HTTP API, and webhook
// events; all of them funnel through the same channel.
package scaler
