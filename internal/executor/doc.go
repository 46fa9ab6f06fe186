// Package executor applies reconciliation plans to the outside world.
//
// A plan's actions are partitioned by target machine and the partitions
// run concurrently; machines are independent, so one machine's failures
// or slow SSH sessions never hold up the rest of the fleet. Within a
// partition, actions run in plan order. Every remote attempt is bounded
// by the configured action timeout, failed attempts retry with
// exponential backoff up to the attempt budget, and every outcome,
// success or final failure, is recorded in the fleet tracker. Nothing
// the executor does can fail the reconciliation cycle itself.
package executor
