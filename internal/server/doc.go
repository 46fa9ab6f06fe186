// Package server exposes the HTTP surface: health, metrics, a small
// operator API over the fleet, and the GitHub webhook receiver.
//
// The HTTP layer holds no reconciliation logic. Every endpoint either
// reads a snapshot, nudges the loop via its trigger, or applies exactly
// one operator-level state transition on the fleet tracker.
package server
