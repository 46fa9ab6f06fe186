// Package plan holds the two pure planning stages of a reconciliation
// cycle.
//
// PlanDemand turns a queue snapshot into a desired global runner count;
// PlanPlacement turns that count plus a fleet snapshot into an ordered
// list of actions. Both are deterministic functions of their inputs with
// no side effects, which is what makes the scaling behavior testable
// without a single remote call.
package plan
