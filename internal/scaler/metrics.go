package scaler

import (
	"github.com/prometheus/client_golang/prometheus"

	"ghascaler/internal/fleet"
	"ghascaler/internal/plan"
)

// Metrics exposes the reconciliation loop's Prometheus instrumentation.
// It also implements executor.ActionObserver so action outcomes are
// counted at the point they happen.
type Metrics struct {
	cyclesTotal   *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	queuedJobs    prometheus.Gauge
	desiredCount  prometheus.Gauge
	actionsTotal  *prometheus.CounterVec
	machineStates *prometheus.GaugeVec
	runnerStates  *prometheus.GaugeVec
}

// NewMetrics builds and registers the scaler metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ghascaler",
			Name:      "reconcile_cycles_total",
			Help:      "Reconciliation cycles by outcome.",
		}, []string{"outcome"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ghascaler",
			Name:      "reconcile_cycle_duration_seconds",
			Help:      "Wall-clock duration of one reconciliation cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		queuedJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ghascaler",
			Name:      "queued_jobs",
			Help:      "Queued workflow jobs as of the last queue snapshot.",
		}),
		desiredCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ghascaler",
			Name:      "desired_runners",
			Help:      "Desired global runner count from the last cycle.",
		}),
		actionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ghascaler",
			Name:      "actions_total",
			Help:      "Executed actions by kind and outcome.",
		}, []string{"kind", "outcome"}),
		machineStates: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ghascaler",
			Name:      "machines",
			Help:      "Fleet machines by state.",
		}, []string{"state"}),
		runnerStates: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ghascaler",
			Name:      "runners",
			Help:      "Fleet runners by state.",
		}, []string{"state"}),
	}
	reg.MustRegister(
		m.cyclesTotal,
		m.cycleDuration,
		m.queuedJobs,
		m.desiredCount,
		m.actionsTotal,
		m.machineStates,
		m.runnerStates,
	)
	return m
}

// ObserveAction counts one finished action.
func (m *Metrics) ObserveAction(kind plan.ActionKind, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.actionsTotal.WithLabelValues(string(kind), outcome).Inc()
}

// ObserveCycle records one finished cycle.
func (m *Metrics) ObserveCycle(outcome string, seconds float64) {
	m.cyclesTotal.WithLabelValues(outcome).Inc()
	m.cycleDuration.Observe(seconds)
}

// ObserveDemand records the latest queue and demand figures.
func (m *Metrics) ObserveDemand(queued, desired int) {
	m.queuedJobs.Set(float64(queued))
	m.desiredCount.Set(float64(desired))
}

var machineStates = []fleet.MachineState{
	fleet.MachineUnprovisioned,
	fleet.MachineProvisioning,
	fleet.MachineReady,
	fleet.MachineDraining,
	fleet.MachineDecommissioning,
	fleet.MachineTerminated,
	fleet.MachineUnreachable,
}

var runnerStates = []fleet.RunnerState{
	fleet.RunnerRequested,
	fleet.RunnerCreating,
	fleet.RunnerIdle,
	fleet.RunnerBusy,
	fleet.RunnerStopping,
	fleet.RunnerDestroyed,
	fleet.RunnerErrored,
	fleet.RunnerFailed,
}

// ObserveFleet republishes the per-state machine and runner gauges from a
// snapshot. Every known state is set, including to zero, so a state a
// machine just left does not linger at its old value.
func (m *Metrics) ObserveFleet(snap fleet.Snapshot) {
	machineCounts := make(map[fleet.MachineState]int)
	runnerCounts := make(map[fleet.RunnerState]int)
	for _, mi := range snap.Machines {
		machineCounts[mi.State]++
		for _, r := range mi.Runners {
			runnerCounts[r.State]++
		}
	}
	for _, s := range machineStates {
		m.machineStates.WithLabelValues(string(s)).Set(float64(machineCounts[s]))
	}
	for _, s := range runnerStates {
		m.runnerStates.WithLabelValues(string(s)).Set(float64(runnerCounts[s]))
	}
}
