package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "decayregion"

// Metrics are the engine's Prometheus collectors.
type Metrics struct {
	tasksStarted     prometheus.Counter
	tasksCompleted   prometheus.Counter
	tasksCancelled   *prometheus.CounterVec
	activeTasks      prometheus.Gauge
	fluidRemovals    prometheus.Counter
	floodCleared     prometheus.Counter
	floodSaturated   prometheus.Counter
	entityDecays     prometheus.Counter
	ledgerErrors     prometheus.Counter
	snapshotRefusals prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		tasksStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decay_tasks_started_total",
			Help:      "Block decay tasks started.",
		}),
		tasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decay_tasks_completed_total",
			Help:      "Block decay tasks that removed their block.",
		}),
		tasksCancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decay_tasks_cancelled_total",
			Help:      "Block decay tasks cancelled before completion.",
		}, []string{"reason"}),
		activeTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "decay_tasks_active",
			Help:      "Block decay tasks currently running.",
		}),
		fluidRemovals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fluid_removals_total",
			Help:      "Scheduled fluid removals that fired.",
		}),
		floodCleared: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flood_fill_cells_cleared_total",
			Help:      "Fluid cells cleared by flood fill.",
		}),
		floodSaturated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flood_fill_saturated_total",
			Help:      "Flood fills stopped by the cell cap with cells left to visit.",
		}),
		entityDecays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entity_decays_total",
			Help:      "Placed objects removed by decay.",
		}),
		ledgerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_errors_total",
			Help:      "Ledger operations that failed and were skipped.",
		}),
		snapshotRefusals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_refusals_total",
			Help:      "Snapshot captures refused or failed.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.tasksStarted, m.tasksCompleted, m.tasksCancelled, m.activeTasks,
			m.fluidRemovals, m.floodCleared, m.floodSaturated, m.entityDecays,
			m.ledgerErrors, m.snapshotRefusals,
		)
	}
	return m
}
