// Package metrics provides Prometheus metrics for Cuentas: task
// lifecycle, driver invocations, reconciliation, and health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Tasks ──────────────────────────────────────────────────────────────────

// TasksActive tracks currently executing tasks.
var TasksActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "cuentas",
	Name:      "tasks_active",
	Help:      "Number of currently executing tasks.",
})

// TaskQueueDepth tracks tasks submitted but not yet running.
var TaskQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "cuentas",
	Name:      "task_queue_depth",
	Help:      "Number of tasks waiting for a worker slot.",
})

// TasksCompleted tracks completed tasks by type.
var TasksCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cuentas",
	Name:      "tasks_completed_total",
	Help:      "Total completed tasks.",
}, []string{"type"})

// TasksFailed tracks failed tasks by type and reason.
var TasksFailed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cuentas",
	Name:      "tasks_failed_total",
	Help:      "Total failed tasks.",
}, []string{"type", "reason"})

// ─── Drivers ────────────────────────────────────────────────────────────────

// DriverRunSeconds tracks driver invocation duration by command.
var DriverRunSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "cuentas",
	Name:      "driver_run_seconds",
	Help:      "Driver subprocess duration in seconds.",
	Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
}, []string{"command"})

// ─── Billing ────────────────────────────────────────────────────────────────

// BillsReconciled tracks bill records merged into persistent state.
var BillsReconciled = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "cuentas",
	Name:      "bills_reconciled_total",
	Help:      "Total bill records upserted by reconciliation.",
})

// PaymentsRecorded tracks payments written by completed pay tasks.
var PaymentsRecorded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "cuentas",
	Name:      "payments_recorded_total",
	Help:      "Total payments recorded.",
})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "cuentas",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})
