package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gatheredNames(t *testing.T) map[string]bool {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestTaskMetrics_Registered(t *testing.T) {
	TasksCompleted.WithLabelValues("sync").Inc()
	TasksFailed.WithLabelValues("pay", "driver_timeout").Inc()
	TasksActive.Set(2)
	TaskQueueDepth.Set(1)

	names := gatheredNames(t)
	expected := []string{
		"cuentas_tasks_completed_total",
		"cuentas_tasks_failed_total",
		"cuentas_tasks_active",
		"cuentas_task_queue_depth",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestDriverAndBillingMetrics_Registered(t *testing.T) {
	DriverRunSeconds.WithLabelValues("fetch").Observe(1.5)
	BillsReconciled.Inc()
	PaymentsRecorded.Inc()
	HealthCheckStatus.WithLabelValues("sqlite").Set(1)

	names := gatheredNames(t)
	expected := []string{
		"cuentas_driver_run_seconds",
		"cuentas_bills_reconciled_total",
		"cuentas_payments_recorded_total",
		"cuentas_health_check_status",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestAllMetricsGatherable(t *testing.T) {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}

	count := 0
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "cuentas_") {
			count++
		}
	}
	if count < 8 {
		t.Errorf("expected at least 8 cuentas_ metric families, got %d", count)
	}
}
