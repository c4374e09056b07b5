package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewJobMetrics(reg)
	m.ObserveDuration("sweep", 250*time.Millisecond)
	m.IncSuccess("sweep")
	m.IncFailure("sweep")
	m.IncSkipped("")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	v, err := counterValue(mfs, "reservation_job_success_total", map[string]string{"job": "sweep"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	v, err = counterValue(mfs, "reservation_job_failure_total", map[string]string{"job": "sweep"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	v, err = counterValue(mfs, "reservation_job_skipped_total", map[string]string{"job": "unknown"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	sum, err := histogramSum(mfs, "reservation_job_duration_seconds", map[string]string{"job": "sweep"})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, sum, 0.001)
}

func TestReservationMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewReservationMetrics(reg)
	m.AddTransitions(TransitionReserved, 2)
	m.AddTransitions(TransitionReserved, 0)
	m.IncConflict()
	m.ObserveNotification("reservation", nil)
	m.ObserveNotification("reservation", errors.New("gateway down"))
	m.ObserveNotification("reservation", errors.New("gateway down"))

	mfs, err := reg.Gather()
	require.NoError(t, err)

	v, err := counterValue(mfs, "reservation_transitions_total", map[string]string{"transition": "reserved"})
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)

	v, err = counterValue(mfs, "reservation_conflicts_total", nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	v, err = counterValue(mfs, "reservation_notifications_total", map[string]string{"kind": "reservation", "result": "failed"})
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)
}

func TestNilRecordersAreNoops(t *testing.T) {
	var jobs *JobMetrics
	var lifecycle *ReservationMetrics

	assert.NotPanics(t, func() {
		jobs.IncSuccess("sweep")
		jobs.ObserveDuration("sweep", time.Second)
		lifecycle.AddTransitions(TransitionSwept, 1)
		lifecycle.ObserveNotification("expiry", nil)
		NewJobMetrics(nil).IncFailure("sweep")
		NewReservationMetrics(nil).IncConflict()
	})
}

func counterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if hasLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func histogramSum(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if hasLabels(metric.GetLabel(), labels) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing labels %v", name, labels)
}

func findFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func hasLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok && v == pair.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
