package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/models"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	metrics := NewMetricsService()
	metrics.ObserveHTTPRequest(http.MethodGet, "/schedules/:id", http.StatusOK, 10*time.Millisecond)
	metrics.ObserveHTTPRequest(http.MethodPost, "/schedules/generate", http.StatusCreated, 30*time.Millisecond)
	metrics.ObserveGeneration(2*time.Second, 18, 2)
	metrics.ObserveOptimization()
	metrics.RecordMove("accepted")

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(2), snapshot.RequestsTotal)
	assert.InDelta(t, 20.0, snapshot.AverageRequestDurationMs, 0.001)
	assert.Equal(t, uint64(1), snapshot.GenerationsTotal)
	assert.Equal(t, uint64(1), snapshot.OptimizationsTotal)
	assert.Positive(t, snapshot.Goroutines)
}

func TestMetricsServiceHandlerExposesEngineMetrics(t *testing.T) {
	metrics := NewMetricsService()
	metrics.ObserveGeneration(time.Second, 3, 1)
	metrics.RecordMove("rejected_conflict")
	metrics.ObservePenalty(models.PenaltyReport{TotalPenalty: 1065, Breakdown: models.PenaltyBreakdown{Hard: 1000, Soft: 65}})

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `timetable_tasks_total{result="placed"} 3`))
	assert.True(t, strings.Contains(body, `timetable_optimization_moves_total{outcome="rejected_conflict"} 1`))
	assert.True(t, strings.Contains(body, `timetable_schedule_penalty{kind="hard"} 1000`))
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var metrics *MetricsService
	metrics.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	metrics.RecordCacheOperation(true, time.Millisecond)
	metrics.ObserveGeneration(time.Second, 1, 0)
	metrics.RecordMove("accepted")
	metrics.ObservePenalty(models.PenaltyReport{})
	assert.Equal(t, models.SystemMetrics{}, metrics.Snapshot())
}
