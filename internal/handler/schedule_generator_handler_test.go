package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/dto"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/logger"
)

type scheduleGeneratorMock struct {
	captured dto.GenerateScheduleRequest
	err      error
}

func (m *scheduleGeneratorMock) Generate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.GenerationResult, error) {
	m.captured = req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.GenerationResult{ScheduleID: "sched-1", PlacedCount: 20, TotalTasks: 20, SuccessRate: 100, Phase: dto.PhaseDone}, nil
}

type scheduleOptimizerMock struct {
	scheduleID string
	captured   dto.OptimizeRequest
	err        error
}

func (m *scheduleOptimizerMock) Optimize(ctx context.Context, scheduleID string, req dto.OptimizeRequest) (*dto.OptimizationResult, error) {
	m.scheduleID, m.captured = scheduleID, req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.OptimizationResult{ScheduleID: scheduleID, Algorithm: "LOCAL_SEARCH", Before: 65, After: 40, Improvement: 25}, nil
}

func newGeneratorRouter(generator *scheduleGeneratorMock, optimizer *scheduleOptimizerMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterScheduleRoutes(router.Group("/api/v1"), &ScheduleHandler{service: &scheduleManagerMock{}}, &ScheduleGeneratorHandler{generator: generator, optimizer: optimizer})
	return router
}

func decodeEnvelope(t *testing.T, body []byte) map[string]interface{} {
	t.Helper()
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &envelope))
	return envelope
}

func TestScheduleGeneratorGenerate(t *testing.T) {
	generator := &scheduleGeneratorMock{}
	router := newGeneratorRouter(generator, &scheduleOptimizerMock{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/schedules/generate", bytes.NewBufferString(`{"semesterId":"sem-1","maxIterations":500}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(logger.ActorHeader, "dispatcher-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "sem-1", generator.captured.SemesterID)
	assert.Equal(t, "dispatcher-1", generator.captured.ActorID)
	assert.Equal(t, 500, generator.captured.MaxIterations)

	data := decodeEnvelope(t, w.Body.Bytes())["data"].(map[string]interface{})
	assert.Equal(t, "sched-1", data["scheduleId"])
	assert.Equal(t, "DONE", data["phase"])
}

func TestScheduleGeneratorGenerateMalformed(t *testing.T) {
	router := newGeneratorRouter(&scheduleGeneratorMock{}, &scheduleOptimizerMock{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/schedules/generate", bytes.NewBufferString(`{"semesterId":`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	errBody := decodeEnvelope(t, w.Body.Bytes())["error"].(map[string]interface{})
	assert.Equal(t, appErrors.ErrValidation.Code, errBody["code"])
}

func TestScheduleGeneratorGenerateServiceError(t *testing.T) {
	generator := &scheduleGeneratorMock{err: appErrors.Clone(appErrors.ErrLocked, "")}
	router := newGeneratorRouter(generator, &scheduleOptimizerMock{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/schedules/generate", bytes.NewBufferString(`{"semesterId":"sem-1"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusLocked, w.Code)
}

func TestScheduleGeneratorOptimize(t *testing.T) {
	t.Run("with body", func(t *testing.T) {
		optimizer := &scheduleOptimizerMock{}
		router := newGeneratorRouter(&scheduleGeneratorMock{}, optimizer)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/schedules/sched-7/optimize", bytes.NewBufferString(`{"maxIterations":250,"algorithm":"SIMULATED_ANNEALING"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "sched-7", optimizer.scheduleID)
		assert.Equal(t, dto.OptimizeRequest{MaxIterations: 250, Algorithm: "SIMULATED_ANNEALING"}, optimizer.captured)
	})

	t.Run("empty body", func(t *testing.T) {
		optimizer := &scheduleOptimizerMock{}
		router := newGeneratorRouter(&scheduleGeneratorMock{}, optimizer)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/schedules/sched-7/optimize", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, dto.OptimizeRequest{}, optimizer.captured)
	})

	t.Run("not found", func(t *testing.T) {
		optimizer := &scheduleOptimizerMock{err: appErrors.Clone(appErrors.ErrNotFound, "schedule not found")}
		router := newGeneratorRouter(&scheduleGeneratorMock{}, optimizer)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/schedules/missing/optimize", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
