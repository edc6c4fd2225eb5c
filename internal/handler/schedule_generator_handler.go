package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/service"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/response"
)

type scheduleGenerator interface {
	Generate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.GenerationResult, error)
}

type scheduleOptimizer interface {
	Optimize(ctx context.Context, scheduleID string, req dto.OptimizeRequest) (*dto.OptimizationResult, error)
}

// ScheduleGeneratorHandler exposes construction and optimisation runs.
type ScheduleGeneratorHandler struct {
	generator scheduleGenerator
	optimizer scheduleOptimizer
}

// NewScheduleGeneratorHandler constructs the handler.
func NewScheduleGeneratorHandler(generator *service.ScheduleGeneratorService, optimizer *service.ScheduleOptimizer) *ScheduleGeneratorHandler {
	return &ScheduleGeneratorHandler{generator: generator, optimizer: optimizer}
}

// Generate godoc
// @Summary Generate a schedule for a semester
// @Description Builds placement tasks from the semester's teaching loads and places them greedily. Tasks that cannot be placed are reported, not treated as errors.
// @Tags Scheduler
// @Accept json
// @Produce json
// @Param X-Actor-ID header string true "Acting dispatcher id"
// @Param payload body dto.GenerateScheduleRequest true "Generation parameters"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /schedules/generate [post]
func (h *ScheduleGeneratorHandler) Generate(c *gin.Context) {
	var req dto.GenerateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	req.ActorID = actorFromContext(c)

	result, err := h.generator.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Optimize godoc
// @Summary Improve a schedule by local search
// @Description Moves lessons between days and slots while keeping them conflict-free. The body is optional.
// @Tags Scheduler
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body dto.OptimizeRequest false "Search parameters"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /schedules/{id}/optimize [post]
func (h *ScheduleGeneratorHandler) Optimize(c *gin.Context) {
	var req dto.OptimizeRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid optimize payload"))
		return
	}

	result, err := h.optimizer.Optimize(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
