package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/service"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/response"
)

type scheduleManager interface {
	Get(ctx context.Context, id string) (*models.Schedule, error)
	ListBySemester(ctx context.Context, query dto.ScheduleListQuery) ([]models.Schedule, error)
	Stats(ctx context.Context, id string) (*models.ScheduleStats, error)
	ListHistory(ctx context.Context, id string) ([]models.OptimizationHistory, error)
	Evaluate(ctx context.Context, id string) (*models.PenaltyReport, error)
	Conflicts(ctx context.Context, id string) (*dto.ConflictsResponse, error)
	Validate(ctx context.Context, id string) (*dto.ValidationReport, error)
	Publish(ctx context.Context, id string) (*dto.PublishResult, error)
	Clone(ctx context.Context, id string, req dto.CloneScheduleRequest) (*models.Schedule, error)
	CreateLesson(ctx context.Context, req dto.CreateLessonRequest) (*models.Lesson, error)
	UpdateLesson(ctx context.Context, id string, req dto.UpdateLessonRequest) (*models.Lesson, error)
	DeleteLesson(ctx context.Context, id string) error
}

// ScheduleHandler manages schedule reads, publication and manual lesson edits.
type ScheduleHandler struct {
	service scheduleManager
}

// NewScheduleHandler constructs handler.
func NewScheduleHandler(svc *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: svc}
}

// List godoc
// @Summary List schedules
// @Tags Schedules
// @Produce json
// @Param semesterId query string false "Filter by semester"
// @Success 200 {object} response.Envelope
// @Router /schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	var query dto.ScheduleListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	schedules, err := h.service.ListBySemester(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	if schedules == nil {
		schedules = []models.Schedule{}
	}
	response.OK(c, schedules)
}

// Get godoc
// @Summary Get schedule
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedules/{id} [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	schedule, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, schedule)
}

// Stats godoc
// @Summary Schedule statistics
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/stats [get]
func (h *ScheduleHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

// History godoc
// @Summary Generation and optimisation runs of a schedule
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/history [get]
func (h *ScheduleHandler) History(c *gin.Context) {
	history, err := h.service.ListHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if history == nil {
		history = []models.OptimizationHistory{}
	}
	response.OK(c, history)
}

// Evaluate godoc
// @Summary Penalty report of a schedule
// @Tags Scheduler
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/evaluate [get]
func (h *ScheduleHandler) Evaluate(c *gin.Context) {
	report, err := h.service.Evaluate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}

// Conflicts godoc
// @Summary Conflicting lessons of a schedule
// @Tags Scheduler
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/conflicts [get]
func (h *ScheduleHandler) Conflicts(c *gin.Context) {
	conflicts, err := h.service.Conflicts(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, conflicts)
}

// Validate godoc
// @Summary Audit a schedule
// @Description Validation outcomes are returned in the report; only unknown schedules fail the request.
// @Tags Scheduler
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/validate [get]
func (h *ScheduleHandler) Validate(c *gin.Context) {
	report, err := h.service.Validate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}

// Publish godoc
// @Summary Publish a valid schedule
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /schedules/{id}/publish [post]
func (h *ScheduleHandler) Publish(c *gin.Context) {
	result, err := h.service.Publish(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Clone godoc
// @Summary Copy a schedule with its lessons
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param X-Actor-ID header string true "Acting dispatcher id"
// @Param payload body dto.CloneScheduleRequest false "Target semester and name"
// @Success 201 {object} response.Envelope
// @Router /schedules/{id}/clone [post]
func (h *ScheduleHandler) Clone(c *gin.Context) {
	var req dto.CloneScheduleRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid clone payload"))
		return
	}
	req.ActorID = actorFromContext(c)

	schedule, err := h.service.Clone(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, schedule)
}

// CreateLesson godoc
// @Summary Place a lesson by hand
// @Tags Lessons
// @Accept json
// @Produce json
// @Param payload body dto.CreateLessonRequest true "Lesson payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedules/lessons [post]
func (h *ScheduleHandler) CreateLesson(c *gin.Context) {
	var req dto.CreateLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid lesson payload"))
		return
	}
	lesson, err := h.service.CreateLesson(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lesson)
}

// UpdateLesson godoc
// @Summary Move or edit a lesson
// @Tags Lessons
// @Accept json
// @Produce json
// @Param id path string true "Lesson ID"
// @Param payload body dto.UpdateLessonRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedules/lessons/{id} [put]
func (h *ScheduleHandler) UpdateLesson(c *gin.Context) {
	var req dto.UpdateLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid lesson payload"))
		return
	}
	lesson, err := h.service.UpdateLesson(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, lesson)
}

// DeleteLesson godoc
// @Summary Remove a lesson
// @Tags Lessons
// @Param id path string true "Lesson ID"
// @Success 204
// @Router /schedules/lessons/{id} [delete]
func (h *ScheduleHandler) DeleteLesson(c *gin.Context) {
	if err := h.service.DeleteLesson(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
