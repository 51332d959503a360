package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type scheduleGenerator interface {
	GenerateTimetable(ctx context.Context, classRoomID string) (*models.GenerationResult, error)
}

// ScheduleGeneratorHandler exposes the timetable generator.
type ScheduleGeneratorHandler struct {
	service scheduleGenerator
}

// NewScheduleGeneratorHandler constructs the handler.
func NewScheduleGeneratorHandler(svc *service.TimetableService) *ScheduleGeneratorHandler {
	return &ScheduleGeneratorHandler{service: svc}
}

// Generate godoc
// @Summary Fill a classroom's open cells from its grade requirements
// @Description Best effort. Occurrences that could not be placed are listed in unmet; a concurrent run for the same classroom returns 409.
// @Tags Timetable
// @Produce json
// @Param id path string true "Class room ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /class-rooms/{id}/timetable/generate [post]
func (h *ScheduleGeneratorHandler) Generate(c *gin.Context) {
	result, err := h.service.GenerateTimetable(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, map[string]interface{}{"complete": len(result.Unmet) == 0})
}
