package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

// CheckSessionHeader carries the editing session id for speculative conflict checks.
const CheckSessionHeader = "X-Check-Session"

type timetableService interface {
	GetTimetable(ctx context.Context, classRoomID string) (*dto.TimetableView, error)
	PlaceEntry(ctx context.Context, classRoomID string, weekday int, timeSlotID string, req dto.PlaceEntryRequest) (*dto.PlaceEntryResult, error)
	RemoveEntry(ctx context.Context, classRoomID string, weekday int, timeSlotID string) error
	ClearTimetable(ctx context.Context, classRoomID string, confirm bool) (int, error)
	CheckConflicts(ctx context.Context, req dto.CheckConflictsRequest) (*dto.CheckConflictsResponse, error)
	SweepConflicts(ctx context.Context, classRoomID string) (*dto.SweepResponse, error)
	ConflictReport(ctx context.Context, classRoomID string) (*models.ConflictReport, error)
}

// TimetableHandler exposes classroom timetable endpoints.
type TimetableHandler struct {
	service timetableService
	logger  *zap.Logger
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(svc *service.TimetableService, logger *zap.Logger) *TimetableHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableHandler{service: svc, logger: logger}
}

// Get godoc
// @Summary Get a classroom timetable
// @Tags Timetable
// @Produce json
// @Param id path string true "Class room ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /class-rooms/{id}/timetable [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	view, err := h.service.GetTimetable(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, map[string]interface{}{"entries": len(view.Entries)})
}

// Place godoc
// @Summary Assign one timetable cell
// @Description Saves the cell even when it collides with another classroom; conflicts are returned alongside the saved entry.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Class room ID"
// @Param weekday path int true "Weekday (1=Monday)"
// @Param slotId path string true "Time slot ID"
// @Param payload body dto.PlaceEntryRequest true "Cell assignment"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /class-rooms/{id}/timetable/{weekday}/{slotId} [put]
func (h *TimetableHandler) Place(c *gin.Context) {
	weekday, ok := weekdayParam(c)
	if !ok {
		return
	}
	var req dto.PlaceEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable entry payload"))
		return
	}
	result, err := h.service.PlaceEntry(c.Request.Context(), c.Param("id"), weekday, c.Param("slotId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, map[string]interface{}{"has_conflicts": result.Conflicts.HasConflicts})
}

// Remove godoc
// @Summary Clear one timetable cell
// @Tags Timetable
// @Param id path string true "Class room ID"
// @Param weekday path int true "Weekday (1=Monday)"
// @Param slotId path string true "Time slot ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /class-rooms/{id}/timetable/{weekday}/{slotId} [delete]
func (h *TimetableHandler) Remove(c *gin.Context) {
	weekday, ok := weekdayParam(c)
	if !ok {
		return
	}
	if err := h.service.RemoveEntry(c.Request.Context(), c.Param("id"), weekday, c.Param("slotId")); err != nil {
		response.Error(c, err)
		return
	}
	logger.FromContext(c, h.logger).Info("timetable entry removed by request",
		editorFields(c, zap.String("class_room_id", c.Param("id")), zap.Int("weekday", weekday), zap.String("time_slot_id", c.Param("slotId")))...)
	response.NoContent(c)
}

// Clear godoc
// @Summary Remove every entry of a classroom timetable
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Class room ID"
// @Param payload body dto.ClearTimetableRequest true "Confirmation"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /class-rooms/{id}/timetable/clear [post]
func (h *TimetableHandler) Clear(c *gin.Context) {
	var req dto.ClearTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid clear payload"))
		return
	}
	classRoomID := c.Param("id")
	count, err := h.service.ClearTimetable(c.Request.Context(), classRoomID, req.Confirm)
	if err != nil {
		response.Error(c, err)
		return
	}
	logger.FromContext(c, h.logger).Info("timetable cleared by request",
		editorFields(c, zap.String("class_room_id", classRoomID), zap.Int("count_removed", count))...)
	response.JSON(c, http.StatusOK, dto.ClearTimetableResponse{ClassRoomID: classRoomID, CountRemoved: count}, nil)
}

// Check godoc
// @Summary Validate a candidate placement without saving it
// @Description Pass a session id (body or X-Check-Session header) with a rising sequence; superseded checks come back stale.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.CheckConflictsRequest true "Candidate placement"
// @Success 200 {object} response.Envelope
// @Failure 504 {object} response.Envelope
// @Router /timetable/conflicts/check [post]
func (h *TimetableHandler) Check(c *gin.Context) {
	var req dto.CheckConflictsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid conflict check payload"))
		return
	}
	if req.SessionID == "" {
		req.SessionID = c.GetHeader(CheckSessionHeader)
	}
	result, err := h.service.CheckConflicts(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Sweep godoc
// @Summary Full-grid conflict sweep for a classroom
// @Tags Timetable
// @Produce json
// @Param id path string true "Class room ID"
// @Success 200 {object} response.Envelope
// @Router /class-rooms/{id}/timetable/conflicts/sweep [get]
func (h *TimetableHandler) Sweep(c *gin.Context) {
	result, err := h.service.SweepConflicts(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Report godoc
// @Summary Conflict summary grouped by weekday and time slot
// @Tags Timetable
// @Produce json
// @Param id path string true "Class room ID"
// @Success 200 {object} response.Envelope
// @Router /class-rooms/{id}/timetable/conflicts [get]
func (h *TimetableHandler) Report(c *gin.Context) {
	report, err := h.service.ConflictReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, map[string]interface{}{"total": report.Total})
}

func weekdayParam(c *gin.Context) (int, bool) {
	weekday, err := strconv.Atoi(c.Param("weekday"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "weekday must be an integer"))
		return 0, false
	}
	return weekday, true
}
