package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type catalogReader interface {
	ActiveTimeSlots() []models.TimeSlot
	SlotDuration(id string) (time.Duration, error)
	ClassRooms() []models.ClassRoom
	ActiveSubjects() []models.Subject
	ActiveTeachers() []models.Teacher
	ActiveRooms() []models.Room
}

type resourceDeactivator interface {
	DeactivateTeacher(ctx context.Context, teacherID string) error
	DeactivateRoom(ctx context.Context, roomID string) error
}

// CatalogHandler serves the scheduling catalog.
type CatalogHandler struct {
	catalog   catalogReader
	resources resourceDeactivator
}

// NewCatalogHandler constructs the handler.
func NewCatalogHandler(catalog *service.CatalogService, timetable *service.TimetableService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, resources: timetable}
}

// TimeSlots godoc
// @Summary List active time slots in day order
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /time-slots [get]
func (h *CatalogHandler) TimeSlots(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.catalog.ActiveTimeSlots(), nil)
}

// SlotDuration godoc
// @Summary Length of a time slot in minutes
// @Tags Catalog
// @Produce json
// @Param id path string true "Time slot ID"
// @Success 200 {object} response.Envelope
// @Router /time-slots/{id}/duration [get]
func (h *CatalogHandler) SlotDuration(c *gin.Context) {
	d, err := h.catalog.SlotDuration(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"id": c.Param("id"), "minutes": int(d.Minutes())}, nil)
}

// ClassRooms godoc
// @Summary List active classrooms
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /class-rooms [get]
func (h *CatalogHandler) ClassRooms(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.catalog.ClassRooms(), nil)
}

// Subjects godoc
// @Summary List active subjects with qualified teachers
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /subjects [get]
func (h *CatalogHandler) Subjects(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.catalog.ActiveSubjects(), nil)
}

// Teachers godoc
// @Summary List active teachers
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /teachers [get]
func (h *CatalogHandler) Teachers(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.catalog.ActiveTeachers(), nil)
}

// Rooms godoc
// @Summary List active rooms
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /rooms [get]
func (h *CatalogHandler) Rooms(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.catalog.ActiveRooms(), nil)
}

// DeactivateTeacher godoc
// @Summary Deactivate a teacher with no remaining bookings
// @Tags Catalog
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /teachers/{id}/deactivate [post]
func (h *CatalogHandler) DeactivateTeacher(c *gin.Context) {
	id := c.Param("id")
	if err := h.resources.DeactivateTeacher(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.DeactivateResourceResponse{ID: id, Active: false}, nil)
}

// DeactivateRoom godoc
// @Summary Deactivate a room with no remaining bookings
// @Tags Catalog
// @Produce json
// @Param id path string true "Room ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /rooms/{id}/deactivate [post]
func (h *CatalogHandler) DeactivateRoom(c *gin.Context) {
	id := c.Param("id")
	if err := h.resources.DeactivateRoom(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.DeactivateResourceResponse{ID: id, Active: false}, nil)
}
