package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type catalogReaderMock struct{}

func (catalogReaderMock) ActiveTimeSlots() []models.TimeSlot {
	return []models.TimeSlot{{ID: "p1", SlotOrder: 1, Type: models.SlotTypeLesson, Active: true}}
}

func (catalogReaderMock) SlotDuration(id string) (time.Duration, error) {
	if id != "p1" {
		return 0, appErrors.Clone(appErrors.ErrNotFound, "time slot not found")
	}
	return 45 * time.Minute, nil
}

func (catalogReaderMock) ClassRooms() []models.ClassRoom { return []models.ClassRoom{{ID: "X"}} }
func (catalogReaderMock) ActiveSubjects() []models.Subject { return nil }
func (catalogReaderMock) ActiveTeachers() []models.Teacher { return []models.Teacher{{ID: "T1"}} }
func (catalogReaderMock) ActiveRooms() []models.Room { return nil }

type deactivatorMock struct {
	bookings int
}

func (m *deactivatorMock) DeactivateTeacher(ctx context.Context, teacherID string) error {
	if m.bookings > 0 {
		return appErrors.WithDetails(appErrors.ErrConflict, "teacher still booked", map[string]int{"bookings": m.bookings})
	}
	return nil
}

func (m *deactivatorMock) DeactivateRoom(ctx context.Context, roomID string) error {
	return m.DeactivateTeacher(ctx, roomID)
}

func newCatalogRouter(d *deactivatorMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &CatalogHandler{catalog: catalogReaderMock{}, resources: d}
	router := gin.New()
	router.GET("/time-slots", h.TimeSlots)
	router.GET("/time-slots/:id/duration", h.SlotDuration)
	router.GET("/teachers", h.Teachers)
	router.POST("/teachers/:id/deactivate", h.DeactivateTeacher)
	router.POST("/rooms/:id/deactivate", h.DeactivateRoom)
	return router
}

func TestCatalogHandlerSlotDuration(t *testing.T) {
	router := newCatalogRouter(&deactivatorMock{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/time-slots/p1/duration", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data struct {
			Minutes int `json:"minutes"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 45, body.Data.Minutes)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/time-slots/zz/duration", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCatalogHandlerDeactivateBlockedWhileBooked(t *testing.T) {
	deactivator := &deactivatorMock{bookings: 3}
	router := newCatalogRouter(deactivator)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/teachers/T1/deactivate", nil))
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"bookings":3`)

	deactivator.bookings = 0
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/rooms/lab/deactivate", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"active":false`)
}

func TestCatalogHandlerLists(t *testing.T) {
	router := newCatalogRouter(&deactivatorMock{})

	for _, path := range []string{"/time-slots", "/teachers"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
