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
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	internalmiddleware "github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type timetableServiceMock struct {
	placeReq     dto.PlaceEntryRequest
	placeWeekday int
	placeSlot    string
	checkReq     dto.CheckConflictsRequest
	confirm      bool
	removeErr    error
	clearErr     error
}

func (m *timetableServiceMock) GetTimetable(ctx context.Context, classRoomID string) (*dto.TimetableView, error) {
	if classRoomID == "missing" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class room missing not found")
	}
	return &dto.TimetableView{ClassRoom: models.ClassRoom{ID: classRoomID}, Entries: []models.TimetableEntry{{ClassRoomID: classRoomID}}}, nil
}

func (m *timetableServiceMock) PlaceEntry(ctx context.Context, classRoomID string, weekday int, timeSlotID string, req dto.PlaceEntryRequest) (*dto.PlaceEntryResult, error) {
	m.placeReq = req
	m.placeWeekday = weekday
	m.placeSlot = timeSlotID
	return &dto.PlaceEntryResult{
		Saved: models.TimetableEntry{ClassRoomID: classRoomID, Weekday: weekday, TimeSlotID: timeSlotID},
		Conflicts: models.ConflictResult{
			TeacherConflicts: []models.TimetableEntry{{ClassRoomID: "other"}},
			RoomConflicts:    []models.TimetableEntry{},
			HasConflicts:     true,
		},
	}, nil
}

func (m *timetableServiceMock) RemoveEntry(ctx context.Context, classRoomID string, weekday int, timeSlotID string) error {
	return m.removeErr
}

func (m *timetableServiceMock) ClearTimetable(ctx context.Context, classRoomID string, confirm bool) (int, error) {
	m.confirm = confirm
	if !confirm {
		return 0, appErrors.Clone(appErrors.ErrConfirmationRequired, "confirm required")
	}
	return 7, m.clearErr
}

func (m *timetableServiceMock) CheckConflicts(ctx context.Context, req dto.CheckConflictsRequest) (*dto.CheckConflictsResponse, error) {
	m.checkReq = req
	return &dto.CheckConflictsResponse{Applied: true, Sequence: req.Sequence, Result: &models.ConflictResult{}}, nil
}

func (m *timetableServiceMock) SweepConflicts(ctx context.Context, classRoomID string) (*dto.SweepResponse, error) {
	return &dto.SweepResponse{ClassRoomID: classRoomID, Cells: models.SweepResult{}}, nil
}

func (m *timetableServiceMock) ConflictReport(ctx context.Context, classRoomID string) (*models.ConflictReport, error) {
	return &models.ConflictReport{ClassRoomID: classRoomID, Total: 2}, nil
}

func newTimetableRouter(svc *timetableServiceMock, role models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &TimetableHandler{service: svc, logger: zap.NewNop()}
	router := gin.New()
	if role != "" {
		router.Use(func(c *gin.Context) {
			c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: role})
			c.Next()
		})
	}
	view := internalmiddleware.RBAC(internalmiddleware.Viewers...)
	edit := internalmiddleware.RBAC(internalmiddleware.Editors...)
	router.GET("/class-rooms/:id/timetable", view, h.Get)
	router.PUT("/class-rooms/:id/timetable/:weekday/:slotId", edit, h.Place)
	router.DELETE("/class-rooms/:id/timetable/:weekday/:slotId", edit, h.Remove)
	router.POST("/class-rooms/:id/timetable/clear", edit, h.Clear)
	router.POST("/timetable/conflicts/check", view, h.Check)
	router.GET("/class-rooms/:id/timetable/conflicts", view, h.Report)
	router.GET("/class-rooms/:id/timetable/conflicts/sweep", view, h.Sweep)
	return router
}

func serve(router *gin.Engine, method, path string, body []byte, headers ...string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestTimetableHandlerPlaceReturnsConflicts(t *testing.T) {
	svc := &timetableServiceMock{}
	router := newTimetableRouter(svc, models.RoleAdmin)

	w := serve(router, http.MethodPut, "/class-rooms/X/timetable/2/p1", []byte(`{"subject_id":"math","teacher_id":"T1"}`))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, svc.placeWeekday)
	assert.Equal(t, "p1", svc.placeSlot)
	assert.Equal(t, "math", svc.placeReq.SubjectID)

	var body struct {
		Data dto.PlaceEntryResult   `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Data.Conflicts.HasConflicts)
	assert.Equal(t, true, body.Meta["has_conflicts"])
}

func TestTimetableHandlerPlaceBadInput(t *testing.T) {
	router := newTimetableRouter(&timetableServiceMock{}, models.RoleAdmin)

	w := serve(router, http.MethodPut, "/class-rooms/X/timetable/monday/p1", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(router, http.MethodPut, "/class-rooms/X/timetable/1/p1", []byte(`{"subject_id":`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableHandlerRemove(t *testing.T) {
	svc := &timetableServiceMock{}
	router := newTimetableRouter(svc, models.RoleAdmin)

	w := serve(router, http.MethodDelete, "/class-rooms/X/timetable/1/p1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	svc.removeErr = appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
	w = serve(router, http.MethodDelete, "/class-rooms/X/timetable/1/p1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTimetableHandlerClearRequiresConfirmation(t *testing.T) {
	svc := &timetableServiceMock{}
	router := newTimetableRouter(svc, models.RoleSuperAdmin)

	w := serve(router, http.MethodPost, "/class-rooms/X/timetable/clear", []byte(`{"confirm":false}`))
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)

	w = serve(router, http.MethodPost, "/class-rooms/X/timetable/clear", []byte(`{"confirm":true}`))
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data dto.ClearTimetableResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 7, body.Data.CountRemoved)
	assert.Equal(t, "X", body.Data.ClassRoomID)
}

func TestTimetableHandlerLogsEditorOfGridChanges(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	router := newTimetableRouter(&timetableServiceMock{}, models.RoleAdmin)
	h := &TimetableHandler{service: &timetableServiceMock{}, logger: zap.New(core)}
	router.POST("/audited/:id/clear", h.Clear)
	router.DELETE("/audited/:id/:weekday/:slotId", h.Remove)

	require.Equal(t, http.StatusOK, serve(router, http.MethodPost, "/audited/X/clear", []byte(`{"confirm":true}`)).Code)
	require.Equal(t, http.StatusNoContent, serve(router, http.MethodDelete, "/audited/X/1/p1", nil).Code)

	cleared := logs.FilterMessage("timetable cleared by request").All()
	require.Len(t, cleared, 1)
	fields := cleared[0].ContextMap()
	assert.Equal(t, "user-1", fields["user_id"])
	assert.Equal(t, string(models.RoleAdmin), fields["role"])
	assert.Equal(t, int64(7), fields["count_removed"])

	removed := logs.FilterMessage("timetable entry removed by request").All()
	require.Len(t, removed, 1)
	assert.Equal(t, "p1", removed[0].ContextMap()["time_slot_id"])
}

func TestEditorFieldsWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	fields := editorFields(c, zap.String("class_room_id", "X"))
	require.Len(t, fields, 2)
	assert.Equal(t, "unknown", fields[1].String)
}

func TestTimetableHandlerCheckUsesSessionHeader(t *testing.T) {
	svc := &timetableServiceMock{}
	router := newTimetableRouter(svc, models.RoleTeacher)

	payload := []byte(`{"class_room_id":"X","weekday":1,"time_slot_id":"p1","teacher_id":"T1","sequence":4}`)
	w := serve(router, http.MethodPost, "/timetable/conflicts/check", payload, CheckSessionHeader, "editor-7")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "editor-7", svc.checkReq.SessionID)
	assert.Equal(t, uint64(4), svc.checkReq.Sequence)
	assert.Equal(t, "T1", svc.checkReq.TeacherID)
}

func TestTimetableHandlerReadEndpoints(t *testing.T) {
	router := newTimetableRouter(&timetableServiceMock{}, models.RoleStudent)

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/class-rooms/X/timetable", nil).Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/class-rooms/missing/timetable", nil).Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/class-rooms/X/timetable/conflicts", nil).Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/class-rooms/X/timetable/conflicts/sweep", nil).Code)
}

func TestTimetableHandlerRBAC(t *testing.T) {
	unauthenticated := newTimetableRouter(&timetableServiceMock{}, "")
	w := serve(unauthenticated, http.MethodGet, "/class-rooms/X/timetable", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	teacher := newTimetableRouter(&timetableServiceMock{}, models.RoleTeacher)
	w = serve(teacher, http.MethodPut, "/class-rooms/X/timetable/1/p1", []byte(`{"subject_id":"math"}`))
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = serve(teacher, http.MethodPost, "/class-rooms/X/timetable/clear", []byte(`{"confirm":true}`))
	assert.Equal(t, http.StatusForbidden, w.Code)
}
