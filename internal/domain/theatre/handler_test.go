package theatre

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/otsched/internal/platform/middleware"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	e.Validator = middleware.NewRequestValidator()
	return h, e
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	return he.Code
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestHandler_CreateRoom(t *testing.T) {
	h, e := newTestHandler()
	body := `{"room_number":"OT-01","name":"Main","type":"Cardiac","start_time":"08:00","end_time":"14:00"}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/v1/ot-rooms", body), rec)

	if err := h.CreateRoom(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var got map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got["start_time"] != "08:00" || got["type"] != "Cardiac" {
		t.Errorf("unexpected body: %v", got)
	}
}

func TestHandler_CreateRoom_MissingName(t *testing.T) {
	h, e := newTestHandler()
	body := `{"room_number":"OT-01","start_time":"08:00","end_time":"14:00"}`
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/v1/ot-rooms", body), httptest.NewRecorder())

	err := h.CreateRoom(c)
	if code := httpStatus(t, err); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_CreateRoom_BadTime(t *testing.T) {
	h, e := newTestHandler()
	body := `{"room_number":"OT-01","name":"Main","start_time":"8am","end_time":"14:00"}`
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/v1/ot-rooms", body), httptest.NewRecorder())

	if err := h.CreateRoom(c); err == nil {
		t.Error("expected error for malformed time")
	}
}

func TestHandler_GetRoom(t *testing.T) {
	h, e := newTestHandler()
	r := &OTRoom{RoomNumber: "OT-01", Name: "Main", StartTime: tod("08:00"), EndTime: tod("12:00")}
	h.svc.CreateRoom(context.Background(), r)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(r.ID.String())

	if err := h.GetRoom(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_GetRoom_NotFound(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	if code := httpStatus(t, h.GetRoom(c)); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestHandler_GetRoom_InvalidID(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	if code := httpStatus(t, h.GetRoom(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_ListRooms(t *testing.T) {
	h, e := newTestHandler()
	ctx := context.Background()
	h.svc.CreateRoom(ctx, &OTRoom{RoomNumber: "OT-01", Name: "A", StartTime: tod("08:00"), EndTime: tod("12:00")})
	h.svc.CreateRoom(ctx, &OTRoom{RoomNumber: "OT-02", Name: "B", Type: "ENT", StartTime: tod("08:00"), EndTime: tod("12:00")})

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/ot-rooms?type=ENT", nil), rec)
	if err := h.ListRooms(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Total int `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 {
		t.Errorf("expected 1 ENT room, got %d", resp.Total)
	}
}

func TestHandler_UpdateRoom_InvalidStatus(t *testing.T) {
	h, e := newTestHandler()
	r := &OTRoom{RoomNumber: "OT-01", Name: "Main", StartTime: tod("08:00"), EndTime: tod("12:00")}
	h.svc.CreateRoom(context.Background(), r)

	c := e.NewContext(jsonRequest(http.MethodPut, "/", `{"status":"closed"}`), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(r.ID.String())

	if code := httpStatus(t, h.UpdateRoom(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_DeactivateRoom(t *testing.T) {
	h, e := newTestHandler()
	r := &OTRoom{RoomNumber: "OT-01", Name: "Main", StartTime: tod("08:00"), EndTime: tod("12:00")}
	h.svc.CreateRoom(context.Background(), r)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(r.ID.String())

	if err := h.DeactivateRoom(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"status":"inactive"`) {
		t.Errorf("expected inactive room, got %s", rec.Body.String())
	}
}

func TestHandler_CreateSlot_Conflict(t *testing.T) {
	h, e := newTestHandler()
	r := &OTRoom{RoomNumber: "OT-01", Name: "Main", StartTime: tod("08:00"), EndTime: tod("12:00")}
	h.svc.CreateRoom(context.Background(), r)

	create := func(body string) error {
		c := e.NewContext(jsonRequest(http.MethodPost, "/", body), httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues(r.ID.String())
		return h.CreateSlot(c)
	}
	if err := create(`{"slot_number":1,"start_time":"08:00","end_time":"08:30"}`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := create(`{"slot_number":1,"start_time":"09:00","end_time":"09:30"}`)
	if code := httpStatus(t, err); code != http.StatusBadRequest {
		t.Errorf("expected 400 for duplicate slot number, got %d", code)
	}
}

func TestHandler_GenerateSlots(t *testing.T) {
	h, e := newTestHandler()
	r := &OTRoom{RoomNumber: "OT-01", Name: "Main", StartTime: tod("08:00"), EndTime: tod("10:00")}
	h.svc.CreateRoom(context.Background(), r)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/", `{"slot_minutes":30}`), rec)
	c.SetParamNames("id")
	c.SetParamValues(r.ID.String())
	if err := h.GenerateSlots(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var created []OTSlot
	json.Unmarshal(rec.Body.Bytes(), &created)
	if len(created) != 4 {
		t.Errorf("expected 4 slots, got %d", len(created))
	}
}

func TestHandler_GenerateSlots_MissingMinutes(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(jsonRequest(http.MethodPost, "/", `{}`), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	if code := httpStatus(t, h.GenerateSlots(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_ListSlots_RequiresRoom(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/ot-slots", nil), httptest.NewRecorder())
	if code := httpStatus(t, h.ListSlots(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, e := newTestHandler()
	api := e.Group("/api/v1")
	h.RegisterRoutes(api, nil)

	want := map[string]bool{
		"GET:/api/v1/ot-rooms":                     false,
		"POST:/api/v1/ot-rooms":                    false,
		"PUT:/api/v1/ot-rooms/:id":                 false,
		"DELETE:/api/v1/ot-rooms/:id":              false,
		"POST:/api/v1/ot-rooms/:id/slots":          false,
		"POST:/api/v1/ot-rooms/:id/slots/generate": false,
		"GET:/api/v1/ot-slots/:id":                 false,
	}
	for _, r := range e.Routes() {
		key := r.Method + ":" + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for route, found := range want {
		if !found {
			t.Errorf("missing route %s", route)
		}
	}
}
