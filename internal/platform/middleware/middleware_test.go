package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/otsched/internal/platform/apperr"
)

func TestRequestID_GeneratesNew(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		rid := c.Get(RequestIDKey).(string)
		if rid == "" {
			t.Error("expected request_id to be generated")
		}
		return c.String(http.StatusOK, "ok")
	}

	h := RequestID()(handler)
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "my-custom-id")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := RequestID()(func(c echo.Context) error {
		if rid := c.Get(RequestIDKey).(string); rid != "my-custom-id" {
			t.Errorf("expected my-custom-id, got %s", rid)
		}
		return c.String(http.StatusOK, "ok")
	})
	_ = h(c)

	if rec.Header().Get(RequestIDHeader) != "my-custom-id" {
		t.Errorf("expected my-custom-id in response header, got %s", rec.Header().Get(RequestIDHeader))
	}
}

func TestLogger_WritesErrorResponse(t *testing.T) {
	var buf strings.Builder
	logger := zerolog.New(&buf)
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(logger)
	req := httptest.NewRequest(http.MethodGet, "/ot-allocations/x", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := Logger(logger)(func(c echo.Context) error {
		return apperr.NotFound("allocation", uuid.Nil)
	})
	if err := h(c); err != nil {
		t.Fatalf("expected logger to consume the error, got %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(buf.String(), `"status":404`) {
		t.Errorf("expected logged status 404, got %s", buf.String())
	}
}

func TestRecovery_CatchesPanic(t *testing.T) {
	logger := zerolog.New(io.Discard)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := Recovery(logger)(func(c echo.Context) error {
		panic("test panic")
	})
	err := h(c)

	if err == nil {
		t.Fatal("expected error from recovered panic")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", httpErr.Code)
	}
	body, ok := httpErr.Message.(apperr.Body)
	if !ok || body.Error != "internal_error" {
		t.Errorf("expected internal_error body, got %#v", httpErr.Message)
	}
}

func TestRecovery_PassesThrough(t *testing.T) {
	logger := zerolog.New(io.Discard)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := Recovery(logger)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestErrorHandler_DomainError(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	ErrorHandler(zerolog.New(io.Discard))(apperr.SlotConflict(uuid.New(), uuid.New()), c)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error":"slot_conflict"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"slot_id"`) {
		t.Errorf("expected slot_id in body: %s", rec.Body.String())
	}
}

func TestErrorHandler_PlainHTTPError(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	ErrorHandler(zerolog.New(io.Discard))(echo.NewHTTPError(http.StatusForbidden, "insufficient permissions"), c)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error":"forbidden"`) || !strings.Contains(rec.Body.String(), "insufficient permissions") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestErrorHandler_HidesInternal(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	ErrorHandler(zerolog.New(io.Discard))(errors.New("relation ot_room does not exist"), c)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "ot_room") {
		t.Errorf("internal detail leaked: %s", rec.Body.String())
	}
}

type createRequest struct {
	RoomID string `json:"room_id" validate:"required"`
	Status string `json:"status" validate:"omitempty,oneof=active inactive"`
	Count  int    `json:"count" validate:"gte=0"`
}

func TestRequestValidator(t *testing.T) {
	v := NewRequestValidator()

	if err := v.Validate(&createRequest{RoomID: "r1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := v.Validate(&createRequest{})
	if !errors.Is(err, apperr.ErrMissingRequiredField) {
		t.Fatalf("expected missing field, got %v", err)
	}
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Field != "room_id" {
		t.Errorf("expected field room_id, got %+v", ae)
	}

	err = v.Validate(&createRequest{RoomID: "r1", Status: "closed"})
	if !errors.Is(err, apperr.ErrValidation) || errors.Is(err, apperr.ErrMissingRequiredField) {
		t.Errorf("expected plain validation error, got %v", err)
	}

	err = v.Validate(&createRequest{RoomID: "r1", Count: -1})
	if !errors.As(err, &ae) || ae.Field != "count" {
		t.Errorf("expected field count, got %v", err)
	}
}

func TestJSONSerializer_RoundTrip(t *testing.T) {
	e := echo.New()
	e.JSONSerializer = JSONSerializer{}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"room_id":"abc","count":2}`))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var body createRequest
	if err := (JSONSerializer{}).Deserialize(c, &body); err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if body.RoomID != "abc" || body.Count != 2 {
		t.Errorf("unexpected body %+v", body)
	}

	if err := c.JSON(http.StatusOK, body); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"room_id":"abc"`) {
		t.Errorf("unexpected output %s", rec.Body.String())
	}
}

func TestJSONSerializer_TypeError(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"count":"two"}`))
	c := e.NewContext(req, httptest.NewRecorder())

	var body createRequest
	err := (JSONSerializer{}).Deserialize(c, &body)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 HTTPError, got %v", err)
	}
}
