// Package apperr defines the request-scoped error taxonomy shared by the
// scheduling domains and its mapping onto HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Error kinds. Match with errors.Is.
var (
	ErrValidation                = errors.New("validation_error")
	ErrMissingRequiredField      = errors.New("missing_required_field")
	ErrPatientSourceMissing      = errors.New("patient_source_missing")
	ErrAmbiguousPatientSource    = errors.New("ambiguous_patient_source")
	ErrPatientSourceUnresolvable = errors.New("patient_source_unresolvable")
	ErrSlotConflict              = errors.New("slot_conflict")
	ErrNotFound                  = errors.New("not_found")
	ErrDependencyUnavailable     = errors.New("dependency_unavailable")
)

// Error carries a kind plus the context a caller needs to correct and
// resubmit the request.
type Error struct {
	Kind    error
	Field   string
	SlotID  *uuid.UUID
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is matches the kind. A missing required field is also a validation error.
func (e *Error) Is(target error) bool {
	if target == e.Kind {
		return true
	}
	return target == ErrValidation && e.Kind == ErrMissingRequiredField
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(field, format string, args ...any) *Error {
	return &Error{Kind: ErrValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

func MissingField(field string) *Error {
	return &Error{Kind: ErrMissingRequiredField, Field: field, Message: field + " is required"}
}

func NotFound(resource string, id uuid.UUID) *Error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf("%s %s not found", resource, id)}
}

func SlotConflict(slotID uuid.UUID, holder uuid.UUID) *Error {
	id := slotID
	return &Error{
		Kind:    ErrSlotConflict,
		Field:   "slot_ids",
		SlotID:  &id,
		Message: fmt.Sprintf("slot %s is already held by allocation %s", slotID, holder),
	}
}

func Unavailable(dependency string, err error) *Error {
	return &Error{Kind: ErrDependencyUnavailable, Message: dependency + " lookup failed", Err: err}
}

// New builds an error of an arbitrary kind.
func New(kind error, field, format string, args ...any) *Error {
	return &Error{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)}
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// Body is the JSON error envelope returned by the API.
type Body struct {
	Error   string     `json:"error"`
	Message string     `json:"message"`
	Field   string     `json:"field,omitempty"`
	SlotID  *uuid.UUID `json:"slot_id,omitempty"`
}

// HTTPStatus maps an error onto a status code.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrSlotConflict):
		return http.StatusConflict
	case errors.Is(err, ErrPatientSourceUnresolvable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrPatientSourceMissing),
		errors.Is(err, ErrAmbiguousPatientSource):
		return http.StatusBadRequest
	case errors.Is(err, ErrDependencyUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ToHTTP converts a domain error into an echo.HTTPError carrying a Body.
// Unclassified errors are not echoed back to the client.
func ToHTTP(err error) *echo.HTTPError {
	status := HTTPStatus(err)
	var ae *Error
	if !errors.As(err, &ae) {
		return echo.NewHTTPError(status, Body{Error: "internal_error", Message: "internal server error"}).SetInternal(err)
	}
	body := Body{Error: ae.Kind.Error(), Message: ae.Error(), Field: ae.Field, SlotID: ae.SlotID}
	return echo.NewHTTPError(status, body).SetInternal(err)
}
