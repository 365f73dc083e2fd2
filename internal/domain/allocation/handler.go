package allocation

import (
	"errors"
	"mime"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/otsched/internal/platform/apperr"
	"github.com/ehr/otsched/internal/platform/auth"
	"github.com/ehr/otsched/internal/platform/blobstore"
	"github.com/ehr/otsched/internal/platform/clock"
	"github.com/ehr/otsched/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, _ *echo.Group) {
	// Read endpoints – admin, surgeon, nurse, scheduler
	readGroup := api.Group("", auth.RequireRole(auth.ViewRoles...))
	readGroup.GET("/ot-allocations", h.List)
	readGroup.GET("/ot-allocations/:id", h.Get)
	readGroup.GET("/ot-allocations/:id/documents", h.ListDocuments)
	readGroup.GET("/ot-allocations/:id/documents/:docId", h.DownloadDocument)
	readGroup.GET("/ot-rooms/:id/slots", h.ListSlots)

	// Write endpoints – admin, surgeon, scheduler
	writeGroup := api.Group("", auth.RequireRole(auth.BookRoles...))
	writeGroup.POST("/ot-allocations", h.Create)
	writeGroup.PUT("/ot-allocations/:id", h.Update)
	writeGroup.DELETE("/ot-allocations/:id", h.Delete)
	writeGroup.POST("/ot-allocations/:id/duplicate", h.Duplicate)
	writeGroup.POST("/ot-allocations/:id/cancel", h.Cancel)
	writeGroup.POST("/ot-allocations/:id/postpone", h.Postpone)
	writeGroup.POST("/ot-allocations/:id/documents", h.UploadDocument)
	writeGroup.DELETE("/ot-allocations/:id/documents/:docId", h.DeleteDocument)
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.ToHTTP(apperr.Validation(name, "invalid %s", name))
	}
	return id, nil
}

func optionalUUID(c echo.Context, name string) (*uuid.UUID, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.ToHTTP(apperr.Validation(name, "invalid %s", name))
	}
	return &id, nil
}

func optionalDate(c echo.Context, name string) (clock.Date, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return clock.Date{}, nil
	}
	d, err := clock.ParseDate(raw)
	if err != nil {
		return clock.Date{}, apperr.ToHTTP(apperr.Validation(name, "%s must be YYYY-MM-DD", name))
	}
	return d, nil
}

func pageError(err error) error {
	var pe *pagination.ParamError
	if errors.As(err, &pe) {
		return apperr.ToHTTP(apperr.Validation(pe.Param, "%s", pe.Error()))
	}
	return apperr.ToHTTP(err)
}

func bindAndValidate(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return err
	}
	if c.Echo().Validator == nil {
		return nil
	}
	if err := c.Validate(v); err != nil {
		return apperr.ToHTTP(err)
	}
	return nil
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	a, err := h.svc.Create(c.Request().Context(), req)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) List(c echo.Context) error {
	pg, err := pagination.FromContext(c)
	if err != nil {
		return pageError(err)
	}
	var f Filter
	if f.RoomID, err = optionalUUID(c, "room_id"); err != nil {
		return err
	}
	if f.PatientID, err = optionalUUID(c, "patient_id"); err != nil {
		return err
	}
	if f.SurgeonID, err = optionalUUID(c, "surgeon_id"); err != nil {
		return err
	}
	if f.Date, err = optionalDate(c, "date"); err != nil {
		return err
	}
	f.Status = Status(c.QueryParam("status"))
	f.RecordStatus = c.QueryParam("record_status")

	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, pg))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	a, err := h.svc.Update(c.Request().Context(), id, req)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Duplicate(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req DuplicateRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	a, err := h.svc.Duplicate(c.Request().Context(), id, req)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	a, err := h.svc.Cancel(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Postpone(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	a, err := h.svc.Postpone(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

// ListSlots is the occupancy of a room on ?date (default today).
func (h *Handler) ListSlots(c echo.Context) error {
	roomID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	date, err := optionalDate(c, "date")
	if err != nil {
		return err
	}
	views, err := h.svc.ListSlots(c.Request().Context(), roomID, date)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, views)
}

// -- Documents --

func documentErr(err error) error {
	switch {
	case errors.Is(err, blobstore.ErrBlobNotFound):
		return echo.NewHTTPError(http.StatusNotFound, apperr.Body{Error: "not_found", Message: err.Error()})
	case errors.Is(err, blobstore.ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, apperr.Body{Error: "file_too_large", Message: err.Error()})
	case errors.Is(err, blobstore.ErrInvalidContentType):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, apperr.Body{Error: "unsupported_media_type", Message: err.Error()})
	case errors.Is(err, blobstore.ErrMissingFileName), errors.Is(err, blobstore.ErrInvalidCategory):
		return echo.NewHTTPError(http.StatusBadRequest, apperr.Body{Error: "validation_error", Message: err.Error()})
	default:
		return apperr.ToHTTP(err)
	}
}

func (h *Handler) UploadDocument(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	file, err := c.FormFile("file")
	if err != nil {
		return apperr.ToHTTP(apperr.MissingField("file"))
	}
	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, apperr.Body{Error: "validation_error", Message: "cannot read uploaded file", Field: "file"})
	}
	defer src.Close()

	meta := blobstore.BlobMetadata{
		FileName:    file.Filename,
		ContentType: file.Header.Get(echo.HeaderContentType),
		Category:    c.FormValue("category"),
	}
	stored, err := h.svc.UploadDocument(c.Request().Context(), id, meta, src)
	if err != nil {
		return documentErr(err)
	}
	return c.JSON(http.StatusCreated, stored)
}

func (h *Handler) ListDocuments(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	docs, err := h.svc.ListDocuments(c.Request().Context(), id)
	if err != nil {
		return documentErr(err)
	}
	return c.JSON(http.StatusOK, docs)
}

func (h *Handler) DownloadDocument(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	docID, err := parseID(c, "docId")
	if err != nil {
		return err
	}
	rc, meta, err := h.svc.DownloadDocument(c.Request().Context(), id, docID)
	if err != nil {
		return documentErr(err)
	}
	defer rc.Close()
	c.Response().Header().Set(echo.HeaderContentDisposition,
		mime.FormatMediaType("attachment", map[string]string{"filename": meta.FileName}))
	return c.Stream(http.StatusOK, meta.ContentType, rc)
}

func (h *Handler) DeleteDocument(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	docID, err := parseID(c, "docId")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteDocument(c.Request().Context(), id, docID); err != nil {
		return documentErr(err)
	}
	return c.NoContent(http.StatusNoContent)
}
