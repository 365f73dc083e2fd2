package theatre

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/otsched/internal/platform/apperr"
	"github.com/ehr/otsched/internal/platform/auth"
	"github.com/ehr/otsched/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the room and slot catalog. The per-date slot view
// (GET /ot-rooms/:id/slots) belongs to the allocation handler.
func (h *Handler) RegisterRoutes(api *echo.Group, _ *echo.Group) {
	// Read endpoints – admin, surgeon, nurse, scheduler
	readGroup := api.Group("", auth.RequireRole(auth.ViewRoles...))
	readGroup.GET("/ot-rooms", h.ListRooms)
	readGroup.GET("/ot-rooms/:id", h.GetRoom)
	readGroup.GET("/ot-slots", h.ListSlots)
	readGroup.GET("/ot-slots/:id", h.GetSlot)

	// Catalog writes – admin only
	adminGroup := api.Group("", auth.RequireRole(auth.CatalogRoles...))
	adminGroup.POST("/ot-rooms", h.CreateRoom)
	adminGroup.PUT("/ot-rooms/:id", h.UpdateRoom)
	adminGroup.DELETE("/ot-rooms/:id", h.DeactivateRoom)
	adminGroup.POST("/ot-rooms/:id/slots", h.CreateSlot)
	adminGroup.POST("/ot-rooms/:id/slots/generate", h.GenerateSlots)
	adminGroup.PUT("/ot-slots/:id", h.UpdateSlot)
	adminGroup.DELETE("/ot-slots/:id", h.DeactivateSlot)
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, apperr.Body{
			Error: "validation_error", Message: "invalid " + name, Field: name,
		})
	}
	return id, nil
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

// -- OT Room Handlers --

func (h *Handler) CreateRoom(c echo.Context) error {
	var r OTRoom
	if err := c.Bind(&r); err != nil {
		return err
	}
	if err := h.svc.CreateRoom(c.Request().Context(), &r); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) GetRoom(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	r, err := h.svc.GetRoom(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) ListRooms(c echo.Context) error {
	pg, err := pagination.FromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, apperr.Body{
			Error: apperr.ErrValidation.Error(), Message: err.Error(),
		})
	}
	f := RoomFilter{Status: c.QueryParam("status"), Type: c.QueryParam("type")}
	items, total, err := h.svc.ListRooms(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, pg))
}

func (h *Handler) UpdateRoom(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var p RoomPatch
	if err := bindAndValidate(c, &p); err != nil {
		return err
	}
	r, err := h.svc.UpdateRoom(c.Request().Context(), id, p)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) DeactivateRoom(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	r, err := h.svc.DeactivateRoom(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}

// -- OT Slot Handlers --

func (h *Handler) CreateSlot(c echo.Context) error {
	roomID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var sl OTSlot
	if err := c.Bind(&sl); err != nil {
		return err
	}
	if err := h.svc.CreateSlot(c.Request().Context(), roomID, &sl); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, sl)
}

func (h *Handler) GenerateSlots(c echo.Context) error {
	roomID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req GenerateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	created, err := h.svc.GenerateSlots(c.Request().Context(), roomID, req.SlotMinutes)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetSlot(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	sl, err := h.svc.GetSlot(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, sl)
}

// ListSlots returns the slot templates of ?room_id, without occupancy.
func (h *Handler) ListSlots(c echo.Context) error {
	roomID, err := uuid.Parse(c.QueryParam("room_id"))
	if err != nil {
		return apperr.ToHTTP(apperr.MissingField("room_id"))
	}
	items, err := h.svc.ListSlotsByRoom(c.Request().Context(), roomID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateSlot(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var p SlotPatch
	if err := bindAndValidate(c, &p); err != nil {
		return err
	}
	sl, err := h.svc.UpdateSlot(c.Request().Context(), id, p)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, sl)
}

func (h *Handler) DeactivateSlot(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	sl, err := h.svc.DeactivateSlot(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, sl)
}
