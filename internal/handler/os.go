package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hospmaint/os-manager/internal/model"
	"github.com/hospmaint/os-manager/internal/service"
)

// OrderHandler exposes the service-order lifecycle over HTTP.
type OrderHandler struct {
	Orders   *service.OrderService
	Comments *service.CommentService
}

// NewOrderHandler bundles the order endpoints' dependencies.
func NewOrderHandler(orders *service.OrderService, comments *service.CommentService) *OrderHandler {
	return &OrderHandler{Orders: orders, Comments: comments}
}

type createOrderReq struct {
	OSNumber                  string  `json:"osNumber"`
	ClientName                string  `json:"clientName"`
	EquipmentName             string  `json:"equipmentName"`
	EquipmentClass            string  `json:"equipmentClass"`
	SerialNumber              string  `json:"serialNumber"`
	Accessories               string  `json:"accessories"`
	HasPreviousDefect         bool    `json:"hasPreviousDefect"`
	PreviousDefectDescription string  `json:"previousDefectDescription"`
	OptionalDescription       string  `json:"optionalDescription"`
	Priority                  string  `json:"priority"`
	CurrentStatus             string  `json:"currentStatus"`
	AssignedToUserID          *uint64 `json:"assignedToUserId"`
}

// updateOrderReq mirrors createOrderReq with pointer fields so absent
// keys stay untouched. Unassign clears the technician because JSON
// cannot distinguish "assignedToUserId": null from an omitted key
// after binding.
type updateOrderReq struct {
	OSNumber                  *string `json:"osNumber"`
	ClientName                *string `json:"clientName"`
	EquipmentName             *string `json:"equipmentName"`
	EquipmentClass            *string `json:"equipmentClass"`
	SerialNumber              *string `json:"serialNumber"`
	Accessories               *string `json:"accessories"`
	HasPreviousDefect         *bool   `json:"hasPreviousDefect"`
	PreviousDefectDescription *string `json:"previousDefectDescription"`
	OptionalDescription       *string `json:"optionalDescription"`
	Priority                  *string `json:"priority"`
	CurrentStatus             *string `json:"currentStatus"`
	AssignedToUserID          *uint64 `json:"assignedToUserId"`
	Unassign                  bool    `json:"unassign"`
}

// Create handles POST /api/os.
func (h *OrderHandler) Create(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createOrderReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	o, err := h.Orders.Create(c.Request().Context(), a, service.CreateOrderInput{
		OSNumber:                  req.OSNumber,
		ClientName:                req.ClientName,
		EquipmentName:             req.EquipmentName,
		EquipmentClass:            req.EquipmentClass,
		SerialNumber:              req.SerialNumber,
		Accessories:               req.Accessories,
		HasPreviousDefect:         req.HasPreviousDefect,
		PreviousDefectDescription: req.PreviousDefectDescription,
		OptionalDescription:       req.OptionalDescription,
		Priority:                  model.Priority(req.Priority),
		CurrentStatus:             model.Status(req.CurrentStatus),
		AssignedToUserID:          req.AssignedToUserID,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, o)
}

// Get handles GET /api/os/:id.
func (h *OrderHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	o, err := h.Orders.Get(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, o)
}

// List handles GET /api/os: the open board, priority-ordered. Filters
// come from query parameters; without a status filter completed orders
// are excluded.
func (h *OrderHandler) List(c echo.Context) error {
	f := model.OrderFilter{
		Status:        model.Status(c.QueryParam("status")),
		Priority:      model.Priority(c.QueryParam("priority")),
		ClientName:    c.QueryParam("clientName"),
		EquipmentName: c.QueryParam("equipmentName"),
	}
	orders, err := h.Orders.ListOpen(c.Request().Context(), f)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, orders)
}

// History handles GET /api/os/history: completed orders, newest
// completion first, optionally bounded by start/end (RFC 3339 or
// YYYY-MM-DD).
func (h *OrderHandler) History(c echo.Context) error {
	var dr model.DateRange
	if v := c.QueryParam("start"); v != "" {
		t, err := parseTimeParam(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid start"})
		}
		dr.Start = &t
	}
	if v := c.QueryParam("end"); v != "" {
		t, err := parseTimeParam(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid end"})
		}
		dr.End = &t
	}
	f := model.OrderFilter{
		ClientName:    c.QueryParam("clientName"),
		EquipmentName: c.QueryParam("equipmentName"),
	}
	orders, err := h.Orders.ListHistory(c.Request().Context(), dr, f)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, orders)
}

// Update handles PATCH /api/os/:id.
func (h *OrderHandler) Update(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req updateOrderReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	d := model.OrderDelta{
		OSNumber:                  req.OSNumber,
		ClientName:                req.ClientName,
		EquipmentName:             req.EquipmentName,
		EquipmentClass:            req.EquipmentClass,
		SerialNumber:              req.SerialNumber,
		Accessories:               req.Accessories,
		HasPreviousDefect:         req.HasPreviousDefect,
		PreviousDefectDescription: req.PreviousDefectDescription,
		OptionalDescription:       req.OptionalDescription,
		ClearAssigned:             req.Unassign,
	}
	if req.Priority != nil {
		p := model.Priority(*req.Priority)
		d.Priority = &p
	}
	if req.CurrentStatus != nil {
		st := model.Status(*req.CurrentStatus)
		d.CurrentStatus = &st
	}
	if !req.Unassign {
		d.AssignedToUserID = req.AssignedToUserID
	}
	o, err := h.Orders.Update(c.Request().Context(), a, id, d)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, o)
}

// Remove handles DELETE /api/os/:id. The order is finalized rather
// than erased; listeners receive order:deleted for compatibility.
func (h *OrderHandler) Remove(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	o, err := h.Orders.Finalize(c.Request().Context(), a, id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, o)
}

type addCommentReq struct {
	CommentType string `json:"commentType"`
	Content     string `json:"content"`
}

// AddComment handles POST /api/os/:id/comments.
func (h *OrderHandler) AddComment(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req addCommentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	cm, err := h.Comments.Add(c.Request().Context(), a, id, model.CommentType(req.CommentType), req.Content)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, cm)
}

func parseTimeParam(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", v)
	return t.UTC(), err
}
