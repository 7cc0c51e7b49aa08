package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/fasthttp/router"
	"github.com/openfleet/delivery-tracker/internal/model"
	xhttp "github.com/openfleet/delivery-tracker/pkg/http"
)

type DeliveryService interface {
	CreateDelivery(ctx context.Context, p model.DeliveryCreateRequest) (*model.Delivery, error)
	Get(ctx context.Context, id int64) (*model.Delivery, error)
	List(ctx context.Context, f model.DeliveryFilter) ([]*model.Delivery, int64, error)
	AssignDriver(ctx context.Context, deliveryID, driverID int64) (*model.Delivery, error)
	StartTracking(ctx context.Context, deliveryID int64) (*model.Delivery, error)
	StopTracking(ctx context.Context, deliveryID int64) (*model.Delivery, error)
	Confirm(ctx context.Context, deliveryID int64) (*model.Delivery, error)
	Cancel(ctx context.Context, deliveryID int64) (*model.Delivery, error)
}

type DeliveryHandler struct {
	svc DeliveryService
}

func RegisterDeliveryRoutes(e *router.Group, h *DeliveryHandler) {
	e.POST("/deliveries", h.CreateDelivery)
	e.GET("/deliveries", h.ListDeliveries)
	e.GET("/deliveries/{id}", h.GetDelivery)
	e.POST("/deliveries/{id}/assign", h.AssignDriver)
	e.POST("/deliveries/{id}/tracking/start", h.StartTracking)
	e.POST("/deliveries/{id}/tracking/stop", h.StopTracking)
	e.POST("/deliveries/{id}/confirm", h.Confirm)
	e.POST("/deliveries/{id}/cancel", h.Cancel)
}

func NewDeliveryHandler(svc DeliveryService) *DeliveryHandler {
	return &DeliveryHandler{
		svc: svc,
	}
}

type assignDriverRequest struct {
	DriverID int64 `json:"driver_id" validate:"required"`
}

type deliveryListResponse struct {
	Items []*model.Delivery `json:"items"`
	Total int64             `json:"total"`
}

func (h *DeliveryHandler) CreateDelivery(ctx *xhttp.RequestCtx) {
	var req model.DeliveryCreateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}

	d, err := h.svc.CreateDelivery(ctx, req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, d)
}

func (h *DeliveryHandler) GetDelivery(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid delivery id")
		return
	}

	d, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, d)
}

func (h *DeliveryHandler) ListDeliveries(ctx *xhttp.RequestCtx) {
	var f model.DeliveryFilter

	if v := query(ctx, "supplier_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.SupplierID = &id
		}
	}
	if v := query(ctx, "restaurant_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.RestaurantID = &id
		}
	}
	if v := query(ctx, "driver_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.DriverID = &id
		}
	}
	if v := query(ctx, "status"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
			if parts[i] != "" {
				f.Statuses = append(f.Statuses, model.DeliveryStatus(parts[i]))
			}
		}
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.To = &t
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, deliveryListResponse{Items: items, Total: total})
}

func (h *DeliveryHandler) AssignDriver(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid delivery id")
		return
	}

	var req assignDriverRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}

	d, err := h.svc.AssignDriver(ctx, id, req.DriverID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, d)
}

func (h *DeliveryHandler) StartTracking(ctx *xhttp.RequestCtx) {
	h.transition(ctx, h.svc.StartTracking)
}

func (h *DeliveryHandler) StopTracking(ctx *xhttp.RequestCtx) {
	h.transition(ctx, h.svc.StopTracking)
}

func (h *DeliveryHandler) Confirm(ctx *xhttp.RequestCtx) {
	h.transition(ctx, h.svc.Confirm)
}

func (h *DeliveryHandler) Cancel(ctx *xhttp.RequestCtx) {
	h.transition(ctx, h.svc.Cancel)
}

func (h *DeliveryHandler) transition(ctx *xhttp.RequestCtx, fn func(context.Context, int64) (*model.Delivery, error)) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid delivery id")
		return
	}

	d, err := fn(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, d)
}
