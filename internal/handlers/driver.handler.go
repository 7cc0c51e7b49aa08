package handlers

import (
	"context"
	"strconv"

	"github.com/fasthttp/router"
	"github.com/openfleet/delivery-tracker/internal/model"
	xhttp "github.com/openfleet/delivery-tracker/pkg/http"
)

type DriverService interface {
	Create(ctx context.Context, p model.DriverCreateRequest) (*model.Driver, error)
	Get(ctx context.Context, id int64) (*model.Driver, error)
	ListBySupplier(ctx context.Context, supplierID int64, activeOnly bool) ([]*model.Driver, error)
	Deactivate(ctx context.Context, id int64) error
}

type DriverHandler struct {
	svc DriverService
}

func RegisterDriverRoutes(e *router.Group, h *DriverHandler) {
	e.POST("/drivers", h.CreateDriver)
	e.GET("/drivers/{id}", h.GetDriver)
	e.GET("/drivers", h.ListDrivers)
	e.DELETE("/drivers/{id}", h.DeactivateDriver)
}

func NewDriverHandler(svc DriverService) *DriverHandler {
	return &DriverHandler{
		svc: svc,
	}
}

type driverListResponse struct {
	Items []*model.Driver `json:"items"`
}

func (h *DriverHandler) CreateDriver(ctx *xhttp.RequestCtx) {
	var req model.DriverCreateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}

	d, err := h.svc.Create(ctx, req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, d)
}

func (h *DriverHandler) GetDriver(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid driver id")
		return
	}

	d, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, d)
}

func (h *DriverHandler) ListDrivers(ctx *xhttp.RequestCtx) {
	supplierID, err := strconv.ParseInt(query(ctx, "supplier_id"), 10, 64)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "supplier_id is required")
		return
	}

	activeOnly := query(ctx, "active") == "true"

	drivers, err := h.svc.ListBySupplier(ctx, supplierID, activeOnly)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, driverListResponse{Items: drivers})
}

func (h *DriverHandler) DeactivateDriver(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid driver id")
		return
	}

	if err := h.svc.Deactivate(ctx, id); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.Response.SetStatusCode(xhttp.StatusNoContent)
}
