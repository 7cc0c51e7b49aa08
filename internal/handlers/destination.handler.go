package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/openfleet/delivery-tracker/internal/model"
	xhttp "github.com/openfleet/delivery-tracker/pkg/http"
)

type DestinationService interface {
	UpsertDestination(ctx context.Context, p model.DestinationUpsertRequest) (*model.Destination, error)
	GetDestination(ctx context.Context, restaurantID int64) (*model.Destination, error)
}

type DestinationHandler struct {
	svc DestinationService
}

func RegisterDestinationRoutes(e *router.Group, h *DestinationHandler) {
	e.PUT("/restaurants/{id}/destination", h.UpsertDestination)
	e.GET("/restaurants/{id}/destination", h.GetDestination)
}

func NewDestinationHandler(svc DestinationService) *DestinationHandler {
	return &DestinationHandler{
		svc: svc,
	}
}

func (h *DestinationHandler) UpsertDestination(ctx *xhttp.RequestCtx) {
	restaurantID, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid restaurant id")
		return
	}

	var req model.DestinationUpsertRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	req.RestaurantID = restaurantID
	if err := validate.Struct(req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}

	d, err := h.svc.UpsertDestination(ctx, req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, d)
}

func (h *DestinationHandler) GetDestination(ctx *xhttp.RequestCtx) {
	restaurantID, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid restaurant id")
		return
	}

	d, err := h.svc.GetDestination(ctx, restaurantID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, d)
}
