package handlers

import (
	"context"
	"strconv"

	"github.com/fasthttp/router"
	"github.com/openfleet/delivery-tracker/internal/model"
	xhttp "github.com/openfleet/delivery-tracker/pkg/http"
)

type LocationIngestService interface {
	IngestFix(ctx context.Context, p model.LocationFixCreateRequest) (*model.LocationFix, error)
	History(ctx context.Context, deliveryID int64, limit int) ([]*model.LocationFix, error)
}

type ArrivalEstimateService interface {
	EstimateArrival(ctx context.Context, deliveryID int64) (*model.ArrivalEstimate, error)
}

// TrackingHandler serves the hot path: fix ingest from driver phones,
// plus the trail and ETA reads for watchers.
type TrackingHandler struct {
	ingest LocationIngestService
	eta    ArrivalEstimateService
}

func RegisterTrackingRoutes(e *router.Group, h *TrackingHandler) {
	e.POST("/deliveries/{id}/locations", h.IngestLocation)
	e.GET("/deliveries/{id}/locations", h.ListLocations)
	e.GET("/deliveries/{id}/eta", h.GetEta)
}

func NewTrackingHandler(ingest LocationIngestService, eta ArrivalEstimateService) *TrackingHandler {
	return &TrackingHandler{
		ingest: ingest,
		eta:    eta,
	}
}

type locationHistoryResponse struct {
	Items []*model.LocationFix `json:"items"`
}

func (h *TrackingHandler) IngestLocation(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid delivery id")
		return
	}

	var req model.LocationFixCreateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	req.DeliveryID = id
	if err := validate.Struct(req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}

	fix, err := h.ingest.IngestFix(ctx, req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, fix)
}

func (h *TrackingHandler) ListLocations(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid delivery id")
		return
	}

	limit := 100
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			limit = n
		}
	}

	fixes, err := h.ingest.History(ctx, id, limit)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, locationHistoryResponse{Items: fixes})
}

func (h *TrackingHandler) GetEta(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid delivery id")
		return
	}

	est, err := h.eta.EstimateArrival(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, est)
}
