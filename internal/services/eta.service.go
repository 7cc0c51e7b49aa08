package services

import (
	"context"
	"errors"
	"time"

	"github.com/openfleet/delivery-tracker/internal/geo"
	"github.com/openfleet/delivery-tracker/internal/model"
	"github.com/openfleet/delivery-tracker/internal/repository"
	"github.com/openfleet/delivery-tracker/internal/routing"
	"github.com/openfleet/delivery-tracker/pkg/logger"
)

type DestinationRepository interface {
	Upsert(ctx context.Context, d *model.Destination) (*model.Destination, error)
	GetByRestaurantID(ctx context.Context, restaurantID int64) (*model.Destination, error)
}

// RouteEstimator supplies road-network figures. Optional; the
// straight-line estimate stands on its own when no provider responds.
type RouteEstimator interface {
	EstimateRoute(ctx context.Context, from, to geo.Point) (*routing.RouteResponse, error)
}

type RouteEstimateWriter interface {
	GetByID(ctx context.Context, id int64) (*model.Delivery, error)
	UpdateRouteEstimate(ctx context.Context, id int64, distanceKm, durationMinutes float64, arrival time.Time) error
}

// DeliveryEventPublisher notifies watchers that the delivery row
// changed. Optional; without it route estimates only land in the
// database.
type DeliveryEventPublisher interface {
	PublishDelivery(ctx context.Context, delivery *model.Delivery, at time.Time) error
}

type EtaService struct {
	deliveryRepo    RouteEstimateWriter
	destinationRepo DestinationRepository
	router          RouteEstimator
	events          DeliveryEventPublisher
}

func NewEtaService(deliveryRepo RouteEstimateWriter, destinationRepo DestinationRepository, router RouteEstimator, events DeliveryEventPublisher) *EtaService {
	return &EtaService{
		deliveryRepo:    deliveryRepo,
		destinationRepo: destinationRepo,
		router:          router,
		events:          events,
	}
}

// EstimateArrival recomputes the delivery's ETA from its current
// snapshot and the restaurant's destination. When either endpoint is
// missing the estimate fields stay nil rather than erroring; an ETA is
// a read-side convenience, not a precondition of tracking.
func (s *EtaService) EstimateArrival(ctx context.Context, deliveryID int64) (*model.ArrivalEstimate, error) {
	d, err := s.deliveryRepo.GetByID(ctx, deliveryID)
	if err != nil {
		if errors.Is(err, repository.ErrDeliveryNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	est := &model.ArrivalEstimate{DeliveryID: deliveryID}

	if d.CurrentLatitude == nil || d.CurrentLongitude == nil {
		return est, nil
	}

	destination, err := s.destinationRepo.GetByRestaurantID(ctx, d.RestaurantID)
	if err != nil {
		if errors.Is(err, repository.ErrDestinationNotFound) {
			return est, nil
		}
		return nil, err
	}

	current := geo.Point{Latitude: *d.CurrentLatitude, Longitude: *d.CurrentLongitude}
	target := geo.Point{Latitude: destination.Latitude, Longitude: destination.Longitude}

	computed := geo.EstimateArrival(current, target, d.CurrentSpeed, time.Now().UTC())

	est.DistanceKm = &computed.DistanceKm
	est.DurationMinutes = &computed.DurationMinutes
	est.EstimatedArrival = &computed.Arrival

	s.enrichWithRoute(ctx, deliveryID, current, target, est)

	return est, nil
}

// UpsertDestination stores the restaurant's drop-off coordinate.
func (s *EtaService) UpsertDestination(ctx context.Context, p model.DestinationUpsertRequest) (*model.Destination, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	return s.destinationRepo.Upsert(ctx, &model.Destination{
		RestaurantID: p.RestaurantID,
		Latitude:     p.Latitude,
		Longitude:    p.Longitude,
		Instructions: p.Instructions,
	})
}

func (s *EtaService) GetDestination(ctx context.Context, restaurantID int64) (*model.Destination, error) {
	d, err := s.destinationRepo.GetByRestaurantID(ctx, restaurantID)
	if err != nil {
		if errors.Is(err, repository.ErrDestinationNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// enrichWithRoute overlays road-network figures on top of the
// straight-line estimate and persists them on the delivery. Provider
// failures leave the straight-line answer untouched.
func (s *EtaService) enrichWithRoute(ctx context.Context, deliveryID int64, from, to geo.Point, est *model.ArrivalEstimate) {
	if s.router == nil {
		return
	}

	route, err := s.router.EstimateRoute(ctx, from, to)
	if err != nil {
		logger.Debug("route enrichment unavailable", "delivery_id", deliveryID, "error", err)
		return
	}

	est.RouteDistanceKm = &route.DistanceKm
	est.RouteDurationMinutes = &route.DurationMinutes

	arrival := time.Now().UTC().Add(time.Duration(route.DurationMinutes * float64(time.Minute)))
	if err := s.deliveryRepo.UpdateRouteEstimate(ctx, deliveryID, route.DistanceKm, route.DurationMinutes, arrival); err != nil {
		logger.Warn("route estimate persist failed", "delivery_id", deliveryID, "error", err)
		return
	}

	if s.events != nil {
		if updated, err := s.deliveryRepo.GetByID(ctx, deliveryID); err == nil {
			if err := s.events.PublishDelivery(ctx, updated, time.Now().UTC()); err != nil {
				logger.Debug("route event publish failed", "delivery_id", deliveryID, "error", err)
			}
		}
	}
}
