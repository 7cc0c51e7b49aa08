package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openfleet/delivery-tracker/internal/model"
	"github.com/openfleet/delivery-tracker/internal/repository"
	"github.com/openfleet/delivery-tracker/pkg/logger"
	"github.com/openfleet/delivery-tracker/pkg/prom"
)

var (
	ErrNotFound          = errors.New("delivery not found")
	ErrDriverNotFound    = errors.New("driver not found")
	ErrDriverInactive    = errors.New("driver is not active")
	ErrDriverBusy        = errors.New("driver already has a delivery in transit")
	ErrTrackingEnded     = errors.New("tracking has ended for this delivery")
	ErrInvalidTransition = errors.New("invalid status transition")
)

type DeliveryRepository interface {
	Create(ctx context.Context, d *model.Delivery) (*model.Delivery, error)
	GetByID(ctx context.Context, id int64) (*model.Delivery, error)
	List(ctx context.Context, f model.DeliveryFilter) ([]*model.Delivery, int64, error)
	AssignDriver(ctx context.Context, id, driverID int64) error
	HasInTransitForDriver(ctx context.Context, driverID int64) (bool, error)
	SetStatus(ctx context.Context, id int64, status model.DeliveryStatus) error
	MarkTrackingStarted(ctx context.Context, id int64, at time.Time) error
	MarkTrackingEnded(ctx context.Context, id int64, at time.Time) error
	ApplySnapshot(ctx context.Context, deliveryID int64, fix *model.LocationFix) error
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type LocationRepository interface {
	Append(ctx context.Context, fix *model.LocationFix) (*model.LocationFix, error)
	ListRecent(ctx context.Context, deliveryID int64, limit int) ([]*model.LocationFix, error)
}

type DriverRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Driver, error)
}

// EventPublisher fans out change notifications after the durable write
// commits. Failures are logged, never propagated to the caller.
type EventPublisher interface {
	PublishFix(ctx context.Context, deliveryID int64, fix *model.LocationFix) error
	PublishDelivery(ctx context.Context, delivery *model.Delivery, at time.Time) error
}

// CompletionQueue receives a message whenever a delivery goes
// terminal; the retention worker consumes it.
type CompletionQueue interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

type TrackingService struct {
	deliveryRepo DeliveryRepository
	locationRepo LocationRepository
	driverRepo   DriverRepository
	events       EventPublisher
	completions  CompletionQueue
}

func NewTrackingService(
	deliveryRepo DeliveryRepository,
	locationRepo LocationRepository,
	driverRepo DriverRepository,
	events EventPublisher,
	completions CompletionQueue,
) *TrackingService {
	return &TrackingService{
		deliveryRepo: deliveryRepo,
		locationRepo: locationRepo,
		driverRepo:   driverRepo,
		events:       events,
		completions:  completions,
	}
}

func (s *TrackingService) CreateDelivery(ctx context.Context, p model.DeliveryCreateRequest) (*model.Delivery, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if p.DriverID != nil {
		if err := s.checkDriverAssignable(ctx, *p.DriverID); err != nil {
			return nil, err
		}
	}

	d := &model.Delivery{
		SupplierID:   p.SupplierID,
		RestaurantID: p.RestaurantID,
		DriverID:     p.DriverID,
		Status:       model.DeliveryStatusPending,
	}

	created, err := s.deliveryRepo.Create(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("create delivery: %w", err)
	}
	return created, nil
}

func (s *TrackingService) Get(ctx context.Context, id int64) (*model.Delivery, error) {
	d, err := s.deliveryRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrDeliveryNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

func (s *TrackingService) List(ctx context.Context, f model.DeliveryFilter) ([]*model.Delivery, int64, error) {
	return s.deliveryRepo.List(ctx, f)
}

// AssignDriver puts a driver on a pending delivery. A driver can carry
// at most one in-transit delivery at a time.
func (s *TrackingService) AssignDriver(ctx context.Context, deliveryID, driverID int64) (*model.Delivery, error) {
	d, err := s.Get(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if d.Status.Terminal() {
		return nil, ErrTrackingEnded
	}

	if err := s.checkDriverAssignable(ctx, driverID); err != nil {
		return nil, err
	}

	if err := s.deliveryRepo.AssignDriver(ctx, deliveryID, driverID); err != nil {
		return nil, fmt.Errorf("assign driver: %w", err)
	}

	updated, err := s.Get(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	s.publishDelivery(ctx, updated, time.Now().UTC())
	return updated, nil
}

func (s *TrackingService) checkDriverAssignable(ctx context.Context, driverID int64) error {
	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		if errors.Is(err, repository.ErrDriverNotFound) {
			return ErrDriverNotFound
		}
		return err
	}
	if !driver.Active {
		return ErrDriverInactive
	}

	busy, err := s.deliveryRepo.HasInTransitForDriver(ctx, driverID)
	if err != nil {
		return err
	}
	if busy {
		return ErrDriverBusy
	}
	return nil
}

// StartTracking moves the delivery to in_transit. Starting an already
// tracked delivery is a no-op success, so a retried start from a flaky
// driver app never fails.
func (s *TrackingService) StartTracking(ctx context.Context, deliveryID int64) (*model.Delivery, error) {
	d, err := s.Get(ctx, deliveryID)
	if err != nil {
		return nil, err
	}

	switch {
	case d.Status == model.DeliveryStatusInTransit:
		return d, nil
	case d.Status.Terminal():
		return nil, ErrTrackingEnded
	}

	now := time.Now().UTC()
	if err := s.deliveryRepo.MarkTrackingStarted(ctx, deliveryID, now); err != nil {
		return nil, fmt.Errorf("start tracking: %w", err)
	}

	updated, err := s.Get(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	s.publishDelivery(ctx, updated, now)
	return updated, nil
}

// StopTracking ends the trip and marks the delivery delivered. Calling
// it again once the delivery is terminal is a no-op success.
func (s *TrackingService) StopTracking(ctx context.Context, deliveryID int64) (*model.Delivery, error) {
	d, err := s.Get(ctx, deliveryID)
	if err != nil {
		return nil, err
	}

	if d.Status.Terminal() {
		return d, nil
	}

	now := time.Now().UTC()
	if err := s.deliveryRepo.MarkTrackingEnded(ctx, deliveryID, now); err != nil {
		return nil, fmt.Errorf("stop tracking: %w", err)
	}

	updated, err := s.Get(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	s.publishDelivery(ctx, updated, now)
	s.publishCompletion(ctx, deliveryID, model.DeliveryStatusDelivered, now)
	prom.RecordDeliveryCompleted()

	return updated, nil
}

// IngestFix appends one GPS observation and projects it onto the
// delivery's current-position snapshot in the same transaction. The
// snapshot always takes the newest insert; device clocks are recorded
// but never compared.
func (s *TrackingService) IngestFix(ctx context.Context, p model.LocationFixCreateRequest) (*model.LocationFix, error) {
	if err := p.Validate(); err != nil {
		prom.RecordFixIngested("invalid")
		return nil, err
	}

	d, err := s.Get(ctx, p.DeliveryID)
	if err != nil {
		prom.RecordFixIngested("not_found")
		return nil, err
	}
	if d.Status.Terminal() {
		prom.RecordFixIngested("ended")
		return nil, ErrTrackingEnded
	}

	fix := &model.LocationFix{
		DeliveryID:   p.DeliveryID,
		DriverID:     p.DriverID,
		Latitude:     p.Latitude,
		Longitude:    p.Longitude,
		Accuracy:     p.Accuracy,
		Altitude:     p.Altitude,
		Speed:        p.Speed,
		Heading:      p.Heading,
		BatteryLevel: p.BatteryLevel,
		RecordedAt:   p.RecordedAt,
	}
	if fix.DriverID == nil {
		fix.DriverID = d.DriverID
	}

	start := time.Now()
	var created *model.LocationFix
	err = s.deliveryRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		created, err = s.locationRepo.Append(ctx, fix)
		if err != nil {
			return fmt.Errorf("append fix: %w", err)
		}
		if err := s.deliveryRepo.ApplySnapshot(ctx, p.DeliveryID, created); err != nil {
			return fmt.Errorf("project snapshot: %w", err)
		}
		return nil
	})
	prom.ObserveProjectionDuration(time.Since(start).Seconds())
	if err != nil {
		prom.RecordFixIngested("error")
		return nil, err
	}
	prom.RecordFixIngested("ok")

	// The fix is durable; notification failures only delay watchers.
	if s.events != nil {
		if err := s.events.PublishFix(ctx, p.DeliveryID, created); err != nil {
			logger.Warn("fix event publish failed", "delivery_id", p.DeliveryID, "error", err)
		}
	}

	return created, nil
}

// Confirm lets the restaurant acknowledge receipt of a delivered
// order.
func (s *TrackingService) Confirm(ctx context.Context, deliveryID int64) (*model.Delivery, error) {
	d, err := s.Get(ctx, deliveryID)
	if err != nil {
		return nil, err
	}

	switch d.Status {
	case model.DeliveryStatusConfirmed:
		return d, nil
	case model.DeliveryStatusDelivered:
	default:
		return nil, ErrInvalidTransition
	}

	if err := s.deliveryRepo.SetStatus(ctx, deliveryID, model.DeliveryStatusConfirmed); err != nil {
		return nil, fmt.Errorf("confirm delivery: %w", err)
	}

	updated, err := s.Get(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	s.publishDelivery(ctx, updated, time.Now().UTC())
	return updated, nil
}

// Cancel aborts a delivery that has not completed yet.
func (s *TrackingService) Cancel(ctx context.Context, deliveryID int64) (*model.Delivery, error) {
	d, err := s.Get(ctx, deliveryID)
	if err != nil {
		return nil, err
	}

	switch {
	case d.Status == model.DeliveryStatusCancelled:
		return d, nil
	case d.Status.Terminal():
		return nil, ErrInvalidTransition
	}

	if err := s.deliveryRepo.SetStatus(ctx, deliveryID, model.DeliveryStatusCancelled); err != nil {
		return nil, fmt.Errorf("cancel delivery: %w", err)
	}

	now := time.Now().UTC()
	updated, err := s.Get(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	s.publishDelivery(ctx, updated, now)
	s.publishCompletion(ctx, deliveryID, model.DeliveryStatusCancelled, now)

	return updated, nil
}

// History returns the most recent fixes, newest first, capped at the
// repository's window.
func (s *TrackingService) History(ctx context.Context, deliveryID int64, limit int) ([]*model.LocationFix, error) {
	if _, err := s.Get(ctx, deliveryID); err != nil {
		return nil, err
	}
	return s.locationRepo.ListRecent(ctx, deliveryID, limit)
}

func (s *TrackingService) publishDelivery(ctx context.Context, d *model.Delivery, at time.Time) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishDelivery(ctx, d, at); err != nil {
		logger.Warn("delivery event publish failed", "delivery_id", d.ID, "status", d.Status, "error", err)
	}
}

func (s *TrackingService) publishCompletion(ctx context.Context, deliveryID int64, status model.DeliveryStatus, at time.Time) {
	if s.completions == nil {
		return
	}
	msg := model.DeliveryCompletedMessage{
		DeliveryID:  deliveryID,
		Status:      status,
		CompletedAt: at,
	}
	if _, err := s.completions.PublishJSON(ctx, msg, map[string]string{"status": string(status)}); err != nil {
		logger.Error("completion publish failed", "delivery_id", deliveryID, "error", err)
	}
}
