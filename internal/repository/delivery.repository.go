package repository

import (
	"context"
	"errors"
	"time"

	"github.com/openfleet/delivery-tracker/internal/model"
	"github.com/openfleet/delivery-tracker/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrDeliveryNotFound is returned when a delivery does not exist.
	ErrDeliveryNotFound = errors.New("delivery not found")
)

type DeliveryRepository struct {
	*pg.DB
}

func NewDeliveryRepository(db *pg.DB) *DeliveryRepository {
	return &DeliveryRepository{
		db,
	}
}

func (r *DeliveryRepository) Create(ctx context.Context, d *model.Delivery) (*model.Delivery, error) {
	entity := toDeliveryEntity(d)
	if entity.Status == "" {
		entity.Status = string(model.DeliveryStatusPending)
	}

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toDeliveryModel(entity), nil
}

func (r *DeliveryRepository) GetByID(ctx context.Context, id int64) (*model.Delivery, error) {
	var entity DeliveryEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeliveryNotFound
		}
		return nil, err
	}
	return toDeliveryModel(&entity), nil
}

func (r *DeliveryRepository) List(ctx context.Context, f model.DeliveryFilter) ([]*model.Delivery, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&DeliveryEntity{})

	if f.SupplierID != nil {
		q = q.Where("supplier_id = ?", *f.SupplierID)
	}
	if f.RestaurantID != nil {
		q = q.Where("restaurant_id = ?", *f.RestaurantID)
	}
	if f.DriverID != nil {
		q = q.Where("driver_id = ?", *f.DriverID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}

	// Count before pagination
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*DeliveryEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toDeliveryModels(entities), total, nil
}

func (r *DeliveryRepository) AssignDriver(ctx context.Context, id, driverID int64) error {
	res := r.Write(ctx).WithContext(ctx).
		Model(&DeliveryEntity{}).
		Where("id = ?", id).
		Update("driver_id", driverID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDeliveryNotFound
	}
	return nil
}

// HasInTransitForDriver reports whether the driver already has a
// delivery being tracked. At most one is allowed, enforced here rather
// than by the schema.
func (r *DeliveryRepository) HasInTransitForDriver(ctx context.Context, driverID int64) (bool, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&DeliveryEntity{}).
		Where("driver_id = ? AND status = ?", driverID, string(model.DeliveryStatusInTransit)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *DeliveryRepository) SetStatus(ctx context.Context, id int64, status model.DeliveryStatus) error {
	res := r.Write(ctx).WithContext(ctx).
		Model(&DeliveryEntity{}).
		Where("id = ?", id).
		Update("status", string(status))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDeliveryNotFound
	}
	return nil
}

func (r *DeliveryRepository) MarkTrackingStarted(ctx context.Context, id int64, at time.Time) error {
	res := r.Write(ctx).WithContext(ctx).
		Model(&DeliveryEntity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":              string(model.DeliveryStatusInTransit),
			"tracking_started_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDeliveryNotFound
	}
	return nil
}

func (r *DeliveryRepository) MarkTrackingEnded(ctx context.Context, id int64, at time.Time) error {
	res := r.Write(ctx).WithContext(ctx).
		Model(&DeliveryEntity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":            string(model.DeliveryStatusDelivered),
			"tracking_ended_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDeliveryNotFound
	}
	return nil
}

// ApplySnapshot projects the given fix onto the parent delivery's
// current-position columns. The update is unconditional: last write by
// insertion order wins, recorded_at is not compared against the
// existing snapshot.
func (r *DeliveryRepository) ApplySnapshot(ctx context.Context, deliveryID int64, fix *model.LocationFix) error {
	res := r.Write(ctx).WithContext(ctx).
		Model(&DeliveryEntity{}).
		Where("id = ?", deliveryID).
		Updates(map[string]interface{}{
			"current_latitude":     fix.Latitude,
			"current_longitude":    fix.Longitude,
			"current_speed":        fix.Speed,
			"current_heading":      fix.Heading,
			"last_location_update": fix.RecordedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDeliveryNotFound
	}
	return nil
}

func (r *DeliveryRepository) UpdateRouteEstimate(ctx context.Context, id int64, distanceKm, durationMinutes float64, arrival time.Time) error {
	res := r.Write(ctx).WithContext(ctx).
		Model(&DeliveryEntity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"route_distance_km":      distanceKm,
			"route_duration_minutes": durationMinutes,
			"estimated_arrival_time": arrival,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDeliveryNotFound
	}
	return nil
}

// ListPurgeable returns ids of terminal deliveries that still have
// fixes recorded before the cutoff. In-progress deliveries keep their
// full history until they complete and age past the boundary.
func (r *DeliveryRepository) ListPurgeable(ctx context.Context, cutoff time.Time, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 100
	}

	var ids []int64
	err := r.Read(ctx).WithContext(ctx).
		Table("deliveries AS d").
		Select("DISTINCT d.id").
		Joins("JOIN location_fixes AS lf ON lf.delivery_id = d.id").
		Where("d.status IN ?", []string{
			string(model.DeliveryStatusDelivered),
			string(model.DeliveryStatusConfirmed),
			string(model.DeliveryStatusCancelled),
		}).
		Where("lf.recorded_at < ?", cutoff).
		Limit(limit).
		Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
