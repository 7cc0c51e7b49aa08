package repository

import (
	"context"
	"time"

	"github.com/openfleet/delivery-tracker/internal/model"
	"github.com/openfleet/delivery-tracker/pkg/pg"
)

// HistoryLimit caps how many recent fixes a single read returns.
const HistoryLimit = 100

type LocationRepository struct {
	*pg.DB
}

func NewLocationRepository(db *pg.DB) *LocationRepository {
	return &LocationRepository{
		db,
	}
}

// Append inserts one fix. Fixes are immutable once written.
func (r *LocationRepository) Append(ctx context.Context, fix *model.LocationFix) (*model.LocationFix, error) {
	entity := toLocationFixEntity(fix)
	if entity.RecordedAt.IsZero() {
		entity.RecordedAt = time.Now().UTC()
	}

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toLocationFixModel(entity), nil
}

// ListRecent returns up to limit fixes for the delivery, newest first.
func (r *LocationRepository) ListRecent(ctx context.Context, deliveryID int64, limit int) ([]*model.LocationFix, error) {
	if limit <= 0 || limit > HistoryLimit {
		limit = HistoryLimit
	}

	var entities []*LocationFixEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("delivery_id = ?", deliveryID).
		Order("recorded_at DESC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toLocationFixModels(entities), nil
}

func (r *LocationRepository) CountByDelivery(ctx context.Context, deliveryID int64) (int64, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&LocationFixEntity{}).
		Where("delivery_id = ?", deliveryID).
		Count(&count).Error
	return count, err
}

// DeleteOlderThan bulk-purges a delivery's fixes recorded before the
// cutoff and returns how many rows went away. Callers are responsible
// for only passing terminal deliveries.
func (r *LocationRepository) DeleteOlderThan(ctx context.Context, deliveryID int64, cutoff time.Time) (int64, error) {
	res := r.Write(ctx).WithContext(ctx).
		Where("delivery_id = ? AND recorded_at < ?", deliveryID, cutoff).
		Delete(&LocationFixEntity{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
