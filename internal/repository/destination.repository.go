package repository

import (
	"context"
	"errors"

	"github.com/openfleet/delivery-tracker/internal/model"
	"github.com/openfleet/delivery-tracker/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrDestinationNotFound is returned when a restaurant has no
	// coordinate on file.
	ErrDestinationNotFound = errors.New("destination not found")
)

type DestinationRepository struct {
	*pg.DB
}

func NewDestinationRepository(db *pg.DB) *DestinationRepository {
	return &DestinationRepository{
		db,
	}
}

// Upsert creates or replaces the restaurant's coordinate.
func (r *DestinationRepository) Upsert(ctx context.Context, d *model.Destination) (*model.Destination, error) {
	entity := toDestinationEntity(d)

	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "restaurant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"latitude", "longitude", "instructions"}),
		}).
		Create(entity).Error
	if err != nil {
		return nil, err
	}

	return toDestinationModel(entity), nil
}

func (r *DestinationRepository) GetByRestaurantID(ctx context.Context, restaurantID int64) (*model.Destination, error) {
	var entity DestinationEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "restaurant_id = ?", restaurantID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDestinationNotFound
		}
		return nil, err
	}
	return toDestinationModel(&entity), nil
}
