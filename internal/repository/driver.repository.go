package repository

import (
	"context"
	"errors"

	"github.com/openfleet/delivery-tracker/internal/model"
	"github.com/openfleet/delivery-tracker/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrDriverNotFound is returned when a driver does not exist.
	ErrDriverNotFound = errors.New("driver not found")
)

type DriverRepository struct {
	*pg.DB
}

func NewDriverRepository(db *pg.DB) *DriverRepository {
	return &DriverRepository{
		db,
	}
}

func (r *DriverRepository) Create(ctx context.Context, d *model.Driver) (*model.Driver, error) {
	entity := toDriverEntity(d)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toDriverModel(entity), nil
}

func (r *DriverRepository) GetByID(ctx context.Context, id int64) (*model.Driver, error) {
	var entity DriverEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDriverNotFound
		}
		return nil, err
	}
	return toDriverModel(&entity), nil
}

func (r *DriverRepository) ListBySupplier(ctx context.Context, supplierID int64, activeOnly bool) ([]*model.Driver, error) {
	q := r.Read(ctx).WithContext(ctx).Where("supplier_id = ?", supplierID)
	if activeOnly {
		q = q.Where("active = ?", true)
	}

	var entities []*DriverEntity
	if err := q.Order("created_at ASC").Find(&entities).Error; err != nil {
		return nil, err
	}
	return toDriverModels(entities), nil
}

// Deactivate flips the active flag. Drivers are never hard-deleted
// while referenced by historical fixes.
func (r *DriverRepository) Deactivate(ctx context.Context, id int64) error {
	res := r.Write(ctx).WithContext(ctx).
		Model(&DriverEntity{}).
		Where("id = ?", id).
		Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDriverNotFound
	}
	return nil
}
