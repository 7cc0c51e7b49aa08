package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/openfleet/delivery-tracker/internal/model"
	"github.com/openfleet/delivery-tracker/internal/repository"
)

type DriverRegistry interface {
	Create(ctx context.Context, d *model.Driver) (*model.Driver, error)
	GetByID(ctx context.Context, id int64) (*model.Driver, error)
	ListBySupplier(ctx context.Context, supplierID int64, activeOnly bool) ([]*model.Driver, error)
	Deactivate(ctx context.Context, id int64) error
}

type DriverService struct {
	drivers DriverRegistry
}

func NewDriverService(drivers DriverRegistry) *DriverService {
	return &DriverService{drivers: drivers}
}

func (s *DriverService) Create(ctx context.Context, p model.DriverCreateRequest) (*model.Driver, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	d := &model.Driver{
		SupplierID: p.SupplierID,
		Name:       p.Name,
		Phone:      p.Phone,
		Email:      p.Email,
		Vehicle:    p.Vehicle,
		Active:     true,
	}

	created, err := s.drivers.Create(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("create driver: %w", err)
	}
	return created, nil
}

func (s *DriverService) Get(ctx context.Context, id int64) (*model.Driver, error) {
	d, err := s.drivers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrDriverNotFound) {
			return nil, ErrDriverNotFound
		}
		return nil, err
	}
	return d, nil
}

func (s *DriverService) ListBySupplier(ctx context.Context, supplierID int64, activeOnly bool) ([]*model.Driver, error) {
	return s.drivers.ListBySupplier(ctx, supplierID, activeOnly)
}

// Deactivate retires a driver. Existing deliveries keep their history;
// the driver just stops being assignable.
func (s *DriverService) Deactivate(ctx context.Context, id int64) error {
	err := s.drivers.Deactivate(ctx, id)
	if errors.Is(err, repository.ErrDriverNotFound) {
		return ErrDriverNotFound
	}
	return err
}
