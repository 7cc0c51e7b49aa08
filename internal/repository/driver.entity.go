package repository

import (
	"time"

	"github.com/openfleet/delivery-tracker/internal/model"
)

type DriverEntity struct {
	ID         int64     `db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	SupplierID int64     `db:"supplier_id" gorm:"column:supplier_id;not null;index"`
	Name       string    `db:"name"        gorm:"column:name;not null"`
	Phone      string    `db:"phone"       gorm:"column:phone"`
	Email      string    `db:"email"       gorm:"column:email"`
	Vehicle    string    `db:"vehicle"     gorm:"column:vehicle;not null"`
	Active     bool      `db:"active"      gorm:"column:active;not null;default:true"`
	CreatedAt  time.Time `db:"created_at"  gorm:"column:created_at;autoCreateTime"`
}

func (DriverEntity) TableName() string {
	return "drivers"
}

func toDriverEntity(m *model.Driver) *DriverEntity {
	if m == nil {
		return nil
	}
	return &DriverEntity{
		ID:         m.ID,
		SupplierID: m.SupplierID,
		Name:       m.Name,
		Phone:      m.Phone,
		Email:      m.Email,
		Vehicle:    string(m.Vehicle),
		Active:     m.Active,
		CreatedAt:  m.CreatedAt,
	}
}

func toDriverModel(e *DriverEntity) *model.Driver {
	if e == nil {
		return nil
	}
	return &model.Driver{
		ID:         e.ID,
		SupplierID: e.SupplierID,
		Name:       e.Name,
		Phone:      e.Phone,
		Email:      e.Email,
		Vehicle:    model.VehicleType(e.Vehicle),
		Active:     e.Active,
		CreatedAt:  e.CreatedAt,
	}
}

func toDriverModels(entities []*DriverEntity) []*model.Driver {
	if entities == nil {
		return nil
	}
	models := make([]*model.Driver, len(entities))
	for i, e := range entities {
		models[i] = toDriverModel(e)
	}
	return models
}
