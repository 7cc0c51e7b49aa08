package model

import (
	"errors"
	"time"
)

// VehicleType is the driver's vehicle category.
type VehicleType string

const (
	VehicleCar     VehicleType = "car"
	VehicleVan     VehicleType = "van"
	VehicleBike    VehicleType = "bike"
	VehicleScooter VehicleType = "scooter"
)

func (v VehicleType) Valid() bool {
	switch v {
	case VehicleCar, VehicleVan, VehicleBike, VehicleScooter:
		return true
	}
	return false
}

type Driver struct {
	ID         int64       `json:"id"          db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	SupplierID int64       `json:"supplier_id" db:"supplier_id" gorm:"column:supplier_id;not null;index"`
	Name       string      `json:"name"        db:"name"        gorm:"column:name;not null"`
	Phone      string      `json:"phone"       db:"phone"       gorm:"column:phone"`
	Email      string      `json:"email"       db:"email"       gorm:"column:email"`
	Vehicle    VehicleType `json:"vehicle"     db:"vehicle"     gorm:"column:vehicle;not null"`
	Active     bool        `json:"active"      db:"active"      gorm:"column:active;not null;default:true"`
	CreatedAt  time.Time   `json:"created_at"  db:"created_at"  gorm:"column:created_at;autoCreateTime"`
}

func (Driver) TableName() string { return "drivers" }

// DriverCreateRequest is the input for registering a driver.
type DriverCreateRequest struct {
	SupplierID int64       `json:"supplier_id" validate:"required"`
	Name       string      `json:"name"        validate:"required"`
	Phone      string      `json:"phone"`
	Email      string      `json:"email"       validate:"omitempty,email"`
	Vehicle    VehicleType `json:"vehicle"     validate:"required"`
}

func (p DriverCreateRequest) Validate() error {
	if p.SupplierID == 0 {
		return errors.New("supplier_id is required")
	}
	if p.Name == "" {
		return errors.New("name is required")
	}
	if !p.Vehicle.Valid() {
		return errors.New("vehicle must be one of car, van, bike, scooter")
	}
	return nil
}
