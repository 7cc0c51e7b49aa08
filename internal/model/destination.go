package model

import (
	"errors"
	"time"
)

// Destination is a restaurant's fixed delivery coordinate, set once by
// the business owner and read by the ETA estimator.
type Destination struct {
	ID           int64     `json:"id"            db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	RestaurantID int64     `json:"restaurant_id" db:"restaurant_id" gorm:"column:restaurant_id;not null;uniqueIndex"`
	Latitude     float64   `json:"latitude"      db:"latitude"      gorm:"column:latitude;not null"`
	Longitude    float64   `json:"longitude"     db:"longitude"     gorm:"column:longitude;not null"`
	Instructions string    `json:"instructions"  db:"instructions"  gorm:"column:instructions"`
	CreatedAt    time.Time `json:"created_at"    db:"created_at"    gorm:"column:created_at;autoCreateTime"`
}

func (Destination) TableName() string { return "destinations" }

type DestinationUpsertRequest struct {
	RestaurantID int64   `json:"restaurant_id" validate:"required"`
	Latitude     float64 `json:"latitude"      validate:"min=-90,max=90"`
	Longitude    float64 `json:"longitude"     validate:"min=-180,max=180"`
	Instructions string  `json:"instructions"`
}

func (p DestinationUpsertRequest) Validate() error {
	if p.RestaurantID == 0 {
		return errors.New("restaurant_id is required")
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return errors.New("latitude out of range")
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return errors.New("longitude out of range")
	}
	return nil
}
