package model

import (
	"errors"
	"time"
)

// LocationFix is one GPS observation on a delivery's trail. Rows are
// append-only; they are never updated and only removed by the bulk
// retention purge.
type LocationFix struct {
	ID         int64  `json:"id"          db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	DeliveryID int64  `json:"delivery_id" db:"delivery_id" gorm:"column:delivery_id;not null;index"`
	DriverID   *int64 `json:"driver_id"   db:"driver_id"   gorm:"column:driver_id;index"`

	Latitude  float64 `json:"latitude"  db:"latitude"  gorm:"column:latitude;not null"`
	Longitude float64 `json:"longitude" db:"longitude" gorm:"column:longitude;not null"`

	Accuracy     *float64 `json:"accuracy"      db:"accuracy"      gorm:"column:accuracy"`
	Altitude     *float64 `json:"altitude"      db:"altitude"      gorm:"column:altitude"`
	Speed        *float64 `json:"speed"         db:"speed"         gorm:"column:speed"` // m/s
	Heading      *float64 `json:"heading"       db:"heading"       gorm:"column:heading"`
	BatteryLevel *float64 `json:"battery_level" db:"battery_level" gorm:"column:battery_level"`

	RecordedAt time.Time `json:"recorded_at" db:"recorded_at" gorm:"column:recorded_at;not null;index"` // device clock
	CreatedAt  time.Time `json:"created_at"  db:"created_at"  gorm:"column:created_at;autoCreateTime"`  // server clock
}

func (LocationFix) TableName() string { return "location_fixes" }

// LocationFixCreateRequest is the ingest payload for one fix.
type LocationFixCreateRequest struct {
	DeliveryID   int64     `json:"delivery_id"   validate:"required"`
	DriverID     *int64    `json:"driver_id"`
	Latitude     float64   `json:"latitude"      validate:"min=-90,max=90"`
	Longitude    float64   `json:"longitude"     validate:"min=-180,max=180"`
	Accuracy     *float64  `json:"accuracy"`
	Altitude     *float64  `json:"altitude"`
	Speed        *float64  `json:"speed"`
	Heading      *float64  `json:"heading"`
	BatteryLevel *float64  `json:"battery_level"`
	RecordedAt   time.Time `json:"recorded_at"`
}

func (p LocationFixCreateRequest) Validate() error {
	if p.DeliveryID == 0 {
		return errors.New("delivery_id is required")
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return errors.New("latitude out of range")
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return errors.New("longitude out of range")
	}
	return nil
}
