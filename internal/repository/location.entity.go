package repository

import (
	"time"

	"github.com/openfleet/delivery-tracker/internal/model"
)

type LocationFixEntity struct {
	ID         int64  `db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	DeliveryID int64  `db:"delivery_id" gorm:"column:delivery_id;not null;index"`
	DriverID   *int64 `db:"driver_id"   gorm:"column:driver_id;index"`

	Latitude  float64 `db:"latitude"  gorm:"column:latitude;not null"`
	Longitude float64 `db:"longitude" gorm:"column:longitude;not null"`

	Accuracy     *float64 `db:"accuracy"      gorm:"column:accuracy"`
	Altitude     *float64 `db:"altitude"      gorm:"column:altitude"`
	Speed        *float64 `db:"speed"         gorm:"column:speed"`
	Heading      *float64 `db:"heading"       gorm:"column:heading"`
	BatteryLevel *float64 `db:"battery_level" gorm:"column:battery_level"`

	RecordedAt time.Time `db:"recorded_at" gorm:"column:recorded_at;not null;index"`
	CreatedAt  time.Time `db:"created_at"  gorm:"column:created_at;autoCreateTime"`
}

func (LocationFixEntity) TableName() string {
	return "location_fixes"
}

func toLocationFixEntity(m *model.LocationFix) *LocationFixEntity {
	if m == nil {
		return nil
	}
	return &LocationFixEntity{
		ID:           m.ID,
		DeliveryID:   m.DeliveryID,
		DriverID:     m.DriverID,
		Latitude:     m.Latitude,
		Longitude:    m.Longitude,
		Accuracy:     m.Accuracy,
		Altitude:     m.Altitude,
		Speed:        m.Speed,
		Heading:      m.Heading,
		BatteryLevel: m.BatteryLevel,
		RecordedAt:   m.RecordedAt,
		CreatedAt:    m.CreatedAt,
	}
}

func toLocationFixModel(e *LocationFixEntity) *model.LocationFix {
	if e == nil {
		return nil
	}
	return &model.LocationFix{
		ID:           e.ID,
		DeliveryID:   e.DeliveryID,
		DriverID:     e.DriverID,
		Latitude:     e.Latitude,
		Longitude:    e.Longitude,
		Accuracy:     e.Accuracy,
		Altitude:     e.Altitude,
		Speed:        e.Speed,
		Heading:      e.Heading,
		BatteryLevel: e.BatteryLevel,
		RecordedAt:   e.RecordedAt,
		CreatedAt:    e.CreatedAt,
	}
}

func toLocationFixModels(entities []*LocationFixEntity) []*model.LocationFix {
	if entities == nil {
		return nil
	}
	models := make([]*model.LocationFix, len(entities))
	for i, e := range entities {
		models[i] = toLocationFixModel(e)
	}
	return models
}
