package repository

import (
	"time"

	"github.com/openfleet/delivery-tracker/internal/model"
)

type DestinationEntity struct {
	ID           int64     `db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	RestaurantID int64     `db:"restaurant_id" gorm:"column:restaurant_id;not null;uniqueIndex"`
	Latitude     float64   `db:"latitude"      gorm:"column:latitude;not null"`
	Longitude    float64   `db:"longitude"     gorm:"column:longitude;not null"`
	Instructions string    `db:"instructions"  gorm:"column:instructions"`
	CreatedAt    time.Time `db:"created_at"    gorm:"column:created_at;autoCreateTime"`
}

func (DestinationEntity) TableName() string {
	return "destinations"
}

func toDestinationEntity(m *model.Destination) *DestinationEntity {
	if m == nil {
		return nil
	}
	return &DestinationEntity{
		ID:           m.ID,
		RestaurantID: m.RestaurantID,
		Latitude:     m.Latitude,
		Longitude:    m.Longitude,
		Instructions: m.Instructions,
		CreatedAt:    m.CreatedAt,
	}
}

func toDestinationModel(e *DestinationEntity) *model.Destination {
	if e == nil {
		return nil
	}
	return &model.Destination{
		ID:           e.ID,
		RestaurantID: e.RestaurantID,
		Latitude:     e.Latitude,
		Longitude:    e.Longitude,
		Instructions: e.Instructions,
		CreatedAt:    e.CreatedAt,
	}
}
