package repository

import (
	"time"

	"github.com/openfleet/delivery-tracker/internal/model"
)

type DeliveryEntity struct {
	ID           int64  `db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	SupplierID   int64  `db:"supplier_id"   gorm:"column:supplier_id;not null;index"`
	RestaurantID int64  `db:"restaurant_id" gorm:"column:restaurant_id;not null;index"`
	DriverID     *int64 `db:"driver_id"     gorm:"column:driver_id;index"`
	Status       string `db:"status"        gorm:"column:status;not null;default:pending;index"`

	TrackingStartedAt *time.Time `db:"tracking_started_at" gorm:"column:tracking_started_at"`
	TrackingEndedAt   *time.Time `db:"tracking_ended_at"   gorm:"column:tracking_ended_at"`

	CurrentLatitude    *float64   `db:"current_latitude"     gorm:"column:current_latitude"`
	CurrentLongitude   *float64   `db:"current_longitude"    gorm:"column:current_longitude"`
	CurrentSpeed       *float64   `db:"current_speed"        gorm:"column:current_speed"`
	CurrentHeading     *float64   `db:"current_heading"      gorm:"column:current_heading"`
	LastLocationUpdate *time.Time `db:"last_location_update" gorm:"column:last_location_update"`

	EstimatedArrivalTime *time.Time `db:"estimated_arrival_time" gorm:"column:estimated_arrival_time"`
	RouteDistanceKm      *float64   `db:"route_distance_km"      gorm:"column:route_distance_km"`
	RouteDurationMinutes *float64   `db:"route_duration_minutes" gorm:"column:route_duration_minutes"`

	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`

	LocationFixes []*LocationFixEntity `gorm:"foreignKey:DeliveryID"`
}

func (DeliveryEntity) TableName() string {
	return "deliveries"
}

func toDeliveryEntity(m *model.Delivery) *DeliveryEntity {
	if m == nil {
		return nil
	}
	return &DeliveryEntity{
		ID:                   m.ID,
		SupplierID:           m.SupplierID,
		RestaurantID:         m.RestaurantID,
		DriverID:             m.DriverID,
		Status:               string(m.Status),
		TrackingStartedAt:    m.TrackingStartedAt,
		TrackingEndedAt:      m.TrackingEndedAt,
		CurrentLatitude:      m.CurrentLatitude,
		CurrentLongitude:     m.CurrentLongitude,
		CurrentSpeed:         m.CurrentSpeed,
		CurrentHeading:       m.CurrentHeading,
		LastLocationUpdate:   m.LastLocationUpdate,
		EstimatedArrivalTime: m.EstimatedArrivalTime,
		RouteDistanceKm:      m.RouteDistanceKm,
		RouteDurationMinutes: m.RouteDurationMinutes,
		CreatedAt:            m.CreatedAt,
	}
}

func toDeliveryModel(e *DeliveryEntity) *model.Delivery {
	if e == nil {
		return nil
	}
	return &model.Delivery{
		ID:                   e.ID,
		SupplierID:           e.SupplierID,
		RestaurantID:         e.RestaurantID,
		DriverID:             e.DriverID,
		Status:               model.DeliveryStatus(e.Status),
		TrackingStartedAt:    e.TrackingStartedAt,
		TrackingEndedAt:      e.TrackingEndedAt,
		CurrentLatitude:      e.CurrentLatitude,
		CurrentLongitude:     e.CurrentLongitude,
		CurrentSpeed:         e.CurrentSpeed,
		CurrentHeading:       e.CurrentHeading,
		LastLocationUpdate:   e.LastLocationUpdate,
		EstimatedArrivalTime: e.EstimatedArrivalTime,
		RouteDistanceKm:      e.RouteDistanceKm,
		RouteDurationMinutes: e.RouteDurationMinutes,
		CreatedAt:            e.CreatedAt,
	}
}

func toDeliveryModels(entities []*DeliveryEntity) []*model.Delivery {
	if entities == nil {
		return nil
	}
	models := make([]*model.Delivery, len(entities))
	for i, e := range entities {
		models[i] = toDeliveryModel(e)
	}
	return models
}
