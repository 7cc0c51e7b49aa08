package model

import (
	"errors"
	"time"
)

// DeliveryStatus is the lifecycle state of a delivery.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusInTransit DeliveryStatus = "in_transit"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusConfirmed DeliveryStatus = "confirmed"
	DeliveryStatusCancelled DeliveryStatus = "cancelled"
)

// Terminal reports whether the status ends tracking; fixes of terminal
// deliveries become eligible for retention purge.
func (s DeliveryStatus) Terminal() bool {
	switch s {
	case DeliveryStatusDelivered, DeliveryStatusConfirmed, DeliveryStatusCancelled:
		return true
	}
	return false
}

type Delivery struct {
	ID           int64          `json:"id"            db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	SupplierID   int64          `json:"supplier_id"   db:"supplier_id"   gorm:"column:supplier_id;not null;index"`
	RestaurantID int64          `json:"restaurant_id" db:"restaurant_id" gorm:"column:restaurant_id;not null;index"`
	DriverID     *int64         `json:"driver_id"     db:"driver_id"     gorm:"column:driver_id;index"`
	Status       DeliveryStatus `json:"status"        db:"status"        gorm:"column:status;not null;default:pending"`

	TrackingStartedAt *time.Time `json:"tracking_started_at" db:"tracking_started_at" gorm:"column:tracking_started_at"`
	TrackingEndedAt   *time.Time `json:"tracking_ended_at"   db:"tracking_ended_at"   gorm:"column:tracking_ended_at"`

	// Snapshot of the most recently inserted fix, kept by the projector.
	CurrentLatitude    *float64   `json:"current_latitude"     db:"current_latitude"     gorm:"column:current_latitude"`
	CurrentLongitude   *float64   `json:"current_longitude"    db:"current_longitude"    gorm:"column:current_longitude"`
	CurrentSpeed       *float64   `json:"current_speed"        db:"current_speed"        gorm:"column:current_speed"`
	CurrentHeading     *float64   `json:"current_heading"      db:"current_heading"      gorm:"column:current_heading"`
	LastLocationUpdate *time.Time `json:"last_location_update" db:"last_location_update" gorm:"column:last_location_update"`

	EstimatedArrivalTime *time.Time `json:"estimated_arrival_time" db:"estimated_arrival_time" gorm:"column:estimated_arrival_time"`
	RouteDistanceKm      *float64   `json:"route_distance_km"      db:"route_distance_km"      gorm:"column:route_distance_km"`
	RouteDurationMinutes *float64   `json:"route_duration_minutes" db:"route_duration_minutes" gorm:"column:route_duration_minutes"`

	CreatedAt time.Time `json:"created_at" db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (Delivery) TableName() string { return "deliveries" }

// DeliveryCreateRequest is the input for dispatching a shipment.
type DeliveryCreateRequest struct {
	SupplierID   int64  `json:"supplier_id"   validate:"required"`
	RestaurantID int64  `json:"restaurant_id" validate:"required"`
	DriverID     *int64 `json:"driver_id"`
}

func (p DeliveryCreateRequest) Validate() error {
	if p.SupplierID == 0 {
		return errors.New("supplier_id is required")
	}
	if p.RestaurantID == 0 {
		return errors.New("restaurant_id is required")
	}
	return nil
}

// DeliveryFilter controls List queries.
type DeliveryFilter struct {
	SupplierID   *int64
	RestaurantID *int64
	DriverID     *int64
	Statuses     []DeliveryStatus
	From         *time.Time
	To           *time.Time
	Limit        int  // default 50
	Offset       int  // for pagination
	Desc         bool // order by created_at
}
