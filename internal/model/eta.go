package model

import "time"

// ArrivalEstimate is the computed ETA for a delivery. All estimate
// fields are nil when either endpoint (current position or restaurant
// destination) is missing; the delivery is still trackable, the ETA is
// simply unavailable.
type ArrivalEstimate struct {
	DeliveryID       int64      `json:"delivery_id"`
	DistanceKm       *float64   `json:"distance_km"`
	DurationMinutes  *float64   `json:"duration_minutes"`
	EstimatedArrival *time.Time `json:"estimated_arrival"`

	// Road-network figures from the routing provider, when available.
	RouteDistanceKm      *float64 `json:"route_distance_km,omitempty"`
	RouteDurationMinutes *float64 `json:"route_duration_minutes,omitempty"`
}
