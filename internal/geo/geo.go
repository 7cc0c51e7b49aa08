package geo

import (
	"math"
	"time"
)

// EarthRadiusKm is the mean Earth radius used by the great-circle
// distance calculation.
const EarthRadiusKm = 6371.0

// DefaultSpeedMps is substituted when the live speed is unknown or
// below 1 m/s; after the m/s to km/h conversion it amounts to roughly
// 30 km/h.
const DefaultSpeedMps = 8.33

// MinUsableSpeedMps is the threshold below which a reported speed is
// treated as unusable for estimation.
const MinUsableSpeedMps = 1.0

type Point struct {
	Latitude  float64
	Longitude float64
}

// HaversineKm returns the great-circle distance between two points in
// kilometers.
func HaversineKm(from, to Point) float64 {
	lat1 := toRadians(from.Latitude)
	lat2 := toRadians(to.Latitude)
	dLat := toRadians(to.Latitude - from.Latitude)
	dLon := toRadians(to.Longitude - from.Longitude)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Estimate holds the result of an arrival estimation.
type Estimate struct {
	DistanceKm      float64
	DurationMinutes float64
	Arrival         time.Time
}

// EstimateArrival computes the straight-line distance between current
// and destination and projects an arrival time from the given speed in
// m/s. A nil or too-slow speed falls back to DefaultSpeedMps. Stateless
// and safe to recompute on every read.
func EstimateArrival(current, destination Point, speedMps *float64, now time.Time) Estimate {
	speed := DefaultSpeedMps
	if speedMps != nil && *speedMps >= MinUsableSpeedMps {
		speed = *speedMps
	}

	distanceKm := HaversineKm(current, destination)
	etaMinutes := (distanceKm / (speed * 3.6)) * 60

	return Estimate{
		DistanceKm:      distanceKm,
		DurationMinutes: etaMinutes,
		Arrival:         now.Add(time.Duration(etaMinutes * float64(time.Minute))),
	}
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
