package fixtures

import (
	"time"

	"github.com/openfleet/delivery-tracker/internal/model"
)

var (
	TestDriverVan = model.DriverCreateRequest{
		SupplierID: 1,
		Name:       "Veera Virtanen",
		Phone:      "+358401234567",
		Vehicle:    model.VehicleVan,
	}

	TestDriverBike = model.DriverCreateRequest{
		SupplierID: 1,
		Name:       "Mikko Mäkinen",
		Phone:      "+358407654321",
		Vehicle:    model.VehicleBike,
	}

	// Central Helsinki, the canonical drop-off used across tests.
	TestDestination = model.DestinationUpsertRequest{
		RestaurantID: 10,
		Latitude:     60.1699,
		Longitude:    24.9384,
		Instructions: "Loading dock behind the building",
	}
)

// NewTestDelivery returns a create request for the given pair.
func NewTestDelivery(supplierID, restaurantID int64) model.DeliveryCreateRequest {
	return model.DeliveryCreateRequest{
		SupplierID:   supplierID,
		RestaurantID: restaurantID,
	}
}

// NewTestFix builds an ingest payload at the given coordinate.
func NewTestFix(deliveryID int64, lat, lon float64, recordedAt time.Time) model.LocationFixCreateRequest {
	return model.LocationFixCreateRequest{
		DeliveryID: deliveryID,
		Latitude:   lat,
		Longitude:  lon,
		RecordedAt: recordedAt,
	}
}
