package model

import "fleet-rental-backend/internal/pricing"

// VehicleStatus is the operational state of a vehicle as reported by the backend.
type VehicleStatus string

const (
	StatusPending          VehicleStatus = "pending"
	StatusChecking         VehicleStatus = "checking"
	StatusDeliveryAccepted VehicleStatus = "delivery_accepted"
	StatusInDelivery       VehicleStatus = "in_delivery"
	StatusInUse            VehicleStatus = "in_use"
	StatusCompleted        VehicleStatus = "completed"
)

// Coordinates is a delivery drop-off point.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Vehicle is a car as listed by the mechanic and rental endpoints.
type Vehicle struct {
	ID                  int64         `json:"id"`
	Name                string        `json:"name"`
	PlateNumber         string        `json:"plate_number"`
	Status              VehicleStatus `json:"status"`
	DeliveryCoordinates *Coordinates  `json:"delivery_coordinates,omitempty"`

	PricePerMinute int64 `json:"price_per_minute"`
	PricePerHour   int64 `json:"price_per_hour"`
	PricePerDay    int64 `json:"price_per_day"`
	OpenPrice      int64 `json:"open_price"`
}

// Tariff returns the pricing view of the vehicle.
func (v Vehicle) Tariff() pricing.Car {
	return pricing.Car{
		PricePerMinute: v.PricePerMinute,
		PricePerHour:   v.PricePerHour,
		PricePerDay:    v.PricePerDay,
		OpeningFee:     v.OpenPrice,
	}
}
