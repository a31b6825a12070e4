package model

// Rental is the user's active rental as embedded in the profile.
type Rental struct {
	ID         int64   `json:"id"`
	RentalType string  `json:"rental_type"`
	CarDetails Vehicle `json:"car_details"`
}

// User is the profile returned by the backend.
type User struct {
	ID            int64     `json:"id"`
	PhoneNumber   string    `json:"phone_number"`
	Role          string    `json:"role"`
	WalletBalance int64     `json:"wallet_balance"`
	CurrentRental *Rental   `json:"current_rental,omitempty"`
	OwnedCars     []Vehicle `json:"owned_cars,omitempty"`
}

// ActiveRentalStatus returns the status of the rented car, or "" without a rental.
func (u *User) ActiveRentalStatus() VehicleStatus {
	if u == nil || u.CurrentRental == nil {
		return ""
	}
	return u.CurrentRental.CarDetails.Status
}
