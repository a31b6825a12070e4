package pricing

// Selection is the mode and duration a renter is choosing on the booking screen.
type Selection struct {
	Mode     RentalMode `json:"mode"`
	Duration int        `json:"duration"`
}

// RentalData is what gets submitted when the renter books the car.
type RentalData struct {
	CarID      int64      `json:"car_id"`
	RentalType RentalMode `json:"rental_type"`
	Duration   int        `json:"duration"`
}

// NewSelection starts on the minutes tab with one unit selected.
func NewSelection() Selection {
	return Selection{Mode: ModeMinutes, Duration: 1}
}

// Increment adds one unit unless the mode maximum is reached.
func (s Selection) Increment() Selection {
	if s.Duration < MaxDuration(s.Mode) {
		s.Duration++
	}
	return s
}

// Decrement removes one unit unless the duration is already zero.
func (s Selection) Decrement() Selection {
	if s.Duration > 0 {
		s.Duration--
	}
	return s
}

// SetDuration clamps d into [0, max].
func (s Selection) SetDuration(d int) Selection {
	if limit := MaxDuration(s.Mode); d > limit {
		d = limit
	}
	if d < 0 {
		d = 0
	}
	s.Duration = d
	return s
}

// SwitchMode changes the tab and resets the duration to 1.
func (s Selection) SwitchMode(mode RentalMode) (Selection, error) {
	if _, err := Config(mode); err != nil {
		return s, err
	}
	return Selection{Mode: mode, Duration: 1}, nil
}

// Quote prices the current selection for car.
func (s Selection) Quote(car Car) (CostBreakdown, error) {
	return CalculateCost(car, s.Mode, s.Duration)
}

// RentalData builds the booking payload for carID.
func (s Selection) RentalData(carID int64) RentalData {
	return RentalData{CarID: carID, RentalType: s.Mode, Duration: s.Duration}
}
