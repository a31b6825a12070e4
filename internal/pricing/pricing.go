package pricing

import (
	"errors"
	"fmt"
)

// RentalMode selects the tariff and the duration unit of a rental.
type RentalMode string

const (
	ModeMinutes RentalMode = "minutes"
	ModeHours   RentalMode = "hours"
	ModeDays    RentalMode = "days"
)

var (
	ErrUnknownMode        = errors.New("unknown rental mode")
	ErrDurationOutOfRange = errors.New("duration out of range")
	ErrInvalidTariff      = errors.New("tariff values must be non-negative")
)

// Car is the tariff view of a vehicle. Amounts are whole currency units.
type Car struct {
	PricePerMinute int64 `json:"price_per_minute"`
	PricePerHour   int64 `json:"price_per_hour"`
	PricePerDay    int64 `json:"price_per_day"`
	OpeningFee     int64 `json:"open_price"`
}

// Validate rejects negative tariff values.
func (c Car) Validate() error {
	if c.PricePerMinute < 0 || c.PricePerHour < 0 || c.PricePerDay < 0 || c.OpeningFee < 0 {
		return ErrInvalidTariff
	}
	return nil
}

// ModeConfig describes how a rental mode is priced and labelled.
type ModeConfig struct {
	Mode          RentalMode
	MaxDuration   int
	HasOpeningFee bool
	UnitPrice     func(Car) int64
	Forms         PluralForms
}

var modes = map[RentalMode]ModeConfig{
	ModeMinutes: {
		Mode:          ModeMinutes,
		MaxDuration:   120,
		HasOpeningFee: true,
		UnitPrice:     func(c Car) int64 { return c.PricePerMinute },
		Forms:         PluralForms{One: "минута", Few: "минуты", Many: "минут"},
	},
	ModeHours: {
		Mode:        ModeHours,
		MaxDuration: 24,
		UnitPrice:   func(c Car) int64 { return c.PricePerHour },
		Forms:       PluralForms{One: "час", Few: "часа", Many: "часов"},
	},
	ModeDays: {
		Mode:        ModeDays,
		MaxDuration: 365,
		UnitPrice:   func(c Car) int64 { return c.PricePerDay },
		Forms:       PluralForms{One: "день", Few: "дня", Many: "дней"},
	},
}

// Modes lists the supported rental modes in display order.
func Modes() []RentalMode {
	return []RentalMode{ModeMinutes, ModeHours, ModeDays}
}

// Config returns the configuration of a rental mode.
func Config(mode RentalMode) (ModeConfig, error) {
	cfg, ok := modes[mode]
	if !ok {
		return ModeConfig{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	return cfg, nil
}

// ParseMode validates a raw mode string.
func ParseMode(raw string) (RentalMode, error) {
	cfg, err := Config(RentalMode(raw))
	if err != nil {
		return "", err
	}
	return cfg.Mode, nil
}

// MaxDuration returns the upper duration bound of a mode, or 0 for unknown modes.
func MaxDuration(mode RentalMode) int {
	return modes[mode].MaxDuration
}

// Discount is reported for day rentals only, including a zero-percent tier.
type Discount struct {
	Percent      int64 `json:"discount_percent"`
	Amount       int64 `json:"discount_amount"`
	OriginalCost int64 `json:"original_cost"`
}

// CostBreakdown is the quote for one car, mode and duration.
type CostBreakdown struct {
	BaseCost  int64     `json:"base_cost"`
	TotalCost int64     `json:"total_cost"`
	Discount  *Discount `json:"discount,omitempty"`
}

// DaysDiscountPercent returns the long-rental discount tier for a number of days.
func DaysDiscountPercent(days int) int64 {
	switch {
	case days >= 30:
		return 15
	case days >= 7:
		return 10
	case days >= 3:
		return 5
	default:
		return 0
	}
}

// percentOf returns pct percent of amount rounded to the nearest whole unit,
// halves rounding up. Both inputs are non-negative.
func percentOf(amount, pct int64) int64 {
	return (amount*pct + 50) / 100
}

// CalculateCost quotes a rental. It is pure and safe to call on every duration change.
func CalculateCost(car Car, mode RentalMode, duration int) (CostBreakdown, error) {
	cfg, err := Config(mode)
	if err != nil {
		return CostBreakdown{}, err
	}
	if err := car.Validate(); err != nil {
		return CostBreakdown{}, err
	}
	if duration < 0 || duration > cfg.MaxDuration {
		return CostBreakdown{}, fmt.Errorf("%w: %d not in [0, %d] for %s", ErrDurationOutOfRange, duration, cfg.MaxDuration, mode)
	}

	unitPrice := cfg.UnitPrice(car)
	n := int64(duration)

	switch mode {
	case ModeMinutes:
		// Minutes are billed while driving; the quote only covers opening the doors.
		var fee int64
		if cfg.HasOpeningFee {
			fee = car.OpeningFee
		}
		return CostBreakdown{BaseCost: 0, TotalCost: fee}, nil

	case ModeHours:
		base := unitPrice * n
		return CostBreakdown{BaseCost: base, TotalCost: base}, nil

	case ModeDays:
		original := unitPrice * n
		percent := DaysDiscountPercent(duration)
		amount := percentOf(original, percent)
		return CostBreakdown{
			BaseCost:  original,
			TotalCost: original - amount,
			Discount: &Discount{
				Percent:      percent,
				Amount:       amount,
				OriginalCost: original,
			},
		}, nil
	}

	base := unitPrice * n
	return CostBreakdown{BaseCost: base, TotalCost: base}, nil
}
