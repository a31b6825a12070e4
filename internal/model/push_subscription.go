package model

import (
	"slices"
	"time"
)

// PushSubscription is a browser push endpoint that wants broadcast signals.
// A subscription without cars receives signals for every car.
type PushSubscription struct {
	Endpoint  string            `gorm:"primaryKey"`
	P256DH    string            `gorm:"column:p256dh;not null"`
	Auth      string            `gorm:"not null"`
	Cars      []SubscriptionCar `gorm:"foreignKey:Endpoint;references:Endpoint;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SubscriptionCar narrows a subscription to one car.
type SubscriptionCar struct {
	Endpoint string `gorm:"primaryKey"`
	CarID    int64  `gorm:"primaryKey;index"`
}

// CarIDs lists the cars the subscription is narrowed to, in ascending order.
func (s PushSubscription) CarIDs() []int64 {
	ids := make([]int64, len(s.Cars))
	for i, c := range s.Cars {
		ids[i] = c.CarID
	}
	slices.Sort(ids)
	return ids
}
