package model

import "time"

// ActionLog is the journal of commands issued to the backend (append-only).
type ActionLog struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RequestID  string    `gorm:"size:36;uniqueIndex;not null" json:"request_id"`
	CarID      int64     `gorm:"index" json:"car_id"`
	Action     string    `gorm:"size:32;not null" json:"action"`
	Role       string    `gorm:"size:16;not null" json:"role"`
	Succeeded  bool      `gorm:"not null" json:"succeeded"`
	Message    string    `gorm:"size:512" json:"message,omitempty"`
	FromStatus string    `gorm:"size:32" json:"from_status,omitempty"`
	ToStatus   string    `gorm:"size:32" json:"to_status,omitempty"`
	CreatedAt  time.Time `gorm:"not null;index" json:"created_at"`
}
