package models

import "time"

// Booking is persisted through gorm; column names are explicit.
type Booking struct {
	ID        string    `json:"id" gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()"`
	TourID    string    `json:"tour" gorm:"column:tour_id;type:uuid;not null"`
	UserID    string    `json:"user" gorm:"column:user_id;type:uuid;not null"`
	Price     float64   `json:"price" gorm:"column:price;not null"`
	Paid      bool      `json:"paid" gorm:"column:paid;not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"column:created_at;autoCreateTime"`
}

func (Booking) TableName() string {
	return "bookings"
}
