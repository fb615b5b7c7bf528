package domain

import "time"

// Persisted entities. Surrogate IDs are assigned by storage on first insert
// and never change; (Source, ExternalID) is the only de-duplication key.

type Hotel struct {
	ID          int64
	Title       string
	Address     string
	Rating      float64
	Description string
	Source      string
	ExternalID  string
}

type Room struct {
	ID         int64
	Title      string
	Type       string
	Capacity   int
	HotelID    int64
	Source     string
	ExternalID string
}

type Offer struct {
	ID         int64
	Price      float64
	Currency   string
	CheckIn    string // YYYY-MM-DD
	CheckOut   string // YYYY-MM-DD
	RoomID     int64
	Source     string
	ExternalID string
	LastSeenAt time.Time
	IsActive   bool
}
