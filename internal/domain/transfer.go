package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Transfer records are the immutable wire shapes produced by a provider
// client, before mapping into persisted entities.

type TokenState int

const (
	TokenAbsent TokenState = iota
	TokenValid
	TokenExpired
)

// AccessToken carries an absolute expiry instant (issue time + ttl).
type AccessToken struct {
	Token     string
	Type      string
	ExpiresAt time.Time
}

// State reports the token lifecycle state at now. A token counts as expired
// once now reaches ExpiresAt minus the safety buffer, so a refresh happens
// before the provider would actually reject it.
func (t AccessToken) State(now time.Time, buffer time.Duration) TokenState {
	if t.Token == "" {
		return TokenAbsent
	}
	if now.Before(t.ExpiresAt.Add(-buffer)) {
		return TokenValid
	}
	return TokenExpired
}

type Address struct {
	Line        string
	City        string
	PostalCode  string
	CountryCode string
}

// Formatted joins the non-empty address parts with ", ".
func (a Address) Formatted() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.Line, a.City, a.PostalCode, a.CountryCode} {
		if t := strings.TrimSpace(p); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, ", ")
}

type GeoCode struct {
	Latitude  float64
	Longitude float64
}

type HotelRecord struct {
	ExternalID  string
	Name        string
	Address     Address
	Geo         *GeoCode
	Description string
	Rating      *float64
}

type TypeEstimate struct {
	Category string
	Beds     int
	BedType  string
}

type RoomRecord struct {
	Type        string
	Description string
	Capacity    *int
	Estimate    *TypeEstimate
	Amenities   []string
}

// Title prefers the free-text description, falling back to the type code.
func (r RoomRecord) Title() string {
	if strings.TrimSpace(r.Description) != "" {
		return r.Description
	}
	return r.Type
}

// ResolvedCapacity resolves explicit capacity, then the estimated bed
// count, then the default of 2.
func (r RoomRecord) ResolvedCapacity() int {
	if r.Capacity != nil {
		return *r.Capacity
	}
	if r.Estimate != nil && r.Estimate.Beds > 0 {
		return r.Estimate.Beds
	}
	return 2
}

// NormalizedType prefers the estimated category over the raw type code.
func (r RoomRecord) NormalizedType() string {
	if r.Estimate != nil && r.Estimate.Category != "" {
		return r.Estimate.Category
	}
	return r.Type
}

type OfferRecord struct {
	HotelExternalID string
	OfferID         string
	Price           float64
	Currency        string
	CheckIn         string
	CheckOut        string
	Room            RoomRecord
	Policies        json.RawMessage
	Cancellation    json.RawMessage
}

type RatingRecord struct {
	HotelExternalID string
	OverallRating   float64
	CategoryRatings map[string]float64
	ReviewCount     *int
}
